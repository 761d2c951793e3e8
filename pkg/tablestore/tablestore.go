package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrFieldMissing = errors.New("field missing")
var ErrFieldInvalid = errors.New("field has invalid value")
var ErrUnknownColumn = errors.New("field has no column in the table")

// Row is a single record of a named table. Values are whatever the backend decoded:
// numbers may arrive as float64, json.Number or strings depending on the store.
type Row map[string]any

// Filter selects rows whose fields are equal to every given value. A nil Filter selects all rows.
type Filter map[string]any

// Client is the narrow view of the remote tabular API used by the allocation engine.
type Client interface {
	Find(ctx context.Context, table string, filter Filter) ([]Row, error)
	Add(ctx context.Context, table string, rows []Row) error
}

// Matches reports whether the row satisfies the filter. Numeric values are compared by value,
// so 2024, "2024" and 2024.0 are equal.
func (f Filter) Matches(row Row) bool {
	for field, want := range f {
		got, ok := row[field]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	da, errA := toDecimal(a)
	db, errB := toDecimal(b)
	if errA == nil && errB == nil {
		return da.Equal(db)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func (r Row) Text(field string) (string, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrFieldMissing, field)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (r Row) Decimal(field string) (decimal.Decimal, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrFieldMissing, field)
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%v", ErrFieldInvalid, field, v)
	}
	return d, nil
}

func (r Row) Int(field string) (int, error) {
	d, err := r.Decimal(field)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s=%s is not an integer", ErrFieldInvalid, field, d)
	}
	return int(d.IntPart()), nil
}

// Clone returns a shallow copy so callers can keep rows independent of the store's copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, strconv.ErrSyntax
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// encodeValue converts a row value into the representation written to stores that keep text.
func encodeValue(v any) any {
	switch n := v.(type) {
	case decimal.Decimal:
		return n.String()
	case nil:
		return ""
	default:
		return v
	}
}
