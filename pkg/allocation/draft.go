package allocation

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrNegativeAmount = errors.New("total amount cannot be negative")

// Draft is the in-progress plan of the editor. It is a value: every transition produces a new
// Draft and never modifies maps reachable from the previous one.
type Draft struct {
	Plan
	CategoryShares map[Taxonomy]map[string]decimal.Decimal
	Derived        Derived

	catalog Catalog
}

// Derived holds every amount and remainder computed from the draft's leaves.
type Derived struct {
	QuarterAmounts   [Quarters]decimal.Decimal
	QuarterRemainder decimal.Decimal
	MonthAmounts     [Months]decimal.Decimal
	MonthRemainders  [Quarters]decimal.Decimal
	Categories       map[Taxonomy]CategoryTotals
}

type CategoryTotals struct {
	Amounts     map[string]decimal.Decimal
	TotalShare  decimal.Decimal
	TotalAmount decimal.Decimal
	Remainder   decimal.Decimal
}

// NewDraft returns an empty draft holding a zero share for every catalog label.
func NewDraft(catalog Catalog) Draft {
	d := Draft{
		CategoryShares: make(map[Taxonomy]map[string]decimal.Decimal, len(Taxonomies)),
		catalog:        catalog,
	}
	for _, t := range Taxonomies {
		shares := make(map[string]decimal.Decimal, len(catalog[t]))
		for _, label := range catalog[t] {
			shares[label] = decimal.Zero
		}
		d.CategoryShares[t] = shares
	}
	d.Derived = recomputeFromTotal(d)
	return d
}

// DraftFromPlan loads a persisted plan back into the editor for a re-edit and resubmit cycle.
// Rows whose label is no longer in the catalog are dropped.
func DraftFromPlan(plan Plan, rows []CategoryRow, catalog Catalog) Draft {
	d := NewDraft(catalog)
	d.Plan = plan
	for _, row := range rows {
		if !catalog.Contains(row.Taxonomy, row.Label) {
			log.Warnf("dropping %s share of %q for %d: not in the catalog", row.Taxonomy, row.Label, row.FiscalYear)
			continue
		}
		d.CategoryShares[row.Taxonomy][row.Label] = row.YearShare
	}
	d.Derived = recomputeFromTotal(d)
	return d
}

func (d Draft) Catalog() Catalog {
	return d.catalog
}

func (d Draft) CategoryShare(t Taxonomy, label string) decimal.Decimal {
	return d.CategoryShares[t][label]
}

// Action is a single user edit of a draft leaf.
type Action interface {
	apply(d Draft) (Draft, error)
}

type SetFiscalYear struct {
	Year int
}

type SetTotalAmount struct {
	Raw string
}

type SetQuarterShare struct {
	Quarter int // 1..4
	Value   decimal.Decimal
}

type SetMonthShare struct {
	Month int // 1..12
	Value decimal.Decimal
}

type SetCategoryShare struct {
	Taxonomy Taxonomy
	Label    string
	Value    decimal.Decimal
}

// Reduce applies one action and returns the resulting draft with all affected derived values
// recomputed. On error the returned draft is the unchanged input.
func Reduce(d Draft, action Action) (Draft, error) {
	if action == nil {
		return d, errors.New("no action given")
	}
	next, err := action.apply(d)
	if err != nil {
		return d, err
	}
	return next, nil
}

func (a SetFiscalYear) apply(d Draft) (Draft, error) {
	d.FiscalYear = a.Year
	return d, nil
}

func (a SetTotalAmount) apply(d Draft) (Draft, error) {
	d.TotalAmount = ParseAmount(a.Raw)
	d.Derived = recomputeFromTotal(d)
	return d, nil
}

// Shares above 100 are accepted on purpose; the negative remainder is the only signal.
func (a SetQuarterShare) apply(d Draft) (Draft, error) {
	if a.Quarter < 1 || a.Quarter > Quarters {
		return d, fmt.Errorf("%w: %d", ErrQuarterOutOfRange, a.Quarter)
	}
	q := a.Quarter - 1
	d.QuarterShares[q] = a.Value
	d.Derived = recomputeQuarter(d.Derived, d, q)
	return d, nil
}

func (a SetMonthShare) apply(d Draft) (Draft, error) {
	if a.Month < 1 || a.Month > Months {
		return d, fmt.Errorf("%w: %d", ErrMonthOutOfRange, a.Month)
	}
	m := a.Month - 1
	d.MonthShares[m] = a.Value
	d.Derived = recomputeMonth(d.Derived, d, m)
	return d, nil
}

func (a SetCategoryShare) apply(d Draft) (Draft, error) {
	if !d.catalog.Contains(a.Taxonomy, a.Label) {
		return d, fmt.Errorf("%w: %s/%q", ErrUnknownCategory, a.Taxonomy, a.Label)
	}
	shares := maps.Clone(d.CategoryShares[a.Taxonomy])
	shares[a.Label] = a.Value
	d.CategoryShares = maps.Clone(d.CategoryShares)
	d.CategoryShares[a.Taxonomy] = shares
	d.Derived = recomputeCategory(d.Derived, d, a.Taxonomy, a.Label)
	return d, nil
}

// ParseAmount keeps only the digits of raw. An input without digits is zero.
func ParseAmount(raw string) decimal.Decimal {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero
	}
	return amount
}
