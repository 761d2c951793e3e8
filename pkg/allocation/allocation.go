package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/salesplan/salesplan/internal/config"
	"github.com/shopspring/decimal"
)

const (
	Quarters         = 4
	Months           = 12
	MonthsPerQuarter = Months / Quarters
)

var ErrUnknownTaxonomy = errors.New("unknown taxonomy")
var ErrUnknownCategory = errors.New("category is not in the catalog")
var ErrQuarterOutOfRange = errors.New("quarter must be between 1 and 4")
var ErrMonthOutOfRange = errors.New("month must be between 1 and 12")
var ErrPlanNotFound = errors.New("plan not found")

var hundred = decimal.NewFromInt(100)

// Taxonomy is one of the independent category partitions a yearly target is split over.
type Taxonomy string

const (
	TaxonomyLine     Taxonomy = "LINE"
	TaxonomyEmployee Taxonomy = "EMPLOYEE"
	TaxonomySource   Taxonomy = "SOURCE"
)

var Taxonomies = []Taxonomy{TaxonomyLine, TaxonomyEmployee, TaxonomySource}

var taxonomyLabels = map[Taxonomy]string{
	TaxonomyLine:     "Business line",
	TaxonomyEmployee: "Employee",
	TaxonomySource:   "Source",
}

// Label is the human-readable name persisted in detail rows.
func (t Taxonomy) Label() string {
	return taxonomyLabels[t]
}

// ParseTaxonomy accepts either the code (LINE) or the persisted label (Business line).
func ParseTaxonomy(s string) (Taxonomy, error) {
	s = strings.TrimSpace(s)
	for _, t := range Taxonomies {
		if strings.EqualFold(s, string(t)) || strings.EqualFold(s, t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTaxonomy, s)
}

// Catalog holds the valid labels of every taxonomy, in display order.
type Catalog map[Taxonomy][]string

func NewCatalog(cfg config.Catalog) Catalog {
	return Catalog{
		TaxonomyLine:     append([]string(nil), cfg.Lines...),
		TaxonomyEmployee: append([]string(nil), cfg.Employees...),
		TaxonomySource:   append([]string(nil), cfg.Sources...),
	}
}

func (c Catalog) Contains(t Taxonomy, label string) bool {
	for _, l := range c[t] {
		if l == label {
			return true
		}
	}
	return false
}

// Size is the number of detail rows a submitted plan produces.
func (c Catalog) Size() int {
	size := 0
	for _, t := range Taxonomies {
		size += len(c[t])
	}
	return size
}

// Plan is the header of a yearly allocation. Shares are percentages (0-100); every month share is
// relative to the amount of its owning quarter.
type Plan struct {
	FiscalYear    int
	TotalAmount   decimal.Decimal
	QuarterShares [Quarters]decimal.Decimal
	MonthShares   [Months]decimal.Decimal
}

// CategoryRow is the share of the yearly total assigned to one label of one taxonomy.
type CategoryRow struct {
	FiscalYear int
	Taxonomy   Taxonomy
	Label      string
	YearShare  decimal.Decimal
}

// QuarterOf maps a zero-based month index to its zero-based quarter.
func QuarterOf(month int) int {
	return month / MonthsPerQuarter
}

// MonthsOf returns the zero-based month indexes of a zero-based quarter.
func MonthsOf(quarter int) []int {
	first := quarter * MonthsPerQuarter
	return []int{first, first + 1, first + 2}
}

func (p Plan) QuarterAmount(quarter int) decimal.Decimal {
	return percentOf(p.TotalAmount, p.QuarterShares[quarter])
}

func (p Plan) MonthAmount(month int) decimal.Decimal {
	return percentOf(p.QuarterAmount(QuarterOf(month)), p.MonthShares[month])
}

func (p Plan) QuarterRemainder() decimal.Decimal {
	return remainderOf(p.QuarterShares[:]...)
}

func (p Plan) MonthRemainder(quarter int) decimal.Decimal {
	months := MonthsOf(quarter)
	return remainderOf(p.MonthShares[months[0]], p.MonthShares[months[1]], p.MonthShares[months[2]])
}

func (p Plan) CategoryAmount(share decimal.Decimal) decimal.Decimal {
	return percentOf(p.TotalAmount, share)
}

func percentOf(amount, share decimal.Decimal) decimal.Decimal {
	return amount.Mul(share).Div(hundred)
}

// remainderOf is 100 minus the sum of shares. It goes negative on over-allocation.
func remainderOf(shares ...decimal.Decimal) decimal.Decimal {
	return hundred.Sub(decimal.Sum(decimal.Zero, shares...))
}
