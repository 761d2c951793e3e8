package allocation

import (
	"fmt"

	"github.com/salesplan/salesplan/pkg/tablestore"
	"github.com/shopspring/decimal"
)

// Field names of the persisted rows. Other clients read the same tables, keep them stable.
const (
	FieldYear        = "year"
	FieldTotalAmount = "total_amount"
	FieldTaxonomy    = "taxonomy"
	FieldLabel       = "label"
	FieldYearShare   = "year_share"
)

// QuarterField is q1..q4 for a zero-based quarter.
func QuarterField(quarter int) string {
	return fmt.Sprintf("q%d", quarter+1)
}

// MonthField is m1..m12 for a zero-based month.
func MonthField(month int) string {
	return fmt.Sprintf("m%d", month+1)
}

// HeaderRow encodes a plan; shares are persisted as fractions (percent / 100).
func HeaderRow(plan Plan) tablestore.Row {
	row := tablestore.Row{
		FieldYear:        plan.FiscalYear,
		FieldTotalAmount: plan.TotalAmount,
	}
	for q, share := range plan.QuarterShares {
		row[QuarterField(q)] = toFraction(share)
	}
	for m, share := range plan.MonthShares {
		row[MonthField(m)] = toFraction(share)
	}
	return row
}

// DetailRows produces one row per catalog label, including labels without a share.
func DetailRows(d Draft, catalog Catalog) []tablestore.Row {
	rows := make([]tablestore.Row, 0, catalog.Size())
	for _, t := range Taxonomies {
		for _, label := range catalog[t] {
			rows = append(rows, tablestore.Row{
				FieldYear:      d.FiscalYear,
				FieldTaxonomy:  t.Label(),
				FieldLabel:     label,
				FieldYearShare: toFraction(d.CategoryShare(t, label)),
			})
		}
	}
	return rows
}

func PlanFromRow(row tablestore.Row) (Plan, error) {
	var plan Plan
	var err error
	if plan.FiscalYear, err = row.Int(FieldYear); err != nil {
		return Plan{}, err
	}
	if plan.TotalAmount, err = row.Decimal(FieldTotalAmount); err != nil {
		return Plan{}, err
	}
	for q := range plan.QuarterShares {
		if plan.QuarterShares[q], err = percentField(row, QuarterField(q)); err != nil {
			return Plan{}, err
		}
	}
	for m := range plan.MonthShares {
		if plan.MonthShares[m], err = percentField(row, MonthField(m)); err != nil {
			return Plan{}, err
		}
	}
	return plan, nil
}

func CategoryRowFromRow(row tablestore.Row) (CategoryRow, error) {
	var out CategoryRow
	var err error
	if out.FiscalYear, err = row.Int(FieldYear); err != nil {
		return CategoryRow{}, err
	}
	taxonomy, err := row.Text(FieldTaxonomy)
	if err != nil {
		return CategoryRow{}, err
	}
	if out.Taxonomy, err = ParseTaxonomy(taxonomy); err != nil {
		return CategoryRow{}, err
	}
	if out.Label, err = row.Text(FieldLabel); err != nil {
		return CategoryRow{}, err
	}
	if out.YearShare, err = percentField(row, FieldYearShare); err != nil {
		return CategoryRow{}, err
	}
	return out, nil
}

func percentField(row tablestore.Row, field string) (decimal.Decimal, error) {
	fraction, err := row.Decimal(field)
	if err != nil {
		return decimal.Zero, err
	}
	return fraction.Mul(hundred), nil
}

func toFraction(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}
