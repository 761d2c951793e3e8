package report

import (
	"github.com/salesplan/salesplan/pkg/allocation"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type LabelShare struct {
	YearShare decimal.Decimal
	Amount    decimal.Decimal
}

// TaxonomyAggregate is the totals row of one taxonomy for one plan.
type TaxonomyAggregate struct {
	Taxonomy    allocation.Taxonomy
	Labels      []string
	PerLabel    map[string]LabelShare
	TotalShare  decimal.Decimal
	TotalAmount decimal.Decimal
	Remainder   decimal.Decimal
}

// MonthBreakdown spreads one label's yearly share over the months of the plan. Percents are
// relative to the plan's total amount.
type MonthBreakdown struct {
	Percents [allocation.Months]decimal.Decimal
	Amounts  [allocation.Months]decimal.Decimal
}

// YearDetail is the full drill-down of one fiscal year.
type YearDetail struct {
	Plan             allocation.Plan
	QuarterAmounts   [allocation.Quarters]decimal.Decimal
	QuarterRemainder decimal.Decimal
	MonthAmounts     [allocation.Months]decimal.Decimal
	MonthRemainders  [allocation.Quarters]decimal.Decimal
	Taxonomies       map[allocation.Taxonomy]TaxonomyDetail
}

type TaxonomyDetail struct {
	Aggregate TaxonomyAggregate
	Months    map[string]MonthBreakdown
}

// AggregateByTaxonomy sums the rows of one taxonomy that belong to the plan's fiscal year.
// Labels keep the order in which rows were stored.
func AggregateByTaxonomy(plan allocation.Plan, rows []allocation.CategoryRow, taxonomy allocation.Taxonomy) TaxonomyAggregate {
	aggregate := TaxonomyAggregate{
		Taxonomy:    taxonomy,
		PerLabel:    make(map[string]LabelShare),
		TotalShare:  decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	for _, row := range rowsOf(plan, rows, taxonomy) {
		amount := plan.CategoryAmount(row.YearShare)
		if _, seen := aggregate.PerLabel[row.Label]; !seen {
			aggregate.Labels = append(aggregate.Labels, row.Label)
		}
		aggregate.PerLabel[row.Label] = LabelShare{YearShare: row.YearShare, Amount: amount}
	}
	for _, label := range aggregate.Labels {
		share := aggregate.PerLabel[label]
		aggregate.TotalShare = aggregate.TotalShare.Add(share.YearShare)
		aggregate.TotalAmount = aggregate.TotalAmount.Add(share.Amount)
	}
	aggregate.Remainder = hundred.Sub(aggregate.TotalShare)
	return aggregate
}

// BreakdownByMonth multiplies each label's yearly share with the plan's quarter and month shares.
// Only the header carries time shares, so this is where header and detail rows are joined.
func BreakdownByMonth(plan allocation.Plan, rows []allocation.CategoryRow, taxonomy allocation.Taxonomy) map[string]MonthBreakdown {
	breakdown := make(map[string]MonthBreakdown)
	for _, row := range rowsOf(plan, rows, taxonomy) {
		var months MonthBreakdown
		for m := 0; m < allocation.Months; m++ {
			quarterShare := plan.QuarterShares[allocation.QuarterOf(m)]
			percent := row.YearShare.
				Mul(quarterShare).Div(hundred).
				Mul(plan.MonthShares[m]).Div(hundred)
			months.Percents[m] = percent
			months.Amounts[m] = plan.TotalAmount.Mul(percent).Div(hundred)
		}
		breakdown[row.Label] = months
	}
	return breakdown
}

// NewYearDetail derives the complete drill-down of a plan from its detail rows.
func NewYearDetail(plan allocation.Plan, rows []allocation.CategoryRow) YearDetail {
	detail := YearDetail{
		Plan:             plan,
		QuarterRemainder: plan.QuarterRemainder(),
		Taxonomies:       make(map[allocation.Taxonomy]TaxonomyDetail, len(allocation.Taxonomies)),
	}
	for q := 0; q < allocation.Quarters; q++ {
		detail.QuarterAmounts[q] = plan.QuarterAmount(q)
		detail.MonthRemainders[q] = plan.MonthRemainder(q)
	}
	for m := 0; m < allocation.Months; m++ {
		detail.MonthAmounts[m] = plan.MonthAmount(m)
	}
	for _, t := range allocation.Taxonomies {
		detail.Taxonomies[t] = TaxonomyDetail{
			Aggregate: AggregateByTaxonomy(plan, rows, t),
			Months:    BreakdownByMonth(plan, rows, t),
		}
	}
	return detail
}

func rowsOf(plan allocation.Plan, rows []allocation.CategoryRow, taxonomy allocation.Taxonomy) []allocation.CategoryRow {
	var out []allocation.CategoryRow
	for _, row := range rows {
		if row.Taxonomy == taxonomy && row.FiscalYear == plan.FiscalYear {
			out = append(out, row)
		}
	}
	return out
}
