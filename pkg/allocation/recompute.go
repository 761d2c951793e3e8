package allocation

import (
	"maps"

	"github.com/shopspring/decimal"
)

// The derived values form a small graph: total -> quarter -> month, and total -> taxonomy.
// Each function below recomputes one branch of it from the draft's leaves and returns a new
// Derived; branches it does not own are carried over from prev untouched.

// recomputeFromTotal rebuilds every derived value. Used when the total changes.
func recomputeFromTotal(d Draft) Derived {
	var next Derived
	for q := 0; q < Quarters; q++ {
		next = recomputeQuarter(next, d, q)
	}
	next.QuarterRemainder = d.QuarterRemainder()
	next.Categories = make(map[Taxonomy]CategoryTotals, len(Taxonomies))
	for _, t := range Taxonomies {
		next.Categories[t] = categoryTotals(d, t)
	}
	return next
}

// recomputeQuarter refreshes quarter q's amount, the quarter remainder and q's three months.
func recomputeQuarter(prev Derived, d Draft, q int) Derived {
	next := prev
	next.QuarterAmounts[q] = d.QuarterAmount(q)
	next.QuarterRemainder = d.QuarterRemainder()
	return recomputeQuarterMonths(next, d, q)
}

// recomputeMonth refreshes the month set and month remainder of the quarter owning month m.
func recomputeMonth(prev Derived, d Draft, m int) Derived {
	return recomputeQuarterMonths(prev, d, QuarterOf(m))
}

func recomputeQuarterMonths(prev Derived, d Draft, q int) Derived {
	next := prev
	// the quarter amount is taken from the leaves, never from prev
	quarterAmount := d.QuarterAmount(q)
	for _, m := range MonthsOf(q) {
		next.MonthAmounts[m] = percentOf(quarterAmount, d.MonthShares[m])
	}
	next.MonthRemainders[q] = d.MonthRemainder(q)
	return next
}

// recomputeCategory refreshes the amount of one label and the aggregate of its taxonomy.
func recomputeCategory(prev Derived, d Draft, t Taxonomy, label string) Derived {
	next := prev
	next.Categories = maps.Clone(prev.Categories)
	if next.Categories == nil {
		next.Categories = make(map[Taxonomy]CategoryTotals, len(Taxonomies))
	}

	amounts := maps.Clone(prev.Categories[t].Amounts)
	if amounts == nil {
		amounts = make(map[string]decimal.Decimal, len(d.catalog[t]))
	}
	amounts[label] = d.CategoryAmount(d.CategoryShare(t, label))

	totals := sumCategory(d, t)
	totals.Amounts = amounts
	next.Categories[t] = totals
	return next
}

func categoryTotals(d Draft, t Taxonomy) CategoryTotals {
	totals := sumCategory(d, t)
	totals.Amounts = make(map[string]decimal.Decimal, len(d.catalog[t]))
	for _, label := range d.catalog[t] {
		totals.Amounts[label] = d.CategoryAmount(d.CategoryShare(t, label))
	}
	return totals
}

func sumCategory(d Draft, t Taxonomy) CategoryTotals {
	shares := make([]decimal.Decimal, 0, len(d.catalog[t]))
	for _, label := range d.catalog[t] {
		shares = append(shares, d.CategoryShare(t, label))
	}
	totalShare := decimal.Sum(decimal.Zero, shares...)
	return CategoryTotals{
		TotalShare:  totalShare,
		TotalAmount: d.CategoryAmount(totalShare),
		Remainder:   remainderOf(shares...),
	}
}
