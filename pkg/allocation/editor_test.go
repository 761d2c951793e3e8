package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/salesplan/salesplan/internal/config"
	"github.com/salesplan/salesplan/internal/event_bus"
	"github.com/salesplan/salesplan/pkg/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var tables = config.Store{HeaderTable: "sales_target", DetailTable: "sales_target_detail"}

var store = tablestore.NewMemoryClient()

func setupEditor(t *testing.T) (*Editor, *event_bus.EventBus, func()) {
	bus := event_bus.NewEventBus()
	editor := NewEditor(store, tables, testCatalog, bus)
	return editor, bus, func() {
		t.Log("Teardown after test")
		store.Cleanup()
	}
}

func validDraft(t *testing.T) Draft {
	return apply(t, NewDraft(testCatalog),
		SetFiscalYear{Year: 2024},
		SetTotalAmount{Raw: "120000000"},
		SetQuarterShare{Quarter: 1, Value: dec("25")},
		SetQuarterShare{Quarter: 2, Value: dec("25")},
		SetQuarterShare{Quarter: 3, Value: dec("25")},
		SetQuarterShare{Quarter: 4, Value: dec("25")},
		SetCategoryShare{Taxonomy: TaxonomyLine, Label: "Retail", Value: dec("60")},
		SetCategoryShare{Taxonomy: TaxonomyLine, Label: "Wholesale", Value: dec("40")},
	)
}

func TestValidate(t *testing.T) {
	t.Run("should require a fiscal year and a positive total", func(t *testing.T) {
		// when
		errs := Validate(NewDraft(testCatalog))

		// then
		require.Len(t, errs, 2)
		assert.Equal(t, "fiscalYear", errs[0].Field)
		assert.Equal(t, "totalAmount", errs[1].Field)
	})

	t.Run("should accept shares that do not sum to 100", func(t *testing.T) {
		// given
		d := apply(t, NewDraft(testCatalog),
			SetFiscalYear{Year: 2024},
			SetTotalAmount{Raw: "10"},
			SetQuarterShare{Quarter: 1, Value: dec("130")},
		)

		// when
		errs := Validate(d)

		// then
		assert.Empty(t, errs)
	})
}

func TestEditor_Submit(t *testing.T) {
	t.Run("should store the header and one detail row per catalog label", func(t *testing.T) {
		editor, _, teardown := setupEditor(t)
		defer teardown()

		// given
		d := validDraft(t)

		// when
		result, err := editor.Submit(ctx, d)

		// then
		require.NoError(t, err)
		assert.True(t, result.Header.Stored())
		assert.True(t, result.Detail.Stored())
		assert.Equal(t, testCatalog.Size(), result.Detail.Rows)

		headers := store.Rows(tables.HeaderTable)
		require.Len(t, headers, 1)
		assert.Equal(t, 2024, headers[0][FieldYear])
		firstQuarter, err := headers[0].Decimal(QuarterField(0))
		require.NoError(t, err)
		assertDecimal(t, "0.25", firstQuarter)

		details := store.Rows(tables.DetailTable)
		assert.Len(t, details, testCatalog.Size())
		labels := make(map[string]int)
		for _, row := range details {
			labels[row[FieldTaxonomy].(string)]++
		}
		assert.Equal(t, 2, labels["Business line"])
		assert.Equal(t, 3, labels["Employee"])
		assert.Equal(t, 1, labels["Source"])
	})

	t.Run("should not write anything when validation fails", func(t *testing.T) {
		editor, _, teardown := setupEditor(t)
		defer teardown()

		// given
		d := apply(t, validDraft(t), SetTotalAmount{Raw: "0"})

		// when
		_, err := editor.Submit(ctx, d)

		// then
		var validationErrs ValidationErrors
		assert.ErrorAs(t, err, &validationErrs)
		assert.Equal(t, 0, store.AddCalls(tables.HeaderTable))
		assert.Equal(t, 0, store.AddCalls(tables.DetailTable))
	})

	t.Run("should still write the detail rows when the header write fails", func(t *testing.T) {
		editor, _, teardown := setupEditor(t)
		defer teardown()

		// given
		store.SetAddError(tables.HeaderTable, errors.New("quota exceeded"))

		// when
		result, err := editor.Submit(ctx, validDraft(t))

		// then
		assert.ErrorIs(t, err, ErrSubmitFailed)
		assert.False(t, result.Header.Stored())
		assert.True(t, result.Detail.Stored())
		assert.Equal(t, 1, store.AddCalls(tables.DetailTable))
		assert.Len(t, store.Rows(tables.DetailTable), testCatalog.Size())
	})

	t.Run("should keep the header when the detail write fails", func(t *testing.T) {
		editor, _, teardown := setupEditor(t)
		defer teardown()

		// given
		store.SetAddError(tables.DetailTable, errors.New("connection reset"))

		// when
		result, err := editor.Submit(ctx, validDraft(t))

		// then
		assert.ErrorIs(t, err, ErrSubmitFailed)
		assert.Contains(t, err.Error(), "connection reset")
		assert.True(t, result.Header.Stored())
		assert.False(t, result.Detail.Stored())
		assert.Len(t, store.Rows(tables.HeaderTable), 1)
	})

	t.Run("should publish the submitted plan", func(t *testing.T) {
		editor, bus, teardown := setupEditor(t)
		defer teardown()

		// given
		var received []event_bus.PlanSubmittedEvent
		event_bus.SubscribeTyped(bus, event_bus.PlanSubmitted, func(e event_bus.EventT[event_bus.PlanSubmittedEvent]) error {
			received = append(received, e.Data)
			return nil
		})

		// when
		_, err := editor.Submit(ctx, validDraft(t))

		// then
		require.NoError(t, err)
		require.Len(t, received, 1)
		assert.Equal(t, 2024, received[0].FiscalYear)
		assert.True(t, received[0].HeaderStored)
		assert.True(t, received[0].DetailStored)
		assert.Equal(t, testCatalog.Size(), received[0].DetailRows)
	})
}

func TestRows_RoundTrip(t *testing.T) {
	// given
	d := validDraft(t)

	// when
	plan, err := PlanFromRow(HeaderRow(d.Plan))
	require.NoError(t, err)

	var rows []CategoryRow
	for _, row := range DetailRows(d, testCatalog) {
		categoryRow, err := CategoryRowFromRow(row)
		require.NoError(t, err)
		rows = append(rows, categoryRow)
	}

	// then
	assert.Equal(t, 2024, plan.FiscalYear)
	assertDecimal(t, "120000000", plan.TotalAmount)
	for q := 0; q < Quarters; q++ {
		assertDecimal(t, "25", plan.QuarterShares[q])
		assertDecimal(t, "30000000", plan.QuarterAmount(q))
	}
	require.Len(t, rows, testCatalog.Size())
	assert.Equal(t, TaxonomyLine, rows[0].Taxonomy)
	assert.Equal(t, "Retail", rows[0].Label)
	assertDecimal(t, "60", rows[0].YearShare)
}

func TestCategoryRowFromRow(t *testing.T) {
	t.Run("should read values stored as text", func(t *testing.T) {
		// given
		row := tablestore.Row{
			FieldYear:      "2023",
			FieldTaxonomy:  "Employee",
			FieldLabel:     "Bob",
			FieldYearShare: "0.125",
		}

		// when
		categoryRow, err := CategoryRowFromRow(row)

		// then
		require.NoError(t, err)
		assert.Equal(t, 2023, categoryRow.FiscalYear)
		assert.Equal(t, TaxonomyEmployee, categoryRow.Taxonomy)
		assertDecimal(t, "12.5", categoryRow.YearShare)
	})

	t.Run("should fail on an unknown taxonomy", func(t *testing.T) {
		// given
		row := tablestore.Row{FieldYear: 2023, FieldTaxonomy: "Region", FieldLabel: "North", FieldYearShare: 0.5}

		// when
		_, err := CategoryRowFromRow(row)

		// then
		assert.ErrorIs(t, err, ErrUnknownTaxonomy)
	})

	t.Run("should fail on a missing share", func(t *testing.T) {
		// given
		row := tablestore.Row{FieldYear: 2023, FieldTaxonomy: "LINE", FieldLabel: "Retail"}

		// when
		_, err := CategoryRowFromRow(row)

		// then
		assert.ErrorIs(t, err, tablestore.ErrFieldMissing)
	})
}
