package allocation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanSource struct {
	plans map[int]Plan
	rows  map[int][]CategoryRow
	err   error
}

func (s *stubPlanSource) GetPlan(_ context.Context, year int) (Plan, error) {
	if s.err != nil {
		return Plan{}, s.err
	}
	plan, ok := s.plans[year]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %d", ErrPlanNotFound, year)
	}
	return plan, nil
}

func (s *stubPlanSource) LoadYearDetail(_ context.Context, year int) ([]CategoryRow, error) {
	return s.rows[year], nil
}

func setupHandlerTest(t *testing.T) (*Handler, *stubPlanSource, func()) {
	editor, _, teardown := setupEditor(t)
	plans := &stubPlanSource{plans: map[int]Plan{}, rows: map[int][]CategoryRow{}}
	return NewHandler(editor, plans), plans, teardown
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handlerFunc(w, req)
	return w
}

func TestHandler_NewDraft(t *testing.T) {
	t.Run("should return an empty draft for the requested year", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		req := httptest.NewRequest(http.MethodGet, "/api/allocation/draft/new?year=2026", nil)
		w := httptest.NewRecorder()

		// when
		handler.NewDraft(w, req)

		// then
		require.Equal(t, http.StatusOK, w.Code)
		var draft DraftDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&draft))
		assert.Equal(t, 2026, draft.FiscalYear)
		assert.Len(t, draft.CategoryShares[TaxonomyEmployee], 3)
		require.NotNil(t, draft.Derived)
		assertDecimal(t, "100", draft.Derived.QuarterRemainder)
	})

	t.Run("should reject a malformed year", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		req := httptest.NewRequest(http.MethodGet, "/api/allocation/draft/new?year=next", nil)
		w := httptest.NewRecorder()

		// when
		handler.NewDraft(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_EditDraft(t *testing.T) {
	getDraft := func(handler *Handler, year string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/allocation/draft/"+year, nil)
		req = mux.SetURLVars(req, map[string]string{"year": year})
		w := httptest.NewRecorder()
		handler.EditDraft(w, req)
		return w
	}

	t.Run("should load a submitted plan into a draft", func(t *testing.T) {
		handler, plans, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		plan := validDraft(t).Plan
		plans.plans[2024] = plan
		plans.rows[2024] = []CategoryRow{
			{FiscalYear: 2024, Taxonomy: TaxonomyLine, Label: "Retail", YearShare: dec("70")},
			{FiscalYear: 2024, Taxonomy: TaxonomySource, Label: "Web", YearShare: dec("100")},
		}

		// when
		w := getDraft(handler, "2024")

		// then
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var draft DraftDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&draft))
		assert.Equal(t, 2024, draft.FiscalYear)
		assertDecimal(t, "120000000", draft.TotalAmount)
		assertDecimal(t, "70", draft.CategoryShares[TaxonomyLine]["Retail"])
		assertDecimal(t, "0", draft.CategoryShares[TaxonomyLine]["Wholesale"])
		require.NotNil(t, draft.Derived)
		assertDecimal(t, "84000000", draft.Derived.Categories[TaxonomyLine].Amounts["Retail"])
		assertDecimal(t, "30000000", draft.Derived.QuarterAmounts[0])
	})

	t.Run("should return not found for a year without a plan", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// when
		w := getDraft(handler, "2031")

		// then
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should report a failed read as a bad gateway", func(t *testing.T) {
		handler, plans, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		plans.err = errors.New("table API unavailable")

		// when
		w := getDraft(handler, "2024")

		// then
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHandler_ApplyAction(t *testing.T) {
	t.Run("should return the draft with recomputed amounts", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		request := ApplyRequestDTO{
			Draft:  DraftToDTO(apply(t, NewDraft(testCatalog), SetTotalAmount{Raw: "8000"})),
			Action: ActionDTO{Type: "quarterShare", Quarter: 2, Value: dec("12.5")},
		}

		// when
		w := postJSON(t, handler.ApplyAction, "/api/allocation/draft", request)

		// then
		require.Equal(t, http.StatusOK, w.Code)
		var draft DraftDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&draft))
		assertDecimal(t, "12.5", draft.QuarterShares[1])
		assertDecimal(t, "1000", draft.Derived.QuarterAmounts[1])
		assertDecimal(t, "87.5", draft.Derived.QuarterRemainder)
	})

	t.Run("should accept the taxonomy label in a category action", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		request := ApplyRequestDTO{
			Draft:  DraftToDTO(apply(t, NewDraft(testCatalog), SetTotalAmount{Raw: "500"})),
			Action: ActionDTO{Type: "categoryShare", Taxonomy: "Business line", Label: "Retail", Value: dec("20")},
		}

		// when
		w := postJSON(t, handler.ApplyAction, "/api/allocation/draft", request)

		// then
		require.Equal(t, http.StatusOK, w.Code)
		var draft DraftDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&draft))
		assertDecimal(t, "100", draft.Derived.Categories[TaxonomyLine].Amounts["Retail"])
		assertDecimal(t, "80", draft.Derived.Categories[TaxonomyLine].Remainder)
	})

	t.Run("should reject an unknown action type", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		request := ApplyRequestDTO{Draft: DraftToDTO(NewDraft(testCatalog)), Action: ActionDTO{Type: "discount"}}

		// when
		w := postJSON(t, handler.ApplyAction, "/api/allocation/draft", request)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should reject a month out of range", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		request := ApplyRequestDTO{Draft: DraftToDTO(NewDraft(testCatalog)), Action: ActionDTO{Type: "monthShare", Month: 13, Value: dec("5")}}

		// when
		w := postJSON(t, handler.ApplyAction, "/api/allocation/draft", request)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ErrMonthOutOfRange.Error())
	})
}

func TestHandler_Submit(t *testing.T) {
	t.Run("should store the plan", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// when
		w := postJSON(t, handler.Submit, "/api/allocation", DraftToDTO(validDraft(t)))

		// then
		require.Equal(t, http.StatusCreated, w.Code)
		var result SubmitResultDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		assert.True(t, result.Header.Stored)
		assert.True(t, result.Detail.Stored)
		assert.Equal(t, tables.DetailTable, result.Detail.Table)
		assert.Equal(t, testCatalog.Size(), result.Detail.Rows)
	})

	t.Run("should return validation errors", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// when
		w := postJSON(t, handler.Submit, "/api/allocation", DraftToDTO(NewDraft(testCatalog)))

		// then
		require.Equal(t, http.StatusBadRequest, w.Code)
		var body validationErrorsDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Len(t, body.Errors, 2)
		assert.Equal(t, 0, store.AddCalls(tables.HeaderTable))
	})

	t.Run("should report which write failed", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		store.SetAddError(tables.DetailTable, errors.New("sheet is protected"))

		// when
		w := postJSON(t, handler.Submit, "/api/allocation", DraftToDTO(validDraft(t)))

		// then
		require.Equal(t, http.StatusBadGateway, w.Code)
		var result SubmitResultDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		assert.True(t, result.Header.Stored)
		assert.False(t, result.Detail.Stored)
		assert.Equal(t, "sheet is protected", result.Detail.Error)
	})

	t.Run("should reject a label outside the catalog", func(t *testing.T) {
		handler, _, teardown := setupHandlerTest(t)
		defer teardown()

		// given
		dto := DraftToDTO(validDraft(t))
		dto.CategoryShares[TaxonomySource]["Billboard"] = dec("10")

		// when
		w := postJSON(t, handler.Submit, "/api/allocation", dto)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, store.AddCalls(tables.HeaderTable))
	})
}

func TestHandler_GetCatalog(t *testing.T) {
	handler, _, teardown := setupHandlerTest(t)
	defer teardown()

	// given
	req := httptest.NewRequest(http.MethodGet, "/api/allocation/catalog", nil)
	w := httptest.NewRecorder()

	// when
	handler.GetCatalog(w, req)

	// then
	require.Equal(t, http.StatusOK, w.Code)
	var catalog Catalog
	require.NoError(t, json.NewDecoder(w.Body).Decode(&catalog))
	assert.Equal(t, testCatalog, catalog)
}
