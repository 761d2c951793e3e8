package allocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type DraftDTO struct {
	FiscalYear     int                                     `json:"fiscalYear"`
	TotalAmount    decimal.Decimal                         `json:"totalAmount"`
	QuarterShares  [Quarters]decimal.Decimal               `json:"quarterShares"`
	MonthShares    [Months]decimal.Decimal                 `json:"monthShares"`
	CategoryShares map[Taxonomy]map[string]decimal.Decimal `json:"categoryShares"`
	Derived        *DerivedDTO                             `json:"derived,omitempty"`
}

type DerivedDTO struct {
	QuarterAmounts   [Quarters]decimal.Decimal      `json:"quarterAmounts"`
	QuarterRemainder decimal.Decimal                `json:"quarterRemainder"`
	MonthAmounts     [Months]decimal.Decimal        `json:"monthAmounts"`
	MonthRemainders  [Quarters]decimal.Decimal      `json:"monthRemainders"`
	Categories       map[Taxonomy]CategoryTotalsDTO `json:"categories"`
}

type CategoryTotalsDTO struct {
	Amounts     map[string]decimal.Decimal `json:"amounts"`
	TotalShare  decimal.Decimal            `json:"totalShare"`
	TotalAmount decimal.Decimal            `json:"totalAmount"`
	Remainder   decimal.Decimal            `json:"remainder"`
}

// ActionDTO carries one editor action. Type selects which of the other fields are read:
// fiscalYear (year), totalAmount (raw), quarterShare (quarter, value), monthShare (month, value),
// categoryShare (taxonomy, label, value).
type ActionDTO struct {
	Type     string          `json:"type"`
	Year     int             `json:"year,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Quarter  int             `json:"quarter,omitempty"`
	Month    int             `json:"month,omitempty"`
	Taxonomy string          `json:"taxonomy,omitempty"`
	Label    string          `json:"label,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

type ApplyRequestDTO struct {
	Draft  DraftDTO  `json:"draft"`
	Action ActionDTO `json:"action"`
}

type WriteResultDTO struct {
	Table  string `json:"table"`
	Rows   int    `json:"rows"`
	Stored bool   `json:"stored"`
	Error  string `json:"error,omitempty"`
}

type SubmitResultDTO struct {
	Header WriteResultDTO `json:"header"`
	Detail WriteResultDTO `json:"detail"`
}

type validationErrorsDTO struct {
	Errors ValidationErrors `json:"errors"`
}

type Handler struct {
	editor *Editor
	plans  PlanSource
}

func NewHandler(editor *Editor, plans PlanSource) *Handler {
	return &Handler{editor: editor, plans: plans}
}

// NewDraft godoc
// @Summary Start a new allocation draft
// @Description Returns an empty draft holding every catalog label, optionally for a fiscal year
// @Tags Allocation
// @Produce json
// @Param year query int false "Fiscal year"
// @Success 200 {object} DraftDTO
// @Failure 400 {string} string "Bad Request"
// @Router /api/allocation/draft/new [get]
func (handler *Handler) NewDraft(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new allocation draft")
	draft := handler.editor.NewDraft()
	if yearParam := r.URL.Query().Get("year"); yearParam != "" {
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		draft, _ = Reduce(draft, SetFiscalYear{Year: year})
	}
	writeJSON(w, http.StatusOK, DraftToDTO(draft))
}

// EditDraft godoc
// @Summary Load a submitted plan into a draft
// @Description Returns the latest submitted plan of a fiscal year as a draft for editing and resubmitting
// @Tags Allocation
// @Produce json
// @Param year path int true "Fiscal year"
// @Success 200 {object} DraftDTO
// @Failure 400 {string} string "Bad Request"
// @Failure 404 {string} string "Not Found"
// @Failure 502 {string} string "Bad Gateway"
// @Router /api/allocation/draft/{year} [get]
func (handler *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Debugf("Loading plan %d into a draft", year)

	draft, err := handler.editor.LoadDraft(r.Context(), handler.plans, year)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Errorf("failed to load plan %d: %v", year, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, DraftToDTO(draft))
}

// ApplyAction godoc
// @Summary Apply an edit to a draft
// @Description Applies one action to the given draft and returns it with every derived amount recomputed
// @Tags Allocation
// @Accept json
// @Produce json
// @Param request body ApplyRequestDTO true "Draft and action"
// @Success 200 {object} DraftDTO
// @Failure 400 {string} string "Bad Request"
// @Router /api/allocation/draft [post]
func (handler *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	log.Debug("Applying action to allocation draft")
	var request ApplyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	draft, err := DTOToDraft(request.Draft, handler.editor.Catalog())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	action, err := DTOToAction(request.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	draft, err = handler.editor.Apply(draft, action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, DraftToDTO(draft))
}

// Submit godoc
// @Summary Submit an allocation plan
// @Description Stores the plan header and one detail row per catalog label
// @Tags Allocation
// @Accept json
// @Produce json
// @Param draft body DraftDTO true "Draft"
// @Success 201 {object} SubmitResultDTO
// @Failure 400 {object} validationErrorsDTO
// @Failure 502 {object} SubmitResultDTO
// @Router /api/allocation [post]
func (handler *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	log.Debug("Submitting allocation plan")
	var draftDTO DraftDTO
	if err := json.NewDecoder(r.Body).Decode(&draftDTO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	draft, err := DTOToDraft(draftDTO, handler.editor.Catalog())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := handler.editor.Submit(r.Context(), draft)
	if err != nil {
		var validationErrs ValidationErrors
		if errors.As(err, &validationErrs) {
			writeJSON(w, http.StatusBadRequest, validationErrorsDTO{Errors: validationErrs})
			return
		}
		if errors.Is(err, ErrSubmitFailed) {
			writeJSON(w, http.StatusBadGateway, SubmitResultToDTO(result))
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResultToDTO(result))
}

// GetCatalog godoc
// @Summary List the category catalog
// @Tags Allocation
// @Produce json
// @Success 200 {object} Catalog
// @Router /api/allocation/catalog [get]
func (handler *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, handler.editor.Catalog())
}

func DraftToDTO(d Draft) DraftDTO {
	derived := DerivedDTO{
		QuarterAmounts:   d.Derived.QuarterAmounts,
		QuarterRemainder: d.Derived.QuarterRemainder,
		MonthAmounts:     d.Derived.MonthAmounts,
		MonthRemainders:  d.Derived.MonthRemainders,
		Categories:       make(map[Taxonomy]CategoryTotalsDTO, len(d.Derived.Categories)),
	}
	for t, totals := range d.Derived.Categories {
		derived.Categories[t] = CategoryTotalsDTO{
			Amounts:     totals.Amounts,
			TotalShare:  totals.TotalShare,
			TotalAmount: totals.TotalAmount,
			Remainder:   totals.Remainder,
		}
	}
	return DraftDTO{
		FiscalYear:     d.FiscalYear,
		TotalAmount:    d.TotalAmount,
		QuarterShares:  d.QuarterShares,
		MonthShares:    d.MonthShares,
		CategoryShares: d.CategoryShares,
		Derived:        &derived,
	}
}

// DTOToDraft rebuilds a draft from client input. Derived values sent by the client are ignored
// and recomputed.
func DTOToDraft(dto DraftDTO, catalog Catalog) (Draft, error) {
	if dto.TotalAmount.IsNegative() {
		return Draft{}, ErrNegativeAmount
	}
	d := NewDraft(catalog)
	d.FiscalYear = dto.FiscalYear
	d.TotalAmount = dto.TotalAmount
	d.QuarterShares = dto.QuarterShares
	d.MonthShares = dto.MonthShares
	for t, shares := range dto.CategoryShares {
		taxonomy, err := ParseTaxonomy(string(t))
		if err != nil {
			return Draft{}, err
		}
		for label, share := range shares {
			if !catalog.Contains(taxonomy, label) {
				return Draft{}, fmt.Errorf("%w: %s/%q", ErrUnknownCategory, taxonomy, label)
			}
			d.CategoryShares[taxonomy][label] = share
		}
	}
	d.Derived = recomputeFromTotal(d)
	return d, nil
}

func DTOToAction(dto ActionDTO) (Action, error) {
	switch dto.Type {
	case "fiscalYear":
		return SetFiscalYear{Year: dto.Year}, nil
	case "totalAmount":
		return SetTotalAmount{Raw: dto.Raw}, nil
	case "quarterShare":
		return SetQuarterShare{Quarter: dto.Quarter, Value: dto.Value}, nil
	case "monthShare":
		return SetMonthShare{Month: dto.Month, Value: dto.Value}, nil
	case "categoryShare":
		taxonomy, err := ParseTaxonomy(dto.Taxonomy)
		if err != nil {
			return nil, err
		}
		return SetCategoryShare{Taxonomy: taxonomy, Label: dto.Label, Value: dto.Value}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", dto.Type)
	}
}

func SubmitResultToDTO(result SubmitResult) SubmitResultDTO {
	return SubmitResultDTO{
		Header: writeResultToDTO(result.Header),
		Detail: writeResultToDTO(result.Detail),
	}
}

func writeResultToDTO(w WriteResult) WriteResultDTO {
	dto := WriteResultDTO{Table: w.Table, Rows: w.Rows, Stored: w.Stored()}
	if w.Err != nil {
		dto.Error = w.Err.Error()
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
