package report

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/salesplan/salesplan/pkg/allocation"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type PlanDTO struct {
	FiscalYear       int                                  `json:"fiscalYear"`
	TotalAmount      decimal.Decimal                      `json:"totalAmount"`
	QuarterShares    [allocation.Quarters]decimal.Decimal `json:"quarterShares"`
	MonthShares      [allocation.Months]decimal.Decimal   `json:"monthShares"`
	QuarterAmounts   [allocation.Quarters]decimal.Decimal `json:"quarterAmounts"`
	QuarterRemainder decimal.Decimal                      `json:"quarterRemainder"`
}

type LabelShareDTO struct {
	Label     string          `json:"label"`
	YearShare decimal.Decimal `json:"yearShare"`
	Amount    decimal.Decimal `json:"amount"`
}

type TaxonomyDTO struct {
	Taxonomy    allocation.Taxonomy `json:"taxonomy"`
	Name        string              `json:"name"`
	Labels      []LabelShareDTO     `json:"labels"`
	TotalShare  decimal.Decimal     `json:"totalShare"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Remainder   decimal.Decimal     `json:"remainder"`
	Months      []MonthBreakdownDTO `json:"months"`
}

type MonthBreakdownDTO struct {
	Label    string                              `json:"label"`
	Percents [allocation.Months]decimal.Decimal `json:"percents"`
	Amounts  [allocation.Months]decimal.Decimal `json:"amounts"`
}

type YearDetailDTO struct {
	Plan            PlanDTO                              `json:"plan"`
	MonthAmounts    [allocation.Months]decimal.Decimal   `json:"monthAmounts"`
	MonthRemainders [allocation.Quarters]decimal.Decimal `json:"monthRemainders"`
	Taxonomies      []TaxonomyDTO                        `json:"taxonomies"`
}

type ViewDTO struct {
	State  string         `json:"state"`
	Plans  []PlanDTO      `json:"plans"`
	Detail *YearDetailDTO `json:"detail,omitempty"`
}

type Handler struct {
	service Service
	view    *View
}

func NewHandler(service Service, view *View) *Handler {
	return &Handler{service: service, view: view}
}

// ListPlans godoc
// @Summary List allocation plans
// @Description Reloads all plan headers, newest fiscal year first, and clears the detail cache
// @Tags Report
// @Produce json
// @Success 200 {array} PlanDTO
// @Failure 502 {string} string "Table store unavailable"
// @Router /api/allocation/plans [get]
func (handler *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing allocation plans")
	if err := handler.view.Reload(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	snapshot := handler.view.Snapshot()
	plans := make([]PlanDTO, 0, len(snapshot.Plans))
	for _, plan := range snapshot.Plans {
		plans = append(plans, PlanToDTO(plan))
	}
	writeJSON(w, http.StatusOK, plans)
}

// GetYearDetail godoc
// @Summary Drill down into one fiscal year
// @Tags Report
// @Produce json
// @Param year path int true "Fiscal year"
// @Success 200 {object} YearDetailDTO
// @Failure 400 {string} string "Bad Request"
// @Failure 404 {string} string "Plan Not Found"
// @Router /api/allocation/plans/{year} [get]
func (handler *Handler) GetYearDetail(w http.ResponseWriter, r *http.Request) {
	log.Debug("Loading allocation year detail")
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	detail, err := handler.service.YearDetail(r.Context(), year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, YearDetailToDTO(detail))
}

// GetBreakdown godoc
// @Summary Monthly breakdown of one taxonomy
// @Tags Report
// @Produce json
// @Param year path int true "Fiscal year"
// @Param taxonomy query string true "LINE, EMPLOYEE or SOURCE"
// @Success 200 {object} TaxonomyDTO
// @Failure 400 {string} string "Bad Request"
// @Failure 404 {string} string "Plan Not Found"
// @Router /api/allocation/plans/{year}/breakdown [get]
func (handler *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	taxonomy, err := allocation.ParseTaxonomy(r.URL.Query().Get("taxonomy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	detail, err := handler.service.YearDetail(r.Context(), year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxonomyToDTO(detail.Taxonomies[taxonomy]))
}

// GetView godoc
// @Summary Current state of the report view
// @Tags Report
// @Produce json
// @Success 200 {object} ViewDTO
// @Router /api/allocation/view [get]
func (handler *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ViewToDTO(handler.view.Snapshot()))
}

// OpenDetail godoc
// @Summary Open the drill-down of a fiscal year in the report view
// @Tags Report
// @Produce json
// @Param year path int true "Fiscal year"
// @Success 200 {object} ViewDTO
// @Failure 404 {string} string "Plan Not Found"
// @Router /api/allocation/view/{year} [post]
func (handler *Handler) OpenDetail(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	if _, err := handler.view.Open(r.Context(), year); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ViewToDTO(handler.view.Snapshot()))
}

// CloseDetail godoc
// @Summary Close the open drill-down
// @Tags Report
// @Success 204 "No Content"
// @Router /api/allocation/view [delete]
func (handler *Handler) CloseDetail(w http.ResponseWriter, r *http.Request) {
	handler.view.Close()
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateCache godoc
// @Summary Drop cached detail rows
// @Description Drops the cached rows of one year, or of every year when no year is given
// @Tags Report
// @Param year path int false "Fiscal year"
// @Success 204 "No Content"
// @Router /api/allocation/cache/{year} [delete]
func (handler *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if _, hasYear := mux.Vars(r)["year"]; !hasYear {
		handler.service.InvalidateAll()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	handler.service.InvalidateYear(year)
	w.WriteHeader(http.StatusNoContent)
}

func PlanToDTO(plan allocation.Plan) PlanDTO {
	dto := PlanDTO{
		FiscalYear:       plan.FiscalYear,
		TotalAmount:      plan.TotalAmount,
		QuarterShares:    plan.QuarterShares,
		MonthShares:      plan.MonthShares,
		QuarterRemainder: plan.QuarterRemainder(),
	}
	for q := range dto.QuarterAmounts {
		dto.QuarterAmounts[q] = plan.QuarterAmount(q)
	}
	return dto
}

func YearDetailToDTO(detail YearDetail) YearDetailDTO {
	dto := YearDetailDTO{
		Plan:            PlanToDTO(detail.Plan),
		MonthAmounts:    detail.MonthAmounts,
		MonthRemainders: detail.MonthRemainders,
		Taxonomies:      make([]TaxonomyDTO, 0, len(allocation.Taxonomies)),
	}
	for _, t := range allocation.Taxonomies {
		dto.Taxonomies = append(dto.Taxonomies, taxonomyToDTO(detail.Taxonomies[t]))
	}
	return dto
}

func ViewToDTO(snapshot ViewSnapshot) ViewDTO {
	dto := ViewDTO{State: snapshot.State.String(), Plans: make([]PlanDTO, 0, len(snapshot.Plans))}
	for _, plan := range snapshot.Plans {
		dto.Plans = append(dto.Plans, PlanToDTO(plan))
	}
	if snapshot.Detail != nil {
		detail := YearDetailToDTO(*snapshot.Detail)
		dto.Detail = &detail
	}
	return dto
}

func taxonomyToDTO(detail TaxonomyDetail) TaxonomyDTO {
	aggregate := detail.Aggregate
	dto := TaxonomyDTO{
		Taxonomy:    aggregate.Taxonomy,
		Name:        aggregate.Taxonomy.Label(),
		Labels:      make([]LabelShareDTO, 0, len(aggregate.Labels)),
		TotalShare:  aggregate.TotalShare,
		TotalAmount: aggregate.TotalAmount,
		Remainder:   aggregate.Remainder,
		Months:      make([]MonthBreakdownDTO, 0, len(aggregate.Labels)),
	}
	for _, label := range aggregate.Labels {
		share := aggregate.PerLabel[label]
		dto.Labels = append(dto.Labels, LabelShareDTO{Label: label, YearShare: share.YearShare, Amount: share.Amount})
		months := detail.Months[label]
		dto.Months = append(dto.Months, MonthBreakdownDTO{Label: label, Percents: months.Percents, Amounts: months.Amounts})
	}
	return dto
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return year, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrPlanNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Errorf("report request failed: %v", err)
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
