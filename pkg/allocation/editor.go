package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/salesplan/salesplan/internal/config"
	"github.com/salesplan/salesplan/internal/event_bus"
	"github.com/salesplan/salesplan/pkg/tablestore"
	log "github.com/sirupsen/logrus"
)

var ErrSubmitFailed = errors.New("failed to store allocation plan")

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, e := range v {
		messages = append(messages, e.Message)
	}
	return "invalid allocation plan: " + strings.Join(messages, "; ")
}

// WriteResult is the outcome of one of the two submission writes.
type WriteResult struct {
	Table string
	Rows  int
	Err   error
}

func (w WriteResult) Stored() bool {
	return w.Err == nil
}

// SubmitResult reports both writes separately. Nothing is rolled back when only one of them fails.
type SubmitResult struct {
	Header WriteResult
	Detail WriteResult
}

type Editor struct {
	store    tablestore.Client
	tables   config.Store
	catalog  Catalog
	eventBus *event_bus.EventBus
}

func NewEditor(store tablestore.Client, tables config.Store, catalog Catalog, eventBus *event_bus.EventBus) *Editor {
	return &Editor{store: store, tables: tables, catalog: catalog, eventBus: eventBus}
}

func (e *Editor) Catalog() Catalog {
	return e.catalog
}

func (e *Editor) NewDraft() Draft {
	return NewDraft(e.catalog)
}

func (e *Editor) Apply(d Draft, action Action) (Draft, error) {
	log.Debugf("applying %T to draft of %d", action, d.FiscalYear)
	return Reduce(d, action)
}

// PlanSource reads back submitted plans.
type PlanSource interface {
	GetPlan(ctx context.Context, year int) (Plan, error)
	LoadYearDetail(ctx context.Context, year int) ([]CategoryRow, error)
}

// LoadDraft turns the latest submitted plan of a year into a draft, ready to be edited and
// submitted again.
func (e *Editor) LoadDraft(ctx context.Context, plans PlanSource, year int) (Draft, error) {
	plan, err := plans.GetPlan(ctx, year)
	if err != nil {
		return Draft{}, err
	}
	rows, err := plans.LoadYearDetail(ctx, year)
	if err != nil {
		return Draft{}, err
	}
	log.Debugf("loaded plan %d with %d detail rows into a draft", year, len(rows))
	return DraftFromPlan(plan, rows, e.catalog), nil
}

func Validate(d Draft) ValidationErrors {
	var errs ValidationErrors
	if d.FiscalYear <= 0 {
		errs = append(errs, ValidationError{Field: "fiscalYear", Message: "fiscal year is required"})
	}
	if !d.TotalAmount.IsPositive() {
		errs = append(errs, ValidationError{Field: "totalAmount", Message: "total amount must be greater than zero"})
	}
	return errs
}

// Submit writes the header row and then the detail rows. The detail write is issued once the
// header write has returned, whatever its outcome. Validation failures are returned as
// ValidationErrors before anything is written; write failures as ErrSubmitFailed.
func (e *Editor) Submit(ctx context.Context, d Draft) (SubmitResult, error) {
	if errs := Validate(d); len(errs) > 0 {
		return SubmitResult{}, errs
	}

	header := HeaderRow(d.Plan)
	result := SubmitResult{
		Header: WriteResult{Table: e.tables.HeaderTable, Rows: 1},
	}
	result.Header.Err = e.store.Add(ctx, e.tables.HeaderTable, []tablestore.Row{header})

	details := DetailRows(d, e.catalog)
	result.Detail = WriteResult{Table: e.tables.DetailTable, Rows: len(details)}
	result.Detail.Err = e.store.Add(ctx, e.tables.DetailTable, details)

	e.publishSubmitted(ctx, d.FiscalYear, result)

	if !result.Header.Stored() || !result.Detail.Stored() {
		log.Warnf("plan %d partially stored: header=%t detail=%t", d.FiscalYear, result.Header.Stored(), result.Detail.Stored())
		return result, fmt.Errorf("%w: %w", ErrSubmitFailed, errors.Join(result.Header.Err, result.Detail.Err))
	}
	log.Infof("stored plan %d with %d detail rows", d.FiscalYear, len(details))
	return result, nil
}

func (e *Editor) publishSubmitted(ctx context.Context, year int, result SubmitResult) {
	if e.eventBus == nil {
		return
	}
	err := e.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.PlanSubmitted, event_bus.PlanSubmittedEvent{
		FiscalYear:   year,
		HeaderStored: result.Header.Stored(),
		DetailStored: result.Detail.Stored(),
		DetailRows:   result.Detail.Rows,
	}))
	if err != nil {
		log.Errorf("failed to publish plan submitted event: %v", err)
	}
}
