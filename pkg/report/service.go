package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/salesplan/salesplan/internal/config"
	"github.com/salesplan/salesplan/internal/event_bus"
	"github.com/salesplan/salesplan/pkg/allocation"
	"github.com/salesplan/salesplan/pkg/tablestore"
	log "github.com/sirupsen/logrus"
)

var ErrPlanNotFound = allocation.ErrPlanNotFound

type Service interface {
	ListPlans(ctx context.Context) ([]allocation.Plan, error)
	GetPlan(ctx context.Context, year int) (allocation.Plan, error)
	LoadYearDetail(ctx context.Context, year int) ([]allocation.CategoryRow, error)
	DetailFor(ctx context.Context, plan allocation.Plan) (YearDetail, error)
	YearDetail(ctx context.Context, year int) (YearDetail, error)
	IsCached(year int) bool
	InvalidateYear(year int)
	InvalidateAll()
}

type ServiceImpl struct {
	store  tablestore.Client
	tables config.Store
	cache  *YearCache[[]allocation.CategoryRow]
}

func NewService(store tablestore.Client, tables config.Store) *ServiceImpl {
	return &ServiceImpl{
		store:  store,
		tables: tables,
		cache:  NewYearCache[[]allocation.CategoryRow](),
	}
}

// ListPlans returns one plan per fiscal year, newest year first. A year submitted more than once
// is represented by its latest header.
func (s *ServiceImpl) ListPlans(ctx context.Context) ([]allocation.Plan, error) {
	rows, err := s.store.Find(ctx, s.tables.HeaderTable, nil)
	if err != nil {
		return nil, fmt.Errorf("could not list plans: %w", err)
	}
	plans, err := latestPlans(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].FiscalYear > plans[j].FiscalYear
	})
	return plans, nil
}

func (s *ServiceImpl) GetPlan(ctx context.Context, year int) (allocation.Plan, error) {
	rows, err := s.store.Find(ctx, s.tables.HeaderTable, tablestore.Filter{allocation.FieldYear: year})
	if err != nil {
		return allocation.Plan{}, fmt.Errorf("could not load plan %d: %w", year, err)
	}
	plans, err := latestPlans(rows)
	if err != nil {
		return allocation.Plan{}, err
	}
	if len(plans) == 0 {
		return allocation.Plan{}, fmt.Errorf("%w: %d", ErrPlanNotFound, year)
	}
	return plans[0], nil
}

// LoadYearDetail fetches the detail rows of a year on first use and serves them from the cache
// afterwards. A failed fetch leaves the cache untouched.
func (s *ServiceImpl) LoadYearDetail(ctx context.Context, year int) ([]allocation.CategoryRow, error) {
	if rows, ok := s.cache.Get(year); ok {
		log.Debugf("serving detail rows of %d from cache", year)
		return rows, nil
	}

	found, err := s.store.Find(ctx, s.tables.DetailTable, tablestore.Filter{allocation.FieldYear: year})
	if err != nil {
		return nil, fmt.Errorf("could not load detail rows of %d: %w", year, err)
	}
	rows, err := latestCategoryRows(found)
	if err != nil {
		return nil, err
	}
	s.cache.Set(year, rows)
	return rows, nil
}

func (s *ServiceImpl) DetailFor(ctx context.Context, plan allocation.Plan) (YearDetail, error) {
	rows, err := s.LoadYearDetail(ctx, plan.FiscalYear)
	if err != nil {
		return YearDetail{}, err
	}
	return NewYearDetail(plan, rows), nil
}

func (s *ServiceImpl) YearDetail(ctx context.Context, year int) (YearDetail, error) {
	plan, err := s.GetPlan(ctx, year)
	if err != nil {
		return YearDetail{}, err
	}
	return s.DetailFor(ctx, plan)
}

func (s *ServiceImpl) IsCached(year int) bool {
	return s.cache.Contains(year)
}

func (s *ServiceImpl) InvalidateYear(year int) {
	s.cache.Invalidate(year)
}

func (s *ServiceImpl) InvalidateAll() {
	s.cache.InvalidateAll()
}

// SubscribeInvalidation drops the cached detail of a year as soon as a plan for it is submitted,
// and marks the listed header of that year as outdated in every given view.
func SubscribeInvalidation(bus *event_bus.EventBus, service Service, views ...*View) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.PlanSubmitted, func(e event_bus.EventT[event_bus.PlanSubmittedEvent]) error {
		log.Debugf("invalidating cached detail of %d after submit", e.Data.FiscalYear)
		service.InvalidateYear(e.Data.FiscalYear)
		for _, view := range views {
			view.Invalidate(e.Data.FiscalYear)
		}
		return nil
	})
}

// latestPlans decodes header rows and keeps the last stored header of every year.
func latestPlans(rows []tablestore.Row) ([]allocation.Plan, error) {
	byYear := make(map[int]int)
	plans := make([]allocation.Plan, 0, len(rows))
	for _, row := range rows {
		plan, err := allocation.PlanFromRow(row)
		if err != nil {
			err := fmt.Errorf("invalid plan row: %w", err)
			log.Error(err)
			return nil, err
		}
		if idx, ok := byYear[plan.FiscalYear]; ok {
			plans[idx] = plan
			continue
		}
		byYear[plan.FiscalYear] = len(plans)
		plans = append(plans, plan)
	}
	return plans, nil
}

type categoryKey struct {
	taxonomy allocation.Taxonomy
	label    string
}

// latestCategoryRows decodes detail rows and keeps the last stored row of every taxonomy label.
func latestCategoryRows(rows []tablestore.Row) ([]allocation.CategoryRow, error) {
	byKey := make(map[categoryKey]int)
	out := make([]allocation.CategoryRow, 0, len(rows))
	for _, row := range rows {
		categoryRow, err := allocation.CategoryRowFromRow(row)
		if err != nil {
			err := fmt.Errorf("invalid detail row: %w", err)
			log.Error(err)
			return nil, err
		}
		key := categoryKey{taxonomy: categoryRow.Taxonomy, label: categoryRow.Label}
		if idx, ok := byKey[key]; ok {
			out[idx] = categoryRow
			continue
		}
		byKey[key] = len(out)
		out = append(out, categoryRow)
	}
	return out, nil
}
