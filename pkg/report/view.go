package report

import (
	"context"
	"sync"

	"github.com/salesplan/salesplan/pkg/allocation"
	log "github.com/sirupsen/logrus"
)

type ViewState int

const (
	Listing ViewState = iota
	LoadingDetail
	DetailShown
)

func (s ViewState) String() string {
	switch s {
	case Listing:
		return "listing"
	case LoadingDetail:
		return "loading_detail"
	case DetailShown:
		return "detail_shown"
	default:
		return "unknown"
	}
}

// View is the report screen of a single user: a listing of plans and at most one open drill-down.
//
//	Listing -> LoadingDetail -> DetailShown -> Listing
//	Listing -> DetailShown                     (year already cached)
//	DetailShown -> LoadingDetail -> DetailShown (switching to an uncached year)
type View struct {
	mu           sync.Mutex
	service      Service
	state        ViewState
	plans        []allocation.Plan
	stale        map[int]bool
	detail       *YearDetail
	onTransition func(from, to ViewState)
}

type ViewSnapshot struct {
	State  ViewState
	Plans  []allocation.Plan
	Detail *YearDetail
}

func NewView(service Service) *View {
	return &View{service: service, state: Listing, stale: make(map[int]bool)}
}

// OnTransition registers a callback invoked on every state change, while the view is locked.
func (v *View) OnTransition(fn func(from, to ViewState)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onTransition = fn
}

// Reload fetches the listing again and starts over with an empty detail cache. On failure the
// previous listing is kept.
func (v *View) Reload(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	plans, err := v.service.ListPlans(ctx)
	if err != nil {
		log.Warnf("keeping stale plan listing: %v", err)
		return err
	}
	v.plans = plans
	v.stale = make(map[int]bool)
	v.service.InvalidateAll()
	return nil
}

// Invalidate marks the listed header of a year as outdated. The next drill-down of that year
// reads the header again.
func (v *View) Invalidate(year int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stale[year] = true
}

// Open shows the drill-down of a year. An open drill-down stays in place until the new one has
// loaded; when loading fails the view is left as it was.
func (v *View) Open(ctx context.Context, year int) (YearDetail, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	previous, shown := v.state, v.detail
	plan, listed := v.listedPlan(year)
	cached := v.service.IsCached(year)
	if !cached {
		v.transition(LoadingDetail)
	}

	var detail YearDetail
	var err error
	if listed && cached && !v.stale[year] {
		detail, err = v.service.DetailFor(ctx, plan)
	} else {
		// detail rows read now must be paired with the header stored alongside them
		detail, err = v.service.YearDetail(ctx, year)
	}
	if err != nil {
		v.detail = shown
		v.transition(previous)
		return YearDetail{}, err
	}

	v.replaceListed(detail.Plan)
	delete(v.stale, year)
	v.detail = &detail
	v.transition(DetailShown)
	return detail, nil
}

func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeLocked()
}

func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) Snapshot() ViewSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ViewSnapshot{
		State:  v.state,
		Plans:  append([]allocation.Plan(nil), v.plans...),
		Detail: v.detail,
	}
}

func (v *View) closeLocked() {
	v.detail = nil
	v.transition(Listing)
}

func (v *View) listedPlan(year int) (allocation.Plan, bool) {
	for _, plan := range v.plans {
		if plan.FiscalYear == year {
			return plan, true
		}
	}
	return allocation.Plan{}, false
}

func (v *View) replaceListed(plan allocation.Plan) {
	for i := range v.plans {
		if v.plans[i].FiscalYear == plan.FiscalYear {
			v.plans[i] = plan
			return
		}
	}
}

func (v *View) transition(to ViewState) {
	from := v.state
	if from == to {
		return
	}
	v.state = to
	log.Debugf("report view: %s -> %s", from, to)
	if v.onTransition != nil {
		v.onTransition(from, to)
	}
}
