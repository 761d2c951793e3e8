package event_bus

const PlanSubmitted EventType = "allocation.plan.submitted"

// PlanSubmittedEvent is published after both writes of a plan submission were attempted.
type PlanSubmittedEvent struct {
	FiscalYear   int
	HeaderStored bool
	DetailStored bool
	DetailRows   int
}
