package domain

// EventKind classifies the escrow contract events the synchronizer
// subscribes to.
type EventKind string

const (
	EventFundsDeposited       EventKind = "FundsDeposited"
	EventProjectStatusChanged EventKind = "ProjectStatusChanged"
	EventMilestoneApproved    EventKind = "MilestoneApproved"
	EventFundsReleased        EventKind = "FundsReleased"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the event kind is a valid value.
func (k EventKind) IsValid() bool {
	switch k {
	case EventFundsDeposited, EventProjectStatusChanged,
		EventMilestoneApproved, EventFundsReleased:
		return true
	}
	return false
}

// ChainEvent is one observed escrow contract event. Events may arrive
// duplicated or out of order; consumers treat them as invalidation
// triggers, never as deltas to merge.
type ChainEvent struct {
	Kind        EventKind
	ProjectID   string
	Investor    string  // FundsDeposited only
	Amount      float64 // FundsDeposited, FundsReleased
	Status      ProjectStatus
	MilestoneID string // MilestoneApproved only
	TxHash      string
	BlockNumber int64
	ObservedAt  int64 // Unix timestamp in milliseconds
}
