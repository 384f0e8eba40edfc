package domain

// SettlementStatus tracks one commitment through the settlement pipeline.
// Legal transitions:
//
//	PENDING_SUBMIT → AWAITING_CONFIRMATION → CONFIRMED_EXTERNALLY → RECONCILED
//	                                       ↘ FAILED
//
// The backend derives its own investment-record status from the same
// external reference, so the two converge even if the client dies mid-flow.
type SettlementStatus string

const (
	StatusPendingSubmit        SettlementStatus = "PENDING_SUBMIT"
	StatusAwaitingConfirmation SettlementStatus = "AWAITING_CONFIRMATION"
	StatusConfirmedExternally  SettlementStatus = "CONFIRMED_EXTERNALLY"
	StatusReconciled           SettlementStatus = "RECONCILED"
	StatusFailed               SettlementStatus = "FAILED"
)

// String returns the string representation of SettlementStatus.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SettlementStatus) IsValid() bool {
	switch s {
	case StatusPendingSubmit, StatusAwaitingConfirmation,
		StatusConfirmedExternally, StatusReconciled, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SettlementStatus) IsTerminal() bool {
	return s == StatusReconciled || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	switch s {
	case StatusPendingSubmit:
		return next == StatusAwaitingConfirmation || next == StatusFailed
	case StatusAwaitingConfirmation:
		return next == StatusConfirmedExternally || next == StatusFailed
	case StatusConfirmedExternally:
		return next == StatusReconciled
	}
	return false
}

// ExternalReference ties a commitment to its external system-of-record
// entry: a transaction hash for the on-chain channel, a provider
// transaction reference for the gateway channel. Exactly one exists per
// commitment that reached submission, it is immutable once assigned, and
// it is the idempotency key for backend reconciliation.
type ExternalReference struct {
	CommitmentID string
	ProjectID    string
	Channel      Channel
	Reference    string  // tx hash or provider reference
	Amount       float64 // committed amount, carried for the reconcile call
	Currency     string
	InvestorAddr string // on-chain channel only
	DispatchedAt int64  // Unix timestamp in milliseconds
}

// Outcome is the tri-state result of awaiting external confirmation.
// Ambiguous is explicitly distinct from Failed: confirmation could not be
// obtained within policy bounds, and the user must check transaction
// history rather than being told the settlement failed.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeAmbiguous Outcome = "AMBIGUOUS"
)

// IsValid checks if the outcome is a valid value.
func (o Outcome) IsValid() bool {
	return o == OutcomeConfirmed || o == OutcomeFailed || o == OutcomeAmbiguous
}
