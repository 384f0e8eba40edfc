// Package commitment validates a user's investment intent before any
// settlement side effect is allowed. Pure validation: a rejected
// commitment never reaches the transaction submitter.
package commitment

import (
	"crowdfund-settlement/internal/domain"
)

// DefaultMinimums are the platform minimum amounts per currency unit.
var DefaultMinimums = map[string]float64{
	"UGX": 1000,
	"KES": 100,
	"USD": 1,
	"ETH": 0.001,
}

// Intake validates commitments against platform rules.
type Intake struct {
	minimums map[string]float64
}

// NewIntake creates an intake validator. Passing nil minimums uses
// DefaultMinimums.
func NewIntake(minimums map[string]float64) *Intake {
	if minimums == nil {
		minimums = DefaultMinimums
	}
	return &Intake{minimums: minimums}
}

// Minimum returns the platform minimum for a currency, or 0 if the
// currency has no configured floor.
func (i *Intake) Minimum(currency string) float64 {
	return i.minimums[currency]
}

// Validate checks a commitment before submission. All violations are
// user-recoverable: no external call has been made yet.
func (i *Intake) Validate(c *domain.Commitment) error {
	if c == nil || c.ProjectID == "" {
		return domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrProjectRequired)
	}
	if c.Currency == "" {
		return domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrCurrencyRequired)
	}
	if c.Amount <= 0 {
		return domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrAmountNotPositive)
	}
	if min := i.minimums[c.Currency]; c.Amount < min {
		return domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrAmountBelowMinimum)
	}
	if !c.TermsOK {
		return domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrTermsNotAccepted)
	}
	return nil
}
