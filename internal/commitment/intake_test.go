package commitment

import (
	"errors"
	"testing"

	"crowdfund-settlement/internal/domain"
)

func validCommitment() *domain.Commitment {
	c := domain.NewCommitment("proj-1", 5000, "UGX")
	c.TermsOK = true
	return c
}

func TestIntake_ValidCommitment(t *testing.T) {
	intake := NewIntake(nil)

	if err := intake.Validate(validCommitment()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestIntake_Rejections(t *testing.T) {
	intake := NewIntake(nil)

	tests := []struct {
		name    string
		mutate  func(c *domain.Commitment)
		wantErr error
	}{
		{
			name:    "zero amount",
			mutate:  func(c *domain.Commitment) { c.Amount = 0 },
			wantErr: domain.ErrAmountNotPositive,
		},
		{
			name:    "negative amount",
			mutate:  func(c *domain.Commitment) { c.Amount = -10 },
			wantErr: domain.ErrAmountNotPositive,
		},
		{
			name:    "below platform minimum",
			mutate:  func(c *domain.Commitment) { c.Amount = 999 },
			wantErr: domain.ErrAmountBelowMinimum,
		},
		{
			name:    "terms not accepted",
			mutate:  func(c *domain.Commitment) { c.TermsOK = false },
			wantErr: domain.ErrTermsNotAccepted,
		},
		{
			name:    "missing project",
			mutate:  func(c *domain.Commitment) { c.ProjectID = "" },
			wantErr: domain.ErrProjectRequired,
		},
		{
			name:    "missing currency",
			mutate:  func(c *domain.Commitment) { c.Currency = "" },
			wantErr: domain.ErrCurrencyRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCommitment()
			tt.mutate(c)

			err := intake.Validate(c)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate: got %v, want %v", err, tt.wantErr)
			}
			if got := domain.CategoryOf(err); got != domain.FailureUserRecoverable {
				t.Errorf("category: got %s, want %s", got, domain.FailureUserRecoverable)
			}
		})
	}
}

func TestIntake_CustomMinimums(t *testing.T) {
	intake := NewIntake(map[string]float64{"ETH": 0.01})

	c := validCommitment()
	c.Currency = "ETH"
	c.Amount = 0.005

	err := intake.Validate(c)
	if !errors.Is(err, domain.ErrAmountBelowMinimum) {
		t.Errorf("Validate: got %v, want ErrAmountBelowMinimum", err)
	}

	c.Amount = 1.5
	if err := intake.Validate(c); err != nil {
		t.Errorf("Validate failed for valid amount: %v", err)
	}
}

func TestIntake_UnknownCurrencyHasNoFloor(t *testing.T) {
	intake := NewIntake(nil)

	c := validCommitment()
	c.Currency = "XYZ"
	c.Amount = 0.0001

	if err := intake.Validate(c); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
