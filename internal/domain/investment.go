package domain

// InvestmentStatus is the backend-owned lifecycle status of an investment
// record. The client reads it but never drives it past creation.
type InvestmentStatus string

const (
	InvestmentPending   InvestmentStatus = "Pending"
	InvestmentActive    InvestmentStatus = "Active"
	InvestmentCompleted InvestmentStatus = "Completed"
	InvestmentRefunded  InvestmentStatus = "Refunded"
)

// IsValid checks if the status is a valid value.
func (s InvestmentStatus) IsValid() bool {
	switch s {
	case InvestmentPending, InvestmentActive, InvestmentCompleted, InvestmentRefunded:
		return true
	}
	return false
}

// InvestmentRecord is the client's view of the backend investment record
// created by reconciliation. Keyed by Reference on the backend side; the
// record eventually reflects on-chain truth.
type InvestmentRecord struct {
	InvestmentID string
	ProjectID    string
	InvestorID   string
	Amount       float64
	Currency     string
	Reference    string // external reference used as the idempotency key
	Status       InvestmentStatus
	CertRef      string // NFT/certificate reference
	CreatedAt    int64  // Unix timestamp in milliseconds
}
