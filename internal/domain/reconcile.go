package domain

// PendingReconciliation is a post-confirmation backend upsert that has not
// landed yet. The external settlement already succeeded; only platform
// bookkeeping is outstanding. Entries are retried by a background sweep
// and are idempotent by Reference.
type PendingReconciliation struct {
	Reference    string // external reference, unique
	CommitmentID string
	ProjectID    string
	Channel      Channel
	Amount       float64
	Currency     string
	InvestorAddr string
	Attempts     int
	LastError    string
	EnqueuedAt   int64 // Unix timestamp in milliseconds
	Done         bool
}
