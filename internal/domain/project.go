package domain

// ProjectStatus mirrors the escrow contract's project status enum.
type ProjectStatus string

const (
	ProjectFunding   ProjectStatus = "FUNDING"
	ProjectFunded    ProjectStatus = "FUNDED"
	ProjectReleasing ProjectStatus = "RELEASING"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectRefunding ProjectStatus = "REFUNDING"
)

// IsValid checks if the status is a valid value.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectFunding, ProjectFunded, ProjectReleasing, ProjectCompleted, ProjectRefunding:
		return true
	}
	return false
}

// ProjectState is the authoritative on-chain project state returned by the
// escrow contract's getProject read. Used by the manual reconciliation
// recovery path when event delivery is suspected to have been missed.
type ProjectState struct {
	ProjectID    string
	Creator      string
	Title        string
	Description  string
	TargetAmount float64
	RaisedAmount float64
	Deadline     int64 // Unix timestamp in seconds
	Status       ProjectStatus
}

// ProjectAggregate is the client-side cached view of a project's funding
// totals. It is only ever invalidated (never merged): stale entries are
// re-fetched from the source of truth on the next read.
type ProjectAggregate struct {
	ProjectID    string
	RaisedAmount float64
	BackerCount  int
	Status       ProjectStatus
	FetchedAt    int64 // Unix timestamp in milliseconds
}
