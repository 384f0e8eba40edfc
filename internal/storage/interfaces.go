package storage

import (
	"context"

	"crowdfund-settlement/internal/domain"
)

// ReferenceJournal records every external reference the client has
// dispatched. Append-only: a reference is immutable once written. The
// journal is what lets the client honor "never re-submit a reference you
// have already dispatched" across restarts.
type ReferenceJournal interface {
	// Insert records a dispatched reference. Returns ErrDuplicateKey if
	// the commitment or the reference was already journaled.
	Insert(ctx context.Context, ref *domain.ExternalReference) error

	// GetByReference retrieves a journal entry by external reference.
	// Returns ErrNotFound if not exists.
	GetByReference(ctx context.Context, reference string) (*domain.ExternalReference, error)

	// GetByCommitment retrieves the journal entry for a commitment.
	// Returns ErrNotFound if the commitment never reached dispatch.
	GetByCommitment(ctx context.Context, commitmentID string) (*domain.ExternalReference, error)

	// GetByProject retrieves all journaled references for a project,
	// ordered by dispatch time ASC.
	GetByProject(ctx context.Context, projectID string) ([]*domain.ExternalReference, error)
}

// ReconcileQueue holds post-confirmation backend upserts that have not
// landed yet, for retry by the background sweep.
type ReconcileQueue interface {
	// Enqueue adds a pending reconciliation. Returns ErrDuplicateKey if
	// the reference is already queued; the caller treats that as success.
	Enqueue(ctx context.Context, p *domain.PendingReconciliation) error

	// ListPending retrieves undone entries ordered by enqueue time ASC,
	// up to limit (0 means no limit).
	ListPending(ctx context.Context, limit int) ([]*domain.PendingReconciliation, error)

	// MarkAttempt records a failed retry attempt for the reference.
	MarkAttempt(ctx context.Context, reference string, lastError string) error

	// MarkDone marks the reference reconciled. Idempotent.
	MarkDone(ctx context.Context, reference string) error
}

// EventArchive is the append-only log of observed escrow contract events.
// It backs missed-event recovery: after a reconnect, the last archived
// block per project bounds what could have been missed.
type EventArchive interface {
	// Insert appends one observed event. Duplicate observations of the
	// same (tx_hash, kind, project_id) are rejected with ErrDuplicateKey.
	Insert(ctx context.Context, e *domain.ChainEvent) error

	// GetByProject retrieves archived events for a project, ordered by
	// block number ASC.
	GetByProject(ctx context.Context, projectID string) ([]*domain.ChainEvent, error)

	// LastBlock returns the highest archived block number for a project,
	// or 0 when nothing is archived.
	LastBlock(ctx context.Context, projectID string) (int64, error)
}
