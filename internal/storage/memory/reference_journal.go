package memory

import (
	"context"
	"sort"
	"sync"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

// ReferenceJournal is an in-memory implementation of storage.ReferenceJournal.
type ReferenceJournal struct {
	mu           sync.RWMutex
	byReference  map[string]*domain.ExternalReference
	byCommitment map[string]*domain.ExternalReference
}

// NewReferenceJournal creates a new in-memory reference journal.
func NewReferenceJournal() *ReferenceJournal {
	return &ReferenceJournal{
		byReference:  make(map[string]*domain.ExternalReference),
		byCommitment: make(map[string]*domain.ExternalReference),
	}
}

// Verify interface compliance at compile time.
var _ storage.ReferenceJournal = (*ReferenceJournal)(nil)

// Insert records a dispatched reference. Returns ErrDuplicateKey if the
// commitment or the reference was already journaled.
func (j *ReferenceJournal) Insert(_ context.Context, ref *domain.ExternalReference) error {
	if ref == nil || ref.Reference == "" || ref.CommitmentID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.byReference[ref.Reference]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := j.byCommitment[ref.CommitmentID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	refCopy := *ref
	j.byReference[ref.Reference] = &refCopy
	j.byCommitment[ref.CommitmentID] = &refCopy
	return nil
}

// GetByReference retrieves a journal entry by external reference.
func (j *ReferenceJournal) GetByReference(_ context.Context, reference string) (*domain.ExternalReference, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ref, exists := j.byReference[reference]
	if !exists {
		return nil, storage.ErrNotFound
	}
	refCopy := *ref
	return &refCopy, nil
}

// GetByCommitment retrieves the journal entry for a commitment.
func (j *ReferenceJournal) GetByCommitment(_ context.Context, commitmentID string) (*domain.ExternalReference, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ref, exists := j.byCommitment[commitmentID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	refCopy := *ref
	return &refCopy, nil
}

// GetByProject retrieves all journaled references for a project, ordered
// by dispatch time ASC.
func (j *ReferenceJournal) GetByProject(_ context.Context, projectID string) ([]*domain.ExternalReference, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.ExternalReference
	for _, ref := range j.byReference {
		if ref.ProjectID == projectID {
			refCopy := *ref
			result = append(result, &refCopy)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].DispatchedAt < result[k].DispatchedAt
	})

	return result, nil
}
