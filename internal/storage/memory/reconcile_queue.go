package memory

import (
	"context"
	"sort"
	"sync"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

// ReconcileQueue is an in-memory implementation of storage.ReconcileQueue.
type ReconcileQueue struct {
	mu   sync.RWMutex
	data map[string]*domain.PendingReconciliation // keyed by reference
}

// NewReconcileQueue creates a new in-memory reconcile queue.
func NewReconcileQueue() *ReconcileQueue {
	return &ReconcileQueue{
		data: make(map[string]*domain.PendingReconciliation),
	}
}

// Verify interface compliance at compile time.
var _ storage.ReconcileQueue = (*ReconcileQueue)(nil)

// Enqueue adds a pending reconciliation. Returns ErrDuplicateKey if the
// reference is already queued.
func (q *ReconcileQueue) Enqueue(_ context.Context, p *domain.PendingReconciliation) error {
	if p == nil || p.Reference == "" {
		return storage.ErrInvalidInput
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.data[p.Reference]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *p
	q.data[p.Reference] = &entryCopy
	return nil
}

// ListPending retrieves undone entries ordered by enqueue time ASC.
func (q *ReconcileQueue) ListPending(_ context.Context, limit int) ([]*domain.PendingReconciliation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var result []*domain.PendingReconciliation
	for _, p := range q.data {
		if !p.Done {
			entryCopy := *p
			result = append(result, &entryCopy)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].EnqueuedAt < result[k].EnqueuedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkAttempt records a failed retry attempt for the reference.
func (q *ReconcileQueue) MarkAttempt(_ context.Context, reference string, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, exists := q.data[reference]
	if !exists {
		return storage.ErrNotFound
	}
	p.Attempts++
	p.LastError = lastError
	return nil
}

// MarkDone marks the reference reconciled. Idempotent.
func (q *ReconcileQueue) MarkDone(_ context.Context, reference string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, exists := q.data[reference]
	if !exists {
		return storage.ErrNotFound
	}
	p.Done = true
	return nil
}
