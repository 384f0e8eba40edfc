package memory

import (
	"context"
	"sort"
	"sync"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

// EventArchive is an in-memory implementation of storage.EventArchive.
type EventArchive struct {
	mu     sync.RWMutex
	events []*domain.ChainEvent
	seen   map[archiveKey]struct{}
}

type archiveKey struct {
	txHash    string
	kind      domain.EventKind
	projectID string
}

// NewEventArchive creates a new in-memory event archive.
func NewEventArchive() *EventArchive {
	return &EventArchive{
		seen: make(map[archiveKey]struct{}),
	}
}

// Verify interface compliance at compile time.
var _ storage.EventArchive = (*EventArchive)(nil)

// Insert appends one observed event. Duplicate observations are rejected
// with ErrDuplicateKey.
func (a *EventArchive) Insert(_ context.Context, e *domain.ChainEvent) error {
	if e == nil || e.TxHash == "" || !e.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	k := archiveKey{txHash: e.TxHash, kind: e.Kind, projectID: e.ProjectID}
	if _, exists := a.seen[k]; exists {
		return storage.ErrDuplicateKey
	}
	a.seen[k] = struct{}{}

	eventCopy := *e
	a.events = append(a.events, &eventCopy)
	return nil
}

// GetByProject retrieves archived events for a project, ordered by block
// number ASC.
func (a *EventArchive) GetByProject(_ context.Context, projectID string) ([]*domain.ChainEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*domain.ChainEvent
	for _, e := range a.events {
		if e.ProjectID == projectID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].BlockNumber < result[k].BlockNumber
	})

	return result, nil
}

// LastBlock returns the highest archived block number for a project.
func (a *EventArchive) LastBlock(_ context.Context, projectID string) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var last int64
	for _, e := range a.events {
		if e.ProjectID == projectID && e.BlockNumber > last {
			last = e.BlockNumber
		}
	}
	return last, nil
}
