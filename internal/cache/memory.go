package cache

import (
	"context"
	"sync"

	"crowdfund-settlement/internal/domain"
)

// Memory is an in-memory ProjectCache.
type Memory struct {
	mu        sync.RWMutex
	projects  map[string]*domain.ProjectAggregate
	investors map[string]bool // investor ID -> fresh
}

// NewMemory creates a new in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		projects:  make(map[string]*domain.ProjectAggregate),
		investors: make(map[string]bool),
	}
}

// Verify interface compliance at compile time.
var _ ProjectCache = (*Memory)(nil)

// Get returns the cached aggregate, or ErrMiss when absent.
func (m *Memory) Get(_ context.Context, projectID string) (*domain.ProjectAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg, ok := m.projects[projectID]
	if !ok {
		return nil, ErrMiss
	}
	aggCopy := *agg
	return &aggCopy, nil
}

// Put stores a freshly fetched aggregate.
func (m *Memory) Put(_ context.Context, agg *domain.ProjectAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	aggCopy := *agg
	m.projects[agg.ProjectID] = &aggCopy
	return nil
}

// Invalidate drops the project's aggregate. Idempotent.
func (m *Memory) Invalidate(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.projects, projectID)
	return nil
}

// InvalidateInvestor marks the investor's portfolio view stale. Idempotent.
func (m *Memory) InvalidateInvestor(_ context.Context, investorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.investors[investorID] = false
	return nil
}

// InvestorFresh reports whether the investor's portfolio view is fresh.
func (m *Memory) InvestorFresh(_ context.Context, investorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.investors[investorID], nil
}

// MarkInvestorFresh records a completed portfolio re-fetch.
func (m *Memory) MarkInvestorFresh(_ context.Context, investorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.investors[investorID] = true
	return nil
}
