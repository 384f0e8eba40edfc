// Package cache holds the client-side cached views of project aggregates
// and investor portfolios. Writers only invalidate; a stale entry is
// re-fetched from the source of truth on the next read. Invalidation is
// idempotent and commutative, which is what makes concurrent writers safe
// without locks at the call sites.
package cache

import (
	"context"
	"errors"

	"crowdfund-settlement/internal/domain"
)

// ErrMiss is returned when no fresh entry exists for the key.
var ErrMiss = errors.New("cache miss")

// ProjectCache stores project aggregate views keyed by project ID, plus
// per-investor invalidation markers.
type ProjectCache interface {
	// Get returns the cached aggregate, or ErrMiss when absent or
	// invalidated.
	Get(ctx context.Context, projectID string) (*domain.ProjectAggregate, error)

	// Put stores a freshly fetched aggregate.
	Put(ctx context.Context, agg *domain.ProjectAggregate) error

	// Invalidate marks the project's aggregate stale. Invalidating an
	// absent or already-stale entry is a no-op.
	Invalidate(ctx context.Context, projectID string) error

	// InvalidateInvestor marks the investor's portfolio view stale.
	InvalidateInvestor(ctx context.Context, investorID string) error

	// InvestorFresh reports whether the investor's portfolio view is
	// still fresh (i.e. not invalidated since the last MarkInvestorFresh).
	InvestorFresh(ctx context.Context, investorID string) (bool, error)

	// MarkInvestorFresh records that the investor's portfolio view has
	// been re-fetched.
	MarkInvestorFresh(ctx context.Context, investorID string) error
}
