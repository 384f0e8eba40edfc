// Package reconcile persists externally-confirmed settlements to the
// platform backend. The backend upserts by external reference, so the call
// is idempotent from the client's perspective; the client's own discipline
// is never re-issuing a call it knows succeeded.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"crowdfund-settlement/internal/backend"
	"crowdfund-settlement/internal/cache"
	"crowdfund-settlement/internal/certref"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
	"crowdfund-settlement/internal/storage"
)

// Result is the outcome of one reconciliation.
type Result struct {
	Record *domain.InvestmentRecord

	// Caveat is set when the external settlement succeeded but the
	// backend upsert did not land. The settlement is safe; platform
	// bookkeeping is pending a background retry. Never presented as a
	// failed investment.
	Caveat bool
}

// Options configures the reconciler.
type Options struct {
	Logger *log.Logger

	// Now overrides the enqueue timestamp source. Defaults to wall clock.
	Now func() int64
}

// Reconciler upserts confirmed settlements and invalidates cached views.
type Reconciler struct {
	api   backend.API
	cache cache.ProjectCache
	queue storage.ReconcileQueue

	logger *log.Logger
	now    func() int64
}

// NewReconciler creates a reconciler over the backend API, project cache
// and pending-reconciliation queue.
func NewReconciler(api backend.API, projectCache cache.ProjectCache, queue storage.ReconcileQueue, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Reconciler{api: api, cache: projectCache, queue: queue, logger: logger, now: now}
}

// Reconcile upserts the investment record for a confirmed reference. On
// success the project aggregate (and the investor's view, for on-chain
// settlements) is invalidated so the next read re-fetches.
//
// A failed upsert is not an error from the caller's point of view: the
// reference goes onto the pending queue for the background sweep and the
// result carries the caveat flag. The external settlement already
// succeeded; this path must never claim the money is lost.
func (r *Reconciler) Reconcile(ctx context.Context, ref *domain.ExternalReference) (*Result, error) {
	record, err := r.upsert(ctx, ref)
	if err != nil {
		r.logger.Printf("[reconcile] upsert for %s failed, queueing for retry: %v", ref.Reference, err)
		observability.RecordReconciliation("deferred")
		if qerr := r.enqueue(ctx, ref, err); qerr != nil {
			// Queueing also failed. The caveat contract still holds; the
			// reference stays recoverable through the journal.
			r.logger.Printf("[reconcile] WARNING: could not queue %s: %v", ref.Reference, qerr)
		}
		return &Result{Caveat: true}, nil
	}

	r.invalidate(ctx, ref)
	r.markDone(ctx, ref.Reference)
	observability.RecordReconciliation("ok")
	observability.DefaultMetrics.LastSuccessfulReconcile.Set(float64(r.now() / 1000))
	r.logger.Printf("[reconcile] recorded investment %s for project %s (ref %s)",
		record.InvestmentID, ref.ProjectID, ref.Reference)
	return &Result{Record: record}, nil
}

// upsert issues the backend invest call keyed by the external reference
// and fills in the certificate reference when the backend left it empty.
func (r *Reconciler) upsert(ctx context.Context, ref *domain.ExternalReference) (*domain.InvestmentRecord, error) {
	record, err := r.api.Invest(ctx, &backend.InvestRequest{
		ProjectID: ref.ProjectID,
		Amount:    ref.Amount,
		Currency:  ref.Currency,
		TxHash:    ref.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("invest upsert: %w", err)
	}
	if record.CertRef == "" {
		record.CertRef = certref.Compute(ref.ProjectID, ref.InvestorAddr, ref.Reference, ref.Amount)
	}
	return record, nil
}

// invalidate marks the cached views stale. Invalidation is idempotent, so
// racing the event synchronizer is harmless.
func (r *Reconciler) invalidate(ctx context.Context, ref *domain.ExternalReference) {
	if err := r.cache.Invalidate(ctx, ref.ProjectID); err != nil {
		r.logger.Printf("[reconcile] invalidate project %s: %v", ref.ProjectID, err)
	}
	if ref.InvestorAddr != "" {
		if err := r.cache.InvalidateInvestor(ctx, ref.InvestorAddr); err != nil {
			r.logger.Printf("[reconcile] invalidate investor %s: %v", ref.InvestorAddr, err)
		}
	}
	observability.RecordCacheInvalidation()
}

// enqueue records the reference for the background sweep. A duplicate
// entry means an earlier attempt already queued it.
func (r *Reconciler) enqueue(ctx context.Context, ref *domain.ExternalReference, cause error) error {
	err := r.queue.Enqueue(ctx, &domain.PendingReconciliation{
		Reference:    ref.Reference,
		CommitmentID: ref.CommitmentID,
		ProjectID:    ref.ProjectID,
		Channel:      ref.Channel,
		Amount:       ref.Amount,
		Currency:     ref.Currency,
		InvestorAddr: ref.InvestorAddr,
		LastError:    cause.Error(),
		EnqueuedAt:   r.now(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// markDone clears any pending-queue entry for the reference. Most
// references were never queued; ErrNotFound is the normal case.
func (r *Reconciler) markDone(ctx context.Context, reference string) {
	if err := r.queue.MarkDone(ctx, reference); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Printf("[reconcile] mark done %s: %v", reference, err)
	}
}
