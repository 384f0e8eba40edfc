package reconcile

import (
	"context"
	"errors"
	"log"
	"time"

	"crowdfund-settlement/internal/backend"
	"crowdfund-settlement/internal/cache"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
	"crowdfund-settlement/internal/storage"
)

// DefaultSweepInterval is how often the background sweep retries pending
// reconciliations.
const DefaultSweepInterval = 60 * time.Second

// Sweeper retries queued post-confirmation upserts at a fixed interval.
// Retries are idempotent by reference: the backend upserts, and a done
// entry is never retried again.
type Sweeper struct {
	api   backend.API
	cache cache.ProjectCache
	queue storage.ReconcileQueue

	interval time.Duration
	limit    int
	logger   *log.Logger
}

// SweepOptions configures the sweeper.
type SweepOptions struct {
	Interval time.Duration // defaults to DefaultSweepInterval
	Limit    int           // max entries per sweep, 0 means all
	Logger   *log.Logger
}

// NewSweeper creates a background sweeper over the pending queue.
func NewSweeper(api backend.API, projectCache cache.ProjectCache, queue storage.ReconcileQueue, opts SweepOptions) *Sweeper {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		api:      api,
		cache:    projectCache,
		queue:    queue,
		interval: interval,
		limit:    opts.Limit,
		logger:   logger,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Printf("[reconcile] sweep started, interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("[reconcile] sweep stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce retries every pending entry once. Returns how many entries
// were reconciled.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	pending, err := s.queue.ListPending(ctx, s.limit)
	if err != nil {
		s.logger.Printf("[reconcile] list pending: %v", err)
		observability.RecordReconcileSweep("error")
		return 0
	}
	observability.UpdateReconcileQueueDepth(len(pending))
	if len(pending) == 0 {
		return 0
	}

	done := 0
	for _, p := range pending {
		if err := s.retry(ctx, p); err != nil {
			s.logger.Printf("[reconcile] retry %s (attempt %d): %v", p.Reference, p.Attempts+1, err)
			if merr := s.queue.MarkAttempt(ctx, p.Reference, err.Error()); merr != nil {
				s.logger.Printf("[reconcile] mark attempt %s: %v", p.Reference, merr)
			}
			continue
		}
		done++
	}

	observability.RecordReconcileSweep("ok")
	observability.UpdateReconcileQueueDepth(len(pending) - done)
	if done > 0 {
		s.logger.Printf("[reconcile] sweep reconciled %d of %d pending", done, len(pending))
	}
	return done
}

// retry re-issues the upsert for one queued reference and marks it done on
// success.
func (s *Sweeper) retry(ctx context.Context, p *domain.PendingReconciliation) error {
	_, err := s.api.Invest(ctx, &backend.InvestRequest{
		ProjectID: p.ProjectID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		TxHash:    p.Reference,
	})
	if err != nil {
		return err
	}

	if err := s.queue.MarkDone(ctx, p.Reference); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := s.cache.Invalidate(ctx, p.ProjectID); err != nil {
		s.logger.Printf("[reconcile] invalidate project %s: %v", p.ProjectID, err)
	}
	if p.InvestorAddr != "" {
		if err := s.cache.InvalidateInvestor(ctx, p.InvestorAddr); err != nil {
			s.logger.Printf("[reconcile] invalidate investor %s: %v", p.InvestorAddr, err)
		}
	}
	observability.RecordReconciliation("retried")
	return nil
}
