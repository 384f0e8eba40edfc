// Package eventsync keeps cached project and investor views in agreement
// with the escrow contract. It subscribes to the four contract event
// classes and reacts to each observation by invalidating the affected
// cache entries, never by merging deltas: re-fetch-on-invalidate is the
// concurrency-safety mechanism, and duplicate or out-of-order events are
// harmless because invalidation is idempotent and commutative.
//
// Event delivery is not trusted to be complete. Every observation lands in
// the event archive, a manual reconciliation path pulls authoritative
// on-chain state on demand, a fixed-interval poll reconciles every watched
// project, and a reconnect triggers a full recovery pass.
package eventsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"crowdfund-settlement/internal/cache"
	"crowdfund-settlement/internal/chain"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
	"crowdfund-settlement/internal/storage"
)

// DefaultPollInterval is the fixed interval of the belt-and-suspenders
// reconciliation poll over watched projects.
const DefaultPollInterval = 30 * time.Second

// defaultNotifyBuffer bounds the notification channel. Notifications are
// advisory; when no one drains them they are dropped, never blocked on.
const defaultNotifyBuffer = 256

// Notification describes one observed change, surfaced non-blockingly.
type Notification struct {
	Kind      domain.EventKind
	ProjectID string
	Message   string
}

// reconnectNotifier is implemented by event clients that can report
// re-established connections (chain.WSClient and the test stub).
type reconnectNotifier interface {
	OnReconnect(func())
}

// Options configures the synchronizer.
type Options struct {
	PollInterval time.Duration // defaults to DefaultPollInterval
	NotifyBuffer int           // defaults to 256
	Logger       *log.Logger

	// Now overrides the timestamp source. Defaults to wall clock.
	Now func() int64
}

// Synchronizer is the always-running event consumer.
type Synchronizer struct {
	events  chain.EventClient
	client  chain.Client
	cache   cache.ProjectCache
	archive storage.EventArchive

	pollInterval time.Duration
	logger       *log.Logger
	now          func() int64

	mu      sync.Mutex
	watched map[string]struct{}

	notes chan Notification
}

// NewSynchronizer creates a synchronizer over the event subscription, the
// chain read client, the project cache and the event archive.
func NewSynchronizer(events chain.EventClient, client chain.Client, projectCache cache.ProjectCache, archive storage.EventArchive, opts Options) *Synchronizer {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	buffer := opts.NotifyBuffer
	if buffer <= 0 {
		buffer = defaultNotifyBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Synchronizer{
		events:       events,
		client:       client,
		cache:        projectCache,
		archive:      archive,
		pollInterval: pollInterval,
		logger:       logger,
		now:          now,
		watched:      make(map[string]struct{}),
		notes:        make(chan Notification, buffer),
	}
}

// Watch registers a project as actively viewed. Watched projects are
// reconciled by the background poll and by reconnect recovery.
func (s *Synchronizer) Watch(projectID string) {
	s.mu.Lock()
	s.watched[projectID] = struct{}{}
	s.mu.Unlock()
}

// Unwatch removes a project from the poll set.
func (s *Synchronizer) Unwatch(projectID string) {
	s.mu.Lock()
	delete(s.watched, projectID)
	s.mu.Unlock()
}

// Notifications returns the advisory change feed.
func (s *Synchronizer) Notifications() <-chan Notification {
	return s.notes
}

// Run subscribes and consumes events until ctx is cancelled or the event
// channel closes.
func (s *Synchronizer) Run(ctx context.Context) error {
	events, err := s.events.SubscribeEvents(ctx, chain.EventFilter{})
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}

	if rn, ok := s.events.(reconnectNotifier); ok {
		rn.OnReconnect(func() {
			observability.RecordWSReconnect()
			s.logger.Printf("[eventsync] reconnected, running recovery pass")
			s.RecoverAll(ctx)
		})
	}

	s.logger.Printf("[eventsync] running, poll interval %s", s.pollInterval)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				s.logger.Printf("[eventsync] event stream closed")
				return nil
			}
			s.handle(ctx, event)
		case <-ticker.C:
			s.pollWatched(ctx)
		}
	}
}

// handle reacts to one observed event: archive it, invalidate the affected
// views, surface a notification.
func (s *Synchronizer) handle(ctx context.Context, e domain.ChainEvent) {
	observability.RecordEventObserved(string(e.Kind))
	observability.DefaultMetrics.LastEventObserved.Set(float64(s.now() / 1000))

	if e.ObservedAt == 0 {
		e.ObservedAt = s.now()
	}
	if err := s.archive.Insert(ctx, &e); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.Printf("[eventsync] archive %s/%s: %v", e.TxHash, e.Kind, err)
	}

	if err := s.cache.Invalidate(ctx, e.ProjectID); err != nil {
		s.logger.Printf("[eventsync] invalidate project %s: %v", e.ProjectID, err)
	}
	if e.Kind == domain.EventFundsDeposited && e.Investor != "" {
		if err := s.cache.InvalidateInvestor(ctx, e.Investor); err != nil {
			s.logger.Printf("[eventsync] invalidate investor %s: %v", e.Investor, err)
		}
	}
	observability.RecordCacheInvalidation()

	s.notify(Notification{
		Kind:      e.Kind,
		ProjectID: e.ProjectID,
		Message:   describe(e),
	})
}

// notify surfaces a notification without ever blocking the event loop.
func (s *Synchronizer) notify(n Notification) {
	select {
	case s.notes <- n:
	default:
		// No consumer keeping up; the notification is advisory only.
	}
}

// Reconcile pulls the authoritative on-chain project state and refreshes
// the cached aggregate. Last observed state wins.
func (s *Synchronizer) Reconcile(ctx context.Context, projectID string) (*domain.ProjectAggregate, error) {
	state, err := s.client.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	agg := &domain.ProjectAggregate{
		ProjectID:    state.ProjectID,
		RaisedAmount: state.RaisedAmount,
		Status:       state.Status,
		FetchedAt:    s.now(),
	}
	if err := s.cache.Put(ctx, agg); err != nil {
		return nil, fmt.Errorf("cache project %s: %w", projectID, err)
	}
	return agg, nil
}

// RecoverAll reconciles every watched project. Used after a reconnect,
// when event delivery is suspected to have been missed.
func (s *Synchronizer) RecoverAll(ctx context.Context) {
	observability.RecordRecovery()
	for _, projectID := range s.watchedList() {
		if _, err := s.Reconcile(ctx, projectID); err != nil {
			s.logger.Printf("[eventsync] recover %s: %v", projectID, err)
		}
	}
}

// pollWatched is the fixed-interval manual reconciliation over every
// watched project.
func (s *Synchronizer) pollWatched(ctx context.Context) {
	for _, projectID := range s.watchedList() {
		if _, err := s.Reconcile(ctx, projectID); err != nil {
			s.logger.Printf("[eventsync] poll %s: %v", projectID, err)
		}
	}
}

func (s *Synchronizer) watchedList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.watched))
	for projectID := range s.watched {
		out = append(out, projectID)
	}
	return out
}

// describe renders a human-readable change summary for a notification.
func describe(e domain.ChainEvent) string {
	switch e.Kind {
	case domain.EventFundsDeposited:
		return fmt.Sprintf("deposit of %g received for project %s", e.Amount, e.ProjectID)
	case domain.EventProjectStatusChanged:
		return fmt.Sprintf("project %s is now %s", e.ProjectID, e.Status)
	case domain.EventMilestoneApproved:
		return fmt.Sprintf("milestone %s approved for project %s", e.MilestoneID, e.ProjectID)
	case domain.EventFundsReleased:
		return fmt.Sprintf("%g released for project %s", e.Amount, e.ProjectID)
	}
	return fmt.Sprintf("project %s changed", e.ProjectID)
}
