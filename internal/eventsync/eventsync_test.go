package eventsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"crowdfund-settlement/internal/cache"
	chainstub "crowdfund-settlement/internal/chain/stub"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage/memory"
)

type fixture struct {
	sync         *Synchronizer
	events       *chainstub.EventClient
	chainClient  *chainstub.Client
	projectCache *cache.Memory
	archive      *memory.EventArchive
}

func newFixture() *fixture {
	events := chainstub.NewEventClient()
	chainClient := chainstub.NewClient()
	projectCache := cache.NewMemory()
	archive := memory.NewEventArchive()
	s := NewSynchronizer(events, chainClient, projectCache, archive, Options{
		PollInterval: time.Hour, // polling driven explicitly in tests
		Now:          func() int64 { return 1704067200000 },
	})
	return &fixture{sync: s, events: events, chainClient: chainClient, projectCache: projectCache, archive: archive}
}

func (f *fixture) seedCache(t *testing.T, projectID string) {
	t.Helper()
	err := f.projectCache.Put(context.Background(), &domain.ProjectAggregate{
		ProjectID: projectID, RaisedAmount: 100, BackerCount: 2, Status: domain.ProjectFunding,
	})
	if err != nil {
		t.Fatalf("seed cache: %v", err)
	}
}

func (f *fixture) run(t *testing.T) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.sync.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func depositEvent(txHash string) domain.ChainEvent {
	return domain.ChainEvent{
		Kind:        domain.EventFundsDeposited,
		ProjectID:   "proj-1",
		Investor:    "0xinvestor",
		Amount:      500,
		TxHash:      txHash,
		BlockNumber: 10,
	}
}

func waitForMiss(t *testing.T, c cache.ProjectCache, projectID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if _, err := c.Get(context.Background(), projectID); errors.Is(err, cache.ErrMiss) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("project %s never invalidated", projectID)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestDepositInvalidatesProjectAndInvestor(t *testing.T) {
	f := newFixture()
	f.seedCache(t, "proj-1")
	ctx := context.Background()

	if err := f.projectCache.MarkInvestorFresh(ctx, "0xinvestor"); err != nil {
		t.Fatalf("mark investor fresh: %v", err)
	}

	stop := f.run(t)
	defer stop()

	f.events.Publish(depositEvent("0x1"))
	waitForMiss(t, f.projectCache, "proj-1")

	fresh, err := f.projectCache.InvestorFresh(ctx, "0xinvestor")
	if err != nil {
		t.Fatalf("InvestorFresh failed: %v", err)
	}
	if fresh {
		t.Error("investor view must be stale after a deposit event")
	}

	// Observation is archived
	archived, err := f.archive.GetByProject(ctx, "proj-1")
	if err != nil || len(archived) != 1 {
		t.Fatalf("archived = %v (err %v), want 1 event", archived, err)
	}

	// Notification surfaced
	select {
	case n := <-f.sync.Notifications():
		if n.Kind != domain.EventFundsDeposited || n.ProjectID != "proj-1" {
			t.Errorf("notification = %+v", n)
		}
	case <-time.After(time.Second):
		t.Error("no notification surfaced")
	}
}

func TestInvalidationIsIdempotentAndCommutative(t *testing.T) {
	f := newFixture()
	f.seedCache(t, "proj-1")

	stop := f.run(t)
	defer stop()

	// Same event twice, plus a second event for the same project, in
	// arbitrary order: the cache ends in the same stale condition.
	f.events.Publish(depositEvent("0x1"))
	f.events.Publish(depositEvent("0x1"))
	f.events.Publish(domain.ChainEvent{
		Kind:      domain.EventProjectStatusChanged,
		ProjectID: "proj-1",
		Status:    domain.ProjectFunded,
		TxHash:    "0x2",
	})
	waitForMiss(t, f.projectCache, "proj-1")

	// The duplicate observation is archived once
	deadline := time.After(2 * time.Second)
	for {
		archived, err := f.archive.GetByProject(context.Background(), "proj-1")
		if err != nil {
			t.Fatalf("GetByProject failed: %v", err)
		}
		if len(archived) == 2 {
			return
		}
		if len(archived) > 2 {
			t.Fatalf("archive holds %d events, want 2", len(archived))
		}
		select {
		case <-deadline:
			t.Fatalf("archive holds %d events, want 2", len(archived))
		case <-time.After(time.Millisecond):
		}
	}
}

func TestManualReconcileRefreshesAggregate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.chainClient.SetProject(&domain.ProjectState{
		ProjectID:    "proj-1",
		Creator:      "0xcreator",
		TargetAmount: 10000,
		RaisedAmount: 6500,
		Status:       domain.ProjectFunding,
	})

	agg, err := f.sync.Reconcile(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if agg.RaisedAmount != 6500 || agg.Status != domain.ProjectFunding {
		t.Errorf("aggregate = %+v", agg)
	}

	cached, err := f.projectCache.Get(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Get after reconcile failed: %v", err)
	}
	if cached.RaisedAmount != 6500 {
		t.Errorf("cached = %+v", cached)
	}
}

func TestReconnectRecoversWatchedProjects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.chainClient.SetProject(&domain.ProjectState{
		ProjectID: "proj-1", RaisedAmount: 7000, Status: domain.ProjectFunding,
	})
	f.chainClient.SetProject(&domain.ProjectState{
		ProjectID: "proj-2", RaisedAmount: 300, Status: domain.ProjectFunded,
	})
	f.sync.Watch("proj-1")
	f.sync.Watch("proj-2")

	stop := f.run(t)
	defer stop()

	f.events.SimulateReconnect()

	deadline := time.After(2 * time.Second)
	for {
		a1, err1 := f.projectCache.Get(ctx, "proj-1")
		a2, err2 := f.projectCache.Get(ctx, "proj-2")
		if err1 == nil && err2 == nil {
			if a1.RaisedAmount != 7000 || a2.RaisedAmount != 300 {
				t.Errorf("recovered aggregates = %+v, %+v", a1, a2)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("watched projects never recovered after reconnect")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestPollReconcilesWatchedProjects(t *testing.T) {
	events := chainstub.NewEventClient()
	chainClient := chainstub.NewClient()
	projectCache := cache.NewMemory()
	archive := memory.NewEventArchive()
	s := NewSynchronizer(events, chainClient, projectCache, archive, Options{
		PollInterval: 5 * time.Millisecond,
	})

	chainClient.SetProject(&domain.ProjectState{
		ProjectID: "proj-1", RaisedAmount: 1234, Status: domain.ProjectFunding,
	})
	s.Watch("proj-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if agg, err := projectCache.Get(ctx, "proj-1"); err == nil && agg.RaisedAmount == 1234 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("poll never reconciled the watched project")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestUnwatchStopsRecovery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.chainClient.SetProject(&domain.ProjectState{
		ProjectID: "proj-1", RaisedAmount: 7000, Status: domain.ProjectFunding,
	})
	f.sync.Watch("proj-1")
	f.sync.Unwatch("proj-1")

	f.sync.RecoverAll(ctx)

	if _, err := f.projectCache.Get(ctx, "proj-1"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("unwatched project must not be recovered, got %v", err)
	}
}
