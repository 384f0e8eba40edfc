package memory

import (
	"context"
	"errors"
	"testing"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

func pending(ref string, enqueuedAt int64) *domain.PendingReconciliation {
	return &domain.PendingReconciliation{
		Reference:    ref,
		CommitmentID: "c-" + ref,
		ProjectID:    "proj-1",
		Channel:      domain.ChannelOnChain,
		Amount:       100,
		Currency:     "USD",
		EnqueuedAt:   enqueuedAt,
	}
}

func TestReconcileQueue_EnqueueIdempotent(t *testing.T) {
	q := NewReconcileQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, pending("r1", 1000)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, pending("r1", 2000)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	list, err := q.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("queue length: got %d, want 1", len(list))
	}
}

func TestReconcileQueue_ListPendingOrderedAndLimited(t *testing.T) {
	q := NewReconcileQueue()
	ctx := context.Background()

	for _, p := range []*domain.PendingReconciliation{
		pending("r3", 3000), pending("r1", 1000), pending("r2", 2000),
	} {
		if err := q.Enqueue(ctx, p); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	list, err := q.ListPending(ctx, 2)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(list) != 2 || list[0].Reference != "r1" || list[1].Reference != "r2" {
		t.Errorf("ordering mismatch: %+v", list)
	}
}

func TestReconcileQueue_MarkAttemptAndDone(t *testing.T) {
	q := NewReconcileQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, pending("r1", 1000)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := q.MarkAttempt(ctx, "r1", "backend 503"); err != nil {
		t.Fatalf("MarkAttempt failed: %v", err)
	}
	list, _ := q.ListPending(ctx, 0)
	if list[0].Attempts != 1 || list[0].LastError != "backend 503" {
		t.Errorf("attempt not recorded: %+v", list[0])
	}

	if err := q.MarkDone(ctx, "r1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	list, _ = q.ListPending(ctx, 0)
	if len(list) != 0 {
		t.Errorf("done entry still pending: %+v", list)
	}

	// Unknown references are ErrNotFound
	if err := q.MarkDone(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
