package cache

import (
	"context"
	"errors"
	"testing"

	"crowdfund-settlement/internal/domain"
)

func TestMemory_PutGetInvalidate(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := c.Get(ctx, "proj-1")
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty cache: got %v, want ErrMiss", err)
	}

	agg := &domain.ProjectAggregate{
		ProjectID:    "proj-1",
		RaisedAmount: 12000,
		BackerCount:  4,
		Status:       domain.ProjectFunding,
	}
	if err := c.Put(ctx, agg); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RaisedAmount != 12000 || got.BackerCount != 4 {
		t.Errorf("aggregate mismatch: %+v", got)
	}

	if err := c.Invalidate(ctx, "proj-1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	_, err = c.Get(ctx, "proj-1")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Get after invalidate: got %v, want ErrMiss", err)
	}
}

func TestMemory_InvalidateIdempotentAndCommutative(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	put := func(id string) {
		if err := c.Put(ctx, &domain.ProjectAggregate{ProjectID: id}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// Same invalidation twice
	put("p1")
	c.Invalidate(ctx, "p1")
	c.Invalidate(ctx, "p1")
	if _, err := c.Get(ctx, "p1"); !errors.Is(err, ErrMiss) {
		t.Errorf("double invalidate: got %v, want ErrMiss", err)
	}

	// Two invalidations in either order leave the same state
	put("p2")
	put("p3")
	c.Invalidate(ctx, "p3")
	c.Invalidate(ctx, "p2")
	for _, id := range []string{"p2", "p3"} {
		if _, err := c.Get(ctx, id); !errors.Is(err, ErrMiss) {
			t.Errorf("Get(%s): got %v, want ErrMiss", id, err)
		}
	}

	// Invalidating a key never stored is a no-op, not an error
	if err := c.Invalidate(ctx, "never-stored"); err != nil {
		t.Errorf("Invalidate absent key: %v", err)
	}
}

func TestMemory_InvestorFreshness(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	fresh, err := c.InvestorFresh(ctx, "inv-1")
	if err != nil || fresh {
		t.Fatalf("InvestorFresh initial: got (%v, %v), want (false, nil)", fresh, err)
	}

	if err := c.MarkInvestorFresh(ctx, "inv-1"); err != nil {
		t.Fatalf("MarkInvestorFresh failed: %v", err)
	}
	fresh, _ = c.InvestorFresh(ctx, "inv-1")
	if !fresh {
		t.Error("expected fresh after mark")
	}

	if err := c.InvalidateInvestor(ctx, "inv-1"); err != nil {
		t.Fatalf("InvalidateInvestor failed: %v", err)
	}
	fresh, _ = c.InvestorFresh(ctx, "inv-1")
	if fresh {
		t.Error("expected stale after invalidation")
	}
}
