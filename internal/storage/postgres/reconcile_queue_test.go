package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

func testPending(ref string, enqueuedAt int64) *domain.PendingReconciliation {
	return &domain.PendingReconciliation{
		Reference:    ref,
		CommitmentID: "c-" + ref,
		ProjectID:    "proj-1",
		Channel:      domain.ChannelOnChain,
		Amount:       1.5,
		Currency:     "ETH",
		InvestorAddr: "0xabc",
		EnqueuedAt:   enqueuedAt,
	}
}

func TestReconcileQueue_EnqueueAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	queue := NewReconcileQueue(pool)
	ctx := context.Background()

	for _, p := range []*domain.PendingReconciliation{
		testPending("r-3", 3000), testPending("r-1", 1000), testPending("r-2", 2000),
	} {
		require.NoError(t, queue.Enqueue(ctx, p))
	}

	list, err := queue.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "r-1", list[0].Reference)
	assert.Equal(t, "r-2", list[1].Reference)
	assert.Equal(t, "r-3", list[2].Reference)
	assert.Equal(t, 1.5, list[0].Amount)
	assert.Equal(t, domain.ChannelOnChain, list[0].Channel)

	list, err = queue.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r-1", list[0].Reference)
}

func TestReconcileQueue_DuplicateReference(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	queue := NewReconcileQueue(pool)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, testPending("r-1", 1000)))

	err := queue.Enqueue(ctx, testPending("r-1", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReconcileQueue_MarkAttemptAndDone(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	queue := NewReconcileQueue(pool)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, testPending("r-1", 1000)))

	require.NoError(t, queue.MarkAttempt(ctx, "r-1", "backend 503"))
	require.NoError(t, queue.MarkAttempt(ctx, "r-1", "backend timeout"))

	list, err := queue.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Attempts)
	assert.Equal(t, "backend timeout", list[0].LastError)

	require.NoError(t, queue.MarkDone(ctx, "r-1"))

	list, err = queue.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	// MarkDone is idempotent on an already-done reference
	require.NoError(t, queue.MarkDone(ctx, "r-1"))

	assert.ErrorIs(t, queue.MarkDone(ctx, "missing"), storage.ErrNotFound)
	assert.ErrorIs(t, queue.MarkAttempt(ctx, "missing", "x"), storage.ErrNotFound)
}
