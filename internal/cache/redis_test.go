package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"crowdfund-settlement/internal/domain"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisTTL(client, time.Minute), mr
}

func TestRedis_PutGetInvalidate(t *testing.T) {
	c, _ := setupRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "proj-1")
	require.ErrorIs(t, err, ErrMiss)

	agg := &domain.ProjectAggregate{
		ProjectID:    "proj-1",
		RaisedAmount: 5000,
		BackerCount:  2,
		Status:       domain.ProjectFunding,
		FetchedAt:    time.Now().UnixMilli(),
	}
	require.NoError(t, c.Put(ctx, agg))

	got, err := c.Get(ctx, "proj-1")
	require.NoError(t, err)
	require.Equal(t, agg.RaisedAmount, got.RaisedAmount)
	require.Equal(t, agg.Status, got.Status)

	require.NoError(t, c.Invalidate(ctx, "proj-1"))
	_, err = c.Get(ctx, "proj-1")
	require.ErrorIs(t, err, ErrMiss)

	// Idempotent: invalidating again is still fine
	require.NoError(t, c.Invalidate(ctx, "proj-1"))
}

func TestRedis_EntriesExpire(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, &domain.ProjectAggregate{ProjectID: "proj-1"}))

	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "proj-1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedis_InvestorFreshness(t *testing.T) {
	c, _ := setupRedis(t)
	ctx := context.Background()

	fresh, err := c.InvestorFresh(ctx, "inv-1")
	require.NoError(t, err)
	require.False(t, fresh)

	require.NoError(t, c.MarkInvestorFresh(ctx, "inv-1"))
	fresh, err = c.InvestorFresh(ctx, "inv-1")
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, c.InvalidateInvestor(ctx, "inv-1"))
	fresh, err = c.InvestorFresh(ctx, "inv-1")
	require.NoError(t, err)
	require.False(t, fresh)
}
