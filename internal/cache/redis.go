package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crowdfund-settlement/internal/domain"
)

const (
	projectKeyPrefix  = "settle:project:"  // settle:project:{project_id}
	investorKeyPrefix = "settle:investor:" // settle:investor:{investor_id} -> "fresh"
	defaultTTL        = 5 * time.Minute
)

// Redis is a Redis-backed ProjectCache. Entries carry a TTL so a dropped
// invalidation can only leave an entry stale for a bounded window.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis cache with the default TTL.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, ttl: defaultTTL}
}

// NewRedisTTL creates a Redis cache with a custom TTL.
func NewRedisTTL(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Verify interface compliance at compile time.
var _ ProjectCache = (*Redis)(nil)

// Get returns the cached aggregate, or ErrMiss when absent or expired.
func (r *Redis) Get(ctx context.Context, projectID string) (*domain.ProjectAggregate, error) {
	data, err := r.client.Get(ctx, projectKeyPrefix+projectID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get project aggregate: %w", err)
	}

	var agg domain.ProjectAggregate
	if err := json.Unmarshal([]byte(data), &agg); err != nil {
		return nil, fmt.Errorf("unmarshal project aggregate: %w", err)
	}
	return &agg, nil
}

// Put stores a freshly fetched aggregate with TTL.
func (r *Redis) Put(ctx context.Context, agg *domain.ProjectAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal project aggregate: %w", err)
	}
	if err := r.client.Set(ctx, projectKeyPrefix+agg.ProjectID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set project aggregate: %w", err)
	}
	return nil
}

// Invalidate deletes the project's aggregate. Deleting an absent key is a
// no-op, which keeps invalidation idempotent.
func (r *Redis) Invalidate(ctx context.Context, projectID string) error {
	if err := r.client.Del(ctx, projectKeyPrefix+projectID).Err(); err != nil {
		return fmt.Errorf("invalidate project aggregate: %w", err)
	}
	return nil
}

// InvalidateInvestor deletes the investor's freshness marker.
func (r *Redis) InvalidateInvestor(ctx context.Context, investorID string) error {
	if err := r.client.Del(ctx, investorKeyPrefix+investorID).Err(); err != nil {
		return fmt.Errorf("invalidate investor view: %w", err)
	}
	return nil
}

// InvestorFresh reports whether the investor's freshness marker exists.
func (r *Redis) InvestorFresh(ctx context.Context, investorID string) (bool, error) {
	n, err := r.client.Exists(ctx, investorKeyPrefix+investorID).Result()
	if err != nil {
		return false, fmt.Errorf("check investor view: %w", err)
	}
	return n > 0, nil
}

// MarkInvestorFresh sets the investor's freshness marker with TTL.
func (r *Redis) MarkInvestorFresh(ctx context.Context, investorID string) error {
	if err := r.client.Set(ctx, investorKeyPrefix+investorID, "fresh", r.ttl).Err(); err != nil {
		return fmt.Errorf("mark investor view fresh: %w", err)
	}
	return nil
}
