package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fortify/model"

	"github.com/go-redis/redis/v8"
)

// DefaultStatsTTL is used when a non-positive TTL is configured.
const DefaultStatsTTL = 5 * time.Minute

// StatsCache keeps dashboard figures in Redis. A nil client turns every method into a no-op miss.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// GetStatsKey 根据用户ID生成统计缓存的Redis键
func GetStatsKey(userID int64) string {
	return fmt.Sprintf("dashboard:stats:%d", userID)
}

// Enabled reports whether a Redis client is attached.
func (c *StatsCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached stats, or nil on a miss.
func (c *StatsCache) Get(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	if !c.Enabled() {
		return nil, nil
	}

	data, err := c.client.Get(ctx, GetStatsKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached stats: %w", err)
	}

	var stats model.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, nil
}

func (c *StatsCache) Set(ctx context.Context, userID int64, stats *model.DashboardStats) error {
	if !c.Enabled() || stats == nil {
		return nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := c.client.Set(ctx, GetStatsKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}
	return nil
}

// Invalidate drops the user's cached stats.
func (c *StatsCache) Invalidate(ctx context.Context, userID int64) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, GetStatsKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached stats: %w", err)
	}
	return nil
}
