package visits

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStatsCache stores precomputed stats aggregates in Redis. The warmup
// job refreshes them so dashboard reads skip the aggregate queries.
type RedisStatsCache struct {
	client *redis.Client
}

// NewRedisStatsCache constructs a RedisStatsCache.
func NewRedisStatsCache(client *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{client: client}
}

// GetStats reads a cached aggregate. The second return is false on a miss.
func (c *RedisStatsCache) GetStats(ctx context.Context, key string) (*Stats, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

// PutStats stores an aggregate with a TTL.
func (c *RedisStatsCache) PutStats(ctx context.Context, key string, stats *Stats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}
