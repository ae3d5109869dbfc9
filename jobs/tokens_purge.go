package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/narck25/gestion-visitas-promotores/internal/jobs"
)

const defaultPurgeBatch = 200

// refreshKeyPattern must stay in sync with the key layout used by the auth
// refresh store.
const refreshKeyPattern = "auth:refresh:*"

// TokensPurgeJob sweeps the refresh-token keyspace. Redis normally expires
// these records itself; the sweep removes records that lost their TTL, which
// happens after a restore from persistence or a manual PERSIST, so a revoked
// or forgotten token can never outlive its intended lifetime silently.
type TokensPurgeJob struct {
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTokensPurgeJob wires dependencies for the purge handler.
func NewTokensPurgeJob(client *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *TokensPurgeJob {
	return &TokensPurgeJob{Redis: client, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTokensPurge tasks.
func (j *TokensPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Redis == nil {
		return errors.New("tokens purge: handler not configured")
	}
	var payload TokensPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	batch := int64(defaultPurgeBatch)
	if payload.BatchSize > 0 {
		batch = int64(payload.BatchSize)
	}

	tracker := j.metrics().Track(TaskTokensPurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting refresh token purge")

	scanned := 0
	purged := 0
	var cursor uint64
	for {
		keys, next, err := j.Redis.Scan(ctx, cursor, refreshKeyPattern, batch).Result()
		if err != nil {
			resultErr = err
			logger.Error("scan refresh tokens", slog.Any("error", err))
			return resultErr
		}
		for _, key := range keys {
			scanned++
			ttl, err := j.Redis.TTL(ctx, key).Result()
			if err != nil {
				resultErr = err
				logger.Error("inspect refresh token", slog.String("key", key), slog.Any("error", err))
				return resultErr
			}
			// -1 means the key exists without an expiry.
			if ttl == -1 {
				if err := j.Redis.Del(ctx, key).Err(); err != nil {
					resultErr = err
					logger.Error("delete refresh token", slog.String("key", key), slog.Any("error", err))
					return resultErr
				}
				purged++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	j.metrics().AddPurged("refresh_token", purged)
	logger.Info("refresh token purge complete", slog.Int("scanned", scanned), slog.Int("purged", purged))
	return resultErr
}

func (j *TokensPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *TokensPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
