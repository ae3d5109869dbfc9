package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	jobmetrics "github.com/narck25/gestion-visitas-promotores/internal/jobs"
	"github.com/narck25/gestion-visitas-promotores/internal/visits"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultWarmupTTL = 10 * time.Minute

// StatsSource computes visit statistics for a visibility scope.
type StatsSource interface {
	Stats(ctx context.Context, scope authz.Filter) (*visits.Stats, error)
}

// StatsWarmupJob precomputes the global visit statistics into the cache so
// administrator dashboards read a warm entry instead of hitting the
// aggregation queries.
type StatsWarmupJob struct {
	Source  StatsSource
	Cache   visits.StatsCache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(source StatsSource, cache visits.StatsCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{Source: source, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStatsWarmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Cache == nil {
		return errors.New("stats warmup: handler not configured")
	}
	var payload StatsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	ttl := defaultWarmupTTL
	if payload.TTLMinutes > 0 {
		ttl = time.Duration(payload.TTLMinutes) * time.Minute
	}

	tracker := j.metrics().Track(TaskStatsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting stats warmup", slog.Duration("ttl", ttl))

	stats, err := j.Source.Stats(ctx, authz.Unrestricted{})
	if err != nil {
		resultErr = err
		logger.Error("compute visit stats", slog.Any("error", err))
		return resultErr
	}
	if err := j.Cache.PutStats(ctx, visits.GlobalStatsKey, stats, ttl); err != nil {
		resultErr = err
		logger.Error("store warmed stats", slog.Any("error", err))
		return resultErr
	}

	logger.Info("stats warmup complete", slog.Int64("total_visits", stats.Total))
	return resultErr
}

func (j *StatsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
