package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup precomputes visit statistics into the Redis cache.
	TaskStatsWarmup = "stats:warmup"
	// TaskTokensPurge sweeps stale refresh-token records.
	TaskTokensPurge = "tokens:purge"
)

// StatsWarmupPayload configures a statistics warmup run.
type StatsWarmupPayload struct {
	// TTLMinutes controls how long the warmed entry stays valid. Zero
	// falls back to the handler default.
	TTLMinutes int `json:"ttlMinutes"`
}

// NewStatsWarmupTask constructs an Asynq task for the statistics warmup.
func NewStatsWarmupTask(payload StatsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, data), nil
}

// TokensPurgePayload configures a refresh-token purge run.
type TokensPurgePayload struct {
	// BatchSize bounds how many keys a single SCAN page inspects. Zero
	// falls back to the handler default.
	BatchSize int `json:"batchSize"`
}

// NewTokensPurgeTask constructs an Asynq task for the token purge.
func NewTokensPurgeTask(payload TokensPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTokensPurge, data), nil
}
