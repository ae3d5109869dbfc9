package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/visits"
)

type fakeStatsSource struct {
	stats *visits.Stats
	err   error
	scope authz.Filter
}

func (f *fakeStatsSource) Stats(ctx context.Context, scope authz.Filter) (*visits.Stats, error) {
	f.scope = scope
	return f.stats, f.err
}

type fakeStatsCache struct {
	key   string
	stats *visits.Stats
	ttl   time.Duration
}

func (f *fakeStatsCache) GetStats(ctx context.Context, key string) (*visits.Stats, bool, error) {
	if f.key != key || f.stats == nil {
		return nil, false, nil
	}
	return f.stats, true, nil
}

func (f *fakeStatsCache) PutStats(ctx context.Context, key string, stats *visits.Stats, ttl time.Duration) error {
	f.key = key
	f.stats = stats
	f.ttl = ttl
	return nil
}

func TestStatsWarmupCachesGlobalScope(t *testing.T) {
	source := &fakeStatsSource{stats: &visits.Stats{Total: 42, ByStatus: map[visits.Status]int64{visits.StatusCompleted: 42}}}
	cache := &fakeStatsCache{}
	job := NewStatsWarmupJob(source, cache, nil, nil)

	task, err := NewStatsWarmupTask(StatsWarmupPayload{TTLMinutes: 30})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, visits.GlobalStatsKey, cache.key)
	require.Equal(t, int64(42), cache.stats.Total)
	require.Equal(t, 30*time.Minute, cache.ttl)

	_, ok := source.scope.(authz.Unrestricted)
	require.True(t, ok, "warmup must aggregate without a visibility restriction")
}

func TestStatsWarmupDefaultTTL(t *testing.T) {
	source := &fakeStatsSource{stats: &visits.Stats{}}
	cache := &fakeStatsCache{}
	job := NewStatsWarmupJob(source, cache, nil, nil)

	task, err := NewStatsWarmupTask(StatsWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, defaultWarmupTTL, cache.ttl)
}

func TestTokensPurgeRemovesOnlyPersistentKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "auth:refresh:live", "user-a", time.Hour).Err())
	require.NoError(t, client.Set(ctx, "auth:refresh:stale", "user-b", 0).Err())
	require.NoError(t, client.Set(ctx, "ratelimit:read:bucket", "3", 0).Err())

	job := NewTokensPurgeJob(client, nil, nil)
	task, err := NewTokensPurgeTask(TokensPurgePayload{BatchSize: 10})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	require.True(t, mr.Exists("auth:refresh:live"), "keys with a TTL stay")
	require.False(t, mr.Exists("auth:refresh:stale"), "keys without a TTL are removed")
	require.True(t, mr.Exists("ratelimit:read:bucket"), "other keyspaces are untouched")
}
