package visits_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narck25/gestion-visitas-promotores/internal/visits"
)

func TestRedisStatsCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := visits.NewRedisStatsCache(client)
	ctx := context.Background()

	_, ok, err := cache.GetStats(ctx, visits.GlobalStatsKey)
	require.NoError(t, err)
	assert.False(t, ok)

	stats := &visits.Stats{
		Total:     4,
		ByStatus:  map[visits.Status]int64{visits.StatusCompleted: 3, visits.StatusNoShow: 1},
		ByPurpose: map[visits.Purpose]int64{visits.PurposeSales: 4},
	}
	require.NoError(t, cache.PutStats(ctx, visits.GlobalStatsKey, stats, time.Minute))

	loaded, ok, err := cache.GetStats(ctx, visits.GlobalStatsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), loaded.Total)
	assert.Equal(t, int64(3), loaded.ByStatus[visits.StatusCompleted])

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.GetStats(ctx, visits.GlobalStatsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
