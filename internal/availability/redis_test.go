package availability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
)

type testRedis struct {
	server *miniredis.Miniredis
	client *redis.Client
}

func newTestRedis(t *testing.T) *testRedis {
	t.Helper()
	server := miniredis.RunT(t)
	client := NewRedisClient("redis://" + server.Addr())
	t.Cleanup(func() { _ = client.Close() })
	return &testRedis{server: server, client: client}
}

func redisFixture(t *testing.T, ttl time.Duration) (*testRedis, Cache, capacity.Key, calendar.Range, []*capacity.Record) {
	t.Helper()
	r := newTestRedis(t)
	key := capacity.Key{Kind: capacity.KindHomestay, ResourceID: "5b1a3f9e-0000-4000-8000-000000000002"}
	day := calendar.MustParse("2024-07-10")
	price := decimal.RequireFromString("99.90")
	records := []*capacity.Record{
		{Key: key, Day: day, TotalUnits: 3, BookedUnits: 1, PriceOverride: &price},
		{Key: key, Day: day.AddDays(1), TotalUnits: 2},
	}
	return r, NewRedisCache(r.client, ttl), key, calendar.NewRange(day, day.AddDays(2)), records
}

func TestRedisCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	r, c, key, rng, records := redisFixture(t, 5*time.Second)

	_, ok := c.Get(ctx, key, rng)
	assert.False(t, ok)
	assert.Zero(t, c.Generation(ctx, key))

	c.Set(ctx, key, rng, c.Generation(ctx, key), records)
	got, ok := c.Get(ctx, key, rng)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, key, got[0].Key)
	assert.Equal(t, 1, got[0].BookedUnits)
	require.NotNil(t, got[0].PriceOverride)
	assert.True(t, got[0].PriceOverride.Equal(*records[0].PriceOverride))
	assert.Nil(t, got[1].PriceOverride)

	r.server.FastForward(5 * time.Second)
	_, ok = c.Get(ctx, key, rng)
	assert.False(t, ok, "expired")
}

func TestRedisCacheInvalidateHidesStaleGeneration(t *testing.T) {
	ctx := context.Background()
	r, c, key, rng, records := redisFixture(t, time.Minute)

	stale := c.Generation(ctx, key)
	c.Set(ctx, key, rng, stale, records)
	c.Invalidate(ctx, key)

	assert.Equal(t, int64(1), c.Generation(ctx, key))
	_, ok := c.Get(ctx, key, rng)
	assert.False(t, ok, "entries of the previous generation are unreachable")

	// A reader that loaded before the invalidation must not publish its result.
	c.Set(ctx, key, rng, stale, records)
	_, ok = c.Get(ctx, key, rng)
	assert.False(t, ok)

	c.Set(ctx, key, rng, c.Generation(ctx, key), records)
	_, ok = c.Get(ctx, key, rng)
	assert.True(t, ok)

	assert.Positive(t, r.server.TTL(generationKey(key)), "generation counters expire eventually")

	other := capacity.Key{Kind: capacity.KindCar, ResourceID: key.ResourceID}
	assert.Zero(t, c.Generation(ctx, other), "generations are per resource")
}

func TestRedisCacheDegradesToMissWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	r, c, key, rng, records := redisFixture(t, time.Minute)
	c.Set(ctx, key, rng, c.Generation(ctx, key), records)

	r.server.SetError("LOADING redis is loading the dataset in memory")
	assert.Equal(t, int64(-1), c.Generation(ctx, key))
	_, ok := c.Get(ctx, key, rng)
	assert.False(t, ok)
	c.Set(ctx, key, rng, -1, records)
	c.Invalidate(ctx, key)

	r.server.SetError("")
	got, ok := c.Get(ctx, key, rng)
	require.True(t, ok, "the entry written before the outage is still valid")
	assert.Len(t, got, 2)
}
