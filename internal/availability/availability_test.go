package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/db"
)

func rec(day calendar.Day, total, booked int) *capacity.Record {
	return &capacity.Record{Day: day, TotalUnits: total, BookedUnits: booked}
}

func TestComputeDayTiers(t *testing.T) {
	day := calendar.MustParse("2024-07-10")

	tests := []struct {
		name      string
		record    *capacity.Record
		available int
		tier      Tier
	}{
		{"absent", nil, 0, TierUnset},
		{"sold out", rec(day, 2, 2), 0, TierFull},
		{"zero total", rec(day, 0, 0), 0, TierFull},
		{"last unit", rec(day, 2, 1), 1, TierLimited},
		{"plenty", rec(day, 5, 1), 4, TierAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDay(day, tt.record)
			assert.Equal(t, tt.available, got.Available)
			assert.Equal(t, tt.tier, got.Tier)
		})
	}
}

func TestComputeAggregateRatio(t *testing.T) {
	day := calendar.MustParse("2024-07-10")

	// Three homestays, totals [2,0,3], booked [1,0,1].
	agg := ComputeAggregate(day, []*capacity.Record{rec(day, 2, 1), rec(day, 0, 0), rec(day, 3, 1)})
	assert.Equal(t, 3, agg.Available)
	assert.Equal(t, 5, agg.Capacity)
	assert.InDelta(t, 0.6, agg.Ratio, 1e-9)
	assert.Equal(t, AggregateAvailable, agg.Tier)
	// The first homestay alone is only limited.
	assert.Equal(t, TierLimited, ComputeDay(day, rec(day, 2, 1)).Tier)

	assert.Equal(t, AggregateLimited, ComputeAggregate(day, []*capacity.Record{rec(day, 10, 5)}).Tier, "exactly 50%")
	assert.Equal(t, AggregateLimited, ComputeAggregate(day, []*capacity.Record{rec(day, 10, 9)}).Tier, "exactly 10%")
	assert.Equal(t, AggregateFull, ComputeAggregate(day, []*capacity.Record{rec(day, 20, 19)}).Tier)
	assert.Equal(t, AggregateUnset, ComputeAggregate(day, nil).Tier)
	assert.Equal(t, AggregateUnset, ComputeAggregate(day, []*capacity.Record{rec(day, 0, 0)}).Tier)
}

type fixture struct {
	repo    capacity.Repository
	catalog catalog.Service
	cache   Cache
	calc    *Calculator
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, NewMemoryCache(time.Minute))
}

func newFixtureWithCache(t *testing.T, cache Cache) *fixture {
	t.Helper()
	repo := capacity.NewMemoryRepository(db.NewLocalTxManager())
	cat := catalog.NewService(catalog.NewMemoryRepository())
	return &fixture{repo: repo, catalog: cat, cache: cache, calc: NewCalculator(repo, cat, cache)}
}

func (f *fixture) homestay(t *testing.T, total int, days ...calendar.Day) capacity.Key {
	t.Helper()
	res, err := f.catalog.Create(context.Background(), catalog.CreateRequest{Kind: catalog.KindHomestay, Name: "Villa", DefaultUnits: total})
	require.NoError(t, err)
	key := capacity.Key{Kind: capacity.KindHomestay, ResourceID: res.ID}
	for _, d := range days {
		_, err := f.repo.UpsertTotal(context.Background(), key, d, total, nil)
		require.NoError(t, err)
	}
	return key
}

func TestComputeRangeReportsMissingDaysUnset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := calendar.MustParse("2024-07-10")
	key := f.homestay(t, 2, start, start.AddDays(2))

	days, err := f.calc.ComputeRange(ctx, key, calendar.NewRange(start, start.AddDays(3)))
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, TierAvailable, days[0].Tier)
	assert.Equal(t, start.AddDays(1), days[1].Date)
	assert.Equal(t, TierUnset, days[1].Tier)
	assert.Equal(t, TierAvailable, days[2].Tier)

	_, err = f.calc.ComputeRange(ctx, key, calendar.NewRange(start, start))
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)
	_, err = f.calc.ComputeRange(ctx, capacity.Key{Kind: capacity.KindCar, ResourceID: "nope"}, calendar.NewRange(start, start.AddDays(1)))
	assert.ErrorIs(t, err, ErrInvalidResourceID)
}

func TestComputeRangeServesCacheUntilInvalidated(t *testing.T) {
	caches := map[string]func(t *testing.T) Cache{
		"memory": func(*testing.T) Cache { return NewMemoryCache(time.Minute) },
		"redis": func(t *testing.T) Cache {
			return NewRedisCache(newTestRedis(t).client, time.Minute)
		},
	}
	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			testServesCacheUntilInvalidated(t, newFixtureWithCache(t, newCache(t)))
		})
	}
}

func testServesCacheUntilInvalidated(t *testing.T, f *fixture) {
	ctx := context.Background()
	day := calendar.MustParse("2024-07-10")
	key := f.homestay(t, 2, day)
	rng := calendar.NewRange(day, day.AddDays(1))

	first, err := f.calc.ComputeRange(ctx, key, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, first[0].Available)

	// A write that skips invalidation stays invisible until the entry expires.
	_, err = f.repo.AdjustBooked(ctx, key, day, 1)
	require.NoError(t, err)
	cached, err := f.calc.ComputeRange(ctx, key, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, cached[0].Available)

	f.cache.Invalidate(ctx, key)
	fresh, err := f.calc.ComputeRange(ctx, key, rng)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh[0].Available)
	assert.Equal(t, TierLimited, fresh[0].Tier)
}

func TestComputeAggregateRangeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := calendar.MustParse("2024-07-10")
	a := f.homestay(t, 2, day)
	b := f.homestay(t, 0, day)
	c := f.homestay(t, 3, day)
	_, err := f.repo.AdjustBooked(ctx, a, day, 1)
	require.NoError(t, err)
	_, err = f.repo.AdjustBooked(ctx, c, day, 1)
	require.NoError(t, err)

	rng := calendar.NewRange(day, day.AddDays(2))

	// Empty ids means every active homestay.
	all, err := f.calc.ComputeAggregateRange(ctx, capacity.KindHomestay, nil, rng)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 3, all[0].Available)
	assert.Equal(t, 5, all[0].Capacity)
	assert.Equal(t, AggregateAvailable, all[0].Tier)
	assert.Equal(t, AggregateUnset, all[1].Tier)

	// Second call is served from cache and agrees.
	again, err := f.calc.ComputeAggregateRange(ctx, capacity.KindHomestay, []string{c.ResourceID, a.ResourceID, b.ResourceID, a.ResourceID}, rng)
	require.NoError(t, err)
	assert.Equal(t, all, again)

	only, err := f.calc.ComputeAggregateRange(ctx, capacity.KindHomestay, []string{a.ResourceID}, rng)
	require.NoError(t, err)
	assert.Equal(t, AggregateLimited, only[0].Tier, "1 of 2 is exactly 50%")

	_, err = f.calc.ComputeAggregateRange(ctx, capacity.KindHomestay, []string{"bad"}, rng)
	assert.ErrorIs(t, err, ErrInvalidResourceID)
}

func TestMemoryCacheExpiryAndStaleGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5 * time.Second).(*memoryCache)
	now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := capacity.Key{Kind: capacity.KindCar, ResourceID: "5b1a3f9e-0000-4000-8000-000000000001"}
	day := calendar.MustParse("2024-07-10")
	rng := calendar.NewRange(day, day.AddDays(1))
	records := []*capacity.Record{{Key: key, Day: day, TotalUnits: 3, BookedUnits: 1}}

	gen := c.Generation(ctx, key)
	c.Set(ctx, key, rng, gen, records)
	got, ok := c.Get(ctx, key, rng)
	require.True(t, ok)
	assert.Equal(t, records, got)

	now = now.Add(5 * time.Second)
	_, ok = c.Get(ctx, key, rng)
	assert.False(t, ok, "expired")

	// A reader that loaded before an invalidation must not publish its result.
	stale := c.Generation(ctx, key)
	c.Invalidate(ctx, key)
	c.Set(ctx, key, rng, stale, records)
	_, ok = c.Get(ctx, key, rng)
	assert.False(t, ok)
}
