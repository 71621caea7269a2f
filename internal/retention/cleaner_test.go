package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/driver"
)

type fixture struct {
	capacity capacity.Repository
	drivers  driver.Repository
	catalog  catalog.Service
	cache    availability.Cache
	cleaner  *Cleaner
	today    calendar.Day
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tm := db.NewLocalTxManager()
	f := &fixture{
		capacity: capacity.NewMemoryRepository(tm),
		drivers:  driver.NewMemoryRepository(tm),
		catalog:  catalog.NewService(catalog.NewMemoryRepository()),
		cache:    availability.NewMemoryCache(time.Minute),
		today:    calendar.Today(time.UTC),
	}
	f.cleaner = NewCleaner(f.capacity, f.drivers, f.catalog, f.cache, time.UTC)
	return f
}

func (f *fixture) homestay(t *testing.T) capacity.Key {
	t.Helper()
	res, err := f.catalog.Create(context.Background(), catalog.CreateRequest{Kind: catalog.KindHomestay, Name: "Villa"})
	require.NoError(t, err)
	return capacity.Key{Kind: capacity.KindHomestay, ResourceID: res.ID}
}

// seed initializes the days [today-back, today+ahead) with total 1.
func (f *fixture) seed(t *testing.T, key capacity.Key, back, ahead int) {
	t.Helper()
	for d := f.today.AddDays(-back); d.Before(f.today.AddDays(ahead)); d = d.AddDays(1) {
		_, err := f.capacity.UpsertTotal(context.Background(), key, d, 1, nil)
		require.NoError(t, err)
	}
}

func (f *fixture) count(t *testing.T, key capacity.Key, back, ahead int) int {
	t.Helper()
	recs, err := f.capacity.ListRange(context.Background(), key, calendar.NewRange(f.today.AddDays(-back), f.today.AddDays(ahead)))
	require.NoError(t, err)
	return len(recs)
}

func TestPurgeKeepsBookedHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h1 := f.homestay(t)
	f.seed(t, h1, 5, 2)
	_, err := f.capacity.AdjustBooked(ctx, h1, f.today.AddDays(-3), 1)
	require.NoError(t, err)

	res, err := f.cleaner.Purge(ctx, h1, nil)
	require.NoError(t, err)
	assert.Equal(t, f.today, res.Cutoff)
	assert.EqualValues(t, 4, res.Removed)

	recs, err := f.capacity.ListRange(ctx, h1, calendar.NewRange(f.today.AddDays(-5), f.today.AddDays(2)))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, f.today.AddDays(-3), recs[0].Day, "booked record survives")
	assert.Equal(t, f.today, recs[1].Day)
}

func TestPurgeClampsFutureCutoffToToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h1 := f.homestay(t)
	f.seed(t, h1, 2, 3)

	future := f.today.AddDays(30)
	res, err := f.cleaner.Purge(ctx, h1, &future)
	require.NoError(t, err)
	assert.Equal(t, f.today, res.Cutoff)
	assert.EqualValues(t, 2, res.Removed)
	assert.Equal(t, 3, f.count(t, h1, 2, 3))

	past := f.today.AddDays(-10)
	res, err = f.cleaner.Purge(ctx, h1, &past)
	require.NoError(t, err)
	assert.Equal(t, past, res.Cutoff)
	assert.Zero(t, res.Removed)
}

func TestPurgeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h1 := f.homestay(t)
	f.seed(t, h1, 1, 0)

	gen := f.cache.Generation(ctx, h1)
	_, err := f.cleaner.Purge(ctx, h1, nil)
	require.NoError(t, err)
	assert.NotEqual(t, gen, f.cache.Generation(ctx, h1))
}

func TestPurgeValidatesKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.cleaner.Purge(ctx, capacity.Key{Kind: "driver", ResourceID: "5b1a3f9e-0000-4000-8000-000000000001"}, nil)
	assert.ErrorIs(t, err, capacity.ErrInvalidKind)
	_, err = f.cleaner.Purge(ctx, capacity.Key{Kind: capacity.KindCar, ResourceID: "car-1"}, nil)
	assert.ErrorIs(t, err, availability.ErrInvalidResourceID)
}

func TestSweepCoversResourcesAndDrivers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h1 := f.homestay(t)
	h2 := f.homestay(t)
	f.seed(t, h1, 10, 1)
	f.seed(t, h2, 10, 1)

	d1, err := f.catalog.Create(ctx, catalog.CreateRequest{Kind: catalog.KindDriver, Name: "D1"})
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		_, err := f.drivers.SetStatus(ctx, d1.ID, f.today.AddDays(-i), driver.StatusAvailable)
		require.NoError(t, err)
	}

	removed, err := f.cleaner.Sweep(ctx, 7)
	require.NoError(t, err)
	// Days today-10 .. today-8 go for both homestays and the driver.
	assert.EqualValues(t, 9, removed)
	assert.Equal(t, 8, f.count(t, h1, 10, 1))

	statuses, err := f.drivers.ListRange(ctx, d1.ID, calendar.NewRange(f.today.AddDays(-10), f.today))
	require.NoError(t, err)
	assert.Len(t, statuses, 7)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	h1 := f.homestay(t)
	f.seed(t, h1, 3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.cleaner.Run(ctx, 5*time.Millisecond, 0)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.count(t, h1, 3, 0) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
