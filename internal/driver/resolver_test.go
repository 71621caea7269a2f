package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/db"
)

type fixture struct {
	tm       *db.LocalTxManager
	catalog  catalog.Service
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tm := db.NewLocalTxManager()
	cat := catalog.NewService(catalog.NewMemoryRepository())
	return &fixture{tm: tm, catalog: cat, resolver: NewResolver(tm, NewMemoryRepository(tm), cat)}
}

func (f *fixture) driver(t *testing.T, name string) string {
	t.Helper()
	res, err := f.catalog.Create(context.Background(), catalog.CreateRequest{Kind: catalog.KindDriver, Name: name})
	require.NoError(t, err)
	return res.ID
}

func (f *fixture) assign(ctx context.Context, rng calendar.Range, preferred *string, reservationID string) (string, error) {
	var id string
	err := f.tm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		id, err = f.resolver.Assign(ctx, rng, preferred, reservationID)
		return err
	})
	return id, err
}

var july10 = calendar.MustParse("2024-07-10")

func TestScheduleAndQueryAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := f.driver(t, "D1")
	d2 := f.driver(t, "D2")
	f.driver(t, "never scheduled")

	_, err := f.resolver.SetSchedule(ctx, d1, []calendar.Day{july10}, StatusAvailable)
	require.NoError(t, err)
	_, err = f.resolver.SetSchedule(ctx, d2, []calendar.Day{july10}, StatusOff)
	require.NoError(t, err)

	ids, err := f.resolver.QueryAvailable(ctx, july10)
	require.NoError(t, err)
	assert.Equal(t, []string{d1}, ids)

	ids, err = f.resolver.QueryAvailable(ctx, july10.AddDays(1))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestSetScheduleValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := f.driver(t, "D1")

	_, err := f.resolver.SetSchedule(ctx, d1, []calendar.Day{july10}, StatusBooked)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.resolver.SetSchedule(ctx, "5b1a3f9e-0000-4000-8000-000000000009", []calendar.Day{july10}, StatusAvailable)
	assert.ErrorIs(t, err, ErrUnknownDriver)

	car, err := f.catalog.Create(ctx, catalog.CreateRequest{Kind: catalog.KindCar, Name: "Sedan"})
	require.NoError(t, err)
	_, err = f.resolver.SetSchedule(ctx, car.ID, []calendar.Day{july10}, StatusAvailable)
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = f.resolver.SetSchedule(ctx, d1, nil, StatusAvailable)
	assert.ErrorIs(t, err, calendar.ErrNoDates)
}

func TestAssignBooksLowestAvailableDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.driver(t, "A"), f.driver(t, "B")
	low, high := min(a, b), max(a, b)
	rng := calendar.NewRange(july10, july10.AddDays(2))

	for _, id := range []string{a, b} {
		_, err := f.resolver.SetSchedule(ctx, id, rng.Days(), StatusAvailable)
		require.NoError(t, err)
	}
	// The lower id is off on the second day, so only the higher id covers the range.
	_, err := f.resolver.SetSchedule(ctx, low, []calendar.Day{july10.AddDays(1)}, StatusOff)
	require.NoError(t, err)

	chosen, err := f.assign(ctx, rng, nil, "r-1")
	require.NoError(t, err)
	assert.Equal(t, high, chosen)

	schedule, err := f.resolver.Schedule(ctx, high, rng)
	require.NoError(t, err)
	for _, s := range schedule {
		assert.Equal(t, StatusBooked, s.Status)
		require.NotNil(t, s.ReservationID)
		assert.Equal(t, "r-1", *s.ReservationID)
	}

	_, err = f.assign(ctx, rng, nil, "r-2")
	assert.ErrorIs(t, err, ErrNoDriverAvailable)
}

func TestAssignPreferredDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := f.driver(t, "D1")
	rng := calendar.NewRange(july10, july10.AddDays(1))

	_, err := f.assign(ctx, rng, &d1, "r-1")
	assert.ErrorIs(t, err, ErrDriverNotAvailable, "unscheduled driver")

	_, err = f.resolver.SetSchedule(ctx, d1, rng.Days(), StatusAvailable)
	require.NoError(t, err)
	chosen, err := f.assign(ctx, rng, &d1, "r-1")
	require.NoError(t, err)
	assert.Equal(t, d1, chosen)

	unknown := "5b1a3f9e-0000-4000-8000-000000000009"
	_, err = f.assign(ctx, rng, &unknown, "r-2")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestBookedDaysAreProtectedAndReleasable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := f.driver(t, "D1")
	rng := calendar.NewRange(july10, july10.AddDays(1))

	_, err := f.resolver.SetSchedule(ctx, d1, []calendar.Day{july10, july10.AddDays(1)}, StatusAvailable)
	require.NoError(t, err)
	_, err = f.assign(ctx, rng, nil, "r-1")
	require.NoError(t, err)

	// All-or-nothing: the free second day is not switched off either.
	_, err = f.resolver.SetSchedule(ctx, d1, []calendar.Day{july10, july10.AddDays(1)}, StatusOff)
	assert.ErrorIs(t, err, ErrDriverDayBooked)
	schedule, err := f.resolver.Schedule(ctx, d1, calendar.NewRange(july10, july10.AddDays(3)))
	require.NoError(t, err)
	require.Len(t, schedule, 3)
	assert.Equal(t, StatusBooked, schedule[0].Status)
	assert.Equal(t, StatusAvailable, schedule[1].Status)
	assert.Equal(t, StatusUnscheduled, schedule[2].Status)

	n, err := f.resolver.ReleaseBooked(ctx, "r-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	ids, err := f.resolver.QueryAvailable(ctx, july10)
	require.NoError(t, err)
	assert.Equal(t, []string{d1}, ids)
}

func TestInactiveDriversAreNotOffered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := f.driver(t, "D1")
	_, err := f.resolver.SetSchedule(ctx, d1, []calendar.Day{july10}, StatusAvailable)
	require.NoError(t, err)

	off := false
	_, err = f.catalog.Update(ctx, d1, catalog.UpdateRequest{IsActive: &off})
	require.NoError(t, err)

	ids, err := f.resolver.QueryAvailable(ctx, july10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = f.assign(ctx, calendar.NewRange(july10, july10.AddDays(1)), nil, "r-1")
	assert.ErrorIs(t, err, ErrNoDriverAvailable)
}
