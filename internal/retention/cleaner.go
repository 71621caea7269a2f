package retention

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// DriverPurger removes unbooked driver statuses.
type DriverPurger interface {
	DeleteUnbookedBefore(ctx context.Context, cutoff calendar.Day) (int64, error)
}

// Result reports one purge. Cutoff is the effective cutoff after clamping.
type Result struct {
	Cutoff  calendar.Day
	Removed int64
}

// Cleaner deletes past records that carry no booking history.
// Records with booked units are kept forever.
type Cleaner struct {
	capacity  capacity.Repository
	drivers   DriverPurger
	resources availability.ResourceLister
	cache     availability.Invalidator
	loc       *time.Location
}

func NewCleaner(capacityRepo capacity.Repository, drivers DriverPurger, resources availability.ResourceLister, cache availability.Invalidator, loc *time.Location) *Cleaner {
	if loc == nil {
		loc = time.UTC
	}
	return &Cleaner{
		capacity:  capacityRepo,
		drivers:   drivers,
		resources: resources,
		cache:     cache,
		loc:       loc,
	}
}

// cutoff never lets a purge reach today or the future.
func (c *Cleaner) cutoff(before *calendar.Day) calendar.Day {
	today := calendar.Today(c.loc)
	if before == nil || before.After(today) {
		return today
	}
	return *before
}

// Purge deletes capacity records of one resource dated before the cutoff
// whose booked units are zero. A nil before means today.
func (c *Cleaner) Purge(ctx context.Context, key capacity.Key, before *calendar.Day) (*Result, error) {
	if !key.Kind.Valid() {
		return nil, capacity.ErrInvalidKind
	}
	id, err := uuid.Parse(key.ResourceID)
	if err != nil {
		return nil, availability.ErrInvalidResourceID
	}
	key.ResourceID = id.String()

	cutoff := c.cutoff(before)
	removed, err := c.capacity.DeleteUnbookedBefore(ctx, key, cutoff)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		c.cache.Invalidate(ctx, key)
		log.Info(ctx, "capacity history purged",
			log.Stringer("resource", key), log.Stringer("cutoff", cutoff), log.Int("removed", int(removed)))
	}
	return &Result{Cutoff: cutoff, Removed: removed}, nil
}

// PurgeDrivers deletes driver statuses before the cutoff that are not booked.
func (c *Cleaner) PurgeDrivers(ctx context.Context, before *calendar.Day) (*Result, error) {
	cutoff := c.cutoff(before)
	removed, err := c.drivers.DeleteUnbookedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		log.Info(ctx, "driver history purged", log.Stringer("cutoff", cutoff), log.Int("removed", int(removed)))
	}
	return &Result{Cutoff: cutoff, Removed: removed}, nil
}

// Sweep purges every active homestay and car, then the driver schedules,
// keeping retainDays of history before today.
func (c *Cleaner) Sweep(ctx context.Context, retainDays int) (int64, error) {
	before := calendar.Today(c.loc).AddDays(-max(retainDays, 0))

	var total int64
	for _, kind := range []capacity.Kind{capacity.KindHomestay, capacity.KindCar} {
		ids, err := c.resources.ListActiveIDs(ctx, catalog.Kind(kind))
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			res, err := c.Purge(ctx, capacity.Key{Kind: kind, ResourceID: id}, &before)
			if err != nil {
				return total, err
			}
			total += res.Removed
		}
	}

	res, err := c.PurgeDrivers(ctx, &before)
	if err != nil {
		return total, err
	}
	return total + res.Removed, nil
}

// Run sweeps every interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration, retainDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info(ctx, "retention sweeper started", log.String("interval", interval.String()), log.Int("retain_days", retainDays))
	for {
		select {
		case <-ctx.Done():
			log.Info(context.Background(), "retention sweeper stopped")
			return
		case <-ticker.C:
			removed, err := c.Sweep(ctx, retainDays)
			if err != nil {
				log.Error(ctx, "retention sweep failed", log.Err("error", err))
				continue
			}
			log.Debug(ctx, "retention sweep finished", log.Int("removed", int(removed)))
		}
	}
}
