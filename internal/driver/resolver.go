package driver

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// Catalog is the part of the catalog the resolver consults.
type Catalog interface {
	Lookup(ctx context.Context, kind catalog.Kind, id string) (*catalog.Resource, error)
	ListActiveIDs(ctx context.Context, kind catalog.Kind) ([]string, error)
}

// Resolver answers which drivers can work on which days.
type Resolver struct {
	tm      db.TxManager
	repo    Repository
	catalog Catalog
}

func NewResolver(tm db.TxManager, repo Repository, catalog Catalog) *Resolver {
	return &Resolver{tm: tm, repo: repo, catalog: catalog}
}

// QueryAvailable lists active drivers whose status on day is available.
// Drivers without a status for the day are not scheduled and are left out.
func (r *Resolver) QueryAvailable(ctx context.Context, day calendar.Day) ([]string, error) {
	ids, err := r.repo.ListAvailableOn(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	active, err := r.catalog.ListActiveIDs(ctx, catalog.KindDriver)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if contains(active, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// SetSchedule writes status for every day in one transaction. Booked days
// cannot be overwritten; the whole batch fails instead.
func (r *Resolver) SetSchedule(ctx context.Context, driverID string, days []calendar.Day, status Status) ([]*DayStatus, error) {
	if !status.Settable() {
		return nil, ErrInvalidStatus
	}
	days, err := calendar.Normalize(days)
	if err != nil {
		return nil, err
	}
	driverID, err = r.lookup(ctx, driverID)
	if err != nil {
		return nil, err
	}

	var out []*DayStatus
	err = r.tm.WithinTx(ctx, func(ctx context.Context) error {
		out = make([]*DayStatus, 0, len(days))
		for _, day := range days {
			s, err := r.repo.SetStatus(ctx, driverID, day, status)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "driver schedule updated",
		log.String("driver", driverID), log.String("status", string(status)), log.Int("days", len(days)))
	return out, nil
}

// Schedule returns one status per day of rng; days without a stored status
// are StatusUnscheduled.
func (r *Resolver) Schedule(ctx context.Context, driverID string, rng calendar.Range) ([]*DayStatus, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	driverID, err := r.lookup(ctx, driverID)
	if err != nil {
		return nil, err
	}

	stored, err := r.repo.ListRange(ctx, driverID, rng)
	if err != nil {
		return nil, err
	}
	byDay := make(map[calendar.Day]*DayStatus, len(stored))
	for _, s := range stored {
		byDay[s.Day] = s
	}

	out := make([]*DayStatus, 0, rng.Len())
	for _, day := range rng.Days() {
		if s, ok := byDay[day]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, &DayStatus{DriverID: driverID, Day: day, Status: StatusUnscheduled})
	}
	return out, nil
}

// Assign books a driver for every day of rng on behalf of a reservation and
// returns the driver id. With preferred set only that driver is considered;
// otherwise the lowest id available on every day wins. It must run inside
// the reservation's transaction.
func (r *Resolver) Assign(ctx context.Context, rng calendar.Range, preferred *string, reservationID string) (string, error) {
	if preferred != nil {
		id, err := r.lookup(ctx, *preferred)
		if err != nil {
			return "", err
		}
		preferred = &id
	}

	days := rng.Days()
	locked, err := r.repo.LockAvailable(ctx, days, preferred)
	if err != nil {
		return "", err
	}

	var active []string
	if preferred == nil {
		if active, err = r.catalog.ListActiveIDs(ctx, catalog.KindDriver); err != nil {
			return "", err
		}
	}

	// locked is ordered by driver, so the first complete run is the lowest id.
	chosen := ""
	for i := 0; i < len(locked); {
		j := i
		for j < len(locked) && locked[j].DriverID == locked[i].DriverID {
			j++
		}
		id := locked[i].DriverID
		if j-i == len(days) && (preferred != nil || contains(active, id)) {
			chosen = id
			break
		}
		i = j
	}
	if chosen == "" {
		if preferred != nil {
			return "", ErrDriverNotAvailable
		}
		return "", ErrNoDriverAvailable
	}

	if err := r.repo.MarkBooked(ctx, chosen, days, reservationID); err != nil {
		return "", err
	}
	return chosen, nil
}

// ReleaseBooked returns the reservation's booked days to available.
// It must run inside the release transaction.
func (r *Resolver) ReleaseBooked(ctx context.Context, reservationID string) (int64, error) {
	return r.repo.ReleaseBooked(ctx, reservationID)
}

func (r *Resolver) lookup(ctx context.Context, driverID string) (string, error) {
	if _, err := uuid.Parse(driverID); err != nil {
		return "", ErrUnknownDriver
	}
	res, err := r.catalog.Lookup(ctx, catalog.KindDriver, driverID)
	if errors.Is(err, catalog.ErrUnknownResource) {
		return "", ErrUnknownDriver
	}
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

func contains(sorted []string, id string) bool {
	_, ok := slices.BinarySearch(sorted, id)
	return ok
}
