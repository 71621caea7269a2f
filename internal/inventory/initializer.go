package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// DefaultHorizonDays is how far past today InitRange seeds when no end is given.
const DefaultHorizonDays = 90

// ResourceLookup resolves an active catalog resource.
type ResourceLookup interface {
	Lookup(ctx context.Context, kind catalog.Kind, id string) (*catalog.Resource, error)
}

type Options struct {
	HorizonDays int
	Location    *time.Location
}

// Initializer seeds and overrides daily capacity. Every call is one
// transaction: either every requested day is written or none is.
type Initializer struct {
	tm        db.TxManager
	repo      capacity.Repository
	resources ResourceLookup
	cache     availability.Invalidator
	horizon   int
	loc       *time.Location
}

func NewInitializer(tm db.TxManager, repo capacity.Repository, resources ResourceLookup, cache availability.Invalidator, opts Options) *Initializer {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = DefaultHorizonDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Initializer{
		tm:        tm,
		repo:      repo,
		resources: resources,
		cache:     cache,
		horizon:   opts.HorizonDays,
		loc:       opts.Location,
	}
}

type InitRangeRequest struct {
	Key   capacity.Key
	Start calendar.Day
	// End is exclusive. Nil means today plus the configured horizon.
	End *calendar.Day
	// Total nil falls back to the catalog's default units.
	Total *int
	Price *decimal.Decimal
}

type InitRangeResult struct {
	Range   calendar.Range
	Records []*capacity.Record
}

// InitRange sets the total of every day in the range. Booked units are left
// alone, so repeating a call is harmless.
func (s *Initializer) InitRange(ctx context.Context, req InitRangeRequest) (*InitRangeResult, error) {
	if !req.Key.Kind.Valid() {
		return nil, capacity.ErrInvalidKind
	}
	end := calendar.Today(s.loc).AddDays(s.horizon)
	if req.End != nil {
		end = *req.End
	}
	rng := calendar.NewRange(req.Start, end)
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if req.Total != nil {
		if err := capacity.ValidateTotal(*req.Total, req.Price); err != nil {
			return nil, err
		}
	} else if err := capacity.ValidatePrice(req.Price); err != nil {
		return nil, err
	}

	res, err := s.resources.Lookup(ctx, catalog.Kind(req.Key.Kind), req.Key.ResourceID)
	if err != nil {
		return nil, err
	}
	key := capacity.Key{Kind: req.Key.Kind, ResourceID: res.ID}
	total := res.DefaultUnits
	if req.Total != nil {
		total = *req.Total
	}

	records, err := s.upsertDays(ctx, key, rng.Days(), func(*capacity.Record) int { return total }, req.Price)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "capacity initialized",
		log.Stringer("resource", key), log.Stringer("range", rng), log.Int("total", total))
	return &InitRangeResult{Range: rng, Records: records}, nil
}

// UpdateDay overrides one day. A nil total keeps the stored total, which is
// zero for a day never initialized.
func (s *Initializer) UpdateDay(ctx context.Context, key capacity.Key, day calendar.Day, total *int, price *decimal.Decimal) (*capacity.Record, error) {
	if err := s.validate(key, total, price); err != nil {
		return nil, err
	}
	key, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	records, err := s.upsertDays(ctx, key, []calendar.Day{day}, keepOr(total), price)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// BatchUpdate applies UpdateDay semantics to an irregular set of days.
func (s *Initializer) BatchUpdate(ctx context.Context, key capacity.Key, days []calendar.Day, total *int, price *decimal.Decimal) ([]*capacity.Record, error) {
	if err := s.validate(key, total, price); err != nil {
		return nil, err
	}
	days, err := calendar.Normalize(days)
	if err != nil {
		return nil, err
	}
	key, err = s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	return s.upsertDays(ctx, key, days, keepOr(total), price)
}

func (s *Initializer) validate(key capacity.Key, total *int, price *decimal.Decimal) error {
	if !key.Kind.Valid() {
		return capacity.ErrInvalidKind
	}
	if total != nil && *total < 0 {
		return capacity.ErrNegativeUnits
	}
	return capacity.ValidatePrice(price)
}

func (s *Initializer) lookup(ctx context.Context, key capacity.Key) (capacity.Key, error) {
	res, err := s.resources.Lookup(ctx, catalog.Kind(key.Kind), key.ResourceID)
	if err != nil {
		return key, err
	}
	return capacity.Key{Kind: key.Kind, ResourceID: res.ID}, nil
}

func keepOr(total *int) func(*capacity.Record) int {
	return func(cur *capacity.Record) int {
		if total != nil {
			return *total
		}
		if cur == nil {
			return 0
		}
		return cur.TotalUnits
	}
}

// upsertDays writes every day inside one transaction. Conflicting days are
// collected so the caller learns all of them, then the whole write is undone.
func (s *Initializer) upsertDays(ctx context.Context, key capacity.Key, days []calendar.Day, totalFor func(*capacity.Record) int, price *decimal.Decimal) ([]*capacity.Record, error) {
	var records []*capacity.Record
	err := s.tm.WithinTx(ctx, func(ctx context.Context) error {
		records = make([]*capacity.Record, 0, len(days))

		current, err := s.repo.LockDays(ctx, key, days)
		if err != nil {
			return err
		}
		byDay := capacity.ByDay(current)

		var conflicts []calendar.Day
		for _, day := range days {
			rec, err := s.repo.UpsertTotal(ctx, key, day, totalFor(byDay[day]), price)
			if errors.Is(err, capacity.ErrCapacityConflict) {
				conflicts = append(conflicts, day)
				continue
			}
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		if len(conflicts) > 0 {
			return &ConflictError{Dates: conflicts}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, key)
	return records, nil
}
