package availability

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

var ErrInvalidResourceID = apperror.New(http.StatusBadRequest, "resource ids must be UUIDs")

// ResourceLister supplies the active resources of a kind when a calendar
// request does not name them.
type ResourceLister interface {
	ListActiveIDs(ctx context.Context, kind catalog.Kind) ([]string, error)
}

// Calculator renders availability calendars. It only reads.
type Calculator struct {
	repo      capacity.Repository
	resources ResourceLister
	cache     Cache
}

func NewCalculator(repo capacity.Repository, resources ResourceLister, cache Cache) *Calculator {
	return &Calculator{repo: repo, resources: resources, cache: cache}
}

// ComputeRange returns one entry per day of rng, in order.
// Days without a record are reported as TierUnset.
func (c *Calculator) ComputeRange(ctx context.Context, key capacity.Key, rng calendar.Range) ([]DayAvailability, error) {
	if !key.Kind.Valid() {
		return nil, capacity.ErrInvalidKind
	}
	id, err := uuid.Parse(key.ResourceID)
	if err != nil {
		return nil, ErrInvalidResourceID
	}
	key.ResourceID = id.String()
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	records, err := c.load(ctx, key, rng)
	if err != nil {
		return nil, err
	}

	byDay := capacity.ByDay(records)
	out := make([]DayAvailability, 0, rng.Len())
	for _, day := range rng.Days() {
		out = append(out, ComputeDay(day, byDay[day]))
	}
	return out, nil
}

// ComputeAggregateRange returns one ratio-based summary per day of rng across
// resourceIDs. An empty resourceIDs means every active resource of kind.
func (c *Calculator) ComputeAggregateRange(ctx context.Context, kind capacity.Kind, resourceIDs []string, rng calendar.Range) ([]Aggregate, error) {
	if !kind.Valid() {
		return nil, capacity.ErrInvalidKind
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	ids, err := c.resolveIDs(ctx, kind, resourceIDs)
	if err != nil {
		return nil, err
	}

	// Serve what we can from the cache, then load all misses in one query.
	perDay := make(map[calendar.Day][]*capacity.Record, rng.Len())
	var misses []string
	gens := make(map[string]int64)
	for _, id := range ids {
		key := capacity.Key{Kind: kind, ResourceID: id}
		if records, ok := c.cache.Get(ctx, key, rng); ok {
			for _, r := range records {
				perDay[r.Day] = append(perDay[r.Day], r)
			}
			continue
		}
		gens[id] = c.cache.Generation(ctx, key)
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		loaded, err := c.repo.ListForResources(ctx, kind, misses, rng)
		if err != nil {
			return nil, err
		}
		byResource := make(map[string][]*capacity.Record, len(misses))
		for _, r := range loaded {
			perDay[r.Day] = append(perDay[r.Day], r)
			byResource[r.ResourceID] = append(byResource[r.ResourceID], r)
		}
		for _, id := range misses {
			key := capacity.Key{Kind: kind, ResourceID: id}
			c.cache.Set(ctx, key, rng, gens[id], byResource[id])
		}
	}

	out := make([]Aggregate, 0, rng.Len())
	for _, day := range rng.Days() {
		out = append(out, ComputeAggregate(day, perDay[day]))
	}
	return out, nil
}

func (c *Calculator) load(ctx context.Context, key capacity.Key, rng calendar.Range) ([]*capacity.Record, error) {
	if records, ok := c.cache.Get(ctx, key, rng); ok {
		return records, nil
	}

	// Read the generation before the rows: a mutation landing in between
	// bumps it and the entry written below is never served.
	gen := c.cache.Generation(ctx, key)
	records, err := c.repo.ListRange(ctx, key, rng)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, rng, gen, records)
	return records, nil
}

func (c *Calculator) resolveIDs(ctx context.Context, kind capacity.Kind, resourceIDs []string) ([]string, error) {
	if len(resourceIDs) == 0 {
		return c.resources.ListActiveIDs(ctx, catalog.Kind(kind))
	}

	ids := make([]string, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, ErrInvalidResourceID
		}
		ids = append(ids, parsed.String())
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
