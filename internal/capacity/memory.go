package capacity

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/db"
)

type memoryKey struct {
	kind Kind
	id   string
	day  calendar.Day
}

// memoryRepository keeps records in process. Every statement runs under
// the shared LocalTxManager lock and journals its undo step.
type memoryRepository struct {
	tm      *db.LocalTxManager
	records map[memoryKey]*Record
}

func NewMemoryRepository(tm *db.LocalTxManager) Repository {
	return &memoryRepository{
		tm:      tm,
		records: make(map[memoryKey]*Record),
	}
}

func keyOf(key Key, day calendar.Day) memoryKey {
	return memoryKey{kind: key.Kind, id: key.ResourceID, day: day}
}

func clone(r *Record) *Record {
	c := *r
	if r.PriceOverride != nil {
		p := *r.PriceOverride
		c.PriceOverride = &p
	}
	return &c
}

func sortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Day != records[j].Day {
			return records[i].Day < records[j].Day
		}
		return records[i].ResourceID < records[j].ResourceID
	})
}

// put stores rec and journals how to restore the previous state.
func (m *memoryRepository) put(ctx context.Context, k memoryKey, rec *Record) {
	prev, existed := m.records[k]
	m.records[k] = rec
	db.OnRollback(ctx, func() {
		if existed {
			m.records[k] = prev
		} else {
			delete(m.records, k)
		}
	})
}

func (m *memoryRepository) Get(ctx context.Context, key Key, day calendar.Day) (*Record, error) {
	defer m.tm.Lock(ctx)()

	rec, ok := m.records[keyOf(key, day)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return clone(rec), nil
}

func (m *memoryRepository) ListRange(ctx context.Context, key Key, rng calendar.Range) ([]*Record, error) {
	defer m.tm.Lock(ctx)()

	var out []*Record
	for _, day := range rng.Days() {
		if rec, ok := m.records[keyOf(key, day)]; ok {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (m *memoryRepository) ListForResources(ctx context.Context, kind Kind, resourceIDs []string, rng calendar.Range) ([]*Record, error) {
	defer m.tm.Lock(ctx)()

	var out []*Record
	for _, id := range resourceIDs {
		for _, day := range rng.Days() {
			if rec, ok := m.records[memoryKey{kind: kind, id: id, day: day}]; ok {
				out = append(out, clone(rec))
			}
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *memoryRepository) LockDays(ctx context.Context, key Key, days []calendar.Day) ([]*Record, error) {
	defer m.tm.Lock(ctx)()

	var out []*Record
	for _, day := range days {
		if rec, ok := m.records[keyOf(key, day)]; ok {
			out = append(out, clone(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *memoryRepository) UpsertTotal(ctx context.Context, key Key, day calendar.Day, total int, price *decimal.Decimal) (*Record, error) {
	defer m.tm.Lock(ctx)()

	k := keyOf(key, day)
	next := &Record{Key: key, Day: day}
	if cur, ok := m.records[k]; ok {
		if cur.BookedUnits > total {
			return nil, ErrCapacityConflict
		}
		next = clone(cur)
	}
	next.TotalUnits = total
	if price != nil {
		p := *price
		next.PriceOverride = &p
	}
	next.UpdatedAt = time.Now().UTC()

	m.put(ctx, k, next)
	return clone(next), nil
}

func (m *memoryRepository) AdjustBooked(ctx context.Context, key Key, day calendar.Day, delta int) (*Record, error) {
	defer m.tm.Lock(ctx)()

	k := keyOf(key, day)
	cur, ok := m.records[k]
	if !ok {
		return nil, ErrCapacityExceeded
	}
	booked := cur.BookedUnits + delta
	if booked < 0 || booked > cur.TotalUnits {
		return nil, ErrCapacityExceeded
	}

	next := clone(cur)
	next.BookedUnits = booked
	next.UpdatedAt = time.Now().UTC()
	m.put(ctx, k, next)
	return clone(next), nil
}

func (m *memoryRepository) DeleteUnbookedBefore(ctx context.Context, key Key, cutoff calendar.Day) (int64, error) {
	defer m.tm.Lock(ctx)()

	var removed int64
	for k, rec := range m.records {
		if k.kind != key.Kind || k.id != key.ResourceID {
			continue
		}
		if rec.Day.Before(cutoff) && rec.BookedUnits == 0 {
			delete(m.records, k)
			db.OnRollback(ctx, func() { m.records[k] = rec })
			removed++
		}
	}
	return removed, nil
}
