package availability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
)

// Cache holds recently read capacity ranges for calendar rendering.
// Entries are stamped with a per-resource generation; Invalidate bumps the
// generation so every earlier entry becomes unreachable at once, including
// entries written by readers that raced with the mutation.
//
// The ledger never reads through the cache.
type Cache interface {
	Get(ctx context.Context, key capacity.Key, rng calendar.Range) ([]*capacity.Record, bool)
	Set(ctx context.Context, key capacity.Key, rng calendar.Range, gen int64, records []*capacity.Record)
	// Generation returns the stamp a reader must pass to Set after loading.
	Generation(ctx context.Context, key capacity.Key) int64
	Invalidate(ctx context.Context, key capacity.Key)
}

// Invalidator is the write-side view handed to mutating components.
type Invalidator interface {
	Invalidate(ctx context.Context, key capacity.Key)
}

func entryKey(key capacity.Key, rng calendar.Range, gen int64) string {
	return fmt.Sprintf("avail:%s:%d:%s", key, gen, rng)
}

func generationKey(key capacity.Key) string {
	return "avail:gen:" + key.String()
}

type cachedRecord struct {
	Day    calendar.Day     `json:"d"`
	Total  int              `json:"t"`
	Booked int              `json:"b"`
	Price  *decimal.Decimal `json:"p,omitempty"`
}

func encodeRecords(records []*capacity.Record) ([]byte, error) {
	out := make([]cachedRecord, len(records))
	for i, r := range records {
		out[i] = cachedRecord{Day: r.Day, Total: r.TotalUnits, Booked: r.BookedUnits, Price: r.PriceOverride}
	}
	return json.Marshal(out)
}

func decodeRecords(key capacity.Key, b []byte) ([]*capacity.Record, error) {
	var in []cachedRecord
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	out := make([]*capacity.Record, len(in))
	for i, c := range in {
		out[i] = &capacity.Record{Key: key, Day: c.Day, TotalUnits: c.Total, BookedUnits: c.Booked, PriceOverride: c.Price}
	}
	return out, nil
}

const sweepThreshold = 1024

type memoryEntry struct {
	payload []byte
	expires time.Time
}

// memoryCache is the single-process Cache. Entries are stored encoded so
// callers never share record pointers.
type memoryCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	now         func() time.Time
	entries     map[string]memoryEntry
	generations map[capacity.Key]int64
}

func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{
		ttl:         ttl,
		now:         time.Now,
		entries:     make(map[string]memoryEntry),
		generations: make(map[capacity.Key]int64),
	}
}

func (c *memoryCache) Get(ctx context.Context, key capacity.Key, rng calendar.Range) ([]*capacity.Record, bool) {
	c.mu.Lock()
	k := entryKey(key, rng, c.generations[key])
	e, ok := c.entries[k]
	if ok && !c.now().Before(e.expires) {
		delete(c.entries, k)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	records, err := decodeRecords(key, e.payload)
	if err != nil {
		return nil, false
	}
	return records, true
}

func (c *memoryCache) Set(ctx context.Context, key capacity.Key, rng calendar.Range, gen int64, records []*capacity.Record) {
	if c.ttl <= 0 {
		return
	}
	payload, err := encodeRecords(records)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generations[key] {
		return
	}
	if len(c.entries) >= sweepThreshold {
		c.sweep()
	}
	c.entries[entryKey(key, rng, gen)] = memoryEntry{payload: payload, expires: c.now().Add(c.ttl)}
}

func (c *memoryCache) Generation(ctx context.Context, key capacity.Key) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

func (c *memoryCache) Invalidate(ctx context.Context, key capacity.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[key]++
}

// sweep drops expired entries. Callers hold mu.
func (c *memoryCache) sweep() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}
