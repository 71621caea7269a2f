package availability

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// generationTTL keeps generation counters well beyond any entry TTL so an
// expired counter can never resurrect an old generation's entries.
const generationTTL = 7 * 24 * time.Hour

// redisCache shares calendar reads between server replicas.
// Redis failures degrade to cache misses; they never fail a read.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL, falling back to a bare host:port address.
func NewRedisClient(url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return redis.NewClient(opts)
}

func (c *redisCache) Generation(ctx context.Context, key capacity.Key) int64 {
	gen, err := c.client.Get(ctx, generationKey(key)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn(ctx, "availability cache generation read failed", log.Err("err", err))
			// Unknown generation: use one no writer will ever stamp.
			return -1
		}
		return 0
	}
	return gen
}

func (c *redisCache) Get(ctx context.Context, key capacity.Key, rng calendar.Range) ([]*capacity.Record, bool) {
	gen := c.Generation(ctx, key)
	if gen < 0 {
		return nil, false
	}

	b, err := c.client.Get(ctx, entryKey(key, rng, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn(ctx, "availability cache read failed", log.Err("err", err))
		}
		return nil, false
	}

	records, err := decodeRecords(key, b)
	if err != nil {
		log.Warn(ctx, "availability cache entry corrupt", log.Err("err", err))
		return nil, false
	}
	return records, true
}

func (c *redisCache) Set(ctx context.Context, key capacity.Key, rng calendar.Range, gen int64, records []*capacity.Record) {
	if c.ttl <= 0 || gen < 0 {
		return
	}
	payload, err := encodeRecords(records)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, entryKey(key, rng, gen), payload, c.ttl).Err(); err != nil {
		log.Warn(ctx, "availability cache write failed", log.Err("err", err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context, key capacity.Key) {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey(key))
	pipe.Expire(ctx, generationKey(key), generationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		// Entries still expire on their own TTL.
		log.Error(ctx, "availability cache invalidation failed",
			log.Stringer("resource", key), log.Err("err", err))
	}
}
