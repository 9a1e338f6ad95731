// Package cache provides a redis-backed read-through cache for single
// entity fetches. Caching is strictly an optimization: a nil *Cache is a
// valid no-op instance, and every error degrades to a miss so the store
// remains the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache caches serialized entities under kind-prefixed keys
// ("user:<id>", "task:<id>").
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	evicted atomic.Uint64
	errors  atomic.Uint64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Evicted   uint64  `json:"evicted"`
	Errors    uint64  `json:"errors"`
	HitRate   float64 `json:"hit_rate"`
	TotalGets uint64  `json:"total_gets"`
}

// New creates a cache over an existing redis client.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Key builds the cache key for an entity.
func Key(kind, id string) string {
	return kind + ":" + id
}

// Get loads an entity into dest, reporting whether it was present. A nil
// cache and every redis error report a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return false
	}
	if err != nil {
		c.errors.Add(1)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.errors.Add(1)
		return false
	}
	c.hits.Add(1)
	return true
}

// Set stores an entity under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}
	c.sets.Add(1)
	return nil
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.prefix + key
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	c.evicted.Add(uint64(len(keys)))
	return nil
}

// InvalidateKind removes every key of an entity kind. Used when a cascade
// touches a task set that is only known to the store (filter-based bulk
// updates).
func (c *Cache) InvalidateKind(ctx context.Context, kind string) error {
	if c == nil {
		return nil
	}
	pattern := c.prefix + kind + ":*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.errors.Add(1)
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.errors.Add(1)
				return fmt.Errorf("cache delete error: %w", err)
			}
			c.evicted.Add(uint64(len(keys)))
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Snapshot returns the current counters.
func (c *Cache) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Sets:      c.sets.Load(),
		Evicted:   c.evicted.Load(),
		Errors:    c.errors.Load(),
		HitRate:   rate,
		TotalGets: total,
	}
}

// Reset zeroes the counters.
func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.evicted.Store(0)
	c.errors.Store(0)
}

// Ping checks the redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
