// Package cache implements the in-memory TTL cache shared by every schedule
// accessor. Entries expire lazily on read; there is no size bound.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"departures.metraboard.org/internal/clock"
	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/utils"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a thread-safe keyed store with per-entry expiry.
// Concurrent misses on the same key share a single computation.
type Cache struct {
	mu    sync.RWMutex
	data  map[string]entry
	clock clock.Clock
	group singleflight.Group
}

// New returns an empty cache that reads time from c.
func New(c clock.Clock) *Cache {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Cache{
		data:  make(map[string]entry),
		clock: c,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Put stores value under key, replacing any existing entry and resetting its
// expiry to now + ttl.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Memoize returns the value cached under keyBase and the canonical encoding
// of args, running compute on a miss and storing its result for ttl.
//
// A nil args slice yields the fixed key keyBase. Argument order and
// duplicates do not affect the key. Only one compute runs per key at a time;
// concurrent callers wait for it and share its result. Errors from compute
// are returned to every waiting caller and are never stored.
func (c *Cache) Memoize(ctx context.Context, keyBase string, args []string, ttl time.Duration, compute func(context.Context) (any, error)) (any, error) {
	key := utils.CacheKey(keyBase, args)
	if v, ok := c.Get(key); ok {
		metrics.CacheRequests.WithLabelValues(keyBase, "hit").Inc()
		return v, nil
	}
	metrics.CacheRequests.WithLabelValues(keyBase, "miss").Inc()

	// The shared computation outlives any single caller; callers that give up
	// stop waiting below instead.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have filled the entry between Get and DoChan.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute(flightCtx)
		if err != nil {
			metrics.CacheComputeErrors.WithLabelValues(keyBase).Inc()
			return nil, err
		}
		c.Put(key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Memoized is the typed form of Cache.Memoize.
func Memoized[T any](ctx context.Context, c *Cache, keyBase string, args []string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Memoize(ctx, keyBase, args, ttl, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q holds %T, want %T", keyBase, v, zero)
	}
	return typed, nil
}
