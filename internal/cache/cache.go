// Package cache provides an in-memory TTL key/value store shared by the
// compliance checker and validator within one process. Expiry is logical: a
// lookup past the TTL is a miss whether or not the entry has been physically
// evicted yet.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL applies when Set is called with a zero or negative ttl.
const DefaultTTL = time.Hour

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Stats is a point-in-time snapshot of cache traffic.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	Sets     uint64  `json:"sets"`
	LiveKeys int     `json:"live_keys"`
	HitRate  float64 `json:"hit_rate"`
}

// Cache is a concurrency-safe TTL map. The zero value is not usable; construct
// with New.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64

	nowFunc func() time.Time // injectable for tests
}

// New builds an empty cache. A non-positive defaultTTL falls back to
// DefaultTTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		nowFunc:    time.Now,
	}
}

// Set stores value under key. A zero or negative ttl uses the cache default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.nowFunc()

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
	c.mu.Unlock()

	c.sets.Add(1)
}

// Get returns the live value for key. Expired entries are misses and are
// evicted on the way out.
func (c *Cache) Get(key string) (any, bool) {
	now := c.nowFunc()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if e.expired(now) {
		c.evictIfExpired(key, now)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Has reports whether key holds a live value. It counts toward hit/miss
// statistics the same way Get does.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes the given keys and returns how many live entries were
// actually removed.
func (c *Cache) Delete(keys ...string) int {
	now := c.nowFunc()
	removed := 0

	c.mu.Lock()
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		delete(c.entries, key)
		if !e.expired(now) {
			removed++
		}
	}
	c.mu.Unlock()

	return removed
}

// Clear drops every entry. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	now := c.nowFunc()

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Stats snapshots the traffic counters and live key count.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Sets:     c.sets.Load(),
		LiveKeys: c.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// DeleteExpired sweeps entries whose TTL has elapsed and returns how many
// were reclaimed. Logical expiry does not depend on this being called.
func (c *Cache) DeleteExpired() int {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Janitor sweeps expired entries every interval until ctx is cancelled.
func (c *Cache) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log := zap.L().With(zap.String("component", "cache"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.DeleteExpired(); n > 0 {
				log.Debug("swept expired entries", zap.Int("count", n))
			}
		}
	}
}

// evictIfExpired drops key only if it still holds the same expired entry,
// so a concurrent overwrite is never lost.
func (c *Cache) evictIfExpired(key string, now time.Time) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.expired(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}
