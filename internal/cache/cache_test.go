package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives nowFunc so expiry tests never sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(defaultTTL time.Duration) (*Cache, *fakeClock) {
	clock := newFakeClock()
	c := New(defaultTTL)
	c.nowFunc = clock.Now
	return c, clock
}

func TestSetGet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(time.Hour)
	c.Set("compliance:acme.com", "allowed", 0)

	v, ok := c.Get("compliance:acme.com")
	require.True(t, ok)
	assert.Equal(t, "allowed", v)
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(time.Hour)
	v, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestExpiryIsLogical(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Hour)
	c.Set("k", 42, 10*time.Minute)

	clock.Advance(9 * time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok)

	// No sweep has run, yet the lookup must behave as absent.
	clock.Advance(2 * time.Minute)
	v, ok := c.Get("k")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestDefaultTTLApplied(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(30 * time.Minute)
	c.Set("k", "v", 0)

	clock.Advance(29 * time.Minute)
	assert.True(t, c.Has("k"))

	clock.Advance(2 * time.Minute)
	assert.False(t, c.Has("k"))
}

func TestDeleteReturnsLiveCount(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Hour)
	c.Set("live", 1, time.Hour)
	c.Set("dead", 2, time.Minute)
	clock.Advance(5 * time.Minute)

	removed := c.Delete("live", "dead", "absent")
	assert.Equal(t, 1, removed, "only the unexpired entry counts")
	assert.False(t, c.Has("live"))
}

func TestClearPreservesCounters(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(time.Hour)
	c.Set("a", 1, time.Hour)
	c.Get("a")
	c.Get("missing")

	c.Clear()
	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(1), s.Sets)
	assert.Zero(t, s.LiveKeys)
}

func TestStats(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Hour)
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Minute)

	c.Get("a")     // hit
	c.Has("a")     // hit
	c.Get("nope")  // miss
	clock.Advance(2 * time.Minute)
	c.Get("b") // expired -> miss

	s := c.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
	assert.Equal(t, uint64(2), s.Sets)
	assert.Equal(t, 1, s.LiveKeys)
	assert.InDelta(t, 0.5, s.HitRate, 0.0001)
}

func TestStatsEmptyCache(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(time.Hour)
	s := c.Stats()
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.HitRate)
}

func TestDeleteExpired(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Hour)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Hour)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 2, c.DeleteExpired())
	assert.Equal(t, 1, c.Len())
	assert.Zero(t, c.DeleteExpired())
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Hour)
	c.Set("k", "old", time.Minute)
	clock.Advance(50 * time.Second)
	c.Set("k", "new", time.Minute)
	clock.Advance(30 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + n))
				c.Set(key, j, time.Hour)
				c.Get(key)
				c.Has("shared")
				c.Len()
			}
		}(i)
	}
	wg.Wait()

	s := c.Stats()
	assert.Equal(t, uint64(8*200), s.Sets)
	assert.Equal(t, uint64(8*200*2), s.Hits+s.Misses, "every Get and Has counted once")
}
