// ABOUTME: Tests for the dedupe cache used to coalesce repeated events
// ABOUTME: Validates TTL expiration, size limits, eviction, sweeping and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New[string](ttl, maxSize, WithClock(clock.Now), WithCleanupInterval(0)), clock
}

func TestCache_Check_NotSeen(t *testing.T) {
	cache, _ := newTestCache(time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Check("never-seen-key"))
}

func TestCache_Check_Expired(t *testing.T) {
	cache, clock := newTestCache(50*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("expiring-key")
	assert.True(t, cache.Check("expiring-key"))

	clock.Advance(50 * time.Millisecond)
	assert.False(t, cache.Check("expiring-key"))
}

func TestCache_CheckAndMark(t *testing.T) {
	cache, clock := newTestCache(50*time.Millisecond, 100)
	defer cache.Close()

	// First occurrence is new, second within the window is a duplicate
	assert.False(t, cache.CheckAndMark("config.toml|modified"))
	assert.True(t, cache.CheckAndMark("config.toml|modified"))

	clock.Advance(60 * time.Millisecond)
	assert.False(t, cache.CheckAndMark("config.toml|modified"), "expired key is new again")
}

func TestCache_Mark_UpdatesTimestamp(t *testing.T) {
	cache, clock := newTestCache(50*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("refresh-key")
	clock.Advance(30 * time.Millisecond)
	cache.Mark("refresh-key")
	clock.Advance(30 * time.Millisecond)

	// Still present because the second mark refreshed it
	assert.True(t, cache.Check("refresh-key"))
}

func TestCache_Eviction(t *testing.T) {
	cache, clock := newTestCache(time.Minute, 3)
	defer cache.Close()

	for i := 1; i <= 3; i++ {
		cache.Mark(fmt.Sprintf("key-%d", i))
		clock.Advance(time.Millisecond)
	}
	cache.Mark("key-4")

	assert.False(t, cache.Check("key-1"), "oldest key should be evicted")
	assert.True(t, cache.Check("key-2"))
	assert.True(t, cache.Check("key-3"))
	assert.True(t, cache.Check("key-4"))
	assert.Equal(t, 3, cache.Len())
}

func TestCache_Forget(t *testing.T) {
	cache, _ := newTestCache(time.Minute, 10)
	defer cache.Close()

	cache.Mark("k")
	cache.Forget("k")
	cache.Forget("unknown")

	assert.False(t, cache.Check("k"))
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Sweep(t *testing.T) {
	cache, clock := newTestCache(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("sweep-1")
	cache.Mark("sweep-2")
	clock.Advance(5 * time.Millisecond)
	cache.Mark("sweep-3")
	clock.Advance(5 * time.Millisecond)

	cache.sweep()

	assert.Equal(t, 1, cache.Len(), "only the fresh entry survives")
	assert.True(t, cache.Check("sweep-3"))
}

func TestCache_StructKeys(t *testing.T) {
	type event struct {
		path string
		op   int
	}
	cache := New[event](time.Minute, 10, WithCleanupInterval(0))
	defer cache.Close()

	assert.False(t, cache.CheckAndMark(event{"a", 1}))
	assert.False(t, cache.CheckAndMark(event{"a", 2}))
	assert.True(t, cache.CheckAndMark(event{"a", 1}))
}

func TestCache_Concurrent(t *testing.T) {
	cache := New[string](5*time.Minute, 1000)
	defer cache.Close()

	const numGoroutines = 100
	const opsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d-%d", id%26, j%10)
				cache.CheckAndMark(key)
				cache.Check(key)
			}
		}(i)
	}
	wg.Wait()

	cache.Mark("final-key")
	assert.True(t, cache.Check("final-key"))
}

func TestCache_Close(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	cache.Mark("before-close")

	cache.Close()
	cache.Close()

	// Still usable for lookups after close
	assert.True(t, cache.Check("before-close"))
}
