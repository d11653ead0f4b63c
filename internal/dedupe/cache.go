// ABOUTME: Thread-safe TTL cache for coalescing repeated events
// ABOUTME: The file watcher uses it to hold back (path, change) events until they go quiet

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached key.
type entry struct {
	timestamp time.Time
	element   *list.Element
}

// Option configures a Cache.
type Option func(*settings)

type settings struct {
	cleanupInterval time.Duration
	now             func() time.Time
}

// WithCleanupInterval sets how often expired entries are swept. Zero disables
// the background sweep.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *settings) { s.cleanupInterval = d }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Cache provides a thread-safe, TTL-based, size-limited set of recently seen
// keys. Insertion order is kept in a linked list for O(1) eviction.
type Cache[K comparable] struct {
	mu      sync.Mutex
	seen    map[K]*entry
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache that remembers keys for ttl, holding at most maxSize.
func New[K comparable](ttl time.Duration, maxSize int, opts ...Option) *Cache[K] {
	s := settings{cleanupInterval: time.Minute, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	c := &Cache[K]{
		seen:    make(map[K]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     s.now,
		done:    make(chan struct{}),
	}
	if s.cleanupInterval > 0 {
		go c.cleanup(s.cleanupInterval)
	}
	return c
}

// Check returns true if the key has been seen within the TTL.
func (c *Cache[K]) Check(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[key]
	return ok && c.now().Sub(e.timestamp) < c.ttl
}

// CheckAndMark atomically checks whether key was seen within the TTL and
// marks it if not. Returns true for a duplicate.
func (c *Cache[K]) CheckAndMark(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok && c.now().Sub(e.timestamp) < c.ttl {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records key as seen now, evicting the oldest entry when full.
func (c *Cache[K]) Mark(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Forget drops key so the next occurrence is not a duplicate.
func (c *Cache[K]) Forget(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		c.order.Remove(e.element)
		delete(c.seen, key)
	}
}

// Len returns the number of remembered keys, expired or not.
func (c *Cache[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// markLocked must be called with mu held.
func (c *Cache[K]) markLocked(key K) {
	now := c.now()

	if e, exists := c.seen[key]; exists {
		e.timestamp = now
		c.order.MoveToBack(e.element)
		return
	}

	if c.maxSize > 0 && len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{timestamp: now, element: elem}
}

// evictOldest must be called with mu held.
func (c *Cache[K]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(K)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache[K]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes all expired entries.
func (c *Cache[K]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.seen {
		if now.Sub(e.timestamp) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache[K]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
