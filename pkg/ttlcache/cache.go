package ttlcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.insertedAt.Add(e.ttl))
}

type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// Cache is an unbounded map whose entries expire ttl after insertion.
// Expired entries are never returned. They are purged on lookup or by Sweep.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	clock   clockwork.Clock

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	logger *logr.Logger
}

func New[K comparable, V any](clock clockwork.Clock) *Cache[K, V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		clock:   clock,
	}
}

func (c *Cache[K, V]) WithLogger(logger logr.Logger) *Cache[K, V] {
	c.logger = &logger

	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	if e.expired(now) {
		c.mu.Lock()
		// Entry may have been replaced since the read lock was released.
		current, stillThere := c.entries[key]
		if stillThere && current.expired(now) {
			delete(c.entries, key)
			c.evictions.Add(1)
		}
		c.mu.Unlock()

		if stillThere && !current.expired(now) {
			c.hits.Add(1)

			return current.value, true
		}

		c.misses.Add(1)

		var zero V

		return zero, false
	}

	c.hits.Add(1)

	return e.value, true
}

// Put stores value for ttl, replacing any previous entry.
// A non positive ttl stores nothing.
func (c *Cache[K, V]) Put(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	e := entry[V]{
		value:      value,
		insertedAt: c.clock.Now(),
		ttl:        ttl,
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not purged yet.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Sweep purges every expired entry and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	now := c.clock.Now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(uint64(removed))

	return removed
}

// StartSweeper calls Sweep every interval until ctx is done.
func (c *Cache[K, V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := c.clock.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				removed := c.Sweep()
				if removed > 0 {
					c.logInfo(2, "Expired cache entries purged", "count", removed)
				}
			}
		}
	}()
}

func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
	}
}

func (c *Cache[K, V]) logInfo(level int, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.V(level).Info(msg, keysAndValues...)
}
