package factory

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo/querycache"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/ttlcache"
)

// CycleCaches hands out the query cache of each polling cycle. Unless persist
// is set every cycle gets an empty in memory cache and the remote store is
// not used. With persist, the remote store is shared by all cycles.
type CycleCaches struct {
	clock     clockwork.Clock
	remote    repo.QueryRecordStore
	refillTTL time.Duration
	persist   bool
	logger    logr.Logger

	mu      *sync.Mutex
	current *engine.MemoryCache
	retired *ttlcache.Stats
}

func NewCycleCaches(clock clockwork.Clock, remote repo.QueryRecordStore, refillTTL time.Duration, persist bool) CycleCaches {
	return CycleCaches{
		clock:     clock,
		remote:    remote,
		refillTTL: refillTTL,
		persist:   persist,
		logger:    logr.Discard(),
		mu:        &sync.Mutex{},
		retired:   &ttlcache.Stats{},
	}
}

func (c CycleCaches) WithLogger(logger logr.Logger) *CycleCaches {
	c.logger = logger

	return &c
}

// Next returns the cache for the next cycle.
func (c *CycleCaches) Next() engine.QueryCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || !c.persist {
		if c.current != nil {
			stats := c.current.Stats()
			c.retired.Hits += stats.Hits
			c.retired.Misses += stats.Misses
			c.retired.Evictions += stats.Evictions
		}

		memory := engine.NewMemoryCache(c.clock)
		c.current = &memory
	}

	if c.remote == nil || !c.persist {
		return *c.current
	}

	return querycache.NewTiered(*c.current, c.remote, c.refillTTL).WithLogger(c.logger)
}

// StartSweeper purges expired entries of the persisted cache. Caches dropped
// at the end of a cycle need no sweeping.
func (c *CycleCaches) StartSweeper(ctx context.Context, interval time.Duration) {
	if !c.persist || interval <= 0 {
		return
	}

	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return
	}

	current.StartSweeper(ctx, interval)
}

// Stats adds up the counters of every cache handed out so far. Size is the
// one of the current cache.
func (c *CycleCaches) Stats() ttlcache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := *c.retired

	if c.current != nil {
		stats := c.current.Stats()
		ret.Hits += stats.Hits
		ret.Misses += stats.Misses
		ret.Evictions += stats.Evictions
		ret.Size = stats.Size
	}

	return ret
}
