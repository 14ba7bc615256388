package engine

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/ttlcache"
)

// MemoryCache is the in process QueryCache shared by the workers of a run.
type MemoryCache struct {
	cache *ttlcache.Cache[entity.QueryKey, []entity.RawRecord]
}

func NewMemoryCache(clock clockwork.Clock) MemoryCache {
	return MemoryCache{
		cache: ttlcache.New[entity.QueryKey, []entity.RawRecord](clock),
	}
}

func (m MemoryCache) Get(_ context.Context, key entity.QueryKey) ([]entity.RawRecord, bool) {
	return m.cache.Get(key)
}

func (m MemoryCache) Put(_ context.Context, key entity.QueryKey, records []entity.RawRecord, ttl time.Duration) {
	m.cache.Put(key, records, ttl)
}

// StartSweeper purges expired entries every interval until ctx is done.
func (m MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	m.cache.StartSweeper(ctx, interval)
}

func (m MemoryCache) Clear() {
	m.cache.Clear()
}

func (m MemoryCache) Stats() ttlcache.Stats {
	return m.cache.Stats()
}
