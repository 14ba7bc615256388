package querycache

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
)

// Tiered reads the local cache first and falls back to a remote store. Remote
// failures are logged and behave as misses.
type Tiered struct {
	local  engine.QueryCache
	remote repo.QueryRecordStore

	// refillTTL bounds how long a remote hit stays in the local tier. A hit
	// never outlives the remote entry it was read from.
	refillTTL time.Duration

	logger *logr.Logger
}

var _ engine.QueryCache = Tiered{}

func NewTiered(local engine.QueryCache, remote repo.QueryRecordStore, refillTTL time.Duration) Tiered {
	return Tiered{
		local:     local,
		remote:    remote,
		refillTTL: refillTTL,
	}
}

func (t Tiered) WithLogger(logger logr.Logger) Tiered {
	t.logger = &logger

	return t
}

func (t Tiered) Get(ctx context.Context, key entity.QueryKey) ([]entity.RawRecord, bool) {
	records, found := t.local.Get(ctx, key)
	if found {
		return records, true
	}

	records, remaining, err := t.remote.GetRecords(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			t.logError(err, "Failed to read remote cache", "key", key.String())
		}

		return nil, false
	}

	t.local.Put(ctx, key, records, min(t.refillTTL, remaining))

	return records, true
}

func (t Tiered) Put(ctx context.Context, key entity.QueryKey, records []entity.RawRecord, ttl time.Duration) {
	t.local.Put(ctx, key, records, ttl)

	err := t.remote.WriteRecords(ctx, key, records, ttl)
	if err != nil {
		t.logError(err, "Failed to write remote cache", "key", key.String())
	}
}

func (t Tiered) logError(err error, msg string, keysAndValues ...any) {
	if t.logger == nil {
		return
	}

	t.logger.Error(err, msg, keysAndValues...)
}
