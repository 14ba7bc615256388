package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
)

const (
	categoryInternalError     = "valkey_internal_error"
	categoryValkeyClientError = "valkey_client"

	keyPrefix = "azlabeler:query:"
)

var ErrCacheMiss = errors.New("cache miss")

// ValkeyRepo keeps provider results in valkey, one JSON string per query key.
type ValkeyRepo struct {
	client valkey.Client
}

var _ repo.QueryRecordStore = ValkeyRepo{}

func NewValkeyRepo(client valkey.Client) ValkeyRepo {
	return ValkeyRepo{client: client}
}

func storageKey(key entity.QueryKey) string {
	return keyPrefix + key.String()
}

// WriteRecords stores records for ttl, rounded down to the second. A ttl
// below one second is not stored. Value and expiration are set by a single
// command, so a key never exists without its ttl.
func (r ValkeyRepo) WriteRecords(ctx context.Context, key entity.QueryKey, records []entity.RawRecord, ttl time.Duration) error {
	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		return nil
	}

	data, err := json.Marshal(records)
	if err != nil {
		return common.NewErrProcessingError(err, categoryInternalError, key.String(), "failed to marshal records")
	}

	command := r.client.B().Set().Key(storageKey(key)).Value(string(data)).ExSeconds(seconds).Build()

	err = r.client.Do(ctx, command).Error()
	if err != nil {
		return r.clientError(err, key, "failed to set key")
	}

	return nil
}

// GetRecords returns the records and the time they have left in valkey.
// ErrCacheMiss is returned when the key is absent, expired or has no ttl.
func (r ValkeyRepo) GetRecords(ctx context.Context, key entity.QueryKey) ([]entity.RawRecord, time.Duration, error) {
	k := storageKey(key)

	resps := r.client.DoMulti(ctx,
		r.client.B().Get().Key(k).Build(),
		r.client.B().Pttl().Key(k).Build(),
	)

	err := resps[0].Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, 0, ErrCacheMiss
		}

		return nil, 0, r.clientError(err, key, "failed to get key")
	}

	remaining, err := resps[1].AsInt64()
	if err != nil {
		return nil, 0, r.clientError(err, key, "failed to get key ttl")
	}

	// -2 when the key expired after the GET, -1 when it has no ttl
	if remaining <= 0 {
		return nil, 0, ErrCacheMiss
	}

	data, err := resps[0].ToString()
	if err != nil {
		return nil, 0, common.NewErrProcessingError(err, categoryInternalError, key.String(), "unexpected get response type")
	}

	ret := make([]entity.RawRecord, 0)

	err = json.Unmarshal([]byte(data), &ret)
	if err != nil {
		return nil, 0, common.NewErrProcessingError(err, categoryInternalError, key.String(), "failed to unmarshal records")
	}

	return ret, time.Duration(remaining) * time.Millisecond, nil
}

func (r ValkeyRepo) clientError(err error, key entity.QueryKey, reason string) error {
	if r.isRetryable(err) {
		return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, key.String(), reason)
	}

	return common.NewErrProcessingError(err, categoryValkeyClientError, key.String(), reason)
}

func (r ValkeyRepo) isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
