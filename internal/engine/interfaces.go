package engine

import (
	"context"
	"time"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_engine.go

// Credential is opaque to the engine. Provider adapters know its concrete type.
type Credential = any

type CredentialProvider interface {
	Credential(ctx context.Context) (Credential, error)
}

type SubscriptionDiscovery interface {
	ListSubscriptions(ctx context.Context, credential Credential) ([]entity.Subscription, error)
}

// ProviderClient runs one query kind against one subscription. Errors should
// be *entity.ProviderError so that transient ones are retried.
type ProviderClient interface {
	Fetch(ctx context.Context, credential Credential, subscriptionID entity.SubscriptionID, kind entity.QueryKind) ([]entity.RawRecord, error)
}

// QueryCache stores provider results per query key. Implementations never fail:
// a broken store behaves as a miss.
type QueryCache interface {
	Get(ctx context.Context, key entity.QueryKey) ([]entity.RawRecord, bool)
	Put(ctx context.Context, key entity.QueryKey, records []entity.RawRecord, ttl time.Duration)
}
