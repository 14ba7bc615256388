package factory

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo/querycache"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
	"github.com/schubergphilis/azureenergylabelerlib/internal/labeling"
	"github.com/schubergphilis/azureenergylabelerlib/internal/validation"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/retry"
)

type EngineDeps struct {
	Providers AzureProviders
	Registry  prometheus.Registerer
	Logger    logr.Logger
	Clock     clockwork.Clock
}

// CreateCoordinator wires the coordinator and the query cache it starts with.
// The returned close func releases the valkey client when one is configured.
func CreateCoordinator(ctx context.Context, conf config.Config, deps EngineDeps) (engine.Coordinator, *CycleCaches, common.CloseFunc, error) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	allowed, denied, err := validation.ValidateAllowDeny(conf.Labeler.AllowedSubscriptions, conf.Labeler.DeniedSubscriptions)
	if err != nil {
		return engine.Coordinator{}, nil, nil, fmt.Errorf("failed to validate subscription lists: %w", err)
	}

	labeler, err := labeling.NewLabeler(nil, nil)
	if err != nil {
		return engine.Coordinator{}, nil, nil, fmt.Errorf("failed to create labeler: %w", err)
	}

	var (
		remote repo.QueryRecordStore
		closer common.CloseFunc
	)

	if conf.Cache.Valkey.URL != "" {
		client, closeFunc, err := CreateValkeyClient(ctx, conf.Cache.Valkey)
		if err != nil {
			return engine.Coordinator{}, nil, nil, err
		}

		remote = querycache.NewValkeyRepo(client)
		closer = closeFunc
	}

	caches := NewCycleCaches(deps.Clock, remote, conf.Engine.CacheTTL(), conf.Cache.PersistAcrossCycles).WithLogger(deps.Logger)

	metrics, err := engine.NewMetrics(deps.Registry, pipeline.MetricsConfig{Namespace: conf.Metrics.Namespace})
	if err != nil {
		_ = common.CloseAll(ctx, closer)

		return engine.Coordinator{}, nil, nil, fmt.Errorf("failed to create engine metrics: %w", err)
	}

	err = engine.RegisterCacheStats(deps.Registry, conf.Metrics.Namespace, caches.Stats)
	if err != nil {
		_ = common.CloseAll(ctx, closer)

		return engine.Coordinator{}, nil, nil, fmt.Errorf("failed to register cache metrics: %w", err)
	}

	coordinator := engine.NewCoordinator(
		deps.Providers.Credentials,
		deps.Providers.Discovery,
		deps.Providers.ResourceGraph,
		caches.Next(),
		engine.Config{
			TenantID:       conf.Azure.TenantID,
			MaxConcurrency: conf.Engine.MaxConcurrency,
			CacheTTL:       conf.Engine.CacheTTL(),
			RunTimeout:     conf.Engine.RunTimeout(),
			Retry: retry.Policy{
				MaxAttempts: conf.Engine.RetryMaxAttempts,
				BaseDelay:   conf.Engine.RetryBaseDelay(),
				MaxDelay:    conf.Engine.RetryMaxDelay(),
				Classifier:  engine.ClassifyProviderError,
			},
			AllowedSubscriptions: allowed,
			DeniedSubscriptions:  denied,
		},
	).
		WithLogger(deps.Logger).
		WithMetrics(metrics).
		WithClock(deps.Clock).
		WithLabeler(labeler)

	return coordinator, caches, closer, nil
}
