package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
	"github.com/schubergphilis/azureenergylabelerlib/internal/factory"
	"github.com/schubergphilis/azureenergylabelerlib/internal/log"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

// app holds what a polling cycle needs.
type app struct {
	coordinator engine.Coordinator
	caches      *factory.CycleCaches
	sink        pipeline.Processing[entity.Report]
	closeFunc   common.CloseFunc

	mu      *sync.Mutex
	lastErr error
}

func newApp(ctx context.Context, conf config.Config, registry prometheus.Registerer) (*app, error) {
	logger := log.Logger()

	providers, err := factory.CreateAzureProviders(conf.Azure, conf.Labeler, logger)
	if err != nil {
		return nil, err
	}

	coordinator, caches, closeEngine, err := factory.CreateCoordinator(ctx, conf, factory.EngineDeps{
		Providers: providers,
		Registry:  registry,
		Logger:    logger,
		Clock:     clockwork.NewRealClock(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	sink, closeSink, err := factory.CreateReportSink(ctx, conf.Output, factory.ReportSinkDeps{
		AzureCredential: providers.TokenCredential,
		Registry:        registry,
		Namespace:       conf.Metrics.Namespace,
		Logger:          logger,
	})
	if err != nil {
		_ = common.CloseAll(ctx, closeEngine)

		return nil, fmt.Errorf("failed to create report sink: %w", err)
	}

	return &app{
		coordinator: coordinator,
		caches:      caches,
		sink:        sink,
		closeFunc: func(ctx context.Context) error {
			return common.CloseAll(ctx, closeEngine, closeSink)
		},
		mu: &sync.Mutex{},
	}, nil
}

// cycle runs the coordinator once and persists its report. Only a RunError
// or a sink failure is returned: failed subscriptions are part of the report.
func (a *app) cycle(ctx context.Context) error {
	logger := log.Logger()

	report, err := a.coordinator.WithCache(a.caches.Next()).Execute(ctx)
	if err != nil {
		a.setLastErr(err)

		return err
	}

	tenantLabel := ""
	if report.Summary.Labels != nil {
		tenantLabel = report.Summary.Labels.Tenant
	}

	logger.Info("Report ready",
		"runId", report.RunID,
		"subscriptions", len(report.Results),
		"failed", report.Summary.Failed,
		"tenantLabel", tenantLabel,
	)

	err = a.sink.Process(ctx, report)
	if err != nil {
		err = fmt.Errorf("failed to persist report %s: %w", report.RunID, err)
	}

	a.setLastErr(err)

	return err
}

func (a *app) setLastErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastErr = err
}

// health returns the error of the last cycle, nil before the first one.
func (a *app) health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastErr
}

func (a *app) close(ctx context.Context) error {
	return a.closeFunc(ctx)
}
