package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/factory"
	"github.com/schubergphilis/azureenergylabelerlib/internal/log"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run polling cycles on an interval, serving metrics and health",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.Logger()

		// Set max procs based on cpu limits
		err := common.SetMaxProcs()
		if err != nil {
			logger.Error(err, "failed to set max procs")

			return
		}

		// Set max memory
		err = common.SetMemLimit()
		if err != nil {
			logger.Error(err, "failed to set mem limit")

			return
		}

		// Listen to sigterm and interrupt signals
		ctx := common.SetupSignalHandler(context.Background())

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		app, err := newApp(ctx, *conf, registry)
		if err != nil {
			logger.Error(err, "failed to create app")

			return
		}

		app.caches.StartSweeper(ctx, conf.Cache.SweepInterval)

		// Start metrics server
		metricsServer := factory.CreateMetricsServer(conf.Metrics, registry, app.health)

		go func() {
			logger.V(1).Info("Starting metrics server", "addr", metricsServer.Addr)

			err := metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "metrics server stopped")
			}
		}()

		// Poll until a stop signal is received
		runner := pipeline.NewRunner(conf.Poll.Interval, pipeline.ProcessingFunc[time.Time](func(ctx context.Context, _ time.Time) error {
			return app.cycle(ctx)
		})).WithLogger(logger)

		err = runner.Start(ctx)
		logger.V(1).Info("Polling stopped", "reason", err.Error())

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
		defer cancel()

		err = metricsServer.Shutdown(shutdownCtx)
		if err != nil {
			logger.Error(err, "failed to stop metrics server")
		}

		err = app.close(shutdownCtx)
		if err != nil {
			logger.Error(err, "failed to close clients")
		}

		logger.V(2).Info("Shutdown done")
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}
