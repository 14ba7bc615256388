package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/log"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one polling cycle and persist its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		// Listen to sigterm and interrupt signals
		ctx := common.SetupSignalHandler(context.Background())

		app, err := newApp(ctx, *conf, prometheus.NewRegistry())
		if err != nil {
			return err
		}

		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
			defer cancel()

			err := app.close(closeCtx)
			if err != nil {
				logger.Error(err, "failed to close clients")
			}
		}()

		err = app.cycle(ctx)
		if err != nil {
			return fmt.Errorf("polling cycle failed: %w", err)
		}

		logger.V(1).Info("Polling cycle done")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
