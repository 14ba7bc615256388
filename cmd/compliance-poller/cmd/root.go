package cmd

import (
	"fmt"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
	"github.com/schubergphilis/azureenergylabelerlib/internal/log"
)

var (
	cfgFile string
	conf    *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "compliance-poller",
	Short:         "Poll Azure compliance data and label every subscription",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting compliance poller",
			"command", cmd.Name(),
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", *conf))

		return nil
	},
}

// Execute adds all child commands to the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}

	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, environment variables prefixed with AZLABELER override it")
}
