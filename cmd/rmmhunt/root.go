package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rmmhunt/internal/logging"
)

var logger *zap.Logger

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "rmmhunt",
	Short: "Hunt for remote monitoring and management tool activity",
	Long: `rmmhunt searches Zero Networks network activity telemetry for traces
of remote monitoring and management (RMM) tools, using the community
RMML signature catalog of executables, domains, and ports. Matching
activities are deduplicated, enriched, and exported to CSV.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logging.FromEnv()
		if verbosity > 0 {
			cfg.Level = "debug"
		}
		var err error
		logger, err = logging.New(cfg)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logging.Sync(logger)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
