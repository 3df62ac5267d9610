package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/config"
	"github.com/parapet-sh/parapet/pkg/logger"
)

var (
	version = "dev"

	flagDebug     bool
	flagLogFormat string
	flagConfig    string
	flagRegion    string
	flagProfile   string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "parapet",
		Short: "Security posture assessment engine",
		Long: `Parapet - security posture assessment engine

Parapet queries the account's native security services concurrently,
normalizes their findings into a single model, scores the posture per
pillar and overall, and ranks the remediations that would move the
score most. Sources that are down or not enabled degrade the result
instead of failing it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupLogger(flagDebug, flagLogFormat)

			var err error
			if flagConfig != "" {
				cfg, err = config.Load(flagConfig)
			} else {
				cfg = config.Default()
			}
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if flagRegion != "" {
				cfg.Scope.Region = flagRegion
			}
			if flagProfile != "" {
				cfg.Scope.Profile = flagProfile
			}
			return cfg.Validate()
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", "", "Region override")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Shared credentials profile")
}
