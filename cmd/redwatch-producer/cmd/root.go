package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/service/producer"
	"github.com/redwatch/redwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// pollInterval between watchlist sweeps; zero uses the configured value.
	pollInterval time.Duration
	// once runs a single sweep and exits.
	once bool

	// rootCmd represents the base command for running the producer.
	rootCmd = &cobra.Command{
		Use:   "redwatch-producer",
		Short: "Sweep the watchlist source and publish records to the queue.",
		Long: `Polls the watchlist source on a fixed interval, normalizes every person
record, and publishes the result to the durable queue. Entities that
disappear between sweeps are published as retire tombstones so the
consumer can mark them inactive.

A sweep that cannot be fetched within the retry ceiling is skipped; the
previously stored state stays authoritative until the next one succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &producer.Options{
				ConfigPath:   configPath,
				PollInterval: pollInterval,
				Once:         once,
			}

			return producer.Run(ctx, options)
		},
	}
)

// Execute runs the redwatch-producer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "override the sweep interval")
	rootCmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
}
