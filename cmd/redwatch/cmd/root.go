package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/service/standalone"
	"github.com/redwatch/redwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// pollInterval between watchlist sweeps; zero uses the configured value.
	pollInterval time.Duration

	// rootCmd represents the base command for running the whole pipeline
	// in a single process.
	rootCmd = &cobra.Command{
		Use:   "redwatch",
		Short: "Run producer, consumer, and API in a single process.",
		Long: `Runs the complete watchlist pipeline without external infrastructure:
sweeps are published to an embedded in-process queue, the consumer
applies them to a snapshot-backed store, and the entity API serves the
result. Intended for demos and small deployments; production setups
run the redwatch-producer, redwatch-consumer, and redwatch-api binaries
against a broker and Postgres.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &standalone.Options{
				ConfigPath:   configPath,
				PollInterval: pollInterval,
			}

			return standalone.Run(ctx, options)
		},
	}

	// queueURL and storeDSN seed the generated settings file.
	queueURL string
	storeDSN string

	// initConfigCmd writes a starter settings file with defaults filled in.
	initConfigCmd = &cobra.Command{
		Use:   "init-config <source-url>",
		Short: "Write a starter settings file with defaults filled in.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := &config.Config{
				SourceURL: args[0],
				QueueURL:  queueURL,
				StoreDSN:  storeDSN,
			}

			return config.Save(configPath, cfg)
		},
	}
)

// Execute runs the redwatch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "override the sweep interval")

	initConfigCmd.Flags().StringVar(&queueURL, "queue-url", "", "AMQP broker URL for the split-binary setup")
	initConfigCmd.Flags().StringVar(&storeDSN, "store-dsn", "", "Postgres DSN; empty keeps the file-backed store")
	rootCmd.AddCommand(initConfigCmd)
}
