package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/service/consumer"
	"github.com/redwatch/redwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the consumer.
	rootCmd = &cobra.Command{
		Use:   "redwatch-consumer",
		Short: "Drain the queue and apply records to the entity store.",
		Long: `Consumes watchlist records from the durable queue and applies each one
to the entity store with upsert-with-diff semantics: first sight creates
the entity, an identical redelivery changes nothing, and a changed field
set replaces the stored version and raises the alarm flag.

Deliveries are acknowledged only after the store confirms the apply, so
a crash never loses a record; the idempotent apply absorbs the resulting
redelivery.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return consumer.Run(ctx, &consumer.Options{ConfigPath: configPath})
		},
	}
)

// Execute runs the redwatch-consumer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
