package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/service/web"
	"github.com/redwatch/redwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the entity API.
	rootCmd = &cobra.Command{
		Use:   "redwatch-api [listen-address]",
		Short: "Serve the read-only entity API.",
		Long: `Serves the stored watchlist entities over HTTP: a newest-first listing
and per-entity lookup, including the alarm flag raised by the consumer
when an entity's fields change.

The listen address can be provided as argument to override the
configuration (e.g., :9090, 0.0.0.0:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &web.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			}

			return web.Run(ctx, options)
		},
	}
)

// Execute runs the redwatch-api CLI and exits with non-zero status on error.
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
