package web

import (
	"context"
	"fmt"

	"github.com/redwatch/redwatch/internal/api"
	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/repository/entity"
)

// Options controls the API server configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress overrides the API listen address from configuration.
	ListenAddress string
}

// Run serves the read-only entity API until the context is canceled.
// With a store DSN configured it reads live Postgres state; otherwise it
// serves a point-in-time view loaded from the snapshot file.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "redwatch-api")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	address := cfg.APIAddress
	if opts.ListenAddress != "" {
		address = opts.ListenAddress
	}

	policy := watch.Policy{
		AutoClearAlarm: cfg.AlarmAutoClear,
		StaleGuard:     !cfg.DisableStaleGuard,
	}

	var repository entity.Repository

	if cfg.StoreDSN != "" {
		pg, err := entity.NewPostgresRepository(ctx, cfg.StoreDSN, policy)
		if err != nil {
			return fmt.Errorf("open entity store: %w", err)
		}

		defer pg.Close()

		repository = pg
	} else {
		mem := entity.NewMemoryRepository(policy, entity.NewSnapshotter(cfg.SnapshotFile))
		if err = mem.LoadSnapshot(); err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}

		logger.InfoKV(ctx, "Serving snapshot view", "snapshot_file", cfg.SnapshotFile)

		repository = mem
	}

	return api.Serve(ctx, address, repository)
}
