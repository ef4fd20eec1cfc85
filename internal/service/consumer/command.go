package consumer

import (
	"context"
	"fmt"

	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/queue"
	"github.com/redwatch/redwatch/internal/repository/entity"
)

// Options controls the consumer configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
}

// Run drains the queue into the configured entity store until the context
// is canceled. With a store DSN configured the entities land in Postgres,
// otherwise in an in-memory store backed by the snapshot file.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "redwatch-consumer")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	if cfg.QueueURL == "" {
		return fmt.Errorf("queue URL must be provided")
	}

	policy := watch.Policy{
		AutoClearAlarm: cfg.AlarmAutoClear,
		StaleGuard:     !cfg.DisableStaleGuard,
	}

	repository, cleanup, err := openRepository(ctx, cfg, policy)
	if err != nil {
		return fmt.Errorf("open entity store: %w", err)
	}

	defer cleanup()

	q, err := queue.DialAMQP(cfg.QueueURL, cfg.QueueName, cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("dial queue: %w", err)
	}

	defer func() {
		_ = q.Close()
	}()

	logger.InfoKV(ctx, "Consuming watchlist records",
		"queue", cfg.QueueName, "prefetch", cfg.Prefetch)

	return NewService(q, repository).Run(ctx)
}

// openRepository builds the entity store the configuration asks for and
// returns it with its shutdown hook.
func openRepository(ctx context.Context, cfg *config.Config, policy watch.Policy) (entity.Repository, func(), error) {
	if cfg.StoreDSN != "" {
		repository, err := entity.NewPostgresRepository(ctx, cfg.StoreDSN, policy)
		if err != nil {
			return nil, nil, err
		}

		return repository, repository.Close, nil
	}

	repository := entity.NewMemoryRepository(policy, entity.NewSnapshotter(cfg.SnapshotFile))
	if err := repository.LoadSnapshot(); err != nil {
		return nil, nil, err
	}

	return repository, repository.Wait, nil
}
