package standalone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redwatch/redwatch/internal/api"
	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/queue/memory"
	"github.com/redwatch/redwatch/internal/repository/entity"
	consumersvc "github.com/redwatch/redwatch/internal/service/consumer"
	producersvc "github.com/redwatch/redwatch/internal/service/producer"
	"github.com/redwatch/redwatch/internal/source"
)

// Options controls the single-process pipeline configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// PollInterval overrides the sweep interval from configuration.
	PollInterval time.Duration
}

// Run hosts the entire pipeline in one process: an embedded queue instead
// of a broker, the snapshot-backed store instead of Postgres, plus the
// producer loop and the entity API. Useful for demos and small setups.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "redwatch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	pollInterval := cfg.PollInterval
	if opts.PollInterval > 0 {
		pollInterval = opts.PollInterval
	}

	policy := watch.Policy{
		AutoClearAlarm: cfg.AlarmAutoClear,
		StaleGuard:     !cfg.DisableStaleGuard,
	}

	repository := entity.NewMemoryRepository(policy, entity.NewSnapshotter(cfg.SnapshotFile))
	if err = repository.LoadSnapshot(); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	q := memory.New(cfg.VisibilityTimeout)

	defer func() {
		_ = q.Close()
	}()

	src := source.NewHTTPSource(cfg.SourceURL, cfg.SourceNationality, cfg.SourcePageSize, cfg.SourceTimeout)
	producer := producersvc.NewService(src, q, cfg.FetchRetryCeiling, cfg.PublishRetryAttempts)

	fatal := make(chan error, 2)

	go func() {
		fatal <- consumersvc.NewService(q, repository).Run(ctx)
	}()

	go func() {
		if err := api.Serve(ctx, cfg.APIAddress, repository); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			fatal <- err
		}
	}()

	logger.InfoKV(ctx, "Running single-process pipeline",
		"source_url", cfg.SourceURL, "interval", pollInterval.String())

	if err = producer.RunCycle(ctx); err != nil {
		logger.ErrorKV(ctx, "Sweep failed", "error", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			repository.Wait()

			return nil
		case err = <-fatal:
			if err != nil {
				return err
			}
		case <-ticker.C:
			if err = producer.RunCycle(ctx); err != nil {
				logger.ErrorKV(ctx, "Sweep failed", "error", err)
			}
		}
	}
}
