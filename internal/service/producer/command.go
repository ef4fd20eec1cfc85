package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/redwatch/redwatch/internal/config"
	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/queue"
	"github.com/redwatch/redwatch/internal/source"
)

// Options controls the producer polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// PollInterval overrides the sweep interval from configuration.
	PollInterval time.Duration
	// Once runs a single sweep instead of the polling loop.
	Once bool
}

// Run polls the source on the configured interval and publishes every
// normalized record to the durable queue. It returns when the context
// is canceled or when startup wiring fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "redwatch-producer")

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

	if cfg.QueueURL == "" {
		return fmt.Errorf("queue URL must be provided")
	}

	src := source.NewHTTPSource(cfg.SourceURL, cfg.SourceNationality, cfg.SourcePageSize, cfg.SourceTimeout)

	q, err := queue.DialAMQP(cfg.QueueURL, cfg.QueueName, cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("dial queue: %w", err)
	}

	defer func() {
		_ = q.Close()
	}()

	service := NewService(src, q, cfg.FetchRetryCeiling, cfg.PublishRetryAttempts)

	logger.InfoKV(ctx, "Polling watchlist source",
		"source_url", cfg.SourceURL, "interval", pollInterval.String())

	// First sweep runs right away so a fresh deployment does not sit idle
	// for a full interval.
	if err = service.RunCycle(ctx); err != nil {
		logger.ErrorKV(ctx, "Sweep failed", "error", err)
	}

	if opts.Once {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if err = service.RunCycle(ctx); err != nil {
				logger.ErrorKV(ctx, "Sweep failed", "error", err)
			}
		}
	}
}
