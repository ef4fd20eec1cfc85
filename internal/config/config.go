package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the redwatch binaries.
type Config struct {
	// SourceURL is the base URL of the watchlist endpoint.
	SourceURL string `yaml:"source_url"`
	// SourceNationality is the upstream nationality filter applied by the source.
	SourceNationality string `yaml:"source_nationality"`
	// SourcePageSize is the number of records requested per source page.
	SourcePageSize int `yaml:"source_page_size"`
	// SourceTimeout bounds a single HTTP request to the source.
	SourceTimeout time.Duration `yaml:"source_timeout"`

	// PollInterval is the pause between full sweeps of the source.
	PollInterval time.Duration `yaml:"poll_interval"`
	// FetchRetryCeiling caps the total time spent retrying a failed sweep
	// fetch before the cycle is skipped.
	FetchRetryCeiling time.Duration `yaml:"fetch_retry_ceiling"`
	// PublishRetryAttempts is how many times a failed publish is retried
	// before the record is dropped for the cycle.
	PublishRetryAttempts uint `yaml:"publish_retry_attempts"`

	// QueueURL is the AMQP broker URL.
	QueueURL string `yaml:"queue_url"`
	// QueueName is the durable queue records travel through.
	QueueName string `yaml:"queue_name"`
	// Prefetch is the consumer prefetch window.
	Prefetch int `yaml:"prefetch"`
	// VisibilityTimeout is the redelivery delay of the embedded queue used
	// by the single-process mode. Non-positive keeps the built-in default.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`

	// StoreDSN is the Postgres connection string. When empty the file-backed
	// store is used instead.
	StoreDSN string `yaml:"store_dsn"`
	// SnapshotFile is where the file-backed store persists its state.
	SnapshotFile string `yaml:"snapshot_file"`

	// AlarmAutoClear makes an unchanged delivery clear a raised alarm.
	// When false (the default) alarms stay up until an operator acts.
	AlarmAutoClear bool `yaml:"alarm_auto_clear"`
	// DisableStaleGuard turns off the fetched-at guard that rejects a
	// delivery older than the version already stored.
	DisableStaleGuard bool `yaml:"disable_stale_guard"`

	// APIAddress is the listen address of the read-only HTTP API.
	APIAddress string `yaml:"api_addr"`
	// LogLevel is the minimum level emitted by the logger.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "redwatch-settings.yaml"

	// DefaultSnapshotFilename is the default file for the file-backed store.
	DefaultSnapshotFilename = "redwatch-entities.json"

	// DefaultQueueName is the durable queue used when none is configured.
	DefaultQueueName = "watchlist.records"

	// DefaultPollInterval is the pause between sweeps when none is configured.
	DefaultPollInterval = 5 * time.Minute

	// DefaultFetchRetryCeiling bounds fetch retries within one cycle.
	DefaultFetchRetryCeiling = 2 * time.Minute

	// DefaultPublishRetryAttempts bounds publish retries per record.
	DefaultPublishRetryAttempts = 5

	// DefaultSourcePageSize mirrors the page size the source tolerates.
	DefaultSourcePageSize = 160

	// DefaultSourceTimeout bounds a single source request.
	DefaultSourceTimeout = 30 * time.Second

	// DefaultPrefetch is the consumer prefetch window.
	DefaultPrefetch = 8

	// DefaultAPIAddress is the listen address of the read-only API.
	DefaultAPIAddress = ":8080"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errSourceURLRequired is returned when the source URL is missing.
	errSourceURLRequired = errors.New("source URL must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SourceURL == "" {
		return errSourceURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.SourceURL); err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}

	if cfg.QueueURL != "" && !strings.HasPrefix(cfg.QueueURL, "amqp://") &&
		!strings.HasPrefix(cfg.QueueURL, "amqps://") {
		return fmt.Errorf("invalid queue URL %q: amqp scheme expected", cfg.QueueURL)
	}

	if cfg.SourcePageSize <= 0 {
		cfg.SourcePageSize = DefaultSourcePageSize
	}

	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.FetchRetryCeiling <= 0 {
		cfg.FetchRetryCeiling = DefaultFetchRetryCeiling
	}

	if cfg.PublishRetryAttempts == 0 {
		cfg.PublishRetryAttempts = DefaultPublishRetryAttempts
	}

	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}

	if cfg.Prefetch <= 0 {
		cfg.Prefetch = DefaultPrefetch
	}

	if cfg.StoreDSN == "" && cfg.SnapshotFile == "" {
		cfg.SnapshotFile = DefaultSnapshotFilename
	}

	if cfg.APIAddress == "" {
		cfg.APIAddress = DefaultAPIAddress
	}

	return nil
}
