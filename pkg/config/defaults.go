package config

import "time"

// Default values for configuration fields.
const (
	// Discovery defaults
	DefaultProcessName  = "language_server"
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultProbeTimeout = 5 * time.Second

	// Guard defaults
	DefaultWarningThreshold = 10.0
	DefaultBlockThreshold   = 2.0
	DefaultGuardEnabled     = true
	DefaultSoundEnabled     = false

	// Polling defaults
	DefaultPollInterval     = 60 * time.Second
	DefaultFailureThreshold = 3

	// History defaults
	DefaultHistoryEnabled       = true
	DefaultHistoryPath          = "data/history.db"
	DefaultHistoryRetentionDays = 14
	DefaultHistoryPruneSchedule = "0 4 * * *"

	// Journal defaults
	DefaultJournalEnabled = true
	DefaultJournalPath    = "data/journal.db"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "console"
	DefaultLoggingRedactTokens = true
	DefaultMetricsListen       = "127.0.0.1:9216"
	DefaultMetricsNamespace    = "sentinel"
)

// ApplyDefaults applies default values to any zero-valued fields.
// It is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Discovery defaults
	if cfg.Discovery.ProcessName == "" {
		cfg.Discovery.ProcessName = DefaultProcessName
	}
	if cfg.Discovery.MaxRetries == 0 {
		cfg.Discovery.MaxRetries = DefaultMaxRetries
	}
	if cfg.Discovery.RetryDelay == 0 {
		cfg.Discovery.RetryDelay = DefaultRetryDelay
	}
	if cfg.Discovery.ProbeTimeout == 0 {
		cfg.Discovery.ProbeTimeout = DefaultProbeTimeout
	}

	// Guard defaults
	if cfg.Guard.WarningThreshold == 0 {
		cfg.Guard.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.Guard.BlockThreshold == 0 {
		cfg.Guard.BlockThreshold = DefaultBlockThreshold
	}

	// Polling defaults
	if cfg.Polling.Interval == 0 {
		cfg.Polling.Interval = DefaultPollInterval
	}
	if cfg.Polling.FailureThreshold == 0 {
		cfg.Polling.FailureThreshold = DefaultFailureThreshold
	}

	// History defaults
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = DefaultHistoryRetentionDays
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultHistoryPruneSchedule
	}

	// Journal defaults
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListen
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// DefaultConfig returns a fully defaulted configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
