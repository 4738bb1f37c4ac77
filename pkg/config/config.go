package config

import "time"

// Config is the root configuration for the sentinel daemon.
type Config struct {
	// Discovery configures how the agent service process is located.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Guard configures quota thresholds and alerting behavior.
	Guard GuardConfig `yaml:"guard"`

	// Polling configures the periodic status poll.
	Polling PollingConfig `yaml:"polling"`

	// History configures snapshot history persistence.
	History HistoryConfig `yaml:"history"`

	// Journal configures the alert decision journal.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DiscoveryConfig controls process and endpoint discovery.
type DiscoveryConfig struct {
	// ProcessName is the image name of the agent service process.
	// Default: "language_server"
	ProcessName string `yaml:"process_name"`

	// MaxRetries bounds the number of discovery attempts per Discover call.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the pause between failed discovery attempts.
	// Default: 500ms
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ProbeTimeout bounds each individual port probe.
	// Default: 5s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// GuardConfig controls quota classification and alerting.
type GuardConfig struct {
	// WarningThreshold is the remaining percentage at or below which a
	// model counts as at risk. Must satisfy block <= warning.
	// Default: 10
	WarningThreshold float64 `yaml:"warning_threshold"`

	// BlockThreshold is the remaining percentage at or below which actions
	// should be blocked.
	// Default: 2
	BlockThreshold float64 `yaml:"block_threshold"`

	// Enabled switches the guard on. A disabled guard still polls and
	// renders state but never alerts and always allows.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// SoundEnabled switches the audible alert hook on.
	// Default: false
	SoundEnabled bool `yaml:"sound_enabled"`

	// PinnedModels lists model ids to always show first in status output,
	// whether or not they are at risk.
	PinnedModels []string `yaml:"pinned_models"`
}

// GuardEnabled resolves the Enabled pointer against its default.
func (c *GuardConfig) GuardEnabled() bool {
	if c.Enabled == nil {
		return DefaultGuardEnabled
	}
	return *c.Enabled
}

// PollingConfig controls the periodic status poll.
type PollingConfig struct {
	// Interval is the spacing between polls.
	// Default: 60s
	Interval time.Duration `yaml:"interval"`

	// FailureThreshold is the number of consecutive poll failures after
	// which the endpoint is re-discovered.
	// Default: 3
	FailureThreshold int `yaml:"failure_threshold"`
}

// HistoryConfig controls snapshot history persistence.
type HistoryConfig struct {
	// Enabled switches history persistence on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// RetentionDays is how long snapshots are kept.
	// Default: 14
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for history pruning.
	// Default: "0 4 * * *" (daily at 4 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// HistoryEnabled resolves the Enabled pointer against its default.
func (c *HistoryConfig) HistoryEnabled() bool {
	if c.Enabled == nil {
		return DefaultHistoryEnabled
	}
	return *c.Enabled
}

// JournalConfig controls the alert decision journal.
type JournalConfig struct {
	// Enabled switches journal recording on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "data/journal.db"
	Path string `yaml:"path"`
}

// JournalEnabled resolves the Enabled pointer against its default.
func (c *JournalConfig) JournalEnabled() bool {
	if c.Enabled == nil {
		return DefaultJournalEnabled
	}
	return *c.Enabled
}

// TelemetryConfig controls logging and metrics.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	// Default: "console"
	Format string `yaml:"format"`

	// RedactTokens masks UUID-shaped values in log output so the CSRF
	// token never lands in a log file.
	// Default: true
	RedactTokens *bool `yaml:"redact_tokens"`
}

// TokensRedacted resolves the RedactTokens pointer against its default.
func (c *LoggingConfig) TokensRedacted() bool {
	if c.RedactTokens == nil {
		return DefaultLoggingRedactTokens
	}
	return *c.RedactTokens
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled switches the metrics listener on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is where /metrics and /healthz are served.
	// Default: "127.0.0.1:9216"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the Prometheus metric namespace.
	// Default: "sentinel"
	Namespace string `yaml:"namespace"`
}
