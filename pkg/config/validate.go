package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "guard.block_threshold").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError when any
// rule fails. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDiscovery(&cfg.Discovery)...)
	errs = append(errs, validateGuard(&cfg.Guard)...)
	errs = append(errs, validatePolling(&cfg.Polling)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateDiscovery(cfg *DiscoveryConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxRetries < 1 {
		errs = append(errs, FieldError{"discovery.max_retries", "must be at least 1"})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{"discovery.retry_delay", "must not be negative"})
	}
	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, FieldError{"discovery.probe_timeout", "must be positive"})
	}
	if strings.TrimSpace(cfg.ProcessName) == "" {
		errs = append(errs, FieldError{"discovery.process_name", "must not be empty"})
	}
	return errs
}

func validateGuard(cfg *GuardConfig) []FieldError {
	var errs []FieldError
	if cfg.WarningThreshold < 0 || cfg.WarningThreshold > 100 {
		errs = append(errs, FieldError{"guard.warning_threshold", "must be in [0,100]"})
	}
	if cfg.BlockThreshold < 0 || cfg.BlockThreshold > 100 {
		errs = append(errs, FieldError{"guard.block_threshold", "must be in [0,100]"})
	}
	if cfg.BlockThreshold > cfg.WarningThreshold {
		errs = append(errs, FieldError{"guard.block_threshold",
			fmt.Sprintf("must not exceed warning_threshold (%.1f > %.1f)", cfg.BlockThreshold, cfg.WarningThreshold)})
	}
	return errs
}

func validatePolling(cfg *PollingConfig) []FieldError {
	var errs []FieldError
	if cfg.Interval < time.Second {
		errs = append(errs, FieldError{"polling.interval", "must be at least 1s"})
	}
	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{"polling.failure_threshold", "must be at least 1"})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError
	if cfg.RetentionDays < 1 {
		errs = append(errs, FieldError{"history.retention_days", "must be at least 1"})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{"history.prune_schedule",
			fmt.Sprintf("invalid cron expression: %v", err)})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("must be one of debug, info, warn, error (got %q)", cfg.Logging.Level)})
	}

	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("must be one of json, text, console (got %q)", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{"telemetry.metrics.listen_address", "required when metrics are enabled"})
	}

	return errs
}
