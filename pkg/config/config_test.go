package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Discovery.ProcessName != "language_server" {
		t.Errorf("Expected default process name, got %q", cfg.Discovery.ProcessName)
	}
	if cfg.Discovery.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.Discovery.MaxRetries)
	}
	if cfg.Discovery.RetryDelay != 500*time.Millisecond {
		t.Errorf("Expected 500ms retry delay, got %v", cfg.Discovery.RetryDelay)
	}
	if cfg.Discovery.ProbeTimeout != 5*time.Second {
		t.Errorf("Expected 5s probe timeout, got %v", cfg.Discovery.ProbeTimeout)
	}
	if cfg.Guard.WarningThreshold != 10 || cfg.Guard.BlockThreshold != 2 {
		t.Errorf("Unexpected thresholds: %v / %v", cfg.Guard.WarningThreshold, cfg.Guard.BlockThreshold)
	}
	if !cfg.Guard.GuardEnabled() {
		t.Error("Expected the guard to default to enabled")
	}
	if cfg.Guard.SoundEnabled {
		t.Error("Expected sound to default to disabled")
	}
	if cfg.Polling.Interval != time.Minute {
		t.Errorf("Expected 60s poll interval, got %v", cfg.Polling.Interval)
	}
	if !cfg.History.HistoryEnabled() || !cfg.Journal.JournalEnabled() {
		t.Error("Expected persistence to default to enabled")
	}
	if !cfg.Telemetry.Logging.TokensRedacted() {
		t.Error("Expected token redaction to default to enabled")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected metrics to default to disabled")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	disabled := false
	cfg := &Config{}
	cfg.Guard.WarningThreshold = 25
	cfg.Guard.Enabled = &disabled
	cfg.Polling.Interval = 30 * time.Second

	ApplyDefaults(cfg)

	if cfg.Guard.WarningThreshold != 25 {
		t.Errorf("Explicit threshold overwritten: %v", cfg.Guard.WarningThreshold)
	}
	if cfg.Guard.GuardEnabled() {
		t.Error("Explicit enabled=false overwritten")
	}
	if cfg.Polling.Interval != 30*time.Second {
		t.Errorf("Explicit interval overwritten: %v", cfg.Polling.Interval)
	}
	// Untouched fields still get their defaults.
	if cfg.Guard.BlockThreshold != 2 {
		t.Errorf("Expected the block threshold default, got %v", cfg.Guard.BlockThreshold)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Discovery.ProcessName != DefaultProcessName {
		t.Errorf("Expected defaults for a missing file, got %q", cfg.Discovery.ProcessName)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	content := `
guard:
  warning_threshold: 20
  block_threshold: 5
  enabled: false
  pinned_models: [gemini-3-pro]
polling:
  interval: 30s
telemetry:
  logging:
    level: debug
    format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Guard.WarningThreshold != 20 || cfg.Guard.BlockThreshold != 5 {
		t.Errorf("Unexpected thresholds: %v / %v", cfg.Guard.WarningThreshold, cfg.Guard.BlockThreshold)
	}
	if cfg.Guard.GuardEnabled() {
		t.Error("Expected guard disabled")
	}
	if len(cfg.Guard.PinnedModels) != 1 || cfg.Guard.PinnedModels[0] != "gemini-3-pro" {
		t.Errorf("Unexpected pinned models: %v", cfg.Guard.PinnedModels)
	}
	if cfg.Polling.Interval != 30*time.Second {
		t.Errorf("Unexpected interval: %v", cfg.Polling.Interval)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("Unexpected logging config: %+v", cfg.Telemetry.Logging)
	}
	// Unset sections keep their defaults.
	if cfg.Discovery.ProcessName != DefaultProcessName {
		t.Errorf("Expected the discovery defaults, got %q", cfg.Discovery.ProcessName)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("guard: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected an error for malformed YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_GUARD_WARNING_THRESHOLD", "30")
	t.Setenv("SENTINEL_GUARD_ENABLED", "false")
	t.Setenv("SENTINEL_POLLING_INTERVAL", "15s")
	t.Setenv("SENTINEL_DISCOVERY_MAX_RETRIES", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Guard.WarningThreshold != 30 {
		t.Errorf("Expected env threshold 30, got %v", cfg.Guard.WarningThreshold)
	}
	if cfg.Guard.GuardEnabled() {
		t.Error("Expected env to disable the guard")
	}
	if cfg.Polling.Interval != 15*time.Second {
		t.Errorf("Expected env interval 15s, got %v", cfg.Polling.Interval)
	}
	// Unparseable overrides are ignored, the default stays.
	if cfg.Discovery.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected the default retries, got %d", cfg.Discovery.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "block above warning",
			mutate:  func(cfg *Config) { cfg.Guard.BlockThreshold = 50; cfg.Guard.WarningThreshold = 10 },
			wantErr: "guard.block_threshold",
		},
		{
			name:    "threshold out of range",
			mutate:  func(cfg *Config) { cfg.Guard.WarningThreshold = 150 },
			wantErr: "guard.warning_threshold",
		},
		{
			name:    "interval too small",
			mutate:  func(cfg *Config) { cfg.Polling.Interval = 100 * time.Millisecond },
			wantErr: "polling.interval",
		},
		{
			name:    "bad cron expression",
			mutate:  func(cfg *Config) { cfg.History.PruneSchedule = "not cron" },
			wantErr: "history.prune_schedule",
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Telemetry.Logging.Level = "loud" },
			wantErr: "telemetry.logging.level",
		},
		{
			name:    "negative retries",
			mutate:  func(cfg *Config) { cfg.Discovery.MaxRetries = -1 },
			wantErr: "discovery.max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected a ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidationError_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Guard.WarningThreshold = -5
	cfg.Polling.FailureThreshold = 0

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %T", err)
	}
	if len(verr.Errors) < 2 {
		t.Errorf("Expected all errors collected, got %+v", verr.Errors)
	}
}
