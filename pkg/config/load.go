package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, applies
// SENTINEL_* environment overrides, and validates the result.
//
// A missing file is not an error: the daemon is useful with defaults alone,
// so the defaulted configuration is returned instead.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables
// follow the convention SENTINEL_SECTION_FIELD and always take precedence
// over file values. Unparseable values are ignored; the file value stays.
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookup("SENTINEL_DISCOVERY_PROCESS_NAME"); ok {
		cfg.Discovery.ProcessName = v
	}
	if v, ok := lookupInt("SENTINEL_DISCOVERY_MAX_RETRIES"); ok {
		cfg.Discovery.MaxRetries = v
	}
	if v, ok := lookupFloat("SENTINEL_GUARD_WARNING_THRESHOLD"); ok {
		cfg.Guard.WarningThreshold = v
	}
	if v, ok := lookupFloat("SENTINEL_GUARD_BLOCK_THRESHOLD"); ok {
		cfg.Guard.BlockThreshold = v
	}
	if v, ok := lookupBool("SENTINEL_GUARD_ENABLED"); ok {
		cfg.Guard.Enabled = &v
	}
	if v, ok := lookupBool("SENTINEL_GUARD_SOUND_ENABLED"); ok {
		cfg.Guard.SoundEnabled = v
	}
	if v, ok := lookupDuration("SENTINEL_POLLING_INTERVAL"); ok {
		cfg.Polling.Interval = v
	}
	if v, ok := lookup("SENTINEL_HISTORY_PATH"); ok {
		cfg.History.Path = v
	}
	if v, ok := lookup("SENTINEL_JOURNAL_PATH"); ok {
		cfg.Journal.Path = v
	}
	if v, ok := lookup("SENTINEL_LOGGING_LEVEL"); ok {
		cfg.Telemetry.Logging.Level = v
	}
	if v, ok := lookup("SENTINEL_LOGGING_FORMAT"); ok {
		cfg.Telemetry.Logging.Format = v
	}
	if v, ok := lookupBool("SENTINEL_METRICS_ENABLED"); ok {
		cfg.Telemetry.Metrics.Enabled = v
	}
	if v, ok := lookup("SENTINEL_METRICS_LISTEN_ADDRESS"); ok {
		cfg.Telemetry.Metrics.ListenAddress = v
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func lookupInt(key string) (int, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func lookupFloat(key string) (float64, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func lookupBool(key string) (bool, bool) {
	v, ok := lookup(key)
	if !ok {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func lookupDuration(key string) (time.Duration, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
