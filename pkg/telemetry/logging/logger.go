// Package logging configures the process-wide structured logger.
//
// The sentinel logs through log/slog. This package parses the configured
// level and format, installs the resulting logger as slog's default, and
// wires in token redaction so the discovered CSRF token can never leak
// into a log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format is the log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON objects, one per line.
	FormatJSON Format = "json"
	// FormatText outputs logs in slog's key=value text form.
	FormatText Format = "text"
	// FormatConsole is FormatText without timestamps, for interactive use.
	FormatConsole Format = "console"
)

// Config configures the logger.
type Config struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string

	// Format is the output format ("json", "text", "console").
	Format string

	// RedactTokens masks UUID-shaped attribute values.
	RedactTokens bool

	// Writer is the output writer (defaults to os.Stderr).
	Writer io.Writer
}

// Setup builds a logger from the configuration and installs it as the
// slog default. It returns the logger for callers that want to scope it.
func Setup(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.RedactTokens {
		opts.ReplaceAttr = redactTokenAttr
	}
	if format == FormatConsole {
		replace := opts.ReplaceAttr
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if replace != nil {
				return replace(groups, a)
			}
			return a
		}
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// parseLevel converts a level string to a slog.Level.
func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}

// parseFormat converts a format string to a Format.
func parseFormat(format string) (Format, error) {
	switch format {
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "console", "":
		return FormatConsole, nil
	default:
		return "", fmt.Errorf("invalid log format %q", format)
	}
}
