package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file and re-loads it on change.
// Changes are debounced so editors that write in several steps trigger one
// reload, not a storm.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a config watcher for the given file.
// If debounce is 0, defaults to 250ms.
func NewWatcher(path string, debounce time.Duration) *Watcher {
	if debounce == 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		logger:   slog.Default().With("component", "config.watcher"),
	}
}

// Watch blocks until the context is cancelled, invoking onReload with every
// successfully re-loaded configuration. Reloads that fail to parse or
// validate are logged and discarded; the previous config stays in effect.
//
// The parent directory is watched rather than the file itself, because
// most editors replace the file on save (rename + create), which drops a
// direct file watch.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("config watcher started", "path", w.path)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-timerCh:
			timer = nil
			timerCh = nil

			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload rejected, keeping previous config", "error", err)
				continue
			}
			w.logger.Info("config reloaded",
				"warning_threshold", cfg.Guard.WarningThreshold,
				"block_threshold", cfg.Guard.BlockThreshold,
				"guard_enabled", cfg.Guard.GuardEnabled(),
			)
			onReload(cfg)
		}
	}
}
