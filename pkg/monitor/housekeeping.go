package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/history"
)

// ackGCSchedule runs acknowledgment garbage collection every ten minutes.
// Warning acknowledgments expire after an hour, so a ten minute sweep keeps
// expiry latency well under the TTL without busy work.
const ackGCSchedule = "*/10 * * * *"

// Housekeeping runs the guard's acknowledgment garbage collection and the
// history store's pruning on cron schedules, outside the poll path.
type Housekeeping struct {
	guard   *guard.Guard
	history history.Store
	cron    *cron.Cron
	logger  *slog.Logger

	// pruneSchedule is a standard cron expression, validated by config.
	pruneSchedule string
	retention     time.Duration

	mu      sync.Mutex
	running bool
}

// NewHousekeeping creates the housekeeping scheduler. The history store
// may be nil, in which case only acknowledgment GC runs.
func NewHousekeeping(g *guard.Guard, store history.Store, pruneSchedule string, retentionDays int) *Housekeeping {
	return &Housekeeping{
		guard:         g,
		history:       store,
		cron:          cron.New(),
		logger:        slog.Default().With("component", "housekeeping"),
		pruneSchedule: pruneSchedule,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start schedules the jobs and starts the cron runner.
func (h *Housekeeping) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return fmt.Errorf("housekeeping already running")
	}

	if _, err := h.cron.AddFunc(ackGCSchedule, h.collectAcks); err != nil {
		return fmt.Errorf("failed to schedule acknowledgment GC: %w", err)
	}

	if h.history != nil {
		if _, err := h.cron.AddFunc(h.pruneSchedule, h.pruneHistory); err != nil {
			return fmt.Errorf("failed to schedule history pruning: %w", err)
		}
	}

	h.cron.Start()
	h.running = true
	h.logger.Info("housekeeping started",
		"ack_gc_schedule", ackGCSchedule,
		"prune_schedule", h.pruneSchedule,
	)
	return nil
}

// Stop halts the cron runner, waiting for any running job to finish.
func (h *Housekeeping) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	<-h.cron.Stop().Done()
	h.running = false
	h.logger.Info("housekeeping stopped")
}

func (h *Housekeeping) collectAcks() {
	if dropped := h.guard.CollectGarbage(); dropped > 0 {
		h.logger.Debug("expired warning acknowledgments dropped", "count", dropped)
	}
}

func (h *Housekeeping) pruneHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-h.retention)
	removed, err := h.history.Prune(ctx, cutoff)
	if err != nil {
		h.logger.Warn("history pruning failed", "error", err)
		return
	}
	if removed > 0 {
		h.logger.Info("history pruned", "removed", removed, "cutoff", cutoff)
	}
}
