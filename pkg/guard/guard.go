package guard

import (
	"log/slog"
	"sync"
	"time"

	"gravityhq/sentinel/pkg/notify"
	"gravityhq/sentinel/pkg/quota"
)

const (
	// ResetJumpPoints is the upward percentage jump that is interpreted as
	// a quota reset.
	ResetJumpPoints = 2.0

	// warningReAlertAfter is how long a warning acknowledgment suppresses
	// repeats with an unchanged percentage.
	warningReAlertAfter = 10 * time.Minute

	// warningReAlertDrop is the further percentage drop that re-triggers a
	// warning inside the suppression window.
	warningReAlertDrop = 5.0

	// warningAckTTL is how long warning acknowledgments are retained before
	// housekeeping drops them.
	warningAckTTL = time.Hour

	// blockPromptCooldown is the minimum spacing between blocking prompts.
	blockPromptCooldown = 15 * time.Second
)

// Config configures a Guard.
type Config struct {
	// Thresholds are the classification boundaries.
	Thresholds Thresholds

	// Enabled is the initial guard switch. A disabled guard always allows.
	Enabled bool

	// Prompter presents interactive alerts. Required for CheckAndWarn to
	// surface anything; a nil prompter degrades every alert to a notice.
	Prompter notify.Prompter

	// Notifier renders non-interactive notices (block-cooldown fallback).
	Notifier notify.Notifier

	// Sink receives alert decisions for the journal. Optional.
	Sink EventSink
}

// Guard is the stateful quota decision engine. All fields behind mu are
// owned exclusively by it; the mutex is never held across a user prompt.
type Guard struct {
	mu         sync.Mutex
	thresholds Thresholds
	enabled    bool
	snapshot   *quota.Snapshot

	// lastObserved remembers each id's most recent known percentage for
	// reset detection.
	lastObserved map[string]float64

	// acks remembers what has already been communicated, keyed by model id.
	acks map[string]Acknowledgment

	// lastBlockPrompt is the monotonic-clock gate for blocking prompts.
	lastBlockPrompt time.Time

	prompter notify.Prompter
	notifier notify.Notifier
	sink     EventSink
	logger   *slog.Logger

	// now is the clock, injectable for suppression-timing tests.
	now func() time.Time
}

// New creates a guard.
func New(config Config) *Guard {
	return &Guard{
		thresholds:   config.Thresholds,
		enabled:      config.Enabled,
		prompter:     config.Prompter,
		notifier:     config.Notifier,
		sink:         config.Sink,
		lastObserved: make(map[string]float64),
		acks:         make(map[string]Acknowledgment),
		logger:       slog.Default().With("component", "guard"),
		now:          time.Now,
	}
}

// Observe consumes a new snapshot: it runs reset detection against the
// previous observations, then retains the snapshot as the latest. Returns
// the ids whose acknowledgments were cleared by a detected reset.
func (g *Guard) Observe(snapshot *quota.Snapshot) []string {
	if snapshot == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var resets []string
	for _, id := range snapshotIDs(snapshot) {
		current, ok := snapshot.Percentage(id)
		if !ok {
			// Unknown percentages neither fire resets nor update history.
			continue
		}

		if last, seen := g.lastObserved[id]; seen && current >= last+ResetJumpPoints {
			resets = append(resets, id)
			delete(g.acks, id)
			// Any reset is a signal the overall acknowledgment state may be
			// stale; the shared pool's acknowledgment goes with it.
			delete(g.acks, quota.PromptCreditsModelID)
			g.logger.Info("quota reset detected",
				"model", id,
				"previous", last,
				"current", current,
			)
		}
		g.lastObserved[id] = current
	}

	g.snapshot = snapshot
	return resets
}

// State derives the guard's current condition from the latest snapshot.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Guard) stateLocked() State {
	state := State{Level: LevelNormal, GuardActive: g.enabled}
	if g.snapshot == nil {
		return state
	}

	for _, id := range snapshotIDs(g.snapshot) {
		pct, ok := g.snapshot.Percentage(id)
		if !ok {
			continue
		}

		if state.LowestQuota == nil || pct < *state.LowestQuota {
			p := pct
			state.LowestQuota = &p
			state.LowestQuotaModel = g.labelFor(id)
		}

		if level := g.thresholds.Classify(pct); level >= LevelWarning {
			state.ModelsAtRisk = append(state.ModelsAtRisk, ModelRisk{
				ModelID:    id,
				Label:      g.labelFor(id),
				Percentage: pct,
				Level:      level,
			})
		}
	}

	if state.LowestQuota != nil {
		state.Level = g.thresholds.Classify(*state.LowestQuota)
	}
	return state
}

// Snapshot returns the latest observed snapshot, or nil before the first
// successful poll.
func (g *Guard) Snapshot() *quota.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot
}

// SetEnabled flips the guard switch.
func (g *Guard) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

// Toggle flips the guard switch and returns the new value.
func (g *Guard) Toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = !g.enabled
	return g.enabled
}

// SetThresholds replaces the classification boundaries (config hot reload).
func (g *Guard) SetThresholds(t Thresholds) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thresholds = t
}

// CollectGarbage drops warning-level acknowledgments older than their TTL.
// Critical and blocked acknowledgments are kept until a reset clears them.
// Returns the number of entries dropped.
func (g *Guard) CollectGarbage() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-warningAckTTL)
	dropped := 0
	for id, ack := range g.acks {
		if ack.Level == LevelWarning && ack.Timestamp.Before(cutoff) {
			delete(g.acks, id)
			dropped++
		}
	}
	return dropped
}

// labelFor resolves a model id to its display label using the latest
// snapshot. Must be called with the mutex held.
func (g *Guard) labelFor(id string) string {
	if id == quota.PromptCreditsModelID {
		return "Prompt credits"
	}
	for i := range g.snapshot.Models {
		if g.snapshot.Models[i].ModelID == id {
			return g.snapshot.Models[i].Label
		}
	}
	return id
}

// snapshotIDs lists every evaluated id in snapshot order, with the
// synthetic prompt-credit pool last.
func snapshotIDs(s *quota.Snapshot) []string {
	ids := make([]string, 0, len(s.Models)+1)
	for i := range s.Models {
		ids = append(ids, s.Models[i].ModelID)
	}
	if s.PromptCredits != nil {
		ids = append(ids, quota.PromptCreditsModelID)
	}
	return ids
}
