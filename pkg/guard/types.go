package guard

import (
	"context"
	"time"

	"gravityhq/sentinel/pkg/notify"
)

// Level is the guard's severity classification, ordered by severity.
type Level int

const (
	// LevelNormal means all known quotas are above the warning threshold.
	LevelNormal Level = iota

	// LevelWarning means at least one quota is at or below the warning
	// threshold.
	LevelWarning

	// LevelCritical means at least one quota is at or below the block
	// threshold.
	LevelCritical

	// LevelBlocked means at least one quota is fully exhausted.
	LevelBlocked
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Severity maps a level to its presentation severity. Only meaningful for
// levels that produce alerts.
func (l Level) Severity() notify.Severity {
	switch l {
	case LevelCritical:
		return notify.SeverityCritical
	case LevelBlocked:
		return notify.SeverityBlocked
	default:
		return notify.SeverityWarning
	}
}

// Thresholds are the percentage boundaries the guard classifies against.
// Invariant: Block <= Warning, both in [0,100].
type Thresholds struct {
	// Warning is the percentage at or below which a model is "at risk".
	Warning float64

	// Block is the percentage at or below which actions should be blocked.
	Block float64
}

// Classify maps a remaining percentage to a level. Boundaries are inclusive
// on their upper bound.
func (t Thresholds) Classify(percentage float64) Level {
	switch {
	case percentage <= 0:
		return LevelBlocked
	case percentage <= t.Block:
		return LevelCritical
	case percentage <= t.Warning:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// ModelRisk is one model at or below the warning threshold.
type ModelRisk struct {
	// ModelID is the model's stable identifier, or "prompt_credits".
	ModelID string

	// Label is the display name.
	Label string

	// Percentage is the remaining quota.
	Percentage float64

	// Level is the model's own classification.
	Level Level
}

// State is the guard's externally visible condition, derived entirely from
// the latest snapshot and current thresholds. It is recomputed on demand,
// never incrementally patched, so it can never be stale relative to the
// snapshot that produced it.
type State struct {
	// Level is the classification of the lowest known percentage across all
	// models and the prompt-credit pool.
	Level Level

	// ModelsAtRisk lists entries at or below the warning threshold, in
	// snapshot order (prompt credits last).
	ModelsAtRisk []ModelRisk

	// LowestQuota is the lowest known remaining percentage, or nil when no
	// model reported one.
	LowestQuota *float64

	// LowestQuotaModel is the display label of the entry behind LowestQuota.
	LowestQuotaModel string

	// GuardActive reports whether alerting and gating are enabled.
	GuardActive bool
}

// Acknowledgment is the guard's memory that the user has already been told
// about a model at a given severity.
type Acknowledgment struct {
	// Level is the severity that was communicated.
	Level Level

	// Timestamp is when the user acknowledged the alert.
	Timestamp time.Time

	// PercentageAtAck is the remaining percentage at that moment.
	PercentageAtAck float64
}

// AlertEvent describes one alerting decision, for the journal.
type AlertEvent struct {
	Time       time.Time
	ModelID    string
	ModelLabel string
	Percentage float64
	Level      Level

	// Outcome is what the guard did: "prompted", "fallback_notice" (block
	// cooldown active), or "suppressed".
	Outcome string

	// Choice is the user's answer for prompted outcomes, empty otherwise.
	Choice string

	// Allowed is the recommendation returned to the caller.
	Allowed bool
}

// EventSink receives alerting decisions. Implementations must not block;
// the journal recorder writes asynchronously.
type EventSink interface {
	RecordAlert(ctx context.Context, event AlertEvent)
}

// MultiSink fans each alert decision out to every non-nil sink, so the
// journal and the metrics collector can both observe alerting without the
// guard knowing about either. Returns nil when no sink remains.
func MultiSink(sinks ...EventSink) EventSink {
	kept := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return kept
	}
}

type multiSink []EventSink

func (m multiSink) RecordAlert(ctx context.Context, event AlertEvent) {
	for _, s := range m {
		s.RecordAlert(ctx, event)
	}
}
