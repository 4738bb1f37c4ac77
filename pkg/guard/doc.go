// Package guard implements the quota decision engine.
//
// # Overview
//
// The guard consumes quota snapshots and turns them into two things: a
// derived State for presentation, and an allow/deny recommendation for
// callers about to spend quota (CheckAndWarn). It never enforces anything;
// the caller remains free to ignore the recommendation.
//
// # Severity levels
//
// Levels are ordered normal < warning < critical < blocked and are always
// recomputed from the latest snapshot's lowest known percentage against the
// configured thresholds. Thresholds are inclusive on their upper bound:
// p <= 0 is blocked, p <= block is critical, p <= warning is warning.
// Models with an unknown percentage never contribute to the level; unknown
// is neither healthy nor exhausted.
//
// # Alert fatigue
//
// Every surfaced alert is remembered as an acknowledgment per model id.
// Escalation to a strictly more severe level always breaks through
// suppression. Critical and blocked acknowledgments suppress repeats until
// a quota reset is detected. Warning acknowledgments re-alert after ten
// minutes or after a further five-point drop, and are garbage collected
// after an hour.
//
// A reset is inferred heuristically: a model's percentage jumping up by two
// points or more since the last observation clears its acknowledgment (and
// the prompt-credit acknowledgment, since any reset suggests the overall
// acknowledgment state is stale).
//
// # Concurrency
//
// Internal state is owned by one mutex. CheckAndWarn may suspend for an
// unbounded, user-controlled time while a prompt is open; the mutex is
// released for the whole wait so polling and other callers are never
// stalled behind a prompt. The blocking-prompt cooldown is claimed under
// the same mutex before prompting, so two near-simultaneous checks degrade
// to exactly one prompt.
package guard
