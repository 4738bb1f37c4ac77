package guard

import (
	"context"
	"fmt"

	"gravityhq/sentinel/pkg/notify"
)

// alertCheck is one candidate alert, fully classified.
type alertCheck struct {
	modelID    string
	label      string
	percentage float64
	level      Level
	resetText  string
}

// CheckAndWarn is the guard's public gate, meant to be called before
// permitting a model action. It returns whether the action should be
// allowed. The guard only recommends; the caller may ignore the answer.
//
// The decision path: a disabled guard or an empty at-risk set allows
// immediately. Otherwise the lowest at-risk entry is classified and run
// through the suppression gate; suppressed alerts allow silently. Surfaced
// critical/blocked alerts prompt a blocking choice (subject to a global
// prompt cooldown, during which a fallback notice is issued and the action
// is denied); surfaced warnings prompt a non-blocking choice.
func (g *Guard) CheckAndWarn(ctx context.Context) bool {
	g.mu.Lock()

	if !g.enabled || g.snapshot == nil {
		g.mu.Unlock()
		return true
	}

	check, ok := g.worstAtRiskLocked()
	if !ok {
		g.mu.Unlock()
		return true
	}

	if !g.shouldShowAlertLocked(check) {
		g.mu.Unlock()
		g.record(ctx, check, "suppressed", "", true)
		return true
	}

	if check.level >= LevelCritical {
		return g.runBlockingAlert(ctx, check)
	}
	return g.runWarningAlert(ctx, check)
}

// worstAtRiskLocked selects the at-risk entry with the lowest percentage
// (first seen wins ties) and classifies it.
func (g *Guard) worstAtRiskLocked() (alertCheck, bool) {
	var worst alertCheck
	found := false

	for _, id := range snapshotIDs(g.snapshot) {
		pct, ok := g.snapshot.Percentage(id)
		if !ok || g.thresholds.Classify(pct) < LevelWarning {
			continue
		}
		if !found || pct < worst.percentage {
			worst = alertCheck{
				modelID:    id,
				label:      g.labelFor(id),
				percentage: pct,
				level:      g.thresholds.Classify(pct),
				resetText:  g.resetTextFor(id),
			}
			found = true
		}
	}

	return worst, found
}

// shouldShowAlertLocked is the alert-suppression gate.
//
//   - No acknowledgment recorded: show.
//   - Strictly more severe than acknowledged: always show (escalation
//     breaks through suppression).
//   - Critical or blocked at/below the acknowledged level: suppress until a
//     reset clears the acknowledgment; elapsed time never re-shows these.
//   - Warning: re-show after the re-alert interval, or when the percentage
//     has dropped more than the re-alert delta since the acknowledgment.
func (g *Guard) shouldShowAlertLocked(check alertCheck) bool {
	ack, exists := g.acks[check.modelID]
	if !exists {
		return true
	}

	if check.level > ack.Level {
		return true
	}

	if check.level >= LevelCritical {
		return false
	}

	if g.now().Sub(ack.Timestamp) > warningReAlertAfter {
		return true
	}
	return ack.PercentageAtAck-check.percentage > warningReAlertDrop
}

// runBlockingAlert handles critical and blocked alerts. Called with the
// mutex held; releases it before prompting.
func (g *Guard) runBlockingAlert(ctx context.Context, check alertCheck) bool {
	now := g.now()
	if now.Sub(g.lastBlockPrompt) < blockPromptCooldown {
		g.mu.Unlock()
		// A blocking prompt was shown moments ago. Fall back to a notice
		// and deny: the user has not agreed to spend this quota.
		if g.notifier != nil {
			g.notifier.Notify(ctx, g.alertFor(check))
		}
		g.record(ctx, check, "fallback_notice", "", false)
		return false
	}
	// Claim the cooldown before releasing the mutex so a concurrent check
	// takes the fallback path instead of opening a second prompt.
	g.lastBlockPrompt = now
	g.mu.Unlock()

	if g.prompter == nil {
		if g.notifier != nil {
			g.notifier.Notify(ctx, g.alertFor(check))
		}
		g.record(ctx, check, "fallback_notice", "", false)
		return false
	}

	choice, err := g.prompter.PromptBlocking(ctx, g.alertFor(check))
	if err != nil {
		g.logger.Warn("blocking prompt failed", "model", check.modelID, "error", err)
		choice = notify.ChoiceWait
	}

	g.recordAck(check)

	allowed := choice == notify.ChoiceProceed
	g.record(ctx, check, "prompted", string(choice), allowed)
	return allowed
}

// runWarningAlert handles warning alerts. Called with the mutex held;
// releases it before prompting.
func (g *Guard) runWarningAlert(ctx context.Context, check alertCheck) bool {
	g.mu.Unlock()

	if g.prompter == nil {
		if g.notifier != nil {
			g.notifier.Notify(ctx, g.alertFor(check))
		}
		g.recordAck(check)
		g.record(ctx, check, "fallback_notice", "", true)
		return true
	}

	choice, err := g.prompter.PromptWarning(ctx, g.alertFor(check))
	if err != nil {
		g.logger.Warn("warning prompt failed", "model", check.modelID, "error", err)
		choice = notify.ChoiceDismissed
	}

	if choice == notify.ChoiceDetails {
		// The user wants the full status before proceeding: no
		// acknowledgment, and the action waits.
		g.record(ctx, check, "prompted", string(choice), false)
		return false
	}

	g.recordAck(check)
	g.record(ctx, check, "prompted", string(choice), true)
	return true
}

// recordAck stores the acknowledgment for a surfaced alert.
func (g *Guard) recordAck(check alertCheck) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acks[check.modelID] = Acknowledgment{
		Level:           check.level,
		Timestamp:       g.now(),
		PercentageAtAck: check.percentage,
	}
}

// record forwards an alert decision to the journal sink, if any.
func (g *Guard) record(ctx context.Context, check alertCheck, outcome, choice string, allowed bool) {
	if g.sink == nil {
		return
	}
	g.sink.RecordAlert(ctx, AlertEvent{
		Time:       g.now(),
		ModelID:    check.modelID,
		ModelLabel: check.label,
		Percentage: check.percentage,
		Level:      check.level,
		Outcome:    outcome,
		Choice:     choice,
		Allowed:    allowed,
	})
}

// alertFor renders the user-facing alert for a check.
func (g *Guard) alertFor(check alertCheck) notify.Alert {
	return notify.Alert{
		ModelID:    check.modelID,
		ModelLabel: check.label,
		Percentage: check.percentage,
		Severity:   check.level.Severity(),
		Message:    formatAlertMessage(check),
	}
}

// resetTextFor returns the formatted reset time for a model id. The prompt
// credit pool has no per-cycle reset timestamp. Must be called with the
// mutex held.
func (g *Guard) resetTextFor(id string) string {
	for i := range g.snapshot.Models {
		if g.snapshot.Models[i].ModelID == id {
			return g.snapshot.Models[i].FormattedTimeUntilReset
		}
	}
	return ""
}

// formatAlertMessage builds the human-readable alert text.
func formatAlertMessage(check alertCheck) string {
	var text string
	switch check.level {
	case LevelBlocked:
		text = fmt.Sprintf("%s quota is exhausted", check.label)
	case LevelCritical:
		text = fmt.Sprintf("%s quota is almost exhausted (%.1f%% left)", check.label, check.percentage)
	default:
		text = fmt.Sprintf("%s quota is running low (%.1f%% left)", check.label, check.percentage)
	}
	switch check.resetText {
	case "":
	case "Ready":
		text += ", reset is due"
	default:
		text += fmt.Sprintf(", resets in %s", check.resetText)
	}
	return text
}
