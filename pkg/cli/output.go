package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/quota"
)

// levelBadge maps a guard level to its single-character status marker.
func levelBadge(level guard.Level) string {
	switch level {
	case guard.LevelNormal:
		return "●"
	case guard.LevelWarning:
		return "▲"
	case guard.LevelCritical:
		return "▲▲"
	case guard.LevelBlocked:
		return "✗"
	default:
		return "?"
	}
}

// WriteSnapshotTable renders a snapshot as an aligned table. Pinned models
// are listed first, in their configured order.
func WriteSnapshotTable(w io.Writer, state guard.State, snapshot *quota.Snapshot, thresholds guard.Thresholds, pinned []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tREMAINING\tSTATUS\tRESETS")

	order := orderedModels(snapshot, pinned)
	for _, m := range order {
		remaining := "unknown"
		status := "-"
		if m.RemainingPercentage != nil {
			remaining = fmt.Sprintf("%.1f%%", *m.RemainingPercentage)
			level := thresholds.Classify(*m.RemainingPercentage)
			status = fmt.Sprintf("%s %s", levelBadge(level), level)
		}
		reset := m.FormattedTimeUntilReset
		if reset == "" {
			reset = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Label, remaining, status, reset)
	}

	if pc := snapshot.PromptCredits; pc != nil {
		level := thresholds.Classify(pc.RemainingPercentage)
		fmt.Fprintf(tw, "Prompt credits\t%.1f%% (%.0f/%.0f)\t%s %s\t-\n",
			pc.RemainingPercentage, pc.Available, pc.Monthly, levelBadge(level), level)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nGuard: %s", onOff(state.GuardActive))
	if state.LowestQuota != nil {
		fmt.Fprintf(w, "  Level: %s (%s at %.1f%%)", state.Level, state.LowestQuotaModel, *state.LowestQuota)
	}
	fmt.Fprintln(w)
	return nil
}

// orderedModels returns the snapshot's models with pinned ids first.
func orderedModels(snapshot *quota.Snapshot, pinned []string) []quota.Model {
	if len(pinned) == 0 {
		return snapshot.Models
	}

	pinnedSet := make(map[string]int, len(pinned))
	for i, id := range pinned {
		pinnedSet[id] = i
	}

	var front, rest []quota.Model
	front = make([]quota.Model, len(pinned))
	used := make([]bool, len(pinned))
	for _, m := range snapshot.Models {
		if idx, ok := pinnedSet[m.ModelID]; ok {
			front[idx] = m
			used[idx] = true
			continue
		}
		rest = append(rest, m)
	}

	out := make([]quota.Model, 0, len(snapshot.Models))
	for i, m := range front {
		if used[i] {
			out = append(out, m)
		}
	}
	return append(out, rest...)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Sparkline renders a percentage series as a compact trend glyph string.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	glyphs := []rune("▁▂▃▄▅▆▇█")
	var sb strings.Builder
	for _, v := range values {
		idx := int(v / 100 * float64(len(glyphs)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(glyphs) {
			idx = len(glyphs) - 1
		}
		sb.WriteRune(glyphs[idx])
	}
	return sb.String()
}
