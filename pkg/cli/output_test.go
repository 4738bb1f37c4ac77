package cli

import (
	"bytes"
	"strings"
	"testing"

	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/quota"
)

func pct(v float64) *float64 { return &v }

func testSnapshot() *quota.Snapshot {
	return &quota.Snapshot{
		Models: []quota.Model{
			{Label: "Gemini 3 Pro", ModelID: "gemini-3-pro", RemainingPercentage: pct(80), FormattedTimeUntilReset: "2h 15m"},
			{Label: "Fast", ModelID: "fast-1", RemainingPercentage: pct(5)},
			{Label: "Mystery", ModelID: "mystery-1"},
		},
		PromptCredits: &quota.PromptCredits{Available: 250, Monthly: 500, RemainingPercentage: 50},
	}
}

func TestWriteSnapshotTable(t *testing.T) {
	buf := &bytes.Buffer{}
	low := 5.0
	state := guard.State{
		Level:            guard.LevelWarning,
		LowestQuota:      &low,
		LowestQuotaModel: "Fast",
		GuardActive:      true,
	}

	err := WriteSnapshotTable(buf, state, testSnapshot(), guard.Thresholds{Warning: 10, Block: 2}, nil)
	if err != nil {
		t.Fatalf("WriteSnapshotTable failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Gemini 3 Pro", "80.0%", "2h 15m",
		"Fast", "5.0%", "warning",
		"Mystery", "unknown",
		"Prompt credits", "50.0% (250/500)",
		"Guard: on", "Level: warning (Fast at 5.0%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestOrderedModels_Pinned(t *testing.T) {
	snapshot := testSnapshot()

	models := orderedModels(snapshot, []string{"fast-1", "not-present"})
	if len(models) != 3 {
		t.Fatalf("Expected all 3 models, got %d", len(models))
	}
	if models[0].ModelID != "fast-1" {
		t.Errorf("Expected the pinned model first, got %q", models[0].ModelID)
	}
	if models[1].ModelID != "gemini-3-pro" || models[2].ModelID != "mystery-1" {
		t.Errorf("Expected snapshot order for the rest, got %q then %q", models[1].ModelID, models[2].ModelID)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil); got != "" {
		t.Errorf("Expected an empty sparkline for no data, got %q", got)
	}

	line := Sparkline([]float64{0, 50, 100})
	runes := []rune(line)
	if len(runes) != 3 {
		t.Fatalf("Expected 3 glyphs, got %q", line)
	}
	if runes[0] != '▁' || runes[2] != '█' {
		t.Errorf("Expected the extremes at the ends, got %q", line)
	}
	// Out-of-range values clamp instead of panicking.
	if got := Sparkline([]float64{-10, 150}); []rune(got)[0] != '▁' || []rune(got)[1] != '█' {
		t.Errorf("Expected clamped glyphs, got %q", got)
	}
}
