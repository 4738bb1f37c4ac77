package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"gravityhq/sentinel/pkg/notify"
	"gravityhq/sentinel/pkg/quota"
)

func pct(v float64) *float64 { return &v }

// snapshotWith builds a single-model snapshot for the given percentage.
// A nil percentage models the service not reporting a fraction.
func snapshotWith(p *float64) *quota.Snapshot {
	return &quota.Snapshot{
		Timestamp: time.Now(),
		Models: []quota.Model{
			{Label: "Gemini 3 Pro", ModelID: "gemini-3-pro", RemainingPercentage: p, IsExhausted: p != nil && *p == 0},
		},
	}
}

// scriptedPrompter returns pre-programmed choices and records every prompt.
type scriptedPrompter struct {
	mu       sync.Mutex
	choices  []notify.Choice
	blocking int
	warnings int
}

func (p *scriptedPrompter) next() notify.Choice {
	if len(p.choices) == 0 {
		return notify.ChoiceDismissed
	}
	choice := p.choices[0]
	p.choices = p.choices[1:]
	return choice
}

func (p *scriptedPrompter) PromptBlocking(ctx context.Context, alert notify.Alert) (notify.Choice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocking++
	return p.next(), nil
}

func (p *scriptedPrompter) PromptWarning(ctx context.Context, alert notify.Alert) (notify.Choice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings++
	return p.next(), nil
}

func (p *scriptedPrompter) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocking, p.warnings
}

// countingNotifier records non-interactive notices.
type countingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (n *countingNotifier) Notify(ctx context.Context, alert notify.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// fakeClock is an injectable manual clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGuard(prompter notify.Prompter, notifier notify.Notifier) (*Guard, *fakeClock) {
	clock := newFakeClock()
	g := New(Config{
		Thresholds: Thresholds{Warning: 10, Block: 2},
		Enabled:    true,
		Prompter:   prompter,
		Notifier:   notifier,
	})
	g.now = clock.Now
	return g, clock
}

func TestClassify(t *testing.T) {
	th := Thresholds{Warning: 10, Block: 2}

	tests := []struct {
		percentage float64
		want       Level
	}{
		{50, LevelNormal},
		{10.1, LevelNormal},
		{10, LevelWarning},
		{5, LevelWarning},
		{2.1, LevelWarning},
		{2, LevelCritical},
		{0.1, LevelCritical},
		{0, LevelBlocked},
		{-1, LevelBlocked},
	}

	for _, tt := range tests {
		if got := th.Classify(tt.percentage); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.percentage, got, tt.want)
		}
	}
}

func TestObserve_ResetDetection(t *testing.T) {
	g, _ := newTestGuard(nil, nil)

	g.Observe(snapshotWith(pct(5)))

	// 1.9 points up is consumption noise, not a reset.
	if resets := g.Observe(snapshotWith(pct(6.9))); len(resets) != 0 {
		t.Errorf("Expected no reset for a 1.9 point jump, got %v", resets)
	}

	// 2.0 points up is a reset.
	resets := g.Observe(snapshotWith(pct(8.9)))
	if len(resets) != 1 || resets[0] != "gemini-3-pro" {
		t.Errorf("Expected a reset for a 2.0 point jump, got %v", resets)
	}
}

func TestObserve_ResetClearsAcks(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceContinue}}
	g, _ := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(5)))
	if !g.CheckAndWarn(ctx) {
		t.Fatal("Expected a continued warning to allow")
	}

	// Suppressed while acknowledged.
	if !g.CheckAndWarn(ctx) {
		t.Fatal("Expected the suppressed repeat to allow")
	}
	if _, warnings := prompter.counts(); warnings != 1 {
		t.Fatalf("Expected exactly one warning prompt, got %d", warnings)
	}

	// A reset clears the acknowledgment, so the next check prompts again.
	prompter.choices = []notify.Choice{notify.ChoiceContinue}
	g.Observe(snapshotWith(pct(9)))
	g.CheckAndWarn(ctx)
	if _, warnings := prompter.counts(); warnings != 2 {
		t.Errorf("Expected a fresh prompt after the reset, got %d prompts", warnings)
	}
}

func TestObserve_UnknownPercentageIgnored(t *testing.T) {
	g, _ := newTestGuard(nil, nil)

	g.Observe(snapshotWith(pct(5)))
	// An unknown poll neither resets nor rewrites the last observation.
	if resets := g.Observe(snapshotWith(nil)); len(resets) != 0 {
		t.Errorf("Expected no resets from an unknown percentage, got %v", resets)
	}
	// The next known value still compares against 5.
	resets := g.Observe(snapshotWith(pct(7)))
	if len(resets) != 1 {
		t.Errorf("Expected a reset from 5 to 7, got %v", resets)
	}
}

func TestState(t *testing.T) {
	g, _ := newTestGuard(nil, nil)

	state := g.State()
	if state.Level != LevelNormal || state.LowestQuota != nil {
		t.Errorf("Expected an empty normal state before the first poll, got %+v", state)
	}

	g.Observe(&quota.Snapshot{
		Models: []quota.Model{
			{Label: "A", ModelID: "a", RemainingPercentage: pct(80)},
			{Label: "B", ModelID: "b", RemainingPercentage: pct(7)},
			{Label: "C", ModelID: "c"},
		},
		PromptCredits: &quota.PromptCredits{Available: 1, Monthly: 100, RemainingPercentage: 1},
	})

	state = g.State()
	if state.Level != LevelCritical {
		t.Errorf("Expected critical, got %s", state.Level)
	}
	if state.LowestQuota == nil || *state.LowestQuota != 1 {
		t.Errorf("Expected lowest quota 1, got %v", state.LowestQuota)
	}
	if state.LowestQuotaModel != "Prompt credits" {
		t.Errorf("Expected the credit pool as lowest, got %q", state.LowestQuotaModel)
	}
	if len(state.ModelsAtRisk) != 2 {
		t.Fatalf("Expected 2 entries at risk, got %+v", state.ModelsAtRisk)
	}
	// Snapshot order, pool last.
	if state.ModelsAtRisk[0].ModelID != "b" || state.ModelsAtRisk[1].ModelID != quota.PromptCreditsModelID {
		t.Errorf("Unexpected at-risk order: %+v", state.ModelsAtRisk)
	}
}

func TestCheckAndWarn_AllowsWhenIdle(t *testing.T) {
	prompter := &scriptedPrompter{}
	g, _ := newTestGuard(prompter, nil)
	ctx := context.Background()

	// Before the first snapshot there is nothing to evaluate.
	if !g.CheckAndWarn(ctx) {
		t.Error("Expected allow before the first poll")
	}

	// A healthy snapshot allows without prompting.
	g.Observe(snapshotWith(pct(80)))
	if !g.CheckAndWarn(ctx) {
		t.Error("Expected allow for a healthy quota")
	}

	// A disabled guard always allows, even at 0%.
	g.Observe(snapshotWith(pct(0)))
	g.SetEnabled(false)
	if !g.CheckAndWarn(ctx) {
		t.Error("Expected allow when disabled")
	}

	if blocking, warnings := prompter.counts(); blocking != 0 || warnings != 0 {
		t.Errorf("Expected no prompts, got %d blocking and %d warnings", blocking, warnings)
	}
}

func TestCheckAndWarn_WarningChoices(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceDetails, notify.ChoiceContinue}}
	g, _ := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(8)))

	// "Show details" leaves no acknowledgment and does not allow.
	if g.CheckAndWarn(ctx) {
		t.Error("Expected details to defer the action")
	}
	// Because nothing was acknowledged, the next check prompts again.
	if !g.CheckAndWarn(ctx) {
		t.Error("Expected continue to allow")
	}
	if _, warnings := prompter.counts(); warnings != 2 {
		t.Errorf("Expected 2 warning prompts, got %d", warnings)
	}
}

func TestCheckAndWarn_WarningReAlertAfterInterval(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceContinue, notify.ChoiceContinue}}
	g, clock := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(8)))
	g.CheckAndWarn(ctx)

	// Inside the window with an unchanged percentage: suppressed.
	clock.Advance(10 * time.Minute)
	g.CheckAndWarn(ctx)
	if _, warnings := prompter.counts(); warnings != 1 {
		t.Fatalf("Expected suppression at exactly the interval, got %d prompts", warnings)
	}

	// Strictly past the interval: re-shown.
	clock.Advance(time.Second)
	g.CheckAndWarn(ctx)
	if _, warnings := prompter.counts(); warnings != 2 {
		t.Errorf("Expected a re-alert past the interval, got %d prompts", warnings)
	}
}

func TestCheckAndWarn_WarningReAlertOnDrop(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceContinue, notify.ChoiceContinue}}
	g, _ := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(10)))
	g.CheckAndWarn(ctx)

	// A drop of exactly the re-alert delta stays suppressed.
	g.Observe(snapshotWith(pct(5)))
	g.CheckAndWarn(ctx)
	if _, warnings := prompter.counts(); warnings != 1 {
		t.Fatalf("Expected suppression at a 5 point drop, got %d prompts", warnings)
	}

	// More than the delta re-shows.
	g.Observe(snapshotWith(pct(4.9)))
	g.CheckAndWarn(ctx)
	if _, warnings := prompter.counts(); warnings != 2 {
		t.Errorf("Expected a re-alert past the drop delta, got %d prompts", warnings)
	}
}

func TestCheckAndWarn_CriticalSuppressedUntilReset(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceWait, notify.ChoiceProceed}}
	g, clock := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(1.5)))
	if g.CheckAndWarn(ctx) {
		t.Fatal("Expected wait to deny")
	}

	// Hours later, still acknowledged: critical never re-shows on time.
	clock.Advance(3 * time.Hour)
	if !g.CheckAndWarn(ctx) {
		t.Fatal("Expected the suppressed critical to allow silently")
	}
	if blocking, _ := prompter.counts(); blocking != 1 {
		t.Fatalf("Expected no re-prompt without a reset, got %d", blocking)
	}

	// A reset clears the acknowledgment and the next check prompts again.
	g.Observe(snapshotWith(pct(5)))
	g.Observe(snapshotWith(pct(1.2)))
	// 5% is only a warning, so drop back to critical first and verify the
	// prompt fires for the fresh episode.
	g.CheckAndWarn(ctx)
	if blocking, _ := prompter.counts(); blocking != 2 {
		t.Errorf("Expected a fresh blocking prompt after the reset, got %d", blocking)
	}
}

func TestCheckAndWarn_EscalationBreaksSuppression(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{
		notify.ChoiceContinue, // warning ack
		notify.ChoiceWait,     // critical
		notify.ChoiceProceed,  // blocked
	}}
	g, clock := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(8)))
	g.CheckAndWarn(ctx)

	// Warning -> critical escalates through the warning acknowledgment.
	g.Observe(snapshotWith(pct(1)))
	if g.CheckAndWarn(ctx) {
		t.Fatal("Expected wait to deny at critical")
	}

	// Critical -> blocked escalates through the critical acknowledgment.
	clock.Advance(time.Minute)
	g.Observe(snapshotWith(pct(0)))
	if !g.CheckAndWarn(ctx) {
		t.Fatal("Expected proceed to allow at blocked")
	}

	blocking, warnings := prompter.counts()
	if blocking != 2 || warnings != 1 {
		t.Errorf("Expected 2 blocking and 1 warning prompts, got %d and %d", blocking, warnings)
	}
}

func TestCheckAndWarn_BlockPromptCooldown(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceProceed, notify.ChoiceProceed}}
	notifier := &countingNotifier{}
	g, clock := newTestGuard(prompter, notifier)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(1.5)))
	if !g.CheckAndWarn(ctx) {
		t.Fatal("Expected proceed to allow")
	}

	// Within the cooldown a new episode falls back to a notice and denies.
	g.Observe(snapshotWith(pct(5)))  // reset clears the ack
	g.Observe(snapshotWith(pct(1)))  // fresh critical episode
	clock.Advance(5 * time.Second)
	if g.CheckAndWarn(ctx) {
		t.Fatal("Expected the cooldown fallback to deny")
	}
	if notifier.count() != 1 {
		t.Errorf("Expected one fallback notice, got %d", notifier.count())
	}
	if blocking, _ := prompter.counts(); blocking != 1 {
		t.Errorf("Expected no second prompt inside the cooldown, got %d", blocking)
	}

	// Past the cooldown the prompt returns.
	clock.Advance(blockPromptCooldown)
	if !g.CheckAndWarn(ctx) {
		t.Error("Expected proceed to allow after the cooldown")
	}
	if blocking, _ := prompter.counts(); blocking != 2 {
		t.Errorf("Expected a prompt after the cooldown, got %d", blocking)
	}
}

func TestCheckAndWarn_PromptCreditsAlert(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceContinue}}
	g, _ := newTestGuard(prompter, nil)
	ctx := context.Background()

	g.Observe(&quota.Snapshot{
		Models:        []quota.Model{{Label: "A", ModelID: "a", RemainingPercentage: pct(90)}},
		PromptCredits: &quota.PromptCredits{Available: 8, Monthly: 100, RemainingPercentage: 8},
	})

	if !g.CheckAndWarn(ctx) {
		t.Fatal("Expected a continued credit warning to allow")
	}
	if _, warnings := prompter.counts(); warnings != 1 {
		t.Errorf("Expected one warning prompt for the credit pool, got %d", warnings)
	}
}

func TestCheckAndWarn_NilPrompterDeniesCritical(t *testing.T) {
	notifier := &countingNotifier{}
	g, _ := newTestGuard(nil, notifier)
	ctx := context.Background()

	g.Observe(snapshotWith(pct(1)))
	if g.CheckAndWarn(ctx) {
		t.Error("Expected a promptless critical to deny")
	}
	if notifier.count() != 1 {
		t.Errorf("Expected one notice, got %d", notifier.count())
	}
}

func TestCollectGarbage(t *testing.T) {
	prompter := &scriptedPrompter{choices: []notify.Choice{notify.ChoiceContinue, notify.ChoiceWait}}
	g, clock := newTestGuard(prompter, nil)
	ctx := context.Background()

	// Acknowledge a warning, then escalate so the model carries a critical
	// acknowledgment while the pool keeps a warning one.
	g.Observe(&quota.Snapshot{
		Models:        []quota.Model{{Label: "A", ModelID: "a", RemainingPercentage: pct(50)}},
		PromptCredits: &quota.PromptCredits{Available: 8, Monthly: 100, RemainingPercentage: 8},
	})
	g.CheckAndWarn(ctx)
	g.Observe(&quota.Snapshot{
		Models:        []quota.Model{{Label: "A", ModelID: "a", RemainingPercentage: pct(1)}},
		PromptCredits: &quota.PromptCredits{Available: 8, Monthly: 100, RemainingPercentage: 8},
	})
	g.CheckAndWarn(ctx)

	// Inside the TTL nothing is dropped.
	if dropped := g.CollectGarbage(); dropped != 0 {
		t.Errorf("Expected no drops inside the TTL, got %d", dropped)
	}

	clock.Advance(warningAckTTL + time.Minute)
	if dropped := g.CollectGarbage(); dropped != 1 {
		t.Errorf("Expected exactly the warning acknowledgment to drop, got %d", dropped)
	}
	// The critical acknowledgment survives garbage collection.
	if dropped := g.CollectGarbage(); dropped != 0 {
		t.Errorf("Expected nothing further to drop, got %d", dropped)
	}
}

func TestToggleAndThresholds(t *testing.T) {
	g, _ := newTestGuard(nil, nil)

	if got := g.Toggle(); got {
		t.Error("Expected toggle to disable an enabled guard")
	}
	if got := g.Toggle(); !got {
		t.Error("Expected toggle to re-enable")
	}

	g.Observe(snapshotWith(pct(15)))
	if g.State().Level != LevelNormal {
		t.Fatal("Expected 15 percent to be normal at the default thresholds")
	}
	g.SetThresholds(Thresholds{Warning: 20, Block: 5})
	if g.State().Level != LevelWarning {
		t.Error("Expected 15 percent to be a warning after widening the thresholds")
	}
}
