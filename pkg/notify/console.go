package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ConsolePrompter implements Prompter over an interactive terminal. It is
// the fallback surface when the daemon runs without an attached UI.
type ConsolePrompter struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewConsolePrompter creates a prompter over stdin/stdout. Passing nil for
// either stream selects the os defaults.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &ConsolePrompter{in: in, out: out}
}

// PromptBlocking asks "[p]roceed / [w]ait". Anything other than an explicit
// proceed answers wait: the safe default for a blocking alert.
func (p *ConsolePrompter) PromptBlocking(ctx context.Context, alert Alert) (Choice, error) {
	answer, err := p.ask(ctx, alert, "[p]roceed anyway / [w]ait for reset")
	if err != nil {
		return ChoiceWait, err
	}
	if strings.HasPrefix(answer, "p") {
		return ChoiceProceed, nil
	}
	return ChoiceWait, nil
}

// PromptWarning asks "[c]ontinue / [d]etails". An empty or unrecognized
// answer counts as a dismissal, which acknowledges the warning.
func (p *ConsolePrompter) PromptWarning(ctx context.Context, alert Alert) (Choice, error) {
	answer, err := p.ask(ctx, alert, "[c]ontinue / show [d]etails")
	if err != nil {
		return ChoiceDismissed, err
	}
	switch {
	case strings.HasPrefix(answer, "d"):
		return ChoiceDetails, nil
	case strings.HasPrefix(answer, "c"):
		return ChoiceContinue, nil
	default:
		return ChoiceDismissed, nil
	}
}

// ask writes the alert and reads one answer line without stalling on a
// closed or silent terminal forever: the read happens on its own goroutine
// so context cancellation still unblocks the caller.
func (p *ConsolePrompter) ask(ctx context.Context, alert Alert, options string) (string, error) {
	p.mu.Lock()
	fmt.Fprintf(p.out, "\n[%s] %s\n%s> ", strings.ToUpper(string(alert.Severity)), alert.Message, options)
	p.mu.Unlock()

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(p.in)
		line, err := reader.ReadString('\n')
		ch <- result{strings.ToLower(strings.TrimSpace(line)), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", r.err
		}
		return r.line, nil
	}
}

// ConsoleNotifier renders notices through the structured logger, which is
// where a headless daemon's one-off messages belong.
type ConsoleNotifier struct {
	logger *slog.Logger
}

// NewConsoleNotifier creates a notifier backed by the default logger.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{logger: slog.Default().With("component", "notify")}
}

// Notify logs the alert at a level matching its severity.
func (n *ConsoleNotifier) Notify(ctx context.Context, alert Alert) {
	attrs := []any{
		"model", alert.ModelLabel,
		"percentage", alert.Percentage,
		"severity", alert.Severity,
	}
	if alert.Severity == SeverityWarning {
		n.logger.Warn(alert.Message, attrs...)
	} else {
		n.logger.Error(alert.Message, attrs...)
	}
}

// SoundGate rate-limits the audible alert hook. Sound playback itself is a
// presentation concern; this gate only decides whether the hook may fire.
type SoundGate struct {
	mu       sync.Mutex
	enabled  bool
	cooldown time.Duration
	lastFire time.Time
	now      func() time.Time
}

// NewSoundGate creates a gate with the given cooldown.
// If cooldown is 0, defaults to 30 seconds.
func NewSoundGate(enabled bool, cooldown time.Duration) *SoundGate {
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}
	return &SoundGate{enabled: enabled, cooldown: cooldown, now: time.Now}
}

// SetEnabled flips the gate at runtime (config hot reload).
func (g *SoundGate) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

// Allow reports whether a sound may play now, and if so starts the
// cooldown. Two near-simultaneous calls degrade to a single allowance.
func (g *SoundGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.enabled {
		return false
	}
	now := g.now()
	if now.Sub(g.lastFire) < g.cooldown {
		return false
	}
	g.lastFire = now
	return true
}
