package notify

import "context"

// Severity mirrors the guard level that produced an alert, for rendering.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityBlocked  Severity = "blocked"
)

// Alert is one user-facing quota alert.
type Alert struct {
	// ModelLabel is the display name of the model at risk.
	ModelLabel string

	// ModelID is its stable identifier ("prompt_credits" for the pool).
	ModelID string

	// Percentage is the remaining quota that triggered the alert.
	Percentage float64

	// Severity says how the alert should be rendered.
	Severity Severity

	// Message is the fully formatted human-readable alert text, including
	// the formatted reset time.
	Message string
}

// Choice is the user's answer to a prompt.
type Choice string

const (
	// ChoiceProceed continues the action despite a blocking alert.
	ChoiceProceed Choice = "proceed"

	// ChoiceWait abandons the action until quota recovers.
	ChoiceWait Choice = "wait"

	// ChoiceContinue acknowledges a warning and continues.
	ChoiceContinue Choice = "continue"

	// ChoiceDetails asks for the full quota status instead of continuing.
	ChoiceDetails Choice = "details"

	// ChoiceDismissed is a warning prompt closed without an explicit pick.
	ChoiceDismissed Choice = "dismissed"
)

// Prompter asks the user about an alert and waits for an answer. Both calls
// may suspend for an unbounded, user-controlled duration; callers must not
// hold shared state while waiting.
type Prompter interface {
	// PromptBlocking presents a blocking choice: proceed anyway, or wait.
	PromptBlocking(ctx context.Context, alert Alert) (Choice, error)

	// PromptWarning presents a non-blocking choice: continue, or show the
	// full status details first.
	PromptWarning(ctx context.Context, alert Alert) (Choice, error)
}

// Notifier renders a one-off, non-interactive notice.
type Notifier interface {
	Notify(ctx context.Context, alert Alert)
}
