package quota

import (
	"fmt"
	"time"
)

// PromptCreditsModelID is the synthetic model identifier under which the
// shared prompt-credit pool is evaluated by the guard.
const PromptCreditsModelID = "prompt_credits"

// Model holds the derived quota state for a single model as reported by the
// agent service on one poll. Instances are re-created on every poll, never
// mutated in place.
type Model struct {
	// Label is the human-readable model name (e.g., "Gemini 3 Pro").
	Label string

	// ModelID is the stable identifier the service uses for the model.
	ModelID string

	// RemainingPercentage is the remaining quota in [0,100], or nil when the
	// service did not report a fraction for this model. Nil means "unknown",
	// not "healthy" and not "exhausted".
	RemainingPercentage *float64

	// IsExhausted reports whether the service explicitly reported the quota
	// as fully consumed (fraction present and zero).
	IsExhausted bool

	// ResetTime is when the quota replenishes. Zero when unknown.
	ResetTime time.Time

	// TimeUntilReset is ResetTime minus the poll time. Negative means the
	// reset is already due.
	TimeUntilReset time.Duration

	// FormattedTimeUntilReset is TimeUntilReset rendered for display
	// ("2h 15m", "45m", "Ready").
	FormattedTimeUntilReset string
}

// PromptCredits holds the derived state of the shared prompt-credit pool.
type PromptCredits struct {
	// Available is the number of credits left this cycle.
	Available float64

	// Monthly is the total allotment per cycle. Always positive; the pool is
	// omitted from the snapshot entirely when no positive allotment exists.
	Monthly float64

	// RemainingPercentage is Available/Monthly scaled to [0,100].
	RemainingPercentage float64
}

// Snapshot is one normalized observation of all quota state, produced by a
// single successful poll of the status endpoint.
type Snapshot struct {
	// Timestamp is when the poll completed.
	Timestamp time.Time

	// Models lists per-model quota in the order the service reported them.
	Models []Model

	// PromptCredits is the shared credit pool, or nil when the service does
	// not report a positive monthly allotment.
	PromptCredits *PromptCredits
}

// Percentage returns the remaining percentage for the given model id, or
// false when the id is not present in the snapshot or its fraction is
// unknown. PromptCreditsModelID resolves to the credit pool.
func (s *Snapshot) Percentage(modelID string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	if modelID == PromptCreditsModelID {
		if s.PromptCredits == nil {
			return 0, false
		}
		return s.PromptCredits.RemainingPercentage, true
	}
	for i := range s.Models {
		if s.Models[i].ModelID == modelID {
			if s.Models[i].RemainingPercentage == nil {
				return 0, false
			}
			return *s.Models[i].RemainingPercentage, true
		}
	}
	return 0, false
}

// FormatTimeUntilReset renders a duration for display. Durations that are
// zero or negative (reset already due) render as "Ready".
func FormatTimeUntilReset(d time.Duration) string {
	if d <= 0 {
		return "Ready"
	}
	d = d.Round(time.Minute)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "<1m"
	}
}
