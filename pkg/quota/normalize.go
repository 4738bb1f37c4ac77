package quota

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// statusResponse mirrors the wire shape of the user-status RPC response.
// Every field is optional; normalization fails soft on anything missing.
type statusResponse struct {
	ModelQuotas []rawModelQuota `json:"modelQuotas"`
	Plan        *rawPlanStatus  `json:"planStatus"`
}

type rawModelQuota struct {
	Label             string          `json:"label"`
	ModelID           string          `json:"modelId"`
	RemainingFraction *float64        `json:"remainingFraction"`
	ResetTime         json.RawMessage `json:"resetTime"`
}

type rawPlanStatus struct {
	MonthlyPromptCredits   float64 `json:"monthlyPromptCredits"`
	AvailablePromptCredits float64 `json:"availablePromptCredits"`
}

// Normalize converts a raw status payload into a Snapshot taken at now.
//
// Derivation rules:
//   - remainingPercentage = remainingFraction * 100, only when the fraction
//     is present. Absent fractions propagate as nil.
//   - isExhausted is true only for a present, zero fraction.
//   - timeUntilReset = resetTime - now; negative values format as "Ready".
//   - prompt credits are included only for a positive monthly allotment.
func Normalize(payload *statusResponse, now time.Time) *Snapshot {
	snapshot := &Snapshot{Timestamp: now}

	for _, raw := range payload.ModelQuotas {
		model := Model{
			Label:   raw.Label,
			ModelID: raw.ModelID,
		}
		if model.ModelID == "" {
			// A quota entry with no id cannot be tracked across polls.
			continue
		}
		if model.Label == "" {
			model.Label = model.ModelID
		}

		if raw.RemainingFraction != nil {
			pct := clampPercentage(*raw.RemainingFraction * 100)
			model.RemainingPercentage = &pct
			model.IsExhausted = *raw.RemainingFraction == 0
		}

		if reset, ok := parseResetTime(raw.ResetTime); ok {
			model.ResetTime = reset
			model.TimeUntilReset = reset.Sub(now)
			model.FormattedTimeUntilReset = FormatTimeUntilReset(model.TimeUntilReset)
		}

		snapshot.Models = append(snapshot.Models, model)
	}

	if payload.Plan != nil && payload.Plan.MonthlyPromptCredits > 0 {
		monthly := payload.Plan.MonthlyPromptCredits
		available := payload.Plan.AvailablePromptCredits
		snapshot.PromptCredits = &PromptCredits{
			Available:           available,
			Monthly:             monthly,
			RemainingPercentage: clampPercentage(available / monthly * 100),
		}
	}

	return snapshot
}

// clampPercentage bounds a derived percentage to [0,100]. Upstream fractions
// slightly out of range have been observed around cycle rollover.
func clampPercentage(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// parseResetTime accepts the reset timestamp formats the service has been
// seen to emit: RFC 3339 strings, epoch seconds, and epoch milliseconds.
func parseResetTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	text := strings.TrimSpace(string(raw))

	if strings.HasPrefix(text, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, false
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339, str); err == nil {
			return ts, true
		}
		// Some payloads quote the epoch.
		if epoch, err := strconv.ParseFloat(str, 64); err == nil {
			return epochToTime(epoch)
		}
		return time.Time{}, false
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err != nil {
		return time.Time{}, false
	}
	return epochToTime(epoch)
}

// epochToTime interprets large values as milliseconds and the rest as
// seconds. The cutoff (1e12) is past the year 33658 in seconds, so the two
// ranges cannot collide for plausible reset times. Non-positive values and
// values past 1e15 (the same horizon in milliseconds) are rejected rather
// than converted, since int64(epoch) on a float that large yields an
// arbitrary time.
func epochToTime(epoch float64) (time.Time, bool) {
	if epoch <= 0 || epoch >= 1e15 {
		return time.Time{}, false
	}
	if epoch >= 1e12 {
		return time.UnixMilli(int64(epoch)), true
	}
	return time.Unix(int64(epoch), 0), true
}
