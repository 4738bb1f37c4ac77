package history

import (
	"context"
	"time"

	"gravityhq/sentinel/pkg/quota"
)

// Point is one model's quota state at one poll.
type Point struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time

	// ModelID is the model's stable identifier ("prompt_credits" for the
	// shared pool).
	ModelID string

	// Label is the display name at the time of the snapshot.
	Label string

	// Percentage is the remaining quota, or nil when it was unknown.
	Percentage *float64

	// Exhausted reports whether the quota was explicitly exhausted.
	Exhausted bool
}

// Store persists snapshots and serves trend queries.
type Store interface {
	// SaveSnapshot persists one snapshot's per-model rows.
	SaveSnapshot(ctx context.Context, snapshot *quota.Snapshot) error

	// ModelHistory returns a model's points since the given time, oldest
	// first.
	ModelHistory(ctx context.Context, modelID string, since time.Time) ([]Point, error)

	// Prune deletes points older than the cutoff and returns how many rows
	// were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// pointsFromSnapshot flattens a snapshot into storable points.
func pointsFromSnapshot(snapshot *quota.Snapshot) []Point {
	points := make([]Point, 0, len(snapshot.Models)+1)
	for i := range snapshot.Models {
		m := &snapshot.Models[i]
		points = append(points, Point{
			Timestamp:  snapshot.Timestamp,
			ModelID:    m.ModelID,
			Label:      m.Label,
			Percentage: m.RemainingPercentage,
			Exhausted:  m.IsExhausted,
		})
	}
	if pc := snapshot.PromptCredits; pc != nil {
		pct := pc.RemainingPercentage
		points = append(points, Point{
			Timestamp:  snapshot.Timestamp,
			ModelID:    quota.PromptCreditsModelID,
			Label:      "Prompt credits",
			Percentage: &pct,
			Exhausted:  pct <= 0,
		})
	}
	return points
}
