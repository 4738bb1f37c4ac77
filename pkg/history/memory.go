package history

import (
	"context"
	"sync"
	"time"

	"gravityhq/sentinel/pkg/quota"
)

// MemoryStore implements Store in memory. It backs tests and runs where
// history persistence is disabled but the status command still wants a
// within-session trend.
type MemoryStore struct {
	mu     sync.RWMutex
	points []Point
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveSnapshot appends the snapshot's points.
func (s *MemoryStore) SaveSnapshot(ctx context.Context, snapshot *quota.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, pointsFromSnapshot(snapshot)...)
	return nil
}

// ModelHistory returns a model's points since the given time, oldest first.
// Insertion order is already chronological.
func (s *MemoryStore) ModelHistory(ctx context.Context, modelID string, since time.Time) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Point
	for _, p := range s.points {
		if p.ModelID == modelID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Prune removes points older than the cutoff.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.points[:0]
	var removed int64
	for _, p := range s.points {
		if p.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept
	return removed, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
