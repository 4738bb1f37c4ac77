package journal

import (
	"context"
	"sync"
)

// MemoryStorage implements Storage in memory, for tests and for runs with
// journaling disabled at the storage level.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append stores one entry.
func (s *MemoryStorage) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns the newest entries, newest first.
func (s *MemoryStorage) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]*Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Close is a no-op for the memory storage.
func (s *MemoryStorage) Close() error {
	return nil
}
