package audit

import (
	"context"
	"sync"

	"gate-control-plane/internal/audit/domain"
)

// MemoryStore is the in-memory Store implementation and the default sink
// when no database is configured. A mutex serializes appends so the slice
// order is a valid serialization of the operations that produced them.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.Entry
}

// NewMemoryStore returns an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds e to the end of the trail. It never fails.
func (s *MemoryStore) Append(_ context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

// List returns a copy of the trail in insertion order. limit <= 0 returns
// everything from offset onward.
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.entries) {
		return nil, nil
	}
	tail := s.entries[offset:]
	if limit > 0 && limit < len(tail) {
		tail = tail[:limit]
	}
	out := make([]domain.Entry, len(tail))
	copy(out, tail)
	return out, nil
}
