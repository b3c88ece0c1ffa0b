package history

import (
	"context"
	"sync"
)

// MemoryStore keeps history in process. Used by tests, the CLI and
// single-instance deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string][]string
	maxEntries int
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]string), maxEntries: pairedMax(maxEntries)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.sessions[sessionID], entries...)
	if over := len(h) - s.maxEntries; over > 0 {
		h = append([]string(nil), h[over:]...)
	}
	s.sessions[sessionID] = h
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.sessions[sessionID]
	limit = effectiveLimit(limit, s.maxEntries)
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]string{}, h...), nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
