package store

import (
	"context"
	"sync"
)

// Store keeps the last callback payload received per request id, for local
// round-trip testing of the callback mechanism.
type Store interface {
	Save(ctx context.Context, requestID string, body []byte) error
	Last(ctx context.Context, requestID string) ([]byte, bool, error)
}

// MemoryStore is the default in-process implementation. It grows without
// bound; it exists only as local test scaffolding.
type MemoryStore struct {
	mu   sync.RWMutex
	last map[string][]byte
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string][]byte)}
}

// Save records body as the most recent payload for requestID.
func (s *MemoryStore) Save(_ context.Context, requestID string, body []byte) error {
	buf := make([]byte, len(body))
	copy(buf, body)
	s.mu.Lock()
	s.last[requestID] = buf
	s.mu.Unlock()
	return nil
}

// Last returns the most recent payload for requestID, if any.
func (s *MemoryStore) Last(_ context.Context, requestID string) ([]byte, bool, error) {
	s.mu.RLock()
	body, ok := s.last[requestID]
	s.mu.RUnlock()
	return body, ok, nil
}
