package binding

import (
	"context"
	"sync"
)

// MemoryStore is a mutex-guarded map.
type MemoryStore struct {
	mu       sync.RWMutex
	bindings map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bindings: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.bindings[userID]
	return email, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[userID] = email
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, userID)
	return nil
}

// Len returns the number of bindings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

func (s *MemoryStore) Close() error {
	return nil
}
