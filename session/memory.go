package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.Complete() {
		return nil, ErrNotFound
	}
	return m.current.Clone(), nil
}

func (m *MemoryStore) Set(_ context.Context, s *Session) error {
	if !s.Complete() {
		return ErrIncomplete
	}
	m.mu.Lock()
	m.current = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}
