package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
)

// MemoryStore implements Repository in process memory. State does not
// survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*domain.AgentState
	now    func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*domain.AgentState),
		now:    time.Now,
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// GetAgentState returns a copy of the stored state.
func (s *MemoryStore) GetAgentState(_ context.Context, sessionID string) (*domain.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[sessionID].Clone(), nil
}

// UpsertAgentState stores a copy of state.
func (s *MemoryStore) UpsertAgentState(_ context.Context, state *domain.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SessionID] = state.Clone()
	return nil
}

// DeleteAgentState removes a session's state.
func (s *MemoryStore) DeleteAgentState(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

// CleanupExpiredStates removes states not updated within ttl.
func (s *MemoryStore) CleanupExpiredStates(_ context.Context, ttl time.Duration) (int64, error) {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, state := range s.states {
		if state.UpdatedAt.Before(cutoff) {
			delete(s.states, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
