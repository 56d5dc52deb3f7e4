// Package store provides the durable key-value slot that holds each
// session's serialized workflow state.
package store

import (
	"context"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
)

// Repository persists one AgentState per session id.
type Repository interface {
	// GetAgentState retrieves the state for a session. It returns nil, nil
	// when the session has never been stored or was cleared.
	GetAgentState(ctx context.Context, sessionID string) (*domain.AgentState, error)

	// UpsertAgentState creates or replaces the state for state.SessionID.
	UpsertAgentState(ctx context.Context, state *domain.AgentState) error

	// DeleteAgentState removes a session's state.
	DeleteAgentState(ctx context.Context, sessionID string) error

	// CleanupExpiredStates removes sessions not updated within ttl.
	CleanupExpiredStates(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
