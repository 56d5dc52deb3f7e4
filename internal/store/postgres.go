package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agent_states (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	state_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_states_updated ON agent_states(updated_at);`

// PostgresStore implements Repository using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens dsn and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return NewPostgresWithDB(db), nil
}

// NewPostgresWithDB wraps an existing handle. The schema must already exist.
func NewPostgresWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAgentState retrieves the state for a session.
func (s *PostgresStore) GetAgentState(ctx context.Context, sessionID string) (*domain.AgentState, error) {
	var stateJSON []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT state_json FROM agent_states WHERE session_id = $1", sessionID).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent state: %w", err)
	}
	return domain.UnmarshalAgentState(stateJSON)
}

// UpsertAgentState creates or replaces the state for a session.
func (s *PostgresStore) UpsertAgentState(ctx context.Context, state *domain.AgentState) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}
	query := `
		INSERT INTO agent_states (session_id, user_id, phase, state_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			phase = EXCLUDED.phase,
			state_json = EXCLUDED.state_json,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		state.SessionID, state.UserID, string(state.CurrentPhase), data,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert agent state: %w", err)
	}
	return nil
}

// DeleteAgentState removes a session's state.
func (s *PostgresStore) DeleteAgentState(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM agent_states WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("delete agent state: %w", err)
	}
	return nil
}

// CleanupExpiredStates removes sessions older than ttl.
func (s *PostgresStore) CleanupExpiredStates(ctx context.Context, ttl time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM agent_states WHERE updated_at < $1", time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("cleanup expired states: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
