package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode lets readers proceed while an actor is committing.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS agent_states (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_states_updated ON agent_states(updated_at);
	CREATE INDEX IF NOT EXISTS idx_agent_states_user ON agent_states(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAgentState retrieves the state for a session.
func (s *SQLiteStore) GetAgentState(ctx context.Context, sessionID string) (*domain.AgentState, error) {
	query := `SELECT state_json FROM agent_states WHERE session_id = ?`

	var stateJSON string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent state: %w", err)
	}

	return domain.UnmarshalAgentState([]byte(stateJSON))
}

// UpsertAgentState creates or replaces the state for a session.
func (s *SQLiteStore) UpsertAgentState(ctx context.Context, state *domain.AgentState) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO agent_states (session_id, user_id, phase, state_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			phase = excluded.phase,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		state.SessionID, state.UserID, string(state.CurrentPhase), string(data),
		state.CreatedAt.Unix(), state.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent state: %w", err)
	}
	return nil
}

// DeleteAgentState removes a session's state.
func (s *SQLiteStore) DeleteAgentState(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_states WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete agent state: %w", err)
	}
	return nil
}

// CleanupExpiredStates removes sessions older than ttl.
func (s *SQLiteStore) CleanupExpiredStates(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM agent_states WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired states: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
