package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/logoforge/internal/domain"
)

func TestPostgresStore_GetAgentState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresWithDB(db)
	ctx := context.Background()

	state := domain.NewAgentState("sess-1", "user-1", time.Now().UTC())
	state.CurrentPhase = domain.PhaseConcept
	data, err := state.Marshal()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT state_json FROM agent_states WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"state_json"}).AddRow(data))

	got, err := s.GetAgentState(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.PhaseConcept, got.CurrentPhase)
	assert.Equal(t, "user-1", got.UserID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT state_json FROM agent_states WHERE session_id = $1")).
		WithArgs("sess-2").
		WillReturnRows(sqlmock.NewRows([]string{"state_json"}))

	got, err = s.GetAgentState(ctx, "sess-2")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAgentState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresWithDB(db)
	state := domain.NewAgentState("sess-1", "user-1", time.Now().UTC())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO agent_states")).
		WithArgs("sess-1", "user-1", "discovery", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.UpsertAgentState(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAndCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresWithDB(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM agent_states WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM agent_states WHERE updated_at < $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, s.DeleteAgentState(ctx, "sess-1"))
	deleted, err := s.CleanupExpiredStates(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
