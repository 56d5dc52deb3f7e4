package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/logoforge/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	got, err := s.GetAgentState(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := domain.NewAgentState("sess-1", "user-1", now)
	state.BrandInfo.Name = "Acme"
	state.IterationCounts[domain.PhaseDiscovery] = 2
	require.NoError(t, s.UpsertAgentState(ctx, state))

	got, err = s.GetAgentState(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.BrandInfo.Name)
	assert.Equal(t, 2, got.IterationCounts[domain.PhaseDiscovery])
	assert.Equal(t, domain.PhaseDiscovery, got.CurrentPhase)

	state.CurrentPhase = domain.PhaseResearch
	require.NoError(t, s.UpsertAgentState(ctx, state))
	got, err = s.GetAgentState(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseResearch, got.CurrentPhase)

	require.NoError(t, s.DeleteAgentState(ctx, "sess-1"))
	got, err = s.GetAgentState(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_CleanupExpiredStates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	old := domain.NewAgentState("old", "user-1", time.Now().Add(-48*time.Hour))
	fresh := domain.NewAgentState("fresh", "user-1", time.Now())
	require.NoError(t, s.UpsertAgentState(ctx, old))
	require.NoError(t, s.UpsertAgentState(ctx, fresh))

	deleted, err := s.CleanupExpiredStates(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := s.GetAgentState(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLiteStore_Ping(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}
