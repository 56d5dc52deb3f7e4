package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "logoforge:session:"

// RedisStore implements Repository using Redis string keys. Retention is
// enforced by key expiry, refreshed on every write.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Retention time.Duration
}

// NewRedis creates a Redis-backed repository.
func NewRedis(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: rdb, retention: cfg.Retention}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetAgentState retrieves the state for a session.
func (s *RedisStore) GetAgentState(ctx context.Context, sessionID string) (*domain.AgentState, error) {
	data, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get agent state: %w", err)
	}
	return domain.UnmarshalAgentState(data)
}

// UpsertAgentState creates or replaces the state for a session.
func (s *RedisStore) UpsertAgentState(ctx context.Context, state *domain.AgentState) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(state.SessionID), data, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set agent state: %w", err)
	}
	return nil
}

// DeleteAgentState removes a session's state.
func (s *RedisStore) DeleteAgentState(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete agent state: %w", err)
	}
	return nil
}

// CleanupExpiredStates is a no-op: Redis expires keys on its own.
func (s *RedisStore) CleanupExpiredStates(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
