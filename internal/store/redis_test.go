package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/logoforge/internal/domain"
)

// fakeRedis answers GET, SET, DEL and PING from memory through a process
// hook, so commands never reach the network.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	sets    [][]interface{}
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("fake redis does not dial")
	}
}

func (f *fakeRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			if f.failGet != nil {
				c.SetErr(f.failGet)
				return f.failGet
			}
			v, ok := f.data[fmt.Sprint(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			if cmd.Name() == "set" {
				f.sets = append(f.sets, args)
				value, _ := args[2].([]byte)
				f.data[fmt.Sprint(args[1])] = string(value)
			}
			c.SetVal("OK")
		case *redis.IntCmd:
			var n int64
			for _, key := range args[1:] {
				if _, ok := f.data[fmt.Sprint(key)]; ok {
					delete(f.data, fmt.Sprint(key))
					n++
				}
			}
			c.SetVal(n)
		}
		return nil
	}
}

func newTestRedis(t *testing.T, retention time.Duration) (*RedisStore, *fakeRedis) {
	t.Helper()
	s := NewRedis(RedisConfig{Addr: "fake:6379", Retention: retention})
	fake := newFakeRedis()
	s.client.AddHook(fake)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s, fake := newTestRedis(t, time.Hour)
	ctx := context.Background()

	got, err := s.GetAgentState(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := domain.NewAgentState("sess-1", "user-1", time.Now().UTC().Truncate(time.Second))
	state.BrandInfo.Name = "Acme"
	require.NoError(t, s.UpsertAgentState(ctx, state))

	require.Len(t, fake.sets, 1)
	args := fake.sets[0]
	assert.Equal(t, "logoforge:session:sess-1", args[1])
	require.Len(t, args, 5)
	assert.Equal(t, "ex", args[3])
	assert.EqualValues(t, 3600, args[4])

	got, err = s.GetAgentState(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.BrandInfo.Name)
	assert.Equal(t, "user-1", got.UserID)

	require.NoError(t, s.DeleteAgentState(ctx, "sess-1"))
	got, err = s.GetAgentState(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.CleanupExpiredStates(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_NoRetentionKeepsKeys(t *testing.T) {
	s, fake := newTestRedis(t, 0)
	require.NoError(t, s.UpsertAgentState(context.Background(), domain.NewAgentState("s", "u", time.Now())))
	require.Len(t, fake.sets, 1)
	assert.Len(t, fake.sets[0], 3)
}

func TestRedisStore_WrapsBackendErrors(t *testing.T) {
	s, fake := newTestRedis(t, time.Hour)
	fake.failGet = errors.New("READONLY replica")

	_, err := s.GetAgentState(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get agent state")
	assert.ErrorIs(t, err, fake.failGet)
}

// TestRedisStore_Integration requires a running Redis and is skipped
// otherwise.
func TestRedisStore_Integration(t *testing.T) {
	s := NewRedis(RedisConfig{Addr: "localhost:6379", Retention: time.Minute})
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	id := fmt.Sprintf("it-%d", time.Now().UnixNano())
	require.NoError(t, s.UpsertAgentState(ctx, domain.NewAgentState(id, "u", time.Now())))
	t.Cleanup(func() { _ = s.DeleteAgentState(ctx, id) })

	ttl, err := s.client.TTL(ctx, redisKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, err := s.GetAgentState(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.SessionID)
}
