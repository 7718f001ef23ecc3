package ventilation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/pkg/redis"
)

// mockRedis is a hash-only in-memory redis.Client
type mockRedis struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	failOn string
}

func newMockRedis() *mockRedis {
	return &mockRedis{hashes: make(map[string]map[string]string)}
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *mockRedis) Get(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("key %s: %w", key, redis.ErrNotFound)
}

func (m *mockRedis) HSet(ctx context.Context, key string, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = fmt.Sprint(value)
	return nil
}

func (m *mockRedis) HGet(ctx context.Context, key string, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return "", fmt.Errorf("hash field %s:%s: %w", key, field, redis.ErrNotFound)
	}
	return v, nil
}

func (m *mockRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.failOn {
		return nil, errors.New("connection reset")
	}
	out := make(map[string]string)
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *mockRedis) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	return nil
}

func (m *mockRedis) Ping(ctx context.Context) error { return nil }
func (m *mockRedis) Close() error                   { return nil }

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newMockRedis()
	store := NewRedisStore(rdb, testLogger())

	session := comfort.Session{RoomID: "bath", StartTime: t0, StartTemp: 24.5, StartHumidity: 80}
	require.NoError(t, store.SaveSession(ctx, session))
	require.NoError(t, store.SaveLearning(ctx, comfort.LearningRecord{RoomID: "bath", SampleCount: 3, AvgRate: 0.12}))
	require.NoError(t, store.SaveExtension(ctx, session.Key(), 15))

	sessions, err := store.LoadSessions(ctx)
	require.NoError(t, err)
	require.Contains(t, sessions, "bath")
	assert.True(t, sessions["bath"].StartTime.Equal(t0))
	assert.Equal(t, session.Key(), sessions["bath"].Key())

	learning, err := store.LoadLearning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, learning["bath"].SampleCount)

	extensions, err := store.LoadExtensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, extensions[session.Key()])

	require.NoError(t, store.DeleteSession(ctx, "bath"))
	require.NoError(t, store.DeleteExtension(ctx, session.Key()))
	sessions, _ = store.LoadSessions(ctx)
	extensions, _ = store.LoadExtensions(ctx)
	assert.Empty(t, sessions)
	assert.Empty(t, extensions)
}

func TestRedisStore_SkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	rdb := newMockRedis()
	store := NewRedisStore(rdb, testLogger())

	rdb.HSet(ctx, redis.VentilationSessionsKey, "living", "{not json")
	rdb.HSet(ctx, redis.VentilationLearningKey, "living", `{"sample_count":-4,"avg_rate_deg_per_min":0.1}`)
	rdb.HSet(ctx, redis.VentilationLearningKey, "bath", `{"sample_count":5,"avg_rate_deg_per_min":0.2}`)
	rdb.HSet(ctx, redis.VentilationExtensionsKey, "living:1", "ten")

	sessions, err := store.LoadSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	learning, err := store.LoadLearning(ctx)
	require.NoError(t, err)
	assert.NotContains(t, learning, "living")
	assert.Equal(t, "bath", learning["bath"].RoomID)

	extensions, err := store.LoadExtensions(ctx)
	require.NoError(t, err)
	assert.Empty(t, extensions)
}

func TestRedisStore_LoadFailureDegradesToEmptyState(t *testing.T) {
	ctx := context.Background()
	rdb := newMockRedis()
	rdb.failOn = redis.VentilationLearningKey
	store := NewRedisStore(rdb, testLogger())

	_, err := store.LoadLearning(ctx)
	assert.Error(t, err)

	s := NewState(store, nil, testLogger())
	s.Load(ctx)
	assert.Equal(t, 0, s.Learning("living").SampleCount)
	assert.Equal(t, 1.0, comfort.LearnedFactor(&comfort.LearningRecord{}))
}
