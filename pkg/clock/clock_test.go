package clock

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestVirtual_ScaledTime(t *testing.T) {
	wall := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := NewVirtual(testLogger())
	v.wall = func() time.Time { return wall }

	require.NoError(t, v.Configure([]byte(`{"test_mode":true,"virtual_start":"2026-01-15T22:50:00Z","time_scale":60}`)))
	assert.True(t, v.IsTestMode())

	wall = wall.Add(20 * time.Second)
	now := v.Now()
	assert.Equal(t, time.Date(2026, 1, 15, 23, 10, 0, 0, time.UTC), now.UTC())
	assert.Equal(t, 23, now.Hour())
}

func TestVirtual_Disable(t *testing.T) {
	wall := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := NewVirtual(testLogger())
	v.wall = func() time.Time { return wall }
	v.location = time.UTC

	require.NoError(t, v.Configure([]byte(`{"test_mode":true,"virtual_start":"2026-01-15T02:00:00Z","time_scale":1}`)))
	require.NoError(t, v.Configure([]byte(`{"test_mode":false}`)))

	assert.False(t, v.IsTestMode())
	assert.Equal(t, wall, v.Now())
}

func TestVirtual_InvalidPayload(t *testing.T) {
	v := NewVirtual(testLogger())

	assert.Error(t, v.Configure([]byte(`not json`)))
	assert.Error(t, v.Configure([]byte(`{"test_mode":true,"virtual_start":"yesterday"}`)))
	assert.False(t, v.IsTestMode())
}

func TestManual(t *testing.T) {
	start := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	m := NewManual(start)

	m.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), m.Now())

	m.Set(start)
	assert.Equal(t, start, m.Now())
}
