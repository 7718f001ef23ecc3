package ventilation

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var t0 = time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

type recordingHistory struct {
	closed []ClosedSession
	err    error
}

func (r *recordingHistory) Record(ctx context.Context, closed ClosedSession) error {
	r.closed = append(r.closed, closed)
	return r.err
}

// blockingHistory holds Record until the context ends
type blockingHistory struct {
	state    *State
	deadline bool
	readOK   bool
}

func (b *blockingHistory) Record(ctx context.Context, closed ClosedSession) error {
	_, b.deadline = ctx.Deadline()

	done := make(chan struct{})
	go func() {
		b.state.Sessions()
		close(done)
	}()
	select {
	case <-done:
		b.readOK = true
	case <-time.After(time.Second):
	}
	return errors.New("history unavailable")
}

func reading(id string, open bool, temp float64) comfort.RoomReading {
	return comfort.RoomReading{ID: id, HasWindow: true, WindowOpen: open, Temperature: temp, Humidity: 55}
}

// newWarmState returns a state that has already seen the room closed once
func newWarmState(t *testing.T, store Store, history HistoryRecorder, roomID string) *State {
	t.Helper()
	s := NewState(store, history, testLogger())
	s.Load(context.Background())
	ev := s.Observe(context.Background(), reading(roomID, false, 22), t0.Add(-time.Minute))
	require.Equal(t, NoChange, ev.Transition)
	return s
}

func TestObserve_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	history := &recordingHistory{}
	s := newWarmState(t, store, history, "living")

	ev := s.Observe(ctx, reading("living", true, 24), t0)
	require.Equal(t, Opened, ev.Transition)
	assert.Equal(t, t0, ev.Session.StartTime)
	assert.Equal(t, 24.0, ev.Session.StartTemp)
	assert.False(t, ev.Session.Rebaselined)

	// Still open: start values are never re-captured
	ev = s.Observe(ctx, reading("living", true, 23), t0.Add(4*time.Minute))
	assert.Equal(t, NoChange, ev.Transition)
	assert.Equal(t, 24.0, ev.Session.StartTemp)
	assert.Equal(t, t0, ev.Session.StartTime)

	persisted, _ := store.LoadSessions(ctx)
	assert.Len(t, persisted, 1)

	ev = s.Observe(ctx, reading("living", false, 22), t0.Add(10*time.Minute))
	require.Equal(t, Closed, ev.Transition)
	require.NotNil(t, ev.Closed)
	assert.InDelta(t, 10.0, ev.Closed.DurationMinutes, 1e-9)
	assert.InDelta(t, 2.0, ev.Closed.TempDelta, 1e-9)
	assert.True(t, ev.Closed.FedLearning)

	_, open := s.Session("living")
	assert.False(t, open)
	persisted, _ = store.LoadSessions(ctx)
	assert.Empty(t, persisted)

	record := s.Learning("living")
	assert.Equal(t, 1, record.SampleCount)
	assert.InDelta(t, 0.2, record.AvgRate, 1e-9)

	require.Len(t, history.closed, 1)
	assert.Equal(t, "living", history.closed[0].Session.RoomID)

	// Closed stays closed
	ev = s.Observe(ctx, reading("living", false, 22), t0.Add(11*time.Minute))
	assert.Equal(t, NoChange, ev.Transition)
}

func TestObserve_ReopenStartsFreshSession(t *testing.T) {
	ctx := context.Background()
	s := newWarmState(t, NewMemoryStore(), nil, "bath")

	first := s.Observe(ctx, reading("bath", true, 24), t0)
	s.Observe(ctx, reading("bath", false, 23), t0.Add(6*time.Minute))
	second := s.Observe(ctx, reading("bath", true, 23), t0.Add(8*time.Minute))

	require.Equal(t, Opened, second.Transition)
	assert.NotEqual(t, first.Session.Key(), second.Session.Key())
}

func TestObserve_RestartRebaselines(t *testing.T) {
	ctx := context.Background()
	s := NewState(NewMemoryStore(), nil, testLogger())
	s.Load(ctx)

	ev := s.Observe(ctx, reading("kitchen", true, 24), t0)
	require.Equal(t, Opened, ev.Transition)
	assert.True(t, ev.Session.Rebaselined)

	ev = s.Observe(ctx, reading("kitchen", false, 20), t0.Add(20*time.Minute))
	require.Equal(t, Closed, ev.Transition)
	assert.False(t, ev.Closed.FedLearning)
	assert.Equal(t, 0, s.Learning("kitchen").SampleCount)
}

func TestObserve_PersistedSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	before := newWarmState(t, store, nil, "living")
	opened := before.Observe(ctx, reading("living", true, 24), t0)

	after := NewState(store, nil, testLogger())
	after.Load(ctx)
	ev := after.Observe(ctx, reading("living", true, 23), t0.Add(5*time.Minute))

	assert.Equal(t, NoChange, ev.Transition)
	assert.Equal(t, opened.Session.Key(), ev.Session.Key())
	assert.False(t, ev.Session.Rebaselined)
}

func TestRecordSessionOutcome(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		delta    float64
		changed  bool
	}{
		{"three minute session", 3, 2, false},
		{"warming session", 10, -0.5, false},
		{"no change in temperature", 10, 0, false},
		{"qualifying session", 5, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(NewMemoryStore(), nil, testLogger())
			changed := s.RecordSessionOutcome(context.Background(), "living", tt.duration, tt.delta)

			assert.Equal(t, tt.changed, changed)
			if !tt.changed {
				assert.Equal(t, comfort.LearningRecord{RoomID: "living"}, s.Learning("living"))
			}
		})
	}
}

func TestRecordSessionOutcome_EMA(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewState(store, nil, testLogger())

	s.RecordSessionOutcome(ctx, "living", 10, 1) // 0.1
	s.RecordSessionOutcome(ctx, "living", 10, 3) // 0.3

	record := s.Learning("living")
	assert.Equal(t, 2, record.SampleCount)
	assert.InDelta(t, 0.1*0.8+0.3*0.2, record.AvgRate, 1e-9)

	persisted, _ := store.LoadLearning(ctx)
	assert.Equal(t, record, persisted["living"])
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := newWarmState(t, store, nil, "bath")
	session := s.Observe(ctx, reading("bath", true, 24), t0).Session

	var totals []int
	for i := 0; i < 10; i++ {
		if total, ok := s.Extend(ctx, session); ok {
			totals = append(totals, total)
		}
	}

	assert.Equal(t, []int{5, 10, 15, 20, 25, 30}, totals)
	assert.Equal(t, comfort.MaxExtensionMinutes, s.Extension(session.Key()))

	persisted, _ := store.LoadExtensions(ctx)
	assert.Equal(t, 30, persisted[session.Key()])

	// Closing clears the extension and its guards
	ev := s.Observe(ctx, reading("bath", false, 22), t0.Add(40*time.Minute))
	assert.Equal(t, 30, ev.Closed.ExtensionMinutes)
	assert.Equal(t, 0, s.Extension(session.Key()))
	assert.Empty(t, s.guards)
	persisted, _ = store.LoadExtensions(ctx)
	assert.Empty(t, persisted)
}

func TestExtend_StaleSessionIgnored(t *testing.T) {
	ctx := context.Background()
	s := newWarmState(t, NewMemoryStore(), nil, "bath")
	old := s.Observe(ctx, reading("bath", true, 24), t0).Session
	s.Observe(ctx, reading("bath", false, 23), t0.Add(6*time.Minute))
	fresh := s.Observe(ctx, reading("bath", true, 23), t0.Add(7*time.Minute)).Session

	_, ok := s.Extend(ctx, old)
	assert.False(t, ok)

	total, ok := s.Extend(ctx, fresh)
	assert.True(t, ok)
	assert.Equal(t, 5, total, "a new session starts with a fresh extension budget")
}

type failingStore struct {
	*MemoryStore
}

func (f failingStore) LoadSessions(ctx context.Context) (map[string]comfort.Session, error) {
	return nil, errors.New("connection refused")
}

func (f failingStore) LoadLearning(ctx context.Context) (map[string]comfort.LearningRecord, error) {
	return nil, errors.New("connection refused")
}

func (f failingStore) SaveSession(ctx context.Context, session comfort.Session) error {
	return errors.New("connection refused")
}

func TestState_StoreFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	s := NewState(failingStore{NewMemoryStore()}, &recordingHistory{err: errors.New("db down")}, testLogger())
	s.Load(ctx)

	assert.Equal(t, comfort.LearningRecord{RoomID: "living"}, s.Learning("living"))

	ev := s.Observe(ctx, reading("living", true, 24), t0)
	assert.Equal(t, Opened, ev.Transition)
	ev = s.Observe(ctx, reading("living", false, 23), t0.Add(6*time.Minute))
	assert.Equal(t, Closed, ev.Transition)
}

func TestLoad_DropsOrphanedExtensions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := comfort.Session{RoomID: "bath", StartTime: t0, StartTemp: 24}
	require.NoError(t, store.SaveSession(ctx, session))
	require.NoError(t, store.SaveExtension(ctx, session.Key(), 10))
	require.NoError(t, store.SaveExtension(ctx, comfort.SessionKey("bath", t0.Add(-time.Hour)), 30))

	s := NewState(store, nil, testLogger())
	s.Load(ctx)

	assert.Equal(t, 10, s.Extension(session.Key()))
	persisted, _ := store.LoadExtensions(ctx)
	assert.Len(t, persisted, 1)
}

func TestObserve_HistoryIsRecordedOutsideTheLock(t *testing.T) {
	history := &blockingHistory{}
	s := newWarmState(t, NewMemoryStore(), history, "living")
	history.state = s

	ctx := context.Background()
	s.Observe(ctx, reading("living", true, 24), t0)
	ev := s.Observe(ctx, reading("living", false, 22), t0.Add(10*time.Minute))

	require.Equal(t, Closed, ev.Transition)
	assert.True(t, history.readOK, "state must stay readable while history is written")
	assert.True(t, history.deadline, "history writes are bounded")
	assert.True(t, ev.Closed.FedLearning)
}
