package ventilation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
)

// Learning update rule
const (
	MinLearningMinutes = 5.0
	emaWeightOld       = 0.8
	emaWeightNew       = 0.2
)

// Transition is what a poll observed for one room's window
type Transition int

const (
	// NoChange means the window stayed closed, or stayed open within the same session
	NoChange Transition = iota
	Opened
	Closed
)

func (t Transition) String() string {
	switch t {
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	default:
		return "none"
	}
}

// historyTimeout bounds one history insert so a slow database cannot stall a tick
const historyTimeout = 5 * time.Second

// Event is the result of observing one room
type Event struct {
	Transition Transition
	Session    comfort.Session

	// Closed is set on the Closed transition
	Closed *ClosedSession
}

// State is the single owner of sessions, learning records, extensions and
// extension guards. All reads and writes within a tick go through it.
type State struct {
	mu      sync.Mutex
	store   Store
	history HistoryRecorder
	logger  *slog.Logger

	sessions   map[string]comfort.Session
	learning   map[string]comfort.LearningRecord
	extensions map[string]int
	guards     map[string]bool

	// seen tracks rooms observed since start, to detect an already-open window after a restart
	seen map[string]bool
}

// NewState creates an empty state; call Load to restore persisted maps.
// history may be nil.
func NewState(store Store, history HistoryRecorder, logger *slog.Logger) *State {
	return &State{
		store:      store,
		history:    history,
		logger:     logger,
		sessions:   make(map[string]comfort.Session),
		learning:   make(map[string]comfort.LearningRecord),
		extensions: make(map[string]int),
		guards:     make(map[string]bool),
		seen:       make(map[string]bool),
	}
}

// Load restores persisted maps. A failing or corrupt map is treated as empty.
// Extensions that belong to no open session are dropped.
func (s *State) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessions, err := s.store.LoadSessions(ctx); err != nil {
		s.logger.Warn("Failed to load ventilation sessions, starting empty", "error", err)
	} else {
		s.sessions = sessions
	}

	if learning, err := s.store.LoadLearning(ctx); err != nil {
		s.logger.Warn("Failed to load learning records, starting empty", "error", err)
	} else {
		s.learning = learning
	}

	if extensions, err := s.store.LoadExtensions(ctx); err != nil {
		s.logger.Warn("Failed to load timer extensions, starting empty", "error", err)
	} else {
		s.extensions = extensions
	}

	active := make(map[string]bool, len(s.sessions))
	for _, session := range s.sessions {
		active[session.Key()] = true
	}
	for key := range s.extensions {
		if !active[key] {
			delete(s.extensions, key)
			if err := s.store.DeleteExtension(ctx, key); err != nil {
				s.logger.Warn("Failed to delete orphaned extension", "session", key, "error", err)
			}
		}
	}

	s.logger.Info("Ventilation state loaded",
		"sessions", len(s.sessions),
		"learning", len(s.learning),
		"extensions", len(s.extensions))
}

// Observe advances the room's session state machine with the latest reading.
// A closed session is written to history after the lock is released.
func (s *State) Observe(ctx context.Context, room comfort.RoomReading, now time.Time) Event {
	ev := s.observe(ctx, room, now)
	if ev.Closed != nil {
		s.recordHistory(ctx, *ev.Closed)
	}
	return ev
}

func (s *State) observe(ctx context.Context, room comfort.RoomReading, now time.Time) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	firstSight := !s.seen[room.ID]
	s.seen[room.ID] = true

	session, active := s.sessions[room.ID]

	switch {
	case room.WindowOpen && !active:
		session = comfort.Session{
			RoomID:        room.ID,
			StartTime:     now,
			StartTemp:     room.Temperature,
			StartHumidity: room.Humidity,
			Rebaselined:   firstSight,
		}
		s.sessions[room.ID] = session
		if err := s.store.SaveSession(ctx, session); err != nil {
			s.logger.Warn("Failed to persist session", "room", room.ID, "error", err)
		}
		if session.Rebaselined {
			s.logger.Info("Window already open at start, session re-baselined", "room", room.ID)
		} else {
			s.logger.Info("Window opened", "room", room.ID, "temp", room.Temperature)
		}
		return Event{Transition: Opened, Session: session}

	case !room.WindowOpen && active:
		closed := s.closeSession(ctx, session, room, now)
		return Event{Transition: Closed, Session: session, Closed: &closed}

	default:
		return Event{Transition: NoChange, Session: session}
	}
}

// closeSession feeds learning and clears session-scoped state. Caller holds mu.
func (s *State) closeSession(ctx context.Context, session comfort.Session, room comfort.RoomReading, now time.Time) ClosedSession {
	key := session.Key()
	closed := ClosedSession{
		Session:          session,
		EndTime:          now,
		EndTemp:          room.Temperature,
		EndHumidity:      room.Humidity,
		DurationMinutes:  session.ElapsedMinutes(now),
		TempDelta:        session.StartTemp - room.Temperature,
		ExtensionMinutes: s.extensions[key],
	}

	if !session.Rebaselined {
		closed.FedLearning = s.recordOutcome(ctx, room.ID, closed.DurationMinutes, closed.TempDelta)
	}

	delete(s.sessions, room.ID)
	if err := s.store.DeleteSession(ctx, room.ID); err != nil {
		s.logger.Warn("Failed to delete persisted session", "room", room.ID, "error", err)
	}

	if _, ok := s.extensions[key]; ok {
		delete(s.extensions, key)
		if err := s.store.DeleteExtension(ctx, key); err != nil {
			s.logger.Warn("Failed to delete persisted extension", "session", key, "error", err)
		}
	}
	for guard := range s.guards {
		if strings.HasPrefix(guard, key+"+") {
			delete(s.guards, guard)
		}
	}

	s.logger.Info("Window closed",
		"room", room.ID,
		"duration_min", closed.DurationMinutes,
		"delta", closed.TempDelta,
		"learned", closed.FedLearning)

	return closed
}

// recordHistory appends a closed session to history within historyTimeout
func (s *State) recordHistory(ctx context.Context, closed ClosedSession) {
	if s.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	if err := s.history.Record(ctx, closed); err != nil {
		s.logger.Warn("Failed to record session history", "room", closed.Session.RoomID, "error", err)
	}
}

// RecordSessionOutcome updates the cooling-rate average for a room.
// It is a no-op for sessions shorter than 5 minutes or without a temperature drop.
func (s *State) RecordSessionOutcome(ctx context.Context, roomID string, durationMinutes, tempDelta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordOutcome(ctx, roomID, durationMinutes, tempDelta)
}

func (s *State) recordOutcome(ctx context.Context, roomID string, durationMinutes, tempDelta float64) bool {
	if durationMinutes < MinLearningMinutes || tempDelta <= 0 {
		return false
	}

	rate := tempDelta / durationMinutes
	record := s.learning[roomID]
	record.RoomID = roomID
	if record.SampleCount == 0 {
		record.AvgRate = rate
	} else {
		record.AvgRate = record.AvgRate*emaWeightOld + rate*emaWeightNew
	}
	record.SampleCount++
	s.learning[roomID] = record

	if err := s.store.SaveLearning(ctx, record); err != nil {
		s.logger.Warn("Failed to persist learning record", "room", roomID, "error", err)
	}
	s.logger.Debug("Learning record updated", "room", roomID, "samples", record.SampleCount, "avg_rate", record.AvgRate)
	return true
}

// Learning returns the room's record, zero-valued when absent
func (s *State) Learning(roomID string) comfort.LearningRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.learning[roomID]
	record.RoomID = roomID
	return record
}

// Session returns the open session of a room, if any
func (s *State) Session(roomID string) (comfort.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[roomID]
	return session, ok
}

// Sessions returns a copy of all open sessions
func (s *State) Sessions() map[string]comfort.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]comfort.Session, len(s.sessions))
	for k, v := range s.sessions {
		out[k] = v
	}
	return out
}

// Extension returns the accumulated extension minutes of a session
func (s *State) Extension(sessionKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extensions[sessionKey]
}

// Extend adds one extension step to the session unless the cap is reached or
// the step already fired. It returns the new total and whether it changed.
func (s *State) Extend(ctx context.Context, session comfort.Session) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := session.Key()
	if current, ok := s.sessions[session.RoomID]; !ok || current.Key() != key {
		return s.extensions[key], false
	}

	current := s.extensions[key]
	next, ok := comfort.NextExtension(current)
	if !ok {
		return current, false
	}

	guard := comfort.ExtensionGuardKey(key, next)
	if s.guards[guard] {
		return current, false
	}
	s.guards[guard] = true
	s.extensions[key] = next

	if err := s.store.SaveExtension(ctx, key, next); err != nil {
		s.logger.Warn("Failed to persist extension", "session", key, "error", err)
	}
	s.logger.Info("Ventilation timer extended", "room", session.RoomID, "extension_min", next)
	return next, true
}
