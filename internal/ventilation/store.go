package ventilation

import (
	"context"
	"sync"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
)

// Store persists the session, learning and extension maps across restarts.
// A missing entry means "no data yet" and is never an error.
type Store interface {
	LoadSessions(ctx context.Context) (map[string]comfort.Session, error)
	SaveSession(ctx context.Context, session comfort.Session) error
	DeleteSession(ctx context.Context, roomID string) error

	LoadLearning(ctx context.Context) (map[string]comfort.LearningRecord, error)
	SaveLearning(ctx context.Context, record comfort.LearningRecord) error

	LoadExtensions(ctx context.Context) (map[string]int, error)
	SaveExtension(ctx context.Context, sessionKey string, minutes int) error
	DeleteExtension(ctx context.Context, sessionKey string) error
}

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]comfort.Session
	learning   map[string]comfort.LearningRecord
	extensions map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]comfort.Session),
		learning:   make(map[string]comfort.LearningRecord),
		extensions: make(map[string]int),
	}
}

func (m *MemoryStore) LoadSessions(ctx context.Context) (map[string]comfort.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]comfort.Session, len(m.sessions))
	for k, v := range m.sessions {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, session comfort.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.RoomID] = session
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, roomID)
	return nil
}

func (m *MemoryStore) LoadLearning(ctx context.Context) (map[string]comfort.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]comfort.LearningRecord, len(m.learning))
	for k, v := range m.learning {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveLearning(ctx context.Context, record comfort.LearningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learning[record.RoomID] = record
	return nil
}

func (m *MemoryStore) LoadExtensions(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.extensions))
	for k, v := range m.extensions {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveExtension(ctx context.Context, sessionKey string, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extensions[sessionKey] = minutes
	return nil
}

func (m *MemoryStore) DeleteExtension(ctx context.Context, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.extensions, sessionKey)
	return nil
}
