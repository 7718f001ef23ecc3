package ventilation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/pkg/postgres"
)

// ClosedSession is the outcome of one window-open interval
type ClosedSession struct {
	ID               string          `json:"id"`
	Session          comfort.Session `json:"session"`
	EndTime          time.Time       `json:"end_time"`
	EndTemp          float64         `json:"end_temp"`
	EndHumidity      float64         `json:"end_humidity"`
	DurationMinutes  float64         `json:"duration_minutes"`
	TempDelta        float64         `json:"temp_delta"`
	ExtensionMinutes int             `json:"extension_minutes"`
	FedLearning      bool            `json:"fed_learning"`
}

// CoolingRate returns °C per minute, or 0 for a zero-length session
func (c ClosedSession) CoolingRate() float64 {
	if c.DurationMinutes <= 0 {
		return 0
	}
	return c.TempDelta / c.DurationMinutes
}

// HistoryRecorder receives every closed session
type HistoryRecorder interface {
	Record(ctx context.Context, closed ClosedSession) error
}

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS ventilation_sessions (
	id UUID PRIMARY KEY,
	room_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL,
	start_temp DOUBLE PRECISION NOT NULL,
	end_temp DOUBLE PRECISION NOT NULL,
	start_humidity DOUBLE PRECISION NOT NULL,
	end_humidity DOUBLE PRECISION NOT NULL,
	duration_minutes DOUBLE PRECISION NOT NULL,
	temp_delta DOUBLE PRECISION NOT NULL,
	cooling_rate DOUBLE PRECISION NOT NULL,
	extension_minutes INTEGER NOT NULL DEFAULT 0,
	rebaselined BOOLEAN NOT NULL DEFAULT FALSE,
	fed_learning BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS ventilation_sessions_room_idx ON ventilation_sessions (room_id, ended_at DESC);
`

const insertSession = `
INSERT INTO ventilation_sessions (
	id, room_id, started_at, ended_at, start_temp, end_temp, start_humidity, end_humidity,
	duration_minutes, temp_delta, cooling_rate, extension_minutes, rebaselined, fed_learning
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const selectRecentSessions = `
SELECT id, room_id, started_at, ended_at, start_temp, end_temp, start_humidity, end_humidity,
	duration_minutes, temp_delta, extension_minutes, rebaselined, fed_learning
FROM ventilation_sessions
WHERE room_id = $1
ORDER BY ended_at DESC
LIMIT $2`

// HistoryStore appends closed sessions to Postgres
type HistoryStore struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewHistoryStore creates a history store on a connected client
func NewHistoryStore(db postgres.Client, logger *slog.Logger) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the sessions table if it does not exist
func (h *HistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("failed to create ventilation_sessions table: %w", err)
	}
	return nil
}

// Record inserts one closed session
func (h *HistoryStore) Record(ctx context.Context, closed ClosedSession) error {
	if closed.ID == "" {
		closed.ID = uuid.New().String()
	}

	_, err := h.db.Exec(ctx, insertSession,
		closed.ID,
		closed.Session.RoomID,
		closed.Session.StartTime.UTC(),
		closed.EndTime.UTC(),
		closed.Session.StartTemp,
		closed.EndTemp,
		closed.Session.StartHumidity,
		closed.EndHumidity,
		closed.DurationMinutes,
		closed.TempDelta,
		closed.CoolingRate(),
		closed.ExtensionMinutes,
		closed.Session.Rebaselined,
		closed.FedLearning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ventilation session: %w", err)
	}

	h.logger.Debug("Recorded ventilation session", "room", closed.Session.RoomID,
		"duration_min", closed.DurationMinutes, "delta", closed.TempDelta)
	return nil
}

// Recent returns the latest closed sessions of a room, newest first
func (h *HistoryStore) Recent(ctx context.Context, roomID string, limit int) ([]ClosedSession, error) {
	rows, err := h.db.Query(ctx, selectRecentSessions, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ventilation sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ClosedSession
	for rows.Next() {
		var c ClosedSession
		if err := rows.Scan(
			&c.ID,
			&c.Session.RoomID,
			&c.Session.StartTime,
			&c.EndTime,
			&c.Session.StartTemp,
			&c.EndTemp,
			&c.Session.StartHumidity,
			&c.EndHumidity,
			&c.DurationMinutes,
			&c.TempDelta,
			&c.ExtensionMinutes,
			&c.Session.Rebaselined,
			&c.FedLearning,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ventilation session: %w", err)
		}
		sessions = append(sessions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ventilation sessions: %w", err)
	}

	return sessions, nil
}
