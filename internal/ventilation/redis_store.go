package ventilation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/pkg/redis"
)

// RedisStore keeps the ventilation maps in three Redis hashes
type RedisStore struct {
	redis  redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a Redis backed store
func NewRedisStore(redisClient redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		redis:  redisClient,
		logger: logger,
	}
}

// LoadSessions returns the open sessions by room id. Corrupt entries are skipped.
func (s *RedisStore) LoadSessions(ctx context.Context) (map[string]comfort.Session, error) {
	fields, err := s.redis.HGetAll(ctx, redis.VentilationSessionsKey)
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]comfort.Session, len(fields))
	for roomID, raw := range fields {
		var session comfort.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			s.logger.Warn("Skipping corrupt session entry", "room", roomID, "error", err)
			continue
		}
		if session.RoomID == "" {
			session.RoomID = roomID
		}
		sessions[roomID] = session
	}
	return sessions, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session comfort.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.redis.HSet(ctx, redis.VentilationSessionsKey, session.RoomID, string(data))
}

func (s *RedisStore) DeleteSession(ctx context.Context, roomID string) error {
	return s.redis.HDel(ctx, redis.VentilationSessionsKey, roomID)
}

// LoadLearning returns the learning records by room id. Corrupt or unusable entries are skipped.
func (s *RedisStore) LoadLearning(ctx context.Context) (map[string]comfort.LearningRecord, error) {
	fields, err := s.redis.HGetAll(ctx, redis.VentilationLearningKey)
	if err != nil {
		return nil, err
	}

	records := make(map[string]comfort.LearningRecord, len(fields))
	for roomID, raw := range fields {
		var record comfort.LearningRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Warn("Skipping corrupt learning entry", "room", roomID, "error", err)
			continue
		}
		if record.SampleCount < 0 || record.AvgRate < 0 {
			s.logger.Warn("Skipping invalid learning entry", "room", roomID,
				"samples", record.SampleCount, "rate", record.AvgRate)
			continue
		}
		record.RoomID = roomID
		records[roomID] = record
	}
	return records, nil
}

func (s *RedisStore) SaveLearning(ctx context.Context, record comfort.LearningRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal learning record: %w", err)
	}
	return s.redis.HSet(ctx, redis.VentilationLearningKey, record.RoomID, string(data))
}

// LoadExtensions returns extension minutes by session key
func (s *RedisStore) LoadExtensions(ctx context.Context) (map[string]int, error) {
	fields, err := s.redis.HGetAll(ctx, redis.VentilationExtensionsKey)
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]int, len(fields))
	for key, raw := range fields {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			s.logger.Warn("Skipping corrupt extension entry", "session", key, "value", raw)
			continue
		}
		extensions[key] = minutes
	}
	return extensions, nil
}

func (s *RedisStore) SaveExtension(ctx context.Context, sessionKey string, minutes int) error {
	return s.redis.HSet(ctx, redis.VentilationExtensionsKey, sessionKey, strconv.Itoa(minutes))
}

func (s *RedisStore) DeleteExtension(ctx context.Context, sessionKey string) error {
	return s.redis.HDel(ctx, redis.VentilationExtensionsKey, sessionKey)
}
