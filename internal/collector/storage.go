package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/jeeves-comfort/pkg/redis"
)

// sensorDataTTL bounds how old restored readings may be
const sensorDataTTL = 24 * time.Hour

// Readings are the latest raw values of one location; nil means never seen
type Readings struct {
	Temperature     *float64   `json:"temperature,omitempty"`
	Humidity        *float64   `json:"humidity,omitempty"`
	CO2             *float64   `json:"co2,omitempty"`
	WindowOpen      *bool      `json:"window_open,omitempty"`
	WindowChangedAt *time.Time `json:"window_changed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Apply merges one message into the readings. The window change time moves
// only when the state actually flips.
func (r *Readings) Apply(msg *SensorMessage) {
	value := msg.Value
	switch msg.Kind {
	case KindTemperature:
		r.Temperature = &value
	case KindHumidity:
		r.Humidity = &value
	case KindCO2:
		r.CO2 = &value
	case KindWindow:
		if r.WindowOpen == nil || *r.WindowOpen != msg.Open {
			open := msg.Open
			at := msg.Timestamp
			r.WindowOpen = &open
			r.WindowChangedAt = &at
		}
	}
	r.UpdatedAt = msg.Timestamp
}

// Storage keeps the latest readings in Redis so a restart does not start blind
type Storage struct {
	redis  redis.Client
	logger *slog.Logger
}

// NewStorage creates a storage handler. A nil client keeps readings in memory only.
func NewStorage(redisClient redis.Client, logger *slog.Logger) *Storage {
	return &Storage{
		redis:  redisClient,
		logger: logger,
	}
}

// Save stores the readings of a location with a 24h TTL
func (s *Storage) Save(ctx context.Context, location string, readings Readings) error {
	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}
	if err := s.redis.Set(ctx, redis.SensorKey(location), string(data), sensorDataTTL); err != nil {
		return fmt.Errorf("failed to store readings for %s: %w", location, err)
	}
	return nil
}

// Load returns the stored readings of a location; ok is false when none exist
func (s *Storage) Load(ctx context.Context, location string) (Readings, bool, error) {
	if s.redis == nil {
		return Readings{}, false, nil
	}

	val, err := s.redis.Get(ctx, redis.SensorKey(location))
	if errors.Is(err, redis.ErrNotFound) {
		return Readings{}, false, nil
	}
	if err != nil {
		return Readings{}, false, fmt.Errorf("failed to load readings for %s: %w", location, err)
	}

	var readings Readings
	if err := json.Unmarshal([]byte(val), &readings); err != nil {
		return Readings{}, false, fmt.Errorf("corrupt readings for %s: %w", location, err)
	}
	return readings, true, nil
}
