package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/climate"
	"github.com/saaga0h/jeeves-comfort/pkg/clock"
	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
)

// ErrFeedDisconnected is returned by Fetch while the broker is unreachable
var ErrFeedDisconnected = errors.New("mqtt sensor feed disconnected")

// Source builds snapshots from raw sensor messages pushed over MQTT.
// Locations are room ids; the weather station publishes under "outside".
type Source struct {
	mqtt      mqtt.Client
	storage   *Storage
	processor *Processor
	clock     clock.Clock
	logger    *slog.Logger

	mu     sync.Mutex
	latest map[string]Readings
}

// NewSource creates an MQTT sensor source
func NewSource(mqttClient mqtt.Client, storage *Storage, clk clock.Clock, logger *slog.Logger) *Source {
	return &Source{
		mqtt:      mqttClient,
		storage:   storage,
		processor: NewProcessor(logger),
		clock:     clk,
		logger:    logger,
		latest:    make(map[string]Readings),
	}
}

// Name implements climate.Source
func (s *Source) Name() string { return climate.SourceMQTT }

// Start restores the stored readings of the given locations and subscribes to raw sensors
func (s *Source) Start(ctx context.Context, locations []string) error {
	restored := 0
	for _, location := range locations {
		readings, ok, err := s.storage.Load(ctx, location)
		if err != nil {
			s.logger.Warn("Failed to restore sensor readings", "location", location, "error", err)
			continue
		}
		if ok {
			s.mu.Lock()
			s.latest[location] = readings
			s.mu.Unlock()
			restored++
		}
	}

	if err := s.mqtt.Subscribe(mqtt.TopicRawSensors, 0, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to raw sensors: %w", err)
	}

	s.logger.Info("MQTT sensor source started",
		"topic", mqtt.TopicRawSensors,
		"restored", restored)
	return nil
}

// handleMessage processes incoming MQTT messages
func (s *Source) handleMessage(msg mqtt.Message) {
	sensorMsg, err := s.processor.ParseMessage(msg.Topic(), msg.Payload(), s.clock.Now())
	if errors.Is(err, ErrUnsupportedKind) {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to parse sensor message", "topic", msg.Topic(), "error", err)
		return
	}

	s.mu.Lock()
	readings := s.latest[sensorMsg.Location]
	readings.Apply(sensorMsg)
	s.latest[sensorMsg.Location] = readings
	s.mu.Unlock()

	if err := s.storage.Save(context.Background(), sensorMsg.Location, readings); err != nil {
		s.logger.Warn("Failed to store sensor readings", "location", sensorMsg.Location, "error", err)
	}

	s.logger.Debug("Sensor reading received",
		"kind", sensorMsg.Kind,
		"location", sensorMsg.Location)
}

// Fetch overlays the latest readings onto the previous snapshot. Values that
// never arrived keep their previous value.
func (s *Source) Fetch(ctx context.Context, prev climate.Snapshot, now time.Time) (climate.Snapshot, error) {
	if !s.mqtt.IsConnected() {
		return prev, ErrFeedDisconnected
	}

	next := prev.Clone()
	next.Source = climate.SourceMQTT
	next.FetchedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if out, ok := s.latest[OutsideLocation]; ok {
		if out.Temperature != nil {
			next.Outside.Temperature = *out.Temperature
		}
		if out.Humidity != nil {
			next.Outside.Humidity = *out.Humidity
		}
	}

	for i := range next.Rooms {
		room := &next.Rooms[i]
		readings, ok := s.latest[room.ID]
		if !ok {
			continue
		}
		if readings.Temperature != nil {
			room.Temperature = *readings.Temperature
		}
		if readings.Humidity != nil {
			room.Humidity = *readings.Humidity
		}
		if readings.CO2 != nil && room.HasCO2 {
			co2 := *readings.CO2
			room.CO2 = &co2
		}
		if readings.WindowOpen != nil && room.HasWindow {
			room.WindowOpen = *readings.WindowOpen
			if readings.WindowChangedAt != nil {
				at := *readings.WindowChangedAt
				room.WindowChangedAt = &at
			}
		}
	}

	return next, nil
}
