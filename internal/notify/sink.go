package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
)

// MQTTSink publishes notifications on automation/notify/comfort/{room}
type MQTTSink struct {
	client mqtt.Client
	logger *slog.Logger
}

// NewMQTTSink creates a sink on a connected MQTT client
func NewMQTTSink(client mqtt.Client, logger *slog.Logger) *MQTTSink {
	return &MQTTSink{
		client: client,
		logger: logger,
	}
}

// Notify publishes the notification as JSON with QoS 1
func (s *MQTTSink) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := mqtt.ComfortNotifyTopic(n.RoomID)
	if err := s.client.Publish(topic, 1, false, payload); err != nil {
		return err
	}

	s.logger.Debug("Published notification", "topic", topic, "tag", n.Tag)
	return nil
}

// Recorder keeps delivered notifications in memory
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of everything recorded so far
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
