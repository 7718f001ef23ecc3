package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Sensor kinds read from automation/raw/{kind}/{location}
const (
	KindTemperature = "temperature"
	KindHumidity    = "humidity"
	KindCO2         = "co2"
	KindWindow      = "window"
)

// OutsideLocation is the location the weather station publishes under
const OutsideLocation = "outside"

// ErrUnsupportedKind marks raw sensor kinds the comfort agent does not use (motion, illuminance, ...)
var ErrUnsupportedKind = errors.New("unsupported sensor kind")

// Processor parses raw sensor messages
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a new message processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logger,
	}
}

// SensorMessage is one parsed raw reading
type SensorMessage struct {
	Kind          string
	Location      string
	OriginalTopic string

	// Value is set for numeric kinds, Open for windows
	Value float64
	Open  bool

	Timestamp time.Time
}

// ParseMessage parses a raw sensor message. Payloads are either wrapped in
// {"data": {...}} or carry the fields at the top level. A "timestamp" field
// in RFC 3339 overrides receivedAt.
func (p *Processor) ParseMessage(topic string, payload []byte, receivedAt time.Time) (*SensorMessage, error) {
	// Topic pattern: automation/raw/{kind}/{location}
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] == "" {
		return nil, fmt.Errorf("invalid topic format: %s (expected automation/raw/{kind}/{location})", topic)
	}

	kind := parts[2]
	switch kind {
	case KindTemperature, KindHumidity, KindCO2, KindWindow:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		data = raw
	}

	msg := &SensorMessage{
		Kind:          kind,
		Location:      parts[3],
		OriginalTopic: topic,
		Timestamp:     receivedAt,
	}

	if ts, ok := data["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.Timestamp = parsed
		}
	}

	if kind == KindWindow {
		open, err := parseWindowState(data["state"])
		if err != nil {
			return nil, err
		}
		msg.Open = open
	} else {
		value, ok := data["value"].(float64)
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("missing or non-numeric value for %s", kind)
		}
		msg.Value = value
	}

	p.logger.Debug("Parsed sensor message",
		"kind", kind,
		"location", msg.Location,
		"topic", topic)

	return msg, nil
}

func parseWindowState(v interface{}) (bool, error) {
	switch state := v.(type) {
	case bool:
		return state, nil
	case string:
		switch strings.ToLower(state) {
		case "on", "open", "true":
			return true, nil
		case "off", "closed", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("invalid window state: %v", v)
}
