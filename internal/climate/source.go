package climate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
	"github.com/saaga0h/jeeves-comfort/pkg/homeassistant"
)

// Snapshot sources
const (
	SourceLive = "live"
	SourceMQTT = "mqtt"
	SourceDemo = "demo"
)

// Snapshot is one complete view of all rooms and the outside
type Snapshot struct {
	Rooms     []comfort.RoomReading  `json:"rooms"`
	Outside   comfort.OutsideReading `json:"outside"`
	Source    string                 `json:"source"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// Clone returns a deep copy so a fetch never mutates a snapshot other code still reads
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Rooms = make([]comfort.RoomReading, len(s.Rooms))
	for i, room := range s.Rooms {
		out.Rooms[i] = cloneReading(room)
	}
	return out
}

// Room returns a pointer into the snapshot's room slice
func (s *Snapshot) Room(id string) *comfort.RoomReading {
	for i := range s.Rooms {
		if s.Rooms[i].ID == id {
			return &s.Rooms[i]
		}
	}
	return nil
}

// Source produces the next snapshot from the previous one. On error the
// previous snapshot is returned unchanged.
type Source interface {
	Name() string
	Fetch(ctx context.Context, prev Snapshot, now time.Time) (Snapshot, error)
}

// HASource pulls entity states from Home Assistant
type HASource struct {
	client   homeassistant.Client
	entities map[string]config.EntityMapping
	outside  config.OutsideConfig
	logger   *slog.Logger
}

// NewHASource creates a live source for the layout's entity mapping
func NewHASource(client homeassistant.Client, layout *Layout, logger *slog.Logger) *HASource {
	return &HASource{
		client:   client,
		entities: layout.Entities,
		outside:  layout.Outside,
		logger:   logger,
	}
}

func (s *HASource) Name() string { return SourceLive }

// Fetch maps the current entity states onto the rooms. Missing or non-numeric
// values keep the previous reading; unmapped rooms are left untouched.
func (s *HASource) Fetch(ctx context.Context, prev Snapshot, now time.Time) (Snapshot, error) {
	entities, err := s.client.States(ctx)
	if err != nil {
		return prev, fmt.Errorf("failed to fetch states: %w", err)
	}
	index := homeassistant.Index(entities)

	next := prev.Clone()
	next.Source = SourceLive
	next.FetchedAt = now

	if v, ok := numeric(index, s.outside.TemperatureEntity); ok {
		next.Outside.Temperature = v
	}
	if v, ok := numeric(index, s.outside.HumidityEntity); ok {
		next.Outside.Humidity = v
	}

	for i := range next.Rooms {
		mapping, ok := s.entities[next.Rooms[i].ID]
		if !ok || !mapping.Mapped() {
			continue
		}
		s.apply(&next.Rooms[i], mapping, index)
	}

	return next, nil
}

func (s *HASource) apply(room *comfort.RoomReading, mapping config.EntityMapping, index map[string]homeassistant.Entity) {
	if v, ok := numeric(index, mapping.Temperature); ok {
		room.Temperature = v
	}
	if v, ok := numeric(index, mapping.Humidity); ok {
		room.Humidity = v
	}
	if room.HasCO2 {
		if v, ok := numeric(index, mapping.CO2); ok {
			room.CO2 = &v
		}
	}

	if e, ok := index[mapping.Window]; ok && mapping.Window != "" && available(e) {
		room.WindowOpen = e.IsOn()
		if !e.LastChanged.IsZero() {
			changed := e.LastChanged
			room.WindowChangedAt = &changed
		}
	}

	if e, ok := index[mapping.Climate]; ok && mapping.Climate != "" && available(e) {
		room.HVACMode = string(e.State)
		if target, ok := e.AttrFloat("temperature"); ok {
			room.TargetTemperature = &target
		}
	}
}

func numeric(index map[string]homeassistant.Entity, entityID string) (float64, bool) {
	if entityID == "" {
		return 0, false
	}
	e, ok := index[entityID]
	if !ok {
		return 0, false
	}
	return e.Float()
}

// available filters the placeholder states Home Assistant reports for offline devices
func available(e homeassistant.Entity) bool {
	switch strings.ToLower(string(e.State)) {
	case "", "unavailable", "unknown":
		return false
	default:
		return true
	}
}
