package climate

import (
	"fmt"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

// Layout is the static part of the home resolved once at start
type Layout struct {
	Rooms    []comfort.RoomReading
	Entities map[string]config.EntityMapping
	Outside  config.OutsideConfig
	Topology comfort.Topology
	Profiles map[comfort.Category]comfort.LimitProfile
}

// NewLayout converts the home file into engine types. Limit overrides from the
// file replace the built-in profile of their category.
func NewLayout(home *config.Home) (*Layout, error) {
	layout := &Layout{
		Rooms:    make([]comfort.RoomReading, 0, len(home.Rooms)),
		Entities: make(map[string]config.EntityMapping, len(home.Rooms)),
		Outside:  home.Outside,
		Profiles: comfort.DefaultProfiles(),
	}

	for _, rc := range home.Rooms {
		layout.Rooms = append(layout.Rooms, initialReading(rc))
		layout.Entities[rc.ID] = rc.Entities
	}

	topology := make(comfort.Topology, len(home.Topology))
	for from, neighbours := range home.Topology {
		topology[from] = append([]string(nil), neighbours...)
	}
	if home.SymmetricTopology {
		topology = topology.Symmetric()
	}
	layout.Topology = topology

	for name, lc := range home.Limits {
		profile := comfort.LimitProfile{
			TempMin: lc.TempMin,
			TempMax: lc.TempMax,
			HumMin:  lc.HumMin,
			HumMax:  lc.HumMax,
			Label:   lc.Label,
		}
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("invalid limits for %s: %w", name, err)
		}
		layout.Profiles[comfort.Category(name)] = profile
	}

	return layout, nil
}

// InitialSnapshot is the state rendered before the first poll completes
func (l *Layout) InitialSnapshot(source string) Snapshot {
	rooms := make([]comfort.RoomReading, len(l.Rooms))
	for i, room := range l.Rooms {
		rooms[i] = cloneReading(room)
	}
	return Snapshot{
		Rooms: rooms,
		Outside: comfort.OutsideReading{
			Temperature: l.Outside.Temperature,
			Humidity:    l.Outside.Humidity,
		},
		Source: source,
	}
}

func initialReading(rc config.RoomConfig) comfort.RoomReading {
	category := comfort.Category(rc.Category)
	if category == "" {
		category = comfort.CategoryOther
	}

	room := comfort.RoomReading{
		ID:                   rc.ID,
		Name:                 rc.Name,
		Category:             category,
		HasCO2:               rc.HasCO2,
		HasWindow:            rc.HasWindow,
		HasVentilationAssist: rc.HasVentilationAssist,
		Temperature:          rc.Initial.Temperature,
		Humidity:             rc.Initial.Humidity,
	}
	if rc.HasCO2 {
		co2 := rc.Initial.CO2
		room.CO2 = &co2
	}
	return room
}

// cloneReading copies a reading including its pointer fields
func cloneReading(r comfort.RoomReading) comfort.RoomReading {
	out := r
	if r.CO2 != nil {
		v := *r.CO2
		out.CO2 = &v
	}
	if r.WindowChangedAt != nil {
		v := *r.WindowChangedAt
		out.WindowChangedAt = &v
	}
	if r.TargetTemperature != nil {
		v := *r.TargetTemperature
		out.TargetTemperature = &v
	}
	return out
}
