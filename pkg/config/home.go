package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Home describes the rooms of the house, their sensor mapping and how they connect
type Home struct {
	Outside  OutsideConfig           `yaml:"outside"`
	Rooms    []RoomConfig            `yaml:"rooms"`
	Topology map[string][]string     `yaml:"topology"`
	Limits   map[string]LimitsConfig `yaml:"limits"`

	// SymmetricTopology mirrors every declared edge so neighbours see each other
	SymmetricTopology bool `yaml:"symmetric_topology"`
}

// OutsideConfig maps the weather station entities and the fallback values
type OutsideConfig struct {
	TemperatureEntity string  `yaml:"temperature_entity"`
	HumidityEntity    string  `yaml:"humidity_entity"`
	Temperature       float64 `yaml:"temperature"`
	Humidity          float64 `yaml:"humidity"`
}

// RoomConfig is one room with its capabilities, entity ids and initial values
type RoomConfig struct {
	ID                   string         `yaml:"id"`
	Name                 string         `yaml:"name"`
	Category             string         `yaml:"category"`
	HasCO2               bool           `yaml:"has_co2"`
	HasWindow            bool           `yaml:"has_window"`
	HasVentilationAssist bool           `yaml:"has_ventilation_assist"`
	Entities             EntityMapping  `yaml:"entities"`
	Initial              InitialReading `yaml:"initial"`
}

// EntityMapping holds the Home Assistant entity ids for one room; empty means unmapped
type EntityMapping struct {
	Temperature string `yaml:"temperature"`
	Humidity    string `yaml:"humidity"`
	CO2         string `yaml:"co2"`
	Window      string `yaml:"window"`
	Climate     string `yaml:"climate"`
}

// Mapped reports whether any entity is configured for the room
func (m EntityMapping) Mapped() bool {
	return m.Temperature != "" || m.Humidity != "" || m.CO2 != "" || m.Window != "" || m.Climate != ""
}

// InitialReading seeds a room before the first successful poll
type InitialReading struct {
	Temperature float64 `yaml:"temperature"`
	Humidity    float64 `yaml:"humidity"`
	CO2         float64 `yaml:"co2"`
}

// LimitsConfig overrides a comfort profile for one category
type LimitsConfig struct {
	TempMin float64 `yaml:"temp_min"`
	TempMax float64 `yaml:"temp_max"`
	HumMin  float64 `yaml:"hum_min"`
	HumMax  float64 `yaml:"hum_max"`
	Label   string  `yaml:"label"`
}

// LoadHome reads the home file, falling back to the built-in layout when it does not exist
func LoadHome(path string) (*Home, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultHome(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read home file: %w", err)
	}
	return ParseHome(data)
}

// ParseHome decodes and validates a home layout
func ParseHome(data []byte) (*Home, error) {
	var home Home
	if err := yaml.Unmarshal(data, &home); err != nil {
		return nil, fmt.Errorf("failed to parse home file: %w", err)
	}
	if err := home.Validate(); err != nil {
		return nil, err
	}
	return &home, nil
}

// Validate checks room ids are unique and the topology only names known rooms
func (h *Home) Validate() error {
	if len(h.Rooms) == 0 {
		return fmt.Errorf("home must define at least one room")
	}

	known := make(map[string]bool, len(h.Rooms))
	for _, room := range h.Rooms {
		if room.ID == "" {
			return fmt.Errorf("room id is required")
		}
		if known[room.ID] {
			return fmt.Errorf("duplicate room id: %s", room.ID)
		}
		known[room.ID] = true
	}

	for from, neighbours := range h.Topology {
		if !known[from] {
			return fmt.Errorf("topology references unknown room: %s", from)
		}
		for _, to := range neighbours {
			if !known[to] {
				return fmt.Errorf("topology of %s references unknown room: %s", from, to)
			}
		}
	}

	return nil
}

// Room returns the room config by id
func (h *Home) Room(id string) (RoomConfig, bool) {
	for _, room := range h.Rooms {
		if room.ID == id {
			return room, true
		}
	}
	return RoomConfig{}, false
}

// DefaultHome is the layout used when no home file is present
func DefaultHome() *Home {
	return &Home{
		Outside: OutsideConfig{
			TemperatureEntity: "sensor.hp2550a_pro_v1_6_7_outdoor_temperature",
			HumidityEntity:    "sensor.hp2550a_pro_v1_6_7_humidity",
			Temperature:       12.5,
			Humidity:          75,
		},
		Rooms: []RoomConfig{
			{
				ID: "living", Name: "Living room", Category: "living", HasCO2: true, HasWindow: true,
				Entities: EntityMapping{
					Temperature: "sensor.smart_radiator_thermostat_x_temperatur",
					Humidity:    "sensor.smart_radiator_thermostat_x_luftfeuchtigkeit",
					CO2:         "sensor.indoor_co2",
					Window:      "binary_sensor.terrassentur_tur",
					Climate:     "climate.smart_radiator_thermostat_x",
				},
				Initial: InitialReading{Temperature: 21.5, Humidity: 45, CO2: 650},
			},
			{
				ID: "kitchen", Name: "Kitchen", Category: "living", HasWindow: true,
				Entities: EntityMapping{
					Temperature: "sensor.indoor_aussentemperatur_temperature",
					Humidity:    "sensor.indoor_aussentemperatur_humidity",
					Window:      "binary_sensor.kuchenfenster_tur",
				},
				Initial: InitialReading{Temperature: 22.1, Humidity: 68},
			},
			{
				ID: "bedroom", Name: "Bedroom", Category: "sleeping", HasCO2: true, HasWindow: true, HasVentilationAssist: true,
				Entities: EntityMapping{
					Temperature: "sensor.smart_radiator_thermostat_x_temperatur_3",
					Humidity:    "sensor.smart_radiator_thermostat_x_luftfeuchtigkeit_3",
					CO2:         "sensor.unknown_70_ee_50_16_18_a0_kohlendioxid",
					Window:      "binary_sensor.schlafzimmer_fenster_tur",
					Climate:     "climate.smart_radiator_thermostat_x_3",
				},
				Initial: InitialReading{Temperature: 18.0, Humidity: 50, CO2: 900},
			},
			{
				ID: "kids", Name: "Kids room", Category: "sleeping", HasWindow: true, HasVentilationAssist: true,
				Entities: EntityMapping{
					Temperature: "sensor.smart_radiator_thermostat_x_temperatur_5",
					Humidity:    "sensor.smart_radiator_thermostat_x_luftfeuchtigkeit_5",
					Window:      "binary_sensor.kinderzimmer_fenster_tur",
					Climate:     "climate.smart_radiator_thermostat_x_5",
				},
				Initial: InitialReading{Temperature: 20.5, Humidity: 55},
			},
			{
				ID: "play", Name: "Playroom", Category: "living",
				Entities: EntityMapping{
					Temperature: "sensor.smart_radiator_thermostat_x_temperatur_4",
					Humidity:    "sensor.smart_radiator_thermostat_x_luftfeuchtigkeit_4",
					Climate:     "climate.smart_radiator_thermostat_x_4",
				},
				Initial: InitialReading{Temperature: 21.0, Humidity: 48},
			},
			{
				ID: "bath", Name: "Bathroom", Category: "bathroom", HasWindow: true, HasVentilationAssist: true,
				Entities: EntityMapping{
					Temperature: "sensor.smart_radiator_thermostat_x_temperatur_2",
					Humidity:    "sensor.smart_radiator_thermostat_x_luftfeuchtigkeit_2",
					Window:      "binary_sensor.bad_fenster_tur",
					Climate:     "climate.smart_radiator_thermostat_x_2",
				},
				Initial: InitialReading{Temperature: 23.5, Humidity: 82},
			},
			{
				ID: "dining", Name: "Dining room", Category: "living",
				Entities: EntityMapping{
					Temperature: "sensor.thermostat_x_esszimmer_temperatur",
					Humidity:    "sensor.thermostat_x_esszimmer_luftfeuchtigkeit",
					Climate:     "climate.thermostat_x_esszimmer",
				},
				Initial: InitialReading{Temperature: 21.2, Humidity: 46},
			},
			{
				ID: "basement", Name: "Basement", Category: "storage", HasWindow: true,
				Entities: EntityMapping{
					Temperature: "sensor.wetter_temperature_3",
					Humidity:    "sensor.wetter_humidity_3",
				},
				Initial: InitialReading{Temperature: 14.0, Humidity: 60},
			},
		},
		SymmetricTopology: true,
		Topology: map[string][]string{
			"living":  {"kitchen", "dining"},
			"kitchen": {"dining"},
			"bedroom": {"kids", "bath"},
			"kids":    {"play"},
			"play":    {"dining"},
		},
	}
}
