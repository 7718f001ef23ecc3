package homeassistant

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Entity is one element of GET /api/states
type Entity struct {
	EntityID    string                 `json:"entity_id"`
	State       State                  `json:"state"`
	LastChanged time.Time              `json:"last_changed"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// State is an entity state. Home Assistant sends strings, some bridges send bare numbers.
type State string

// UnmarshalJSON accepts both string and numeric states
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = State(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = State(num.String())
	return nil
}

// Float parses a numeric state. Unavailable, non-numeric and non-finite states report false.
func (e Entity) Float() (float64, bool) {
	return parseFinite(string(e.State))
}

// IsOn reports whether a binary sensor (window contact) is active
func (e Entity) IsOn() bool {
	switch strings.ToLower(string(e.State)) {
	case "on", "open", "true":
		return true
	default:
		return false
	}
}

// AttrFloat returns a numeric attribute such as a climate entity's target temperature
func (e Entity) AttrFloat(name string) (float64, bool) {
	v, ok := e.Attributes[name]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		return parseFinite(n)
	default:
		return 0, false
	}
}

// Index maps entities by id
func Index(entities []Entity) map[string]Entity {
	byID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}
	return byID
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
