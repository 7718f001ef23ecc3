package scenario

import (
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/climate"
	"github.com/saaga0h/jeeves-comfort/internal/notify"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

// Scenario is a scripted sequence of sensor changes replayed on a virtual clock
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Start       time.Time `yaml:"start"`

	// Home replaces the built-in layout when set
	Home *config.Home `yaml:"home,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step applies its changes at Start+At, runs one tick and checks the expectations
type Step struct {
	At          time.Duration `yaml:"at"`
	Description string        `yaml:"description"`

	Outside *OutsideUpdate        `yaml:"outside,omitempty"`
	Rooms   map[string]RoomUpdate `yaml:"rooms,omitempty"`

	// Expect maps room id to field expectations. Values support the
	// ~regex~, >n, <n, >=n and <=n matchers.
	Expect map[string]map[string]interface{} `yaml:"expect,omitempty"`
}

// OutsideUpdate changes the outdoor reading; nil fields are left alone
type OutsideUpdate struct {
	Temperature *float64 `yaml:"temperature,omitempty"`
	Humidity    *float64 `yaml:"humidity,omitempty"`
}

// RoomUpdate changes one room's reading; nil fields are left alone
type RoomUpdate struct {
	Temperature *float64 `yaml:"temperature,omitempty"`
	Humidity    *float64 `yaml:"humidity,omitempty"`
	CO2         *float64 `yaml:"co2,omitempty"`
	Window      *bool    `yaml:"window,omitempty"`
}

// Result is the outcome of a replay
type Result struct {
	Scenario *Scenario
	Steps    []StepResult
	Passed   bool
}

// StepResult is what one step produced
type StepResult struct {
	Step     Step
	Time     time.Time
	Rooms    []climate.RoomView
	Sent     []notify.Notification
	Failures []string
}

// Passed reports whether every expectation of the step held
func (r StepResult) Passed() bool {
	return len(r.Failures) == 0
}

// FailedCount counts failed expectations over all steps
func (r *Result) FailedCount() int {
	n := 0
	for _, step := range r.Steps {
		n += len(step.Failures)
	}
	return n
}
