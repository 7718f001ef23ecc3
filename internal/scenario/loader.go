package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// knownFields are the expectation keys Check understands
var knownFields = map[string]bool{
	"score":                true,
	"band":                 true,
	"remaining_minutes":    true,
	"total_target_minutes": true,
	"extension_minutes":    true,
	"cross_ventilating":    true,
	"adaptive":             true,
	"session":              true,
	"window_open":          true,
	"issues":               true,
	"recommendations":      true,
	"notification":         true,
	"notifications":        true,
	"alert":                true,
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes parses and validates a scenario
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	return &scenario, nil
}

// ValidateScenario checks steps are ordered and only name known fields
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Start.IsZero() {
		return fmt.Errorf("start time is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	if s.Home != nil {
		if err := s.Home.Validate(); err != nil {
			return fmt.Errorf("home: %w", err)
		}
	}

	for i, step := range s.Steps {
		if step.At < 0 {
			return fmt.Errorf("step %d: time cannot be negative", i)
		}
		if i > 0 && step.At < s.Steps[i-1].At {
			return fmt.Errorf("step %d: steps must be in time order", i)
		}
		if step.Description == "" {
			return fmt.Errorf("step %d: description is required", i)
		}
		for room, fields := range step.Expect {
			for field := range fields {
				if !knownFields[field] {
					return fmt.Errorf("step %d, room %s: unknown field %q", i, room, field)
				}
			}
		}
	}

	return nil
}
