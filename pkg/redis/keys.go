package redis

import "fmt"

// Key layout for comfort agent state. Every hash is keyed by room id
// except extensions, which are keyed by session key.
const (
	// VentilationSessionsKey holds the open session per room (hash, JSON values)
	VentilationSessionsKey = "ventilation:sessions"

	// VentilationLearningKey holds the learned cooling rate per room (hash, JSON values)
	VentilationLearningKey = "ventilation:learning"

	// VentilationExtensionsKey holds extension minutes per session key (hash, integer values)
	VentilationExtensionsKey = "ventilation:extensions"

	// ComfortLimitsKey holds the edited comfort profile per category (hash, JSON values)
	ComfortLimitsKey = "comfort:limits"
)

// SensorKey holds the latest raw readings of a location (string, JSON, expiring)
// Pattern: comfort:sensors:{location}
func SensorKey(location string) string {
	return fmt.Sprintf("comfort:sensors:%s", location)
}
