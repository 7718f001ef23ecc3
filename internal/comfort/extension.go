package comfort

import "fmt"

// Timer extension policy
const (
	ExtensionStepMinutes = 5
	MaxExtensionMinutes  = 30
)

// NeedsExtension reports whether an open session ran out of time while
// humidity or CO2 is still a problem
func NeedsExtension(result AnalysisResult, session *Session) bool {
	if session == nil || result.RemainingMinutes == nil {
		return false
	}
	return *result.RemainingMinutes <= 0 && result.HasAirQualityIssue()
}

// NextExtension returns the next extension total, or false once the cap is reached
func NextExtension(current int) (int, bool) {
	if current >= MaxExtensionMinutes {
		return current, false
	}
	next := current + ExtensionStepMinutes
	if next > MaxExtensionMinutes {
		next = MaxExtensionMinutes
	}
	return next, true
}

// ExtensionGuardKey identifies one extension step of a session so it fires only once
func ExtensionGuardKey(sessionKey string, total int) string {
	return fmt.Sprintf("%s+%d", sessionKey, total)
}
