package comfort

import (
	"fmt"
	"time"
)

// Category classifies a room for comfort limit lookup
type Category string

const (
	CategoryLiving   Category = "living"
	CategorySleeping Category = "sleeping"
	CategoryBathroom Category = "bathroom"
	CategoryStorage  Category = "storage"
	CategoryOther    Category = "other"

	// CategoryDefault is the profile used for categories without their own entry
	CategoryDefault Category = "default"
)

// RoomReading is the latest known state of one room. It is replaced wholesale on each poll.
type RoomReading struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`

	HasCO2               bool `json:"has_co2"`
	HasWindow            bool `json:"has_window"`
	HasVentilationAssist bool `json:"has_ventilation_assist"`

	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	CO2         *float64 `json:"co2,omitempty"`

	WindowOpen      bool       `json:"window_open"`
	WindowChangedAt *time.Time `json:"window_changed_at,omitempty"`

	TargetTemperature *float64 `json:"target_temperature,omitempty"`
	HVACMode          string   `json:"hvac_mode,omitempty"`
}

// DisplayName returns the name, falling back to the id
func (r RoomReading) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// OutsideReading is the single outdoor measurement
type OutsideReading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// LimitProfile is the user-editable comfort band for a category
type LimitProfile struct {
	TempMin float64 `json:"temp_min" yaml:"temp_min"`
	TempMax float64 `json:"temp_max" yaml:"temp_max"`
	HumMin  float64 `json:"hum_min" yaml:"hum_min"`
	HumMax  float64 `json:"hum_max" yaml:"hum_max"`
	Label   string  `json:"label" yaml:"label"`
}

// Validate checks that the bands are ordered
func (p LimitProfile) Validate() error {
	if p.TempMin >= p.TempMax {
		return fmt.Errorf("temp_min (%.1f) must be below temp_max (%.1f)", p.TempMin, p.TempMax)
	}
	if p.HumMin >= p.HumMax {
		return fmt.Errorf("hum_min (%.1f) must be below hum_max (%.1f)", p.HumMin, p.HumMax)
	}
	if p.HumMin < 0 || p.HumMax > 100 {
		return fmt.Errorf("humidity band must lie within 0-100")
	}
	return nil
}

// Limits are the effective bounds after night adjustment
type Limits struct {
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
	HumMin  float64 `json:"hum_min"`
	HumMax  float64 `json:"hum_max"`
}

// Session is one continuous window-open interval of a room
type Session struct {
	RoomID        string    `json:"room_id"`
	StartTime     time.Time `json:"start_time"`
	StartTemp     float64   `json:"start_temp"`
	StartHumidity float64   `json:"start_humidity"`

	// Rebaselined marks a session recreated after a restart with the window already open.
	// Such sessions never feed the learning store.
	Rebaselined bool `json:"rebaselined,omitempty"`
}

// Key identifies the session for timer extensions and notification tags
func (s Session) Key() string {
	return SessionKey(s.RoomID, s.StartTime)
}

// ElapsedMinutes returns the fractional minutes since the session started
func (s Session) ElapsedMinutes(now time.Time) float64 {
	return now.Sub(s.StartTime).Minutes()
}

// SessionKey builds the roomId + startTime key
func SessionKey(roomID string, start time.Time) string {
	return fmt.Sprintf("%s:%d", roomID, start.UnixMilli())
}

// LearningRecord is the learned cooling behaviour of a room
type LearningRecord struct {
	RoomID      string  `json:"room_id"`
	SampleCount int     `json:"sample_count"`
	AvgRate     float64 `json:"avg_rate_deg_per_min"`
}

// Dimension names the measured quantity an issue refers to
type Dimension string

const (
	DimensionTemperature Dimension = "temp"
	DimensionHumidity    Dimension = "humidity"
	DimensionCO2         Dimension = "co2"
)

// Severity grades an issue
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue is one detected comfort problem
type Issue struct {
	Dimension Dimension `json:"dimension"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// AnalysisResult is derived on every tick and never stored
type AnalysisResult struct {
	Score              int      `json:"score"`
	Issues             []Issue  `json:"issues"`
	Recommendations    []string `json:"recommendations"`
	DewPointInside     float64  `json:"dew_point_inside"`
	IsCrossVentilating bool     `json:"is_cross_ventilating"`
	TotalTargetMinutes int      `json:"total_target_minutes"`
	IsNight            bool     `json:"is_night"`
	IsAdaptiveEstimate bool     `json:"is_adaptive_estimate"`

	// RemainingMinutes is set while the window is open with a known start
	RemainingMinutes *int `json:"remaining_minutes,omitempty"`
}

// HasIssue reports whether an issue for the dimension was raised
func (r AnalysisResult) HasIssue(d Dimension) bool {
	for _, issue := range r.Issues {
		if issue.Dimension == d {
			return true
		}
	}
	return false
}

// HasAirQualityIssue reports a humidity or CO2 issue
func (r AnalysisResult) HasAirQualityIssue() bool {
	return r.HasIssue(DimensionHumidity) || r.HasIssue(DimensionCO2)
}

// Band maps the score to a coarse label
func (r AnalysisResult) Band() string {
	switch {
	case r.Score >= 80:
		return "good"
	case r.Score >= 60:
		return "fair"
	default:
		return "poor"
	}
}
