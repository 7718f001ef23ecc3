package comfort

import (
	"math"
	"testing"
	"time"
)

func TestDewPoint(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		humidity float64
		expected float64
	}{
		{"reference point", 20, 50, 9.3},
		{"saturated air", 15, 100, 15},
		{"zero temperature is unavailable", 0, 50, 0},
		{"zero humidity is unavailable", 20, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DewPoint(tt.temp, tt.humidity)
			if math.Abs(result-tt.expected) > 0.2 {
				t.Errorf("DewPoint(%.1f, %.1f) = %.2f, want %.1f ±0.2", tt.temp, tt.humidity, result, tt.expected)
			}
		})
	}
}

func TestBaseMinutes(t *testing.T) {
	tests := []struct {
		outside  float64
		expected int
	}{
		{-10, 5},
		{3, 5},
		{5, 10},
		{7, 10},
		{10, 20},
		{15, 20},
		{20, 30},
		{25, 30},
	}

	for _, tt := range tests {
		if result := BaseMinutes(tt.outside); result != tt.expected {
			t.Errorf("BaseMinutes(%.1f) = %d, want %d", tt.outside, result, tt.expected)
		}
	}
}

func TestLearnedFactor(t *testing.T) {
	tests := []struct {
		name     string
		record   *LearningRecord
		expected float64
	}{
		{"no record", nil, 1.0},
		{"too few samples", &LearningRecord{SampleCount: 2, AvgRate: 0.2}, 1.0},
		{"rate at threshold", &LearningRecord{SampleCount: 3, AvgRate: 0.05}, 1.0},
		{"fast room", &LearningRecord{SampleCount: 3, AvgRate: 0.2}, 0.5},
		{"slow room", &LearningRecord{SampleCount: 5, AvgRate: 0.08}, 1.25},
		{"clamped high", &LearningRecord{SampleCount: 5, AvgRate: 0.06}, 1.5},
		{"clamped low", &LearningRecord{SampleCount: 9, AvgRate: 40}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LearnedFactor(tt.record)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("LearnedFactor() = %f, want %f", result, tt.expected)
			}
			if result < 0.5 || result > 1.5 {
				t.Errorf("LearnedFactor() = %f escapes [0.5, 1.5]", result)
			}
		})
	}
}

func TestEstimateDuration(t *testing.T) {
	now := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	living := Limits{TempMin: 20, TempMax: 23, HumMin: 40, HumMax: 60}

	session := func(minutesAgo float64, startTemp float64) *Session {
		return &Session{
			RoomID:    "living",
			StartTime: now.Add(-time.Duration(minutesAgo * float64(time.Minute))),
			StartTemp: startTemp,
		}
	}

	tests := []struct {
		name             string
		in               EstimateInput
		expectedTotal    int
		expectedAdaptive bool
	}{
		{
			name:          "static table",
			in:            EstimateInput{OutsideTemp: 15, Room: RoomReading{Temperature: 21}, Limits: living, Now: now},
			expectedTotal: 20,
		},
		{
			name:          "cross-ventilation halves base",
			in:            EstimateInput{OutsideTemp: 15, CrossVentilating: true, Limits: living, Now: now},
			expectedTotal: 10,
		},
		{
			name:          "cross-ventilation rounds up",
			in:            EstimateInput{OutsideTemp: 3, CrossVentilating: true, Limits: living, Now: now},
			expectedTotal: 3,
		},
		{
			name: "learned factor scales base",
			in: EstimateInput{
				OutsideTemp: 15,
				Learning:    &LearningRecord{SampleCount: 4, AvgRate: 0.08},
				Limits:      living,
				Now:         now,
			},
			expectedTotal: 25,
		},
		{
			name: "extension minutes added last",
			in: EstimateInput{
				OutsideTemp:      7,
				ExtensionMinutes: 10,
				Limits:           living,
				Now:              now,
			},
			expectedTotal: 20,
		},
		{
			name: "live extrapolation blends with partial trust",
			in: EstimateInput{
				OutsideTemp: 15,
				Room:        RoomReading{Temperature: 24, WindowOpen: true},
				Limits:      living,
				Session:     session(10, 27),
				Now:         now,
			},
			// rate 0.3/min, 5 more minutes to 22.5, predicted 15, trust 2/3
			expectedTotal:    17,
			expectedAdaptive: true,
		},
		{
			name: "live extrapolation fully trusted after 15 minutes",
			in: EstimateInput{
				OutsideTemp: 15,
				Room:        RoomReading{Temperature: 24, WindowOpen: true},
				Limits:      living,
				Session:     session(20, 30),
				Now:         now,
			},
			expectedTotal:    25,
			expectedAdaptive: true,
		},
		{
			name: "too early to extrapolate",
			in: EstimateInput{
				OutsideTemp: 15,
				Room:        RoomReading{Temperature: 24, WindowOpen: true},
				Limits:      living,
				Session:     session(2, 27),
				Now:         now,
			},
			expectedTotal: 20,
		},
		{
			name: "slow cooling keeps the table",
			in: EstimateInput{
				OutsideTemp: 15,
				Room:        RoomReading{Temperature: 24, WindowOpen: true},
				Limits:      living,
				Session:     session(10, 25),
				Now:         now,
			},
			expectedTotal: 20,
		},
		{
			name: "room within limits is not extrapolated",
			in: EstimateInput{
				OutsideTemp: 15,
				Room:        RoomReading{Temperature: 22, WindowOpen: true},
				Limits:      living,
				Session:     session(10, 27),
				Now:         now,
			},
			expectedTotal: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.in
			result := EstimateDuration(tt.in)

			if result.TotalTargetMinutes != tt.expectedTotal {
				t.Errorf("TotalTargetMinutes = %d, want %d", result.TotalTargetMinutes, tt.expectedTotal)
			}
			if result.IsAdaptiveEstimate != tt.expectedAdaptive {
				t.Errorf("IsAdaptiveEstimate = %v, want %v", result.IsAdaptiveEstimate, tt.expectedAdaptive)
			}
			if tt.in.Session != nil && *tt.in.Session != *before.Session {
				t.Errorf("EstimateDuration mutated the session")
			}
		})
	}
}

func TestNextExtension(t *testing.T) {
	total := 0
	steps := 0
	for {
		next, ok := NextExtension(total)
		if !ok {
			break
		}
		if next-total != ExtensionStepMinutes {
			t.Fatalf("step from %d to %d is not %d minutes", total, next, ExtensionStepMinutes)
		}
		total = next
		steps++
	}

	if total != MaxExtensionMinutes {
		t.Errorf("final extension = %d, want %d", total, MaxExtensionMinutes)
	}
	if steps != 6 {
		t.Errorf("steps = %d, want 6", steps)
	}
}

func TestNeedsExtension(t *testing.T) {
	zero := 0
	three := 3
	session := &Session{RoomID: "bath"}
	humid := []Issue{{Dimension: DimensionHumidity, Severity: SeverityWarning}}
	cold := []Issue{{Dimension: DimensionTemperature, Severity: SeverityLow}}

	tests := []struct {
		name     string
		result   AnalysisResult
		session  *Session
		expected bool
	}{
		{"time up and humid", AnalysisResult{RemainingMinutes: &zero, Issues: humid}, session, true},
		{"time left", AnalysisResult{RemainingMinutes: &three, Issues: humid}, session, false},
		{"air fine", AnalysisResult{RemainingMinutes: &zero, Issues: cold}, session, false},
		{"no session", AnalysisResult{RemainingMinutes: &zero, Issues: humid}, nil, false},
		{"window closed", AnalysisResult{Issues: humid}, session, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsExtension(tt.result, tt.session); got != tt.expected {
				t.Errorf("NeedsExtension() = %v, want %v", got, tt.expected)
			}
		})
	}
}
