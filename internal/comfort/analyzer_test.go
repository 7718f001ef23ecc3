package comfort

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var analyzerNow = time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

func livingRoom(temp, humidity float64) RoomReading {
	return RoomReading{
		ID:          "living",
		Name:        "Living room",
		Category:    CategoryLiving,
		HasCO2:      true,
		HasWindow:   true,
		Temperature: temp,
		Humidity:    humidity,
	}
}

func analyze(room RoomReading, outside OutsideReading, hour int, opts ...func(*AnalysisInput)) AnalysisResult {
	in := AnalysisInput{
		Room:     room,
		Outside:  outside,
		Limits:   ResolveLimits(DefaultProfiles(), room.Category, hour),
		IsNight:  IsNight(hour),
		Estimate: EstimateDuration(EstimateInput{OutsideTemp: outside.Temperature, Room: room, Now: analyzerNow}),
		Now:      analyzerNow,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return AnalyzeRoom(in)
}

func withSession(minutesAgo float64, total int) func(*AnalysisInput) {
	return func(in *AnalysisInput) {
		in.Session = &Session{
			RoomID:    in.Room.ID,
			StartTime: in.Now.Add(-time.Duration(minutesAgo * float64(time.Minute))),
			StartTemp: in.Room.Temperature,
		}
		in.Estimate.TotalTargetMinutes = total
	}
}

func containsPrefix(recs []string, prefix string) bool {
	for _, r := range recs {
		if strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}

func TestAnalyzeRoom_ComfortableRoom(t *testing.T) {
	result := analyze(livingRoom(21.5, 50), OutsideReading{Temperature: 10, Humidity: 70}, 14)

	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Issues)
	assert.Empty(t, result.Recommendations)
	assert.Nil(t, result.RemainingMinutes)
	assert.Equal(t, "good", result.Band())
	assert.False(t, result.IsNight)
}

func TestAnalyzeRoom_NightTolerance(t *testing.T) {
	bedroom := RoomReading{ID: "bedroom", Category: CategorySleeping, HasWindow: true, Temperature: 19.5, Humidity: 55}
	outside := OutsideReading{Temperature: 10, Humidity: 70}

	result := analyze(bedroom, outside, 2)
	assert.True(t, result.IsNight)
	assert.Equal(t, 100, result.Score, "up to 2°C above the night band is tolerated")
	assert.Empty(t, result.Issues)

	bedroom.Temperature = 21.5
	result = analyze(bedroom, outside, 2)
	assert.Equal(t, 90, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "Too warm (night)", result.Issues[0].Message)
	assert.Equal(t, []string{"Open a window or turn down the heating"}, result.Recommendations)
}

func TestAnalyzeRoom_WarmOutsideSuggestsBlinds(t *testing.T) {
	result := analyze(livingRoom(25, 50), OutsideReading{Temperature: 24.8, Humidity: 40}, 15)

	assert.Equal(t, 80, result.Score)
	assert.Equal(t, []string{"Close the blinds to keep the sun out, venting will not cool the room"}, result.Recommendations)
}

func TestAnalyzeRoom_HumidOutsideBlocksVenting(t *testing.T) {
	result := analyze(livingRoom(21, 75), OutsideReading{Temperature: 25, Humidity: 80}, 14)

	assert.Equal(t, 70, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, SeverityCritical, result.Issues[0].Severity)
	assert.Equal(t, []string{"Venting ineffective right now, outside air is too humid"}, result.Recommendations)
}

func TestAnalyzeRoom_HumidityWarningSuggestsVenting(t *testing.T) {
	result := analyze(livingRoom(21, 65), OutsideReading{Temperature: 5, Humidity: 80}, 14)

	assert.Equal(t, 85, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
	assert.Contains(t, result.Recommendations, "Open the window for about 10 min")
}

func TestAnalyzeRoom_CriticalCO2(t *testing.T) {
	room := livingRoom(21, 50)
	co2 := 1600.0
	room.CO2 = &co2

	result := analyze(room, OutsideReading{Temperature: 12.5, Humidity: 75}, 14)

	assert.Equal(t, 50, result.Score)
	assert.True(t, result.HasIssue(DimensionCO2))
	assert.Equal(t, "poor", result.Band())
	assert.Contains(t, result.Recommendations, "Open the window immediately (at least 20 min)")
}

func TestAnalyzeRoom_CO2IgnoredWithoutSensor(t *testing.T) {
	room := livingRoom(21, 50)
	room.HasCO2 = false
	co2 := 1600.0
	room.CO2 = &co2

	result := analyze(room, OutsideReading{Temperature: 12.5, Humidity: 75}, 14)
	assert.Equal(t, 100, result.Score)
}

func TestAnalyzeRoom_OpenWindowCountdown(t *testing.T) {
	room := livingRoom(21, 70)
	room.WindowOpen = true

	result := analyze(room, OutsideReading{Temperature: 5, Humidity: 80}, 14, withSession(4, 10))

	require.NotNil(t, result.RemainingMinutes)
	assert.Equal(t, 6, *result.RemainingMinutes)
	assert.Contains(t, result.Recommendations, "About 6 min of ventilation remaining")
}

func TestAnalyzeRoom_OpenWindowTimeUp(t *testing.T) {
	room := livingRoom(21, 70)
	room.WindowOpen = true

	result := analyze(room, OutsideReading{Temperature: 5, Humidity: 80}, 14, withSession(12, 10))

	require.NotNil(t, result.RemainingMinutes)
	assert.LessOrEqual(t, *result.RemainingMinutes, 0)
	assert.Contains(t, result.Recommendations, "Ventilated enough, close the window")
	assert.True(t, NeedsExtension(result, &Session{RoomID: "living"}))
}

func TestAnalyzeRoom_RemainingFromWindowChange(t *testing.T) {
	room := livingRoom(21, 50)
	room.WindowOpen = true
	changed := analyzerNow.Add(-3 * time.Minute)
	room.WindowChangedAt = &changed

	result := analyze(room, OutsideReading{Temperature: 12.5, Humidity: 75}, 14)

	require.NotNil(t, result.RemainingMinutes)
	assert.Equal(t, 17, *result.RemainingMinutes)
}

func TestAnalyzeRoom_OpenWindowWithoutKnownStart(t *testing.T) {
	co2 := 1600.0
	tests := []struct {
		name    string
		room    func() RoomReading
		outside OutsideReading
		want    string
		never   string
	}{
		{
			name:    "humidity",
			room:    func() RoomReading { return livingRoom(21, 65) },
			outside: OutsideReading{Temperature: 5, Humidity: 80},
			want:    "Keep the window open for about 10 min",
			never:   "Open the window for about 10 min",
		},
		{
			name: "critical CO2",
			room: func() RoomReading {
				r := livingRoom(21, 50)
				r.CO2 = &co2
				return r
			},
			outside: OutsideReading{Temperature: 12.5, Humidity: 75},
			want:    "Lower CO2: keep the window open about 20 min",
			never:   "Open the window immediately (at least 20 min)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := tt.room()
			room.WindowOpen = true

			result := analyze(room, tt.outside, 14)

			assert.Nil(t, result.RemainingMinutes)
			assert.Contains(t, result.Recommendations, tt.want)
			assert.NotContains(t, result.Recommendations, tt.never)
			assert.False(t, containsPrefix(result.Recommendations, "Also open the window"))
		})
	}
}

func TestAnalyzeRoom_HeatLoss(t *testing.T) {
	room := livingRoom(18, 50)
	room.WindowOpen = true

	result := analyze(room, OutsideReading{Temperature: 2, Humidity: 80}, 14)

	assert.Equal(t, 80, result.Score)
	assert.Contains(t, result.Recommendations, "Heat loss: close the window")
	assert.NotContains(t, result.Recommendations, "Check the heating")
}

func TestAnalyzeRoom_HeatLossSuppressedWhileVenting(t *testing.T) {
	room := livingRoom(18, 70)
	room.WindowOpen = true

	result := analyze(room, OutsideReading{Temperature: 2, Humidity: 80}, 14, withSession(4, 10))

	assert.NotContains(t, result.Recommendations, "Heat loss: close the window")
	assert.True(t, containsPrefix(result.Recommendations, "About 6 min"))
}

func TestAnalyzeRoom_ScoreNeverNegative(t *testing.T) {
	room := livingRoom(15, 85)
	co2 := 2200.0
	room.CO2 = &co2

	result := analyze(room, OutsideReading{Temperature: 2, Humidity: 80}, 14)

	assert.GreaterOrEqual(t, result.Score, 0)
	assert.LessOrEqual(t, result.Score, 100)
	assert.Len(t, result.Issues, 3)
}

func TestAnalyzeRoom_NeighbourSuggestions(t *testing.T) {
	room := livingRoom(21, 70)
	room.HasVentilationAssist = true
	kitchen := RoomReading{ID: "kitchen", Name: "Kitchen", HasWindow: true}
	bath := RoomReading{ID: "bath", Name: "Bathroom", HasVentilationAssist: true}

	result := analyze(room, OutsideReading{Temperature: 5, Humidity: 80}, 14, func(in *AnalysisInput) {
		in.Airflow = Airflow{WindowNeighbor: &kitchen, AssistNeighbor: &bath}
	})

	assert.Equal(t, []string{
		"Open the window for about 10 min",
		"Also open the window in Kitchen for cross-ventilation",
		"Switch on the ventilation as well",
		"Run the fan in Bathroom to help draw air through",
	}, result.Recommendations)
}

func TestAnalyzeRoom_WindowlessRoom(t *testing.T) {
	tests := []struct {
		name     string
		assist   bool
		expected string
	}{
		{"with ventilation", true, "Run the ventilation for about 10 min"},
		{"without ventilation", false, "Ventilate through an adjoining room for about 10 min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := RoomReading{ID: "basement", Category: CategoryOther, Temperature: 20, Humidity: 70, HasVentilationAssist: tt.assist}
			result := analyze(room, OutsideReading{Temperature: 5, Humidity: 80}, 14)
			assert.Contains(t, result.Recommendations, tt.expected)
		})
	}
}

func TestAnalyzeRoom_CrossVentilationTag(t *testing.T) {
	room := livingRoom(21, 70)
	room.WindowOpen = true
	kitchen := RoomReading{ID: "kitchen", HasWindow: true, WindowOpen: true}

	result := analyze(room, OutsideReading{Temperature: 5, Humidity: 80}, 14, withSession(2, 5), func(in *AnalysisInput) {
		in.Airflow = Airflow{CrossVentilating: true, OpenNeighbor: &kitchen}
	})

	assert.True(t, result.IsCrossVentilating)
	assert.Contains(t, result.Recommendations, "About 3 min of ventilation remaining (cross-ventilation)")
}

func TestAnalyzeRoom_RecommendationsUnique(t *testing.T) {
	room := livingRoom(21, 75)
	room.HasVentilationAssist = true
	co2 := 1200.0
	room.CO2 = &co2

	result := analyze(room, OutsideReading{Temperature: 5, Humidity: 80}, 14)

	seen := make(map[string]bool)
	for _, r := range result.Recommendations {
		assert.False(t, seen[r], "duplicate recommendation %q", r)
		seen[r] = true
	}
	assert.True(t, seen["Switch on the ventilation as well"])
}
