package comfort

import (
	"fmt"
	"math"
	"time"
)

// Score penalties and thresholds
const (
	penaltyTempDay      = 20
	penaltyTempNight    = 10
	penaltyHumidityLow  = 15
	penaltyHumidityHigh = 15
	penaltyHumidityCrit = 30
	penaltyCO2Warning   = 20
	penaltyCO2Critical  = 50

	nightWarmTolerance = 2.0  // °C above tempMax tolerated while sleeping
	sunShadeMargin     = 0.5  // outside this close to inside means venting won't cool
	humidityCritMargin = 10.0 // %RH above humMax that makes humidity critical

	CO2WarningPPM  = 1000.0
	CO2CriticalPPM = 1500.0
)

// AnalysisInput is the full, already-resolved context for one room
type AnalysisInput struct {
	Room     RoomReading
	Outside  OutsideReading
	Limits   Limits
	IsNight  bool
	Airflow  Airflow
	Estimate Estimate
	Session  *Session
	Now      time.Time
}

// analysis accumulates the result while the rules run in order
type analysis struct {
	in     AnalysisInput
	result AnalysisResult

	// ventilating is set once a "minutes remaining" recommendation was made
	ventilating bool
}

// AnalyzeRoom scores a room and builds its issue and recommendation lists.
// Rules run in a fixed order; later rules may look at what earlier rules added.
func AnalyzeRoom(in AnalysisInput) AnalysisResult {
	a := &analysis{
		in: in,
		result: AnalysisResult{
			Score:              100,
			Issues:             []Issue{},
			Recommendations:    []string{},
			DewPointInside:     DewPoint(in.Room.Temperature, in.Room.Humidity),
			IsCrossVentilating: in.Airflow.CrossVentilating,
			TotalTargetMinutes: in.Estimate.TotalTargetMinutes,
			IsNight:            in.IsNight,
			IsAdaptiveEstimate: in.Estimate.IsAdaptiveEstimate,
		},
	}

	if elapsed, ok := a.openMinutes(); ok {
		remaining := int(math.Ceil(float64(in.Estimate.TotalTargetMinutes) - elapsed))
		a.result.RemainingMinutes = &remaining
	}

	a.checkTemperatureLow()
	a.checkTemperatureHigh()
	a.checkHumidityLow()
	a.checkHumidityHigh()
	a.checkCO2()
	a.checkHeatLoss()

	if a.result.Score < 0 {
		a.result.Score = 0
	}
	return a.result
}

// Rule 1: too cold
func (a *analysis) checkTemperatureLow() {
	room := a.in.Room
	if room.Temperature >= a.in.Limits.TempMin {
		return
	}

	a.penalize(penaltyTempDay)
	a.addIssue(DimensionTemperature, SeverityLow, "Too cold")

	// An open window is handled by the heat-loss rule
	if !room.WindowOpen {
		a.recommend("Check the heating")
	}
}

// Rule 2: too warm, tolerated up to a margin at night
func (a *analysis) checkTemperatureHigh() {
	room := a.in.Room
	limits := a.in.Limits
	if room.Temperature <= limits.TempMax {
		return
	}
	if a.in.IsNight && room.Temperature <= limits.TempMax+nightWarmTolerance {
		return
	}

	if a.in.IsNight {
		a.penalize(penaltyTempNight)
		a.addIssue(DimensionTemperature, SeverityHigh, "Too warm (night)")
	} else {
		a.penalize(penaltyTempDay)
		a.addIssue(DimensionTemperature, SeverityHigh, "Too warm")
	}

	if a.in.Outside.Temperature >= room.Temperature-sunShadeMargin {
		a.recommend("Close the blinds to keep the sun out, venting will not cool the room")
		return
	}
	a.recommend("Open a window or turn down the heating")
}

// Rule 3: dry air
func (a *analysis) checkHumidityLow() {
	if a.in.Room.Humidity >= a.in.Limits.HumMin {
		return
	}

	a.penalize(penaltyHumidityLow)
	a.addIssue(DimensionHumidity, SeverityLow, "Dry air")
	a.recommend("Use a humidifier or dry laundry in the room")
}

// Rule 4: humid air, vent only when the outside air is drier
func (a *analysis) checkHumidityHigh() {
	room := a.in.Room
	limits := a.in.Limits
	if room.Humidity <= limits.HumMax {
		return
	}

	if room.Humidity > limits.HumMax+humidityCritMargin {
		a.penalize(penaltyHumidityCrit)
		a.addIssue(DimensionHumidity, SeverityCritical, "Very high humidity")
	} else {
		a.penalize(penaltyHumidityHigh)
		a.addIssue(DimensionHumidity, SeverityWarning, "High humidity")
	}

	dewOutside := DewPoint(a.in.Outside.Temperature, a.in.Outside.Humidity)
	if !ventingEffective(a.result.DewPointInside, dewOutside) {
		a.recommend("Venting ineffective right now, outside air is too humid")
		return
	}

	a.adviseVentilation(DimensionHumidity, false)
}

// Rule 5: CO2
func (a *analysis) checkCO2() {
	room := a.in.Room
	if !room.HasCO2 || room.CO2 == nil || *room.CO2 <= CO2WarningPPM {
		return
	}

	critical := *room.CO2 >= CO2CriticalPPM
	if critical {
		a.penalize(penaltyCO2Critical)
		a.addIssue(DimensionCO2, SeverityCritical, "Poor air quality")
	} else {
		a.penalize(penaltyCO2Warning)
		a.addIssue(DimensionCO2, SeverityWarning, "CO2 elevated")
	}

	a.adviseVentilation(DimensionCO2, critical)
}

// Rule 6: window open in a cold room without an active venting countdown
func (a *analysis) checkHeatLoss() {
	room := a.in.Room
	if room.WindowOpen && room.Temperature < a.in.Limits.TempMin && !a.ventilating {
		a.recommend("Heat loss: close the window")
	}
}

// adviseVentilation adds the open/closed window branch shared by the humidity and CO2 rules
func (a *analysis) adviseVentilation(dim Dimension, critical bool) {
	room := a.in.Room
	target := a.in.Estimate.TotalTargetMinutes

	if room.WindowOpen && a.result.RemainingMinutes != nil {
		remaining := *a.result.RemainingMinutes
		if remaining > 0 {
			a.ventilating = true
			if dim == DimensionCO2 {
				a.recommend(fmt.Sprintf("Lower CO2: keep the window open %d more min%s", remaining, a.modeTag()))
			} else {
				a.recommend(fmt.Sprintf("About %d min of ventilation remaining%s", remaining, a.modeTag()))
			}
			return
		}

		if dim == DimensionCO2 {
			a.recommend("Air should be fresh now, close the window")
		} else {
			a.recommend("Ventilated enough, close the window")
		}
		return
	}

	// Open with no known start: no countdown, but never ask to open it again
	if room.WindowOpen {
		if dim == DimensionCO2 {
			a.recommend(fmt.Sprintf("Lower CO2: keep the window open about %d min", target))
		} else {
			a.recommend(fmt.Sprintf("Keep the window open for about %d min", target))
		}
		return
	}

	switch {
	case !room.HasWindow && room.HasVentilationAssist:
		a.recommend(fmt.Sprintf("Run the ventilation for about %d min", target))
	case !room.HasWindow:
		a.recommend(fmt.Sprintf("Ventilate through an adjoining room for about %d min", target))
	case dim == DimensionCO2 && critical:
		a.recommend(fmt.Sprintf("Open the window immediately (at least %d min)", target))
	case dim == DimensionCO2:
		a.recommend(fmt.Sprintf("Air out for about %d min", target))
	default:
		a.recommend(fmt.Sprintf("Open the window for about %d min", target))
	}

	flow := a.in.Airflow
	if flow.WindowNeighbor != nil && room.HasWindow {
		a.recommend(fmt.Sprintf("Also open the window in %s for cross-ventilation", flow.WindowNeighbor.DisplayName()))
	}
	if room.HasVentilationAssist && room.HasWindow {
		a.recommend("Switch on the ventilation as well")
	}
	if flow.AssistNeighbor != nil {
		a.recommend(fmt.Sprintf("Run the fan in %s to help draw air through", flow.AssistNeighbor.DisplayName()))
	}
}

// openMinutes returns how long the window has been open, if the start is known
func (a *analysis) openMinutes() (float64, bool) {
	room := a.in.Room
	if !room.WindowOpen {
		return 0, false
	}
	if a.in.Session != nil {
		return a.in.Session.ElapsedMinutes(a.in.Now), true
	}
	if room.WindowChangedAt != nil {
		return a.in.Now.Sub(*room.WindowChangedAt).Minutes(), true
	}
	return 0, false
}

// modeTag names how the target was derived
func (a *analysis) modeTag() string {
	switch {
	case a.in.Airflow.CrossVentilating:
		return " (cross-ventilation)"
	case a.in.Estimate.IsAdaptiveEstimate:
		return " (adaptive estimate)"
	case a.in.Estimate.IsLearned():
		return " (learned)"
	default:
		return ""
	}
}

func (a *analysis) penalize(points int) {
	a.result.Score -= points
}

func (a *analysis) addIssue(dim Dimension, severity Severity, msg string) {
	a.result.Issues = append(a.result.Issues, Issue{Dimension: dim, Severity: severity, Message: msg})
}

// recommend appends a recommendation unless the same text is already present
func (a *analysis) recommend(text string) {
	for _, existing := range a.result.Recommendations {
		if existing == text {
			return
		}
	}
	a.result.Recommendations = append(a.result.Recommendations, text)
}

// ventingEffective compares dew points; an unavailable outside dew point does not block venting
func ventingEffective(dewInside, dewOutside float64) bool {
	if dewInside == 0 {
		return false
	}
	if dewOutside == 0 {
		return true
	}
	return dewOutside < dewInside
}
