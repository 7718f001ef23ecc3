package comfort

import (
	"math"
	"time"
)

// Learned factor and live extrapolation tuning
const (
	minLearningSamples = 2    // factor applies once sampleCount exceeds this
	minLearnedRate     = 0.05 // °C/min; slower rooms keep the static table
	referenceRate      = 0.1  // °C/min the static table assumes
	minLearnedFactor   = 0.5
	maxLearnedFactor   = 1.5

	minAdaptiveElapsed = 3.0  // minutes before live extrapolation starts
	minAdaptiveRate    = 0.2  // °C/min observed cooling needed to trust the trend
	adaptiveTarget     = 0.5  // °C below tempMax the room should reach
	fullTrustElapsed   = 15.0 // minutes after which the live prediction fully replaces the table
)

// EstimateInput bundles everything the duration estimate depends on
type EstimateInput struct {
	OutsideTemp      float64
	Room             RoomReading
	Limits           Limits
	Session          *Session
	Learning         *LearningRecord
	CrossVentilating bool
	ExtensionMinutes int
	Now              time.Time
}

// Estimate is the recommended total window-open duration
type Estimate struct {
	BaseMinutes        int     `json:"base_minutes"`
	LearnedFactor      float64 `json:"learned_factor"`
	TotalTargetMinutes int     `json:"total_target_minutes"`
	ExtensionMinutes   int     `json:"extension_minutes"`
	IsAdaptiveEstimate bool    `json:"is_adaptive_estimate"`
}

// IsLearned reports whether the learned factor changed the estimate
func (e Estimate) IsLearned() bool {
	return e.LearnedFactor != 1.0
}

// BaseMinutes is the static lookup table keyed on outside temperature
func BaseMinutes(outsideTemp float64) int {
	switch {
	case outsideTemp < 5:
		return 5
	case outsideTemp < 10:
		return 10
	case outsideTemp < 20:
		return 20
	default:
		return 30
	}
}

// LearnedFactor scales the table by how fast the room cooled in past sessions
func LearnedFactor(record *LearningRecord) float64 {
	if record == nil || record.SampleCount <= minLearningSamples || record.AvgRate <= minLearnedRate {
		return 1.0
	}
	return clamp(referenceRate/record.AvgRate, minLearnedFactor, maxLearnedFactor)
}

// EstimateDuration combines the lookup table, the learned factor, live extrapolation
// and timer extensions into one target. It does not mutate its input.
func EstimateDuration(in EstimateInput) Estimate {
	base := BaseMinutes(in.OutsideTemp)
	if in.CrossVentilating {
		base = int(math.Ceil(float64(base) / 2))
	}

	factor := LearnedFactor(in.Learning)
	target := math.Round(float64(base) * factor)

	est := Estimate{
		BaseMinutes:      base,
		LearnedFactor:    factor,
		ExtensionMinutes: in.ExtensionMinutes,
	}

	if in.Session != nil && in.Room.Temperature > in.Limits.TempMax {
		elapsed := in.Session.ElapsedMinutes(in.Now)
		if elapsed >= minAdaptiveElapsed {
			rate := (in.Session.StartTemp - in.Room.Temperature) / elapsed
			floor := in.Limits.TempMax - adaptiveTarget

			if rate > minAdaptiveRate && in.Room.Temperature > floor {
				additional := (in.Room.Temperature - floor) / rate
				predictedTotal := elapsed + additional
				trust := math.Min(1, elapsed/fullTrustElapsed)
				target = math.Round(target*(1-trust) + predictedTotal*trust)
				est.IsAdaptiveEstimate = true
			}
		}
	}

	est.TotalTargetMinutes = int(target) + in.ExtensionMinutes
	return est
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
