package climate

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sixdouglas/suncalc"
)

// Random walk bounds of the synthetic data
const (
	demoTempStep     = 0.4  // total spread, ±0.2 °C per tick
	demoHumidityStep = 3.0  // floor((r-0.5)*3) gives -2..+1 %RH
	demoCO2Step      = 50.0 // floor((r-0.5)*50) gives -25..+24 ppm
	demoHumidityMin  = 30.0
	demoHumidityMax  = 99.0
	demoCO2Min       = 400.0

	demoSunSwing      = 6.0  // °C added at the sun's zenith, removed at its nadir
	demoHumiditySwing = 15.0 // %RH the outside dries out in full sun
)

// DemoSource replaces live data with a bounded random walk. Outdoor values
// follow the sun so that the estimator sees realistic day and night swings.
type DemoSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	lat     float64
	lon     float64
	baseOut float64
	baseHum float64
}

// NewDemoSource creates a demo generator around the layout's outside defaults
func NewDemoSource(layout *Layout, lat, lon float64, rng *rand.Rand) *DemoSource {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DemoSource{
		rng:     rng,
		lat:     lat,
		lon:     lon,
		baseOut: layout.Outside.Temperature,
		baseHum: layout.Outside.Humidity,
	}
}

func (s *DemoSource) Name() string { return SourceDemo }

// Fetch walks every room one step. Window and thermostat state are left as they are.
func (s *DemoSource) Fetch(ctx context.Context, prev Snapshot, now time.Time) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := prev.Clone()
	next.Source = SourceDemo
	next.FetchedAt = now

	for i := range next.Rooms {
		room := &next.Rooms[i]

		room.Temperature = round1(room.Temperature + (s.rng.Float64()-0.5)*demoTempStep)
		room.Humidity = clampf(room.Humidity+math.Floor((s.rng.Float64()-0.5)*demoHumidityStep), demoHumidityMin, demoHumidityMax)

		if room.HasCO2 && room.CO2 != nil {
			co2 := math.Max(demoCO2Min, *room.CO2+math.Floor((s.rng.Float64()-0.5)*demoCO2Step))
			room.CO2 = &co2
		}
	}

	next.Outside.Temperature, next.Outside.Humidity = s.outside(now)
	return next, nil
}

// outside derives outdoor temperature and humidity from the sun altitude
func (s *DemoSource) outside(now time.Time) (float64, float64) {
	position := suncalc.GetPosition(now, s.lat, s.lon)
	sun := math.Sin(position.Altitude)

	temp := round1(s.baseOut + demoSunSwing*sun)
	hum := clampf(math.Round(s.baseHum-demoHumiditySwing*sun), demoHumidityMin, demoHumidityMax)
	return temp, hum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
