package comfort

import "math"

// Magnus approximation coefficients
const (
	magnusA = 17.27
	magnusB = 237.7
)

// DewPoint returns the dew point in °C for a temperature and relative humidity.
// It returns 0 when either input is zero; callers treat 0 as unavailable.
func DewPoint(temp, humidity float64) float64 {
	if temp == 0 || humidity == 0 || math.IsNaN(temp) || math.IsNaN(humidity) {
		return 0
	}
	alpha := (magnusA*temp)/(magnusB+temp) + math.Log(humidity/100.0)
	return (magnusB * alpha) / (magnusA - alpha)
}
