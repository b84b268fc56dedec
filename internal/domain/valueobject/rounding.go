package valueobject

import "math"

const (
	// DecimalPlaces точность результатов конвертации единиц и чтения pH
	DecimalPlaces = 2

	// CanonicalDecimalPlaces точность канонических аксессоров измерений (AsKelvin, AsSiemensPerMeter)
	CanonicalDecimalPlaces = 3
)

// Round округляет x до places знаков после запятой (half-up)
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	factor := math.Pow(10, float64(places))
	return math.Floor(x*factor+0.5) / factor
}

// Round2 округляет до DecimalPlaces знаков
func Round2(x float64) float64 {
	return Round(x, DecimalPlaces)
}
