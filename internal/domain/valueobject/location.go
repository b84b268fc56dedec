package valueobject

import (
	"fmt"
	"math"
)

const (
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// Location географические координаты датчика (WGS84)
type Location struct {
	lat float64
	lon float64
}

// NewLocation проверяет координаты; ошибки по обеим осям возвращаются вместе
func NewLocation(lat, lon float64) (Location, error) {
	var errs ValidationErrors
	errs = errs.Append(checkCoordinate(FieldLatitude, lat, 90))
	errs = errs.Append(checkCoordinate(FieldLongitude, lon, 180))
	if len(errs) > 0 {
		return Location{}, errs
	}
	return Location{lat: lat, lon: lon}, nil
}

func checkCoordinate(field string, value, limit float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return newParseError(field, fmt.Sprint(value))
	}
	if value < -limit {
		return newTooSmallError(field, -limit, "degrees")
	}
	if value > limit {
		return newTooBigError(field, limit, "degrees")
	}
	return nil
}

// Latitude возвращает широту
func (l Location) Latitude() float64 {
	return l.lat
}

// Longitude возвращает долготу
func (l Location) Longitude() float64 {
	return l.lon
}

func (l Location) String() string {
	return fmt.Sprintf("%.5f,%.5f", l.lat, l.lon)
}
