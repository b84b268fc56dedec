package service

import (
	"strconv"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// FieldMeasuredAt имя поля времени измерения
const FieldMeasuredAt = "measured_at"

// RawReading непроверенное показание в том виде, как его прислал датчик.
// Числовые значения передаются строками, чтобы ошибки разбора попадали в отчет.
type RawReading struct {
	SensorID         string
	Temperature      string
	TemperatureUnit  string
	Conductivity     string
	ConductivityUnit string
	PH               string
	Latitude         *float64
	Longitude        *float64
	MeasuredAt       string
	Metadata         map[string]string
}

// ReadingValidator превращает сырые показания в сущности (Domain Service)
type ReadingValidator struct {
	maxClockSkew time.Duration
}

// NewReadingValidator создает валидатор; maxClockSkew допускает отставание часов сервера от датчика
func NewReadingValidator(maxClockSkew time.Duration) *ReadingValidator {
	if maxClockSkew < 0 {
		maxClockSkew = 0
	}
	return &ReadingValidator{maxClockSkew: maxClockSkew}
}

// Parse проверяет все поля показания с индексом index в пакете.
// Ошибки не прерывают проверку: возвращаются все найденные, с путями [index, field].
func (v *ReadingValidator) Parse(index int, raw RawReading) (*entity.Reading, valueobject.ValidationErrors) {
	var errs valueobject.ValidationErrors

	sensorID, err := valueobject.NewSensorID(raw.SensorID)
	errs = errs.Append(err)

	temperature, err := valueobject.ParseTemperatureText(raw.Temperature, raw.TemperatureUnit)
	errs = errs.Append(err)

	conductivity, err := valueobject.ParseConductivityText(raw.Conductivity, raw.ConductivityUnit)
	errs = errs.Append(err)

	ph, err := valueobject.ParsePHText(raw.PH)
	errs = errs.Append(err)

	location, hasLocation, err := v.parseLocation(raw)
	errs = errs.Append(err)

	measuredAt, err := v.parseMeasuredAt(raw.MeasuredAt)
	errs = errs.Append(err)

	if len(errs) > 0 {
		prefix := strconv.Itoa(index)
		nested := make(valueobject.ValidationErrors, len(errs))
		for i, e := range errs {
			nested[i] = e.WithPathPrefix(prefix)
		}
		return nil, nested
	}

	reading := entity.NewReading(sensorID, temperature, conductivity, ph, measuredAt)
	if hasLocation {
		reading.WithLocation(location)
	}
	for k, val := range raw.Metadata {
		reading.SetMetadata(k, val)
	}

	return reading, nil
}

// ParseBatch проверяет пакет; корректные показания не зависят от ошибок соседних
func (v *ReadingValidator) ParseBatch(raws []RawReading) ([]*entity.Reading, map[int]valueobject.ValidationErrors) {
	readings := make([]*entity.Reading, 0, len(raws))
	failures := make(map[int]valueobject.ValidationErrors)

	for i, raw := range raws {
		reading, errs := v.Parse(i, raw)
		if len(errs) > 0 {
			failures[i] = errs
			continue
		}
		readings = append(readings, reading)
	}

	return readings, failures
}

func (v *ReadingValidator) parseLocation(raw RawReading) (valueobject.Location, bool, error) {
	if raw.Latitude == nil && raw.Longitude == nil {
		return valueobject.Location{}, false, nil
	}

	var errs valueobject.ValidationErrors
	if raw.Latitude == nil {
		errs = append(errs, valueobject.NewValidationError(valueobject.CodeParseError, valueobject.FieldLatitude, "Required when longitude is set"))
	}
	if raw.Longitude == nil {
		errs = append(errs, valueobject.NewValidationError(valueobject.CodeParseError, valueobject.FieldLongitude, "Required when latitude is set"))
	}
	if len(errs) > 0 {
		return valueobject.Location{}, false, errs
	}

	location, err := valueobject.NewLocation(*raw.Latitude, *raw.Longitude)
	if err != nil {
		return valueobject.Location{}, false, err
	}
	return location, true, nil
}

func (v *ReadingValidator) parseMeasuredAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	measuredAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		e := valueobject.NewValidationError(valueobject.CodeInvalidDate, FieldMeasuredAt, "Invalid datetime, expected RFC 3339")
		e.Received = raw
		return time.Time{}, e
	}

	if measuredAt.After(valueobject.Now().Add(v.maxClockSkew)) {
		e := valueobject.NewValidationError(valueobject.CodeInvalidDate, FieldMeasuredAt, "Measurement time cannot be in the future")
		e.Received = raw
		return time.Time{}, e
	}

	return measuredAt, nil
}
