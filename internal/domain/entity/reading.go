package entity

import (
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/google/uuid"
)

// Reading представляет одно показание датчика качества воды (Aggregate Root).
// Измерения проверены при создании и дальше не меняются.
// Координаты и метаданные дописываются через WithLocation/SetMetadata до сохранения.
type Reading struct {
	id           string
	sensorID     valueobject.SensorID
	temperature  valueobject.Temperature
	conductivity valueobject.Conductivity
	ph           valueobject.PH
	location     *valueobject.Location
	metadata     map[string]string
	measuredAt   time.Time
	ingestedAt   time.Time
}

// NewReading создает новое показание (Factory Method)
func NewReading(
	sensorID valueobject.SensorID,
	temperature valueobject.Temperature,
	conductivity valueobject.Conductivity,
	ph valueobject.PH,
	measuredAt time.Time,
) *Reading {
	now := valueobject.Now()
	if measuredAt.IsZero() {
		measuredAt = now
	}

	return &Reading{
		id:           uuid.New().String(),
		sensorID:     sensorID,
		temperature:  temperature,
		conductivity: conductivity,
		ph:           ph,
		metadata:     make(map[string]string),
		measuredAt:   measuredAt.UTC(),
		ingestedAt:   now.UTC(),
	}
}

// Reconstruct восстанавливает показание из хранилища (для Repository)
func Reconstruct(
	id string,
	sensorID valueobject.SensorID,
	temperature valueobject.Temperature,
	conductivity valueobject.Conductivity,
	ph valueobject.PH,
	location *valueobject.Location,
	metadata map[string]string,
	measuredAt, ingestedAt time.Time,
) *Reading {
	if metadata == nil {
		metadata = make(map[string]string)
	}

	return &Reading{
		id:           id,
		sensorID:     sensorID,
		temperature:  temperature,
		conductivity: conductivity,
		ph:           ph,
		location:     location,
		metadata:     metadata,
		measuredAt:   measuredAt,
		ingestedAt:   ingestedAt,
	}
}

// ID возвращает идентификатор показания
func (r *Reading) ID() string {
	return r.id
}

// SensorID возвращает идентификатор датчика
func (r *Reading) SensorID() valueobject.SensorID {
	return r.sensorID
}

// Temperature возвращает температуру в единице, переданной датчиком
func (r *Reading) Temperature() valueobject.Temperature {
	return r.temperature
}

// Conductivity возвращает электропроводность в единице, переданной датчиком
func (r *Reading) Conductivity() valueobject.Conductivity {
	return r.conductivity
}

// PH возвращает водородный показатель
func (r *Reading) PH() valueobject.PH {
	return r.ph
}

// Location возвращает координаты, если датчик их передал
func (r *Reading) Location() (valueobject.Location, bool) {
	if r.location == nil {
		return valueobject.Location{}, false
	}
	return *r.location, true
}

// Metadata возвращает копию метаданных
func (r *Reading) Metadata() map[string]string {
	result := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		result[k] = v
	}
	return result
}

// MeasuredAt возвращает время измерения на датчике
func (r *Reading) MeasuredAt() time.Time {
	return r.measuredAt
}

// IngestedAt возвращает время приема показания сервером
func (r *Reading) IngestedAt() time.Time {
	return r.ingestedAt
}

// WithLocation задает координаты (используется при создании показания)
func (r *Reading) WithLocation(location valueobject.Location) *Reading {
	r.location = &location
	return r
}

// SetMetadata устанавливает метаданные
func (r *Reading) SetMetadata(key, value string) {
	r.metadata[key] = value
}

// Domain Methods (бизнес-логика)

// Value возвращает значение поля в канонической единице (K, S/m, pH)
func (r *Reading) Value(field valueobject.Field) float64 {
	switch field {
	case valueobject.FieldTemperature:
		return r.temperature.AsKelvin()
	case valueobject.FieldConductivity:
		return r.conductivity.AsSiemensPerMeter()
	case valueobject.FieldPH:
		return r.ph.Value()
	default:
		return 0
	}
}

// Age возвращает возраст показания с момента измерения
func (r *Reading) Age() time.Duration {
	return valueobject.Now().Sub(r.measuredAt)
}

// IsStale проверяет, устарело ли показание
func (r *Reading) IsStale(threshold time.Duration) bool {
	return r.Age() > threshold
}
