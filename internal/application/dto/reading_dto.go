package dto

import (
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// MeasurementDTO значение в единице ввода и в канонической единице
type MeasurementDTO struct {
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
	UnitName      string  `json:"unit_name"`
	Canonical     float64 `json:"canonical"`
	CanonicalUnit string  `json:"canonical_unit"`
}

// ReadingDTO представляет показание для передачи между слоями
type ReadingDTO struct {
	ID           string            `json:"id"`
	SensorID     string            `json:"sensor_id"`
	Temperature  MeasurementDTO    `json:"temperature"`
	Conductivity MeasurementDTO    `json:"conductivity"`
	PH           float64           `json:"ph"`
	Latitude     *float64          `json:"latitude,omitempty"`
	Longitude    *float64          `json:"longitude,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	MeasuredAt   time.Time         `json:"measured_at"`
	IngestedAt   time.Time         `json:"ingested_at"`
}

func measurementDTO(m valueobject.Measurement) MeasurementDTO {
	return MeasurementDTO{
		Value:         m.Value(),
		Unit:          m.Unit().Symbol(),
		UnitName:      m.Unit().Name(),
		Canonical:     m.AsCanonical(),
		CanonicalUnit: m.Unit().Canonical().Symbol(),
	}
}

// FromEntity конвертирует Domain Entity в DTO
func FromEntity(reading *entity.Reading) *ReadingDTO {
	result := &ReadingDTO{
		ID:           reading.ID(),
		SensorID:     reading.SensorID().String(),
		Temperature:  measurementDTO(reading.Temperature().Measurement),
		Conductivity: measurementDTO(reading.Conductivity().Measurement),
		PH:           reading.PH().Value(),
		Metadata:     reading.Metadata(),
		MeasuredAt:   reading.MeasuredAt(),
		IngestedAt:   reading.IngestedAt(),
	}

	if loc, ok := reading.Location(); ok {
		lat, lon := loc.Latitude(), loc.Longitude()
		result.Latitude = &lat
		result.Longitude = &lon
	}

	if len(result.Metadata) == 0 {
		result.Metadata = nil
	}

	return result
}

// ToReadingDTOs конвертирует слайс Entity в слайс DTO
func ToReadingDTOs(readings []*entity.Reading) []*ReadingDTO {
	dtos := make([]*ReadingDTO, len(readings))
	for i, r := range readings {
		dtos[i] = FromEntity(r)
	}
	return dtos
}

// ReadingListDTO страница показаний
type ReadingListDTO struct {
	Items  []*ReadingDTO `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
