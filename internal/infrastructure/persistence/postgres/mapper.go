package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// ReadingDBModel представляет показание в БД.
// Единицы хранятся ключами реестра (CELSIUS, PARTS_PER_MILLION), значения в единице ввода.
type ReadingDBModel struct {
	ID                string
	SensorID          string
	TemperatureValue  float64
	TemperatureUnit   string
	ConductivityValue float64
	ConductivityUnit  string
	PH                float64
	Latitude          sql.NullFloat64
	Longitude         sql.NullFloat64
	Metadata          []byte // JSON
	MeasuredAt        time.Time
	IngestedAt        time.Time
}

// ToDBModel конвертирует Domain Entity в DB Model
func ToDBModel(reading *entity.Reading) (*ReadingDBModel, error) {
	var metadataBytes []byte
	var err error

	metadata := reading.Metadata()
	if len(metadata) > 0 {
		metadataBytes, err = json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
	}

	model := &ReadingDBModel{
		ID:                reading.ID(),
		SensorID:          reading.SensorID().String(),
		TemperatureValue:  reading.Temperature().Value(),
		TemperatureUnit:   reading.Temperature().Unit().Key(),
		ConductivityValue: reading.Conductivity().Value(),
		ConductivityUnit:  reading.Conductivity().Unit().Key(),
		PH:                reading.PH().Raw(),
		Metadata:          metadataBytes,
		MeasuredAt:        reading.MeasuredAt(),
		IngestedAt:        reading.IngestedAt(),
	}

	if location, ok := reading.Location(); ok {
		model.Latitude = sql.NullFloat64{Float64: location.Latitude(), Valid: true}
		model.Longitude = sql.NullFloat64{Float64: location.Longitude(), Valid: true}
	}

	return model, nil
}

// ToEntity конвертирует DB Model в Domain Entity
func ToEntity(model *ReadingDBModel) (*entity.Reading, error) {
	var metadata map[string]string
	if len(model.Metadata) > 0 {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, err
		}
	}

	sensorID, err := valueobject.NewSensorID(model.SensorID)
	if err != nil {
		return nil, err
	}

	temperatureUnit, ok := valueobject.TemperatureUnits.Get(model.TemperatureUnit)
	if !ok {
		return nil, fmt.Errorf("unknown temperature unit %q", model.TemperatureUnit)
	}
	temperature, err := valueobject.ParseTemperature(model.TemperatureValue, temperatureUnit.Symbol())
	if err != nil {
		return nil, err
	}

	conductivityUnit, ok := valueobject.ConductivityUnits.Get(model.ConductivityUnit)
	if !ok {
		return nil, fmt.Errorf("unknown conductivity unit %q", model.ConductivityUnit)
	}
	conductivity, err := valueobject.ParseConductivity(model.ConductivityValue, conductivityUnit.Symbol())
	if err != nil {
		return nil, err
	}

	ph, err := valueobject.NewPH(model.PH)
	if err != nil {
		return nil, err
	}

	var location *valueobject.Location
	if model.Latitude.Valid && model.Longitude.Valid {
		loc, err := valueobject.NewLocation(model.Latitude.Float64, model.Longitude.Float64)
		if err != nil {
			return nil, err
		}
		location = &loc
	}

	// Восстанавливаем entity через Reconstruct
	return entity.Reconstruct(
		model.ID,
		sensorID,
		temperature,
		conductivity,
		ph,
		location,
		metadata,
		model.MeasuredAt,
		model.IngestedAt,
	), nil
}

// ScanReadingRow сканирует строку БД в ReadingDBModel
func ScanReadingRow(row interface {
	Scan(dest ...interface{}) error
}) (*ReadingDBModel, error) {
	var model ReadingDBModel
	var metadata sql.NullString

	err := row.Scan(
		&model.ID,
		&model.SensorID,
		&model.TemperatureValue,
		&model.TemperatureUnit,
		&model.ConductivityValue,
		&model.ConductivityUnit,
		&model.PH,
		&model.Latitude,
		&model.Longitude,
		&metadata,
		&model.MeasuredAt,
		&model.IngestedAt,
	)

	if err != nil {
		return nil, err
	}

	if metadata.Valid {
		model.Metadata = []byte(metadata.String)
	}

	return &model, nil
}
