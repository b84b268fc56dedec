package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
)

// NumberInput числовое поле запроса, принимающее JSON-число или строку.
// Текст сохраняется как есть, разбор и проверка выполняются доменом.
type NumberInput struct {
	raw string
	set bool
}

// NewNumberInput создает значение из текста
func NewNumberInput(raw string) NumberInput {
	return NumberInput{raw: raw, set: true}
}

// UnmarshalJSON реализует json.Unmarshaler
func (n *NumberInput) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*n = NumberInput{}
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = NumberInput{raw: s, set: true}
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		return fmt.Errorf("expected number or string: %w", err)
	}
	*n = NumberInput{raw: num.String(), set: true}
	return nil
}

// MarshalJSON кодирует значение как число, если текст числовой
func (n NumberInput) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(n.raw, 64); err == nil {
		return []byte(n.raw), nil
	}
	return json.Marshal(n.raw)
}

// String возвращает исходный текст
func (n NumberInput) String() string {
	return n.raw
}

// IsSet сообщает, что поле присутствовало в запросе
func (n NumberInput) IsSet() bool {
	return n.set
}

// ReadingInput одно показание в запросе на прием
type ReadingInput struct {
	SensorID         string            `json:"sensor_id"`
	Temperature      NumberInput       `json:"temperature"`
	TemperatureUnit  string            `json:"temperature_unit,omitempty" validate:"omitempty,max=16"`
	Conductivity     NumberInput       `json:"conductivity"`
	ConductivityUnit string            `json:"conductivity_unit,omitempty" validate:"omitempty,max=16"`
	PH               NumberInput       `json:"ph"`
	Latitude         *float64          `json:"latitude,omitempty"`
	Longitude        *float64          `json:"longitude,omitempty"`
	MeasuredAt       string            `json:"measured_at,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty" validate:"omitempty,max=16,dive,keys,max=64,endkeys,max=256"`
}

// ToRaw передает поля в домен без разбора
func (in ReadingInput) ToRaw() service.RawReading {
	return service.RawReading{
		SensorID:         in.SensorID,
		Temperature:      in.Temperature.String(),
		TemperatureUnit:  in.TemperatureUnit,
		Conductivity:     in.Conductivity.String(),
		ConductivityUnit: in.ConductivityUnit,
		PH:               in.PH.String(),
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		MeasuredAt:       in.MeasuredAt,
		Metadata:         in.Metadata,
	}
}

// IngestReadingsRequest пакет показаний
type IngestReadingsRequest struct {
	Readings []ReadingInput `json:"readings" validate:"required,min=1,dive"`
}

// IngestResultDTO результат приема пакета
type IngestResultDTO struct {
	Accepted int                 `json:"accepted"`
	Rejected int                 `json:"rejected"`
	Errors   map[string][]string `json:"errors,omitempty"`
	Readings []*ReadingDTO       `json:"readings"`
}

// ErrorResponseDTO тело ответа с ошибкой
type ErrorResponseDTO struct {
	Error  string              `json:"error"`
	Code   string              `json:"code,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
}
