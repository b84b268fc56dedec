package valueobject

import (
	"strings"

	"github.com/gosimple/slug"
)

// FieldSensorID имя поля идентификатора датчика
const FieldSensorID = "sensor_id"

const maxSensorIDLength = 64

// SensorID нормализованный идентификатор датчика ("North Pier #2" -> "north-pier-2")
type SensorID struct {
	value string
}

// NewSensorID нормализует и проверяет идентификатор
func NewSensorID(raw string) (SensorID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SensorID{}, NewValidationError(CodeInvalidString, FieldSensorID, "Sensor ID is required")
	}

	normalized := slug.Make(trimmed)
	if normalized == "" {
		return SensorID{}, &ValidationError{
			Code:     CodeInvalidString,
			Path:     fieldPath(FieldSensorID),
			Message:  "Sensor ID must contain letters or digits",
			Received: raw,
		}
	}
	if len(normalized) > maxSensorIDLength {
		return SensorID{}, &ValidationError{
			Code:     CodeInvalidString,
			Path:     fieldPath(FieldSensorID),
			Message:  "Sensor ID must be at most 64 characters",
			Received: raw,
		}
	}

	return SensorID{value: normalized}, nil
}

// String возвращает нормализованное значение
func (s SensorID) String() string {
	return s.value
}

// IsZero сообщает, что идентификатор пустой
func (s SensorID) IsZero() bool {
	return s.value == ""
}
