package valueobject

import (
	"fmt"
	"strings"
)

// Field измеряемая величина показания датчика
type Field string

const (
	FieldTemperature  Field = "temperature"
	FieldConductivity Field = "conductivity"
	FieldPH           Field = "ph"
)

// AllFields возвращает все поддерживаемые поля в порядке отображения
func AllFields() []Field {
	return []Field{
		FieldTemperature,
		FieldConductivity,
		FieldPH,
	}
}

// ParseField проверяет имя поля без учета регистра
func ParseField(raw string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// Validate проверяет, что поле поддерживается
func (f Field) Validate() error {
	switch f {
	case FieldTemperature, FieldConductivity, FieldPH:
		return nil
	default:
		options := make([]string, 0, 3)
		for _, field := range AllFields() {
			options = append(options, string(field))
		}
		return newInvalidEnumError("field", string(f), options)
	}
}

// CanonicalUnit возвращает символ канонической единицы поля
func (f Field) CanonicalUnit() string {
	switch f {
	case FieldTemperature:
		return TemperatureUnits.Canonical().Symbol()
	case FieldConductivity:
		return ConductivityUnits.Canonical().Symbol()
	default:
		return ""
	}
}

// Registry возвращает реестр единиц поля; у pH реестра нет
func (f Field) Registry() (*Registry, bool) {
	switch f {
	case FieldTemperature:
		return TemperatureUnits, true
	case FieldConductivity:
		return ConductivityUnits, true
	default:
		return nil, false
	}
}

func (f Field) String() string {
	return string(f)
}

// Label возвращает подпись для дашборда
func (f Field) Label() string {
	switch f {
	case FieldTemperature:
		return "Temperature"
	case FieldConductivity:
		return "Conductivity"
	case FieldPH:
		return "pH"
	default:
		return fmt.Sprintf("unknown(%s)", string(f))
	}
}
