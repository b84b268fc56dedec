package valueobject

import (
	"math"
	"strconv"
)

// Рабочий диапазон датчика pH. Значения вне диапазона считаются неисправностью
// датчика, хотя физически шкала шире (0..14).
const (
	MinPH = 5.0
	MaxPH = 9.0
)

// PH проверенное значение водородного показателя (Value Object)
type PH struct {
	value float64
}

// NewPH создает значение pH с проверкой диапазона
func NewPH(value float64) (PH, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return PH{}, newParseError(string(FieldPH), strconv.FormatFloat(value, 'g', -1, 64))
	}
	if value < MinPH {
		return PH{}, newTooSmallError(string(FieldPH), MinPH, "pH")
	}
	if value > MaxPH {
		return PH{}, newTooBigError(string(FieldPH), MaxPH, "pH")
	}
	return PH{value: value}, nil
}

// ParsePHText создает значение pH из строки
func ParsePHText(raw string) (PH, error) {
	value, err := ParseNumber(string(FieldPH), raw)
	if err != nil {
		return PH{}, err
	}
	return NewPH(value)
}

// Value возвращает pH, округленный до DecimalPlaces
func (p PH) Value() float64 {
	return Round2(p.value)
}

// Raw возвращает сохраненное значение без округления
func (p PH) Raw() float64 {
	return p.value
}

func (p PH) String() string {
	return strconv.FormatFloat(p.Value(), 'f', DecimalPlaces, 64)
}
