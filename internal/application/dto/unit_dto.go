package dto

import "github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"

// UnitDTO описание единицы измерения для клиентской валидации форм
type UnitDTO struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	Symbols   []string `json:"symbols"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Canonical bool     `json:"canonical"`
}

// UnitFamilyDTO реестр единиц одного поля
type UnitFamilyDTO struct {
	Field         string    `json:"field"`
	CanonicalUnit string    `json:"canonical_unit"`
	DefaultUnit   string    `json:"default_unit"`
	Units         []UnitDTO `json:"units"`
}

// RangeDTO допустимый диапазон безразмерной величины
type RangeDTO struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// UnitsDTO все реестры единиц и диапазон pH
type UnitsDTO struct {
	Families []UnitFamilyDTO `json:"families"`
	PH       RangeDTO        `json:"ph"`
}

// NewUnitFamilyDTO строит описание реестра
func NewUnitFamilyDTO(registry *valueobject.Registry) UnitFamilyDTO {
	canonical := registry.Canonical()
	family := UnitFamilyDTO{
		Field:         registry.Field(),
		CanonicalUnit: canonical.Symbol(),
		DefaultUnit:   registry.DefaultSymbol(),
		Units:         make([]UnitDTO, 0, len(registry.Units())),
	}

	for _, unit := range registry.Units() {
		family.Units = append(family.Units, UnitDTO{
			Key:       unit.Key(),
			Name:      unit.Name(),
			Symbol:    unit.Symbol(),
			Symbols:   unit.Symbols(),
			Min:       unit.Min(),
			Max:       unit.Max(),
			Canonical: unit == canonical,
		})
	}

	return family
}

// ConversionDTO результат конвертации значения
type ConversionDTO struct {
	Field    string  `json:"field"`
	Value    float64 `json:"value"`
	From     string  `json:"from"`
	FromName string  `json:"from_name"`
	To       string  `json:"to"`
	ToName   string  `json:"to_name"`
	Result   float64 `json:"result"`
}
