package valueobject

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnitSpec описывает единицу измерения при построении реестра
type UnitSpec struct {
	Key           string
	Name          string
	Symbols       []string
	Min           float64
	Max           float64
	ToCanonical   func(float64) float64
	FromCanonical func(float64) float64
}

// Unit дескриптор единицы измерения (Value Object).
// Границы Min/Max выражены в шкале самой единицы и включительны.
type Unit struct {
	key           string
	name          string
	symbols       []string
	min           float64
	max           float64
	toCanonical   func(float64) float64
	fromCanonical func(float64) float64
	registry      *Registry
}

// Key возвращает ключ единицы внутри семейства (KELVIN, PARTS_PER_MILLION, ...)
func (u *Unit) Key() string {
	return u.key
}

// Name возвращает отображаемое имя
func (u *Unit) Name() string {
	return u.name
}

// Symbol возвращает основной символ
func (u *Unit) Symbol() string {
	return u.symbols[0]
}

// Symbols возвращает все допустимые написания
func (u *Unit) Symbols() []string {
	return append([]string(nil), u.symbols...)
}

// Min возвращает нижнюю границу
func (u *Unit) Min() float64 {
	return u.min
}

// Max возвращает верхнюю границу
func (u *Unit) Max() float64 {
	return u.max
}

// InRange проверяет попадание значения в допустимый диапазон
func (u *Unit) InRange(value float64) bool {
	return value >= u.min && value <= u.max
}

// Family возвращает поле, к которому относится семейство единиц
func (u *Unit) Family() string {
	return u.registry.field
}

// Canonical возвращает каноническую единицу семейства
func (u *Unit) Canonical() *Unit {
	return u.registry.canonical
}

// ToCanonical переводит значение в каноническую единицу семейства без округления.
// Для мелких единиц (µS/m, ppm) два знака в S/m обнулили бы значение.
func (u *Unit) ToCanonical(value float64) float64 {
	return u.toCanonical(value)
}

// FromCanonical переводит значение из канонической единицы без округления
func (u *Unit) FromCanonical(value float64) float64 {
	return u.fromCanonical(value)
}

// Registry упорядоченный реестр единиц одного семейства.
// Строится один раз при инициализации пакета и дальше не меняется.
type Registry struct {
	field     string
	canonical *Unit
	units     []*Unit
	byKey     map[string]*Unit
	bySymbol  map[string]*Unit
	symbols   []string
}

// NewRegistry строит реестр и проверяет, что символы не пересекаются
func NewRegistry(field, canonicalKey string, specs ...UnitSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("registry %s: no units", field)
	}

	r := &Registry{
		field:    field,
		units:    make([]*Unit, 0, len(specs)),
		byKey:    make(map[string]*Unit, len(specs)),
		bySymbol: make(map[string]*Unit),
	}

	for _, spec := range specs {
		if spec.Key == "" {
			return nil, fmt.Errorf("registry %s: unit key is required", field)
		}
		if _, exists := r.byKey[spec.Key]; exists {
			return nil, fmt.Errorf("registry %s: duplicate unit key %s", field, spec.Key)
		}
		if len(spec.Symbols) == 0 {
			return nil, fmt.Errorf("registry %s: unit %s has no symbols", field, spec.Key)
		}
		if spec.Min > spec.Max {
			return nil, fmt.Errorf("registry %s: unit %s has min greater than max", field, spec.Key)
		}
		if spec.ToCanonical == nil || spec.FromCanonical == nil {
			return nil, fmt.Errorf("registry %s: unit %s has no conversion functions", field, spec.Key)
		}

		unit := &Unit{
			key:           spec.Key,
			name:          spec.Name,
			symbols:       make([]string, 0, len(spec.Symbols)),
			min:           spec.Min,
			max:           spec.Max,
			toCanonical:   spec.ToCanonical,
			fromCanonical: spec.FromCanonical,
			registry:      r,
		}

		for _, symbol := range spec.Symbols {
			normalized := normalizeSymbol(symbol)
			if normalized == "" {
				return nil, fmt.Errorf("registry %s: unit %s has an empty symbol", field, spec.Key)
			}
			if owner, exists := r.bySymbol[normalized]; exists {
				return nil, fmt.Errorf("registry %s: symbol %q claimed by %s and %s", field, normalized, owner.key, spec.Key)
			}
			r.bySymbol[normalized] = unit
			r.symbols = append(r.symbols, normalized)
			unit.symbols = append(unit.symbols, normalized)
		}

		r.units = append(r.units, unit)
		r.byKey[unit.key] = unit
	}

	canonical, ok := r.byKey[canonicalKey]
	if !ok {
		return nil, fmt.Errorf("registry %s: canonical unit %s is not registered", field, canonicalKey)
	}
	r.canonical = canonical

	return r, nil
}

// MustNewRegistry как NewRegistry, но паникует при ошибке (для таблиц уровня пакета)
func MustNewRegistry(field, canonicalKey string, specs ...UnitSpec) *Registry {
	r, err := NewRegistry(field, canonicalKey, specs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Field возвращает имя поля семейства ("temperature", "conductivity")
func (r *Registry) Field() string {
	return r.field
}

// Canonical возвращает каноническую единицу
func (r *Registry) Canonical() *Unit {
	return r.canonical
}

// DefaultSymbol возвращает символ, используемый когда единица не указана
func (r *Registry) DefaultSymbol() string {
	return r.canonical.Symbol()
}

// Units возвращает единицы в порядке регистрации
func (r *Registry) Units() []*Unit {
	return append([]*Unit(nil), r.units...)
}

// Get возвращает единицу по ключу
func (r *Registry) Get(key string) (*Unit, bool) {
	unit, ok := r.byKey[key]
	return unit, ok
}

// Symbols возвращает все допустимые символы всех единиц
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// Resolve находит единицу по символу без учета регистра
func (r *Registry) Resolve(symbol string) (*Unit, error) {
	if unit, ok := r.bySymbol[normalizeSymbol(symbol)]; ok {
		return unit, nil
	}
	return nil, newInvalidEnumError(r.field, symbol, r.symbols)
}

// Parse проверяет значение в единице symbol и создает Measurement.
// Пустой symbol означает каноническую единицу.
func (r *Registry) Parse(value float64, symbol string) (Measurement, error) {
	if strings.TrimSpace(symbol) == "" {
		symbol = r.DefaultSymbol()
	}

	unit, err := r.Resolve(symbol)
	if err != nil {
		return Measurement{}, err
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Measurement{}, newParseError(r.field, strconv.FormatFloat(value, 'g', -1, 64))
	}
	if value < unit.min {
		return Measurement{}, newTooSmallError(r.field, unit.min, unit.name)
	}
	if value > unit.max {
		return Measurement{}, newTooBigError(r.field, unit.max, unit.name)
	}

	return Measurement{value: value, unit: unit}, nil
}

// ParseText разбирает строковое значение и проверяет его как Parse
func (r *Registry) ParseText(raw, symbol string) (Measurement, error) {
	value, err := ParseNumber(r.field, raw)
	if err != nil {
		return Measurement{}, err
	}
	return r.Parse(value, symbol)
}

// Convert проверяет значение в единице from и переводит его в единицу to
func (r *Registry) Convert(value float64, from, to string) (float64, error) {
	m, err := r.Parse(value, from)
	if err != nil {
		return 0, err
	}
	return m.ConvertTo(to)
}

// Measurement проверенное значение с единицей измерения (Value Object).
// Создается только через Registry.Parse; после создания не меняется.
type Measurement struct {
	value float64
	unit  *Unit
}

// Value возвращает исходное значение в единице, указанной при вводе
func (m Measurement) Value() float64 {
	return m.value
}

// Unit возвращает дескриптор единицы
func (m Measurement) Unit() *Unit {
	return m.unit
}

// AsCanonical переводит значение в каноническую единицу (3 знака, без кеширования)
func (m Measurement) AsCanonical() float64 {
	return Round(m.unit.toCanonical(m.value), CanonicalDecimalPlaces)
}

// ConvertTo переводит значение в другую единицу того же семейства (2 знака)
func (m Measurement) ConvertTo(symbol string) (float64, error) {
	target, err := m.unit.registry.Resolve(symbol)
	if err != nil {
		return 0, err
	}
	if target == m.unit {
		return Round2(m.value), nil
	}
	return Round2(target.fromCanonical(m.unit.toCanonical(m.value))), nil
}

// IsZero сообщает, что измерение не было создано
func (m Measurement) IsZero() bool {
	return m.unit == nil
}

// Equals сравнивает значение и единицу (по идентичности дескриптора)
func (m Measurement) Equals(other Measurement) bool {
	return m.value == other.value && m.unit == other.unit
}

// String возвращает строковое представление
func (m Measurement) String() string {
	if m.unit == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", strconv.FormatFloat(m.value, 'f', -1, 64), m.unit.Symbol())
}

func normalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}
