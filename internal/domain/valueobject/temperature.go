package valueobject

// DefaultTemperatureSymbol единица, подразумеваемая при отсутствии символа
const DefaultTemperatureSymbol = "k"

const kelvinOffset = 273.15

// TemperatureUnits реестр единиц температуры. Каноническая единица: Кельвин.
// Диапазон соответствует рабочему диапазону датчика (-10..30 °C).
var TemperatureUnits = MustNewRegistry(string(FieldTemperature), "KELVIN",
	UnitSpec{
		Key:           "KELVIN",
		Name:          "Kelvin",
		Symbols:       []string{"k"},
		Min:           263.15,
		Max:           303.15,
		ToCanonical:   func(k float64) float64 { return k },
		FromCanonical: func(k float64) float64 { return k },
	},
	UnitSpec{
		Key:           "CELSIUS",
		Name:          "Celsius",
		Symbols:       []string{"c"},
		Min:           -10,
		Max:           30,
		ToCanonical:   func(c float64) float64 { return c + kelvinOffset },
		FromCanonical: func(k float64) float64 { return k - kelvinOffset },
	},
	UnitSpec{
		Key:           "FAHRENHEIT",
		Name:          "Fahrenheit",
		Symbols:       []string{"f"},
		Min:           14,
		Max:           86,
		ToCanonical:   func(f float64) float64 { return (f + 459.67) * 5 / 9 },
		FromCanonical: func(k float64) float64 { return (k-kelvinOffset)*9/5 + 32 },
	},
)

// Temperature проверенное значение температуры (Value Object)
type Temperature struct {
	Measurement
}

// ResolveTemperatureUnit находит единицу температуры по символу
func ResolveTemperatureUnit(symbol string) (*Unit, error) {
	return TemperatureUnits.Resolve(symbol)
}

// ParseTemperature создает температуру из значения в единице symbol
func ParseTemperature(value float64, symbol string) (Temperature, error) {
	m, err := TemperatureUnits.Parse(value, symbol)
	if err != nil {
		return Temperature{}, err
	}
	return Temperature{Measurement: m}, nil
}

// ParseTemperatureText создает температуру из строкового значения
func ParseTemperatureText(raw, symbol string) (Temperature, error) {
	m, err := TemperatureUnits.ParseText(raw, symbol)
	if err != nil {
		return Temperature{}, err
	}
	return Temperature{Measurement: m}, nil
}

// AsKelvin возвращает значение в Кельвинах (3 знака)
func (t Temperature) AsKelvin() float64 {
	return t.AsCanonical()
}
