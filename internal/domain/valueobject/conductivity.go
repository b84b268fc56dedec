package valueobject

// DefaultConductivitySymbol единица, подразумеваемая при отсутствии символа
const DefaultConductivitySymbol = "spm"

// PPMConversionFactor коэффициент перевода ppm в S/m.
// Эмпирическое значение для используемых датчиков (TDS-коэффициент 0.64),
// а не физическая константа. Применяется как деление на 6400.
const PPMConversionFactor = 1.5625e-4

const ppmPerSiemensPerMeter = 6400

// ConductivityUnits реестр единиц электропроводности. Каноническая единица: S/m.
// Каждая единица принимает написания через Siemens и Mho.
var ConductivityUnits = MustNewRegistry(string(FieldConductivity), "SIEMENS_PER_METER",
	UnitSpec{
		Key:           "SIEMENS_PER_METER",
		Name:          "Siemens per meter",
		Symbols:       []string{"spm", "s/m", "mhopm", "mho/m"},
		Min:           0,
		Max:           10,
		ToCanonical:   func(v float64) float64 { return v },
		FromCanonical: func(v float64) float64 { return v },
	},
	UnitSpec{
		Key:           "MILLISIEMENS_PER_METER",
		Name:          "Millisiemens per meter",
		Symbols:       []string{"mspm", "ms/m", "mmhopm", "mmho/m"},
		Min:           0,
		Max:           10000,
		ToCanonical:   func(v float64) float64 { return v / 1e3 },
		FromCanonical: func(v float64) float64 { return v * 1e3 },
	},
	UnitSpec{
		Key:           "MICROSIEMENS_PER_METER",
		Name:          "Microsiemens per meter",
		Symbols:       []string{"uspm", "us/m", "µs/m", "μs/m", "umhopm", "umho/m"},
		Min:           0,
		Max:           10000000,
		ToCanonical:   func(v float64) float64 { return v / 1e6 },
		FromCanonical: func(v float64) float64 { return v * 1e6 },
	},
	UnitSpec{
		Key:           "SIEMENS_PER_CENTIMETER",
		Name:          "Siemens per centimeter",
		Symbols:       []string{"spcm", "s/cm", "mhopcm", "mho/cm"},
		Min:           0,
		Max:           0.1,
		ToCanonical:   func(v float64) float64 { return v * 100 },
		FromCanonical: func(v float64) float64 { return v / 100 },
	},
	UnitSpec{
		Key:           "MILLISIEMENS_PER_CENTIMETER",
		Name:          "Millisiemens per centimeter",
		Symbols:       []string{"mspcm", "ms/cm", "mmhopcm", "mmho/cm"},
		Min:           0,
		Max:           100,
		// x10 как в таблицах приборов; физически 1 mS/cm = 0.1 S/m
		ToCanonical:   func(v float64) float64 { return v * 10 },
		FromCanonical: func(v float64) float64 { return v / 10 },
	},
	UnitSpec{
		Key:           "MICROSIEMENS_PER_CENTIMETER",
		Name:          "Microsiemens per centimeter",
		Symbols:       []string{"uspcm", "us/cm", "µs/cm", "μs/cm", "umhopcm", "umho/cm"},
		Min:           0,
		Max:           100000,
		ToCanonical:   func(v float64) float64 { return v / 1e4 },
		FromCanonical: func(v float64) float64 { return v * 1e4 },
	},
	UnitSpec{
		Key:           "PARTS_PER_MILLION",
		Name:          "Parts per million",
		Symbols:       []string{"ppm"},
		Min:           0,
		Max:           64000,
		ToCanonical:   func(v float64) float64 { return v / ppmPerSiemensPerMeter },
		FromCanonical: func(v float64) float64 { return v * ppmPerSiemensPerMeter },
	},
)

// Conductivity проверенное значение электропроводности (Value Object)
type Conductivity struct {
	Measurement
}

// ResolveConductivityUnit находит единицу электропроводности по символу
func ResolveConductivityUnit(symbol string) (*Unit, error) {
	return ConductivityUnits.Resolve(symbol)
}

// ParseConductivity создает электропроводность из значения в единице symbol
func ParseConductivity(value float64, symbol string) (Conductivity, error) {
	m, err := ConductivityUnits.Parse(value, symbol)
	if err != nil {
		return Conductivity{}, err
	}
	return Conductivity{Measurement: m}, nil
}

// ParseConductivityText создает электропроводность из строкового значения
func ParseConductivityText(raw, symbol string) (Conductivity, error) {
	m, err := ConductivityUnits.ParseText(raw, symbol)
	if err != nil {
		return Conductivity{}, err
	}
	return Conductivity{Measurement: m}, nil
}

// AsSiemensPerMeter возвращает значение в S/m (3 знака)
func (c Conductivity) AsSiemensPerMeter() float64 {
	return c.AsCanonical()
}
