package service

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// Summary минимум, максимум и среднее ряда значений (2 знака).
// Для пустого ряда все три значения NaN.
type Summary struct {
	Min float64
	Max float64
	Avg float64
}

// IsEmpty сообщает, что ряд не содержал значений
func (s Summary) IsEmpty() bool {
	return math.IsNaN(s.Avg)
}

// MarshalJSON кодирует NaN как null
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
		Avg *float64 `json:"avg"`
	}{
		Min: nullableFloat(s.Min),
		Max: nullableFloat(s.Max),
		Avg: nullableFloat(s.Avg),
	})
}

// UnmarshalJSON восстанавливает NaN из null
func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
		Avg *float64 `json:"avg"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Min = floatOrNaN(raw.Min)
	s.Max = floatOrNaN(raw.Max)
	s.Avg = floatOrNaN(raw.Avg)
	return nil
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Float64s оборачивает значения для функций, допускающих пропуски
func Float64s(values []float64) []*float64 {
	result := make([]*float64, len(values))
	for i := range values {
		result[i] = &values[i]
	}
	return result
}

func usable(v *float64) bool {
	return v != nil && !math.IsNaN(*v)
}

// GetAverage возвращает среднее, пропуская nil и NaN; ok=false если значений нет
func GetAverage(values []*float64) (float64, bool) {
	var sum float64
	var count int
	for _, v := range values {
		if !usable(v) {
			continue
		}
		sum += *v
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// GetMin возвращает минимум, пропуская nil и NaN
func GetMin(values []*float64) (float64, bool) {
	found := false
	var result float64
	for _, v := range values {
		if !usable(v) {
			continue
		}
		if !found || *v < result {
			result = *v
			found = true
		}
	}
	return result, found
}

// GetMax возвращает максимум, пропуская nil и NaN
func GetMax(values []*float64) (float64, bool) {
	found := false
	var result float64
	for _, v := range values {
		if !usable(v) {
			continue
		}
		if !found || *v > result {
			result = *v
			found = true
		}
	}
	return result, found
}

// SummarizeValues считает минимум, максимум и среднее за один проход
func SummarizeValues(values []*float64) Summary {
	var (
		sum      float64
		count    int
		min, max float64
	)

	for _, v := range values {
		if !usable(v) {
			continue
		}
		if count == 0 || *v < min {
			min = *v
		}
		if count == 0 || *v > max {
			max = *v
		}
		sum += *v
		count++
	}

	if count == 0 {
		nan := math.NaN()
		return Summary{Min: nan, Max: nan, Avg: nan}
	}

	return Summary{
		Min: valueobject.Round2(min),
		Max: valueobject.Round2(max),
		Avg: valueobject.Round2(sum / float64(count)),
	}
}

// ReadingAggregator предоставляет сервисы для агрегации показаний (Domain Service)
type ReadingAggregator struct{}

// NewReadingAggregator создает новый ReadingAggregator
func NewReadingAggregator() *ReadingAggregator {
	return &ReadingAggregator{}
}

// SummarizeField считает сводку по полю в канонической единице
func (a *ReadingAggregator) SummarizeField(readings []*entity.Reading, field valueobject.Field) Summary {
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		values = append(values, r.Value(field))
	}
	return SummarizeValues(Float64s(values))
}

// SummarizeAll считает сводки по всем полям
func (a *ReadingAggregator) SummarizeAll(readings []*entity.Reading) map[valueobject.Field]Summary {
	result := make(map[valueobject.Field]Summary, 3)
	for _, field := range valueobject.AllFields() {
		result[field] = a.SummarizeField(readings, field)
	}
	return result
}

// SortByTime сортирует показания по времени измерения
func (a *ReadingAggregator) SortByTime(readings []*entity.Reading, descending bool) []*entity.Reading {
	sorted := make([]*entity.Reading, len(readings))
	copy(sorted, readings)

	sort.SliceStable(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].MeasuredAt().After(sorted[j].MeasuredAt())
		}
		return sorted[i].MeasuredAt().Before(sorted[j].MeasuredAt())
	})

	return sorted
}

// FilterOutOfBand возвращает показания, у которых поле выходит за [low, high]
func (a *ReadingAggregator) FilterOutOfBand(readings []*entity.Reading, field valueobject.Field, low, high float64) []*entity.Reading {
	var result []*entity.Reading
	for _, r := range readings {
		v := r.Value(field)
		if v < low || v > high {
			result = append(result, r)
		}
	}
	return result
}
