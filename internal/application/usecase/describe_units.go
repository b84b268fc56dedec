package usecase

import (
	"context"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// DescribeUnitsUseCase возвращает реестры единиц для клиентской валидации форм
type DescribeUnitsUseCase struct{}

// NewDescribeUnitsUseCase создает новый use case
func NewDescribeUnitsUseCase() *DescribeUnitsUseCase {
	return &DescribeUnitsUseCase{}
}

// Execute возвращает реестры; непустой field ограничивает ответ одним полем
func (uc *DescribeUnitsUseCase) Execute(_ context.Context, field string) (*dto.UnitsDTO, error) {
	result := &dto.UnitsDTO{
		Families: make([]dto.UnitFamilyDTO, 0, 2),
		PH:       dto.RangeDTO{Min: valueobject.MinPH, Max: valueobject.MaxPH},
	}

	fields := valueobject.AllFields()
	if field != "" {
		parsed, err := valueobject.ParseField(field)
		if err != nil {
			return nil, err
		}
		fields = []valueobject.Field{parsed}
	}

	for _, f := range fields {
		if registry, ok := f.Registry(); ok {
			result.Families = append(result.Families, dto.NewUnitFamilyDTO(registry))
		}
	}

	return result, nil
}
