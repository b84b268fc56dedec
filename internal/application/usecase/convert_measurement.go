package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// ConvertMeasurementCommand запрос на конвертацию значения между единицами
type ConvertMeasurementCommand struct {
	Field string
	Value string
	From  string
	To    string
}

// ConvertMeasurementUseCase проверяет значение и переводит его в другую единицу
type ConvertMeasurementUseCase struct{}

// NewConvertMeasurementUseCase создает новый use case
func NewConvertMeasurementUseCase() *ConvertMeasurementUseCase {
	return &ConvertMeasurementUseCase{}
}

// Execute выполняет конвертацию. Пустой From означает единицу по умолчанию,
// пустой To означает каноническую единицу.
func (uc *ConvertMeasurementUseCase) Execute(_ context.Context, cmd ConvertMeasurementCommand) (*dto.ConversionDTO, error) {
	field, err := valueobject.ParseField(cmd.Field)
	if err != nil {
		return nil, err
	}

	registry, ok := field.Registry()
	if !ok {
		return nil, valueobject.NewValidationError(valueobject.CodeInvalidEnumValue, "field",
			fmt.Sprintf("Field %s has no convertible units", field))
	}

	measurement, err := registry.ParseText(cmd.Value, cmd.From)
	if err != nil {
		return nil, err
	}

	to := cmd.To
	if to == "" {
		to = registry.Canonical().Symbol()
	}
	target, err := registry.Resolve(to)
	if err != nil {
		return nil, err
	}

	result, err := measurement.ConvertTo(to)
	if err != nil {
		return nil, err
	}

	return &dto.ConversionDTO{
		Field:    field.String(),
		Value:    measurement.Value(),
		From:     measurement.Unit().Symbol(),
		FromName: measurement.Unit().Name(),
		To:       target.Symbol(),
		ToName:   target.Name(),
		Result:   result,
	}, nil
}
