package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListReadingsQuery параметры выборки показаний
type ListReadingsQuery struct {
	SensorID string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// ListReadingsUseCase возвращает страницу показаний с фильтрами
type ListReadingsUseCase struct {
	repository repository.ReadingRepository
	logger     *logger.Logger
}

// NewListReadingsUseCase создает новый use case
func NewListReadingsUseCase(repository repository.ReadingRepository, logger *logger.Logger) *ListReadingsUseCase {
	return &ListReadingsUseCase{
		repository: repository,
		logger:     logger,
	}
}

// Execute выполняет выборку
func (uc *ListReadingsUseCase) Execute(ctx context.Context, query ListReadingsQuery) (*dto.ReadingListDTO, error) {
	filter := repository.ReadingFilter{
		From:   query.From.UTC(),
		To:     query.To.UTC(),
		Limit:  query.Limit,
		Offset: query.Offset,
	}

	if query.SensorID != "" {
		sensorID, err := valueobject.NewSensorID(query.SensorID)
		if err != nil {
			return nil, err
		}
		filter.SensorID = sensorID.String()
	}

	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, valueobject.NewValidationError(valueobject.CodeInvalidDate, "from", "from must be less than or equal to to")
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	readings, err := uc.repository.List(ctx, filter)
	if err != nil {
		uc.logger.Error("Failed to list readings", err, "sensor_id", filter.SensorID)
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	total, err := uc.repository.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	return &dto.ReadingListDTO{
		Items:  dto.ToReadingDTOs(readings),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
