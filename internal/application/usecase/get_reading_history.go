package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const maxHistoryWindow = 31 * 24 * time.Hour

// GetReadingHistoryUseCase возвращает историю показаний датчика со сводками и кешированием
type GetReadingHistoryUseCase struct {
	repository repository.ReadingRepository
	aggregator *service.ReadingAggregator
	cache      port.Cache
	cacheTTL   time.Duration
	logger     *logger.Logger
}

// NewGetReadingHistoryUseCase создает новый use case; cache может быть nil
func NewGetReadingHistoryUseCase(
	repository repository.ReadingRepository,
	aggregator *service.ReadingAggregator,
	cache port.Cache,
	cacheTTL time.Duration,
	logger *logger.Logger,
) *GetReadingHistoryUseCase {
	return &GetReadingHistoryUseCase{
		repository: repository,
		aggregator: aggregator,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Execute возвращает показания за последние duration
func (uc *GetReadingHistoryUseCase) Execute(
	ctx context.Context,
	rawSensorID string,
	duration time.Duration,
) (*dto.ReadingHistoryDTO, error) {
	sensorID, err := valueobject.NewSensorID(rawSensorID)
	if err != nil {
		return nil, err
	}

	if duration > maxHistoryWindow {
		return nil, valueobject.NewValidationError(valueobject.CodeTooBig, "duration",
			fmt.Sprintf("Duration must be at most %s", maxHistoryWindow))
	}

	timeRange, err := valueobject.NewTimeRangeFromDuration(duration)
	if err != nil {
		return nil, err
	}

	// Если кеш не настроен, используем стандартный путь
	if uc.cache == nil {
		return uc.load(ctx, sensorID, timeRange)
	}

	cacheKey := historyCacheKey(sensorID.String(), duration)

	var cached dto.ReadingHistoryDTO
	err = uc.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		uc.logger.Debug("Cache hit for reading history", "sensor_id", sensorID.String(), "count", len(cached.Readings))
		return &cached, nil
	}
	if !errors.Is(err, port.ErrCacheMiss) {
		uc.logger.Warn("History cache is unavailable", "error", err.Error())
	}

	history, err := uc.load(ctx, sensorID, timeRange)
	if err != nil {
		return nil, err
	}

	// Сохраняем в кеш (асинхронно, не блокируем ответ)
	go func() {
		if err := uc.cache.Set(context.Background(), cacheKey, history, uc.cacheTTL); err != nil {
			uc.logger.Warn("Failed to cache reading history", "error", err.Error())
		}
	}()

	return history, nil
}

// ExecuteRange возвращает показания за явный интервал, без кеширования
func (uc *GetReadingHistoryUseCase) ExecuteRange(
	ctx context.Context,
	rawSensorID string,
	from, to time.Time,
) (*dto.ReadingHistoryDTO, error) {
	sensorID, err := valueobject.NewSensorID(rawSensorID)
	if err != nil {
		return nil, err
	}

	timeRange, err := valueobject.NewTimeRange(from, to)
	if err != nil {
		return nil, err
	}
	if err := timeRange.Within(maxHistoryWindow, "Range"); err != nil {
		return nil, err
	}

	return uc.load(ctx, sensorID, timeRange)
}

func (uc *GetReadingHistoryUseCase) load(
	ctx context.Context,
	sensorID valueobject.SensorID,
	timeRange valueobject.TimeRange,
) (*dto.ReadingHistoryDTO, error) {
	readings, err := uc.repository.FindByTimeRange(ctx, sensorID, timeRange)
	if err != nil {
		uc.logger.Error("Failed to fetch reading history", err, "sensor_id", sensorID.String())
		return nil, fmt.Errorf("failed to fetch reading history: %w", err)
	}

	// Сортируем по времени (по возрастанию для графиков)
	sorted := uc.aggregator.SortByTime(readings, false)

	summaries := make(map[string]service.Summary, 3)
	for field, summary := range uc.aggregator.SummarizeAll(sorted) {
		summaries[field.String()] = summary
	}

	return &dto.ReadingHistoryDTO{
		SensorID:  sensorID.String(),
		From:      timeRange.Start().UTC(),
		To:        timeRange.End().UTC(),
		Readings:  dto.ToReadingDTOs(sorted),
		Summaries: summaries,
	}, nil
}
