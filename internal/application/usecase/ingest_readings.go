package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
	"github.com/google/uuid"
)

// IngestReadingsConfig параметры приема пакетов
type IngestReadingsConfig struct {
	MaxBatchSize int
	StaleAfter   time.Duration
}

// IngestReadingsUseCase координирует проверку, сохранение и рассылку показаний.
// Некорректные элементы пакета отклоняются по отдельности и не мешают сохранению остальных.
type IngestReadingsUseCase struct {
	repository repository.ReadingRepository
	validator  *service.ReadingValidator
	config     IngestReadingsConfig
	logger     *logger.Logger

	notifier  port.NotificationService
	events    port.EventPublisher
	recorder  port.IngestionRecorder
	publisher port.IngestionMetricsPublisher
	cache     port.Cache
}

// NewIngestReadingsUseCase создает новый use case
func NewIngestReadingsUseCase(
	repository repository.ReadingRepository,
	validator *service.ReadingValidator,
	config IngestReadingsConfig,
	logger *logger.Logger,
) *IngestReadingsUseCase {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 500
	}
	return &IngestReadingsUseCase{
		repository: repository,
		validator:  validator,
		config:     config,
		logger:     logger,
	}
}

// WithNotifier подключает рассылку через WebSocket
func (uc *IngestReadingsUseCase) WithNotifier(notifier port.NotificationService) *IngestReadingsUseCase {
	uc.notifier = notifier
	return uc
}

// WithEventPublisher подключает публикацию событий (NATS или Kafka)
func (uc *IngestReadingsUseCase) WithEventPublisher(events port.EventPublisher) *IngestReadingsUseCase {
	uc.events = events
	return uc
}

// WithRecorder подключает метрики Prometheus
func (uc *IngestReadingsUseCase) WithRecorder(recorder port.IngestionRecorder) *IngestReadingsUseCase {
	uc.recorder = recorder
	return uc
}

// WithMetricsPublisher подключает отправку статистики в CloudWatch
func (uc *IngestReadingsUseCase) WithMetricsPublisher(publisher port.IngestionMetricsPublisher) *IngestReadingsUseCase {
	uc.publisher = publisher
	return uc
}

// WithCache подключает инвалидацию кеша истории
func (uc *IngestReadingsUseCase) WithCache(cache port.Cache) *IngestReadingsUseCase {
	uc.cache = cache
	return uc
}

// Execute выполняет прием пакета показаний
func (uc *IngestReadingsUseCase) Execute(ctx context.Context, raws []service.RawReading) (*dto.IngestResultDTO, error) {
	if len(raws) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(raws) > uc.config.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d readings, limit is %d", ErrBatchTooLarge, len(raws), uc.config.MaxBatchSize)
	}

	started := valueobject.Now()
	batchID := uuid.New().String()

	// 1. Проверяем каждое показание отдельно
	readings, failures := uc.validator.ParseBatch(raws)

	var rejected valueobject.ValidationErrors
	for _, index := range sortedIndexes(failures) {
		rejected = append(rejected, failures[index]...)
	}

	uc.logger.Debug("Batch validated",
		"batch_id", batchID,
		"accepted", len(readings),
		"rejected", len(failures))

	// 2. Сохраняем корректные показания одной транзакцией
	if len(readings) > 0 {
		if err := uc.repository.SaveBatch(ctx, readings); err != nil {
			uc.logger.Error("Failed to save readings batch", err, "batch_id", batchID, "count", len(readings))
			return nil, fmt.Errorf("failed to save readings: %w", err)
		}
	}

	result := &dto.IngestResultDTO{
		Accepted: len(readings),
		Rejected: len(failures),
		Readings: dto.ToReadingDTOs(readings),
	}
	if len(rejected) > 0 {
		result.Errors = rejected.Flatten()
	}

	// 3. Побочные эффекты не влияют на результат приема
	uc.notify(result, readings)
	uc.publishEvents(ctx, batchID, result, readings)
	uc.invalidateCache(ctx, readings)
	uc.recordStats(ctx, started, readings, rejected, len(failures))

	if len(failures) > 0 {
		uc.logger.Info("Batch ingested with rejections",
			"batch_id", batchID,
			"accepted", result.Accepted,
			"rejected", result.Rejected)
	} else {
		uc.logger.Debug("Batch ingested", "batch_id", batchID, "accepted", result.Accepted)
	}

	return result, nil
}

func (uc *IngestReadingsUseCase) notify(result *dto.IngestResultDTO, readings []*entity.Reading) {
	if uc.notifier == nil {
		return
	}

	if len(readings) > 0 {
		uc.notifier.Broadcast(dto.NewSnapshotDTO(latestPerSensor(readings), uc.config.StaleAfter))
	}

	if result.Rejected > 0 {
		uc.notifier.BroadcastRejection(&dto.RejectionReportDTO{
			Timestamp: valueobject.Now().UTC(),
			Rejected:  result.Rejected,
			Errors:    result.Errors,
		})
	}
}

func (uc *IngestReadingsUseCase) publishEvents(
	ctx context.Context,
	batchID string,
	result *dto.IngestResultDTO,
	readings []*entity.Reading,
) {
	if uc.events == nil {
		return
	}

	now := valueobject.Now().UTC()

	if result.Accepted > 0 {
		event := port.ReadingsIngestedEvent{
			BatchID:    batchID,
			Accepted:   result.Accepted,
			Rejected:   result.Rejected,
			SensorIDs:  sensorIDs(readings),
			ReadingIDs: make([]string, 0, len(readings)),
			OccurredAt: now,
		}
		for _, r := range readings {
			event.ReadingIDs = append(event.ReadingIDs, r.ID())
		}
		if err := uc.events.PublishEvent(ctx, port.SubjectReadingsIngested, event); err != nil {
			uc.logger.Warn("Failed to publish ingestion event", "batch_id", batchID, "error", err.Error())
		}
	}

	if result.Rejected > 0 {
		event := port.ReadingsRejectedEvent{
			BatchID:    batchID,
			Rejected:   result.Rejected,
			Errors:     result.Errors,
			OccurredAt: now,
		}
		if err := uc.events.PublishEvent(ctx, port.SubjectReadingsRejected, event); err != nil {
			uc.logger.Warn("Failed to publish rejection event", "batch_id", batchID, "error", err.Error())
		}
	}
}

func (uc *IngestReadingsUseCase) invalidateCache(ctx context.Context, readings []*entity.Reading) {
	if uc.cache == nil || len(readings) == 0 {
		return
	}

	for _, sensorID := range sensorIDs(readings) {
		if err := uc.cache.DeletePattern(ctx, historyCachePattern(sensorID)); err != nil {
			uc.logger.Warn("Failed to invalidate history cache", "sensor_id", sensorID, "error", err.Error())
		}
	}
	if err := uc.cache.Delete(ctx, latestCacheKey); err != nil {
		uc.logger.Warn("Failed to invalidate latest readings cache", "error", err.Error())
	}
}

func (uc *IngestReadingsUseCase) recordStats(
	ctx context.Context,
	started time.Time,
	readings []*entity.Reading,
	rejected valueobject.ValidationErrors,
	rejectedCount int,
) {
	if uc.recorder == nil && uc.publisher == nil {
		return
	}

	stats := port.IngestionStats{
		Accepted:     len(readings),
		Rejected:     rejectedCount,
		Duration:     valueobject.Now().Sub(started),
		ErrorsByCode: make(map[string]int),
		UnitsUsed:    make(map[string]int),
		Timestamp:    valueobject.Now().UTC(),
	}
	for _, e := range rejected {
		stats.ErrorsByCode[string(e.Code)]++
	}
	for _, r := range readings {
		stats.UnitsUsed[string(valueobject.FieldTemperature)+":"+r.Temperature().Unit().Symbol()]++
		stats.UnitsUsed[string(valueobject.FieldConductivity)+":"+r.Conductivity().Unit().Symbol()]++
	}

	if uc.recorder != nil {
		uc.recorder.RecordIngestion(stats)
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishIngestion(ctx, stats); err != nil {
			uc.logger.Warn("Failed to publish ingestion stats", "error", err.Error())
		}
	}
}

// latestPerSensor оставляет последнее по времени измерения показание каждого датчика
func latestPerSensor(readings []*entity.Reading) []*entity.Reading {
	latest := make(map[string]*entity.Reading)
	for _, r := range readings {
		key := r.SensorID().String()
		if current, ok := latest[key]; !ok || r.MeasuredAt().After(current.MeasuredAt()) {
			latest[key] = r
		}
	}

	result := make([]*entity.Reading, 0, len(latest))
	for _, r := range latest {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SensorID().String() < result[j].SensorID().String()
	})
	return result
}

func sensorIDs(readings []*entity.Reading) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, r := range readings {
		id := r.SensorID().String()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedIndexes(failures map[int]valueobject.ValidationErrors) []int {
	indexes := make([]int, 0, len(failures))
	for index := range failures {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes
}
