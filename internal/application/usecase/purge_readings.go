package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

// PurgeReadingsUseCase удаляет показания старше срока хранения
type PurgeReadingsUseCase struct {
	repository repository.ReadingRepository
	retention  time.Duration
	events     port.EventPublisher
	cache      port.Cache
	logger     *logger.Logger
}

// NewPurgeReadingsUseCase создает новый use case; retention <= 0 отключает очистку
func NewPurgeReadingsUseCase(
	repository repository.ReadingRepository,
	retention time.Duration,
	events port.EventPublisher,
	cache port.Cache,
	logger *logger.Logger,
) *PurgeReadingsUseCase {
	return &PurgeReadingsUseCase{
		repository: repository,
		retention:  retention,
		events:     events,
		cache:      cache,
		logger:     logger,
	}
}

// Execute удаляет устаревшие показания и возвращает их количество
func (uc *PurgeReadingsUseCase) Execute(ctx context.Context) (int64, error) {
	if uc.retention <= 0 {
		return 0, nil
	}

	cutoff := valueobject.Now().Add(-uc.retention).UTC()

	deleted, err := uc.repository.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		uc.logger.Error("Failed to purge readings", err, "cutoff", cutoff.Format(time.RFC3339))
		return 0, fmt.Errorf("failed to purge readings: %w", err)
	}

	if deleted == 0 {
		uc.logger.Debug("No readings to purge", "cutoff", cutoff.Format(time.RFC3339))
		return 0, nil
	}

	uc.logger.Info("Readings purged", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))

	if uc.cache != nil {
		if err := uc.cache.DeletePattern(ctx, historyCachePrefix+":*"); err != nil {
			uc.logger.Warn("Failed to invalidate history cache", "error", err.Error())
		}
	}

	if uc.events != nil {
		event := port.ReadingsPurgedEvent{
			Deleted:    deleted,
			Cutoff:     cutoff,
			OccurredAt: valueobject.Now().UTC(),
		}
		if err := uc.events.PublishEvent(ctx, port.SubjectReadingsPurged, event); err != nil {
			uc.logger.Warn("Failed to publish purge event", "error", err.Error())
		}
	}

	return deleted, nil
}
