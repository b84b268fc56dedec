package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const maxDashboardSensors = 500

// GetLatestReadingsUseCase возвращает последние показания каждого датчика
type GetLatestReadingsUseCase struct {
	repository repository.ReadingRepository
	staleAfter time.Duration
	logger     *logger.Logger
}

// NewGetLatestReadingsUseCase создает новый use case
func NewGetLatestReadingsUseCase(
	repository repository.ReadingRepository,
	staleAfter time.Duration,
	logger *logger.Logger,
) *GetLatestReadingsUseCase {
	return &GetLatestReadingsUseCase{
		repository: repository,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Execute выполняет получение snapshot последних показаний
func (uc *GetLatestReadingsUseCase) Execute(ctx context.Context) (*dto.SnapshotDTO, error) {
	uc.logger.Debug("Fetching latest readings")

	latest, err := uc.repository.FindLatest(ctx, maxDashboardSensors)
	if err != nil {
		uc.logger.Error("Failed to fetch latest readings", err)
		return nil, fmt.Errorf("failed to fetch latest readings: %w", err)
	}

	uc.logger.Debug("Fetched latest readings", "sensors", len(latest))

	return dto.NewSnapshotDTO(latest, uc.staleAfter), nil
}
