package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// ErrReadingNotFound возвращается, когда показание не найдено
var ErrReadingNotFound = errors.New("reading not found")

// ReadingFilter параметры выборки показаний. Нулевые поля не ограничивают выборку.
type ReadingFilter struct {
	SensorID string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// ReadingRepository определяет интерфейс для работы с хранилищем показаний (Port)
// Реализация будет в Infrastructure слое
type ReadingRepository interface {
	// Save сохраняет одно показание
	Save(ctx context.Context, reading *entity.Reading) error

	// SaveBatch сохраняет несколько показаний одной транзакцией
	SaveBatch(ctx context.Context, readings []*entity.Reading) error

	// FindByID находит показание по идентификатору
	FindByID(ctx context.Context, id string) (*entity.Reading, error)

	// List возвращает показания по фильтру, новые первыми
	List(ctx context.Context, filter ReadingFilter) ([]*entity.Reading, error)

	// Count возвращает количество показаний по фильтру (Limit и Offset игнорируются)
	Count(ctx context.Context, filter ReadingFilter) (int64, error)

	// FindByTimeRange находит показания датчика во временном диапазоне
	FindByTimeRange(
		ctx context.Context,
		sensorID valueobject.SensorID,
		timeRange valueobject.TimeRange,
	) ([]*entity.Reading, error)

	// FindLatest находит последнее показание каждого датчика
	FindLatest(ctx context.Context, limit int) ([]*entity.Reading, error)

	// DeleteOlderThan удаляет показания, измеренные раньше cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
