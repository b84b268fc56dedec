package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// ReadingRepository хранит показания в памяти процесса.
// Используется в тестах и при запуске без PostgreSQL.
type ReadingRepository struct {
	mu       sync.RWMutex
	readings map[string]*entity.Reading
}

// NewReadingRepository создает пустой репозиторий
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{
		readings: make(map[string]*entity.Reading),
	}
}

func (r *ReadingRepository) Save(_ context.Context, reading *entity.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readings[reading.ID()] = reading
	return nil
}

func (r *ReadingRepository) SaveBatch(_ context.Context, readings []*entity.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reading := range readings {
		r.readings[reading.ID()] = reading
	}
	return nil
}

func (r *ReadingRepository) FindByID(_ context.Context, id string) (*entity.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reading, ok := r.readings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrReadingNotFound, id)
	}
	return reading, nil
}

func (r *ReadingRepository) List(_ context.Context, filter repository.ReadingFilter) ([]*entity.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.match(filter)
	if filter.Offset >= len(matched) {
		return []*entity.Reading{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *ReadingRepository) Count(_ context.Context, filter repository.ReadingFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.match(filter))), nil
}

func (r *ReadingRepository) FindByTimeRange(
	_ context.Context,
	sensorID valueobject.SensorID,
	timeRange valueobject.TimeRange,
) ([]*entity.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.match(repository.ReadingFilter{
		SensorID: sensorID.String(),
		From:     timeRange.Start(),
		To:       timeRange.End(),
	}), nil
}

func (r *ReadingRepository) FindLatest(_ context.Context, limit int) ([]*entity.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*entity.Reading)
	for _, reading := range r.readings {
		key := reading.SensorID().String()
		if current, ok := latest[key]; !ok || reading.MeasuredAt().After(current.MeasuredAt()) {
			latest[key] = reading
		}
	}

	result := make([]*entity.Reading, 0, len(latest))
	for _, reading := range latest {
		result = append(result, reading)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SensorID().String() < result[j].SensorID().String()
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *ReadingRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, reading := range r.readings {
		if reading.MeasuredAt().Before(cutoff) {
			delete(r.readings, id)
			deleted++
		}
	}
	return deleted, nil
}

// match возвращает показания по фильтру, новые первыми; вызывается под блокировкой
func (r *ReadingRepository) match(filter repository.ReadingFilter) []*entity.Reading {
	result := make([]*entity.Reading, 0)
	for _, reading := range r.readings {
		if filter.SensorID != "" && reading.SensorID().String() != filter.SensorID {
			continue
		}
		if !filter.From.IsZero() && reading.MeasuredAt().Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && reading.MeasuredAt().After(filter.To) {
			continue
		}
		result = append(result, reading)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].MeasuredAt().Equal(result[j].MeasuredAt()) {
			return result[i].ID() < result[j].ID()
		}
		return result[i].MeasuredAt().After(result[j].MeasuredAt())
	})
	return result
}
