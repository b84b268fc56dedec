package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRepo(now time.Time) *memoryRepo {
	return &memoryRepo{readings: []*entity.Reading{
		newReading("pier-1", 20, 2, 7.5, now.Add(-5*time.Minute)),
		newReading("pier-1", 10, 1, 6.5, now.Add(-20*time.Minute)),
		newReading("pier-1", 15, 1, 7, now.Add(-3*time.Hour)),
		newReading("pier-2", 30, 3, 8, now.Add(-10*time.Minute)),
	}}
}

func TestGetReadingHistory_SortsAndSummarizes(t *testing.T) {
	repo := seededRepo(time.Now())
	uc := NewGetReadingHistoryUseCase(repo, service.NewReadingAggregator(), nil, 0, quietLogger())

	history, err := uc.Execute(context.Background(), "Pier 1", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "pier-1", history.SensorID)
	require.Len(t, history.Readings, 2)
	assert.True(t, history.Readings[0].MeasuredAt.Before(history.Readings[1].MeasuredAt))

	temperature := history.Summaries["temperature"]
	assert.Equal(t, 283.15, temperature.Min)
	assert.Equal(t, 293.15, temperature.Max)
	assert.Equal(t, 288.15, temperature.Avg)
	assert.Equal(t, 7.0, history.Summaries["ph"].Avg)
}

func TestGetReadingHistory_UsesCache(t *testing.T) {
	repo := seededRepo(time.Now())
	cache := newMemoryCache()
	uc := NewGetReadingHistoryUseCase(repo, service.NewReadingAggregator(), cache, time.Minute, quietLogger())

	first, err := uc.Execute(context.Background(), "pier-1", time.Hour)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return cache.setCount() == 1 }, time.Second, 5*time.Millisecond)

	repo.findErr = errors.New("database must not be queried")
	second, err := uc.Execute(context.Background(), "pier-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first.SensorID, second.SensorID)
	assert.Len(t, second.Readings, len(first.Readings))
}

func TestGetReadingHistory_CacheErrorFallsBackToRepository(t *testing.T) {
	repo := seededRepo(time.Now())
	cache := newMemoryCache()
	cache.getErr = errors.New("redis: connection refused")
	uc := NewGetReadingHistoryUseCase(repo, service.NewReadingAggregator(), cache, time.Minute, quietLogger())

	history, err := uc.Execute(context.Background(), "pier-2", time.Hour)
	require.NoError(t, err)
	assert.Len(t, history.Readings, 1)
}

func TestGetReadingHistory_Validation(t *testing.T) {
	uc := NewGetReadingHistoryUseCase(&memoryRepo{}, service.NewReadingAggregator(), nil, 0, quietLogger())

	_, err := uc.Execute(context.Background(), "   ", time.Hour)
	assert.ErrorIs(t, err, valueobject.ErrInvalidString)

	_, err = uc.Execute(context.Background(), "pier-1", 40*24*time.Hour)
	assert.ErrorIs(t, err, valueobject.ErrTooBig)

	_, err = uc.Execute(context.Background(), "pier-1", 0)
	assert.ErrorIs(t, err, valueobject.ErrTooSmall)

	now := time.Now()
	_, err = uc.ExecuteRange(context.Background(), "pier-1", now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, valueobject.ErrInvalidDate)
}

func TestGetReadingHistory_ExecuteRange(t *testing.T) {
	now := time.Now()
	uc := NewGetReadingHistoryUseCase(seededRepo(now), service.NewReadingAggregator(), newMemoryCache(), time.Minute, quietLogger())

	history, err := uc.ExecuteRange(context.Background(), "pier-1", now.Add(-4*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, history.Readings, 3)
}

func TestGetReadingHistory_RepositoryError(t *testing.T) {
	repo := &memoryRepo{findErr: errors.New("timeout")}
	uc := NewGetReadingHistoryUseCase(repo, service.NewReadingAggregator(), nil, 0, quietLogger())

	_, err := uc.Execute(context.Background(), "pier-1", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch reading history")
}
