package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListReadings_FiltersAndPaginates(t *testing.T) {
	now := time.Now()
	uc := NewListReadingsUseCase(seededRepo(now), quietLogger())

	page, err := uc.Execute(context.Background(), ListReadingsQuery{SensorID: "PIER 1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "pier-1", page.Items[0].SensorID)
	assert.True(t, page.Items[0].MeasuredAt.After(page.Items[1].MeasuredAt))

	page, err = uc.Execute(context.Background(), ListReadingsQuery{SensorID: "pier-1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = uc.Execute(context.Background(), ListReadingsQuery{From: now.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}

func TestListReadings_ClampsLimit(t *testing.T) {
	uc := NewListReadingsUseCase(&memoryRepo{}, quietLogger())

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantLimit int
	}{
		{name: "default", limit: 0, wantLimit: 50},
		{name: "negative", limit: -3, wantLimit: 50},
		{name: "max", limit: 10000, wantLimit: 500},
		{name: "as is", limit: 7, offset: -1, wantLimit: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := uc.Execute(context.Background(), ListReadingsQuery{Limit: tt.limit, Offset: tt.offset})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, 0, page.Offset)
			assert.Empty(t, page.Items)
		})
	}
}

func TestListReadings_RejectsInvertedRange(t *testing.T) {
	now := time.Now()
	uc := NewListReadingsUseCase(&memoryRepo{}, quietLogger())

	_, err := uc.Execute(context.Background(), ListReadingsQuery{From: now, To: now.Add(-time.Minute)})
	assert.ErrorIs(t, err, valueobject.ErrInvalidDate)
}
