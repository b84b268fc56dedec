package usecase

import (
	"context"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

type memoryRepo struct {
	mu       sync.Mutex
	readings []*entity.Reading
	saveErr  error
	findErr  error
	batches  int
	cutoff   time.Time
}

func (r *memoryRepo) Save(_ context.Context, reading *entity.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.readings = append(r.readings, reading)
	return nil
}

func (r *memoryRepo) SaveBatch(_ context.Context, readings []*entity.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.batches++
	r.readings = append(r.readings, readings...)
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*entity.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reading := range r.readings {
		if reading.ID() == id {
			return reading, nil
		}
	}
	return nil, repository.ErrReadingNotFound
}

func (r *memoryRepo) matching(filter repository.ReadingFilter) []*entity.Reading {
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
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].MeasuredAt().After(result[j].MeasuredAt())
	})
	return result
}

func (r *memoryRepo) List(_ context.Context, filter repository.ReadingFilter) ([]*entity.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return []*entity.Reading{}, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (r *memoryRepo) Count(_ context.Context, filter repository.ReadingFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *memoryRepo) FindByTimeRange(_ context.Context, sensorID valueobject.SensorID, tr valueobject.TimeRange) ([]*entity.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.matching(repository.ReadingFilter{
		SensorID: sensorID.String(),
		From:     tr.Start(),
		To:       tr.End(),
	}), nil
}

func (r *memoryRepo) FindLatest(_ context.Context, limit int) ([]*entity.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	seen := make(map[string]bool)
	result := make([]*entity.Reading, 0)
	for _, reading := range r.matching(repository.ReadingFilter{}) {
		if seen[reading.SensorID().String()] {
			continue
		}
		seen[reading.SensorID().String()] = true
		result = append(result, reading)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *memoryRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoff = cutoff
	kept := r.readings[:0]
	var deleted int64
	for _, reading := range r.readings {
		if reading.MeasuredAt().Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, reading)
	}
	r.readings = kept
	return deleted, nil
}

type memoryCache struct {
	mu       sync.Mutex
	values   map[string]interface{}
	getErr   error
	deleted  []string
	patterns []string
	sets     int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]interface{})}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	value, ok := c.values[key]
	if !ok {
		return port.ErrCacheMiss
	}
	if history, ok := value.(*dto.ReadingHistoryDTO); ok {
		if target, ok := dest.(*dto.ReadingHistoryDTO); ok {
			*target = *history
		}
	}
	return nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.values, key)
		}
	}
	c.patterns = append(c.patterns, pattern)
	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type publishedEvent struct {
	subject string
	event   interface{}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (e *recordingEvents) PublishEvent(_ context.Context, subject string, event interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{subject: subject, event: event})
	return e.err
}

func (e *recordingEvents) Close() error { return nil }

func (e *recordingEvents) subjects() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		result = append(result, ev.subject)
	}
	return result
}

type recordingNotifier struct {
	snapshots  []*dto.SnapshotDTO
	rejections []*dto.RejectionReportDTO
}

func (n *recordingNotifier) Broadcast(snapshot *dto.SnapshotDTO) {
	n.snapshots = append(n.snapshots, snapshot)
}

func (n *recordingNotifier) BroadcastRejection(report *dto.RejectionReportDTO) {
	n.rejections = append(n.rejections, report)
}

func (n *recordingNotifier) ClientCount() int { return 0 }

type recordingStats struct {
	stats     []port.IngestionStats
	published []port.IngestionStats
}

func (s *recordingStats) RecordIngestion(stats port.IngestionStats) {
	s.stats = append(s.stats, stats)
}

func (s *recordingStats) PublishIngestion(_ context.Context, stats port.IngestionStats) error {
	s.published = append(s.published, stats)
	return nil
}

func (s *recordingStats) Flush(context.Context) error { return nil }

// newReading собирает корректное показание для заполнения репозитория
func newReading(sensor string, tempC, condSpm, ph float64, measuredAt time.Time) *entity.Reading {
	sensorID, err := valueobject.NewSensorID(sensor)
	if err != nil {
		panic(err)
	}
	temperature, err := valueobject.ParseTemperature(tempC, "c")
	if err != nil {
		panic(err)
	}
	conductivity, err := valueobject.ParseConductivity(condSpm, "spm")
	if err != nil {
		panic(err)
	}
	p, err := valueobject.NewPH(ph)
	if err != nil {
		panic(err)
	}
	return entity.NewReading(sensorID, temperature, conductivity, p, measuredAt)
}
