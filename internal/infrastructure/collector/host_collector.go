package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// HostSample снимок загрузки хоста, на котором работает API
type HostSample struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	CollectedAt   time.Time
}

// HostObserver принимает снимки (Prometheus gauges)
type HostObserver interface {
	ObserveHost(cpuPercent, memoryPercent, diskPercent float64)
}

type probe func(ctx context.Context) (float64, error)

// HostCollector собирает CPU, память и диск параллельно
type HostCollector struct {
	cpu    probe
	memory probe
	disk   probe
}

// NewHostCollector создает collector; diskPath обычно "/"
func NewHostCollector(diskPath string) *HostCollector {
	if diskPath == "" {
		diskPath = "/"
	}

	return &HostCollector{
		cpu: func(ctx context.Context) (float64, error) {
			// Процент за 1 секунду по всем ядрам
			percentages, err := cpu.PercentWithContext(ctx, time.Second, false)
			if err != nil {
				return 0, err
			}
			if len(percentages) == 0 {
				return 0, fmt.Errorf("cpu percent is not available")
			}
			return percentages[0], nil
		},
		memory: func(ctx context.Context) (float64, error) {
			stat, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return stat.UsedPercent, nil
		},
		disk: func(ctx context.Context) (float64, error) {
			usage, err := disk.UsageWithContext(ctx, diskPath)
			if err != nil {
				return 0, err
			}
			return usage.UsedPercent, nil
		},
	}
}

// Collect возвращает снимок; недоступные показатели остаются нулевыми,
// их ошибки объединяются в err
func (c *HostCollector) Collect(ctx context.Context) (HostSample, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		sample = HostSample{CollectedAt: valueobject.Now().UTC()}
	)

	run := func(name string, p probe, target *float64) {
		defer wg.Done()
		value, err := p(ctx)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*target = valueobject.Round2(value)
	}

	wg.Add(3)
	go run("cpu", c.cpu, &sample.CPUPercent)
	go run("memory", c.memory, &sample.MemoryPercent)
	go run("disk", c.disk, &sample.DiskPercent)
	wg.Wait()

	return sample, errors.Join(errs...)
}

// Sample собирает снимок и передает его observer
func (c *HostCollector) Sample(ctx context.Context, observer HostObserver) (HostSample, error) {
	sample, err := c.Collect(ctx)
	observer.ObserveHost(sample.CPUPercent, sample.MemoryPercent, sample.DiskPercent)
	return sample, err
}
