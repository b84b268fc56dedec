package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

// Job периодическая фоновая задача
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler запускает фоновые задачи (очистка по сроку хранения, снимки хоста)
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *logger.Logger
	jobs      []Job
}

// New создает планировщик в UTC
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    log,
	}
}

// Add регистрирует задачу; задачи с Interval <= 0 пропускаются
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 || job.Run == nil {
		s.logger.Info("Scheduler job disabled", "job", job.Name)
		return
	}
	if job.Timeout <= 0 {
		job.Timeout = 30 * time.Second
	}
	s.jobs = append(s.jobs, job)
}

// Start schedules every registered job and starts the underlying scheduler.
// Each job also runs once immediately.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		s.logger.Info("Scheduler has no jobs; nothing to schedule")
		return nil
	}

	for _, job := range s.jobs {
		job := job
		_, err := s.scheduler.Every(job.Interval).Name(job.Name).SingletonMode().Do(func() {
			s.run(job)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		s.logger.Info("Scheduler job registered", "job", job.Name, "interval", job.Interval.String())
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
	defer cancel()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Scheduler job failed", err, "job", job.Name)
		return
	}
	s.logger.Debug("Scheduler job completed", "job", job.Name, "duration", time.Since(started).String())
}
