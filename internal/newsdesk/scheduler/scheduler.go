// Package scheduler runs recurring research jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
)

// ErrLocked is returned when another process holds the job lock.
var ErrLocked = errors.New("job lock held by another process")

// Job represents a scheduled task.
type Job struct {
	Name     string
	Schedule string // standard five-field cron expression, e.g. "0 9 * * *"
	Fn       func(ctx context.Context) error
}

// Scheduler runs jobs on their cron schedules. When a lock path is set,
// each run holds a file lock so two processes never run jobs at once.
type Scheduler struct {
	cron     *cron.Cron
	jobs     []Job
	lockPath string
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a scheduler. lockPath may be empty to disable file locking.
func New(lockPath string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		lockPath: lockPath,
		logger:   slog.Default().With("component", "scheduler"),
	}
}

// Add registers a job. The schedule is validated immediately.
func (s *Scheduler) Add(job Job) error {
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// RunOnce executes all registered jobs sequentially, stopping at the first
// failure.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	for _, job := range s.jobs {
		if err := s.run(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.lockPath != "" {
		lock := flock.New(s.lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", s.lockPath, err)
		}
		if !ok {
			s.logger.Warn("skipping job, lock held", "name", job.Name, "lock", s.lockPath)
			return ErrLocked
		}
		defer lock.Unlock()
	}

	s.logger.Info("running job", "name", job.Name)
	start := time.Now()
	if err := job.Fn(ctx); err != nil {
		s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
	return nil
}

// Start schedules every job and returns. Jobs run until Stop is called or
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() {
			_ = s.run(runCtx, job)
		}); err != nil {
			cancel()
			s.cancel = nil
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Next returns when each job runs next. It is empty before Start.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	cancel()
	s.logger.Info("scheduler stopped")
}
