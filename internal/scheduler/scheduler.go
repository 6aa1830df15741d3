package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
)

// Defaults applied when a Config leaves a field zero.
const (
	DefaultReminderInterval = time.Hour
	DefaultDrainInterval    = 5 * time.Minute
	DefaultStartupDelay     = 10 * time.Second
)

var (
	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrLocked is returned by Start when another process holds the lock file.
	ErrLocked = errors.New("another scheduler holds the lock")
)

// Job is one periodic unit of work.
type Job struct {
	// Name identifies the job in logs.
	Name string

	// Interval is the time between runs.
	Interval time.Duration

	// Run does the work. Its context is not cancelled by Stop, so a run
	// in flight at shutdown finishes normally.
	Run func(ctx context.Context) error
}

// Config holds scheduler settings.
type Config struct {
	// StartupDelay is how long after Start each job first runs.
	StartupDelay time.Duration

	// LockFile, when set, is locked with flock for the scheduler's
	// lifetime so only one scheduler runs per host.
	LockFile string
}

// Scheduler drives a fixed set of jobs on independent tickers.
type Scheduler struct {
	jobs   []Job
	config Config
	logger *slog.Logger

	lock    *flock.Flock
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Scheduler for jobs.
func New(config Config, logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		jobs:   jobs,
		config: config,
		logger: logger.With("component", "scheduler"),
	}
	if config.LockFile != "" {
		s.lock = flock.New(config.LockFile)
	}
	return s
}

// Start launches one goroutine per job. It returns ErrLocked when the
// lock file is held elsewhere.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			s.running.Store(false)
			return fmt.Errorf("acquire scheduler lock: %w", err)
		}
		if !ok {
			s.running.Store(false)
			return ErrLocked
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.logger.Warn("skipping invalid job", "job", job.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(job)
	}

	s.logger.Info("scheduler started",
		"jobs", len(s.jobs),
		"startup_delay", s.config.StartupDelay)
	return nil
}

// Stop stops issuing new runs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if !s.running.Load() {
		return
	}

	s.cancel()
	s.wg.Wait()

	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release scheduler lock", "error", err)
		}
	}
	s.running.Store(false)
	s.logger.Info("scheduler stopped")
}

// loop runs job after the startup delay and then on every tick. Runs are
// sequential per job; ticks that fire while a run is in flight are dropped.
func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	log := s.logger.With("job", job.Name)

	if s.config.StartupDelay > 0 {
		timer := time.NewTimer(s.config.StartupDelay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	s.run(job, log)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Debug("job loop stopped")
			return
		case <-ticker.C:
			s.run(job, log)
		}
	}
}

func (s *Scheduler) run(job Job, log *slog.Logger) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
		}
	}()

	if err := job.Run(context.WithoutCancel(s.ctx)); err != nil {
		log.Error("job failed", "error", err, "duration", time.Since(start))
		return
	}
	log.Debug("job finished", "duration", time.Since(start))
}
