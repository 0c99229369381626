package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is requested while another is in flight.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Run kinds.
const (
	KindDaily  = "daily"
	KindWeekly = "weekly"
)

// Runner is the part of Orchestrator the scheduler drives.
type Runner interface {
	RunDaily(ctx context.Context) error
	RunWeekly(ctx context.Context) error
}

// SchedulerConfig holds configuration for the ingestion scheduler.
type SchedulerConfig struct {
	// CheckInterval is how often the clock is checked. Default: 1h
	CheckInterval time.Duration

	// RefreshHour is the UTC hour from which the daily run is due.
	RefreshHour int

	// WeeklyDay is the UTC weekday the weekly card refresh runs on, before the daily run.
	WeeklyDay time.Weekday

	// Now supplies the clock. Default: time.Now
	Now func() time.Time

	Logger *zap.Logger

	// OnRunComplete is called after each run attempt (success or failure).
	OnRunComplete func(kind string, err error)
}

// SchedulerStatus is a snapshot of scheduler state.
type SchedulerStatus struct {
	Running      bool
	LastDaily    time.Time
	LastWeekly   time.Time
	RunCount     int
	FailureCount int
	LastError    error
}

// Scheduler runs the daily and weekly ingestion in-process. At most one run is
// in flight at a time; overlapping requests get ErrRunInProgress. Overlap with
// other processes against the same database is not detected.
type Scheduler struct {
	runner Runner
	config SchedulerConfig
	logger *zap.Logger

	runMu sync.Mutex

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	lastDaily    time.Time
	lastWeekly   time.Time
	runCount     int
	failureCount int
	lastError    error
}

// NewScheduler creates a new ingestion scheduler.
func NewScheduler(runner Runner, config SchedulerConfig) *Scheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Scheduler{
		runner: runner,
		config: config,
		logger: config.Logger.With(zap.String("component", "scheduler")),
	}
}

// Start starts the scheduler loop. The first check happens immediately.
// Returns an error if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)

	s.logger.Info("scheduler started",
		zap.Int("refresh_hour", s.config.RefreshHour),
		zap.Stringer("weekly_day", s.config.WeeklyDay),
		zap.Duration("check_interval", s.config.CheckInterval))
	return nil
}

// Stop stops the scheduler and blocks until an in-flight run returns.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// IsRunning returns whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SchedulerStatus{
		Running:      s.running,
		LastDaily:    s.lastDaily,
		LastWeekly:   s.lastWeekly,
		RunCount:     s.runCount,
		FailureCount: s.failureCount,
		LastError:    s.lastError,
	}
}

// RunNow runs one job of the given kind synchronously, independent of the
// schedule. It fails with ErrRunInProgress if another run is in flight.
func (s *Scheduler) RunNow(ctx context.Context, kind string) error {
	var job func(context.Context) error
	switch kind {
	case KindDaily:
		job = s.runner.RunDaily
	case KindWeekly:
		job = s.runner.RunWeekly
	default:
		return fmt.Errorf("unknown run kind %q", kind)
	}

	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	return s.execute(ctx, kind, job)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ticker.C:
			s.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// check starts whichever runs are due. A run still in flight from RunNow
// postpones the check to the next tick.
func (s *Scheduler) check(ctx context.Context) {
	now := s.config.Now().UTC()
	if now.Hour() < s.config.RefreshHour {
		return
	}

	if !s.runMu.TryLock() {
		s.logger.Info("run in progress, skipping scheduled check")
		return
	}
	defer s.runMu.Unlock()

	s.mu.RLock()
	weeklyDue := now.Weekday() == s.config.WeeklyDay && !sameDay(s.lastWeekly, now)
	dailyDue := !sameDay(s.lastDaily, now)
	s.mu.RUnlock()

	if weeklyDue {
		if err := s.execute(ctx, KindWeekly, s.runner.RunWeekly); err != nil {
			return
		}
	}
	if dailyDue {
		_ = s.execute(ctx, KindDaily, s.runner.RunDaily)
	}
}

// execute runs job and records its outcome. runMu must be held.
func (s *Scheduler) execute(ctx context.Context, kind string, job func(context.Context) error) error {
	s.logger.Info("ingestion run starting", zap.String("kind", kind))
	start := time.Now()
	err := job(ctx)

	s.mu.Lock()
	s.runCount++
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		finished := s.config.Now().UTC()
		if kind == KindDaily {
			s.lastDaily = finished
		} else {
			s.lastWeekly = finished
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("ingestion run failed", zap.String("kind", kind), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	} else {
		s.logger.Info("ingestion run finished", zap.String("kind", kind), zap.Duration("elapsed", time.Since(start)))
	}

	if s.config.OnRunComplete != nil {
		s.config.OnRunComplete(kind, err)
	}
	return err
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
