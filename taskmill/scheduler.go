package taskmill

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
	"github.com/robfig/cron/v3"

	"github.com/rise-and-shine/filesmanager/observability/logger"
)

// Schedule defines a cron-based schedule.
type Schedule struct {
	// CronPattern is a standard 5-field cron expression (e.g. "*/5 * * * *").
	CronPattern string

	// OperationID is the operation enqueued on each tick.
	// Should match the OperationID of the registered handler.
	OperationID string

	// EnqueueOptions are applied to every enqueued task.
	EnqueueOptions []EnqueueOption
}

// Scheduler enqueues tasks on cron schedules.
type Scheduler interface {
	// RegisterSchedules validates and adds schedules. It must be called before Start.
	RegisterSchedules(schedules ...Schedule) error

	// Start begins the scheduler loop.
	// Blocks until Stop is called or ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*scheduler)

// WithCheckInterval sets the interval between schedule checks.
// Default: 5s.
func WithCheckInterval(interval time.Duration) SchedulerOption {
	return func(s *scheduler) {
		s.checkInterval = interval
	}
}

// withClock replaces time.Now. Used by tests.
func withClock(now func() time.Time) SchedulerOption {
	return func(s *scheduler) {
		s.now = now
	}
}

// NewScheduler creates a Scheduler that enqueues through enq.
func NewScheduler(enq Enqueuer, opts ...SchedulerOption) Scheduler {
	s := &scheduler{
		enqueuer:      enq,
		checkInterval: 5 * time.Second,
		cronParser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:           time.Now,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
		logger:        logger.Named("taskmill.scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scheduler struct {
	enqueuer      Enqueuer
	checkInterval time.Duration
	cronParser    cron.Parser
	now           func() time.Time

	entries []*scheduleEntry
	mu      sync.Mutex

	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}

	logger logger.Logger
}

type scheduleEntry struct {
	schedule Schedule
	cron     cron.Schedule
	nextRun  time.Time
}

func (s *scheduler) RegisterSchedules(schedules ...Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, schedule := range schedules {
		if schedule.OperationID == "" {
			return errx.New("[scheduler]: operation id is required")
		}

		cronSchedule, err := s.cronParser.Parse(schedule.CronPattern)
		if err != nil {
			return errx.Wrap(err, errx.WithDetails(errx.D{"cron_pattern": schedule.CronPattern}))
		}

		nextRun := cronSchedule.Next(s.now())
		s.entries = append(s.entries, &scheduleEntry{
			schedule: schedule,
			cron:     cronSchedule,
			nextRun:  nextRun,
		})

		s.logger.With(
			"operation_id", schedule.OperationID,
			"cron_pattern", schedule.CronPattern,
			"next_run", nextRun.Format(time.RFC3339),
		).Info("[scheduler]: schedule registered")
	}

	return nil
}

func (s *scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errx.New("[scheduler]: already started")
	}
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkSchedules(ctx)
		}
	}
}

func (s *scheduler) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.started.Load() {
		return nil
	}

	select {
	case <-s.stoppedCh:
		return nil
	case <-time.After(shutdownTimeout):
		return errx.New("[scheduler]: shutdown timeout exceeded")
	}
}

// checkSchedules enqueues every due schedule once. Missed slots are not backfilled.
func (s *scheduler) checkSchedules(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, e := range s.entries {
		if now.Before(e.nextRun) {
			continue
		}

		slot := e.nextRun
		e.nextRun = e.cron.Next(now)

		err := s.enqueueSlot(ctx, e.schedule, slot)
		switch {
		case errx.IsCodeIn(err, CodeDuplicateTask):
			s.logger.With("operation_id", e.schedule.OperationID).
				Debug("[scheduler]: slot already enqueued by another instance")
		case err != nil:
			s.logger.With("operation_id", e.schedule.OperationID, "error", err).
				Error("[scheduler]: task scheduling failed")
		default:
			s.logger.With(
				"operation_id", e.schedule.OperationID,
				"next_run", e.nextRun.Format(time.RFC3339),
			).Info("[scheduler]: task scheduled successfully")
		}
	}
}

func (s *scheduler) enqueueSlot(ctx context.Context, schedule Schedule, slot time.Time) error {
	opts := make([]EnqueueOption, 0, len(schedule.EnqueueOptions)+1)
	opts = append(opts, schedule.EnqueueOptions...)
	opts = append(opts, WithIdempotencyKey(SlotKey(schedule.OperationID, slot)))

	return s.enqueuer.Enqueue(ctx, schedule.OperationID, struct{}{}, opts...)
}

// SlotKey is the idempotency key of one cron slot.
func SlotKey(operationID string, slot time.Time) string {
	return fmt.Sprintf("%s:%d", operationID, slot.Unix())
}
