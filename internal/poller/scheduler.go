package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultErrorPause is how long the loop waits after a task panic
	// before running the task again.
	DefaultErrorPause = 5 * time.Second

	// DefaultStopTimeout bounds how long [Scheduler.Stop] waits for the
	// loop goroutine to exit.
	DefaultStopTimeout = 10 * time.Second
)

var (
	// ErrAlreadyRunning is returned by [Scheduler.Start] when the loop is running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning is returned by [Scheduler.Stop] when the loop is stopped.
	ErrNotRunning = errors.New("not running")
)

// Task is one iteration of scheduled work.
//
// The context passed to a Task is the one given to [Scheduler.Start]; it is
// not cancelled by [Scheduler.Stop], so an in-flight task always completes.
type Task func(ctx context.Context)

// Scheduler runs a [Task] repeatedly on a fixed interval.
//
// Scheduler has two states, Stopped (initial) and Running. [Scheduler.Start]
// moves Stopped to Running and spawns exactly one loop goroutine;
// [Scheduler.Stop] moves Running to Stopped. Both reject the call, without
// changing state, when already in the target state.
//
// The wait between iterations selects on a timer and the stop channel, so a
// stop request is observed immediately rather than after the full interval.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	task        Task
	logger      *slog.Logger
	errorPause  time.Duration
	stopTimeout time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// lastDone is closed when the most recently started loop exits. It
	// outlives Stop because Stop may return before the loop does.
	lastDone chan struct{}
}

// SchedulerOption configures a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithErrorPause overrides [DefaultErrorPause].
func WithErrorPause(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.errorPause = d
		}
	}
}

// WithStopTimeout overrides [DefaultStopTimeout].
func WithStopTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// NewScheduler creates a stopped [Scheduler] for task.
//
// If logger is nil, [slog.Default] is used.
func NewScheduler(task Task, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		task:        task,
		logger:      logger,
		errorPause:  DefaultErrorPause,
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the loop in a background goroutine and returns immediately.
//
// The loop runs the task right away, then waits interval between the end of
// one run and the start of the next. If a previous loop is still finishing a
// task after a timed-out Stop, the new loop waits for it first, so at most one
// task runs at a time. It ends on [Scheduler.Stop] or when ctx
// is cancelled; in the latter case the scheduler returns to Stopped on its own.
//
// Returns [ErrAlreadyRunning] if the loop is already running.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	prevDone := s.lastDone
	s.running = true
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.lastDone = doneCh

	go s.run(ctx, interval, stopCh, doneCh, prevDone)
	return nil
}

// Stop requests the loop to exit and waits for it.
//
// The wait is bounded by the stop timeout (10 seconds by default). If the
// loop has not exited by then, typically because a task is still in flight,
// Stop logs a warning and returns anyway; the loop exits on its own once
// the task finishes.
//
// Returns [ErrNotRunning] if the loop is not running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.stopCh = nil
	s.doneCh = nil
	close(stopCh)
	s.mu.Unlock()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-doneCh:
	case <-timer.C:
		s.logger.Warn("scheduler loop still busy after stop timeout",
			"timeout", s.stopTimeout.String(),
		)
	}
	return nil
}

// Running reports whether the scheduler is in the Running state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, stopCh, doneCh, prevDone chan struct{}) {
	defer close(doneCh)
	defer s.finish(stopCh)

	// a loop whose Stop timed out may still be finishing its task
	if prevDone != nil {
		select {
		case <-prevDone:
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		wait := interval
		if !s.runTask(ctx) {
			wait = s.errorPause
		}

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// finish moves the scheduler to Stopped when the loop exits on its own
// (context cancellation). A later Start owns a different stopCh and is left
// untouched.
func (s *Scheduler) finish(stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh == stopCh {
		s.running = false
		s.stopCh = nil
		s.doneCh = nil
	}
}

// runTask calls the task with panic recovery. It reports false if the task
// panicked; the panic is logged with a correlation ID and stack trace.
func (s *Scheduler) runTask(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("unexpected error in scheduler loop",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
				"retry_in", s.errorPause.String(),
			)
			ok = false
		}
	}()
	s.task(ctx)
	return true
}
