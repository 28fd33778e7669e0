package keepwarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpalmerr/keepwarm/internal/poller"
	"github.com/jpalmerr/keepwarm/internal/store"
)

var (
	// ErrAlreadyRunning is returned by [Controller.Start] when the ping loop
	// is already running.
	ErrAlreadyRunning = errors.New("service is already running")

	// ErrNotRunning is returned by [Controller.Stop] when the ping loop is
	// not running.
	ErrNotRunning = errors.New("service is not running")

	// ErrConfigLocked is returned by [Controller.UpdateConfiguration] while
	// the ping loop is running.
	ErrConfigLocked = errors.New("cannot update configuration while service is running")
)

// Controller keeps one target warm.
//
// Controller owns the configuration, the bounded result history and the
// background ping loop, and is the only thing that mutates them. Every
// method is safe for concurrent use, including while a ping is in flight:
// no lock is held during network I/O, so [Controller.Status] stays
// responsive.
//
// The typical lifecycle is:
//
//	c, err := keepwarm.New(keepwarm.Configuration{URL: "https://example.com/api"})
//	if err != nil {
//	    slog.Error("invalid configuration", "error", err)
//	    os.Exit(1)
//	}
//	defer c.Close()
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	if err := c.Start(ctx); err != nil {
//	    slog.Error("failed to start", "error", err)
//	}
//	<-ctx.Done()
type Controller struct {
	logger    *slog.Logger
	executor  *Executor
	history   *store.History[PingResult]
	scheduler *poller.Scheduler
	callbacks []func(PingResult)

	// mu guards cfg and serialises Start with UpdateConfiguration so a start
	// never observes a half-applied update.
	mu  sync.RWMutex
	cfg Configuration
}

// New creates a stopped [Controller] for cfg.
//
// The configuration is validated and normalised; see
// [Configuration.Normalize]. The history starts empty.
//
// Returns an error if cfg is invalid or if any option is invalid.
func New(cfg Configuration, opts ...Option) (*Controller, error) {
	cc := &controllerConfig{}
	for _, opt := range opts {
		if err := opt(cc); err != nil {
			return nil, err
		}
	}

	normalized, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	logger := cc.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		logger:    logger,
		executor:  NewExecutor(cc.httpClient, logger, cc.excerptLimit),
		history:   store.NewHistory[PingResult](normalized.MaxHistory),
		callbacks: cc.resultCallbacks,
		cfg:       normalized,
	}
	c.scheduler = poller.NewScheduler(func(ctx context.Context) {
		c.ping(ctx, TriggerScheduled)
	}, logger, cc.schedulerOpts...)

	return c, nil
}

// Start begins pinging in the background and returns immediately.
//
// The first ping is sent right away, then one every configured interval.
// ctx bounds the lifetime of the loop: cancelling it ends the loop as if
// [Controller.Stop] had been called. Do not pass a request-scoped context.
//
// Returns [ErrAlreadyRunning] if the loop is already running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.scheduler.Start(ctx, c.cfg.Interval); err != nil {
		if errors.Is(err, poller.ErrAlreadyRunning) {
			c.logger.Warn("start rejected", "reason", ErrAlreadyRunning.Error())
			return ErrAlreadyRunning
		}
		c.logger.Error("start failed", "error", err.Error())
		return fmt.Errorf("failed to start service: %w", err)
	}

	c.logger.Info("service started",
		"url", c.cfg.URL,
		"method", c.cfg.Method,
		"interval", c.cfg.Interval.String(),
	)
	return nil
}

// Stop ends the background loop.
//
// A ping already in flight is allowed to complete. Stop waits for the loop
// to exit for a bounded time and then returns regardless.
//
// Returns [ErrNotRunning] if the loop is not running.
func (c *Controller) Stop() error {
	if err := c.scheduler.Stop(); err != nil {
		if errors.Is(err, poller.ErrNotRunning) {
			c.logger.Warn("stop rejected", "reason", ErrNotRunning.Error())
			return ErrNotRunning
		}
		return fmt.Errorf("failed to stop service: %w", err)
	}
	c.logger.Info("service stopped")
	return nil
}

// Running reports whether the background loop is running.
func (c *Controller) Running() bool {
	return c.scheduler.Running()
}

// UpdateConfiguration replaces the configuration wholesale.
//
// The new configuration is validated and normalised first. If MaxHistory
// shrinks, the oldest history entries are evicted immediately.
//
// Returns [ErrConfigLocked] while the loop is running, or an error wrapping
// [ErrInvalidConfig] if cfg is invalid. In both cases the current
// configuration is left unchanged.
func (c *Controller) UpdateConfiguration(cfg Configuration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduler.Running() {
		c.logger.Warn("configuration update rejected", "reason", ErrConfigLocked.Error())
		return ErrConfigLocked
	}

	normalized, err := cfg.Normalize()
	if err != nil {
		c.logger.Warn("configuration update rejected", "reason", err.Error())
		return err
	}

	c.cfg = normalized
	c.history.Resize(normalized.MaxHistory)

	c.logger.Info("configuration updated",
		"url", normalized.URL,
		"method", normalized.Method,
		"interval", normalized.Interval.String(),
		"max_history", normalized.MaxHistory,
	)
	return nil
}

// Configuration returns a copy of the current configuration.
func (c *Controller) Configuration() Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Clone()
}

// Status returns a snapshot of the service state.
func (c *Controller) Status() ServiceStatus {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	status := ServiceStatus{
		Running:         c.scheduler.Running(),
		URL:             cfg.URL,
		Method:          cfg.Method,
		IntervalSeconds: int(cfg.Interval.Seconds()),
		MaxHistory:      cfg.MaxHistory,
	}
	n, last, ok := c.history.Summary()
	status.HistoryCount = n
	if ok {
		status.LastPing = &last
	}
	return status
}

// PingNow sends one ping immediately, outside the scheduled cadence, and
// records it in the history. It works whether or not the loop is running.
func (c *Controller) PingNow(ctx context.Context) PingResult {
	return c.ping(ctx, TriggerManual)
}

// History returns a copy of the retained results, oldest first.
func (c *Controller) History() []PingResult {
	return c.history.Snapshot()
}

// Stats summarises the retained results.
func (c *Controller) Stats() HistoryStats {
	return ComputeStats(c.history.Snapshot())
}

// ClearHistory removes every retained result.
func (c *Controller) ClearHistory() {
	c.history.Clear()
	c.logger.Info("history cleared")
}

// Subscribe returns a channel that receives every new result.
//
// Sends are non-blocking: a subscriber that falls behind misses results
// rather than stalling the loop. Call [Controller.Unsubscribe] when done.
func (c *Controller) Subscribe() <-chan PingResult {
	return c.history.Subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Controller) Unsubscribe(ch <-chan PingResult) {
	c.history.Unsubscribe(ch)
}

// Close stops the loop if it is running and releases idle connections.
func (c *Controller) Close() {
	if c.scheduler.Running() {
		_ = c.Stop()
	}
	c.executor.Close()
}

// ping performs one attempt with the current configuration and records it.
func (c *Controller) ping(ctx context.Context, trigger Trigger) PingResult {
	c.mu.RLock()
	req := BuildRequest(c.cfg)
	c.mu.RUnlock()

	result := c.executor.Ping(ctx, req, trigger)
	c.history.Append(result)

	for _, cb := range c.callbacks {
		invokeCallbackSafe(cb, result, c.logger)
	}
	return result
}

// invokeCallbackSafe calls a result callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(PingResult), result PingResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("result callback panicked",
				"panic", r,
				"ping_id", result.ID,
			)
		}
	}()
	cb(result)
}
