package keepwarm

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jpalmerr/keepwarm/internal/poller"
)

// controllerConfig holds mutable state during Controller construction.
type controllerConfig struct {
	logger          *slog.Logger
	httpClient      *http.Client
	excerptLimit    int
	resultCallbacks []func(PingResult)
	schedulerOpts   []poller.SchedulerOption
}

// Option is a function that configures a [Controller] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithLogger], [WithHTTPClient], [WithExcerptLimit],
// [WithResultCallback].
type Option func(*controllerConfig) error

// WithLogger sets a custom [slog.Logger] for the Controller.
//
// If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	c, err := keepwarm.New(cfg, keepwarm.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *controllerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithHTTPClient sets the [http.Client] used for pings.
//
// Each ping is bounded by [PingTimeout]; a shorter client Timeout still
// applies and ends the ping first. Useful for custom transports, proxies and
// tests. Returns an error if hc is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *controllerConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithExcerptLimit sets how many bytes of each response body are kept in
// [PingResult.Response]. Defaults to [DefaultExcerptLimit]; the standalone
// pinger uses [LightweightExcerptLimit].
//
// Returns an error if n is zero or negative.
func WithExcerptLimit(n int) Option {
	return func(cfg *controllerConfig) error {
		if n <= 0 {
			return errors.New("excerpt limit must be positive")
		}
		cfg.excerptLimit = n
		return nil
	}
}

// WithResultCallback registers a function to be called with every ping
// result, scheduled or manual, after it has been added to the history.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the goroutine that
// performed the ping, so a slow callback delays the next scheduled ping.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	c, err := keepwarm.New(cfg,
//	    keepwarm.WithResultCallback(func(r keepwarm.PingResult) {
//	        if !r.Success {
//	            log.Printf("ping %s failed", r.ID)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithResultCallback(cb func(PingResult)) Option {
	return func(cfg *controllerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.resultCallbacks = append(cfg.resultCallbacks, cb)
		return nil
	}
}

// withSchedulerOptions tunes the background loop. Used by tests to shorten
// the error pause and stop timeout.
func withSchedulerOptions(opts ...poller.SchedulerOption) Option {
	return func(cfg *controllerConfig) error {
		cfg.schedulerOpts = append(cfg.schedulerOpts, opts...)
		return nil
	}
}
