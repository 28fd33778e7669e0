// Package keepwarm keeps a remote HTTP endpoint warm by pinging it on a
// fixed interval.
//
// keepwarm is built around a single [Controller]. The controller owns the
// target [Configuration], a bounded in-memory history of [PingResult]
// values, and a background loop that issues one request per interval. It
// exposes start, stop, status, manual ping, configuration update and history
// operations that are safe to call concurrently with the loop.
//
// # Quick Start
//
//	body, _ := keepwarm.ParseJSONBody(`{"warm": true}`)
//	ctrl, err := keepwarm.New(keepwarm.Configuration{
//	    URL:      "https://my-app.onrender.com/health",
//	    Method:   http.MethodPost,
//	    Headers:  map[string]string{"Content-Type": "application/json"},
//	    Body:     body,
//	    Interval: 3 * time.Minute,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	_ = ctrl.Start(ctx)
//	<-ctx.Done()
//	_ = ctrl.Stop()
//
// # Configuration
//
// The interval is clamped to a floor of [MinInterval] (60 seconds) on every
// path that sets it, so a misconfigured service cannot hammer its target.
// All other invalid values (missing URL, unsupported method, negative
// history size) are rejected with an error wrapping [ErrInvalidConfig].
// Configuration cannot be replaced while the loop is running; stop first.
//
// # Request Bodies
//
// A [Body] is either absent, a raw string sent as-is, or a structured value.
// Structured values are encoded according to the Content-Type header: JSON
// by default, form encoding for application/x-www-form-urlencoded. GET and
// HEAD requests never carry a body. See [BuildRequest].
//
// # Failures
//
// Ping failures are data, not errors: a timeout, refused connection or 5xx
// response produces a [PingResult] with Success set to false. Control
// operations report rejections with sentinel errors such as
// [ErrAlreadyRunning], [ErrNotRunning] and [ErrConfigLocked].
//
// # Architecture
//
// keepwarm consists of several internal packages (under internal/):
//
//   - internal/poller: HTTP client and the start/stop scheduling loop
//   - internal/store: Bounded FIFO history with pub/sub for live updates
//   - internal/server: Dashboard and JSON control API
//   - internal/journal: Optional SQLite journal of ping results
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package keepwarm
