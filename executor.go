package keepwarm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/keepwarm/internal/poller"
)

const (
	// PingTimeout is the fixed timeout for a single ping.
	PingTimeout = 30 * time.Second

	// DefaultExcerptLimit is the response excerpt budget, in bytes, used by
	// the service.
	DefaultExcerptLimit = 1000

	// LightweightExcerptLimit is the excerpt budget of the standalone pinger.
	LightweightExcerptLimit = 200

	// TruncationMarker is appended to excerpts of longer bodies.
	TruncationMarker = "... (truncated)"
)

// Executor performs ping attempts.
//
// Executor always returns a [PingResult]; transport failures, unexpected
// status codes and even panics inside the HTTP stack are reported in the
// result rather than returned or propagated. Each attempt is logged as one
// structured line.
//
// Executor is safe for concurrent use.
type Executor struct {
	client       *poller.Client
	logger       *slog.Logger
	excerptLimit int
	timeout      time.Duration
}

// NewExecutor creates an [Executor].
//
// If hc is nil, a dedicated pooled client is used. If logger is nil,
// [slog.Default] is used. An excerptLimit below 1 selects
// [DefaultExcerptLimit].
func NewExecutor(hc *http.Client, logger *slog.Logger, excerptLimit int) *Executor {
	client := poller.NewClient()
	if hc != nil {
		client = poller.NewClientWith(hc)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if excerptLimit < 1 {
		excerptLimit = DefaultExcerptLimit
	}
	return &Executor{
		client:       client,
		logger:       logger,
		excerptLimit: excerptLimit,
		timeout:      PingTimeout,
	}
}

// Ping sends req once and reports the outcome.
func (e *Executor) Ping(ctx context.Context, req Request, trigger Trigger) (result PingResult) {
	result = PingResult{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Trigger:   trigger,
	}

	logger := e.logger.With(
		"url", req.URL,
		"method", req.Method,
		"trigger", trigger.String(),
	)

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			logger.Error("ping panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
			)
			result.Success = false
			result.Error = stringPtr(fmt.Sprintf("internal error (correlation_id: %s)", correlationID))
		}
	}()

	if req.EncodingErr != nil {
		logger.Warn("sending body as plain text", "error", req.EncodingErr.Error())
	}

	logger.Info("pinging server")
	resp := e.client.Fetch(ctx, req.Method, req.URL, req.Header, req.Body, e.timeout)
	result.LatencyMs = resp.Latency.Milliseconds()

	if resp.StatusCode == 0 {
		cause := "no response received"
		if resp.Error != nil {
			cause = resp.Error.Error()
		}
		result.Error = stringPtr(cause)
		logger.Error("error pinging server",
			"error", cause,
			"latency_ms", result.LatencyMs,
		)
		return result
	}

	code := resp.StatusCode
	result.StatusCode = &code
	result.Success = code >= 200 && code < 300
	result.Response = Excerpt(resp.Body, e.excerptLimit)
	if resp.Error != nil {
		result.Error = stringPtr(resp.Error.Error())
	}

	if result.Success {
		logger.Info("ping successful",
			"status_code", code,
			"latency_ms", result.LatencyMs,
		)
	} else {
		logger.Warn("ping unsuccessful",
			"status_code", code,
			"latency_ms", result.LatencyMs,
			"response", result.Response,
		)
	}
	return result
}

// Close releases idle connections held by the executor.
func (e *Executor) Close() {
	e.client.Close()
}

// Excerpt returns the first limit bytes of body, followed by
// [TruncationMarker] when body is longer.
func Excerpt(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + TruncationMarker
}

func stringPtr(s string) *string {
	return &s
}
