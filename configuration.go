package keepwarm

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// MinInterval is the floor applied to every configured ping interval.
	MinInterval = 60 * time.Second

	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 3 * time.Minute

	// DefaultMaxHistory is used when no history size is configured.
	DefaultMaxHistory = 100

	// DefaultMethod is used when no HTTP method is configured.
	DefaultMethod = http.MethodPost
)

// ErrInvalidConfig is wrapped by every configuration validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
}

// Configuration describes the target being kept warm.
//
// A Configuration is a plain value. [Controller] stores its own copy and
// hands out copies, so callers may freely modify the values they hold.
type Configuration struct {
	// URL is the absolute http or https URL to ping.
	URL string

	// Method is the HTTP method. Empty defaults to POST.
	Method string

	// Headers are sent with every ping. Names are case-insensitive.
	Headers map[string]string

	// Body is the request payload. See [Body] for encoding rules.
	Body Body

	// Interval is the time between pings. Zero selects [DefaultInterval];
	// anything below [MinInterval] is raised to it.
	Interval time.Duration

	// MaxHistory bounds the number of retained results. Zero selects
	// [DefaultMaxHistory].
	MaxHistory int
}

// ClampInterval applies the interval rules: zero selects [DefaultInterval]
// and any value below [MinInterval] becomes MinInterval. There is no upper
// bound.
func ClampInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Normalize returns a validated copy of c with defaults applied and the
// interval clamped.
//
// Returns an error wrapping [ErrInvalidConfig] if the URL is missing or not
// http(s), the method is unsupported, a header name is empty, or MaxHistory
// is negative.
func (c Configuration) Normalize() (Configuration, error) {
	out := c.Clone()

	out.URL = strings.TrimSpace(out.URL)
	if out.URL == "" {
		return Configuration{}, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	parsed, err := url.Parse(out.URL)
	if err != nil {
		return Configuration{}, fmt.Errorf("%w: invalid url: %v", ErrInvalidConfig, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Configuration{}, fmt.Errorf("%w: url scheme must be http or https, got %q", ErrInvalidConfig, parsed.Scheme)
	}
	if parsed.Host == "" {
		return Configuration{}, fmt.Errorf("%w: url must include a host", ErrInvalidConfig)
	}

	out.Method = strings.ToUpper(strings.TrimSpace(out.Method))
	if out.Method == "" {
		out.Method = DefaultMethod
	}
	if _, ok := allowedMethods[out.Method]; !ok {
		return Configuration{}, fmt.Errorf("%w: unsupported method %q", ErrInvalidConfig, out.Method)
	}

	for name := range out.Headers {
		if strings.TrimSpace(name) == "" {
			return Configuration{}, fmt.Errorf("%w: header name cannot be empty", ErrInvalidConfig)
		}
	}

	out.Interval = ClampInterval(out.Interval)

	if out.MaxHistory < 0 {
		return Configuration{}, fmt.Errorf("%w: max_history must be at least 1, got %d", ErrInvalidConfig, out.MaxHistory)
	}
	if out.MaxHistory == 0 {
		out.MaxHistory = DefaultMaxHistory
	}

	return out, nil
}

// Clone returns a copy of c that shares no mutable state with it.
// The structured body is immutable and therefore shared.
func (c Configuration) Clone() Configuration {
	out := c
	out.Headers = maps.Clone(c.Headers)
	return out
}

// Header returns the value of the named header using a case-insensitive
// match, and whether it was present.
func (c Configuration) Header(name string) (string, bool) {
	for k, v := range c.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// MergeHeaders returns base overlaid with override. Names match
// case-insensitively and the override's spelling wins.
func MergeHeaders(base, override map[string]string) map[string]string {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string, len(override))
	}
	for name, value := range override {
		for existing := range out {
			if strings.EqualFold(existing, name) {
				delete(out, existing)
			}
		}
		out[name] = value
	}
	return out
}
