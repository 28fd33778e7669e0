package keepwarm

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ts, _ := okServer(t)
	c, err := New(Configuration{URL: ts.URL, Method: "GET"}, WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	c.PingNow(context.Background())

	if !strings.Contains(buf.String(), "ping successful") {
		t.Errorf("log output = %q, want it to contain 'ping successful'", buf.String())
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := New(Configuration{URL: "https://example.com"}, WithLogger(nil))
	if err == nil {
		t.Fatal("New() expected error for nil logger, got nil")
	}
	if !strings.Contains(err.Error(), "logger cannot be nil") {
		t.Errorf("New() error = %v, want error containing 'logger cannot be nil'", err)
	}
}

func TestWithLogger_DefaultsToSlogDefault(t *testing.T) {
	// create without explicit logger
	c, err := New(Configuration{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if c.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
}

// countingTransport counts requests before handing them to the default
// transport.
type countingTransport struct {
	n atomic.Int32
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.n.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestWithHTTPClient(t *testing.T) {
	ts, hits := okServer(t)
	transport := &countingTransport{}

	c := newTestController(t, ts.URL, WithHTTPClient(&http.Client{Transport: transport}))
	result := c.PingNow(context.Background())

	if !result.Success {
		t.Fatalf("Success = false, error = %v", result.Error)
	}
	if transport.n.Load() != 1 {
		t.Errorf("transport saw %d requests, want 1", transport.n.Load())
	}
	if hits.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", hits.Load())
	}
}

func TestWithHTTPClient_ShorterClientTimeoutApplies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := newTestController(t, ts.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	start := time.Now()
	result := c.PingNow(context.Background())

	if result.Success {
		t.Fatal("Success = true, want the client timeout to end the ping")
	}
	if result.Error == nil {
		t.Error("Error = nil, want a timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ping took %v, want it bounded by the client timeout", elapsed)
	}
}

func TestWithHTTPClient_Nil(t *testing.T) {
	_, err := New(Configuration{URL: "https://example.com"}, WithHTTPClient(nil))
	if err == nil || !strings.Contains(err.Error(), "http client cannot be nil") {
		t.Errorf("New() error = %v, want error containing 'http client cannot be nil'", err)
	}
}

func TestWithExcerptLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 50)))
	}))
	defer ts.Close()

	c := newTestController(t, ts.URL, WithExcerptLimit(10))
	result := c.PingNow(context.Background())

	want := strings.Repeat("a", 10) + TruncationMarker
	if result.Response != want {
		t.Errorf("Response = %q, want %q", result.Response, want)
	}
}

func TestWithExcerptLimit_Invalid(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"zero", 0},
		{"negative", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Configuration{URL: "https://example.com"}, WithExcerptLimit(tt.n))
			if err == nil {
				t.Errorf("WithExcerptLimit(%d) expected error, got nil", tt.n)
			}
		})
	}
}
