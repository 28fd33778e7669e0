package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/keepwarm"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockService implements Service for testing.
type mockService struct {
	mu        sync.Mutex
	running   bool
	cfg       keepwarm.Configuration
	history   []keepwarm.PingResult
	startErr  error
	updateErr error
	starts    int
	stops     int
	updates   []keepwarm.Configuration

	subMu       sync.Mutex
	subscribers map[chan keepwarm.PingResult]struct{}
}

func newMockService() *mockService {
	return &mockService{
		cfg: keepwarm.Configuration{
			URL:        "https://example.com/api",
			Method:     "POST",
			Headers:    map[string]string{"Content-Type": "application/json"},
			Interval:   3 * time.Minute,
			MaxHistory: 100,
		},
		subscribers: make(map[chan keepwarm.PingResult]struct{}),
	}
}

func (m *mockService) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return keepwarm.ErrAlreadyRunning
	}
	m.running = true
	m.starts++
	return nil
}

func (m *mockService) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return keepwarm.ErrNotRunning
	}
	m.running = false
	m.stops++
	return nil
}

func (m *mockService) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *mockService) Status() keepwarm.ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := keepwarm.ServiceStatus{
		Running:         m.running,
		URL:             m.cfg.URL,
		Method:          m.cfg.Method,
		IntervalSeconds: int(m.cfg.Interval.Seconds()),
		HistoryCount:    len(m.history),
		MaxHistory:      m.cfg.MaxHistory,
	}
	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		status.LastPing = &last
	}
	return status
}

func (m *mockService) Configuration() keepwarm.Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

func (m *mockService) UpdateConfiguration(cfg keepwarm.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return keepwarm.ErrConfigLocked
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	normalized, err := cfg.Normalize()
	if err != nil {
		return err
	}
	m.cfg = normalized
	m.updates = append(m.updates, normalized)
	return nil
}

func (m *mockService) PingNow(ctx context.Context) keepwarm.PingResult {
	code := 200
	result := keepwarm.PingResult{
		ID:         "manual-" + time.Now().Format(time.RFC3339Nano),
		Timestamp:  time.Now(),
		Success:    true,
		StatusCode: &code,
		Trigger:    keepwarm.TriggerManual,
	}
	m.add(result)
	return result
}

func (m *mockService) add(result keepwarm.PingResult) {
	m.mu.Lock()
	m.history = append(m.history, result)
	m.mu.Unlock()

	m.subMu.Lock()
	for ch := range m.subscribers {
		select {
		case ch <- result:
		default:
		}
	}
	m.subMu.Unlock()
}

func (m *mockService) History() []keepwarm.PingResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]keepwarm.PingResult(nil), m.history...)
}

func (m *mockService) Stats() keepwarm.HistoryStats {
	return keepwarm.ComputeStats(m.History())
}

func (m *mockService) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

func (m *mockService) Subscribe() <-chan keepwarm.PingResult {
	ch := make(chan keepwarm.PingResult, 100)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *mockService) Unsubscribe(ch <-chan keepwarm.PingResult) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *mockService) subscriberCount() int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subscribers)
}

func result(id string, success bool, latency int64) keepwarm.PingResult {
	code := 200
	if !success {
		code = 503
	}
	return keepwarm.PingResult{
		ID:         id,
		Timestamp:  time.Now(),
		Success:    success,
		StatusCode: &code,
		LatencyMs:  latency,
		Trigger:    keepwarm.TriggerScheduled,
	}
}

// do sends a request through the server's handler.
func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// --- Read API ---

func TestHandleStatus(t *testing.T) {
	ms := newMockService()
	ms.add(result("a", true, 12))
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	status := decode[keepwarm.ServiceStatus](t, rec)
	if status.URL != "https://example.com/api" {
		t.Errorf("URL = %q", status.URL)
	}
	if status.IntervalSeconds != 180 {
		t.Errorf("IntervalSeconds = %d, want 180", status.IntervalSeconds)
	}
	if status.LastPing == nil || status.LastPing.ID != "a" {
		t.Errorf("LastPing = %+v, want a", status.LastPing)
	}
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	srv := NewServer(newMockService(), 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodDelete, "/api/status", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleHistory_NewestFirstWithStats(t *testing.T) {
	ms := newMockService()
	ms.add(result("first", true, 1))
	ms.add(result("second", false, 2))
	ms.add(result("third", true, 3))
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodGet, "/api/history", "")
	resp := decode[historyResponse](t, rec)

	if len(resp.Entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(resp.Entries))
	}
	if resp.Entries[0].ID != "third" || resp.Entries[2].ID != "first" {
		t.Errorf("entries not newest first: %s, %s", resp.Entries[0].ID, resp.Entries[2].ID)
	}
	if resp.Stats.SuccessCount != 2 || resp.Stats.FailureCount != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestHandleHistory_Limit(t *testing.T) {
	ms := newMockService()
	for _, id := range []string{"a", "b", "c"} {
		ms.add(result(id, true, 1))
	}
	srv := NewServer(ms, 0, nil, "", testLogger())

	resp := decode[historyResponse](t, do(t, srv, http.MethodGet, "/api/history?limit=1", ""))
	if len(resp.Entries) != 1 || resp.Entries[0].ID != "c" {
		t.Errorf("entries = %+v, want [c]", resp.Entries)
	}
	if resp.Stats.SuccessCount != 3 {
		t.Errorf("stats should cover the whole history, got %+v", resp.Stats)
	}

	if rec := do(t, srv, http.MethodGet, "/api/history?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid limit", rec.Code)
	}
}

func TestHandleGetConfig(t *testing.T) {
	ms := newMockService()
	body, err := keepwarm.ParseJSONBody(`{"b": 1, "a": 2}`)
	if err != nil {
		t.Fatal(err)
	}
	ms.cfg.Body = body
	srv := NewServer(ms, 0, nil, "", testLogger())

	view := decode[configView](t, do(t, srv, http.MethodGet, "/api/config", ""))
	if view.PayloadType != payloadJSON {
		t.Errorf("PayloadType = %q, want json", view.PayloadType)
	}
	if view.Payload != `{"b": 1, "a": 2}` {
		t.Errorf("Payload = %q", view.Payload)
	}
	if view.IntervalSeconds != 180 || view.MaxHistory != 100 {
		t.Errorf("view = %+v", view)
	}
	if view.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers = %v", view.Headers)
	}
}

// --- Control API ---

func TestHandleStartStop(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	tests := []struct {
		path string
		want int
	}{
		{"/api/service/stop", http.StatusConflict},
		{"/api/service/start", http.StatusOK},
		{"/api/service/start", http.StatusConflict},
		{"/api/service/stop", http.StatusOK},
		{"/api/service/stop", http.StatusConflict},
	}

	for i, tt := range tests {
		rec := do(t, srv, http.MethodPost, tt.path, "")
		if rec.Code != tt.want {
			t.Errorf("step %d %s: status = %d, want %d", i, tt.path, rec.Code, tt.want)
		}
		resp := decode[actionResponse](t, rec)
		if resp.OK != (tt.want == http.StatusOK) {
			t.Errorf("step %d: ok = %v", i, resp.OK)
		}
	}
}

func TestHandleStart_RequiresPOST(t *testing.T) {
	srv := NewServer(newMockService(), 0, nil, "", testLogger())

	if rec := do(t, srv, http.MethodGet, "/api/service/start", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandlePing(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodPost, "/api/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[keepwarm.PingResult](t, rec)
	if got.Trigger != keepwarm.TriggerManual {
		t.Errorf("Trigger = %q, want manual", got.Trigger)
	}
	if len(ms.History()) != 1 {
		t.Errorf("history length = %d, want 1", len(ms.History()))
	}
}

func TestHandleClearHistory(t *testing.T) {
	ms := newMockService()
	ms.add(result("a", true, 1))
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodPost, "/api/history/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(ms.History()) != 0 {
		t.Error("history not cleared")
	}
}

func TestHandleUpdateConfig(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	body := `{
		"url": "https://other.example.com/warm",
		"method": "put",
		"interval_seconds": 300,
		"max_history": 20,
		"headers": {"content-type": "application/x-www-form-urlencoded", "X-Key": "k"},
		"payload_type": "json",
		"payload": "{\"z\": 1, \"a\": 2}"
	}`
	rec := do(t, srv, http.MethodPost, "/api/config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	cfg := ms.Configuration()
	if cfg.URL != "https://other.example.com/warm" || cfg.Method != "PUT" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Interval != 5*time.Minute || cfg.MaxHistory != 20 {
		t.Errorf("interval/max_history = %v/%d", cfg.Interval, cfg.MaxHistory)
	}
	if len(cfg.Headers) != 2 {
		t.Errorf("Headers = %v, want content-type replaced case-insensitively plus X-Key", cfg.Headers)
	}
	if v, _ := cfg.Header("Content-Type"); v != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", v)
	}
	if cfg.Body.String() != `{"z": 1, "a": 2}` {
		t.Errorf("Body = %s", cfg.Body.String())
	}
}

func TestHandleUpdateConfig_HeadersAsString(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodPost, "/api/config", `{"headers": "{\"X-Token\": \"t\"}"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if v, ok := ms.Configuration().Header("X-Token"); !ok || v != "t" {
		t.Errorf("X-Token = %q, %v", v, ok)
	}
	if _, ok := ms.Configuration().Header("Content-Type"); !ok {
		t.Error("existing headers should be kept")
	}
}

func TestHandleUpdateConfig_ClampsInterval(t *testing.T) {
	for _, secs := range []string{"10", "0", "-5"} {
		t.Run(secs, func(t *testing.T) {
			ms := newMockService()
			srv := NewServer(ms, 0, nil, "", testLogger())

			rec := do(t, srv, http.MethodPost, "/api/config", `{"interval_seconds": `+secs+`}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			resp := decode[actionResponse](t, rec)
			if len(resp.Warnings) != 1 {
				t.Errorf("warnings = %v, want one", resp.Warnings)
			}
			if got := ms.Status().IntervalSeconds; got != 60 {
				t.Errorf("IntervalSeconds = %d, want 60", got)
			}
		})
	}
}

func TestHandleUpdateConfig_EscapedJSONPayload(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	body := `{"payload_type": "json", "payload": "{\"next\": \"https:\\/\\/app.example.com\\/\", \"who\": \"Jos\\u00e9\"}"}`
	rec := do(t, srv, http.MethodPost, "/api/config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := ms.Configuration().Body.String(); got != `{"next": "https://app.example.com/", "who": "José"}` {
		t.Errorf("Body = %s", got)
	}
}

func TestHandleUpdateConfig_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{`},
		{"invalid payload json", `{"payload_type": "json", "payload": "{nope"}`},
		{"invalid headers", `{"headers": "[1, 2]"}`},
		{"unknown payload type", `{"payload_type": "xml", "payload": "<a/>"}`},
		{"bad url", `{"url": "ftp://example.com"}`},
		{"zero history", `{"max_history": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMockService()
			before := ms.Configuration()
			srv := NewServer(ms, 0, nil, "", testLogger())

			rec := do(t, srv, http.MethodPost, "/api/config", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if after := ms.Configuration(); after.URL != before.URL || after.Interval != before.Interval {
				t.Error("configuration changed on rejected update")
			}
		})
	}
}

func TestHandleUpdateConfig_RestartsRunningService(t *testing.T) {
	ms := newMockService()
	_ = ms.Start(context.Background())
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodPost, "/api/config", `{"url": "https://new.example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !ms.Running() {
		t.Error("service should be running again after update")
	}
	if ms.stops != 1 || ms.starts != 2 {
		t.Errorf("stops/starts = %d/%d, want 1/2", ms.stops, ms.starts)
	}
	if ms.Configuration().URL != "https://new.example.com" {
		t.Error("configuration not applied")
	}
}

func TestHandleUpdateConfig_PayloadNone(t *testing.T) {
	ms := newMockService()
	ms.cfg.Body = keepwarm.RawBody("a=1")
	srv := NewServer(ms, 0, nil, "", testLogger())

	rec := do(t, srv, http.MethodPost, "/api/config", `{"payload_type": "none", "payload": "ignored"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !ms.Configuration().Body.IsZero() {
		t.Error("body should be cleared")
	}
}

// --- Dashboard ---

func TestHandleDashboard_TitleEscaped(t *testing.T) {
	assets := fstest.MapFS{
		"assets/index.html": {Data: []byte("<title>{{.Title}}</title>")},
	}
	srv := NewServer(newMockService(), 0, assets, "<script>x</script>", testLogger())

	rec := do(t, srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<script>") {
		t.Errorf("title not escaped: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "&lt;script&gt;") {
		t.Errorf("escaped title missing: %s", rec.Body.String())
	}
}

func TestHandleDashboard_DefaultTitle(t *testing.T) {
	assets := fstest.MapFS{
		"assets/index.html": {Data: []byte("<h1>{{.Title}}</h1>")},
	}
	srv := NewServer(newMockService(), 0, assets, "", testLogger())

	rec := do(t, srv, http.MethodGet, "/", "")
	if !strings.Contains(rec.Body.String(), defaultTitle) {
		t.Errorf("body = %s, want default title", rec.Body.String())
	}
}

func TestHandleDashboard_UnknownPath(t *testing.T) {
	assets := fstest.MapFS{"assets/index.html": {Data: []byte("x")}}
	srv := NewServer(newMockService(), 0, assets, "", testLogger())

	if rec := do(t, srv, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// --- Chart ---

func TestHandleChart(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	if rec := do(t, srv, http.MethodGet, "/api/chart.png", ""); rec.Code != http.StatusNoContent {
		t.Errorf("empty history status = %d, want 204", rec.Code)
	}

	for i := range 12 {
		r := result(string(rune('a'+i)), i%4 != 0, int64(100+i*10))
		r.Timestamp = time.Now().Add(time.Duration(i) * time.Minute)
		ms.add(r)
	}

	rec := do(t, srv, http.MethodGet, "/api/chart.png", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "\x89PNG") {
		t.Error("response is not a PNG")
	}
}

func TestHandleChart_FlatLatency(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	for i := range 3 {
		r := result(string(rune('a'+i)), true, 0)
		r.Timestamp = time.Now().Add(time.Duration(i) * time.Second)
		ms.add(r)
	}

	if rec := do(t, srv, http.MethodGet, "/api/chart.png", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Live updates ---

func TestHandleSSE_SendsLatestAndUpdates(t *testing.T) {
	ms := newMockService()
	ms.add(result("initial", true, 1))
	srv := NewServer(ms, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)
	ms.add(result("streamed", true, 1))
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "initial") {
		t.Errorf("response should contain latest result, got: %s", body)
	}
	if !strings.Contains(body, "streamed") {
		t.Errorf("response should contain streamed result, got: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleSSE_UnsubscribesOnExit(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)

	srv.handleSSE(httptest.NewRecorder(), req)

	if n := ms.subscriberCount(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}

func TestHandleSSE_OverHTTP(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/sse")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	waitForSubscribers(t, ms, 1)
	ms.add(result("over-http", true, 1))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if !strings.HasPrefix(line, "data: ") || !strings.Contains(line, "over-http") {
		t.Errorf("line = %q", line)
	}
}

func TestHandleWS(t *testing.T) {
	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first wsFrame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.Type != "status" || first.Status.URL != "https://example.com/api" {
		t.Errorf("first frame = %+v", first)
	}

	waitForSubscribers(t, ms, 1)
	ms.add(result("ws-ping", false, 5))

	var next wsFrame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if next.Type != "ping" || next.Result == nil || next.Result.ID != "ws-ping" {
		t.Errorf("ping frame = %+v", next)
	}
	if next.Status.HistoryCount != 1 {
		t.Errorf("HistoryCount = %d, want 1", next.Status.HistoryCount)
	}
}

func TestHandleWS_RejectsCrossOrigin(t *testing.T) {
	srv := NewServer(newMockService(), 0, nil, "", testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("Dial() succeeded, want cross-origin rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func waitForSubscribers(t *testing.T, ms *mockService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ms.subscriberCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers", n)
}

// --- Lifecycle ---

func TestServer_StartAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ms := newMockService()
	srv := NewServer(ms, 0, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Serve(ctx, ln); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	url := "http://" + ln.Addr().String()
	resp, err := http.Post(url+"/api/service/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("start status = %d", resp.StatusCode)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := http.Get(url + "/api/status"); err != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("server still accepting requests after shutdown")
}

func TestServer_StartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	srv := NewServer(newMockService(), port, nil, "", testLogger())

	if err := srv.Start(context.Background()); err == nil {
		t.Error("Start() error = nil, want bind failure")
	}
}
