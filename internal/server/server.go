package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/keepwarm"
)

const (
	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Keep Warm"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Service is the control surface the server drives.
// [keepwarm.Controller] implements it.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	Status() keepwarm.ServiceStatus
	Configuration() keepwarm.Configuration
	UpdateConfiguration(cfg keepwarm.Configuration) error
	PingNow(ctx context.Context) keepwarm.PingResult
	History() []keepwarm.PingResult
	Stats() keepwarm.HistoryStats
	ClearHistory()
	Subscribe() <-chan keepwarm.PingResult
	Unsubscribe(ch <-chan keepwarm.PingResult)
}

// Server handles HTTP requests for the keepwarm dashboard and API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	service    Service
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger

	// baseCtx bounds loops started through the API. It is the context given
	// to Start, so a loop started by a request outlives that request.
	baseCtx context.Context

	// configMu serialises the stop/update/restart sequence of config updates.
	configMu sync.Mutex
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - svc: Service to control and report on
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "Keep Warm" if empty)
//   - logger: Logger for server events (defaults to [slog.Default] if nil)
//
// The server is not started until [Server.Start] is called.
func NewServer(svc Service, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: svc,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout. ctx also bounds any ping loop started through the API.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like [Server.Start] but uses an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("dashboard available", "addr", ln.Addr().String())
	return nil
}

// Handler returns the routing table of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// read API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /api/chart.png", s.handleChart)

	// control API
	mux.HandleFunc("POST /api/config", s.handleUpdateConfig)
	mux.HandleFunc("POST /api/ping", s.handlePing)
	mux.HandleFunc("POST /api/service/start", s.handleStart)
	mux.HandleFunc("POST /api/service/stop", s.handleStop)
	mux.HandleFunc("POST /api/history/clear", s.handleClearHistory)

	// live updates
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWS)

	// serve dashboard assets
	if s.assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}

	return mux
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// writeJSON encodes payload with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
