package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/keepwarm"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// wsWriteTimeout bounds a single WebSocket frame write.
	wsWriteTimeout = 5 * time.Second

	// wsStatusInterval is how often WebSocket clients receive a status frame
	// when no ping happens, so the running flag stays current.
	wsStatusInterval = 15 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// wsFrame is one WebSocket message. Result is set when the frame was caused
// by a new ping.
type wsFrame struct {
	Type   string                 `json:"type"`
	Status keepwarm.ServiceStatus `json:"status"`
	Result *keepwarm.PingResult   `json:"result,omitempty"`
}

// handleSSE streams new ping results via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.service.Subscribe()
	defer s.service.Unsubscribe(ch)

	// send headers now; the first event may be a whole interval away
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	// send the latest result so a new client renders immediately
	if last := s.service.Status().LastPing; last != nil {
		data, err := json.Marshal(last)
		if err == nil {
			if err := writeAndFlush(data); err != nil {
				return
			}
		}
	}

	for {
		select {
		case result, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// handleWS pushes status and ping results over a WebSocket.
//
// A status frame is sent on connect and periodically; a ping frame carrying
// the result is sent for every new ping. Incoming messages are read and
// discarded only to detect the client going away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.service.Subscribe()
	defer s.service.Unsubscribe(ch)

	if err := writeFrame(conn, wsFrame{Type: "status", Status: s.service.Status()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsStatusInterval)
	defer ticker.Stop()

	for {
		select {
		case result, ok := <-ch:
			if !ok {
				return
			}
			frame := wsFrame{Type: "ping", Status: s.service.Status(), Result: &result}
			if err := writeFrame(conn, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeFrame(conn, wsFrame{Type: "status", Status: s.service.Status()}); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame wsFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(frame)
}
