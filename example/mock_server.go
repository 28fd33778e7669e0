package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// coldStartService imitates a free-tier host that puts the service to sleep
// after it has been idle, so the next request pays a cold start.
type coldStartService struct {
	idleAfter time.Duration
	coldStart time.Duration

	mu       sync.Mutex
	lastSeen time.Time
}

// StartMockColdServer runs the mock service on addr.
// A request arriving more than idleAfter after the previous one is delayed
// by coldStart; anything else answers in 50-200ms.
// Call this in a goroutine before creating the controller.
func StartMockColdServer(addr string, idleAfter, coldStart time.Duration) {
	svc := &coldStartService{idleAfter: idleAfter, coldStart: coldStart}

	mux := http.NewServeMux()
	mux.HandleFunc("/evaluate", svc.handle)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func (s *coldStartService) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cold := s.lastSeen.IsZero() || time.Since(s.lastSeen) > s.idleAfter
	s.lastSeen = time.Now()
	s.mu.Unlock()

	if cold {
		slog.Info("cold start", "delay", s.coldStart.String())
		time.Sleep(s.coldStart)
	} else {
		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)
	}

	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"cold":          cold,
		"received_size": len(body),
		"score":         rand.Intn(100),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
