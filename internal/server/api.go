package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/keepwarm"
)

// maxConfigBody bounds the size of a configuration update request.
const maxConfigBody = 1 << 20

// Payload types accepted by the configuration API.
const (
	payloadNone = "none"
	payloadJSON = "json"
	payloadForm = "form"
)

// actionResponse is the body of every control endpoint response.
type actionResponse struct {
	OK       bool     `json:"ok"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// historyResponse is the body of GET /api/history.
type historyResponse struct {
	Entries []keepwarm.PingResult `json:"entries"`
	Stats   keepwarm.HistoryStats `json:"stats"`
}

// configView is the editable form of a configuration.
type configView struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	PayloadType     string            `json:"payload_type"`
	Payload         string            `json:"payload"`
	IntervalSeconds int               `json:"interval_seconds"`
	MaxHistory      int               `json:"max_history"`
}

// configRequest is the body of POST /api/config. Omitted fields keep their
// current values.
type configRequest struct {
	URL             string `json:"url"`
	Method          string `json:"method"`
	IntervalSeconds *int   `json:"interval_seconds"`
	MaxHistory      *int   `json:"max_history"`

	// Headers is a JSON object, or a string holding one. Entries are merged
	// over the current headers.
	Headers json.RawMessage `json:"headers"`

	// PayloadType is one of none, json or form. Empty keeps the current body.
	PayloadType string `json:"payload_type"`
	Payload     string `json:"payload"`
}

func newConfigView(cfg keepwarm.Configuration) configView {
	view := configView{
		URL:             cfg.URL,
		Method:          cfg.Method,
		Headers:         cfg.Headers,
		PayloadType:     payloadNone,
		Payload:         cfg.Body.String(),
		IntervalSeconds: int(cfg.Interval.Seconds()),
		MaxHistory:      cfg.MaxHistory,
	}
	if view.Headers == nil {
		view.Headers = map[string]string{}
	}
	switch cfg.Body.Kind() {
	case keepwarm.BodyStructured:
		view.PayloadType = payloadJSON
	case keepwarm.BodyRaw:
		view.PayloadType = payloadForm
	}
	return view
}

// handleStatus returns the current service status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Status())
}

// handleHistory returns the retained ping results, newest first, with
// statistics over the whole history. An optional limit query parameter caps
// the entries.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.service.History()
	stats := keepwarm.ComputeStats(entries)
	slices.Reverse(entries)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeJSON(w, http.StatusBadRequest, actionResponse{Error: "limit must be a non-negative integer"})
			return
		}
		if limit < len(entries) {
			entries = entries[:limit]
		}
	}

	s.writeJSON(w, http.StatusOK, historyResponse{
		Entries: entries,
		Stats:   stats,
	})
}

// handleGetConfig returns the current configuration in its editable form.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newConfigView(s.service.Configuration()))
}

// handleUpdateConfig applies a configuration update.
//
// A running service is stopped, updated and restarted. If the update is
// rejected the previous configuration stays in effect and the service is
// restarted with it.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBody))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, actionResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	cfg, warnings, err := applyConfigRequest(s.service.Configuration(), req)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, actionResponse{Error: err.Error()})
		return
	}

	wasRunning := s.service.Running()
	if wasRunning {
		if err := s.service.Stop(); err != nil && !errors.Is(err, keepwarm.ErrNotRunning) {
			s.writeJSON(w, http.StatusInternalServerError, actionResponse{Error: err.Error()})
			return
		}
	}

	updateErr := s.service.UpdateConfiguration(cfg)

	if wasRunning {
		if err := s.service.Start(s.baseCtx); err != nil && !errors.Is(err, keepwarm.ErrAlreadyRunning) {
			s.logger.Error("failed to restart service after configuration update", "error", err)
		}
	}

	if updateErr != nil {
		status := http.StatusBadRequest
		if errors.Is(updateErr, keepwarm.ErrConfigLocked) {
			status = http.StatusConflict
		}
		s.writeJSON(w, status, actionResponse{Error: updateErr.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, actionResponse{
		OK:       true,
		Message:  "Configuration updated",
		Warnings: warnings,
	})
}

// applyConfigRequest overlays req on current. It reports warnings for
// values that were adjusted rather than rejected.
func applyConfigRequest(current keepwarm.Configuration, req configRequest) (keepwarm.Configuration, []string, error) {
	cfg := current.Clone()
	var warnings []string

	if strings.TrimSpace(req.URL) != "" {
		cfg.URL = strings.TrimSpace(req.URL)
	}
	if strings.TrimSpace(req.Method) != "" {
		cfg.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	}

	if req.IntervalSeconds != nil {
		interval := time.Duration(*req.IntervalSeconds) * time.Second
		if interval < keepwarm.MinInterval {
			warnings = append(warnings, fmt.Sprintf("interval raised to the minimum of %d seconds", int(keepwarm.MinInterval.Seconds())))
			interval = keepwarm.MinInterval
		}
		cfg.Interval = interval
	}

	if req.MaxHistory != nil {
		if *req.MaxHistory < 1 {
			return keepwarm.Configuration{}, nil, errors.New("max_history must be at least 1")
		}
		cfg.MaxHistory = *req.MaxHistory
	}

	headers, err := parseHeaders(req.Headers)
	if err != nil {
		return keepwarm.Configuration{}, nil, err
	}
	if len(headers) > 0 {
		cfg.Headers = keepwarm.MergeHeaders(cfg.Headers, headers)
	}

	payload := strings.TrimSpace(req.Payload)
	switch req.PayloadType {
	case "":
	case payloadNone:
		cfg.Body = keepwarm.NoBody()
	case payloadJSON:
		body, err := keepwarm.ParseJSONBody(payload)
		if err != nil {
			return keepwarm.Configuration{}, nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		cfg.Body = body
	case payloadForm:
		if payload == "" {
			cfg.Body = keepwarm.NoBody()
		} else {
			cfg.Body = keepwarm.RawBody(payload)
		}
	default:
		return keepwarm.Configuration{}, nil, fmt.Errorf("unknown payload_type %q", req.PayloadType)
	}

	return cfg, warnings, nil
}

// parseHeaders accepts a JSON object or a JSON string containing one.
func parseHeaders(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("invalid headers: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		raw = []byte(text)
	}

	var headers map[string]string
	if err := json.Unmarshal(raw, &headers); err != nil {
		return nil, fmt.Errorf("invalid headers: must be a JSON object of strings: %w", err)
	}
	return headers, nil
}

// handlePing runs a manual ping and returns its result.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.PingNow(r.Context()))
}

// handleStart starts the ping loop.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Start(s.baseCtx); err != nil {
		s.writeControlError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, actionResponse{OK: true, Message: "Service started"})
}

// handleStop stops the ping loop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Stop(); err != nil {
		s.writeControlError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, actionResponse{OK: true, Message: "Service stopped"})
}

// handleClearHistory empties the ping history.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.service.ClearHistory()
	s.writeJSON(w, http.StatusOK, actionResponse{OK: true, Message: "Ping history cleared"})
}

// writeControlError maps lifecycle rejections to 409 and anything else to 500.
func (s *Server) writeControlError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, keepwarm.ErrAlreadyRunning) ||
		errors.Is(err, keepwarm.ErrNotRunning) ||
		errors.Is(err, keepwarm.ErrConfigLocked) {
		status = http.StatusConflict
	}
	s.writeJSON(w, status, actionResponse{Error: err.Error()})
}
