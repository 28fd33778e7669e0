package keepwarm

import "time"

// Trigger records what caused a ping.
type Trigger string

const (
	// TriggerScheduled marks pings issued by the background loop.
	TriggerScheduled Trigger = "scheduled"

	// TriggerManual marks pings issued through [Controller.PingNow].
	TriggerManual Trigger = "manual"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}

// PingResult is the outcome of a single ping attempt.
//
// PingResult is immutable after creation. Optional fields are pointers so
// that JSON output distinguishes "absent" (null) from zero values.
type PingResult struct {
	// ID uniquely identifies the attempt.
	ID string `json:"id"`

	// Timestamp is when the attempt started.
	Timestamp time.Time `json:"timestamp"`

	// Success is true iff a response with a 2xx status code was received.
	Success bool `json:"success"`

	// StatusCode is nil when no response was received.
	StatusCode *int `json:"status_code"`

	// Response is a prefix of the response body, with a truncation marker
	// appended when the body was longer than the excerpt budget.
	Response string `json:"response"`

	// Error describes a transport failure; nil when a response arrived.
	Error *string `json:"error"`

	// LatencyMs is the request duration in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// Trigger is what caused the attempt.
	Trigger Trigger `json:"trigger"`
}

// ServiceStatus is a point-in-time view of a [Controller].
//
// ServiceStatus is derived on demand and never stored.
type ServiceStatus struct {
	Running         bool        `json:"running"`
	URL             string      `json:"url"`
	Method          string      `json:"method"`
	IntervalSeconds int         `json:"interval"`
	LastPing        *PingResult `json:"last_ping"`
	HistoryCount    int         `json:"history_count"`
	MaxHistory      int         `json:"max_history"`
}

// HistoryStats summarises the retained history.
type HistoryStats struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	// SuccessRate is a percentage in [0, 100]; 0 when the history is empty.
	SuccessRate float64 `json:"success_rate"`
}

// ComputeStats summarises a slice of results.
func ComputeStats(results []PingResult) HistoryStats {
	var stats HistoryStats
	for _, r := range results {
		if r.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
	}
	if total := len(results); total > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(total) * 100
	}
	return stats
}
