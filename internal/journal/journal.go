// Package journal keeps an append-only SQLite log of ping results.
//
// The journal is write-only from the service's point of view: results are
// recorded as they happen and summarised by the report command, but they are
// never loaded back into a controller's in-memory history.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jpalmerr/keepwarm"
)

// Journal wraps a SQLite database holding ping results.
//
// Journal is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Summary aggregates the journal over a time window.
type Summary struct {
	Since        time.Time `json:"since"`
	Total        int       `json:"total"`
	Successes    int       `json:"successes"`
	Failures     int       `json:"failures"`
	SuccessRate  float64   `json:"success_rate"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	MaxLatencyMs int64     `json:"max_latency_ms"`

	// FirstAt and LastAt are zero when Total is 0.
	FirstAt time.Time `json:"first_at"`
	LastAt  time.Time `json:"last_at"`
}

// Open opens or creates the journal at path and ensures the schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal open failed: %w", err)
	}
	// sqlite allows one writer; serialise through a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal pragma failed: %w", err)
		}
	}

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS ping_results (
        id TEXT PRIMARY KEY,
        timestamp_ms INTEGER NOT NULL,
        target TEXT NOT NULL,
        trigger_kind TEXT NOT NULL,
        success BOOLEAN NOT NULL,
        status_code INTEGER,
        latency_ms INTEGER NOT NULL,
        error_message TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_ping_results_timestamp ON ping_results(timestamp_ms);
    `
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Record stores one result for target.
func (j *Journal) Record(ctx context.Context, target string, r keepwarm.PingResult) error {
	var statusCode sql.NullInt64
	if r.StatusCode != nil {
		statusCode = sql.NullInt64{Int64: int64(*r.StatusCode), Valid: true}
	}
	var errMsg sql.NullString
	if r.Error != nil {
		errMsg = sql.NullString{String: *r.Error, Valid: true}
	}

	query := `
        INSERT INTO ping_results (id, timestamp_ms, target, trigger_kind, success, status_code, latency_ms, error_message)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := j.db.ExecContext(ctx, query,
		r.ID,
		r.Timestamp.UnixMilli(),
		target,
		r.Trigger.String(),
		r.Success,
		statusCode,
		r.LatencyMs,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record ping %s: %w", r.ID, err)
	}
	return nil
}

// Summary aggregates every result recorded at or after since.
func (j *Journal) Summary(ctx context.Context, since time.Time) (Summary, error) {
	query := `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
            AVG(latency_ms),
            MAX(latency_ms),
            MIN(timestamp_ms),
            MAX(timestamp_ms)
        FROM ping_results
        WHERE timestamp_ms >= ?
    `

	var (
		s          = Summary{Since: since}
		avgLatency sql.NullFloat64
		maxLatency sql.NullInt64
		first      sql.NullInt64
		last       sql.NullInt64
	)
	err := j.db.QueryRowContext(ctx, query, since.UnixMilli()).
		Scan(&s.Total, &s.Successes, &avgLatency, &maxLatency, &first, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarise journal: %w", err)
	}

	s.Failures = s.Total - s.Successes
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Total) * 100
	}
	s.AvgLatencyMs = avgLatency.Float64
	s.MaxLatencyMs = maxLatency.Int64
	if first.Valid {
		s.FirstAt = time.UnixMilli(first.Int64)
	}
	if last.Valid {
		s.LastAt = time.UnixMilli(last.Int64)
	}
	return s, nil
}

// Prune deletes results recorded before olderThan and reports how many
// were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM ping_results WHERE timestamp_ms < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Recorder returns a result callback that records every result for the
// target reported by target. Write failures are logged and dropped.
func (j *Journal) Recorder(target func() string, logger *slog.Logger) func(keepwarm.PingResult) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(r keepwarm.PingResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.Record(ctx, target(), r); err != nil {
			logger.Warn("journal write failed", "error", err.Error())
		}
	}
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
