// Package results persists load-run records and per-request metrics to
// SQLite so runs can be inspected and compared after the fact.
package results

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run represents one execution of a compiled scenario plan
type Run struct {
	ID                     int64
	ScenarioName           string
	Mode                   string // "full" or "legacy"
	Seed                   int64
	StartedAt              time.Time
	CompletedAt            *time.Time
	Status                 string // "running", "completed", "cancelled", "failed"
	TotalSessions          int
	CompletedSessions      int
	TotalRequests          int
	TotalErrors            int
	TotalAssertionFailures int
	AvgDurationMs          float64
	MinDurationMs          int64
	MaxDurationMs          int64
	P50DurationMs          int64
	P90DurationMs          int64
	P95DurationMs          int64
	P99DurationMs          int64
}

// IsRunning returns true if the run is currently in progress
func (r *Run) IsRunning() bool {
	return r.Status == "running"
}

// Metric represents a single step request within a run
type Metric struct {
	ID               int64
	RunID            int64
	SessionNum       int
	StepID           string
	Timestamp        time.Time
	ElapsedMs        int64
	StatusCode       int
	DurationMs       int64
	RequestSize      int64
	ResponseSize     int64
	ErrorMessage     string // dispatch error, if any
	AssertionFailure string // combined assertion failure message, if any
}

// Manager handles run and metric persistence
type Manager struct {
	db *sql.DB
}

// NewManager opens the results database and applies migrations
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Manager{db: db}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun inserts a new run record and sets its ID
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO load_runs
		(scenario_name, mode, seed, started_at, status, total_sessions)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ScenarioName, run.Mode, run.Seed, run.StartedAt, run.Status, run.TotalSessions)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun writes the final statistics for a run
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE load_runs
		SET completed_at = ?, status = ?, completed_sessions = ?, total_requests = ?,
		    total_errors = ?, total_assertion_failures = ?, avg_duration_ms = ?,
		    min_duration_ms = ?, max_duration_ms = ?, p50_duration_ms = ?,
		    p90_duration_ms = ?, p95_duration_ms = ?, p99_duration_ms = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.CompletedSessions, run.TotalRequests,
		run.TotalErrors, run.TotalAssertionFailures, run.AvgDurationMs,
		run.MinDurationMs, run.MaxDurationMs, run.P50DurationMs,
		run.P90DurationMs, run.P95DurationMs, run.P99DurationMs, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	run := &Run{}
	err := m.db.QueryRow(`
		SELECT id, scenario_name, mode, seed, started_at, completed_at, status,
		       total_sessions, completed_sessions, total_requests, total_errors,
		       total_assertion_failures, avg_duration_ms, min_duration_ms,
		       max_duration_ms, p50_duration_ms, p90_duration_ms, p95_duration_ms,
		       p99_duration_ms
		FROM load_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.ScenarioName, &run.Mode, &run.Seed, &run.StartedAt,
		&run.CompletedAt, &run.Status, &run.TotalSessions, &run.CompletedSessions,
		&run.TotalRequests, &run.TotalErrors, &run.TotalAssertionFailures,
		&run.AvgDurationMs, &run.MinDurationMs, &run.MaxDurationMs,
		&run.P50DurationMs, &run.P90DurationMs, &run.P95DurationMs, &run.P99DurationMs)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	rows, err := m.db.Query(`
		SELECT id, scenario_name, mode, seed, started_at, completed_at, status,
		       total_sessions, completed_sessions, total_requests, total_errors,
		       total_assertion_failures, avg_duration_ms, min_duration_ms,
		       max_duration_ms, p50_duration_ms, p90_duration_ms, p95_duration_ms,
		       p99_duration_ms
		FROM load_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.ScenarioName, &run.Mode, &run.Seed,
			&run.StartedAt, &run.CompletedAt, &run.Status, &run.TotalSessions,
			&run.CompletedSessions, &run.TotalRequests, &run.TotalErrors,
			&run.TotalAssertionFailures, &run.AvgDurationMs, &run.MinDurationMs,
			&run.MaxDurationMs, &run.P50DurationMs, &run.P90DurationMs,
			&run.P95DurationMs, &run.P99DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// SaveMetricsBatch inserts a batch of metrics in a single transaction
func (m *Manager) SaveMetricsBatch(metrics []*Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO load_metrics
		(run_id, session_num, step_id, timestamp, elapsed_ms, status_code,
		 duration_ms, request_size, response_size, error_message, assertion_failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, metric := range metrics {
		if _, err := stmt.Exec(metric.RunID, metric.SessionNum, metric.StepID,
			metric.Timestamp, metric.ElapsedMs, metric.StatusCode, metric.DurationMs,
			metric.RequestSize, metric.ResponseSize, metric.ErrorMessage,
			metric.AssertionFailure); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}
	return nil
}

// GetMetrics returns all metrics for a run in insertion order
func (m *Manager) GetMetrics(runID int64) ([]*Metric, error) {
	rows, err := m.db.Query(`
		SELECT id, run_id, session_num, step_id, timestamp, elapsed_ms, status_code,
		       duration_ms, request_size, response_size, error_message, assertion_failure
		FROM load_metrics
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		metric := &Metric{}
		if err := rows.Scan(&metric.ID, &metric.RunID, &metric.SessionNum,
			&metric.StepID, &metric.Timestamp, &metric.ElapsedMs, &metric.StatusCode,
			&metric.DurationMs, &metric.RequestSize, &metric.ResponseSize,
			&metric.ErrorMessage, &metric.AssertionFailure); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, metric)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	return metrics, nil
}
