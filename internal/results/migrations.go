package results

import (
	"database/sql"
	"fmt"
)

// migration represents a single schema change
type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in order; append only, never edit an applied entry
var migrations = []migration{
	{
		version: 1,
		name:    "create_load_runs",
		sql: `
			CREATE TABLE IF NOT EXISTS load_runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scenario_name TEXT NOT NULL,
				mode TEXT NOT NULL,
				seed INTEGER NOT NULL DEFAULT 0,
				started_at DATETIME NOT NULL,
				completed_at DATETIME,
				status TEXT NOT NULL DEFAULT 'running',
				total_sessions INTEGER NOT NULL DEFAULT 0,
				completed_sessions INTEGER NOT NULL DEFAULT 0,
				total_requests INTEGER NOT NULL DEFAULT 0,
				total_errors INTEGER NOT NULL DEFAULT 0,
				total_assertion_failures INTEGER NOT NULL DEFAULT 0,
				avg_duration_ms REAL NOT NULL DEFAULT 0,
				min_duration_ms INTEGER NOT NULL DEFAULT 0,
				max_duration_ms INTEGER NOT NULL DEFAULT 0,
				p50_duration_ms INTEGER NOT NULL DEFAULT 0,
				p90_duration_ms INTEGER NOT NULL DEFAULT 0,
				p95_duration_ms INTEGER NOT NULL DEFAULT 0,
				p99_duration_ms INTEGER NOT NULL DEFAULT 0
			)
		`,
	},
	{
		version: 2,
		name:    "create_load_metrics",
		sql: `
			CREATE TABLE IF NOT EXISTS load_metrics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id INTEGER NOT NULL,
				session_num INTEGER NOT NULL,
				step_id TEXT NOT NULL,
				timestamp DATETIME NOT NULL,
				elapsed_ms INTEGER NOT NULL,
				status_code INTEGER NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				request_size INTEGER NOT NULL DEFAULT 0,
				response_size INTEGER NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				assertion_failure TEXT NOT NULL DEFAULT '',
				FOREIGN KEY (run_id) REFERENCES load_runs(id)
			)
		`,
	},
	{
		version: 3,
		name:    "index_load_metrics_run_id",
		sql:     `CREATE INDEX IF NOT EXISTS idx_load_metrics_run_id ON load_metrics(run_id)`,
	},
}

// migrate applies all pending migrations
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		if _, err := db.Exec(mig.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", mig.version, mig.name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			mig.version, mig.name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", mig.version, err)
		}
	}

	return nil
}
