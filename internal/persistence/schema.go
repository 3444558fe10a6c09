package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		profile TEXT NOT NULL,
		workspace TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS task_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		package TEXT NOT NULL,
		version TEXT NOT NULL,
		target TEXT NOT NULL,
		origin TEXT NOT NULL,
		outcome TEXT NOT NULL,
		marker_path TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_outcomes_run_id ON task_outcomes(run_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
