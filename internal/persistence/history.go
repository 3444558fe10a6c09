package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// BeginRun inserts a run in the running state. Beginning an existing run is a no-op,
// so every wrapper process of a cargo build may call it.
func (s *SQLiteStore) BeginRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, profile, workspace, status, started_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Mode, run.Profile, run.Workspace, RunRunning)
	if err != nil {
		return fmt.Errorf("failed to begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status string, runErr error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	errorStr := ""
	if runErr != nil {
		errorStr = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, errorStr, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, profile, workspace, status, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// LastRun returns the most recently started run.
func (s *SQLiteStore) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, profile, workspace, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var errorStr sql.NullString
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.Mode, &run.Profile, &run.Workspace, &run.Status, &errorStr, &run.StartedAt, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Error = errorStr.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// RecordOutcome appends a task outcome to its run.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o TaskOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_outcomes (run_id, package, version, target, origin, outcome, marker_path, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.Package, o.Version, o.Target, o.Origin, o.Outcome, o.MarkerPath, o.Error, o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", o.Package, err)
	}
	return nil
}

// ListOutcomes returns the outcomes of a run in recording order.
func (s *SQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]TaskOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, package, version, target, origin, outcome, marker_path, error, duration_ms
		FROM task_outcomes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []TaskOutcome
	for rows.Next() {
		var o TaskOutcome
		var marker, errorStr sql.NullString
		var durationMs int64
		if err := rows.Scan(&o.RunID, &o.Package, &o.Version, &o.Target, &o.Origin, &o.Outcome, &marker, &errorStr, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.MarkerPath = marker.String
		o.Error = errorStr.String
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return outcomes, nil
}
