package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Task outcome values. "executed" and "skipped" match compiler.Outcome names.
const (
	OutcomeExecuted = "executed"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Run is one invocation of the tool.
type Run struct {
	ID         string
	Mode       string // "wrapper" or "in-process"
	Profile    string // "debug" or "release"
	Workspace  string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// TaskOutcome is the recorded result of one compile task.
type TaskOutcome struct {
	RunID      string
	Package    string
	Version    string
	Target     string
	Origin     string // "local-path" or "external"
	Outcome    string
	MarkerPath string
	Error      string
	Duration   time.Duration
}

// Store defines the persistence interface for build history.
type Store interface {
	BeginRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID, status string, runErr error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	LastRun(ctx context.Context) (*Run, error)
	RecordOutcome(ctx context.Context, outcome TaskOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]TaskOutcome, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout
// so that concurrent wrapper processes can share the file.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite takes pragmas as _pragma=name(value)
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	return openStore(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each call gets its own database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return openStore(ctx, "file::memory:?mode=memory")
}

func openStore(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
