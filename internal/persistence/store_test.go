package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestBeginAndFinishRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run := Run{ID: "run-1", Mode: "wrapper", Profile: "debug", Workspace: "/ws"}
	if err := store.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunRunning {
		t.Errorf("status = %q, want %q", got.Status, RunRunning)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil", got.FinishedAt)
	}

	if err := store.FinishRun(ctx, "run-1", RunFailed, errors.New("rustc exited 1")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunFailed {
		t.Errorf("status = %q, want %q", got.Status, RunFailed)
	}
	if got.Error != "rustc exited 1" {
		t.Errorf("error = %q, want %q", got.Error, "rustc exited 1")
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestBeginRunIsIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run := Run{ID: "run-1", Mode: "wrapper", Profile: "release", Workspace: "/ws"}
	for i := 0; i < 3; i++ {
		if err := store.BeginRun(ctx, run); err != nil {
			t.Fatalf("BeginRun #%d: %v", i+1, err)
		}
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Profile != "release" {
		t.Errorf("profile = %q, want release", got.Profile)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	if err := store.FinishRun(context.Background(), "missing", RunSucceeded, nil); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun: expected ErrRunNotFound, got %v", err)
	}

	if _, err := store.LastRun(context.Background()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LastRun on empty store: expected ErrRunNotFound, got %v", err)
	}
}

func TestLastRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.BeginRun(ctx, Run{ID: id, Mode: "in-process", Profile: "debug", Workspace: "/ws"}); err != nil {
			t.Fatalf("BeginRun %s: %v", id, err)
		}
	}

	got, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if got.ID != "run-c" {
		t.Errorf("LastRun = %q, want run-c", got.ID)
	}
}

func TestRecordAndListOutcomes(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, Run{ID: "run-1", Mode: "wrapper", Profile: "debug", Workspace: "/ws"}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	want := []TaskOutcome{
		{RunID: "run-1", Package: "serde", Version: "1.0.0", Target: "serde", Origin: "external", Outcome: OutcomeExecuted, Duration: 1500 * time.Millisecond},
		{RunID: "run-1", Package: "app", Version: "0.1.0", Target: "app", Origin: "local-path", Outcome: OutcomeSkipped, MarkerPath: "/t/debug/deps/../.fingerprint/app-abc/dep-lib-app-abc"},
		{RunID: "run-1", Package: "ring", Version: "0.17.0", Target: "ring", Origin: "external", Outcome: OutcomeFailed, Error: "exit status 1"},
	}
	for _, o := range want {
		if err := store.RecordOutcome(ctx, o); err != nil {
			t.Fatalf("RecordOutcome %s: %v", o.Package, err)
		}
	}

	got, err := store.ListOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListOutcomes: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	other, err := store.ListOutcomes(ctx, "run-2")
	if err != nil {
		t.Fatalf("ListOutcomes run-2: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no outcomes for run-2, got %d", len(other))
	}
}

func TestRecordOutcomeRequiresRun(t *testing.T) {
	store := testStore(t)

	err := store.RecordOutcome(context.Background(), TaskOutcome{RunID: "nope", Package: "serde", Outcome: OutcomeExecuted})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(ctx, dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.BeginRun(ctx, Run{ID: "run-1", Mode: "build-all", Profile: "debug", Workspace: "/ws"}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.RecordOutcome(ctx, TaskOutcome{RunID: "run-1", Package: "libc", Version: "0.2.0", Target: "libc", Origin: "external", Outcome: OutcomeExecuted}); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	run, err := reopened.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if run.ID != "run-1" {
		t.Errorf("LastRun = %q, want run-1", run.ID)
	}

	outcomes, err := reopened.ListOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListOutcomes: %v", err)
	}
	if diff := cmp.Diff([]string{"libc"}, packages(outcomes), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("packages mismatch (-want +got):\n%s", diff)
	}
}

func packages(outcomes []TaskOutcome) []string {
	var names []string
	for _, o := range outcomes {
		names = append(names, o.Package)
	}
	return names
}
