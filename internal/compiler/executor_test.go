package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeRunner records commands instead of spawning processes.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Command
	err   error
	count atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) error {
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	return f.err
}

func scenarioTask(depDir string, origin Origin) Task {
	return Task{
		Package: PackageID{Name: "foo", Version: "0.1.0", Origin: origin},
		Target:  Target{Name: "foo", Kind: "lib", Mode: "build"},
		Command: Command{
			Program: "rustc",
			Args: []string{
				"--crate-name", "foo",
				"--crate-type", "lib",
				"extra-filename=-abc123",
				"dependency=" + depDir,
			},
		},
	}
}

func TestBuildDepsExecutor_LocalPathSkipsAndWritesMarker(t *testing.T) {
	depDir := filepath.Join(t.TempDir(), "target", "debug", "deps")
	runner := &fakeRunner{}
	var notices bytes.Buffer
	exec := NewBuildDepsExecutor(runner, &notices, nil)

	outcome, err := exec.Exec(context.Background(), scenarioTask(depDir, OriginLocalPath))
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected OutcomeSkipped, got %v", outcome)
	}
	if n := runner.count.Load(); n != 0 {
		t.Errorf("expected real command not to run, ran %d times", n)
	}
	if notices.String() != "Skipping foo\n" {
		t.Errorf("unexpected notice: %q", notices.String())
	}

	marker := depDir + "/../.fingerprint/foo-abc123/dep-lib-foo-abc123"
	info, err := os.Stat(marker)
	if err != nil {
		t.Fatalf("marker missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected zero-byte marker, got %d bytes", info.Size())
	}
}

func TestBuildDepsExecutor_ExternalRunsCommand(t *testing.T) {
	depDir := filepath.Join(t.TempDir(), "deps")
	runner := &fakeRunner{}
	var notices bytes.Buffer
	exec := NewBuildDepsExecutor(runner, &notices, nil)

	task := scenarioTask(depDir, OriginExternal)
	outcome, err := exec.Exec(context.Background(), task)
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if outcome != OutcomeExecuted {
		t.Errorf("expected OutcomeExecuted, got %v", outcome)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(runner.calls))
	}
	if got := runner.calls[0]; got.Program != "rustc" || len(got.Args) != len(task.Command.Args) {
		t.Errorf("command was not forwarded verbatim: %+v", got)
	}
	if notices.Len() != 0 {
		t.Errorf("expected no notice, got %q", notices.String())
	}
	if _, err := os.Stat(filepath.Dir(depDir) + "/.fingerprint"); !os.IsNotExist(err) {
		t.Errorf("expected no fingerprint dir, stat err: %v", err)
	}
}

func TestBuildDepsExecutor_ExternalForwardsError(t *testing.T) {
	runErr := errors.New("exit status 101")
	runner := &fakeRunner{err: runErr}
	exec := NewBuildDepsExecutor(runner, nil, nil)

	_, err := exec.Exec(context.Background(), scenarioTask(t.TempDir(), OriginExternal))
	if !errors.Is(err, runErr) {
		t.Errorf("expected command error to be forwarded, got: %v", err)
	}
}

func TestBuildDepsExecutor_MissingCrateTypeIsFatal(t *testing.T) {
	root := t.TempDir()
	depDir := filepath.Join(root, "deps")
	runner := &fakeRunner{}
	exec := NewBuildDepsExecutor(runner, nil, nil)

	task := scenarioTask(depDir, OriginLocalPath)
	task.Command.Args = []string{"--crate-name", "foo", "extra-filename=-abc123", "dependency=" + depDir}

	_, err := exec.Exec(context.Background(), task)
	if !errors.Is(err, ErrMalformedInvocation) {
		t.Fatalf("expected ErrMalformedInvocation, got: %v", err)
	}
	if runner.count.Load() != 0 {
		t.Error("real command must not run for a local-path package")
	}
	if _, err := os.Stat(filepath.Join(root, ".fingerprint")); !os.IsNotExist(err) {
		t.Errorf("expected no marker to be created, stat err: %v", err)
	}
}

func TestBuildDepsExecutor_MissingDependencyDirIsFatal(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewBuildDepsExecutor(runner, nil, nil)

	task := scenarioTask("", OriginLocalPath)
	task.Command.Args = []string{"--crate-name", "foo", "--crate-type", "lib", "extra-filename=-abc123"}

	_, err := exec.Exec(context.Background(), task)
	if !errors.Is(err, ErrMalformedInvocation) {
		t.Fatalf("expected ErrMalformedInvocation, got: %v", err)
	}
	if runner.count.Load() != 0 {
		t.Error("real command must not run for a local-path package")
	}
	if _, err := MarkerPath(task); !errors.Is(err, ErrMalformedInvocation) {
		t.Errorf("MarkerPath() error = %v, want ErrMalformedInvocation", err)
	}
}

func TestBuildDepsExecutor_ExistingMarker(t *testing.T) {
	depDir := filepath.Join(t.TempDir(), "deps")
	exec := NewBuildDepsExecutor(&fakeRunner{}, nil, nil)
	task := scenarioTask(depDir, OriginLocalPath)

	for i := 0; i < 2; i++ {
		if _, err := exec.Exec(context.Background(), task); err != nil {
			t.Fatalf("Exec() run %d error: %v", i, err)
		}
	}

	info, err := os.Stat(depDir + "/../.fingerprint/foo-abc123/dep-lib-foo-abc123")
	if err != nil {
		t.Fatalf("marker missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected zero-byte marker, got %d", info.Size())
	}
}

func TestBuildDepsExecutor_ConcurrentTasks(t *testing.T) {
	depDir := filepath.Join(t.TempDir(), "deps")
	runner := &fakeRunner{}
	exec := NewBuildDepsExecutor(runner, nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			origin := OriginLocalPath
			if i%2 == 0 {
				origin = OriginExternal
			}
			// Same path for every local task: creation must stay idempotent.
			if _, err := exec.Exec(context.Background(), scenarioTask(depDir, origin)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Exec() error: %v", err)
	}
	if n := runner.count.Load(); n != 8 {
		t.Errorf("expected 8 external commands, got %d", n)
	}
}

func TestDefaultExecutor_AlwaysRuns(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewDefaultExecutor(runner)

	outcome, err := exec.Exec(context.Background(), scenarioTask(t.TempDir(), OriginLocalPath))
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if outcome != OutcomeExecuted {
		t.Errorf("expected OutcomeExecuted, got %v", outcome)
	}
	if runner.count.Load() != 1 {
		t.Errorf("expected command to run once, ran %d times", runner.count.Load())
	}
}

func TestOriginAndOutcomeStrings(t *testing.T) {
	if OriginLocalPath.String() != "local-path" || OriginExternal.String() != "external" {
		t.Errorf("unexpected origin names: %s, %s", OriginLocalPath, OriginExternal)
	}
	if OutcomeSkipped.String() != "skipped" || OutcomeExecuted.String() != "executed" {
		t.Errorf("unexpected outcome names: %s, %s", OutcomeSkipped, OutcomeExecuted)
	}
}
