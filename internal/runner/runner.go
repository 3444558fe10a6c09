package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/cargo-build-deps/internal/compiler"
	"github.com/aristath/cargo-build-deps/internal/events"
	"github.com/aristath/cargo-build-deps/internal/persistence"
	"github.com/aristath/cargo-build-deps/internal/scheduler"
)

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID     string
	Package    string
	Outcome    string // persistence.Outcome* value
	MarkerPath string
	Duration   time.Duration
	Error      error
}

// Config configures the parallel runner.
type Config struct {
	Jobs     int                   // Max concurrent units (default 4)
	RunID    string                // History run identifier
	Bus      *events.EventBus      // Optional event bus (nil disables)
	Recorder *persistence.Recorder // Optional history recorder (nil disables)
	Logger   *slog.Logger
}

// ParallelRunner executes DAG units concurrently. The first failing unit
// cancels the rest and its error is returned.
type ParallelRunner struct {
	config   Config
	dag      *scheduler.DAG
	executor *scheduler.Executor
	mu       sync.Mutex
	results  []TaskResult
}

// NewParallelRunner creates a new parallel runner.
func NewParallelRunner(cfg Config, dag *scheduler.DAG, lockMgr *scheduler.ResourceLockManager, exec compiler.Executor) *ParallelRunner {
	if cfg.Jobs <= 0 {
		cfg.Jobs = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ParallelRunner{
		config:   cfg,
		dag:      dag,
		executor: scheduler.NewExecutor(dag, lockMgr, exec),
		results:  []TaskResult{},
	}
}

// Run executes all units in dependency order with bounded concurrency.
func (r *ParallelRunner) Run(ctx context.Context) ([]TaskResult, error) {
	if _, err := r.dag.Validate(); err != nil {
		return nil, err
	}

	r.publishProgress()

	for {
		if err := ctx.Err(); err != nil {
			return r.results, err
		}

		eligible := r.executor.NextEligible()
		if len(eligible) == 0 {
			break
		}

		// Execute wave of units with bounded concurrency
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.Jobs)

		for _, task := range eligible {
			t := task
			g.Go(func() error {
				return r.executeTask(gctx, t)
			})
		}

		if err := g.Wait(); err != nil {
			return r.results, err
		}
	}

	// Anything not terminal here was never reachable.
	progress := r.dag.Progress()
	if stuck := progress[scheduler.TaskPending] + progress[scheduler.TaskEligible]; stuck > 0 {
		return r.results, fmt.Errorf("%d units were never scheduled", stuck)
	}

	return r.results, nil
}

// executeTask runs one unit and reports its outcome.
func (r *ParallelRunner) executeTask(ctx context.Context, task *scheduler.Task) error {
	pkg := task.Unit.Package
	r.config.Bus.Publish(events.TaskStartedEvent{
		ID:        task.ID,
		Name:      task.Name,
		Package:   pkg.Name,
		Origin:    pkg.Origin.String(),
		Timestamp: time.Now(),
	})

	start := time.Now()
	execErr := r.executor.ExecuteTask(ctx, task.ID)
	duration := time.Since(start)

	result := TaskResult{
		TaskID:   task.ID,
		Package:  pkg.Name,
		Duration: duration,
		Error:    execErr,
	}

	final, _ := r.dag.Get(task.ID)
	switch {
	case execErr != nil:
		result.Outcome = persistence.OutcomeFailed
		r.config.Logger.Error("unit failed", "task", task.Name, "error", execErr)
		r.config.Bus.Publish(events.TaskFailedEvent{ID: task.ID, Err: execErr, Duration: duration, Timestamp: time.Now()})
	case final != nil && final.Status == scheduler.TaskSkipped:
		result.Outcome = persistence.OutcomeSkipped
		result.MarkerPath = final.Result
		r.config.Logger.Debug("unit skipped", "task", task.Name, "marker", final.Result)
		r.config.Bus.Publish(events.TaskSkippedEvent{ID: task.ID, Package: pkg.Name, MarkerPath: final.Result, Timestamp: time.Now()})
	default:
		result.Outcome = persistence.OutcomeExecuted
		r.config.Logger.Debug("unit executed", "task", task.Name, "duration", duration)
		r.config.Bus.Publish(events.TaskExecutedEvent{ID: task.ID, Duration: duration, Timestamp: time.Now()})
	}

	r.recordResult(result)
	r.config.Recorder.Record(context.WithoutCancel(ctx), persistence.TaskOutcome{
		RunID:      r.config.RunID,
		Package:    pkg.Name,
		Version:    pkg.Version,
		Target:     task.Unit.Target.Name,
		Origin:     pkg.Origin.String(),
		Outcome:    result.Outcome,
		MarkerPath: result.MarkerPath,
		Error:      errString(execErr),
		Duration:   duration,
	})
	r.publishProgress()

	return execErr
}

// publishProgress publishes a snapshot of DAG status counts.
func (r *ParallelRunner) publishProgress() {
	if r.config.Bus == nil {
		return
	}
	p := r.dag.Progress()
	r.config.Bus.Publish(events.DAGProgressEvent{
		Total:     r.dag.Len(),
		Executed:  p[scheduler.TaskCompleted],
		Skipped:   p[scheduler.TaskSkipped],
		Running:   p[scheduler.TaskRunning],
		Failed:    p[scheduler.TaskFailed],
		Pending:   p[scheduler.TaskPending] + p[scheduler.TaskEligible],
		Timestamp: time.Now(),
	})
}

// recordResult appends a task result in a thread-safe manner.
func (r *ParallelRunner) recordResult(result TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
