package scheduler

import (
	"context"
	"fmt"

	"github.com/aristath/cargo-build-deps/internal/compiler"
)

// Executor runs DAG tasks through a compiler executor with resource locking.
type Executor struct {
	dag     *DAG
	lockMgr *ResourceLockManager
	exec    compiler.Executor
}

// NewExecutor creates a new Executor.
func NewExecutor(dag *DAG, lockMgr *ResourceLockManager, exec compiler.Executor) *Executor {
	return &Executor{
		dag:     dag,
		lockMgr: lockMgr,
		exec:    exec,
	}
}

// ExecuteTask runs a single task and records its terminal status in the DAG.
// The returned error is the task's own failure; callers abort the run on it.
func (e *Executor) ExecuteTask(ctx context.Context, taskID string) error {
	task, exists := e.dag.Get(taskID)
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}

	if task.Status != TaskPending && task.Status != TaskEligible {
		return fmt.Errorf("task %q is not eligible (status: %s)", taskID, task.Status)
	}

	for _, depID := range task.DependsOn {
		dep, ok := e.dag.Get(depID)
		if !ok || !unblocks(dep.Status) {
			return fmt.Errorf("task %q has unresolved dependency %q", taskID, depID)
		}
	}

	if err := e.dag.MarkRunning(taskID); err != nil {
		return err
	}

	e.lockMgr.LockAll(task.WritesFiles)
	defer e.lockMgr.UnlockAll(task.WritesFiles)

	if err := ctx.Err(); err != nil {
		markErr := fmt.Errorf("context cancelled before execution: %w", err)
		_ = e.dag.MarkFailed(taskID, markErr)
		return markErr
	}

	outcome, err := e.exec.Exec(ctx, task.Unit)
	if err != nil {
		_ = e.dag.MarkFailed(taskID, err)
		return err
	}

	if outcome == compiler.OutcomeSkipped {
		// Units skipped without a compile invocation have no marker.
		marker, err := compiler.MarkerPath(task.Unit)
		if err != nil {
			marker = ""
		}
		_ = e.dag.MarkSkipped(taskID, marker)
		return nil
	}

	_ = e.dag.MarkCompleted(taskID, "")
	return nil
}

// NextEligible returns tasks that are ready to run.
func (e *Executor) NextEligible() []*Task {
	return e.dag.Eligible()
}
