package scheduler

import "github.com/aristath/cargo-build-deps/internal/compiler"

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies
	TaskEligible                    // All dependencies resolved, ready to run
	TaskRunning                     // Currently executing
	TaskCompleted                   // Real command ran successfully
	TaskFailed                      // Finished with error
	TaskSkipped                     // Not compiled; satisfied by a fingerprint marker
)

// String returns a lowercase status name.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskEligible:
		return "eligible"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Task represents one compile unit in the DAG.
type Task struct {
	ID          string        // Unique identifier
	Name        string        // Human-readable name (e.g., "serde v1.0.0 (lib)")
	Unit        compiler.Task // What the compiler executor receives
	DependsOn   []string      // Task IDs this task depends on
	WritesFiles []string      // Output files (for resource locking)
	Status      TaskStatus
	Result      string // Marker path for skipped units, empty otherwise
	Error       error  // Error if failed
}
