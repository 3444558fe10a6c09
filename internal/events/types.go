package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicDAG  = "dag"
)

// Event type constants
const (
	EventTypeTaskStarted  = "task.started"
	EventTypeTaskExecuted = "task.executed"
	EventTypeTaskSkipped  = "task.skipped"
	EventTypeTaskFailed   = "task.failed"
	EventTypeDAGProgress  = "dag.progress"
)

// TaskStartedEvent is published when a unit is dispatched.
type TaskStartedEvent struct {
	ID        string
	Name      string
	Package   string
	Origin    string // "local-path" or "external"
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskExecutedEvent is published when the real compiler finished successfully.
type TaskExecutedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskExecutedEvent) EventType() string { return EventTypeTaskExecuted }
func (e TaskExecutedEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published when a unit was skipped and its marker written.
type TaskSkippedEvent struct {
	ID         string
	Package    string
	MarkerPath string // Empty for units with no compile invocation
	Timestamp  time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a unit fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// DAGProgressEvent is published when DAG progress changes.
type DAGProgressEvent struct {
	Total     int
	Executed  int
	Skipped   int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e DAGProgressEvent) EventType() string { return EventTypeDAGProgress }
func (e DAGProgressEvent) TaskID() string    { return "" }
