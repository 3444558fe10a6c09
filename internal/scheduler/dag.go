package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gammazero/toposort"
)

// DAG is the unit graph of one build. Edges run from a unit to the units
// whose outputs it needs. Units are reported in the order they were added,
// which for a build plan is cargo's own order.
type DAG struct {
	mu    sync.RWMutex
	units map[string]*Task
	ids   []string
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{units: make(map[string]*Task)}
}

// AddTask adds a unit. IDs must be unique and non-empty.
func (d *DAG) AddTask(task *Task) error {
	if task.ID == "" {
		return errors.New("unit has no ID")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.units[task.ID]; dup {
		return fmt.Errorf("unit %q added twice", task.ID)
	}
	d.units[task.ID] = task
	d.ids = append(d.ids, task.ID)
	return nil
}

// Validate checks that every dependency exists and the graph is acyclic,
// and returns the unit IDs in a valid build order.
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	edges := make([]toposort.Edge, 0, len(d.ids))
	for _, id := range d.ids {
		unit := d.units[id]
		if len(unit.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, dep := range unit.DependsOn {
			if _, ok := d.units[dep]; !ok {
				return nil, fmt.Errorf("unit %q depends on unknown unit %q", id, dep)
			}
			edges = append(edges, toposort.Edge{dep, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("unit graph has a cycle: %w", err)
	}

	order := make([]string, 0, len(d.ids))
	for _, node := range sorted {
		if id, ok := node.(string); ok {
			order = append(order, id)
		}
	}
	return order, nil
}

// Eligible returns copies of the pending units whose dependencies have all
// been compiled or skipped.
func (d *DAG) Eligible() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ready []*Task
	for _, id := range d.ids {
		unit := d.units[id]
		if unit.Status == TaskPending && d.depsDone(unit) {
			ready = append(ready, cloneTask(unit))
		}
	}
	return ready
}

// depsDone reports whether nothing blocks unit. Callers hold d.mu.
func (d *DAG) depsDone(unit *Task) bool {
	for _, dep := range unit.DependsOn {
		u, ok := d.units[dep]
		if !ok || !unblocks(u.Status) {
			return false
		}
	}
	return true
}

// unblocks reports whether a unit in status s lets its dependents start.
// A failed unit blocks them for good.
func unblocks(s TaskStatus) bool {
	return s == TaskCompleted || s == TaskSkipped
}

// update applies fn to the stored unit under the write lock.
func (d *DAG) update(id string, fn func(*Task)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	unit, ok := d.units[id]
	if !ok {
		return fmt.Errorf("unit %q not found", id)
	}
	fn(unit)
	return nil
}

// MarkRunning records that the unit's executor was started.
func (d *DAG) MarkRunning(id string) error {
	return d.update(id, func(u *Task) { u.Status = TaskRunning })
}

// MarkCompleted records that the real compiler ran and succeeded.
func (d *DAG) MarkCompleted(id string, result string) error {
	return d.update(id, func(u *Task) {
		u.Status = TaskCompleted
		u.Result = result
	})
}

// MarkSkipped records that the unit was satisfied by the marker at markerPath.
func (d *DAG) MarkSkipped(id string, markerPath string) error {
	return d.update(id, func(u *Task) {
		u.Status = TaskSkipped
		u.Result = markerPath
	})
}

// MarkFailed records the unit's error.
func (d *DAG) MarkFailed(id string, err error) error {
	return d.update(id, func(u *Task) {
		u.Status = TaskFailed
		u.Error = err
	})
}

// Get returns a copy of the unit.
func (d *DAG) Get(id string) (*Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	unit, ok := d.units[id]
	if !ok {
		return nil, false
	}
	return cloneTask(unit), true
}

// Progress counts units per status.
func (d *DAG) Progress() map[TaskStatus]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := make(map[TaskStatus]int, 6)
	for _, unit := range d.units {
		counts[unit.Status]++
	}
	return counts
}

// Len returns the number of units.
func (d *DAG) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.units)
}

func cloneTask(task *Task) *Task {
	cp := *task
	cp.DependsOn = slices.Clone(task.DependsOn)
	cp.WritesFiles = slices.Clone(task.WritesFiles)
	cp.Unit.Command.Args = slices.Clone(task.Unit.Command.Args)
	cp.Unit.Command.Env = slices.Clone(task.Unit.Command.Env)
	return &cp
}
