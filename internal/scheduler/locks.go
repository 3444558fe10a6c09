package scheduler

import (
	"slices"
	"sync"
)

// ResourceLockManager serializes units that write the same output artifact.
// Each path gets its own mutex, so units with disjoint outputs run concurrently.
type ResourceLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-artifact mutexes
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for path, creating it on first use.
func (r *ResourceLockManager) Lock(path string) {
	r.mu.Lock()
	l, exists := r.locks[path]
	if !exists {
		l = &sync.Mutex{}
		r.locks[path] = l
	}
	r.mu.Unlock()

	l.Lock()
}

// Unlock releases the mutex for path.
func (r *ResourceLockManager) Unlock(path string) {
	r.mu.Lock()
	l, exists := r.locks[path]
	r.mu.Unlock()

	if exists {
		l.Unlock()
	}
}

// LockAll acquires the locks for every distinct path in sorted order, so two
// units sharing outputs cannot deadlock.
func (r *ResourceLockManager) LockAll(paths []string) {
	for _, path := range lockOrder(paths) {
		r.Lock(path)
	}
}

// UnlockAll releases the locks taken by LockAll in reverse order.
func (r *ResourceLockManager) UnlockAll(paths []string) {
	order := lockOrder(paths)
	for i := len(order) - 1; i >= 0; i-- {
		r.Unlock(order[i])
	}
}

// lockOrder returns the sorted, de-duplicated paths. A unit listing an output
// twice must not lock it twice.
func lockOrder(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
