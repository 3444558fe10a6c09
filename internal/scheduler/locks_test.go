package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Outputs of a local helper crate as listed in a build plan.
var helperOutputs = []string{
	"/t/debug/deps/libhelper-9f1c.rlib",
	"/t/debug/deps/libhelper-9f1c.rmeta",
}

// waitOrFail fails the test if done is not closed within d.
func waitOrFail(t *testing.T, done <-chan struct{}, d time.Duration, msg string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal(msg)
	}
}

func TestResourceLockManager_SharedOutputSerializes(t *testing.T) {
	mgr := NewResourceLockManager()
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	// Units writing the same rlib never overlap.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.LockAll(helperOutputs)
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			mgr.UnlockAll(helperOutputs)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitOrFail(t, done, 2*time.Second, "units sharing an output did not finish")

	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent holders of a shared output = %d, want 1", got)
	}
}

func TestResourceLockManager_DisjointOutputsOverlap(t *testing.T) {
	mgr := NewResourceLockManager()
	libcOutputs := []string{"/t/debug/deps/liblibc-77aa.rlib", "/t/debug/deps/liblibc-77aa.rmeta"}

	// Each unit holds its outputs until it sees the other holding theirs.
	var held sync.WaitGroup
	held.Add(2)
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, outputs := range [][]string{helperOutputs, libcOutputs} {
		wg.Add(1)
		go func(outputs []string) {
			defer wg.Done()
			mgr.LockAll(outputs)
			defer mgr.UnlockAll(outputs)
			held.Done()
			held.Wait()
		}(outputs)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	waitOrFail(t, done, time.Second, "units with disjoint outputs blocked each other")
}

func TestResourceLockManager_OpposingOrderDoesNotDeadlock(t *testing.T) {
	mgr := NewResourceLockManager()
	reversed := []string{helperOutputs[1], helperOutputs[0]}

	var wg sync.WaitGroup
	for _, outputs := range [][]string{helperOutputs, reversed} {
		wg.Add(1)
		go func(outputs []string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				mgr.LockAll(outputs)
				mgr.UnlockAll(outputs)
			}
		}(outputs)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitOrFail(t, done, 2*time.Second, "units listing outputs in opposite order deadlocked")
}

func TestResourceLockManager_DuplicateOutputs(t *testing.T) {
	mgr := NewResourceLockManager()
	outputs := []string{helperOutputs[0], helperOutputs[1], helperOutputs[0]}

	done := make(chan struct{})
	go func() {
		mgr.LockAll(outputs)
		mgr.UnlockAll(outputs)
		close(done)
	}()
	waitOrFail(t, done, 500*time.Millisecond, "LockAll deadlocked on a duplicated output")

	// Both locks must be free again
	mgr.LockAll(helperOutputs)
	mgr.UnlockAll(helperOutputs)
}

func TestResourceLockManager_UnitWithoutOutputs(t *testing.T) {
	mgr := NewResourceLockManager()

	// Build script runs list no outputs.
	mgr.LockAll(nil)
	mgr.UnlockAll(nil)
	if len(mgr.locks) != 0 {
		t.Errorf("expected no locks to be created, got %d", len(mgr.locks))
	}
}

func TestLockOrder(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, nil},
		{"rlib before rmeta", []string{"deps/liba.rmeta", "deps/liba.rlib"}, []string{"deps/liba.rlib", "deps/liba.rmeta"}},
		{"duplicates removed", []string{"c", "a", "b", "a"}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]string(nil), tt.paths...)
			if diff := cmp.Diff(tt.want, lockOrder(tt.paths)); diff != "" {
				t.Errorf("lockOrder mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(input, tt.paths, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("lockOrder modified its input (-want +got):\n%s", diff)
			}
		})
	}
}
