package registry

import (
	"testing"

	"github.com/ahriroot/watchmen/internal/task"
)

func TestAddAndGet(t *testing.T) {
	r := New()
	if err := r.Add(&task.Task{ID: 1, Name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := r.Get(1)
	if !ok || p.Task.Name != "a" {
		t.Fatalf("Get(1) = %v, %v", p, ok)
	}
	if _, ok := r.Get(2); ok {
		t.Fatal("Get(2) should not find a missing entry")
	}
}

func TestAddDuplicateID(t *testing.T) {
	r := New()
	if err := r.Add(&task.Task{ID: 1, Name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Add(&task.Task{ID: 1, Name: "b"})
	if _, ok := err.(ErrExists); !ok {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 1, Name: "a"})
	r.Remove(1)
	if _, ok := r.Get(1); ok {
		t.Fatal("expected entry to be removed")
	}
	r.Remove(99) // no-op, must not panic
}

func TestSelectRequiresNonEmptyFlag(t *testing.T) {
	r := New()
	if _, err := r.Select(task.Flag{}); err == nil {
		t.Fatal("expected error for empty selector")
	}
}

func TestSelectByIDNameGroup(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 1, Name: "worker-1", Group: "batch"})
	_ = r.Add(&task.Task{ID: 2, Name: "worker-2", Group: "batch"})
	_ = r.Add(&task.Task{ID: 3, Name: "other", Group: "misc"})

	ids, err := r.Select(task.Flag{Group: "batch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("group select = %v, want [1 2]", ids)
	}

	ids, err = r.Select(task.Flag{Name: "other"})
	if err != nil || len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("name select = %v, err = %v", ids, err)
	}
}

func TestAllSortedOrder(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 3, Name: "c"})
	_ = r.Add(&task.Task{ID: 1, Name: "a"})
	_ = r.Add(&task.Task{ID: 2, Name: "b"})
	ids := r.All()
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("All() = %v, want sorted [1 2 3]", ids)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 1, Name: "a", Args: []string{"x"}})
	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 task, got %d", len(snap))
	}
	snap[0].Args[0] = "mutated"

	live, _ := r.Get(1)
	if live.Task.Args[0] != "x" {
		t.Error("mutating a Snapshot copy leaked into the live registry entry")
	}
}

func TestViewMissing(t *testing.T) {
	r := New()
	if r.View(42) != nil {
		t.Fatal("View of a missing id should return nil")
	}
}

func TestMutate(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 1, Status: task.StatusAdded})
	ok := r.Mutate(1, func(p *Process) { p.Task.Status = task.StatusRunning })
	if !ok {
		t.Fatal("Mutate on existing id should return true")
	}
	p, _ := r.Get(1)
	if p.Task.Status != task.StatusRunning {
		t.Fatalf("status = %s, want running", p.Task.Status)
	}
	if r.Mutate(99, func(p *Process) {}) {
		t.Fatal("Mutate on missing id should return false")
	}
}

func TestDoneAndMarkDone(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 1})
	p, _ := r.Get(1)

	first := p.Done()
	select {
	case <-first:
		t.Fatal("done channel should not be closed yet")
	default:
	}

	p.MarkDone()
	select {
	case <-first:
	default:
		t.Fatal("first done channel should be closed after MarkDone")
	}

	second := p.Done()
	select {
	case <-second:
		t.Fatal("fresh done channel should not already be closed")
	default:
	}
}

func TestWithReadLock(t *testing.T) {
	r := New()
	_ = r.Add(&task.Task{ID: 1})
	_ = r.Add(&task.Task{ID: 2})
	var n int
	r.WithReadLock(func(entries map[int64]*Process) { n = len(entries) })
	if n != 2 {
		t.Fatalf("WithReadLock saw %d entries, want 2", n)
	}
}
