package driver

import "testing"

func TestCommandQueuePopOneDrainsOneEntryPerObject(t *testing.T) {
	q := newCommandQueue()
	q.Push(obj(1), "look")
	q.Push(obj(1), "north")
	q.Push(obj(2), "inventory")

	first := q.PopOne()
	if len(first) != 2 {
		t.Fatalf("got %d pending commands, want 2 (one per object)", len(first))
	}
	seen := map[handleKey]string{}
	for _, pc := range first {
		seen[handleKey{pc.Obj.Slot, pc.Obj.Gen}] = pc.Cmd
	}
	if seen[handleKey{1, 1}] != "look" {
		t.Fatalf("object 1's first queued command should run first, got %q", seen[handleKey{1, 1}])
	}
	if seen[handleKey{2, 1}] != "inventory" {
		t.Fatalf("object 2's only command should have run, got %q", seen[handleKey{2, 1}])
	}

	second := q.PopOne()
	if len(second) != 1 || second[0].Cmd != "north" {
		t.Fatalf("got %v, want exactly [north] left over for object 1", second)
	}
}

type handleKey struct{ slot, gen uint32 }

func TestCommandQueueDropClearsPendingWork(t *testing.T) {
	q := newCommandQueue()
	q.Push(obj(1), "a")
	q.Push(obj(1), "b")
	q.Drop(obj(1))
	if len(q.PopOne()) != 0 {
		t.Fatalf("dropped object's commands should not run")
	}
}

func TestDestructQueueDedupesAndDrainsOnce(t *testing.T) {
	q := newDestructQueue()
	q.Push(obj(1))
	q.Push(obj(1))
	q.Push(obj(2))

	drained := q.Drain()
	if len(drained) != 2 {
		t.Fatalf("got %d handles, want 2 (duplicate push deduped)", len(drained))
	}
	if len(q.Drain()) != 0 {
		t.Fatalf("second drain should be empty")
	}
}
