package driver

import (
	"sort"

	"github.com/limpingninja/ci2go/internal/object"
)

// commandQueue is the per-object FIFO of pending commands (spec.md §4.7
// step 5: "Dequeue and run one queued command per interactive object").
// Keyed by object handle rather than stored on object.Object itself, so
// the object model stays free of driver-loop bookkeeping.
type commandQueue struct {
	byObj map[object.Handle][]string
}

func newCommandQueue() *commandQueue {
	return &commandQueue{byObj: make(map[object.Handle][]string)}
}

// Push appends cmd to obj's queue, implementing the input-path half of
// spec.md §4.6 ("otherwise the line is queued as a command on the owner
// object") and the `command(obj, str)` efun's direct-enqueue form.
func (q *commandQueue) Push(obj object.Handle, cmd string) {
	q.byObj[obj] = append(q.byObj[obj], cmd)
}

// PopOne drains exactly one command per object that has one queued,
// returning them as (obj, cmd) pairs in a stable handle-slot order so a
// tick's command processing is deterministic.
func (q *commandQueue) PopOne() []pendingCommand {
	var out []pendingCommand
	for obj, cmds := range q.byObj {
		if len(cmds) == 0 {
			continue
		}
		out = append(out, pendingCommand{Obj: obj, Cmd: cmds[0]})
		if len(cmds) == 1 {
			delete(q.byObj, obj)
		} else {
			q.byObj[obj] = cmds[1:]
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Obj.Slot < out[j].Obj.Slot })
	return out
}

type pendingCommand struct {
	Obj object.Handle
	Cmd string
}

// Drop clears a destructed or disconnected object's queue so stale
// commands never execute against a handle that will shortly be stale.
func (q *commandQueue) Drop(obj object.Handle) {
	delete(q.byObj, obj)
}

// destructQueue is the set of objects awaiting end-of-tick destruction
// (spec.md §4.4 "destruct(obj) appends to the destruct queue"; §4.7 step
// 7 "Drain the destruct queue").
type destructQueue struct {
	pending []object.Handle
	seen    map[object.Handle]bool
}

func newDestructQueue() *destructQueue {
	return &destructQueue{seen: make(map[object.Handle]bool)}
}

func (q *destructQueue) Push(h object.Handle) {
	if q.seen[h] {
		return
	}
	q.seen[h] = true
	q.pending = append(q.pending, h)
}

// Drain returns every queued handle and empties the queue.
func (q *destructQueue) Drain() []object.Handle {
	out := q.pending
	q.pending = nil
	q.seen = make(map[object.Handle]bool)
	return out
}
