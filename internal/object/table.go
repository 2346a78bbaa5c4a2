package object

import (
	"sort"

	"github.com/limpingninja/ci2go/internal/handle"
	"github.com/limpingninja/ci2go/internal/value"
)

// Table is the driver's object arena: every live clone is reachable by its
// Handle, and destructing one is O(1) — generation bump plus slot
// recycling — rather than walking an inbound-reference list to scrub
// dangling pointers, per the design notes' arena rework.
type Table struct {
	arena *handle.Arena[*Object]
}

func NewTable() *Table {
	return &Table{arena: handle.New[*Object]()}
}

// Clone allocates a new Object for proto, as if just returned from
// clone(path) before init() has run (spec.md §4.4).
func (t *Table) Clone(proto *Prototype) (Handle, *Object) {
	obj := NewObject(proto)
	h := t.arena.Alloc(obj)
	obj.Ref = h
	return h, obj
}

// Get resolves h to its live Object. ok is false for a stale or garbage
// handle, which is what lets every read of a destructed object coerce to
// integer 0 (spec.md §3 invariant).
func (t *Table) Get(h Handle) (*Object, bool) {
	obj, ok := t.arena.Get(h)
	if !ok || obj.Garbage() {
		return nil, false
	}
	return obj, true
}

// Each visits every live, non-garbage object.
func (t *Table) Each(fn func(Handle, *Object)) {
	t.arena.Each(func(h Handle, obj *Object) {
		if !obj.Garbage() {
			fn(h, obj)
		}
	})
}

// Destruct performs the end-of-tick destruct processing for h (spec.md
// §4.4): releases every global's reference, unlinks the object from its
// container, clears any interactive/input-redirect state, and retires the
// slot so the reference number is never reused (spec.md §8 "Destruct
// safety" — the generation bump makes every existing Handle to it stale).
func (t *Table) Destruct(h Handle) {
	obj, ok := t.Get(h)
	if !ok {
		return
	}
	obj.State = StateDestructing

	for i, g := range obj.Globals {
		value.Release(g)
		obj.Globals[i] = value.Int(0)
	}

	if obj.Location.Valid() {
		t.removeFromContents(obj.Location, h)
	}
	for _, child := range obj.Contents {
		if c, ok := t.Get(child); ok {
			c.Location = Handle{}
		}
	}

	obj.State = StateDestroyed
	t.arena.Free(h)
}

// Move implements move_object(obj, dest): unlink from the current
// container (if any) and link into dest's contents.
func (t *Table) Move(h, dest Handle) bool {
	obj, ok := t.Get(h)
	if !ok {
		return false
	}
	if obj.Location.Valid() {
		t.removeFromContents(obj.Location, h)
	}
	if !dest.Valid() {
		obj.Location = Handle{}
		return true
	}
	destObj, ok := t.Get(dest)
	if !ok {
		return false
	}
	destObj.Contents = append(destObj.Contents, h)
	obj.Location = dest
	return true
}

func (t *Table) removeFromContents(loc, h Handle) {
	container, ok := t.Get(loc)
	if !ok {
		return
	}
	for i, c := range container.Contents {
		if c == h {
			container.Contents = append(container.Contents[:i], container.Contents[i+1:]...)
			return
		}
	}
}

// Handles returns every live handle, ordered by slot, so that
// next_object(obj) (spec.md §6) has a stable total order to walk without
// the caller needing its own bookkeeping.
func (t *Table) Handles() []Handle {
	var out []Handle
	t.Each(func(h Handle, _ *Object) { out = append(out, h) })
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// NextObject implements next_object(obj) (spec.md §6): the first live
// handle with a slot greater than h's, or the zero Handle at the end of
// the list. A zero h starts the walk from the beginning.
func (t *Table) NextObject(h Handle) Handle {
	handles := t.Handles()
	if !h.Valid() {
		if len(handles) == 0 {
			return Handle{}
		}
		return handles[0]
	}
	for _, cand := range handles {
		if cand.Slot > h.Slot {
			return cand
		}
	}
	return Handle{}
}

// Present implements present(id, where): the first entry in where's
// contents whose "id" verb/name matches. The spec leaves id-matching to
// script-level conventions (a verb or attribute), so this walks contents
// and calls match for each candidate, letting the caller (efun layer)
// supply the actual identity check via a call back into the VM.
func (t *Table) Present(where Handle, match func(Handle) bool) (Handle, bool) {
	container, ok := t.Get(where)
	if !ok {
		return Handle{}, false
	}
	for _, c := range container.Contents {
		if match(c) {
			return c, true
		}
	}
	return Handle{}, false
}
