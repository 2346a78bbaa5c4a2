// Package handle implements the generational object-arena index described
// in the design notes: every object identity is a (slot, generation) pair.
// Dereferencing checks the generation so a stale reference — one surviving
// past a destruct — reads back as "no such object" instead of following a
// dangling pointer. This replaces the original driver's inbound-reference
// scrubbing lists with an O(1) destruct.
package handle

// Handle names a slot in an Arena at a specific generation. The zero Handle
// is never valid (slot 0, generation 0 is reserved) so it doubles as the
// "no object" / integer-0-coerced value.
type Handle struct {
	Slot uint32
	Gen  uint32
}

// Valid reports whether h could possibly refer to a live entry; it does not
// consult any arena, so a Valid handle can still be stale.
func (h Handle) Valid() bool { return h.Slot != 0 || h.Gen != 0 }

// Arena is a generational slot allocator parameterized over the payload
// type it stores (Arena[*object.Object] is the driver's object table).
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
}

type slot[T any] struct {
	gen   uint32
	value T
	used  bool
}

// New returns an empty arena. Slot 0 is permanently reserved so that the
// zero Handle never aliases a real entry.
func New[T any]() *Arena[T] {
	a := &Arena[T]{slots: make([]slot[T], 1)}
	return a
}

// Alloc stores value in a free slot (reusing a freed one if available,
// bumping its generation) and returns the handle naming it.
func (a *Arena[T]) Alloc(value T) Handle {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = value
		s.used = true
		return Handle{Slot: idx, Gen: s.gen}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{gen: 1, value: value, used: true})
	return Handle{Slot: idx, Gen: 1}
}

// Get resolves h to its payload. ok is false if h is stale (the slot was
// freed and possibly reused) or out of range.
func (a *Arena[T]) Get(h Handle) (value T, ok bool) {
	if h.Slot == 0 || int(h.Slot) >= len(a.slots) {
		return value, false
	}
	s := &a.slots[h.Slot]
	if !s.used || s.gen != h.Gen {
		return value, false
	}
	return s.value, true
}

// Free retires the slot h names: its generation is bumped so every
// existing handle to it becomes stale, and the slot is returned to the
// free list for reuse. Reference numbers are never reused across handles
// because the generation differs even if the slot is.
func (a *Arena[T]) Free(h Handle) {
	if h.Slot == 0 || int(h.Slot) >= len(a.slots) {
		return
	}
	s := &a.slots[h.Slot]
	if !s.used || s.gen != h.Gen {
		return
	}
	var zero T
	s.value = zero
	s.used = false
	s.gen++
	a.free = append(a.free, h.Slot)
}

// Len reports the number of live entries (not counting the reserved slot 0
// or freed slots).
func (a *Arena[T]) Len() int {
	return len(a.slots) - 1 - len(a.free)
}

// Each calls fn for every live entry. fn must not Alloc or Free.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	for i := 1; i < len(a.slots); i++ {
		s := &a.slots[i]
		if s.used {
			fn(Handle{Slot: uint32(i), Gen: s.gen}, s.value)
		}
	}
}
