package value

import "sync/atomic"

// MapVal is the refcounted heap mapping backing a Mapping Value
// (spec.md §3 "Heap mapping"). Insertion order is not preserved; `keys`
// and `values` are produced together so they stay index-aligned for the
// duration of one call (spec.md §8 "Mapping round-trip").
type MapVal struct {
	refcount int32 // atomic
	entries  map[MapKey]Value
}

func NewMapping() *MapVal {
	return &MapVal{entries: make(map[MapKey]Value)}
}

func (m *MapVal) Len() int { return len(m.entries) }

func (m *MapVal) Ref() int32 { return atomic.LoadInt32(&m.refcount) }
func (m *MapVal) Retain()    { atomic.AddInt32(&m.refcount, 1) }

// Release mirrors ArrayVal.Release: at zero refs every stored value is
// itself released before the table is dropped.
func (m *MapVal) Release() {
	if atomic.AddInt32(&m.refcount, -1) > 0 {
		return
	}
	for _, v := range m.entries {
		releaseValue(v)
	}
	m.entries = nil
}

// Get returns the value stored at key and whether key is present. A
// missing key's l-value resolves to "insert 0 and return its cell", which
// is Set(key, Int(0)) followed by Get — see the VM's GLOBAL_REF/LOCAL_REF
// handling for mappings.
func (m *MapVal) Get(key Value) (Value, bool) {
	k, ok := key.Key()
	if !ok {
		return Int(0), false
	}
	v, found := m.entries[k]
	return v, found
}

// Set stores value at key, retaining it and releasing whatever was there
// before. Keys that aren't hashable (arrays, mappings) are refused.
func (m *MapVal) Set(key, val Value) bool {
	k, ok := key.Key()
	if !ok {
		return false
	}
	if old, found := m.entries[k]; found {
		releaseValue(old)
	}
	retainValue(val)
	m.entries[k] = val
	return true
}

// Delete implements map_delete(m, key): removes the entry if present.
func (m *MapVal) Delete(key Value) {
	k, ok := key.Key()
	if !ok {
		return
	}
	if old, found := m.entries[k]; found {
		releaseValue(old)
		delete(m.entries, k)
	}
}

// Member implements member(m, key): whether key is present.
func (m *MapVal) Member(key Value) bool {
	k, ok := key.Key()
	if !ok {
		return false
	}
	_, found := m.entries[k]
	return found
}

// KeysValues returns index-aligned keys and values slices, taken under a
// single pass so they describe the same snapshot of the table
// (spec.md §3, §8 "Mapping round-trip").
func (m *MapVal) KeysValues() (keys, vals []Value) {
	keys = make([]Value, 0, len(m.entries))
	vals = make([]Value, 0, len(m.entries))
	for k, v := range m.entries {
		keys = append(keys, k.Value())
		vals = append(vals, v)
	}
	return keys, vals
}

// Merge implements mapping `+`: a fresh mapping containing every entry of
// a and b, with b's value winning on key collision (spec.md §4.2 item 3).
func Merge(a, b *MapVal) *MapVal {
	out := NewMapping()
	for k, v := range a.entries {
		retainValue(v)
		out.entries[k] = v
	}
	for k, v := range b.entries {
		if old, found := out.entries[k]; found {
			releaseValue(old)
		}
		retainValue(v)
		out.entries[k] = v
	}
	return out
}

// MapSubtract implements mapping `-`: a fresh mapping containing a's
// entries minus every key present in b (spec.md §4.2 item 3).
func MapSubtract(a, b *MapVal) *MapVal {
	out := NewMapping()
	for k, v := range a.entries {
		if _, found := b.entries[k]; found {
			continue
		}
		retainValue(v)
		out.entries[k] = v
	}
	return out
}
