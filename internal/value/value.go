// Package value implements the driver's tagged-union Value type and its
// two refcounted heap containers (Array, Mapping), per spec.md §3. Object
// references are generational handles (internal/handle) rather than raw
// pointers: a stale reference reads back as integer 0 on use instead of
// risking a dangling dereference, per the design notes' arena rework of
// the original's inbound-reference-list scrubbing.
package value

import (
	"fmt"

	"github.com/limpingninja/ci2go/internal/handle"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Nil Kind = iota // integer 0 and "the empty value" share this representation
	Int
	String
	Object
	Array
	Mapping

	// L-value markers: pushed by LOCAL_L_VALUE/GLOBAL_L_VALUE and by
	// LOCAL_REF/GLOBAL_REF once they've addressed a cell directly.
	LocalLValue
	GlobalLValue
	ArrayCellLValue
	MapEntryLValue

	// Internal stack markers, never visible to script code directly.
	NumArgs
	ArraySize
	FuncPtr
	ExternFuncName
)

// LValue names one assignable storage location. Array/mapping cell
// l-values are addressed by (container handle, key) rather than by a raw
// element pointer, so that a subsequent resize never invalidates an
// l-value produced earlier in the same expression (spec.md §4.3).
type LValue struct {
	// Local/Global slot index, when Kind is LocalLValue/GlobalLValue.
	Slot int

	// Array/mapping cell addressing, when Kind is ArrayCellLValue /
	// MapEntryLValue.
	Arr *ArrayVal
	Map *MapVal
	Key Value
}

// Value is the interpreter's tagged union. It is copied by value, which
// is what the VM's stack
// does on every push/pop — there is no separate "value stack slot" type.
type Value struct {
	Kind Kind

	i    int64
	s    string
	obj  handle.Handle
	arr  *ArrayVal
	mp   *MapVal
	lv   LValue
	name string // FuncPtr / ExternFuncName payload
}

func Int(i int64) Value  { return Value{Kind: Int, i: i} }
func False() Value       { return Int(0) }
func True() Value        { return Int(1) }
func Str(s string) Value { return Value{Kind: String, s: s} }
func Obj(h handle.Handle) Value {
	if !h.Valid() {
		return Int(0)
	}
	return Value{Kind: Object, obj: h}
}
func ArrVal(a *ArrayVal) Value { return Value{Kind: Array, arr: a} }
func MapValOf(m *MapVal) Value { return Value{Kind: Mapping, mp: m} }
func NumArgsVal(n int) Value   { return Value{Kind: NumArgs, i: int64(n)} }
func ArraySizeVal(n int) Value { return Value{Kind: ArraySize, i: int64(n)} }
func FuncPtrVal(name string, n int) Value {
	return Value{Kind: FuncPtr, name: name, i: int64(n)}
}
func ExternFuncVal(name string) Value { return Value{Kind: ExternFuncName, name: name} }

func LocalLV(slot int) Value  { return Value{Kind: LocalLValue, lv: LValue{Slot: slot}} }
func GlobalLV(slot int) Value { return Value{Kind: GlobalLValue, lv: LValue{Slot: slot}} }
func ArrayCellLV(a *ArrayVal, key Value) Value {
	return Value{Kind: ArrayCellLValue, lv: LValue{Arr: a, Key: key}}
}
func MapEntryLV(m *MapVal, key Value) Value {
	return Value{Kind: MapEntryLValue, lv: LValue{Map: m, Key: key}}
}

func (v Value) IsNil() bool { return v.Kind == Nil || (v.Kind == Int && v.i == 0) }

// Truthy implements "truth = not integer 0" (spec.md §4.2 item 4); every
// other kind (string, object, array, mapping) is truthy regardless of
// contents, matching the original driver's conditional-jump semantics.
func (v Value) Truthy() bool {
	if v.Kind == Int || v.Kind == Nil {
		return v.AsInt() != 0
	}
	return true
}

func (v Value) AsInt() int64 {
	switch v.Kind {
	case Int, NumArgs, ArraySize, FuncPtr:
		return v.i
	default:
		return 0
	}
}

// AsString implements the "integer 0 reads as empty string" convention
// (spec.md §3): efuns and the `+` operator coerce a bare 0 to "".
func (v Value) AsString() string {
	switch v.Kind {
	case String:
		return v.s
	case ExternFuncName, FuncPtr:
		return v.name
	case Int:
		if v.i == 0 {
			return ""
		}
		return fmt.Sprintf("%d", v.i)
	default:
		return ""
	}
}

func (v Value) AsObject() (handle.Handle, bool) {
	if v.Kind != Object {
		return handle.Handle{}, false
	}
	return v.obj, true
}

func (v Value) AsArray() (*ArrayVal, bool) {
	if v.Kind != Array {
		return nil, false
	}
	return v.arr, true
}

func (v Value) AsMapping() (*MapVal, bool) {
	if v.Kind != Mapping {
		return nil, false
	}
	return v.mp, true
}

func (v Value) AsLValue() (LValue, bool) {
	switch v.Kind {
	case LocalLValue, GlobalLValue, ArrayCellLValue, MapEntryLValue:
		return v.lv, true
	default:
		return LValue{}, false
	}
}

func (v Value) FuncName() string { return v.name }

// Equal implements key/value equality "per the obvious per-variant rule"
// (spec.md §3): same kind and same payload; object equality is by handle
// (slot+generation), so a destructed-and-reallocated slot never compares
// equal to a stale handle to the old occupant.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		// Integer 0 and the "nil" sentinel compare equal to each other.
		if v.IsNil() && o.IsNil() {
			return true
		}
		return false
	}
	switch v.Kind {
	case Int, NumArgs, ArraySize:
		return v.i == o.i
	case String:
		return v.s == o.s
	case Object:
		return v.obj == o.obj
	case Array:
		return v.arr == o.arr
	case Mapping:
		return v.mp == o.mp
	case FuncPtr, ExternFuncName:
		return v.name == o.name
	default:
		return true
	}
}

// Key converts v into a hashable MapKey for use as a mapping key. Arrays,
// mappings, and l-values are not hashable and ok is false.
func (v Value) Key() (MapKey, bool) {
	switch v.Kind {
	case Int, NumArgs, ArraySize:
		return MapKey{kind: Int, i: v.i}, true
	case String:
		return MapKey{kind: String, s: v.s}, true
	case Object:
		return MapKey{kind: Object, obj: v.obj}, true
	case Nil:
		return MapKey{kind: Int, i: 0}, true
	default:
		return MapKey{}, false
	}
}

// MapKey is the comparable (and thus Go-map-usable) projection of Value
// used as Mapping storage keys.
type MapKey struct {
	kind Kind
	i    int64
	s    string
	obj  handle.Handle
}

// Value reconstructs the original Value held for this key.
func (k MapKey) Value() Value {
	switch k.kind {
	case Int:
		return Int(k.i)
	case String:
		return Str(k.s)
	case Object:
		return Obj(k.obj)
	default:
		return Int(0)
	}
}
