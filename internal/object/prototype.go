// Package object holds the compiled-program (Prototype) and per-instance
// (Object) data model from spec.md §3, plus the lifecycle transitions of
// §4.4. Bytecode itself is opaque here (internal/bytecode); this package
// is about layout and identity, not execution.
package object

import (
	"fmt"

	"github.com/limpingninja/ci2go/internal/bytecode"
	"github.com/limpingninja/ci2go/internal/handle"
)

// VarInfo describes one declared local or global's storage shape, enough
// for the VM to auto-allocate arrays/mappings on first use (spec.md §4.2
// item 2).
type VarInfo struct {
	Name      string
	IsArray   bool
	IsMapping bool
	// ArraySize is the product of declared dimensions; 0 combined with
	// Unlimited below means "grows from empty".
	ArraySize int
	Unlimited bool
}

// Function is one compiled function of a Prototype.
type Function struct {
	Name      string
	NumLocals int
	Locals    []VarInfo // indexed by local slot
	Code      []bytecode.Instr
}

// GSTEntry records, for one local global slot of a program, which ancestor
// program actually owns that variable's storage and at what local index
// within that ancestor (spec.md §4.1 "GST").
type GSTEntry struct {
	Owner      *Prototype
	OwnerLocal int
}

// Prototype is a compiled script file, shared by every clone of it
// (spec.md §3 "Prototype"). Recompilation produces a new *Prototype and
// never mutates an old one in place, so existing clones keep running the
// bytecode they were cloned with.
type Prototype struct {
	Path string

	// Functions callable on this program, keyed by name, plus a stable
	// ordered index (used by OpFuncCall's integer operand). The compiler
	// fills both with every ancestor's functions, base-most first, and this
	// program's own declarations overriding them in place.
	Functions    map[string]*Function
	FunctionList []*Function

	// Globals declared directly on this program (not counting ancestors).
	Globals []VarInfo

	// Inherits lists this program's direct parents, in declaration order
	// (used to resolve Name::f() by basename and ::f() by MRO position).
	Inherits []*Prototype

	// NumGlobals is the flattened slot count: every ancestor's globals
	// (deduplicated for diamonds) plus this program's own (spec.md §3
	// invariant on ancestor_map[Q].var_offset + Q.num_local_globals).
	NumGlobals int

	// GST maps this program's own local global slot (index into Globals)
	// to the ancestor program that actually owns the storage and that
	// ancestor's local index. A program's own globals map to themselves.
	GST []GSTEntry

	// AncestorMap maps each ancestor program (transitively, deduplicated)
	// to the base offset of its globals within a clone of this program.
	AncestorMap map[*Prototype]int

	// MRO is the linearized ancestor order used by ::f() (CALL_SUPER):
	// calling from a function defined in program P, ::f() looks for the
	// next definition of f after P in this list.
	MRO []*Prototype
}

func NewPrototype(path string) *Prototype {
	return &Prototype{
		Path:        path,
		Functions:   make(map[string]*Function),
		AncestorMap: make(map[*Prototype]int),
	}
}

// AddFunction registers fn, assigning it the next function index.
func (p *Prototype) AddFunction(fn *Function) int {
	idx := len(p.FunctionList)
	p.FunctionList = append(p.FunctionList, fn)
	p.Functions[fn.Name] = fn
	return idx
}

// FunctionByIndex resolves OpFuncCall/OpExternFunc's integer operand.
func (p *Prototype) FunctionByIndex(i int) (*Function, error) {
	if i < 0 || i >= len(p.FunctionList) {
		return nil, fmt.Errorf("object: function index %d out of range in %s", i, p.Path)
	}
	return p.FunctionList[i], nil
}

// ResolveGlobal implements the critical multiple-inheritance indirection
// of spec.md §4.2 "Global resolution": a function from program Q executing
// on a clone of P (P inherits Q, possibly transitively) resolves its own
// local slot r through Q's GST to find the true owning program O and O's
// local index, then through P's ancestor map to find O's base offset
// inside the clone. Returns the absolute slot index into Object.Globals.
func ResolveGlobal(definingProgram *Prototype, localSlot int, cloneProto *Prototype) (int, error) {
	if localSlot < 0 || localSlot >= len(definingProgram.GST) {
		return 0, fmt.Errorf("object: global slot %d out of range in %s", localSlot, definingProgram.Path)
	}
	entry := definingProgram.GST[localSlot]
	base, ok := cloneProto.AncestorMap[entry.Owner]
	if !ok {
		return 0, fmt.Errorf("object: %s is not an ancestor of %s", entry.Owner.Path, cloneProto.Path)
	}
	return base + entry.OwnerLocal, nil
}

// Handle is the stable, generational identity of an Object — spec.md's
// "stable integer reference number" realized as (slot, generation) per the
// design notes, instead of a raw pointer plus inbound-reference scrubbing.
type Handle = handle.Handle
