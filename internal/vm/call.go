package vm

import (
	"fmt"

	"github.com/limpingninja/ci2go/internal/bytecode"
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
)

// popArgCount pops the NUM_ARGS marker a call opcode expects immediately
// below it on the stack (spec.md §4.2 category 5): the compiler emits
// OpNumArgs right before every call, so the call opcode always finds an
// argument count on top rather than needing a fixed arity baked in.
func (ex *execState) popArgCount() (int, error) {
	v, err := ex.pop()
	if err != nil {
		return 0, err
	}
	if v.Kind != value.NumArgs {
		return 0, &RuntimeError{Message: "call opcode found no argument-count marker", Frame: ex.frame}
	}
	return int(v.AsInt()), nil
}

func (ex *execState) popArgs(n int) ([]value.Value, error) {
	args := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := ex.popResolved()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// execCall dispatches the five function-call opcode shapes (spec.md §4.2
// category 5): a direct same-object call by index, an explicit call into
// one inherited program, the MRO-walking `::f()`/`Name::f()` forms, and
// the late-bound-by-name form that resolves and caches itself in place.
func (ex *execState) execCall(instr bytecode.Instr) (value.Value, error) {
	n, err := ex.popArgCount()
	if err != nil {
		return value.Int(0), err
	}
	args, err := ex.popArgs(n)
	if err != nil {
		return value.Int(0), err
	}

	obj := ex.frame.Obj
	objH := ex.frame.ObjH

	switch instr.Op {
	case bytecode.OpFuncCall:
		fn, err := obj.Proto.FunctionByIndex(instr.A)
		if err != nil {
			return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		return ex.ip.Call(obj, objH, obj.Proto, fn, args)

	case bytecode.OpExternFunc:
		defining := ex.frame.DefiningProgram
		if instr.A < 0 || instr.A >= len(defining.Inherits) {
			return value.Int(0), &RuntimeError{Message: "inherit index out of range", Frame: ex.frame}
		}
		target := defining.Inherits[instr.A]
		fn, err := target.FunctionByIndex(instr.B)
		if err != nil {
			return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		return ex.ip.Call(obj, objH, target, fn, args)

	case bytecode.OpCallSuper:
		target, fn, err := resolveSuper(ex.frame.DefiningProgram, instr.Name)
		if err != nil {
			return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		return ex.ip.Call(obj, objH, target, fn, args)

	case bytecode.OpCallParent:
		target, fn, err := resolveNamedParent(obj.Proto, instr.StrVal, instr.Name)
		if err != nil {
			return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		return ex.ip.Call(obj, objH, target, fn, args)

	case bytecode.OpFuncName:
		target, fn, idx, err := resolveByName(obj.Proto, instr.Name)
		if err != nil {
			return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		// Cache the resolution in place only when the call site itself
		// belongs exclusively to this concrete Prototype: ex.fn.Code's
		// backing array is shared with every clone that inherits the
		// defining program unmodified, so rewriting it to a bare
		// OpFuncCall{A: idx} is only safe when that idx is guaranteed
		// valid for every clone that will ever execute this call site —
		// i.e. when the call site's own DefiningProgram is obj.Proto, not
		// some shared ancestor two sibling prototypes both inherit. A
		// shared ancestor's call site stays OpFuncName forever so each
		// clone re-resolves against its own FunctionList (spec.md §4.2
		// "late-bound call by name; caches into FuncCall/ExternFunc on
		// first resolution" — caching is per concrete-Prototype call site,
		// not per resolved callee).
		if target == obj.Proto && ex.frame.DefiningProgram == obj.Proto && ex.pc >= 0 && ex.pc < len(ex.fn.Code) {
			ex.fn.Code[ex.pc] = bytecode.Instr{Op: bytecode.OpFuncCall, Line: instr.Line, A: idx}
		}
		return ex.ip.Call(obj, objH, target, fn, args)

	default:
		return value.Int(0), &RuntimeError{Message: "unimplemented call opcode", Frame: ex.frame}
	}
}

// resolveSuper implements `::f()` (spec.md §4.2, CALL_SUPER): the next
// definition of name after definingProgram in the clone's linearized MRO.
func resolveSuper(definingProgram *object.Prototype, name string) (*object.Prototype, *object.Function, error) {
	mro := definingProgram.MRO
	start := 0
	for i, p := range mro {
		if p == definingProgram {
			start = i + 1
			break
		}
	}
	for _, p := range mro[start:] {
		if fn, ok := p.Functions[name]; ok {
			return p, fn, nil
		}
	}
	return nil, nil, fmt.Errorf("object: no ancestor definition of %q above %s", name, definingProgram.Path)
}

// resolveNamedParent implements `Name::f()`: a program in cloneProto's
// AncestorMap whose path's basename matches parentName and that has f.
// The search covers every entry of that map, cloneProto itself and
// indirect ancestors included, not only direct inherits; when several
// entries match, which one is used is not defined (map order).
func resolveNamedParent(cloneProto *object.Prototype, parentName, funcName string) (*object.Prototype, *object.Function, error) {
	for p := range cloneProto.AncestorMap {
		if basename(p.Path) == parentName {
			if fn, ok := p.Functions[funcName]; ok {
				return p, fn, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("object: no parent %q defining %q", parentName, funcName)
}

// resolveByName implements dynamic dispatch by name: the object's own
// (most-derived) program wins if it defines the function directly,
// otherwise the first ancestor in MRO order that does.
func resolveByName(cloneProto *object.Prototype, name string) (*object.Prototype, *object.Function, int, error) {
	if fn, ok := cloneProto.Functions[name]; ok {
		idx, err := functionIndex(cloneProto, name)
		return cloneProto, fn, idx, err
	}
	for _, p := range cloneProto.MRO {
		if fn, ok := p.Functions[name]; ok {
			idx, _ := functionIndex(p, name)
			return p, fn, idx, nil
		}
	}
	return nil, nil, 0, fmt.Errorf("object: %q not found in %s or its ancestors", name, cloneProto.Path)
}

func functionIndex(p *object.Prototype, name string) (int, error) {
	for i, fn := range p.FunctionList {
		if fn.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("object: %q missing from %s's function list", name, p.Path)
}

func basename(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	name := path[i+1:]
	if j := lastDot(name); j >= 0 {
		name = name[:j]
	}
	return name
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
