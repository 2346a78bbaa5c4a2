package vm

import (
	"github.com/limpingninja/ci2go/internal/bytecode"
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
)

// execState holds the mutable execution context for one Function body: the
// private value stack, this invocation's locals, and the program counter.
// It exists only for the duration of one (*Interp).Call.
type execState struct {
	ip     *Interp
	frame  *Frame
	locals []value.Value
	fn     *object.Function

	stack []value.Value
	pc    int
}

func (ex *execState) push(v value.Value) { ex.stack = append(ex.stack, v) }

// liveValue re-validates an Object-kind value against the live object table
// on read, per spec.md §3's invariant ("every live object reference in a
// value slot either points to a non-garbage object or is coerced to integer
// 0 on read") and §8's destruct-safety property. The generational handle
// arena (internal/handle) already detects staleness in O(1); this is the
// single place every storage read (local slot, global slot, array cell,
// mapping entry) funnels through so a destructed object's handle reads back
// as 0 everywhere instead of comparing/testing as if it were still live.
func (ex *execState) liveValue(v value.Value) value.Value {
	if v.Kind != value.Object {
		return v
	}
	h, ok := v.AsObject()
	if !ok {
		return v
	}
	if _, live := ex.ip.Objects.Get(h); !live {
		return value.Int(0)
	}
	return v
}

func (ex *execState) pop() (value.Value, error) {
	n := len(ex.stack)
	if n == 0 {
		return value.Int(0), &RuntimeError{Message: "stack underflow", Frame: ex.frame}
	}
	v := ex.stack[n-1]
	ex.stack = ex.stack[:n-1]
	return v, nil
}

// resolve dereferences v if it is an l-value token, returning the value
// currently stored at the location it names (spec.md §4.2: reading through
// an l-value before an arithmetic/comparison opcode consumes it).
func (ex *execState) resolve(v value.Value) (value.Value, error) {
	lv, ok := v.AsLValue()
	if !ok {
		return v, nil
	}
	switch v.Kind {
	case value.LocalLValue:
		if lv.Slot < 0 || lv.Slot >= len(ex.locals) {
			return value.Int(0), &RuntimeError{Message: "local slot out of range", Frame: ex.frame}
		}
		return ex.liveValue(ex.locals[lv.Slot]), nil
	case value.GlobalLValue:
		slot, err := ex.resolveGlobalSlot(lv.Slot)
		if err != nil {
			return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		return ex.liveValue(ex.frame.Obj.Globals[slot]), nil
	case value.ArrayCellLValue:
		key, err := ex.resolve(lv.Key)
		if err != nil {
			return value.Int(0), err
		}
		return ex.liveValue(lv.Arr.Get(int(key.AsInt()))), nil
	case value.MapEntryLValue:
		key, err := ex.resolve(lv.Key)
		if err != nil {
			return value.Int(0), err
		}
		got, _ := lv.Map.Get(key)
		return ex.liveValue(got), nil
	default:
		return v, nil
	}
}

// assign writes val through the location named by the l-value token v.
func (ex *execState) assign(v, val value.Value) error {
	lv, ok := v.AsLValue()
	if !ok {
		return &RuntimeError{Message: "assignment target is not an l-value", Frame: ex.frame}
	}
	switch v.Kind {
	case value.LocalLValue:
		if lv.Slot < 0 || lv.Slot >= len(ex.locals) {
			return &RuntimeError{Message: "local slot out of range", Frame: ex.frame}
		}
		value.Release(ex.locals[lv.Slot])
		value.Retain(val)
		ex.locals[lv.Slot] = val
		return nil
	case value.GlobalLValue:
		slot, err := ex.resolveGlobalSlot(lv.Slot)
		if err != nil {
			return &RuntimeError{Message: err.Error(), Frame: ex.frame}
		}
		ex.frame.Obj.SetGlobal(slot, val)
		return nil
	case value.ArrayCellLValue:
		key, err := ex.resolve(lv.Key)
		if err != nil {
			return err
		}
		if !lv.Arr.Set(int(key.AsInt()), val) {
			return &RuntimeError{Message: "subscript out of range past max_size", Frame: ex.frame}
		}
		return nil
	case value.MapEntryLValue:
		key, err := ex.resolve(lv.Key)
		if err != nil {
			return err
		}
		lv.Map.Set(key, val)
		return nil
	default:
		return &RuntimeError{Message: "assignment target is not an l-value", Frame: ex.frame}
	}
}

// resolveGlobalSlot performs the GST/ancestor-map indirection of spec.md
// §4.2 "Global resolution", translating a global slot number emitted by
// the defining program's compiler into an absolute index in this clone's
// flattened Globals array.
func (ex *execState) resolveGlobalSlot(localSlot int) (int, error) {
	return object.ResolveGlobal(ex.frame.DefiningProgram, localSlot, ex.frame.Obj.Proto)
}

// globalVarInfo locates the declared-type info (array/mapping/size) for a
// global slot number in the defining program, used to lazily allocate a
// container on first access to a global that was zeroed at clone time.
func (ex *execState) globalVarInfo(localSlot int) (object.VarInfo, bool) {
	gst := ex.frame.DefiningProgram.GST
	if localSlot < 0 || localSlot >= len(gst) {
		return object.VarInfo{}, false
	}
	entry := gst[localSlot]
	if entry.OwnerLocal < 0 || entry.OwnerLocal >= len(entry.Owner.Globals) {
		return object.VarInfo{}, false
	}
	return entry.Owner.Globals[entry.OwnerLocal], true
}

func bumpCycles(ex *execState) error {
	ip := ex.ip
	if ip.Limits.HardCycles > 0 {
		ip.hardCycles++
		if ip.hardCycles > ip.Limits.HardCycles {
			return &RuntimeError{Message: "cycle hard maximum exceeded", Frame: ex.frame}
		}
	}
	if ip.Limits.SoftCycles > 0 {
		ip.softCycles++
		if ip.softCycles > ip.Limits.SoftCycles {
			return &RuntimeError{Message: "cycle soft maximum exceeded", Frame: ex.frame}
		}
	}
	return nil
}

// run executes the function body to completion, returning the value
// pushed by OpReturn (or integer 0 if control falls off the end).
func (ex *execState) run() (value.Value, error) {
	code := ex.fn.Code
	pc := 0

	for pc < len(code) {
		instr := code[pc]
		ex.pc = pc

		if err := bumpCycles(ex); err != nil {
			return value.Int(0), err
		}

		switch instr.Op {
		case bytecode.OpLine:
			ex.frame.Line = instr.Line
			ex.stack = ex.stack[:0] // statement boundary: clear the expression stack
			pc++

		case bytecode.OpPushInt:
			ex.push(value.Int(instr.IntVal))
			pc++
		case bytecode.OpPushString:
			ex.push(value.Str(instr.StrVal))
			pc++
		case bytecode.OpPushLocal:
			if instr.A < 0 || instr.A >= len(ex.locals) {
				return value.Int(0), &RuntimeError{Message: "local slot out of range", Frame: ex.frame}
			}
			ex.push(ex.liveValue(ex.locals[instr.A]))
			pc++
		case bytecode.OpPushGlobal:
			slot, err := ex.resolveGlobalSlot(instr.A)
			if err != nil {
				return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
			}
			ex.ensureGlobalContainer(instr.A, slot)
			ex.push(ex.liveValue(ex.frame.Obj.Globals[slot]))
			pc++
		case bytecode.OpLocalLValue:
			ex.push(value.LocalLV(instr.A))
			pc++
		case bytecode.OpGlobalLValue:
			slot, err := ex.resolveGlobalSlot(instr.A)
			if err != nil {
				return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
			}
			ex.ensureGlobalContainer(instr.A, slot)
			ex.push(value.GlobalLV(instr.A))
			pc++

		case bytecode.OpLocalRef, bytecode.OpGlobalRef:
			if err := ex.execSubscriptRef(instr); err != nil {
				return value.Int(0), err
			}
			pc++

		case bytecode.OpPop:
			if _, err := ex.pop(); err != nil {
				return value.Int(0), err
			}
			pc++
		case bytecode.OpComma:
			// Evaluate both sides for effect, keep the right-hand result.
			rhs, err := ex.pop()
			if err != nil {
				return value.Int(0), err
			}
			if _, err := ex.pop(); err != nil {
				return value.Int(0), err
			}
			v, err := ex.resolve(rhs)
			if err != nil {
				return value.Int(0), err
			}
			ex.push(v)
			pc++

		case bytecode.OpJump:
			pc = instr.A
		case bytecode.OpJumpIfFalse:
			cond, err := ex.popResolved()
			if err != nil {
				return value.Int(0), err
			}
			if !cond.Truthy() {
				pc = instr.A
			} else {
				pc++
			}
		case bytecode.OpJumpIfTrue:
			cond, err := ex.popResolved()
			if err != nil {
				return value.Int(0), err
			}
			if cond.Truthy() {
				pc = instr.A
			} else {
				pc++
			}

		case bytecode.OpReturn:
			if len(ex.stack) == 0 {
				return value.Int(0), nil
			}
			v, err := ex.popResolved()
			if err != nil {
				return value.Int(0), err
			}
			return v, nil

		case bytecode.OpNumArgs:
			ex.push(value.NumArgsVal(instr.A))
			pc++

		case bytecode.OpMakeArray:
			if err := ex.execMakeArray(instr.A); err != nil {
				return value.Int(0), err
			}
			pc++
		case bytecode.OpMakeMapping:
			if err := ex.execMakeMapping(instr.A); err != nil {
				return value.Int(0), err
			}
			pc++

		case bytecode.OpFuncCall, bytecode.OpExternFunc, bytecode.OpCallSuper, bytecode.OpCallParent, bytecode.OpFuncName:
			v, err := ex.execCall(instr)
			if err != nil {
				return value.Int(0), err
			}
			ex.push(v)
			pc++
		case bytecode.OpEfunCall:
			v, err := ex.execEfunCall(instr)
			if err != nil {
				return value.Int(0), err
			}
			ex.push(v)
			pc++

		default:
			if err := ex.execBinaryOrAssign(instr); err != nil {
				return value.Int(0), err
			}
			pc++
		}
	}
	return value.Int(0), nil
}

func (ex *execState) popResolved() (value.Value, error) {
	v, err := ex.pop()
	if err != nil {
		return value.Int(0), err
	}
	return ex.resolve(v)
}

// execEfunCall dispatches OpEfunCall (spec.md §4.2 category 6 / §6): the
// same NUM_ARGS convention as a regular call, routed through the
// interpreter's efun table instead of object bytecode. An efun-reported
// Go error becomes a local runtime error like any other (spec.md §7) —
// efuns never propagate a bare Go error into script-visible control flow.
func (ex *execState) execEfunCall(instr bytecode.Instr) (value.Value, error) {
	n, err := ex.popArgCount()
	if err != nil {
		return value.Int(0), err
	}
	args, err := ex.popArgs(n)
	if err != nil {
		return value.Int(0), err
	}
	fn, ok := ex.ip.Efuns[instr.Name]
	if !ok {
		return value.Int(0), &RuntimeError{Message: "unknown efun: " + instr.Name, Frame: ex.frame}
	}
	result, err := fn(ex.ip, ex.frame, args)
	if err != nil {
		if re, ok := err.(*RuntimeError); ok {
			return value.Int(0), re
		}
		return value.Int(0), &RuntimeError{Message: err.Error(), Frame: ex.frame}
	}
	return result, nil
}

// ensureGlobalContainer lazily allocates an array/mapping for a global
// slot that is still the zero-value placeholder a fresh clone starts with
// (spec.md §4.4 "allocates a clone with zeroed globals" + §4.2 item 2
// "first use of an uninitialised array-typed variable auto-allocates").
func (ex *execState) ensureGlobalContainer(localSlot, absSlot int) {
	g := ex.frame.Obj.Globals[absSlot]
	if g.Kind != value.Nil && !(g.Kind == value.Int && g.AsInt() == 0) {
		return
	}
	info, ok := ex.globalVarInfo(localSlot)
	if !ok {
		return
	}
	switch {
	case info.IsMapping:
		ex.frame.Obj.SetGlobal(absSlot, value.MapValOf(value.NewMapping()))
	case info.IsArray:
		size, max := info.ArraySize, info.ArraySize
		if info.Unlimited {
			size, max = 0, value.Unlimited
		}
		ex.frame.Obj.SetGlobal(absSlot, value.ArrVal(value.NewArray(size, max)))
	}
}
