package vm

import (
	"testing"

	"github.com/limpingninja/ci2go/internal/bytecode"
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
)

func newTestInterp() (*Interp, *object.Table) {
	table := object.NewTable()
	ip := New(table)
	return ip, table
}

func cloneActive(t *testing.T, table *object.Table, proto *object.Prototype) (object.Handle, *object.Object) {
	t.Helper()
	h, obj := table.Clone(proto)
	obj.State = object.StateActive
	proto.AncestorMap[proto] = 0
	proto.MRO = []*object.Prototype{proto}
	return h, obj
}

func TestArithmeticAndReturn(t *testing.T) {
	ip, table := newTestInterp()
	proto := object.NewPrototype("/calc.c")
	fn := &object.Function{
		Name: "add",
		Code: []bytecode.Instr{
			{Op: bytecode.OpPushInt, IntVal: 2},
			{Op: bytecode.OpPushInt, IntVal: 3},
			{Op: bytecode.OpAdd},
			{Op: bytecode.OpReturn},
		},
	}
	proto.AddFunction(fn)
	h, _ := cloneActive(t, table, proto)

	result, err := ip.Call(nil, h, nil, fn, nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.AsInt() != 5 {
		t.Fatalf("got %v, want 5", result)
	}
}

func TestLocalAssignAndFallOffEnd(t *testing.T) {
	ip, table := newTestInterp()
	proto := object.NewPrototype("/calc2.c")
	fn := &object.Function{
		Name:      "noop",
		NumLocals: 1,
		Locals:    []object.VarInfo{{Name: "x"}},
		Code: []bytecode.Instr{
			{Op: bytecode.OpLocalLValue, A: 0},
			{Op: bytecode.OpPushInt, IntVal: 7},
			{Op: bytecode.OpAssign},
			{Op: bytecode.OpPop},
		},
	}
	proto.AddFunction(fn)
	h, _ := cloneActive(t, table, proto)

	result, err := ip.Call(nil, h, nil, fn, nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.AsInt() != 0 {
		t.Fatalf("falling off the end should yield integer 0, got %v", result)
	}
}

func TestArraySubscriptAssignAliased(t *testing.T) {
	ip, table := newTestInterp()
	proto := object.NewPrototype("/arr.c")
	// local a = ({ 0, 0 }); a[1] = 9; return a[1];
	fn := &object.Function{
		Name:      "f",
		NumLocals: 1,
		Locals:    []object.VarInfo{{Name: "a", IsArray: true, ArraySize: 2}},
		Code: []bytecode.Instr{
			{Op: bytecode.OpLocalLValue, A: 0},
			{Op: bytecode.OpPushInt, IntVal: 1},
			{Op: bytecode.OpLocalRef, A: 2},
			{Op: bytecode.OpPushInt, IntVal: 9},
			{Op: bytecode.OpAssign},
			{Op: bytecode.OpPop},

			{Op: bytecode.OpLocalLValue, A: 0},
			{Op: bytecode.OpPushInt, IntVal: 1},
			{Op: bytecode.OpLocalRef, A: 2},
			{Op: bytecode.OpReturn},
		},
	}
	proto.AddFunction(fn)
	h, _ := cloneActive(t, table, proto)

	result, err := ip.Call(nil, h, nil, fn, nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Kind != value.Int || result.AsInt() != 9 {
		t.Fatalf("got %v, want 9", result)
	}
}

func TestHardCycleLimitTrapsWithoutPropagating(t *testing.T) {
	ip, table := newTestInterp()
	ip.Limits.HardCycles = 5
	ip.Limits.SoftCycles = 0
	proto := object.NewPrototype("/loop.c")
	fn := &object.Function{
		Name: "spin",
		Code: []bytecode.Instr{
			{Op: bytecode.OpJump, A: 0}, // infinite loop
		},
	}
	proto.AddFunction(fn)
	h, _ := cloneActive(t, table, proto)

	result, err := ip.Call(nil, h, nil, fn, nil)
	if err != nil {
		t.Fatalf("a runtime error must not propagate as a Go error: %v", err)
	}
	if result.AsInt() != 0 {
		t.Fatalf("trapped call must yield integer 0, got %v", result)
	}
}

func TestEfunDispatch(t *testing.T) {
	ip, table := newTestInterp()
	ip.Efuns["double"] = func(ip *Interp, fr *Frame, args []value.Value) (value.Value, error) {
		return value.Int(args[0].AsInt() * 2), nil
	}
	proto := object.NewPrototype("/e.c")
	fn := &object.Function{
		Name: "f",
		Code: []bytecode.Instr{
			{Op: bytecode.OpPushInt, IntVal: 21},
			{Op: bytecode.OpNumArgs, A: 1},
			{Op: bytecode.OpEfunCall, Name: "double"},
			{Op: bytecode.OpReturn},
		},
	}
	proto.AddFunction(fn)
	h, _ := cloneActive(t, table, proto)

	result, err := ip.Call(nil, h, nil, fn, nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.AsInt() != 42 {
		t.Fatalf("got %v, want 42", result)
	}
}
