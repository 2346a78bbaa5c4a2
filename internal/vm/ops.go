package vm

import (
	"github.com/limpingninja/ci2go/internal/bytecode"
	"github.com/limpingninja/ci2go/internal/value"
)

// execSubscriptRef implements LOCAL_REF/GLOBAL_REF (spec.md §4.2 category
// 2): the stack holds (base, key) with base already resolved to the
// container the preceding LOCAL_L_VALUE/GLOBAL_L_VALUE addressed. It
// produces a cell-addressed l-value rather than a copy, so a later write
// through it is visible to every other alias of the same container
// (spec.md §4.3).
func (ex *execState) execSubscriptRef(instr bytecode.Instr) error {
	key, err := ex.popResolved()
	if err != nil {
		return err
	}
	baseTok, err := ex.pop()
	if err != nil {
		return err
	}
	base, err := ex.resolve(baseTok)
	if err != nil {
		return err
	}

	switch base.Kind {
	case value.Array:
		arr, _ := base.AsArray()
		ex.push(value.ArrayCellLV(arr, key))
		return nil
	case value.Mapping:
		mp, _ := base.AsMapping()
		// A missing key reads/writes as 0 (spec.md §3): touching the
		// l-value materializes the entry so later reads see it too.
		if _, found := mp.Get(key); !found {
			mp.Set(key, value.Int(0))
		}
		ex.push(value.MapEntryLV(mp, key))
		return nil
	default:
		return &RuntimeError{Message: "subscript applied to a non-array, non-mapping value", Frame: ex.frame}
	}
}

func (ex *execState) execMakeArray(n int) error {
	items := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := ex.popResolved()
		if err != nil {
			return err
		}
		items[i] = v
	}
	arr := value.NewArray(n, value.Unlimited)
	for i, v := range items {
		arr.Set(i, v)
	}
	ex.push(value.ArrVal(arr))
	return nil
}

func (ex *execState) execMakeMapping(n int) error {
	type pair struct{ k, v value.Value }
	pairs := make([]pair, n)
	for i := n - 1; i >= 0; i-- {
		v, err := ex.popResolved()
		if err != nil {
			return err
		}
		k, err := ex.popResolved()
		if err != nil {
			return err
		}
		pairs[i] = pair{k, v}
	}
	mp := value.NewMapping()
	for _, p := range pairs {
		mp.Set(p.k, p.v)
	}
	ex.push(value.MapValOf(mp))
	return nil
}

// execBinaryOrAssign handles spec.md §4.2 category 3: arithmetic,
// comparison, and compound assignment. Every "operator as efun" semantic
// (array/mapping `+`/`-`, the integer-0/empty-string convention) lives
// here rather than in a separate efun, matching how the original driver's
// operator opcodes call the same oper1.c/oper2.c helpers the named efuns
// do.
func (ex *execState) execBinaryOrAssign(instr bytecode.Instr) error {
	switch instr.Op {
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr,
		bytecode.OpEq, bytecode.OpNotEq, bytecode.OpLt, bytecode.OpLtEq, bytecode.OpGt, bytecode.OpGtEq,
		bytecode.OpAnd, bytecode.OpOr:
		b, err := ex.popResolved()
		if err != nil {
			return err
		}
		a, err := ex.popResolved()
		if err != nil {
			return err
		}
		res, err := binaryOp(instr.Op, a, b, ex.frame)
		if err != nil {
			return err
		}
		ex.push(res)
		return nil

	case bytecode.OpNot, bytecode.OpNeg, bytecode.OpBitNot:
		a, err := ex.popResolved()
		if err != nil {
			return err
		}
		ex.push(unaryOp(instr.Op, a))
		return nil

	case bytecode.OpAssign:
		rhs, err := ex.popResolved()
		if err != nil {
			return err
		}
		target, err := ex.pop()
		if err != nil {
			return err
		}
		if err := ex.assign(target, rhs); err != nil {
			return err
		}
		ex.push(rhs)
		return nil

	case bytecode.OpAddAssign, bytecode.OpSubAssign, bytecode.OpMulAssign, bytecode.OpDivAssign, bytecode.OpModAssign:
		rhs, err := ex.popResolved()
		if err != nil {
			return err
		}
		target, err := ex.pop()
		if err != nil {
			return err
		}
		cur, err := ex.resolve(target)
		if err != nil {
			return err
		}
		op := compoundBase(instr.Op)
		newVal, err := binaryOp(op, cur, rhs, ex.frame)
		if err != nil {
			return err
		}
		if err := ex.assign(target, newVal); err != nil {
			return err
		}
		ex.push(newVal)
		return nil

	case bytecode.OpPreInc, bytecode.OpPreDec:
		target, err := ex.pop()
		if err != nil {
			return err
		}
		cur, err := ex.resolve(target)
		if err != nil {
			return err
		}
		delta := int64(1)
		if instr.Op == bytecode.OpPreDec {
			delta = -1
		}
		newVal := value.Int(cur.AsInt() + delta)
		if err := ex.assign(target, newVal); err != nil {
			return err
		}
		ex.push(newVal)
		return nil

	case bytecode.OpPostInc, bytecode.OpPostDec:
		target, err := ex.pop()
		if err != nil {
			return err
		}
		cur, err := ex.resolve(target)
		if err != nil {
			return err
		}
		delta := int64(1)
		if instr.Op == bytecode.OpPostDec {
			delta = -1
		}
		newVal := value.Int(cur.AsInt() + delta)
		if err := ex.assign(target, newVal); err != nil {
			return err
		}
		ex.push(cur)
		return nil

	default:
		return &RuntimeError{Message: "unimplemented opcode", Frame: ex.frame}
	}
}

func compoundBase(op bytecode.Op) bytecode.Op {
	switch op {
	case bytecode.OpAddAssign:
		return bytecode.OpAdd
	case bytecode.OpSubAssign:
		return bytecode.OpSub
	case bytecode.OpMulAssign:
		return bytecode.OpMul
	case bytecode.OpDivAssign:
		return bytecode.OpDiv
	case bytecode.OpModAssign:
		return bytecode.OpMod
	default:
		return op
	}
}

func binaryOp(op bytecode.Op, a, b value.Value, fr *Frame) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return opAdd(a, b), nil
	case bytecode.OpSub:
		return opSub(a, b), nil
	case bytecode.OpMul:
		return value.Int(a.AsInt() * b.AsInt()), nil
	case bytecode.OpDiv:
		if b.AsInt() == 0 {
			return value.Int(0), &RuntimeError{Message: "division by zero", Frame: fr}
		}
		return value.Int(a.AsInt() / b.AsInt()), nil
	case bytecode.OpMod:
		if b.AsInt() == 0 {
			return value.Int(0), &RuntimeError{Message: "modulo by zero", Frame: fr}
		}
		return value.Int(a.AsInt() % b.AsInt()), nil
	case bytecode.OpBitAnd:
		return value.Int(a.AsInt() & b.AsInt()), nil
	case bytecode.OpBitOr:
		return value.Int(a.AsInt() | b.AsInt()), nil
	case bytecode.OpBitXor:
		return value.Int(a.AsInt() ^ b.AsInt()), nil
	case bytecode.OpShl:
		return value.Int(a.AsInt() << uint(b.AsInt())), nil
	case bytecode.OpShr:
		return value.Int(a.AsInt() >> uint(b.AsInt())), nil
	case bytecode.OpEq:
		return boolVal(a.Equal(b)), nil
	case bytecode.OpNotEq:
		return boolVal(!a.Equal(b)), nil
	case bytecode.OpLt:
		return boolVal(compareOrdered(a, b) < 0), nil
	case bytecode.OpLtEq:
		return boolVal(compareOrdered(a, b) <= 0), nil
	case bytecode.OpGt:
		return boolVal(compareOrdered(a, b) > 0), nil
	case bytecode.OpGtEq:
		return boolVal(compareOrdered(a, b) >= 0), nil
	case bytecode.OpAnd:
		return boolVal(a.Truthy() && b.Truthy()), nil
	case bytecode.OpOr:
		return boolVal(a.Truthy() || b.Truthy()), nil
	default:
		return value.Int(0), &RuntimeError{Message: "unimplemented binary opcode", Frame: fr}
	}
}

func unaryOp(op bytecode.Op, a value.Value) value.Value {
	switch op {
	case bytecode.OpNot:
		return boolVal(!a.Truthy())
	case bytecode.OpNeg:
		return value.Int(-a.AsInt())
	case bytecode.OpBitNot:
		return value.Int(^a.AsInt())
	default:
		return value.Int(0)
	}
}

// opAdd implements `+`'s per-kind overload set (spec.md §4.2 item 3 /
// glossary "+"): array concatenation, mapping merge, string concatenation
// (with integer 0 reading as ""), and plain integer addition otherwise.
func opAdd(a, b value.Value) value.Value {
	switch {
	case a.Kind == value.Array && b.Kind == value.Array:
		aa, _ := a.AsArray()
		bb, _ := b.AsArray()
		return value.ArrVal(value.Concat(aa, bb))
	case a.Kind == value.Mapping && b.Kind == value.Mapping:
		am, _ := a.AsMapping()
		bm, _ := b.AsMapping()
		return value.MapValOf(value.Merge(am, bm))
	case a.Kind == value.String || b.Kind == value.String:
		return value.Str(a.AsString() + b.AsString())
	default:
		return value.Int(a.AsInt() + b.AsInt())
	}
}

func opSub(a, b value.Value) value.Value {
	switch {
	case a.Kind == value.Array && b.Kind == value.Array:
		aa, _ := a.AsArray()
		bb, _ := b.AsArray()
		return value.ArrVal(value.Subtract(aa, bb))
	case a.Kind == value.Mapping && b.Kind == value.Mapping:
		am, _ := a.AsMapping()
		bm, _ := b.AsMapping()
		return value.MapValOf(value.MapSubtract(am, bm))
	default:
		return value.Int(a.AsInt() - b.AsInt())
	}
}

func boolVal(b bool) value.Value {
	if b {
		return value.True()
	}
	return value.False()
}

// compareOrdered implements the `<`/`<=`/`>`/`>=` family: string-to-string
// is lexical, anything else compares as integers (spec.md glossary).
func compareOrdered(a, b value.Value) int {
	if a.Kind == value.String && b.Kind == value.String {
		as, bs := a.AsString(), b.AsString()
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	ai, bi := a.AsInt(), b.AsInt()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}
