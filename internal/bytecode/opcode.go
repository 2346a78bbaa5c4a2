// Package bytecode defines the instruction set the compiler emits and the
// interpreter executes (spec.md §4.2). It intentionally knows nothing
// about objects or the VM's stack machinery — it is the wire format
// between internal/compiler and internal/vm.
package bytecode

import "github.com/limpingninja/ci2go/internal/value"

// Op is one opcode. The set mirrors spec.md §4.2's six categories: push
// literal/local/global/lvalue, subscript, arithmetic/comparison, control
// flow, calls, and operators-as-efuns.
type Op int

const (
	OpNop Op = iota

	// Category 1: push literal / local / global / lvalue markers.
	OpPushInt
	OpPushString
	OpPushLocal
	OpPushGlobal
	OpLocalLValue
	OpGlobalLValue

	// Category 2: subscript (array/mapping cell addressing).
	OpLocalRef  // (base-is-local, key) -> l-value token
	OpGlobalRef // (base-is-global, key) -> l-value token

	// Category 3: arithmetic, comparison, compound assignment.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd // && short-circuit is compiled as jumps; the compiler never emits OpAnd, which the VM evaluates without short-circuit
	OpOr
	OpNot
	OpNeg
	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpModAssign
	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
	OpComma

	// Category 4: control flow.
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpPop
	OpReturn
	OpLine // line-number pseudo-op; clears the expression stack (statement boundary)

	// Category 5: calls.
	OpNumArgs
	OpFuncCall    // direct call to a same-object function, by index
	OpExternFunc  // call to an inherited/attached function, by (inherit-index, func-index)
	OpFuncName    // late-bound call by name; may rewrite itself in place to OpFuncCall (never to OpExternFunc)
	OpCallSuper   // ::f() — next definition up the MRO from the executing function's defining program
	OpCallParent  // Name::f() — call in a specifically named parent
	OpEfunCall    // call into the efun dispatch table by name

	// Category 6: literal array/mapping construction.
	OpMakeArray   // ({ ... }) — pops N values, pushes a new array
	OpMakeMapping // ([ k:v, ... ]) — pops N (key,value) pairs, pushes a new mapping
)

// Instr is one bytecode instruction: an opcode plus its operands. Not
// every field is used by every opcode; see the comment on each Op.
type Instr struct {
	Op   Op
	Line int // source line this instruction maps to, for tracebacks

	// Literal payload (OpPushInt/OpPushString).
	IntVal int64
	StrVal string

	// Slot/jump/count payload, reused across opcodes by meaning:
	//  - OpPushLocal/OpPushGlobal/OpLocalLValue/OpGlobalLValue: local/global slot index
	//  - OpJump/OpJumpIfFalse/OpJumpIfTrue: target instruction index
	//  - OpFuncCall: function index within the same program
	//  - OpExternFunc: A = inherit index, B = function index
	//  - OpCallSuper/OpCallParent: A and B unused; the callee is resolved by
	//    Name at run time (OpCallParent carries the parent's basename in StrVal)
	//  - OpMakeArray/OpMakeMapping: element/pair count
	A int
	B int

	Name string // function/efun name for OpFuncName/OpEfunCall/OpCallSuper/OpCallParent
}

// Push builds a literal-push instruction (OpPushInt for an integer value,
// OpPushString otherwise); kept as a helper so the compiler's emit call
// sites read like the opcode they produce.
func Push(line int, v value.Value) Instr {
	switch v.Kind {
	case value.Int:
		return Instr{Op: OpPushInt, Line: line, IntVal: v.AsInt()}
	default:
		return Instr{Op: OpPushString, Line: line, StrVal: v.AsString()}
	}
}
