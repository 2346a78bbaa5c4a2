package compiler

import (
	"fmt"

	"github.com/limpingninja/ci2go/internal/bytecode"
	"github.com/limpingninja/ci2go/internal/object"
)

// funcGen compiles one function body to bytecode. Locals are allocated
// flat across the whole function body (no block-scope shadowing): every
// LocalDecl anywhere in a function gets a permanent slot for the
// function's lifetime, and redeclaring a name anywhere in the same
// function is a compile error. This mirrors the original driver's
// single flat local-variable table per function.
type funcGen struct {
	file *scope // enclosing compile-time symbol context (globals, functions, efuns)

	code       []bytecode.Instr
	locals     []object.VarInfo
	localSlots map[string]int
	loops      []*loopCtx
	curLine    int
}

type loopCtx struct {
	breakPatches    []int
	continuePatches []int
}

// scope carries the symbol information a function body's codegen needs
// that isn't local to it: the defining prototype's GST-indexed global
// names, the set of callable function names (own + inherited), and the
// set of known efun names, so a bare call() can be routed to the right
// opcode at compile time.
type scope struct {
	globalSlots map[string]int
	funcNames   map[string]bool
	efunNames   map[string]bool
}

func newFuncGen(sc *scope) *funcGen {
	return &funcGen{file: sc, localSlots: make(map[string]int)}
}

func (g *funcGen) emit(i bytecode.Instr) int {
	i.Line = g.curLine
	g.code = append(g.code, i)
	return len(g.code) - 1
}

func (g *funcGen) patch(idx, target int) { g.code[idx].A = target }
func (g *funcGen) here() int             { return len(g.code) }

func (g *funcGen) line(n int) {
	g.curLine = n
	g.emit(bytecode.Instr{Op: bytecode.OpLine})
}

func typeSpecToVarInfo(name string, ts TypeSpec) object.VarInfo {
	switch {
	case ts.IsArray:
		return object.VarInfo{Name: name, IsArray: true, ArraySize: ts.Size, Unlimited: ts.Size == 0}
	case ts.Base == TyMapping:
		return object.VarInfo{Name: name, IsMapping: true}
	default:
		return object.VarInfo{Name: name}
	}
}

func (g *funcGen) allocLocal(name string, vi object.VarInfo) (int, error) {
	if _, exists := g.localSlots[name]; exists {
		return 0, fmt.Errorf("variable %q redeclared in this function", name)
	}
	slot := len(g.locals)
	g.locals = append(g.locals, vi)
	g.localSlots[name] = slot
	return slot, nil
}

// compileFuncBody compiles params and the block into a *object.Function.
func compileFuncBody(fd *FuncDecl, sc *scope) (*object.Function, error) {
	g := newFuncGen(sc)
	for _, p := range fd.Params {
		if _, err := g.allocLocal(p.Name, typeSpecToVarInfo(p.Name, p.Type)); err != nil {
			return nil, &CompileError{Line: fd.Line, Msg: err.Error()}
		}
	}
	if err := g.emitBlock(fd.Body); err != nil {
		return nil, err
	}
	// Fall off the end returns integer 0 (spec.md §4.2 "return"); make it
	// explicit rather than relying solely on run()'s empty-stack default,
	// so a trailing statement that left a value on the stack can't leak
	// into the implicit return.
	g.emit(bytecode.Instr{Op: bytecode.OpPushInt, IntVal: 0})
	g.emit(bytecode.Instr{Op: bytecode.OpReturn})

	fn := &object.Function{
		Name:      fd.Name,
		NumLocals: len(g.locals),
		Locals:    g.locals,
		Code:      g.code,
	}
	return fn, nil
}

func (g *funcGen) emitBlock(b *BlockStmt) error {
	for _, s := range b.Stmts {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *funcGen) emitStmt(s Stmt) error {
	switch st := s.(type) {
	case *BlockStmt:
		return g.emitBlock(st)

	case *LocalDecl:
		vi := typeSpecToVarInfo(st.Name, st.Type)
		slot, err := g.allocLocal(st.Name, vi)
		if err != nil {
			return &CompileError{Line: st.Line, Msg: err.Error()}
		}
		if st.Init != nil {
			g.line(st.Line)
			g.emit(bytecode.Instr{Op: bytecode.OpLocalLValue, A: slot})
			if err := g.emitValue(st.Init); err != nil {
				return err
			}
			g.emit(bytecode.Instr{Op: bytecode.OpAssign})
			g.emit(bytecode.Instr{Op: bytecode.OpPop})
		}
		return nil

	case *ExprStmt:
		g.line(st.Line)
		if err := g.emitValue(st.X); err != nil {
			return err
		}
		g.emit(bytecode.Instr{Op: bytecode.OpPop})
		return nil

	case *IfStmt:
		g.line(st.Line)
		if err := g.emitValue(st.Cond); err != nil {
			return err
		}
		jfIdx := g.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
		if err := g.emitStmt(st.Then); err != nil {
			return err
		}
		if st.Else == nil {
			g.patch(jfIdx, g.here())
			return nil
		}
		jEndIdx := g.emit(bytecode.Instr{Op: bytecode.OpJump})
		g.patch(jfIdx, g.here())
		if err := g.emitStmt(st.Else); err != nil {
			return err
		}
		g.patch(jEndIdx, g.here())
		return nil

	case *WhileStmt:
		condLabel := g.here()
		g.line(st.Line)
		if err := g.emitValue(st.Cond); err != nil {
			return err
		}
		jfIdx := g.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
		lc := &loopCtx{}
		g.loops = append(g.loops, lc)
		if err := g.emitStmt(st.Body); err != nil {
			return err
		}
		g.loops = g.loops[:len(g.loops)-1]
		for _, p := range lc.continuePatches {
			g.patch(p, condLabel)
		}
		g.emit(bytecode.Instr{Op: bytecode.OpJump, A: condLabel})
		end := g.here()
		g.patch(jfIdx, end)
		for _, p := range lc.breakPatches {
			g.patch(p, end)
		}
		return nil

	case *ForStmt:
		if st.Init != nil {
			g.line(st.Line)
			if err := g.emitValue(st.Init); err != nil {
				return err
			}
			g.emit(bytecode.Instr{Op: bytecode.OpPop})
		}
		condLabel := g.here()
		var jfIdx int
		hasCond := st.Cond != nil
		if hasCond {
			g.line(st.Line)
			if err := g.emitValue(st.Cond); err != nil {
				return err
			}
			jfIdx = g.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
		}
		lc := &loopCtx{}
		g.loops = append(g.loops, lc)
		if err := g.emitStmt(st.Body); err != nil {
			return err
		}
		g.loops = g.loops[:len(g.loops)-1]
		postLabel := g.here()
		for _, p := range lc.continuePatches {
			g.patch(p, postLabel)
		}
		if st.Post != nil {
			g.line(st.Line)
			if err := g.emitValue(st.Post); err != nil {
				return err
			}
			g.emit(bytecode.Instr{Op: bytecode.OpPop})
		}
		g.emit(bytecode.Instr{Op: bytecode.OpJump, A: condLabel})
		end := g.here()
		if hasCond {
			g.patch(jfIdx, end)
		}
		for _, p := range lc.breakPatches {
			g.patch(p, end)
		}
		return nil

	case *ReturnStmt:
		g.line(st.Line)
		if st.X != nil {
			if err := g.emitValue(st.X); err != nil {
				return err
			}
		} else {
			g.emit(bytecode.Instr{Op: bytecode.OpPushInt, IntVal: 0})
		}
		g.emit(bytecode.Instr{Op: bytecode.OpReturn})
		return nil

	case *BreakStmt:
		if len(g.loops) == 0 {
			return &CompileError{Line: st.Line, Msg: "break outside a loop"}
		}
		g.line(st.Line)
		lc := g.loops[len(g.loops)-1]
		idx := g.emit(bytecode.Instr{Op: bytecode.OpJump})
		lc.breakPatches = append(lc.breakPatches, idx)
		return nil

	case *ContinueStmt:
		if len(g.loops) == 0 {
			return &CompileError{Line: st.Line, Msg: "continue outside a loop"}
		}
		g.line(st.Line)
		lc := g.loops[len(g.loops)-1]
		idx := g.emit(bytecode.Instr{Op: bytecode.OpJump})
		lc.continuePatches = append(lc.continuePatches, idx)
		return nil

	default:
		return fmt.Errorf("compiler: unhandled statement type %T", s)
	}
}

// emitValue compiles e to leave one resolved (or transparently
// resolvable) value on the stack.
func (g *funcGen) emitValue(e Expr) error {
	switch x := e.(type) {
	case *IntLit:
		g.emit(bytecode.Instr{Op: bytecode.OpPushInt, IntVal: x.Val})
		return nil
	case *StringLit:
		g.emit(bytecode.Instr{Op: bytecode.OpPushString, StrVal: x.Val})
		return nil
	case *Ident:
		return g.emitIdentRead(x)
	case *Subscript:
		return g.emitSubscript(x)
	case *ArrayLit:
		for _, el := range x.Elems {
			if err := g.emitValue(el); err != nil {
				return err
			}
		}
		g.emit(bytecode.Instr{Op: bytecode.OpMakeArray, A: len(x.Elems)})
		return nil
	case *MapLit:
		for _, kv := range x.Pairs {
			if err := g.emitValue(kv.K); err != nil {
				return err
			}
			if err := g.emitValue(kv.V); err != nil {
				return err
			}
		}
		g.emit(bytecode.Instr{Op: bytecode.OpMakeMapping, A: len(x.Pairs)})
		return nil
	case *Unary:
		return g.emitUnary(x)
	case *Postfix:
		return g.emitPostfix(x)
	case *Binary:
		return g.emitBinary(x)
	case *Assign:
		return g.emitAssign(x)
	case *Call:
		return g.emitCall(x)
	default:
		return fmt.Errorf("compiler: unhandled expression type %T", e)
	}
}

func (g *funcGen) lookupIdent(name string) (slot int, isGlobal bool, ok bool) {
	if s, found := g.localSlots[name]; found {
		return s, false, true
	}
	if s, found := g.file.globalSlots[name]; found {
		return s, true, true
	}
	return 0, false, false
}

func (g *funcGen) emitIdentRead(x *Ident) error {
	slot, isGlobal, ok := g.lookupIdent(x.Name)
	if !ok {
		return &CompileError{Line: x.Line, Msg: fmt.Sprintf("undefined variable %q", x.Name)}
	}
	if isGlobal {
		g.emit(bytecode.Instr{Op: bytecode.OpPushGlobal, A: slot})
	} else {
		g.emit(bytecode.Instr{Op: bytecode.OpPushLocal, A: slot})
	}
	return nil
}

// emitLValueTarget compiles e to leave an assignable l-value token on the
// stack: the only two forms assignment/inc-dec may target.
func (g *funcGen) emitLValueTarget(e Expr) error {
	switch x := e.(type) {
	case *Ident:
		slot, isGlobal, ok := g.lookupIdent(x.Name)
		if !ok {
			return &CompileError{Line: x.Line, Msg: fmt.Sprintf("undefined variable %q", x.Name)}
		}
		if isGlobal {
			g.emit(bytecode.Instr{Op: bytecode.OpGlobalLValue, A: slot})
		} else {
			g.emit(bytecode.Instr{Op: bytecode.OpLocalLValue, A: slot})
		}
		return nil
	case *Subscript:
		return g.emitSubscript(x)
	default:
		return fmt.Errorf("compiler: invalid assignment target")
	}
}

// emitSubscript is shared by value reads and assignment targets: the
// Ref opcode always produces a cell-addressed l-value token, and
// popResolved dereferences it transparently wherever a plain value is
// wanted (spec.md §4.2 category 2).
func (g *funcGen) emitSubscript(x *Subscript) error {
	if err := g.emitValue(x.Base); err != nil {
		return err
	}
	if err := g.emitValue(x.Index); err != nil {
		return err
	}
	op := bytecode.OpLocalRef
	if id, isIdent := x.Base.(*Ident); isIdent {
		if _, isGlobal, ok := g.lookupIdent(id.Name); ok && isGlobal {
			op = bytecode.OpGlobalRef
		}
	}
	g.emit(bytecode.Instr{Op: op})
	return nil
}

func (g *funcGen) emitUnary(x *Unary) error {
	switch x.Op {
	case "++":
		if err := g.emitLValueTarget(x.X); err != nil {
			return err
		}
		g.emit(bytecode.Instr{Op: bytecode.OpPreInc})
		return nil
	case "--":
		if err := g.emitLValueTarget(x.X); err != nil {
			return err
		}
		g.emit(bytecode.Instr{Op: bytecode.OpPreDec})
		return nil
	}
	if err := g.emitValue(x.X); err != nil {
		return err
	}
	switch x.Op {
	case "!":
		g.emit(bytecode.Instr{Op: bytecode.OpNot})
	case "-":
		g.emit(bytecode.Instr{Op: bytecode.OpNeg})
	case "~":
		g.emit(bytecode.Instr{Op: bytecode.OpBitNot})
	default:
		return fmt.Errorf("compiler: unknown unary operator %q", x.Op)
	}
	return nil
}

func (g *funcGen) emitPostfix(x *Postfix) error {
	if err := g.emitLValueTarget(x.X); err != nil {
		return err
	}
	switch x.Op {
	case "++":
		g.emit(bytecode.Instr{Op: bytecode.OpPostInc})
	case "--":
		g.emit(bytecode.Instr{Op: bytecode.OpPostDec})
	default:
		return fmt.Errorf("compiler: unknown postfix operator %q", x.Op)
	}
	return nil
}

// binaryOpcodes maps a parsed operator spelling to the single-pass
// (non-short-circuit) opcode that implements it. && and || are handled
// separately by emitBinary since they short-circuit via jumps.
var binaryOpcodes = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul,
	"/": bytecode.OpDiv, "%": bytecode.OpMod,
	"&": bytecode.OpBitAnd, "|": bytecode.OpBitOr, "^": bytecode.OpBitXor,
	"<<": bytecode.OpShl, ">>": bytecode.OpShr,
	"==": bytecode.OpEq, "!=": bytecode.OpNotEq,
	"<": bytecode.OpLt, "<=": bytecode.OpLtEq, ">": bytecode.OpGt, ">=": bytecode.OpGtEq,
}

// emitBinary compiles && and || as strict-boolean short-circuit jumps
// (the instruction set has no stack-duplicate opcode, so the "other"
// branch's 0/1 literal is pushed directly instead of reusing an
// already-evaluated operand). Every other binary operator is a plain
// evaluate-both-sides-then-apply-opcode sequence.
func (g *funcGen) emitBinary(x *Binary) error {
	switch x.Op {
	case "&&":
		if err := g.emitValue(x.L); err != nil {
			return err
		}
		falseIdx := g.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
		if err := g.emitValue(x.R); err != nil {
			return err
		}
		g.emit(bytecode.Instr{Op: bytecode.OpNot})
		g.emit(bytecode.Instr{Op: bytecode.OpNot})
		endIdx := g.emit(bytecode.Instr{Op: bytecode.OpJump})
		g.patch(falseIdx, g.here())
		g.emit(bytecode.Instr{Op: bytecode.OpPushInt, IntVal: 0})
		g.patch(endIdx, g.here())
		return nil
	case "||":
		if err := g.emitValue(x.L); err != nil {
			return err
		}
		trueIdx := g.emit(bytecode.Instr{Op: bytecode.OpJumpIfTrue})
		if err := g.emitValue(x.R); err != nil {
			return err
		}
		g.emit(bytecode.Instr{Op: bytecode.OpNot})
		g.emit(bytecode.Instr{Op: bytecode.OpNot})
		endIdx := g.emit(bytecode.Instr{Op: bytecode.OpJump})
		g.patch(trueIdx, g.here())
		g.emit(bytecode.Instr{Op: bytecode.OpPushInt, IntVal: 1})
		g.patch(endIdx, g.here())
		return nil
	}
	op, ok := binaryOpcodes[x.Op]
	if !ok {
		return fmt.Errorf("compiler: unknown binary operator %q", x.Op)
	}
	if err := g.emitValue(x.L); err != nil {
		return err
	}
	if err := g.emitValue(x.R); err != nil {
		return err
	}
	g.emit(bytecode.Instr{Op: op})
	return nil
}

var compoundOpcodes = map[string]bytecode.Op{
	"+=": bytecode.OpAddAssign, "-=": bytecode.OpSubAssign, "*=": bytecode.OpMulAssign,
	"/=": bytecode.OpDivAssign, "%=": bytecode.OpModAssign,
}

func (g *funcGen) emitAssign(x *Assign) error {
	if err := g.emitLValueTarget(x.Target); err != nil {
		return err
	}
	if err := g.emitValue(x.Value); err != nil {
		return err
	}
	if x.Op == "=" {
		g.emit(bytecode.Instr{Op: bytecode.OpAssign})
		return nil
	}
	op, ok := compoundOpcodes[x.Op]
	if !ok {
		return fmt.Errorf("compiler: unknown assignment operator %q", x.Op)
	}
	g.emit(bytecode.Instr{Op: op})
	return nil
}

// emitCall routes a call to the opcode matching how its target is known:
// an explicit super call, an explicit named-parent call, or an ordinary
// call resolved dynamically by name — which is either a user-defined
// function (own or inherited, looked up fresh at runtime so it is safe
// regardless of how this code ends up shared across further subclasses)
// or a driver-provided efun.
func (g *funcGen) emitCall(x *Call) error {
	for _, a := range x.Args {
		if err := g.emitValue(a); err != nil {
			return err
		}
	}
	g.emit(bytecode.Instr{Op: bytecode.OpNumArgs, A: len(x.Args)})

	switch x.Qualifier {
	case "super":
		g.emit(bytecode.Instr{Op: bytecode.OpCallSuper, Name: x.Name})
		return nil
	case "":
		if g.file.funcNames[x.Name] {
			g.emit(bytecode.Instr{Op: bytecode.OpFuncName, Name: x.Name})
			return nil
		}
		if g.file.efunNames[x.Name] {
			g.emit(bytecode.Instr{Op: bytecode.OpEfunCall, Name: x.Name})
			return nil
		}
		return &CompileError{Line: x.Line, Msg: fmt.Sprintf("call to undefined function or efun %q", x.Name)}
	default:
		g.emit(bytecode.Instr{Op: bytecode.OpCallParent, StrVal: x.Qualifier, Name: x.Name})
		return nil
	}
}
