package vm

import "github.com/limpingninja/ci2go/internal/object"

// Frame is one call-frame in the traceback chain (spec.md §4.2 "call
// frame"). (*Interp).Call allocates one Frame per invocation and links it
// onto the interpreter's current-frame chain through Prev; popping on
// return is Call's deferred restore of the previous frame.
type Frame struct {
	Obj   *object.Object
	ObjH  object.Handle
	Func  *object.Function
	// DefiningProgram is the program whose bytecode is executing, which can
	// differ from Obj.Proto when running an inherited function — it is
	// what GST lookups for OpGlobalRef/OpGlobalLValue key off of.
	DefiningProgram *object.Prototype
	Line            int
	Prev            *Frame
}
