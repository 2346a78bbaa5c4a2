// Package vm is the bytecode interpreter (spec.md §4.2): a single function
// executes one compiled Function to completion against a private value
// stack, allocating one call Frame per invocation.
package vm

import (
	"fmt"

	"github.com/limpingninja/ci2go/internal/mlog"
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
)

// EfunFunc is one entry in the efun dispatch table (spec.md §4.2 item 6 —
// "operators as efuns"): built-in functions are routed through uniform
// handlers taking the interpreter, the calling frame, and the argument
// list. Arithmetic opcodes do not go through this table; the dispatch
// loop executes them itself.
type EfunFunc func(ip *Interp, fr *Frame, args []value.Value) (value.Value, error)

// SourceLineFunc reads one source line on demand for traceback context
// (spec.md §4.9); wired to the compiler's file cache by the driver.
type SourceLineFunc func(path string, line int) string

// Limits bounds one call's execution, configurable per call (spec.md §4.2
// "Cycle limits").
type Limits struct {
	SoftCycles   int64 // 0 disables the soft limit
	HardCycles   int64 // 0 disables the hard limit
	MaxCallDepth int
}

// DefaultLimits mirrors the original driver's conservative defaults.
func DefaultLimits() Limits {
	return Limits{SoftCycles: 500_000, HardCycles: 2_000_000, MaxCallDepth: 256}
}

// Interp is the single interpreter instance the driver owns. It is not
// safe for concurrent use — per spec.md §5, all script execution is
// single-threaded and synchronous from the main loop.
type Interp struct {
	Objects *object.Table
	Efuns   map[string]EfunFunc
	Limits  Limits
	Log     *mlog.Logger
	Source  SourceLineFunc
	Trace   TraceFormat

	// ThisPlayer is the ambient player-object context threaded through
	// nested calls for this_player() (spec.md §6).
	ThisPlayer object.Handle

	depth                    int
	softCycles               int64
	hardCycles               int64
	currentFrameForTraceback *Frame
}

func New(objects *object.Table) *Interp {
	return &Interp{
		Objects: objects,
		Efuns:   make(map[string]EfunFunc),
		Limits:  DefaultLimits(),
		Log:     mlog.New(mlog.INFO, 256),
		Trace:   TraceCompact,
	}
}

// Call executes function fn on obj (whose defining program is
// definingProgram — may differ from obj.Proto for inherited code) with the
// given arguments, and returns its result. caller is the object whose code
// invoked this call (nil for a call originating from the driver itself).
//
// Runtime errors never propagate out of Call as a Go error in the normal
// case: per spec.md §7 they are reported and the function returns integer
// 0. Call only returns a non-nil error for conditions the driver itself
// must react to (e.g. the object/function genuinely not existing).
func (ip *Interp) Call(caller *object.Object, objH object.Handle, definingProgram *object.Prototype, fn *object.Function, args []value.Value) (value.Value, error) {
	obj, ok := ip.Objects.Get(objH)
	if !ok {
		return value.Int(0), fmt.Errorf("vm: call to destructed or unknown object")
	}
	if definingProgram == nil {
		definingProgram = obj.Proto
	}

	frame := &Frame{Obj: obj, ObjH: objH, Func: fn, DefiningProgram: definingProgram}
	frame.Prev = ip.currentFrameForTraceback
	ip.currentFrameForTraceback = frame

	ip.Log.Debugf("Frame push: func=%s, obj=%s#%d", fn.Name, obj.Proto.Path, objH.Slot)

	ip.depth++
	defer func() {
		ip.depth--
		ip.currentFrameForTraceback = frame.Prev
	}()

	if ip.depth > ip.Limits.MaxCallDepth {
		ip.reportError(frame, "call stack overflow - recursion too deep")
		return value.Int(0), nil
	}
	if ip.depth == 1 {
		ip.softCycles = 0
		ip.hardCycles = 0
	}

	locals := make([]value.Value, fn.NumLocals)
	for i, li := range fn.Locals {
		switch {
		case li.IsMapping:
			locals[i] = value.MapValOf(value.NewMapping())
			value.Retain(locals[i])
		case li.IsArray:
			size := li.ArraySize
			max := size
			if li.Unlimited {
				size = 0
				max = value.Unlimited
			}
			locals[i] = value.ArrVal(value.NewArray(size, max))
			value.Retain(locals[i])
		default:
			locals[i] = value.Int(0)
		}
	}
	for i := 0; i < len(args) && i < len(locals); i++ {
		value.Release(locals[i])
		locals[i] = args[i]
		value.Retain(locals[i])
	}
	defer func() {
		for _, l := range locals {
			value.Release(l)
		}
	}()

	ex := &execState{ip: ip, frame: frame, locals: locals, fn: fn}
	result, rerr := ex.run()
	if rerr != nil {
		if re, ok := rerr.(*RuntimeError); ok {
			ip.reportError(frame, re.Message)
			return value.Int(0), nil
		}
		return value.Int(0), rerr
	}
	return result, nil
}

func (ip *Interp) reportError(fr *Frame, msg string) {
	tb := Traceback(fr, msg, ip.Trace, ip.Source)
	ip.Log.Errorf("%s", tb)
}
