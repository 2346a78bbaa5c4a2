package vm

import (
	"fmt"
	"strings"
)

// TraceFormat selects how a traceback is rendered — full per-frame detail
// or the compact single-line-per-frame form used for production logs
// (spec.md §4.9).
type TraceFormat int

const (
	TraceFull TraceFormat = iota
	TraceCompact
)

// RuntimeError is a driver-internal error raised by the interpreter. It
// never unwinds past the function that raised it (spec.md §7 "runtime
// errors are local"): (*Interp).Call receives it from the dispatch loop,
// logs the traceback, and returns integer 0 to the caller instead of
// propagating a Go error.
type RuntimeError struct {
	Message string
	Frame   *Frame
}

func (e *RuntimeError) Error() string { return e.Message }

// Traceback renders the call-frame chain starting at f, in the format
// described by spec.md §4.9: "[depth] path#refno:line in function()" plus
// (in full mode) the source line, read on demand by sourceLine.
func Traceback(f *Frame, msg string, format TraceFormat, sourceLine func(path string, line int) string) string {
	var b strings.Builder
	b.WriteString("runtime error: ")
	b.WriteString(msg)
	b.WriteByte('\n')

	depth := 0
	for fr := f; fr != nil; fr = fr.Prev {
		path := "?"
		refno := uint32(0)
		funcName := "?"
		if fr.Obj != nil && fr.Obj.Proto != nil {
			path = fr.Obj.Proto.Path
		}
		if fr.Obj != nil {
			refno = fr.ObjH.Slot
		}
		if fr.Func != nil {
			funcName = fr.Func.Name
		}
		fmt.Fprintf(&b, "  [%d] %s#%d:%d in %s()", depth, path, refno, fr.Line, funcName)
		if format == TraceFull && sourceLine != nil {
			if line := sourceLine(path, fr.Line); line != "" {
				fmt.Fprintf(&b, "\n      %s", strings.TrimRight(line, "\n"))
			}
		}
		b.WriteByte('\n')
		depth++
	}
	return b.String()
}
