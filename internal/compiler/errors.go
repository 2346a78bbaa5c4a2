package compiler

import (
	"fmt"
	"strings"
)

// CompileError is a single reported compile failure: a source file, the
// 1-based line it was found on, and a message. Format renders it with a
// source-context window (the offending line marked with ">>>", two lines
// of context on either side) matching the original driver's
// compile_error/read_compile_source_line behavior.
type CompileError struct {
	File string
	Line int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Format renders the error with a two-line context window around e.Line,
// the offending line prefixed with ">>>" instead of a line number.
func (e *CompileError) Format(src string) string {
	lines := strings.Split(src, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: %s\n", e.File, e.Line, e.Msg)
	start := e.Line - 2
	if start < 1 {
		start = 1
	}
	end := e.Line + 2
	if end > len(lines) {
		end = len(lines)
	}
	for n := start; n <= end; n++ {
		if n < 1 || n > len(lines) {
			continue
		}
		marker := fmt.Sprintf("%4d", n)
		if n == e.Line {
			marker = ">>> "
		}
		fmt.Fprintf(&b, "%s| %s\n", marker, lines[n-1])
	}
	return b.String()
}

// withFile returns a copy of err with File set, if err is a *CompileError
// or *ParseError missing one; otherwise wraps a plain error at line 0.
func withFile(file string, err error) error {
	switch e := err.(type) {
	case *CompileError:
		if e.File == "" {
			e.File = file
		}
		return e
	case *ParseError:
		return &CompileError{File: file, Line: e.Line, Msg: e.Msg}
	default:
		return &CompileError{File: file, Msg: err.Error()}
	}
}
