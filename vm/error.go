package vm

import (
	"errors"
	"fmt"
)

// Runtime error causes.
var (
	ErrStackUnderflow       = errors.New("stack underflow")
	ErrReturnStackUnderflow = errors.New("return stack underflow")
	ErrOutOfRange           = errors.New("stack index out of range")
)

// Result is the outcome of the last run.
type Result int

const (
	Ok Result = iota
	CompileError
	RuntimeError
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case CompileError:
		return "compile error"
	case RuntimeError:
		return "runtime error"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Error is returned by Exec, ExecFile and Interpret. Err is the cause: a
// *compiler.Error, an I/O error, or one of the runtime sentinels above.
type Error struct {
	Result Result
	Line   int // source line of the failing instruction, 0 if unknown
	Err    error
}

func (e *Error) Error() string {
	if e.Result == RuntimeError && e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
