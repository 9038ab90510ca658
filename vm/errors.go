package vm

import (
	"errors"
	"fmt"

	"athena/types"
)

// Resource errors
var (
	ErrStackOverflow   = errors.New("execution stack limit exceeded")
	ErrTooDeep         = errors.New("control structures nested too deeply")
	ErrTickLimit       = errors.New("instruction limit exceeded")
	ErrProgramTooLarge = errors.New("program exceeds addressable size")
)

// State transition errors
var (
	ErrNotSuspended = errors.New("script is not suspended")
	ErrInputMissing = errors.New("script is awaiting a value")
	ErrNoFunction   = errors.New("no such function")
)

// RuntimeError ends one script instance
type RuntimeError struct {
	Code types.ErrorCode
	Line int
	Msg  string
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code, e.Msg)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// runtimeError converts a builtin or handler failure into a RuntimeError
func runtimeError(err error, line int) *RuntimeError {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Line == 0 {
			re.Line = line
		}
		return re
	}
	var se *types.ScriptError
	if errors.As(err, &se) {
		return &RuntimeError{Code: se.Code, Line: line, Msg: se.Msg, Err: err}
	}
	code := types.E_INTERNAL
	switch {
	case errors.Is(err, ErrStackOverflow):
		code = types.E_STACK
	case errors.Is(err, ErrTickLimit):
		code = types.E_TICKS
	}
	return &RuntimeError{Code: code, Line: line, Msg: err.Error(), Err: err}
}
