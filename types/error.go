package types

import "fmt"

// ErrorCode classifies a runtime failure of a script instance
type ErrorCode int

const (
	E_NONE     ErrorCode = iota
	E_TYPE               // operand has the wrong variant
	E_DIV                // division or modulo by zero
	E_RANGE              // array index outside 0..127
	E_ARGS               // builtin received unusable arguments
	E_LABEL              // jump target is not a resolved label
	E_FRAME              // getarg/return without a call frame
	E_ACTOR              // per-actor operation with no actor attached
	E_STACK              // stack limit exceeded or underflow
	E_TICKS              // instruction budget exhausted
	E_FUNC               // unknown function
	E_INTERNAL           // recovered panic or corrupt bytecode
)

var errorNames = map[ErrorCode]string{
	E_NONE:     "E_NONE",
	E_TYPE:     "E_TYPE",
	E_DIV:      "E_DIV",
	E_RANGE:    "E_RANGE",
	E_ARGS:     "E_ARGS",
	E_LABEL:    "E_LABEL",
	E_FRAME:    "E_FRAME",
	E_ACTOR:    "E_ACTOR",
	E_STACK:    "E_STACK",
	E_TICKS:    "E_TICKS",
	E_FUNC:     "E_FUNC",
	E_INTERNAL: "E_INTERNAL",
}

// String returns the name of an error code
func (e ErrorCode) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "E_UNKNOWN"
}

// ErrorFromString parses an error code name
func ErrorFromString(s string) (ErrorCode, bool) {
	for code, name := range errorNames {
		if name == s {
			return code, true
		}
	}
	return E_NONE, false
}

// ScriptError is a failure raised by a builtin or an opcode handler.
// The VM attaches the source line and ends the instance.
type ScriptError struct {
	Code ErrorCode
	Msg  string
}

func (e *ScriptError) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

// Errorf builds a ScriptError
func Errorf(code ErrorCode, format string, args ...interface{}) error {
	return &ScriptError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
