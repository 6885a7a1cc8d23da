package formula

import (
	"fmt"
	"strings"
)

// ErrorCode is the display literal of a spreadsheet error value. the literals
// are part of the public contract and must not change.
type ErrorCode string

const (
	ErrValue ErrorCode = "#VALUE!" // wrong type of argument or operand, malformed formula
	ErrRef   ErrorCode = "#REF!"   // invalid reference, provider fault
	ErrName  ErrorCode = "#NAME?"  // unrecognized function or name
	ErrDiv0  ErrorCode = "#DIV/0!" // division by zero
	ErrNull  ErrorCode = "#NULL!"  // no cells in common between ranges
	ErrNum   ErrorCode = "#NUM!"   // number outside a function's domain
	ErrNA    ErrorCode = "#N/A"    // value not available, lookup miss
	ErrCycle ErrorCode = "#CYCLE!" // circular reference
)

// ErrorCodes lists every error literal the engine itself produces.
var ErrorCodes = []ErrorCode{ErrValue, ErrRef, ErrName, ErrDiv0, ErrNull, ErrNum, ErrNA, ErrCycle}

// IsErrorText reports whether s is an error literal. anything starting with
// "#" counts, which is how providers and renderers recognise errors.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, "#")
}

// IsError reports whether v is an error value.
func IsError(v Value) bool {
	return v.kind == KindError
}

// EvalError is a grammar failure raised while parsing a token stream. it
// never escapes Evaluate, which turns it into its Code.
type EvalError struct {
	Code    ErrorCode
	Message string
	Pos     int
}

func (e *EvalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s at token %d: %s", e.Code, e.Pos, e.Message)
	}
	return string(e.Code)
}

func newEvalError(pos int, format string, args ...any) *EvalError {
	return &EvalError{
		Code:    ErrValue,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}
