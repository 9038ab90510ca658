package types

import "strconv"

// IntValue represents a script integer
type IntValue struct {
	Val int64
}

// Type returns the type code for integers
func (i IntValue) Type() TypeCode {
	return TYPE_INT
}

// String returns the decimal representation
func (i IntValue) String() string {
	return strconv.FormatInt(i.Val, 10)
}

// NewInt creates a new IntValue
func NewInt(val int64) IntValue {
	return IntValue{Val: val}
}

// Bool converts a Go bool to the script's 1/0 integers
func Bool(b bool) IntValue {
	if b {
		return IntValue{Val: 1}
	}
	return IntValue{Val: 0}
}
