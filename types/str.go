package types

import "strconv"

// StrValue is a string owned by the stack slot holding it
type StrValue struct {
	val string
}

// NewStr creates a new owned string value
func NewStr(s string) StrValue {
	return StrValue{val: s}
}

// Type returns the type code for owned strings
func (s StrValue) Type() TypeCode {
	return TYPE_STR
}

// String returns the raw string contents
func (s StrValue) String() string {
	return s.val
}

// Quote returns the string as a double-quoted literal
func (s StrValue) Quote() string {
	return strconv.Quote(s.val)
}

// ConstStrValue is a string literal borrowed from a compiled program.
// The engine never frees or mutates it.
type ConstStrValue struct {
	val string
}

// NewConstStr creates a borrowed string value
func NewConstStr(s string) ConstStrValue {
	return ConstStrValue{val: s}
}

// Type returns the type code for borrowed strings
func (s ConstStrValue) Type() TypeCode {
	return TYPE_CONSTSTR
}

// String returns the raw string contents
func (s ConstStrValue) String() string {
	return s.val
}

// Atoi converts the leading integer prefix of s the way C atoi does:
// optional whitespace, optional sign, digits; anything else yields 0.
func Atoi(s string) int64 {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	var n int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n > 1<<53 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
