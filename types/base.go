package types

// Value is one slot of the execution stack.
// The concrete variants are IntValue, StrValue, ConstStrValue, Ref,
// LabelValue, ArgMarker, ScriptRef and ReturnInfo.
type Value interface {
	Type() TypeCode
	String() string
}

// IsString reports whether v holds string data (owned or borrowed)
func IsString(v Value) bool {
	switch v.(type) {
	case StrValue, ConstStrValue:
		return true
	}
	return false
}

// IsData reports whether v is plain data (integer or string) rather than
// a reference or stack bookkeeping slot.
func IsData(v Value) bool {
	switch v.(type) {
	case IntValue, StrValue, ConstStrValue:
		return true
	}
	return false
}

// Copy duplicates a value for placement in another stack slot.
// Borrowed strings become owned copies; everything else is a plain value copy.
func Copy(v Value) Value {
	if s, ok := v.(ConstStrValue); ok {
		return NewStr(s.val)
	}
	return v
}

// ToInt coerces a data value to an integer.
// Strings convert with C atoi rules: leading integer prefix, 0 if none.
func ToInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case IntValue:
		return x.Val, true
	case StrValue:
		return Atoi(x.val), true
	case ConstStrValue:
		return Atoi(x.val), true
	}
	return 0, false
}

// ToStr coerces a data value to a string
func ToStr(v Value) (string, bool) {
	switch x := v.(type) {
	case StrValue:
		return x.val, true
	case ConstStrValue:
		return x.val, true
	case IntValue:
		return x.String(), true
	}
	return "", false
}

// Zero returns the value an unset variable reads as: the empty string
// for names ending in '$', otherwise 0
func Zero(name string) Value {
	if len(name) > 0 && name[len(name)-1] == '$' {
		return NewStr("")
	}
	return NewInt(0)
}
