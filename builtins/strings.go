package builtins

import (
	"strconv"
	"strings"

	"athena/types"

	"go.uber.org/zap"
)

// builtinGetStrLen returns the length of a string in bytes
// getstrlen(str) -> int
func builtinGetStrLen(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("getstrlen", args, 1); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	return types.NewInt(int64(len(str))), nil
}

// builtinStrcat concatenates its arguments
// strcat(str...) -> str
func builtinStrcat(s Script, args []types.Value) (types.Value, error) {
	var b strings.Builder
	for _, a := range args {
		str, err := strArg(s, a)
		if err != nil {
			return nil, err
		}
		b.WriteString(str)
	}
	return types.NewStr(b.String()), nil
}

// builtinSubstr returns the bytes from start to end inclusive.
// Out of range bounds yield the empty string.
// substr(str, start, end) -> str
func builtinSubstr(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("substr", args, 3); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	start, err := intArg(s, args[1])
	if err != nil {
		return nil, err
	}
	end, err := intArg(s, args[2])
	if err != nil {
		return nil, err
	}
	if start < 0 || end < start || end >= int64(len(str)) {
		s.Logger().Warn("substr out of range",
			zap.Int64("start", start),
			zap.Int64("end", end),
			zap.Int("length", len(str)))
		return types.NewStr(""), nil
	}
	return types.NewStr(str[start : end+1]), nil
}

// builtinStrToUpper converts a string to uppercase
// strtoupper(str) -> str
func builtinStrToUpper(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("strtoupper", args, 1); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	return types.NewStr(strings.ToUpper(str)), nil
}

// builtinStrToLower converts a string to lowercase
// strtolower(str) -> str
func builtinStrToLower(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("strtolower", args, 1); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	return types.NewStr(strings.ToLower(str)), nil
}

// builtinAtoi parses the leading integer of a string
// atoi(str) -> int
func builtinAtoi(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("atoi", args, 1); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	return types.NewInt(types.Atoi(str)), nil
}

// builtinItoa formats an integer
// itoa(int) -> str
func builtinItoa(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("itoa", args, 1); err != nil {
		return nil, err
	}
	n, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	return types.NewStr(strconv.FormatInt(n, 10)), nil
}
