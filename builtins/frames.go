package builtins

import (
	"errors"

	"athena/types"
)

// builtinGetArg returns an argument of the current callsub/callfunc frame
// getarg(n [, default]) -> value
func builtinGetArg(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("getarg", args, 1); err != nil {
		return nil, err
	}
	n, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	v, err := s.Arg(int(n))
	if err != nil {
		var se *types.ScriptError
		if len(args) > 1 && errors.As(err, &se) && se.Code == types.E_ARGS {
			d, err := s.Resolve(args[1])
			if err != nil {
				return nil, err
			}
			return types.Copy(d), nil
		}
		return nil, err
	}
	return types.Copy(v), nil
}

// builtinGetArgCount returns the argument count of the current frame
// getargcount() -> int
func builtinGetArgCount(s Script, args []types.Value) (types.Value, error) {
	n, err := s.ArgCount()
	if err != nil {
		return nil, err
	}
	return types.NewInt(int64(n)), nil
}

// builtinSetArg replaces an argument of the current frame. The caller's
// variables are unaffected; arguments are copies.
// setarg(n, value) -> none
func builtinSetArg(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("setarg", args, 2); err != nil {
		return nil, err
	}
	n, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	return nil, s.SetArg(int(n), args[1])
}
