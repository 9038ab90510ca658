package builtins

import (
	"athena/types"
)

// intArg resolves v and coerces it to an integer
func intArg(s Script, v types.Value) (int64, error) {
	r, err := s.Resolve(v)
	if err != nil {
		return 0, err
	}
	n, ok := types.ToInt(r)
	if !ok {
		return 0, types.Errorf(types.E_TYPE, "expected a number, got %s", r)
	}
	return n, nil
}

// strArg resolves v and coerces it to a string
func strArg(s Script, v types.Value) (string, error) {
	r, err := s.Resolve(v)
	if err != nil {
		return "", err
	}
	str, ok := types.ToStr(r)
	if !ok {
		return "", types.Errorf(types.E_TYPE, "expected a string, got %s", r)
	}
	return str, nil
}

// refArg requires v to be an unresolved variable reference
func refArg(v types.Value) (types.Ref, error) {
	r, ok := v.(types.Ref)
	if !ok {
		return types.Ref{}, types.Errorf(types.E_TYPE, "expected a variable, got %s", v)
	}
	return r, nil
}

// countArg resolves an element count for an array run beginning at start.
// The run must stay inside the array.
func countArg(s Script, v types.Value, start int) (int, error) {
	n, err := intArg(s, v)
	if err != nil {
		return 0, err
	}
	room := types.MaxArrayIndex + 1 - start
	if n < 0 || n > int64(room) {
		return 0, types.Errorf(types.E_RANGE, "count %d outside 0..%d", n, room)
	}
	return int(n), nil
}

// needArgs fails unless at least n arguments were passed
func needArgs(name string, args []types.Value, n int) error {
	if len(args) < n {
		return types.Errorf(types.E_ARGS, "%s needs %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

// needActor fails when no acting subject is attached
func needActor(s Script, name string) error {
	if s.Actor() == 0 {
		return types.Errorf(types.E_ACTOR, "%s requires an attached actor", name)
	}
	return nil
}

func isZero(v types.Value) bool {
	switch x := v.(type) {
	case types.IntValue:
		return x.Val == 0
	case types.StrValue, types.ConstStrValue:
		return x.String() == ""
	}
	return false
}
