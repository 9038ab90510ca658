package builtins

import (
	"athena/types"
)

// builtinSet stores a value into a variable
// set(var, value) -> value
func builtinSet(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("set", args, 2); err != nil {
		return nil, err
	}
	v, err := s.Resolve(args[1])
	if err != nil {
		return nil, err
	}
	if err := s.Assign(args[0], v); err != nil {
		return nil, err
	}
	return types.Copy(v), nil
}

// builtinGetElementOfArray returns a reference to one array element
// getelementofarray(var, index) -> ref
func builtinGetElementOfArray(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("getelementofarray", args, 2); err != nil {
		return nil, err
	}
	ref, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	idx, err := intArg(s, args[1])
	if err != nil {
		return nil, err
	}
	elem, err := ref.WithIndex(int(idx))
	if err != nil {
		return nil, types.Errorf(types.E_RANGE, "%s: %v", s.RefName(ref), err)
	}
	return elem, nil
}

// element addresses ref's index plus off
func element(s Script, ref types.Ref, off int) (types.Ref, error) {
	elem, err := ref.WithIndex(ref.Index + off)
	if err != nil {
		return elem, types.Errorf(types.E_RANGE, "%s: %v", s.RefName(ref), err)
	}
	return elem, nil
}

// builtinSetArray stores consecutive elements starting at var's index
// setarray(var, value...) -> none
func builtinSetArray(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("setarray", args, 2); err != nil {
		return nil, err
	}
	ref, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	for i, v := range args[1:] {
		elem, err := element(s, ref, i)
		if err != nil {
			return nil, err
		}
		if err := s.Assign(elem, v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// builtinGetArraySize returns one past the highest non-empty element
// getarraysize(var) -> int
func builtinGetArraySize(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("getarraysize", args, 1); err != nil {
		return nil, err
	}
	ref, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	for i := types.MaxArrayIndex; i >= 0; i-- {
		v, err := s.Resolve(types.Ref{ID: ref.ID, Index: i})
		if err != nil {
			return nil, err
		}
		if !isZero(v) {
			return types.NewInt(int64(i + 1)), nil
		}
	}
	return types.NewInt(0), nil
}

// builtinClearArray fills count elements starting at var's index
// cleararray(var, value, count) -> none
func builtinClearArray(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("cleararray", args, 3); err != nil {
		return nil, err
	}
	ref, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	v, err := s.Resolve(args[1])
	if err != nil {
		return nil, err
	}
	count, err := countArg(s, args[2], ref.Index)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		elem, err := element(s, ref, i)
		if err != nil {
			return nil, err
		}
		if err := s.Assign(elem, v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// builtinCopyArray copies count elements; overlapping ranges are safe
// copyarray(dst, src, count) -> none
func builtinCopyArray(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("copyarray", args, 3); err != nil {
		return nil, err
	}
	dst, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	src, err := refArg(args[1])
	if err != nil {
		return nil, err
	}
	count, err := countArg(s, args[2], max(src.Index, dst.Index))
	if err != nil {
		return nil, err
	}

	vals := make([]types.Value, 0, count)
	for i := 0; i < count; i++ {
		elem, err := element(s, src, i)
		if err != nil {
			return nil, err
		}
		v, err := s.Resolve(elem)
		if err != nil {
			return nil, err
		}
		vals = append(vals, types.Copy(v))
	}
	for i, v := range vals {
		elem, err := element(s, dst, i)
		if err != nil {
			return nil, err
		}
		if err := s.Assign(elem, v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// builtinDeleteArray removes count elements at var's index, shifting the
// rest down; count defaults to the rest of the array
// deletearray(var [, count]) -> none
func builtinDeleteArray(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("deletearray", args, 1); err != nil {
		return nil, err
	}
	ref, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	count := types.MaxArrayIndex + 1 - ref.Index
	if len(args) > 1 {
		if count, err = countArg(s, args[1], ref.Index); err != nil {
			return nil, err
		}
	}
	if count == 0 {
		return nil, nil
	}

	zero, err := s.Resolve(types.Ref{ID: ref.ID, Index: types.MaxArrayIndex})
	if err != nil {
		return nil, err
	}
	if types.IsString(zero) {
		zero = types.NewStr("")
	} else {
		zero = types.NewInt(0)
	}

	for i := ref.Index; i <= types.MaxArrayIndex; i++ {
		var v types.Value = zero
		if from := i + count; from <= types.MaxArrayIndex {
			if v, err = s.Resolve(types.Ref{ID: ref.ID, Index: from}); err != nil {
				return nil, err
			}
		}
		if err := s.Assign(types.Ref{ID: ref.ID, Index: i}, v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
