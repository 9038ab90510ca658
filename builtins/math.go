package builtins

import (
	"math/rand/v2"

	"athena/types"
)

// builtinRand returns a random integer in 0..n-1, or in a..b inclusive
// rand(n) -> int
// rand(a, b) -> int
func builtinRand(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("rand", args, 1); err != nil {
		return nil, err
	}
	lo, hi := int64(0), int64(0)
	first, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		hi = first - 1
	} else {
		second, err := intArg(s, args[1])
		if err != nil {
			return nil, err
		}
		lo, hi = first, second
		if lo > hi {
			lo, hi = hi, lo
		}
	}
	if hi < lo {
		return types.NewInt(0), nil
	}
	return types.NewInt(lo + rand.Int64N(hi-lo+1)), nil
}

// builtinMin returns the smallest argument
// min(int...) -> int
func builtinMin(s Script, args []types.Value) (types.Value, error) {
	return extreme(s, "min", args, func(a, b int64) bool { return a < b })
}

// builtinMax returns the largest argument
// max(int...) -> int
func builtinMax(s Script, args []types.Value) (types.Value, error) {
	return extreme(s, "max", args, func(a, b int64) bool { return a > b })
}

func extreme(s Script, name string, args []types.Value, better func(a, b int64) bool) (types.Value, error) {
	if err := needArgs(name, args, 1); err != nil {
		return nil, err
	}
	best, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		n, err := intArg(s, a)
		if err != nil {
			return nil, err
		}
		if better(n, best) {
			best = n
		}
	}
	return types.NewInt(best), nil
}

// builtinAbs returns the absolute value
// abs(int) -> int
func builtinAbs(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("abs", args, 1); err != nil {
		return nil, err
	}
	n, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = -n
	}
	return types.NewInt(n), nil
}
