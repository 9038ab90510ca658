package vm

import (
	"athena/types"
)

// operand resolves v and coerces it to an integer
func (st *State) operand(v types.Value) (int64, error) {
	r, err := st.Resolve(v)
	if err != nil {
		return 0, err
	}
	n, ok := types.ToInt(r)
	if !ok {
		return 0, types.Errorf(types.E_TYPE, "operand %s is not a number", r)
	}
	return n, nil
}

// unary applies a one-operand opcode to a
func unary(op OpCode, a int64) int64 {
	switch op {
	case OP_NEG:
		return -a
	case OP_NOT:
		return b2i(a == 0)
	case OP_BITNOT:
		return ^a
	}
	return 0
}

// arith applies a two-operand opcode to a and b
func arith(op OpCode, a, b int64) (int64, error) {
	switch op {
	case OP_ADD:
		return a + b, nil
	case OP_SUB:
		return a - b, nil
	case OP_MUL:
		return a * b, nil
	case OP_DIV:
		if b == 0 {
			return 0, types.Errorf(types.E_DIV, "division by zero")
		}
		return a / b, nil
	case OP_MOD:
		if b == 0 {
			return 0, types.Errorf(types.E_DIV, "modulo by zero")
		}
		return a % b, nil
	case OP_EQ:
		return b2i(a == b), nil
	case OP_NE:
		return b2i(a != b), nil
	case OP_LT:
		return b2i(a < b), nil
	case OP_LE:
		return b2i(a <= b), nil
	case OP_GT:
		return b2i(a > b), nil
	case OP_GE:
		return b2i(a >= b), nil
	case OP_LAND:
		return b2i(a != 0 && b != 0), nil
	case OP_LOR:
		return b2i(a != 0 || b != 0), nil
	case OP_BITAND:
		return a & b, nil
	case OP_BITOR:
		return a | b, nil
	case OP_BITXOR:
		return a ^ b, nil
	case OP_SHL:
		if b < 0 {
			return 0, types.Errorf(types.E_RANGE, "negative shift count %d", b)
		}
		return a << uint64(b), nil
	case OP_SHR:
		if b < 0 {
			return 0, types.Errorf(types.E_RANGE, "negative shift count %d", b)
		}
		return a >> uint64(b), nil
	}
	return 0, types.Errorf(types.E_INTERNAL, "%s is not a binary operator", op)
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
