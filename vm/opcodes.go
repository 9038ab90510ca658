package vm

// OpCode represents a bytecode instruction
type OpCode byte

// Terminator
const (
	OP_END OpCode = iota // Stop; also compiled from `end;`
)

// Push Operations
const (
	OP_INT        OpCode = OP_END + 1 + iota // Push integer [uvarint]
	OP_STR                                   // Push constant string [bytes..., 0]
	OP_NAME                                  // Push variable reference [sym:3]
	OP_POS                                   // Push resolved label [offset:3]
	OP_UNRESOLVED                            // Forward reference placeholder [sym:3]; never survives compile
	OP_ARG                                   // Push argument marker
	OP_DUP                                   // Push a copy of the top value
)

// Calls and Control Flow
const (
	OP_CALL        OpCode = OP_DUP + 1 + iota // Call builtin [sym:3]
	OP_CALLSUB                                // Call label in this program with frame linkage
	OP_CALLFUNC                               // Call named function program with frame linkage
	OP_RETURN                                 // Pop value; unwind frame
	OP_RETURN_NONE                            // Unwind frame; result 0
	OP_GOTO                                   // Jump [tag, offset:3]
	OP_JUMP_ZERO                              // Pop cond; jump if zero [tag, offset:3]
	OP_EOL                                    // End of statement: drop temporaries, mark line start
)

// Arithmetic Operations
const (
	OP_ADD OpCode = OP_EOL + 1 + iota // Pop b, a; push a + b
	OP_SUB                            // Pop b, a; push a - b
	OP_MUL                            // Pop b, a; push a * b
	OP_DIV                            // Pop b, a; push a / b
	OP_MOD                            // Pop b, a; push a % b
	OP_NEG                            // Pop a; push -a
)

// Comparison Operations
const (
	OP_EQ OpCode = OP_NEG + 1 + iota // Pop b, a; push a == b
	OP_NE                            // Pop b, a; push a != b
	OP_LT                            // Pop b, a; push a < b
	OP_LE                            // Pop b, a; push a <= b
	OP_GT                            // Pop b, a; push a > b
	OP_GE                            // Pop b, a; push a >= b
)

// Logical Operations. Both operands are always evaluated.
const (
	OP_NOT  OpCode = OP_GE + 1 + iota // Pop a; push !a
	OP_LAND                           // Pop b, a; push a && b
	OP_LOR                            // Pop b, a; push a || b
)

// Bitwise Operations
const (
	OP_BITAND OpCode = OP_LOR + 1 + iota // Pop b, a; push a & b
	OP_BITOR                             // Pop b, a; push a | b
	OP_BITXOR                            // Pop b, a; push a ^ b
	OP_BITNOT                            // Pop a; push ~a
	OP_SHL                               // Pop b, a; push a << b
	OP_SHR                               // Pop b, a; push a >> b
)

// OpCodeNames maps opcodes to their string names for debugging
var OpCodeNames = map[OpCode]string{
	OP_END:         "END",
	OP_INT:         "INT",
	OP_STR:         "STR",
	OP_NAME:        "NAME",
	OP_POS:         "POS",
	OP_UNRESOLVED:  "UNRESOLVED",
	OP_ARG:         "ARG",
	OP_DUP:         "DUP",
	OP_CALL:        "CALL",
	OP_CALLSUB:     "CALLSUB",
	OP_CALLFUNC:    "CALLFUNC",
	OP_RETURN:      "RETURN",
	OP_RETURN_NONE: "RETURN_NONE",
	OP_GOTO:        "GOTO",
	OP_JUMP_ZERO:   "JUMP_ZERO",
	OP_EOL:         "EOL",
	OP_ADD:         "ADD",
	OP_SUB:         "SUB",
	OP_MUL:         "MUL",
	OP_DIV:         "DIV",
	OP_MOD:         "MOD",
	OP_NEG:         "NEG",
	OP_EQ:          "EQ",
	OP_NE:          "NE",
	OP_LT:          "LT",
	OP_LE:          "LE",
	OP_GT:          "GT",
	OP_GE:          "GE",
	OP_NOT:         "NOT",
	OP_LAND:        "LAND",
	OP_LOR:         "LOR",
	OP_BITAND:      "BITAND",
	OP_BITOR:       "BITOR",
	OP_BITXOR:      "BITXOR",
	OP_BITNOT:      "BITNOT",
	OP_SHL:         "SHL",
	OP_SHR:         "SHR",
}

// String returns the name of an opcode
func (op OpCode) String() string {
	if name, ok := OpCodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsBinary reports whether op pops two operands and pushes one
func (op OpCode) IsBinary() bool {
	return op >= OP_ADD && op <= OP_SHR && op != OP_NEG && op != OP_NOT && op != OP_BITNOT
}

// IsUnary reports whether op pops one operand and pushes one
func (op OpCode) IsUnary() bool {
	return op == OP_NEG || op == OP_NOT || op == OP_BITNOT
}

// isRefTag reports whether op can introduce a 3-byte reference operand
func isRefTag(op OpCode) bool {
	return op == OP_NAME || op == OP_POS || op == OP_UNRESOLVED
}
