package vm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"athena/parser"
	"athena/symbols"
)

// MaxProgramSize is the largest offset a 3-byte label operand can address
const MaxProgramSize = 1 << 24

// Program represents compiled bytecode
type Program struct {
	Name     string
	Code     []byte              // Bytecode instructions, OP_END terminated
	LineInfo []LineEntry         // Source line mapping
	Warnings []parser.Diagnostic // Non-fatal compile diagnostics
	Symbols  *symbols.Table      // Table the operands refer to
}

// LineEntry maps bytecode position to source line
type LineEntry struct {
	StartPos int // First position for this line
	Line     int // Source line number
}

// LineForPos returns the source line number for a given position
func (p *Program) LineForPos(pos int) int {
	for i := len(p.LineInfo) - 1; i >= 0; i-- {
		if p.LineInfo[i].StartPos <= pos {
			return p.LineInfo[i].Line
		}
	}
	return 0
}

// put3 writes a 24-bit little-endian operand at off
func put3(code []byte, off int, v int) {
	code[off] = byte(v)
	code[off+1] = byte(v >> 8)
	code[off+2] = byte(v >> 16)
}

// get3 reads a 24-bit little-endian operand at off
func get3(code []byte, off int) int {
	return int(code[off]) | int(code[off+1])<<8 | int(code[off+2])<<16
}

// instrLen returns the encoded length of the instruction at pos
func instrLen(code []byte, pos int) (int, error) {
	op := OpCode(code[pos])
	switch op {
	case OP_INT:
		_, n := binary.Uvarint(code[pos+1:])
		if n <= 0 {
			return 0, fmt.Errorf("bad varint at %d", pos)
		}
		return 1 + n, nil
	case OP_STR:
		end := indexZero(code, pos+1)
		if end < 0 {
			return 0, fmt.Errorf("unterminated string at %d", pos)
		}
		return end - pos + 1, nil
	case OP_NAME, OP_POS, OP_UNRESOLVED, OP_CALL:
		return 4, nil
	case OP_GOTO, OP_JUMP_ZERO:
		return 5, nil
	}
	if _, ok := OpCodeNames[op]; !ok {
		return 0, fmt.Errorf("unknown opcode %d at %d", op, pos)
	}
	return 1, nil
}

func indexZero(code []byte, from int) int {
	for i := from; i < len(code); i++ {
		if code[i] == 0 {
			return i
		}
	}
	return -1
}

// Disassemble renders the program one instruction per line
func (p *Program) Disassemble() string {
	var b strings.Builder
	lastLine := -1
	for pos := 0; pos < len(p.Code); {
		n, err := instrLen(p.Code, pos)
		if err != nil {
			fmt.Fprintf(&b, "%06d  ?? %v\n", pos, err)
			break
		}

		if line := p.LineForPos(pos); line != lastLine {
			fmt.Fprintf(&b, "; line %d\n", line)
			lastLine = line
		}

		op := OpCode(p.Code[pos])
		fmt.Fprintf(&b, "%06d  %-11s", pos, op)
		switch op {
		case OP_INT:
			v, _ := binary.Uvarint(p.Code[pos+1:])
			fmt.Fprintf(&b, " %d", v)
		case OP_STR:
			fmt.Fprintf(&b, " %q", p.Code[pos+1:pos+n-1])
		case OP_NAME, OP_UNRESOLVED, OP_CALL:
			fmt.Fprintf(&b, " %s", p.symbolName(get3(p.Code, pos+1)))
		case OP_POS:
			fmt.Fprintf(&b, " @%d", get3(p.Code, pos+1))
		case OP_GOTO, OP_JUMP_ZERO:
			tag := OpCode(p.Code[pos+1])
			arg := get3(p.Code, pos+2)
			if tag == OP_POS {
				fmt.Fprintf(&b, " @%d", arg)
			} else {
				fmt.Fprintf(&b, " %s %s", tag, p.symbolName(arg))
			}
		}
		b.WriteByte('\n')
		pos += n
	}
	return b.String()
}

func (p *Program) symbolName(id int) string {
	if p.Symbols == nil {
		return fmt.Sprintf("#%d", id)
	}
	if name := p.Symbols.Name(id); name != "" {
		return name
	}
	return fmt.Sprintf("#%d", id)
}
