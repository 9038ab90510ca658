package vm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"athena/builtins"
	"athena/parser"
	"athena/symbols"
)

// CheckLevel sets how a configurable compile check reports
type CheckLevel int

const (
	CheckOff CheckLevel = iota
	CheckWarning
	CheckError
)

// ParseCheckLevel parses "off", "warning" or "error"
func ParseCheckLevel(s string) (CheckLevel, error) {
	switch strings.ToLower(s) {
	case "off", "none":
		return CheckOff, nil
	case "warning", "warn":
		return CheckWarning, nil
	case "error":
		return CheckError, nil
	}
	return CheckOff, fmt.Errorf("unknown check level %q", s)
}

// CompileOptions tunes one compilation
type CompileOptions struct {
	Name         string     // script name used in diagnostics
	ArgCount     CheckLevel // builtin argument count mismatches
	MissingComma CheckLevel // missing ',' between arguments
	MaxNesting   int        // syntax context depth limit
	BareBody     bool       // source is a statement list without outer braces
}

// DefaultMaxNesting bounds the syntax context stack
const DefaultMaxNesting = 256

// Compiler compiles one script source to bytecode. A Compiler is a
// single-use session; the intern table it writes to outlives it.
type Compiler struct {
	src      string
	lexer    *parser.Lexer
	cur      parser.Token
	peek     parser.Token
	consumed int // tokens advanced past
	syms     *symbols.Table
	registry *builtins.Registry
	opts     CompileOptions

	prog     *Program
	labels   map[int]*labelState // per-compilation label side table
	contexts []syntaxContext     // open control structures
	seq      int                 // next context index within this script
	lastLine int                 // last line recorded in LineInfo
}

// NewCompiler creates a compiler session for src
func NewCompiler(syms *symbols.Table, registry *builtins.Registry, opts CompileOptions) *Compiler {
	if opts.MaxNesting <= 0 {
		opts.MaxNesting = DefaultMaxNesting
	}
	return &Compiler{
		syms:     syms,
		registry: registry,
		opts:     opts,
		labels:   make(map[int]*labelState),
		contexts: make([]syntaxContext, 0, 16),
	}
}

// IsEmptyBody reports whether src is an empty "{}" body
func IsEmptyBody(src string) bool {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return false
	}
	return strings.TrimSpace(s[1:len(s)-1]) == ""
}

// Compile compiles src whose first line is startLine.
// An empty "{}" body yields a nil program and no error.
func (c *Compiler) Compile(src string, startLine int) (*Program, error) {
	if IsEmptyBody(src) {
		return nil, nil
	}

	c.src = src
	c.lexer = parser.NewLexer(src, startLine)
	c.prog = &Program{
		Name:     c.opts.Name,
		Code:     make([]byte, 0, 256),
		LineInfo: make([]LineEntry, 0, 32),
		Symbols:  c.syms,
	}
	c.next()
	c.next()

	if err := c.compileBody(); err != nil {
		return nil, err
	}

	c.sweepUnresolved()
	c.emit(OP_END)

	if len(c.prog.Code) >= MaxProgramSize {
		return nil, fmt.Errorf("%s: %w", c.opts.Name, ErrProgramTooLarge)
	}
	code := make([]byte, len(c.prog.Code))
	copy(code, c.prog.Code)
	c.prog.Code = code
	return c.prog, nil
}

func (c *Compiler) compileBody() error {
	if !c.opts.BareBody {
		if c.cur.Type != parser.TOKEN_LBRACE {
			return c.errorf(c.cur.Position, "expected '{' at start of script")
		}
		if err := c.pushContext(ctxBlock); err != nil {
			return err
		}
		c.contexts[0].outer = true
		c.next()
	}

	for {
		if c.cur.Type == parser.TOKEN_EOF {
			if len(c.contexts) > 0 {
				return c.errorf(c.cur.Position, "unexpected end of script, missing '}' or statement")
			}
			return nil
		}
		if err := c.parseStatement(parser.TOKEN_SEMICOLON); err != nil {
			return err
		}
		if !c.opts.BareBody && len(c.contexts) == 0 {
			if c.cur.Type != parser.TOKEN_EOF {
				return c.errorf(c.cur.Position, "unexpected %s after end of script", describe(c.cur))
			}
			return nil
		}
	}
}

// next advances to the next token
func (c *Compiler) next() {
	c.consumed++
	c.cur = c.peek
	c.peek = c.lexer.NextToken()
}

// expect consumes a token of type t or fails
func (c *Compiler) expect(t parser.TokenType) error {
	if c.cur.Type != t {
		return c.unexpected(fmt.Sprintf("'%s'", t))
	}
	c.next()
	return nil
}

func (c *Compiler) unexpected(want string) error {
	if c.cur.Type == parser.TOKEN_ILLEGAL {
		return c.errorf(c.cur.Position, "%s", c.cur.Value)
	}
	return c.errorf(c.cur.Position, "expected %s, found %s", want, describe(c.cur))
}

func describe(tok parser.Token) string {
	switch tok.Type {
	case parser.TOKEN_EOF:
		return "end of script"
	case parser.TOKEN_IDENTIFIER, parser.TOKEN_INT, parser.TOKEN_STRING:
		return fmt.Sprintf("%s %s", tok.Type, tok.Value)
	case parser.TOKEN_ILLEGAL:
		return tok.Value
	}
	return fmt.Sprintf("'%s'", tok.Type)
}

func (c *Compiler) isKeyword(tok parser.Token, kw string) bool {
	return tok.Type == parser.TOKEN_IDENTIFIER && strings.EqualFold(tok.Value, kw)
}

// errorf builds a fatal diagnostic at pos
func (c *Compiler) errorf(pos parser.Position, format string, args ...interface{}) error {
	return &parser.SyntaxError{Diagnostic: parser.NewDiagnostic(parser.SeverityError, c.src, pos, format, args...)}
}

// warnf records a non-fatal diagnostic at pos
func (c *Compiler) warnf(pos parser.Position, format string, args ...interface{}) {
	c.prog.Warnings = append(c.prog.Warnings, parser.NewDiagnostic(parser.SeverityWarning, c.src, pos, format, args...))
}

// report emits a diagnostic at the severity a configurable check asks for
func (c *Compiler) report(level CheckLevel, pos parser.Position, format string, args ...interface{}) error {
	switch level {
	case CheckError:
		return c.errorf(pos, format, args...)
	case CheckWarning:
		c.warnf(pos, format, args...)
	}
	return nil
}

// intern wraps the table's intern with a diagnostic for table exhaustion
func (c *Compiler) intern(name string, pos parser.Position) (int, error) {
	id, err := c.syms.Intern(name)
	if err != nil {
		se := c.errorf(pos, "cannot intern %q: %v", name, err).(*parser.SyntaxError)
		se.Cause = err
		return 0, se
	}
	return id, nil
}

// emit adds an opcode to the bytecode
func (c *Compiler) emit(op OpCode) int {
	pos := len(c.prog.Code)
	c.prog.Code = append(c.prog.Code, byte(op))
	return pos
}

// emit3 adds a 3-byte little-endian operand
func (c *Compiler) emit3(v int) {
	c.prog.Code = append(c.prog.Code, byte(v), byte(v>>8), byte(v>>16))
}

// emitInt pushes an integer literal; negatives are encoded as magnitude then NEG
func (c *Compiler) emitInt(v int64) {
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	c.emit(OP_INT)
	c.prog.Code = binary.AppendUvarint(c.prog.Code, u)
	if neg {
		c.emit(OP_NEG)
	}
}

// emitStr pushes a constant string stored inline
func (c *Compiler) emitStr(s string, pos parser.Position) error {
	if strings.IndexByte(s, 0) >= 0 {
		return c.errorf(pos, "string literal contains a NUL byte")
	}
	c.emit(OP_STR)
	c.prog.Code = append(c.prog.Code, s...)
	c.prog.Code = append(c.prog.Code, 0)
	return nil
}

// emitJump emits a jump with a tagged reference to the label called name
func (c *Compiler) emitJump(op OpCode, name string) error {
	id, err := c.intern(name, c.cur.Position)
	if err != nil {
		return err
	}
	c.emit(op)
	c.referenceLabel(id)
	return nil
}

// placeLabel defines the synthetic label called name here
func (c *Compiler) placeLabel(name string) error {
	id, err := c.intern(name, c.cur.Position)
	if err != nil {
		return err
	}
	return c.defineLabel(id, labelDefined, c.cur.Position)
}

// trackLine records a line number entry if line differs from the last one
func (c *Compiler) trackLine(line int) {
	if line > 0 && line != c.lastLine {
		c.prog.LineInfo = append(c.prog.LineInfo, LineEntry{
			StartPos: len(c.prog.Code),
			Line:     line,
		})
		c.lastLine = line
	}
}

// function returns the builtin behind a function symbol
func (c *Compiler) function(id int) (builtins.Builtin, bool) {
	sym := c.syms.Get(id)
	if sym.Kind != symbols.KindFunction || c.registry == nil {
		return builtins.Builtin{}, false
	}
	return c.registry.At(int(sym.Value))
}
