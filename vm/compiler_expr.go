package vm

import (
	"fmt"
	"strings"

	"athena/builtins"
	"athena/parser"
	"athena/symbols"
)

// binaryOp returns the opcode and precedence of a binary operator token.
// Higher binds tighter; unary operators bind tighter than all of these.
func binaryOp(t parser.TokenType) (OpCode, int, bool) {
	switch t {
	case parser.TOKEN_OR:
		return OP_LOR, 1, true
	case parser.TOKEN_AND:
		return OP_LAND, 2, true
	case parser.TOKEN_EQ:
		return OP_EQ, 3, true
	case parser.TOKEN_NE:
		return OP_NE, 3, true
	case parser.TOKEN_LT:
		return OP_LT, 3, true
	case parser.TOKEN_LE:
		return OP_LE, 3, true
	case parser.TOKEN_GT:
		return OP_GT, 3, true
	case parser.TOKEN_GE:
		return OP_GE, 3, true
	case parser.TOKEN_BITXOR:
		return OP_BITXOR, 4, true
	case parser.TOKEN_BITOR:
		return OP_BITOR, 5, true
	case parser.TOKEN_LSHIFT:
		return OP_SHL, 6, true
	case parser.TOKEN_RSHIFT:
		return OP_SHR, 6, true
	case parser.TOKEN_BITAND:
		return OP_BITAND, 6, true
	case parser.TOKEN_PLUS:
		return OP_ADD, 7, true
	case parser.TOKEN_MINUS:
		return OP_SUB, 7, true
	case parser.TOKEN_STAR:
		return OP_MUL, 8, true
	case parser.TOKEN_SLASH:
		return OP_DIV, 8, true
	case parser.TOKEN_PERCENT:
		return OP_MOD, 8, true
	}
	return 0, 0, false
}

// compoundOp maps an assignment operator to its arithmetic opcode
func compoundOp(t parser.TokenType) (OpCode, bool) {
	switch t {
	case parser.TOKEN_ADD_ASSIGN, parser.TOKEN_INCR:
		return OP_ADD, true
	case parser.TOKEN_SUB_ASSIGN, parser.TOKEN_DECR:
		return OP_SUB, true
	case parser.TOKEN_MUL_ASSIGN:
		return OP_MUL, true
	case parser.TOKEN_DIV_ASSIGN:
		return OP_DIV, true
	case parser.TOKEN_MOD_ASSIGN:
		return OP_MOD, true
	}
	return 0, false
}

// parseExpr compiles an expression whose operators bind at least minPrec
func (c *Compiler) parseExpr(minPrec int) error {
	if err := c.parseUnary(); err != nil {
		return err
	}
	for {
		op, prec, ok := binaryOp(c.cur.Type)
		if !ok || prec < minPrec {
			return nil
		}
		c.next()
		if err := c.parseExpr(prec + 1); err != nil {
			return err
		}
		c.emit(op)
	}
}

func (c *Compiler) parseUnary() error {
	tok := c.cur
	switch tok.Type {
	case parser.TOKEN_MINUS, parser.TOKEN_PLUS:
		c.next()
		if c.cur.Type == parser.TOKEN_INT {
			v := c.cur.Int
			if tok.Type == parser.TOKEN_MINUS {
				v = -v
			}
			c.emitInt(v)
			c.next()
			return nil
		}
		if err := c.parseUnary(); err != nil {
			return err
		}
		if tok.Type == parser.TOKEN_MINUS {
			c.emit(OP_NEG)
		}
		return nil
	case parser.TOKEN_NOT:
		c.next()
		if err := c.parseUnary(); err != nil {
			return err
		}
		c.emit(OP_NOT)
		return nil
	case parser.TOKEN_BITNOT:
		c.next()
		if err := c.parseUnary(); err != nil {
			return err
		}
		c.emit(OP_BITNOT)
		return nil
	}
	return c.parsePrimary()
}

func (c *Compiler) parsePrimary() error {
	tok := c.cur
	switch tok.Type {
	case parser.TOKEN_INT:
		c.emitInt(tok.Int)
		c.next()
		return nil
	case parser.TOKEN_STRING:
		if err := c.emitStr(tok.Literal, tok.Position); err != nil {
			return err
		}
		c.next()
		return nil
	case parser.TOKEN_LPAREN:
		c.next()
		if err := c.parseExpr(0); err != nil {
			return err
		}
		return c.expect(parser.TOKEN_RPAREN)
	case parser.TOKEN_IDENTIFIER:
		return c.parseName()
	}
	return c.unexpected("expression")
}

// parseName compiles an identifier in expression position: a call,
// an array element, a constant or a reference to a label or variable
func (c *Compiler) parseName() error {
	tok := c.cur
	id, err := c.intern(tok.Value, tok.Position)
	if err != nil {
		return err
	}
	c.next()

	if op, ok := intrinsic(tok.Value); ok {
		if c.cur.Type != parser.TOKEN_LPAREN {
			return c.unexpected(fmt.Sprintf("'(' after %s", tok.Value))
		}
		c.next()
		return c.parseIntrinsic(op, tok, parser.TOKEN_RPAREN)
	}

	if b, ok := c.function(id); ok {
		switch c.cur.Type {
		case parser.TOKEN_LBRACKET:
			return c.errorf(c.cur.Position, "cannot index function %q", tok.Value)
		case parser.TOKEN_LPAREN:
			c.next()
			return c.parseCall(id, b, tok, parser.TOKEN_RPAREN)
		}
		c.emit(OP_ARG)
		c.emit(OP_CALL)
		c.emit3(id)
		return c.checkArgs(b, tok, nil, tok.Position)
	}

	if c.isUserFunc(id) && c.cur.Type == parser.TOKEN_LPAREN {
		c.next()
		return c.parseUserCall(id, parser.TOKEN_RPAREN)
	}

	switch c.cur.Type {
	case parser.TOKEN_LPAREN:
		return c.errorf(tok.Position, "call to undeclared function %q", tok.Value)
	case parser.TOKEN_LBRACKET:
		return c.parseElement(id, tok)
	}
	return c.emitRef(id, tok)
}

// intrinsic maps the call forms compiled to dedicated opcodes
func intrinsic(name string) (OpCode, bool) {
	switch strings.ToLower(name) {
	case "callsub":
		return OP_CALLSUB, true
	case "callfunc":
		return OP_CALLFUNC, true
	}
	return 0, false
}

func (c *Compiler) isUserFunc(id int) bool {
	ls, ok := c.labels[id]
	return ok && (ls.kind == labelFuncDeclared || ls.kind == labelFuncDefined)
}

// lookupFunction returns the symbol of a registered builtin
func (c *Compiler) lookupFunction(name string, pos parser.Position) (int, error) {
	id, ok := c.syms.Lookup(name)
	if ok {
		if _, ok := c.function(id); ok {
			return id, nil
		}
	}
	return 0, c.errorf(pos, "builtin %q is not registered", name)
}

// emitRef pushes the value or reference a bare name stands for
func (c *Compiler) emitRef(id int, tok parser.Token) error {
	sym := c.syms.Get(id)
	switch sym.Kind {
	case symbols.KindConstant:
		c.emitInt(sym.Value)
	case symbols.KindParam:
		c.emit(OP_NAME)
		c.emit3(id)
	case symbols.KindFunction:
		return c.errorf(tok.Position, "function %q used as a value", tok.Value)
	default:
		c.referenceLabel(id)
	}
	return nil
}

// parseElement compiles name[index] as getelementofarray(name, index).
// The current token is '['.
func (c *Compiler) parseElement(id int, tok parser.Token) error {
	if c.syms.Get(id).Kind == symbols.KindConstant {
		return c.errorf(tok.Position, "cannot index constant %q", tok.Value)
	}
	gea, err := c.lookupFunction("getelementofarray", tok.Position)
	if err != nil {
		return err
	}
	c.next()
	c.emit(OP_ARG)
	if err := c.emitRef(id, tok); err != nil {
		return err
	}
	if err := c.parseExpr(0); err != nil {
		return err
	}
	if err := c.expect(parser.TOKEN_RBRACKET); err != nil {
		return err
	}
	c.emit(OP_CALL)
	c.emit3(gea)
	return nil
}

// parseArgs compiles a comma separated argument list up to and including
// the close token. It returns each argument's position and the close
// token's position.
func (c *Compiler) parseArgs(close parser.TokenType) ([]parser.Position, parser.Position, error) {
	var positions []parser.Position
	for c.cur.Type != close {
		if c.cur.Type == parser.TOKEN_EOF {
			return nil, c.cur.Position, c.unexpected(fmt.Sprintf("'%s'", close))
		}
		positions = append(positions, c.cur.Position)
		if err := c.parseExpr(0); err != nil {
			return nil, c.cur.Position, err
		}
		if c.cur.Type == parser.TOKEN_COMMA {
			c.next()
			if c.cur.Type == close {
				return nil, c.cur.Position, c.errorf(c.cur.Position, "expected argument after ','")
			}
			continue
		}
		if c.cur.Type != close {
			if err := c.report(c.opts.MissingComma, c.cur.Position, "expected ',' between arguments"); err != nil {
				return nil, c.cur.Position, err
			}
		}
	}
	end := c.cur.Position
	c.next()
	return positions, end, nil
}

// parseCommandArgs parses a statement's argument list: either
// parenthesised and followed by term, or bare up to term
func (c *Compiler) parseCommandArgs(term parser.TokenType) ([]parser.Position, parser.Position, error) {
	if c.cur.Type != parser.TOKEN_LPAREN {
		return c.parseArgs(term)
	}
	c.next()
	positions, end, err := c.parseArgs(parser.TOKEN_RPAREN)
	if err != nil {
		return nil, end, err
	}
	return positions, end, c.expect(term)
}

// parseCall compiles a builtin call after its opening token.
// close is ')' for expressions or the statement terminator.
func (c *Compiler) parseCall(id int, b builtins.Builtin, tok parser.Token, close parser.TokenType) error {
	c.emit(OP_ARG)
	var (
		positions []parser.Position
		end       parser.Position
		err       error
	)
	if close == parser.TOKEN_RPAREN {
		positions, end, err = c.parseArgs(close)
	} else {
		positions, end, err = c.parseCommandArgs(close)
	}
	if err != nil {
		return err
	}
	c.emit(OP_CALL)
	c.emit3(id)
	return c.checkArgs(b, tok, positions, end)
}

// parseUserCall compiles F(args) for a script function F as callsub F, args
func (c *Compiler) parseUserCall(id int, close parser.TokenType) error {
	c.emit(OP_ARG)
	c.referenceLabel(id)
	var err error
	if close == parser.TOKEN_RPAREN {
		_, _, err = c.parseArgs(close)
	} else {
		_, _, err = c.parseCommandArgs(close)
	}
	if err != nil {
		return err
	}
	c.emit(OP_CALLSUB)
	return nil
}

// parseIntrinsic compiles callsub/callfunc; the first argument is the target
func (c *Compiler) parseIntrinsic(op OpCode, tok parser.Token, close parser.TokenType) error {
	c.emit(OP_ARG)
	var (
		positions []parser.Position
		err       error
	)
	if close == parser.TOKEN_RPAREN {
		positions, _, err = c.parseArgs(close)
	} else {
		positions, _, err = c.parseCommandArgs(close)
	}
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return c.errorf(tok.Position, "%s needs a target", tok.Value)
	}
	c.emit(op)
	return nil
}

// checkArgs validates an argument count against the builtin's signature
func (c *Compiler) checkArgs(b builtins.Builtin, tok parser.Token, positions []parser.Position, end parser.Position) error {
	n := len(positions)
	if c.opts.ArgCount == CheckOff || builtins.CheckArgs(b.Signature, n) {
		return nil
	}

	required := strings.IndexByte(b.Signature, '*')
	want := fmt.Sprintf("at least %d", required)
	if required < 0 {
		required = len(b.Signature)
		want = fmt.Sprintf("exactly %d", required)
	}

	pos := end
	if n > required && required < len(positions) {
		pos = positions[required]
	}
	return c.report(c.opts.ArgCount, pos, "%s expects %s argument(s), got %d", tok.Value, want, n)
}
