package vm

import (
	"fmt"
	"strings"
	"sync/atomic"

	"athena/parser"
	"athena/symbols"
)

type ctxKind int

const (
	ctxBlock ctxKind = iota
	ctxIf
	ctxSwitch
	ctxWhile
	ctxFor
	ctxDo
	ctxFunction
)

var ctxPrefix = map[ctxKind]string{
	ctxBlock:    "blk",
	ctxIf:       "if",
	ctxSwitch:   "sw",
	ctxWhile:    "wh",
	ctxFor:      "fr",
	ctxDo:       "do",
	ctxFunction: "fn",
}

// contextSeq hands out process-unique context IDs
var contextSeq atomic.Uint64

// syntaxContext is one open control structure
type syntaxContext struct {
	kind  ctxKind
	index int    // sequence within this script; names synthetic labels
	id    uint64 // process-unique; names switch temporaries
	flag  bool   // if: plain else seen; switch: default seen; do: continue used
	count int    // if: else-if position; switch: next case number
	outer bool   // the script's enclosing braces
	temp  int    // switch: temporary variable symbol
	cases map[int64]parser.Position
}

// label names a synthetic label of this context
func (ctx *syntaxContext) label(suffix string) string {
	return fmt.Sprintf("__%s_%d_%s", ctxPrefix[ctx.kind], ctx.index, suffix)
}

func (ctx *syntaxContext) numbered(n int, suffix string) string {
	return fmt.Sprintf("__%s_%d_%d%s", ctxPrefix[ctx.kind], ctx.index, n, suffix)
}

func (c *Compiler) pushContext(kind ctxKind) error {
	if len(c.contexts) >= c.opts.MaxNesting {
		se := c.errorf(c.cur.Position, "control structures nested deeper than %d", c.opts.MaxNesting).(*parser.SyntaxError)
		se.Cause = ErrTooDeep
		return se
	}
	c.contexts = append(c.contexts, syntaxContext{
		kind:  kind,
		index: c.seq,
		id:    contextSeq.Add(1),
	})
	c.seq++
	return nil
}

func (c *Compiler) top() *syntaxContext {
	if len(c.contexts) == 0 {
		return nil
	}
	return &c.contexts[len(c.contexts)-1]
}

func (c *Compiler) popContext() {
	c.contexts = c.contexts[:len(c.contexts)-1]
}

// parseStatement compiles one statement, then closes every control
// structure whose body it completed. term is the terminator of simple
// statements.
func (c *Compiler) parseStatement(term parser.TokenType) error {
	c.trackLine(c.cur.Position.Line)
	tok := c.cur

	switch tok.Type {
	case parser.TOKEN_SEMICOLON:
		c.next()
		return c.closeSyntax()
	case parser.TOKEN_LBRACE:
		if err := c.pushContext(ctxBlock); err != nil {
			return err
		}
		c.next()
		return nil
	case parser.TOKEN_RBRACE:
		return c.closeBrace()
	case parser.TOKEN_INCR, parser.TOKEN_DECR:
		if err := c.parseSimple(term); err != nil {
			return err
		}
		return c.closeSyntax()
	case parser.TOKEN_IDENTIFIER:
		if c.peek.Type == parser.TOKEN_COLON && !strings.EqualFold(tok.Value, "default") {
			return c.parseLabelDef()
		}
		if handled, err := c.parseKeyword(); handled {
			return err
		}
		if err := c.parseSimple(term); err != nil {
			return err
		}
		return c.closeSyntax()
	}
	return c.unexpected("statement")
}

// parseLabelDef compiles NAME:
func (c *Compiler) parseLabelDef() error {
	tok := c.cur
	id, err := c.intern(tok.Value, tok.Position)
	if err != nil {
		return err
	}
	if kind := c.syms.Get(id).Kind; kind != symbols.KindName {
		return c.errorf(tok.Position, "label %q clashes with a %s", tok.Value, kind)
	}
	c.next()
	c.next()
	return c.defineLabel(id, labelDefined, tok.Position)
}

func (c *Compiler) parseKeyword() (bool, error) {
	switch strings.ToLower(c.cur.Value) {
	case "if":
		return true, c.parseIf()
	case "else":
		return true, c.errorf(c.cur.Position, "'else' without matching 'if'")
	case "while":
		return true, c.parseWhile()
	case "for":
		return true, c.parseFor()
	case "do":
		return true, c.parseDo()
	case "switch":
		return true, c.parseSwitch()
	case "case":
		return true, c.parseCase()
	case "default":
		return true, c.parseDefault()
	case "break":
		return true, c.parseBreak()
	case "continue":
		return true, c.parseContinue()
	case "function":
		return true, c.parseFunction()
	case "goto":
		return true, c.parseGoto()
	case "return":
		return true, c.parseReturn()
	case "end":
		c.next()
		if err := c.expect(parser.TOKEN_SEMICOLON); err != nil {
			return true, err
		}
		c.emit(OP_END)
		return true, c.closeSyntax()
	}
	return false, nil
}

// parseSimple compiles a command, call or assignment up to and including term
func (c *Compiler) parseSimple(term parser.TokenType) error {
	tok := c.cur

	if tok.Type == parser.TOKEN_INCR || tok.Type == parser.TOKEN_DECR {
		c.next()
		if c.cur.Type != parser.TOKEN_IDENTIFIER {
			return c.unexpected("variable after " + tok.Type.String())
		}
		target := c.cur
		id, err := c.intern(target.Value, target.Position)
		if err != nil {
			return err
		}
		c.next()
		if err := c.parseAssign(id, target, tok.Type, term); err != nil {
			return err
		}
		c.emit(OP_EOL)
		return nil
	}

	if tok.Type != parser.TOKEN_IDENTIFIER {
		return c.unexpected("command")
	}
	id, err := c.intern(tok.Value, tok.Position)
	if err != nil {
		return err
	}
	c.next()

	if op, ok := intrinsic(tok.Value); ok {
		err = c.parseIntrinsic(op, tok, term)
	} else if b, ok := c.function(id); ok {
		err = c.parseCall(id, b, tok, term)
	} else if c.isUserFunc(id) {
		err = c.parseUserCall(id, term)
	} else if c.cur.Type.IsAssign() || c.cur.Type == parser.TOKEN_LBRACKET ||
		c.cur.Type == parser.TOKEN_INCR || c.cur.Type == parser.TOKEN_DECR {
		err = c.parseAssign(id, tok, 0, term)
	} else {
		return c.errorf(tok.Position, "unknown command %q", tok.Value)
	}
	if err != nil {
		return err
	}
	c.emit(OP_EOL)
	return nil
}

// parseAssign compiles assignment forms as a call to set.
// prefix is TOKEN_INCR or TOKEN_DECR for ++v / --v, zero otherwise.
func (c *Compiler) parseAssign(id int, tok parser.Token, prefix parser.TokenType, term parser.TokenType) error {
	switch c.syms.Get(id).Kind {
	case symbols.KindConstant:
		return c.errorf(tok.Position, "cannot assign to constant %q", tok.Value)
	case symbols.KindFunction:
		return c.errorf(tok.Position, "cannot assign to function %q", tok.Value)
	}
	set, err := c.lookupFunction("set", tok.Position)
	if err != nil {
		return err
	}

	c.emit(OP_ARG)
	if c.cur.Type == parser.TOKEN_LBRACKET {
		if err := c.parseElement(id, tok); err != nil {
			return err
		}
	} else if err := c.emitRef(id, tok); err != nil {
		return err
	}

	opTok := c.cur.Type
	if prefix != 0 {
		opTok = prefix
	} else {
		if !opTok.IsAssign() && opTok != parser.TOKEN_INCR && opTok != parser.TOKEN_DECR {
			return c.unexpected("assignment operator")
		}
		c.next()
	}

	switch opTok {
	case parser.TOKEN_ASSIGN:
		if err := c.parseExpr(0); err != nil {
			return err
		}
	case parser.TOKEN_INCR, parser.TOKEN_DECR:
		op, _ := compoundOp(opTok)
		c.emit(OP_DUP)
		c.emitInt(1)
		c.emit(op)
	default:
		// The target is evaluated once and read through its copy
		op, _ := compoundOp(opTok)
		c.emit(OP_DUP)
		if err := c.parseExpr(0); err != nil {
			return err
		}
		c.emit(op)
	}

	c.emit(OP_CALL)
	c.emit3(set)
	return c.expect(term)
}

// parseCondition compiles "(E)" as a jump to target when E is zero
func (c *Compiler) parseCondition(target string) error {
	if err := c.expect(parser.TOKEN_LPAREN); err != nil {
		return err
	}
	if err := c.parseExpr(0); err != nil {
		return err
	}
	if err := c.expect(parser.TOKEN_RPAREN); err != nil {
		return err
	}
	if err := c.emitJump(OP_JUMP_ZERO, target); err != nil {
		return err
	}
	c.emit(OP_EOL)
	return nil
}

// if (E) S [else if (E) S]... [else S]
func (c *Compiler) parseIf() error {
	c.next()
	if err := c.pushContext(ctxIf); err != nil {
		return err
	}
	return c.parseCondition(c.top().numbered(0, ""))
}

// while (E) S: NXT: jz(E, FIN); S; goto NXT; FIN:
func (c *Compiler) parseWhile() error {
	c.next()
	if err := c.pushContext(ctxWhile); err != nil {
		return err
	}
	ctx := c.top()
	if err := c.placeLabel(ctx.label("nxt")); err != nil {
		return err
	}
	return c.parseCondition(ctx.label("fin"))
}

// for (INIT; COND; STEP) S:
// INIT; J: jz(COND, FIN); goto BGN; NXT: STEP; goto J; BGN: S; goto NXT; FIN:
func (c *Compiler) parseFor() error {
	c.next()
	if err := c.pushContext(ctxFor); err != nil {
		return err
	}
	ctx := *c.top()

	if err := c.expect(parser.TOKEN_LPAREN); err != nil {
		return err
	}
	if c.cur.Type == parser.TOKEN_SEMICOLON {
		c.next()
	} else if err := c.parseSimple(parser.TOKEN_SEMICOLON); err != nil {
		return err
	}

	if err := c.placeLabel(ctx.label("j")); err != nil {
		return err
	}
	if c.cur.Type != parser.TOKEN_SEMICOLON {
		if err := c.parseExpr(0); err != nil {
			return err
		}
		if err := c.emitJump(OP_JUMP_ZERO, ctx.label("fin")); err != nil {
			return err
		}
		c.emit(OP_EOL)
	}
	if err := c.expect(parser.TOKEN_SEMICOLON); err != nil {
		return err
	}
	if err := c.emitJump(OP_GOTO, ctx.label("bgn")); err != nil {
		return err
	}

	if err := c.placeLabel(ctx.label("nxt")); err != nil {
		return err
	}
	if c.cur.Type == parser.TOKEN_RPAREN {
		c.next()
	} else if err := c.parseSimple(parser.TOKEN_RPAREN); err != nil {
		return err
	}
	if err := c.emitJump(OP_GOTO, ctx.label("j")); err != nil {
		return err
	}
	return c.placeLabel(ctx.label("bgn"))
}

// do S while (E);  BGN: S; [NXT:] jz(E, FIN); goto BGN; FIN:
func (c *Compiler) parseDo() error {
	c.next()
	if err := c.pushContext(ctxDo); err != nil {
		return err
	}
	return c.placeLabel(c.top().label("bgn"))
}

// switch (E) { ... } stores E in a temporary, then each case tests it
func (c *Compiler) parseSwitch() error {
	tok := c.cur
	c.next()
	if err := c.pushContext(ctxSwitch); err != nil {
		return err
	}
	ctx := c.top()
	ctx.count = 1
	ctx.cases = make(map[int64]parser.Position)

	temp, err := c.intern(fmt.Sprintf("$@__sw%d_val", ctx.id), tok.Position)
	if err != nil {
		return err
	}
	ctx.temp = temp
	set, err := c.lookupFunction("set", tok.Position)
	if err != nil {
		return err
	}

	if err := c.expect(parser.TOKEN_LPAREN); err != nil {
		return err
	}
	c.emit(OP_ARG)
	c.referenceLabel(temp)
	if err := c.parseExpr(0); err != nil {
		return err
	}
	if err := c.expect(parser.TOKEN_RPAREN); err != nil {
		return err
	}
	c.emit(OP_CALL)
	c.emit3(set)
	c.emit(OP_EOL)
	return c.expect(parser.TOKEN_LBRACE)
}

func (c *Compiler) currentSwitch(what string) (*syntaxContext, error) {
	ctx := c.top()
	if ctx == nil || ctx.kind != ctxSwitch {
		return nil, c.errorf(c.cur.Position, "'%s' outside switch", what)
	}
	return ctx, nil
}

// case C: jumps to the next case test unless C matches; a previous case
// body falling through skips the test
func (c *Compiler) parseCase() error {
	ctx, err := c.currentSwitch("case")
	if err != nil {
		return err
	}
	c.next()
	sw := *ctx
	n := sw.count

	if n != 1 {
		if err := c.emitJump(OP_GOTO, sw.numbered(n, "j")); err != nil {
			return err
		}
		if err := c.placeLabel(sw.numbered(n, "")); err != nil {
			return err
		}
	}

	valuePos := c.cur.Position
	literal, width, isLiteral := c.literalInt()
	start := c.consumed
	if err := c.parseExpr(0); err != nil {
		return err
	}
	if isLiteral && c.consumed-start == width && c.cur.Type == parser.TOKEN_COLON {
		if prev, dup := sw.cases[literal]; dup {
			return c.errorf(valuePos, "duplicate case %d (first on line %d)", literal, prev.Line)
		}
		sw.cases[literal] = valuePos
	}
	c.referenceLabel(sw.temp)
	c.emit(OP_EQ)
	if err := c.emitJump(OP_JUMP_ZERO, sw.numbered(n+1, "")); err != nil {
		return err
	}
	c.emit(OP_EOL)
	if err := c.expect(parser.TOKEN_COLON); err != nil {
		return err
	}

	if n != 1 {
		if err := c.placeLabel(sw.numbered(n, "j")); err != nil {
			return err
		}
	}
	c.top().count++
	return nil
}

// literalInt peeks at an integer literal, optionally negated, and reports
// how many tokens it spans. The caller checks that the case value ended
// there.
func (c *Compiler) literalInt() (int64, int, bool) {
	switch {
	case c.cur.Type == parser.TOKEN_INT:
		return c.cur.Int, 1, true
	case c.cur.Type == parser.TOKEN_MINUS && c.peek.Type == parser.TOKEN_INT:
		return -c.peek.Int, 2, true
	}
	return 0, 0, false
}

// default: reached by fallthrough or after every case test fails
func (c *Compiler) parseDefault() error {
	ctx, err := c.currentSwitch("default")
	if err != nil {
		return err
	}
	if ctx.flag {
		return c.errorf(c.cur.Position, "duplicate 'default' in switch")
	}
	c.next()
	if err := c.expect(parser.TOKEN_COLON); err != nil {
		return err
	}
	sw := *ctx
	n := sw.count

	if n != 1 {
		if err := c.emitJump(OP_GOTO, sw.numbered(n, "j")); err != nil {
			return err
		}
		if err := c.placeLabel(sw.numbered(n, "")); err != nil {
			return err
		}
		if err := c.emitJump(OP_GOTO, sw.numbered(n+1, "")); err != nil {
			return err
		}
		if err := c.placeLabel(sw.numbered(n, "j")); err != nil {
			return err
		}
	} else if err := c.emitJump(OP_GOTO, sw.numbered(n+1, "")); err != nil {
		return err
	}
	if err := c.placeLabel(sw.label("dflt")); err != nil {
		return err
	}
	ctx = c.top()
	ctx.flag = true
	ctx.count++
	return nil
}

// closeSwitch emits the exit sequence: skip to FIN, route the failed
// last test to default, then clear the temporary
func (c *Compiler) closeSwitch() error {
	sw := *c.top()
	if err := c.emitJump(OP_GOTO, sw.label("fin")); err != nil {
		return err
	}
	if err := c.placeLabel(sw.numbered(sw.count, "")); err != nil {
		return err
	}
	if sw.flag {
		if err := c.emitJump(OP_GOTO, sw.label("dflt")); err != nil {
			return err
		}
	}
	if err := c.placeLabel(sw.label("fin")); err != nil {
		return err
	}

	set, err := c.lookupFunction("set", c.cur.Position)
	if err != nil {
		return err
	}
	c.emit(OP_ARG)
	c.referenceLabel(sw.temp)
	c.emitInt(0)
	c.emit(OP_CALL)
	c.emit3(set)
	c.emit(OP_EOL)
	return nil
}

// parseBreak jumps to the exit of the innermost loop or switch
func (c *Compiler) parseBreak() error {
	tok := c.cur
	target := ""
search:
	for i := len(c.contexts) - 1; i >= 0; i-- {
		ctx := &c.contexts[i]
		switch ctx.kind {
		case ctxWhile, ctxFor, ctxDo, ctxSwitch:
			target = ctx.label("fin")
			break search
		case ctxFunction:
			break search
		}
	}
	if target == "" {
		return c.errorf(tok.Position, "'break' outside loop or switch")
	}
	return c.finishJump(target)
}

// parseContinue jumps to the next iteration of the innermost loop
func (c *Compiler) parseContinue() error {
	tok := c.cur
	target := ""
search:
	for i := len(c.contexts) - 1; i >= 0; i-- {
		ctx := &c.contexts[i]
		switch ctx.kind {
		case ctxWhile, ctxFor:
			target = ctx.label("nxt")
			break search
		case ctxDo:
			ctx.flag = true
			target = ctx.label("nxt")
			break search
		case ctxFunction:
			break search
		}
	}
	if target == "" {
		return c.errorf(tok.Position, "'continue' outside loop")
	}
	return c.finishJump(target)
}

// finishJump consumes "keyword ;" and emits goto target
func (c *Compiler) finishJump(target string) error {
	c.next()
	if err := c.expect(parser.TOKEN_SEMICOLON); err != nil {
		return err
	}
	if err := c.emitJump(OP_GOTO, target); err != nil {
		return err
	}
	c.emit(OP_EOL)
	return c.closeSyntax()
}

// function NAME; declares, function NAME { ... } defines
func (c *Compiler) parseFunction() error {
	c.next()
	if c.cur.Type != parser.TOKEN_IDENTIFIER {
		return c.unexpected("function name")
	}
	tok := c.cur
	id, err := c.intern(tok.Value, tok.Position)
	if err != nil {
		return err
	}
	if kind := c.syms.Get(id).Kind; kind != symbols.KindName {
		return c.errorf(tok.Position, "function %q clashes with a %s", tok.Value, kind)
	}
	c.next()

	switch c.cur.Type {
	case parser.TOKEN_SEMICOLON:
		c.next()
		ls := c.label(id)
		if ls.kind == labelUnresolved {
			ls.kind = labelFuncDeclared
			ls.pos = tok.Position
		}
		return c.closeSyntax()
	case parser.TOKEN_LBRACE:
		for _, ctx := range c.contexts {
			if ctx.kind == ctxFunction {
				return c.errorf(tok.Position, "function %q defined inside another function", tok.Value)
			}
		}
		if err := c.pushContext(ctxFunction); err != nil {
			return err
		}
		if err := c.emitJump(OP_GOTO, c.top().label("fin")); err != nil {
			return err
		}
		if err := c.defineLabel(id, labelFuncDefined, tok.Position); err != nil {
			return err
		}
		c.next()
		return nil
	}
	return c.unexpected("';' or '{' after function name")
}

// goto LABEL;
func (c *Compiler) parseGoto() error {
	c.next()
	if c.cur.Type != parser.TOKEN_IDENTIFIER {
		return c.unexpected("label after goto")
	}
	tok := c.cur
	id, err := c.intern(tok.Value, tok.Position)
	if err != nil {
		return err
	}
	c.next()
	if err := c.expect(parser.TOKEN_SEMICOLON); err != nil {
		return err
	}
	c.emit(OP_GOTO)
	c.referenceLabel(id)
	c.emit(OP_EOL)
	return c.closeSyntax()
}

// return [E];
func (c *Compiler) parseReturn() error {
	c.next()
	if c.cur.Type == parser.TOKEN_SEMICOLON {
		c.next()
		c.emit(OP_RETURN_NONE)
		return c.closeSyntax()
	}
	if err := c.parseExpr(0); err != nil {
		return err
	}
	if err := c.expect(parser.TOKEN_SEMICOLON); err != nil {
		return err
	}
	c.emit(OP_RETURN)
	return c.closeSyntax()
}

// closeBrace handles '}' for blocks, switches and function bodies
func (c *Compiler) closeBrace() error {
	ctx := c.top()
	if ctx == nil {
		return c.errorf(c.cur.Position, "unmatched '}'")
	}

	switch ctx.kind {
	case ctxBlock:
		outer := ctx.outer
		c.popContext()
		c.next()
		if outer {
			return nil
		}
	case ctxSwitch:
		if err := c.closeSwitch(); err != nil {
			return err
		}
		c.popContext()
		c.next()
	case ctxFunction:
		c.emit(OP_RETURN_NONE)
		if err := c.placeLabel(ctx.label("fin")); err != nil {
			return err
		}
		c.popContext()
		c.next()
	default:
		return c.errorf(c.cur.Position, "unexpected '}' before %s body", ctxPrefix[ctx.kind])
	}
	return c.closeSyntax()
}

// closeSyntax closes every if/while/for/do whose body just completed.
// Blocks, switches and functions stay open until their '}'.
func (c *Compiler) closeSyntax() error {
	for {
		ctx := c.top()
		if ctx == nil {
			return nil
		}

		switch ctx.kind {
		case ctxIf:
			if !ctx.flag && c.isKeyword(c.cur, "else") {
				c.trackLine(c.cur.Position.Line)
				c.next()
				n := ctx.count
				if err := c.emitJump(OP_GOTO, ctx.label("fin")); err != nil {
					return err
				}
				if err := c.placeLabel(ctx.numbered(n, "")); err != nil {
					return err
				}
				ctx.count++
				if c.isKeyword(c.cur, "if") {
					c.next()
					return c.parseCondition(ctx.numbered(n+1, ""))
				}
				ctx.flag = true
				return nil
			}
			if !ctx.flag {
				if err := c.placeLabel(ctx.numbered(ctx.count, "")); err != nil {
					return err
				}
			}
			if err := c.placeLabel(ctx.label("fin")); err != nil {
				return err
			}

		case ctxWhile, ctxFor:
			if err := c.emitJump(OP_GOTO, ctx.label("nxt")); err != nil {
				return err
			}
			if err := c.placeLabel(ctx.label("fin")); err != nil {
				return err
			}

		case ctxDo:
			if !c.isKeyword(c.cur, "while") {
				return c.unexpected("'while' after do body")
			}
			c.trackLine(c.cur.Position.Line)
			c.next()
			do := *ctx
			if do.flag {
				if err := c.placeLabel(do.label("nxt")); err != nil {
					return err
				}
			}
			if err := c.parseCondition(do.label("fin")); err != nil {
				return err
			}
			if err := c.expect(parser.TOKEN_SEMICOLON); err != nil {
				return err
			}
			if err := c.emitJump(OP_GOTO, do.label("bgn")); err != nil {
				return err
			}
			if err := c.placeLabel(do.label("fin")); err != nil {
				return err
			}

		default:
			return nil
		}
		c.popContext()
	}
}
