package vm

import (
	"sort"

	"athena/parser"
)

type labelKind int

const (
	labelUnresolved labelKind = iota
	labelDefined
	labelFuncDeclared // `function F;` seen, body not yet compiled
	labelFuncDefined  // `function F { ... }` compiled at offset
)

// labelState is the per-compilation metadata of one symbol.
// It lives in the compiler's side table and is discarded with it.
type labelState struct {
	kind    labelKind
	offset  int   // -1 until defined
	patches []int // tag-byte offsets awaiting the label
	pos     parser.Position
}

func (c *Compiler) label(id int) *labelState {
	ls, ok := c.labels[id]
	if !ok {
		ls = &labelState{offset: -1}
		c.labels[id] = ls
	}
	return ls
}

func (ls *labelState) defined() bool {
	return ls.kind == labelDefined || ls.kind == labelFuncDefined
}

// defineLabel binds id to the current offset and patches every pending site
func (c *Compiler) defineLabel(id int, kind labelKind, pos parser.Position) error {
	ls := c.label(id)
	if ls.defined() {
		return c.errorf(pos, "duplicate label %q (first defined on line %d)", c.syms.Name(id), ls.pos.Line)
	}
	ls.kind = kind
	ls.offset = len(c.prog.Code)
	ls.pos = pos
	for _, site := range ls.patches {
		c.prog.Code[site] = byte(OP_POS)
		put3(c.prog.Code, site+1, ls.offset)
	}
	ls.patches = nil
	return nil
}

// referenceLabel emits a tagged 3-byte reference to id. Resolved labels
// encode their offset; anything else becomes a placeholder on the
// symbol's patch list.
func (c *Compiler) referenceLabel(id int) {
	ls := c.label(id)
	if ls.defined() {
		c.emit(OP_POS)
		c.emit3(ls.offset)
		return
	}
	ls.patches = append(ls.patches, len(c.prog.Code))
	c.emit(OP_UNRESOLVED)
	c.emit3(id)
}

// sweepUnresolved rewrites every site still pending into a plain name
// reference carrying the symbol's own ID
func (c *Compiler) sweepUnresolved() {
	ids := make([]int, 0, len(c.labels))
	for id := range c.labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		ls := c.labels[id]
		if ls.kind == labelFuncDeclared {
			c.warnf(ls.pos, "function %q declared but never defined", c.syms.Name(id))
		}
		for _, site := range ls.patches {
			c.prog.Code[site] = byte(OP_NAME)
			put3(c.prog.Code, site+1, id)
		}
		ls.patches = nil
	}
}
