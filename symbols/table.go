// Package symbols holds the process-wide intern table shared by every
// script compilation. Interning is never undone; only the compiler's
// per-script label metadata is reset, and that lives outside this table.
package symbols

import (
	"errors"
	"strings"
	"sync"
)

// Kind is the permanent classification of an interned name
type Kind int

const (
	KindName     Kind = iota // variable name or per-script label
	KindConstant             // integer constant from the constants file
	KindParam                // actor parameter accessor
	KindFunction             // native builtin
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindConstant:
		return "constant"
	case KindParam:
		return "param"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Reserved IDs
const (
	Invalid   = 0 // never handed out
	NextLine  = 1 // pseudo-label for the current line start
	FirstUser = 2 // first ID handed out by Intern
)

// MaxSymbols is the number of IDs a 3-byte reference can address
const MaxSymbols = 1 << 24

const chunkSize = 1024

// ErrTableFull is returned once MaxSymbols names have been interned
var ErrTableFull = errors.New("symbol table full")

// Symbol is one interned name
type Symbol struct {
	Name  string // spelling at first intern
	Kind  Kind
	Value int64 // constant value, param ID or builtin table index
}

// Table interns names case-insensitively to stable integer IDs
type Table struct {
	mu   sync.RWMutex
	ids  map[string]int
	syms []Symbol
}

// NewTable creates a table with the reserved IDs in place
func NewTable() *Table {
	t := &Table{
		ids:  make(map[string]int, chunkSize),
		syms: make([]Symbol, FirstUser, chunkSize),
	}
	t.syms[NextLine] = Symbol{Name: "-"}
	return t
}

// Intern returns the ID for name, allocating one on first sight
func (t *Table) Intern(name string) (int, error) {
	key := strings.ToLower(name)

	t.mu.RLock()
	id, ok := t.ids[key]
	t.mu.RUnlock()
	if ok {
		return id, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[key]; ok {
		return id, nil
	}
	if len(t.syms) >= MaxSymbols {
		return Invalid, ErrTableFull
	}
	if len(t.syms) == cap(t.syms) {
		grown := make([]Symbol, len(t.syms), cap(t.syms)+chunkSize)
		copy(grown, t.syms)
		t.syms = grown
	}
	id = len(t.syms)
	t.syms = append(t.syms, Symbol{Name: name})
	t.ids[key] = id
	return id, nil
}

// Lookup returns the ID for name without interning it
func (t *Table) Lookup(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[strings.ToLower(name)]
	return id, ok
}

// Get returns the symbol for id; unknown IDs yield the zero Symbol
func (t *Table) Get(id int) Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id <= Invalid || id >= len(t.syms) {
		return Symbol{}
	}
	return t.syms[id]
}

// Name returns the spelling of id
func (t *Table) Name(id int) string {
	return t.Get(id).Name
}

// Len returns the number of allocated IDs including the reserved ones
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.syms)
}

// DefineConstant registers name as an integer constant
func (t *Table) DefineConstant(name string, val int64) (int, error) {
	return t.define(name, KindConstant, val)
}

// DefineParam registers name as an actor parameter accessor
func (t *Table) DefineParam(name string, param int64) (int, error) {
	return t.define(name, KindParam, param)
}

// DefineFunction registers name as a native builtin at table index idx
func (t *Table) DefineFunction(name string, idx int) (int, error) {
	return t.define(name, KindFunction, int64(idx))
}

func (t *Table) define(name string, kind Kind, val int64) (int, error) {
	id, err := t.Intern(name)
	if err != nil {
		return Invalid, err
	}
	t.mu.Lock()
	t.syms[id].Kind = kind
	t.syms[id].Value = val
	t.mu.Unlock()
	return id, nil
}
