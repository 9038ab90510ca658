package vm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"athena/builtins"
	"athena/parser"
	"athena/symbols"
	"athena/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults for Options left zero
const (
	DefaultStackLimit = 65536
	DefaultTickLimit  = 100000
)

// Variables is the storage behind non-constant names.
// Implementations choose the scope from the name's sigils.
type Variables interface {
	Get(actor int, name string, index int) (types.Value, error)
	Set(actor int, name string, index int, v types.Value) error
	Param(actor int, param int64) (types.Value, error)
	SetParam(actor int, param int64, v types.Value) error
}

// Options configures an Engine
type Options struct {
	Symbols  *symbols.Table     // shared intern table; created if nil
	Registry *builtins.Registry // builtin table; the default library if nil
	Vars     Variables          // variable storage; reads zero and drops writes if nil
	Host     builtins.Host      // dialogue surface; discards output if nil
	Logger   *zap.Logger

	ArgCount     CheckLevel
	MissingComma CheckLevel
	MaxNesting   int
	StackLimit   int // values per instance
	TickLimit    int // instructions per run; negative disables
}

// Engine compiles and runs scripts against one symbol table and builtin set
type Engine struct {
	syms       *symbols.Table
	registry   *builtins.Registry
	vars       Variables
	host       builtins.Host
	log        *zap.Logger
	opts       Options
	stackLimit int
	tickLimit  int

	mu    sync.RWMutex
	funcs map[string]*Program // callfunc targets
}

// NewEngine creates an engine and binds every builtin into the symbol table
func NewEngine(opts Options) (*Engine, error) {
	if opts.Symbols == nil {
		opts.Symbols = symbols.NewTable()
	}
	if opts.Registry == nil {
		opts.Registry = builtins.NewDefaultRegistry()
	}
	if opts.Vars == nil {
		opts.Vars = nopVars{}
	}
	if opts.Host == nil {
		opts.Host = builtins.NopHost{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxNesting <= 0 {
		opts.MaxNesting = DefaultMaxNesting
	}
	if opts.StackLimit <= 0 {
		opts.StackLimit = DefaultStackLimit
	}
	if opts.TickLimit == 0 {
		opts.TickLimit = DefaultTickLimit
	}

	for i, b := range opts.Registry.All() {
		if _, err := opts.Symbols.DefineFunction(b.Name, i); err != nil {
			return nil, fmt.Errorf("register builtin %s: %w", b.Name, err)
		}
	}

	return &Engine{
		syms:       opts.Symbols,
		registry:   opts.Registry,
		vars:       opts.Vars,
		host:       opts.Host,
		log:        opts.Logger,
		opts:       opts,
		stackLimit: opts.StackLimit,
		tickLimit:  opts.TickLimit,
		funcs:      make(map[string]*Program),
	}, nil
}

// Symbols returns the engine's intern table
func (e *Engine) Symbols() *symbols.Table { return e.syms }

// Registry returns the builtin table
func (e *Engine) Registry() *builtins.Registry { return e.registry }

// Compile compiles a braced script body whose first line is startLine.
// An empty body yields a nil program.
func (e *Engine) Compile(src string, startLine int) (*Program, error) {
	return e.CompileNamed("script", src, startLine)
}

// CompileNamed compiles src, naming it in diagnostics and traces
func (e *Engine) CompileNamed(name, src string, startLine int) (*Program, error) {
	c := NewCompiler(e.syms, e.registry, CompileOptions{
		Name:         name,
		ArgCount:     e.opts.ArgCount,
		MissingComma: e.opts.MissingComma,
		MaxNesting:   e.opts.MaxNesting,
	})
	prog, err := c.Compile(src, startLine)
	if err != nil {
		var se *parser.SyntaxError
		if errors.As(err, &se) {
			e.log.Warn("script compile error",
				zap.String("script", name),
				zap.Int("line", se.Line),
				zap.Int("column", se.Column),
				zap.String("severity", se.Severity.String()),
				zap.String("message", se.Message))
		}
		return nil, err
	}
	if prog != nil {
		for _, d := range prog.Warnings {
			e.log.Info("script compile warning",
				zap.String("script", name),
				zap.Int("line", d.Line),
				zap.Int("column", d.Column),
				zap.String("severity", d.Severity.String()),
				zap.String("message", d.Message))
		}
	}
	return prog, nil
}

// DefineFunction makes prog reachable from callfunc under name
func (e *Engine) DefineFunction(name string, prog *Program) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[strings.ToLower(name)] = prog
}

// Function returns the program registered under name
func (e *Engine) Function(name string) (*Program, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	prog, ok := e.funcs[strings.ToLower(name)]
	return prog, ok && prog != nil
}

// Start creates an instance of prog and runs it until it suspends or
// ends. A nil program yields an instance that has already ended.
func (e *Engine) Start(prog *Program, actor, owner int) (*State, error) {
	st := &State{
		ID:     uuid.New(),
		actor:  actor,
		owner:  owner,
		engine: e,
		prog:   prog,
		stack:  make([]types.Value, 0, 32),
	}
	if prog == nil {
		st.Status = StatusEnded
		st.release()
		return st, nil
	}
	e.run(st)
	return st, nil
}

// Resume continues a suspended instance. value answers an input
// request and is ignored for yields.
func (e *Engine) Resume(st *State, value types.Value) error {
	switch st.Status {
	case StatusEnded, StatusRunning:
		return ErrNotSuspended
	case StatusAwaitingInput:
		if value == nil {
			return ErrInputMissing
		}
		v := types.Copy(value)
		if st.Resume.Mode == Rerun {
			st.input, st.hasInput = v, true
			st.pos = st.Resume.Offset
		} else if err := st.push(v); err != nil {
			e.fail(st, err)
			return nil
		}
	}
	st.WakeAfter = 0
	st.Resume = ResumeAt{}
	e.run(st)
	return nil
}

// Kill ends st immediately
func (e *Engine) Kill(st *State) {
	st.Status = StatusEnded
	st.release()
}

// nopVars reads zero values and drops writes
type nopVars struct{}

func (nopVars) Get(actor int, name string, index int) (types.Value, error) {
	return types.Zero(name), nil
}

func (nopVars) Set(actor int, name string, index int, v types.Value) error { return nil }

func (nopVars) Param(actor int, param int64) (types.Value, error) {
	return types.NewInt(0), nil
}

func (nopVars) SetParam(actor int, param int64, v types.Value) error { return nil }
