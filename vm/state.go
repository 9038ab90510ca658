package vm

import (
	"time"

	"athena/builtins"
	"athena/symbols"
	"athena/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the externally visible condition of a script instance
type Status int

const (
	StatusRunning       Status = iota // inside the run loop
	StatusAwaitingInput               // waiting for a value from the host
	StatusYielded                     // paused; resumable without a value
	StatusEnded                       // terminal
)

var statusNames = map[Status]string{
	StatusRunning:       "running",
	StatusAwaitingInput: "awaiting-input",
	StatusYielded:       "yielded",
	StatusEnded:         "ended",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ResumeMode selects where a suspended instance continues
type ResumeMode int

const (
	// SamePosition continues after the suspending call; a delivered
	// value becomes the call's result
	SamePosition ResumeMode = iota
	// Rerun executes the suspending call again with its arguments still
	// on the stack; the builtin reads the delivered value through Input
	Rerun
)

// ResumeAt records how a suspended instance continues
type ResumeAt struct {
	Mode   ResumeMode
	Offset int // Rerun: offset of the suspended call instruction
}

// frameLinkage is the number of bookkeeping slots above a frame's arguments
const frameLinkage = 4

// State is one running script instance
type State struct {
	ID        uuid.UUID
	Status    Status
	Resume    ResumeAt
	WakeAfter time.Duration // Yielded: delay the host should wait
	Err       *RuntimeError // set when a runtime error ended the instance

	actor int
	owner int

	engine *Engine
	prog   *Program
	pos    int
	stack  []types.Value
	defsp  int // base of the current frame's working area

	input    types.Value
	hasInput bool
	jumped   bool // a builtin moved pos
	ticks    int
}

// Actor returns the acting subject, 0 for none
func (st *State) Actor() int { return st.actor }

// Owner returns the entity owning the script
func (st *State) Owner() int { return st.owner }

// Program returns the program currently executing
func (st *State) Program() *Program { return st.prog }

// Line returns the source line of the current position
func (st *State) Line() int {
	if st.prog == nil {
		return 0
	}
	return st.prog.LineForPos(st.pos)
}

// Depth returns the number of values on the stack
func (st *State) Depth() int { return len(st.stack) }

// Logger returns the engine's logger
func (st *State) Logger() *zap.Logger { return st.engine.log }

// Host returns the server side the builtins talk to
func (st *State) Host() builtins.Host { return st.engine.host }

func (st *State) push(v types.Value) error {
	if len(st.stack) >= st.engine.stackLimit {
		return ErrStackOverflow
	}
	st.stack = append(st.stack, v)
	return nil
}

func (st *State) pop() (types.Value, error) {
	if len(st.stack) <= st.defsp {
		return nil, types.Errorf(types.E_STACK, "stack underflow")
	}
	v := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	return v, nil
}

// findMarker returns the index of the innermost argument marker
func (st *State) findMarker() (int, error) {
	for i := len(st.stack) - 1; i >= st.defsp; i-- {
		if _, ok := st.stack[i].(types.ArgMarker); ok {
			return i, nil
		}
	}
	return 0, types.Errorf(types.E_STACK, "argument marker missing")
}

// Resolve dereferences a variable reference; data passes through
func (st *State) Resolve(v types.Value) (types.Value, error) {
	ref, ok := v.(types.Ref)
	if !ok {
		return v, nil
	}
	sym := st.engine.syms.Get(ref.ID)
	switch sym.Kind {
	case symbols.KindConstant:
		return types.NewInt(sym.Value), nil
	case symbols.KindParam:
		return st.engine.vars.Param(st.actor, sym.Value)
	case symbols.KindFunction:
		return nil, types.Errorf(types.E_TYPE, "function %s used as a variable", sym.Name)
	}
	return st.engine.vars.Get(st.actor, sym.Name, ref.Index)
}

// Assign stores v into the variable ref names
func (st *State) Assign(ref types.Value, v types.Value) error {
	r, ok := ref.(types.Ref)
	if !ok {
		return types.Errorf(types.E_TYPE, "cannot assign to %s", ref)
	}
	val, err := st.Resolve(v)
	if err != nil {
		return err
	}
	if !types.IsData(val) {
		return types.Errorf(types.E_TYPE, "cannot store %s", val)
	}
	val = types.Copy(val)

	sym := st.engine.syms.Get(r.ID)
	switch sym.Kind {
	case symbols.KindConstant:
		return types.Errorf(types.E_TYPE, "cannot assign to constant %s", sym.Name)
	case symbols.KindParam:
		return st.engine.vars.SetParam(st.actor, sym.Value, val)
	case symbols.KindFunction:
		return types.Errorf(types.E_TYPE, "cannot assign to function %s", sym.Name)
	}
	return st.engine.vars.Set(st.actor, sym.Name, r.Index, val)
}

// Intern returns a reference to the variable called name
func (st *State) Intern(name string) (types.Ref, error) {
	id, err := st.engine.syms.Intern(name)
	if err != nil {
		return types.Ref{}, err
	}
	return types.Ref{ID: id}, nil
}

// RefName returns the variable name behind ref
func (st *State) RefName(ref types.Ref) string {
	return st.engine.syms.Name(ref.ID)
}

// frame returns the argument count and base of the innermost frame
func (st *State) frame() (int, int, error) {
	if st.defsp < frameLinkage {
		return 0, 0, types.Errorf(types.E_FRAME, "not inside callsub or callfunc")
	}
	if _, ok := st.stack[st.defsp-1].(types.ReturnInfo); !ok {
		return 0, 0, types.Errorf(types.E_FRAME, "frame linkage corrupt")
	}
	argc, ok := st.stack[st.defsp-frameLinkage].(types.IntValue)
	if !ok {
		return 0, 0, types.Errorf(types.E_FRAME, "frame linkage corrupt")
	}
	return int(argc.Val), st.defsp - frameLinkage - int(argc.Val), nil
}

// ArgCount returns the number of arguments of the innermost frame
func (st *State) ArgCount() (int, error) {
	argc, _, err := st.frame()
	return argc, err
}

// Arg returns argument n of the innermost frame
func (st *State) Arg(n int) (types.Value, error) {
	argc, base, err := st.frame()
	if err != nil {
		return nil, err
	}
	if n < 0 || n >= argc {
		return nil, types.Errorf(types.E_ARGS, "argument %d of %d", n, argc)
	}
	return st.stack[base+n], nil
}

// SetArg replaces argument n of the innermost frame
func (st *State) SetArg(n int, v types.Value) error {
	argc, base, err := st.frame()
	if err != nil {
		return err
	}
	if n < 0 || n >= argc {
		return types.Errorf(types.E_ARGS, "argument %d of %d", n, argc)
	}
	val, err := st.Resolve(v)
	if err != nil {
		return err
	}
	st.stack[base+n] = types.Copy(val)
	return nil
}

// Jump continues execution at label once the current call returns
func (st *State) Jump(label types.Value) error {
	l, ok := label.(types.LabelValue)
	if !ok {
		return types.Errorf(types.E_LABEL, "%s is not a label", label)
	}
	if l.Pos < 0 || l.Pos >= len(st.prog.Code) {
		return types.Errorf(types.E_LABEL, "label offset %d out of range", l.Pos)
	}
	st.pos = l.Pos
	st.jumped = true
	return nil
}

// Yield pauses the instance; the host resumes it after the delay
func (st *State) Yield(after time.Duration) {
	st.Status = StatusYielded
	st.Resume = ResumeAt{Mode: SamePosition}
	st.WakeAfter = after
}

// AwaitInput suspends until the host delivers a value
func (st *State) AwaitInput(rerun bool) {
	st.Status = StatusAwaitingInput
	st.WakeAfter = 0
	if rerun {
		st.Resume = ResumeAt{Mode: Rerun}
	} else {
		st.Resume = ResumeAt{Mode: SamePosition}
	}
}

// Input returns the delivered value once
func (st *State) Input() (types.Value, bool) {
	if !st.hasInput {
		return nil, false
	}
	v := st.input
	st.input, st.hasInput = nil, false
	return v, true
}

// End stops the instance after the current instruction
func (st *State) End() {
	st.Status = StatusEnded
}

// release drops every stack slot of an ended instance
func (st *State) release() {
	st.stack = nil
	st.defsp = 0
	st.input, st.hasInput = nil, false
}
