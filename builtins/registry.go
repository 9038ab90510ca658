package builtins

import (
	"strings"
	"time"

	"athena/types"

	"go.uber.org/zap"
)

// Func is a native builtin. args is the call's argument slice with variable
// references left unresolved. A non-nil result becomes the call's value.
type Func func(s Script, args []types.Value) (types.Value, error)

// Builtin is one entry of the function table.
// Signature is a sequence of type tags checked against the argument count
// at compile time: i integer, s string, l label, v variable, ? any,
// and * marks the remaining parameters optional.
type Builtin struct {
	Name      string
	Signature string
	Fn        Func
}

// Script is the view of a running instance a builtin gets
type Script interface {
	Actor() int
	Owner() int
	Logger() *zap.Logger
	Host() Host

	// Resolve dereferences a variable reference; data passes through
	Resolve(v types.Value) (types.Value, error)
	// Assign stores v into the variable ref names
	Assign(ref types.Value, v types.Value) error
	// Intern returns a reference to the variable called name
	Intern(name string) (types.Ref, error)
	// RefName returns the variable name behind ref
	RefName(ref types.Ref) string

	// ArgCount, Arg and SetArg address the innermost callsub/callfunc frame
	ArgCount() (int, error)
	Arg(n int) (types.Value, error)
	SetArg(n int, v types.Value) error

	Jump(label types.Value) error
	Yield(after time.Duration)
	// AwaitInput suspends until the host delivers a value. rerun restarts
	// the current line on resume; otherwise the value becomes the result
	// of the suspended call.
	AwaitInput(rerun bool)
	// Input returns the delivered value once
	Input() (types.Value, bool)
	End()
}

// Host is the dialogue surface scripts talk to
type Host interface {
	Message(actor, owner int, text string)
	Next(actor, owner int)
	Close(actor, owner int)
	Menu(actor, owner int, options []string)
	Prompt(actor, owner int, text bool)
}

// NopHost discards all dialogue output
type NopHost struct{}

func (NopHost) Message(actor, owner int, text string)   {}
func (NopHost) Next(actor, owner int)                   {}
func (NopHost) Close(actor, owner int)                  {}
func (NopHost) Menu(actor, owner int, options []string) {}
func (NopHost) Prompt(actor, owner int, text bool)      {}

// Registry holds the ordered builtin function table
type Registry struct {
	funcs  []Builtin
	byName map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// NewDefaultRegistry creates a registry holding the standard library
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	// Variables and arrays
	r.Register("set", "v?", builtinSet)
	r.Register("getelementofarray", "vi", builtinGetElementOfArray)
	r.Register("setarray", "v?*", builtinSetArray)
	r.Register("getarraysize", "v", builtinGetArraySize)
	r.Register("cleararray", "v?i", builtinClearArray)
	r.Register("copyarray", "vvi", builtinCopyArray)
	r.Register("deletearray", "v*i", builtinDeleteArray)

	// Call frames
	r.Register("getarg", "i*?", builtinGetArg)
	r.Register("getargcount", "", builtinGetArgCount)
	r.Register("setarg", "i?", builtinSetArg)

	// Dialogue
	r.Register("mes", "s", builtinMes)
	r.Register("next", "", builtinNext)
	r.Register("close", "", builtinClose)
	r.Register("input", "v*ii", builtinInput)
	r.Register("menu", "sl*", builtinMenu)
	r.Register("select", "s*", builtinSelect)
	r.Register("sleep2", "i", builtinSleep2)

	// Strings
	r.Register("getstrlen", "s", builtinGetStrLen)
	r.Register("strcat", "s*", builtinStrcat)
	r.Register("substr", "sii", builtinSubstr)
	r.Register("strtoupper", "s", builtinStrToUpper)
	r.Register("strtolower", "s", builtinStrToLower)
	r.Register("atoi", "s", builtinAtoi)
	r.Register("itoa", "i", builtinItoa)

	// Math
	r.Register("rand", "i*i", builtinRand)
	r.Register("min", "i*", builtinMin)
	r.Register("max", "i*", builtinMax)
	r.Register("abs", "i", builtinAbs)

	// Hashing and diagnostics
	r.Register("md5", "s", builtinMD5)
	r.Register("ripemd160", "s", builtinRIPEMD160)
	r.Register("debugmes", "s", builtinDebugmes)

	return r
}

// Register adds a builtin. Registering an existing name replaces its
// function and keeps its ID.
func (r *Registry) Register(name, signature string, fn Func) int {
	key := strings.ToLower(name)
	b := Builtin{Name: name, Signature: signature, Fn: fn}
	if id, ok := r.byName[key]; ok {
		r.funcs[id] = b
		return id
	}
	id := len(r.funcs)
	r.funcs = append(r.funcs, b)
	r.byName[key] = id
	return id
}

// GetID returns the ID for a builtin function name
func (r *Registry) GetID(name string) (int, bool) {
	id, ok := r.byName[strings.ToLower(name)]
	return id, ok
}

// At returns the builtin with the given ID
func (r *Registry) At(id int) (Builtin, bool) {
	if id < 0 || id >= len(r.funcs) {
		return Builtin{}, false
	}
	return r.funcs[id], true
}

// All returns the function table in registration order
func (r *Registry) All() []Builtin {
	out := make([]Builtin, len(r.funcs))
	copy(out, r.funcs)
	return out
}

// CallByID calls a builtin function by its ID
func (r *Registry) CallByID(id int, s Script, args []types.Value) (types.Value, error) {
	b, ok := r.At(id)
	if !ok {
		return nil, types.Errorf(types.E_FUNC, "no builtin with id %d", id)
	}
	return b.Fn(s, args)
}

// Has checks if a builtin function is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.GetID(name)
	return ok
}

// CheckArgs validates an argument count against a signature. Tags before
// the first '*' are required; without '*' the count must match exactly.
// A signature that starts with '*' accepts zero or one argument regardless
// of the tags after it.
func CheckArgs(signature string, count int) bool {
	if strings.HasPrefix(signature, "*") && count <= 1 {
		return true
	}
	required := strings.IndexByte(signature, '*')
	if required < 0 {
		required = len(signature)
	}
	if required == len(signature) {
		return count == required
	}
	return count >= required
}
