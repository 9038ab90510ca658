package vm

import (
	"strconv"
	"strings"
	"testing"

	"athena/builtins"
	"athena/types"
)

// mapVars stores every variable in one flat map, ignoring scope
type mapVars struct {
	vals   map[string]types.Value
	params map[int64]types.Value
}

func newMapVars() *mapVars {
	return &mapVars{
		vals:   make(map[string]types.Value),
		params: make(map[int64]types.Value),
	}
}

func varKey(name string, index int) string {
	return strings.ToLower(name) + "[" + strconv.Itoa(index) + "]"
}

func (m *mapVars) Get(actor int, name string, index int) (types.Value, error) {
	if v, ok := m.vals[varKey(name, index)]; ok {
		return v, nil
	}
	return types.Zero(name), nil
}

func (m *mapVars) Set(actor int, name string, index int, v types.Value) error {
	m.vals[varKey(name, index)] = v
	return nil
}

func (m *mapVars) Param(actor int, param int64) (types.Value, error) {
	if v, ok := m.params[param]; ok {
		return v, nil
	}
	return types.NewInt(0), nil
}

func (m *mapVars) SetParam(actor int, param int64, v types.Value) error {
	m.params[param] = v
	return nil
}

func (m *mapVars) int(t *testing.T, name string) int64 {
	t.Helper()
	v, _ := m.Get(0, name, 0)
	n, ok := v.(types.IntValue)
	if !ok {
		t.Fatalf("%s holds %s, not an integer", name, v)
	}
	return n.Val
}

func (m *mapVars) str(name string) string {
	v, _ := m.Get(0, name, 0)
	return v.String()
}

// recordHost captures dialogue output
type recordHost struct {
	messages []string
	menus    [][]string
	prompts  int
}

func (h *recordHost) Message(actor, owner int, text string)   { h.messages = append(h.messages, text) }
func (h *recordHost) Next(actor, owner int)                   {}
func (h *recordHost) Close(actor, owner int)                  {}
func (h *recordHost) Menu(actor, owner int, options []string) { h.menus = append(h.menus, options) }
func (h *recordHost) Prompt(actor, owner int, text bool)      { h.prompts++ }

type harness struct {
	eng  *Engine
	vars *mapVars
	host *recordHost
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{vars: newMapVars(), host: &recordHost{}}
	opts.Vars = h.vars
	opts.Host = h.host
	if opts.MissingComma == CheckOff {
		opts.MissingComma = CheckError
	}
	eng, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	h.eng = eng
	return h
}

func (h *harness) compile(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := h.eng.Compile(src, 1)
	if err != nil {
		t.Fatalf("compile failed: %v\n%s", err, src)
	}
	return prog
}

// run compiles src and starts it with actor 1
func (h *harness) run(t *testing.T, src string) *State {
	t.Helper()
	st, err := h.eng.Start(h.compile(t, src), 1, 100)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return st
}

func expectEnded(t *testing.T, st *State) {
	t.Helper()
	if st.Status != StatusEnded {
		t.Fatalf("status %s, want ended", st.Status)
	}
	if st.Err != nil {
		t.Fatalf("runtime error: %v", st.Err)
	}
}

// pairRegistry is the default library plus a two-integer builtin
func pairRegistry() *builtins.Registry {
	r := builtins.NewDefaultRegistry()
	r.Register("pair", "ii", func(s builtins.Script, args []types.Value) (types.Value, error) {
		return types.NewInt(int64(len(args))), nil
	})
	return r
}
