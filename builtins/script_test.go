package builtins

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"athena/types"

	"go.uber.org/zap"
)

// fakeScript is a Script over a flat variable map
type fakeScript struct {
	actor, owner int
	names        []string
	vars         map[string]types.Value
	frame        []types.Value
	inFrame      bool

	host     *recordingHost
	input    types.Value
	hasInput bool
	awaiting bool
	rerun    bool
	yielded  time.Duration
	ended    bool
	jumped   types.Value
}

func newFakeScript() *fakeScript {
	return &fakeScript{
		actor: 1,
		owner: 2,
		vars:  make(map[string]types.Value),
		host:  &recordingHost{},
	}
}

func (f *fakeScript) Actor() int          { return f.actor }
func (f *fakeScript) Owner() int          { return f.owner }
func (f *fakeScript) Logger() *zap.Logger { return zap.NewNop() }
func (f *fakeScript) Host() Host          { return f.host }

func (f *fakeScript) ref(name string) types.Ref {
	r, _ := f.Intern(name)
	return r
}

func key(name string, idx int) string {
	return strings.ToLower(name) + "[" + strconv.Itoa(idx) + "]"
}

func (f *fakeScript) Resolve(v types.Value) (types.Value, error) {
	r, ok := v.(types.Ref)
	if !ok {
		return v, nil
	}
	name := f.names[r.ID]
	if val, ok := f.vars[key(name, r.Index)]; ok {
		return val, nil
	}
	return types.Zero(name), nil
}

func (f *fakeScript) Assign(ref types.Value, v types.Value) error {
	r, ok := ref.(types.Ref)
	if !ok {
		return types.Errorf(types.E_TYPE, "not a variable")
	}
	val, err := f.Resolve(v)
	if err != nil {
		return err
	}
	f.vars[key(f.names[r.ID], r.Index)] = types.Copy(val)
	return nil
}

func (f *fakeScript) get(name string, idx int) types.Value {
	v, _ := f.Resolve(types.Ref{ID: f.ref(name).ID, Index: idx})
	return v
}

func (f *fakeScript) Intern(name string) (types.Ref, error) {
	for i, n := range f.names {
		if strings.EqualFold(n, name) {
			return types.Ref{ID: i}, nil
		}
	}
	f.names = append(f.names, name)
	return types.Ref{ID: len(f.names) - 1}, nil
}

func (f *fakeScript) RefName(ref types.Ref) string { return f.names[ref.ID] }

func (f *fakeScript) ArgCount() (int, error) {
	if !f.inFrame {
		return 0, types.Errorf(types.E_FRAME, "no frame")
	}
	return len(f.frame), nil
}

func (f *fakeScript) Arg(n int) (types.Value, error) {
	if !f.inFrame {
		return nil, types.Errorf(types.E_FRAME, "no frame")
	}
	if n < 0 || n >= len(f.frame) {
		return nil, types.Errorf(types.E_ARGS, "argument %d", n)
	}
	return f.frame[n], nil
}

func (f *fakeScript) SetArg(n int, v types.Value) error {
	if _, err := f.Arg(n); err != nil {
		return err
	}
	f.frame[n] = v
	return nil
}

func (f *fakeScript) Jump(label types.Value) error {
	f.jumped = label
	return nil
}

func (f *fakeScript) Yield(after time.Duration) { f.yielded = after }

func (f *fakeScript) AwaitInput(rerun bool) {
	f.awaiting = true
	f.rerun = rerun
}

func (f *fakeScript) Input() (types.Value, bool) {
	if !f.hasInput {
		return nil, false
	}
	f.hasInput = false
	return f.input, true
}

func (f *fakeScript) deliver(v types.Value) {
	f.input, f.hasInput = v, true
	f.awaiting = false
}

func (f *fakeScript) End() { f.ended = true }

type recordingHost struct {
	messages []string
	menus    [][]string
	prompts  int
	nexts    int
	closes   int
}

func (h *recordingHost) Message(actor, owner int, text string)   { h.messages = append(h.messages, text) }
func (h *recordingHost) Next(actor, owner int)                   { h.nexts++ }
func (h *recordingHost) Close(actor, owner int)                  { h.closes++ }
func (h *recordingHost) Menu(actor, owner int, options []string) { h.menus = append(h.menus, options) }
func (h *recordingHost) Prompt(actor, owner int, text bool)      { h.prompts++ }

func str(s string) types.Value { return types.NewStr(s) }
func num(n int64) types.Value  { return types.NewInt(n) }

func call(t *testing.T, fn Func, s Script, args ...types.Value) types.Value {
	t.Helper()
	v, err := fn(s, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func errCode(err error) types.ErrorCode {
	if se, ok := err.(*types.ScriptError); ok {
		return se.Code
	}
	return types.E_NONE
}
