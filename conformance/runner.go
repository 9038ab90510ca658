package conformance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"athena/config"
	"athena/db"
	"athena/parser"
	"athena/symbols"
	"athena/types"
	"athena/vm"

	"go.uber.org/zap"
)

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner executes conformance tests, each on a fresh engine and store
type Runner struct {
	log *zap.Logger
}

// NewRunner creates a runner; a nil logger discards engine logs
func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log}
}

// transcript records dialogue output as comparable lines
type transcript struct {
	lines []string
}

func (t *transcript) Message(actor, owner int, text string) {
	t.lines = append(t.lines, "mes: "+text)
}

func (t *transcript) Next(actor, owner int) { t.lines = append(t.lines, "next") }

func (t *transcript) Close(actor, owner int) { t.lines = append(t.lines, "close") }

func (t *transcript) Menu(actor, owner int, options []string) {
	t.lines = append(t.lines, "menu: "+strings.Join(options, "|"))
}

func (t *transcript) Prompt(actor, owner int, text bool) {
	if text {
		t.lines = append(t.lines, "prompt: text")
	} else {
		t.lines = append(t.lines, "prompt: number")
	}
}

var varKey = regexp.MustCompile(`^(.+)\[(\d+)\]$`)

// splitVar splits "name[i]" into name and index
func splitVar(key string) (string, int) {
	if m := varKey.FindStringSubmatch(key); m != nil {
		idx, _ := strconv.Atoi(m[2])
		return m[1], idx
	}
	return key, 0
}

// Run executes a single test
func (r *Runner) Run(test LoadedTest) TestResult {
	result := TestResult{Test: test}
	if skip, reason := test.Test.IsSkipped(); skip {
		result.Skipped = true
		result.SkipReason = reason
		return result
	}
	result.Error = r.run(test.Suite, &test.Test)
	result.Passed = result.Error == nil
	return result
}

func (r *Runner) run(suite *TestSuite, tc *TestCase) error {
	syms := symbols.NewTable()
	consts := config.Constants{Constants: suite.Constants, Params: suite.Params}
	if err := consts.Register(syms); err != nil {
		return fmt.Errorf("register constants: %w", err)
	}

	opts := suite.Options.merged(tc.Options)
	engOpts := vm.Options{
		Symbols:    syms,
		Logger:     r.log,
		TickLimit:  opts.TickLimit,
		StackLimit: opts.StackLimit,
	}
	var err error
	if engOpts.ArgCount, err = checkLevel(opts.ArgCount, "warning"); err != nil {
		return err
	}
	if engOpts.MissingComma, err = checkLevel(opts.MissingComma, "error"); err != nil {
		return err
	}
	store := db.NewStore(nil, r.log)
	host := &transcript{}
	engOpts.Vars = store
	engOpts.Host = host

	eng, err := vm.NewEngine(engOpts)
	if err != nil {
		return err
	}
	for name, src := range suite.Functions {
		prog, err := eng.CompileNamed(name, src, 1)
		if err != nil {
			return fmt.Errorf("function %s: %w", name, err)
		}
		eng.DefineFunction(name, prog)
	}

	actor := 1
	if tc.Actor != nil {
		actor = *tc.Actor
	}
	for param, v := range tc.Params {
		if err := store.SetParam(actor, param, types.NewInt(v)); err != nil {
			return err
		}
	}
	for key, raw := range tc.Vars {
		v, err := convertYAMLValue(raw)
		if err != nil {
			return fmt.Errorf("var %s: %w", key, err)
		}
		name, idx := splitVar(key)
		if err := store.Set(actor, name, idx, v); err != nil {
			return fmt.Errorf("var %s: %w", key, err)
		}
	}

	prog, err := eng.CompileNamed(tc.Name, tc.Script, 1)
	if want := tc.Expect.CompileError; want != "" {
		if err == nil {
			return fmt.Errorf("expected compile error %q, compiled", want)
		}
		if !strings.Contains(err.Error(), want) {
			return fmt.Errorf("compile error %q does not contain %q", err, want)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := checkWarnings(prog, tc.Expect.Warnings); err != nil {
		return err
	}

	st, err := eng.Start(prog, actor, 100)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	for i, raw := range tc.Inputs {
		if st.Status == vm.StatusEnded {
			return fmt.Errorf("script ended with %d unused input(s)", len(tc.Inputs)-i)
		}
		var v types.Value
		if raw != nil {
			if v, err = convertYAMLValue(raw); err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
		}
		if err := eng.Resume(st, v); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	return checkExpectation(tc, st, store, host, actor)
}

func checkLevel(s, def string) (vm.CheckLevel, error) {
	if s == "" {
		s = def
	}
	return vm.ParseCheckLevel(s)
}

func checkWarnings(prog *vm.Program, want []string) error {
	if want == nil {
		return nil
	}
	var got []parser.Diagnostic
	if prog != nil {
		got = prog.Warnings
	}
	if len(got) != len(want) {
		return fmt.Errorf("got %d warning(s) %v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if !strings.Contains(got[i].Message, w) {
			return fmt.Errorf("warning %d %q does not contain %q", i, got[i].Message, w)
		}
	}
	return nil
}

func checkExpectation(tc *TestCase, st *vm.State, store *db.Store, host *transcript, actor int) error {
	exp := tc.Expect

	wantState := exp.State
	if wantState == "" {
		wantState = vm.StatusEnded.String()
	}
	if got := st.Status.String(); got != wantState {
		return fmt.Errorf("state %s, want %s (error %v)", got, wantState, st.Err)
	}

	switch {
	case exp.Error == "" && st.Err != nil:
		return fmt.Errorf("unexpected runtime error: %w", st.Err)
	case exp.Error != "":
		if st.Err == nil {
			return fmt.Errorf("expected %s, script succeeded", exp.Error)
		}
		code, ok := types.ErrorFromString(exp.Error)
		if !ok {
			return fmt.Errorf("unknown error code %q", exp.Error)
		}
		if st.Err.Code != code {
			return fmt.Errorf("error %s, want %s", st.Err.Code, code)
		}
	}

	if exp.Output != nil {
		if len(host.lines) != len(exp.Output) {
			return fmt.Errorf("output %q, want %q", host.lines, exp.Output)
		}
		for i := range exp.Output {
			if host.lines[i] != exp.Output[i] {
				return fmt.Errorf("output line %d %q, want %q", i, host.lines[i], exp.Output[i])
			}
		}
	}

	for key, raw := range exp.Vars {
		want, err := convertYAMLValue(raw)
		if err != nil {
			return fmt.Errorf("expected var %s: %w", key, err)
		}
		name, idx := splitVar(key)
		got, err := store.Get(actor, name, idx)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if !sameValue(got, want) {
			return fmt.Errorf("%s = %s, want %s", key, describe(got), describe(want))
		}
	}
	return nil
}

// convertYAMLValue converts a decoded YAML scalar to a script value
func convertYAMLValue(v interface{}) (types.Value, error) {
	switch x := v.(type) {
	case int:
		return types.NewInt(int64(x)), nil
	case int64:
		return types.NewInt(x), nil
	case uint64:
		return types.NewInt(int64(x)), nil
	case bool:
		return types.Bool(x), nil
	case string:
		return types.NewStr(x), nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

func sameValue(a, b types.Value) bool {
	if types.IsString(a) != types.IsString(b) {
		return false
	}
	if types.IsString(a) {
		return a.String() == b.String()
	}
	x, _ := types.ToInt(a)
	y, _ := types.ToInt(b)
	return x == y
}

func describe(v types.Value) string {
	if types.IsString(v) {
		return strconv.Quote(v.String())
	}
	return v.String()
}

// RunAll executes every test in order
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, 0, len(tests))
	for _, test := range tests {
		results = append(results, r.Run(test))
	}
	return results
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Passed:
			stats.Passed++
		default:
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("Total: %d  Passed: %d  Failed: %d  Skipped: %d",
		stats.Total, stats.Passed, stats.Failed, stats.Skipped)
}
