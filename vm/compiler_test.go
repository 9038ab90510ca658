package vm

import (
	"errors"
	"strings"
	"testing"

	"athena/parser"
)

// jumpTargets returns the offsets of every resolved OP_GOTO
func jumpTargets(t *testing.T, prog *Program) []int {
	t.Helper()
	var out []int
	for pos := 0; pos < len(prog.Code); {
		n, err := instrLen(prog.Code, pos)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if OpCode(prog.Code[pos]) == OP_GOTO && OpCode(prog.Code[pos+1]) == OP_POS {
			out = append(out, get3(prog.Code, pos+2))
		}
		pos += n
	}
	return out
}

func TestForwardReferencesShareOffset(t *testing.T) {
	for _, n := range []int{1, 2, 10, 100} {
		var b strings.Builder
		b.WriteString("{\n")
		for i := 0; i < n; i++ {
			b.WriteString("\tif (@skip) goto L_Target;\n")
		}
		b.WriteString("\tgoto L_Target;\n\tmes \"unreachable\";\nL_Target:\n\t@x = 1;\n}\n")

		h := newHarness(t, Options{})
		prog := h.compile(t, b.String())
		targets := jumpTargets(t, prog)
		if len(targets) != n+1 {
			t.Fatalf("n=%d: found %d gotos", n, len(targets))
		}
		for _, off := range targets {
			if off != targets[0] {
				t.Fatalf("n=%d: targets differ: %v", n, targets)
			}
		}

		st, _ := h.eng.Start(prog, 1, 0)
		expectEnded(t, st)
		if h.vars.int(t, "@x") != 1 || len(h.host.messages) != 0 {
			t.Errorf("n=%d: jump did not land on the label", n)
		}
	}
}

func TestNoPlaceholderSurvives(t *testing.T) {
	h := newHarness(t, Options{})
	prog := h.compile(t, `{
	function F;
	@a = @b + F(1);
	callsub L_Sub, @a;
	goto L_Undefined;
L_Sub:
	return;
	function F { return getarg(0); }
}`)
	for pos := 0; pos < len(prog.Code); {
		n, err := instrLen(prog.Code, pos)
		if err != nil {
			t.Fatal(err)
		}
		if OpCode(prog.Code[pos]) == OP_UNRESOLVED {
			t.Fatalf("placeholder left at %d:\n%s", pos, prog.Disassemble())
		}
		pos += n
	}
	if OpCode(prog.Code[len(prog.Code)-1]) != OP_END {
		t.Error("program does not end with OP_END")
	}
}

func TestEmptyBody(t *testing.T) {
	h := newHarness(t, Options{})
	for _, src := range []string{"{}", "{ }", "  {\n\t}\n"} {
		prog, err := h.eng.Compile(src, 1)
		if prog != nil || err != nil {
			t.Errorf("%q: got %v, %v", src, prog, err)
		}
	}
	st, err := h.eng.Start(nil, 1, 0)
	if err != nil || st.Status != StatusEnded {
		t.Errorf("Start(nil) = %v, %v", st.Status, err)
	}
}

func TestArgCountDiagnostics(t *testing.T) {
	tests := []struct {
		src      string
		warnings int
	}{
		{"{ pair 1; }", 1},
		{"{ pair 1, 2; }", 0},
		{"{ pair 1, 2, 3; }", 1},
		{"{ @x = pair(1); }", 1},
		{"{ @x = pair(1, 2); }", 0},
	}
	for _, tt := range tests {
		h := newHarness(t, Options{Registry: pairRegistry(), ArgCount: CheckWarning})
		prog := h.compile(t, tt.src)
		if len(prog.Warnings) != tt.warnings {
			t.Errorf("%s: %d warnings %v, want %d", tt.src, len(prog.Warnings), prog.Warnings, tt.warnings)
		}
	}

	h := newHarness(t, Options{Registry: pairRegistry(), ArgCount: CheckError})
	_, err := h.eng.Compile("{ pair 1, 2, 3; }", 1)
	var se *parser.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want a syntax error", err)
	}
	if se.Column != 14 {
		t.Errorf("diagnostic column %d, want the third argument at 14", se.Column)
	}

	h = newHarness(t, Options{Registry: pairRegistry(), ArgCount: CheckOff})
	if prog := h.compile(t, "{ pair 1; }"); len(prog.Warnings) != 0 {
		t.Errorf("check off still warned: %v", prog.Warnings)
	}

	for _, src := range []string{"{ close 1; }", "{ next 1; }", "{ @n = getargcount(7); }"} {
		h = newHarness(t, Options{ArgCount: CheckError})
		if _, err := h.eng.Compile(src, 1); err == nil {
			t.Errorf("%s: no-argument builtin accepted an argument", src)
		}
	}
}

func TestMissingComma(t *testing.T) {
	h := newHarness(t, Options{MissingComma: CheckWarning})
	prog := h.compile(t, `{ mes "a" "b"; }`)
	if len(prog.Warnings) != 1 {
		t.Errorf("warnings = %v", prog.Warnings)
	}

	h = newHarness(t, Options{MissingComma: CheckError})
	if _, err := h.eng.Compile(`{ mes "a" "b"; }`, 1); err == nil {
		t.Error("missing comma compiled")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no braces", "@x = 1;", "expected '{'"},
		{"unclosed", "{ @x = 1;", "unexpected end of script"},
		{"trailing", "{ } }", "after end of script"},
		{"stray else", "{ else @x = 1; }", "'else' without matching 'if'"},
		{"double else", "{ if (1) @x = 1; else @x = 2; else @x = 3; }", "'else' without matching 'if'"},
		{"break outside", "{ break; }", "'break' outside loop or switch"},
		{"continue in switch", "{ switch (1) { case 1: continue; } }", "'continue' outside loop"},
		{"case outside", "{ case 1: }", "'case' outside switch"},
		{"duplicate case", "{ switch (1) { case 1: case 2: case 1: } }", "duplicate case 1"},
		{"duplicate negative case", "{ switch (1) { case -1: case 2: case -1: } }", "duplicate case -1"},
		{"duplicate default", "{ switch (1) { default: default: } }", "duplicate 'default'"},
		{"duplicate label", "{ L_A: L_A: }", "duplicate label"},
		{"unknown command", "{ frobnicate 1; }", "unknown command"},
		{"undeclared call", "{ @x = frobnicate(1); }", "undeclared function"},
		{"missing operand", "{ @x = ; }", "expected expression"},
		{"trailing comma", `{ mes "a",; }`, "expected argument after ','"},
		{"unterminated string", "{ mes \"abc; }", "unterminated string"},
		{"nested function", "{ function F { function G { } } }", "inside another function"},
		{"function clash", "{ function mes { } }", "clashes"},
		{"assign to builtin", "{ mes = 1; }", "expected expression"},
		{"break in function", "{ while (1) { function F { break; } } }", "'break' outside"},
		{"do without while", "{ do @x++; @y++; }", "'while' after do body"},
		{"unmatched brace in if", "{ if (1) } }", "unexpected '}'"},
		{"callsub without target", "{ callsub; }", "needs a target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			_, err := h.eng.Compile(tt.src, 1)
			if err == nil {
				t.Fatalf("compiled without error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNestingLimit(t *testing.T) {
	h := newHarness(t, Options{MaxNesting: 4})
	src := "{ if (1) if (1) if (1) if (1) @x = 1; }"
	_, err := h.eng.Compile(src, 1)
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("got %v, want ErrTooDeep", err)
	}

	if _, err := h.eng.Compile("{ if (1) if (1) @x = 1; }", 1); err != nil {
		t.Errorf("shallow nesting failed: %v", err)
	}
}

func TestCompileErrorPosition(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.eng.Compile("{\n\t@x = 1;\n\t@y = ) ;\n}", 10)
	var se *parser.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("got %v", err)
	}
	if se.Line != 12 || se.Column != 7 {
		t.Errorf("position %d:%d, want 12:7", se.Line, se.Column)
	}
	if se.LineText != "\t@y = ) ;" {
		t.Errorf("line text %q", se.LineText)
	}
}

func TestDisassemble(t *testing.T) {
	h := newHarness(t, Options{})
	prog := h.compile(t, "{\n\t@x = 1 + 2;\n\tgoto L_End;\nL_End:\n}")
	out := prog.Disassemble()
	for _, want := range []string{"; line 2", "CALL", "set", "ADD", "GOTO", "; line 3", "END"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly lacks %q:\n%s", want, out)
		}
	}
	if prog.LineForPos(0) != 2 {
		t.Errorf("LineForPos(0) = %d", prog.LineForPos(0))
	}
}

func TestParseCheckLevel(t *testing.T) {
	for in, want := range map[string]CheckLevel{"off": CheckOff, "Warning": CheckWarning, "error": CheckError} {
		got, err := ParseCheckLevel(in)
		if err != nil || got != want {
			t.Errorf("%s: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseCheckLevel("loud"); err == nil {
		t.Error("accepted unknown level")
	}
}
