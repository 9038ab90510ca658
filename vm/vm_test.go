package vm

import (
	"errors"
	"testing"

	"athena/types"
)

func TestForLoopVisitsInOrder(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	for (@i = 0; @i < 5; @i++)
		@order$ = strcat(@order$, @i);
	@count = @i;
}`)
	expectEnded(t, st)
	if got := h.vars.str("@order$"); got != "01234" {
		t.Errorf("visited %q, want 01234", got)
	}
	if h.vars.int(t, "@count") != 5 {
		t.Errorf("loop exited with @i = %d", h.vars.int(t, "@count"))
	}
}

func TestInfiniteForWithBreak(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	for (;;) {
		@visits++;
		if (@i == 3) break;
		@i++;
	}
}`)
	expectEnded(t, st)
	if got := h.vars.int(t, "@visits"); got != 4 {
		t.Errorf("body ran %d times, want 4", got)
	}
}

func TestLoops(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int64
	}{
		{"while", `{ while (@i < 10) @i += 3; @r = @i; }`, 12},
		{"while continue", `{ while (@i < 10) { @i++; if (@i % 2) continue; @r += @i; } }`, 30},
		{"do runs once", `{ do @r++; while (0); }`, 1},
		{"do continue", `{ do { @i++; if (@i < 5) continue; @r = @i; } while (@i < 5); }`, 5},
		{"nested break", `{
	for (@i = 0; @i < 3; @i++) {
		for (@j = 0; @j < 10; @j++) {
			if (@j == 2) break;
			@r++;
		}
	}
}`, 6},
		{"goto loop", `{
L_Top:
	@r++;
	if (@r < 7) goto L_Top;
}`, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			st := h.run(t, tt.src)
			expectEnded(t, st)
			if got := h.vars.int(t, "@r"); got != tt.want {
				t.Errorf("@r = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSwitchFallthrough(t *testing.T) {
	src := `{
	switch (@v) {
	case 1: @a++;
	case 2: @b++;
	case 3: @c++;
		break;
	default: @d++;
	}
	@after++;
}`
	tests := []struct {
		v          int64
		a, b, c, d int64
	}{
		{1, 1, 1, 1, 0},
		{2, 0, 1, 1, 0},
		{3, 0, 0, 1, 0},
		{9, 0, 0, 0, 1},
	}
	h := newHarness(t, Options{})
	prog := h.compile(t, src)
	for _, tt := range tests {
		h.vars = newMapVars()
		h.eng.vars = h.vars
		h.vars.Set(0, "@v", 0, types.NewInt(tt.v))
		st, _ := h.eng.Start(prog, 1, 0)
		expectEnded(t, st)
		got := [4]int64{h.vars.int(t, "@a"), h.vars.int(t, "@b"), h.vars.int(t, "@c"), h.vars.int(t, "@d")}
		want := [4]int64{tt.a, tt.b, tt.c, tt.d}
		if got != want {
			t.Errorf("switch(%d) ran a,b,c,d = %v, want %v", tt.v, got, want)
		}
		if h.vars.int(t, "@after") != 1 {
			t.Errorf("switch(%d) did not reach the join point once", tt.v)
		}
	}
}

func TestSwitchCaseExpressions(t *testing.T) {
	src := `{
	switch (@v) {
	case -1+3: @r = 1; break;
	case -1: @r = 2; break;
	case 2*2: @r = 3; break;
	case 4: @r = 4; break;
	}
}`
	tests := []struct{ v, r int64 }{
		{2, 1},
		{-1, 2},
		{4, 3},
		{7, 0},
	}
	h := newHarness(t, Options{})
	prog := h.compile(t, src)
	for _, tt := range tests {
		h.vars = newMapVars()
		h.eng.vars = h.vars
		h.vars.Set(0, "@v", 0, types.NewInt(tt.v))
		st, _ := h.eng.Start(prog, 1, 0)
		expectEnded(t, st)
		if got := h.vars.int(t, "@r"); got != tt.r {
			t.Errorf("switch(%d): @r = %d, want %d", tt.v, got, tt.r)
		}
	}
}

func TestSwitchDefaultFirst(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	switch (5) {
	default: @r = 1; break;
	case 5: @r = 2;
	}
}`)
	expectEnded(t, st)
	if got := h.vars.int(t, "@r"); got != 2 {
		t.Errorf("@r = %d, want the matching case", got)
	}
}

func TestIfElseChain(t *testing.T) {
	h := newHarness(t, Options{})
	prog := h.compile(t, `{
	if (@x == 1) @r = 10;
	else if (@x == 2) @r = 20;
	else @r = 30;
	@join++;
}`)
	for x, want := range map[int64]int64{1: 10, 2: 20, 3: 30} {
		h.vars = newMapVars()
		h.eng.vars = h.vars
		h.vars.Set(0, "@x", 0, types.NewInt(x))
		st, _ := h.eng.Start(prog, 1, 0)
		expectEnded(t, st)
		if got := h.vars.int(t, "@r"); got != want {
			t.Errorf("x=%d ran branch %d, want %d", x, got, want)
		}
		if h.vars.int(t, "@join") != 1 {
			t.Errorf("x=%d: join point ran %d times", x, h.vars.int(t, "@join"))
		}
	}
}

func TestFrameIsolation(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	function F;
	@x = 5;
	F(@x);
	@after = @x;
	end;
	function F {
		setarg 0, 99;
		@inner = getarg(0);
	}
}`)
	expectEnded(t, st)
	if h.vars.int(t, "@after") != 5 {
		t.Errorf("caller's @x changed to %d", h.vars.int(t, "@after"))
	}
	if h.vars.int(t, "@inner") != 99 {
		t.Errorf("getarg(0) after setarg = %d", h.vars.int(t, "@inner"))
	}
}

func TestCallsubAndReturnValues(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	@r = callsub(L_Add, 2, 3) * 10;
	@n = callsub(L_Count, 1, 2, 3, 4);
	@z = callsub(L_Nothing);
	@d = callsub(L_Default);
	end;
L_Add:
	return getarg(0) + getarg(1);
L_Count:
	return getargcount();
L_Nothing:
	return;
L_Default:
	return getarg(5, 77);
}`)
	expectEnded(t, st)
	for name, want := range map[string]int64{"@r": 50, "@n": 4, "@z": 0, "@d": 77} {
		if got := h.vars.int(t, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if st.Depth() != 0 {
		t.Errorf("stack not released: %d values", st.Depth())
	}
}

func TestRecursion(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	function Fact;
	@r = Fact(10);
	end;
	function Fact {
		if (getarg(0) <= 1) return 1;
		return getarg(0) * Fact(getarg(0) - 1);
	}
}`)
	expectEnded(t, st)
	if got := h.vars.int(t, "@r"); got != 3628800 {
		t.Errorf("Fact(10) = %d", got)
	}
}

func TestCallfunc(t *testing.T) {
	h := newHarness(t, Options{})
	h.eng.DefineFunction("Add", h.compile(t, `{ return getarg(0) + getarg(1); }`))
	st := h.run(t, `{ @r = callfunc("add", 2, 3); callfunc "Add", 1, 1; }`)
	expectEnded(t, st)
	if got := h.vars.int(t, "@r"); got != 5 {
		t.Errorf("callfunc result %d", got)
	}

	st = h.run(t, `{ callfunc "Missing"; }`)
	if st.Err == nil || st.Err.Code != types.E_FUNC {
		t.Errorf("missing function: %v", st.Err)
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"-5 / 2", -2},
		{"7 % 3", 1},
		{"1 << 4 | 1", 17},
		{"6 & 3 ^ 1", 3},
		{"1 < 2 && 3 > 4", 0},
		{"1 || 0 && 0", 1},
		{"!0 + ~0", 0},
		{`"12" + 1`, 13},
		{"2 == 2 == 1", 1},
		{"-(3 + 4)", -7},
		{"- -3", 3},
		{"0x10 + 010", 24},
		{"5 >= 5", 1},
		{"5 != 5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			h := newHarness(t, Options{})
			st := h.run(t, "{ @v = "+tt.expr+"; }")
			expectEnded(t, st)
			if got := h.vars.int(t, "@v"); got != tt.want {
				t.Errorf("%s = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}

func TestAssignmentForms(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	@x = 10;
	@x -= 3;
	@x *= 2;
	@x /= 7;
	@x %= 3;
	++@x;
	--@x;
	@x++;
	@y = -@x;
	@arr[2] = 5;
	@arr[2] += 1;
	@idx = 2;
	@copy = @arr[@idx];
	set @s$, "text";
}`)
	expectEnded(t, st)
	checks := map[string]int64{"@x": 3, "@y": -3, "@copy": 6}
	for name, want := range checks {
		if got := h.vars.int(t, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if v, _ := h.vars.Get(0, "@arr", 2); v.(types.IntValue).Val != 6 {
		t.Errorf("@arr[2] = %s", v)
	}
	if h.vars.str("@s$") != "text" {
		t.Errorf("@s$ = %q", h.vars.str("@s$"))
	}
}

func TestCompoundAssignEvaluatesIndexOnce(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	function Next;
	@arr[Next()] += 5;
	@arr[Next()]++;
	@arr[Next()] -= 2;
	end;
	function Next {
		@calls++;
		return 3;
	}
}`)
	expectEnded(t, st)
	if got := h.vars.int(t, "@calls"); got != 3 {
		t.Errorf("index evaluated %d times, want 3", got)
	}
	if v, _ := h.vars.Get(0, "@arr", 3); v.(types.IntValue).Val != 4 {
		t.Errorf("@arr[3] = %s, want 4", v)
	}
}

func TestConstantsAndParams(t *testing.T) {
	h := newHarness(t, Options{})
	if _, err := h.eng.Symbols().DefineConstant("Job_Novice", 7); err != nil {
		t.Fatal(err)
	}
	if _, err := h.eng.Symbols().DefineParam("Zeny", 20); err != nil {
		t.Fatal(err)
	}
	h.vars.params[20] = types.NewInt(1000)

	st := h.run(t, `{ @j = Job_Novice * 2; Zeny -= 250; @z = Zeny; }`)
	expectEnded(t, st)
	if h.vars.int(t, "@j") != 14 {
		t.Errorf("@j = %d", h.vars.int(t, "@j"))
	}
	if h.vars.int(t, "@z") != 750 {
		t.Errorf("@z = %d", h.vars.int(t, "@z"))
	}

	if _, err := h.eng.Compile("{ Job_Novice = 1; }", 1); err == nil {
		t.Error("assignment to a constant compiled")
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts Options
		code types.ErrorCode
	}{
		{"division by zero", "{ @x = 1 / 0; }", Options{}, types.E_DIV},
		{"modulo by zero", "{ @x = 1 % 0; }", Options{}, types.E_DIV},
		{"negative shift", "{ @x = 1 << -1; }", Options{}, types.E_RANGE},
		{"undefined goto", "{ goto L_Nowhere; }", Options{}, types.E_LABEL},
		{"declared only", "{ function F; F(); }", Options{}, types.E_LABEL},
		{"getarg outside frame", "{ @x = getarg(0); }", Options{}, types.E_FRAME},
		{"array index", "{ @x = @arr[128]; }", Options{}, types.E_RANGE},
		{"label operand", "{ @x = L_A + 1; L_A: }", Options{}, types.E_TYPE},
		{"tick limit", "{ L_A: goto L_A; }", Options{TickLimit: 1000}, types.E_TICKS},
		{"stack limit", "{ L_A: callsub L_A, 1; }", Options{StackLimit: 100}, types.E_STACK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts)
			st := h.run(t, tt.src)
			if st.Status != StatusEnded {
				t.Fatalf("status %s", st.Status)
			}
			if st.Err == nil || st.Err.Code != tt.code {
				t.Fatalf("error %v, want %s", st.Err, tt.code)
			}
			if st.Err.Line != 1 {
				t.Errorf("error line %d", st.Err.Line)
			}
		})
	}
}

func TestRuntimeErrorIsContained(t *testing.T) {
	h := newHarness(t, Options{})
	bad := h.run(t, "{ @x = 1 / 0; }")
	if bad.Err == nil {
		t.Fatal("expected an error")
	}
	good := h.run(t, "{ @y = 2; }")
	expectEnded(t, good)
	if h.vars.int(t, "@y") != 2 {
		t.Error("second instance did not run")
	}
	if !errors.Is(h.run(t, "{ L_A: callsub L_A; }").Err, ErrStackOverflow) {
		t.Error("stack overflow is not distinguishable")
	}
}

func TestInputSuspendResume(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	@before++;
	input @n;
	@after = @n;
	mes "done";
}`)
	if st.Status != StatusAwaitingInput || st.Resume.Mode != Rerun {
		t.Fatalf("status %s mode %v", st.Status, st.Resume.Mode)
	}
	if h.vars.int(t, "@before") != 1 || h.vars.int(t, "@after") != 0 || h.host.prompts != 1 {
		t.Fatalf("side effects before suspension: before=%d after=%d prompts=%d",
			h.vars.int(t, "@before"), h.vars.int(t, "@after"), h.host.prompts)
	}

	if err := h.eng.Resume(st, nil); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("resume without value: %v", err)
	}
	if err := h.eng.Resume(st, types.NewInt(7)); err != nil {
		t.Fatal(err)
	}
	expectEnded(t, st)
	if h.vars.int(t, "@after") != 7 || h.vars.int(t, "@before") != 1 {
		t.Errorf("after resume: before=%d after=%d", h.vars.int(t, "@before"), h.vars.int(t, "@after"))
	}
	if h.host.prompts != 1 || len(h.host.messages) != 1 {
		t.Errorf("prompts=%d messages=%v", h.host.prompts, h.host.messages)
	}

	if err := h.eng.Resume(st, types.NewInt(8)); !errors.Is(err, ErrNotSuspended) {
		t.Errorf("second resume: %v", err)
	}
	if h.host.prompts != 1 {
		t.Errorf("prompt re-triggered")
	}
}

func TestInputInsideCallsub(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{
	@r = callsub(L_Ask, 3);
	end;
L_Ask:
	input @n;
	return @n + getarg(0);
}`)
	if st.Status != StatusAwaitingInput {
		t.Fatalf("status %s", st.Status)
	}
	if err := h.eng.Resume(st, types.NewInt(4)); err != nil {
		t.Fatal(err)
	}
	expectEnded(t, st)
	if got := h.vars.int(t, "@r"); got != 7 {
		t.Errorf("@r = %d", got)
	}
}

func TestSelectResumesInPlace(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{ @c = select("Yes:No") * 10; }`)
	if st.Status != StatusAwaitingInput || st.Resume.Mode != SamePosition {
		t.Fatalf("status %s mode %v", st.Status, st.Resume.Mode)
	}
	if err := h.eng.Resume(st, types.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	expectEnded(t, st)
	if got := h.vars.int(t, "@c"); got != 20 {
		t.Errorf("@c = %d", got)
	}
	if len(h.host.menus) != 1 || len(h.host.menus[0]) != 2 {
		t.Errorf("menus = %v", h.host.menus)
	}
}

func TestMenuJumps(t *testing.T) {
	src := `{
	menu "One", L_One, "Two:Deux", L_Two;
	@r = -1;
	end;
L_One:
	@r = 1;
	end;
L_Two:
	@r = 2;
	end;
}`
	tests := []struct {
		choice int64
		r      int64
		menu   int64
	}{
		{1, 1, 1},
		{2, 2, 2},
		{3, 2, 3},
		{255, 0, 0},
	}
	for _, tt := range tests {
		h := newHarness(t, Options{})
		st := h.run(t, src)
		if st.Status != StatusAwaitingInput {
			t.Fatalf("status %s", st.Status)
		}
		if err := h.eng.Resume(st, types.NewInt(tt.choice)); err != nil {
			t.Fatal(err)
		}
		expectEnded(t, st)
		if h.vars.int(t, "@r") != tt.r || h.vars.int(t, "@menu") != tt.menu {
			t.Errorf("choice %d: @r=%d @menu=%d", tt.choice, h.vars.int(t, "@r"), h.vars.int(t, "@menu"))
		}
	}
}

func TestYieldAndKill(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{ @a = 1; sleep2 500; @b = 1; next; @c = 1; }`)
	if st.Status != StatusYielded || st.WakeAfter.Milliseconds() != 500 {
		t.Fatalf("status %s wake %v", st.Status, st.WakeAfter)
	}
	if err := h.eng.Resume(st, nil); err != nil {
		t.Fatal(err)
	}
	if st.Status != StatusYielded || h.vars.int(t, "@b") != 1 || h.vars.int(t, "@c") != 0 {
		t.Fatalf("after first resume: %s b=%d c=%d", st.Status, h.vars.int(t, "@b"), h.vars.int(t, "@c"))
	}
	h.eng.Kill(st)
	if st.Status != StatusEnded || st.Depth() != 0 {
		t.Errorf("kill left %s with %d values", st.Status, st.Depth())
	}
	if err := h.eng.Resume(st, nil); !errors.Is(err, ErrNotSuspended) {
		t.Errorf("resume after kill: %v", err)
	}
	if h.vars.int(t, "@c") != 0 {
		t.Error("killed script kept running")
	}
}

func TestNoActor(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.eng.Start(h.compile(t, `{ mes "hi"; }`), 0, 5)
	if st.Err == nil || st.Err.Code != types.E_ACTOR {
		t.Errorf("got %v, want E_ACTOR", st.Err)
	}
}

func TestSwitchTempCleared(t *testing.T) {
	h := newHarness(t, Options{})
	st := h.run(t, `{ switch (42) { case 42: @r = 1; } }`)
	expectEnded(t, st)
	for k, v := range h.vars.vals {
		if len(k) > 5 && k[:5] == "$@__s" && !isZeroValue(v) {
			t.Errorf("%s still holds %s", k, v)
		}
	}
}

func isZeroValue(v types.Value) bool {
	n, ok := v.(types.IntValue)
	return ok && n.Val == 0
}
