package task

import (
	"strings"
	"testing"

	"athena/vm"
)

func newEngine(t *testing.T) *vm.Engine {
	t.Helper()
	eng, err := vm.NewEngine(vm.Options{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

// start runs src for actor/owner and registers the suspended instance
func start(t *testing.T, eng *vm.Engine, m *Manager, src string, actor, owner int) *Task {
	t.Helper()
	prog, err := eng.Compile(src, 1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	st, err := eng.Start(prog, actor, owner)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	tk := NewTask(TaskDialogue, "npc", st)
	m.Add(tk)
	return tk
}

func TestManagerIndexes(t *testing.T) {
	eng := newEngine(t)
	m := NewManager()

	a := start(t, eng, m, "{ next; }", 1, 100)
	b := start(t, eng, m, "{ next; }", 2, 100)
	c := start(t, eng, m, "{ next; }", 3, 200)

	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	if m.Get(a.ID) != a {
		t.Error("Get did not return the registered task")
	}
	if m.ForActor(2) != b {
		t.Error("ForActor(2) mismatch")
	}
	if got := m.ForOwner(100); len(got) != 2 {
		t.Errorf("ForOwner(100) = %d tasks, want 2", len(got))
	}
	if got := m.ForOwner(200); len(got) != 1 || got[0] != c {
		t.Errorf("ForOwner(200) = %v", got)
	}
}

func TestManagerSkipsEnded(t *testing.T) {
	eng := newEngine(t)
	m := NewManager()
	start(t, eng, m, "{ end; }", 1, 100)
	if m.Len() != 0 {
		t.Errorf("ended task was registered")
	}
}

func TestKillOwner(t *testing.T) {
	eng := newEngine(t)
	m := NewManager()

	a := start(t, eng, m, "{ next; }", 1, 100)
	b := start(t, eng, m, "{ next; }", 2, 100)
	c := start(t, eng, m, "{ next; }", 3, 200)

	if n := m.KillOwner(eng, 100); n != 2 {
		t.Errorf("KillOwner = %d, want 2", n)
	}
	for _, tk := range []*Task{a, b} {
		if !tk.Done() {
			t.Errorf("task for actor %d still %s", tk.Actor(), tk.Status())
		}
	}
	if c.Done() {
		t.Error("task of another owner was killed")
	}
	if m.ForActor(1) != nil || m.Len() != 1 {
		t.Errorf("killed tasks still indexed, Len = %d", m.Len())
	}
	if err := eng.Resume(a.State, nil); err == nil {
		t.Error("resuming a killed instance should fail")
	}
}

func TestKillActor(t *testing.T) {
	eng := newEngine(t)
	m := NewManager()
	a := start(t, eng, m, "{ next; }", 1, 100)
	if !m.KillActor(eng, 1) {
		t.Fatal("KillActor returned false")
	}
	if !a.Done() {
		t.Error("task not ended")
	}
	if m.KillActor(eng, 1) {
		t.Error("second KillActor should find nothing")
	}
}

func TestCleanupCompleted(t *testing.T) {
	eng := newEngine(t)
	m := NewManager()
	a := start(t, eng, m, "{ next; }", 1, 100)
	start(t, eng, m, "{ next; }", 2, 100)

	if err := eng.Resume(a.State, nil); err != nil {
		t.Fatal(err)
	}
	if n := m.CleanupCompleted(); n != 1 {
		t.Errorf("CleanupCompleted = %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestFormatTraceback(t *testing.T) {
	eng := newEngine(t)
	prog, err := eng.Compile("{\n@a = 1 / 0;\n}", 1)
	if err != nil {
		t.Fatal(err)
	}
	st, _ := eng.Start(prog, 7, 100)
	tk := NewTask(TaskDialogue, "guard", st)

	lines := FormatTraceback(tk)
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "#7 <- guard, line 2:  E_DIV") {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[1] != "#7 <- (End of traceback)" {
		t.Errorf("last line = %q", lines[1])
	}
}
