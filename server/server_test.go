package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"athena/db"
	"athena/vm"
)

const guideScript = `{
	mes "Hello";
	next;
	menu "Yes", L_yes, "No", L_no;
L_yes:
	mes "Good";
	close;
L_no:
	mes "Bad";
	close;
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := db.NewStore(nil, nil)
	srv, err := NewServer(Options{Engine: vm.Options{Vars: store}, Store: store})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.AddNPC("Guide", 500, guideScript, 1); err != nil {
		t.Fatalf("AddNPC: %v", err)
	}
	if err := srv.AddNPC("Broken", 501, "{\n\t@x = 1 / 0;\n}", 1); err != nil {
		t.Fatalf("AddNPC: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Scheduler().Stop()
	})
	return srv
}

func connect(t *testing.T, srv *Server) *PipeTransport {
	t.Helper()
	pipe := NewPipeTransport()
	go srv.Serve(pipe)
	expectLine(t, pipe, "Welcome. Type 'help' for commands.")
	t.Cleanup(func() { pipe.Send("quit") })
	return pipe
}

func receive(t *testing.T, pipe *PipeTransport) string {
	t.Helper()
	line, ok := pipe.Receive(2 * time.Second)
	if !ok {
		t.Fatal("timed out waiting for output")
	}
	return line
}

func expectLine(t *testing.T, pipe *PipeTransport, want string) {
	t.Helper()
	if got := receive(t, pipe); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDialogueMenu(t *testing.T) {
	tests := []struct {
		answer string
		want   []string
	}{
		{"1", []string{"[Guide] Good", "[close]"}},
		{"2", []string{"[Guide] Bad", "[close]"}},
		{"255", []string{"[close]"}},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			srv := newTestServer(t)
			pipe := connect(t, srv)

			pipe.Send("talk guide")
			expectLine(t, pipe, "[Guide] Hello")
			expectLine(t, pipe, "[next]")
			pipe.Send("")
			expectLine(t, pipe, "1) Yes")
			expectLine(t, pipe, "2) No")
			expectLine(t, pipe, "[menu] choose 1-2, 255 to cancel")
			pipe.Send(tt.answer)
			for _, want := range tt.want {
				expectLine(t, pipe, want)
			}

			// back in command mode
			pipe.Send("npcs")
			expectLine(t, pipe, "Broken, Guide")
		})
	}
}

func TestUnknownNPC(t *testing.T) {
	srv := newTestServer(t)
	pipe := connect(t, srv)
	pipe.Send("talk nobody")
	expectLine(t, pipe, `There is no "nobody" here.`)
	pipe.Send("dance")
	expectLine(t, pipe, "I don't understand that.")
}

func TestDialogueRuntimeError(t *testing.T) {
	srv := newTestServer(t)
	pipe := connect(t, srv)
	pipe.Send("talk broken")
	first := receive(t, pipe)
	if !strings.HasPrefix(first, "#") || !strings.Contains(first, "Broken, line 2:  E_DIV") {
		t.Errorf("traceback = %q", first)
	}
	if last := receive(t, pipe); !strings.HasSuffix(last, "(End of traceback)") {
		t.Errorf("traceback end = %q", last)
	}
}

func TestRemoveNPCEndsDialogues(t *testing.T) {
	srv := newTestServer(t)
	pipe := connect(t, srv)
	pipe.Send("talk guide")
	expectLine(t, pipe, "[Guide] Hello")
	expectLine(t, pipe, "[next]")

	n, err := srv.RemoveNPC("guide")
	if err != nil || n != 1 {
		t.Fatalf("RemoveNPC = %d, %v; want 1", n, err)
	}
	pipe.Send("dance")
	expectLine(t, pipe, "I don't understand that.")
	pipe.Send("talk guide")
	expectLine(t, pipe, `There is no "guide" here.`)
}

func TestQuit(t *testing.T) {
	srv := newTestServer(t)
	pipe := NewPipeTransport()
	done := make(chan struct{})
	go func() {
		srv.Serve(pipe)
		close(done)
	}()
	expectLine(t, pipe, "Welcome. Type 'help' for commands.")
	pipe.Send("quit")
	expectLine(t, pipe, "Goodbye.")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after quit")
	}
}
