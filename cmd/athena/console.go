package main

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"athena/builtins"
	"athena/vm"
)

// consoleHost plays dialogue on a terminal for -run
type consoleHost struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsoleHost(in io.Reader, out io.Writer) *consoleHost {
	return &consoleHost{in: bufio.NewScanner(in), out: out}
}

func (h *consoleHost) Message(actor, owner int, text string) {
	fmt.Fprintln(h.out, text)
}

func (h *consoleHost) Next(actor, owner int) {
	fmt.Fprintln(h.out, "[next]")
}

func (h *consoleHost) Close(actor, owner int) {
	fmt.Fprintln(h.out, "[close]")
}

func (h *consoleHost) Menu(actor, owner int, options []string) {
	for i, opt := range options {
		fmt.Fprintf(h.out, "%d) %s\n", i+1, opt)
	}
}

func (h *consoleHost) Prompt(actor, owner int, text bool) {
	if text {
		fmt.Fprint(h.out, "text> ")
	} else {
		fmt.Fprint(h.out, "number> ")
	}
}

// drive resumes st until it ends, reading answers from the input.
// End of input kills the script.
func (h *consoleHost) drive(eng *vm.Engine, st *vm.State) error {
	for st.Status != vm.StatusEnded {
		switch st.Status {
		case vm.StatusYielded:
			if st.WakeAfter > 0 {
				time.Sleep(st.WakeAfter)
			} else if !h.in.Scan() {
				eng.Kill(st)
				return h.in.Err()
			}
			if err := eng.Resume(st, nil); err != nil {
				return err
			}
		case vm.StatusAwaitingInput:
			if !h.in.Scan() {
				eng.Kill(st)
				return h.in.Err()
			}
			if err := eng.Resume(st, builtins.ParseAnswer(h.in.Text())); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected script status %s", st.Status)
		}
	}
	return nil
}
