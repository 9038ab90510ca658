package task

import (
	"fmt"
	"strings"

	"athena/vm"
)

// FormatTraceback formats the runtime error that ended t:
//
//	#<actor> <- <script>, line <N>:  <CODE> <message>
//	#<actor> <- (End of traceback)
func FormatTraceback(t *Task) []string {
	err := t.State.Err
	if err == nil {
		return nil
	}
	return []string{
		fmt.Sprintf("#%d <- %s, line %d:  %s %s", t.Actor(), t.Script, err.Line, err.Code, err.Msg),
		fmt.Sprintf("#%d <- (End of traceback)", t.Actor()),
	}
}

// FormatTracebackString returns the traceback as a single string
func FormatTracebackString(t *Task) string {
	return strings.Join(FormatTraceback(t), "\n")
}

// Describe summarises a task for listings
func Describe(t *Task) string {
	return fmt.Sprintf("%s %-8s %-12s actor=%d owner=%d status=%s line=%d",
		t.ID, t.Kind, t.Script, t.Actor(), t.Owner(), t.Status(), t.State.Line())
}

var _ Killer = (*vm.Engine)(nil)
