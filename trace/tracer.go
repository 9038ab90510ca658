package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"athena/types"
)

// Tracer provides execution tracing for debugging
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// Global tracer instance
var globalTracer *Tracer

// Init initializes the global tracer. filters are glob patterns matched
// against script names; none means trace everything.
func Init(enabled bool, filters []string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	globalTracer = &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// IsEnabled returns whether tracing is enabled
func IsEnabled() bool {
	if globalTracer == nil {
		return false
	}
	return globalTracer.enabled
}

// matchesFilter checks if a script name matches any of the filter patterns
func (t *Tracer) matchesFilter(script string) bool {
	if len(t.filters) == 0 {
		return true
	}

	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, script); matched {
			return true
		}
	}
	return false
}

func (t *Tracer) printf(script, format string, args ...interface{}) {
	if !t.enabled || !t.matchesFilter(script) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, format, args...)
}

// Call logs a builtin call
func (t *Tracer) Call(script string, line int, name string, args []types.Value) {
	argStrs := make([]string, len(args))
	for i, arg := range args {
		argStrs[i] = arg.String()
	}
	t.printf(script, "[TRACE] CALL %s:%d %s(%s)\n", script, line, name, strings.Join(argStrs, ", "))
}

// Frame logs entry into a callsub/callfunc frame
func (t *Tracer) Frame(script string, line int, target string, argc int) {
	t.printf(script, "[TRACE] FRAME %s:%d -> %s argc=%d\n", script, line, target, argc)
}

// Return logs a frame return value
func (t *Tracer) Return(script string, line int, result types.Value) {
	resultStr := "0"
	if result != nil {
		resultStr = result.String()
	}
	t.printf(script, "[TRACE] RETURN %s:%d => %s\n", script, line, resultStr)
}

// Suspend logs a script leaving the run loop without ending
func (t *Tracer) Suspend(script string, line int, status string) {
	t.printf(script, "[TRACE] SUSPEND %s:%d %s\n", script, line, status)
}

// Error logs a runtime error
func (t *Tracer) Error(script string, line int, code types.ErrorCode, msg string) {
	t.printf(script, "[TRACE] ERROR %s:%d %s %s\n", script, line, code, msg)
}

// Dialogue logs text sent to an actor
func (t *Tracer) Dialogue(actor int, message string) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Truncate long messages for readability
	msgDisplay := message
	if len(msgDisplay) > 60 {
		msgDisplay = msgDisplay[:57] + "..."
	}

	fmt.Fprintf(t.writer, "[TRACE]   MES actor=%d %q\n", actor, msgDisplay)
}

// Connection logs a connection event
func (t *Tracer) Connection(event string, connID int64, actor int, details string) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if details != "" {
		fmt.Fprintf(t.writer, "[TRACE] CONN %s conn=%d actor=%d %s\n",
			event, connID, actor, details)
	} else {
		fmt.Fprintf(t.writer, "[TRACE] CONN %s conn=%d actor=%d\n",
			event, connID, actor)
	}
}

// Global convenience functions

// Call logs a builtin call using the global tracer
func Call(script string, line int, name string, args []types.Value) {
	if globalTracer != nil {
		globalTracer.Call(script, line, name, args)
	}
}

// Frame logs a frame entry using the global tracer
func Frame(script string, line int, target string, argc int) {
	if globalTracer != nil {
		globalTracer.Frame(script, line, target, argc)
	}
}

// Return logs a frame return using the global tracer
func Return(script string, line int, result types.Value) {
	if globalTracer != nil {
		globalTracer.Return(script, line, result)
	}
}

// Suspend logs a suspension using the global tracer
func Suspend(script string, line int, status string) {
	if globalTracer != nil {
		globalTracer.Suspend(script, line, status)
	}
}

// Error logs a runtime error using the global tracer
func Error(script string, line int, code types.ErrorCode, msg string) {
	if globalTracer != nil {
		globalTracer.Error(script, line, code, msg)
	}
}

// Dialogue logs dialogue output using the global tracer
func Dialogue(actor int, message string) {
	if globalTracer != nil {
		globalTracer.Dialogue(actor, message)
	}
}

// Connection logs a connection event using the global tracer
func Connection(event string, connID int64, actor int, details string) {
	if globalTracer != nil {
		globalTracer.Connection(event, connID, actor, details)
	}
}
