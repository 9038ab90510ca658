package parser

import (
	"fmt"
	"strings"
)

// Severity classifies a compile diagnostic
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one compile-time message pinned to a source position
type Diagnostic struct {
	Severity Severity
	Message  string
	Line     int
	Column   int
	LineText string
}

// NewDiagnostic builds a diagnostic for pos in src
func NewDiagnostic(sev Severity, src string, pos Position, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Line:     pos.Line,
		Column:   pos.Column,
		LineText: lineAt(src, pos.Offset),
	}
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBold   = "\x1b[1m"
	ansiReset  = "\x1b[0m"
)

// Render formats the diagnostic with the offending line and a caret under
// the offending column. color adds ANSI escapes.
func (d Diagnostic) Render(name string, color bool) string {
	var b strings.Builder

	sev := d.Severity.String()
	if color {
		c := ansiRed
		if d.Severity == SeverityWarning {
			c = ansiYellow
		}
		sev = c + sev + ansiReset
	}
	if name != "" {
		fmt.Fprintf(&b, "%s:", name)
	}
	fmt.Fprintf(&b, "%d:%d: %s: %s\n", d.Line, d.Column, sev, d.Message)

	if d.LineText == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "    %s\n", strings.ReplaceAll(d.LineText, "\t", " "))

	col := d.Column - 1
	if col < 0 {
		col = 0
	}
	if col > len(d.LineText) {
		col = len(d.LineText)
	}
	caret := "^"
	if color {
		caret = ansiBold + caret + ansiReset
	}
	fmt.Fprintf(&b, "    %s%s\n", strings.Repeat(" ", col), caret)
	return b.String()
}

// SyntaxError is a fatal compile diagnostic
type SyntaxError struct {
	Diagnostic
	Cause error // resource sentinel behind the diagnostic, if any
}

func (e *SyntaxError) Error() string {
	return e.Diagnostic.String()
}

func (e *SyntaxError) Unwrap() error {
	return e.Cause
}
