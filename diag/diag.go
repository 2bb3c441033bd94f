package diag

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity ranks a diagnostic message.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "severity(" + strconv.Itoa(int(s)) + ")"
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Pos locates a diagnostic in a source unit. Line and Col are 1-based;
// zero means unknown.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	var b strings.Builder
	b.WriteString(p.File)
	if p.Line > 0 {
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(p.Line))
		if p.Col > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(p.Col))
		}
	}
	return b.String()
}

// Diagnostic is one compiler message.
type Diagnostic struct {
	Message  string
	Pos      Pos
	Severity Severity
}

func (d Diagnostic) String() string {
	pos := d.Pos.String()
	if pos == "" {
		return d.Severity.String() + ": " + d.Message
	}
	return pos + ": " + d.Severity.String() + ": " + d.Message
}

// Diagnostics is the outcome of one compilation: the ordered messages and
// the raw transcript the reporter produced for them.
type Diagnostics struct {
	Transcript string
	Entries    []Diagnostic
}

// HasErrors reports whether any entry has error severity.
func (d Diagnostics) HasErrors() bool {
	return d.Count(Error) > 0
}

// Count returns the number of entries with the given severity.
func (d Diagnostics) Count(sev Severity) int {
	n := 0
	for _, e := range d.Entries {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// Errors returns the error-severity entries.
func (d Diagnostics) Errors() []Diagnostic {
	return d.filter(Error)
}

// Warnings returns the warning-severity entries.
func (d Diagnostics) Warnings() []Diagnostic {
	return d.filter(Warning)
}

// Len returns the number of entries.
func (d Diagnostics) Len() int {
	return len(d.Entries)
}

func (d Diagnostics) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, e := range d.Entries {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}
