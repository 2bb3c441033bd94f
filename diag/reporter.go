package diag

import (
	"bytes"
	"fmt"
	"io"
)

// Reporter is a persistent diagnostic sink shared by successive compile
// runs. Every message is appended to one transcript buffer that is never
// truncated; Reset records the current end of that buffer so Output only
// returns what the next run appends.
//
// A Reporter is not safe for concurrent use.
type Reporter struct {
	echo    io.Writer
	buf     bytes.Buffer
	entries []Diagnostic
	counts  [3]int
	offset  int
}

// NewReporter creates a reporter. When echo is non-nil every transcript
// line is also written to it as it is reported.
func NewReporter(echo io.Writer) *Reporter {
	return &Reporter{echo: echo}
}

// Report records d and appends its line to the transcript.
func (r *Reporter) Report(d Diagnostic) {
	if d.Severity < Info || d.Severity > Error {
		d.Severity = Error
	}
	r.entries = append(r.entries, d)
	r.counts[d.Severity]++

	line := d.String() + "\n"
	r.buf.WriteString(line)
	if r.echo != nil {
		_, _ = io.WriteString(r.echo, line)
	}
}

func (r *Reporter) Errorf(pos Pos, format string, args ...any) {
	r.Report(Diagnostic{Severity: Error, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (r *Reporter) Warnf(pos Pos, format string, args ...any) {
	r.Report(Diagnostic{Severity: Warning, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (r *Reporter) Infof(pos Pos, format string, args ...any) {
	r.Report(Diagnostic{Severity: Info, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Reset zeroes the counters and entries and moves the transcript offset to
// the end of the buffer.
func (r *Reporter) Reset() {
	r.counts = [3]int{}
	r.entries = nil
	r.offset = r.buf.Len()
}

// Output returns the transcript text appended since the last Reset.
func (r *Reporter) Output() string {
	return string(r.buf.Bytes()[r.offset:])
}

// Offset is the transcript position recorded by the last Reset.
func (r *Reporter) Offset() int {
	return r.offset
}

func (r *Reporter) HasErrors() bool {
	return r.counts[Error] > 0
}

func (r *Reporter) ErrorCount() int {
	return r.counts[Error]
}

func (r *Reporter) WarningCount() int {
	return r.counts[Warning]
}

// Snapshot returns the diagnostics of the current scope.
func (r *Reporter) Snapshot() Diagnostics {
	entries := make([]Diagnostic, len(r.entries))
	copy(entries, r.entries)
	return Diagnostics{Entries: entries, Transcript: r.Output()}
}
