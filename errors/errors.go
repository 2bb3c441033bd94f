package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wippyai/wasm-plugins/diag"
)

// Phase indicates where in the plugin pipeline the error occurred
type Phase string

const (
	PhaseSource   Phase = "source"   // source gathering
	PhaseCompile  Phase = "compile"  // WAT compilation and batch checks
	PhaseResolve  Phase = "resolve"  // qualified name resolution
	PhaseLoad     Phase = "load"     // artifact materialization
	PhaseScan     Phase = "scan"     // capability scanning
	PhaseHost     Phase = "host"     // host function registration
	PhaseRuntime  Phase = "runtime"  // instantiation and calls
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseArtifact Phase = "artifact" // namespace construction
)

// Kind categorizes the error
type Kind string

const (
	KindSegmentNotFound   Kind = "segment_not_found"
	KindNotALeaf          Kind = "not_a_leaf"
	KindPayloadUnreadable Kind = "payload_unreadable"
	KindUnsupportedSource Kind = "unsupported_source"
	KindCompileFailed     Kind = "compile_failed"
	KindBusy              Kind = "busy"
	KindCycle             Kind = "cycle"
	KindInvalidName       Kind = "invalid_name"
	KindConflict          Kind = "conflict"
	KindDuplicate         Kind = "duplicate"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindTypeMismatch      Kind = "type_mismatch"
	KindInstantiation     Kind = "instantiation"
	KindTrap              Kind = "trap"
	KindClosed            Kind = "closed"
	KindCancelled         Kind = "cancelled"
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Name    string   // qualified name the operation was about
	Segment string   // offending name segment
	Detail  string   // human-readable detail
	Path    []string // segments walked before the failure
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%q", e.Name))
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by phase and kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks. Matching is by phase and kind only.
var (
	ErrSegmentNotFound   = &Error{Phase: PhaseResolve, Kind: KindSegmentNotFound}
	ErrNotALeaf          = &Error{Phase: PhaseResolve, Kind: KindNotALeaf}
	ErrPayloadUnreadable = &Error{Phase: PhaseResolve, Kind: KindPayloadUnreadable}
	ErrUnsupportedSource = &Error{Phase: PhaseSource, Kind: KindUnsupportedSource}
	ErrCompileFailed     = &Error{Phase: PhaseCompile, Kind: KindCompileFailed}
	ErrBusy              = &Error{Phase: PhaseCompile, Kind: KindBusy}
	ErrClosed            = &Error{Phase: PhaseRuntime, Kind: KindClosed}
	ErrCancelled         = &Error{Phase: PhaseCompile, Kind: KindCancelled}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Name sets the qualified name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Segment sets the offending segment
func (b *Builder) Segment(seg string) *Builder {
	b.err.Segment = seg
	return b
}

// Path sets the walked path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Resolution errors

// SegmentNotFound reports a missing name segment. pathSoFar holds the
// segments that did resolve before it.
func SegmentNotFound(name, segment string, pathSoFar []string) *Error {
	return &Error{
		Phase:   PhaseResolve,
		Kind:    KindSegmentNotFound,
		Name:    name,
		Segment: segment,
		Path:    append([]string(nil), pathSoFar...),
		Detail:  fmt.Sprintf("%s is unknown", segment),
	}
}

// NotALeaf reports a name that resolves to a directory.
func NotALeaf(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotALeaf,
		Name:   name,
		Detail: "resolves to a directory, not a loadable unit",
	}
}

// PayloadUnreadable reports a leaf whose bytes could not be read.
func PayloadUnreadable(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindPayloadUnreadable,
		Name:   name,
		Detail: "cannot read compiled payload",
		Cause:  cause,
	}
}

// InvalidName reports a malformed qualified name.
func InvalidName(phase Phase, name, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidName,
		Name:   name,
		Detail: detail,
	}
}

// UnsupportedSource reports a source location that is neither a file nor a
// directory of source units.
func UnsupportedSource(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseSource,
		Kind:   KindUnsupportedSource,
		Name:   path,
		Detail: "not a source file or a directory of source files",
		Cause:  cause,
	}
}

// Busy reports a compile rejected because another one is running.
func Busy() *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindBusy,
		Detail: "another compilation is in progress",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Name:   name,
		Detail: fmt.Sprintf("%s not found", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Name:   name,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// CompileError is returned when a compile run produced at least one
// error-severity diagnostic. It carries the complete diagnostics of the run.
type CompileError struct {
	Units       []string
	Diagnostics diag.Diagnostics
}

func (e *CompileError) Error() string {
	var b strings.Builder
	n := e.Diagnostics.Count(diag.Error)
	b.WriteString(fmt.Sprintf("[%s] %s: %d error(s)", PhaseCompile, KindCompileFailed, n))
	if len(e.Units) > 0 {
		b.WriteString(" in ")
		b.WriteString(strings.Join(e.Units, ", "))
	}
	if errs := e.Diagnostics.Errors(); len(errs) > 0 {
		b.WriteString(": ")
		b.WriteString(errs[0].String())
		if len(errs) > 1 {
			b.WriteString(fmt.Sprintf(" (and %d more)", len(errs)-1))
		}
	}
	return b.String()
}

// Is matches another *CompileError or the ErrCompileFailed sentinel.
func (e *CompileError) Is(target error) bool {
	switch t := target.(type) {
	case *CompileError:
		return true
	case *Error:
		return t.Phase == PhaseCompile && t.Kind == KindCompileFailed
	}
	return false
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join is errors.Join from the standard library.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
