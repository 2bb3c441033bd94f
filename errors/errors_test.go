package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/wasm-plugins/diag"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "segment not found",
			err:      SegmentNotFound("a.b.Hello", "b", []string{"a"}),
			contains: []string{"[resolve]", "segment_not_found", `"a.b.Hello"`, " at a", "b is unknown"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLoad,
				Kind:  KindInvalidData,
			},
			contains: []string{"[load]", "invalid_data"},
		},
		{
			name:     "error with cause",
			err:      PayloadUnreadable("x.Y", errors.New("disk gone")),
			contains: []string{"[resolve]", "payload_unreadable", "caused by", "disk gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindInvalidData, cause, "compile payload")

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
}

func TestError_IsSentinel(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		want     bool
	}{
		{SegmentNotFound("a.B", "a", nil), ErrSegmentNotFound, true},
		{SegmentNotFound("a.B", "a", nil), ErrNotALeaf, false},
		{NotALeaf("a.B"), ErrNotALeaf, true},
		{PayloadUnreadable("a.B", nil), ErrPayloadUnreadable, true},
		{UnsupportedSource("/tmp/x", nil), ErrUnsupportedSource, true},
		{Busy(), ErrBusy, true},
		{fmt.Errorf("wrapped: %w", NotALeaf("a")), ErrNotALeaf, true},
	}
	for _, tt := range tests {
		if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
			t.Errorf("Is(%v, %v) = %v, want %v", tt.err, tt.sentinel, got, tt.want)
		}
	}
}

func TestSegmentNotFoundCopiesPath(t *testing.T) {
	path := []string{"a", "b"}
	err := SegmentNotFound("a.b.c.D", "c", path)
	path[0] = "mutated"
	if err.Path[0] != "a" {
		t.Error("SegmentNotFound must not alias the caller's slice")
	}
	if err.Segment != "c" {
		t.Errorf("Segment = %q", err.Segment)
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseResolve, KindSegmentNotFound).
		Name("a.b.C").
		Segment("b").
		Path("a").
		Detail("segment %s missing", "b").
		Cause(errors.New("boom")).
		Build()

	if err.Name != "a.b.C" || err.Segment != "b" || len(err.Path) != 1 {
		t.Errorf("unexpected fields: %+v", err)
	}
	if err.Detail != "segment b missing" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, ErrSegmentNotFound) {
		t.Error("built error should match sentinel")
	}
}

func TestCompileError(t *testing.T) {
	ce := &CompileError{
		Units: []string{"a.wat"},
		Diagnostics: diag.Diagnostics{
			Entries: []diag.Diagnostic{
				{Severity: diag.Error, Pos: diag.Pos{File: "a.wat", Line: 2, Col: 3}, Message: "unexpected token"},
				{Severity: diag.Error, Message: "second"},
				{Severity: diag.Warning, Message: "w"},
			},
		},
	}
	msg := ce.Error()
	for _, s := range []string{"compile_failed", "2 error(s)", "a.wat:2:3", "unexpected token", "and 1 more"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q does not contain %q", msg, s)
		}
	}

	var err error = fmt.Errorf("load plugin: %w", ce)
	if !Is(err, ErrCompileFailed) {
		t.Error("CompileError should match ErrCompileFailed")
	}
	var target *CompileError
	if !As(err, &target) || target != ce {
		t.Error("As did not recover the CompileError")
	}
}

func TestJoin(t *testing.T) {
	err := Join(NotALeaf("a"), Busy())
	if !Is(err, ErrBusy) || !Is(err, ErrNotALeaf) {
		t.Error("joined error should match both sentinels")
	}
}
