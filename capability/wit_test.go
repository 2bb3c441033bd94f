package capability

import (
	"testing"

	"github.com/wippyai/wasm-plugins/wasm"
)

func TestParseFuncRoundTrip(t *testing.T) {
	decls := []string{
		"run: func() -> s32",
		"start: func()",
		"alloc: func(size: u32) -> u32",
		"handle: func(request: string) -> u32",
		"pairs: func(xs: list<tuple<u8, string>>, o: option<f64>) -> result<u64, string>",
		"empty: func() -> result",
		"err-only: func() -> result<_, char>",
	}
	for _, d := range decls {
		f, err := ParseFunc(d)
		if err != nil {
			t.Fatalf("ParseFunc(%q): %v", d, err)
		}
		if got := f.String(); got != d {
			t.Errorf("String() = %q, want %q", got, d)
		}
	}
}

func TestParseFuncErrors(t *testing.T) {
	for _, d := range []string{
		"",
		"run",
		"run: fn()",
		"run: func(",
		"run: func(x u32)",
		"run: func() -> bogus",
		"run: func() -> list<>",
		"run: func() -> option<u8, u8>",
		"run: func() -> s32 trailing",
	} {
		if _, err := ParseFunc(d); err == nil {
			t.Errorf("ParseFunc(%q) succeeded", d)
		}
	}
}

func TestCoreType(t *testing.T) {
	tests := []struct {
		decl string
		want string
	}{
		{"run: func() -> s32", "() -> i32"},
		{"start: func()", "() -> ()"},
		{"alloc: func(size: u32) -> u32", "(i32) -> i32"},
		{"handle: func(request: string) -> u32", "(i32, i32) -> i32"},
		{"f: func(a: u64, b: f32, c: f64, d: bool) -> s64", "(i64, f32, f64, i32) -> i64"},
		{"f: func(o: option<u64>) -> f32", "(i32, i64) -> f32"},
		{"f: func(r: result<u32, f32>)", "(i32, i32) -> ()"},
		{"f: func(r: result<f32, f64>)", "(i32, i64) -> ()"},
		{"f: func() -> string", "() -> i32"},
		{"f: func() -> tuple<u8, u8>", "() -> i32"},
	}
	for _, tt := range tests {
		if got := MustParseFunc(tt.decl).CoreType().String(); got != tt.want {
			t.Errorf("%s: CoreType = %s, want %s", tt.decl, got, tt.want)
		}
	}
}

func TestCoreTypeSpillsParams(t *testing.T) {
	f := MustParseFunc("wide: func(a: string, b: string, c: string, d: string, e: string, f: string, g: string, h: string, i: u32)")
	got := f.CoreType()
	if !got.Equal(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}) {
		t.Errorf("CoreType = %s", got)
	}
}
