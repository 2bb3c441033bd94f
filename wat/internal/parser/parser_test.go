package parser

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

func read(t *testing.T, src string) []*Node {
	t.Helper()
	toks, errs := token.Tokenize(src)
	if len(errs) > 0 {
		t.Fatalf("tokenize: %v", errs[0])
	}
	nodes, rerrs := Read(toks)
	if len(rerrs) > 0 {
		t.Fatalf("read: %v", rerrs[0])
	}
	return nodes
}

func parse(t *testing.T, src string) ([]*ast.Module, *diag.Reporter) {
	t.Helper()
	r := diag.NewReporter(nil)
	return New("t.wat", r).Parse(read(t, src)), r
}

func TestRead(t *testing.T) {
	nodes := read(t, `(module $m (@custom "x" "y") (func))`)
	if len(nodes) != 1 {
		t.Fatalf("got %d top-level nodes", len(nodes))
	}
	m := nodes[0]
	if !m.Is("module") || len(m.Children) != 4 {
		t.Fatalf("module node = %s with %d children", m.Describe(), len(m.Children))
	}
	if !m.Children[1].IsID() {
		t.Errorf("expected $m identifier, got %s", m.Children[1].Describe())
	}
	if m.Children[2].Annot != "custom" || m.Children[2].Head() != "" {
		t.Errorf("annotation node = %+v", m.Children[2])
	}
	if got := m.Children[3].Describe(); got != "(func ...)" {
		t.Errorf("Describe = %q", got)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		src  string
		msg  string
		line int
		col  int
	}{
		{"(module))", "unexpected ')'", 1, 9},
		{"(module\n  (func", "unclosed '(': unexpected end of input", 1, 1},
	}
	for _, tt := range tests {
		toks, _ := token.Tokenize(tt.src)
		_, errs := Read(toks)
		if len(errs) != 1 {
			t.Fatalf("%q: got %d errors", tt.src, len(errs))
		}
		if errs[0].Msg != tt.msg || errs[0].Pos.Line != tt.line || errs[0].Pos.Col != tt.col {
			t.Errorf("%q: got %v", tt.src, errs[0])
		}
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{`plain`, "plain", false},
		{`a\nb\tc`, "a\nb\tc", false},
		{`\00\ff`, "\x00\xff", false},
		{`\u{48}\u{1F600}`, "H\U0001F600", false},
		{`\"q\'`, `"q'`, false},
		{`\q`, "", true},
		{`\u{zz}`, "", true},
		{`trail\`, "", true},
	}
	for _, tt := range tests {
		got, err := DecodeString(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("DecodeString(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("DecodeString(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("DecodeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func atom(typ token.Type, v string) *Node {
	return &Node{Tok: token.Token{Type: typ, Value: v}}
}

func TestParseNumbers(t *testing.T) {
	if v, err := parseI32(atom(token.Number, "0xFFFF_FFFF")); err != nil || v != -1 {
		t.Errorf("parseI32(0xFFFF_FFFF) = %d, %v", v, err)
	}
	if _, err := parseI32(atom(token.Number, "0x1_0000_0000")); err == nil {
		t.Error("parseI32 accepted a value above 32 bits")
	}
	if v, err := parseI64(atom(token.Number, "-9223372036854775808")); err != nil || v != math.MinInt64 {
		t.Errorf("parseI64(min) = %d, %v", v, err)
	}
	if v, err := parseFloat(atom(token.Number, "0x1.8"), 64); err != nil || v != 1.5 {
		t.Errorf("parseFloat(0x1.8) = %v, %v", v, err)
	}
	if v, err := parseFloat(atom(token.Ident, "-inf"), 32); err != nil || !math.IsInf(v, -1) {
		t.Errorf("parseFloat(-inf) = %v, %v", v, err)
	}
	if v, err := parseFloat(atom(token.Ident, "nan:0x200000"), 32); err != nil || !math.IsNaN(v) {
		t.Errorf("parseFloat(nan:0x200000) = %v, %v", v, err)
	}
	if _, err := parseValType(atom(token.Ident, "v128")); err == nil {
		t.Error("parseValType accepted v128")
	}
}

func TestParseIndexSpaces(t *testing.T) {
	mods, r := parse(t, `(module $m
		(import "env" "log" (func $log (param i32)))
		(global $g (import "env" "g") i32)
		(func $a (call $log (global.get $g)))
		(func $b (call $a)))`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", r.Output())
	}
	m := mods[0]
	if m.Name != "m" {
		t.Errorf("name = %q", m.Name)
	}
	want := []ast.NameAssoc{{Name: "log", Index: 0}, {Name: "a", Index: 1}, {Name: "b", Index: 2}}
	if diff := cmp.Diff(want, m.FuncNames); diff != "" {
		t.Errorf("func names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{1, 1}, m.Funcs); diff != "" {
		t.Errorf("defined func types mismatch (-want +got):\n%s", diff)
	}
	ft, ok := m.FuncType(1)
	if !ok || len(ft.Params) != 0 {
		t.Errorf("FuncType(1) = %v, %v", ft, ok)
	}
	gt, ok := m.GlobalType(0)
	if !ok || gt.ValType != wasm.ValI32 || gt.Mutable {
		t.Errorf("GlobalType(0) = %v, %v", gt, ok)
	}
}

func TestParseTypeUse(t *testing.T) {
	_, r := parse(t, `(module
		(type $t (func (param i32) (result i32)))
		(func (type $t) (param i64) (result i32) (i32.const 0)))`)
	errs := r.Snapshot().Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors:\n%s", len(errs), r.Output())
	}
	if want := "does not match type"; !strings.Contains(errs[0].Message, want) {
		t.Errorf("error = %q", errs[0].Message)
	}
}

func TestParseOutsideModule(t *testing.T) {
	mods, r := parse(t, `(@meta "x") (module $a) (func)`)
	if len(mods) != 1 {
		t.Fatalf("got %d modules", len(mods))
	}
	d := r.Snapshot()
	if len(d.Warnings()) != 1 || len(d.Errors()) != 1 {
		t.Errorf("diagnostics:\n%s", r.Output())
	}
}

func TestParseBinaryModule(t *testing.T) {
	mods, r := parse(t, `(module binary "\00asm")`)
	if len(mods) != 0 || !r.HasErrors() {
		t.Errorf("binary module accepted")
	}
}
