package token

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tok(v string, typ Type, line, col int) Token {
	return Token{Value: v, Type: typ, Pos: Pos{Line: line, Col: col}}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{"empty", "", nil},
		{"parens", "()", []Token{tok("(", LParen, 1, 1), tok(")", RParen, 1, 2)}},
		{
			"module",
			"(module $a.b.C)",
			[]Token{tok("(", LParen, 1, 1), tok("module", Ident, 1, 2), tok("$a.b.C", Ident, 1, 9), tok(")", RParen, 1, 15)},
		},
		{
			"newlines",
			"(\n  module\n)",
			[]Token{tok("(", LParen, 1, 1), tok("module", Ident, 2, 3), tok(")", RParen, 3, 1)},
		},
		{"number", "42", []Token{tok("42", Number, 1, 1)}},
		{"negative", "-42", []Token{tok("-42", Number, 1, 1)}},
		{"hex", "0xFF", []Token{tok("0xFF", Number, 1, 1)}},
		{"float_exp", "1.5e-3", []Token{tok("1.5e-3", Number, 1, 1)}},
		{"neg_inf", "-inf", []Token{tok("-inf", Ident, 1, 1)}},
		{"memarg", "offset=8", []Token{tok("offset=8", Ident, 1, 1)}},
		{"string", `"hi\n"`, []Token{tok(`hi\n`, String, 1, 1)}},
		{"escaped_quote", `"a\"b"`, []Token{tok(`a\"b`, String, 1, 1)}},
		{"line_comment", ";; note\n(module)", []Token{tok("(", LParen, 2, 1), tok("module", Ident, 2, 2), tok(")", RParen, 2, 8)}},
		{"block_comment", "(; a (; nested ;) ;)42", []Token{tok("42", Number, 1, 21)}},
		{
			"annotation",
			`(@custom "plugin:export" "hello")`,
			[]Token{
				tok("(", LParen, 1, 1),
				tok("custom", Annotation, 1, 2),
				tok("plugin:export", String, 1, 10),
				tok("hello", String, 1, 26),
				tok(")", RParen, 1, 33),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := Tokenize(tt.input)
			if len(errs) > 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
		wantPos Pos
	}{
		{"unterminated_string", "(module\n  \"abc", "unterminated string", Pos{2, 3}},
		{"unterminated_comment", "(; open", "unterminated block comment", Pos{1, 1}},
		{"stray_character", "(module {)", "unexpected character", Pos{1, 9}},
		{"empty_annotation", "(@ x)", "empty annotation", Pos{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := Tokenize(tt.input)
			if len(errs) == 0 {
				t.Fatal("expected a lexical error")
			}
			if !strings.Contains(errs[0].Error(), tt.wantMsg) {
				t.Errorf("error %q missing %q", errs[0], tt.wantMsg)
			}
			if errs[0].Pos != tt.wantPos {
				t.Errorf("pos = %v, want %v", errs[0].Pos, tt.wantPos)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	for typ, want := range map[Type]string{
		LParen:     "'('",
		RParen:     "')'",
		Ident:      "identifier",
		String:     "string",
		Number:     "number",
		Annotation: "annotation",
		Type(99):   "unknown",
	} {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(typ), got, want)
		}
	}
}
