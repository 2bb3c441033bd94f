package token

import (
	"fmt"
	"strings"
	"unicode"
)

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	String
	Number
	Annotation // @name following '('
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Annotation:
		return "annotation"
	}
	return "unknown"
}

// Pos is a 1-based line and column. Columns count runes.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

type Token struct {
	Value string
	Type  Type
	Pos   Pos
}

// Error is a lexical problem such as an unterminated string.
type Error struct {
	Msg string
	Pos Pos
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

type lexer struct {
	runes  []rune
	tokens []Token
	errs   []*Error
	i      int
	line   int
	col    int
}

func (l *lexer) pos() Pos {
	return Pos{Line: l.line, Col: l.col}
}

func (l *lexer) peekAt(off int) rune {
	if l.i+off >= len(l.runes) {
		return 0
	}
	return l.runes[l.i+off]
}

// advance moves one rune forward, keeping line and column current.
func (l *lexer) advance() {
	if l.i >= len(l.runes) {
		return
	}
	if l.runes[l.i] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.i++
}

func (l *lexer) emit(typ Type, value string, pos Pos) {
	l.tokens = append(l.tokens, Token{Value: value, Type: typ, Pos: pos})
}

func (l *lexer) fail(pos Pos, format string, args ...any) {
	l.errs = append(l.errs, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Tokenize splits WAT source into tokens. Lexical errors are collected and
// returned alongside whatever tokens could be produced.
func Tokenize(input string) ([]Token, []*Error) {
	l := &lexer{runes: []rune(input), line: 1, col: 1}

	for l.i < len(l.runes) {
		r := l.runes[l.i]
		start := l.pos()

		switch {
		case unicode.IsSpace(r):
			l.advance()

		case r == ';' && l.peekAt(1) == ';':
			for l.i < len(l.runes) && l.runes[l.i] != '\n' {
				l.advance()
			}

		case r == '(' && l.peekAt(1) == ';':
			l.blockComment(start)

		case r == '(':
			l.advance()
			l.emit(LParen, "(", start)
			if l.peekAt(0) == '@' {
				annStart := l.pos()
				l.advance()
				name := l.word()
				if name == "" {
					l.fail(annStart, "empty annotation name")
				}
				l.emit(Annotation, name, annStart)
			}

		case r == ')':
			l.advance()
			l.emit(RParen, ")", start)

		case r == '"':
			l.str(start)

		case r == '-' || r == '+' || unicode.IsDigit(r):
			l.number(start)

		case isIdentStart(r):
			l.emit(Ident, l.word(), start)

		default:
			l.fail(start, "unexpected character %q", r)
			l.advance()
		}
	}

	return l.tokens, l.errs
}

func (l *lexer) blockComment(start Pos) {
	depth := 1
	l.advance()
	l.advance()
	for l.i < len(l.runes) && depth > 0 {
		switch {
		case l.runes[l.i] == '(' && l.peekAt(1) == ';':
			depth++
			l.advance()
		case l.runes[l.i] == ';' && l.peekAt(1) == ')':
			depth--
			l.advance()
		}
		l.advance()
	}
	if depth > 0 {
		l.fail(start, "unterminated block comment")
	}
}

func (l *lexer) str(start Pos) {
	l.advance()
	var b strings.Builder
	for l.i < len(l.runes) && l.runes[l.i] != '"' {
		if l.runes[l.i] == '\n' {
			break
		}
		if l.runes[l.i] == '\\' && l.i+1 < len(l.runes) {
			b.WriteRune(l.runes[l.i])
			l.advance()
		}
		b.WriteRune(l.runes[l.i])
		l.advance()
	}
	if l.i >= len(l.runes) || l.runes[l.i] != '"' {
		l.fail(start, "unterminated string literal")
		l.emit(String, b.String(), start)
		return
	}
	l.advance()
	l.emit(String, b.String(), start)
}

func (l *lexer) number(start Pos) {
	begin := l.i
	r := l.runes[l.i]
	// Signed special floats: -inf, +nan, -nan:0x...
	if r == '-' || r == '+' {
		rest := string(l.runes[l.i+1 : min(l.i+4, len(l.runes))])
		if strings.HasPrefix(rest, "inf") || strings.HasPrefix(rest, "nan") {
			l.advance()
			for l.i < len(l.runes) && (unicode.IsLetter(l.runes[l.i]) || unicode.IsDigit(l.runes[l.i]) || l.runes[l.i] == ':') {
				l.advance()
			}
			l.emit(Ident, string(l.runes[begin:l.i]), start)
			return
		}
		l.advance()
	}
	for l.i < len(l.runes) {
		c := l.runes[l.i]
		exp := false
		if l.i > begin {
			prev := l.runes[l.i-1]
			exp = prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P'
		}
		if unicode.IsDigit(c) || c == '.' || c == '_' || c == 'x' || c == 'X' ||
			c == 'p' || c == 'P' || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
			((c == '-' || c == '+') && exp) {
			l.advance()
			continue
		}
		break
	}
	l.emit(Number, string(l.runes[begin:l.i]), start)
}

// word consumes an identifier-like run: keywords, $names, offset=/align=.
func (l *lexer) word() string {
	begin := l.i
	for l.i < len(l.runes) && isIdentChar(l.runes[l.i]) {
		l.advance()
	}
	return string(l.runes[begin:l.i])
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || r == '.' || unicode.IsLetter(r)
}

func isIdentChar(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '_', '.', '$', '-', ':', '=', '/', '@', '!', '#', '%', '&', '*', '+', '<', '>', '?', '^', '~', '|', '\'', '`':
		return true
	}
	return false
}
