package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

func cleanNumber(s string) string {
	return strings.ReplaceAll(s, "_", "")
}

func parseU32(n *Node) (uint32, error) {
	if n == nil || !n.IsAtom(token.Number) {
		return 0, fmt.Errorf("expected number")
	}
	v, err := strconv.ParseUint(cleanNumber(n.Tok.Value), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid u32 %q", n.Tok.Value)
	}
	return uint32(v), nil
}

// parseI32 accepts the signed and the unsigned range, as the text format
// does, and returns the two's complement bit pattern.
func parseI32(n *Node) (int32, error) {
	if n == nil || !n.IsAtom(token.Number) {
		return 0, fmt.Errorf("expected i32 literal")
	}
	v, err := strconv.ParseInt(cleanNumber(n.Tok.Value), 0, 64)
	if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
		return 0, fmt.Errorf("invalid i32 %q", n.Tok.Value)
	}
	return int32(uint32(v)), nil
}

func parseI64(n *Node) (int64, error) {
	if n == nil || !n.IsAtom(token.Number) {
		return 0, fmt.Errorf("expected i64 literal")
	}
	s := cleanNumber(n.Tok.Value)
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid i64 %q", n.Tok.Value)
	}
	return int64(u), nil
}

// parseFloat handles decimal and hex literals plus inf and nan forms.
func parseFloat(n *Node, bits int) (float64, error) {
	if n == nil || n.List {
		return 0, fmt.Errorf("expected f%d literal", bits)
	}
	s := n.Tok.Value
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimLeft(s, "+-")

	switch {
	case body == "inf":
		if neg {
			return math.Inf(-1), nil
		}
		return math.Inf(1), nil
	case body == "nan" || strings.HasPrefix(body, "nan:"):
		nan := math.NaN()
		if neg {
			nan = math.Copysign(nan, -1)
		}
		return nan, nil
	}
	if n.Tok.Type != token.Number {
		return 0, fmt.Errorf("expected f%d literal, got %s", bits, n.Describe())
	}
	s = cleanNumber(s)
	lower := strings.ToLower(body)
	if strings.HasPrefix(lower, "0x") && !strings.Contains(lower, "p") {
		s += "p0"
	}
	v, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid f%d %q", bits, n.Tok.Value)
	}
	return v, nil
}

func parseValType(n *Node) (wasm.ValType, error) {
	if n == nil || !n.IsAtom(token.Ident) {
		return 0, fmt.Errorf("expected value type")
	}
	switch n.Tok.Value {
	case "i32":
		return wasm.ValI32, nil
	case "i64":
		return wasm.ValI64, nil
	case "f32":
		return wasm.ValF32, nil
	case "f64":
		return wasm.ValF64, nil
	case "v128", "funcref", "externref", "anyref":
		return 0, fmt.Errorf("value type %s is not supported", n.Tok.Value)
	}
	return 0, fmt.Errorf("unknown value type %q", n.Tok.Value)
}

// DecodeString turns the raw text of a string literal into its bytes.
func DecodeString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("dangling escape")
		}
		e := s[i+1]
		switch {
		case e == 'n':
			out = append(out, '\n')
		case e == 't':
			out = append(out, '\t')
		case e == 'r':
			out = append(out, '\r')
		case e == '\\', e == '"', e == '\'':
			out = append(out, e)
		case e == 'u':
			end := strings.IndexByte(s[i:], '}')
			if i+2 >= len(s) || s[i+2] != '{' || end < 0 {
				return nil, fmt.Errorf("malformed unicode escape")
			}
			cp, err := strconv.ParseUint(cleanNumber(s[i+3:i+end]), 16, 32)
			if err != nil || !utf8.ValidRune(rune(cp)) {
				return nil, fmt.Errorf("invalid unicode escape %q", s[i:i+end+1])
			}
			out = utf8.AppendRune(out, rune(cp))
			i += end + 1
			continue
		case isHexDigit(e) && i+2 < len(s) && isHexDigit(s[i+2]):
			out = append(out, hexValue(e)<<4|hexValue(s[i+2]))
			i += 3
			continue
		default:
			return nil, fmt.Errorf("unknown escape \\%c", e)
		}
		i += 2
	}
	return out, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
