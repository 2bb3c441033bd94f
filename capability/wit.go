package capability

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-plugins/wasm"
)

// Flattening limits of the canonical ABI for lifted functions.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Param is a named function parameter.
type Param struct {
	Name string
	Type wit.Type
}

// Func is a WIT function declaration such as
//
//	handle: func(request: string) -> u32
type Func struct {
	Name   string
	Params []Param
	Result wit.Type
}

// CoreType flattens the declaration to the core signature a guest export
// must have.
func (f Func) CoreType() wasm.FuncType {
	var ft wasm.FuncType
	for _, p := range f.Params {
		ft.Params = append(ft.Params, Flatten(p.Type)...)
	}
	if len(ft.Params) > MaxFlatParams {
		ft.Params = []wasm.ValType{wasm.ValI32}
	}
	if f.Result != nil {
		ft.Results = Flatten(f.Result)
		if len(ft.Results) > MaxFlatResults {
			ft.Results = []wasm.ValType{wasm.ValI32}
		}
	}
	return ft
}

func (f Func) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + TypeString(p.Type)
	}
	s := f.Name + ": func(" + strings.Join(params, ", ") + ")"
	if f.Result != nil {
		s += " -> " + TypeString(f.Result)
	}
	return s
}

// Flatten lowers a WIT type to core value types.
func Flatten(t wit.Type) []wasm.ValType {
	switch v := t.(type) {
	case nil:
		return nil
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []wasm.ValType{wasm.ValI32}
	case wit.U64, wit.S64:
		return []wasm.ValType{wasm.ValI64}
	case wit.F32:
		return []wasm.ValType{wasm.ValF32}
	case wit.F64:
		return []wasm.ValType{wasm.ValF64}
	case wit.String:
		return []wasm.ValType{wasm.ValI32, wasm.ValI32}
	case *wit.TypeDef:
		return flattenKind(v.Kind)
	}
	return []wasm.ValType{wasm.ValI32}
}

func flattenKind(k wit.TypeDefKind) []wasm.ValType {
	switch v := k.(type) {
	case *wit.List:
		return []wasm.ValType{wasm.ValI32, wasm.ValI32}
	case *wit.Option:
		return append([]wasm.ValType{wasm.ValI32}, Flatten(v.Type)...)
	case *wit.Tuple:
		var out []wasm.ValType
		for _, t := range v.Types {
			out = append(out, Flatten(t)...)
		}
		return out
	case *wit.Result:
		payload := Flatten(v.OK)
		for i, t := range Flatten(v.Err) {
			if i < len(payload) {
				payload[i] = join(payload[i], t)
			} else {
				payload = append(payload, t)
			}
		}
		return append([]wasm.ValType{wasm.ValI32}, payload...)
	}
	return []wasm.ValType{wasm.ValI32}
}

func join(a, b wasm.ValType) wasm.ValType {
	switch {
	case a == b:
		return a
	case (a == wasm.ValI32 && b == wasm.ValF32) || (a == wasm.ValF32 && b == wasm.ValI32):
		return wasm.ValI32
	}
	return wasm.ValI64
}

// TypeString renders t in WIT syntax.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + TypeString(k.Type) + ">"
		case *wit.Option:
			return "option<" + TypeString(k.Type) + ">"
		case *wit.Tuple:
			parts := make([]string, len(k.Types))
			for i, e := range k.Types {
				parts[i] = TypeString(e)
			}
			return "tuple<" + strings.Join(parts, ", ") + ">"
		case *wit.Result:
			switch {
			case k.OK == nil && k.Err == nil:
				return "result"
			case k.Err == nil:
				return "result<" + TypeString(k.OK) + ">"
			case k.OK == nil:
				return "result<_, " + TypeString(k.Err) + ">"
			}
			return "result<" + TypeString(k.OK) + ", " + TypeString(k.Err) + ">"
		}
		if v.Name != nil {
			return *v.Name
		}
	}
	return fmt.Sprintf("%T", t)
}

// ParseFunc parses "name: func(param: type, ...) -> type".
func ParseFunc(decl string) (Func, error) {
	p := &witParser{s: decl}
	f, err := p.function()
	if err != nil {
		return Func{}, fmt.Errorf("parse %q: %w", decl, err)
	}
	return f, nil
}

// MustParseFunc is ParseFunc for declarations known to be valid.
func MustParseFunc(decl string) Func {
	f, err := ParseFunc(decl)
	if err != nil {
		panic(err)
	}
	return f
}

type witParser struct {
	s string
	i int
}

func (p *witParser) skipSpace() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t' || p.s[p.i] == '\n') {
		p.i++
	}
}

func (p *witParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.s[p.i:], tok) {
		p.i += len(tok)
		return true
	}
	return false
}

func (p *witParser) expect(tok string) error {
	if !p.accept(tok) {
		return fmt.Errorf("expected %q at offset %d", tok, p.i)
	}
	return nil
}

// ident reads a kebab-case identifier.
func (p *witParser) ident() (string, error) {
	p.skipSpace()
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.i++
			continue
		}
		break
	}
	if p.i == start {
		return "", fmt.Errorf("expected identifier at offset %d", start)
	}
	return p.s[start:p.i], nil
}

func (p *witParser) function() (Func, error) {
	var f Func
	name, err := p.ident()
	if err != nil {
		return f, err
	}
	f.Name = name
	if err := p.expect(":"); err != nil {
		return f, err
	}
	if kw, err := p.ident(); err != nil || kw != "func" {
		return f, fmt.Errorf("expected func")
	}
	if err := p.expect("("); err != nil {
		return f, err
	}
	for !p.accept(")") {
		if len(f.Params) > 0 {
			if err := p.expect(","); err != nil {
				return f, err
			}
		}
		pname, err := p.ident()
		if err != nil {
			return f, err
		}
		if err := p.expect(":"); err != nil {
			return f, err
		}
		t, err := p.typ()
		if err != nil {
			return f, err
		}
		f.Params = append(f.Params, Param{Name: pname, Type: t})
	}
	if p.accept("->") {
		t, err := p.typ()
		if err != nil {
			return f, err
		}
		f.Result = t
	}
	p.skipSpace()
	if p.i != len(p.s) {
		return f, fmt.Errorf("unexpected %q", p.s[p.i:])
	}
	return f, nil
}

func (p *witParser) typ() (wit.Type, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	switch name {
	case "bool":
		return wit.Bool{}, nil
	case "u8":
		return wit.U8{}, nil
	case "s8":
		return wit.S8{}, nil
	case "u16":
		return wit.U16{}, nil
	case "s16":
		return wit.S16{}, nil
	case "u32":
		return wit.U32{}, nil
	case "s32":
		return wit.S32{}, nil
	case "u64":
		return wit.U64{}, nil
	case "s64":
		return wit.S64{}, nil
	case "f32":
		return wit.F32{}, nil
	case "f64":
		return wit.F64{}, nil
	case "char":
		return wit.Char{}, nil
	case "string":
		return wit.String{}, nil
	case "list", "option":
		args, err := p.typeArgs(1, 1)
		if err != nil {
			return nil, err
		}
		if name == "list" {
			return &wit.TypeDef{Kind: &wit.List{Type: args[0]}}, nil
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: args[0]}}, nil
	case "tuple":
		args, err := p.typeArgs(1, -1)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.Tuple{Types: args}}, nil
	case "result":
		r := &wit.Result{}
		if p.accept("<") {
			if !p.accept("_") {
				ok, err := p.typ()
				if err != nil {
					return nil, err
				}
				r.OK = ok
			}
			if p.accept(",") {
				e, err := p.typ()
				if err != nil {
					return nil, err
				}
				r.Err = e
			}
			if err := p.expect(">"); err != nil {
				return nil, err
			}
		}
		return &wit.TypeDef{Kind: r}, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// typeArgs parses <T, ...> with between lo and hi arguments; hi < 0 means
// unbounded.
func (p *witParser) typeArgs(lo, hi int) ([]wit.Type, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	var args []wit.Type
	for !p.accept(">") {
		if len(args) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		t, err := p.typ()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return nil, fmt.Errorf("wrong number of type arguments")
	}
	return args, nil
}
