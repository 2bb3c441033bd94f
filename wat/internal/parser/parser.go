package parser

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

// fieldError aborts the module field being parsed. The parser reports it
// and resumes with the next field.
type fieldError struct {
	msg string
	pos token.Pos
}

func (e *fieldError) Error() string {
	return e.pos.String() + ": " + e.msg
}

func errorf(pos token.Pos, format string, args ...any) error {
	return &fieldError{pos: pos, msg: fmt.Sprintf(format, args...)}
}

// Parser turns the list structure of one source unit into modules,
// reporting every problem to its sink.
type Parser struct {
	sink diag.Sink
	file string
}

func New(file string, sink diag.Sink) *Parser {
	return &Parser{file: file, sink: sink}
}

func (p *Parser) pos(pos token.Pos) diag.Pos {
	return diag.Pos{File: p.file, Line: pos.Line, Col: pos.Col}
}

func (p *Parser) report(sev diag.Severity, pos token.Pos, format string, args ...any) {
	p.sink.Report(diag.Diagnostic{Severity: sev, Pos: p.pos(pos), Message: fmt.Sprintf(format, args...)})
}

// reportErr reports err, using its position when it carries one.
func (p *Parser) reportErr(fallback token.Pos, err error) {
	if fe, ok := err.(*fieldError); ok {
		p.report(diag.Error, fe.pos, "%s", fe.msg)
		return
	}
	p.report(diag.Error, fallback, "%s", err)
}

// Parse returns the modules of a unit that parsed without errors. A unit
// either consists of (module ...) forms or is itself the fields of one
// implicit module.
func (p *Parser) Parse(nodes []*Node) []*ast.Module {
	if len(nodes) == 0 {
		return nil
	}

	explicit := false
	for _, n := range nodes {
		if n.Is("module") {
			explicit = true
			break
		}
	}
	if !explicit {
		if m := p.parseModule(nodes[0].Pos(), "", nodes); m != nil {
			return []*ast.Module{m}
		}
		return nil
	}

	var mods []*ast.Module
	for _, n := range nodes {
		switch {
		case n.Is("module"):
			if m := p.moduleForm(n); m != nil {
				mods = append(mods, m)
			}
		case n.Annot != "":
			p.report(diag.Warning, n.Pos(), "annotation @%s outside a module is ignored", n.Annot)
		default:
			p.report(diag.Error, n.Pos(), "unexpected %s outside a module", n.Describe())
		}
	}
	return mods
}

func (p *Parser) moduleForm(n *Node) *ast.Module {
	c := newCursor(n.Children[1:])
	id := c.optID()
	if next := c.peek(); next != nil && next.IsAtom(token.Ident) && (next.Tok.Value == "binary" || next.Tok.Value == "quote") {
		p.report(diag.Error, next.Pos(), "%s modules are not supported", next.Tok.Value)
		return nil
	}
	return p.parseModule(n.Pos(), strings.TrimPrefix(id, "$"), c.nodes[c.i:])
}

// parseModule runs the three passes over the fields of one module: named
// types, index spaces, then full field parsing.
func (p *Parser) parseModule(pos token.Pos, name string, fields []*Node) *ast.Module {
	m := &moduleParser{
		Parser:  p,
		mod:     &ast.Module{Name: name, Pos: pos},
		types:   map[string]uint32{},
		funcs:   map[string]uint32{},
		globals: map[string]uint32{},
		mems:    map[string]uint32{},
		exports: map[string]bool{},
	}

	for _, f := range fields {
		if f.Is("type") {
			m.guard(f, m.typeField)
		}
	}
	m.declare(fields)
	for _, f := range fields {
		if f.Is("type") {
			continue
		}
		m.guard(f, m.field)
	}

	if m.failed {
		return nil
	}
	return m.mod
}

type moduleParser struct {
	*Parser
	mod     *ast.Module
	types   map[string]uint32
	funcs   map[string]uint32
	globals map[string]uint32
	mems    map[string]uint32

	nFuncs, nGlobals, nMems uint32
	exports                 map[string]bool
	failed                  bool

	fn *funcState
}

func (m *moduleParser) guard(f *Node, parse func(*Node) error) {
	if err := parse(f); err != nil {
		m.failed = true
		m.reportErr(f.Pos(), err)
	}
}

func (m *moduleParser) errorAt(pos token.Pos, format string, args ...any) {
	m.failed = true
	m.report(diag.Error, pos, format, args...)
}

// declare assigns indices to every function, global and memory so that
// fields may refer to definitions that follow them.
func (m *moduleParser) declare(fields []*Node) {
	defined := ""
	for _, f := range fields {
		kind := f.Head()
		var id string
		imported := false

		switch kind {
		case "import":
			if len(f.Children) < 4 || !f.Children[3].List {
				continue
			}
			desc := f.Children[3]
			kind = desc.Head()
			if len(desc.Children) > 1 && desc.Children[1].IsID() {
				id = desc.Children[1].Tok.Value
			}
			imported = true
		case "func", "global", "memory":
			c := newCursor(f.Children[1:])
			id = c.optID()
			c.skip("export")
			imported = c.nextIs("import") != nil
		default:
			continue
		}

		if imported && defined != "" {
			m.errorAt(f.Pos(), "import after %s definition; imports must come first", defined)
		}
		if !imported {
			defined = kind
		}

		var (
			names map[string]uint32
			count *uint32
		)
		switch kind {
		case "func":
			names, count = m.funcs, &m.nFuncs
			if id != "" {
				m.mod.FuncNames = append(m.mod.FuncNames, ast.NameAssoc{Name: id[1:], Index: m.nFuncs})
			}
		case "global":
			names, count = m.globals, &m.nGlobals
		case "memory":
			names, count = m.mems, &m.nMems
			if m.nMems == 1 {
				m.errorAt(f.Pos(), "multiple memories are not supported")
			}
		default:
			continue
		}
		if id != "" {
			if _, dup := names[id]; dup {
				m.errorAt(f.Pos(), "duplicate %s %s", kind, id)
			}
			names[id] = *count
		}
		*count++
	}
}

func (m *moduleParser) field(f *Node) error {
	if f.Annot != "" {
		return m.annotation(f)
	}
	if !f.List {
		return errorf(f.Pos(), "unexpected %s in module", f.Describe())
	}
	switch f.Head() {
	case "import":
		return m.importField(f)
	case "func":
		return m.funcField(f)
	case "memory":
		return m.memoryField(f)
	case "global":
		return m.globalField(f)
	case "export":
		return m.exportField(f)
	case "start":
		return m.startField(f)
	case "data":
		return m.dataField(f)
	case "table", "elem":
		return errorf(f.Pos(), "%s fields are not supported", f.Head())
	case "":
		return errorf(f.Pos(), "expected a module field")
	}
	return errorf(f.Pos(), "unknown module field %q", f.Head())
}

func (m *moduleParser) annotation(f *Node) error {
	if f.Annot != "custom" {
		m.report(diag.Warning, f.Pos(), "unknown annotation @%s ignored", f.Annot)
		return nil
	}
	c := newCursor(f.Children)
	nameNode := c.next()
	if nameNode == nil || !nameNode.IsAtom(token.String) {
		return errorf(f.Pos(), "@custom requires a section name")
	}
	name, err := DecodeString(nameNode.Tok.Value)
	if err != nil {
		return errorf(nameNode.Pos(), "%v", err)
	}
	if string(name) == "name" {
		return errorf(nameNode.Pos(), "custom section \"name\" is reserved")
	}
	// Placement hints such as (after func) do not change the section's
	// meaning; custom sections are always emitted after the data section.
	if n := c.peek(); n != nil && (n.Is("before") || n.Is("after")) {
		c.next()
	}
	var data []byte
	for c.more() {
		n := c.next()
		if !n.IsAtom(token.String) {
			return errorf(n.Pos(), "@custom data must be strings, got %s", n.Describe())
		}
		b, err := DecodeString(n.Tok.Value)
		if err != nil {
			return errorf(n.Pos(), "%v", err)
		}
		data = append(data, b...)
	}
	m.mod.Customs = append(m.mod.Customs, wasm.CustomSection{Name: string(name), Data: data})
	return nil
}

// resolve maps a $name or numeric index through names, checking it
// against count.
func resolve(n *Node, names map[string]uint32, count uint32, what string) (uint32, error) {
	if n == nil {
		return 0, fmt.Errorf("expected %s index", what)
	}
	if n.IsID() {
		idx, ok := names[n.Tok.Value]
		if !ok {
			return 0, errorf(n.Pos(), "unknown %s %s", what, n.Tok.Value)
		}
		return idx, nil
	}
	idx, err := parseU32(n)
	if err != nil {
		return 0, errorf(n.Pos(), "expected %s index, got %s", what, n.Describe())
	}
	if idx >= count {
		return 0, errorf(n.Pos(), "%s index %d out of range", what, idx)
	}
	return idx, nil
}

func (m *moduleParser) funcIdx(n *Node) (uint32, error) {
	return resolve(n, m.funcs, m.nFuncs, "function")
}

func (m *moduleParser) globalIdx(n *Node) (uint32, error) {
	return resolve(n, m.globals, m.nGlobals, "global")
}

func (m *moduleParser) memIdx(n *Node) (uint32, error) {
	return resolve(n, m.mems, m.nMems, "memory")
}
