package parser

import (
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

const pageSize = 65536

// typeField handles (type $t? (func (param ...) (result ...))).
func (m *moduleParser) typeField(f *Node) error {
	c := newCursor(f.Children[1:])
	id := c.optID()
	fn := c.nextIs("func")
	if fn == nil || c.more() {
		return errorf(f.Pos(), "expected (type $name? (func ...))")
	}
	fc := newCursor(fn.Children[1:])
	ft, _, err := m.signature(fc)
	if err != nil {
		return err
	}
	if fc.more() {
		return errorf(fc.peek().Pos(), "unexpected %s in type", fc.peek().Describe())
	}
	if id != "" {
		if _, dup := m.types[id]; dup {
			return errorf(f.Pos(), "duplicate type %s", id)
		}
		m.types[id] = uint32(len(m.mod.Types))
	}
	m.mod.Types = append(m.mod.Types, ft)
	return nil
}

// signature reads (param ...)* (result ...)*. Param names are returned in
// order; unnamed params leave an empty entry.
func (m *moduleParser) signature(c *cursor) (wasm.FuncType, []string, error) {
	var (
		ft    wasm.FuncType
		names []string
	)
	for p := c.nextIs("param"); p != nil; p = c.nextIs("param") {
		pc := newCursor(p.Children[1:])
		if id := pc.optID(); id != "" {
			vt, err := parseValType(pc.next())
			if err != nil {
				return ft, nil, errorf(p.Pos(), "param %s: %v", id, err)
			}
			if pc.more() {
				return ft, nil, errorf(p.Pos(), "named param %s takes exactly one type", id)
			}
			ft.Params = append(ft.Params, vt)
			names = append(names, id)
			continue
		}
		for pc.more() {
			n := pc.next()
			vt, err := parseValType(n)
			if err != nil {
				return ft, nil, errorf(n.Pos(), "%v", err)
			}
			ft.Params = append(ft.Params, vt)
			names = append(names, "")
		}
	}
	for r := c.nextIs("result"); r != nil; r = c.nextIs("result") {
		for _, n := range r.Children[1:] {
			vt, err := parseValType(n)
			if err != nil {
				return ft, nil, errorf(n.Pos(), "%v", err)
			}
			ft.Results = append(ft.Results, vt)
		}
	}
	return ft, names, nil
}

// typeUse reads an optional (type X) followed by an inline signature and
// returns the type index. An explicit type must agree with any inline
// signature given next to it.
func (m *moduleParser) typeUse(c *cursor) (uint32, []string, error) {
	var (
		idx      uint32
		explicit bool
	)
	if t := c.nextIs("type"); t != nil {
		if len(t.Children) != 2 {
			return 0, nil, errorf(t.Pos(), "expected (type index)")
		}
		var err error
		idx, err = resolve(t.Children[1], m.types, uint32(len(m.mod.Types)), "type")
		if err != nil {
			return 0, nil, err
		}
		explicit = true
	}
	start := c.i
	ft, names, err := m.signature(c)
	if err != nil {
		return 0, nil, err
	}
	if !explicit {
		return m.mod.FindOrAddType(ft), names, nil
	}
	if c.i > start && !ft.Equal(m.mod.Types[idx]) {
		return 0, nil, errorf(c.nodes[start].Pos(), "inline signature %s does not match type %s", ft, m.mod.Types[idx])
	}
	if names == nil {
		names = make([]string, len(m.mod.Types[idx].Params))
	}
	return idx, names, nil
}

// inlineImport reads (import "module" "name").
func inlineImport(n *Node) (string, string, error) {
	if len(n.Children) != 3 || !n.Children[1].IsAtom(token.String) || !n.Children[2].IsAtom(token.String) {
		return "", "", errorf(n.Pos(), "expected (import \"module\" \"name\")")
	}
	module, err := DecodeString(n.Children[1].Tok.Value)
	if err != nil {
		return "", "", errorf(n.Children[1].Pos(), "%v", err)
	}
	name, err := DecodeString(n.Children[2].Tok.Value)
	if err != nil {
		return "", "", errorf(n.Children[2].Pos(), "%v", err)
	}
	return string(module), string(name), nil
}

// inlineExports reads (export "name")* for an item of the given kind.
func (m *moduleParser) inlineExports(c *cursor, kind wasm.ExternKind, idx uint32) error {
	for e := c.nextIs("export"); e != nil; e = c.nextIs("export") {
		if len(e.Children) != 2 || !e.Children[1].IsAtom(token.String) {
			return errorf(e.Pos(), "expected (export \"name\")")
		}
		if err := m.addExport(e.Children[1], kind, idx); err != nil {
			return err
		}
	}
	return nil
}

func (m *moduleParser) addExport(nameNode *Node, kind wasm.ExternKind, idx uint32) error {
	name, err := DecodeString(nameNode.Tok.Value)
	if err != nil {
		return errorf(nameNode.Pos(), "%v", err)
	}
	if m.exports[string(name)] {
		return errorf(nameNode.Pos(), "duplicate export %q", name)
	}
	m.exports[string(name)] = true
	m.mod.Exports = append(m.mod.Exports, ast.Export{Name: string(name), Kind: kind, Idx: idx})
	return nil
}

func (m *moduleParser) countImports(kind wasm.ExternKind) uint32 {
	var n uint32
	for _, imp := range m.mod.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

// nextIndex is the index the next item of kind will receive.
func (m *moduleParser) nextIndex(kind wasm.ExternKind) uint32 {
	n := m.countImports(kind)
	switch kind {
	case wasm.KindFunc:
		n += uint32(len(m.mod.Funcs))
	case wasm.KindGlobal:
		n += uint32(len(m.mod.Globals))
	case wasm.KindMemory:
		n += uint32(len(m.mod.Memories))
	}
	return n
}

// importField handles (import "m" "n" (func|memory|global $id? ...)).
func (m *moduleParser) importField(f *Node) error {
	if len(f.Children) != 4 || !f.Children[3].List {
		return errorf(f.Pos(), "expected (import \"module\" \"name\" (kind ...))")
	}
	module, name, err := inlineImport(&Node{Tok: f.Tok, List: true, Children: f.Children[:3]})
	if err != nil {
		return err
	}
	desc := f.Children[3]
	c := newCursor(desc.Children[1:])
	c.optID()

	imp := ast.Import{Module: module, Name: name, Pos: f.Pos()}
	switch desc.Head() {
	case "func":
		imp.Kind = wasm.KindFunc
		if imp.TypeIdx, _, err = m.typeUse(c); err != nil {
			return err
		}
	case "memory":
		imp.Kind = wasm.KindMemory
		lim, err := limits(c, desc.Pos())
		if err != nil {
			return err
		}
		imp.Memory = &lim
	case "global":
		imp.Kind = wasm.KindGlobal
		gt, err := globalType(c.next(), desc.Pos())
		if err != nil {
			return err
		}
		imp.Global = &gt
	case "table":
		return errorf(desc.Pos(), "table imports are not supported")
	default:
		return errorf(desc.Pos(), "unknown import kind %s", desc.Describe())
	}
	if c.more() {
		return errorf(c.peek().Pos(), "unexpected %s in import", c.peek().Describe())
	}
	m.mod.Imports = append(m.mod.Imports, imp)
	return nil
}

func limits(c *cursor, pos token.Pos) (wasm.Limits, error) {
	var lim wasm.Limits
	lo, err := parseU32(c.next())
	if err != nil {
		return lim, errorf(pos, "memory limits: %v", err)
	}
	lim.Min = lo
	if n := c.peek(); n != nil && n.IsAtom(token.Number) {
		hi, err := parseU32(c.next())
		if err != nil {
			return lim, errorf(n.Pos(), "memory limits: %v", err)
		}
		if hi < lo {
			return lim, errorf(n.Pos(), "memory maximum %d is below minimum %d", hi, lo)
		}
		lim.Max = &hi
	}
	if n := c.peek(); n != nil && n.IsAtom(token.Ident) && n.Tok.Value == "shared" {
		return lim, errorf(n.Pos(), "shared memories are not supported")
	}
	return lim, nil
}

// globalType reads "t" or "(mut t)".
func globalType(n *Node, pos token.Pos) (wasm.GlobalType, error) {
	if n == nil {
		return wasm.GlobalType{}, errorf(pos, "expected global type")
	}
	if n.Is("mut") {
		if len(n.Children) != 2 {
			return wasm.GlobalType{}, errorf(n.Pos(), "expected (mut type)")
		}
		vt, err := parseValType(n.Children[1])
		if err != nil {
			return wasm.GlobalType{}, errorf(n.Pos(), "%v", err)
		}
		return wasm.GlobalType{ValType: vt, Mutable: true}, nil
	}
	vt, err := parseValType(n)
	if err != nil {
		return wasm.GlobalType{}, errorf(n.Pos(), "%v", err)
	}
	return wasm.GlobalType{ValType: vt}, nil
}

// funcField handles a function definition or an inline function import.
func (m *moduleParser) funcField(f *Node) error {
	c := newCursor(f.Children[1:])
	c.optID()
	idx := m.nextIndex(wasm.KindFunc)
	if err := m.inlineExports(c, wasm.KindFunc, idx); err != nil {
		return err
	}

	if imp := c.nextIs("import"); imp != nil {
		module, name, err := inlineImport(imp)
		if err != nil {
			return err
		}
		typeIdx, _, err := m.typeUse(c)
		if err != nil {
			return err
		}
		if c.more() {
			return errorf(c.peek().Pos(), "imported function cannot have a body")
		}
		m.mod.Imports = append(m.mod.Imports, ast.Import{
			Module: module, Name: name, Kind: wasm.KindFunc, TypeIdx: typeIdx, Pos: f.Pos(),
		})
		return nil
	}

	typeIdx, paramNames, err := m.typeUse(c)
	if err != nil {
		return err
	}
	ft := m.mod.Types[typeIdx]

	fn := newFuncState(ft)
	for i, name := range paramNames {
		if name == "" {
			continue
		}
		if _, dup := fn.localNames[name]; dup {
			return errorf(f.Pos(), "duplicate local %s", name)
		}
		fn.localNames[name] = uint32(i)
	}
	for l := c.nextIs("local"); l != nil; l = c.nextIs("local") {
		if err := fn.declareLocals(l); err != nil {
			return err
		}
	}

	m.fn = fn
	defer func() { m.fn = nil }()

	var body []ast.Instr
	if err := m.instrs(c, &body); err != nil {
		return err
	}
	body = append(body, ast.Instr{Opcode: ast.OpEnd})

	m.mod.Funcs = append(m.mod.Funcs, typeIdx)
	m.mod.Code = append(m.mod.Code, ast.FuncBody{Locals: fn.locals[len(ft.Params):], Code: body})
	return nil
}

// memoryField handles (memory $id? (export ..)* (import ..)? limits) and
// (memory (data "...")).
func (m *moduleParser) memoryField(f *Node) error {
	c := newCursor(f.Children[1:])
	c.optID()
	if err := m.inlineExports(c, wasm.KindMemory, m.nextIndex(wasm.KindMemory)); err != nil {
		return err
	}

	if imp := c.nextIs("import"); imp != nil {
		module, name, err := inlineImport(imp)
		if err != nil {
			return err
		}
		lim, err := limits(c, f.Pos())
		if err != nil {
			return err
		}
		m.mod.Imports = append(m.mod.Imports, ast.Import{
			Module: module, Name: name, Kind: wasm.KindMemory, Memory: &lim, Pos: f.Pos(),
		})
		return nil
	}

	if d := c.nextIs("data"); d != nil {
		init, err := dataStrings(newCursor(d.Children[1:]))
		if err != nil {
			return err
		}
		pages := uint32((len(init) + pageSize - 1) / pageSize)
		m.mod.Memories = append(m.mod.Memories, wasm.Limits{Min: pages, Max: &pages})
		m.mod.Data = append(m.mod.Data, ast.DataSegment{
			Offset: []ast.Instr{{Opcode: ast.OpI32Const, Imm: int32(0)}, {Opcode: ast.OpEnd}},
			Init:   init,
		})
		return nil
	}

	lim, err := limits(c, f.Pos())
	if err != nil {
		return err
	}
	if c.more() {
		return errorf(c.peek().Pos(), "unexpected %s in memory", c.peek().Describe())
	}
	m.mod.Memories = append(m.mod.Memories, lim)
	return nil
}

// globalField handles a global definition or inline global import.
func (m *moduleParser) globalField(f *Node) error {
	c := newCursor(f.Children[1:])
	c.optID()
	if err := m.inlineExports(c, wasm.KindGlobal, m.nextIndex(wasm.KindGlobal)); err != nil {
		return err
	}
	imp := c.nextIs("import")
	gt, err := globalType(c.next(), f.Pos())
	if err != nil {
		return err
	}

	if imp != nil {
		module, name, err := inlineImport(imp)
		if err != nil {
			return err
		}
		m.mod.Imports = append(m.mod.Imports, ast.Import{
			Module: module, Name: name, Kind: wasm.KindGlobal, Global: &gt, Pos: f.Pos(),
		})
		return nil
	}

	init, err := m.constExpr(c, f.Pos())
	if err != nil {
		return err
	}
	m.mod.Globals = append(m.mod.Globals, ast.Global{Type: gt, Init: init})
	return nil
}

// constExpr parses the remaining nodes as an initializer expression.
func (m *moduleParser) constExpr(c *cursor, pos token.Pos) ([]ast.Instr, error) {
	if !c.more() {
		return nil, errorf(pos, "missing initializer expression")
	}
	m.fn = newFuncState(wasm.FuncType{})
	defer func() { m.fn = nil }()

	var out []ast.Instr
	if err := m.instrs(c, &out); err != nil {
		return nil, err
	}
	return append(out, ast.Instr{Opcode: ast.OpEnd}), nil
}

// exportField handles (export "name" (func|memory|global X)).
func (m *moduleParser) exportField(f *Node) error {
	if len(f.Children) != 3 || !f.Children[1].IsAtom(token.String) || !f.Children[2].List {
		return errorf(f.Pos(), "expected (export \"name\" (kind index))")
	}
	desc := f.Children[2]
	if len(desc.Children) != 2 {
		return errorf(desc.Pos(), "expected (kind index)")
	}
	var (
		kind wasm.ExternKind
		idx  uint32
		err  error
	)
	switch desc.Head() {
	case "func":
		kind = wasm.KindFunc
		idx, err = m.funcIdx(desc.Children[1])
	case "memory":
		kind = wasm.KindMemory
		idx, err = m.memIdx(desc.Children[1])
	case "global":
		kind = wasm.KindGlobal
		idx, err = m.globalIdx(desc.Children[1])
	case "table":
		return errorf(desc.Pos(), "table exports are not supported")
	default:
		return errorf(desc.Pos(), "unknown export kind %s", desc.Describe())
	}
	if err != nil {
		return err
	}
	return m.addExport(f.Children[1], kind, idx)
}

func (m *moduleParser) startField(f *Node) error {
	if m.mod.Start != nil {
		return errorf(f.Pos(), "multiple start functions")
	}
	if len(f.Children) != 2 {
		return errorf(f.Pos(), "expected (start function)")
	}
	idx, err := m.funcIdx(f.Children[1])
	if err != nil {
		return err
	}
	m.mod.Start = &idx
	return nil
}

// dataField handles active segments: (data $id? (memory X)? offset "bytes"*).
func (m *moduleParser) dataField(f *Node) error {
	c := newCursor(f.Children[1:])
	c.optID()
	if mem := c.nextIs("memory"); mem != nil {
		if len(mem.Children) != 2 {
			return errorf(mem.Pos(), "expected (memory index)")
		}
		if _, err := m.memIdx(mem.Children[1]); err != nil {
			return err
		}
	}
	if m.nMems == 0 {
		return errorf(f.Pos(), "data segment requires a memory")
	}

	off := c.peek()
	if off == nil || !off.List {
		return errorf(f.Pos(), "passive data segments are not supported")
	}
	c.next()
	var offsetNodes []*Node
	if off.Is("offset") {
		offsetNodes = off.Children[1:]
	} else {
		offsetNodes = []*Node{off}
	}
	offset, err := m.constExpr(newCursor(offsetNodes), off.Pos())
	if err != nil {
		return err
	}

	init, err := dataStrings(c)
	if err != nil {
		return err
	}
	m.mod.Data = append(m.mod.Data, ast.DataSegment{Offset: offset, Init: init})
	return nil
}

func dataStrings(c *cursor) ([]byte, error) {
	var out []byte
	for c.more() {
		n := c.next()
		if !n.IsAtom(token.String) {
			return nil, errorf(n.Pos(), "expected data string, got %s", n.Describe())
		}
		b, err := DecodeString(n.Tok.Value)
		if err != nil {
			return nil, errorf(n.Pos(), "%v", err)
		}
		out = append(out, b...)
	}
	return out, nil
}
