package parser

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
	"github.com/wippyai/wasm-plugins/wat/internal/opcode"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

// funcState is the local and label context of the body being parsed.
type funcState struct {
	localNames map[string]uint32
	locals     []wasm.ValType // params first
	labels     []string       // innermost last; [0] is the function body
}

func newFuncState(ft wasm.FuncType) *funcState {
	return &funcState{
		localNames: map[string]uint32{},
		locals:     append([]wasm.ValType(nil), ft.Params...),
		labels:     []string{""},
	}
}

// declareLocals handles (local $x t) and (local t*).
func (fn *funcState) declareLocals(l *Node) error {
	c := newCursor(l.Children[1:])
	if id := c.optID(); id != "" {
		vt, err := parseValType(c.next())
		if err != nil {
			return errorf(l.Pos(), "local %s: %v", id, err)
		}
		if c.more() {
			return errorf(l.Pos(), "named local %s takes exactly one type", id)
		}
		if _, dup := fn.localNames[id]; dup {
			return errorf(l.Pos(), "duplicate local %s", id)
		}
		fn.localNames[id] = uint32(len(fn.locals))
		fn.locals = append(fn.locals, vt)
		return nil
	}
	for c.more() {
		n := c.next()
		vt, err := parseValType(n)
		if err != nil {
			return errorf(n.Pos(), "%v", err)
		}
		fn.locals = append(fn.locals, vt)
	}
	return nil
}

func (fn *funcState) push(label string) {
	fn.labels = append(fn.labels, label)
}

func (fn *funcState) pop() {
	fn.labels = fn.labels[:len(fn.labels)-1]
}

func (m *moduleParser) instrs(c *cursor, out *[]ast.Instr) error {
	for c.more() {
		if err := m.instr(c, out); err != nil {
			return err
		}
	}
	return nil
}

// instr parses one flat or folded instruction from c.
func (m *moduleParser) instr(c *cursor, out *[]ast.Instr) error {
	n := c.next()
	if n.List {
		if n.Annot != "" {
			m.report(diag.Warning, n.Pos(), "annotation @%s in code ignored", n.Annot)
			return nil
		}
		return m.folded(n, out)
	}
	if !n.IsAtom(token.Ident) {
		return errorf(n.Pos(), "expected instruction, got %s", n.Describe())
	}
	switch n.Tok.Value {
	case "block", "loop", "if":
		return m.flatBlock(n, c, out)
	case "end", "else", "then":
		return errorf(n.Pos(), "unexpected %q", n.Tok.Value)
	}
	ins, err := m.plain(n, c)
	if err != nil {
		return err
	}
	*out = append(*out, ins)
	return nil
}

func blockOpcode(kw string) byte {
	switch kw {
	case "loop":
		return ast.OpLoop
	case "if":
		return ast.OpIf
	}
	return ast.OpBlock
}

// blockType reads (type X)? (param ...)* (result ...)*.
func (m *moduleParser) blockType(c *cursor) (ast.BlockType, error) {
	if t := c.peek(); t != nil && t.Is("type") {
		idx, _, err := m.typeUse(c)
		return ast.BlockType{TypeIdx: int32(idx)}, err
	}
	start := c.peek()
	ft, names, err := m.signature(c)
	if err != nil {
		return ast.BlockType{}, err
	}
	for _, name := range names {
		if name != "" {
			return ast.BlockType{}, errorf(start.Pos(), "block parameters cannot be named")
		}
	}
	switch {
	case len(ft.Params) == 0 && len(ft.Results) == 0:
		return ast.BlockType{TypeIdx: -1, Simple: ast.BlockTypeEmpty}, nil
	case len(ft.Params) == 0 && len(ft.Results) == 1:
		return ast.BlockType{TypeIdx: -1, Simple: byte(ft.Results[0])}, nil
	}
	return ast.BlockType{TypeIdx: int32(m.mod.FindOrAddType(ft))}, nil
}

// flatBlock parses "block $l? type ... end $l?" and the loop and if forms.
func (m *moduleParser) flatBlock(kw *Node, c *cursor, out *[]ast.Instr) error {
	op := blockOpcode(kw.Tok.Value)
	label := c.optID()
	bt, err := m.blockType(c)
	if err != nil {
		return err
	}
	*out = append(*out, ast.Instr{Opcode: op, Imm: bt})
	m.fn.push(label)

	seenElse := false
	for {
		n := c.peek()
		if n == nil {
			return errorf(kw.Pos(), "missing end for %s", kw.Tok.Value)
		}
		if n.IsAtom(token.Ident) {
			switch n.Tok.Value {
			case "end":
				c.next()
				if err := closingLabel(c, label); err != nil {
					return err
				}
				m.fn.pop()
				*out = append(*out, ast.Instr{Opcode: ast.OpEnd})
				return nil
			case "else":
				if op != ast.OpIf || seenElse {
					return errorf(n.Pos(), "unexpected \"else\"")
				}
				c.next()
				if err := closingLabel(c, label); err != nil {
					return err
				}
				seenElse = true
				*out = append(*out, ast.Instr{Opcode: ast.OpElse})
				continue
			}
		}
		if err := m.instr(c, out); err != nil {
			return err
		}
	}
}

func closingLabel(c *cursor, label string) error {
	n := c.peek()
	if n == nil || !n.IsID() {
		return nil
	}
	c.next()
	if n.Tok.Value != label {
		return errorf(n.Pos(), "mismatched label %s, expected %q", n.Tok.Value, label)
	}
	return nil
}

// folded parses (op imm* operand*) and the structured folded forms.
func (m *moduleParser) folded(n *Node, out *[]ast.Instr) error {
	if len(n.Children) == 0 || !n.Children[0].IsAtom(token.Ident) {
		return errorf(n.Pos(), "expected instruction")
	}
	kw := n.Children[0]
	c := newCursor(n.Children[1:])

	switch kw.Tok.Value {
	case "block", "loop":
		label := c.optID()
		bt, err := m.blockType(c)
		if err != nil {
			return err
		}
		*out = append(*out, ast.Instr{Opcode: blockOpcode(kw.Tok.Value), Imm: bt})
		m.fn.push(label)
		if err := m.instrs(c, out); err != nil {
			return err
		}
		m.fn.pop()
		*out = append(*out, ast.Instr{Opcode: ast.OpEnd})
		return nil

	case "if":
		return m.foldedIf(n, c, out)

	case "then", "else", "end":
		return errorf(kw.Pos(), "unexpected %q", kw.Tok.Value)
	}

	ins, err := m.plain(kw, c)
	if err != nil {
		return err
	}
	for c.more() {
		if operand := c.peek(); !operand.List {
			return errorf(operand.Pos(), "unexpected %s in folded %s", operand.Describe(), kw.Tok.Value)
		}
		if err := m.instr(c, out); err != nil {
			return err
		}
	}
	*out = append(*out, ins)
	return nil
}

// foldedIf parses (if $l? type cond* (then ...) (else ...)?).
func (m *moduleParser) foldedIf(n *Node, c *cursor, out *[]ast.Instr) error {
	label := c.optID()
	bt, err := m.blockType(c)
	if err != nil {
		return err
	}
	for c.more() && !c.peek().Is("then") {
		if cond := c.peek(); !cond.List {
			return errorf(cond.Pos(), "unexpected %s in if condition", cond.Describe())
		}
		if err := m.instr(c, out); err != nil {
			return err
		}
	}
	then := c.nextIs("then")
	if then == nil {
		return errorf(n.Pos(), "if requires a (then ...) clause")
	}

	*out = append(*out, ast.Instr{Opcode: ast.OpIf, Imm: bt})
	m.fn.push(label)
	if err := m.instrs(newCursor(then.Children[1:]), out); err != nil {
		return err
	}
	if els := c.nextIs("else"); els != nil {
		*out = append(*out, ast.Instr{Opcode: ast.OpElse})
		if err := m.instrs(newCursor(els.Children[1:]), out); err != nil {
			return err
		}
	}
	if c.more() {
		return errorf(c.peek().Pos(), "unexpected %s after if branches", c.peek().Describe())
	}
	m.fn.pop()
	*out = append(*out, ast.Instr{Opcode: ast.OpEnd})
	return nil
}

// plain parses a non-structured instruction and its immediates.
func (m *moduleParser) plain(kw *Node, c *cursor) (ast.Instr, error) {
	name := kw.Tok.Value

	if op, ok := opcode.LookupMemory(name); ok {
		return m.memoryAccess(kw, op, c)
	}
	if sub, ok := opcode.LookupSaturating(name); ok {
		return ast.Instr{Opcode: ast.OpPrefixMisc, Imm: sub}, nil
	}
	info, ok := opcode.Lookup(name)
	if !ok {
		if opcode.Unsupported(name) {
			return ast.Instr{}, errorf(kw.Pos(), "instruction %s is not supported", name)
		}
		return ast.Instr{}, errorf(kw.Pos(), "unknown instruction %q", name)
	}

	ins := ast.Instr{Opcode: info.Opcode}
	var err error
	switch info.Imm {
	case opcode.ImmNone:
		if name == "select" {
			if r := c.peek(); r != nil && r.Is("result") {
				return ins, errorf(r.Pos(), "typed select is not supported")
			}
		}
	case opcode.ImmLocal:
		ins.Imm, err = m.local(kw, immediate(kw, c))
	case opcode.ImmGlobal:
		ins.Imm, err = m.globalIdx(immediate(kw, c))
	case opcode.ImmFunc:
		ins.Imm, err = m.funcIdx(immediate(kw, c))
	case opcode.ImmLabel:
		ins.Imm, err = m.label(kw, immediate(kw, c))
	case opcode.ImmLabels:
		ins.Imm, err = m.labels(kw, c)
	case opcode.ImmI32:
		n := immediate(kw, c)
		var v int32
		if v, err = parseI32(n); err != nil {
			err = errorf(n.Pos(), "%v", err)
		}
		ins.Imm = v
	case opcode.ImmI64:
		n := immediate(kw, c)
		var v int64
		if v, err = parseI64(n); err != nil {
			err = errorf(n.Pos(), "%v", err)
		}
		ins.Imm = v
	case opcode.ImmF32:
		n := immediate(kw, c)
		var v float64
		if v, err = parseFloat(n, 32); err != nil {
			err = errorf(n.Pos(), "%v", err)
		}
		ins.Imm = float32(v)
	case opcode.ImmF64:
		n := immediate(kw, c)
		var v float64
		if v, err = parseFloat(n, 64); err != nil {
			err = errorf(n.Pos(), "%v", err)
		}
		ins.Imm = v
	case opcode.ImmMemIdx:
		if m.nMems == 0 {
			return ins, errorf(kw.Pos(), "%s requires a memory", name)
		}
		if n := c.peek(); n != nil && (n.IsID() || n.IsAtom(token.Number)) {
			_, err = m.memIdx(c.next())
		}
	}
	return ins, err
}

// immediate returns the next node, or kw itself so that a missing
// immediate is reported at the instruction.
func immediate(kw *Node, c *cursor) *Node {
	if n := c.peek(); n != nil && !n.List {
		return c.next()
	}
	return kw
}

func (m *moduleParser) local(kw, n *Node) (uint32, error) {
	if n == nil || n.List {
		return 0, errorf(kw.Pos(), "%s expects a local index", kw.Tok.Value)
	}
	return resolve(n, m.fn.localNames, uint32(len(m.fn.locals)), "local")
}

// label resolves a branch target to its relative depth.
func (m *moduleParser) label(kw, n *Node) (uint32, error) {
	if n == nil || n.List {
		return 0, errorf(kw.Pos(), "%s expects a label", kw.Tok.Value)
	}
	labels := m.fn.labels
	if n.IsID() {
		for i := len(labels) - 1; i >= 0; i-- {
			if labels[i] == n.Tok.Value {
				return uint32(len(labels) - 1 - i), nil
			}
		}
		return 0, errorf(n.Pos(), "unknown label %s", n.Tok.Value)
	}
	depth, err := parseU32(n)
	if err != nil {
		return 0, errorf(n.Pos(), "expected label, got %s", n.Describe())
	}
	if int(depth) >= len(labels) {
		return 0, errorf(n.Pos(), "branch depth %d out of range", depth)
	}
	return depth, nil
}

func (m *moduleParser) labels(kw *Node, c *cursor) ([]uint32, error) {
	var out []uint32
	for {
		n := c.peek()
		if n == nil || !(n.IsID() || n.IsAtom(token.Number)) {
			break
		}
		depth, err := m.label(kw, c.next())
		if err != nil {
			return nil, err
		}
		out = append(out, depth)
	}
	if len(out) == 0 {
		return nil, errorf(kw.Pos(), "br_table expects at least one label")
	}
	return out, nil
}

// memoryAccess parses "offset=N" and "align=N" for loads and stores.
func (m *moduleParser) memoryAccess(kw *Node, op opcode.MemoryOp, c *cursor) (ast.Instr, error) {
	if m.nMems == 0 {
		return ast.Instr{}, errorf(kw.Pos(), "%s requires a memory", kw.Tok.Value)
	}
	ma := ast.Memarg{Align: op.NaturalAlign}
	for {
		n := c.peek()
		if n == nil || !n.IsAtom(token.Ident) {
			break
		}
		key, val, ok := strings.Cut(n.Tok.Value, "=")
		if !ok || (key != "offset" && key != "align") {
			break
		}
		c.next()
		v, err := strconv.ParseUint(cleanNumber(val), 0, 32)
		if err != nil {
			return ast.Instr{}, errorf(n.Pos(), "invalid %s %q", key, val)
		}
		if key == "offset" {
			ma.Offset = uint32(v)
			continue
		}
		if v == 0 || v&(v-1) != 0 {
			return ast.Instr{}, errorf(n.Pos(), "alignment %d is not a power of two", v)
		}
		log := uint32(bits.TrailingZeros64(v))
		if log > op.NaturalAlign {
			return ast.Instr{}, errorf(n.Pos(), "alignment %d exceeds natural alignment %d", v, uint64(1)<<op.NaturalAlign)
		}
		ma.Align = log
	}
	return ast.Instr{Opcode: op.Opcode, Imm: ma}, nil
}
