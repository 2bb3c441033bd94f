package ast

import (
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

// Module is one parsed text module ready for encoding.
type Module struct {
	Start     *uint32
	Name      string // identifier without the leading '$'
	Types     []wasm.FuncType
	Imports   []Import
	Funcs     []uint32 // type index per defined function
	Memories  []wasm.Limits
	Globals   []Global
	Exports   []Export
	Code      []FuncBody
	Data      []DataSegment
	Customs   []wasm.CustomSection
	FuncNames []NameAssoc // sorted by index
	Pos       token.Pos
}

// NameAssoc maps an index to a symbolic name for the name section.
type NameAssoc struct {
	Name  string
	Index uint32
}

// FindOrAddType returns the index of ft, appending it when absent.
func (m *Module) FindOrAddType(ft wasm.FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// FuncType returns the signature of function idx, imports first.
func (m *Module) FuncType(idx uint32) (wasm.FuncType, bool) {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind != wasm.KindFunc {
			continue
		}
		if n == idx {
			return m.Types[imp.TypeIdx], true
		}
		n++
	}
	local := idx - n
	if idx < n || int(local) >= len(m.Funcs) {
		return wasm.FuncType{}, false
	}
	return m.Types[m.Funcs[local]], true
}

// GlobalType returns the type of global idx, imports first.
func (m *Module) GlobalType(idx uint32) (wasm.GlobalType, bool) {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind != wasm.KindGlobal {
			continue
		}
		if n == idx {
			return *imp.Global, true
		}
		n++
	}
	local := idx - n
	if idx < n || int(local) >= len(m.Globals) {
		return wasm.GlobalType{}, false
	}
	return m.Globals[local].Type, true
}

type Import struct {
	Global  *wasm.GlobalType
	Memory  *wasm.Limits
	Module  string
	Name    string
	Pos     token.Pos
	TypeIdx uint32
	Kind    wasm.ExternKind
}

type Global struct {
	Init []Instr
	Type wasm.GlobalType
}

type Export struct {
	Name string
	Idx  uint32
	Kind wasm.ExternKind
}

type FuncBody struct {
	Locals []wasm.ValType
	Code   []Instr
}

// DataSegment is an active segment in memory 0.
type DataSegment struct {
	Offset []Instr
	Init   []byte
}

type Instr struct {
	Imm    any
	Opcode byte
}

type Memarg struct {
	Align  uint32 // log2 of the alignment in bytes
	Offset uint32
}

// BlockType is either Simple (BlockTypeEmpty or a value type) or a type
// index when TypeIdx >= 0.
type BlockType struct {
	TypeIdx int32
	Simple  byte
}
