package encoder

import (
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
)

// Encode renders m as a binary module. Custom sections follow the data
// section, the name section comes last.
func Encode(m *ast.Module) []byte {
	buf := &Buffer{}
	buf.WriteBytes([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})

	if len(m.Types) > 0 {
		buf.WriteSection(wasm.SectionType, typeSection(m))
	}
	if len(m.Imports) > 0 {
		buf.WriteSection(wasm.SectionImport, importSection(m))
	}
	if len(m.Funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, idx := range m.Funcs {
			sec.WriteU32(idx)
		}
		buf.WriteSection(wasm.SectionFunction, sec)
	}
	if len(m.Memories) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.Memories)))
		for _, lim := range m.Memories {
			sec.WriteLimits(lim)
		}
		buf.WriteSection(wasm.SectionMemory, sec)
	}
	if len(m.Globals) > 0 {
		buf.WriteSection(wasm.SectionGlobal, globalSection(m))
	}
	if len(m.Exports) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			sec.WriteString(e.Name)
			sec.AppendByte(byte(e.Kind))
			sec.WriteU32(e.Idx)
		}
		buf.WriteSection(wasm.SectionExport, sec)
	}
	if m.Start != nil {
		sec := &Buffer{}
		sec.WriteU32(*m.Start)
		buf.WriteSection(wasm.SectionStart, sec)
	}
	if len(m.Code) > 0 {
		buf.WriteSection(wasm.SectionCode, codeSection(m))
	}
	if len(m.Data) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.AppendByte(ast.DataFlagActive)
			encodeExpr(sec, d.Offset)
			sec.WriteU32(uint32(len(d.Init)))
			sec.WriteBytes(d.Init)
		}
		buf.WriteSection(wasm.SectionData, sec)
	}
	for _, c := range m.Customs {
		sec := &Buffer{}
		sec.WriteString(c.Name)
		sec.WriteBytes(c.Data)
		buf.WriteSection(wasm.SectionCustom, sec)
	}
	if m.Name != "" || len(m.FuncNames) > 0 {
		buf.WriteSection(wasm.SectionCustom, nameSection(m))
	}

	return buf.Bytes
}

func typeSection(m *ast.Module) *Buffer {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.Types)))
	for _, ft := range m.Types {
		sec.AppendByte(ast.FuncTypeMarker)
		sec.WriteU32(uint32(len(ft.Params)))
		for _, p := range ft.Params {
			sec.AppendByte(byte(p))
		}
		sec.WriteU32(uint32(len(ft.Results)))
		for _, r := range ft.Results {
			sec.AppendByte(byte(r))
		}
	}
	return sec
}

func importSection(m *ast.Module) *Buffer {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		sec.WriteString(imp.Module)
		sec.WriteString(imp.Name)
		sec.AppendByte(byte(imp.Kind))
		switch imp.Kind {
		case wasm.KindFunc:
			sec.WriteU32(imp.TypeIdx)
		case wasm.KindMemory:
			sec.WriteLimits(*imp.Memory)
		case wasm.KindGlobal:
			writeGlobalType(sec, *imp.Global)
		}
	}
	return sec
}

func globalSection(m *ast.Module) *Buffer {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.Globals)))
	for _, g := range m.Globals {
		writeGlobalType(sec, g.Type)
		encodeExpr(sec, g.Init)
	}
	return sec
}

func writeGlobalType(buf *Buffer, gt wasm.GlobalType) {
	buf.AppendByte(byte(gt.ValType))
	if gt.Mutable {
		buf.AppendByte(0x01)
	} else {
		buf.AppendByte(0x00)
	}
}

func codeSection(m *ast.Module) *Buffer {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.Code)))
	for _, c := range m.Code {
		code := &Buffer{}

		// Runs of equal local types share one entry.
		type run struct {
			count uint32
			vt    wasm.ValType
		}
		var runs []run
		for _, l := range c.Locals {
			if n := len(runs); n > 0 && runs[n-1].vt == l {
				runs[n-1].count++
				continue
			}
			runs = append(runs, run{1, l})
		}
		code.WriteU32(uint32(len(runs)))
		for _, r := range runs {
			code.WriteU32(r.count)
			code.AppendByte(byte(r.vt))
		}

		for _, ins := range c.Code {
			EncodeInstr(code, ins)
		}

		sec.WriteU32(uint32(len(code.Bytes)))
		sec.WriteBytes(code.Bytes)
	}
	return sec
}

func nameSection(m *ast.Module) *Buffer {
	sec := &Buffer{}
	sec.WriteString("name")
	if m.Name != "" {
		sub := &Buffer{}
		sub.WriteString(m.Name)
		sec.WriteSection(ast.NameSubModule, sub)
	}
	if len(m.FuncNames) > 0 {
		sub := &Buffer{}
		sub.WriteU32(uint32(len(m.FuncNames)))
		for _, n := range m.FuncNames {
			sub.WriteU32(n.Index)
			sub.WriteString(n.Name)
		}
		sec.WriteSection(ast.NameSubFunctions, sub)
	}
	return sec
}

func encodeExpr(buf *Buffer, instrs []ast.Instr) {
	for _, ins := range instrs {
		EncodeInstr(buf, ins)
	}
}
