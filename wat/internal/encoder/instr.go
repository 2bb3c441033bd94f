package encoder

import (
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
)

// EncodeInstr appends one instruction with its immediates.
func EncodeInstr(buf *Buffer, ins ast.Instr) {
	buf.AppendByte(ins.Opcode)

	switch ins.Opcode {
	case ast.OpBr, ast.OpBrIf, ast.OpCall,
		ast.OpLocalGet, ast.OpLocalSet, ast.OpLocalTee,
		ast.OpGlobalGet, ast.OpGlobalSet:
		buf.WriteU32(ins.Imm.(uint32))

	case ast.OpI32Const:
		buf.WriteI32(ins.Imm.(int32))

	case ast.OpI64Const:
		buf.WriteI64(ins.Imm.(int64))

	case ast.OpF32Const:
		buf.WriteF32(ins.Imm.(float32))

	case ast.OpF64Const:
		buf.WriteF64(ins.Imm.(float64))

	case ast.OpBlock, ast.OpLoop, ast.OpIf:
		bt := ins.Imm.(ast.BlockType)
		if bt.TypeIdx >= 0 {
			buf.WriteI64(int64(bt.TypeIdx))
		} else {
			buf.AppendByte(bt.Simple)
		}

	case ast.OpMemorySize, ast.OpMemoryGrow:
		buf.AppendByte(0x00)

	case ast.OpBrTable:
		labels := ins.Imm.([]uint32)
		buf.WriteU32(uint32(len(labels) - 1))
		for _, label := range labels {
			buf.WriteU32(label)
		}

	case ast.OpPrefixMisc:
		buf.WriteU32(ins.Imm.(uint32))

	default:
		if ast.IsMemoryAccess(ins.Opcode) {
			ma := ins.Imm.(ast.Memarg)
			buf.WriteU32(ma.Align)
			buf.WriteU32(ma.Offset)
		}
	}
}
