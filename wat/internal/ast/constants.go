package ast

const BlockTypeEmpty byte = 0x40

const (
	FuncTypeMarker byte = 0x60
	DataFlagActive byte = 0x00
)

// Name section subsections.
const (
	NameSubModule    byte = 0
	NameSubFunctions byte = 1
)

const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpBrTable     byte = 0x0E
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
	OpSelect      byte = 0x1B
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpLocalTee    byte = 0x22
	OpGlobalGet   byte = 0x23
	OpGlobalSet   byte = 0x24
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpF32Const    byte = 0x43
	OpF64Const    byte = 0x44
	OpMemorySize  byte = 0x3F
	OpMemoryGrow  byte = 0x40
	OpPrefixMisc  byte = 0xFC
)

// IsMemoryAccess reports whether op is a load or store taking a memarg.
func IsMemoryAccess(op byte) bool {
	return op >= 0x28 && op <= 0x3E
}
