package encoder

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
)

func TestBufferLEB128(t *testing.T) {
	tests := []struct {
		name  string
		write func(*Buffer)
		want  []byte
	}{
		{"u32 zero", func(b *Buffer) { b.WriteU32(0) }, []byte{0x00}},
		{"u32 624485", func(b *Buffer) { b.WriteU32(624485) }, []byte{0xE5, 0x8E, 0x26}},
		{"u32 max", func(b *Buffer) { b.WriteU32(0xFFFFFFFF) }, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"i32 -1", func(b *Buffer) { b.WriteI32(-1) }, []byte{0x7F}},
		{"i32 64", func(b *Buffer) { b.WriteI32(64) }, []byte{0xC0, 0x00}},
		{"i32 -123456", func(b *Buffer) { b.WriteI32(-123456) }, []byte{0xC0, 0xBB, 0x78}},
		{"i64 -129", func(b *Buffer) { b.WriteI64(-129) }, []byte{0xFF, 0x7E}},
		{"string", func(b *Buffer) { b.WriteString("ab") }, []byte{0x02, 'a', 'b'}},
		{"limits min", func(b *Buffer) { b.WriteLimits(wasm.Limits{Min: 1}) }, []byte{0x00, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Buffer{}
			tt.write(b)
			if !bytes.Equal(b.Bytes, tt.want) {
				t.Errorf("got % x, want % x", b.Bytes, tt.want)
			}
		})
	}
}

func TestEncodeSectionOrder(t *testing.T) {
	m := &ast.Module{
		Name:    "a.B",
		Types:   []wasm.FuncType{{}},
		Funcs:   []uint32{0},
		Code:    []ast.FuncBody{{Code: []ast.Instr{{Opcode: ast.OpEnd}}}},
		Customs: []wasm.CustomSection{{Name: "plugin:listen"}},
	}
	bin := Encode(m)

	var ids []byte
	for i := 8; i < len(bin); {
		ids = append(ids, bin[i])
		size := int(bin[i+1]) // every section here is shorter than 128 bytes
		i += 2 + size
	}
	want := []byte{wasm.SectionType, wasm.SectionFunction, wasm.SectionCode, wasm.SectionCustom, wasm.SectionCustom}
	if !bytes.Equal(ids, want) {
		t.Fatalf("section ids = %v, want %v", ids, want)
	}
	if !bytes.HasSuffix(bin, []byte{0x04, 'n', 'a', 'm', 'e', ast.NameSubModule, 0x04, 0x03, 'a', '.', 'B'}) {
		t.Errorf("name section missing at end: % x", bin)
	}
}
