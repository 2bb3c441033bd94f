package wasm

import (
	"strconv"
	"strings"
)

// Binary format magic and version.
const (
	Magic   uint32 = 0x6D736100
	Version uint32 = 0x01
)

// Section IDs.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
)

// ValType is a core value type encoding.
type ValType byte

const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValV128    ValType = 0x7B
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	}
	return "valtype(0x" + strconv.FormatUint(uint64(v), 16) + ")"
}

// ExternKind identifies what an import or export refers to.
type ExternKind byte

const (
	KindFunc   ExternKind = 0
	KindTable  ExternKind = 1
	KindMemory ExternKind = 2
	KindGlobal ExternKind = 3
)

func (k ExternKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) Equal(other FuncType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i, p := range ft.Params {
		if p != other.Params[i] {
			return false
		}
	}
	for i, r := range ft.Results {
		if r != other.Results[i] {
			return false
		}
	}
	return true
}

// String renders the signature as "(i32, i32) -> i32".
func (ft FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range ft.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	switch len(ft.Results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(ft.Results[0].String())
	default:
		b.WriteByte('(')
		for i, r := range ft.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

type GlobalType struct {
	ValType ValType
	Mutable bool
}

func (g GlobalType) String() string {
	if g.Mutable {
		return "mut " + g.ValType.String()
	}
	return g.ValType.String()
}

// Limits bound a memory in 64KiB pages.
type Limits struct {
	Max *uint32
	Min uint32
}

// Import describes one import. Exactly one of Func, Global and Memory is
// set for the corresponding kind; tables carry no descriptor.
type Import struct {
	Func   *FuncType
	Global *GlobalType
	Memory *Limits
	Module string
	Name   string
	Kind   ExternKind
}

// Export describes one export. Func or Global is set for those kinds.
type Export struct {
	Func   *FuncType
	Global *GlobalType
	Name   string
	Index  uint32
	Kind   ExternKind
}

type CustomSection struct {
	Name string
	Data []byte
}

// Interface is the linkable surface of a binary module.
type Interface struct {
	// Name is the module name recorded in the name section, if any.
	Name           string
	Imports        []Import
	Exports        []Export
	CustomSections []CustomSection
	// Memories counts imported and defined memories.
	Memories int
}

// Export returns the export with the given name.
func (i *Interface) Export(name string) (Export, bool) {
	for _, e := range i.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// CustomSection returns the data of the first custom section with the name.
func (i *Interface) CustomSection(name string) ([]byte, bool) {
	for _, c := range i.CustomSections {
		if c.Name == name {
			return c.Data, true
		}
	}
	return nil, false
}

// ExportsMemory reports whether some memory is exported.
func (i *Interface) ExportsMemory() bool {
	for _, e := range i.Exports {
		if e.Kind == KindMemory {
			return true
		}
	}
	return false
}
