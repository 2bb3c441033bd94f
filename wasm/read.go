package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-plugins/wasm/internal/binary"
)

var (
	ErrInvalidMagic   = errors.New("wasm: invalid magic number")
	ErrInvalidVersion = errors.New("wasm: unsupported binary version")
)

// ReadInterface decodes the imports, exports, memories and custom sections
// of a binary module. Function bodies and data are skipped; the result says
// nothing about whether the module validates.
func ReadInterface(data []byte) (*Interface, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	d := &decoder{iface: &Interface{}}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}
		sr := binary.NewReader(body)

		switch id {
		case SectionCustom:
			err = d.custom(sr)
		case SectionType:
			err = d.typeSection(sr)
		case SectionImport:
			err = d.imports(sr)
		case SectionFunction:
			err = d.functions(sr)
		case SectionMemory:
			err = d.memories(sr)
		case SectionGlobal:
			err = d.globalSection(sr)
		case SectionExport:
			err = d.exports(sr)
		case SectionTable, SectionStart, SectionElement, SectionCode, SectionData, SectionDataCount:
		default:
			err = fmt.Errorf("unknown section ID 0x%02x", id)
		}
		if err != nil {
			return nil, sr.WrapError(sectionName(id), err)
		}
	}
	return d.iface, nil
}

type decoder struct {
	iface   *Interface
	types   []FuncType
	funcs   []uint32 // type index per function, imports first
	globals []GlobalType
}

func (d *decoder) custom(r *binary.Reader) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data := r.Remaining()
	d.iface.CustomSections = append(d.iface.CustomSections, CustomSection{Name: name, Data: data})
	if name == "name" {
		d.iface.Name = moduleName(data)
	}
	return nil
}

// moduleName extracts subsection 0 of a name section. A malformed name
// section is ignored, as engines do.
func moduleName(data []byte) string {
	r := binary.NewReader(data)
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return ""
		}
		size, err := r.ReadU32()
		if err != nil {
			return ""
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return ""
		}
		if id == 0 {
			name, err := binary.NewReader(body).ReadName()
			if err != nil {
				return ""
			}
			return name
		}
	}
	return ""
}

func (d *decoder) typeSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("type %d: unsupported type form 0x%02x", i, form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		d.types = append(d.types, FuncType{Params: params, Results: results})
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	raw, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	vts := make([]ValType, n)
	for i, b := range raw {
		vts[i] = ValType(b)
	}
	return vts, nil
}

func (d *decoder) funcType(idx uint32) (*FuncType, error) {
	if int(idx) >= len(d.types) {
		return nil, fmt.Errorf("type index %d out of range", idx)
	}
	ft := d.types[idx]
	return &ft, nil
}

func (d *decoder) imports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := Import{Module: module, Name: name, Kind: ExternKind(kind)}

		switch imp.Kind {
		case KindFunc:
			idx, err := r.ReadU32()
			if err != nil {
				return err
			}
			if imp.Func, err = d.funcType(idx); err != nil {
				return err
			}
			d.funcs = append(d.funcs, idx)
		case KindTable:
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			if _, err := readLimits(r); err != nil {
				return err
			}
		case KindMemory:
			lim, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Memory = &lim
			d.iface.Memories++
		case KindGlobal:
			gt, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Global = &gt
			d.globals = append(d.globals, gt)
		default:
			return fmt.Errorf("unknown import kind %d", kind)
		}
		d.iface.Imports = append(d.iface.Imports, imp)
	}
	return nil
}

func (d *decoder) functions(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		d.funcs = append(d.funcs, idx)
	}
	return nil
}

func (d *decoder) memories(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := readLimits(r); err != nil {
			return err
		}
	}
	d.iface.Memories += int(count)
	return nil
}

// globalSection reads global types, skipping each constant init expression.
func (d *decoder) globalSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		if err := skipInitExpr(r); err != nil {
			return err
		}
		d.globals = append(d.globals, gt)
	}
	return nil
}

func (d *decoder) exports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		exp := Export{Name: name, Kind: ExternKind(kind), Index: idx}
		switch exp.Kind {
		case KindFunc:
			if int(idx) >= len(d.funcs) {
				return fmt.Errorf("export %q: function index %d out of range", name, idx)
			}
			if exp.Func, err = d.funcType(d.funcs[idx]); err != nil {
				return err
			}
		case KindGlobal:
			if int(idx) >= len(d.globals) {
				return fmt.Errorf("export %q: global index %d out of range", name, idx)
			}
			gt := d.globals[idx]
			exp.Global = &gt
		}
		d.iface.Exports = append(d.iface.Exports, exp)
	}
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var lim Limits
	if lim.Min, err = r.ReadU32(); err != nil {
		return Limits{}, err
	}
	switch flag {
	case 0x00:
	case 0x01:
		hi, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		lim.Max = &hi
	default:
		return Limits{}, fmt.Errorf("unsupported limits flag 0x%02x", flag)
	}
	return lim, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid mutability 0x%02x", mut)
	}
	return GlobalType{ValType: ValType(vt), Mutable: mut == 1}, nil
}

// skipInitExpr consumes one constant expression up to its end opcode.
func skipInitExpr(r *binary.Reader) error {
	for {
		op, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch op {
		case 0x0B: // end
			return nil
		case 0x41, 0x42, 0x23, 0xD2: // i32.const, i64.const, global.get, ref.func
			if err := skipLEB(r); err != nil {
				return err
			}
		case 0x43:
			err = r.Skip(4)
		case 0x44:
			err = r.Skip(8)
		case 0xD0: // ref.null
			_, err = r.ReadByte()
		default:
			return fmt.Errorf("unsupported opcode 0x%02x in constant expression", op)
		}
		if err != nil {
			return err
		}
	}
}

func skipLEB(r *binary.Reader) error {
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b&0x80 == 0 {
			return nil
		}
	}
	return binary.ErrOverflow
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom section"
	case SectionType:
		return "type section"
	case SectionImport:
		return "import section"
	case SectionFunction:
		return "function section"
	case SectionMemory:
		return "memory section"
	case SectionGlobal:
		return "global section"
	case SectionExport:
		return "export section"
	}
	return fmt.Sprintf("section %d", id)
}
