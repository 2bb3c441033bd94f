package wat

import (
	"errors"
	"path"
	"strings"

	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat/internal/ast"
	"github.com/wippyai/wasm-plugins/wat/internal/encoder"
	"github.com/wippyai/wasm-plugins/wat/internal/parser"
	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

// Module is one compiled text module.
type Module struct {
	// Name is the module identifier without '$'; empty when unnamed.
	Name           string
	File           string
	Binary         []byte
	Imports        []Import
	Exports        []wasm.Export
	CustomSections []wasm.CustomSection
	Pos            diag.Pos
}

// Import is an import together with where it was declared.
type Import struct {
	wasm.Import
	Pos diag.Pos
}

// CompileUnit compiles every module of one source unit. Problems are
// reported to sink with positions in file; compilation carries on past a
// failing module field so that one run reports as many errors as it can.
// Only modules without errors are returned.
func CompileUnit(file, source string, sink diag.Sink) []*Module {
	tokens, lexErrs := token.Tokenize(source)
	for _, e := range lexErrs {
		sink.Report(diag.Diagnostic{
			Severity: diag.Error,
			Pos:      diag.Pos{File: file, Line: e.Pos.Line, Col: e.Pos.Col},
			Message:  e.Msg,
		})
	}
	nodes, readErrs := parser.Read(tokens)
	for _, e := range readErrs {
		sink.Report(diag.Diagnostic{
			Severity: diag.Error,
			Pos:      diag.Pos{File: file, Line: e.Pos.Line, Col: e.Pos.Col},
			Message:  e.Msg,
		})
	}

	parsed := parser.New(file, sink).Parse(nodes)
	if len(lexErrs) > 0 || len(readErrs) > 0 {
		return nil
	}

	mods := make([]*Module, 0, len(parsed))
	for _, m := range parsed {
		mods = append(mods, build(file, m))
	}
	return mods
}

func build(file string, m *ast.Module) *Module {
	out := &Module{
		Name:           m.Name,
		File:           file,
		Binary:         encoder.Encode(m),
		CustomSections: m.Customs,
		Pos:            diag.Pos{File: file, Line: m.Pos.Line, Col: m.Pos.Col},
	}
	for _, imp := range m.Imports {
		wi := wasm.Import{Module: imp.Module, Name: imp.Name, Kind: imp.Kind, Global: imp.Global, Memory: imp.Memory}
		if imp.Kind == wasm.KindFunc {
			ft := m.Types[imp.TypeIdx]
			wi.Func = &ft
		}
		out.Imports = append(out.Imports, Import{
			Import: wi,
			Pos:    diag.Pos{File: file, Line: imp.Pos.Line, Col: imp.Pos.Col},
		})
	}
	for _, e := range m.Exports {
		we := wasm.Export{Name: e.Name, Kind: e.Kind, Index: e.Idx}
		switch e.Kind {
		case wasm.KindFunc:
			if ft, ok := m.FuncType(e.Idx); ok {
				we.Func = &ft
			}
		case wasm.KindGlobal:
			if gt, ok := m.GlobalType(e.Idx); ok {
				we.Global = &gt
			}
		}
		out.Exports = append(out.Exports, we)
	}
	return out
}

// Compile compiles source holding a single module and returns its binary.
func Compile(source string) ([]byte, error) {
	r := diag.NewReporter(nil)
	mods := CompileUnit("", source, r)
	if r.HasErrors() {
		return nil, errors.New(firstError(r.Snapshot()))
	}
	if len(mods) == 0 {
		return nil, errors.New("no module in source")
	}
	return mods[0].Binary, nil
}

func firstError(d diag.Diagnostics) string {
	errs := d.Errors()
	msg := errs[0].String()
	if len(errs) > 1 {
		msg += " (and more)"
	}
	return msg
}

// StemName derives a module name from a unit file name: the base name
// without its extension, with '.' replaced by '_'.
func StemName(file string) string {
	base := path.Base(strings.ReplaceAll(file, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.ReplaceAll(base, ".", "_")
}
