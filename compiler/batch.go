package compiler

import (
	"context"
	"strings"

	"github.com/wippyai/wasm-plugins/artifact"
	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/internal/graph"
	"github.com/wippyai/wasm-plugins/source"
	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat"
)

// batch holds the modules of one compile run.
type batch struct {
	session *Session
	byName  map[string]*wat.Module
	modules []*wat.Module
}

func (b *batch) report() *diag.Reporter {
	return b.session.reporter
}

// addUnit compiles one unit and names its modules. A unit may hold one
// unnamed module, which takes the unit's file stem as its name.
func (b *batch) addUnit(u source.Unit) {
	r := b.report()
	unnamed := 0
	for _, m := range wat.CompileUnit(u.Name, u.Text, r) {
		if m.Name == "" {
			unnamed++
			if unnamed > 1 {
				r.Errorf(m.Pos, "unit %s has more than one unnamed module", u.Name)
				continue
			}
			m.Name = wat.StemName(u.Name)
		}
		if err := artifact.ValidName(m.Name); err != nil {
			detail := err.Error()
			var e *errors.Error
			if errors.As(err, &e) {
				detail = e.Detail
			}
			r.Errorf(m.Pos, "invalid module name %q: %s", m.Name, detail)
			continue
		}
		if prev, dup := b.byName[m.Name]; dup {
			r.Errorf(m.Pos, "duplicate module %s, first defined at %s", m.Name, prev.Pos)
			continue
		}
		b.byName[m.Name] = m
		b.modules = append(b.modules, m)
		if b.session.opts.Verbose {
			r.Infof(m.Pos, "compiled module %s (%d bytes)", m.Name, len(m.Binary))
		}
	}
}

// validate runs every binary through the wazero compiler.
func (b *batch) validate(ctx context.Context) {
	for _, m := range b.modules {
		cm, err := b.session.runtime.CompileModule(ctx, m.Binary)
		if err != nil {
			b.report().Errorf(m.Pos, "module %s is invalid: %v", m.Name, err)
			continue
		}
		_ = cm.Close(ctx)
	}
}

// link checks every import against the batch and the host registry, then
// rejects import cycles between batch modules.
func (b *batch) link() {
	g := graph.New()
	for _, m := range b.modules {
		g.AddNode(m.Name)
		for _, imp := range m.Imports {
			if target, ok := b.byName[imp.Module]; ok {
				g.AddEdge(m.Name, target.Name)
				b.checkBatchImport(m, imp, target)
				continue
			}
			if b.session.opts.Hosts.HasModule(imp.Module) {
				b.checkHostImport(m, imp)
				continue
			}
			b.report().Warnf(imp.Pos, "module %s imports unknown module %q; it will be abstract", m.Name, imp.Module)
		}
	}

	for _, cycle := range g.Cycles() {
		m := b.byName[cycle[0]]
		b.report().Errorf(m.Pos, "import cycle: %s", strings.Join(cycle, " -> "))
	}
}

func (b *batch) checkBatchImport(m *wat.Module, imp wat.Import, target *wat.Module) {
	r := b.report()
	var exp *wasm.Export
	for i := range target.Exports {
		if target.Exports[i].Name == imp.Name {
			exp = &target.Exports[i]
			break
		}
	}
	switch {
	case exp == nil:
		r.Errorf(imp.Pos, "module %s has no export %q imported by %s", target.Name, imp.Name, m.Name)
	case exp.Kind != imp.Kind:
		r.Errorf(imp.Pos, "import %s.%s: expected %s, %s exports a %s", imp.Module, imp.Name, imp.Kind, target.Name, exp.Kind)
	case imp.Kind == wasm.KindFunc && exp.Func != nil && !imp.Func.Equal(*exp.Func):
		r.Errorf(imp.Pos, "import %s.%s: signature %s does not match exported %s", imp.Module, imp.Name, imp.Func, exp.Func)
	case imp.Kind == wasm.KindGlobal && exp.Global != nil && *imp.Global != *exp.Global:
		r.Errorf(imp.Pos, "import %s.%s: global type %s does not match exported %s", imp.Module, imp.Name, imp.Global, exp.Global)
	}
}

func (b *batch) checkHostImport(m *wat.Module, imp wat.Import) {
	r := b.report()
	if imp.Kind != wasm.KindFunc {
		r.Errorf(imp.Pos, "import %s.%s: host module %s only provides functions", imp.Module, imp.Name, imp.Module)
		return
	}
	fn, ok := b.session.opts.Hosts.Lookup(imp.Module, imp.Name)
	if !ok {
		r.Errorf(imp.Pos, "module %s imports unknown host function %s.%s", m.Name, imp.Module, imp.Name)
		return
	}
	if want := fn.Type(); !imp.Func.Equal(want) {
		r.Errorf(imp.Pos, "import %s.%s: signature %s does not match host function %s", imp.Module, imp.Name, imp.Func, want)
	}
}
