package loader

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/wasm"
)

// Unit is a materialized artifact: a compiled module plus its decoded
// interface. Instantiation happens on demand and at most once.
type Unit struct {
	loader   *Loader
	iface    *wasm.Interface
	compiled wazero.CompiledModule
	instance api.Module
	name     string
	payload  []byte

	// guarded by loader.linkMu
	checked  bool
	abstract bool
	reason   string
}

// Name returns the qualified name the unit was loaded under.
func (u *Unit) Name() string { return u.name }

// Payload returns the binary module.
func (u *Unit) Payload() []byte { return u.payload }

func (u *Unit) Interface() *wasm.Interface { return u.iface }

func (u *Unit) Imports() []wasm.Import { return u.iface.Imports }

func (u *Unit) Exports() []wasm.Export { return u.iface.Exports }

// ExportedFunctions returns the exported function definitions by name.
func (u *Unit) ExportedFunctions() map[string]api.FunctionDefinition {
	return u.compiled.ExportedFunctions()
}

// Export returns the export with the given name.
func (u *Unit) Export(name string) (wasm.Export, bool) {
	return u.iface.Export(name)
}

// HasMemory reports whether the unit exports a memory.
func (u *Unit) HasMemory() bool {
	return u.iface.ExportsMemory()
}

// CustomSection returns the data of the named custom section.
func (u *Unit) CustomSection(name string) ([]byte, bool) {
	return u.iface.CustomSection(name)
}

// Abstract reports whether some import of the unit can be satisfied
// neither by the host registry nor by a non-abstract unit of the
// namespace. Units on an import cycle are abstract.
func (u *Unit) Abstract(ctx context.Context) bool {
	l := u.loader
	l.linkMu.Lock()
	defer l.linkMu.Unlock()
	return l.abstract(ctx, u, map[*Unit]bool{})
}

// AbstractReason describes why the unit is abstract, or returns "".
func (u *Unit) AbstractReason(ctx context.Context) string {
	if !u.Abstract(ctx) {
		return ""
	}
	u.loader.linkMu.Lock()
	defer u.loader.linkMu.Unlock()
	return u.reason
}

func (l *Loader) abstract(ctx context.Context, u *Unit, visiting map[*Unit]bool) bool {
	if u.checked {
		return u.abstract
	}
	visiting[u] = true
	defer delete(visiting, u)

	reason := l.unsatisfied(ctx, u, visiting)
	u.checked = true
	u.abstract = reason != ""
	u.reason = reason
	return u.abstract
}

// unsatisfied returns a description of the first import that cannot be
// provided, or "".
func (l *Loader) unsatisfied(ctx context.Context, u *Unit, visiting map[*Unit]bool) string {
	for _, imp := range u.iface.Imports {
		if l.opts.Hosts.HasModule(imp.Module) {
			if imp.Kind != wasm.KindFunc {
				return "host module " + imp.Module + " only provides functions"
			}
			fn, ok := l.opts.Hosts.Lookup(imp.Module, imp.Name)
			if !ok {
				return "unknown host function " + imp.Module + "." + imp.Name
			}
			if !imp.Func.Equal(fn.Type()) {
				return "host function " + imp.Module + "." + imp.Name + " has signature " + fn.Type().String()
			}
			continue
		}

		dep, err := l.Load(ctx, imp.Module)
		if err != nil {
			return "module " + imp.Module + " is not available"
		}
		if visiting[dep] {
			return "import cycle through " + imp.Module
		}
		exp, ok := dep.iface.Export(imp.Name)
		if !ok || exp.Kind != imp.Kind {
			return "module " + imp.Module + " does not export " + imp.Kind.String() + " " + imp.Name
		}
		if imp.Kind == wasm.KindFunc && !imp.Func.Equal(*exp.Func) {
			return "import " + imp.Module + "." + imp.Name + " has an incompatible signature"
		}
		if l.abstract(ctx, dep, visiting) {
			return "module " + imp.Module + " is abstract"
		}
	}
	return ""
}

// Instantiate creates the unit's instance, instantiating the units it
// imports from first. It is an error to instantiate an abstract unit.
func (u *Unit) Instantiate(ctx context.Context) (api.Module, error) {
	if u.Abstract(ctx) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInstantiation).
			Name(u.name).Detail("unit is abstract: %s", u.AbstractReason(ctx)).Build()
	}
	l := u.loader
	l.linkMu.Lock()
	defer l.linkMu.Unlock()
	return l.instantiate(ctx, u)
}

func (l *Loader) instantiate(ctx context.Context, u *Unit) (api.Module, error) {
	if u.instance != nil {
		return u.instance, nil
	}
	if l.closed.Load() {
		return nil, errors.ErrClosed
	}
	for _, imp := range u.iface.Imports {
		if l.opts.Hosts.HasModule(imp.Module) {
			continue
		}
		dep, err := l.Load(ctx, imp.Module)
		if err != nil {
			return nil, err
		}
		if _, err := l.instantiate(ctx, dep); err != nil {
			return nil, err
		}
	}

	cfg := wazero.NewModuleConfig().WithName(u.name)
	mod, err := l.runtime.InstantiateModule(ctx, u.compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(u.name, err)
	}
	u.instance = mod
	Logger().Debug("instantiated unit", zap.String("name", u.name))
	return mod, nil
}

// Module returns the instance, or nil before Instantiate succeeded.
func (u *Unit) Module() api.Module {
	u.loader.linkMu.Lock()
	defer u.loader.linkMu.Unlock()
	return u.instance
}

// Memory returns the instance's exported memory, or nil.
func (u *Unit) Memory() api.Memory {
	if m := u.Module(); m != nil {
		return m.Memory()
	}
	return nil
}

// Call instantiates the unit if needed and calls the exported function fn.
func (u *Unit) Call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	mod, err := u.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	f := mod.ExportedFunction(fn)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "function "+fn, u.name)
	}
	res, err := f.Call(ctx, params...)
	if err != nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTrap).
			Name(u.name).Cause(err).Detail("call %s", fn).Build()
	}
	return res, nil
}
