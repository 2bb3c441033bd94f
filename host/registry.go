// Package host defines the host modules that plugin units may import.
package host

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/wasm"
)

// Func is a host function exported to guests.
type Func struct {
	Handler api.GoModuleFunc
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Type returns the function's core signature.
func (f *Func) Type() wasm.FuncType {
	ft := wasm.FuncType{}
	for _, p := range f.Params {
		ft.Params = append(ft.Params, wasm.ValType(p))
	}
	for _, r := range f.Results {
		ft.Results = append(ft.Results, wasm.ValType(r))
	}
	return ft
}

// Registry holds host functions grouped by module name.
type Registry struct {
	modules map[string]map[string]*Func
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]map[string]*Func)}
}

// Define registers fn as module.name, replacing an existing definition.
func (r *Registry) Define(module, name string, fn api.GoModuleFunc, params, results []api.ValueType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	funcs := r.modules[module]
	if funcs == nil {
		funcs = make(map[string]*Func)
		r.modules[module] = funcs
	}
	funcs[name] = &Func{
		Handler: fn,
		Module:  module,
		Name:    name,
		Params:  params,
		Results: results,
	}
}

func (r *Registry) Lookup(module, name string) (*Func, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.modules[module][name]
	return f, ok
}

func (r *Registry) HasModule(module string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[module]
	return ok
}

// Modules returns the sorted module names.
func (r *Registry) Modules() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modules))
	for m := range r.modules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Instantiate builds every module into rt. Modules rt already holds are
// left alone.
func (r *Registry) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	for _, module := range r.Modules() {
		if rt.Module(module) != nil {
			continue
		}
		r.mu.RLock()
		funcs := make([]*Func, 0, len(r.modules[module]))
		for _, f := range r.modules[module] {
			funcs = append(funcs, f)
		}
		r.mu.RUnlock()
		sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })

		builder := rt.NewHostModuleBuilder(module)
		for _, f := range funcs {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(f.Handler, f.Params, f.Results).
				Export(f.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "instantiate host module "+module)
		}
	}
	return nil
}
