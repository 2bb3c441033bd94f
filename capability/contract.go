package capability

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/wasm"
)

// Contract is a base capability: a set of exported functions with WIT
// signatures, optionally plus an exported memory.
type Contract struct {
	Name   string
	Funcs  []Func
	Memory bool
}

// NewContract parses decls into a contract.
func NewContract(name string, memory bool, decls ...string) (Contract, error) {
	c := Contract{Name: name, Memory: memory}
	for _, d := range decls {
		f, err := ParseFunc(d)
		if err != nil {
			return Contract{}, err
		}
		c.Funcs = append(c.Funcs, f)
	}
	return c, nil
}

// MustContract is NewContract for declarations known to be valid.
func MustContract(name string, memory bool, decls ...string) Contract {
	c, err := NewContract(name, memory, decls...)
	if err != nil {
		panic(err)
	}
	return c
}

// Check returns nil when u conforms to c, otherwise an error naming the
// first missing or mismatched export.
func (c Contract) Check(u *loader.Unit) error {
	fns := u.ExportedFunctions()
	for _, f := range c.Funcs {
		def, ok := fns[f.Name]
		if !ok {
			return fmt.Errorf("%s: missing export %q", c.Name, f.Name)
		}
		want := f.CoreType()
		got := coreType(def)
		if !want.Equal(got) {
			return fmt.Errorf("%s: export %q has type %s, want %s (%s)", c.Name, f.Name, got, want, f)
		}
	}
	if c.Memory && !u.HasMemory() {
		return fmt.Errorf("%s: no exported memory", c.Name)
	}
	return nil
}

// Satisfied reports whether u conforms to c.
func (c Contract) Satisfied(u *loader.Unit) bool {
	return c.Check(u) == nil
}

func coreType(def api.FunctionDefinition) wasm.FuncType {
	var ft wasm.FuncType
	for _, p := range def.ParamTypes() {
		ft.Params = append(ft.Params, wasm.ValType(p))
	}
	for _, r := range def.ResultTypes() {
		ft.Results = append(ft.Results, wasm.ValType(r))
	}
	return ft
}
