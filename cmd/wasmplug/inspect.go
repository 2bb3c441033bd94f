package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"golang.org/x/term"

	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/plugin"
)

func (a *app) inspectCmd() *cobra.Command {
	var (
		interactive bool
		id          identity
	)
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Show every unit with its category, markers and exports",
		Long: `Lists every compiled unit with its exported functions. With -i an
interactive view lets you pick an exported function, enter its arguments
and call it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if interactive && !isTerminal(os.Stdout) {
				return fmt.Errorf("interactive mode needs a terminal")
			}
			p, pl, err := a.loadPlugin(ctx, args[0], &id)
			if err != nil {
				return err
			}
			defer closePlugin(ctx, p, pl)

			funcs, err := describe(ctx, pl)
			if err != nil {
				return err
			}
			if interactive {
				return runInteractive(ctx, pl, funcs)
			}
			writeDescription(ctx, a.stdout, pl, funcs)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "interactive mode with TUI")
	id.register(cmd)
	return cmd
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// unitInfo summarizes one unit for display.
type unitInfo struct {
	name     string
	category string
	abstract string
	markers  []string
}

// funcInfo is one exported function; parameters are shown as the WIT
// primitive matching their core type.
type funcInfo struct {
	unit       string
	name       string
	params     []paramInfo
	resultType string
	results    []api.ValueType
}

type paramInfo struct {
	name    string
	witType wit.Type
	typeStr string
}

func describe(ctx context.Context, pl *plugin.Plugin) ([]funcInfo, error) {
	var funcs []funcInfo
	for _, name := range pl.Loader.Names() {
		u, err := pl.Loader.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, exportedFuncs(u)...)
	}
	sort.Slice(funcs, func(i, j int) bool {
		if funcs[i].unit != funcs[j].unit {
			return funcs[i].unit < funcs[j].unit
		}
		return funcs[i].name < funcs[j].name
	})
	return funcs, nil
}

func exportedFuncs(u *loader.Unit) []funcInfo {
	var out []funcInfo
	for name, def := range u.ExportedFunctions() {
		fi := funcInfo{unit: u.Name(), name: name, results: def.ResultTypes()}
		paramNames := def.ParamNames()
		for i, vt := range def.ParamTypes() {
			pname := fmt.Sprintf("arg%d", i)
			if i < len(paramNames) && paramNames[i] != "" {
				pname = paramNames[i]
			}
			t := witFor(vt)
			fi.params = append(fi.params, paramInfo{
				name:    pname,
				witType: t,
				typeStr: capability.TypeString(t),
			})
		}
		if len(fi.results) > 0 {
			var rs []string
			for _, r := range fi.results {
				rs = append(rs, capability.TypeString(witFor(r)))
			}
			fi.resultType = strings.Join(rs, ", ")
		}
		out = append(out, fi)
	}
	return out
}

// witFor maps a core value type to the signed WIT primitive of its width.
func witFor(vt api.ValueType) wit.Type {
	switch vt {
	case api.ValueTypeI64:
		return wit.S64{}
	case api.ValueTypeF32:
		return wit.F32{}
	case api.ValueTypeF64:
		return wit.F64{}
	}
	return wit.S32{}
}

func units(ctx context.Context, pl *plugin.Plugin) []unitInfo {
	markers := make(map[string][]string)
	for _, e := range pl.Extensions() {
		m := e.Kind
		if e.Alias != "" {
			m += "=" + e.Alias
		}
		markers[e.Name] = append(markers[e.Name], m)
	}
	categories := make(map[string]string)
	for _, s := range pl.Classification.Selections() {
		categories[s.Unit.Name()] = s.Category
	}

	names := pl.Loader.Names()
	sort.Strings(names)
	out := make([]unitInfo, 0, len(names))
	for _, n := range names {
		ui := unitInfo{name: n, category: categories[n], markers: markers[n]}
		if u, err := pl.Loader.Load(ctx, n); err == nil {
			ui.abstract = u.AbstractReason(ctx)
		}
		out = append(out, ui)
	}
	return out
}

func writeDescription(ctx context.Context, w io.Writer, pl *plugin.Plugin, funcs []funcInfo) {
	d := pl.Descriptor
	fmt.Fprintf(w, "plugin %s %s (%s)\n", d.Name, d.Version, d.APIType)
	for _, ui := range units(ctx, pl) {
		fmt.Fprintf(w, "\n%s\n", ui.name)
		if ui.category != "" {
			fmt.Fprintf(w, "  category: %s\n", ui.category)
		}
		if len(ui.markers) > 0 {
			fmt.Fprintf(w, "  markers:  %s\n", strings.Join(ui.markers, ", "))
		}
		if ui.abstract != "" {
			fmt.Fprintf(w, "  abstract: %s\n", ui.abstract)
		}
		for _, f := range funcs {
			if f.unit == ui.name {
				fmt.Fprintf(w, "  %s\n", formatPlain(f))
			}
		}
	}
}

func formatPlain(f funcInfo) string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+p.typeStr)
	}
	s := f.name + "(" + strings.Join(params, ", ") + ")"
	if f.resultType != "" {
		s += " -> " + f.resultType
	}
	return s
}
