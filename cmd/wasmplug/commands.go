package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-plugins/artifact"
	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/classify"
	"github.com/wippyai/wasm-plugins/compiler"
	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/manifest"
	"github.com/wippyai/wasm-plugins/plugin"
)

// identity holds the --name and --version overrides.
type identity struct {
	name    string
	version string
}

func (id *identity) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&id.name, "name", "", "plugin name (default: derived from the source name)")
	cmd.Flags().StringVar(&id.version, "version", "", "plugin version (default: derived from the source name)")
}

func (id *identity) resolve(path string) (string, string) {
	name, version := nameVersion(path)
	if id.name != "" {
		name = id.name
	}
	if id.version != "" {
		version = id.version
	}
	return name, version
}

// loadPlugin gathers, compiles and classifies the sources at path.
func (a *app) loadPlugin(ctx context.Context, path string, id *identity) (*plugin.Provider, *plugin.Plugin, error) {
	units, err := a.gather(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := plugin.NewProvider(ctx, a.providerOptions())
	if err != nil {
		return nil, nil, err
	}
	name, version := id.resolve(path)
	pl, err := p.LoadExtensions(ctx, units, name, version)
	if err != nil {
		_ = p.Close(ctx)
		return nil, nil, err
	}
	return p, pl, nil
}

func closePlugin(ctx context.Context, p *plugin.Provider, pl *plugin.Plugin) {
	_ = pl.Close(ctx)
	_ = p.Close(ctx)
}

func (a *app) compileCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile WAT sources into an artifact tree",
		Long: `Compiles a source file, or every source file below a directory, as one
batch. Diagnostics go to stderr. With --out the compiled modules are written
as a directory tree, one .wasm file per qualified name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			units, err := a.gather(args[0])
			if err != nil {
				return err
			}
			s, err := compiler.NewSession(ctx, compiler.Options{
				Hosts:   host.Standard(),
				Echo:    a.stderr,
				Metrics: a.metrics,
				Busy:    a.cfg.Busy(),
				Verbose: a.cfg.Compiler.Verbose,
			})
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			res, err := s.Compile(ctx, units)
			if err != nil {
				return err
			}
			for _, m := range res.Modules {
				fmt.Fprintln(a.stdout, m)
			}
			if out != "" {
				if err := res.Namespace.Export(out); err != nil {
					return err
				}
				a.logger.Info("wrote artifacts", zap.String("dir", out), zap.Int("modules", len(res.Modules)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write compiled modules below this directory")
	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	var prebuilt bool
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "List capability markers and extension categories",
		Long: `Compiles the sources at path and lists every capability marker, the
abstract units that were skipped and the unit chosen for each extension
category. With --prebuilt, path is an artifact tree written by
"wasmplug compile --out" and nothing is compiled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if prebuilt {
				return a.scanPrebuilt(ctx, args[0])
			}
			p, pl, err := a.loadPlugin(ctx, args[0], &identity{})
			if err != nil {
				return err
			}
			defer closePlugin(ctx, p, pl)
			a.printScan(pl.Capabilities, pl.Classification)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prebuilt, "prebuilt", false, "scan a compiled artifact tree")
	return cmd
}

func (a *app) scanPrebuilt(ctx context.Context, dir string) error {
	ns, err := artifact.FromFS(os.DirFS(dir), ".")
	if err != nil {
		return err
	}
	l, err := loader.New(ctx, ns, loader.Options{
		Hosts:            host.Standard(),
		Metrics:          a.metrics,
		MemoryLimitPages: a.cfg.Loader.MemoryLimitPages,
	})
	if err != nil {
		return err
	}
	defer l.Close(ctx)

	s := &capability.Scanner{Concurrency: a.cfg.Loader.ScanConcurrency, Metrics: a.metrics}
	x, err := s.Scan(ctx, l, capability.DefaultRegistry())
	if err != nil {
		return err
	}
	a.printScan(x, classify.New(a.metrics).Classify(x.Units()))
	return nil
}

func (a *app) printScan(x *capability.Index, classes *classify.Result) {
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tUNIT\tALIAS")
	for _, e := range x.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, e.Name, e.Alias)
	}
	_ = w.Flush()

	if abstract := x.Abstract(); len(abstract) > 0 {
		sorted := append([]string(nil), abstract...)
		sort.Strings(sorted)
		fmt.Fprintln(a.stdout, "\nabstract:")
		for _, n := range sorted {
			fmt.Fprintf(a.stdout, "  %s\n", n)
		}
	}

	fmt.Fprintln(a.stdout, "\ncategories:")
	for _, s := range classes.Selections() {
		fmt.Fprintf(a.stdout, "  %s: %s\n", s.Category, s.Unit.Name())
	}
}

func (a *app) manifestCmd() *cobra.Command {
	var id identity
	cmd := &cobra.Command{
		Use:   "manifest <path>",
		Short: "Print the synthesized plugin descriptor as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, pl, err := a.loadPlugin(ctx, args[0], &id)
			if err != nil {
				return err
			}
			defer closePlugin(ctx, p, pl)
			return writeManifest(a, pl.Descriptor)
		},
	}
	id.register(cmd)
	return cmd
}

func writeManifest(a *app, d manifest.Descriptor) error {
	out, err := d.YAML()
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}

func (a *app) runCmd() *cobra.Command {
	var (
		web   string
		start bool
	)
	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Run the plugin's command extension",
		Long: `Runs the command extension and exits with its status. With --web the web
extension handles the given request instead; with --start the generic
extension's start function is called. Guest output goes to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, pl, err := a.loadPlugin(ctx, args[0], &identity{})
			if err != nil {
				return err
			}
			defer closePlugin(ctx, p, pl)

			switch {
			case start:
				return pl.Start(ctx, a.stdout)
			case cmd.Flags().Changed("web"):
				status, err := pl.HandleWeb(ctx, web, a.stdout)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stderr, "\nstatus %d\n", status)
				return nil
			}
			code, err := pl.RunCommand(ctx, a.stdout)
			if err != nil {
				return err
			}
			if code != 0 {
				return fmt.Errorf("command exited with status %d", code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&web, "web", "", "request passed to the web extension")
	cmd.Flags().BoolVar(&start, "start", false, "call the generic extension's start")
	cmd.MarkFlagsMutuallyExclusive("web", "start")
	return cmd
}
