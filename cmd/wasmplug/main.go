// Command wasmplug compiles WAT plugin sources and inspects the resulting
// plugin: its capability markers, extension categories and descriptor.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/classify"
	"github.com/wippyai/wasm-plugins/compiler"
	"github.com/wippyai/wasm-plugins/config"
	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/metrics"
	"github.com/wippyai/wasm-plugins/plugin"
	"github.com/wippyai/wasm-plugins/source"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector

	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wasmplug",
		Short: "Compile and inspect WebAssembly text plugins",
		Long: `wasmplug compiles a plugin's WAT sources as one batch, links the
modules against each other and the plugin:host module, and reports which
units carry capability markers and which extension categories they fill.

Plugin name and version come from the source name (hello-1.2.wat gives
hello 1.2) unless --name and --version are set.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRunE: func(*cobra.Command, []string) error { return a.teardown() },
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file (YAML)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose compiler output")

	root.AddCommand(
		a.compileCmd(),
		a.scanCmd(),
		a.manifestCmd(),
		a.runCmd(),
		a.inspectCmd(),
	)
	return root
}

func (a *app) setup(*cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Compiler.Verbose = true
	}
	a.cfg = cfg

	if a.logger == nil {
		logger, err := cfg.ZapConfig().Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}
	compiler.SetLogger(a.logger.Named("compiler"))
	loader.SetLogger(a.logger.Named("loader"))
	host.SetLogger(a.logger.Named("guest"))
	capability.SetLogger(a.logger.Named("scan"))
	classify.SetLogger(a.logger.Named("classify"))
	plugin.SetLogger(a.logger.Named("plugin"))

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.NewCollector(a.registry)
	}
	return nil
}

func (a *app) teardown() error {
	if a.registry != nil {
		fmt.Fprintln(a.stderr)
		if err := metrics.WriteText(a.stderr, a.registry); err != nil {
			return err
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

func (a *app) gather(path string) ([]source.Unit, error) {
	units, err := source.GatherPath(path, a.cfg.Compiler.SourceSuffix)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("gathered sources", zap.String("path", path), zap.Int("units", len(units)))
	return units, nil
}

func (a *app) providerOptions() plugin.Options {
	return plugin.Options{
		Metrics:          a.metrics,
		Echo:             a.stderr,
		Busy:             a.cfg.Busy(),
		Verbose:          a.cfg.Compiler.Verbose,
		MemoryLimitPages: a.cfg.Loader.MemoryLimitPages,
		ScanConcurrency:  a.cfg.Loader.ScanConcurrency,
	}
}
