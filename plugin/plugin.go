// Package plugin ties the pipeline together: it compiles a plugin's source
// units, loads and scans the produced namespace, classifies the units and
// synthesizes the plugin descriptor.
package plugin

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/classify"
	"github.com/wippyai/wasm-plugins/compiler"
	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/manifest"
	"github.com/wippyai/wasm-plugins/metrics"
	"github.com/wippyai/wasm-plugins/source"
)

// Options configure a Provider. Zero values select the defaults.
type Options struct {
	// Hosts defaults to host.Standard().
	Hosts   *host.Registry
	Metrics *metrics.Collector
	Echo    io.Writer
	Busy    compiler.BusyPolicy
	Verbose bool

	MemoryLimitPages uint32
	ScanConcurrency  int

	// Markers defaults to capability.DefaultRegistry().
	Markers *capability.Registry
	// Categories defaults to classify.DefaultCategories().
	Categories []classify.Category
}

// Provider turns source units into plugins. It owns one compilation
// session; LoadExtensions calls share its busy policy.
type Provider struct {
	session *compiler.Session
	opts    Options
}

func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Hosts == nil {
		opts.Hosts = host.Standard()
	}
	if opts.Markers == nil {
		opts.Markers = capability.DefaultRegistry()
	}
	s, err := compiler.NewSession(ctx, compiler.Options{
		Hosts:   opts.Hosts,
		Echo:    opts.Echo,
		Metrics: opts.Metrics,
		Busy:    opts.Busy,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{session: s, opts: opts}, nil
}

// Session exposes the provider's compilation session.
func (p *Provider) Session() *compiler.Session {
	return p.session
}

func (p *Provider) Close(ctx context.Context) error {
	return p.session.Close(ctx)
}

// LoadExtensions compiles units and builds the plugin. A failed compile
// returns the *errors.CompileError carrying the diagnostics.
func (p *Provider) LoadExtensions(ctx context.Context, units []source.Unit, name, version string) (*Plugin, error) {
	start := time.Now()
	res, err := p.session.Compile(ctx, units)
	if err != nil {
		return nil, err
	}

	l, err := loader.New(ctx, res.Namespace, loader.Options{
		Hosts:            p.opts.Hosts,
		Metrics:          p.opts.Metrics,
		MemoryLimitPages: p.opts.MemoryLimitPages,
	})
	if err != nil {
		return nil, err
	}

	scanner := &capability.Scanner{Concurrency: p.opts.ScanConcurrency, Metrics: p.opts.Metrics}
	index, err := scanner.Scan(ctx, l, p.opts.Markers)
	if err != nil {
		_ = l.Close(ctx)
		return nil, err
	}

	classes := classify.New(p.opts.Metrics, p.opts.Categories...).Classify(index.Units())
	desc := manifest.Synthesize(name, version, classes.Selections())

	Logger().Info("loaded plugin",
		zap.String("name", name),
		zap.String("version", version),
		zap.String("run_id", res.RunID),
		zap.Int("units", len(index.Units())),
		zap.Int("extensions", len(index.All())),
		zap.Duration("elapsed", time.Since(start)))

	return &Plugin{
		Descriptor:     desc,
		Diagnostics:    res.Diagnostics,
		Capabilities:   index,
		Classification: classes,
		Loader:         l,
		RunID:          res.RunID,
	}, nil
}

// Plugin is a loaded plugin.
type Plugin struct {
	Descriptor     manifest.Descriptor
	Diagnostics    diag.Diagnostics
	Capabilities   *capability.Index
	Classification *classify.Result
	Loader         *loader.Loader
	RunID          string
}

// Extensions lists every capability entry found in the plugin.
func (pl *Plugin) Extensions() []capability.Entry {
	return pl.Capabilities.All()
}

// Module returns the unit selected for category.
func (pl *Plugin) Module(category string) (*loader.Unit, bool) {
	return pl.Classification.Get(category)
}

func (pl *Plugin) Close(ctx context.Context) error {
	return pl.Loader.Close(ctx)
}

func (pl *Plugin) unit(category string) (*loader.Unit, error) {
	u, ok := pl.Module(category)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, category, pl.Descriptor.Name)
	}
	return u, nil
}

// RunCommand calls run on the command extension. Guest writes go to out.
func (pl *Plugin) RunCommand(ctx context.Context, out io.Writer) (int32, error) {
	u, err := pl.unit(classify.CommandExtension)
	if err != nil {
		return 0, err
	}
	res, err := u.Call(host.WithOutput(ctx, out), "run")
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

// HandleWeb copies request into the web extension's memory through alloc
// and calls handle with it.
func (pl *Plugin) HandleWeb(ctx context.Context, request string, out io.Writer) (uint32, error) {
	u, err := pl.unit(classify.WebExtension)
	if err != nil {
		return 0, err
	}
	ctx = host.WithOutput(ctx, out)
	res, err := u.Call(ctx, "alloc", uint64(len(request)))
	if err != nil {
		return 0, err
	}
	ptr := uint32(res[0])
	if !u.Memory().Write(ptr, []byte(request)) {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Name(u.Name()).Detail("alloc returned %d, outside guest memory", ptr).Build()
	}
	res, err = u.Call(ctx, "handle", uint64(ptr), uint64(len(request)))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

// Start calls start on the generic extension.
func (pl *Plugin) Start(ctx context.Context, out io.Writer) error {
	u, err := pl.unit(classify.GenericExtension)
	if err != nil {
		return err
	}
	_, err = u.Call(host.WithOutput(ctx, out), "start")
	return err
}
