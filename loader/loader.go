// Package loader materializes compiled units from an artifact namespace.
package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/wasm-plugins/artifact"
	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/metrics"
	"github.com/wippyai/wasm-plugins/wasm"
)

// Options configure a Loader.
type Options struct {
	Hosts   *host.Registry
	Metrics *metrics.Collector
	// MemoryLimitPages caps every instance's memory; zero keeps the
	// wazero default.
	MemoryLimitPages uint32
}

// Loader resolves qualified names into Units. Each name is materialized at
// most once for the loader's lifetime; concurrent loads of one name share
// the work.
type Loader struct {
	ns      *artifact.Namespace
	runtime wazero.Runtime
	opts    Options
	group   singleflight.Group
	units   map[string]*Unit
	mu      sync.RWMutex
	// linkMu serializes abstractness checks and instantiation, which walk
	// several units at once.
	linkMu sync.Mutex
	closed atomic.Bool
}

// New creates a loader over ns with its own wazero runtime. The host
// registry's modules are instantiated into that runtime.
func New(ctx context.Context, ns *artifact.Namespace, opts Options) (*Loader, error) {
	cfg := wazero.NewRuntimeConfig()
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if opts.Hosts != nil {
		if err := opts.Hosts.Instantiate(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
	}
	return &Loader{
		ns:      ns,
		runtime: rt,
		opts:    opts,
		units:   make(map[string]*Unit),
	}, nil
}

func (l *Loader) Namespace() *artifact.Namespace {
	return l.ns
}

// Names lists every qualified name in the namespace.
func (l *Loader) Names() []string {
	return l.ns.Names()
}

// Close releases the runtime and every instance created through it.
func (l *Loader) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.runtime.Close(ctx)
}

// Load returns the unit for name, materializing it on first use. The same
// name always yields the same *Unit.
func (l *Loader) Load(ctx context.Context, name string) (*Unit, error) {
	if l.closed.Load() {
		return nil, errors.ErrClosed
	}
	if u := l.cached(name); u != nil {
		l.opts.Metrics.CacheHit()
		return u, nil
	}

	v, err, _ := l.group.Do(name, func() (any, error) {
		if u := l.cached(name); u != nil {
			return u, nil
		}
		u, err := l.materialize(ctx, name)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.units[name] = u
		l.mu.Unlock()
		l.opts.Metrics.ArtifactLoaded()
		Logger().Debug("loaded unit", zap.String("name", name), zap.Int("bytes", len(u.payload)))
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Unit), nil
}

func (l *Loader) cached(name string) *Unit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.units[name]
}

func (l *Loader) materialize(ctx context.Context, name string) (*Unit, error) {
	payload, err := l.ns.Payload(name)
	if err != nil {
		return nil, err
	}
	iface, err := wasm.ReadInterface(payload)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Name(name).Cause(err).Detail("decode module interface").Build()
	}
	compiled, err := l.runtime.CompileModule(ctx, payload)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Name(name).Cause(err).Detail("compile module").Build()
	}
	return &Unit{
		loader:   l,
		name:     name,
		payload:  payload,
		iface:    iface,
		compiled: compiled,
	}, nil
}
