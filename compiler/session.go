package compiler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wippyai/wasm-plugins/artifact"
	"github.com/wippyai/wasm-plugins/diag"
	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/metrics"
	"github.com/wippyai/wasm-plugins/source"
	"github.com/wippyai/wasm-plugins/wat"
)

// Result is the outcome of a successful compile.
type Result struct {
	Namespace *artifact.Namespace
	// Diagnostics holds the warnings and info messages of the run.
	Diagnostics diag.Diagnostics
	// Modules lists the qualified names in compile order.
	Modules []string
	RunID   string
}

// Session owns one compiler and its diagnostic reporter. Calls to Compile
// are serialized; the namespace of the last successful run is replaced
// atomically.
type Session struct {
	runtime  wazero.Runtime
	reporter *diag.Reporter
	gate     *semaphore.Weighted
	current  atomic.Pointer[artifact.Namespace]
	closed   atomic.Bool
	opts     Options
}

// NewSession creates a session whose wazero runtime validates compiled
// modules.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{
		runtime:  wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig()),
		reporter: diag.NewReporter(opts.Echo),
		gate:     semaphore.NewWeighted(1),
		opts:     opts,
	}
	s.current.Store(artifact.Empty())
	return s, nil
}

// Namespace returns the namespace of the last successful compile.
func (s *Session) Namespace() *artifact.Namespace {
	return s.current.Load()
}

// Close waits for a running compile and releases the runtime.
func (s *Session) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)
	return s.runtime.Close(ctx)
}

func (s *Session) acquire(ctx context.Context) error {
	if s.opts.Busy == BusyReject {
		if !s.gate.TryAcquire(1) {
			s.opts.Metrics.CompileRejected()
			return errors.Busy()
		}
		return nil
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return errors.Wrap(errors.PhaseCompile, errors.KindCancelled, err, "cancelled while waiting for running compile")
	}
	return nil
}

// Compile compiles units as one batch. On any error diagnostic it returns
// a *errors.CompileError and the session keeps its previous namespace.
func (s *Session) Compile(ctx context.Context, units []source.Unit) (*Result, error) {
	if s.closed.Load() {
		return nil, errors.ErrClosed
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gate.Release(1)
	if s.closed.Load() {
		return nil, errors.ErrClosed
	}

	start := time.Now()
	runID := uuid.NewString()
	log := Logger().With(zap.String("run", runID), zap.Int("units", len(units)))

	s.reporter.Reset()
	b := &batch{session: s, byName: map[string]*wat.Module{}}
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.PhaseCompile, errors.KindCancelled, err, "compile cancelled")
		}
		b.addUnit(u)
	}
	b.validate(ctx)
	b.link()

	d := s.reporter.Snapshot()
	if d.HasErrors() {
		s.opts.Metrics.CompileFinished(metrics.ResultFailure, time.Since(start), d, 0)
		log.Error("compilation failed",
			zap.Int("errors", d.Count(diag.Error)),
			zap.String("transcript", d.Transcript))
		return nil, &errors.CompileError{Units: unitNames(units), Diagnostics: d}
	}

	builder := artifact.NewBuilder()
	names := make([]string, 0, len(b.modules))
	for _, m := range b.modules {
		if err := builder.Add(m.Name, artifact.Bytes(m.Binary)); err != nil {
			return nil, err
		}
		names = append(names, m.Name)
	}
	ns := builder.Build()
	s.current.Store(ns)

	s.opts.Metrics.CompileFinished(metrics.ResultSuccess, time.Since(start), d, len(names))
	if out := s.reporter.Output(); out != "" {
		log.Info("compiler output", zap.String("output", out))
	}
	log.Debug("compiled", zap.Strings("modules", names), zap.Duration("elapsed", time.Since(start)))

	return &Result{Namespace: ns, Diagnostics: d, Modules: names, RunID: runID}, nil
}

func unitNames(units []source.Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Name
	}
	return out
}
