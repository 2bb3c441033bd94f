package plugin

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/classify"
	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/manifest"
	"github.com/wippyai/wasm-plugins/metrics"
	"github.com/wippyai/wasm-plugins/source"
)

var pluginUnits = []source.Unit{
	{Name: "cmd.wat", Text: `(module $acme.cmd.Hello
		(import "plugin:host" "write" (func $write (param i32 i32)))
		(import "acme.lib.Text" "greeting" (func $greeting (result i32)))
		(memory (export "memory") 1)
		(data (i32.const 0) "hello")
		(@custom "plugin:export" "hello")
		(func (export "run") (result i32)
			(call $write (i32.const 0) (call $greeting))
			(i32.const 7)))`},
	{Name: "lib.wat", Text: `(module $acme.lib.Text
		(func (export "greeting") (result i32) (i32.const 5)))`},
	{Name: "web.wat", Text: `(module $acme.web.Echo
		(import "plugin:host" "write" (func $write (param i32 i32)))
		(memory (export "memory") 1)
		(global $next (mut i32) (i32.const 1024))
		(@custom "plugin:listen" "")
		(func (export "alloc") (param $n i32) (result i32)
			(local $p i32)
			(local.set $p (global.get $next))
			(global.set $next (i32.add (global.get $next) (local.get $n)))
			(local.get $p))
		(func (export "handle") (param $ptr i32) (param $len i32) (result i32)
			(call $write (local.get $ptr) (local.get $len))
			(i32.const 200)))`},
	{Name: "start.wat", Text: `(module $acme.Boot
		(import "plugin:host" "log" (func $log (param i32 i32 i32)))
		(func (export "start")))`},
	{Name: "ext.wat", Text: `(module $acme.Remote
		(import "acme.elsewhere.Api" "call" (func))
		(@custom "plugin:export" "remote")
		(func (export "run") (result i32) (i32.const 0)))`},
}

func newProvider(t *testing.T, opts Options) *Provider {
	t.Helper()
	ctx := context.Background()
	p, err := NewProvider(ctx, opts)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })
	return p
}

func loadPlugin(t *testing.T, p *Provider) *Plugin {
	t.Helper()
	ctx := context.Background()
	pl, err := p.LoadExtensions(ctx, pluginUnits, "acme", "2.0")
	if err != nil {
		t.Fatalf("LoadExtensions: %v", err)
	}
	t.Cleanup(func() { _ = pl.Close(ctx) })
	return pl
}

func TestLoadExtensions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)
	pl := loadPlugin(t, newProvider(t, Options{Metrics: m}))

	want := []manifest.Attribute{
		{Key: "name", Value: "acme"},
		{Key: "version", Value: "2.0"},
		{Key: "api-type", Value: "plugin"},
		{Key: "module:command-extension", Value: "acme.cmd.Hello"},
		{Key: "module:web-extension", Value: "acme.web.Echo"},
		{Key: "module:generic-extension", Value: "acme.Boot"},
	}
	if diff := cmp.Diff(want, pl.Descriptor.Attributes()); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}

	wantExt := []capability.Entry{
		{Kind: capability.KindExport, Name: "acme.cmd.Hello", Alias: "hello"},
		{Kind: capability.KindListen, Name: "acme.web.Echo"},
	}
	if diff := cmp.Diff(wantExt, pl.Extensions()); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"acme.Remote"}, pl.Capabilities.Abstract()); diff != "" {
		t.Errorf("abstract mismatch (-want +got):\n%s", diff)
	}
	if w := pl.Diagnostics.Warnings(); len(w) != 1 || !strings.Contains(w[0].Message, "acme.elsewhere.Api") {
		t.Errorf("warnings = %v", w)
	}
	if pl.RunID == "" {
		t.Error("missing run id")
	}
	if got := testutil.ToFloat64(m.UnitsScannedTotal.WithLabelValues(capability.OutcomeAbstract)); got != 1 {
		t.Errorf("abstract units = %v", got)
	}
}

func TestInvokeExtensions(t *testing.T) {
	pl := loadPlugin(t, newProvider(t, Options{}))
	ctx := context.Background()

	var out bytes.Buffer
	code, err := pl.RunCommand(ctx, &out)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if code != 7 || out.String() != "hello" {
		t.Errorf("RunCommand = %d, %q", code, out.String())
	}

	out.Reset()
	status, err := pl.HandleWeb(ctx, "GET /", &out)
	if err != nil {
		t.Fatalf("HandleWeb: %v", err)
	}
	if status != 200 || out.String() != "GET /" {
		t.Errorf("HandleWeb = %d, %q", status, out.String())
	}

	if err := pl.Start(ctx, nil); err != nil {
		t.Errorf("Start: %v", err)
	}
	if u, ok := pl.Module(classify.GenericExtension); !ok || u.Name() != "acme.Boot" {
		t.Errorf("generic module = %v, %v", u, ok)
	}
}

func TestMissingCategory(t *testing.T) {
	p := newProvider(t, Options{})
	ctx := context.Background()
	pl, err := p.LoadExtensions(ctx, pluginUnits[1:2], "lib-only", "0")
	if err != nil {
		t.Fatal(err)
	}
	defer pl.Close(ctx)

	if len(pl.Descriptor.Modules) != 0 {
		t.Errorf("modules = %v", pl.Descriptor.Modules)
	}
	_, err = pl.RunCommand(ctx, nil)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindNotFound}) {
		t.Errorf("RunCommand without command extension: %v", err)
	}
}

func TestLoadExtensionsCompileError(t *testing.T) {
	p := newProvider(t, Options{})
	_, err := p.LoadExtensions(context.Background(), []source.Unit{{Name: "bad.wat", Text: "(module (func (i32.nope)))"}}, "bad", "0")
	var ce *errors.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if !ce.Diagnostics.HasErrors() || !strings.Contains(ce.Diagnostics.Transcript, "i32.nope") {
		t.Errorf("transcript = %q", ce.Diagnostics.Transcript)
	}
}
