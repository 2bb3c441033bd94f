package classify

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-plugins/artifact"
	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/metrics"
	"github.com/wippyai/wasm-plugins/wat"
)

const (
	commandSrc = `(module (func (export "run") (result i32) (i32.const 0)))`
	webSrc     = `(module
		(memory (export "memory") 1)
		(func (export "alloc") (param i32) (result i32) (i32.const 0))
		(func (export "handle") (param i32 i32) (result i32) (i32.const 0)))`
	genericSrc = `(module (func (export "start")))`
	bothSrc    = `(module
		(func (export "run") (result i32) (i32.const 0))
		(func (export "start")))`
	noneSrc = `(module (func (export "other")))`
)

// loadUnits loads each name in order from a namespace built from srcs.
func loadUnits(t *testing.T, names []string, srcs map[string]string) []*loader.Unit {
	t.Helper()
	b := artifact.NewBuilder()
	for name, src := range srcs {
		bin, err := wat.Compile(src)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		if err := b.Add(name, artifact.Bytes(bin)); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()
	l, err := loader.New(ctx, b.Build(), loader.Options{Hosts: host.Standard()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close(ctx) })

	units := make([]*loader.Unit, len(names))
	for i, n := range names {
		if units[i], err = l.Load(ctx, n); err != nil {
			t.Fatalf("Load(%s): %v", n, err)
		}
	}
	return units
}

func selectionNames(r *Result) map[string]string {
	out := make(map[string]string)
	for _, s := range r.Selections() {
		out[s.Category] = s.Unit.Name()
	}
	return out
}

func TestClassify(t *testing.T) {
	units := loadUnits(t, []string{"p.Cmd", "p.Web", "p.Gen", "p.None"}, map[string]string{
		"p.Cmd":  commandSrc,
		"p.Web":  webSrc,
		"p.Gen":  genericSrc,
		"p.None": noneSrc,
	})
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	r := New(m).Classify(units)
	want := map[string]string{
		CommandExtension: "p.Cmd",
		WebExtension:     "p.Web",
		GenericExtension: "p.Gen",
	}
	if diff := cmp.Diff(want, selectionNames(r)); diff != "" {
		t.Errorf("selections mismatch (-want +got):\n%s", diff)
	}
	var order []string
	for _, s := range r.Selections() {
		order = append(order, s.Category)
	}
	if diff := cmp.Diff([]string{CommandExtension, WebExtension, GenericExtension}, order); diff != "" {
		t.Errorf("selection order mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(m.ClassificationTotal.WithLabelValues(WebExtension)); got != 1 {
		t.Errorf("web classifications = %v", got)
	}
}

func TestClassifyPriority(t *testing.T) {
	units := loadUnits(t, []string{"p.Both"}, map[string]string{"p.Both": bothSrc})
	r := New(nil).Classify(units)
	if u, ok := r.Get(CommandExtension); !ok || u.Name() != "p.Both" {
		t.Errorf("command = %v, %v", u, ok)
	}
	if _, ok := r.Get(GenericExtension); ok {
		t.Error("unit was assigned two categories")
	}
}

func TestClassifyLastWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	units := loadUnits(t, []string{"p.First", "p.Second", "p.Third"}, map[string]string{
		"p.First":  commandSrc,
		"p.Second": commandSrc,
		"p.Third":  commandSrc,
	})
	r := New(nil).Classify(units)
	if u, _ := r.Get(CommandExtension); u.Name() != "p.Third" {
		t.Errorf("selected %s, want p.Third", u.Name())
	}
	if diff := cmp.Diff([]string{"p.First", "p.Second"}, r.Replaced(CommandExtension)); diff != "" {
		t.Errorf("replaced mismatch (-want +got):\n%s", diff)
	}
	if n := logs.FilterField(zap.String("category", CommandExtension)).Len(); n != 2 {
		t.Errorf("warnings = %d, want 2", n)
	}
}

func TestClassifyNothing(t *testing.T) {
	r := New(nil).Classify(nil)
	if len(r.Selections()) != 0 {
		t.Errorf("selections = %v", r.Selections())
	}
	if _, ok := r.Get(CommandExtension); ok {
		t.Error("Get found a unit in an empty result")
	}
}

func TestCustomCategories(t *testing.T) {
	units := loadUnits(t, []string{"p.Gen"}, map[string]string{"p.Gen": genericSrc})
	c := New(nil, Category{Name: "starter", Contract: capability.MustContract("starter", false, "start: func()")})
	if diff := cmp.Diff([]string{"starter"}, c.Categories()); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if cat, ok := c.Match(units[0]); !ok || cat != "starter" {
		t.Errorf("Match = %q, %v", cat, ok)
	}
}
