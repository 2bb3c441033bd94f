package host

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat"
)

const guest = `(module $demo.Guest
	(import "plugin:host" "write" (func $write (param i32 i32)))
	(import "plugin:host" "log" (func $log (param i32 i32 i32)))
	(memory (export "memory") 1)
	(data (i32.const 0) "hello")
	(data (i32.const 16) "careful")
	(func (export "greet")
		(call $write (i32.const 0) (i32.const 5)))
	(func (export "warn")
		(call $log (i32.const 2) (i32.const 16) (i32.const 7)))
	(func (export "oob")
		(call $write (i32.const 65530) (i32.const 100))))`

func instantiateGuest(t *testing.T, r *Registry) (context.Context, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	if err := r.Instantiate(ctx, rt); err != nil {
		t.Fatalf("Instantiate host: %v", err)
	}
	// A second call is a no-op for modules already present.
	if err := r.Instantiate(ctx, rt); err != nil {
		t.Fatalf("Instantiate host again: %v", err)
	}
	bin, err := wat.Compile(guest)
	if err != nil {
		t.Fatalf("compile guest: %v", err)
	}
	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	return ctx, mod
}

func TestStandardWrite(t *testing.T) {
	ctx, mod := instantiateGuest(t, Standard())

	var out bytes.Buffer
	if _, err := mod.ExportedFunction("greet").Call(WithOutput(ctx, &out)); err != nil {
		t.Fatalf("greet: %v", err)
	}
	if out.String() != "hello" {
		t.Errorf("output = %q", out.String())
	}

	// Without an output writer the bytes are discarded.
	if _, err := mod.ExportedFunction("greet").Call(ctx); err != nil {
		t.Fatalf("greet: %v", err)
	}
}

func TestStandardWriteOutOfBounds(t *testing.T) {
	ctx, mod := instantiateGuest(t, Standard())
	var out bytes.Buffer
	if _, err := mod.ExportedFunction("oob").Call(WithOutput(ctx, &out)); err != nil {
		t.Fatalf("oob: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("wrote %q for an out-of-bounds range", out.String())
	}
}

func TestStandardLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	ctx, mod := instantiateGuest(t, Standard())
	if _, err := mod.ExportedFunction("warn").Call(ctx); err != nil {
		t.Fatalf("warn: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries", len(entries))
	}
	e := entries[0]
	if e.Message != "careful" || e.Level != zapcore.WarnLevel {
		t.Errorf("entry = %s %q", e.Level, e.Message)
	}
	if got := e.ContextMap()["module"]; got != "demo.Guest" {
		t.Errorf("module field = %v", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	noop := api.GoModuleFunc(func(context.Context, api.Module, []uint64) {})
	r.Define("env", "b", noop, []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeF64})
	r.Define("env", "a", noop, nil, nil)
	r.Define("alpha", "x", noop, nil, nil)

	if diff := cmp.Diff([]string{"alpha", "env"}, r.Modules()); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
	if !r.HasModule("env") || r.HasModule("missing") {
		t.Error("HasModule")
	}
	f, ok := r.Lookup("env", "b")
	if !ok {
		t.Fatal("env.b not found")
	}
	want := wasm.FuncType{Params: []wasm.ValType{wasm.ValI64}, Results: []wasm.ValType{wasm.ValF64}}
	if !f.Type().Equal(want) {
		t.Errorf("type = %s, want %s", f.Type(), want)
	}
	if _, ok := r.Lookup("env", "c"); ok {
		t.Error("found undefined function")
	}

	var nilReg *Registry
	if nilReg.HasModule("env") || len(nilReg.Modules()) != 0 {
		t.Error("nil registry is not empty")
	}
	if _, ok := nilReg.Lookup("env", "a"); ok {
		t.Error("nil registry lookup succeeded")
	}
}
