package wasm_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-plugins/wasm"
	"github.com/wippyai/wasm-plugins/wat"
)

func mustCompile(t *testing.T, src string) []byte {
	t.Helper()
	bin, err := wat.Compile(src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return bin
}

func TestReadInterface(t *testing.T) {
	bin := mustCompile(t, `(module $demo.Plugin
		(import "plugin:host" "write" (func $write (param i32 i32)))
		(import "env" "mem" (memory 1 2))
		(global $ver (export "version") i64 (i64.const 3))
		(func $run (export "run") (param i32) (result i32) (local.get 0))
		(@custom "plugin:export" "greet"))`)

	iface, err := wasm.ReadInterface(bin)
	if err != nil {
		t.Fatalf("ReadInterface: %v", err)
	}
	if iface.Name != "demo.Plugin" {
		t.Errorf("Name = %q", iface.Name)
	}

	two := uint32(2)
	wantImports := []wasm.Import{
		{Module: "plugin:host", Name: "write", Kind: wasm.KindFunc, Func: &wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}}},
		{Module: "env", Name: "mem", Kind: wasm.KindMemory, Memory: &wasm.Limits{Min: 1, Max: &two}},
	}
	if diff := cmp.Diff(wantImports, iface.Imports); diff != "" {
		t.Errorf("imports mismatch (-want +got):\n%s", diff)
	}

	run, ok := iface.Export("run")
	if !ok || run.Func == nil || run.Func.String() != "(i32) -> i32" || run.Index != 1 {
		t.Errorf("run export = %+v", run)
	}
	ver, ok := iface.Export("version")
	if !ok || ver.Global == nil || ver.Global.String() != "i64" {
		t.Errorf("version export = %+v", ver)
	}
	if _, ok := iface.Export("missing"); ok {
		t.Error("found a missing export")
	}
	if iface.ExportsMemory() {
		t.Error("imported memory reported as exported")
	}
	if data, ok := iface.CustomSection("plugin:export"); !ok || string(data) != "greet" {
		t.Errorf("plugin:export = %q, %v", data, ok)
	}
}

func TestReadInterfaceMemory(t *testing.T) {
	bin := mustCompile(t, `(module (memory (export "memory") 1))`)
	iface, err := wasm.ReadInterface(bin)
	if err != nil {
		t.Fatalf("ReadInterface: %v", err)
	}
	if iface.Memories != 1 || !iface.ExportsMemory() {
		t.Errorf("memories = %d, exported = %v", iface.Memories, iface.ExportsMemory())
	}
	if iface.Name != "" {
		t.Errorf("unnamed module has name %q", iface.Name)
	}
}

func TestReadInterfaceErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"magic", []byte{0x00, 0x61, 0x73, 0x6E, 0x01, 0x00, 0x00, 0x00}, wasm.ErrInvalidMagic},
		{"version", []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}, wasm.ErrInvalidVersion},
	}
	for _, tt := range tests {
		if _, err := wasm.ReadInterface(tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := wasm.ReadInterface([]byte{0x00, 0x61}); err == nil {
		t.Error("short header accepted")
	}
	truncated := append([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}, wasm.SectionType, 0x05, 0x01)
	if _, err := wasm.ReadInterface(truncated); err == nil {
		t.Error("truncated section accepted")
	}
}
