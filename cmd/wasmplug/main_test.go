package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const helloSrc = `(module $demo.cmd.Hello
  (import "plugin:host" "write" (func $write (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "hi there")
  (@custom "plugin:export" "hello")
  (func (export "run") (result i32)
    (call $write (i32.const 0) (i32.const 8))
    (i32.const 0)))`

const failSrc = `(module $demo.cmd.Fail
  (func (export "run") (result i32) (i32.const 3)))`

const echoSrc = `(module $demo.web.Echo
  (import "plugin:host" "write" (func $write (param i32 i32)))
  (memory (export "memory") 1)
  (@custom "plugin:listen" "")
  (func (export "alloc") (param $size i32) (result i32) (i32.const 256))
  (func (export "handle") (param $ptr i32) (param $len i32) (result i32)
    (call $write (local.get $ptr) (local.get $len))
    (i32.const 201)))`

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs wasmplug with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr, logger: zap.NewNop()}
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCompileAndScanPrebuilt(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "hello.wat"), helloSrc)
	writeFile(t, filepath.Join(src, "web", "echo.wat"), echoSrc)
	writeFile(t, filepath.Join(src, "README.md"), "not a source")
	out := filepath.Join(dir, "out")

	stdout, _, err := execute(t, "compile", src, "--out", out)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(stdout, "demo.cmd.Hello") || !strings.Contains(stdout, "demo.web.Echo") {
		t.Errorf("compile output = %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(out, "demo", "cmd", "Hello.wasm")); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	stdout, _, err = execute(t, "scan", "--prebuilt", out)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"export", "hello", "listen", "command-extension: demo.cmd.Hello", "web-extension: demo.web.Echo"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("scan output missing %q:\n%s", want, stdout)
		}
	}
}

func TestCompileFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wat")
	writeFile(t, path, "(module $bad (func (i32.nope)))")
	_, stderr, err := execute(t, "compile", path)
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(stderr, `unknown instruction "i32.nope"`) {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeter-1.4.wat")
	writeFile(t, path, helloSrc)

	stdout, _, err := execute(t, "manifest", path)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	want := `name: greeter
version: "1.4"
api-type: plugin
module:command-extension: demo.cmd.Hello
`
	if stdout != want {
		t.Errorf("manifest =\n%s\nwant\n%s", stdout, want)
	}

	stdout, _, err = execute(t, "manifest", path, "--name", "other", "--version", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "name: other\nversion: \"2\"\n") {
		t.Errorf("manifest with overrides =\n%s", stdout)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hello.wat"), helloSrc)
	writeFile(t, filepath.Join(dir, "echo.wat"), echoSrc)

	stdout, _, err := execute(t, "run", dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "hi there" {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, stderr, err := execute(t, "run", dir, "--web", "ping")
	if err != nil {
		t.Fatalf("run --web: %v", err)
	}
	if stdout != "ping" || !strings.Contains(stderr, "status 201") {
		t.Errorf("stdout = %q, stderr = %q", stdout, stderr)
	}

	fail := filepath.Join(t.TempDir(), "fail.wat")
	writeFile(t, fail, failSrc)
	if _, _, err := execute(t, "run", fail); err == nil || !strings.Contains(err.Error(), "status 3") {
		t.Errorf("non-zero status: %v", err)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hello.wat"), helloSrc)
	writeFile(t, filepath.Join(dir, "echo.wat"), echoSrc)

	stdout, _, err := execute(t, "inspect", dir)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"demo.cmd.Hello",
		"category: command-extension",
		"markers:  export=hello",
		"run() -> s32",
		"handle(arg0: s32, arg1: s32) -> s32",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "inspect", "-i", dir); err == nil {
		t.Error("interactive mode started without a terminal")
	}
}

func TestMetricsDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.wat")
	writeFile(t, path, helloSrc)
	t.Setenv("WASMPLUG_METRICS", "true")

	_, stderr, err := execute(t, "scan", path)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(stderr, `wasmplug_compiles_total{result="success"} 1`) {
		t.Errorf("metrics missing from stderr:\n%s", stderr)
	}
}

func TestNameVersion(t *testing.T) {
	dir := t.TempDir()
	versioned := filepath.Join(dir, "tools-1.2")
	if err := os.Mkdir(versioned, 0o755); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path    string
		name    string
		version string
	}{
		{"hello-1.2.wat", "hello", "1.2"},
		{"hello.wat", "hello", "0"},
		{"/plugins/my-tool-3.wat", "my-tool", "3"},
		{"trailing-.wat", "trailing-", "0"},
		{"-1.wat", "-1", "0"},
		{versioned, "tools", "1.2"},
	}
	for _, tt := range tests {
		name, version := nameVersion(tt.path)
		if name != tt.name || version != tt.version {
			t.Errorf("nameVersion(%q) = %q, %q, want %q, %q", tt.path, name, version, tt.name, tt.version)
		}
	}
}
