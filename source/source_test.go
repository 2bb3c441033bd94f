package source

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/wippyai/wasm-plugins/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"plugins/hello.wat":          {Data: []byte("(module $hello)")},
		"plugins/cmd/b.wat":          {Data: []byte("(module $b)")},
		"plugins/cmd/a.wat":          {Data: []byte("(module $a)")},
		"plugins/cmd/readme.md":      {Data: []byte("docs")},
		"plugins/web/deep/x.wat":     {Data: []byte("(module $x)")},
		"plugins/notes.txt":          {Data: []byte("not a unit")},
		"plugins/cmd/skip.wat/inner": {Data: []byte("dir named like a unit")},
	}
}

func TestGather(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []Unit
	}{
		{
			name: "single file",
			path: "plugins/hello.wat",
			want: []Unit{{Name: "hello.wat", Text: "(module $hello)"}},
		},
		{
			name: "single file without suffix",
			path: "plugins/notes.txt",
			want: []Unit{{Name: "notes.txt", Text: "not a unit"}},
		},
		{
			name: "directory",
			path: "plugins/cmd",
			want: []Unit{
				{Name: "cmd/a.wat", Text: "(module $a)"},
				{Name: "cmd/b.wat", Text: "(module $b)"},
			},
		},
		{
			name: "nested",
			path: "plugins",
			want: []Unit{
				{Name: "plugins/cmd/a.wat", Text: "(module $a)"},
				{Name: "plugins/cmd/b.wat", Text: "(module $b)"},
				{Name: "plugins/hello.wat", Text: "(module $hello)"},
				{Name: "plugins/web/deep/x.wat", Text: "(module $x)"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Gather(testFS(), tt.path, DefaultSuffix)
			if err != nil {
				t.Fatalf("Gather: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("units mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGatherEmptyDirectory(t *testing.T) {
	fsys := fstest.MapFS{"empty": {Mode: os.ModeDir}}
	units, err := Gather(fsys, "empty", DefaultSuffix)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("got %d units", len(units))
	}
}

func TestGatherUnsupported(t *testing.T) {
	_, err := Gather(testFS(), "plugins/missing", DefaultSuffix)
	if !errors.Is(err, errors.ErrUnsupportedSource) {
		t.Fatalf("expected unsupported source, got %v", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) || e.Name != "plugins/missing" {
		t.Errorf("error = %v", err)
	}
}

func TestGatherPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "sub", "m.wat"), []byte("(module)"), 0o644); err != nil {
		t.Fatal(err)
	}

	units, err := GatherPath(filepath.Join(dir, "src"), DefaultSuffix)
	if err != nil {
		t.Fatalf("GatherPath: %v", err)
	}
	want := []Unit{{Name: "src/sub/m.wat", Text: "(module)"}}
	if diff := cmp.Diff(want, units); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}
