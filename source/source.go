// Package source gathers plugin source units from a file system.
package source

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-plugins/errors"
)

// DefaultSuffix is the file suffix of WAT source units.
const DefaultSuffix = ".wat"

// Unit is one source unit: a slash-separated name and its text.
type Unit struct {
	Name string
	Text string
}

// Gather collects the units at name in fsys. A regular file yields one unit
// whatever its suffix. A directory yields every regular file below it whose
// name ends with suffix, in lexical depth-first order. Unit names are
// relative to the parent of name.
func Gather(fsys fs.FS, name, suffix string) ([]Unit, error) {
	name = path.Clean(name)
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, errors.UnsupportedSource(name, err)
	}

	parent := path.Dir(name)
	switch {
	case info.Mode().IsRegular():
		u, err := readUnit(fsys, parent, name)
		if err != nil {
			return nil, err
		}
		return []Unit{u}, nil
	case info.IsDir():
		var units []Unit
		err := fs.WalkDir(fsys, name, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() || !strings.HasSuffix(p, suffix) {
				return nil
			}
			u, err := readUnit(fsys, parent, p)
			if err != nil {
				return err
			}
			units = append(units, u)
			return nil
		})
		if err != nil {
			return nil, errors.UnsupportedSource(name, err)
		}
		return units, nil
	}
	return nil, errors.UnsupportedSource(name, nil)
}

// GatherPath is Gather over the operating system's file system.
func GatherPath(p, suffix string) ([]Unit, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, errors.UnsupportedSource(p, err)
	}
	return Gather(os.DirFS(filepath.Dir(abs)), filepath.Base(abs), suffix)
}

func readUnit(fsys fs.FS, parent, p string) (Unit, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Unit{}, errors.UnsupportedSource(p, err)
	}
	name := p
	if parent != "." {
		name = strings.TrimPrefix(p, parent+"/")
	}
	return Unit{Name: name, Text: string(data)}, nil
}
