package artifact

import (
	"io/fs"
	"path"
	"strings"

	"github.com/wippyai/wasm-plugins/errors"
)

// Builder assembles a Namespace. It is not safe for concurrent use and
// must not be used after Build.
type Builder struct {
	root   *Artifact
	leaves int
}

func NewBuilder() *Builder {
	return &Builder{root: newDirectory("")}
}

// Add places content under the qualified name, creating directories for
// the leading segments.
func (b *Builder) Add(name string, c Content) error {
	if err := ValidName(name); err != nil {
		return errors.InvalidName(errors.PhaseArtifact, name, err.Error())
	}
	segments := strings.Split(name, Separator)
	last := len(segments) - 1

	dir := b.root
	for _, seg := range segments[:last] {
		next, ok := dir.children[seg]
		if !ok {
			next = newDirectory(seg)
			dir.children[seg] = next
		}
		dir = next
	}

	leaf := segments[last] + LeafSuffix
	if _, ok := dir.children[leaf]; ok {
		return errors.New(errors.PhaseArtifact, errors.KindDuplicate).
			Name(name).Detail("already defined").Build()
	}
	dir.children[leaf] = newLeaf(leaf, c)
	b.leaves++
	return nil
}

// Build returns the assembled namespace.
func (b *Builder) Build() *Namespace {
	ns := &Namespace{root: b.root, leaves: b.leaves}
	b.root = nil
	return ns
}

// FromFS mounts a pre-built tree of directories and *.wasm files rooted at
// root. The structure is read immediately; leaf payloads are read when
// first requested. Other files are ignored, as are directories and leaves
// whose name is not a valid name segment, so that every enumerated name
// resolves.
func FromFS(fsys fs.FS, root string) (*Namespace, error) {
	root = path.Clean(root)
	info, err := fs.Stat(fsys, root)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseArtifact, errors.KindNotFound, err, "stat "+root)
	}
	if !info.IsDir() {
		return nil, errors.InvalidInput(errors.PhaseArtifact, root+" is not a directory")
	}

	ns := &Namespace{root: newDirectory("")}
	dirs := map[string]*Artifact{root: ns.root}
	err = fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		parent := dirs[path.Dir(p)]
		if parent == nil {
			return nil
		}
		switch {
		case d.IsDir():
			if !validSegment(d.Name()) {
				return fs.SkipDir
			}
			child := newDirectory(d.Name())
			parent.children[d.Name()] = child
			dirs[p] = child
		case d.Type().IsRegular() && strings.HasSuffix(d.Name(), LeafSuffix):
			if !validSegment(strings.TrimSuffix(d.Name(), LeafSuffix)) {
				return nil
			}
			parent.children[d.Name()] = newLeaf(d.Name(), fileContent{fsys: fsys, path: p})
			ns.leaves++
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseArtifact, errors.KindInvalidData, err, "walk "+root)
	}
	return ns, nil
}
