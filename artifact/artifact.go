package artifact

import (
	"io/fs"
	"sort"
)

// LeafSuffix marks the final segment of a loadable unit.
const LeafSuffix = ".wasm"

// Kind distinguishes the two artifact variants.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindLeaf {
		return "leaf"
	}
	return "directory"
}

// Content supplies the payload of a leaf.
type Content interface {
	Bytes() ([]byte, error)
}

// Bytes is in-memory content.
type Bytes []byte

func (b Bytes) Bytes() ([]byte, error) {
	return b, nil
}

// fileContent reads its payload from a file system on demand.
type fileContent struct {
	fsys fs.FS
	path string
}

func (c fileContent) Bytes() ([]byte, error) {
	return fs.ReadFile(c.fsys, c.path)
}

// Artifact is a node of the compiled output tree: a leaf holding content
// or a directory holding children keyed by segment. Leaf segments carry
// LeafSuffix.
type Artifact struct {
	content  Content
	children map[string]*Artifact
	name     string
	kind     Kind
}

func newDirectory(name string) *Artifact {
	return &Artifact{name: name, kind: KindDirectory, children: map[string]*Artifact{}}
}

func newLeaf(name string, c Content) *Artifact {
	return &Artifact{name: name, kind: KindLeaf, content: c}
}

// Name returns the node's segment, including LeafSuffix for leaves.
func (a *Artifact) Name() string { return a.name }

func (a *Artifact) Kind() Kind { return a.kind }

func (a *Artifact) IsLeaf() bool { return a.kind == KindLeaf }

// Content returns the leaf content, or nil for a directory.
func (a *Artifact) Content() Content { return a.content }

// Child returns the child with the given segment. Leaves have no children.
func (a *Artifact) Child(segment string) (*Artifact, bool) {
	c, ok := a.children[segment]
	return c, ok
}

// Children returns the children sorted by segment.
func (a *Artifact) Children() []*Artifact {
	out := make([]*Artifact, 0, len(a.children))
	for _, c := range a.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
