package artifact

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-plugins/errors"
)

// Separator splits qualified names into segments.
const Separator = "."

// Namespace is an immutable artifact tree addressed by qualified names.
// It is safe for concurrent use.
type Namespace struct {
	root   *Artifact
	leaves int
}

// Empty returns a namespace without artifacts.
func Empty() *Namespace {
	return &Namespace{root: newDirectory("")}
}

// Root returns the root directory.
func (ns *Namespace) Root() *Artifact { return ns.root }

// Len returns the number of leaves.
func (ns *Namespace) Len() int { return ns.leaves }

// Resolve walks the tree one segment at a time and returns the leaf for
// name.
func (ns *Namespace) Resolve(name string) (*Artifact, error) {
	if err := ValidName(name); err != nil {
		return nil, errors.InvalidName(errors.PhaseResolve, name, err.Error())
	}
	segments := strings.Split(name, Separator)
	segments[len(segments)-1] += LeafSuffix

	cur := ns.root
	for i, seg := range segments {
		next, ok := cur.Child(seg)
		if !ok {
			return nil, errors.SegmentNotFound(name, seg, segments[:i])
		}
		cur = next
	}
	if !cur.IsLeaf() {
		return nil, errors.NotALeaf(name)
	}
	return cur, nil
}

// Payload resolves name and reads the leaf's bytes.
func (ns *Namespace) Payload(name string) ([]byte, error) {
	leaf, err := ns.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := leaf.Content().Bytes()
	if err != nil {
		return nil, errors.PayloadUnreadable(name, err)
	}
	return data, nil
}

// Names lists the qualified name of every leaf, depth-first.
func (ns *Namespace) Names() []string {
	names := make([]string, 0, ns.leaves)
	_ = ns.Walk(func(name string, _ *Artifact) error {
		names = append(names, name)
		return nil
	})
	return names
}

// Walk calls fn for every leaf, depth-first, stopping at the first error.
func (ns *Namespace) Walk(fn func(name string, leaf *Artifact) error) error {
	return walk(ns.root, nil, fn)
}

func walk(dir *Artifact, prefix []string, fn func(string, *Artifact) error) error {
	for _, c := range dir.Children() {
		if c.IsLeaf() {
			name := strings.TrimSuffix(c.name, LeafSuffix)
			if err := fn(strings.Join(append(prefix, name), Separator), c); err != nil {
				return err
			}
			continue
		}
		if err := walk(c, append(prefix[:len(prefix):len(prefix)], c.name), fn); err != nil {
			return err
		}
	}
	return nil
}

// Export writes every leaf below dir as a file, one directory per segment.
func (ns *Namespace) Export(dir string) error {
	return ns.Walk(func(name string, leaf *Artifact) error {
		data, err := leaf.Content().Bytes()
		if err != nil {
			return errors.PayloadUnreadable(name, err)
		}
		segments := strings.Split(name, Separator)
		segments[len(segments)-1] += LeafSuffix
		path := filepath.Join(append([]string{dir}, segments...)...)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrap(errors.PhaseArtifact, errors.KindInvalidInput, err, "create directory")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrap(errors.PhaseArtifact, errors.KindInvalidInput, err, "write "+path)
		}
		return nil
	})
}

// ValidName checks that name is a non-empty sequence of segments made of
// letters, digits, '_' and '-'.
func ValidName(name string) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseArtifact, "empty name")
	}
	for _, seg := range strings.Split(name, Separator) {
		if seg == "" {
			return errors.InvalidInput(errors.PhaseArtifact, "empty segment")
		}
		if r, ok := badRune(seg); ok {
			return errors.New(errors.PhaseArtifact, errors.KindInvalidInput).
				Segment(seg).
				Detail("invalid character %q in segment %q", r, seg).
				Build()
		}
	}
	return nil
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	_, bad := badRune(seg)
	return !bad
}

func badRune(seg string) (rune, bool) {
	for _, r := range seg {
		if !isNameRune(r) {
			return r, true
		}
	}
	return 0, false
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
