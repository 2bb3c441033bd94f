package capability

import (
	"strings"

	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/loader"
)

// Default marker kinds and the custom sections that declare them.
const (
	KindExport = "export"
	KindListen = "listen"

	SectionExport = "plugin:export"
	SectionListen = "plugin:listen"
)

// Descriptor recognizes one kind of capability marker. Alias is nil for
// markers that carry no alias.
type Descriptor struct {
	Kind   string
	Detect func(*loader.Unit) bool
	Alias  func(*loader.Unit) string
}

// SectionMarker detects units that declare the custom section.
func SectionMarker(kind, section string) Descriptor {
	return Descriptor{
		Kind: kind,
		Detect: func(u *loader.Unit) bool {
			_, ok := u.CustomSection(section)
			return ok
		},
	}
}

// AliasMarker is a SectionMarker whose section data is the alias.
func AliasMarker(kind, section string) Descriptor {
	d := SectionMarker(kind, section)
	d.Alias = func(u *loader.Unit) string {
		data, _ := u.CustomSection(section)
		return strings.TrimSpace(string(data))
	}
	return d
}

// Registry is an ordered set of marker descriptors.
type Registry struct {
	descs []Descriptor
}

// NewRegistry validates descs: kinds must be unique and non-empty, every
// descriptor needs Detect, and at most one may carry an alias.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	seen := make(map[string]bool, len(descs))
	aliased := ""
	for _, d := range descs {
		switch {
		case d.Kind == "":
			return nil, errors.InvalidInput(errors.PhaseScan, "marker kind is empty")
		case d.Detect == nil:
			return nil, errors.InvalidInput(errors.PhaseScan, "marker "+d.Kind+" has no detector")
		case seen[d.Kind]:
			return nil, errors.New(errors.PhaseScan, errors.KindDuplicate).
				Name(d.Kind).Detail("marker kind registered twice").Build()
		}
		seen[d.Kind] = true
		if d.Alias != nil {
			if aliased != "" {
				return nil, errors.New(errors.PhaseScan, errors.KindConflict).
					Name(d.Kind).Detail("marker %s already carries the alias", aliased).Build()
			}
			aliased = d.Kind
		}
	}
	return &Registry{descs: append([]Descriptor(nil), descs...)}, nil
}

// DefaultRegistry knows the export and listen markers.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		AliasMarker(KindExport, SectionExport),
		SectionMarker(KindListen, SectionListen),
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.descs...)
}

func (r *Registry) Kinds() []string {
	kinds := make([]string, len(r.descs))
	for i, d := range r.descs {
		kinds[i] = d.Kind
	}
	return kinds
}
