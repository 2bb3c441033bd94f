// Package manifest synthesizes the plugin descriptor from a classification.
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-plugins/classify"
)

// APIType is the api-type every synthesized descriptor declares.
const APIType = "plugin"

// Attribute keys.
const (
	KeyName         = "name"
	KeyVersion      = "version"
	KeyAPIType      = "api-type"
	ModuleKeyPrefix = "module:"
)

// Module binds a category to the qualified name of its unit.
type Module struct {
	Category string
	Unit     string
}

// Descriptor is the plugin manifest.
type Descriptor struct {
	Name    string
	Version string
	APIType string
	Modules []Module
}

// Attribute is one key/value pair of the manifest.
type Attribute struct {
	Key   string
	Value string
}

// Synthesize builds a descriptor from the classifier's selections, which
// are expected in category priority order.
func Synthesize(name, version string, selections []classify.Selection) Descriptor {
	d := Descriptor{Name: name, Version: version, APIType: APIType}
	for _, s := range selections {
		d.Modules = append(d.Modules, Module{Category: s.Category, Unit: s.Unit.Name()})
	}
	return d
}

// Module returns the unit name bound to category.
func (d Descriptor) Module(category string) (string, bool) {
	for _, m := range d.Modules {
		if m.Category == category {
			return m.Unit, true
		}
	}
	return "", false
}

// Attributes returns name, version, api-type and one module:<category>
// entry per bound category, in that order.
func (d Descriptor) Attributes() []Attribute {
	attrs := []Attribute{
		{KeyName, d.Name},
		{KeyVersion, d.Version},
		{KeyAPIType, d.APIType},
	}
	for _, m := range d.Modules {
		attrs = append(attrs, Attribute{ModuleKeyPrefix + m.Category, m.Unit})
	}
	return attrs
}

// MarshalYAML renders the attributes as a mapping that keeps their order.
func (d Descriptor) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range d.Attributes() {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Value},
		)
	}
	return n, nil
}

// UnmarshalYAML reads a descriptor written by MarshalYAML.
func (d *Descriptor) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: expected a mapping, got %s", n.Tag)
	}
	*d = Descriptor{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i].Value, n.Content[i+1].Value
		switch {
		case key == KeyName:
			d.Name = value
		case key == KeyVersion:
			d.Version = value
		case key == KeyAPIType:
			d.APIType = value
		case strings.HasPrefix(key, ModuleKeyPrefix):
			d.Modules = append(d.Modules, Module{Category: strings.TrimPrefix(key, ModuleKeyPrefix), Unit: value})
		}
	}
	return nil
}

// YAML renders the descriptor.
func (d Descriptor) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
