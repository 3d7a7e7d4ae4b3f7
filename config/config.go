// Package config loads and merges the environment settings document.
//
// A settings document is keyed by environment name, with a reserved
// "defaults" block holding values shared by every environment:
//
//	defaults:
//	  region: us-east-1
//	  runtimeVersion: python3.11
//	dev:
//	  domain: dev.example.com
//	production:
//	  domain: example.com
//
// Documents are YAML; JSON documents parse through the same path since
// YAML is a superset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultsKey is the reserved top-level key holding shared defaults.
const DefaultsKey = "defaults"

// RawEnvironment is one environment's unvalidated configuration block.
type RawEnvironment map[string]any

// NamedEnvironment pairs an environment name with its raw block.
type NamedEnvironment struct {
	Name string
	Raw  RawEnvironment
}

// Document is a parsed settings document: the shared defaults block plus
// every named environment block in declaration order. Duplicate names are
// preserved here and rejected later when descriptors are registered.
type Document struct {
	Defaults     RawEnvironment
	Environments []NamedEnvironment
}

// Environment returns the raw block for the named environment, or false if
// the document does not declare it.
func (d *Document) Environment(name string) (RawEnvironment, bool) {
	for _, e := range d.Environments {
		if e.Name == name {
			return e.Raw, true
		}
	}
	return nil, false
}

// Names returns the declared environment names in declaration order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Environments))
	for _, e := range d.Environments {
		names = append(names, e.Name)
	}
	return names
}

// Parse decodes a settings document, preserving environment declaration
// order. The top level must be a mapping of environment name to block.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse settings document: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return &Document{}, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse settings document: top level must be a mapping keyed by environment name, got %s", nodeKind(top))
	}

	doc := &Document{}
	for i := 0; i+1 < len(top.Content); i += 2 {
		keyNode, valNode := top.Content[i], top.Content[i+1]

		var name string
		if err := keyNode.Decode(&name); err != nil {
			return nil, fmt.Errorf("parse settings document: environment name at line %d: %w", keyNode.Line, err)
		}
		if valNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse settings document: environment %q must be a mapping, got %s", name, nodeKind(valNode))
		}

		// Decode into a plain map: decoding into RawEnvironment directly
		// would propagate the named type to every nested mapping, and the
		// rest of the pipeline type-asserts nested blocks as
		// map[string]any.
		var block map[string]any
		if err := valNode.Decode(&block); err != nil {
			return nil, fmt.Errorf("parse settings document: environment %q: %w", name, err)
		}

		if name == DefaultsKey {
			doc.Defaults = RawEnvironment(block)
			continue
		}
		doc.Environments = append(doc.Environments, NamedEnvironment{Name: name, Raw: RawEnvironment(block)})
	}
	return doc, nil
}

// LoadFromFile reads and parses a settings document from disk.
func LoadFromFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return doc, nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
