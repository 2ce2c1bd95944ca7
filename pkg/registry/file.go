package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the serializable form of a registry.
type Definition struct {
	Categories []CategorySchema `yaml:"categories" json:"categories" validate:"dive"`
	EdgeTypes  []EdgeTypeSchema `yaml:"edge_types,omitempty" json:"edge_types,omitempty" validate:"dive"`
	Edges      []EdgeRule       `yaml:"edges,omitempty" json:"edges,omitempty" validate:"dive"`
}

// FromDefinition builds a registry, registering categories, then edge
// types, then the edge map.
func FromDefinition(def Definition) (*Registry, error) {
	if err := validate.Struct(def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	r := New()
	for _, c := range def.Categories {
		if err := r.RegisterCategory(c); err != nil {
			return nil, err
		}
	}
	for _, e := range def.EdgeTypes {
		if err := r.RegisterEdgeType(e); err != nil {
			return nil, err
		}
	}
	for _, rule := range def.Edges {
		if err := r.AllowEdges(rule.Source, rule.Target, rule.Types...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadFile reads a YAML registry definition.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}
	r, err := FromDefinition(def)
	if err != nil {
		return nil, fmt.Errorf("registry file %s: %w", path, err)
	}
	return r, nil
}

// Definition returns the registry contents in serializable form. Edge
// rules come out in a stable order.
func (r *Registry) Definition() Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def := Definition{
		Categories: append([]CategorySchema(nil), r.categories...),
		EdgeTypes:  append([]EdgeTypeSchema(nil), r.edgeTypes...),
	}

	sources := append([]string{}, r.namesLocked()...)
	sources = append(sources, WildcardCategory)
	for _, src := range sources {
		for _, tgt := range sources {
			if types := r.edges[edgeKey{src, tgt}]; len(types) > 0 {
				def.Edges = append(def.Edges, EdgeRule{Source: src, Target: tgt, Types: append([]string(nil), types...)})
			}
		}
	}
	return def
}

func (r *Registry) namesLocked() []string {
	names := make([]string, len(r.categories))
	for i, c := range r.categories {
		names[i] = c.Name
	}
	return names
}

// WriteFile saves the registry as YAML.
func (r *Registry) WriteFile(path string) error {
	data, err := yaml.Marshal(r.Definition())
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write registry file: %w", err)
	}
	return nil
}

// CategoryContext renders the categories as YAML for inclusion in a prompt.
func (r *Registry) CategoryContext() (string, error) {
	data, err := yaml.Marshal(r.Categories())
	if err != nil {
		return "", fmt.Errorf("marshal categories: %w", err)
	}
	return string(data), nil
}
