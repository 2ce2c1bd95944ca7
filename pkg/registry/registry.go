// Package registry holds the entity categories and edge types a project
// recognizes, and validates attributes and edges against them.
package registry

import (
	"fmt"
	"slices"
	"sync"
)

// WildcardCategory matches any category in the edge map.
const WildcardCategory = "Entity"

// ReservedKeys are the core entity fields. They can never be used as
// category-specific attribute names.
var ReservedKeys = []string{"id", "name", "aliases", "type", "category", "description", "explanation", "attributes"}

// IsReserved reports whether key is a core entity field.
func IsReserved(key string) bool {
	return slices.Contains(ReservedKeys, key)
}

type edgeKey struct {
	source string
	target string
}

// Registry is safe for concurrent use. Once frozen it rejects registrations.
type Registry struct {
	mu         sync.RWMutex
	frozen     bool
	categories []CategorySchema
	edgeTypes  []EdgeTypeSchema
	edges      map[edgeKey][]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{edges: make(map[edgeKey][]string)}
}

// RegisterCategory adds or replaces a category. Fields named after a
// reserved key are rejected with ErrReservedAttribute.
func (r *Registry) RegisterCategory(schema CategorySchema) error {
	if err := validate.Struct(schema); err != nil {
		return invalid("category", schema.Name, fmt.Errorf("%w: %v", ErrInvalidSchema, err))
	}
	if schema.Name == WildcardCategory {
		return invalid("category", schema.Name, fmt.Errorf("%w: %q is the wildcard", ErrInvalidSchema, WildcardCategory))
	}
	if err := checkFields(schema.Name, schema.Fields, true); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	if i := slices.IndexFunc(r.categories, func(c CategorySchema) bool { return c.Name == schema.Name }); i >= 0 {
		r.categories[i] = schema
		return nil
	}
	r.categories = append(r.categories, schema)
	return nil
}

// RegisterEdgeType adds or replaces an edge type.
func (r *Registry) RegisterEdgeType(schema EdgeTypeSchema) error {
	if err := validate.Struct(schema); err != nil {
		return invalid("edge_type", schema.Name, fmt.Errorf("%w: %v", ErrInvalidSchema, err))
	}
	if err := checkFields(schema.Name, schema.Fields, false); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	if i := slices.IndexFunc(r.edgeTypes, func(e EdgeTypeSchema) bool { return e.Name == schema.Name }); i >= 0 {
		r.edgeTypes[i] = schema
		return nil
	}
	r.edgeTypes = append(r.edgeTypes, schema)
	return nil
}

func checkFields(owner string, fields []FieldSpec, rejectReserved bool) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		path := owner + "." + f.Name
		if rejectReserved && IsReserved(f.Name) {
			return invalid(path, f.Name, ErrReservedAttribute)
		}
		if seen[f.Name] {
			return invalid(path, f.Name, fmt.Errorf("%w: duplicate field", ErrInvalidSchema))
		}
		if f.Score && f.Kind != "" && f.Kind != KindFloat {
			return invalid(path, f.Kind, fmt.Errorf("%w: score fields are floats", ErrInvalidSchema))
		}
		seen[f.Name] = true
	}
	return nil
}

// AllowEdges permits the named edge types from source to target. Either
// category may be WildcardCategory.
func (r *Registry) AllowEdges(source, target string, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}

	for _, c := range []string{source, target} {
		if c != WildcardCategory && !r.hasCategory(c) {
			return invalid("category", c, ErrUnknownCategory)
		}
	}
	key := edgeKey{source, target}
	for _, name := range names {
		if !slices.ContainsFunc(r.edgeTypes, func(e EdgeTypeSchema) bool { return e.Name == name }) {
			return invalid("edge_type", name, ErrUnknownEdgeType)
		}
		if !slices.Contains(r.edges[key], name) {
			r.edges[key] = append(r.edges[key], name)
		}
	}
	return nil
}

// AllowedEdges returns the edge types permitted from source to target,
// including those granted through the wildcard.
func (r *Registry) AllowedEdges(source, target string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, key := range []edgeKey{
		{source, target},
		{source, WildcardCategory},
		{WildcardCategory, target},
		{WildcardCategory, WildcardCategory},
	} {
		for _, name := range r.edges[key] {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// ValidateEdge checks that name is allowed between the categories and that
// props match the edge type's fields.
func (r *Registry) ValidateEdge(source, target, name string, props map[string]any) error {
	if !slices.Contains(r.AllowedEdges(source, target), name) {
		return invalid(fmt.Sprintf("%s->%s", source, target), name, ErrEdgeNotAllowed)
	}

	schema, ok := r.EdgeType(name)
	if !ok {
		return invalid("edge_type", name, ErrUnknownEdgeType)
	}
	for key, value := range props {
		f, ok := findField(schema.Fields, key)
		if !ok {
			continue
		}
		if _, err := f.coerce(name+"."+key, value); err != nil {
			return err
		}
	}
	return nil
}

// FilterAttributes returns the attributes that are valid for category, in
// canonical form, together with one error per rejected key. Keys not
// declared by the category are kept as free-form strings when they are
// strings, and rejected otherwise.
func (r *Registry) FilterAttributes(category string, attrs map[string]any) (map[string]any, []error) {
	schema, ok := r.Category(category)
	if !ok {
		return nil, []error{invalid("category", category, ErrUnknownCategory)}
	}

	clean := make(map[string]any, len(attrs))
	var problems []error
	for _, key := range sortedKeys(attrs) {
		value := attrs[key]
		path := category + "." + key
		if IsReserved(key) {
			problems = append(problems, invalid(path, key, ErrReservedAttribute))
			continue
		}
		if value == nil {
			continue
		}
		f, declared := schema.Field(key)
		if !declared {
			if s, isString := value.(string); isString {
				clean[key] = s
				continue
			}
			problems = append(problems, invalid(path, value, ErrInvalidValue))
			continue
		}
		v, err := f.coerce(path, value)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		clean[key] = v
	}
	return clean, problems
}

// ValidateAttributes returns the first problem FilterAttributes finds.
func (r *Registry) ValidateAttributes(category string, attrs map[string]any) error {
	if _, problems := r.FilterAttributes(category, attrs); len(problems) > 0 {
		return problems[0]
	}
	return nil
}

// Category looks up a registered category.
func (r *Registry) Category(name string) (CategorySchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.categories, func(c CategorySchema) bool { return c.Name == name })
	if i < 0 {
		return CategorySchema{}, false
	}
	return r.categories[i], true
}

func (r *Registry) hasCategory(name string) bool {
	return slices.ContainsFunc(r.categories, func(c CategorySchema) bool { return c.Name == name })
}

// Categories returns the categories in registration order.
func (r *Registry) Categories() []CategorySchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.categories)
}

// CategoryNames returns the category names in registration order.
func (r *Registry) CategoryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// EdgeType looks up a registered edge type.
func (r *Registry) EdgeType(name string) (EdgeTypeSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.edgeTypes, func(e EdgeTypeSchema) bool { return e.Name == name })
	if i < 0 {
		return EdgeTypeSchema{}, false
	}
	return r.edgeTypes[i], true
}

// EdgeTypes returns the edge types in registration order.
func (r *Registry) EdgeTypes() []EdgeTypeSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.edgeTypes)
}

// Freeze makes the registry read-only. The pipeline freezes it before a run.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
