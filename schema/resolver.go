package schema

import "fmt"

// ResolvedProperty is the physical binding of a graph property.
type ResolvedProperty struct {
	Column   string
	Type     PropertyType
	Required bool
}

// ResolveTable returns the physical table a label maps to.
func (m *Mapping) ResolveTable(label string) (string, error) {
	node, ok := m.nodes[label]
	if !ok {
		return "", fmt.Errorf("%w: unknown label %q", ErrResolution, label)
	}
	return node.Table, nil
}

// ResolveProperty returns the physical column binding of label.property.
func (m *Mapping) ResolveProperty(label, property string) (ResolvedProperty, error) {
	node, ok := m.nodes[label]
	if !ok {
		return ResolvedProperty{}, fmt.Errorf("%w: unknown label %q", ErrResolution, label)
	}
	for _, p := range node.Properties {
		if p.Name == property {
			return ResolvedProperty{Column: p.Column, Type: p.Type, Required: p.Required}, nil
		}
	}
	return ResolvedProperty{}, fmt.Errorf("%w: label %q has no property %q", ErrResolution, label, property)
}

// ResolveRelationship returns the resolved edge for a relationship type.
func (m *Mapping) ResolveRelationship(relType string) (Relationship, error) {
	rel, ok := m.edges[relType]
	if !ok {
		return Relationship{}, fmt.Errorf("%w: unknown relationship type %q", ErrResolution, relType)
	}
	return rel, nil
}

// ResolveEdgeProperty returns the physical column binding of a property
// declared on a relationship type (e.g. a traversal weight).
func (m *Mapping) ResolveEdgeProperty(relType, property string) (ResolvedProperty, error) {
	props, ok := m.edgeProps[relType]
	if !ok {
		return ResolvedProperty{}, fmt.Errorf("%w: unknown relationship type %q", ErrResolution, relType)
	}
	for _, p := range props {
		if p.Name == property {
			return ResolvedProperty{Column: p.Column, Type: p.Type, Required: p.Required}, nil
		}
	}
	return ResolvedProperty{}, fmt.Errorf("%w: relationship type %q has no property %q", ErrResolution, relType, property)
}

// NodeIdentityColumn returns the precomputed identity column for a label.
func (m *Mapping) NodeIdentityColumn(label string) (string, error) {
	column, ok := m.identity[label]
	if !ok {
		return "", fmt.Errorf("%w: unknown label %q", ErrResolution, label)
	}
	if column == "" {
		return "", fmt.Errorf("%w: label %q has no resolvable identity column", ErrResolution, label)
	}
	return column, nil
}

// TableMetadata returns retention and field metadata for a physical table.
func (m *Mapping) TableMetadata(name string) (Table, error) {
	table, ok := m.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: unknown table %q", ErrResolution, name)
	}
	return table, nil
}

// HasColumn reports whether a physical table declares a column. Used by the
// assembler for its defense-in-depth re-check of emitted references.
func (m *Mapping) HasColumn(table, column string) bool {
	t, ok := m.tables[table]
	if !ok {
		return false
	}
	return containsField(t.Fields, column)
}

// Labels returns every declared node label. Intended for diagnostics; order
// is unspecified.
func (m *Mapping) Labels() []string {
	labels := make([]string, 0, len(m.nodes))
	for label := range m.nodes {
		labels = append(labels, label)
	}
	return labels
}

// RelationshipTypes returns every declared relationship type. Intended for
// diagnostics; order is unspecified.
func (m *Mapping) RelationshipTypes() []string {
	types := make([]string, 0, len(m.edges))
	for typ := range m.edges {
		types = append(types, typ)
	}
	return types
}
