// Package schema loads the graph-to-table mapping document and resolves
// graph-model identifiers (labels, relationship types, properties) to
// physical tables, columns and join predicates. A loaded Mapping is
// immutable and safe to share across concurrent translations.
package schema

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Sentinel errors
var (
	// ErrInvalidDocument is returned when the schema document fails
	// load-time validation. The mapping fails fast: no lookup is served
	// from a document that did not validate completely.
	ErrInvalidDocument = errors.New("invalid schema document")
	// ErrResolution is returned when a label, relationship type or
	// property has no binding in the loaded schema.
	ErrResolution = errors.New("schema resolution failed")
)

// PropertyType enumerates the declared property types.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeInt      PropertyType = "int"
	TypeDatetime PropertyType = "datetime"
	TypeBool     PropertyType = "bool"
	TypeFloat    PropertyType = "float"
	TypeArray    PropertyType = "array"
	TypeObject   PropertyType = "object"
)

var validPropertyTypes = map[PropertyType]struct{}{
	TypeString:   {},
	TypeInt:      {},
	TypeDatetime: {},
	TypeBool:     {},
	TypeFloat:    {},
	TypeArray:    {},
	TypeObject:   {},
}

// Property declares one graph property and its physical column. Properties
// are a list, not a map: declaration order breaks identity-column ties.
type Property struct {
	Name     string       `yaml:"name"`
	Column   string       `yaml:"column"`
	Type     PropertyType `yaml:"type"`
	Required bool         `yaml:"required"`
}

// Node maps a label to a physical table and its property list.
type Node struct {
	Table      string     `yaml:"table"`
	Properties []Property `yaml:"properties"`
}

// Edge maps a relationship type to a join predicate between two labels.
type Edge struct {
	From       string     `yaml:"from"`
	To         string     `yaml:"to"`
	Join       string     `yaml:"join"`
	Strength   string     `yaml:"strength"`
	Properties []Property `yaml:"properties,omitempty"`
}

// Table carries physical table metadata used for preamble generation and
// join-predicate validation.
type Table struct {
	Retention string   `yaml:"retention"`
	Fields    []string `yaml:"fields"`
	// Identity optionally pins the node-identity column for the table,
	// overriding the property-based selection rules.
	Identity string `yaml:"identity,omitempty"`
}

// Document is the raw schema configuration. It is treated as untrusted
// input: every reference is validated before a Mapping is built from it.
type Document struct {
	Nodes  map[string]Node  `yaml:"nodes"`
	Edges  map[string]Edge  `yaml:"edges"`
	Tables map[string]Table `yaml:"tables"`
}

// Relationship is the resolved form of an edge.
type Relationship struct {
	Type      string
	FromLabel string
	ToLabel   string
	Join      string
	Strength  string
}

// Mapping is the validated, immutable schema with O(1) lookup caches.
type Mapping struct {
	nodes     map[string]Node
	edges     map[string]Relationship
	edgeProps map[string][]Property
	tables    map[string]Table
	identity  map[string]string // label -> identity column, precomputed
}

// Load reads and validates a schema document from a YAML file.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse validates a schema document and builds the lookup caches. The
// returned Mapping never changes; reloading produces a new Mapping.
func Parse(data []byte) (*Mapping, error) {
	var doc Document
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, err)
	}
	return Build(doc)
}

// Build validates an in-memory document and constructs a Mapping.
func Build(doc Document) (*Mapping, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	m := &Mapping{
		nodes:     make(map[string]Node, len(doc.Nodes)),
		edges:     make(map[string]Relationship, len(doc.Edges)),
		edgeProps: make(map[string][]Property, len(doc.Edges)),
		tables:    make(map[string]Table, len(doc.Tables)),
		identity:  make(map[string]string, len(doc.Nodes)),
	}

	for label, node := range doc.Nodes {
		m.nodes[label] = node
	}
	for name, table := range doc.Tables {
		m.tables[name] = table
	}
	for typ, edge := range doc.Edges {
		m.edges[typ] = Relationship{
			Type:      typ,
			FromLabel: edge.From,
			ToLabel:   edge.To,
			Join:      edge.Join,
			Strength:  edge.Strength,
		}
		m.edgeProps[typ] = edge.Properties
	}
	for label, node := range doc.Nodes {
		m.identity[label] = selectIdentityColumn(node, doc.Tables[node.Table])
	}

	return m, nil
}

// joinRefPattern matches table.column references inside join predicates.
var joinRefPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`)

// validate performs load-time referential-integrity checks: every edge
// endpoint is a declared node, every property column and join-predicate
// reference is a declared table field, property types are from the
// enumerated set, and edge properties do not collide with endpoint node
// properties.
func validate(doc Document) error {
	if len(doc.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes declared", ErrInvalidDocument)
	}

	for label, node := range doc.Nodes {
		if node.Table == "" {
			return fmt.Errorf("%w: node %q declares no table", ErrInvalidDocument, label)
		}
		if _, ok := doc.Tables[node.Table]; !ok {
			return fmt.Errorf("%w: node %q references undeclared table %q", ErrInvalidDocument, label, node.Table)
		}
		if err := validateProperties(label, node.Properties); err != nil {
			return err
		}
		for _, p := range node.Properties {
			if !containsField(doc.Tables[node.Table].Fields, p.Column) {
				return fmt.Errorf("%w: node %q property %q maps to column %q, not a declared field of table %q",
					ErrInvalidDocument, label, p.Name, p.Column, node.Table)
			}
		}
	}

	for typ, edge := range doc.Edges {
		fromNode, ok := doc.Nodes[edge.From]
		if !ok {
			return fmt.Errorf("%w: edge %q references undeclared node label %q", ErrInvalidDocument, typ, edge.From)
		}
		toNode, ok := doc.Nodes[edge.To]
		if !ok {
			return fmt.Errorf("%w: edge %q references undeclared node label %q", ErrInvalidDocument, typ, edge.To)
		}
		if strings.TrimSpace(edge.Join) == "" {
			return fmt.Errorf("%w: edge %q declares no join predicate", ErrInvalidDocument, typ)
		}
		if err := validateProperties("edge "+typ, edge.Properties); err != nil {
			return err
		}

		// Edge properties may not shadow endpoint node properties, since
		// both apply to the same traversal.
		for _, ep := range edge.Properties {
			for _, np := range append(append([]Property{}, fromNode.Properties...), toNode.Properties...) {
				if ep.Name == np.Name {
					return fmt.Errorf("%w: edge %q property %q collides with a node property", ErrInvalidDocument, typ, ep.Name)
				}
			}
		}

		refs := joinRefPattern.FindAllStringSubmatch(edge.Join, -1)
		if len(refs) == 0 {
			return fmt.Errorf("%w: edge %q join predicate %q references no table.column pair", ErrInvalidDocument, typ, edge.Join)
		}
		for _, ref := range refs {
			tableName, columnName := ref[1], ref[2]
			table, ok := doc.Tables[tableName]
			if !ok {
				return fmt.Errorf("%w: edge %q join predicate references undeclared table %q", ErrInvalidDocument, typ, tableName)
			}
			if !containsField(table.Fields, columnName) {
				return fmt.Errorf("%w: edge %q join predicate references unknown column %q of table %q", ErrInvalidDocument, typ, columnName, tableName)
			}
		}
	}

	for name, table := range doc.Tables {
		if table.Identity != "" && !containsField(table.Fields, table.Identity) {
			return fmt.Errorf("%w: table %q identity column %q is not a declared field", ErrInvalidDocument, name, table.Identity)
		}
	}

	return nil
}

func validateProperties(owner string, props []Property) error {
	seen := map[string]struct{}{}
	for _, p := range props {
		if p.Name == "" {
			return fmt.Errorf("%w: %s declares a property with no name", ErrInvalidDocument, owner)
		}
		if p.Column == "" {
			return fmt.Errorf("%w: %s property %q declares no column", ErrInvalidDocument, owner, p.Name)
		}
		if _, ok := validPropertyTypes[p.Type]; !ok {
			return fmt.Errorf("%w: %s property %q has invalid type %q", ErrInvalidDocument, owner, p.Name, p.Type)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: %s declares property %q twice", ErrInvalidDocument, owner, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// identityMarkers are substrings that flag a property as a node identity.
var identityMarkers = []string{"id", "identity", "key"}

// selectIdentityColumn picks the node-identity column in priority order:
// a required property whose name carries an identity marker, then the
// first required property, then the table's configured identity column,
// then the first declared property column, then the first table field.
// Declaration order breaks every tie.
func selectIdentityColumn(node Node, table Table) string {
	for _, p := range node.Properties {
		if p.Required && hasIdentityMarker(p.Name) {
			return p.Column
		}
	}
	for _, p := range node.Properties {
		if p.Required {
			return p.Column
		}
	}
	if table.Identity != "" {
		return table.Identity
	}
	if len(node.Properties) > 0 {
		return node.Properties[0].Column
	}
	if len(table.Fields) > 0 {
		return table.Fields[0]
	}
	return ""
}

func hasIdentityMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range identityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
