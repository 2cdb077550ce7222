package kql

import (
	"fmt"
	"strings"

	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
)

// pathPlan is the translated form of one path-algorithm constraint: the
// operator stage body plus the enumeration cap for all-paths searches.
type pathPlan struct {
	Operator   string // operator line without the leading pipe
	Conditions []string
	TakeLimit  int // 0 means no enumeration cap stage
}

// planPathSearch validates a path constraint and builds the KQL operator
// for it. Constraint violations surface before any syntax is emitted; no
// value is ever clamped into range silently.
func (t *translator) planPathSearch(c *parser.PathConstraint) (*pathPlan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := t.checkTraversalBound(c.MaxLength); err != nil {
		return nil, err
	}

	relTypes, err := t.admissibleRelTypes(c)
	if err != nil {
		return nil, err
	}

	plan := &pathPlan{}

	edgeVar := "e"
	pattern, err := t.renderConstraintPattern(c, edgeVar, relTypes)
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case parser.PathShortest, parser.PathAllShortest:
		output := "any"
		if c.Kind == parser.PathAllShortest {
			output = "all"
		}

		operator := "graph-shortest-paths output=" + output
		if c.WeightProperty != "" {
			weightColumn, err := t.resolveWeightColumn(relTypes, c.WeightProperty)
			if err != nil {
				return nil, err
			}
			operator += " weight=" + edgeVar + "." + weightColumn
		}
		plan.Operator = operator + " " + pattern

	case parser.PathAll:
		// All-paths enumeration is exponential in graph density; the
		// ceiling guarantees bounded output.
		cycles := "none"
		if c.Cycles == parser.CyclesAllowed {
			cycles = "all"
		}
		plan.Operator = "graph-match cycles=" + cycles + " " + pattern

		limit := c.ResultLimit
		if limit == 0 || limit > t.opts.PathEnumerationLimit {
			limit = t.opts.PathEnumerationLimit
		}
		plan.TakeLimit = limit

	default:
		return nil, fmt.Errorf("%w: path constraint kind %s", ErrUnsupportedConstruct, c.Kind)
	}

	if c.Kind != parser.PathAll && c.ResultLimit > 0 {
		plan.TakeLimit = c.ResultLimit
	}

	endpointConds, err := t.endpointConditions(c)
	if err != nil {
		return nil, err
	}
	plan.Conditions = append(plan.Conditions, endpointConds...)

	exclusionConds, err := t.exclusionConditions(c)
	if err != nil {
		return nil, err
	}
	plan.Conditions = append(plan.Conditions, exclusionConds...)

	return plan, nil
}

// admissibleRelTypes resolves the constraint's relationship types and
// removes the excluded ones. Type exclusion on an untyped pattern has no
// deterministic translation: there is no type set to subtract from.
func (t *translator) admissibleRelTypes(c *parser.PathConstraint) ([]string, error) {
	for _, relType := range c.RelationshipTypes {
		if _, err := t.mapping.ResolveRelationship(relType); err != nil {
			return nil, err
		}
	}

	if len(c.ExcludedRels) == 0 {
		return c.RelationshipTypes, nil
	}
	if len(c.RelationshipTypes) == 0 {
		return nil, fmt.Errorf("%w: cannot exclude relationship types from an untyped path pattern", ErrUnsupportedConstruct)
	}

	excluded := map[string]struct{}{}
	for _, relType := range c.ExcludedRels {
		excluded[relType] = struct{}{}
	}

	var admissible []string
	for _, relType := range c.RelationshipTypes {
		if _, ok := excluded[relType]; !ok {
			admissible = append(admissible, relType)
		}
	}
	if len(admissible) == 0 {
		return nil, fmt.Errorf("%w: every relationship type of the path is excluded", ErrUnsupportedConstruct)
	}
	return admissible, nil
}

// renderConstraintPattern renders `(s)-[e:TYPE*min..max]->(t)`. For a
// bidirectional search the direction markers are dropped: the search
// explores both directions already.
func (t *translator) renderConstraintPattern(c *parser.PathConstraint, edgeVar string, relTypes []string) (string, error) {
	source, err := t.renderEndpoint(c.Sources, "s")
	if err != nil {
		return "", err
	}
	target, err := t.renderEndpoint(c.Targets, "t")
	if err != nil {
		return "", err
	}

	var body strings.Builder
	body.WriteString(edgeVar)
	if len(relTypes) > 0 {
		body.WriteByte(':')
		body.WriteString(strings.Join(relTypes, "|"))
	}
	body.WriteString(renderHopBound(c.MinLength, c.MaxLength))

	edge := "-[" + body.String() + "]-"
	direction := c.Direction
	if c.Bidirectional {
		direction = parser.DirectionBoth
	}

	switch direction {
	case parser.DirectionOut:
		edge += ">"
	case parser.DirectionIn:
		edge = "<" + edge
	}

	return source + edge + target, nil
}

// renderHopBound emits the variable-length syntax for a constraint bound.
func renderHopBound(min, max int) string {
	switch {
	case max == -1:
		return fmt.Sprintf("*%d..", min)
	case min == max:
		if min == 1 {
			return ""
		}
		return fmt.Sprintf("*%d", min)
	default:
		return fmt.Sprintf("*%d..%d", min, max)
	}
}

// renderEndpoint renders one endpoint node. A single ref keeps its inline
// properties in the pattern; multiple refs (multi-source / multi-target)
// render as a bare node and match via a where disjunction instead.
func (t *translator) renderEndpoint(refs []parser.NodeRef, fallbackVar string) (string, error) {
	ref := refs[0]
	variable := ref.Variable
	if variable == "" {
		variable = fallbackVar
	}

	node := &parser.NodePattern{Variable: variable}
	if ref.Label != "" {
		node.Labels = []string{ref.Label}
	}
	if len(refs) == 1 {
		node.Properties = ref.Properties
	}

	// Endpoint variables participate in where/project clauses; bind them
	// so property accesses resolve.
	if ref.Label != "" && node.Variable != "" {
		if existing, ok := t.bindings[node.Variable]; ok && existing != ref.Label {
			return "", fmt.Errorf("%w: variable %q bound to both label %q and label %q",
				ErrUnsupportedConstruct, node.Variable, existing, ref.Label)
		}
		t.bindings[node.Variable] = ref.Label
	}

	return t.translateNode(node)
}

// endpointConditions builds the where-clause disjunction for multi-source
// and multi-target constraints.
func (t *translator) endpointConditions(c *parser.PathConstraint) ([]string, error) {
	var conditions []string

	for _, side := range []struct {
		refs        []parser.NodeRef
		fallbackVar string
	}{
		{c.Sources, "s"},
		{c.Targets, "t"},
	} {
		if len(side.refs) < 2 {
			continue
		}
		cond, err := t.refDisjunction(side.refs, side.fallbackVar)
		if err != nil {
			return nil, err
		}
		if cond != "" {
			conditions = append(conditions, cond)
		}
	}

	return conditions, nil
}

// refDisjunction renders `(v.Col == x and ...) or (v.Col == y)` across the
// refs of one endpoint. Every ref matches against the first ref's pattern
// variable since the pattern names only one node per endpoint.
func (t *translator) refDisjunction(refs []parser.NodeRef, fallbackVar string) (string, error) {
	variable := refs[0].Variable
	if variable == "" {
		variable = fallbackVar
	}

	var alternatives []string
	for _, ref := range refs {
		if len(ref.Properties) == 0 {
			continue
		}
		label := ref.Label
		if label == "" {
			label = refs[0].Label
		}
		if label == "" {
			return "", fmt.Errorf("%w: endpoint with inline properties has no label to resolve against", schema.ErrResolution)
		}

		table, err := t.mapping.ResolveTable(label)
		if err != nil {
			return "", err
		}

		var terms []string
		for _, prop := range ref.Properties {
			resolved, err := t.mapping.ResolveProperty(label, prop.Key)
			if err != nil {
				return "", err
			}
			t.recordColumn(table, resolved.Column)
			terms = append(terms, fmt.Sprintf("%s.%s == %s", variable, resolved.Column, renderLiteral(prop.Value)))
		}
		alternatives = append(alternatives, "("+strings.Join(terms, " and ")+")")
	}

	if len(alternatives) == 0 {
		return "", nil
	}
	if len(alternatives) == 1 {
		return alternatives[0], nil
	}
	return "(" + strings.Join(alternatives, " or ") + ")", nil
}

// exclusionConditions renders excluded-node predicates over the path's
// inner nodes, keyed by the source label's identity column.
func (t *translator) exclusionConditions(c *parser.PathConstraint) ([]string, error) {
	if len(c.ExcludedNodes) == 0 {
		return nil, nil
	}

	label := c.Sources[0].Label
	if label == "" {
		return nil, fmt.Errorf("%w: node exclusion requires a labeled source to select an identity column", ErrUnsupportedConstruct)
	}
	identity, err := t.mapping.NodeIdentityColumn(label)
	if err != nil {
		return nil, err
	}
	table, err := t.mapping.ResolveTable(label)
	if err != nil {
		return nil, err
	}
	t.recordColumn(table, identity)

	values := make([]string, len(c.ExcludedNodes))
	for i, v := range c.ExcludedNodes {
		values[i] = quoteString(v)
	}

	return []string{fmt.Sprintf("all(inner_nodes(e), %s !in (%s))", identity, strings.Join(values, ", "))}, nil
}

// resolveWeightColumn resolves the weight property against every
// admissible relationship type. All types must agree on the physical
// column, otherwise no single weight expression exists.
func (t *translator) resolveWeightColumn(relTypes []string, property string) (string, error) {
	if len(relTypes) == 0 {
		return "", fmt.Errorf("%w: weighted path search requires at least one relationship type", ErrUnsupportedConstruct)
	}

	column := ""
	for _, relType := range relTypes {
		resolved, err := t.mapping.ResolveEdgeProperty(relType, property)
		if err != nil {
			return "", err
		}
		if column == "" {
			column = resolved.Column
		} else if column != resolved.Column {
			return "", fmt.Errorf("%w: weight property %q maps to different columns across relationship types",
				ErrUnsupportedConstruct, property)
		}
	}
	return column, nil
}
