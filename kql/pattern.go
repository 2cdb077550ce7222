package kql

import (
	"fmt"
	"strings"

	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
)

// translator carries per-call translation state: variable bindings gathered
// from the MATCH clauses, warnings, and the physical references emitted so
// far (re-checked by the assembler).
type translator struct {
	mapping  *schema.Mapping
	opts     Options
	bindings map[string]string // variable -> label
	warnings []Warning
	emitted  []columnRef // every physical reference written to the output
	tables   []string    // every physical table written to the output
}

type columnRef struct {
	Table  string
	Column string
}

func newTranslator(mapping *schema.Mapping, opts Options) *translator {
	return &translator{
		mapping:  mapping,
		opts:     opts.withDefaults(),
		bindings: make(map[string]string),
	}
}

func (t *translator) warnf(code, format string, args ...any) {
	t.warnings = append(t.warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (t *translator) recordColumn(table, column string) {
	t.emitted = append(t.emitted, columnRef{Table: table, Column: column})
}

func (t *translator) recordTable(table string) {
	t.tables = append(t.tables, table)
}

// bindVariables walks every pattern and records variable -> label bindings.
// A variable bound twice with different labels is rejected.
func (t *translator) bindVariables(matches []*parser.MatchClause) error {
	for _, match := range matches {
		for _, path := range match.Paths {
			for _, node := range path.Nodes {
				if node.Variable == "" || len(node.Labels) == 0 {
					continue
				}
				label := node.Labels[0]
				if existing, ok := t.bindings[node.Variable]; ok && existing != label {
					return fmt.Errorf("%w: variable %q bound to both label %q and label %q",
						ErrUnsupportedConstruct, node.Variable, existing, label)
				}
				t.bindings[node.Variable] = label
			}
		}
	}
	return nil
}

// patternLabels returns the distinct labels referenced across the given
// match clauses, in pattern order.
func patternLabels(matches []*parser.MatchClause) []string {
	var labels []string
	seen := map[string]struct{}{}
	for _, match := range matches {
		for _, path := range match.Paths {
			for _, node := range path.Nodes {
				for _, label := range node.Labels {
					if _, ok := seen[label]; !ok {
						seen[label] = struct{}{}
						labels = append(labels, label)
					}
				}
			}
		}
	}
	return labels
}

// translatePreamble resolves the pattern's labels to physical tables and
// emits the graph-construction preamble:
//
//	<Table>
//	| make-graph <IdColumn> --> <IdColumn>
//
// Patterns spanning several tables need a join-aware preamble that does not
// exist yet; they are rejected unless explicitly allowed, in which case the
// first label's table wins and a warning records the rest.
func (t *translator) translatePreamble(matches []*parser.MatchClause) (string, error) {
	labels := patternLabels(matches)

	if len(labels) == 0 {
		// An unlabeled pattern is resolvable only when the schema has a
		// single node mapping to choose from.
		all := t.mapping.Labels()
		if len(all) != 1 {
			return "", fmt.Errorf("%w: pattern references no label and the schema declares %d; cannot choose a source table",
				ErrUnsupportedConstruct, len(all))
		}
		labels = all
	}

	type labelTable struct {
		label string
		table string
	}
	resolved := make([]labelTable, 0, len(labels))
	seenTables := map[string]struct{}{}
	for _, label := range labels {
		table, err := t.mapping.ResolveTable(label)
		if err != nil {
			return "", err
		}
		if _, ok := seenTables[table]; !ok {
			seenTables[table] = struct{}{}
			resolved = append(resolved, labelTable{label: label, table: table})
		}
	}

	if len(resolved) > 1 {
		if !t.opts.AllowMultiTablePatterns {
			names := make([]string, len(resolved))
			for i, lt := range resolved {
				names[i] = lt.table
			}
			return "", fmt.Errorf("%w: pattern spans multiple tables (%s); a join-aware preamble is not supported",
				ErrUnsupportedConstruct, strings.Join(names, ", "))
		}
		others := make([]string, 0, len(resolved)-1)
		for _, lt := range resolved[1:] {
			others = append(others, lt.table)
		}
		t.warnf(WarnMultiTablePattern,
			"pattern spans multiple tables; graph built from primary table %s only (ignored: %s)",
			resolved[0].table, strings.Join(others, ", "))
	}

	primary := resolved[0]
	identity, err := t.mapping.NodeIdentityColumn(primary.label)
	if err != nil {
		return "", err
	}

	t.recordTable(primary.table)
	t.recordColumn(primary.table, identity)

	return fmt.Sprintf("%s\n| make-graph %s --> %s", primary.table, identity, identity), nil
}

// translatePatterns renders every path expression of the given match
// clauses as a graph-match pattern list. Optional matches translate with
// inner-match semantics: rows without the optional part are dropped, which
// is recorded as a warning rather than silently approximated.
func (t *translator) translatePatterns(matches []*parser.MatchClause) (string, error) {
	var rendered []string
	for _, match := range matches {
		if match.Optional {
			t.warnf(WarnOptionalMatch,
				"OPTIONAL MATCH translated with inner-match semantics; rows without the optional pattern are dropped")
		}
		for _, path := range match.Paths {
			body, err := t.translatePath(path)
			if err != nil {
				return "", err
			}
			rendered = append(rendered, body)
		}
	}
	return strings.Join(rendered, ", "), nil
}

// translatePath renders one node/relationship chain.
func (t *translator) translatePath(path *parser.PathExpression) (string, error) {
	var b strings.Builder

	for i, node := range path.Nodes {
		if i > 0 {
			rel := path.Relationships[i-1]
			relBody, err := t.translateRelationship(rel)
			if err != nil {
				return "", err
			}
			b.WriteString(relBody)
		}
		nodeBody, err := t.translateNode(node)
		if err != nil {
			return "", err
		}
		b.WriteString(nodeBody)
	}

	return b.String(), nil
}

// translateNode renders `(var:Label {prop: value})` with properties
// rewritten to physical columns.
func (t *translator) translateNode(node *parser.NodePattern) (string, error) {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(node.Variable)

	for _, label := range node.Labels {
		// Labels must resolve even though the emitted syntax keeps the
		// graph-model name; unknown labels fail here rather than at the
		// backend.
		if _, err := t.mapping.ResolveTable(label); err != nil {
			return "", err
		}
		b.WriteByte(':')
		b.WriteString(label)
	}

	if len(node.Properties) > 0 {
		if len(node.Labels) == 0 {
			return "", fmt.Errorf("%w: inline properties on node %q require a label to resolve against",
				schema.ErrResolution, node.Variable)
		}
		label := node.Labels[0]
		table, err := t.mapping.ResolveTable(label)
		if err != nil {
			return "", err
		}

		b.WriteString(" {")
		for i, prop := range node.Properties {
			resolved, err := t.mapping.ResolveProperty(label, prop.Key)
			if err != nil {
				return "", err
			}
			t.recordColumn(table, resolved.Column)
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(resolved.Column)
			b.WriteString(": ")
			b.WriteString(renderLiteral(prop.Value))
		}
		b.WriteByte('}')
	}

	b.WriteByte(')')
	return b.String(), nil
}

// translateRelationship renders the directional edge syntax, resolving
// every relationship type and validating the hop bound against the
// traversal ceiling.
func (t *translator) translateRelationship(rel *parser.RelationshipPattern) (string, error) {
	for _, relType := range rel.Types {
		if _, err := t.mapping.ResolveRelationship(relType); err != nil {
			return "", err
		}
	}

	if rel.Length != nil {
		if err := t.checkTraversalBound(rel.Length.EffectiveMax()); err != nil {
			return "", err
		}
	}

	var body strings.Builder
	body.WriteString(rel.Variable)
	if len(rel.Types) > 0 {
		body.WriteByte(':')
		body.WriteString(strings.Join(rel.Types, "|"))
	}
	if rel.Length != nil {
		// The source bound syntax is preserved verbatim.
		body.WriteString(rel.Length.String())
	}

	inner := body.String()

	switch rel.Direction {
	case parser.DirectionOut:
		if inner == "" {
			return "-->", nil
		}
		return "-[" + inner + "]->", nil
	case parser.DirectionIn:
		if inner == "" {
			return "<--", nil
		}
		return "<-[" + inner + "]-", nil
	default:
		if inner == "" {
			return "--", nil
		}
		return "-[" + inner + "]-", nil
	}
}

// checkTraversalBound enforces the unbounded-depth policy and the finite
// traversal ceiling. max of -1 means unbounded.
func (t *translator) checkTraversalBound(max int) error {
	if max == -1 {
		if !t.opts.AllowUnboundedTraversal {
			return fmt.Errorf("%w: variable-length pattern with no upper bound", ErrUnsupportedConstruct)
		}
		t.warnf(WarnUnboundedDepth, "variable-length pattern has no upper bound; traversal depth is unconstrained")
		return nil
	}
	if max > t.opts.MaxTraversalDepth {
		return fmt.Errorf("%w: traversal depth %d exceeds ceiling %d", ErrUnsupportedConstruct, max, t.opts.MaxTraversalDepth)
	}
	return nil
}
