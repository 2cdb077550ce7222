package kql

import (
	"fmt"
	"strings"

	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
)

// scalarFunctions maps supported Cypher scalar functions to their KQL
// spellings. The table is total over the supported surface: anything
// missing here is an unsupported construct, never a best-effort guess.
var scalarFunctions = map[string]string{
	"TOLOWER":  "tolower",
	"TOUPPER":  "toupper",
	"TOSTRING": "tostring",
	"SIZE":     "strlen",
	"LENGTH":   "strlen",
	"TRIM":     "trim",
	"ABS":      "abs",
	"ROUND":    "round",
}

// translateFilter converts a WHERE condition tree into a KQL boolean
// expression. The tree is the precedence: grouping is re-emitted from
// structure, never re-derived from token order.
func (t *translator) translateFilter(where *parser.WhereClause) (string, error) {
	if where == nil || where.Condition == nil {
		return "", nil
	}
	return t.renderCondition(where.Condition)
}

func (t *translator) renderCondition(c parser.Condition) (string, error) {
	switch e := c.(type) {
	case *parser.Comparison:
		return t.renderComparison(e)
	case *parser.Logical:
		return t.renderLogical(e)
	case *parser.FunctionCall:
		return t.renderFunctionCall(e)
	case *parser.PropertyAccess:
		return t.renderPropertyAccess(e)
	case *parser.Literal:
		return renderLiteral(e), nil
	default:
		// The condition set is closed; a new variant must be handled
		// here before it can reach translation.
		return "", fmt.Errorf("%w: unrecognized condition node %T", ErrUnsupportedConstruct, c)
	}
}

// renderComparison maps every supported operator to exactly one KQL token.
func (t *translator) renderComparison(cmp *parser.Comparison) (string, error) {
	left, err := t.renderOperand(cmp.Left)
	if err != nil {
		return "", err
	}

	switch cmp.Op {
	case parser.OpIsNull:
		return "isnull(" + left + ")", nil
	case parser.OpIsNotNull:
		return "isnotnull(" + left + ")", nil
	}

	right, err := t.renderOperand(cmp.Right)
	if err != nil {
		return "", err
	}

	switch cmp.Op {
	case parser.OpEqual:
		return left + " == " + right, nil
	case parser.OpNotEqual:
		return left + " != " + right, nil
	case parser.OpLess:
		return left + " < " + right, nil
	case parser.OpGreater:
		return left + " > " + right, nil
	case parser.OpLessEqual:
		return left + " <= " + right, nil
	case parser.OpGreaterEqual:
		return left + " >= " + right, nil
	case parser.OpContains:
		return left + " contains " + right, nil
	case parser.OpStartsWith:
		return left + " startswith " + right, nil
	case parser.OpEndsWith:
		return left + " endswith " + right, nil
	case parser.OpIn:
		return left + " in " + right, nil
	default:
		return "", fmt.Errorf("%w: comparison operator %s", ErrUnsupportedConstruct, cmp.Op)
	}
}

// renderOperand renders a comparison operand; nested logical trees are
// parenthesized by structure.
func (t *translator) renderOperand(c parser.Condition) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: comparison is missing an operand", ErrUnsupportedConstruct)
	}
	rendered, err := t.renderCondition(c)
	if err != nil {
		return "", err
	}
	if _, nested := c.(*parser.Logical); nested {
		return "(" + rendered + ")", nil
	}
	return rendered, nil
}

func (t *translator) renderLogical(l *parser.Logical) (string, error) {
	if l.Op == parser.LogicalNot {
		if len(l.Operands) != 1 {
			return "", fmt.Errorf("%w: NOT requires exactly one operand, got %d", ErrUnsupportedConstruct, len(l.Operands))
		}
		operand, err := t.renderCondition(l.Operands[0])
		if err != nil {
			return "", err
		}
		return "not (" + operand + ")", nil
	}

	connective := " and "
	if l.Op == parser.LogicalOr {
		connective = " or "
	}

	parts := make([]string, 0, len(l.Operands))
	for _, operand := range l.Operands {
		rendered, err := t.renderCondition(operand)
		if err != nil {
			return "", err
		}
		if _, nested := operand.(*parser.Logical); nested {
			rendered = "(" + rendered + ")"
		}
		parts = append(parts, rendered)
	}

	return strings.Join(parts, connective), nil
}

func (t *translator) renderFunctionCall(call *parser.FunctionCall) (string, error) {
	upperName := strings.ToUpper(call.Name)

	if parser.IsAggregateFunction(call.Name) {
		return "", fmt.Errorf("%w: aggregation function %s is not allowed in a filter", ErrUnsupportedConstruct, upperName)
	}

	kqlName, ok := scalarFunctions[upperName]
	if !ok {
		return "", fmt.Errorf("%w: function %s has no KQL equivalent", ErrUnsupportedConstruct, call.Name)
	}

	args := make([]string, 0, len(call.Args))
	for _, arg := range call.Args {
		rendered, err := t.renderCondition(arg)
		if err != nil {
			return "", err
		}
		args = append(args, rendered)
	}

	return kqlName + "(" + strings.Join(args, ", ") + ")", nil
}

// renderPropertyAccess rewrites `variable.property` through the schema
// resolver using the variable's label binding from the MATCH clause. A
// property access on an unbound variable cannot be resolved and fails.
func (t *translator) renderPropertyAccess(access *parser.PropertyAccess) (string, error) {
	if access.Property == "" {
		// Bare variable: a node handle, passed through untouched.
		return access.Variable, nil
	}

	label, ok := t.bindings[access.Variable]
	if !ok {
		return "", fmt.Errorf("%w: variable %q is not bound to a labeled node; cannot resolve property %q",
			schema.ErrResolution, access.Variable, access.Property)
	}

	resolved, err := t.mapping.ResolveProperty(label, access.Property)
	if err != nil {
		return "", err
	}

	table, err := t.mapping.ResolveTable(label)
	if err != nil {
		return "", err
	}
	t.recordColumn(table, resolved.Column)

	return access.Variable + "." + resolved.Column, nil
}

// renderLiteral emits a KQL literal. Strings are double-quoted with
// backslash escaping; lists become the parenthesized form used by `in`.
func renderLiteral(lit *parser.Literal) string {
	switch lit.Kind {
	case parser.LiteralString:
		return quoteString(lit.Value)
	case parser.LiteralNull:
		return "dynamic(null)"
	case parser.LiteralList:
		items := make([]string, len(lit.List))
		for i, item := range lit.List {
			items[i] = renderLiteral(item)
		}
		return "(" + strings.Join(items, ", ") + ")"
	default:
		return lit.Value
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
