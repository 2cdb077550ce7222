package kql

import (
	"fmt"
	"strings"

	"github.com/rysweet/yellowstone/parser"
)

// aggregateFunctions maps Cypher aggregations to KQL summarize functions.
var aggregateFunctions = map[string]string{
	"COUNT":   "count",
	"SUM":     "sum",
	"AVG":     "avg",
	"MIN":     "min",
	"MAX":     "max",
	"COLLECT": "make_list",
}

// namedExpr is one projected column: output name plus source expression.
type namedExpr struct {
	Name string
	Expr string
}

// projection is the translated RETURN clause, split into the pipeline
// stages the assembler emits in fixed order.
type projection struct {
	ProjectColumns []namedExpr
	Summarize      string // full summarize stage body, empty when no aggregation
	Distinct       bool
	SortKeys       []string // "name asc" / "name desc"
	Skip           *int
	Limit          *int
}

// translateReturn converts the RETURN clause. Aggregations split the output
// into a graph-match projection of base columns followed by a summarize
// stage grouped by the non-aggregated items.
func (t *translator) translateReturn(ret *parser.ReturnClause) (*projection, error) {
	proj := &projection{
		Distinct: ret.Distinct,
		Skip:     ret.Skip,
		Limit:    ret.Limit,
	}

	type outputItem struct {
		item      *parser.ReturnItem
		name      string
		aggregate *parser.FunctionCall // nil for plain items
	}

	items := make([]outputItem, 0, len(ret.Items))
	usedNames := map[string]int{}
	for _, item := range ret.Items {
		out := outputItem{item: item}
		if call, ok := item.Expression.(*parser.FunctionCall); ok && parser.IsAggregateFunction(call.Name) {
			out.aggregate = call
		}

		name := item.Alias
		if name == "" {
			name = deriveName(item.Expression)
		}
		if n := usedNames[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		usedNames[name]++
		out.name = name
		items = append(items, out)
	}

	hasAggregation := false
	for _, out := range items {
		if out.aggregate != nil {
			hasAggregation = true
			break
		}
	}

	if !hasAggregation {
		for _, out := range items {
			expr, err := t.renderCondition(out.item.Expression)
			if err != nil {
				return nil, err
			}
			proj.ProjectColumns = append(proj.ProjectColumns, namedExpr{Name: out.name, Expr: expr})
		}
	} else {
		// Group keys come first: every non-aggregated item both projects a
		// base column and names a summarize-by key.
		var groupKeys []string
		var aggregates []string
		baseSeen := map[string]struct{}{}

		addBase := func(name, expr string) {
			if _, ok := baseSeen[name]; ok {
				return
			}
			baseSeen[name] = struct{}{}
			proj.ProjectColumns = append(proj.ProjectColumns, namedExpr{Name: name, Expr: expr})
		}

		for _, out := range items {
			if out.aggregate != nil {
				continue
			}
			expr, err := t.renderCondition(out.item.Expression)
			if err != nil {
				return nil, err
			}
			addBase(out.name, expr)
			groupKeys = append(groupKeys, out.name)
		}

		for _, out := range items {
			if out.aggregate == nil {
				continue
			}
			kqlFn := aggregateFunctions[strings.ToUpper(out.aggregate.Name)]

			if kqlFn == "count" {
				// count() takes no argument, but the argument still has to
				// flow out of the pattern stage so there is a row stream to
				// count.
				if len(out.aggregate.Args) == 1 {
					arg := out.aggregate.Args[0]
					if access, ok := arg.(*parser.PropertyAccess); !ok || access.Variable != "*" {
						argExpr, err := t.renderCondition(arg)
						if err != nil {
							return nil, err
						}
						addBase(deriveName(arg), argExpr)
					}
				}
				aggregates = append(aggregates, out.name+" = count()")
				continue
			}

			if len(out.aggregate.Args) != 1 {
				return nil, fmt.Errorf("%w: aggregation %s requires exactly one argument, got %d",
					ErrUnsupportedConstruct, strings.ToUpper(out.aggregate.Name), len(out.aggregate.Args))
			}
			arg := out.aggregate.Args[0]
			argExpr, err := t.renderCondition(arg)
			if err != nil {
				return nil, err
			}
			base := deriveName(arg)
			addBase(base, argExpr)
			aggregates = append(aggregates, fmt.Sprintf("%s = %s(%s)", out.name, kqlFn, base))
		}

		if len(proj.ProjectColumns) == 0 {
			// count(*) with no group keys: project a constant so the
			// pattern stage still emits one row per match.
			addBase("one", "1")
		}

		summarize := "summarize " + strings.Join(aggregates, ", ")
		if len(groupKeys) > 0 {
			summarize += " by " + strings.Join(groupKeys, ", ")
		}
		proj.Summarize = summarize
	}

	// ORDER BY keys must reference a projected item: KQL sorts on output
	// columns, so an expression that is not returned has no column to
	// sort by. Keys match by alias or by structural equality with a
	// RETURN item expression.
	for _, key := range ret.OrderBy {
		keyText := orderKeyText(key.Expression)
		name := ""
		for _, out := range items {
			if access, ok := key.Expression.(*parser.PropertyAccess); ok && access.Property == "" && access.Variable == out.name {
				name = out.name
				break
			}
			if orderKeyText(out.item.Expression) == keyText {
				name = out.name
				break
			}
		}
		if name == "" {
			return nil, fmt.Errorf("%w: ORDER BY expression %s does not match any RETURN item",
				ErrUnsupportedConstruct, keyText)
		}

		direction := "asc"
		if key.Descending {
			direction = "desc"
		}
		proj.SortKeys = append(proj.SortKeys, name+" "+direction)
	}

	return proj, nil
}

// orderKeyText renders an expression for ORDER BY matching. Function names
// are case-insensitive in the source language, so `ORDER BY count(n)`
// matches `RETURN COUNT(n)`.
func orderKeyText(c parser.Condition) string {
	if call, ok := c.(*parser.FunctionCall); ok {
		args := make([]string, len(call.Args))
		for i, arg := range call.Args {
			args[i] = orderKeyText(arg)
		}
		return strings.ToUpper(call.Name) + "(" + strings.Join(args, ", ") + ")"
	}
	return parser.ExprString(c)
}

// deriveName builds a deterministic output column name from an expression:
// `u.name` becomes u_name, `COUNT(n)` becomes count_n, `count(*)` becomes
// count_all.
func deriveName(expr parser.Condition) string {
	switch e := expr.(type) {
	case *parser.PropertyAccess:
		if e.Property == "" {
			if e.Variable == "*" {
				return "all"
			}
			return e.Variable
		}
		return sanitize(e.Variable + "_" + e.Property)
	case *parser.FunctionCall:
		parts := make([]string, 0, len(e.Args)+1)
		parts = append(parts, strings.ToLower(e.Name))
		for _, arg := range e.Args {
			parts = append(parts, deriveName(arg))
		}
		return sanitize(strings.Join(parts, "_"))
	default:
		return sanitize(parser.ExprString(expr))
	}
}

func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
