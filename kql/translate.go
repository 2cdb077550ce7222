package kql

import (
	"fmt"
	"strings"

	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
)

// Translate converts a parsed query into a KQL pipeline. The translation
// is a pure function of the query, the mapping and the options: repeated
// calls return byte-identical text.
func Translate(q *parser.Query, mapping *schema.Mapping, opts Options) (*Result, error) {
	if q == nil || len(q.Match) == 0 {
		return nil, fmt.Errorf("%w: query has no MATCH clause", ErrUnsupportedConstruct)
	}
	if q.Return == nil {
		return nil, fmt.Errorf("%w: query has no RETURN clause", ErrUnsupportedConstruct)
	}

	t := newTranslator(mapping, opts)
	if err := t.bindVariables(q.Match); err != nil {
		return nil, err
	}

	pathExpr, err := pathFunctionExpression(q)
	if err != nil {
		return nil, err
	}

	preamble, err := t.translatePreamble(q.Match)
	if err != nil {
		return nil, err
	}
	filter, err := t.translateFilter(q.Where)
	if err != nil {
		return nil, err
	}
	proj, err := t.translateReturn(q.Return)
	if err != nil {
		return nil, err
	}

	f := fragments{
		Preamble: preamble,
		Filter:   filter,
		Proj:     proj,
	}
	strategy := StrategyGraphMatch

	if pathExpr != nil {
		constraint, err := parser.PathConstraintFromExpression(pathExpr)
		if err != nil {
			return nil, err
		}
		plan, err := t.planPathSearch(constraint)
		if err != nil {
			return nil, err
		}

		// The operator line already carries the pattern; conditions from
		// the plan join the user filter.
		f.Operator, f.Pattern = splitOperator(plan.Operator)
		f.Filter = conjoin(append([]string{filter}, plan.Conditions...))
		f.TakeLimit = plan.TakeLimit
		strategy = StrategyShortestPaths
	} else {
		pattern, err := t.translatePatterns(q.Match)
		if err != nil {
			return nil, err
		}
		f.Operator = "graph-match"
		f.Pattern = pattern
	}

	output, err := t.assemble(f)
	if err != nil {
		return nil, err
	}

	return &Result{
		Query:      output,
		Strategy:   strategy,
		Confidence: t.confidence(parser.EstimateComplexity(q)),
		Warnings:   t.warnings,
	}, nil
}

// TranslatePathConstraint translates a programmatic path-search constraint
// with a default projection of the endpoint identities and the path length.
func TranslatePathConstraint(c *parser.PathConstraint, mapping *schema.Mapping, opts Options) (*Result, error) {
	t := newTranslator(mapping, opts)

	plan, err := t.planPathSearch(c)
	if err != nil {
		return nil, err
	}

	preamble, err := t.constraintPreamble(c)
	if err != nil {
		return nil, err
	}

	proj, err := t.constraintProjection(c)
	if err != nil {
		return nil, err
	}

	operator, pattern := splitOperator(plan.Operator)
	output, err := t.assemble(fragments{
		Preamble:  preamble,
		Operator:  operator,
		Pattern:   pattern,
		Filter:    conjoin(plan.Conditions),
		Proj:      proj,
		TakeLimit: plan.TakeLimit,
	})
	if err != nil {
		return nil, err
	}

	strategy := StrategyShortestPaths
	if c.Kind == parser.PathAll {
		strategy = StrategyGraphMatch
	}

	complexity := parser.Complexity{Hops: 1, HasPathFunction: true}
	if c.MaxLength == -1 || c.MaxLength > c.MinLength {
		complexity.VariableLengthHops = 1
	}

	return &Result{
		Query:      output,
		Strategy:   strategy,
		Confidence: t.confidence(complexity),
		Warnings:   t.warnings,
	}, nil
}

// constraintPreamble builds the graph-construction preamble for a
// programmatic constraint from the source label's table.
func (t *translator) constraintPreamble(c *parser.PathConstraint) (string, error) {
	label := c.Sources[0].Label
	if label == "" {
		label = c.Targets[0].Label
	}
	if label == "" {
		all := t.mapping.Labels()
		if len(all) != 1 {
			return "", fmt.Errorf("%w: constraint names no label and the schema declares %d; cannot choose a source table",
				ErrUnsupportedConstruct, len(all))
		}
		label = all[0]
	}

	table, err := t.mapping.ResolveTable(label)
	if err != nil {
		return "", err
	}
	identity, err := t.mapping.NodeIdentityColumn(label)
	if err != nil {
		return "", err
	}

	t.recordTable(table)
	t.recordColumn(table, identity)

	return fmt.Sprintf("%s\n| make-graph %s --> %s", table, identity, identity), nil
}

// constraintProjection projects the endpoint identities plus the hop count.
func (t *translator) constraintProjection(c *parser.PathConstraint) (*projection, error) {
	sourceVar := c.Sources[0].Variable
	if sourceVar == "" {
		sourceVar = "s"
	}
	targetVar := c.Targets[0].Variable
	if targetVar == "" {
		targetVar = "t"
	}

	proj := &projection{}
	appendIdentity := func(name, variable, label string) error {
		if label == "" {
			proj.ProjectColumns = append(proj.ProjectColumns, namedExpr{Name: name, Expr: variable})
			return nil
		}
		identity, err := t.mapping.NodeIdentityColumn(label)
		if err != nil {
			return err
		}
		table, err := t.mapping.ResolveTable(label)
		if err != nil {
			return err
		}
		t.recordColumn(table, identity)
		proj.ProjectColumns = append(proj.ProjectColumns, namedExpr{Name: name, Expr: variable + "." + identity})
		return nil
	}

	if err := appendIdentity("source", sourceVar, c.Sources[0].Label); err != nil {
		return nil, err
	}
	if err := appendIdentity("target", targetVar, c.Targets[0].Label); err != nil {
		return nil, err
	}
	proj.ProjectColumns = append(proj.ProjectColumns, namedExpr{Name: "path_length", Expr: "array_length(e)"})

	return proj, nil
}

// pathFunctionExpression finds the query's shortest-path expression, if
// any. Path functions combine with nothing else: a query using one must
// consist of exactly that pattern.
func pathFunctionExpression(q *parser.Query) (*parser.PathExpression, error) {
	var found *parser.PathExpression
	total := 0
	for _, match := range q.Match {
		for _, path := range match.Paths {
			total++
			if path.Function != parser.PathFunctionNone {
				if found != nil {
					return nil, fmt.Errorf("%w: multiple path functions in one query", ErrUnsupportedConstruct)
				}
				found = path
			}
		}
	}
	if found != nil && total > 1 {
		return nil, fmt.Errorf("%w: a path function cannot be combined with other patterns", ErrUnsupportedConstruct)
	}
	return found, nil
}

// splitOperator separates the operator keywords from the pattern that
// follows them. The pattern always starts at the first '('.
func splitOperator(operatorLine string) (operator, pattern string) {
	for i := 0; i < len(operatorLine); i++ {
		if operatorLine[i] == '(' {
			op := operatorLine[:i]
			for len(op) > 0 && op[len(op)-1] == ' ' {
				op = op[:len(op)-1]
			}
			return op, operatorLine[i:]
		}
	}
	return operatorLine, ""
}

// conjoin joins non-empty boolean expressions with and.
func conjoin(conditions []string) string {
	var parts []string
	for _, c := range conditions {
		if c != "" {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		joined := group(parts[0])
		for _, p := range parts[1:] {
			joined += " and " + group(p)
		}
		return joined
	}
}

// group wraps a rendered condition in parentheses when it carries a
// top-level `or`, so joining it into a conjunction keeps its meaning.
func group(condition string) string {
	depth := 0
	inString := false
	for i := 0; i < len(condition); i++ {
		switch c := condition[i]; {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && c == 'o' && i > 0 && condition[i-1] == ' ' &&
			strings.HasPrefix(condition[i:], "or "):
			return "(" + condition + ")"
		}
	}
	return condition
}
