package parser

import "strings"

// Complexity is a pre-flight estimate of translation difficulty, computed
// from the AST alone. Routing layers use it to decide between this compiler
// and a fallback translator without attempting a translation first.
type Complexity struct {
	Hops               int  // total relationship count across all patterns
	VariableLengthHops int  // relationship patterns carrying a length bound
	UnboundedHops      int  // length bounds with no finite upper limit
	HasAggregation     bool // RETURN contains an aggregation function
	HasPathFunction    bool // shortestPath/allShortestPaths present
	HasOptionalMatch   bool // at least one OPTIONAL MATCH clause
	DistinctLabels     int  // distinct node labels referenced
}

// aggregateFunctions is the supported aggregation set; names are matched
// case-insensitively.
var aggregateFunctions = map[string]struct{}{
	"COUNT":   {},
	"SUM":     {},
	"AVG":     {},
	"MIN":     {},
	"MAX":     {},
	"COLLECT": {},
}

// IsAggregateFunction reports whether name is a supported aggregation.
func IsAggregateFunction(name string) bool {
	_, ok := aggregateFunctions[strings.ToUpper(name)]
	return ok
}

// EstimateComplexity walks the query and reports its structural complexity.
// It is a pure function of the AST: it never consults a schema and never
// fails.
func EstimateComplexity(q *Query) Complexity {
	var c Complexity
	labels := map[string]struct{}{}

	for _, match := range q.Match {
		if match.Optional {
			c.HasOptionalMatch = true
		}
		for _, path := range match.Paths {
			if path.Function != PathFunctionNone {
				c.HasPathFunction = true
			}
			for _, node := range path.Nodes {
				for _, label := range node.Labels {
					labels[label] = struct{}{}
				}
			}
			for _, rel := range path.Relationships {
				c.Hops++
				if rel.Length != nil {
					c.VariableLengthHops++
					if !rel.Length.Bounded() {
						c.UnboundedHops++
					}
				}
			}
		}
	}
	c.DistinctLabels = len(labels)

	if q.Return != nil {
		for _, item := range q.Return.Items {
			if containsAggregate(item.Expression) {
				c.HasAggregation = true
				break
			}
		}
	}

	return c
}

func containsAggregate(c Condition) bool {
	switch e := c.(type) {
	case *FunctionCall:
		if IsAggregateFunction(e.Name) {
			return true
		}
		for _, arg := range e.Args {
			if containsAggregate(arg) {
				return true
			}
		}
	case *Comparison:
		if containsAggregate(e.Left) {
			return true
		}
		if e.Right != nil && containsAggregate(e.Right) {
			return true
		}
	case *Logical:
		for _, op := range e.Operands {
			if containsAggregate(op) {
				return true
			}
		}
	}
	return false
}
