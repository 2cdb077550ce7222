// Package yellowstone translates property-graph queries into KQL. The
// pipeline is tokenize, parse, resolve against a schema mapping, emit; each
// stage either succeeds or returns a typed error, and the whole translation
// is deterministic: one query, one mapping, one output.
package yellowstone

import (
	"github.com/rysweet/yellowstone/kql"
	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
)

// TranslationResult is the outcome of one successful translation.
type TranslationResult struct {
	// Query is the emitted KQL pipeline.
	Query string
	// Strategy tags which graph operator family was used.
	Strategy kql.Strategy
	// Confidence scores how faithful the translation is, in [0.1, 1.0].
	Confidence float64
	// Warnings carry non-fatal notes about approximated semantics.
	Warnings []kql.Warning
	// EstimatedCost is a unitless execution-cost estimate derived from the
	// query's structural complexity.
	EstimatedCost float64
}

type settings struct {
	parserOpts parser.Options
	kqlOpts    kql.Options
}

// Option adjusts translation behavior.
type Option func(*settings)

// WithMaxNestingDepth caps parser recursion depth.
func WithMaxNestingDepth(n int) Option {
	return func(s *settings) { s.parserOpts.MaxDepth = n }
}

// WithMaxTraversalDepth caps variable-length upper bounds.
func WithMaxTraversalDepth(n int) Option {
	return func(s *settings) { s.kqlOpts.MaxTraversalDepth = n }
}

// WithUnboundedTraversal permits variable-length bounds with no upper
// limit. The bound is emitted verbatim and a warning is attached.
func WithUnboundedTraversal() Option {
	return func(s *settings) { s.kqlOpts.AllowUnboundedTraversal = true }
}

// WithMultiTablePatterns permits patterns whose labels span several tables.
// The graph is then built from the primary table only, with a warning.
func WithMultiTablePatterns() Option {
	return func(s *settings) { s.kqlOpts.AllowMultiTablePatterns = true }
}

// WithPathEnumerationLimit caps all-paths enumeration result counts.
func WithPathEnumerationLimit(n int) Option {
	return func(s *settings) { s.kqlOpts.PathEnumerationLimit = n }
}

// Translate converts one query against one schema mapping. It is stateless
// and safe for concurrent use: the mapping is read-only and every call
// builds its own pipeline state.
func Translate(queryText string, mapping *schema.Mapping, opts ...Option) (*TranslationResult, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	q, err := parser.ParseWithOptions(queryText, s.parserOpts)
	if err != nil {
		return nil, err
	}

	result, err := kql.Translate(q, mapping, s.kqlOpts)
	if err != nil {
		return nil, err
	}

	return &TranslationResult{
		Query:         result.Query,
		Strategy:      result.Strategy,
		Confidence:    result.Confidence,
		Warnings:      result.Warnings,
		EstimatedCost: EstimateCost(parser.EstimateComplexity(q)),
	}, nil
}

// TranslatePath translates a programmatic path-search constraint without a
// surface query, projecting the endpoint identities and the path length.
func TranslatePath(c *parser.PathConstraint, mapping *schema.Mapping, opts ...Option) (*TranslationResult, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	result, err := kql.TranslatePathConstraint(c, mapping, s.kqlOpts)
	if err != nil {
		return nil, err
	}

	complexity := parser.Complexity{Hops: 1, HasPathFunction: true}
	if c.MaxLength == -1 || c.MaxLength > c.MinLength {
		complexity.VariableLengthHops = 1
	}
	if c.MaxLength == -1 {
		complexity.UnboundedHops = 1
	}

	return &TranslationResult{
		Query:         result.Query,
		Strategy:      result.Strategy,
		Confidence:    result.Confidence,
		Warnings:      result.Warnings,
		EstimatedCost: EstimateCost(complexity),
	}, nil
}

// Cost weights. Variable-length segments dominate because each one
// multiplies the search frontier; unbounded ones dominate harder.
const (
	costPerHop        = 1.0
	costPerVarLength  = 5.0
	costPerUnbounded  = 25.0
	costAggregation   = 2.0
	costPathFunction  = 3.0
	costOptionalMatch = 1.0
)

// EstimateCost converts a structural complexity estimate into a unitless
// cost figure. Higher means more expensive; the figure is comparable only
// across queries against the same schema.
func EstimateCost(c parser.Complexity) float64 {
	cost := 1.0
	cost += costPerHop * float64(c.Hops)
	cost += costPerVarLength * float64(c.VariableLengthHops)
	cost += costPerUnbounded * float64(c.UnboundedHops)
	if c.HasAggregation {
		cost += costAggregation
	}
	if c.HasPathFunction {
		cost += costPathFunction
	}
	if c.HasOptionalMatch {
		cost += costOptionalMatch
	}
	return cost
}
