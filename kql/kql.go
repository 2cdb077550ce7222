// Package kql emits Kusto Query Language from the query AST. The translators
// are pure functions over the AST and an immutable schema mapping: the same
// inputs always produce byte-identical output.
package kql

import "errors"

// Sentinel errors
var (
	// ErrUnsupportedConstruct flags constructs that are syntactically
	// valid but have no deterministic KQL equivalent. Callers route these
	// queries to the fallback translation tier.
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	// ErrAssemblyValidation indicates the assembled output failed
	// structural validation. This means a translator bug, not bad input.
	ErrAssemblyValidation = errors.New("assembly validation failed")
)

// Default ceilings.
const (
	DefaultMaxTraversalDepth    = 8
	DefaultPathEnumerationLimit = 1000
)

// Options control translation behavior.
type Options struct {
	// AllowMultiTablePatterns permits patterns whose labels span several
	// physical tables. The preamble is then built from the primary table
	// (first label in pattern order) and a warning is attached. Off by
	// default: multi-table patterns are rejected until a join-aware
	// preamble exists.
	AllowMultiTablePatterns bool
	// AllowUnboundedTraversal permits variable-length bounds with no
	// upper limit. The bound is emitted verbatim with a warning.
	AllowUnboundedTraversal bool
	// MaxTraversalDepth caps finite variable-length upper bounds.
	MaxTraversalDepth int
	// PathEnumerationLimit caps all-paths enumeration result counts.
	PathEnumerationLimit int
}

func (o Options) withDefaults() Options {
	if o.MaxTraversalDepth <= 0 {
		o.MaxTraversalDepth = DefaultMaxTraversalDepth
	}
	if o.PathEnumerationLimit <= 0 {
		o.PathEnumerationLimit = DefaultPathEnumerationLimit
	}
	return o
}

// Warning codes.
const (
	WarnMultiTablePattern = "multi-table-pattern"
	WarnUnboundedDepth    = "unbounded-traversal"
	WarnOptionalMatch     = "optional-match-inner-semantics"
)

// Warning is a non-fatal translation note with a machine-usable code.
type Warning struct {
	Code    string
	Message string
}

// Strategy tags how a query was translated.
type Strategy string

const (
	StrategyGraphMatch    Strategy = "graph-match"
	StrategyShortestPaths Strategy = "graph-shortest-paths"
)

// Result is the outcome of a successful translation.
type Result struct {
	Query      string
	Strategy   Strategy
	Confidence float64
	Warnings   []Warning
}
