package parser

import (
	"errors"
	"fmt"
)

// ErrInvalidConstraint is the base error for path-constraint validation
// failures. Violations never clamp values silently.
var ErrInvalidConstraint = errors.New("invalid path constraint")

// PathConstraintKind selects the path-algorithm variant.
type PathConstraintKind int

const (
	PathShortest    PathConstraintKind = iota // single shortest path per pair
	PathAllShortest                           // every shortest path per pair
	PathAll                                   // bounded enumeration of all paths
)

func (k PathConstraintKind) String() string {
	switch k {
	case PathShortest:
		return "shortest"
	case PathAllShortest:
		return "all-shortest"
	default:
		return "all-paths"
	}
}

// CyclePolicy controls whether enumerated paths may revisit nodes.
type CyclePolicy int

const (
	CyclesForbidden CyclePolicy = iota
	CyclesAllowed
)

// NodeRef identifies a path endpoint: a bound variable plus its optional
// label and inline equality properties.
type NodeRef struct {
	Variable   string
	Label      string
	Properties []PropertyLiteral
}

// PathConstraint is the input to the path-algorithm translators. One
// constraint describes one search: endpoints, admissible edges, hop bounds
// and optional weighting/exclusions.
type PathConstraint struct {
	Kind              PathConstraintKind
	Sources           []NodeRef
	Targets           []NodeRef
	RelationshipTypes []string
	Direction         Direction
	MinLength         int
	MaxLength         int // -1 means unbounded
	WeightProperty    string
	Bidirectional     bool
	ExcludedNodes     []string // node identity values to avoid
	ExcludedRels      []string // relationship types to avoid
	Cycles            CyclePolicy
	ResultLimit       int // 0 means translator default
}

// Validate checks the constraint invariants. Every violation names the
// offending field and value.
func (c *PathConstraint) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no source node", ErrInvalidConstraint)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: no target node", ErrInvalidConstraint)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("%w: min_length %d is negative", ErrInvalidConstraint, c.MinLength)
	}
	if c.MaxLength < -1 {
		return fmt.Errorf("%w: max_length %d is negative", ErrInvalidConstraint, c.MaxLength)
	}
	if c.MaxLength != -1 && c.MinLength > c.MaxLength {
		return fmt.Errorf("%w: min_length %d exceeds max_length %d", ErrInvalidConstraint, c.MinLength, c.MaxLength)
	}
	if c.ResultLimit < 0 {
		return fmt.Errorf("%w: result limit %d is negative", ErrInvalidConstraint, c.ResultLimit)
	}
	return nil
}

// PathConstraintFromExpression derives a constraint from a parsed
// shortest-path pattern like `shortestPath((a:User)-[:KNOWS*1..4]->(b))`.
// The pattern must be a single hop chain: exactly two node patterns joined
// by one relationship pattern.
func PathConstraintFromExpression(path *PathExpression) (*PathConstraint, error) {
	if path.Function == PathFunctionNone {
		return nil, fmt.Errorf("%w: expression is not a path function", ErrInvalidConstraint)
	}
	if len(path.Nodes) != 2 || len(path.Relationships) != 1 {
		return nil, fmt.Errorf("%w: path function requires exactly one relationship between two nodes, got %d nodes", ErrInvalidConstraint, len(path.Nodes))
	}

	rel := path.Relationships[0]
	kind := PathShortest
	if path.Function == PathFunctionAllShortest {
		kind = PathAllShortest
	}

	c := &PathConstraint{
		Kind:              kind,
		Sources:           []NodeRef{nodeRef(path.Nodes[0])},
		Targets:           []NodeRef{nodeRef(path.Nodes[1])},
		RelationshipTypes: rel.Types,
		Direction:         rel.Direction,
		MinLength:         1,
		MaxLength:         1,
	}
	if rel.Length != nil {
		c.MinLength = rel.Length.EffectiveMin()
		c.MaxLength = rel.Length.EffectiveMax()
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func nodeRef(n *NodePattern) NodeRef {
	ref := NodeRef{
		Variable:   n.Variable,
		Properties: n.Properties,
	}
	if len(n.Labels) > 0 {
		ref.Label = n.Labels[0]
	}
	return ref
}
