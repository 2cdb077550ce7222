package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is the root of the AST. Built bottom-up during parsing, never
// mutated afterwards: translators only read it.
type Query struct {
	Match  []*MatchClause
	Where  *WhereClause
	Return *ReturnClause
}

// MatchClause holds one MATCH (or OPTIONAL MATCH) clause with its ordered
// comma-separated path expressions.
type MatchClause struct {
	Paths    []*PathExpression
	Optional bool
}

// PathFunction marks a path expression wrapped in a shortest-path family
// function.
type PathFunction int

const (
	PathFunctionNone PathFunction = iota
	PathFunctionShortest
	PathFunctionAllShortest
)

// PathExpression is an alternating chain of node and relationship patterns.
// Relationships[i] connects Nodes[i] to Nodes[i+1].
type PathExpression struct {
	Variable      string // from `p = ...`, empty when unbound
	Function      PathFunction
	Nodes         []*NodePattern
	Relationships []*RelationshipPattern
}

// NodePattern is `(v:Label1:Label2 {key: literal})`, every part optional.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties []PropertyLiteral
}

// PropertyLiteral is one inline property-equality entry. Kept as an ordered
// list rather than a map so output is deterministic.
type PropertyLiteral struct {
	Key   string
	Value *Literal
}

// Direction of a relationship pattern.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	default:
		return "both"
	}
}

// RelationshipPattern is `-[v:TYPE_A|TYPE_B*1..3]->` and its variants.
type RelationshipPattern struct {
	Variable  string
	Types     []string // alternatives joined by `|`
	Direction Direction
	Length    *PathLength // nil for a single hop
}

// PathLength is a variable-length hop bound. The original spelling is
// reproducible from the fields so bounds survive translation verbatim.
type PathLength struct {
	Exact  bool // `*N` without a range
	HasMin bool
	HasMax bool
	Min    int
	Max    int
}

// Bounded reports whether the bound has a finite upper limit.
func (pl *PathLength) Bounded() bool {
	return pl.Exact || pl.HasMax
}

// EffectiveMin returns the lower hop bound, defaulting to 1.
func (pl *PathLength) EffectiveMin() int {
	if pl.Exact || pl.HasMin {
		return pl.Min
	}
	return 1
}

// EffectiveMax returns the upper hop bound, or -1 when unbounded.
func (pl *PathLength) EffectiveMax() int {
	if pl.Exact {
		return pl.Min
	}
	if pl.HasMax {
		return pl.Max
	}
	return -1
}

// String reproduces the source spelling: `*`, `*2`, `*1..3`, `*2..`, `*..3`.
func (pl *PathLength) String() string {
	if pl.Exact {
		return "*" + strconv.Itoa(pl.Min)
	}

	var b strings.Builder
	b.WriteByte('*')
	if pl.HasMin {
		b.WriteString(strconv.Itoa(pl.Min))
	}
	if pl.HasMin || pl.HasMax {
		b.WriteString("..")
	}
	if pl.HasMax {
		b.WriteString(strconv.Itoa(pl.Max))
	}
	return b.String()
}

// WhereClause wraps the root of the condition tree.
type WhereClause struct {
	Condition Condition
}

// Condition is the closed set of WHERE tree variants. Every consumer
// switches over the concrete types; anything else is rejected at
// construction time.
type Condition interface {
	condition()
}

// CompareOp enumerates comparison and predicate operators.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpIsNull    // unary, Right is nil
	OpIsNotNull // unary, Right is nil
)

func (op CompareOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpGreater:
		return ">"
	case OpLessEqual:
		return "<="
	case OpGreaterEqual:
		return ">="
	case OpIn:
		return "IN"
	case OpContains:
		return "CONTAINS"
	case OpStartsWith:
		return "STARTS WITH"
	case OpEndsWith:
		return "ENDS WITH"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "?"
	}
}

// Comparison is `left op right`. Right is nil for the null predicates.
type Comparison struct {
	Op    CompareOp
	Left  Condition
	Right Condition
}

// LogicalOp enumerates boolean connectives.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
	LogicalNot
)

// Logical combines operand conditions. NOT carries exactly one operand.
type Logical struct {
	Op       LogicalOp
	Operands []Condition
}

// FunctionCall is `name(args...)`, e.g. COUNT(n) or toLower(u.name).
type FunctionCall struct {
	Name string
	Args []Condition
}

// PropertyAccess is `variable.property`. Variable alone (a bare identifier
// in RETURN) is represented with an empty Property.
type PropertyAccess struct {
	Variable string
	Property string
}

// LiteralKind tags literal values.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralInt
	LiteralFloat
	LiteralBool
	LiteralNull
	LiteralList
)

// Literal is a constant value. Value holds the source text (unquoted for
// strings); List carries element literals for bracket lists.
type Literal struct {
	Kind  LiteralKind
	Value string
	List  []*Literal
}

func (*Comparison) condition()     {}
func (*Logical) condition()        {}
func (*FunctionCall) condition()   {}
func (*PropertyAccess) condition() {}
func (*Literal) condition()        {}

// ReturnClause is the projection: ordered items, dedup flag, sort keys and
// row bounds.
type ReturnClause struct {
	Items    []*ReturnItem
	Distinct bool
	OrderBy  []*OrderKey
	Skip     *int
	Limit    *int
}

// ReturnItem is one projected expression with an optional alias.
type ReturnItem struct {
	Expression Condition
	Alias      string
}

// OrderKey is one ORDER BY key. Ascending is the default.
type OrderKey struct {
	Expression Condition
	Descending bool
}

// ExprString renders an expression the way it was written, used for error
// messages and for matching ORDER BY keys against RETURN items.
func ExprString(c Condition) string {
	switch e := c.(type) {
	case *PropertyAccess:
		if e.Property == "" {
			return e.Variable
		}
		return e.Variable + "." + e.Property
	case *Literal:
		switch e.Kind {
		case LiteralString:
			return "'" + e.Value + "'"
		case LiteralList:
			parts := make([]string, len(e.List))
			for i, item := range e.List {
				parts[i] = ExprString(item)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		default:
			return e.Value
		}
	case *FunctionCall:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = ExprString(arg)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case *Comparison:
		if e.Right == nil {
			return ExprString(e.Left) + " " + e.Op.String()
		}
		return ExprString(e.Left) + " " + e.Op.String() + " " + ExprString(e.Right)
	case *Logical:
		if e.Op == LogicalNot {
			return "NOT " + ExprString(e.Operands[0])
		}
		sep := " AND "
		if e.Op == LogicalOr {
			sep = " OR "
		}
		parts := make([]string, len(e.Operands))
		for i, op := range e.Operands {
			parts[i] = ExprString(op)
		}
		return "(" + strings.Join(parts, sep) + ")"
	default:
		return fmt.Sprintf("%v", c)
	}
}
