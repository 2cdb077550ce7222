// Package parser builds the query AST from Cypher text. The parser is a
// hand-written recursive-descent one with an explicit nesting ceiling so
// adversarial input terminates with an error instead of exhausting the
// stack.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rysweet/yellowstone/tokenizer"
)

// Sentinel errors
var (
	// ErrSyntax is the base error for every parse failure.
	ErrSyntax = errors.New("syntax error")
	// ErrNestingTooDeep is returned when expression or pattern nesting
	// exceeds the configured ceiling.
	ErrNestingTooDeep = fmt.Errorf("%w: nesting depth limit exceeded", ErrSyntax)
	// ErrUnsupportedClause is returned for clauses that are valid Cypher
	// but outside the supported read-only surface (CREATE, SET, ...).
	ErrUnsupportedClause = errors.New("unsupported clause")
)

// DefaultMaxDepth bounds expression and pattern nesting.
const DefaultMaxDepth = 64

// Options tune the parser.
type Options struct {
	// MaxDepth is the nesting ceiling; zero means DefaultMaxDepth.
	MaxDepth int
}

// unsupportedClauses are recognized so the error names the clause instead
// of producing a generic syntax failure. These route to the fallback tier.
var unsupportedClauses = map[string]struct{}{
	"CREATE":  {},
	"MERGE":   {},
	"SET":     {},
	"DELETE":  {},
	"DETACH":  {},
	"REMOVE":  {},
	"UNWIND":  {},
	"CALL":    {},
	"UNION":   {},
	"FOREACH": {},
}

// Parser consumes a token slice and produces a Query AST.
type Parser struct {
	tokens   []tokenizer.Token
	pos      int
	depth    int
	maxDepth int
}

// Parse parses query text with default options.
func Parse(input string) (*Query, error) {
	return ParseWithOptions(input, Options{})
}

// ParseWithOptions parses query text. Lexical errors from the tokenizer are
// passed through unwrapped.
func ParseWithOptions(input string, opts Options) (*Query, error) {
	tokens, err := tokenizer.Tokenize(input)
	if err != nil {
		return nil, err
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	p := &Parser{tokens: tokens, maxDepth: maxDepth}
	return p.parseQuery()
}

func (p *Parser) current() tokenizer.Token {
	if p.pos >= len(p.tokens) {
		return tokenizer.Token{Type: tokenizer.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() tokenizer.Token {
	if p.pos+1 >= len(p.tokens) {
		return tokenizer.Token{Type: tokenizer.EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() tokenizer.Token {
	tok := p.current()
	p.pos++
	return tok
}

// expect consumes a token of the given type or fails naming both sides.
func (p *Parser) expect(tt tokenizer.TokenType, expected string) (tokenizer.Token, error) {
	tok := p.current()
	if tok.Type != tt {
		return tok, p.syntaxError(expected)
	}
	p.pos++
	return tok, nil
}

// syntaxError formats an actionable error: what was expected, what was
// found, and where.
func (p *Parser) syntaxError(expected string) error {
	tok := p.current()
	if tok.Type == tokenizer.EOF {
		return fmt.Errorf("%w: expected %s, got EOF at offset %d", ErrSyntax, expected, tok.Position.Offset)
	}
	return fmt.Errorf("%w: expected %s, got %s %q at offset %d", ErrSyntax, expected, tok.Type, tok.Value, tok.Position.Offset)
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return fmt.Errorf("%w (limit %d) at offset %d", ErrNestingTooDeep, p.maxDepth, p.current().Position.Offset)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

// checkUnsupportedClause rejects recognized write/advanced clauses with a
// dedicated error so callers can route them to the fallback tier.
func (p *Parser) checkUnsupportedClause() error {
	tok := p.current()
	var word string
	switch tok.Type {
	case tokenizer.IDENT:
		word = strings.ToUpper(tok.Value)
	case tokenizer.WITH:
		word = "WITH"
	default:
		return nil
	}
	if _, ok := unsupportedClauses[word]; ok || word == "WITH" {
		return fmt.Errorf("%w: %s at offset %d", ErrUnsupportedClause, word, tok.Position.Offset)
	}
	return nil
}

// parseQuery parses: match* where? return
func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{}

	if err := p.checkUnsupportedClause(); err != nil {
		return nil, err
	}

	for p.current().Type == tokenizer.MATCH || p.current().Type == tokenizer.OPTIONAL {
		match, err := p.parseMatchClause()
		if err != nil {
			return nil, err
		}
		q.Match = append(q.Match, match)
	}

	if p.current().Type == tokenizer.WHERE {
		p.advance()
		cond, err := p.parseOrExpression()
		if err != nil {
			return nil, err
		}
		q.Where = &WhereClause{Condition: cond}
	}

	if err := p.checkUnsupportedClause(); err != nil {
		return nil, err
	}

	ret, err := p.parseReturnClause()
	if err != nil {
		return nil, err
	}
	q.Return = ret

	if p.current().Type != tokenizer.EOF {
		if err := p.checkUnsupportedClause(); err != nil {
			return nil, err
		}
		return nil, p.syntaxError("end of query")
	}

	return q, nil
}

// parseMatchClause parses: (OPTIONAL)? MATCH path (, path)*
func (p *Parser) parseMatchClause() (*MatchClause, error) {
	clause := &MatchClause{}

	if p.current().Type == tokenizer.OPTIONAL {
		clause.Optional = true
		p.advance()
	}

	if _, err := p.expect(tokenizer.MATCH, "MATCH"); err != nil {
		return nil, err
	}

	for {
		path, err := p.parsePathExpression()
		if err != nil {
			return nil, err
		}
		clause.Paths = append(clause.Paths, path)

		if p.current().Type != tokenizer.COMMA {
			break
		}
		p.advance()
	}

	return clause, nil
}

// parsePathExpression parses: (var =)? (pathFunc `(` chain `)` | chain)
func (p *Parser) parsePathExpression() (*PathExpression, error) {
	path := &PathExpression{}

	if p.current().Type == tokenizer.IDENT && p.peek().Type == tokenizer.EQUAL {
		path.Variable = p.advance().Value
		p.advance() // =
	}

	if p.current().Type == tokenizer.IDENT && p.peek().Type == tokenizer.OPENED_PARENS {
		switch strings.ToLower(p.current().Value) {
		case "shortestpath":
			path.Function = PathFunctionShortest
		case "allshortestpaths":
			path.Function = PathFunctionAllShortest
		}
		if path.Function != PathFunctionNone {
			p.advance() // function name
			p.advance() // (
			if err := p.parsePatternChain(path); err != nil {
				return nil, err
			}
			if _, err := p.expect(tokenizer.CLOSED_PARENS, "`)` closing path function"); err != nil {
				return nil, err
			}
			return path, nil
		}
	}

	if err := p.parsePatternChain(path); err != nil {
		return nil, err
	}
	return path, nil
}

// parsePatternChain parses: node (relationship node)*
func (p *Parser) parsePatternChain(path *PathExpression) error {
	node, err := p.parseNodePattern()
	if err != nil {
		return err
	}
	path.Nodes = append(path.Nodes, node)

	for p.current().Type == tokenizer.MINUS || p.current().Type == tokenizer.LESS_THAN {
		if err := p.enter(); err != nil {
			return err
		}
		rel, err := p.parseRelationshipPattern()
		if err != nil {
			p.leave()
			return err
		}
		node, err := p.parseNodePattern()
		if err != nil {
			p.leave()
			return err
		}
		p.leave()

		path.Relationships = append(path.Relationships, rel)
		path.Nodes = append(path.Nodes, node)
	}

	return nil
}

// parseNodePattern parses: `(` var? (`:` label)* propertyMap? `)`
func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(tokenizer.OPENED_PARENS, "`(` opening node pattern"); err != nil {
		return nil, err
	}

	node := &NodePattern{}

	if p.current().Type == tokenizer.IDENT {
		node.Variable = p.advance().Value
	}

	for p.current().Type == tokenizer.COLON {
		p.advance()
		label, err := p.expect(tokenizer.IDENT, "label name after `:`")
		if err != nil {
			return nil, err
		}
		node.Labels = append(node.Labels, label.Value)
	}

	if p.current().Type == tokenizer.OPENED_BRACE {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		node.Properties = props
	}

	if _, err := p.expect(tokenizer.CLOSED_PARENS, "`)` closing node pattern"); err != nil {
		return nil, err
	}

	return node, nil
}

// parsePropertyMap parses: `{` key `:` literal (`,` key `:` literal)* `}`
func (p *Parser) parsePropertyMap() ([]PropertyLiteral, error) {
	if _, err := p.expect(tokenizer.OPENED_BRACE, "`{`"); err != nil {
		return nil, err
	}

	var props []PropertyLiteral
	for {
		key, err := p.expect(tokenizer.IDENT, "property name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.COLON, "`:` after property name"); err != nil {
			return nil, err
		}
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		props = append(props, PropertyLiteral{Key: key.Value, Value: value})

		if p.current().Type != tokenizer.COMMA {
			break
		}
		p.advance()
	}

	if _, err := p.expect(tokenizer.CLOSED_BRACE, "`}` closing property map"); err != nil {
		return nil, err
	}
	return props, nil
}

// parseRelationshipPattern parses all relationship spellings:
//
//	-->  --  <--  -[...]->  -[...]-  <-[...]-
func (p *Parser) parseRelationshipPattern() (*RelationshipPattern, error) {
	rel := &RelationshipPattern{Direction: DirectionBoth}

	pointsLeft := false
	if p.current().Type == tokenizer.LESS_THAN {
		pointsLeft = true
		p.advance()
	}

	if _, err := p.expect(tokenizer.MINUS, "`-` in relationship pattern"); err != nil {
		return nil, err
	}

	if p.current().Type == tokenizer.OPENED_BRACKET {
		p.advance()
		if err := p.parseRelationshipBody(rel); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.CLOSED_BRACKET, "`]` closing relationship pattern"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(tokenizer.MINUS, "`-` in relationship pattern"); err != nil {
		return nil, err
	}

	pointsRight := false
	if p.current().Type == tokenizer.GREATER_THAN {
		pointsRight = true
		p.advance()
	}

	switch {
	case pointsLeft && pointsRight:
		return nil, p.syntaxError("a single relationship direction")
	case pointsLeft:
		rel.Direction = DirectionIn
	case pointsRight:
		rel.Direction = DirectionOut
	default:
		rel.Direction = DirectionBoth
	}

	return rel, nil
}

// parseRelationshipBody parses the bracketed part: var? (`:` type (|type)*)? length?
func (p *Parser) parseRelationshipBody(rel *RelationshipPattern) error {
	if p.current().Type == tokenizer.IDENT {
		rel.Variable = p.advance().Value
	}

	if p.current().Type == tokenizer.COLON {
		p.advance()
		for {
			typ, err := p.expect(tokenizer.IDENT, "relationship type after `:`")
			if err != nil {
				return err
			}
			rel.Types = append(rel.Types, typ.Value)

			if p.current().Type != tokenizer.PIPE {
				break
			}
			p.advance()
		}
	}

	if p.current().Type == tokenizer.STAR {
		p.advance()
		length, err := p.parsePathLength()
		if err != nil {
			return err
		}
		rel.Length = length
	}

	return nil
}

// parsePathLength parses the bound after `*`: nothing, N, N..M, N.., ..M
func (p *Parser) parsePathLength() (*PathLength, error) {
	length := &PathLength{}

	if p.current().Type == tokenizer.NUMBER {
		min, err := p.parseHopCount()
		if err != nil {
			return nil, err
		}
		if p.current().Type != tokenizer.RANGE {
			length.Exact = true
			length.Min = min
			return length, nil
		}
		p.advance() // ..
		length.HasMin = true
		length.Min = min
		if p.current().Type == tokenizer.NUMBER {
			max, err := p.parseHopCount()
			if err != nil {
				return nil, err
			}
			length.HasMax = true
			length.Max = max
		}
	} else if p.current().Type == tokenizer.RANGE {
		p.advance()
		max, err := p.parseHopCount()
		if err != nil {
			return nil, err
		}
		length.HasMax = true
		length.Max = max
	}

	if length.HasMin && length.HasMax && length.Min > length.Max {
		return nil, fmt.Errorf("%w: path length lower bound %d exceeds upper bound %d at offset %d",
			ErrSyntax, length.Min, length.Max, p.current().Position.Offset)
	}

	return length, nil
}

func (p *Parser) parseHopCount() (int, error) {
	tok, err := p.expect(tokenizer.NUMBER, "hop count")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: hop count %q must be an integer at offset %d", ErrSyntax, tok.Value, tok.Position.Offset)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: hop count %d is negative at offset %d", ErrSyntax, n, tok.Position.Offset)
	}
	return n, nil
}

// Expression parsing: OR < AND < NOT < comparison, parentheses by structure.

func (p *Parser) parseOrExpression() (Condition, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseAndExpression()
	if err != nil {
		return nil, err
	}

	if p.current().Type != tokenizer.OR {
		return left, nil
	}

	operands := []Condition{left}
	for p.current().Type == tokenizer.OR {
		p.advance()
		right, err := p.parseAndExpression()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}

	return &Logical{Op: LogicalOr, Operands: operands}, nil
}

func (p *Parser) parseAndExpression() (Condition, error) {
	left, err := p.parseNotExpression()
	if err != nil {
		return nil, err
	}

	if p.current().Type != tokenizer.AND {
		return left, nil
	}

	operands := []Condition{left}
	for p.current().Type == tokenizer.AND {
		p.advance()
		right, err := p.parseNotExpression()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}

	return &Logical{Op: LogicalAnd, Operands: operands}, nil
}

func (p *Parser) parseNotExpression() (Condition, error) {
	if p.current().Type == tokenizer.NOT {
		p.advance()
		if err := p.enter(); err != nil {
			return nil, err
		}
		operand, err := p.parseNotExpression()
		p.leave()
		if err != nil {
			return nil, err
		}
		return &Logical{Op: LogicalNot, Operands: []Condition{operand}}, nil
	}
	return p.parseComparison()
}

// parseComparison parses: primary (op primary | IS [NOT] NULL |
// CONTAINS/STARTS WITH/ENDS WITH primary | IN primary)?
func (p *Parser) parseComparison() (Condition, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	var op CompareOp
	switch p.current().Type {
	case tokenizer.EQUAL:
		op = OpEqual
	case tokenizer.NOT_EQUAL:
		op = OpNotEqual
	case tokenizer.LESS_THAN:
		op = OpLess
	case tokenizer.GREATER_THAN:
		op = OpGreater
	case tokenizer.LESS_EQUAL:
		op = OpLessEqual
	case tokenizer.GREATER_EQUAL:
		op = OpGreaterEqual
	case tokenizer.IN:
		op = OpIn
	case tokenizer.CONTAINS:
		op = OpContains
	case tokenizer.STARTS:
		p.advance()
		if _, err := p.expect(tokenizer.WITH, "WITH after STARTS"); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: OpStartsWith, Left: left, Right: right}, nil
	case tokenizer.ENDS:
		p.advance()
		if _, err := p.expect(tokenizer.WITH, "WITH after ENDS"); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: OpEndsWith, Left: left, Right: right}, nil
	case tokenizer.IS:
		p.advance()
		if p.current().Type == tokenizer.NOT {
			p.advance()
			if _, err := p.expect(tokenizer.NULL, "NULL after IS NOT"); err != nil {
				return nil, err
			}
			return &Comparison{Op: OpIsNotNull, Left: left}, nil
		}
		if _, err := p.expect(tokenizer.NULL, "NULL after IS"); err != nil {
			return nil, err
		}
		return &Comparison{Op: OpIsNull, Left: left}, nil
	default:
		return left, nil
	}

	p.advance()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &Comparison{Op: op, Left: left, Right: right}, nil
}

// parsePrimary parses a grouped expression, function call, property access,
// bare variable or literal.
func (p *Parser) parsePrimary() (Condition, error) {
	tok := p.current()

	switch tok.Type {
	case tokenizer.OPENED_PARENS:
		p.advance()
		inner, err := p.parseOrExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.CLOSED_PARENS, "`)` closing grouped expression"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokenizer.IDENT:
		if p.peek().Type == tokenizer.OPENED_PARENS {
			return p.parseFunctionCall()
		}
		if p.peek().Type == tokenizer.DOT {
			variable := p.advance().Value
			p.advance() // .
			prop, err := p.expect(tokenizer.IDENT, "property name after `.`")
			if err != nil {
				return nil, err
			}
			return &PropertyAccess{Variable: variable, Property: prop.Value}, nil
		}
		p.advance()
		return &PropertyAccess{Variable: tok.Value}, nil

	case tokenizer.STAR:
		// COUNT(*) and friends
		p.advance()
		return &PropertyAccess{Variable: "*"}, nil

	default:
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return lit, nil
	}
}

func (p *Parser) parseFunctionCall() (Condition, error) {
	name := p.advance().Value
	p.advance() // (

	call := &FunctionCall{Name: name}
	if p.current().Type != tokenizer.CLOSED_PARENS {
		for {
			arg, err := p.parseOrExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)

			if p.current().Type != tokenizer.COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(tokenizer.CLOSED_PARENS, "`)` closing function call"); err != nil {
		return nil, err
	}
	return call, nil
}

// parseLiteral parses string, number, boolean, null and bracket lists.
func (p *Parser) parseLiteral() (*Literal, error) {
	tok := p.current()

	switch tok.Type {
	case tokenizer.STRING:
		p.advance()
		return &Literal{Kind: LiteralString, Value: tok.Value}, nil

	case tokenizer.NUMBER:
		p.advance()
		return numberLiteral(tok.Value), nil

	case tokenizer.MINUS:
		p.advance()
		num, err := p.expect(tokenizer.NUMBER, "number after `-`")
		if err != nil {
			return nil, err
		}
		lit := numberLiteral(num.Value)
		lit.Value = "-" + lit.Value
		return lit, nil

	case tokenizer.TRUE, tokenizer.FALSE:
		p.advance()
		return &Literal{Kind: LiteralBool, Value: strings.ToLower(tok.Value)}, nil

	case tokenizer.NULL:
		p.advance()
		return &Literal{Kind: LiteralNull, Value: "null"}, nil

	case tokenizer.OPENED_BRACKET:
		// List elements may themselves be lists, so the element recursion
		// counts against the nesting ceiling like expression recursion.
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		p.advance()
		list := &Literal{Kind: LiteralList}
		if p.current().Type != tokenizer.CLOSED_BRACKET {
			for {
				item, err := p.parseLiteral()
				if err != nil {
					return nil, err
				}
				list.List = append(list.List, item)

				if p.current().Type != tokenizer.COMMA {
					break
				}
				p.advance()
			}
		}
		if _, err := p.expect(tokenizer.CLOSED_BRACKET, "`]` closing list literal"); err != nil {
			return nil, err
		}
		return list, nil

	default:
		return nil, p.syntaxError("a literal value")
	}
}

func numberLiteral(value string) *Literal {
	if strings.ContainsAny(value, ".eE") {
		return &Literal{Kind: LiteralFloat, Value: value}
	}
	return &Literal{Kind: LiteralInt, Value: value}
}

// parseReturnClause parses:
//
//	RETURN DISTINCT? item (, item)* (ORDER BY key (, key)*)? (SKIP n)? (LIMIT n)?
func (p *Parser) parseReturnClause() (*ReturnClause, error) {
	if _, err := p.expect(tokenizer.RETURN, "RETURN"); err != nil {
		return nil, err
	}

	clause := &ReturnClause{}

	if p.current().Type == tokenizer.DISTINCT {
		clause.Distinct = true
		p.advance()
	}

	for {
		expr, err := p.parseOrExpression()
		if err != nil {
			return nil, err
		}
		item := &ReturnItem{Expression: expr}

		if p.current().Type == tokenizer.AS {
			p.advance()
			alias, err := p.expect(tokenizer.IDENT, "alias after AS")
			if err != nil {
				return nil, err
			}
			item.Alias = alias.Value
		}
		clause.Items = append(clause.Items, item)

		if p.current().Type != tokenizer.COMMA {
			break
		}
		p.advance()
	}

	if p.current().Type == tokenizer.ORDER {
		p.advance()
		if _, err := p.expect(tokenizer.BY, "BY after ORDER"); err != nil {
			return nil, err
		}

		for {
			expr, err := p.parseOrExpression()
			if err != nil {
				return nil, err
			}
			key := &OrderKey{Expression: expr}

			switch p.current().Type {
			case tokenizer.ASC:
				p.advance()
			case tokenizer.DESC:
				key.Descending = true
				p.advance()
			}
			clause.OrderBy = append(clause.OrderBy, key)

			if p.current().Type != tokenizer.COMMA {
				break
			}
			p.advance()
		}
	}

	if p.current().Type == tokenizer.SKIP {
		p.advance()
		n, err := p.parseRowCount("SKIP")
		if err != nil {
			return nil, err
		}
		clause.Skip = &n
	}

	if p.current().Type == tokenizer.LIMIT {
		p.advance()
		n, err := p.parseRowCount("LIMIT")
		if err != nil {
			return nil, err
		}
		clause.Limit = &n
	}

	return clause, nil
}

func (p *Parser) parseRowCount(keyword string) (int, error) {
	tok, err := p.expect(tokenizer.NUMBER, "row count after "+keyword)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s count %q must be an integer at offset %d", ErrSyntax, keyword, tok.Value, tok.Position.Offset)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s count %d is negative at offset %d", ErrSyntax, keyword, n, tok.Position.Offset)
	}
	return n, nil
}
