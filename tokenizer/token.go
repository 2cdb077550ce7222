package tokenizer

import "errors"

// Sentinel errors
var (
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnterminatedString  = errors.New("unterminated string literal")
	ErrInvalidNumber       = errors.New("invalid number format")
)

// TokenType represents the type of a token
type TokenType int

const (
	// Basic tokens
	EOF TokenType = iota
	WHITESPACE
	IDENT  // identifiers (variables, labels, relationship types, functions)
	STRING // string literals ('text', "text")
	NUMBER // numeric literals (integer or float)

	// Keywords
	MATCH
	OPTIONAL
	WHERE
	RETURN
	AS
	DISTINCT
	ORDER
	BY
	ASC
	DESC
	LIMIT
	SKIP
	AND
	OR
	NOT
	IN
	IS
	NULL
	TRUE
	FALSE
	CONTAINS
	STARTS
	ENDS
	WITH

	// Operators
	EQUAL         // =
	NOT_EQUAL     // <>, !=
	LESS_THAN     // <
	GREATER_THAN  // >
	LESS_EQUAL    // <=
	GREATER_EQUAL // >=
	PLUS          // +
	MINUS         // -
	STAR          // *
	SLASH         // /
	RANGE         // ..

	// Delimiters
	OPENED_PARENS  // (
	CLOSED_PARENS  // )
	OPENED_BRACKET // [
	CLOSED_BRACKET // ]
	OPENED_BRACE   // {
	CLOSED_BRACE   // }
	COMMA          // ,
	DOT            // .
	COLON          // :
	PIPE           // |
)

var tokenNames = map[TokenType]string{
	EOF:            "EOF",
	WHITESPACE:     "WHITESPACE",
	IDENT:          "IDENT",
	STRING:         "STRING",
	NUMBER:         "NUMBER",
	MATCH:          "MATCH",
	OPTIONAL:       "OPTIONAL",
	WHERE:          "WHERE",
	RETURN:         "RETURN",
	AS:             "AS",
	DISTINCT:       "DISTINCT",
	ORDER:          "ORDER",
	BY:             "BY",
	ASC:            "ASC",
	DESC:           "DESC",
	LIMIT:          "LIMIT",
	SKIP:           "SKIP",
	AND:            "AND",
	OR:             "OR",
	NOT:            "NOT",
	IN:             "IN",
	IS:             "IS",
	NULL:           "NULL",
	TRUE:           "TRUE",
	FALSE:          "FALSE",
	CONTAINS:       "CONTAINS",
	STARTS:         "STARTS",
	ENDS:           "ENDS",
	WITH:           "WITH",
	EQUAL:          "EQUAL",
	NOT_EQUAL:      "NOT_EQUAL",
	LESS_THAN:      "LESS_THAN",
	GREATER_THAN:   "GREATER_THAN",
	LESS_EQUAL:     "LESS_EQUAL",
	GREATER_EQUAL:  "GREATER_EQUAL",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	RANGE:          "RANGE",
	OPENED_PARENS:  "OPENED_PARENS",
	CLOSED_PARENS:  "CLOSED_PARENS",
	OPENED_BRACKET: "OPENED_BRACKET",
	CLOSED_BRACKET: "CLOSED_BRACKET",
	OPENED_BRACE:   "OPENED_BRACE",
	CLOSED_BRACE:   "CLOSED_BRACE",
	COMMA:          "COMMA",
	DOT:            "DOT",
	COLON:          "COLON",
	PIPE:           "PIPE",
}

// String returns the string representation of TokenType
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// keywords maps upper-cased reserved words to their token types. Cypher
// keywords are case-insensitive; identifiers keep their original casing.
var keywords = map[string]TokenType{
	"MATCH":      MATCH,
	"OPTIONAL":   OPTIONAL,
	"WHERE":      WHERE,
	"RETURN":     RETURN,
	"AS":         AS,
	"DISTINCT":   DISTINCT,
	"ORDER":      ORDER,
	"BY":         BY,
	"ASC":        ASC,
	"ASCENDING":  ASC,
	"DESC":       DESC,
	"DESCENDING": DESC,
	"LIMIT":      LIMIT,
	"SKIP":       SKIP,
	"AND":        AND,
	"OR":         OR,
	"NOT":        NOT,
	"IN":         IN,
	"IS":         IS,
	"NULL":       NULL,
	"TRUE":       TRUE,
	"FALSE":      FALSE,
	"CONTAINS":   CONTAINS,
	"STARTS":     STARTS,
	"ENDS":       ENDS,
	"WITH":       WITH,
}

// Position represents a position in the source query
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token represents a single lexical token
type Token struct {
	Type     TokenType
	Value    string
	Position Position
}

// String returns the string representation of Token
func (t Token) String() string {
	return t.Type.String() + ": " + t.Value
}
