package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestTokenIterator(t *testing.T) {
	query := "MATCH (u:User) RETURN u"
	tokenizer := NewCypherTokenizer(query)

	expectedTypes := []TokenType{
		MATCH, WHITESPACE, OPENED_PARENS, IDENT, COLON, IDENT, CLOSED_PARENS,
		WHITESPACE, RETURN, WHITESPACE, IDENT, EOF,
	}

	var actualTypes []TokenType
	for token, err := range tokenizer.Tokens() {
		assert.NoError(t, err)

		actualTypes = append(actualTypes, token.Type)

		if token.Type == EOF {
			break
		}
	}

	assert.Equal(t, expectedTypes, actualTypes)
}

func TestTokenIteratorSkipWhitespace(t *testing.T) {
	query := "MATCH (u:User)\nRETURN u.name"
	tokenizer := NewCypherTokenizer(query, TokenizerOptions{SkipWhitespace: true})

	expectedTypes := []TokenType{
		MATCH, OPENED_PARENS, IDENT, COLON, IDENT, CLOSED_PARENS,
		RETURN, IDENT, DOT, IDENT, EOF,
	}

	var actualTypes []TokenType
	for token, err := range tokenizer.Tokens() {
		assert.NoError(t, err)

		actualTypes = append(actualTypes, token.Type)

		if token.Type == EOF {
			break
		}
	}

	assert.Equal(t, expectedTypes, actualTypes)
}

func TestIteratorEarlyTermination(t *testing.T) {
	query := "MATCH (u:User)-[:KNOWS]->(v:User) RETURN u, v"
	tokenizer := NewCypherTokenizer(query)

	count := 0
	for _, err := range tokenizer.Tokens() {
		assert.NoError(t, err)

		count++

		if count >= 5 {
			break
		}
	}

	assert.Equal(t, 5, count)
}

func TestBasicTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{
			name:     "relationship arrow",
			input:    "-[:KNOWS]->",
			expected: []TokenType{MINUS, OPENED_BRACKET, COLON, IDENT, CLOSED_BRACKET, MINUS, GREATER_THAN, EOF},
		},
		{
			name:     "comparison operators",
			input:    "= <> != < > <= >=",
			expected: []TokenType{EQUAL, NOT_EQUAL, NOT_EQUAL, LESS_THAN, GREATER_THAN, LESS_EQUAL, GREATER_EQUAL, EOF},
		},
		{
			name:     "property map",
			input:    "{name: 'Alice', age: 30}",
			expected: []TokenType{OPENED_BRACE, IDENT, COLON, STRING, COMMA, IDENT, COLON, NUMBER, CLOSED_BRACE, EOF},
		},
		{
			name:     "variable length bound",
			input:    "*1..3",
			expected: []TokenType{STAR, NUMBER, RANGE, NUMBER, EOF},
		},
		{
			name:     "open ended bound",
			input:    "*2..",
			expected: []TokenType{STAR, NUMBER, RANGE, EOF},
		},
		{
			name:     "type disjunction",
			input:    ":KNOWS|WORKS_WITH",
			expected: []TokenType{COLON, IDENT, PIPE, IDENT, EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			assert.NoError(t, err)

			actual := make([]TokenType, len(tokens))
			for i, token := range tokens {
				actual[i] = token.Type
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"MATCH", MATCH},
		{"match", MATCH},
		{"Match", MATCH},
		{"optional", OPTIONAL},
		{"RETURN", RETURN},
		{"ascending", ASC},
		{"DESCENDING", DESC},
		{"contains", CONTAINS},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, 2, len(tokens))
			assert.Equal(t, tt.expected, tokens[0].Type)
			// The original casing survives in the value.
			assert.Equal(t, tt.input, tokens[0].Value)
		})
	}
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single quoted", `'Alice'`, "Alice"},
		{"double quoted", `"Alice"`, "Alice"},
		{"escaped quote", `'it\'s'`, "it's"},
		{"escaped backslash", `'a\\b'`, `a\b`},
		{"newline escape", `'a\nb'`, "a\nb"},
		{"tab escape", `'a\tb'`, "a\tb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, STRING, tokens[0].Type)
			assert.Equal(t, tt.expected, tokens[0].Value)
		})
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42", "42"},
		{"3.14", "3.14"},
		{"1e10", "1e10"},
		{"2.5e-3", "2.5e-3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, NUMBER, tokens[0].Type)
			assert.Equal(t, tt.expected, tokens[0].Value)
		})
	}
}

func TestRangeAfterInteger(t *testing.T) {
	// The integer stops at the range operator; `1..3` is not a float
	// followed by a dot.
	tokens, err := Tokenize("1..3")
	assert.NoError(t, err)
	assert.Equal(t, 4, len(tokens))
	assert.Equal(t, NUMBER, tokens[0].Type)
	assert.Equal(t, "1", tokens[0].Value)
	assert.Equal(t, RANGE, tokens[1].Type)
	assert.Equal(t, NUMBER, tokens[2].Type)
	assert.Equal(t, "3", tokens[2].Value)
}

func TestTokenizerErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{"unexpected character", "MATCH @", ErrUnexpectedCharacter},
		{"bare bang", "a ! b", ErrUnexpectedCharacter},
		{"unterminated string", "'no end", ErrUnterminatedString},
		{"unterminated escape", `'trailing\`, ErrUnterminatedString},
		{"bad exponent", "1e+", ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected))
		})
	}
}

func TestPositionTracking(t *testing.T) {
	tokens, err := Tokenize("MATCH\n(u)")
	assert.NoError(t, err)

	// MATCH on line 1, the parenthesis on line 2.
	assert.Equal(t, 1, tokens[0].Position.Line)
	assert.Equal(t, 1, tokens[0].Position.Column)
	assert.Equal(t, 0, tokens[0].Position.Offset)
	assert.Equal(t, 2, tokens[1].Position.Line)
}

func TestLexicalErrorsReportOffset(t *testing.T) {
	query := "MATCH (u) WHERE u.x @"
	_, err := Tokenize(query)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedCharacter))
	assert.True(t, strings.Contains(err.Error(), fmt.Sprintf("offset %d", strings.Index(query, "@"))))

	query = "MATCH (u) WHERE u.x = 'open"
	_, err = Tokenize(query)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnterminatedString))
	assert.True(t, strings.Contains(err.Error(), fmt.Sprintf("offset %d", strings.Index(query, "'"))))
}

func TestMultiByteCharacters(t *testing.T) {
	// UTF-8 input decodes rune by rune; multi-byte characters survive
	// string literals and identifiers intact.
	query := "MATCH (u:User) WHERE u.name = 'café' RETURN u"
	tokens, err := Tokenize(query)
	assert.NoError(t, err)

	var str *Token
	for i := range tokens {
		if tokens[i].Type == STRING {
			str = &tokens[i]
			break
		}
	}
	assert.NotZero(t, str)
	assert.Equal(t, "café", str.Value)
	assert.Equal(t, strings.Index(query, "'café'"), str.Position.Offset)

	tokens, err = Tokenize("MATCH (zügel:User) RETURN zügel")
	assert.NoError(t, err)
	assert.Equal(t, IDENT, tokens[2].Type)
	assert.Equal(t, "zügel", tokens[2].Value)
}

func TestDeterministicOutput(t *testing.T) {
	query := "MATCH (u:User {name: 'Alice'})-[:KNOWS*1..3]->(v) WHERE v.age > 30 RETURN v.name"

	first, err := Tokenize(query)
	assert.NoError(t, err)
	second, err := Tokenize(query)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
}
