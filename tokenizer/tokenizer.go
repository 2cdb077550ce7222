// Package tokenizer turns Cypher query text into a stream of typed tokens.
// It is a pure function of its input: no state survives a call and the same
// input always yields the same token sequence.
package tokenizer

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenIterator uses the Go 1.23+ iterator pattern
type TokenIterator iter.Seq2[Token, error]

// CypherTokenizer is a tokenizer that returns an iterator
type CypherTokenizer struct {
	input   string
	options TokenizerOptions
}

// TokenizerOptions are options for the tokenizer
type TokenizerOptions struct {
	SkipWhitespace bool
}

// NewCypherTokenizer creates a new CypherTokenizer
func NewCypherTokenizer(input string, options ...TokenizerOptions) *CypherTokenizer {
	opts := TokenizerOptions{
		SkipWhitespace: false,
	}
	if len(options) > 0 {
		opts = options[0]
	}

	return &CypherTokenizer{
		input:   input,
		options: opts,
	}
}

// Tokens returns an iterator of tokens
func (t *CypherTokenizer) Tokens() TokenIterator {
	return func(yield func(Token, error) bool) {
		tokenizer := &tokenizer{
			input:  t.input,
			line:   1,
			column: 1,
		}

		tokenizer.readChar()

		for {
			token, err := tokenizer.nextToken()
			if err != nil {
				yield(Token{}, err)
				return
			}

			if token.Type == EOF {
				yield(token, nil)
				return
			}

			if t.options.SkipWhitespace && token.Type == WHITESPACE {
				continue
			}

			if !yield(token, nil) {
				return
			}
		}
	}
}

// AllTokens gets all tokens as a slice
func (t *CypherTokenizer) AllTokens() ([]Token, error) {
	tokens := make([]Token, 0, 64)

	for token, err := range t.Tokens() {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		if token.Type == EOF {
			break
		}
	}

	return tokens, nil
}

// Tokenize is a convenience wrapper returning every non-whitespace token.
func Tokenize(input string) ([]Token, error) {
	return NewCypherTokenizer(input, TokenizerOptions{SkipWhitespace: true}).AllTokens()
}

// Internal tokenizer implementation
type tokenizer struct {
	input    string
	position int // byte offset just past current
	width    int // byte width of current
	line     int
	column   int
	current  rune
}

// nextToken gets the next token
func (t *tokenizer) nextToken() (Token, error) {
	switch t.current {
	case 0:
		return t.newToken(EOF, ""), nil
	case ' ', '\t', '\r', '\n':
		return t.readWhitespace(), nil
	case '(':
		return t.singleChar(OPENED_PARENS), nil
	case ')':
		return t.singleChar(CLOSED_PARENS), nil
	case '[':
		return t.singleChar(OPENED_BRACKET), nil
	case ']':
		return t.singleChar(CLOSED_BRACKET), nil
	case '{':
		return t.singleChar(OPENED_BRACE), nil
	case '}':
		return t.singleChar(CLOSED_BRACE), nil
	case ',':
		return t.singleChar(COMMA), nil
	case ':':
		return t.singleChar(COLON), nil
	case '|':
		return t.singleChar(PIPE), nil
	case '.':
		if t.peekChar() == '.' {
			return t.twoChar(RANGE, ".."), nil
		}
		return t.singleChar(DOT), nil
	case '\'', '"':
		return t.readString(t.current)
	case '=':
		return t.singleChar(EQUAL), nil
	case '+':
		return t.singleChar(PLUS), nil
	case '-':
		return t.singleChar(MINUS), nil
	case '*':
		return t.singleChar(STAR), nil
	case '/':
		return t.singleChar(SLASH), nil
	case '<':
		if t.peekChar() == '=' {
			return t.twoChar(LESS_EQUAL, "<="), nil
		} else if t.peekChar() == '>' {
			return t.twoChar(NOT_EQUAL, "<>"), nil
		}
		return t.singleChar(LESS_THAN), nil
	case '>':
		if t.peekChar() == '=' {
			return t.twoChar(GREATER_EQUAL, ">="), nil
		}
		return t.singleChar(GREATER_THAN), nil
	case '!':
		if t.peekChar() == '=' {
			return t.twoChar(NOT_EQUAL, "!="), nil
		}
		return Token{}, fmt.Errorf("%w: %q at line %d, column %d (offset %d)",
			ErrUnexpectedCharacter, string(t.current), t.line, t.column-1, t.position-t.width)
	default:
		if unicode.IsLetter(t.current) || t.current == '_' {
			return t.readWord(), nil
		} else if unicode.IsDigit(t.current) {
			return t.readNumber()
		}
		return Token{}, fmt.Errorf("%w: %q at line %d, column %d (offset %d)",
			ErrUnexpectedCharacter, string(t.current), t.line, t.column-1, t.position-t.width)
	}
}

// readChar reads the next character. Input is UTF-8, so a character may
// span several bytes; position advances by the decoded rune's width.
func (t *tokenizer) readChar() {
	if t.position >= len(t.input) {
		t.current = 0
		t.width = 0
		t.position++
		return
	}

	r, w := utf8.DecodeRuneInString(t.input[t.position:])
	t.current = r
	t.width = w
	t.position += w

	if t.current == '\n' {
		t.line++
		t.column = 1
	} else {
		t.column++
	}
}

// peekChar looks ahead at the next character
func (t *tokenizer) peekChar() rune {
	if t.position >= len(t.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(t.input[t.position:])
	return r
}

func (t *tokenizer) singleChar(tokenType TokenType) Token {
	token := t.newToken(tokenType, string(t.current))
	t.readChar()
	return token
}

// twoChar consumes the current character and the peeked one, with the
// token position anchored at the first.
func (t *tokenizer) twoChar(tokenType TokenType, value string) Token {
	token := Token{
		Type:  tokenType,
		Value: value,
		Position: Position{
			Line:   t.line,
			Column: t.column - 1,
			Offset: t.position - t.width,
		},
	}
	t.readChar()
	t.readChar()
	return token
}

// readWhitespace reads whitespace characters
func (t *tokenizer) readWhitespace() Token {
	var builder strings.Builder
	startLine := t.line
	startColumn := t.column - 1
	startOffset := t.position - t.width

	for unicode.IsSpace(t.current) {
		builder.WriteRune(t.current)
		t.readChar()
	}

	return Token{
		Type:  WHITESPACE,
		Value: builder.String(),
		Position: Position{
			Line:   startLine,
			Column: startColumn,
			Offset: startOffset,
		},
	}
}

// readWord reads words (identifiers and keywords)
func (t *tokenizer) readWord() Token {
	var builder strings.Builder
	startLine := t.line
	startColumn := t.column - 1
	startOffset := t.position - t.width

	for unicode.IsLetter(t.current) || unicode.IsDigit(t.current) || t.current == '_' {
		builder.WriteRune(t.current)
		t.readChar()
	}

	word := builder.String()
	tokenType := IDENT
	if kw, ok := keywords[strings.ToUpper(word)]; ok {
		tokenType = kw
	}

	return Token{
		Type:  tokenType,
		Value: word,
		Position: Position{
			Line:   startLine,
			Column: startColumn,
			Offset: startOffset,
		},
	}
}

// readString reads string literals. The surrounding quotes are dropped and
// escaped quote/backslash sequences are decoded, so Value holds the literal
// content itself.
func (t *tokenizer) readString(delimiter rune) (Token, error) {
	var builder strings.Builder
	startLine := t.line
	startColumn := t.column - 1
	startOffset := t.position - t.width

	t.readChar() // consume opening quote

	for t.current != 0 && t.current != delimiter {
		if t.current == '\\' {
			t.readChar()
			switch t.current {
			case 0:
				return Token{}, fmt.Errorf("%w: %c at line %d, column %d (offset %d)", ErrUnterminatedString, delimiter, startLine, startColumn, startOffset)
			case 'n':
				builder.WriteRune('\n')
			case 't':
				builder.WriteRune('\t')
			default:
				builder.WriteRune(t.current)
			}
			t.readChar()
			continue
		}
		builder.WriteRune(t.current)
		t.readChar()
	}

	if t.current == 0 {
		return Token{}, fmt.Errorf("%w: %c at line %d, column %d (offset %d)", ErrUnterminatedString, delimiter, startLine, startColumn, startOffset)
	}

	t.readChar() // consume closing quote

	return Token{
		Type:  STRING,
		Value: builder.String(),
		Position: Position{
			Line:   startLine,
			Column: startColumn,
			Offset: startOffset,
		},
	}, nil
}

// readNumber reads numeric literals
func (t *tokenizer) readNumber() (Token, error) {
	var builder strings.Builder
	startLine := t.line
	startColumn := t.column - 1
	startOffset := t.position - t.width

	for unicode.IsDigit(t.current) {
		builder.WriteRune(t.current)
		t.readChar()
	}

	// Decimal point. A second dot means a range (`1..3`), which belongs to
	// the following token.
	if t.current == '.' && unicode.IsDigit(t.peekChar()) {
		builder.WriteRune(t.current)
		t.readChar()

		for unicode.IsDigit(t.current) {
			builder.WriteRune(t.current)
			t.readChar()
		}
	}

	// Exponential part
	if t.current == 'e' || t.current == 'E' {
		builder.WriteRune(t.current)
		t.readChar()

		if t.current == '+' || t.current == '-' {
			builder.WriteRune(t.current)
			t.readChar()
		}

		if !unicode.IsDigit(t.current) {
			return Token{}, fmt.Errorf("%w: invalid exponent at line %d, column %d (offset %d)", ErrInvalidNumber, startLine, startColumn, startOffset)
		}

		for unicode.IsDigit(t.current) {
			builder.WriteRune(t.current)
			t.readChar()
		}
	}

	return Token{
		Type:  NUMBER,
		Value: builder.String(),
		Position: Position{
			Line:   startLine,
			Column: startColumn,
			Offset: startOffset,
		},
	}, nil
}

// newToken creates a new token
func (t *tokenizer) newToken(tokenType TokenType, value string) Token {
	return Token{
		Type:  tokenType,
		Value: value,
		Position: Position{
			Line:   t.line,
			Column: t.column - len([]rune(value)),
			Offset: t.position - len(value),
		},
	}
}
