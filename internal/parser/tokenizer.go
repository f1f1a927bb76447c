package parser

import "strings"

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenString
	TokenLParen
	TokenRParen
	TokenComma
	TokenAmp
)

var tokenNames = [...]string{
	TokenEOF:    "end of input",
	TokenWord:   "word",
	TokenString: "string",
	TokenLParen: "'('",
	TokenRParen: "')'",
	TokenComma:  "','",
	TokenAmp:    "'&'",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "unknown"
}

// Token represents a single token in an RQL expression
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Tokenizer splits RQL text into tokens. Anything that is not structural
// punctuation or a quoted string is read as a raw word, so unquoted values
// may contain spaces.
type Tokenizer struct {
	input string
	pos   int
	ch    byte
}

// NewTokenizer creates a new tokenizer
func NewTokenizer(input string) *Tokenizer {
	t := &Tokenizer{input: input}
	if len(input) > 0 {
		t.ch = input[0]
	}
	return t
}

func (t *Tokenizer) advance() {
	t.pos++
	if t.pos >= len(t.input) {
		t.ch = 0
	} else {
		t.ch = t.input[t.pos]
	}
}

func (t *Tokenizer) peek() byte {
	if t.pos+1 >= len(t.input) {
		return 0
	}
	return t.input[t.pos+1]
}

func (t *Tokenizer) atEOF() bool {
	return t.pos >= len(t.input)
}

func (t *Tokenizer) skipWhitespace() {
	for !t.atEOF() && isSpace(t.ch) {
		t.advance()
	}
}

// readString reads a quoted string. A backslash escapes the closing quote.
func (t *Tokenizer) readString() (string, error) {
	start := t.pos
	quote := t.ch
	t.advance()

	var result strings.Builder
	for !t.atEOF() && t.ch != quote {
		if t.ch == '\\' && t.peek() == quote {
			t.advance()
		}
		result.WriteByte(t.ch)
		t.advance()
	}

	if t.atEOF() {
		return "", newSyntaxError("unterminated string", t.input, start)
	}
	t.advance()
	return result.String(), nil
}

// readWord reads raw text up to the next structural delimiter.
func (t *Tokenizer) readWord() string {
	start := t.pos
	for !t.atEOF() && !isDelimiter(t.ch) {
		t.advance()
	}
	return strings.TrimRight(t.input[start:t.pos], " \t\r\n")
}

// NextToken returns the next token
func (t *Tokenizer) NextToken() (*Token, error) {
	t.skipWhitespace()

	if t.atEOF() {
		return &Token{Type: TokenEOF, Pos: t.pos}, nil
	}

	pos := t.pos
	switch t.ch {
	case '(':
		t.advance()
		return &Token{Type: TokenLParen, Value: "(", Pos: pos}, nil
	case ')':
		t.advance()
		return &Token{Type: TokenRParen, Value: ")", Pos: pos}, nil
	case ',':
		t.advance()
		return &Token{Type: TokenComma, Value: ",", Pos: pos}, nil
	case '&':
		t.advance()
		return &Token{Type: TokenAmp, Value: "&", Pos: pos}, nil
	case '\'', '"':
		value, err := t.readString()
		if err != nil {
			return nil, err
		}
		return &Token{Type: TokenString, Value: value, Pos: pos}, nil
	}

	return &Token{Type: TokenWord, Value: t.readWord(), Pos: pos}, nil
}

// TokenizeAll tokenizes the entire input, ending with a TokenEOF token.
func (t *Tokenizer) TokenizeAll() ([]*Token, error) {
	tokens := make([]*Token, 0, len(t.input)/3+1)
	for {
		token, err := t.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		if token.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDelimiter(ch byte) bool {
	return ch == '(' || ch == ')' || ch == ',' || ch == '&'
}
