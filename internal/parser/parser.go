package parser

import "fmt"

// Comparison operator names accepted by the grammar.
var comparisonOps = map[string]bool{
	"eq": true, "ne": true, "gt": true, "lt": true, "gte": true, "lte": true,
	"in": true, "out": true, "like": true, "ilike": true,
}

// IsComparison reports whether name is a comparison operator of the grammar.
func IsComparison(name string) bool {
	return comparisonOps[name]
}

// Parser is a recursive-descent parser over the tokens of one RQL string.
type Parser struct {
	input   string
	tokens  []*Token
	current int
}

// Parse parses RQL text into a Query.
func Parse(input string) (*Query, error) {
	tokens, err := NewTokenizer(input).TokenizeAll()
	if err != nil {
		return nil, err
	}
	p := &Parser{input: input, tokens: tokens}
	return p.Parse()
}

func (p *Parser) currentToken() *Token {
	if p.current >= len(p.tokens) {
		return &Token{Type: TokenEOF, Pos: len(p.input)}
	}
	return p.tokens[p.current]
}

func (p *Parser) peekToken() *Token {
	if p.current+1 >= len(p.tokens) {
		return &Token{Type: TokenEOF, Pos: len(p.input)}
	}
	return p.tokens[p.current+1]
}

func (p *Parser) advance() *Token {
	token := p.currentToken()
	if p.current < len(p.tokens)-1 {
		p.current++
	}
	return token
}

func (p *Parser) errorf(token *Token, format string, args ...any) error {
	return newSyntaxError(fmt.Sprintf(format, args...), p.input, token.Pos)
}

func (p *Parser) unexpected(token *Token, want string) error {
	if token.Type == TokenEOF {
		return p.errorf(token, "unexpected end of input, expected %s", want)
	}
	return p.errorf(token, "unexpected %s, expected %s", token.Type, want)
}

func (p *Parser) expect(tokenType TokenType) error {
	token := p.currentToken()
	if token.Type != tokenType {
		return p.unexpected(token, tokenType.String())
	}
	p.advance()
	return nil
}

// Parse parses the whole token stream.
func (p *Parser) Parse() (*Query, error) {
	if p.currentToken().Type == TokenEOF {
		return nil, p.errorf(p.currentToken(), "empty query")
	}

	query := &Query{}
	for {
		expr, err := p.parseExpression(false)
		if err != nil {
			return nil, err
		}
		query.Expressions = append(query.Expressions, expr)

		token := p.currentToken()
		switch token.Type {
		case TokenAmp:
			p.advance()
		case TokenEOF:
			return query, nil
		default:
			return nil, p.unexpected(token, "'&' or end of input")
		}
	}
}

func (p *Parser) parseExpression(nested bool) (Node, error) {
	token := p.currentToken()
	if token.Type != TokenWord {
		return nil, p.unexpected(token, "an operator")
	}
	name := token.Value
	if name != "and" && name != "or" && name != "not" && name != "any" && name != "order_by" && !comparisonOps[name] {
		return nil, p.errorf(token, "unknown operator '%s'", name)
	}
	if name == "order_by" && nested {
		return nil, p.errorf(token, "order_by is only allowed at the top level")
	}
	p.advance()
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	var (
		node Node
		err  error
	)
	switch name {
	case "and", "or":
		node, err = p.parseLogical(name)
	case "not":
		node, err = p.parseNot()
	case "any":
		node, err = p.parseAny()
	case "order_by":
		node, err = p.parseOrderBy()
	default:
		node, err = p.parseComparison(name)
	}
	if err != nil {
		return nil, err
	}

	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseLogical(op string) (Node, error) {
	logical := &Logical{Op: op}
	for {
		arg, err := p.parseExpression(true)
		if err != nil {
			return nil, err
		}
		logical.Args = append(logical.Args, arg)

		if p.currentToken().Type != TokenComma {
			return logical, nil
		}
		p.advance()
	}
}

func (p *Parser) parseNot() (Node, error) {
	arg, err := p.parseExpression(true)
	if err != nil {
		return nil, err
	}
	if token := p.currentToken(); token.Type == TokenComma {
		return nil, p.errorf(token, "not() takes exactly one expression")
	}
	return &Logical{Op: "not", Args: []Node{arg}}, nil
}

func (p *Parser) parseAny() (Node, error) {
	relationship, err := p.parseProperty()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenComma); err != nil {
		return nil, err
	}
	condition, err := p.parseExpression(true)
	if err != nil {
		return nil, err
	}
	return &Any{Relationship: relationship, Condition: condition}, nil
}

func (p *Parser) parseOrderBy() (Node, error) {
	orderBy := &OrderBy{}
	for {
		token := p.currentToken()
		if token.Type != TokenWord {
			return nil, p.unexpected(token, "a property")
		}
		item := OrderItem{Property: token.Value}
		switch token.Value[0] {
		case '-':
			item.Descending = true
			item.Property = token.Value[1:]
		case '+':
			item.Property = token.Value[1:]
		}
		if !isPropertyPath(item.Property) {
			return nil, p.errorf(token, "invalid property '%s'", item.Property)
		}
		p.advance()
		orderBy.Items = append(orderBy.Items, item)

		if p.currentToken().Type != TokenComma {
			return orderBy, nil
		}
		p.advance()
	}
}

func (p *Parser) parseComparison(op string) (Node, error) {
	property, err := p.parseProperty()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenComma); err != nil {
		return nil, err
	}
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Comparison{Op: op, Property: property, Value: value}, nil
}

func (p *Parser) parseProperty() (string, error) {
	token := p.currentToken()
	if token.Type != TokenWord {
		return "", p.unexpected(token, "a property")
	}
	if !isPropertyPath(token.Value) {
		return "", p.errorf(token, "invalid property '%s'", token.Value)
	}
	p.advance()
	return token.Value, nil
}

func (p *Parser) parseValue() (Node, error) {
	if p.currentToken().Type != TokenLParen {
		literal, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &literal, nil
	}

	p.advance()
	tuple := &Tuple{}
	for {
		literal, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		tuple.Items = append(tuple.Items, literal)

		token := p.currentToken()
		if token.Type == TokenRParen {
			p.advance()
			return tuple, nil
		}
		if token.Type != TokenComma {
			return nil, p.unexpected(token, "',' or ')'")
		}
		p.advance()
	}
}

func (p *Parser) parseLiteral() (Literal, error) {
	token := p.currentToken()
	switch token.Type {
	case TokenString:
		p.advance()
		return Literal{Kind: KindString, Value: token.Value}, nil
	case TokenWord:
	default:
		return Literal{}, p.unexpected(token, "a value")
	}

	if (token.Value == "null" || token.Value == "empty") && p.peekToken().Type == TokenLParen {
		p.advance()
		p.advance()
		if err := p.expect(TokenRParen); err != nil {
			return Literal{}, err
		}
		if token.Value == "null" {
			return Literal{Kind: KindNull}, nil
		}
		return Literal{Kind: KindEmpty, Value: ""}, nil
	}

	literal, err := classifyWord(token.Value)
	if err != nil {
		return Literal{}, p.errorf(token, "%s", err.Error())
	}
	p.advance()
	return literal, nil
}

// isPropertyPath reports whether s is a dot-separated list of identifiers.
func isPropertyPath(s string) bool {
	if s == "" {
		return false
	}
	segmentStart := true
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '.':
			if segmentStart {
				return false
			}
			segmentStart = true
			continue
		case ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z':
		case isDigit(ch):
			if segmentStart {
				return false
			}
		default:
			return false
		}
		segmentStart = false
	}
	return !segmentStart
}
