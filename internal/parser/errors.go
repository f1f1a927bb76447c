package parser

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every error returned from Parse.
var ErrSyntax = errors.New("rql: syntax error")

const maxFragment = 24

// SyntaxError describes malformed RQL input.
type SyntaxError struct {
	Message  string
	Fragment string
	Pos      int
}

func (e *SyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("rql: syntax error at position %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("rql: syntax error at position %d: %s near %q", e.Pos, e.Message, e.Fragment)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func newSyntaxError(message, input string, pos int) *SyntaxError {
	return &SyntaxError{Message: message, Fragment: fragmentAt(input, pos), Pos: pos}
}

func fragmentAt(input string, pos int) string {
	if pos >= len(input) {
		return ""
	}
	end := pos + maxFragment
	if end > len(input) {
		end = len(input)
	}
	return input[pos:end]
}
