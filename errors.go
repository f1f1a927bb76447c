package rql

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nlstn/go-rql/internal/parser"
)

// Sentinel errors for the failure kinds of query compilation.
// These can be used with errors.Is() for error handling.
var (
	// ErrSyntax indicates malformed RQL text. The concrete error is a *SyntaxError.
	ErrSyntax = parser.ErrSyntax

	// ErrUnknownField indicates an alias or path that resolves to nothing.
	ErrUnknownField = errors.New("rql: unknown field")

	// ErrAmbiguousField indicates an alias matched by more than one relationship.
	ErrAmbiguousField = errors.New("rql: ambiguous field")

	// ErrOperatorNotAllowed indicates a field rejects the requested operator.
	ErrOperatorNotAllowed = errors.New("rql: operator not allowed")

	// ErrOrderingNotAllowed indicates a field cannot be used in order_by.
	ErrOrderingNotAllowed = errors.New("rql: ordering not allowed")

	// ErrRelationshipComparison indicates a relationship used where a field is
	// required, such as eq/ne with a non-null value.
	ErrRelationshipComparison = errors.New("rql: invalid relationship comparison")

	// ErrRuleDefinition indicates an invalid rule set declaration.
	ErrRuleDefinition = errors.New("rql: invalid rule definition")

	// ErrInvalidValue indicates a literal that cannot be used with a field's type.
	ErrInvalidValue = errors.New("rql: invalid value")

	// ErrUnsupportedType indicates a model field whose type has no RQL category.
	ErrUnsupportedType = errors.New("rql: unsupported field type")
)

// SyntaxError describes malformed RQL input and carries the offending fragment.
type SyntaxError = parser.SyntaxError

// Error is a query compilation error of a specific kind.
type Error struct {
	// Kind is one of the sentinel errors of this package.
	Kind error

	// Field is the alias or path the error refers to, if any.
	Field string

	// Operator is the operator the error refers to, if any.
	Operator string

	// Message is a human-readable error description.
	Message string
}

// Errorf returns an *Error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the error kind so that errors.Is matches the sentinel.
func (e *Error) Unwrap() error {
	return e.Kind
}

// ValidationError aggregates every problem found while validating a rule set.
type ValidationError struct {
	Model  string
	Errors []error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "model validation failed for '%s'", e.Model)
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Errors
}

// Is reports whether target is ErrRuleDefinition.
func (e *ValidationError) Is(target error) bool {
	return target == ErrRuleDefinition
}

// HTTPStatus returns the HTTP status code that fits err when a query string
// comes from an HTTP request.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRuleDefinition):
		return http.StatusInternalServerError
	case errors.Is(err, ErrSyntax),
		errors.Is(err, ErrUnknownField),
		errors.Is(err, ErrAmbiguousField),
		errors.Is(err, ErrOperatorNotAllowed),
		errors.Is(err, ErrOrderingNotAllowed),
		errors.Is(err, ErrRelationshipComparison),
		errors.Is(err, ErrInvalidValue):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
