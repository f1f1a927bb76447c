package rql

import (
	"fmt"

	"github.com/nlstn/go-rql/internal/parser"
)

// Compile parses text through the default parse cache and transforms it with
// algebra.
func Compile[C any](text string, algebra Algebra[C]) ([]Expression[C], error) {
	query, _, err := parser.DefaultCache().Parse(text)
	if err != nil {
		return nil, err
	}
	return Transform(query, algebra)
}

// Transform walks a parsed query bottom-up and dispatches every operator to
// algebra. The result keeps the left-to-right order of the '&'-joined
// expressions; every order_by clause becomes its own OrderByExpression.
//
// Errors returned by algebra are returned unchanged.
func Transform[C any](query *parser.Query, algebra Algebra[C]) ([]Expression[C], error) {
	t := transformer[C]{algebra: algebra}
	result := make([]Expression[C], 0, len(query.Expressions))
	for _, node := range query.Expressions {
		if orderBy, ok := node.(*parser.OrderBy); ok {
			result = append(result, t.orderBy(orderBy))
			continue
		}
		condition, err := t.condition(node)
		if err != nil {
			return nil, err
		}
		result = append(result, FilterExpression[C]{Condition: condition})
	}
	return result, nil
}

type transformer[C any] struct {
	algebra Algebra[C]
}

func (t transformer[C]) condition(node parser.Node) (C, error) {
	var zero C
	switch n := node.(type) {
	case *parser.Comparison:
		op, ok := ParseOperator(n.Op)
		if !ok || !op.IsComparison() {
			return zero, fmt.Errorf("rql: unsupported comparison operator %q", n.Op)
		}
		return t.algebra.Compare(op, n.Property, literalValue(n.Value))

	case *parser.Logical:
		args := make([]C, len(n.Args))
		for i, arg := range n.Args {
			c, err := t.condition(arg)
			if err != nil {
				return zero, err
			}
			args[i] = c
		}
		switch n.Op {
		case "and":
			return t.algebra.And(args...)
		case "or":
			return t.algebra.Or(args...)
		case "not":
			return t.algebra.Not(args[0])
		}
		return zero, fmt.Errorf("rql: unsupported logical operator %q", n.Op)

	case *parser.Any:
		if scope, ok := t.algebra.(AnyScope); ok {
			if err := scope.EnterAny(n.Relationship); err != nil {
				return zero, err
			}
		}
		c, err := t.condition(n.Condition)
		if err != nil {
			return zero, err
		}
		return t.algebra.Any(n.Relationship, c)
	}
	return zero, fmt.Errorf("rql: unexpected node %T", node)
}

func (t transformer[C]) orderBy(n *parser.OrderBy) OrderByExpression {
	fields := make([]OrderField, len(n.Items))
	for i, item := range n.Items {
		fields[i] = OrderField{Path: item.Property}
		if item.Descending {
			fields[i].Direction = Descending
		}
	}
	return OrderByExpression{Fields: fields}
}

// literalValue unwraps a literal to its value and a tuple to []any.
func literalValue(node parser.Node) any {
	switch v := node.(type) {
	case *parser.Literal:
		return v.Value
	case *parser.Tuple:
		return v.Values()
	}
	return nil
}
