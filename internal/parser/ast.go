package parser

import (
	"strconv"
	"strings"
	"time"
)

// Node is a node of the parsed RQL tree. Trees are immutable once parsed and
// may be shared between goroutines.
type Node interface {
	node()
	String() string
}

// Query is the root of a parsed RQL string: the '&'-joined top-level expressions.
type Query struct {
	Expressions []Node
}

// Comparison is op(property,value). Value is a Literal or a Tuple.
type Comparison struct {
	Op       string
	Property string
	Value    Node
}

// Logical is and(...), or(...) or not(x).
type Logical struct {
	Op   string
	Args []Node
}

// Any is any(relationship,condition).
type Any struct {
	Relationship string
	Condition    Node
}

// OrderItem is one property of an order_by expression.
type OrderItem struct {
	Descending bool
	Property   string
}

// OrderBy is order_by(+a,-b,...).
type OrderBy struct {
	Items []OrderItem
}

// LiteralKind classifies a literal value.
type LiteralKind uint8

const (
	KindString LiteralKind = iota
	KindInteger
	KindFloat
	KindDate
	KindDateTime
	KindBoolean
	KindNull
	KindEmpty
)

var literalKindNames = [...]string{
	KindString:   "string",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindBoolean:  "boolean",
	KindNull:     "null",
	KindEmpty:    "empty",
}

func (k LiteralKind) String() string {
	if int(k) < len(literalKindNames) {
		return literalKindNames[k]
	}
	return "unknown"
}

// Literal is a typed scalar. Value holds string, int64, float64, Date,
// time.Time, bool, nil (null) or "" (empty).
type Literal struct {
	Kind  LiteralKind
	Value any
}

// Tuple is a parenthesized list of literals.
type Tuple struct {
	Items []Literal
}

func (*Query) node()      {}
func (*Comparison) node() {}
func (*Logical) node()    {}
func (*Any) node()        {}
func (*OrderBy) node()    {}
func (*Literal) node()    {}
func (*Tuple) node()      {}

func (q *Query) String() string {
	parts := make([]string, len(q.Expressions))
	for i, expr := range q.Expressions {
		parts[i] = expr.String()
	}
	return strings.Join(parts, "&")
}

func (c *Comparison) String() string {
	return c.Op + "(" + c.Property + "," + c.Value.String() + ")"
}

func (l *Logical) String() string {
	parts := make([]string, len(l.Args))
	for i, arg := range l.Args {
		parts[i] = arg.String()
	}
	return l.Op + "(" + strings.Join(parts, ",") + ")"
}

func (a *Any) String() string {
	return "any(" + a.Relationship + "," + a.Condition.String() + ")"
}

func (o *OrderBy) String() string {
	parts := make([]string, len(o.Items))
	for i, item := range o.Items {
		if item.Descending {
			parts[i] = "-" + item.Property
		} else {
			parts[i] = "+" + item.Property
		}
	}
	return "order_by(" + strings.Join(parts, ",") + ")"
}

func (l *Literal) String() string {
	switch l.Kind {
	case KindNull:
		return "null()"
	case KindEmpty:
		return "empty()"
	case KindInteger:
		return strconv.FormatInt(l.Value.(int64), 10)
	case KindFloat:
		return strconv.FormatFloat(l.Value.(float64), 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(l.Value.(bool))
	case KindDate:
		return l.Value.(Date).String()
	case KindDateTime:
		return l.Value.(time.Time).Format(time.RFC3339Nano)
	}
	return strconv.Quote(l.Value.(string))
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Items))
	for i := range t.Items {
		parts[i] = t.Items[i].String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Values returns the tuple items' values in declaration order.
func (t *Tuple) Values() []any {
	values := make([]any, len(t.Items))
	for i, item := range t.Items {
		values[i] = item.Value
	}
	return values
}
