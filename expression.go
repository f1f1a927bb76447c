package rql

// Expression is one top-level result of compiling RQL text: either a
// FilterExpression or an OrderByExpression.
type Expression[C any] interface {
	expression()
}

// FilterExpression wraps one backend condition.
type FilterExpression[C any] struct {
	Condition C
}

func (FilterExpression[C]) expression() {}

// Direction is the sort direction of an order field.
type Direction uint8

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "-"
	}
	return "+"
}

// OrderField is one property of an order_by clause.
type OrderField struct {
	Direction Direction
	Path      string
}

// OrderByExpression is one order_by clause. Fields keep their declared order.
type OrderByExpression struct {
	Fields []OrderField
}

func (OrderByExpression) expression() {}

