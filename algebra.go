package rql

// Algebra is the set of operator functions a backend supplies to the
// transformer. C is the backend's native condition type.
//
// And and Or receive every argument of the RQL call at once and must accept
// any arity of at least one. Not receives exactly one condition.
type Algebra[C any] interface {
	And(conditions ...C) (C, error)
	Or(conditions ...C) (C, error)
	Not(condition C) (C, error)
	Compare(op Operator, property string, value any) (C, error)
	Any(relationship string, condition C) (C, error)
}

// AnyScope is implemented by algebras and sessions that track which
// relationship an any() condition is built for. EnterAny is called before the
// condition of any() is transformed; the matching Any call ends the scope.
type AnyScope interface {
	EnterAny(relationship string) error
}
