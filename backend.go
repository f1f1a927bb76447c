package rql

// AliasResolver maps a public property path to the internal model path.
type AliasResolver func(alias string) (string, error)

// Backend is a query-construction engine bound to one model. Q is the native
// query type and C the native condition type.
//
// A Backend is immutable and may be shared; every build gets its own Session
// holding the state accumulated while resolving property paths.
type Backend[Q, C any] interface {
	// Model returns the model name used in messages.
	Model() string

	// InitialQuery returns the query a build starts from when the caller
	// supplies none.
	InitialQuery() Q

	// Field returns the type of a field of the model. Unknown fields fail
	// with ErrUnknownField.
	Field(name string) (FieldInfo, error)

	// Relation returns a relationship of the model. Unknown relationships
	// fail with ErrUnknownField.
	Relation(name string) (RelationInfo, error)

	// NewSession starts a build. resolve maps every property path before the
	// backend interprets it.
	NewSession(resolve AliasResolver) Session[Q, C]
}

// Session applies operators for one build.
type Session[Q, C any] interface {
	And(conditions ...C) (C, error)
	Or(conditions ...C) (C, error)
	Not(condition C) (C, error)

	Eq(property string, value any) (C, error)
	Ne(property string, value any) (C, error)
	Gt(property string, value any) (C, error)
	Lt(property string, value any) (C, error)
	Gte(property string, value any) (C, error)
	Lte(property string, value any) (C, error)
	In(property string, values any) (C, error)
	Out(property string, values any) (C, error)
	Like(property string, pattern any) (C, error)
	Ilike(property string, pattern any) (C, error)

	// Any returns an existence condition over the related rows of
	// relationship that satisfy condition.
	Any(relationship string, condition C) (C, error)

	ApplyFilter(query Q, filter FilterExpression[C]) (Q, error)
	ApplyOrderBy(query Q, orderBy OrderByExpression) (Q, error)

	// ApplyJoins attaches the joins accumulated by the session. It is called
	// once, after every filter and order has been applied.
	ApplyJoins(query Q) (Q, error)
}

// BackendFactory builds a backend for a model value.
type BackendFactory[Q, C any] func(model any) (Backend[Q, C], error)

// comparisonHandlers maps every comparison operator to its Session method.
func comparisonHandlers[Q, C any]() [numComparisons]func(Session[Q, C], string, any) (C, error) {
	return [numComparisons]func(Session[Q, C], string, any) (C, error){
		OpEq:    Session[Q, C].Eq,
		OpNe:    Session[Q, C].Ne,
		OpGt:    Session[Q, C].Gt,
		OpLt:    Session[Q, C].Lt,
		OpGte:   Session[Q, C].Gte,
		OpLte:   Session[Q, C].Lte,
		OpIn:    Session[Q, C].In,
		OpOut:   Session[Q, C].Out,
		OpLike:  Session[Q, C].Like,
		OpIlike: Session[Q, C].Ilike,
	}
}

// Hooks are the seams a rule set uses to intercept a build. Nil hooks accept
// everything and leave paths unchanged.
type Hooks struct {
	ResolveAlias     AliasResolver
	ValidateOperator func(property string, op Operator) error
	ValidateOrdering func(property string) error
}

func (h Hooks) resolve(alias string) (string, error) {
	if h.ResolveAlias == nil {
		return alias, nil
	}
	return h.ResolveAlias(alias)
}

func (h Hooks) validateOperator(property string, op Operator) error {
	if h.ValidateOperator == nil {
		return nil
	}
	return h.ValidateOperator(property, op)
}

func (h Hooks) validateOrdering(property string) error {
	if h.ValidateOrdering == nil {
		return nil
	}
	return h.ValidateOrdering(property)
}

// sessionAlgebra adapts a Session to the Algebra used by the transformer and
// runs the validation hooks before every comparison.
type sessionAlgebra[Q, C any] struct {
	session  Session[Q, C]
	hooks    Hooks
	handlers *[numComparisons]func(Session[Q, C], string, any) (C, error)
}

func (a *sessionAlgebra[Q, C]) And(conditions ...C) (C, error) {
	return a.session.And(conditions...)
}

func (a *sessionAlgebra[Q, C]) Or(conditions ...C) (C, error) {
	return a.session.Or(conditions...)
}

func (a *sessionAlgebra[Q, C]) Not(condition C) (C, error) {
	return a.session.Not(condition)
}

func (a *sessionAlgebra[Q, C]) Compare(op Operator, property string, value any) (C, error) {
	if err := a.hooks.validateOperator(property, op); err != nil {
		var zero C
		return zero, err
	}
	return a.handlers[op](a.session, property, value)
}

func (a *sessionAlgebra[Q, C]) EnterAny(relationship string) error {
	if scope, ok := a.session.(AnyScope); ok {
		return scope.EnterAny(relationship)
	}
	return nil
}

func (a *sessionAlgebra[Q, C]) Any(relationship string, condition C) (C, error) {
	if err := a.hooks.validateOperator(relationship, OpAny); err != nil {
		var zero C
		return zero, err
	}
	return a.session.Any(relationship, condition)
}
