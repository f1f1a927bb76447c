package goqubuilder

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/nlstn/go-rql"
	"github.com/nlstn/go-rql/internal/joinplan"
)

// joinData is a planned join of a to-one relation.
type joinData struct {
	table exp.AliasedExpression
	on    exp.Expression
	inner bool
}

func (j joinData) apply(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if j.inner {
		return ds.InnerJoin(j.table, goqu.On(j.on))
	}
	return ds.LeftJoin(j.table, goqu.On(j.on))
}

type session struct {
	backend *Backend
	resolve rql.AliasResolver
	plan    *joinplan.Plan[joinData]
}

func newSession(b *Backend, resolve rql.AliasResolver) *session {
	if resolve == nil {
		resolve = func(alias string) (string, error) { return alias, nil }
	}
	return &session{
		backend: b,
		resolve: resolve,
		plan:    joinplan.New[joinData](),
	}
}

// target is a resolved property together with the table alias owning its
// last segment and the innermost to-many path it sits under.
type target struct {
	resolved
	alias string
	scope string
}

func (t target) column() exp.IdentifierExpression {
	return goqu.T(t.alias).Col(t.col.Name)
}

func (s *session) target(property string) (target, error) {
	path, err := s.resolve(property)
	if err != nil {
		return target{}, err
	}
	r, err := s.backend.lookup(path)
	if err != nil {
		return target{}, err
	}
	alias, scope := s.traverse(r.relations)
	return target{resolved: r, alias: alias, scope: scope}, nil
}

// traverse plans a join for every to-one relation of steps and opens a scope
// for every to-many one. It returns the alias of the last table.
func (s *session) traverse(steps []relationStep) (alias, scope string) {
	alias = s.backend.table.Name
	for _, step := range steps {
		if step.rel.toMany() {
			s.plan.Open(step.path)
			scope = step.path
		} else {
			parent := alias
			_ = s.plan.Add(step.path, scope, func() (joinData, error) {
				return join(step, parent), nil
			})
		}
		alias = step.alias()
	}
	return alias, scope
}

func join(step relationStep, parent string) joinData {
	inner := step.rel.Kind == BelongsTo && !step.rel.Nullable
	if local, _ := step.rel.keys(step.owner, step.table); inner {
		if c, ok := step.owner.column(local); ok && c.Nullable {
			inner = false
		}
	}
	return joinData{
		table: goqu.T(step.table.Name).As(step.alias()),
		on:    correlation(step, parent),
		inner: inner,
	}
}

// correlation links the related table alias of step to its parent.
func correlation(step relationStep, parent string) exp.Expression {
	local, remote := step.rel.keys(step.owner, step.table)
	return exp.NewBooleanExpression(exp.EqOp, goqu.T(step.alias()).Col(remote), goqu.T(parent).Col(local))
}

// exists renders an EXISTS sub-query over the related rows of step, with the
// given joins and an optional condition.
func (s *session) exists(step relationStep, parent string, joins []joinplan.Join[joinData], cond exp.Expression) exp.Expression {
	sub := s.backend.dialect.From(goqu.T(step.table.Name).As(step.alias())).Select(goqu.L("1"))
	for _, j := range joins {
		sub = j.Data.apply(sub)
	}
	where := []exp.Expression{correlation(step, parent)}
	if cond != nil {
		where = append(where, cond)
	}
	return goqu.L("EXISTS ?", sub.Where(where...))
}

func (s *session) And(conditions ...exp.Expression) (exp.Expression, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("goqubuilder: and needs at least one condition")
	}
	return goqu.And(conditions...), nil
}

func (s *session) Or(conditions ...exp.Expression) (exp.Expression, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("goqubuilder: or needs at least one condition")
	}
	return goqu.Or(conditions...), nil
}

func (s *session) Not(condition exp.Expression) (exp.Expression, error) {
	return not(condition), nil
}

func not(cond exp.Expression) exp.Expression {
	return goqu.L("NOT (?)", cond)
}

func (s *session) Eq(property string, value any) (exp.Expression, error) {
	return s.equality(property, value, rql.OpEq)
}

func (s *session) Ne(property string, value any) (exp.Expression, error) {
	return s.equality(property, value, rql.OpNe)
}

func (s *session) equality(property string, value any, op rql.Operator) (exp.Expression, error) {
	t, err := s.target(property)
	if err != nil {
		return nil, err
	}
	if t.endpoint != nil {
		return s.relationNull(t, value, op)
	}
	v, err := s.scalar(t, value, op, true)
	if err != nil {
		return nil, err
	}
	c := t.column()
	switch {
	case v == nil && op == rql.OpEq:
		return c.IsNull(), nil
	case v == nil:
		return c.IsNotNull(), nil
	case op == rql.OpEq:
		return exp.NewBooleanExpression(exp.EqOp, c, v), nil
	default:
		return exp.NewBooleanExpression(exp.NeqOp, c, v), nil
	}
}

func (s *session) Gt(property string, value any) (exp.Expression, error) {
	return s.ordered(property, value, rql.OpGt)
}

func (s *session) Lt(property string, value any) (exp.Expression, error) {
	return s.ordered(property, value, rql.OpLt)
}

func (s *session) Gte(property string, value any) (exp.Expression, error) {
	return s.ordered(property, value, rql.OpGte)
}

func (s *session) Lte(property string, value any) (exp.Expression, error) {
	return s.ordered(property, value, rql.OpLte)
}

func (s *session) ordered(property string, value any, op rql.Operator) (exp.Expression, error) {
	t, err := s.field(property, op)
	if err != nil {
		return nil, err
	}
	v, err := s.scalar(t, value, op, false)
	if err != nil {
		return nil, err
	}
	c := t.column()
	switch op {
	case rql.OpGt:
		return c.Gt(v), nil
	case rql.OpLt:
		return c.Lt(v), nil
	case rql.OpGte:
		return c.Gte(v), nil
	default:
		return c.Lte(v), nil
	}
}

func (s *session) In(property string, values any) (exp.Expression, error) {
	return s.membership(property, values, rql.OpIn)
}

func (s *session) Out(property string, values any) (exp.Expression, error) {
	return s.membership(property, values, rql.OpOut)
}

// membership renders in/out. A null member becomes an explicit null test.
func (s *session) membership(property string, values any, op rql.Operator) (exp.Expression, error) {
	t, err := s.field(property, op)
	if err != nil {
		return nil, err
	}
	items, ok := values.([]any)
	if !ok {
		items = []any{values}
	}

	var (
		members []any
		null    bool
	)
	for _, item := range items {
		if item == nil {
			null = true
			continue
		}
		v, err := s.convert(t, item)
		if err != nil {
			return nil, err
		}
		members = append(members, v)
	}

	c := t.column()
	var conds []exp.Expression
	if len(members) > 0 {
		if op == rql.OpIn {
			conds = append(conds, c.In(members))
		} else {
			conds = append(conds, c.NotIn(members))
		}
	}
	if null {
		if op == rql.OpIn {
			conds = append(conds, c.IsNull())
		} else {
			conds = append(conds, c.IsNotNull())
		}
	}
	if op == rql.OpIn {
		return goqu.Or(conds...), nil
	}
	return goqu.And(conds...), nil
}

func (s *session) Like(property string, pattern any) (exp.Expression, error) {
	t, err := s.field(property, rql.OpLike)
	if err != nil {
		return nil, err
	}
	p, err := likeValue(pattern, rql.OpLike)
	if err != nil {
		return nil, err
	}
	return goqu.L("? LIKE ? ESCAPE ?", t.column(), p, rql.LikeEscape), nil
}

func (s *session) Ilike(property string, pattern any) (exp.Expression, error) {
	t, err := s.field(property, rql.OpIlike)
	if err != nil {
		return nil, err
	}
	p, err := likeValue(pattern, rql.OpIlike)
	if err != nil {
		return nil, err
	}
	if s.backend.name == "postgres" {
		return goqu.L("? ILIKE ? ESCAPE ?", t.column(), p, rql.LikeEscape), nil
	}
	return goqu.L("LOWER(?) LIKE LOWER(?) ESCAPE ?", t.column(), p, rql.LikeEscape), nil
}

func likeValue(value any, op rql.Operator) (string, error) {
	switch value.(type) {
	case nil:
		return "", rql.Errorf(rql.ErrInvalidValue, "operator '%s' does not accept null()", op)
	case []any:
		return "", rql.Errorf(rql.ErrInvalidValue, "operator '%s' does not accept a list of values", op)
	}
	return rql.LikePattern(rql.ValueString(value)), nil
}

// EnterAny starts the sub-query scope of a to-many relationship. Lookup
// errors are left to Any.
func (s *session) EnterAny(relationship string) error {
	path, err := s.resolve(relationship)
	if err != nil {
		return nil
	}
	r, err := s.backend.lookup(path)
	if err != nil || r.endpoint == nil || !r.endpoint.rel.toMany() {
		return nil
	}
	s.plan.Enter(r.endpoint.path)
	return nil
}

// Any renders an existence condition over the related rows of relationship.
func (s *session) Any(relationship string, condition exp.Expression) (exp.Expression, error) {
	path, err := s.resolve(relationship)
	if err != nil {
		return nil, err
	}
	r, err := s.backend.lookup(path)
	if err != nil {
		return nil, err
	}
	if r.endpoint == nil {
		return nil, rql.Errorf(rql.ErrRelationshipComparison, "'%s' is not a relationship", relationship)
	}
	parent, _ := s.traverse(r.relations)

	step := *r.endpoint
	if !step.rel.toMany() {
		return goqu.And(condition, s.present(step, parent)), nil
	}
	return s.exists(step, parent, s.plan.Take(step.path), condition), nil
}

// relationNull renders eq/ne against a relation endpoint.
func (s *session) relationNull(t target, value any, op rql.Operator) (exp.Expression, error) {
	if value != nil {
		return nil, &rql.Error{
			Kind:     rql.ErrRelationshipComparison,
			Field:    t.path,
			Operator: op.String(),
			Message:  fmt.Sprintf("`%s` can be applied to relationship only to test for null", op),
		}
	}
	step := *t.endpoint
	if step.rel.Kind == BelongsTo {
		local, _ := step.rel.keys(step.owner, step.table)
		if op == rql.OpEq {
			return goqu.T(t.alias).Col(local).IsNull(), nil
		}
		return goqu.T(t.alias).Col(local).IsNotNull(), nil
	}
	present := s.present(step, t.alias)
	if op == rql.OpNe {
		return present, nil
	}
	return not(present), nil
}

// present tests that a related row exists. A belongs-to relation is tested on
// its local key.
func (s *session) present(step relationStep, parent string) exp.Expression {
	if step.rel.Kind == BelongsTo {
		local, _ := step.rel.keys(step.owner, step.table)
		return goqu.T(parent).Col(local).IsNotNull()
	}
	return s.exists(step, parent, nil, nil)
}

// field resolves a property that must address a column.
func (s *session) field(property string, op rql.Operator) (target, error) {
	t, err := s.target(property)
	if err != nil {
		return t, err
	}
	if t.endpoint != nil {
		return t, &rql.Error{
			Kind:     rql.ErrRelationshipComparison,
			Field:    t.path,
			Operator: op.String(),
			Message:  fmt.Sprintf("`%s` cannot be applied to relationship '%s'", op, t.path),
		}
	}
	return t, nil
}

func (s *session) scalar(t target, value any, op rql.Operator, nullable bool) (any, error) {
	switch value.(type) {
	case nil:
		if nullable {
			return nil, nil
		}
		return nil, rql.Errorf(rql.ErrInvalidValue, "operator '%s' does not accept null()", op)
	case []any:
		return nil, rql.Errorf(rql.ErrInvalidValue, "operator '%s' does not accept a list of values", op)
	}
	return s.convert(t, value)
}

func (s *session) convert(t target, value any) (any, error) {
	v, err := rql.CoerceValue(t.info.Type, value)
	if err == nil {
		v, err = columnValue(t.col, v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w for field '%s'", err, t.path)
	}
	return v, nil
}

func (s *session) ApplyFilter(query *goqu.SelectDataset, filter rql.FilterExpression[exp.Expression]) (*goqu.SelectDataset, error) {
	return query.Where(filter.Condition), nil
}

func (s *session) ApplyOrderBy(query *goqu.SelectDataset, orderBy rql.OrderByExpression) (*goqu.SelectDataset, error) {
	for _, f := range orderBy.Fields {
		t, err := s.target(f.Path)
		if err != nil {
			return nil, err
		}
		switch {
		case t.endpoint != nil:
			return nil, &rql.Error{
				Kind:    rql.ErrOrderingNotAllowed,
				Field:   f.Path,
				Message: fmt.Sprintf("cannot order by relationship '%s'", t.path),
			}
		case t.scope != "":
			return nil, &rql.Error{
				Kind:    rql.ErrOrderingNotAllowed,
				Field:   f.Path,
				Message: fmt.Sprintf("cannot order by '%s' across to-many relationship '%s'", t.path, t.scope),
			}
		}
		if f.Direction == rql.Descending {
			query = query.OrderAppend(t.column().Desc())
		} else {
			query = query.OrderAppend(t.column().Asc())
		}
	}
	return query, nil
}

func (s *session) ApplyJoins(query *goqu.SelectDataset) (*goqu.SelectDataset, error) {
	if scopes := s.plan.OpenScopes(); len(scopes) > 0 {
		return nil, &rql.Error{
			Kind:    rql.ErrRelationshipComparison,
			Field:   scopes[0],
			Message: fmt.Sprintf("relationship '%s' can only be filtered with any()", scopes[0]),
		}
	}
	for _, j := range s.plan.Joins() {
		query = j.Data.apply(query)
	}
	return query, nil
}
