package gormbuilder

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/nlstn/go-rql"
	"github.com/nlstn/go-rql/internal/joinplan"
)

// joinData is a planned join of a to-one relationship.
type joinData struct {
	table clause.Table
	on    clause.Expression
	inner bool
}

func (j joinData) sql() string {
	if j.inner {
		return "INNER JOIN ? ON ?"
	}
	return "LEFT JOIN ? ON ?"
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

func (t target) column() clause.Column {
	return clause.Column{Table: t.alias, Name: t.field.DBName}
}

// target resolves property and plans the joins its path needs.
func (s *session) target(property string) (target, error) {
	path, err := s.resolve(property)
	if err != nil {
		return target{}, err
	}
	r, err := s.backend.lookup(path)
	if err != nil {
		return target{}, err
	}
	alias, scope, err := s.traverse(r.relations)
	if err != nil {
		return target{}, err
	}
	return target{resolved: r, alias: alias, scope: scope}, nil
}

// traverse plans a join for every to-one relationship of steps and opens a
// scope for every to-many one. It returns the alias of the last table.
func (s *session) traverse(steps []relationStep) (alias, scope string, err error) {
	alias = clause.CurrentTable
	for _, step := range steps {
		if toMany(step.rel) {
			s.plan.Open(step.path)
			scope = step.path
		} else {
			parent := alias
			err = s.plan.Add(step.path, scope, func() (joinData, error) {
				return s.join(step, parent), nil
			})
			if err != nil {
				return "", "", err
			}
		}
		alias = joinplan.Alias(step.path)
	}
	return alias, scope, nil
}

func (s *session) join(step relationStep, parent string) joinData {
	alias := joinplan.Alias(step.path)
	inner := step.rel.Type == schema.BelongsTo
	for _, ref := range step.rel.References {
		if ref.ForeignKey != nil && !ref.ForeignKey.NotNull && !ref.ForeignKey.PrimaryKey {
			inner = false
		}
	}
	return joinData{
		table: clause.Table{Name: step.rel.FieldSchema.Table, Alias: alias},
		on:    and(correlation(step.rel, parent, alias)...),
		inner: inner,
	}
}

// correlation returns the conditions linking the related table alias to
// its parent. Many-to-many relationships correlate through their link table.
func correlation(rel *schema.Relationship, parent, alias string) []clause.Expression {
	var conds []clause.Expression
	if rel.JoinTable != nil {
		link := linkAlias(alias)
		for _, ref := range rel.References {
			if ref.OwnPrimaryKey {
				conds = append(conds, clause.Eq{Column: col(link, ref.ForeignKey), Value: col(parent, ref.PrimaryKey)})
			}
		}
		return conds
	}
	for _, ref := range rel.References {
		switch {
		case ref.PrimaryKey == nil:
			conds = append(conds, clause.Eq{Column: col(alias, ref.ForeignKey), Value: ref.PrimaryValue})
		case ref.OwnPrimaryKey:
			conds = append(conds, clause.Eq{Column: col(alias, ref.ForeignKey), Value: col(parent, ref.PrimaryKey)})
		default:
			conds = append(conds, clause.Eq{Column: col(alias, ref.PrimaryKey), Value: col(parent, ref.ForeignKey)})
		}
	}
	return conds
}

// linkJoin joins the link table of a many-to-many relationship to the
// related table alias.
func linkJoin(rel *schema.Relationship, alias string) joinData {
	link := linkAlias(alias)
	var on []clause.Expression
	for _, ref := range rel.References {
		if !ref.OwnPrimaryKey {
			on = append(on, clause.Eq{Column: col(link, ref.ForeignKey), Value: col(alias, ref.PrimaryKey)})
		}
	}
	return joinData{
		table: clause.Table{Name: rel.JoinTable.Table, Alias: link},
		on:    and(on...),
		inner: true,
	}
}

func linkAlias(alias string) string {
	return "rqllink_" + strings.TrimPrefix(alias, joinplan.AliasPrefix)
}

func col(table string, f *schema.Field) clause.Column {
	return clause.Column{Table: table, Name: f.DBName}
}

// exists renders an EXISTS sub-query over the related rows of step, with the
// given joins and an optional condition.
func exists(step relationStep, parent string, joins []joinplan.Join[joinData], cond clause.Expression) clause.Expression {
	alias := joinplan.Alias(step.path)
	rel := step.rel

	var sql strings.Builder
	sql.WriteString("EXISTS (SELECT 1 FROM ?")
	vars := []any{clause.Table{Name: rel.FieldSchema.Table, Alias: alias}}
	if rel.JoinTable != nil {
		link := linkJoin(rel, alias)
		sql.WriteString(" " + link.sql())
		vars = append(vars, link.table, link.on)
	}
	for _, j := range joins {
		sql.WriteString(" " + j.Data.sql())
		vars = append(vars, j.Data.table, j.Data.on)
	}

	where := correlation(rel, parent, alias)
	if cond != nil {
		where = append(where, cond)
	}
	sql.WriteString(" WHERE ?)")
	vars = append(vars, and(where...))
	return clause.Expr{SQL: sql.String(), Vars: vars}
}

func and(conds ...clause.Expression) clause.Expression {
	if len(conds) == 1 {
		return conds[0]
	}
	return clause.AndConditions{Exprs: conds}
}

func or(conds ...clause.Expression) clause.Expression {
	if len(conds) == 1 {
		return conds[0]
	}
	return clause.OrConditions{Exprs: conds}
}

func not(cond clause.Expression) clause.Expression {
	return clause.Expr{SQL: "NOT (?)", Vars: []any{cond}}
}

func (s *session) And(conditions ...clause.Expression) (clause.Expression, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("gormbuilder: and needs at least one condition")
	}
	return and(conditions...), nil
}

func (s *session) Or(conditions ...clause.Expression) (clause.Expression, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("gormbuilder: or needs at least one condition")
	}
	return or(conditions...), nil
}

func (s *session) Not(condition clause.Expression) (clause.Expression, error) {
	return not(condition), nil
}

func (s *session) Eq(property string, value any) (clause.Expression, error) {
	return s.equality(property, value, rql.OpEq)
}

func (s *session) Ne(property string, value any) (clause.Expression, error) {
	return s.equality(property, value, rql.OpNe)
}

func (s *session) equality(property string, value any, op rql.Operator) (clause.Expression, error) {
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
	if op == rql.OpEq {
		return clause.Eq{Column: t.column(), Value: v}, nil
	}
	return clause.Neq{Column: t.column(), Value: v}, nil
}

func (s *session) Gt(property string, value any) (clause.Expression, error) {
	return s.ordered(property, value, rql.OpGt)
}

func (s *session) Lt(property string, value any) (clause.Expression, error) {
	return s.ordered(property, value, rql.OpLt)
}

func (s *session) Gte(property string, value any) (clause.Expression, error) {
	return s.ordered(property, value, rql.OpGte)
}

func (s *session) Lte(property string, value any) (clause.Expression, error) {
	return s.ordered(property, value, rql.OpLte)
}

func (s *session) ordered(property string, value any, op rql.Operator) (clause.Expression, error) {
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
		return clause.Gt{Column: c, Value: v}, nil
	case rql.OpLt:
		return clause.Lt{Column: c, Value: v}, nil
	case rql.OpGte:
		return clause.Gte{Column: c, Value: v}, nil
	default:
		return clause.Lte{Column: c, Value: v}, nil
	}
}

func (s *session) In(property string, values any) (clause.Expression, error) {
	return s.membership(property, values, rql.OpIn)
}

func (s *session) Out(property string, values any) (clause.Expression, error) {
	return s.membership(property, values, rql.OpOut)
}

// notIn renders the negation of an IN condition.
type notIn clause.IN

func (n notIn) Build(builder clause.Builder) {
	clause.IN(n).NegationBuild(builder)
}

// membership renders in/out. A null member becomes an explicit null test,
// so in and out stay complements over nullable columns.
func (s *session) membership(property string, values any, op rql.Operator) (clause.Expression, error) {
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
	var conds []clause.Expression
	if len(members) > 0 {
		if op == rql.OpIn {
			conds = append(conds, clause.IN{Column: c, Values: members})
		} else {
			conds = append(conds, notIn{Column: c, Values: members})
		}
	}
	if null {
		if op == rql.OpIn {
			conds = append(conds, clause.Eq{Column: c, Value: nil})
		} else {
			conds = append(conds, clause.Neq{Column: c, Value: nil})
		}
	}
	if op == rql.OpIn {
		return or(conds...), nil
	}
	return and(conds...), nil
}

func (s *session) Like(property string, pattern any) (clause.Expression, error) {
	t, err := s.field(property, rql.OpLike)
	if err != nil {
		return nil, err
	}
	p, err := likeValue(pattern, rql.OpLike)
	if err != nil {
		return nil, err
	}
	return clause.Expr{SQL: "? LIKE ? ESCAPE ?", Vars: []any{t.column(), p, rql.LikeEscape}}, nil
}

func (s *session) Ilike(property string, pattern any) (clause.Expression, error) {
	t, err := s.field(property, rql.OpIlike)
	if err != nil {
		return nil, err
	}
	p, err := likeValue(pattern, rql.OpIlike)
	if err != nil {
		return nil, err
	}
	if s.backend.dialect == "postgres" {
		return clause.Expr{SQL: "? ILIKE ? ESCAPE ?", Vars: []any{t.column(), p, rql.LikeEscape}}, nil
	}
	return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?) ESCAPE ?", Vars: []any{t.column(), p, rql.LikeEscape}}, nil
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
	if err != nil || r.endpoint == nil || !toMany(r.endpoint.rel) {
		return nil
	}
	s.plan.Enter(r.endpoint.path)
	return nil
}

// Any renders an existence condition over the related rows of relationship.
func (s *session) Any(relationship string, condition clause.Expression) (clause.Expression, error) {
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
	parent, _, err := s.traverse(r.relations)
	if err != nil {
		return nil, err
	}

	step := *r.endpoint
	if !toMany(step.rel) {
		return and(condition, s.present(step, parent)), nil
	}
	return exists(step, parent, s.plan.Take(step.path), condition), nil
}

// relationNull renders eq/ne against a relationship endpoint, which only
// tests whether related rows exist.
func (s *session) relationNull(t target, value any, op rql.Operator) (clause.Expression, error) {
	if value != nil {
		return nil, &rql.Error{
			Kind:     rql.ErrRelationshipComparison,
			Field:    t.path,
			Operator: op.String(),
			Message:  fmt.Sprintf("`%s` can be applied to relationship only to test for null", op),
		}
	}
	present := s.present(*t.endpoint, t.alias)
	if op == rql.OpNe {
		return present, nil
	}
	if t.endpoint.rel.Type == schema.BelongsTo {
		return s.absent(*t.endpoint, t.alias), nil
	}
	return not(present), nil
}

// present tests that a related row exists. A belongs-to relationship is
// tested on its local foreign key.
func (s *session) present(step relationStep, parent string) clause.Expression {
	if step.rel.Type == schema.BelongsTo {
		var conds []clause.Expression
		for _, ref := range step.rel.References {
			conds = append(conds, clause.Neq{Column: col(parent, ref.ForeignKey), Value: nil})
		}
		return or(conds...)
	}
	return exists(step, parent, nil, nil)
}

func (s *session) absent(step relationStep, parent string) clause.Expression {
	var conds []clause.Expression
	for _, ref := range step.rel.References {
		conds = append(conds, clause.Eq{Column: col(parent, ref.ForeignKey), Value: nil})
	}
	return and(conds...)
}

// field resolves a property that must address a field.
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

// scalar converts a single comparison value. Lists are rejected and null is
// only accepted by eq and ne.
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

// convert coerces a literal to the value bound for the field of t.
func (s *session) convert(t target, value any) (any, error) {
	v, err := rql.CoerceValue(t.info.Type, value)
	if err != nil {
		return nil, fieldValueError(t, err)
	}
	return fieldValue(t.field, t.info, v)
}

func (s *session) ApplyFilter(query *gorm.DB, filter rql.FilterExpression[clause.Expression]) (*gorm.DB, error) {
	return query.Where(filter.Condition), nil
}

func (s *session) ApplyOrderBy(query *gorm.DB, orderBy rql.OrderByExpression) (*gorm.DB, error) {
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
		query = query.Order(clause.OrderByColumn{Column: t.column(), Desc: f.Direction == rql.Descending})
	}
	return query, nil
}

func (s *session) ApplyJoins(query *gorm.DB) (*gorm.DB, error) {
	if scopes := s.plan.OpenScopes(); len(scopes) > 0 {
		return nil, &rql.Error{
			Kind:    rql.ErrRelationshipComparison,
			Field:   scopes[0],
			Message: fmt.Sprintf("relationship '%s' can only be filtered with any()", scopes[0]),
		}
	}
	for _, j := range s.plan.Joins() {
		query = query.Joins(j.Data.sql(), j.Data.table, j.Data.on)
	}
	return query, nil
}
