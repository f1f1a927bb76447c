package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nlstn/go-rql"
)

// schemaModel is a model described by a static field table.
type schemaModel struct {
	name      string
	fields    map[string]rql.FieldInfo
	relations map[string]*schemaModel
}

func field(t rql.FieldType, typeName string) rql.FieldInfo {
	return rql.FieldInfo{Type: t, TypeName: typeName}
}

// newSchema returns the User/Account/Tenant model graph used by the tests.
func newSchema() (user, account, tenant *schemaModel) {
	tenant = &schemaModel{
		name: "Tenant",
		fields: map[string]rql.FieldInfo{
			"name": field(rql.TypeString, "string"),
		},
	}
	account = &schemaModel{
		name: "Account",
		fields: map[string]rql.FieldInfo{
			"name":        field(rql.TypeString, "string"),
			"description": field(rql.TypeString, "string"),
			"status":      field(rql.TypeEnum, "AccountStatus"),
			"balance":     field(rql.TypeFloat, "float64"),
			"created_at":  field(rql.TypeDateTime, "Time"),
			"settings":    field(rql.TypeUnknown, "Settings"),
		},
		relations: map[string]*schemaModel{"tenant": tenant},
	}
	user = &schemaModel{
		name: "User",
		fields: map[string]rql.FieldInfo{
			"name":       field(rql.TypeString, "string"),
			"age":        field(rql.TypeInteger, "int"),
			"email":      field(rql.TypeString, "string"),
			"role":       field(rql.TypeEnum, "UserRole"),
			"is_active":  field(rql.TypeBoolean, "bool"),
			"birth_date": field(rql.TypeDate, "Time"),
		},
		relations: map[string]*schemaModel{"account": account},
	}
	account.relations["users"] = user
	return user, account, tenant
}

func schemaFactory(model any) (rql.Backend[[]string, string], error) {
	m, ok := model.(*schemaModel)
	if !ok {
		return nil, fmt.Errorf("unsupported model %T", model)
	}
	return &schemaBackend{model: m}, nil
}

// schemaBackend renders conditions as text and queries as lists of clauses.
type schemaBackend struct {
	model *schemaModel
}

func (b *schemaBackend) Model() string { return b.model.name }

func (b *schemaBackend) InitialQuery() []string { return []string{"FROM " + b.model.name} }

func (b *schemaBackend) Field(name string) (rql.FieldInfo, error) {
	m := b.model
	parts := strings.Split(name, ".")
	for _, rel := range parts[:len(parts)-1] {
		next, ok := m.relations[rel]
		if !ok {
			return rql.FieldInfo{}, rql.Errorf(rql.ErrUnknownField, "field '%s' not found in model '%s'", name, b.model.name)
		}
		m = next
	}
	info, ok := m.fields[parts[len(parts)-1]]
	if !ok {
		return rql.FieldInfo{}, rql.Errorf(rql.ErrUnknownField, "field '%s' not found in model '%s'", name, b.model.name)
	}
	info.Name = name
	return info, nil
}

func (b *schemaBackend) Relation(name string) (rql.RelationInfo, error) {
	target, ok := b.model.relations[name]
	if !ok {
		return rql.RelationInfo{}, rql.Errorf(rql.ErrUnknownField, "relationship '%s' not found in model '%s'", name, b.model.name)
	}
	return rql.RelationInfo{Name: name, Model: target, ToMany: name == "users"}, nil
}

func (b *schemaBackend) NewSession(resolve rql.AliasResolver) rql.Session[[]string, string] {
	return &schemaSession{backend: b, resolve: resolve, joins: map[string]bool{}}
}

type schemaSession struct {
	backend *schemaBackend
	resolve rql.AliasResolver
	joins   map[string]bool
}

func (s *schemaSession) path(property string) (string, error) {
	path, err := s.resolve(property)
	if err != nil {
		return "", err
	}
	parts := strings.Split(path, ".")
	for i := 1; i < len(parts); i++ {
		s.joins[strings.Join(parts[:i], ".")] = true
	}
	return path, nil
}

func (s *schemaSession) cmp(op string, property string, value any) (string, error) {
	path, err := s.path(property)
	if err != nil {
		return "", err
	}
	if value == nil {
		if op == "=" {
			return path + " IS NULL", nil
		}
		return path + " IS NOT NULL", nil
	}
	if _, err := s.backend.Field(path); err != nil {
		return "", rql.Errorf(rql.ErrRelationshipComparison, "`%s` can be applied to relationship only to test for null", op)
	}
	return fmt.Sprintf("%s %s %v", path, op, value), nil
}

func (s *schemaSession) And(c ...string) (string, error) { return "(" + strings.Join(c, " AND ") + ")", nil }
func (s *schemaSession) Or(c ...string) (string, error) { return "(" + strings.Join(c, " OR ") + ")", nil }
func (s *schemaSession) Not(c string) (string, error) { return "NOT " + c, nil }
func (s *schemaSession) Eq(p string, v any) (string, error) { return s.cmp("=", p, v) }
func (s *schemaSession) Ne(p string, v any) (string, error) { return s.cmp("<>", p, v) }
func (s *schemaSession) Gt(p string, v any) (string, error) { return s.cmp(">", p, v) }
func (s *schemaSession) Lt(p string, v any) (string, error) { return s.cmp("<", p, v) }
func (s *schemaSession) Gte(p string, v any) (string, error) { return s.cmp(">=", p, v) }
func (s *schemaSession) Lte(p string, v any) (string, error) { return s.cmp("<=", p, v) }
func (s *schemaSession) In(p string, v any) (string, error) { return s.cmp("IN", p, v) }
func (s *schemaSession) Out(p string, v any) (string, error) { return s.cmp("NOT IN", p, v) }
func (s *schemaSession) Like(p string, v any) (string, error) { return s.cmp("LIKE", p, v) }
func (s *schemaSession) Ilike(p string, v any) (string, error) { return s.cmp("ILIKE", p, v) }

func (s *schemaSession) Any(relationship string, c string) (string, error) {
	path, err := s.resolve(relationship)
	if err != nil {
		return "", err
	}
	delete(s.joins, path)
	return "EXISTS(" + path + ": " + c + ")", nil
}

func (s *schemaSession) ApplyFilter(q []string, f rql.FilterExpression[string]) ([]string, error) {
	return append(q, "WHERE "+f.Condition), nil
}

func (s *schemaSession) ApplyOrderBy(q []string, o rql.OrderByExpression) ([]string, error) {
	for _, f := range o.Fields {
		path, err := s.path(f.Path)
		if err != nil {
			return nil, err
		}
		q = append(q, "ORDER BY "+f.Direction.String()+path)
	}
	return q, nil
}

func (s *schemaSession) ApplyJoins(q []string) ([]string, error) {
	joins := make([]string, 0, len(s.joins))
	for j := range s.joins {
		joins = append(joins, "JOIN "+j)
	}
	sort.Strings(joins)
	return append(q, joins...), nil
}
