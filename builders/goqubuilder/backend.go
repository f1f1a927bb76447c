// Package goqubuilder is an RQL backend that builds goqu select datasets over
// a declarative table schema.
//
// The schema names the queryable columns of every table with their RQL field
// types, and the relations between tables:
//
//	schema, err := goqubuilder.LoadSchema("schema.yaml")
//	users, err := goqubuilder.New("postgres", schema, "users")
//	ds, err := rql.NewBuilder[*goqu.SelectDataset, exp.Expression](users).
//		BuildQuery(ctx, "eq(account.name,My Account)")
//	sql, args, err := ds.ToSQL()
//
// Relation paths follow the same rules as the GORM backend: to-one relations
// are joined under deterministic aliases, to-many relations are reachable
// through any() and rendered as EXISTS sub-queries.
package goqubuilder

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlserver"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/nlstn/go-rql"
	"github.com/nlstn/go-rql/internal/joinplan"
)

// Dialects lists the supported SQL dialects.
var Dialects = []string{"postgres", "mysql", "sqlite3", "sqlserver"}

// Backend builds goqu select datasets for one table of a schema.
type Backend struct {
	dialect goqu.DialectWrapper
	name    string
	schema  *Schema
	table   *Table
}

var _ rql.Backend[*goqu.SelectDataset, exp.Expression] = (*Backend)(nil)

// New returns a backend for the named table of schema.
func New(dialect string, schema *Schema, table string) (*Backend, error) {
	if !supportedDialect(dialect) {
		return nil, fmt.Errorf("goqubuilder: unsupported dialect '%s' (supported: %s)", dialect, strings.Join(Dialects, ", "))
	}
	if schema == nil {
		return nil, rql.Errorf(rql.ErrRuleDefinition, "goqubuilder: schema is nil")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	t, ok := schema.Table(table)
	if !ok {
		return nil, rql.Errorf(rql.ErrRuleDefinition, "goqubuilder: table '%s' not found in schema", table)
	}
	return &Backend{dialect: goqu.Dialect(dialect), name: dialect, schema: schema, table: t}, nil
}

// Factory returns a BackendFactory for rule sets. Models are table or model
// names, or *Table values of schema.
func Factory(dialect string, schema *Schema) rql.BackendFactory[*goqu.SelectDataset, exp.Expression] {
	return func(model any) (rql.Backend[*goqu.SelectDataset, exp.Expression], error) {
		var name string
		switch m := model.(type) {
		case string:
			name = m
		case *Table:
			name = m.Name
		default:
			return nil, rql.Errorf(rql.ErrRuleDefinition, "goqubuilder: model %T is neither a table name nor a *Table", model)
		}
		b, err := New(dialect, schema, name)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func supportedDialect(name string) bool {
	for _, d := range Dialects {
		if d == name {
			return true
		}
	}
	return false
}

// Model returns the model name of the table.
func (b *Backend) Model() string {
	return b.table.modelName()
}

// Table returns the table the backend queries.
func (b *Backend) Table() *Table {
	return b.table
}

// Dialect returns the SQL dialect name.
func (b *Backend) Dialect() string {
	return b.name
}

// InitialQuery selects every column of the table.
func (b *Backend) InitialQuery() *goqu.SelectDataset {
	return b.dialect.From(goqu.T(b.table.Name)).Select(goqu.T(b.table.Name).All())
}

// Field returns the type of the column addressed by path.
func (b *Backend) Field(path string) (rql.FieldInfo, error) {
	r, err := b.lookup(path)
	if err != nil {
		return rql.FieldInfo{}, err
	}
	if r.endpoint != nil {
		return rql.FieldInfo{}, rql.Errorf(rql.ErrUnknownField, "'%s' is a relationship of model '%s'", path, b.Model())
	}
	return r.info, nil
}

// Relation returns the relation addressed by path.
func (b *Backend) Relation(path string) (rql.RelationInfo, error) {
	r, err := b.lookup(path)
	if err != nil {
		return rql.RelationInfo{}, err
	}
	if r.endpoint == nil {
		return rql.RelationInfo{}, rql.Errorf(rql.ErrUnknownField, "'%s' is not a relationship of model '%s'", path, b.Model())
	}
	return rql.RelationInfo{Name: r.path, Model: r.endpoint.table, ToMany: r.endpoint.rel.toMany()}, nil
}

// NewSession starts a build.
func (b *Backend) NewSession(resolve rql.AliasResolver) rql.Session[*goqu.SelectDataset, exp.Expression] {
	return newSession(b, resolve)
}

// relationStep is one relation of a property path.
type relationStep struct {
	path  string
	rel   *Relation
	owner *Table
	table *Table
}

// resolved is a property path split into its relations and final column.
type resolved struct {
	path      string
	relations []relationStep
	col       *Column
	info      rql.FieldInfo

	// endpoint is set when the path addresses a relation itself.
	endpoint *relationStep
}

func (b *Backend) lookup(path string) (resolved, error) {
	if path == "" {
		return resolved{}, rql.Errorf(rql.ErrUnknownField, "empty field name")
	}
	segments := strings.Split(path, ".")
	table := b.table
	r := resolved{path: path}

	for i, segment := range segments {
		last := i == len(segments)-1
		if last {
			if c, ok := table.column(segment); ok {
				r.col = c
				r.info = rql.FieldInfo{Name: path, Type: c.fieldType(), TypeName: c.typeName()}
				return r, nil
			}
		}
		rel, ok := table.relation(segment)
		if !ok {
			return resolved{}, &rql.Error{
				Kind:    rql.ErrUnknownField,
				Field:   path,
				Message: fmt.Sprintf("field '%s' not found in model '%s'", path, b.Model()),
			}
		}
		target, _ := b.schema.Table(rel.Table)
		step := relationStep{
			path:  strings.Join(segments[:i+1], "."),
			rel:   rel,
			owner: table,
			table: target,
		}
		if last {
			r.endpoint = &step
			return r, nil
		}
		r.relations = append(r.relations, step)
		table = target
	}
	return r, nil
}

func (c *Column) typeName() string {
	if len(c.Enum) > 0 {
		return rql.TypeEnum.String()
	}
	return c.Type
}

// alias returns the table alias of the relation path of a step.
func (s relationStep) alias() string {
	return joinplan.Alias(s.path)
}
