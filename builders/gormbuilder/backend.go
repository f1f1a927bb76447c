// Package gormbuilder compiles RQL into GORM queries.
//
// A Backend is bound to one GORM model and introspects it through
// gorm.io/gorm/schema. Conditions are clause.Expression values and queries
// are *gorm.DB chains, so compiled queries compose with the rest of a GORM
// call:
//
//	rules, err := rules.New(userRules, gormbuilder.Factory(db))
//	q, err := rules.BuildQuery(ctx, "eq(account.name,Acme)&order_by(-age)")
//	err = q.WithContext(ctx).Limit(20).Find(&users).Error
//
// Properties are addressed by column name or Go field name; relationships by
// their snake-cased or Go field name. To-one relationships become joins with
// the alias rql_<path>; to-many relationships can only be filtered through
// any(), which renders an EXISTS sub-query.
package gormbuilder

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/nlstn/go-rql"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Backend builds GORM queries for one model. It is immutable and safe for
// concurrent use.
type Backend struct {
	db      *gorm.DB
	schema  *schema.Schema
	dialect string
}

var _ rql.Backend[*gorm.DB, clause.Expression] = (*Backend)(nil)

// New parses model with db's naming strategy and returns a backend for it.
func New(db *gorm.DB, model any) (*Backend, error) {
	if db == nil {
		return nil, errors.New("gormbuilder: db is nil")
	}
	if model == nil {
		return nil, rql.Errorf(rql.ErrRuleDefinition, "gormbuilder: model is nil")
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("gormbuilder: parse model %T: %w", model, err)
	}
	return &Backend{
		db:      db,
		schema:  stmt.Schema,
		dialect: db.Dialector.Name(),
	}, nil
}

// Factory returns a factory binding models to db.
func Factory(db *gorm.DB) rql.BackendFactory[*gorm.DB, clause.Expression] {
	return func(model any) (rql.Backend[*gorm.DB, clause.Expression], error) {
		b, err := New(db, model)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Model returns the name of the model's Go type.
func (b *Backend) Model() string {
	return b.schema.Name
}

// Table returns the model's table name.
func (b *Backend) Table() string {
	return b.schema.Table
}

// Schema returns the parsed model schema.
func (b *Backend) Schema() *schema.Schema {
	return b.schema
}

// InitialQuery returns a fresh query on the model.
func (b *Backend) InitialQuery() *gorm.DB {
	return b.db.Session(&gorm.Session{NewDB: true}).Model(reflect.New(b.schema.ModelType).Interface())
}

// Field returns the type of the field at path.
func (b *Backend) Field(path string) (rql.FieldInfo, error) {
	r, err := b.lookup(path)
	if err != nil {
		return rql.FieldInfo{}, err
	}
	if r.field == nil {
		return rql.FieldInfo{}, rql.Errorf(rql.ErrUnknownField, "field '%s' not found in model '%s'", path, b.schema.Name)
	}
	info := r.info
	info.Name = r.path
	return info, nil
}

// Relation returns the relationship at path.
func (b *Backend) Relation(path string) (rql.RelationInfo, error) {
	r, err := b.lookup(path)
	if err != nil || r.endpoint == nil {
		return rql.RelationInfo{}, rql.Errorf(rql.ErrUnknownField, "relationship '%s' not found in model '%s'", path, b.schema.Name)
	}
	rel := r.endpoint.rel
	return rql.RelationInfo{
		Name:   r.path,
		Model:  reflect.New(rel.FieldSchema.ModelType).Interface(),
		ToMany: toMany(rel),
	}, nil
}

// NewSession starts a build.
func (b *Backend) NewSession(resolve rql.AliasResolver) rql.Session[*gorm.DB, clause.Expression] {
	return newSession(b, resolve)
}

// relationStep is one relationship traversed by a path.
type relationStep struct {
	path string
	rel  *schema.Relationship
}

// resolved is a path walked through the model graph. It ends at a field, or
// at a relationship endpoint when field is nil.
type resolved struct {
	path      string
	relations []relationStep
	field     *schema.Field
	info      rql.FieldInfo
	endpoint  *relationStep
}

// lookup walks path from the model. Intermediate segments name
// relationships; the last names a field or a relationship. Every segment of
// the canonical path is a column or snake-cased relationship name.
func (b *Backend) lookup(path string) (resolved, error) {
	var r resolved
	current := b.schema
	segments := strings.Split(path, ".")
	prefix := ""
	for i, segment := range segments {
		last := i == len(segments)-1
		if last {
			if f := current.LookUpField(segment); f != nil && f.DBName != "" {
				info, err := classify(f)
				if err != nil {
					return r, err
				}
				r.field, r.info = f, info
				r.path = joinPath(prefix, f.DBName)
				return r, nil
			}
		}

		rel := b.relation(current, segment)
		if rel == nil {
			return r, &rql.Error{
				Kind:    rql.ErrUnknownField,
				Field:   path,
				Message: fmt.Sprintf("field '%s' not found in model '%s'", path, b.schema.Name),
			}
		}
		step := relationStep{path: joinPath(prefix, b.relationName(rel)), rel: rel}
		prefix = step.path
		if last {
			r.endpoint = &step
			r.path = step.path
			return r, nil
		}
		r.relations = append(r.relations, step)
		current = rel.FieldSchema
	}
	return r, nil
}

func (b *Backend) relation(s *schema.Schema, name string) *schema.Relationship {
	if rel, ok := s.Relationships.Relations[name]; ok {
		return rel
	}
	for _, rel := range s.Relationships.Relations {
		if b.relationName(rel) == name {
			return rel
		}
	}
	return nil
}

func (b *Backend) relationName(rel *schema.Relationship) string {
	return b.db.NamingStrategy.ColumnName("", rel.Name)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func toMany(rel *schema.Relationship) bool {
	return rel.Type == schema.HasMany || rel.Type == schema.Many2Many
}

// classify maps a schema field to its RQL field type.
func classify(f *schema.Field) (rql.FieldInfo, error) {
	t := f.IndirectFieldType
	if t == nil {
		t = f.FieldType
	}
	info := rql.FieldInfo{Name: f.DBName, TypeName: t.Name()}
	if info.TypeName == "" {
		info.TypeName = t.String()
	}

	switch t {
	case timeType:
		info.Type = rql.TypeDateTime
		if strings.EqualFold(string(f.DataType), "date") {
			info.Type = rql.TypeDate
		}
		return info, nil
	case uuidType:
		info.Type = rql.TypeUUID
		return info, nil
	case decimalType:
		info.Type = rql.TypeFloat
		return info, nil
	}

	_, isEnum, err := ResolveEnumMembers(t)
	if err != nil {
		return info, &rql.Error{
			Kind:    rql.ErrUnsupportedType,
			Field:   f.DBName,
			Message: fmt.Sprintf("field '%s': %v", f.DBName, err),
		}
	}
	if isEnum {
		info.Type = rql.TypeEnum
		return info, nil
	}

	switch f.GORMDataType {
	case schema.Bool:
		info.Type = rql.TypeBoolean
	case schema.Int, schema.Uint:
		info.Type = rql.TypeInteger
	case schema.Float:
		info.Type = rql.TypeFloat
	case schema.String:
		info.Type = rql.TypeString
	case schema.Time:
		info.Type = rql.TypeDateTime
	default:
		info.Type = rql.TypeUnknown
	}
	return info, nil
}
