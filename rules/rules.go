// Package rules guards RQL builders with declarative per-model rule sets.
//
// A rule set exposes a public vocabulary of aliases for the fields of a model,
// restricts the operators and ordering allowed per field, and follows
// relationships to the rule sets of related models:
//
//	accountRules := &rules.Set{
//		Model: Account{},
//		Fields: []rules.FieldRule{
//			rules.Field("name"),
//			rules.Field("created_at").As("events.created.at"),
//		},
//	}
//	userRules := &rules.Set{
//		Model: User{},
//		Fields: []rules.FieldRule{
//			rules.Field("name"),
//			rules.Field("role").Allow(rql.OpIn, rql.OpOut),
//		},
//		Relationships: []rules.RelationshipRule{
//			rules.Relationship("account", accountRules),
//		},
//	}
//
//	users, err := rules.New(userRules, gormbuilder.Factory(db))
//	query, err := users.BuildQuery(ctx, "eq(account.name,My Account)&order_by(name)")
//
// Rule sets are validated once, when New is called. Every problem found is
// reported together in a *rql.ValidationError.
package rules

import (
	"github.com/nlstn/go-rql"
)

// FieldRule exposes one model field.
type FieldRule struct {
	// Name is the model field name.
	Name string

	// Alias is the public name of the field. Empty means Name.
	Alias string

	// Operators are the allowed operators. Nil infers the default operators
	// of the field's type.
	Operators []rql.Operator

	// DisableOrdering forbids the field in order_by.
	DisableOrdering bool
}

// Field returns a rule for the named field with default operators.
func Field(name string) FieldRule {
	return FieldRule{Name: name}
}

// As sets the public alias of the field.
func (r FieldRule) As(alias string) FieldRule {
	r.Alias = alias
	return r
}

// Allow restricts the field to ops.
func (r FieldRule) Allow(ops ...rql.Operator) FieldRule {
	r.Operators = append([]rql.Operator{}, ops...)
	return r
}

// Unordered forbids ordering by the field.
func (r FieldRule) Unordered() FieldRule {
	r.DisableOrdering = true
	return r
}

func (r FieldRule) publicName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// RelationshipRule exposes a relationship of the model and the fields of the
// related model through its rule set.
type RelationshipRule struct {
	// Name is the model relationship name.
	Name string

	// Alias prefixes the aliases of the related rule set. Empty means Name.
	Alias string

	// Rules is the rule set of the related model.
	Rules *Set
}

// Relationship returns a rule for the named relationship.
func Relationship(name string, rules *Set) RelationshipRule {
	return RelationshipRule{Name: name, Rules: rules}
}

// As sets the public alias of the relationship.
func (r RelationshipRule) As(alias string) RelationshipRule {
	r.Alias = alias
	return r
}

func (r RelationshipRule) publicName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// Set is a declarative rule set.
//
// A set may include other sets. Declarations merge level by level: own
// declarations first, then those of every direct include in order, then the
// includes of those. The nearest declaration of a name wins; within one level
// the earlier include wins. A set without a Model can only be included.
type Set struct {
	// Name identifies the set in messages. Optional.
	Name string

	// Model is the model value passed to the backend factory.
	Model any

	Fields        []FieldRule
	Relationships []RelationshipRule
	Includes      []*Set
}

// flatten merges the declarations of s and its includes.
func (s *Set) flatten() ([]FieldRule, []RelationshipRule) {
	var (
		fields    []FieldRule
		relations []RelationshipRule
		seenField = make(map[string]struct{})
		seenRel   = make(map[string]struct{})
		visited   = make(map[*Set]struct{})
	)

	level := []*Set{s}
	for len(level) > 0 {
		var next []*Set
		for _, set := range level {
			if set == nil {
				continue
			}
			if _, ok := visited[set]; ok {
				continue
			}
			visited[set] = struct{}{}

			for _, f := range set.Fields {
				if _, ok := seenField[f.Name]; ok {
					continue
				}
				seenField[f.Name] = struct{}{}
				fields = append(fields, f)
			}
			for _, r := range set.Relationships {
				if _, ok := seenRel[r.Name]; ok {
					continue
				}
				seenRel[r.Name] = struct{}{}
				relations = append(relations, r)
			}
			next = append(next, set.Includes...)
		}
		level = next
	}

	return fields, relations
}

func (s *Set) label() string {
	if s.Name != "" {
		return s.Name
	}
	return "unnamed"
}
