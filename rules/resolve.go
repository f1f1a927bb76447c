package rules

import (
	"fmt"
	"strings"

	"github.com/nlstn/go-rql"
)

// target is what a public alias resolves to: a field, or the endpoint of a
// relationship when field is nil.
type target[Q, C any] struct {
	path     string
	field    *fieldEntry
	relation *relationEntry[Q, C]
}

// lookup resolves a public alias. Local fields are checked first, by alias
// or name. Otherwise the alias must equal a relationship alias or continue
// it with a '.', and resolution recurses into the related rule set.
func (m *ModelRules[Q, C]) lookup(alias string) (target[Q, C], error) {
	t, found, err := m.find(alias, alias)
	if err != nil {
		return t, err
	}
	if !found {
		return t, &rql.Error{
			Kind:    rql.ErrUnknownField,
			Field:   alias,
			Message: fmt.Sprintf("field '%s' not found in model '%s'", alias, m.model),
		}
	}
	return t, nil
}

func (m *ModelRules[Q, C]) find(alias, full string) (target[Q, C], bool, error) {
	for _, f := range m.fields {
		if f.matches(alias) {
			return target[Q, C]{path: f.name, field: f}, true, nil
		}
	}

	for _, r := range m.relations {
		if r.matches(alias) {
			return target[Q, C]{path: r.name, relation: r}, true, nil
		}
	}

	var (
		match *relationEntry[Q, C]
		rest  string
		names []string
	)
	for _, r := range m.relations {
		if remainder, ok := r.remainder(alias); ok {
			match, rest = r, remainder
			names = append(names, "'"+r.alias+"'")
		}
	}
	switch {
	case len(names) == 0:
		return target[Q, C]{}, false, nil
	case len(names) > 1:
		return target[Q, C]{}, false, &rql.Error{
			Kind:    rql.ErrAmbiguousField,
			Field:   full,
			Message: fmt.Sprintf("multiple relationships %s match field '%s'", strings.Join(names, ", "), full),
		}
	}

	nested, found, err := match.rules.find(rest, full)
	if err != nil || !found {
		return nested, found, err
	}
	nested.path = match.name + "." + nested.path
	return nested, true, nil
}

// Resolve maps a public alias to the model path it addresses.
func (m *ModelRules[Q, C]) Resolve(alias string) (string, error) {
	t, err := m.lookup(alias)
	if err != nil {
		return "", err
	}
	return t.path, nil
}

// ValidateOperator checks that the field addressed by alias accepts op.
// Relationship endpoints accept eq and ne as null tests, and any.
func (m *ModelRules[Q, C]) ValidateOperator(alias string, op rql.Operator) error {
	t, err := m.lookup(alias)
	if err != nil {
		return err
	}
	if t.field != nil {
		if t.field.operators.Has(op) {
			return nil
		}
		return &rql.Error{
			Kind:     rql.ErrOperatorNotAllowed,
			Field:    alias,
			Operator: op.String(),
			Message:  fmt.Sprintf("operator '%s' is not allowed for field '%s'", op, alias),
		}
	}
	if rql.RelationshipOperators.Has(op) {
		return nil
	}
	return &rql.Error{
		Kind:     rql.ErrOperatorNotAllowed,
		Field:    alias,
		Operator: op.String(),
		Message:  fmt.Sprintf("operator '%s' is not allowed for relationship '%s'", op, alias),
	}
}

// ValidateOrdering checks that the field addressed by alias can be ordered.
func (m *ModelRules[Q, C]) ValidateOrdering(alias string) error {
	t, err := m.lookup(alias)
	if err != nil {
		return err
	}
	if t.field != nil && t.field.ordering {
		return nil
	}
	return &rql.Error{
		Kind:    rql.ErrOrderingNotAllowed,
		Field:   alias,
		Message: fmt.Sprintf("order by '%s' is not allowed", alias),
	}
}
