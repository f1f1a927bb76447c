package rules

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/nlstn/go-rql"
)

// ModelRules is a validated rule set bound to a backend. It is safe for
// concurrent use.
type ModelRules[Q, C any] struct {
	set       *Set
	model     string
	backend   rql.Backend[Q, C]
	builder   *rql.Builder[Q, C]
	fields    []*fieldEntry
	relations []*relationEntry[Q, C]
}

type fieldEntry struct {
	name      string
	alias     string
	info      rql.FieldInfo
	operators rql.OperatorSet
	ordering  bool
}

func (f *fieldEntry) matches(alias string) bool {
	return f.alias == alias || f.name == alias
}

type relationEntry[Q, C any] struct {
	name  string
	alias string
	info  rql.RelationInfo
	rules *ModelRules[Q, C]
}

func (r *relationEntry[Q, C]) matches(alias string) bool {
	return r.alias == alias || r.name == alias
}

// remainder returns the part of alias below the relationship, if alias
// addresses a path inside it.
func (r *relationEntry[Q, C]) remainder(alias string) (string, bool) {
	for _, prefix := range []string{r.alias, r.name} {
		if rest, ok := strings.CutPrefix(alias, prefix+"."); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

// New validates set and binds it to the backend factory builds for set.Model.
// Related rule sets are bound through the same factory. opts configure the
// builder of every bound set.
func New[Q, C any](set *Set, factory rql.BackendFactory[Q, C], opts ...rql.Option) (*ModelRules[Q, C], error) {
	if set == nil {
		return nil, rql.Errorf(rql.ErrRuleDefinition, "rule set is nil")
	}
	c := &compiler[Q, C]{
		factory: factory,
		opts:    opts,
		bound:   make(map[*Set]*ModelRules[Q, C]),
	}
	rules, errs := c.bind(set)
	if len(errs) > 0 {
		return nil, &rql.ValidationError{Model: c.modelName(set, rules), Errors: errs}
	}
	return rules, nil
}

// compiler binds a graph of rule sets. Every set is bound once, so cyclic
// graphs terminate and shared sets are validated once.
type compiler[Q, C any] struct {
	factory rql.BackendFactory[Q, C]
	opts    []rql.Option
	bound   map[*Set]*ModelRules[Q, C]
}

func (c *compiler[Q, C]) modelName(set *Set, rules *ModelRules[Q, C]) string {
	if rules != nil && rules.model != "" {
		return rules.model
	}
	if set.Model != nil {
		return typeName(set.Model)
	}
	return set.label()
}

func (c *compiler[Q, C]) bind(set *Set) (*ModelRules[Q, C], []error) {
	if rules, ok := c.bound[set]; ok {
		return rules, nil
	}
	if set.Model == nil {
		return nil, []error{rql.Errorf(rql.ErrRuleDefinition, "rule set '%s' has no model", set.label())}
	}

	backend, err := c.factory(set.Model)
	if err != nil {
		return nil, []error{err}
	}

	m := &ModelRules[Q, C]{
		set:     set,
		model:   backend.Model(),
		backend: backend,
	}
	c.bound[set] = m

	var errs []error
	fields, relations := set.flatten()
	public := make(map[string]string)
	claim := func(alias, owner string) {
		if previous, ok := public[alias]; ok {
			errs = append(errs, rql.Errorf(rql.ErrRuleDefinition,
				"alias '%s' of '%s' is already used by '%s' in model '%s'", alias, owner, previous, m.model))
			return
		}
		public[alias] = owner
	}

	for _, rule := range fields {
		entry, err := m.bindField(rule)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		claim(entry.alias, entry.name)
		m.fields = append(m.fields, entry)
	}

	for _, rule := range relations {
		entry, relErrs := c.bindRelation(m, rule)
		errs = append(errs, relErrs...)
		if entry == nil {
			continue
		}
		claim(entry.alias, entry.name)
		m.relations = append(m.relations, entry)
	}

	m.builder = rql.NewBuilder(backend, append(append([]rql.Option{}, c.opts...), rql.WithHooks(m.hooks()))...)
	return m, errs
}

func (m *ModelRules[Q, C]) bindField(rule FieldRule) (*fieldEntry, error) {
	if rule.Name == "" {
		return nil, rql.Errorf(rql.ErrRuleDefinition, "field rule without a name in model '%s'", m.model)
	}
	info, err := m.backend.Field(rule.Name)
	if err != nil {
		return nil, &rql.Error{
			Kind:    rql.ErrUnknownField,
			Field:   rule.Name,
			Message: fmt.Sprintf("field '%s' not found in model '%s'", rule.Name, m.model),
		}
	}

	valid, known := rql.DefaultOperators(info.Type)
	entry := &fieldEntry{
		name:     rule.Name,
		alias:    rule.publicName(),
		info:     info,
		ordering: !rule.DisableOrdering,
	}

	if rule.Operators == nil {
		if !known {
			return nil, &rql.Error{
				Kind:    rql.ErrUnsupportedType,
				Field:   rule.Name,
				Message: fmt.Sprintf("cannot infer default operators for field '%s' of type '%s'", rule.Name, info.TypeName),
			}
		}
		entry.operators = valid
		return entry, nil
	}

	declared := rql.NewOperatorSet(rule.Operators...)
	if invalid := declared.Difference(valid); !invalid.IsEmpty() {
		quoted := invalid.Names()
		for i, name := range quoted {
			quoted[i] = "'" + name + "'"
		}
		return nil, &rql.Error{
			Kind:    rql.ErrRuleDefinition,
			Field:   rule.Name,
			Message: fmt.Sprintf("invalid operators %s for field '%s' of type '%s'", strings.Join(quoted, ", "), rule.Name, info.TypeName),
		}
	}
	entry.operators = declared
	return entry, nil
}

func (c *compiler[Q, C]) bindRelation(m *ModelRules[Q, C], rule RelationshipRule) (*relationEntry[Q, C], []error) {
	if rule.Name == "" {
		return nil, []error{rql.Errorf(rql.ErrRuleDefinition, "relationship rule without a name in model '%s'", m.model)}
	}
	info, err := m.backend.Relation(rule.Name)
	if err != nil {
		return nil, []error{&rql.Error{
			Kind:    rql.ErrUnknownField,
			Field:   rule.Name,
			Message: fmt.Sprintf("relationship '%s' not found in model '%s'", rule.Name, m.model),
		}}
	}
	if rule.Rules == nil {
		return nil, []error{rql.Errorf(rql.ErrRuleDefinition, "relationship '%s' of model '%s' has no rules", rule.Name, m.model)}
	}
	if rule.Rules.Model != nil && info.Model != nil && modelType(rule.Rules.Model) != modelType(info.Model) {
		return nil, []error{rql.Errorf(rql.ErrRuleDefinition,
			"relationship '%s' of model '%s' targets '%s' but its rules are for '%s'",
			rule.Name, m.model, typeName(info.Model), typeName(rule.Rules.Model))}
	}

	nested, errs := c.bind(rule.Rules)
	if len(errs) > 0 {
		return nil, []error{&rql.ValidationError{Model: c.modelName(rule.Rules, nested), Errors: errs}}
	}
	return &relationEntry[Q, C]{
		name:  rule.Name,
		alias: rule.publicName(),
		info:  info,
		rules: nested,
	}, nil
}

func (m *ModelRules[Q, C]) hooks() rql.Hooks {
	return rql.Hooks{
		ResolveAlias:     m.Resolve,
		ValidateOperator: m.ValidateOperator,
		ValidateOrdering: m.ValidateOrdering,
	}
}

// BuildQuery compiles text starting from the backend's initial query.
func (m *ModelRules[Q, C]) BuildQuery(ctx context.Context, text string) (Q, error) {
	return m.builder.BuildQuery(ctx, text)
}

// BuildQueryFrom compiles text on top of initial.
func (m *ModelRules[Q, C]) BuildQueryFrom(ctx context.Context, text string, initial Q) (Q, error) {
	return m.builder.BuildQueryFrom(ctx, text, initial)
}

// Backend returns the backend bound to the rule set.
func (m *ModelRules[Q, C]) Backend() rql.Backend[Q, C] {
	return m.backend
}

// Model returns the name of the bound model.
func (m *ModelRules[Q, C]) Model() string {
	return m.model
}

func modelType(model any) reflect.Type {
	t := reflect.TypeOf(model)
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	return t
}

func typeName(model any) string {
	if t := modelType(model); t != nil {
		return t.Name()
	}
	return "<nil>"
}
