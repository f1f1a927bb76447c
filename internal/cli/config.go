package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"gopkg.in/yaml.v3"

	"github.com/nlstn/go-rql"
	"github.com/nlstn/go-rql/builders/goqubuilder"
	"github.com/nlstn/go-rql/rules"
)

// Config is the YAML file read by compile and docs: a table schema and the
// rule sets guarding its tables.
type Config struct {
	goqubuilder.Schema `yaml:",inline"`

	Rules []RuleSetConfig `yaml:"rules,omitempty"`
}

// RuleSetConfig declares one rules.Set.
type RuleSetConfig struct {
	Name string `yaml:"name"`

	// Table is the schema table the set applies to. Empty for sets that are
	// only included by other sets.
	Table string `yaml:"table,omitempty"`

	Fields        []FieldConfig        `yaml:"fields,omitempty"`
	Relationships []RelationshipConfig `yaml:"relationships,omitempty"`
	Includes      []string             `yaml:"includes,omitempty"`
}

// FieldConfig declares one rules.FieldRule.
type FieldConfig struct {
	Name      string   `yaml:"name"`
	Alias     string   `yaml:"alias,omitempty"`
	Operators []string `yaml:"operators,omitempty"`
	Unordered bool     `yaml:"unordered,omitempty"`
}

// RelationshipConfig declares one rules.RelationshipRule. Rules names
// another rule set of the file.
type RelationshipConfig struct {
	Name  string `yaml:"name"`
	Alias string `yaml:"alias,omitempty"`
	Rules string `yaml:"rules"`
}

// LoadConfig reads and validates a config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}

// DecodeConfig decodes a config and validates its schema.
func DecodeConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RuleSets converts the declared rule sets, keyed by name. Relationship and
// include references are resolved across the whole file, so sets may refer to
// each other in any order and cyclically.
func (c *Config) RuleSets() (map[string]*rules.Set, error) {
	sets := make(map[string]*rules.Set, len(c.Rules))
	declared := make([]RuleSetConfig, 0, len(c.Rules))
	var errs []error

	for _, rc := range c.Rules {
		if rc.Name == "" {
			errs = append(errs, rql.Errorf(rql.ErrRuleDefinition, "rule set without a name"))
			continue
		}
		if _, ok := sets[rc.Name]; ok {
			errs = append(errs, rql.Errorf(rql.ErrRuleDefinition, "rule set '%s' is declared twice", rc.Name))
			continue
		}
		set := &rules.Set{Name: rc.Name}
		if rc.Table != "" {
			table, ok := c.Table(rc.Table)
			if !ok {
				errs = append(errs, rql.Errorf(rql.ErrRuleDefinition, "rule set '%s' references unknown table '%s'", rc.Name, rc.Table))
				continue
			}
			set.Model = table
		}
		sets[rc.Name] = set
		declared = append(declared, rc)
	}

	for _, rc := range declared {
		set := sets[rc.Name]
		for _, fc := range rc.Fields {
			rule, err := fc.rule()
			if err != nil {
				errs = append(errs, fmt.Errorf("rule set '%s': %w", rc.Name, err))
				continue
			}
			set.Fields = append(set.Fields, rule)
		}
		for _, relc := range rc.Relationships {
			target, ok := sets[relc.Rules]
			if !ok {
				errs = append(errs, rql.Errorf(rql.ErrRuleDefinition,
					"relationship '%s' of rule set '%s' references unknown rule set '%s'", relc.Name, rc.Name, relc.Rules))
				continue
			}
			set.Relationships = append(set.Relationships, rules.Relationship(relc.Name, target).As(relc.Alias))
		}
		for _, name := range rc.Includes {
			include, ok := sets[name]
			if !ok {
				errs = append(errs, rql.Errorf(rql.ErrRuleDefinition, "rule set '%s' includes unknown rule set '%s'", rc.Name, name))
				continue
			}
			set.Includes = append(set.Includes, include)
		}
	}

	if len(errs) > 0 {
		return nil, &rql.ValidationError{Model: "config", Errors: errs}
	}
	return sets, nil
}

func (fc FieldConfig) rule() (rules.FieldRule, error) {
	rule := rules.Field(fc.Name).As(fc.Alias)
	if fc.Operators != nil {
		ops := make([]rql.Operator, 0, len(fc.Operators))
		for _, name := range fc.Operators {
			op, ok := rql.ParseOperator(name)
			if !ok {
				return rule, rql.Errorf(rql.ErrRuleDefinition, "field '%s' allows unknown operator '%s'", fc.Name, name)
			}
			ops = append(ops, op)
		}
		rule = rule.Allow(ops...)
	}
	if fc.Unordered {
		rule = rule.Unordered()
	}
	return rule, nil
}

// QueryBuilder is satisfied by both *rql.Builder and *rules.ModelRules.
type QueryBuilder interface {
	BuildQuery(ctx context.Context, text string) (*goqu.SelectDataset, error)
}

// Builder returns the builder for model, which names a rule set or, when no
// rule set has that name, a schema table queried without rules.
func (c *Config) Builder(dialect, model string, opts ...rql.Option) (QueryBuilder, error) {
	sets, err := c.RuleSets()
	if err != nil {
		return nil, err
	}
	if set, ok := sets[model]; ok {
		m, err := rules.New(set, goqubuilder.Factory(dialect, &c.Schema), opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	backend, err := goqubuilder.New(dialect, &c.Schema, model)
	if err != nil {
		return nil, err
	}
	return rql.NewBuilder[*goqu.SelectDataset, exp.Expression](backend, opts...), nil
}

// ModelRules compiles the rule set named model.
func (c *Config) ModelRules(dialect, model string) (*rules.ModelRules[*goqu.SelectDataset, exp.Expression], error) {
	sets, err := c.RuleSets()
	if err != nil {
		return nil, err
	}
	set, ok := sets[model]
	if !ok {
		return nil, rql.Errorf(rql.ErrRuleDefinition, "rule set '%s' not found in config", model)
	}
	return rules.New(set, goqubuilder.Factory(dialect, &c.Schema))
}
