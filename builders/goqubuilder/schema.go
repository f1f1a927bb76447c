package goqubuilder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nlstn/go-rql"
)

// Relationship kinds.
const (
	BelongsTo = "belongs_to"
	HasOne    = "has_one"
	HasMany   = "has_many"
)

// Schema declares the tables a backend can query.
type Schema struct {
	Tables []*Table `yaml:"tables"`
}

// Table is one queryable table.
type Table struct {
	// Name is the SQL table name.
	Name string `yaml:"name"`

	// Model is the name used in messages. Empty means Name.
	Model string `yaml:"model,omitempty"`

	// PrimaryKey is the key column. Empty means "id".
	PrimaryKey string `yaml:"primary_key,omitempty"`

	Columns   []Column   `yaml:"columns"`
	Relations []Relation `yaml:"relations,omitempty"`
}

// Column is one queryable column.
type Column struct {
	Name string `yaml:"name"`

	// Type is an RQL field type name: string, integer, float, boolean, date,
	// datetime, enum or uuid.
	Type string `yaml:"type"`

	Nullable bool `yaml:"nullable,omitempty"`

	// Enum maps member names to stored values. A column with members is an
	// enum regardless of Type.
	Enum map[string]any `yaml:"enum,omitempty"`
}

// Relation links a table to another table of the schema.
type Relation struct {
	Name string `yaml:"name"`

	// Kind is belongs_to, has_one or has_many.
	Kind string `yaml:"kind"`

	// Table is the related table.
	Table string `yaml:"table"`

	// LocalKey is the column of the owning table. It defaults to
	// "<name>_id" for belongs_to and to the primary key otherwise.
	LocalKey string `yaml:"local_key,omitempty"`

	// RemoteKey is the column of the related table. It defaults to the
	// related primary key for belongs_to and is required otherwise.
	RemoteKey string `yaml:"remote_key,omitempty"`

	// Nullable marks a belongs_to key that may be null.
	Nullable bool `yaml:"nullable,omitempty"`
}

// LoadSchema reads a YAML schema file.
func LoadSchema(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer f.Close()
	return DecodeSchema(f)
}

// DecodeSchema decodes and validates a YAML schema.
func DecodeSchema(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Table returns the table with the given table or model name.
func (s *Schema) Table(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name || (t.Model != "" && t.Model == name) {
			return t, true
		}
	}
	return nil, false
}

// Validate reports every inconsistency of the schema.
func (s *Schema) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, rql.Errorf(rql.ErrRuleDefinition, format, args...))
	}

	if len(s.Tables) == 0 {
		add("schema declares no tables")
	}
	tables := make(map[string]struct{})
	for i, t := range s.Tables {
		if t == nil || t.Name == "" {
			add("table %d has no name", i)
			continue
		}
		if _, ok := tables[t.Name]; ok {
			add("table '%s' is declared twice", t.Name)
		}
		tables[t.Name] = struct{}{}

		columns := make(map[string]struct{})
		for _, c := range t.Columns {
			if c.Name == "" {
				add("table '%s' has a column without a name", t.Name)
				continue
			}
			if _, ok := columns[c.Name]; ok {
				add("column '%s' of table '%s' is declared twice", c.Name, t.Name)
			}
			columns[c.Name] = struct{}{}
			if len(c.Enum) == 0 {
				if _, ok := rql.ParseFieldType(c.Type); !ok || c.Type == rql.TypeEnum.String() {
					add("column '%s' of table '%s' has unsupported type '%s'", c.Name, t.Name, c.Type)
				}
			}
		}

		relations := make(map[string]struct{})
		for _, r := range t.Relations {
			if r.Name == "" {
				add("table '%s' has a relation without a name", t.Name)
				continue
			}
			if _, ok := relations[r.Name]; ok {
				add("relation '%s' of table '%s' is declared twice", r.Name, t.Name)
			}
			if _, ok := columns[r.Name]; ok {
				add("relation '%s' of table '%s' shadows a column", r.Name, t.Name)
			}
			relations[r.Name] = struct{}{}
			switch r.Kind {
			case BelongsTo:
			case HasOne, HasMany:
				if r.RemoteKey == "" {
					add("relation '%s' of table '%s' needs a remote_key", r.Name, t.Name)
				}
			default:
				add("relation '%s' of table '%s' has unknown kind '%s'", r.Name, t.Name, r.Kind)
			}
		}
	}

	for _, t := range s.Tables {
		if t == nil {
			continue
		}
		for _, r := range t.Relations {
			if _, ok := tables[r.Table]; !ok {
				add("relation '%s' of table '%s' targets unknown table '%s'", r.Name, t.Name, r.Table)
			}
		}
	}

	if len(errs) > 0 {
		return &rql.ValidationError{Model: "schema", Errors: errs}
	}
	return nil
}

func (t *Table) modelName() string {
	if t.Model != "" {
		return t.Model
	}
	return t.Name
}

func (t *Table) primaryKey() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return "id"
}

func (t *Table) column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

func (t *Table) relation(name string) (*Relation, bool) {
	for i := range t.Relations {
		if t.Relations[i].Name == name {
			return &t.Relations[i], true
		}
	}
	return nil, false
}

func (c *Column) fieldType() rql.FieldType {
	if len(c.Enum) > 0 {
		return rql.TypeEnum
	}
	t, _ := rql.ParseFieldType(c.Type)
	return t
}

func (r *Relation) toMany() bool {
	return r.Kind == HasMany
}

// keys returns the owner and related key columns of r.
func (r *Relation) keys(owner, target *Table) (local, remote string) {
	local, remote = r.LocalKey, r.RemoteKey
	if r.Kind == BelongsTo {
		if local == "" {
			local = r.Name + "_id"
		}
		if remote == "" {
			remote = target.primaryKey()
		}
		return local, remote
	}
	if local == "" {
		local = owner.primaryKey()
	}
	return local, remote
}
