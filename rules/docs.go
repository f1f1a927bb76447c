package rules

import (
	"sort"
	"strings"

	"github.com/nlstn/go-rql"
)

// Entry documents one public alias of a rule set.
type Entry struct {
	Alias        string
	Path         string
	Type         rql.FieldType
	Operators    rql.OperatorSet
	Ordering     bool
	Relationship bool
}

// relationshipDocOperators are the operators listed for relationship
// endpoints. any is addressed through the relationship itself and is left
// out of the table.
var relationshipDocOperators = rql.NewOperatorSet(rql.OpEq, rql.OpNe)

// Entries lists every public alias of the rule set, including the aliases of
// related rule sets under their relationship prefix, sorted by alias.
func (m *ModelRules[Q, C]) Entries() []Entry {
	var entries []Entry
	m.collect(&entries, "", "", map[*ModelRules[Q, C]]bool{})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Alias < entries[j].Alias
	})
	return entries
}

func (m *ModelRules[Q, C]) collect(entries *[]Entry, aliasPrefix, pathPrefix string, active map[*ModelRules[Q, C]]bool) {
	active[m] = true
	defer delete(active, m)

	for _, f := range m.fields {
		*entries = append(*entries, Entry{
			Alias:     aliasPrefix + f.alias,
			Path:      pathPrefix + f.name,
			Type:      f.info.Type,
			Operators: f.operators,
			Ordering:  f.ordering,
		})
	}
	for _, r := range m.relations {
		*entries = append(*entries, Entry{
			Alias:        aliasPrefix + r.alias,
			Path:         pathPrefix + r.name,
			Operators:    relationshipDocOperators,
			Relationship: true,
		})
		if active[r.rules] {
			continue
		}
		r.rules.collect(entries, aliasPrefix+r.alias+".", pathPrefix+r.name+".", active)
	}
}

// Documentation renders the public aliases as a markdown table.
func (m *ModelRules[Q, C]) Documentation() string {
	var b strings.Builder
	b.WriteString("| Field | Operators | Order By |\n")
	b.WriteString("|-------|-----------|----------|\n")
	for _, e := range m.Entries() {
		ordering := "no"
		if e.Ordering {
			ordering = "yes"
		}
		b.WriteString("| " + e.Alias + " | " + e.Operators.String() + " | " + ordering + " |\n")
	}
	return b.String()
}
