// Package joinplan tracks the joins a SQL backend accumulates while resolving
// RQL property paths.
//
// Every relationship path gets a deterministic table alias, so conditions can
// reference a related table before its join exists. To-one relationships
// become joins, deduplicated by path and kept in first-discovered order.
// To-many relationships open a scope instead: joins discovered below a to-many
// path belong to that scope and are moved into the existence sub-query built
// for it. A to-many path referenced while no sub-query for it is being built
// stays open for good, so the build can reject it.
package joinplan

import (
	"slices"
	"sort"
	"strings"
)

// AliasPrefix starts every relation alias.
const AliasPrefix = "rql_"

// Alias returns the table alias of a relationship path.
func Alias(path string) string {
	return AliasPrefix + strings.ReplaceAll(path, ".", "__")
}

// Parent returns the path of the relationship that owns path, or "" for a
// relationship of the root model.
func Parent(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}

// Split separates a property path into its relationship path and final name.
func Split(path string) (relation, name string) {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

// Join is one planned join.
type Join[T any] struct {
	// Path is the relationship path the join serves.
	Path string

	// Scope is the nearest to-many ancestor path, "" at the top level.
	Scope string

	// Data is the backend's rendition of the join.
	Data T
}

// Plan is the join state of one build. It is not safe for concurrent use.
type Plan[T any] struct {
	joins  []Join[T]
	index  map[string]struct{}
	scopes map[string]struct{}
	outer  map[string]struct{}
	active []string
}

// New returns an empty plan.
func New[T any]() *Plan[T] {
	return &Plan[T]{
		index:  make(map[string]struct{}),
		scopes: make(map[string]struct{}),
		outer:  make(map[string]struct{}),
	}
}

// Has reports whether a join for path is planned.
func (p *Plan[T]) Has(path string) bool {
	_, ok := p.index[path]
	return ok
}

// Add plans a join for path unless one is already planned. build is only
// called for new paths.
func (p *Plan[T]) Add(path, scope string, build func() (T, error)) error {
	if p.Has(path) {
		return nil
	}
	data, err := build()
	if err != nil {
		return err
	}
	p.index[path] = struct{}{}
	p.joins = append(p.joins, Join[T]{Path: path, Scope: scope, Data: data})
	return nil
}

// Enter starts the existence sub-query of the to-many path scope. Until the
// matching Take, references to scope belong to the sub-query.
func (p *Plan[T]) Enter(scope string) {
	p.active = append(p.active, scope)
}

// Open marks the to-many path as referenced. Inside a sub-query entered for
// scope the reference stays open until Take consumes it; anywhere else it is
// never consumed.
func (p *Plan[T]) Open(scope string) {
	if slices.Contains(p.active, scope) {
		p.scopes[scope] = struct{}{}
		return
	}
	p.outer[scope] = struct{}{}
}

// Take removes and returns the joins of scope, in discovery order, and ends
// the innermost sub-query entered for it.
func (p *Plan[T]) Take(scope string) []Join[T] {
	for i := len(p.active) - 1; i >= 0; i-- {
		if p.active[i] == scope {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
	if !slices.Contains(p.active, scope) {
		delete(p.scopes, scope)
	}

	var taken []Join[T]
	kept := p.joins[:0]
	for _, j := range p.joins {
		if j.Scope == scope {
			taken = append(taken, j)
			delete(p.index, j.Path)
			continue
		}
		kept = append(kept, j)
	}
	p.joins = kept
	return taken
}

// Joins returns the top-level joins in discovery order.
func (p *Plan[T]) Joins() []Join[T] {
	var top []Join[T]
	for _, j := range p.joins {
		if j.Scope == "" {
			top = append(top, j)
		}
	}
	return top
}

// OpenScopes returns the to-many paths referenced outside of an existence
// sub-query built for them, sorted.
func (p *Plan[T]) OpenScopes() []string {
	if len(p.scopes) == 0 && len(p.outer) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(p.scopes)+len(p.outer))
	var scopes []string
	for _, set := range []map[string]struct{}{p.scopes, p.outer} {
		for s := range set {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				scopes = append(scopes, s)
			}
		}
	}
	sort.Strings(scopes)
	return scopes
}
