// Package rql compiles Resource Query Language (RQL) text into native queries.
//
// RQL is a compact filter and sort syntax for query strings:
//
//	and(eq(name,John),gt(age,30))&order_by(-name)
//
// Compilation has two stages. The text is parsed and transformed into an
// ordered list of backend-neutral expressions (FilterExpression and
// OrderByExpression). A Builder then replays those expressions against a
// Backend, which produces a native query value such as a *gorm.DB or a goqu
// select dataset.
//
// Builders can be guarded by rule sets (see package rules) that expose public
// aliases, restrict operators and ordering per field, and follow relationships
// to other models.
package rql
