package rql

import (
	"sort"
	"strings"
)

// Operator is a comparison or relational operator of RQL. The logical
// operators and, or and not are structural and not part of this enumeration.
type Operator uint8

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpLt
	OpGte
	OpLte
	OpIn
	OpOut
	OpLike
	OpIlike
	OpAny

	numOperators
)

// numComparisons is the number of operators handled by comparison handlers.
const numComparisons = int(OpAny)

var operatorNames = [numOperators]string{
	OpEq:    "eq",
	OpNe:    "ne",
	OpGt:    "gt",
	OpLt:    "lt",
	OpGte:   "gte",
	OpLte:   "lte",
	OpIn:    "in",
	OpOut:   "out",
	OpLike:  "like",
	OpIlike: "ilike",
	OpAny:   "any",
}

var operatorsByName = func() map[string]Operator {
	m := make(map[string]Operator, numOperators)
	for op, name := range operatorNames {
		m[name] = Operator(op)
	}
	return m
}()

// String returns the RQL name of the operator.
func (op Operator) String() string {
	if op < numOperators {
		return operatorNames[op]
	}
	return "unknown"
}

// IsComparison reports whether op compares a property with a value.
func (op Operator) IsComparison() bool {
	return op < OpAny
}

// ParseOperator returns the operator with the given RQL name.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorsByName[name]
	return op, ok
}

// AllOperators returns every operator in declaration order.
func AllOperators() []Operator {
	ops := make([]Operator, numOperators)
	for i := range ops {
		ops[i] = Operator(i)
	}
	return ops
}

// OperatorSet is a set of operators.
type OperatorSet uint16

// NewOperatorSet returns the set containing ops.
func NewOperatorSet(ops ...Operator) OperatorSet {
	var s OperatorSet
	for _, op := range ops {
		s = s.With(op)
	}
	return s
}

// Has reports whether op is in the set.
func (s OperatorSet) Has(op Operator) bool {
	return op < numOperators && s&(1<<op) != 0
}

// With returns the set with op added.
func (s OperatorSet) With(op Operator) OperatorSet {
	return s | 1<<op
}

// Without returns the set with op removed.
func (s OperatorSet) Without(op Operator) OperatorSet {
	return s &^ (1 << op)
}

// Difference returns the operators of s that are not in other.
func (s OperatorSet) Difference(other OperatorSet) OperatorSet {
	return s &^ other
}

// IsEmpty reports whether the set has no operators.
func (s OperatorSet) IsEmpty() bool {
	return s == 0
}

// Len returns the number of operators in the set.
func (s OperatorSet) Len() int {
	n := 0
	for op := Operator(0); op < numOperators; op++ {
		if s.Has(op) {
			n++
		}
	}
	return n
}

// Operators returns the operators of the set in declaration order.
func (s OperatorSet) Operators() []Operator {
	ops := make([]Operator, 0, s.Len())
	for op := Operator(0); op < numOperators; op++ {
		if s.Has(op) {
			ops = append(ops, op)
		}
	}
	return ops
}

// Names returns the operator names of the set in alphabetical order.
func (s OperatorSet) Names() []string {
	ops := s.Operators()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	sort.Strings(names)
	return names
}

// String returns the alphabetical, comma separated operator names.
func (s OperatorSet) String() string {
	return strings.Join(s.Names(), ", ")
}
