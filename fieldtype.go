package rql

// FieldType is the primitive category of a model field. It decides which
// operators a field accepts by default.
type FieldType uint8

const (
	TypeUnknown FieldType = iota
	TypeString
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDate
	TypeDateTime
	TypeEnum
	TypeUUID
)

var fieldTypeNames = [...]string{
	TypeUnknown:  "unknown",
	TypeString:   "string",
	TypeInteger:  "integer",
	TypeFloat:    "float",
	TypeBoolean:  "boolean",
	TypeDate:     "date",
	TypeDateTime: "datetime",
	TypeEnum:     "enum",
	TypeUUID:     "uuid",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return "unknown"
}

// ParseFieldType returns the field type with the given name.
func ParseFieldType(name string) (FieldType, bool) {
	for t, n := range fieldTypeNames {
		if n == name && t != int(TypeUnknown) {
			return FieldType(t), true
		}
	}
	return TypeUnknown, false
}

var (
	stringOperators   = NewOperatorSet(OpEq, OpNe, OpIn, OpOut, OpLike, OpIlike)
	numericOperators  = NewOperatorSet(OpEq, OpNe, OpGt, OpLt, OpGte, OpLte, OpIn, OpOut)
	booleanOperators  = NewOperatorSet(OpEq, OpNe)
	temporalOperators = NewOperatorSet(OpEq, OpNe, OpGt, OpLt, OpGte, OpLte)
	enumOperators     = NewOperatorSet(OpEq, OpNe, OpIn, OpOut)
)

// DefaultOperators returns the operators a field of type t accepts when its
// rule declares none. Enumerations share one set regardless of their storage
// type. The boolean result is false for TypeUnknown.
func DefaultOperators(t FieldType) (OperatorSet, bool) {
	switch t {
	case TypeString:
		return stringOperators, true
	case TypeInteger, TypeFloat:
		return numericOperators, true
	case TypeBoolean:
		return booleanOperators, true
	case TypeDate, TypeDateTime:
		return temporalOperators, true
	case TypeEnum, TypeUUID:
		return enumOperators, true
	}
	return 0, false
}

// RelationshipOperators are the operators accepted by a relationship endpoint:
// null tests with eq/ne and the any quantifier.
var RelationshipOperators = NewOperatorSet(OpEq, OpNe, OpAny)

// FieldInfo describes one field of a backend model.
type FieldInfo struct {
	// Name is the model field name addressed by RQL paths.
	Name string

	// Type is the primitive category of the field.
	Type FieldType

	// TypeName is the model's own name for the field type, used in messages.
	TypeName string
}

// RelationInfo describes one relationship of a backend model.
type RelationInfo struct {
	Name string

	// Model is the related model, suitable for a BackendFactory.
	Model any

	// ToMany is true for relationships with any number of related rows.
	ToMany bool
}
