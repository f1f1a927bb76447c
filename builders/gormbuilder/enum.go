package gormbuilder

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
)

// EnumMember is one named value of an enumeration. Value is an int64 for
// integral enums and a string for string enums.
type EnumMember struct {
	Name  string
	Value any
}

// EnumValue is the set of storage types an enumeration can have.
type EnumValue interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~string
}

var enumRegistry = struct {
	sync.RWMutex
	data map[reflect.Type][]EnumMember
}{
	data: make(map[reflect.Type][]EnumMember),
}

// RegisterEnum registers the members of the enum type E. Fields of type E are
// classified as enums and accept member names as values.
func RegisterEnum[E EnumValue](members map[string]E) error {
	list := make([]EnumMember, 0, len(members))
	for name, value := range members {
		v, err := convertEnumValue(reflect.ValueOf(value))
		if err != nil {
			return fmt.Errorf("enum type %s has invalid member %s: %w", reflect.TypeFor[E]().Name(), name, err)
		}
		list = append(list, EnumMember{Name: name, Value: v})
	}
	return RegisterEnumMembers(reflect.TypeFor[E](), list)
}

// RegisterEnumMembers registers enum members for the given enum type.
// The enum type must be a named integral or string type.
func RegisterEnumMembers(enumType reflect.Type, members []EnumMember) error {
	if enumType == nil {
		return fmt.Errorf("enum type cannot be nil")
	}

	baseType := resolveEnumBaseType(enumType)
	if baseType == nil {
		return fmt.Errorf("enum type %s must be a named integral or string type", enumType)
	}

	if len(members) == 0 {
		return fmt.Errorf("enum type %s must have at least one member", baseType.Name())
	}

	seenNames := make(map[string]struct{})
	seenValues := make(map[any]struct{})
	normalized := make([]EnumMember, len(members))
	for i, member := range members {
		if member.Name == "" {
			return fmt.Errorf("enum type %s has a member with an empty name", baseType.Name())
		}
		if _, exists := seenNames[member.Name]; exists {
			return fmt.Errorf("enum type %s has duplicate member name %s", baseType.Name(), member.Name)
		}
		seenNames[member.Name] = struct{}{}

		value, err := convertEnumValue(reflect.ValueOf(member.Value))
		if err != nil {
			return fmt.Errorf("enum type %s has invalid member %s: %w", baseType.Name(), member.Name, err)
		}
		if _, exists := seenValues[value]; exists {
			return fmt.Errorf("enum type %s has duplicate member value %v", baseType.Name(), value)
		}
		seenValues[value] = struct{}{}

		normalized[i] = EnumMember{Name: member.Name, Value: value}
	}

	sortEnumMembers(normalized)

	enumRegistry.Lock()
	defer enumRegistry.Unlock()
	enumRegistry.data[baseType] = normalized
	return nil
}

func getRegisteredEnumMembers(enumType reflect.Type) ([]EnumMember, bool) {
	enumRegistry.RLock()
	defer enumRegistry.RUnlock()
	members, ok := enumRegistry.data[enumType]
	if !ok {
		return nil, false
	}
	copied := make([]EnumMember, len(members))
	copy(copied, members)
	return copied, true
}

// ResolveEnumMembers returns the members of the enum type of a field. It
// checks the registry first and otherwise calls an EnumMembers() method
// returning map[string]<integer|string>, registering the result. The boolean
// is false when the type is not an enum.
func ResolveEnumMembers(fieldType reflect.Type) ([]EnumMember, bool, error) {
	baseType := resolveEnumBaseType(fieldType)
	if baseType == nil {
		return nil, false, nil
	}

	if members, ok := getRegisteredEnumMembers(baseType); ok {
		return members, true, nil
	}

	members, err := extractEnumMembersViaMethod(baseType)
	if err != nil {
		return nil, false, err
	}
	if members == nil {
		return nil, false, nil
	}
	if len(members) == 0 {
		return nil, false, fmt.Errorf("enum type %s has no members", baseType.Name())
	}

	if err := RegisterEnumMembers(baseType, members); err != nil {
		return nil, false, err
	}
	return members, true, nil
}

// resolveEnumBaseType unwraps pointers to find a named enum type.
func resolveEnumBaseType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return nil
	}
	if !isSupportedEnumValueKind(t.Kind()) {
		return nil
	}
	return t
}

// extractEnumMembersViaMethod calls EnumMembers() on the enum type. It returns
// nil members when the type has no such method.
func extractEnumMembersViaMethod(enumType reflect.Type) ([]EnumMember, error) {
	pointerValue := reflect.New(enumType)
	method := pointerValue.MethodByName("EnumMembers")
	if !method.IsValid() {
		method = pointerValue.Elem().MethodByName("EnumMembers")
	}
	if !method.IsValid() {
		return nil, nil
	}

	if method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil, fmt.Errorf("EnumMembers method on type %s must have signature EnumMembers() map[string]<value>", enumType.Name())
	}

	resultType := method.Type().Out(0)
	if resultType.Kind() != reflect.Map || resultType.Key().Kind() != reflect.String || !isSupportedEnumValueKind(resultType.Elem().Kind()) {
		return nil, fmt.Errorf("EnumMembers method on type %s must return map[string]<integer|string>", enumType.Name())
	}

	mapValue := method.Call(nil)[0]
	if mapValue.IsNil() {
		return nil, fmt.Errorf("EnumMembers method on type %s returned nil", enumType.Name())
	}

	members := make([]EnumMember, 0, mapValue.Len())
	iter := mapValue.MapRange()
	for iter.Next() {
		name := iter.Key().String()
		value, err := convertEnumValue(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("enum type %s has invalid member %s: %w", enumType.Name(), name, err)
		}
		members = append(members, EnumMember{Name: name, Value: value})
	}

	sortEnumMembers(members)
	return members, nil
}

func isSupportedEnumValueKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.String:
		return true
	default:
		return false
	}
}

// convertEnumValue normalizes a member value to int64 or string.
func convertEnumValue(value reflect.Value) (any, error) {
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		unsigned := value.Uint()
		if unsigned > math.MaxInt64 {
			return nil, fmt.Errorf("value %d exceeds maximum supported enum value", unsigned)
		}
		return int64(unsigned), nil
	case reflect.String:
		return value.String(), nil
	case reflect.Invalid:
		return nil, fmt.Errorf("missing value")
	default:
		return nil, fmt.Errorf("unsupported enum value kind %s", value.Kind())
	}
}

func sortEnumMembers(members []EnumMember) {
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.Value == b.Value {
			return a.Name < b.Name
		}
		switch av := a.Value.(type) {
		case int64:
			if bv, ok := b.Value.(int64); ok {
				return av < bv
			}
		case string:
			if bv, ok := b.Value.(string); ok {
				return av < bv
			}
		}
		return a.Name < b.Name
	})
}

// enumMember maps a literal to the stored value of a member: a member name,
// or a value equal to a member value.
func enumMember(members []EnumMember, value any) (any, bool) {
	if name, ok := value.(string); ok {
		for _, m := range members {
			if m.Name == name {
				return m.Value, true
			}
		}
	}
	for _, m := range members {
		if m.Value == value {
			return m.Value, true
		}
	}
	return nil, false
}
