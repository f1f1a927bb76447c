package goqubuilder

import (
	"reflect"
	"sort"

	"github.com/google/uuid"

	"github.com/nlstn/go-rql"
)

// columnValue maps a coerced literal to the value bound for column c.
func columnValue(c *Column, v any) (any, error) {
	switch c.fieldType() {
	case rql.TypeEnum:
		if m, ok := enumValue(c.Enum, v); ok {
			return m, nil
		}
		return nil, rql.Errorf(rql.ErrInvalidValue, "value '%v' is not a member of enum '%s'", v, c.Name)
	case rql.TypeUUID:
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id, nil
			}
		}
		return nil, rql.Errorf(rql.ErrInvalidValue, "value '%v' is not a valid uuid", v)
	case rql.TypeDate:
		if d, ok := v.(rql.Date); ok {
			return d.String(), nil
		}
	}
	return v, nil
}

// enumValue maps a member name, or a value equal to a member value, to the
// stored value. Members are tried in name order so lookups are stable.
func enumValue(members map[string]any, v any) (any, bool) {
	if name, ok := v.(string); ok {
		if m, ok := members[name]; ok {
			return normalize(m), true
		}
	}
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	want := normalize(v)
	for _, name := range names {
		if m := normalize(members[name]); m == want {
			return m, true
		}
	}
	return nil, false
}

// normalize widens integers to int64 so values decoded from YAML compare
// equal to parsed literals.
func normalize(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	}
	return v
}
