package gormbuilder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"

	"github.com/nlstn/go-rql"
)

// fieldValue maps a coerced literal to the Go value bound for f.
func fieldValue(f *schema.Field, info rql.FieldInfo, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch info.Type {
	case rql.TypeDate:
		if d, ok := v.(rql.Date); ok {
			return d.Time(), nil
		}
	case rql.TypeEnum:
		members, _, err := ResolveEnumMembers(f.IndirectFieldType)
		if err != nil {
			return nil, err
		}
		if member, ok := enumMember(members, v); ok {
			return member, nil
		}
		return nil, &rql.Error{
			Kind:    rql.ErrInvalidValue,
			Field:   f.DBName,
			Message: fmt.Sprintf("value '%v' is not a member of enum '%s'", v, info.TypeName),
		}
	case rql.TypeUUID:
		switch id := v.(type) {
		case uuid.UUID:
			return id, nil
		case string:
			if parsed, err := uuid.Parse(id); err == nil {
				return parsed, nil
			}
		}
		return nil, &rql.Error{
			Kind:    rql.ErrInvalidValue,
			Field:   f.DBName,
			Message: fmt.Sprintf("value '%v' is not a valid uuid", v),
		}
	case rql.TypeFloat:
		if f.IndirectFieldType == decimalType {
			if x, ok := v.(float64); ok {
				return decimal.NewFromFloat(x), nil
			}
		}
	}
	return v, nil
}

// fieldValueError names the field in a coercion error.
func fieldValueError(t target, err error) error {
	var e *rql.Error
	if !errors.As(err, &e) || e.Field != "" {
		return err
	}
	return &rql.Error{
		Kind:     e.Kind,
		Field:    t.path,
		Operator: e.Operator,
		Message:  fmt.Sprintf("%s for field '%s'", e.Message, t.path),
	}
}
