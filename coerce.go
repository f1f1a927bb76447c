package rql

import (
	"strconv"
	"time"

	"github.com/nlstn/go-rql/internal/parser"
)

// Date is a calendar date literal such as 2024-01-31.
type Date = parser.Date

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	return parser.ParseDate(s)
}

// CoerceValue converts a literal value to the category of a field of type t.
// nil always passes through. Slices produced by tuples are coerced element
// by element. Enumerations and UUIDs are returned unchanged; backends map
// them to their own representations.
func CoerceValue(t FieldType, value any) (any, error) {
	if values, ok := value.([]any); ok {
		out := make([]any, len(values))
		for i, v := range values {
			c, err := CoerceValue(t, v)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	if value == nil {
		return nil, nil
	}

	switch t {
	case TypeString:
		return coerceString(value), nil
	case TypeInteger:
		switch v := value.(type) {
		case int64:
			return v, nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, nil
			}
		}
	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, nil
			}
		}
	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, nil
			}
		}
	case TypeDate:
		switch v := value.(type) {
		case Date:
			return v, nil
		case time.Time:
			return parser.NewDate(v), nil
		case string:
			if d, err := parser.ParseDate(v); err == nil {
				return d, nil
			}
		}
	case TypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case Date:
			return v.Time(), nil
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return ts, nil
			}
		}
	case TypeEnum, TypeUUID, TypeUnknown:
		return value, nil
	}

	return nil, Errorf(ErrInvalidValue, "value '%v' is not a valid %s", value, t)
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case Date:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return ""
}

// ValueString renders a literal value as text, for operators such as like
// that only accept strings.
func ValueString(value any) string {
	return coerceString(value)
}
