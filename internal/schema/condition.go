package schema

import (
	"encoding/json"
	"reflect"
)

// IsVisible evaluates a field's condition against the current values.
// Fields without a condition are always visible, and an unrecognized
// operator leaves the field visible.
func IsVisible(field FieldDefinition, values Document) bool {
	c := field.Condition
	if c == nil {
		return true
	}
	dependent, _ := Lookup(values, c.Field)

	switch c.Operator {
	case OpEquals:
		return StrictEqual(dependent, c.Value)
	case OpNotEquals:
		return !StrictEqual(dependent, c.Value)
	case OpIn:
		return contains(c.Value, dependent)
	case OpNotIn:
		return !contains(c.Value, dependent)
	default:
		return true
	}
}

func contains(list, v any) bool {
	items, ok := normalize(list).([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if StrictEqual(item, v) {
			return true
		}
	}
	return false
}

// StrictEqual compares type and value. Numbers of any Go numeric type
// compare by value so a decoded JSON 1 equals an int 1, but true never
// equals "true" and 0 never equals "".
func StrictEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case nil:
		return b == nil
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !StrictEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !StrictEqual(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	}
	return v
}
