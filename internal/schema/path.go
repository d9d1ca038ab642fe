package schema

import (
	"strconv"
	"strings"
)

// Lookup resolves a dotted path against a nested document. Numeric segments
// index into lists. The second result is false when any segment is missing.
func Lookup(doc Document, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dotted path, creating intermediate maps (or lists
// for numeric segments) as needed. Lists grow with nil padding.
func Set(doc Document, path string, value any) {
	if doc == nil || path == "" {
		return
	}
	segs := strings.Split(path, ".")
	doc[segs[0]] = setIn(doc[segs[0]], segs[1:], value)
}

func setIn(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	seg := segs[0]
	if i, err := strconv.Atoi(seg); err == nil && i >= 0 {
		list, ok := node.([]any)
		if !ok {
			if m, isMap := node.(map[string]any); isMap {
				m[seg] = setIn(m[seg], segs[1:], value)
				return m
			}
			list = []any{}
		}
		for len(list) <= i {
			list = append(list, nil)
		}
		list[i] = setIn(list[i], segs[1:], value)
		return list
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[seg] = setIn(m[seg], segs[1:], value)
	return m
}

// Delete removes the map key at a dotted path. Paths that run through a
// list or a missing key leave the document unchanged.
func Delete(doc Document, path string) {
	segs := strings.Split(path, ".")
	node := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = next
	}
	delete(node, segs[len(segs)-1])
}

// Clone deep-copies the maps and lists of doc. Scalars are shared.
func Clone(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	out, _ := cloneValue(doc).(map[string]any)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	}
	return v
}

// Find returns the field definition addressed by a dotted key, descending
// through object children. Array item instances are not resolved here.
func Find(fields []FieldDefinition, key string) (FieldDefinition, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
		if f.Type == TypeObject && strings.HasPrefix(key, f.Key+".") {
			if found, ok := Find(f.Children, key); ok {
				return found, true
			}
		}
	}
	return FieldDefinition{}, false
}

// Resolve returns the field definition for a concrete dotted path,
// expanding array elements by their numeric index.
func Resolve(fields []FieldDefinition, path string) (FieldDefinition, bool) {
	for _, f := range fields {
		if f.Key == path {
			return f, true
		}
		if !strings.HasPrefix(path, f.Key+".") {
			continue
		}
		switch f.Type {
		case TypeObject:
			if found, ok := Resolve(f.Children, path); ok {
				return found, true
			}
		case TypeArray:
			rest := path[len(f.Key)+1:]
			idx, _, _ := strings.Cut(rest, ".")
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 {
				return FieldDefinition{}, false
			}
			if found, ok := Resolve(ItemFields(f, i), path); ok {
				return found, true
			}
		}
	}
	return FieldDefinition{}, false
}

// IsEmpty reports whether v counts as "not provided": nil, an empty string,
// an empty list or an empty map.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
