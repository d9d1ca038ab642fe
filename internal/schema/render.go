package schema

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// MaxDepth bounds object/array descent so a hostile remote schema cannot
// drive unbounded recursion.
const MaxDepth = 10

var formatRules = map[string]bool{
	"email": true,
	"url":   true,
	"uuid":  true,
	"date":  true,
}

// Render converts a raw JSON Schema document into field definitions in
// property declaration order. A document without properties, or one that is
// not valid JSON, yields an empty list.
func Render(raw []byte) []FieldDefinition {
	if !gjson.ValidBytes(raw) {
		return []FieldDefinition{}
	}
	root := gjson.ParseBytes(raw)
	return renderProperties(root.Get("properties"), root.Get("required"), "", 0)
}

func renderProperties(props, required gjson.Result, prefix string, depth int) []FieldDefinition {
	fields := []FieldDefinition{}
	if !props.IsObject() {
		return fields
	}

	req := make(map[string]bool)
	required.ForEach(func(_, v gjson.Result) bool {
		req[v.String()] = true
		return true
	})

	index := make(map[string]int)
	props.ForEach(func(k, prop gjson.Result) bool {
		name := k.String()
		if !prop.IsObject() {
			return true
		}
		f := renderField(name, prefix+name, prop, req[name], depth)
		// Duplicate keys keep their first position but take the last value.
		if i, ok := index[name]; ok {
			fields[i] = f
			return true
		}
		index[name] = len(fields)
		fields = append(fields, f)
		return true
	})
	return fields
}

func renderField(name, key string, prop gjson.Result, required bool, depth int) FieldDefinition {
	declared := declaredType(prop)
	f := FieldDefinition{
		Key:          key,
		Type:         fieldType(prop, declared),
		DeclaredType: declared,
		Label:        prop.Get("title").String(),
		Description:  prop.Get("description").String(),
		Required:     required,
		Rules:        extractRules(prop, declared),
	}
	if f.Label == "" {
		f.Label = FormatLabel(name)
	}
	if d := prop.Get("default"); d.Exists() {
		f.Default = d.Value()
	}
	if enum := prop.Get("enum"); enum.IsArray() {
		f.Options = enumValues(enum)
	}
	f.Condition = extractCondition(prop)

	if depth+1 >= MaxDepth {
		return f
	}
	switch declared {
	case "object":
		f.Children = renderProperties(prop.Get("properties"), prop.Get("required"), key+".", depth+1)
	case "array":
		f.Items = renderItems(prop.Get("items"), depth+1)
	}
	return f
}

func renderItems(items gjson.Result, depth int) *ItemSchema {
	declared := "string"
	if items.IsObject() {
		declared = declaredType(items)
	}
	is := &ItemSchema{
		Type:         fieldType(items, declared),
		DeclaredType: declared,
		Rules:        extractRules(items, declared),
	}
	if enum := items.Get("enum"); enum.IsArray() {
		is.Enum = enumValues(enum)
	}
	if declared == "object" && depth+1 < MaxDepth {
		is.Properties = renderProperties(items.Get("properties"), items.Get("required"), "", depth+1)
	}
	return is
}

// declaredType returns the schema's declared type, defaulting to string.
// For union types the first non-null member wins.
func declaredType(prop gjson.Result) string {
	t := prop.Get("type")
	if t.IsArray() {
		for _, m := range t.Array() {
			if s := m.String(); s != "null" && s != "" {
				return s
			}
		}
		return "string"
	}
	if s := t.String(); s != "" {
		return s
	}
	return "string"
}

func fieldType(prop gjson.Result, declared string) FieldType {
	if prop.Get("enum").Exists() {
		return TypeSelect
	}
	if declared == "string" && prop.Get("format").String() == "textarea" {
		return TypeTextarea
	}
	return normalizeType(declared)
}

func extractRules(prop gjson.Result, declared string) []string {
	rules := []string{}

	switch declared {
	case "string":
		if v := prop.Get("minLength"); present(v) {
			rules = append(rules, "min:"+formatNumber(v))
		}
		if v := prop.Get("maxLength"); present(v) {
			rules = append(rules, "max:"+formatNumber(v))
		}
		if v := prop.Get("pattern"); present(v) {
			rules = append(rules, "regex:"+v.String())
		}
		if format := prop.Get("format").String(); formatRules[format] {
			rules = append(rules, format)
		}
	case "number", "integer":
		rules = append(rules, RuleNumeric)
		if v := prop.Get("minimum"); present(v) {
			rules = append(rules, "min:"+formatNumber(v))
		}
		if v := prop.Get("maximum"); present(v) {
			rules = append(rules, "max:"+formatNumber(v))
		}
	case "boolean":
		rules = append(rules, RuleBoolean)
	}

	if enum := prop.Get("enum"); enum.IsArray() {
		parts := make([]string, 0, len(enum.Array()))
		for _, v := range enum.Array() {
			parts = append(parts, v.String())
		}
		if strings.Contains(strings.Join(parts, ""), ",") {
			rules = append(rules, "in:"+prop.Get("enum|@ugly").Raw)
		} else {
			rules = append(rules, "in:"+strings.Join(parts, ","))
		}
	}
	return rules
}

func extractCondition(prop gjson.Result) *Condition {
	c := prop.Get("x-condition")
	if !c.IsObject() {
		return nil
	}
	op := Operator(c.Get("operator").String())
	if op == "" {
		op = OpEquals
	}
	return &Condition{
		Field:    c.Get("field").String(),
		Operator: op,
		Value:    c.Get("value").Value(),
	}
}

func enumValues(enum gjson.Result) []any {
	arr := enum.Array()
	out := make([]any, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.Value())
	}
	return out
}

func formatNumber(v gjson.Result) string {
	if v.Type != gjson.Number {
		return v.String()
	}
	return strconv.FormatFloat(v.Float(), 'f', -1, 64)
}

// FormatLabel turns a property key into a human readable label:
// underscores become spaces and the first letter is upper-cased.
func FormatLabel(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}
