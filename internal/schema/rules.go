package schema

import "strconv"

// Instances expands an array field into one field definition per element
// currently held in values. Object items yield their properties keyed
// key.index.prop; scalar items yield a single key.index field.
func Instances(field FieldDefinition, values Document) []FieldDefinition {
	if field.Type != TypeArray || field.Items == nil {
		return nil
	}
	raw, _ := Lookup(values, field.Key)
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]FieldDefinition, 0, len(list))
	for i := range list {
		out = append(out, ItemFields(field, i)...)
	}
	return out
}

// ItemFields returns the field definitions for element index of an array
// field: the item's properties for object items, else one scalar field.
func ItemFields(field FieldDefinition, index int) []FieldDefinition {
	if field.Items == nil {
		return nil
	}
	prefix := field.Key + "." + strconv.Itoa(index)
	if field.Items.DeclaredType == "object" {
		return rekey(field.Items.Properties, prefix+".")
	}
	return []FieldDefinition{{
		Key:          prefix,
		Type:         field.Items.Type,
		DeclaredType: field.Items.DeclaredType,
		Label:        "Item " + strconv.Itoa(index+1),
		Rules:        field.Items.Rules,
		Options:      field.Items.Enum,
	}}
}

func rekey(fields []FieldDefinition, prefix string) []FieldDefinition {
	out := make([]FieldDefinition, len(fields))
	for i, f := range fields {
		f.Key = prefix + f.Key
		if len(f.Children) > 0 {
			f.Children = rekey(f.Children, prefix)
		}
		out[i] = f
	}
	return out
}

// BuildRules derives the rule set for every field visible under values.
// Required fields lead with "required", the rest with "nullable", followed
// by the field's own constraint rules. Hidden fields are left out entirely.
func BuildRules(fields []FieldDefinition, values Document) RuleSet {
	rs := RuleSet{}
	walkVisible(fields, values, func(f FieldDefinition) {
		tokens := make([]string, 0, len(f.Rules)+1)
		if f.Required {
			tokens = append(tokens, RuleRequired)
		} else {
			tokens = append(tokens, RuleNullable)
		}
		rs[f.Key] = append(tokens, f.Rules...)
	})
	return rs
}

// Labels maps each visible field key to its display label.
func Labels(fields []FieldDefinition, values Document) map[string]string {
	labels := make(map[string]string)
	walkVisible(fields, values, func(f FieldDefinition) {
		labels[f.Key] = f.Label
	})
	return labels
}

// walkVisible visits visible fields depth first. Object children are only
// visited when the object is present or required; array fields expand to
// their current instances.
func walkVisible(fields []FieldDefinition, values Document, visit func(FieldDefinition)) {
	for _, f := range fields {
		if !IsVisible(f, values) {
			continue
		}
		visit(f)
		switch f.Type {
		case TypeObject:
			if _, ok := Lookup(values, f.Key); ok || f.Required {
				walkVisible(f.Children, values, visit)
			}
		case TypeArray:
			walkVisible(Instances(f, values), values, visit)
		}
	}
}
