package schema

// FieldType is the closed set of renderable field kinds.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeInteger  FieldType = "integer"
	TypeBoolean  FieldType = "boolean"
	TypeSelect   FieldType = "select"
	TypeTextarea FieldType = "textarea"
	TypeObject   FieldType = "object"
	TypeArray    FieldType = "array"
)

// normalizeType maps a declared JSON Schema type onto a FieldType.
// Types this package does not know fall back to string so new remote
// schema types still render as plain inputs.
func normalizeType(declared string) FieldType {
	switch t := FieldType(declared); t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
		return t
	default:
		return TypeString
	}
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
)

// Condition ties a field's visibility to another field's current value.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// ItemSchema describes the element type of an array field.
type ItemSchema struct {
	Type         FieldType `json:"type"`
	DeclaredType string    `json:"declared_type"`
	Enum         []any     `json:"enum,omitempty"`
	Rules        []string  `json:"rules,omitempty"`
	// Properties holds object item fields keyed relative to the item.
	Properties []FieldDefinition `json:"properties,omitempty"`
}

// FieldDefinition is one renderable and validatable unit derived from a
// schema property.
type FieldDefinition struct {
	Key          string            `json:"key"`
	Type         FieldType         `json:"type"`
	DeclaredType string            `json:"declared_type"`
	Label        string            `json:"label"`
	Description  string            `json:"description,omitempty"`
	Required     bool              `json:"required"`
	Default      any               `json:"default"`
	Rules        []string          `json:"rules"`
	Options      []any             `json:"options"`
	Children     []FieldDefinition `json:"children,omitempty"`
	Items        *ItemSchema       `json:"items,omitempty"`
	Condition    *Condition        `json:"condition,omitempty"`
}

// Document is a settings document addressed by dotted paths.
type Document = map[string]any

// RuleSet maps dotted field paths to ordered rule tokens.
type RuleSet map[string][]string

// Rule tokens shared with the validator.
const (
	RuleRequired = "required"
	RuleNullable = "nullable"
	RuleNumeric  = "numeric"
	RuleBoolean  = "boolean"
)

// ItemDefault returns the value appended by "add item" for an array of
// the given declared item type.
func ItemDefault(itemType string) any {
	switch itemType {
	case "string":
		return ""
	case "number", "integer":
		return float64(0)
	case "boolean":
		return false
	case "object":
		return map[string]any{}
	default:
		return nil
	}
}
