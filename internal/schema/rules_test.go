package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRules_RequiredAndNullable(t *testing.T) {
	fields := Render([]byte(simpleSchema))
	rules := BuildRules(fields, Document{})

	assert.Equal(t, RuleSet{
		"api_key": {"required", "max:100"},
		"enabled": {"nullable", "boolean"},
	}, rules)
}

func TestBuildRules_HiddenFieldsExcluded(t *testing.T) {
	raw := `{"properties":{
		"enabled":{"type":"boolean"},
		"email":{"type":"string","format":"email","x-condition":{"field":"enabled","value":true}}
	},"required":["email"]}`
	fields := Render([]byte(raw))

	hidden := BuildRules(fields, Document{"enabled": false})
	_, ok := hidden["email"]
	assert.False(t, ok, "hidden required field must not produce rules")

	shown := BuildRules(fields, Document{"enabled": true})
	assert.Equal(t, []string{"required", "email"}, shown["email"])
}

func TestBuildRules_NestedAndArrays(t *testing.T) {
	fields := Render([]byte(nestedSchema))
	doc := Document{
		"general": map[string]any{"app_name": "demo"},
		"notifications": map[string]any{
			"enabled": false,
		},
		"webhooks": []any{
			map[string]any{"url": "https://a.example"},
			map[string]any{"url": ""},
		},
	}

	rules := BuildRules(fields, doc)

	assert.Equal(t, []string{"required"}, rules["general.app_name"])
	assert.Equal(t, []string{"nullable", "numeric", "min:1"}, rules["general.timeout"])
	assert.Equal(t, []string{"nullable", "boolean"}, rules["notifications.enabled"])
	_, emailRule := rules["notifications.email"]
	assert.False(t, emailRule)
	assert.Equal(t, []string{"required", "url"}, rules["webhooks.0.url"])
	assert.Equal(t, []string{"required", "url"}, rules["webhooks.1.url"])
	assert.Equal(t, []string{"nullable"}, rules["webhooks.1.secret"])
	_, third := rules["webhooks.2.url"]
	assert.False(t, third)
}

func TestBuildRules_AbsentOptionalObjectSkipsChildren(t *testing.T) {
	fields := Render([]byte(nestedSchema))
	rules := BuildRules(fields, Document{})

	_, ok := rules["general.app_name"]
	assert.False(t, ok)
	assert.Equal(t, []string{"nullable"}, rules["general"])
}

func TestInstances_ScalarItems(t *testing.T) {
	fields := Render([]byte(`{"properties":{"ports":{"type":"array","items":{"type":"integer","maximum":10}}}}`))
	require.Len(t, fields, 1)

	inst := Instances(fields[0], Document{"ports": []any{float64(1), float64(2)}})
	require.Len(t, inst, 2)
	assert.Equal(t, "ports.0", inst[0].Key)
	assert.Equal(t, "ports.1", inst[1].Key)
	assert.Equal(t, "Item 2", inst[1].Label)
	assert.Equal(t, TypeInteger, inst[0].Type)
	assert.Equal(t, []string{"numeric", "max:10"}, inst[0].Rules)
}

func TestInstances_NotAList(t *testing.T) {
	fields := Render([]byte(`{"properties":{"tags":{"type":"array","items":{"type":"string"}}}}`))
	assert.Empty(t, Instances(fields[0], Document{"tags": "oops"}))
	assert.Empty(t, Instances(fields[0], Document{}))
}

func TestLabels(t *testing.T) {
	labels := Labels(Render([]byte(simpleSchema)), Document{})
	assert.Equal(t, "API Key", labels["api_key"])
	assert.Equal(t, "Enabled", labels["enabled"])
}

func TestItemDefault(t *testing.T) {
	assert.Equal(t, "", ItemDefault("string"))
	assert.Equal(t, float64(0), ItemDefault("integer"))
	assert.Equal(t, float64(0), ItemDefault("number"))
	assert.Equal(t, false, ItemDefault("boolean"))
	assert.Equal(t, map[string]any{}, ItemDefault("object"))
	assert.Nil(t, ItemDefault("geo"))
}
