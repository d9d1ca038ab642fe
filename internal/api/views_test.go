package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/crispbridge/internal/schema"
	"github.com/mattjoyce/crispbridge/internal/settings"
)

func TestTemplateFor(t *testing.T) {
	assert.Equal(t, "field-boolean", templateFor(schema.TypeBoolean))
	assert.Equal(t, "field-number", templateFor(schema.TypeInteger))
	assert.Equal(t, "field-string", templateFor(schema.FieldType("color")))

	for typ, name := range fieldTemplates {
		assert.NotNil(t, pageTemplate.Lookup(name), "type %s", typ)
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "3", formatValue(float64(3)))
	assert.Equal(t, "2.5", formatValue(2.5))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, "x", formatValue("x"))
}

const viewSchema = `{
  "properties": {
    "notes": {"type": "string", "format": "textarea", "description": "Shown <b>raw</b>?"},
    "level": {"type": "integer", "enum": [1, 2, 3]},
    "mode": {"type": "string", "enum": ["a", "b"]},
    "advanced": {
      "type": "object",
      "x-condition": {"field": "mode", "value": "b"},
      "properties": {"depth": {"type": "number"}}
    },
    "hooks": {
      "type": "array",
      "x-condition": {"field": "mode", "value": "b"},
      "items": {"type": "object", "properties": {"url": {"type": "string"}}}
    }
  },
  "required": ["level"]
}`

type staticClient struct{ doc map[string]any }

func (c staticClient) FetchSchema(context.Context) ([]byte, error) { return []byte(viewSchema), nil }
func (c staticClient) FetchSettings(context.Context, string) (map[string]any, error) {
	return c.doc, nil
}
func (c staticClient) SaveSettings(context.Context, string, map[string]any) error { return nil }

func TestBuildFields(t *testing.T) {
	doc := map[string]any{
		"notes":    "<script>",
		"level":    float64(2),
		"mode":     "a",
		"advanced": map[string]any{"depth": 1.5},
		"hooks":    []any{map[string]any{"url": "https://h.example"}},
	}
	form := settings.NewController(staticClient{doc: doc}, nil, discardLogger()).NewForm("s")
	form.Load(context.Background())
	require.Empty(t, form.ErrorMessage)

	views := buildFields(form, form.Fields, false)
	byKey := map[string]fieldView{}
	for _, v := range views {
		byKey[v.Key] = v
	}

	assert.Equal(t, "field-textarea", byKey["notes"].template)
	assert.Equal(t, "<script>", byKey["notes"].Text)

	level := byKey["level"]
	assert.Equal(t, "field-select", level.template)
	require.Len(t, level.Options, 3)
	assert.True(t, level.Options[1].Selected)
	assert.False(t, level.Options[0].Selected)

	adv := byKey["advanced"]
	assert.Equal(t, "field-hidden-group", adv.template)
	require.Len(t, adv.Children, 1)
	assert.Equal(t, "field-hidden", adv.Children[0].template)
	assert.Equal(t, "1.5", adv.Children[0].Text)

	hooks := byKey["hooks"]
	assert.Equal(t, "field-hidden-group", hooks.template)
	require.Len(t, hooks.Items, 1)
	assert.Equal(t, "hooks.0.url", hooks.Items[0].Fields[0].Key)
	assert.Equal(t, "field-hidden", hooks.Items[0].Fields[0].template)

	html, err := renderField(byKey["notes"])
	require.NoError(t, err)
	assert.Contains(t, string(html), "&lt;script&gt;")
	assert.Contains(t, string(html), "Shown &lt;b&gt;raw&lt;/b&gt;?")

	html, err = renderField(hooks)
	require.NoError(t, err)
	assert.Contains(t, string(html), `<input type="hidden" name="settings.hooks.0.url" value="https://h.example">`)
}
