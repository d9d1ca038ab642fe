package api

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/mattjoyce/crispbridge/internal/schema"
	"github.com/mattjoyce/crispbridge/internal/settings"
)

// fieldTemplates maps each field type to its input template. Unlisted
// types render as a plain text input.
var fieldTemplates = map[schema.FieldType]string{
	schema.TypeString:   "field-string",
	schema.TypeNumber:   "field-number",
	schema.TypeInteger:  "field-number",
	schema.TypeBoolean:  "field-boolean",
	schema.TypeSelect:   "field-select",
	schema.TypeTextarea: "field-textarea",
	schema.TypeObject:   "field-object",
	schema.TypeArray:    "field-array",
}

func templateFor(t schema.FieldType) string {
	if name, ok := fieldTemplates[t]; ok {
		return name
	}
	return "field-string"
}

type pageView struct {
	Action         string
	WebsiteID      string
	SuccessMessage string
	ErrorMessage   string
	Fields         []fieldView
}

type fieldView struct {
	Key         string
	Name        string
	ID          string
	Label       string
	Description string
	Required    bool
	Present     bool
	Text        string
	Checked     bool
	Step        string
	Error       string
	Options     []optionView
	Children    []fieldView
	Items       []itemView

	template string
}

type itemView struct {
	Key    string
	Index  int
	Fields []fieldView
}

type optionView struct {
	Value    string
	Selected bool
}

var pageTemplate *template.Template

func init() {
	pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
		"field": renderField,
	}).Parse(pageHTML))
}

// renderField executes the template chosen for v. Output comes from
// html/template, so it is already escaped.
func renderField(v fieldView) (template.HTML, error) {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, v.template, v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func newPageView(form *settings.Form, action string) pageView {
	return pageView{
		Action:         action,
		WebsiteID:      form.WebsiteID,
		SuccessMessage: form.SuccessMessage,
		ErrorMessage:   form.ErrorMessage,
		Fields:         buildFields(form, form.Fields, false),
	}
}

// buildFields turns definitions into views. Fields hidden by a condition,
// and everything beneath them, become hidden inputs so their values
// survive the round trip.
func buildFields(form *settings.Form, fields []schema.FieldDefinition, hidden bool) []fieldView {
	out := make([]fieldView, 0, len(fields))
	for _, f := range fields {
		visible := !hidden && form.IsVisible(f)
		value, present := schema.Lookup(form.Settings, f.Key)

		v := fieldView{
			Key:         f.Key,
			Name:        settings.FormPrefix + f.Key,
			ID:          "f-" + strings.ReplaceAll(f.Key, ".", "-"),
			Label:       f.Label,
			Description: f.Description,
			Required:    f.Required,
			Present:     present,
			Text:        formatValue(value),
			Error:       form.FieldErrors.First(f.Key),
			template:    templateFor(f.Type),
		}

		switch f.Type {
		case schema.TypeObject:
			v.Children = buildFields(form, f.Children, !visible)
		case schema.TypeArray:
			list, _ := value.([]any)
			for i := range list {
				v.Items = append(v.Items, itemView{
					Key:    f.Key,
					Index:  i,
					Fields: buildFields(form, schema.ItemFields(f, i), !visible),
				})
			}
		case schema.TypeBoolean:
			v.Checked = value == true
			v.Text = "0"
			if v.Checked {
				v.Text = "1"
			}
		case schema.TypeNumber:
			v.Step = "any"
		case schema.TypeInteger:
			v.Step = "1"
		case schema.TypeSelect:
			for _, opt := range f.Options {
				text := formatValue(opt)
				v.Options = append(v.Options, optionView{Value: text, Selected: present && text == v.Text})
			}
		}

		if !visible {
			switch f.Type {
			case schema.TypeObject, schema.TypeArray:
				v.template = "field-hidden-group"
			default:
				v.template = "field-hidden"
			}
		}
		out = append(out, v)
	}
	return out
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Plugin settings</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;margin:0;padding:24px;color:#1c293b;background:#fff}
main{max-width:640px}
.notice{padding:10px 14px;border-radius:6px;margin-bottom:16px}
.success{background:#e8f7ee;color:#17663a}
.error{background:#fdecec;color:#a61b1b}
.field{margin-bottom:16px}
label{display:block;font-weight:600;margin-bottom:4px}
.req{color:#a61b1b}
.help{font-size:13px;color:#5c6b7e;margin:4px 0 0}
.field-error{font-size:13px;color:#a61b1b;margin:4px 0 0}
input[type=text],input[type=number],select,textarea{width:100%;box-sizing:border-box;padding:8px;border:1px solid #c9d2de;border-radius:6px}
fieldset{border:1px solid #dde3ea;border-radius:6px;margin:0 0 16px;padding:12px}
.item{border-bottom:1px dashed #dde3ea;padding-bottom:8px;margin-bottom:8px}
.actions button{margin-right:8px}
</style>
</head>
<body>
<main>
{{with .SuccessMessage}}<div class="notice success" role="status">{{.}}</div>{{end}}
{{with .ErrorMessage}}<div class="notice error" role="alert">{{.}}</div>{{end}}
<form method="post" action="{{.Action}}">
{{range .Fields}}{{field .}}
{{end}}
<div class="actions">
{{if .Fields}}<button type="submit" name="action" value="save">Save</button>{{end}}
<button type="submit" name="action" value="reload">Reload</button>
</div>
</form>
</main>
</body>
</html>
{{define "label"}}<label for="{{.ID}}">{{.Label}}{{if .Required}} <span class="req">*</span>{{end}}</label>{{end}}
{{define "help"}}{{with .Description}}<p class="help">{{.}}</p>{{end}}{{with .Error}}<p class="field-error">{{.}}</p>{{end}}{{end}}
{{define "field-string"}}<div class="field">{{template "label" .}}<input type="text" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}">{{template "help" .}}</div>{{end}}
{{define "field-number"}}<div class="field">{{template "label" .}}<input type="number" step="{{.Step}}" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}">{{template "help" .}}</div>{{end}}
{{define "field-textarea"}}<div class="field">{{template "label" .}}<textarea id="{{.ID}}" name="{{.Name}}" rows="4">{{.Text}}</textarea>{{template "help" .}}</div>{{end}}
{{define "field-boolean"}}<div class="field"><input type="hidden" name="{{.Name}}" value="0"><label for="{{.ID}}"><input type="checkbox" id="{{.ID}}" name="{{.Name}}" value="1"{{if .Checked}} checked{{end}}> {{.Label}}{{if .Required}} <span class="req">*</span>{{end}}</label>{{template "help" .}}</div>{{end}}
{{define "field-select"}}<div class="field">{{template "label" .}}<select id="{{.ID}}" name="{{.Name}}">{{if not .Required}}<option value=""></option>{{end}}{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Value}}</option>{{end}}</select>{{template "help" .}}</div>{{end}}
{{define "field-object"}}<fieldset id="{{.ID}}"><legend>{{.Label}}{{if .Required}} <span class="req">*</span>{{end}}</legend>{{template "help" .}}{{range .Children}}{{field .}}{{end}}</fieldset>{{end}}
{{define "field-array"}}<fieldset id="{{.ID}}"><legend>{{.Label}}{{if .Required}} <span class="req">*</span>{{end}}</legend>{{template "help" .}}{{range .Items}}<div class="item">{{range .Fields}}{{field .}}{{end}}<button type="submit" name="action" value="remove:{{.Key}}:{{.Index}}">Remove</button></div>{{end}}<button type="submit" name="action" value="add:{{.Key}}">Add item</button></fieldset>{{end}}
{{define "field-hidden"}}{{if .Present}}<input type="hidden" name="{{.Name}}" value="{{.Text}}">{{end}}{{end}}
{{define "field-hidden-group"}}{{range .Children}}{{field .}}{{end}}{{range .Items}}{{range .Fields}}{{field .}}{{end}}{{end}}{{end}}
`
