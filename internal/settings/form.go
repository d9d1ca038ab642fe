// Package settings drives the schema-backed settings editor: loading the
// remote schema and document, applying edits, and saving them back.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/mattjoyce/crispbridge/internal/crisp"
	"github.com/mattjoyce/crispbridge/internal/metrics"
	"github.com/mattjoyce/crispbridge/internal/schema"
	"github.com/mattjoyce/crispbridge/internal/validation"
)

// User-facing messages.
const (
	MsgSchemaUnavailable = "Unable to load settings schema. Please try again later."
	MsgLoadFailed        = "Failed to load settings: "
	MsgSaved             = "Settings saved successfully!"
	MsgAPIError          = "Crisp API Error: "
	MsgUnexpected        = "An unexpected error occurred. Please try again."
)

// FormPrefix prefixes every posted settings input name.
const FormPrefix = "settings."

// Client is the subset of the Crisp API the editor needs.
type Client interface {
	FetchSchema(ctx context.Context) ([]byte, error)
	FetchSettings(ctx context.Context, websiteID string) (map[string]any, error)
	SaveSettings(ctx context.Context, websiteID string, doc map[string]any) error
}

// Controller creates request-scoped forms sharing one client and renderer.
type Controller struct {
	client   Client
	renderer *schema.Renderer
	logger   *slog.Logger
}

// NewController returns a Controller. renderer may be nil.
func NewController(client Client, renderer *schema.Renderer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{client: client, renderer: renderer, logger: logger}
}

// NewForm returns an unloaded form for websiteID.
func (c *Controller) NewForm(websiteID string) *Form {
	return &Form{
		WebsiteID: websiteID,
		Settings:  schema.Document{},
		c:         c,
	}
}

// State is the form lifecycle position.
type State int

const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// Form is one editor session's state. It is not safe for concurrent use.
type Form struct {
	WebsiteID      string
	Fields         []schema.FieldDefinition
	Settings       schema.Document
	SuccessMessage string
	ErrorMessage   string
	FieldErrors    validation.Errors

	state        State
	schemaLoaded bool
	remote       schema.Document // settings as fetched, nil until a fetch succeeds
	c            *Controller
}

// State reports the lifecycle state.
func (f *Form) State() State { return f.state }

// Load fetches the schema and current settings, then fills in schema
// defaults for absent keys. Failures end in StateReady with ErrorMessage set.
func (f *Form) Load(ctx context.Context) {
	f.reset()
	defer func() { f.state = StateReady }()

	if !f.loadSchema(ctx) {
		return
	}

	doc, err := f.c.client.FetchSettings(ctx, f.WebsiteID)
	if err != nil {
		f.ErrorMessage = MsgLoadFailed + reason(err)
		f.c.logger.Error("settings load failed", "website_id", f.WebsiteID, "error", err)
		return
	}
	f.remote = schema.Clone(doc)
	f.Settings = schema.Clone(doc)
	mergeDefaults(f.Settings, f.Fields)
}

// Reload discards in-memory edits and loads again from the remote side.
func (f *Form) Reload(ctx context.Context) {
	f.Load(ctx)
}

// Restore rebuilds a form from a posted submission. Keys the schema
// describes are decoded from values; every other key keeps its remote value.
func (f *Form) Restore(ctx context.Context, values url.Values) {
	f.reset()
	defer func() { f.state = StateReady }()

	if !f.loadSchema(ctx) {
		return
	}

	doc, err := f.c.client.FetchSettings(ctx, f.WebsiteID)
	if err != nil {
		f.ErrorMessage = MsgLoadFailed + reason(err)
		f.c.logger.Error("settings load failed", "website_id", f.WebsiteID, "error", err)
	} else {
		f.remote = schema.Clone(doc)
		f.Settings = schema.Clone(doc)
		dropDescribed(f.Settings, f.Fields)
	}
	f.ApplyForm(values)
}

// dropDescribed removes every key a field describes, leaving only keys the
// schema does not know about.
func dropDescribed(doc schema.Document, fields []schema.FieldDefinition) {
	for _, field := range fields {
		if field.Type == schema.TypeObject {
			if _, ok := schema.Lookup(doc, field.Key); ok {
				dropDescribed(doc, field.Children)
				if v, _ := schema.Lookup(doc, field.Key); schema.IsEmpty(v) {
					schema.Delete(doc, field.Key)
				}
			}
			continue
		}
		schema.Delete(doc, field.Key)
	}
}

func (f *Form) reset() {
	f.state = StateLoading
	f.schemaLoaded = false
	f.Fields = nil
	f.Settings = schema.Document{}
	f.remote = nil
	f.SuccessMessage = ""
	f.ErrorMessage = ""
	f.FieldErrors = nil
}

func (f *Form) loadSchema(ctx context.Context) bool {
	raw, err := f.c.client.FetchSchema(ctx)
	if err != nil || len(raw) == 0 {
		f.ErrorMessage = MsgSchemaUnavailable
		if err != nil && !errors.Is(err, crisp.ErrEmptySchema) {
			f.c.logger.Error("settings schema fetch failed", "website_id", f.WebsiteID, "error", err)
		}
		return false
	}

	if f.c.renderer != nil {
		f.Fields = f.c.renderer.Render(raw)
	} else {
		f.Fields = schema.Render(raw)
	}
	f.schemaLoaded = true
	return true
}

// mergeDefaults sets each field's default where the document has no value
// at that key. Fetched values always win, falsy ones included.
func mergeDefaults(doc schema.Document, fields []schema.FieldDefinition) {
	for _, field := range fields {
		if _, ok := schema.Lookup(doc, field.Key); !ok && field.Default != nil {
			schema.Set(doc, field.Key, field.Default)
		}
		if field.Type == schema.TypeObject {
			if _, ok := schema.Lookup(doc, field.Key); ok {
				mergeDefaults(doc, field.Children)
			}
		}
	}
}

// IsVisible reports whether field should be shown for the current values.
func (f *Form) IsVisible(field schema.FieldDefinition) bool {
	return schema.IsVisible(field, f.Settings)
}

// AddArrayItem appends a default-shaped element to the array at key.
// Unknown keys and non-array fields are ignored.
func (f *Form) AddArrayItem(key string) {
	field, ok := schema.Resolve(f.Fields, key)
	if !ok || field.Type != schema.TypeArray {
		return
	}
	itemType := "string"
	if field.Items != nil && field.Items.DeclaredType != "" {
		itemType = field.Items.DeclaredType
	}

	current, _ := schema.Lookup(f.Settings, key)
	list, _ := current.([]any)
	next := make([]any, len(list), len(list)+1)
	copy(next, list)
	schema.Set(f.Settings, key, append(next, schema.ItemDefault(itemType)))
}

// RemoveArrayItem deletes element index from the array at key and closes
// the gap. Out-of-range indexes are ignored.
func (f *Form) RemoveArrayItem(key string, index int) {
	current, ok := schema.Lookup(f.Settings, key)
	if !ok {
		return
	}
	list, ok := current.([]any)
	if !ok || index < 0 || index >= len(list) {
		return
	}

	next := make([]any, 0, len(list)-1)
	next = append(next, list[:index]...)
	next = append(next, list[index+1:]...)
	schema.Set(f.Settings, key, next)

	for k := range f.FieldErrors {
		if strings.HasPrefix(k, key+".") {
			delete(f.FieldErrors, k)
		}
	}
}

// Save validates the visible fields and writes the document back. It
// reports whether the remote save succeeded.
func (f *Form) Save(ctx context.Context) bool {
	f.SuccessMessage = ""
	f.FieldErrors = nil

	if !f.schemaLoaded {
		f.ErrorMessage = MsgSchemaUnavailable
		return false
	}
	if f.remote == nil {
		if f.ErrorMessage == "" {
			f.ErrorMessage = MsgLoadFailed + "settings were not loaded"
		}
		return false
	}

	rules := schema.BuildRules(f.Fields, f.Settings)
	if errs := validation.Validate(f.Settings, rules, schema.Labels(f.Fields, f.Settings)); len(errs) > 0 {
		f.FieldErrors = errs
		metrics.SettingsSaves.WithLabelValues("invalid").Inc()
		return false
	}

	err := f.c.client.SaveSettings(ctx, f.WebsiteID, f.Settings)
	if err == nil {
		f.SuccessMessage = MsgSaved
		f.ErrorMessage = ""
		metrics.SettingsSaves.WithLabelValues("saved").Inc()
		f.c.logger.Info("settings saved", "website_id", f.WebsiteID)
		return true
	}

	var apiErr *crisp.APIError
	if errors.As(err, &apiErr) {
		f.ErrorMessage = MsgAPIError + apiErr.Reason
		metrics.SettingsSaves.WithLabelValues("rejected").Inc()
		f.c.logger.Error("settings save rejected", "website_id", f.WebsiteID, "status", apiErr.Status, "error", apiErr.Reason)
		return false
	}

	f.ErrorMessage = MsgUnexpected
	metrics.SettingsSaves.WithLabelValues("error").Inc()
	f.c.logger.Error("settings save failed", "website_id", f.WebsiteID, "error", err)
	return false
}

// ApplyForm decodes posted settings.<path> inputs into the document,
// coercing each value by the type of the field it addresses. Inputs that
// match no field are ignored. A blank input for a key the remote settings
// never had leaves the key absent.
func (f *Form) ApplyForm(values url.Values) {
	for name, vals := range values {
		path, ok := strings.CutPrefix(name, FormPrefix)
		if !ok || len(vals) == 0 {
			continue
		}
		field, ok := schema.Resolve(f.Fields, path)
		if !ok || field.Type == schema.TypeObject || field.Type == schema.TypeArray {
			continue
		}
		raw := vals[len(vals)-1]
		if field.Type != schema.TypeBoolean && strings.TrimSpace(raw) == "" && !f.hadRemote(path) && !inList(path) {
			schema.Delete(f.Settings, path)
			continue
		}
		schema.Set(f.Settings, path, coerce(field, raw))
	}

	for _, field := range f.Fields {
		if field.Type != schema.TypeArray {
			continue
		}
		if _, ok := schema.Lookup(f.Settings, field.Key); !ok {
			schema.Set(f.Settings, field.Key, []any{})
		}
	}
}

func (f *Form) hadRemote(path string) bool {
	_, ok := schema.Lookup(f.remote, path)
	return ok
}

// inList reports whether path addresses an array element. Blank elements
// keep their slot so later indexes do not shift.
func inList(path string) bool {
	for _, seg := range strings.Split(path, ".") {
		if _, err := strconv.Atoi(seg); err == nil {
			return true
		}
	}
	return false
}

func coerce(field schema.FieldDefinition, raw string) any {
	switch field.Type {
	case schema.TypeNumber, schema.TypeInteger:
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
		return raw
	case schema.TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	case schema.TypeSelect:
		for _, opt := range field.Options {
			if optionText(opt) == raw {
				return opt
			}
		}
		return raw
	}
	return raw
}

func optionText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// reason extracts a user-presentable reason from a remote failure.
func reason(err error) string {
	var apiErr *crisp.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason
	}
	return "the settings service could not be reached"
}
