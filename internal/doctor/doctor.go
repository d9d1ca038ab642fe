// Package doctor checks a loaded crispbridge configuration for settings
// that load cleanly but are risky or unusable, and can call the Crisp API
// with the configured credentials.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/mattjoyce/crispbridge/internal/config"
	"github.com/mattjoyce/crispbridge/internal/schema"
	"github.com/mattjoyce/crispbridge/internal/webhook"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// SchemaFetcher is the remote call used by the connectivity check.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) ([]byte, error)
}

// Doctor validates a configuration. remote may be nil to skip the remote check.
type Doctor struct {
	cfg    *config.Config
	remote SchemaFetcher
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config, remote SchemaFetcher) *Doctor {
	return &Doctor{cfg: cfg, remote: remote}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateListen(r)
	d.validateWebhook(r)
	d.validateFrameOrigins(r)
	d.warnTokenCache(r)
	d.warnOps(r)
	d.warnJournal(r)
	if d.remote != nil {
		d.checkRemote(ctx, r)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateListen(r *Result) {
	if _, _, err := net.SplitHostPort(d.cfg.Service.Listen); err != nil {
		d.addError(r, "service", "service.listen", fmt.Sprintf("not a host:port address: %v", err))
	}
}

func (d *Doctor) validateWebhook(r *Result) {
	if _, err := webhook.FromGlobalConfig(d.cfg); err != nil {
		d.addError(r, "webhook", "webhook.max_body_size", err.Error())
	}
	if d.cfg.Crisp.SigningSecret == "" {
		d.addWarning(r, "webhook", "crisp.signing_secret",
			"not set; webhook signatures will not be verified")
	}
}

func (d *Doctor) validateFrameOrigins(r *Result) {
	for i, origin := range d.cfg.Settings.AllowedFrameOrigins {
		field := fmt.Sprintf("settings.allowed_frame_origins[%d]", i)
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			d.addError(r, "settings", field, fmt.Sprintf("%q is not an origin (scheme://host)", origin))
			continue
		}
		if u.Path != "" && u.Path != "/" {
			d.addError(r, "settings", field, fmt.Sprintf("%q must not carry a path", origin))
			continue
		}
		if u.Scheme != "https" {
			d.addWarning(r, "settings", field, fmt.Sprintf("%q is not https", origin))
		}
	}
}

func (d *Doctor) warnTokenCache(r *Result) {
	if ttl := d.cfg.Settings.TokenCacheTTL; ttl > time.Hour {
		d.addWarning(r, "settings", "settings.token_cache_ttl",
			fmt.Sprintf("revoked tokens stay accepted for up to %s", ttl))
	}
}

func (d *Doctor) warnOps(r *Result) {
	key := d.cfg.Ops.APIKey
	if key != "" && len(key) < 16 {
		d.addWarning(r, "ops", "ops.api_key", "shorter than 16 characters")
	}
	if key == "" && d.cfg.Journal.Path != "" {
		d.addWarning(r, "ops", "ops.api_key", "journal enabled but /ops/webhooks is unreachable without a key")
	}
}

func (d *Doctor) warnJournal(r *Result) {
	if d.cfg.Journal.Path != "" && d.cfg.Journal.Retention == 0 {
		d.addWarning(r, "journal", "journal.retention", "0 keeps every webhook forever")
	}
}

func (d *Doctor) checkRemote(ctx context.Context, r *Result) {
	raw, err := d.remote.FetchSchema(ctx)
	if err != nil {
		d.addError(r, "crisp", "", fmt.Sprintf("settings schema fetch failed: %v", err))
		return
	}
	if len(schema.Render(raw)) == 0 {
		d.addWarning(r, "crisp", "", "settings schema has no renderable properties")
	}
}

// FormatHuman returns a human-readable summary.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
