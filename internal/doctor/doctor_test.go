package doctor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/crispbridge/internal/config"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Crisp.PluginID = "plug"
	cfg.Crisp.TokenID = "id"
	cfg.Crisp.TokenKey = "key"
	cfg.Crisp.SigningSecret = "secret"
	return cfg
}

type fakeFetcher struct {
	raw []byte
	err error
}

func (f fakeFetcher) FetchSchema(context.Context) ([]byte, error) { return f.raw, f.err }

func hasIssue(issues []Issue, field string) bool {
	for _, i := range issues {
		if i.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), nil).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
}

func TestValidate_MissingSecretWarns(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Crisp.SigningSecret = ""

	r := New(cfg, nil).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("missing secret must not be an error: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "crisp.signing_secret") {
		t.Fatalf("expected signing secret warning, got %v", r.Warnings)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"bad listen", func(c *config.Config) { c.Service.Listen = "8080" }, "service.listen"},
		{"bad body size", func(c *config.Config) { c.Webhook.MaxBodySize = "huge" }, "webhook.max_body_size"},
		{"origin without scheme", func(c *config.Config) { c.Settings.AllowedFrameOrigins = []string{"app.crisp.chat"} }, "settings.allowed_frame_origins[0]"},
		{"origin with path", func(c *config.Config) { c.Settings.AllowedFrameOrigins = []string{"https://a.example/x"} }, "settings.allowed_frame_origins[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			r := New(cfg, nil).Validate(context.Background())
			if r.Valid {
				t.Fatal("expected invalid")
			}
			if !hasIssue(r.Errors, tt.field) {
				t.Fatalf("expected error on %s, got %v", tt.field, r.Errors)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Settings.AllowedFrameOrigins = []string{"http://localhost:3000"}
	cfg.Settings.TokenCacheTTL = 2 * time.Hour
	cfg.Ops.APIKey = "short"
	cfg.Journal.Path = "/tmp/j.db"
	cfg.Journal.Retention = 0

	r := New(cfg, nil).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("expected valid, got %v", r.Errors)
	}
	for _, field := range []string{
		"settings.allowed_frame_origins[0]",
		"settings.token_cache_ttl",
		"ops.api_key",
		"journal.retention",
	} {
		if !hasIssue(r.Warnings, field) {
			t.Errorf("expected warning on %s", field)
		}
	}
}

func TestValidate_RemoteCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := New(validConfig(), fakeFetcher{raw: []byte(`{"properties":{"a":{"type":"string"}}}`)}).Validate(ctx)
	if !r.Valid || len(r.Warnings) != 0 {
		t.Fatalf("expected clean result, got %+v", r)
	}

	r = New(validConfig(), fakeFetcher{err: errors.New("crisp: fetch schema: unauthorized (status 401)")}).Validate(ctx)
	if r.Valid {
		t.Fatal("expected remote check failure to invalidate")
	}

	r = New(validConfig(), fakeFetcher{raw: []byte(`{"properties":{}}`)}).Validate(ctx)
	if !r.Valid || len(r.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", r)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	r := &Result{Valid: true}
	if got := FormatHuman(r); got != "Configuration valid.\n" {
		t.Fatalf("unexpected output: %q", got)
	}

	r = &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "service", Field: "service.listen", Message: "bad"}},
		Warnings: []Issue{{Category: "crisp", Message: "empty"}},
	}
	out := FormatHuman(r)
	if !strings.Contains(out, "Configuration invalid (1 error(s), 1 warning(s))") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "ERROR [service] service.listen: bad") || !strings.Contains(out, "WARN  [crisp] empty") {
		t.Fatalf("missing issues: %q", out)
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("unexpected JSON: %s", out)
	}
}
