package webhook

import (
	"testing"

	"github.com/mattjoyce/crispbridge/internal/config"
)

func TestFromGlobalConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Crisp.SigningSecret = "secret"

	got, err := FromGlobalConfig(cfg)
	if err != nil {
		t.Fatalf("FromGlobalConfig() failed: %v", err)
	}
	if got.Path != "/crisp/webhook" {
		t.Errorf("Path = %q, want /crisp/webhook", got.Path)
	}
	if got.Secret != "secret" {
		t.Errorf("Secret = %q", got.Secret)
	}
	if got.MaxBodySize != 1024*1024 {
		t.Errorf("MaxBodySize = %d, want 1MB", got.MaxBodySize)
	}
}

func TestFromGlobalConfig_Errors(t *testing.T) {
	if _, err := FromGlobalConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := config.Defaults()
	cfg.Webhook.MaxBodySize = "lots"
	if _, err := FromGlobalConfig(cfg); err == nil {
		t.Error("expected error for invalid max_body_size")
	}
}
