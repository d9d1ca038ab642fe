package config

import "time"

// Config represents the complete crispbridge configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Crisp    CrispConfig    `yaml:"crisp"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Settings SettingsConfig `yaml:"settings"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Journal  JournalConfig  `yaml:"journal,omitempty"`
	Ops      OpsConfig      `yaml:"ops,omitempty"`

	// SourceFile is the YAML file the config was read from, if any.
	SourceFile string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Listen          string        `yaml:"listen"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CrispConfig holds the Crisp Plugin API credentials.
type CrispConfig struct {
	APIURL        string        `yaml:"api_url"`
	PluginID      string        `yaml:"plugin_id"`
	Tier          string        `yaml:"tier"`
	TokenID       string        `yaml:"token_id"`
	TokenKey      string        `yaml:"token_key"`
	SigningSecret string        `yaml:"signing_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// WebhookConfig defines the inbound webhook endpoint.
type WebhookConfig struct {
	// Path is the route prefix; the endpoint is "/<path>/webhook".
	Path        string `yaml:"path"`
	MaxBodySize string `yaml:"max_body_size"`
}

// SettingsConfig defines the embedded settings page.
type SettingsConfig struct {
	Path                string        `yaml:"path"`
	TokenCacheTTL       time.Duration `yaml:"token_cache_ttl"`
	AllowedFrameOrigins []string      `yaml:"allowed_frame_origins"`
	RenderCacheSize     int           `yaml:"render_cache_size"`
}

// RedisConfig enables the shared token cache and event fan-out.
// Both are disabled when URL is empty.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
	Channel string `yaml:"channel"`
}

// JournalConfig enables the SQLite webhook journal when Path is set.
type JournalConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// OpsConfig guards the operator endpoints. They are disabled when APIKey is empty.
type OpsConfig struct {
	APIKey      string `yaml:"api_key"`
	EventBuffer int    `yaml:"event_buffer"`
}

// Defaults returns a Config with the stock values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "crispbridge",
			Listen:          "127.0.0.1:8080",
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: 10 * time.Second,
		},
		Crisp: CrispConfig{
			APIURL:  "https://api.crisp.chat/v1",
			Tier:    "plugin",
			Timeout: 10 * time.Second,
		},
		Webhook: WebhookConfig{
			Path:        "crisp",
			MaxBodySize: "1MB",
		},
		Settings: SettingsConfig{
			Path:                "crisp/settings",
			TokenCacheTTL:       300 * time.Second,
			AllowedFrameOrigins: []string{"https://app.crisp.chat", "https://app.crisp.im"},
			RenderCacheSize:     32,
		},
		Redis: RedisConfig{
			Prefix:  "crispbridge:",
			Channel: "crispbridge.events",
		},
		Journal: JournalConfig{
			Retention: 7 * 24 * time.Hour,
		},
		Ops: OpsConfig{
			EventBuffer: 100,
		},
	}
}
