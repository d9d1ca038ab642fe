package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load builds the configuration from defaults, an optional YAML file and
// CRISP_* environment overrides, in that order of precedence.
// An empty configPath skips the file entirely.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadUnlocked is Load without checksum verification. It vets a modified
// file before its hash is recorded again.
func LoadUnlocked(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verify bool) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := resolveConfigPath(configPath)
		if err != nil {
			return nil, err
		}
		if verify {
			if err := verifyConfigHash(absPath); err != nil {
				return nil, err
			}
		}
		if err := loadConfigFile(absPath, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
		cfg.SourceFile = absPath
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover returns the first config file found in the standard locations:
// $CRISP_CONFIG, ~/.config/crispbridge/config.yaml, /etc/crispbridge/config.yaml,
// ./config.yaml. It returns "" when none exists; the service then runs
// from environment variables alone.
func Discover() string {
	if p := os.Getenv("CRISP_CONFIG"); p != "" {
		return p
	}

	candidates := make([]string, 0, 3)
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "crispbridge", "config.yaml"))
	}
	candidates = append(candidates, "/etc/crispbridge/config.yaml", "./config.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func resolveConfigPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// loadConfigFile parses path over cfg, so keys absent from the file keep
// their current values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnvOverrides copies CRISP_* variables over the loaded values.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"CRISP_LISTEN":           &cfg.Service.Listen,
		"CRISP_LOG_LEVEL":        &cfg.Service.LogLevel,
		"CRISP_LOG_FORMAT":       &cfg.Service.LogFormat,
		"CRISP_API_URL":          &cfg.Crisp.APIURL,
		"CRISP_PLUGIN_ID":        &cfg.Crisp.PluginID,
		"CRISP_TIER":             &cfg.Crisp.Tier,
		"CRISP_TOKEN_ID":         &cfg.Crisp.TokenID,
		"CRISP_TOKEN_KEY":        &cfg.Crisp.TokenKey,
		"CRISP_SIGNING_SECRET":   &cfg.Crisp.SigningSecret,
		"CRISP_WEBHOOK_PATH":     &cfg.Webhook.Path,
		"CRISP_SETTINGS_PATH":    &cfg.Settings.Path,
		"CRISP_REDIS_URL":        &cfg.Redis.URL,
		"CRISP_JOURNAL_PATH":     &cfg.Journal.Path,
		"CRISP_OPS_API_KEY":      &cfg.Ops.APIKey,
		"CRISP_WEBHOOK_MAX_BODY": &cfg.Webhook.MaxBodySize,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	if v, ok := lookup("CRISP_TOKEN_CACHE_TTL"); ok && v != "" {
		ttl, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("CRISP_TOKEN_CACHE_TTL: %w", err)
		}
		cfg.Settings.TokenCacheTTL = ttl
	}

	if v, ok := lookup("CRISP_ALLOWED_FRAME_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.Settings.AllowedFrameOrigins = strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		})
	}
	return nil
}

// parseSeconds accepts a bare integer (seconds) or a Go duration string.
func parseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validate reports it for required fields.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}
	if cfg.Service.Listen == "" {
		return fmt.Errorf("service.listen is required")
	}

	required := []struct {
		name  string
		value string
		env   string
	}{
		{"crisp.plugin_id", cfg.Crisp.PluginID, "CRISP_PLUGIN_ID"},
		{"crisp.token_id", cfg.Crisp.TokenID, "CRISP_TOKEN_ID"},
		{"crisp.token_key", cfg.Crisp.TokenKey, "CRISP_TOKEN_KEY"},
	}
	for _, r := range required {
		if err := checkResolved(r.name, r.value); err != nil {
			return err
		}
		if r.value == "" {
			return fmt.Errorf("%s is required (set it in the config file or %s)", r.name, r.env)
		}
	}

	for name, value := range map[string]string{
		"crisp.signing_secret": cfg.Crisp.SigningSecret,
		"redis.url":            cfg.Redis.URL,
		"ops.api_key":          cfg.Ops.APIKey,
	} {
		if err := checkResolved(name, value); err != nil {
			return err
		}
	}

	if cfg.Crisp.Tier != "plugin" && cfg.Crisp.Tier != "user" {
		return fmt.Errorf("crisp.tier must be plugin or user (got %q)", cfg.Crisp.Tier)
	}
	if cfg.Crisp.APIURL == "" {
		return fmt.Errorf("crisp.api_url is required")
	}
	if cfg.Crisp.Timeout <= 0 {
		return fmt.Errorf("crisp.timeout must be positive")
	}

	if cfg.Settings.TokenCacheTTL <= 0 {
		return fmt.Errorf("settings.token_cache_ttl must be positive")
	}
	if len(cfg.Settings.AllowedFrameOrigins) == 0 {
		return fmt.Errorf("settings.allowed_frame_origins must be non-empty")
	}
	if strings.Trim(cfg.Settings.Path, "/") == "" {
		return fmt.Errorf("settings.path is required")
	}
	if strings.Trim(cfg.Settings.Path, "/") == strings.Trim(cfg.Webhook.Path, "/")+"/webhook" {
		return fmt.Errorf("settings.path %q collides with the webhook route", cfg.Settings.Path)
	}

	if cfg.Journal.Path != "" && cfg.Journal.Retention < 0 {
		return fmt.Errorf("journal.retention must not be negative")
	}
	return nil
}

// checkResolved rejects values still carrying a ${VAR} placeholder.
func checkResolved(name, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", name, matches[1])
	}
	return nil
}
