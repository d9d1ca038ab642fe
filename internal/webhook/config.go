package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/crispbridge/internal/config"
)

// FromGlobalConfig converts the loaded configuration into a handler Config.
// The route is "/<webhook.path>/webhook", mirroring the settings prefix.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize, err := parseMaxBodySize(cfg.Webhook.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("webhook: invalid max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}

	return Config{
		Path:        RoutePath(cfg.Webhook.Path),
		Secret:      cfg.Crisp.SigningSecret,
		MaxBodySize: maxBodySize,
	}, nil
}

// RoutePath turns a configured prefix into the mounted webhook route.
func RoutePath(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "/webhook"
	}
	return "/" + prefix + "/webhook"
}

// parseMaxBodySize parses size strings like "1MB", "2048576", "1048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(size)
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		size = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 { // overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
