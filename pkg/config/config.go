package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the agentation server.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"4747"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (SQLite)
	Database DatabaseConfig `yaml:"database"`

	// Resolver configuration for the embedded annotation core
	Resolver ResolverConfig `yaml:"resolver"`

	// Actions configuration (send-to-agent broadcast)
	Actions ActionsConfig `yaml:"actions"`

	// WebhookURLsStr is a comma-separated list of webhook destinations notified
	// on annotation lifecycle events. Each destination is attempted independently.
	WebhookURLsStr string `yaml:"webhook_urls" env:"WEBHOOK_URLS" env-default:""`

	// WebhookURLs is the parsed list from WebhookURLsStr (not from config file).
	WebhookURLs []string `yaml:"-"`
}

// DatabaseConfig holds SQLite database configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in-process,
	// useful for tests and throwaway runs.
	Path string `yaml:"path" env:"DB_PATH" env-default:"agentation.db"`
}

// ResolverConfig holds component-resolution settings.
type ResolverConfig struct {
	// TimeoutMs bounds the host-runtime introspection query. On timeout the
	// resolver falls through to its synchronous fallback tiers.
	TimeoutMs int `yaml:"timeout_ms" env:"RESOLVER_TIMEOUT_MS" env-default:"3000"`
}

// Timeout returns the configured introspection budget as a duration, for
// passing to resolver.WithTimeout. Non-positive values return zero, which the
// resolver option ignores in favor of its built-in default.
func (c ResolverConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ActionsConfig holds send-to-agent action settings.
type ActionsConfig struct {
	// WaitTimeoutMs is the default wait_for_action timeout.
	WaitTimeoutMs int `yaml:"wait_timeout_ms" env:"ACTION_WAIT_TIMEOUT_MS" env-default:"60000"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; the server runs on env vars and defaults.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.WebhookURLs = parseWebhookURLs(cfg.WebhookURLsStr)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseWebhookURLs parses the comma-separated webhook destination list.
func parseWebhookURLs(value string) []string {
	if value == "" {
		return nil
	}

	var urls []string
	for _, raw := range strings.Split(value, ",") {
		if u := strings.TrimSpace(raw); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
