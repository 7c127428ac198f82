// Package config loads process-level configuration from environment
// variables (§6 "Configuration options"), with typed accessors and
// sane zero-value defaults so the process fails fast on a missing
// required value rather than deep inside a request.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the process-wide configuration surface. Build one with Load at
// startup; it is read-only afterward.
type Config struct {
	OpenAIAPIKey   string
	DatabaseURL    string
	WebhookSecret  string
	DevMode        bool
}

// Load reads the enumerated environment variables. OPENAI_API_KEY and
// DATABASE_URL are required; returns an error naming the first missing one.
// WEBHOOK_SECRET and DEV_MODE are optional.
func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("config: OPENAI_API_KEY is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	if raw := os.Getenv("DEV_MODE"); raw != "" {
		devMode, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: DEV_MODE must be a bool, got %q", raw)
		}
		cfg.DevMode = devMode
	}

	return cfg, nil
}

// RequireWebhookSecret reports whether resume endpoints must check the
// shared-secret header: true whenever WebhookSecret is set and DevMode is
// not bypassing authentication.
func (c Config) RequireWebhookSecret() bool {
	return c.WebhookSecret != "" && !c.DevMode
}
