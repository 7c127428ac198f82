package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresOpenAIKeyAndDatabaseURL(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DefaultsAndParsing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/test.db")
	t.Setenv("WEBHOOK_SECRET", "")
	t.Setenv("DEV_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	require.False(t, cfg.DevMode)
	require.False(t, cfg.RequireWebhookSecret())
}

func TestLoad_DevModeBypassesWebhookSecretRequirement(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/test.db")
	t.Setenv("WEBHOOK_SECRET", "shh")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.DevMode)
	require.False(t, cfg.RequireWebhookSecret())
}

func TestLoad_InvalidDevModeValue(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/test.db")
	t.Setenv("DEV_MODE", "not-a-bool")

	_, err := Load()
	require.Error(t, err)
}
