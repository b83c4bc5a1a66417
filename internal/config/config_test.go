package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("VITE_GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 60*time.Second, cfg.GeminiTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.HasAPIKey())
}

func TestLoadLegacyKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("VITE_GEMINI_API_KEY", "legacy-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
	assert.True(t, cfg.HasAPIKey())
}

func TestLoadPrefersPrimaryKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "primary")
	t.Setenv("VITE_GEMINI_API_KEY", "legacy-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.GeminiAPIKey)
}

func TestLoadRejectsNonPositiveSessionTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "0s")

	_, err := Load()
	assert.Error(t, err)
}
