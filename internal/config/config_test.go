package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfigDefaults(t *testing.T) {
	cfg, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 1, cfg.AI.RepairAttempts)
	assert.InDelta(t, 0.55, cfg.AI.DefaultConfidence, 1e-9)
	assert.InDelta(t, 0.5, cfg.OCR.ConfidenceFloor, 1e-9)
	assert.Equal(t, []string{"ind", "eng"}, cfg.OCR.LanguageHints)
	assert.Equal(t, 5, cfg.Credits.FreeAllotment)
	assert.Equal(t, 50, cfg.Credits.ProWeekly)
	assert.Equal(t, 150, cfg.Credits.EliteWeekly)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, "1000000000", cfg.Validation.MaxAmount)
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	os.Setenv("FINOT_LOG_LEVEL", "debug")
	os.Setenv("FINOT_PIPELINE_MAX_RETRIES", "5")
	defer os.Unsetenv("FINOT_LOG_LEVEL")
	defer os.Unsetenv("FINOT_PIPELINE_MAX_RETRIES")

	cfg, err := InitializeConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
}

func TestInitializeConfigBindsGeminiAPIKey(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-key-123")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := InitializeConfig()
	require.NoError(t, err)
	assert.Equal(t, "test-key-123", cfg.AI.APIKey)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative repair attempts", func(c *Config) { c.AI.RepairAttempts = -1 }},
		{"confidence above one", func(c *Config) { c.AI.DefaultConfidence = 1.5 }},
		{"negative ocr floor", func(c *Config) { c.OCR.ConfidenceFloor = -0.1 }},
		{"negative allotment", func(c *Config) { c.Credits.ProWeekly = -10 }},
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -2 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := InitializeConfig()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, float64(30), cfg.AITimeout().Seconds())
	assert.Equal(t, float64(120), cfg.MaxAudioDuration().Seconds())
	assert.Equal(t, int64(200), cfg.BackoffBase().Milliseconds())
}
