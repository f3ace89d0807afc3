package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGeminiEnv(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("EXTRACTOR_GEMINI_API_KEY", "")
}

func TestLoadDefaults(t *testing.T) {
	clearGeminiEnv(t)

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Gemini.Model)
	assert.Equal(t, 2*time.Minute, cfg.Gemini.Timeout)
	assert.False(t, cfg.Gemini.Enabled())
	assert.Equal(t, 1, cfg.Extraction.PageConcurrency)
	assert.Nil(t, cfg.Extraction.ExplicitColumns)
	assert.Equal(t, 5, cfg.Queue.Workers)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "INR", cfg.Defaults.Currency)
	assert.Equal(t, "Uncategorized", cfg.Defaults.Category)
	assert.False(t, cfg.BigQuery.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearGeminiEnv(t)
	t.Setenv("GOOGLE_GEMINI_API_KEY", "key-123")
	t.Setenv("EXTRACTOR_HTTP_PORT", "9090")
	t.Setenv("EXTRACTOR_LOG_FORMAT", "json")
	t.Setenv("EXTRACTOR_EXTRACTION_PAGE_CONCURRENCY", "4")
	t.Setenv("EXTRACTOR_EXTRACTION_EXPLICIT_COLUMNS", "72, 150.5,300")
	t.Setenv("EXTRACTOR_GEMINI_TIMEOUT", "45s")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.Gemini.APIKey)
	assert.True(t, cfg.Gemini.Enabled())
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Extraction.PageConcurrency)
	assert.Equal(t, []float64{72, 150.5, 300}, cfg.Extraction.ExplicitColumns)
	assert.Equal(t, 45*time.Second, cfg.Gemini.Timeout)
}

func TestPrefixedKeyWins(t *testing.T) {
	clearGeminiEnv(t)
	t.Setenv("EXTRACTOR_GEMINI_API_KEY", "prefixed")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "plain")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Gemini.APIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearGeminiEnv(t)

	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"bad log format", "log.format", "xml"},
		{"zero concurrency", "extraction.page_concurrency", 0},
		{"negative max pages", "extraction.max_pages", -1},
		{"port out of range", "http.port", 70000},
		{"no workers", "queue.workers", 0},
		{"bigquery without project", "bigquery.enabled", true},
		{"bad columns", "extraction.explicit_columns", "10,abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := LoadFrom(v)
			assert.Error(t, err)
		})
	}
}
