package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("API_KEY", "secret")
	t.Setenv("MODEL_STORE", "badger")
	t.Setenv("BADGER_DIR", "/tmp/badger")
	t.Setenv("CACHE_MAX_ENTRIES", "25")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("MAX_FORECAST_DAYS", "14")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "badger", cfg.ModelStore)
	assert.Equal(t, "/tmp/badger", cfg.BadgerDir)
	assert.Equal(t, 25, cfg.CacheMaxEntries)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 14, cfg.MaxForecastDays)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	// 空文字はデフォルト値として扱われる
	for _, key := range []string{"PORT", "ENVIRONMENT", "MODEL_STORE", "MIN_TRAINING_DAYS", "CACHE_TTL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "file", cfg.ModelStore)
	assert.Equal(t, 30, cfg.MinTrainingDays)
	assert.Equal(t, 30, cfg.MaxForecastDays)
	assert.Equal(t, 50000, cfg.MaxSalesDataPoints)
	assert.Equal(t, 10000, cfg.ChunkSize)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestGetEnvParsing(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "abc")
	t.Setenv("CACHE_TTL", "120")

	assert.Equal(t, 7, getEnvInt("CHUNK_SIZE", 7))
	assert.Equal(t, 2*time.Minute, getEnvDuration("CACHE_TTL", time.Hour))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"不正なストア", func(c *Config) { c.ModelStore = "s3" }},
		{"不正なログレベル", func(c *Config) { c.LogLevel = "verbose" }},
		{"予測日数0", func(c *Config) { c.MaxForecastDays = 0 }},
		{"学習日数が少なすぎる", func(c *Config) { c.MinTrainingDays = 3 }},
		{"badgerでディレクトリ未指定", func(c *Config) { c.ModelStore = "badger"; c.BadgerDir = "" }},
		{"ポートが数値でない", func(c *Config) { c.Port = "http" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
