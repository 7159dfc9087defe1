package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application configuration
type Config struct {
	Port          string `validate:"required,numeric"`
	Environment   string `validate:"oneof=development staging production test"`
	APIKey        string
	AdminUsername string
	AdminPassword string

	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	ModelStore      string        `validate:"oneof=file badger"`
	ModelDir        string        `validate:"required"`
	BadgerDir       string        `validate:"required_if=ModelStore badger"`
	CacheMaxEntries int           `validate:"min=1"`
	CacheTTL        time.Duration `validate:"min=0"`

	MinTrainingDays    int `validate:"min=14"`
	MaxForecastDays    int `validate:"min=1,max=365"`
	MaxSalesDataPoints int `validate:"min=3"`
	ChunkSize          int `validate:"min=1"`
	ReportConcurrency  int `validate:"min=1,max=64"`

	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		APIKey:        getEnv("API_KEY", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ModelStore:      getEnv("MODEL_STORE", "file"),
		ModelDir:        getEnv("MODEL_DIR", "models"),
		BadgerDir:       getEnv("BADGER_DIR", "data/badger"),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 100),
		CacheTTL:        getEnvDuration("CACHE_TTL", time.Hour),

		MinTrainingDays:    getEnvInt("MIN_TRAINING_DAYS", 30),
		MaxForecastDays:    getEnvInt("MAX_FORECAST_DAYS", 30),
		MaxSalesDataPoints: getEnvInt("MAX_SALES_DATA_POINTS", 50000),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 10000),
		ReportConcurrency:  getEnvInt("REPORT_CONCURRENCY", 4),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}
}

// Validate 設定値の整合性を検証します
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer variable; unparsable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30m") or plain seconds ("1800").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
