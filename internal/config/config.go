package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chatlab/internal/providers"
)

var (
	ErrMissingAPIKey   = errors.New("LLM_API_KEY is required")
	ErrMissingEndpoint = errors.New("LLM_ENDPOINT is required for azure_openai")
	ErrMissingModel    = errors.New("LLM_MODEL is required")
)

type Config struct {
	Provider providers.Settings

	Temperature float64
	MaxTokens   int

	// Fallback per-1K prices used when the model is not in the pricing
	// table.
	PriceInputPer1K  decimal.Decimal
	PriceOutputPer1K decimal.Decimal

	SystemPrompt string

	Server ServerConfig
	Usage  UsageDBConfig
	Log    LogConfig

	HTTPTimeout time.Duration
}

type ServerConfig struct {
	ListenAddr  string
	MetricsPath string
	HealthPath  string
}

type UsageDBConfig struct {
	Driver          string
	DSN             string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Provider: providers.Settings{
			Kind:       providers.Kind(strings.ToLower(mustEnv("PROVIDER_KIND", string(providers.KindOpenAICompat)))),
			Endpoint:   mustEnv("LLM_ENDPOINT", ""),
			APIKey:     mustEnv("LLM_API_KEY", ""),
			Model:      mustEnv("LLM_MODEL", "gpt-4o-mini"),
			APIVersion: mustEnv("LLM_API_VERSION", ""),
		},
		Temperature:  mustFloat("LLM_TEMPERATURE", 0.7),
		MaxTokens:    mustInt("LLM_MAX_TOKENS", 1024),
		SystemPrompt: mustEnv("SYSTEM_PROMPT", ""),
		Server: ServerConfig{
			ListenAddr:  mustEnv("LISTEN_ADDR", ":8080"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
		},
		Usage: UsageDBConfig{
			Driver:          strings.ToLower(mustEnv("USAGE_DB_DRIVER", "sqlite")),
			DSN:             mustEnv("USAGE_DB_DSN", ""),
			AutoMigrate:     mustBool("AUTO_MIGRATE", true),
			MaxOpenConns:    mustInt("USAGE_DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    mustInt("USAGE_DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: mustDuration("USAGE_DB_CONN_LIFETIME", 30*time.Minute),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
		HTTPTimeout: mustDuration("HTTP_TIMEOUT", 60*time.Second),
	}

	var err error
	cfg.PriceInputPer1K, err = mustDecimal("PRICE_INPUT_PER_1K", "0.005")
	if err != nil {
		return nil, err
	}
	cfg.PriceOutputPer1K, err = mustDecimal("PRICE_OUTPUT_PER_1K", "0.015")
	if err != nil {
		return nil, err
	}

	switch cfg.Provider.Kind {
	case providers.KindAzureOpenAI, providers.KindOpenAICompat:
	default:
		return nil, fmt.Errorf("unsupported PROVIDER_KIND %q", cfg.Provider.Kind)
	}
	if cfg.Provider.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Provider.Kind == providers.KindAzureOpenAI && cfg.Provider.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Provider.Model == "" {
		return nil, ErrMissingModel
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustFloat(key string, def float64) float64 {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func mustDecimal(key string, def string) (decimal.Decimal, error) {
	v := mustEnv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
