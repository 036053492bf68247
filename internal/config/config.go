package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/distractor-gen-go/internal/constants"
)

type Config struct {
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Redis      RedisConfig
	Generation GenerationConfig
	Logging    LoggingConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

// RedisConfig configures the optional cross-run distractor cache.
// An empty Host disables caching entirely.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type GenerationConfig struct {
	Count              int
	DeduplicateTrials  int
	DuplicateThreshold int
	RequestDelay       time.Duration
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EnableFallback: getEnvBool("GEMINI_ENABLE_FALLBACK", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      constants.CacheTTL.DistractorSet,
		},
		Generation: GenerationConfig{
			Count:              getEnvInt("DISTRACTOR_COUNT", constants.GenerationDefaults.Count),
			DeduplicateTrials:  getEnvInt("DEDUPLICATE_TRIALS", constants.GenerationDefaults.DeduplicateTrials),
			DuplicateThreshold: getEnvInt("DUPLICATE_THRESHOLD", constants.GenerationDefaults.DuplicateThreshold),
			RequestDelay:       time.Duration(getEnvInt("REQUEST_DELAY_MS", 0)) * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Generation.Count < 0 {
		return fmt.Errorf("DISTRACTOR_COUNT must be non-negative")
	}
	if c.Generation.DeduplicateTrials < 0 {
		return fmt.Errorf("DEDUPLICATE_TRIALS must be non-negative")
	}
	if c.Generation.DuplicateThreshold <= 0 || c.Generation.DuplicateThreshold > 100 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must be in (0, 100]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
