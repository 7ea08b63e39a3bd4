package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port          string
	AllowedOrigin string
	LogLevel      string
	// CSRF double-submit check on POST /chat/
	CSRFEnforce bool
	// Per-IP request budget for the chat endpoint
	RateLimitPerMinute int
	// Transcript storage; the first configured backend wins (DB, Redis, dir, memory)
	HistoryMaxMessages int
	HistoryDir         string
	DatabaseURL        string
	RedisURL           string
	// Overrides the schema files compiled into the server
	MigrationsDir string
	// Market data
	BinanceBaseURL string
	USDToINR       float64
	// Optional LLM fallback for free text the rules do not understand
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	IntentSpecPath string
}

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:               getEnvDefault("PORT", "8080"),
		AllowedOrigin:      getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogLevel:           getEnvDefault("LOG_LEVEL", "info"),
		CSRFEnforce:        getEnvBoolDefault("CSRF_ENFORCE", true),
		RateLimitPerMinute: getEnvIntDefault("RATE_LIMIT_PER_MINUTE", 120),
		HistoryMaxMessages: getEnvIntDefault("HISTORY_MAX_MESSAGES", 40),
		HistoryDir:         os.Getenv("HISTORY_DIR"),
		DatabaseURL:        os.Getenv("DB_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		MigrationsDir:      os.Getenv("MIGRATIONS_DIR"),
		BinanceBaseURL:     getEnvDefault("BINANCE_BASE_URL", "https://api.binance.com"),
		USDToINR:           getEnvFloatDefault("USD_TO_INR", 88.75),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		IntentSpecPath:     getEnvDefault("INTENT_SPEC_PATH", "./prompts/intent.yaml"),
	}
	if cfg.OpenAIAPIKey == "" {
		log.Info().Msg("OPENAI_API_KEY is not set; free-text fallback classification disabled")
	}
	return cfg
}

func LoadClient() ClientConfig {
	_ = godotenv.Load()
	return ClientConfig{
		BaseURL: strings.TrimRight(getEnvDefault("CHAT_BASE_URL", "http://localhost:8080"), "/"),
		Timeout: time.Duration(getEnvIntDefault("CHAT_TIMEOUT_SECONDS", 20)) * time.Second,
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer env value")
	}
	return def
}

func getEnvFloatDefault(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid float env value")
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}
