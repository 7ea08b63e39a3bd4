package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "CSRF_ENFORCE", "RATE_LIMIT_PER_MINUTE", "USD_TO_INR", "HISTORY_DIR", "DB_URL", "REDIS_URL", "OPENAI_API_KEY", "MIGRATIONS_DIR"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	require.Equal(t, "8080", cfg.Port)
	require.True(t, cfg.CSRFEnforce)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, 40, cfg.HistoryMaxMessages)
	require.InDelta(t, 88.75, cfg.USDToINR, 1e-9)
	require.Empty(t, cfg.MigrationsDir)
	require.Empty(t, cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CSRF_ENFORCE", "off")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("USD_TO_INR", "83.1")
	t.Setenv("HISTORY_DIR", "/tmp/history")

	cfg := Load()
	require.Equal(t, "9000", cfg.Port)
	require.False(t, cfg.CSRFEnforce)
	require.Equal(t, 5, cfg.RateLimitPerMinute)
	require.InDelta(t, 83.1, cfg.USDToINR, 1e-9)
	require.Equal(t, "/tmp/history", cfg.HistoryDir)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	t.Setenv("USD_TO_INR", "-3")
	t.Setenv("CSRF_ENFORCE", "maybe")

	cfg := Load()
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.InDelta(t, 88.75, cfg.USDToINR, 1e-9)
	require.True(t, cfg.CSRFEnforce)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("CHAT_BASE_URL", "http://example.test:8080/")
	t.Setenv("CHAT_TIMEOUT_SECONDS", "3")
	cfg := LoadClient()
	require.Equal(t, "http://example.test:8080", cfg.BaseURL)
	require.Equal(t, 3*time.Second, cfg.Timeout)
}
