package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "GATEWAY_TIMEOUT", "DATABASE_URL", "BLUEPRINT_DB_HOST", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BLUEPRINT_DB_HOST", "db")
	t.Setenv("BLUEPRINT_DB_PORT", "5433")
	t.Setenv("BLUEPRINT_DB_USERNAME", "pay")
	t.Setenv("BLUEPRINT_DB_PASSWORD", "secret")
	t.Setenv("BLUEPRINT_DB_DATABASE", "payments")
	t.Setenv("BLUEPRINT_DB_SCHEMA", "")
	t.Setenv("GATEWAY_TIMEOUT", "750ms")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, "postgres://pay:secret@db:5433/payments?sslmode=disable&search_path=public", cfg.Database.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.Gateway.Timeout)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("SYNC_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
}
