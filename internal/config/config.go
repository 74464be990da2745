package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	LogLevel  string
	// Store selects the record store: "postgres" or "memory".
	Store string
}

type ServerConfig struct {
	Port               string
	Env                string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type GatewayConfig struct {
	Timeout time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// SyncConfig drives the gateway status sync worker.
type SyncConfig struct {
	Interval time.Duration
	Lookback time.Duration
	Batch    int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			Env:                getEnv("APP_ENV", "development"),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", blueprintURL()),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REPLAY_CACHE_TTL", 24*time.Hour),
		},
		Gateway: GatewayConfig{
			Timeout: getEnvAsDuration("GATEWAY_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 50),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
		Sync: SyncConfig{
			Interval: getEnvAsDuration("SYNC_INTERVAL", time.Minute),
			Lookback: getEnvAsDuration("SYNC_LOOKBACK", 24*time.Hour),
			Batch:    getEnvAsInt("SYNC_BATCH", 100),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Store:    getEnv("STORE", "postgres"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func blueprintURL() string {
	if os.Getenv("BLUEPRINT_DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		os.Getenv("BLUEPRINT_DB_USERNAME"),
		os.Getenv("BLUEPRINT_DB_PASSWORD"),
		os.Getenv("BLUEPRINT_DB_HOST"),
		getEnv("BLUEPRINT_DB_PORT", "5432"),
		os.Getenv("BLUEPRINT_DB_DATABASE"),
		getEnv("BLUEPRINT_DB_SCHEMA", "public"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
