package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/benvon/originguard/internal/validation"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	AppEnv          string `validate:"required"`
	DatabaseURL     string `validate:"required"`
	ServerPort      string `validate:"required,numeric"`
	FrontendURL     string `validate:"omitempty,web_origin"`
	CORSConfigFile  string
	EnableHSTS      bool
	ServerDebugMode bool
	RateLimit       string `validate:"required"`
	RedisURL        string `validate:"omitempty,url"`
	MetricsEnabled  bool
	OTELEnabled     bool
	OTELEndpoint    string
	ShutdownSeconds int `validate:"gte=1"`
}

// DefaultAppEnv is the environment assumed when APP_ENV is unset.
const DefaultAppEnv = "development"

// AppEnv returns APP_ENV, or DefaultAppEnv when it is unset.
func AppEnv() string {
	return getEnv("APP_ENV", DefaultAppEnv)
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first; variables already set win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:          AppEnv(),
		DatabaseURL:     databaseURL(),
		ServerPort:      getEnv("SERVER_PORT", getEnv("PORT", "8000")),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		CORSConfigFile:  getEnv("CORS_CONFIG_FILE", ""),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		RateLimit:       getEnv("RATE_LIMIT", "100-M"),
		RedisURL:        getEnv("REDIS_URL", ""),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownSeconds: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL (or DB_HOST and DB_NAME) is required")
	}

	if err := validation.Validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles a postgres URL
// from the discrete DB_* variables.
func databaseURL() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	host := getEnv("DB_HOST", "")
	name := getEnv("DB_NAME", "")
	if host == "" || name == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, getEnv("DB_PORT", "5432")),
		Path:     "/" + name,
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	if user := getEnv("DB_USER", ""); user != "" {
		if pass := getEnv("DB_PASSWORD", ""); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
