package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	AIAPIKey         string
	AIBaseURL        string
	AIModel          string
	AITimeout        time.Duration
	RedisURL         string
	RateLimit        string
	ChatRateLimit    string
	RabbitMQURL      string
	RabbitMQPrefetch int
	JWTSecret        string
	JWTJWKSURL       string
	JWTIssuer        string
	EnableHSTS       bool
	ServerDebugMode  bool
	WorkerDebugMode  bool
	LogEncoding      string
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom loads configuration through getenv
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := lookup(getenv)

	cfg := &Config{
		DatabaseURL:      env.get("DATABASE_URL", ""),
		ServerPort:       env.get("SERVER_PORT", "8080"),
		FrontendURL:      env.get("FRONTEND_URL", "http://localhost:3000"),
		AIAPIKey:         env.get("AI_API_KEY", env.get("OPENAI_API_KEY", "")),
		AIBaseURL:        env.get("AI_BASE_URL", ""),
		AIModel:          env.get("AI_MODEL", ""),
		AITimeout:        time.Duration(env.getInt("AI_TIMEOUT_SECONDS", 60)) * time.Second,
		RedisURL:         env.get("REDIS_URL", "redis://localhost:6379/0"),
		RateLimit:        env.get("RATE_LIMIT", "10-S"),
		ChatRateLimit:    env.get("CHAT_RATE_LIMIT", "30-M"),
		RabbitMQURL:      env.get("RABBITMQ_URL", ""),
		RabbitMQPrefetch: env.getInt("RABBITMQ_PREFETCH", 10),
		JWTSecret:        env.get("JWT_SECRET", ""),
		JWTJWKSURL:       env.get("JWT_JWKS_URL", ""),
		JWTIssuer:        env.get("JWT_ISSUER", ""),
		EnableHSTS:       env.getBool("ENABLE_HSTS", false),
		ServerDebugMode:  env.getBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode:  env.getBool("WORKER_DEBUG_MODE", false),
		LogEncoding:      strings.ToLower(env.get("LOG_ENCODING", "json")),
		OTELEnabled:      env.getBool("OTEL_ENABLED", false),
		OTELEndpoint:     env.get("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.LogEncoding != "json" && cfg.LogEncoding != "console" {
		return nil, fmt.Errorf("LOG_ENCODING must be json or console, got %q", cfg.LogEncoding)
	}
	if cfg.AITimeout <= 0 {
		return nil, errors.New("AI_TIMEOUT_SECONDS must be positive")
	}
	if cfg.RabbitMQPrefetch < 1 {
		return nil, errors.New("RABBITMQ_PREFETCH must be at least 1")
	}

	return cfg, nil
}

// ValidateServer checks the values only the API server needs
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" && c.JWTJWKSURL == "" {
		return errors.New("either JWT_SECRET or JWT_JWKS_URL is required to verify tokens")
	}
	if c.AIAPIKey == "" {
		return errors.New("AI_API_KEY (or OPENAI_API_KEY) is required for the assistant")
	}
	return nil
}

type lookup func(string) string

func (l lookup) get(key, defaultValue string) string {
	if value := strings.TrimSpace(l(key)); value != "" {
		return value
	}
	return defaultValue
}

func (l lookup) getBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(l(key)); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (l lookup) getInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(l(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
