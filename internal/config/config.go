package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/mailclean/internal/logger"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Preview   PreviewConfig
	RateLimit RateLimitConfig
	Log       logger.Config
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// PreviewConfig controls request size and the text shown when cleaning
// leaves nothing.
type PreviewConfig struct {
	MaxBodyBytes int64
	Placeholder  string
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getSecondsEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getSecondsEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Preview: PreviewConfig{
			MaxBodyBytes: int64(getIntEnv("PREVIEW_MAX_BODY_BYTES", 1<<20)),
			Placeholder:  getEnv("PREVIEW_PLACEHOLDER", "(no preview available)"),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
			Window:   getSecondsEnv("RATE_LIMIT_WINDOW", time.Minute),
		},
		Log: logger.DefaultConfig(),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns a positive integer from the environment or default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getSecondsEnv returns a duration given in whole seconds, or default
func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping empty entries
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
