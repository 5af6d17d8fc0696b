package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sahaj-pos/core/internal/guard"
	"github.com/sahaj-pos/core/internal/service"
)

type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	JWTSecret    string
	CancelGrace  time.Duration
	DedupeWindow time.Duration
}

// Load reads configuration from the environment. An empty DATABASE_URL selects
// the in-memory store; an empty REDIS_URL selects the in-process dedupe guard.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		CancelGrace:  getDurationSeconds("CANCEL_GRACE_SECONDS", service.DefaultCancelGrace),
		DedupeWindow: getDurationMillis("DEDUPE_WINDOW_MS", guard.DefaultWindow),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func getDurationMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
