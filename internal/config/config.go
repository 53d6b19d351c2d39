package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	MigrationsDir string

	SyncPageDelay      time.Duration
	SyncOperationDelay time.Duration
}

func LoadConfig() (*Config, error) {
	pageDelay, err := time.ParseDuration(getEnv("SYNC_PAGE_DELAY", "100ms"))
	if err != nil {
		return nil, errors.New("invalid SYNC_PAGE_DELAY format")
	}

	opDelay, err := time.ParseDuration(getEnv("SYNC_OPERATION_DELAY", "500ms"))
	if err != nil {
		return nil, errors.New("invalid SYNC_OPERATION_DELAY format")
	}

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		SyncPageDelay:      pageDelay,
		SyncOperationDelay: opDelay,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
