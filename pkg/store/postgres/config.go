package postgres

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadConfigFromEnv loads database configuration from DATABASE_*
// environment variables.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DATABASE_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(getEnvOrDefault("DATABASE_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault("DATABASE_MAX_IDLE_CONNS", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_MAX_IDLE_CONNS: %w", err)
	}

	password := os.Getenv("DATABASE_PASSWORD")
	if password == "" {
		return Config{}, fmt.Errorf("DATABASE_PASSWORD is required")
	}

	return Config{
		Host:            getEnvOrDefault("DATABASE_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DATABASE_USER", "typedai"),
		Password:        password,
		Database:        getEnvOrDefault("DATABASE_NAME", "typedai"),
		SSLMode:         getEnvOrDefault("DATABASE_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
