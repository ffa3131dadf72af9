/*
config.go - Application configuration

PURPOSE:
  Loads server configuration from environment variables with sensible
  defaults for local development. A .env file in the working directory
  is honored when present.

PRECEDENCE:
  process environment > .env file > built-in defaults
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	JWTSecret string
	TokenTTL  time.Duration

	MinInterestRate    decimal.Decimal
	MaxInterestRate    decimal.Decimal
	DefaultCreditLimit decimal.Decimal

	RetryMaxAttempts int
	RetryDelay       time.Duration

	OverdueCron string
	SeedUsers   bool
}

// Load reads configuration from the environment, first loading a .env
// file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "loan-engine.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		OverdueCron: getEnv("OVERDUE_CRON", "@hourly"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MinInterestRate, err = getDecimal("MIN_INTEREST_RATE", "0.1"); err != nil {
		return nil, err
	}
	if cfg.MaxInterestRate, err = getDecimal("MAX_INTEREST_RATE", "0.5"); err != nil {
		return nil, err
	}
	if cfg.DefaultCreditLimit, err = getDecimal("DEFAULT_CREDIT_LIMIT", "10000"); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getDuration("RETRY_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SeedUsers, err = getBool("SEED_USERS", true); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MinInterestRate.GreaterThan(cfg.MaxInterestRate) {
		return nil, fmt.Errorf("MIN_INTEREST_RATE must not exceed MAX_INTEREST_RATE")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 500ms, 24h): %w", key, err)
	}
	return d, nil
}

func getDecimal(key, defaultVal string) (decimal.Decimal, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = defaultVal
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
	}
	return d, nil
}
