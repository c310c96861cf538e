// Package config reads process settings from the environment. cmd mains load .env with
// godotenv before calling Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	ForecasterMovingAverage = "moving_average"
	ForecasterOpenAI        = "openai"
)

type Config struct {
	Env   string
	Store string

	DatabaseURL   string
	LockTimeout   time.Duration
	TxMaxAttempts int

	HTTPPort       string
	AllowedOrigins string

	LowStockThreshold decimal.Decimal
	OverstockCeiling  *decimal.Decimal
	ExpiryWindow      time.Duration

	KafkaBrokers           []string
	KafkaAvailabilityTopic string
	RedisURL               string

	OpenAIAPIKey string
	OpenAIModel  string
	Forecaster   string
}

func (c *Config) IsDev() bool { return c.Env == "development" }

// Load reads the environment. Missing optional keys fall back to defaults; malformed
// values are errors.
func Load(log *zap.Logger) (*Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Config{
		Env:                    getEnv("ENV", "production"),
		Store:                  getEnv("STORE", StorePostgres),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		AllowedOrigins:         os.Getenv("ALLOWED_ORIGINS"),
		KafkaBrokers:           splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaAvailabilityTopic: getEnv("KAFKA_AVAILABILITY_TOPIC", "inventory.availability"),
		RedisURL:               os.Getenv("REDIS_URL"),
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:            getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Forecaster:             getEnv("FORECASTER", ForecasterMovingAverage),
	}

	var err error
	if c.LockTimeout, err = durationEnv("LOCK_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if c.ExpiryWindow, err = durationEnv("EXPIRY_WINDOW", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if c.TxMaxAttempts, err = intEnv("TX_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if c.LowStockThreshold, err = decimalEnv("LOW_STOCK_THRESHOLD", "10"); err != nil {
		return nil, err
	}
	if v := os.Getenv("OVERSTOCK_CEILING"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("OVERSTOCK_CEILING: %w", err)
		}
		c.OverstockCeiling = &d
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set (STORE=%s)", c.Store)
		}
	case StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
	default:
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	switch c.Forecaster {
	case ForecasterMovingAverage, ForecasterOpenAI:
	default:
		return nil, fmt.Errorf("FORECASTER must be %q or %q, got %q", ForecasterMovingAverage, ForecasterOpenAI, c.Forecaster)
	}
	if c.Forecaster == ForecasterOpenAI && c.OpenAIAPIKey == "" {
		log.Warn("FORECASTER=openai but OPENAI_API_KEY is not set")
	}
	return c, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, v)
	}
	return n, nil
}

func decimalEnv(key, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if pt := strings.TrimSpace(p); pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
