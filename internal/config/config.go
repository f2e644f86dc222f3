package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Bus backends selectable with BUS_BACKEND.
const (
	BusLocal = "local"
	BusRedis = "redis"
	BusMQTT  = "mqtt"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	ServerAddress  string
	JWTSecret      string
	DatabaseURL    string
	MigrationsPath string
	LogLevel       zerolog.Level

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTClientID  string

	BusBackend           string
	FallbackPollInterval time.Duration
	DefaultTimezone      *time.Location
}

// Development reports whether APP_ENV asks for human-readable logs.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from environment variables. Call godotenv.Load
// first to pick up a local .env.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	jwt := os.Getenv("JWT_SECRET")
	if jwt == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getenv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	poll, err := time.ParseDuration(getenv("FALLBACK_POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("FALLBACK_POLL_INTERVAL: %w", err)
	}
	if poll <= 0 {
		return nil, fmt.Errorf("FALLBACK_POLL_INTERVAL must be positive")
	}

	loc, err := time.LoadLocation(getenv("DEFAULT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Environment:          os.Getenv("APP_ENV"),
		ServerAddress:        getenv("SERVER_ADDRESS", ":8080"),
		JWTSecret:            jwt,
		DatabaseURL:          dbURL,
		MigrationsPath:       getenv("MIGRATIONS_PATH", "./migrations"),
		LogLevel:             level,
		RedisAddress:         os.Getenv("REDIS_ADDRESS"),
		RedisUsername:        os.Getenv("REDIS_USERNAME"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:        os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:         getenv("MQTT_CLIENT_ID", "medusa-scheduler"),
		FallbackPollInterval: poll,
		DefaultTimezone:      loc,
	}

	cfg.BusBackend = os.Getenv("BUS_BACKEND")
	if cfg.BusBackend == "" {
		cfg.BusBackend = BusLocal
		if cfg.RedisAddress != "" {
			cfg.BusBackend = BusRedis
		}
	}
	switch cfg.BusBackend {
	case BusLocal:
	case BusRedis:
		if cfg.RedisAddress == "" {
			return nil, fmt.Errorf("BUS_BACKEND=redis needs REDIS_ADDRESS")
		}
	case BusMQTT:
		if cfg.MQTTBrokerURL == "" {
			return nil, fmt.Errorf("BUS_BACKEND=mqtt needs MQTT_BROKER_URL")
		}
	default:
		return nil, fmt.Errorf("unknown BUS_BACKEND %q", cfg.BusBackend)
	}

	return cfg, nil
}
