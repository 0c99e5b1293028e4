// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Currency CurrencyConfig
	Engine   EngineConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
}

// HTTPConfig governs the HTTP server.
type HTTPConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string // sqlite|memory
	DBPath string
}

// AuthConfig configures JWT issuing.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CurrencyConfig seeds the rate table.
type CurrencyConfig struct {
	DefaultHome string
	Base        string
	Rates       string // "code=rate,..." relative to Base
}

// EngineConfig tunes debt recalculation and session lifetime.
type EngineConfig struct {
	NetOpposingDebts      bool
	ConversionConcurrency int
	SessionIdleTTL        time.Duration
	SessionSweepSchedule  string
}

// KafkaConfig enables settlement events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string
}

// DevJWTSecret is the signing key used when JWT_SECRET is unset.
const DevJWTSecret = "dev-secret"

const (
	defaultPort                  = 8080
	defaultShutdownTimeout       = 10 * time.Second
	defaultStorageDriver         = "sqlite"
	defaultDBPath                = "./data/trips.db"
	defaultTokenTTL              = 24 * time.Hour
	defaultHomeCurrency          = "usd"
	defaultRates                 = "usd=1"
	defaultKafkaTopic            = "trip.debts_settled"
	defaultSessionIdleTTL        = 30 * time.Minute
	defaultSessionSweepSchedule  = "@every 5m"
	defaultConversionConcurrency = 4
	defaultLoggingLevel          = "info"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Storage: StorageConfig{
			Driver: strings.ToLower(valueOrDefault("STORAGE", defaultStorageDriver)),
			DBPath: valueOrDefault("DB_PATH", defaultDBPath),
		},
		Auth: AuthConfig{
			JWTSecret: valueOrDefault("JWT_SECRET", DevJWTSecret),
		},
		Currency: CurrencyConfig{
			DefaultHome: strings.ToLower(valueOrDefault("DEFAULT_HOME_CURRENCY", defaultHomeCurrency)),
			Base:        strings.ToLower(valueOrDefault("CURRENCY_BASE", defaultHomeCurrency)),
			Rates:       valueOrDefault("CURRENCY_RATES", defaultRates),
		},
		Engine: EngineConfig{
			NetOpposingDebts:      parseBoolWithDefault("NET_OPPOSING_DEBTS", false),
			ConversionConcurrency: parseIntWithDefault("CONVERSION_CONCURRENCY", defaultConversionConcurrency),
			SessionSweepSchedule:  valueOrDefault("SESSION_SWEEP_SCHEDULE", defaultSessionSweepSchedule),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   valueOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
		},
		Logging: LoggingConfig{
			Level: valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if cfg.HTTP.ShutdownTimeout, err = parseDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Auth.TokenTTL, err = parseDuration("JWT_TTL", defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.Engine.SessionIdleTTL, err = parseDuration("SESSION_IDLE_TTL", defaultSessionIdleTTL); err != nil {
		return Config{}, err
	}

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORAGE value %q: want sqlite or memory", cfg.Storage.Driver)
	}
	if cfg.Engine.ConversionConcurrency <= 0 {
		return Config{}, fmt.Errorf("CONVERSION_CONCURRENCY must be positive, got %d", cfg.Engine.ConversionConcurrency)
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
