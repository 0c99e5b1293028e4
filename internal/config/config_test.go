package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DBPath != "./data/trips.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Currency.DefaultHome != "usd" || cfg.Currency.Rates != "usd=1" {
		t.Errorf("Currency = %+v", cfg.Currency)
	}
	if cfg.Engine.NetOpposingDebts {
		t.Error("NetOpposingDebts should default to false")
	}
	if cfg.Engine.SessionIdleTTL != 30*time.Minute {
		t.Errorf("SessionIdleTTL = %v, want 30m", cfg.Engine.SessionIdleTTL)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Brokers = %v, want none", cfg.Kafka.Brokers)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("DEFAULT_HOME_CURRENCY", "EUR")
	t.Setenv("NET_OPPOSING_DEBTS", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SESSION_IDLE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Currency.DefaultHome != "eur" {
		t.Errorf("DefaultHome = %q, want eur", cfg.Currency.DefaultHome)
	}
	if !cfg.Engine.NetOpposingDebts {
		t.Error("NetOpposingDebts = false, want true")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Engine.SessionIdleTTL != 5*time.Minute {
		t.Errorf("SessionIdleTTL = %v, want 5m", cfg.Engine.SessionIdleTTL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "SERVER_PORT", "http"},
		{"port out of range", "SERVER_PORT", "70000"},
		{"bad ttl", "JWT_TTL", "forever"},
		{"unknown storage", "STORAGE", "postgres"},
		{"zero concurrency", "CONVERSION_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}
