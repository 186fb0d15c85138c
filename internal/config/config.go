// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service needs to run.
type Config struct {
	Port        int
	MetricsPort int
	LogLevel    string

	// Domain is the default marketplace; per-request domains override it.
	Domain  string
	Binding string

	FetchTimeout       time.Duration
	Fingerprint        string
	RequestsPerSecond  float64
	PaceMin            time.Duration
	PaceMax            time.Duration
	BreakerMaxFailures int
	BreakerWindow      time.Duration
	BreakerCooldown    time.Duration

	// HistoryBackend selects where fetch attempts are recorded:
	// memory, sqlite, jsonfile or postgres.
	HistoryBackend string
	SQLitePath     string
	JSONFilePath   string
	PostgresDSN    string
}

// Load reads configuration from the environment, preferring a .env file
// when one exists next to the binary.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments use actual env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               envInt("PORT", 8080),
		MetricsPort:        envInt("METRICS_PORT", 9090),
		LogLevel:           envString("LOG_LEVEL", "info"),
		Domain:             envString("MARKETPLACE_DOMAIN", "amazon.com"),
		Binding:            envString("DEFAULT_BINDING", "Paperback"),
		FetchTimeout:       envDuration("FETCH_TIMEOUT", 12*time.Second),
		Fingerprint:        envString("TLS_FINGERPRINT", "chrome"),
		RequestsPerSecond:  envFloat("REQUESTS_PER_SECOND", 0.5),
		PaceMin:            envDuration("PACE_MIN", 1500*time.Millisecond),
		PaceMax:            envDuration("PACE_MAX", 3*time.Second),
		BreakerMaxFailures: envInt("BREAKER_MAX_FAILURES", 3),
		BreakerWindow:      envDuration("BREAKER_WINDOW", 10*time.Minute),
		BreakerCooldown:    envDuration("BREAKER_COOLDOWN", 30*time.Minute),
		HistoryBackend:     envString("HISTORY_BACKEND", "memory"),
		SQLitePath:         envString("HISTORY_SQLITE_PATH", "pricescout.db"),
		JSONFilePath:       envString("HISTORY_JSONFILE_PATH", "fetch-log.ndjson"),
		PostgresDSN:        envString("HISTORY_POSTGRES_DSN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port %d", c.MetricsPort)
	}
	if c.MetricsPort == c.Port {
		return fmt.Errorf("metrics port %d collides with api port", c.MetricsPort)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %g", c.RequestsPerSecond)
	}
	if c.PaceMin < 0 || c.PaceMax < c.PaceMin {
		return fmt.Errorf("invalid pacing window [%s, %s]", c.PaceMin, c.PaceMax)
	}
	if c.BreakerMaxFailures <= 0 {
		return fmt.Errorf("breaker max failures must be positive, got %d", c.BreakerMaxFailures)
	}
	switch c.HistoryBackend {
	case "memory", "sqlite", "jsonfile", "postgres":
	default:
		return fmt.Errorf("unknown history backend %q", c.HistoryBackend)
	}
	if c.HistoryBackend == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("postgres history backend needs HISTORY_POSTGRES_DSN")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
