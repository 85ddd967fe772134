// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joao-fontenele/orderflow-checkout/internal/payment"
)

type Config struct {
	Port           string
	ServiceVersion string
	LogLevel       slog.Level

	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Midtrans  MidtransConfig
	Expiry    ExpiryConfig
	Telemetry TelemetryConfig

	EmailServiceURL string
	EmailTimeout    time.Duration
	EmailPort       string
	MigrationsPath  string
}

type PostgresConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
}

type RedisConfig struct {
	URL string
}

type MidtransConfig struct {
	BaseURL   string
	ServerKey string
	ClientKey string
	Timeout   time.Duration
}

type ExpiryConfig struct {
	// SweepInterval of zero disables the background sweeper.
	SweepInterval time.Duration
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the os.LookupEnv signature.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:           get("PORT", "8080"),
		ServiceVersion: get("SERVICE_VERSION", "0.1.0"),
		Postgres: PostgresConfig{
			URL: get("POSTGRES_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(get("KAFKA_BROKERS", "")),
		},
		Redis: RedisConfig{
			URL: get("REDIS_URL", ""),
		},
		Midtrans: MidtransConfig{
			BaseURL:   strings.TrimRight(get("MIDTRANS_BASE_URL", payment.SandboxBaseURL), "/"),
			ServerKey: get("MIDTRANS_SERVER_KEY", ""),
			ClientKey: get("MIDTRANS_CLIENT_KEY", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		EmailServiceURL: strings.TrimRight(get("EMAIL_SERVICE_URL", ""), "/"),
		EmailPort:       get("EMAIL_PORT", "8084"),
		MigrationsPath:  get("MIGRATIONS_PATH", "file://migrations"),
	}

	var err error
	if cfg.Midtrans.Timeout, err = parseDuration("GATEWAY_TIMEOUT", get("GATEWAY_TIMEOUT", "10s")); err != nil {
		return nil, err
	}
	if cfg.EmailTimeout, err = parseDuration("EMAIL_TIMEOUT", get("EMAIL_TIMEOUT", "5s")); err != nil {
		return nil, err
	}
	if cfg.Expiry.SweepInterval, err = parseDuration("EXPIRY_SWEEP_INTERVAL", get("EXPIRY_SWEEP_INTERVAL", "0")); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Midtrans.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.EmailTimeout <= 0 {
		return fmt.Errorf("EMAIL_TIMEOUT must be positive")
	}
	if c.Expiry.SweepInterval < 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

// ValidateAPI checks what cmd/api and cmd/migrate need beyond Validate.
func (c *Config) ValidateAPI() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("POSTGRES_URL is required")
	}
	return nil
}

// ValidateWorker checks what cmd/worker needs beyond Validate.
func (c *Config) ValidateWorker() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.EmailServiceURL == "" {
		return fmt.Errorf("EMAIL_SERVICE_URL is required")
	}
	return nil
}

// NewLogger is the JSON stdout logger every binary uses.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
