package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/orderflow-checkout/internal/payment"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"POSTGRES_URL": "postgres://localhost/orderflow",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, payment.SandboxBaseURL, cfg.Midtrans.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Midtrans.Timeout)
	assert.Equal(t, 5*time.Second, cfg.EmailTimeout)
	assert.Zero(t, cfg.Expiry.SweepInterval)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"PORT":                  "9090",
		"POSTGRES_URL":          "postgres://db/orderflow",
		"KAFKA_BROKERS":         "kafka-1:9092, kafka-2:9092,",
		"REDIS_URL":             "redis://cache:6379/0",
		"MIDTRANS_BASE_URL":     "https://app.midtrans.com/",
		"MIDTRANS_SERVER_KEY":   "server",
		"MIDTRANS_CLIENT_KEY":   "client",
		"GATEWAY_TIMEOUT":       "3s",
		"EXPIRY_SWEEP_INTERVAL": "30s",
		"LOG_LEVEL":             "debug",
		"EMAIL_SERVICE_URL":     "http://email:8084/",
		"EMAIL_TIMEOUT":         "2s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://app.midtrans.com", cfg.Midtrans.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Midtrans.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Expiry.SweepInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "http://email:8084", cfg.EmailServiceURL)
	assert.Equal(t, 2*time.Second, cfg.EmailTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad timeout", env: map[string]string{"POSTGRES_URL": "x", "GATEWAY_TIMEOUT": "soon"}, want: "GATEWAY_TIMEOUT"},
		{name: "negative sweep", env: map[string]string{"POSTGRES_URL": "x", "EXPIRY_SWEEP_INTERVAL": "-1m"}, want: "EXPIRY_SWEEP_INTERVAL"},
		{name: "zero email timeout", env: map[string]string{"POSTGRES_URL": "x", "EMAIL_TIMEOUT": "0"}, want: "EMAIL_TIMEOUT"},
		{name: "bad level", env: map[string]string{"POSTGRES_URL": "x", "LOG_LEVEL": "loud"}, want: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookupFrom(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ComponentValidation(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{}))
	require.NoError(t, err)

	assert.EqualError(t, cfg.ValidateAPI(), "POSTGRES_URL is required")
	assert.EqualError(t, cfg.ValidateWorker(), "KAFKA_BROKERS is required")

	cfg.Kafka.Brokers = []string{"kafka:9092"}
	assert.EqualError(t, cfg.ValidateWorker(), "EMAIL_SERVICE_URL is required")

	cfg.EmailServiceURL = "http://email:8084"
	cfg.Postgres.URL = "postgres://db/orderflow"
	assert.NoError(t, cfg.ValidateWorker())
	assert.NoError(t, cfg.ValidateAPI())
}
