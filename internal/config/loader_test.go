package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minishop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "minishop", cfg.Service.Name)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ProviderSimulator, cfg.Payments.Provider)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, 30*time.Minute, cfg.Payments.AttemptTTL)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 1024, cfg.Outbox.QueueSize)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
store:
  driver: postgres
  postgres_dsn: postgres://shop@db/shop
payments:
  currency: EUR
  attempt_ttl: 15m
sweep:
  interval: 30s
`)
	t.Setenv("MINISHOP_SWEEP_INTERVAL", "10s")
	t.Setenv("MINISHOP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://shop@db/shop", cfg.Store.PostgresDSN)
	assert.Equal(t, "eur", cfg.Payments.Currency)
	assert.Equal(t, 15*time.Minute, cfg.Payments.AttemptTTL)
	assert.Equal(t, 10*time.Second, cfg.Sweep.Interval, "environment wins over the file")
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
}

func TestLegacyServiceVariables(t *testing.T) {
	t.Setenv("SERVICE_NAME", "checkout")
	t.Setenv("ENV", "prod")
	t.Setenv("LOG_FILE", "/var/log/minishop.log")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "checkout", cfg.Service.Name)
	assert.Equal(t, "prod", cfg.Service.Env)
	assert.Equal(t, "/var/log/minishop.log", cfg.Service.LogFile)

	t.Setenv("MINISHOP_SERVICE_NAME", "preferred")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "preferred", cfg.Service.Name)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"MINISHOP_STORE_DRIVER": "sqlite"}, "store.driver"},
		{"postgres without dsn", map[string]string{"MINISHOP_STORE_DRIVER": "postgres"}, "store.postgres_dsn"},
		{"stripe without keys", map[string]string{"MINISHOP_PAYMENTS_PROVIDER": "stripe"}, "stripe_secret_key"},
		{"bad currency", map[string]string{"MINISHOP_PAYMENTS_CURRENCY": "dollars"}, "payments.currency"},
		{"bad success rate", map[string]string{"MINISHOP_PAYMENTS_SIM_SUCCESS_RATE": "1.5"}, "sim_success_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
