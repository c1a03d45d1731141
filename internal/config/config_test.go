package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8002", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadServerConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
log_level: debug
cors_allowed_origins:
  - https://app.example.com
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestServerConfigJWTSecretFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadCollectorConfigDefaults(t *testing.T) {
	cfg, err := LoadCollectorConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, []string{"1m"}, cfg.Intervals)
	assert.Equal(t, 500, cfg.Limit)
	assert.Equal(t, "@every 1m", cfg.CronSpec)
	assert.Equal(t, "https://fapi.binance.com", cfg.Binance.Address)
	assert.Equal(t, 500, cfg.Binance.RequestsPerMinute)
}

func TestLoadCollectorConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
symbols:
  - BTCUSDT
  - ETHUSDT
intervals:
  - 1h
  - 4h
limit: 1000
cron: "@every 5m"
binance:
  address: https://testnet.binancefuture.com
  requests_per_minute: 100
`)

	cfg, err := LoadCollectorConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, []string{"1h", "4h"}, cfg.Intervals)
	assert.Equal(t, 1000, cfg.Limit)
	assert.Equal(t, "@every 5m", cfg.CronSpec)
	assert.Equal(t, "https://testnet.binancefuture.com", cfg.Binance.Address)
	assert.Equal(t, 100, cfg.Binance.RequestsPerMinute)
}

func TestLoadCollectorConfigBadInterval(t *testing.T) {
	path := writeConfig(t, `
intervals:
  - 13h
`)

	_, err := LoadCollectorConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "13h")
}

func TestCollectorConfigLimitClamped(t *testing.T) {
	for _, limit := range []int{-1, 0, 1501} {
		cfg := (&CollectorConfig{Limit: limit}).Setup()
		assert.Equal(t, 500, cfg.Limit)
	}

	cfg := (&CollectorConfig{Limit: 1500}).Setup()
	assert.Equal(t, 1500, cfg.Limit)
}
