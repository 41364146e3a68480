package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyDotEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DOTENV_FILE", emptyDotEnv(t))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, MonitorMock, cfg.Mining.Monitor)
	assert.Equal(t, 3*time.Second, cfg.Status.PollInterval)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
  allowedOrigins: ["https://app.fairpay.xyz"]
storage:
  backend: redis
session:
  mode: direct
  autoInterval: 500ms
mining:
  failureRate: 0.25
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DOTENV_FILE", emptyDotEnv(t))
	t.Setenv("FAIRPAY_REDIS_ADDR", "redis:6379")
	t.Setenv("FAIRPAY_JWT_SECRET", "s3cret")
	t.Setenv("FAIRPAY_MINING_MAX_DELAY", "10s")
	t.Setenv("FAIRPAY_AUTH_CHALLENGE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, []string{"https://app.fairpay.xyz"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "direct", cfg.Session.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.AutoInterval)
	assert.Equal(t, 0.25, cfg.Mining.FailureRate)
	assert.Equal(t, 10*time.Second, cfg.Mining.MaxDelay)
	assert.Equal(t, 2*time.Second, cfg.Mining.MinDelay, "defaults survive partial yaml")
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, 90*time.Second, cfg.Auth.ChallengeTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = StoragePostgres }},
		{"redis without addr", func(c *Config) { c.Storage.Backend = StorageRedis; c.Redis.Addr = "" }},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"receipt without rpc", func(c *Config) { c.Mining.Monitor = MonitorReceipt }},
		{"unknown monitor", func(c *Config) { c.Mining.Monitor = "oracle" }},
		{"failure rate", func(c *Config) { c.Mining.FailureRate = 1.5 }},
		{"unknown mode", func(c *Config) { c.Session.Mode = "contract" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
