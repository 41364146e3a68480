package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "fairpay/backend/libs/config"
	"fairpay/backend/services/session-service/internal/models"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Mining monitors.
const (
	MonitorMock    = "mock"
	MonitorReceipt = "receipt"
)

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Port            string        `yaml:"port" env:"FAIRPAY_HTTP_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"FAIRPAY_HTTP_SHUTDOWN_TIMEOUT"`
	WSWriteTimeout  time.Duration `yaml:"wsWriteTimeout" env:"FAIRPAY_WS_WRITE_TIMEOUT"`
	WSPingInterval  time.Duration `yaml:"wsPingInterval" env:"FAIRPAY_WS_PING_INTERVAL"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" env:"FAIRPAY_ALLOWED_ORIGINS"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Backend string `yaml:"backend" env:"FAIRPAY_STORAGE"`
}

// DatabaseConfig configures the postgres backend.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"FAIRPAY_POSTGRES_DSN"`
	MaxOpenConns int    `yaml:"maxOpenConns" env:"FAIRPAY_POSTGRES_MAX_OPEN_CONNS"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"FAIRPAY_REDIS_ADDR"`
	Password string        `yaml:"password" env:"FAIRPAY_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"FAIRPAY_REDIS_DB"`
	Prefix   string        `yaml:"prefix" env:"FAIRPAY_REDIS_PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"FAIRPAY_REDIS_TTL"`
}

// SessionConfig holds session defaults and simulator cadence.
type SessionConfig struct {
	Mode             string        `yaml:"mode" env:"FAIRPAY_SESSION_MODE"`
	DefaultDeposit   string        `yaml:"defaultDeposit" env:"FAIRPAY_DEFAULT_DEPOSIT"`
	DefaultUnitPrice string        `yaml:"defaultUnitPrice" env:"FAIRPAY_DEFAULT_UNIT_PRICE"`
	AutoInterval     time.Duration `yaml:"autoInterval" env:"FAIRPAY_AUTO_INTERVAL"`
}

// HistoryConfig bounds the transaction log.
type HistoryConfig struct {
	MaxEntries   int    `yaml:"maxEntries" env:"FAIRPAY_HISTORY_MAX"`
	ExplorerBase string `yaml:"explorerBase" env:"FAIRPAY_EXPLORER_BASE"`
}

// StatusConfig tunes the status poller.
type StatusConfig struct {
	PollInterval     time.Duration `yaml:"pollInterval" env:"FAIRPAY_STATUS_POLL_INTERVAL"`
	RefreshPerSecond float64       `yaml:"refreshPerSecond" env:"FAIRPAY_STATUS_REFRESH_RPS"`
}

// MiningConfig picks and tunes the mining monitor.
type MiningConfig struct {
	Monitor      string        `yaml:"monitor" env:"FAIRPAY_MINING_MONITOR"`
	MinDelay     time.Duration `yaml:"minDelay" env:"FAIRPAY_MINING_MIN_DELAY"`
	MaxDelay     time.Duration `yaml:"maxDelay" env:"FAIRPAY_MINING_MAX_DELAY"`
	FailureRate  float64       `yaml:"failureRate" env:"FAIRPAY_MINING_FAILURE_RATE"`
	PollInterval time.Duration `yaml:"pollInterval" env:"FAIRPAY_RECEIPT_POLL_INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" env:"FAIRPAY_RECEIPT_TIMEOUT"`
	RPS          float64       `yaml:"rps" env:"FAIRPAY_RECEIPT_RPS"`
}

// ChainConfig describes the Ethereum network.
type ChainConfig struct {
	RPCURL string `yaml:"rpcUrl" env:"FAIRPAY_RPC_URL"`
}

// AuthConfig enables wallet tokens when Secret is set.
type AuthConfig struct {
	Secret       string        `yaml:"secret" env:"FAIRPAY_JWT_SECRET"`
	ExpiresIn    time.Duration `yaml:"expiresIn" env:"FAIRPAY_JWT_EXPIRES_IN"`
	ChallengeTTL time.Duration `yaml:"challengeTTL" env:"FAIRPAY_AUTH_CHALLENGE_TTL"`
}

// Config defines session service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	History  HistoryConfig  `yaml:"history"`
	Status   StatusConfig   `yaml:"status"`
	Mining   MiningConfig   `yaml:"mining"`
	Chain    ChainConfig    `yaml:"chain"`
	Auth     AuthConfig     `yaml:"auth"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			WSWriteTimeout:  10 * time.Second,
			WSPingInterval:  30 * time.Second,
		},
		Storage: StorageConfig{Backend: StorageMemory},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "fairpay",
		},
		Session: SessionConfig{
			Mode:             string(models.ModeSingle),
			DefaultDeposit:   "0.1",
			DefaultUnitPrice: "0.0000001",
			AutoInterval:     2 * time.Second,
		},
		History: HistoryConfig{
			MaxEntries:   50,
			ExplorerBase: "https://sepolia.etherscan.io",
		},
		Status: StatusConfig{
			PollInterval:     3 * time.Second,
			RefreshPerSecond: 5,
		},
		Mining: MiningConfig{
			Monitor:      MonitorMock,
			MinDelay:     2 * time.Second,
			MaxDelay:     4 * time.Second,
			PollInterval: 4 * time.Second,
			Timeout:      5 * time.Minute,
		},
		Auth: AuthConfig{ExpiresIn: time.Hour, ChallengeTTL: 5 * time.Minute},
	}
}

// Load reads configuration via the shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required for postgres storage")
		}
	case StorageRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("config: redis addr required for redis storage")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Mining.Monitor {
	case MonitorMock:
		if c.Mining.FailureRate < 0 || c.Mining.FailureRate > 1 {
			return errors.New("config: mining failure rate must be within [0, 1]")
		}
	case MonitorReceipt:
		if strings.TrimSpace(c.Chain.RPCURL) == "" {
			return errors.New("config: chain rpc url required for receipt monitor")
		}
	default:
		return fmt.Errorf("config: unknown mining monitor %q", c.Mining.Monitor)
	}

	if !models.SessionMode(c.Session.Mode).Valid() {
		return fmt.Errorf("config: unknown session mode %q", c.Session.Mode)
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// AuthEnabled reports whether session routes require a wallet token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.Secret != ""
}
