package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the Powers service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"POWERS_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"POWERS_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage selects the backend for deployments, layouts and events:
	// "redis" or "memory".
	Storage string `env:"POWERS_STORAGE" envDefault:"redis"`

	Redis    RedisConfig
	Chain    ChainConfig
	Layout   LayoutConfig
	Workers  WorkerConfig
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	ConsumerGroup string `env:"REDIS_CONSUMER_GROUP" envDefault:"powers-workers"`
	ConsumerName  string `env:"REDIS_CONSUMER_NAME" envDefault:"powers-1"`
}

// ChainConfig holds EVM connection and deployment settings
type ChainConfig struct {
	// RPCURLs maps chain ids to JSON-RPC endpoints, e.g.
	// "31337=http://localhost:8545,11155111=https://rpc.sepolia.org".
	RPCURLs    map[string]string `env:"CHAIN_RPC_URLS" envKeyValSeparator:"=" envDefault:"31337=http://localhost:8545"`
	PrivateKey string            `env:"CHAIN_PRIVATE_KEY"`

	// StaticDataURL is the base location of <chainId>.json documents, an
	// http(s) URL or a directory.
	StaticDataURL string `env:"STATIC_DATA_URL" envDefault:"./static"`

	IndexingDelay       time.Duration `env:"CHAIN_INDEXING_DELAY" envDefault:"500ms"`
	ReceiptPollInterval time.Duration `env:"CHAIN_RECEIPT_POLL_INTERVAL" envDefault:"1s"`
}

// LayoutConfig holds layout cache settings
type LayoutConfig struct {
	// TTL of stored layouts; zero keeps them forever.
	TTL           time.Duration `env:"LAYOUT_TTL" envDefault:"0s"`
	Debounce      time.Duration `env:"LAYOUT_DEBOUNCE" envDefault:"500ms"`
	DeploymentTTL time.Duration `env:"DEPLOYMENT_TTL" envDefault:"168h"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	DeploymentTimeout time.Duration `env:"TIMEOUT_DEPLOYMENT" envDefault:"30m"`
	QueueTimeout      time.Duration `env:"TIMEOUT_QUEUE" envDefault:"10m"`
	LayoutWrite       time.Duration `env:"TIMEOUT_LAYOUT_WRITE" envDefault:"5s"`
	SessionIdle       time.Duration `env:"TIMEOUT_SESSION_IDLE" envDefault:"1h"`
	ShutdownTimeout   time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.Storage {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be redis or memory)", c.Storage)
	}

	if _, err := c.Chain.Endpoints(); err != nil {
		return err
	}
	if c.Chain.StaticDataURL == "" {
		return fmt.Errorf("static data URL is required")
	}
	if c.Chain.IndexingDelay < 0 {
		return fmt.Errorf("indexing delay must not be negative")
	}

	if c.Layout.Debounce < 0 {
		return fmt.Errorf("layout debounce must not be negative")
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	if c.Timeouts.DeploymentTimeout <= 0 {
		return fmt.Errorf("deployment timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Endpoints parses the RPC map keys as chain ids.
func (c ChainConfig) Endpoints() (map[uint64]string, error) {
	out := make(map[uint64]string, len(c.RPCURLs))
	for k, url := range c.RPCURLs {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in CHAIN_RPC_URLS: %q", k)
		}
		if url == "" {
			return nil, fmt.Errorf("empty RPC URL for chain %d", id)
		}
		out[id] = url
	}
	return out, nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
