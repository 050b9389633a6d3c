package config

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"quote-proxy/src/models"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL          = "https://query1.finance.yahoo.com"
	DefaultSchema           = "public"
	DefaultRedisPrefix      = "quote-cache"
	DefaultMaxRetries       = 3
	DefaultRetryMinDelayMs  = 1000
	DefaultRetryMaxDelayMs  = 3000
	DefaultRequestTimeout   = 10
	DefaultConcurrency      = 4
	DefaultRetentionHours   = 7 * 24
	DefaultSweepMinutes     = 60
	DefaultWarmerSeconds    = 60
	DefaultWarmerPauseMin   = 60
	DefaultWarmerRange      = "1d"
	DefaultWarmerInterval   = "1m"
	DefaultStorageType      = "sqlite"
	DefaultSQLitePath       = "quote_cache.db"
	DefaultApplicationName  = "quote-proxy"
	DefaultApplicationLevel = "INFO"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes, applying defaults before validation.
func Parse(data []byte) (*Config, error) {
	// retry_server_errors defaults to true, so it must be set before unmarshal
	modelConfig := models.MConfig{
		Network: models.MNetworkConfig{RetryServerErrors: true},
	}
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultApplicationName
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultApplicationLevel
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = DefaultStorageType
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultSQLitePath
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = DefaultSchema
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = DefaultRedisPrefix
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = DefaultRequestTimeout
	}
	if c.Network.MaxRetries == 0 {
		c.Network.MaxRetries = DefaultMaxRetries
	}
	if c.Network.RetryMinDelayMs == 0 && c.Network.RetryMaxDelayMs == 0 {
		c.Network.RetryMinDelayMs = DefaultRetryMinDelayMs
		c.Network.RetryMaxDelayMs = DefaultRetryMaxDelayMs
	}
	if c.Network.ConcurrentRequests == 0 {
		c.Network.ConcurrentRequests = DefaultConcurrency
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	if c.Cache.RetentionHours == 0 {
		c.Cache.RetentionHours = DefaultRetentionHours
	}
	if c.Cache.SweepIntervalMinutes == 0 {
		c.Cache.SweepIntervalMinutes = DefaultSweepMinutes
	}
	if c.Warmer.UpdateIntervalSeconds == 0 {
		c.Warmer.UpdateIntervalSeconds = DefaultWarmerSeconds
	}
	if c.Warmer.ClosedPauseMinutes == 0 {
		c.Warmer.ClosedPauseMinutes = DefaultWarmerPauseMin
	}
	if c.Warmer.Range == "" {
		c.Warmer.Range = DefaultWarmerRange
	}
	if c.Warmer.Interval == "" {
		c.Warmer.Interval = DefaultWarmerInterval
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty for redis")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 1 {
		return fmt.Errorf("retries must be at least 1")
	}
	if c.Network.RetryMinDelayMs <= 0 || c.Network.RetryMaxDelayMs <= c.Network.RetryMinDelayMs {
		return fmt.Errorf("retry delay window [%d, %d) ms is invalid", c.Network.RetryMinDelayMs, c.Network.RetryMaxDelayMs)
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Upstream configuration
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid upstream base url: %q", c.Upstream.BaseURL)
	}

	// Validate Cache configuration
	if c.Cache.RetentionHours < 24 {
		return fmt.Errorf("retention hours must cover the 24h freshness window, got %d", c.Cache.RetentionHours)
	}
	if c.Cache.SweepIntervalMinutes < 0 {
		return fmt.Errorf("sweep interval cannot be negative")
	}

	// Validate Warmer configuration
	if c.Warmer.Enabled {
		if c.Warmer.UpdateIntervalSeconds <= 0 {
			return fmt.Errorf("warmer update interval must be greater than 0")
		}
		if len(c.Warmer.Symbols) == 0 {
			return fmt.Errorf("warmer must have at least one symbol")
		}
		for i, sym := range c.Warmer.Symbols {
			if sym == "" {
				return fmt.Errorf("warmer symbol %d cannot be empty", i)
			}
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Encode writes the configuration as YAML
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.MConfig); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	return enc.Close()
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Create the file (0644 permissions)
	f, err := os.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	// 2. Marshal the struct to YAML
	if err := c.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
