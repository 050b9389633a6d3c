package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Upstream MUpstreamConfig `yaml:"upstream"`
	Cache    MCacheConfig    `yaml:"cache"`
	Warmer   MWarmerConfig   `yaml:"warmer"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // postgres, sqlite or redis
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	Schema             string `yaml:"schema"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisPassword      string `yaml:"redis_password"`
	RedisDB            int    `yaml:"redis_db"`
	RedisPrefix        string `yaml:"redis_prefix"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"` // enables proxy rotation
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"` // seconds, per attempt
	MaxRetries         int      `yaml:"retries"` // total attempts
	RetryMinDelayMs    int      `yaml:"retry_min_delay_ms"`
	RetryMaxDelayMs    int      `yaml:"retry_max_delay_ms"`
	RetryServerErrors  bool     `yaml:"retry_server_errors"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MUpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
}

type MCacheConfig struct {
	RetentionHours       int `yaml:"retention_hours"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

type MWarmerConfig struct {
	Enabled               bool     `yaml:"enabled"`
	UpdateIntervalSeconds int      `yaml:"update_interval_seconds"`
	ClosedPauseMinutes    int      `yaml:"closed_pause_minutes"`
	Range                 string   `yaml:"range"`
	Interval              string   `yaml:"interval"`
	Symbols               []string `yaml:"symbols"`
}
