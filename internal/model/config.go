package model

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config represents DeepGuard configuration
type Config struct {
	Environment string          `json:"environment" yaml:"environment" mapstructure:"environment"`
	SecretKey   string          `json:"-" yaml:"secret_key" mapstructure:"secret_key"`
	Server      ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	CORS        CORSConfig      `json:"cors" yaml:"cors" mapstructure:"cors"`
	Upload      UploadConfig    `json:"upload" yaml:"upload" mapstructure:"upload"`
	Store       StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Retention   RetentionConfig `json:"retention" yaml:"retention" mapstructure:"retention"`
	Analysis    AnalysisConfig  `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Cache       CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	RateLimit   RateLimitConfig `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	Auth        AuthConfig      `json:"auth" yaml:"auth" mapstructure:"auth"`
	Events      EventsConfig    `json:"events" yaml:"events" mapstructure:"events"`
	LLM         LLMConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Logging     LoggingConfig   `json:"logging" yaml:"logging" mapstructure:"logging"`
	Dashboard   DashboardConfig `json:"dashboard" yaml:"dashboard" mapstructure:"dashboard"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Host              string        `json:"host" yaml:"host" mapstructure:"host"`
	Port              int           `json:"port" yaml:"port" mapstructure:"port"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxConnections    int           `json:"max_connections" yaml:"max_connections" mapstructure:"max_connections"` // 0 = unlimited
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig is the browser origin allow-list
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// UploadConfig bounds and places uploads
type UploadConfig struct {
	MaxBytes int64  `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
	Dir      string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// StoreConfig selects the result store driver
type StoreConfig struct {
	Driver    string `json:"driver" yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres, redis
	DSN       string `json:"-" yaml:"dsn" mapstructure:"dsn"`
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
}

// RetentionConfig holds time-to-live values for media and verdicts
type RetentionConfig struct {
	VerdictTTL    time.Duration `json:"verdict_ttl" yaml:"verdict_ttl" mapstructure:"verdict_ttl"`
	MediaTTL      time.Duration `json:"media_ttl" yaml:"media_ttl" mapstructure:"media_ttl"`
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// AnalysisConfig bounds the analyzer
type AnalysisConfig struct {
	Workers int           `json:"workers" yaml:"workers" mapstructure:"workers"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig controls the findings cache
type CacheConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `json:"dir" yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `json:"memory_ttl" yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `json:"disk_ttl" yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig is the per-client request budget
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	Burst             int     `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// AuthConfig toggles bearer token verification on /api routes
type AuthConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Issuer   string        `json:"issuer" yaml:"issuer" mapstructure:"issuer"`
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl" mapstructure:"token_ttl"`
}

// EventsConfig configures verdict event publishing. No brokers disables it.
type EventsConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `json:"topic" yaml:"topic" mapstructure:"topic"`
}

// LLMConfig holds narrator provider settings
type LLMConfig struct {
	Provider  string        `json:"provider" yaml:"provider" mapstructure:"provider"` // openai, ollama or "" (disabled)
	Model     string        `json:"model" yaml:"model" mapstructure:"model"`
	APIKey    string        `json:"-" yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LoggingConfig selects log level and format
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"` // text or json
}

// DashboardConfig selects the stats source
type DashboardConfig struct {
	Demo bool `json:"demo" yaml:"demo" mapstructure:"demo"`
}

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadHeaderTimeout: 10 * time.Second,
			RequestTimeout:    2 * time.Minute,
			MaxConnections:    256,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Upload: UploadConfig{
			MaxBytes: 50 * 1024 * 1024,
			Dir:      "uploads",
		},
		Store: StoreConfig{
			Driver:    DriverMemory,
			RedisAddr: "localhost:6379",
		},
		Retention: RetentionConfig{
			VerdictTTL:    7 * 24 * time.Hour,
			MediaTTL:      time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Analysis: AnalysisConfig{
			Workers: runtime.NumCPU(),
			Timeout: time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".deepguard/cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             10,
		},
		Auth: AuthConfig{
			Issuer:   "deepguard",
			TokenTTL: 24 * time.Hour,
		},
		Events: EventsConfig{
			Topic: "deepguard.verdicts",
		},
		LLM: LLMConfig{
			Timeout:   30 * time.Second,
			MaxTokens: 400,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations the service cannot start with
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q (supported: memory, sqlite, postgres, redis)", c.Store.Driver)
	}
	if (c.Store.Driver == DriverSQLite || c.Store.Driver == DriverPostgres) && c.Store.DSN == "" {
		return fmt.Errorf("store driver %s requires store.dsn", c.Store.Driver)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("upload.dir is required")
	}
	if c.Auth.Enabled && c.SecretKey == "" {
		return fmt.Errorf("auth.enabled requires secret_key")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q (supported: text, json)", c.Logging.Format)
	}
	return nil
}

// IsProduction reports whether the environment label is production
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
