package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Artifacts ArtifactConfig
	Sandbox   SandboxConfig
	CDN       CDNConfig
	Cache     CacheConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Gzip            bool          `envconfig:"GZIP" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StorageConfig selects the project store backend.
type StorageConfig struct {
	Backend     string `envconfig:"STORAGE_BACKEND" default:"memory"` // memory, disk, postgres
	Dir         string `envconfig:"STORAGE_DIR" default:"./projects"`
	PostgresDSN string `envconfig:"STORAGE_PG_DSN"`
	Watch       bool   `envconfig:"STORAGE_WATCH" default:"true"`
}

// ArtifactConfig selects where deployed documents are kept.
type ArtifactConfig struct {
	Backend   string `envconfig:"ARTIFACT_BACKEND" default:"memory"` // memory, s3
	Endpoint  string `envconfig:"ARTIFACT_S3_ENDPOINT"`
	Region    string `envconfig:"ARTIFACT_S3_REGION" default:"us-east-1"`
	AccessKey string `envconfig:"ARTIFACT_S3_ACCESS_KEY"`
	SecretKey string `envconfig:"ARTIFACT_S3_SECRET_KEY"`
	Bucket    string `envconfig:"ARTIFACT_S3_BUCKET" default:"previews"`
	UseSSL    bool   `envconfig:"ARTIFACT_S3_SSL" default:"false"`
}

// SandboxConfig holds execution host settings.
type SandboxConfig struct {
	SignalTimeout time.Duration `envconfig:"SIGNAL_TIMEOUT" default:"5s"`
	ExecTimeout   time.Duration `envconfig:"EXEC_TIMEOUT" default:"3s"`
	PoolSize      int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	MaxCallStack  int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	Headless      bool          `envconfig:"SANDBOX_HEADLESS" default:"true"`
}

// CDNConfig holds third-party script origins. Empty values keep the
// unpinned defaults.
type CDNConfig struct {
	React         string        `envconfig:"CDN_REACT"`
	ReactDOM      string        `envconfig:"CDN_REACT_DOM"`
	Icons         string        `envconfig:"CDN_ICONS"`
	Tailwind      string        `envconfig:"CDN_TAILWIND"`
	Compiler      string        `envconfig:"CDN_COMPILER"`
	ProbeTimeout  time.Duration `envconfig:"CDN_PROBE_TIMEOUT" default:"5s"`
	ProbeInterval time.Duration `envconfig:"CDN_PROBE_INTERVAL" default:"5m"`
}

// CacheConfig sizes the assembled document cache.
type CacheConfig struct {
	Documents int `envconfig:"CACHE_DOCUMENTS" default:"256"`
}

// Load reads an optional .env file, then environment variables.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
			Gzip:            true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Dir:     "./projects",
			Watch:   true,
		},
		Artifacts: ArtifactConfig{
			Backend: "memory",
			Region:  "us-east-1",
			Bucket:  "previews",
		},
		Sandbox: SandboxConfig{
			SignalTimeout: 5 * time.Second,
			ExecTimeout:   3 * time.Second,
			PoolSize:      4,
			MaxCallStack:  1024,
			Headless:      true,
		},
		CDN: CDNConfig{
			ProbeTimeout:  5 * time.Second,
			ProbeInterval: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Documents: 256,
		},
	}
}
