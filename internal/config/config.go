// Package config loads service configuration from an optional YAML file with
// ${VAR} expansion, then applies SCOREBOARD_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"go.yaml.in/yaml/v3"

	"github.com/Sternrassler/scoreboard-cache/pkg/logging"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SCOREBOARD_"

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"    envPrefix:"SERVER_"`
	Upstream  UpstreamConfig  `yaml:"upstream"  envPrefix:"UPSTREAM_"`
	Cache     CacheConfig     `yaml:"cache"     envPrefix:"CACHE_"`
	Redis     RedisConfig     `yaml:"redis"     envPrefix:"REDIS_"`
	Database  DatabaseConfig  `yaml:"database"  envPrefix:"DATABASE_"`
	Logging   LoggingConfig   `yaml:"logging"   envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TRACING_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// UpstreamConfig holds football-data API settings.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"        env:"BASE_URL"`
	APIKey         string        `yaml:"api_key"         env:"API_KEY"`
	UserAgent      string        `yaml:"user_agent"      env:"USER_AGENT"`
	Timeout        time.Duration `yaml:"timeout"         env:"TIMEOUT"`
	MaxRetries     int           `yaml:"max_retries"     env:"MAX_RETRIES"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff"     env:"MAX_BACKOFF"`
	DNSRefresh     time.Duration `yaml:"dns_refresh"     env:"DNS_REFRESH"`
	PageWorkers    int           `yaml:"page_workers"    env:"PAGE_WORKERS"`
}

// CacheConfig selects the durable backend and the optional memory tier.
// MemoryTTL bounds how long the memory tier may serve an entry that another
// process has since replaced or deleted in a shared backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend"     env:"BACKEND"`     // sqlite or redis
	MemorySize int           `yaml:"memory_size" env:"MEMORY_SIZE"` // 0 disables the memory tier
	MemoryTTL  time.Duration `yaml:"memory_ttl"  env:"MEMORY_TTL"`  // 0 never expires
}

// RedisConfig holds Redis settings. An empty Addr disables Redis, which also
// disables shared quota tracking.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db"       env:"DB"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DSN"` // file path or ":memory:"
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PRETTY"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"     env:"ENABLED"`
	Endpoint   string  `yaml:"endpoint"    env:"ENDPOINT"` // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://v3.football.api-sports.io",
			UserAgent:      "scoreboard-cache/1.0",
			Timeout:        20 * time.Second,
			MaxRetries:     2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			DNSRefresh:     5 * time.Minute,
			PageWorkers:    4,
		},
		Cache: CacheConfig{
			Backend:    BackendSQLite,
			MemorySize: 10_000,
			MemoryTTL:  10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Database: DatabaseConfig{
			DSN: "scoreboard.db",
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Upstream.APIKey == "" {
		errs = append(errs, errors.New("upstream.api_key is required"))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("upstream.max_retries must be >= 0 (got %d)", c.Upstream.MaxRetries))
	}
	if c.Upstream.PageWorkers < 1 {
		errs = append(errs, fmt.Errorf("upstream.page_workers must be >= 1 (got %d)", c.Upstream.PageWorkers))
	}

	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be %q or %q (got %q)", BackendSQLite, BackendRedis, c.Cache.Backend))
	}
	if c.Cache.MemorySize < 0 {
		errs = append(errs, fmt.Errorf("cache.memory_size must be >= 0 (got %d)", c.Cache.MemorySize))
	}
	if c.Cache.MemoryTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.memory_ttl must be >= 0 (got %s)", c.Cache.MemoryTTL))
	}
	if c.Cache.Backend == BackendRedis && c.Cache.MemorySize > 0 && c.Cache.MemoryTTL == 0 {
		errs = append(errs, errors.New("cache.memory_ttl must be set when a memory tier sits in front of the shared redis backend"))
	}

	if err := logging.LogLevel(c.Logging.Level).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be within [0, 1] (got %v)", c.Telemetry.SampleRate))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}
