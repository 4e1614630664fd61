// Package config loads the seeder configuration from an optional YAML file
// with SWAPI_* environment-variable overrides. The binary takes no flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "SWAPI_SEED_CONFIG"

// DefaultBaseURL is the people collection of the public SWAPI mirror.
const DefaultBaseURL = "https://swapi.dev/api/people/"

// Config is the top-level seeder configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SourceConfig holds remote API settings.
type SourceConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	MaxAttempts       int           `yaml:"maxAttempts"`
	InitialBackoff    time.Duration `yaml:"initialBackoff"`
	MaxBackoff        time.Duration `yaml:"maxBackoff"`
}

// PipelineConfig controls windowing and failure handling.
type PipelineConfig struct {
	WindowSize        int  `yaml:"windowSize"`
	SkipFailedWindows bool `yaml:"skipFailedWindows"`
	MaxNested         int  `yaml:"maxNested"`
}

// StoreConfig selects the destination database.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig holds the optional shared label cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// CacheConfig controls the in-process label cache.
type CacheConfig struct {
	MemorySize int `yaml:"memorySize"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig controls the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the file named by $SWAPI_SEED_CONFIG (if set) and applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(PathEnv))
}

// LoadFile reads a YAML config file (if path is non-empty), applies
// environment overrides and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:           DefaultBaseURL,
			UserAgent:         "swapi-ingest/0.1.0",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 20,
			Burst:             10,
			MaxAttempts:       1,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        30 * time.Second,
		},
		Pipeline: PipelineConfig{
			WindowSize: 5,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "swapi.db",
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Cache: CacheConfig{
			MemorySize: 4096,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects values the seeder cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.baseUrl must be an absolute URL (got %q)", c.Source.BaseURL)
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must be >= 0 (got %s)", c.Source.Timeout)
	}
	if c.Source.MaxAttempts < 1 {
		return fmt.Errorf("source.maxAttempts must be >= 1 (got %d)", c.Source.MaxAttempts)
	}
	if c.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("source.requestsPerSecond must be >= 0 (got %g)", c.Source.RequestsPerSecond)
	}
	if c.Pipeline.WindowSize < 1 {
		return fmt.Errorf("pipeline.windowSize must be >= 1 (got %d)", c.Pipeline.WindowSize)
	}
	if c.Pipeline.MaxNested < 0 {
		return fmt.Errorf("pipeline.maxNested must be >= 0 (got %d)", c.Pipeline.MaxNested)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides reads SWAPI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SWAPI_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("SWAPI_USER_AGENT"); v != "" {
		cfg.Source.UserAgent = v
	}
	if err := envDuration("SWAPI_TIMEOUT", &cfg.Source.Timeout); err != nil {
		return err
	}
	if err := envInt("SWAPI_MAX_ATTEMPTS", &cfg.Source.MaxAttempts); err != nil {
		return err
	}
	if err := envFloat("SWAPI_REQUESTS_PER_SECOND", &cfg.Source.RequestsPerSecond); err != nil {
		return err
	}
	if err := envInt("SWAPI_WINDOW_SIZE", &cfg.Pipeline.WindowSize); err != nil {
		return err
	}
	if err := envBool("SWAPI_SKIP_FAILED_WINDOWS", &cfg.Pipeline.SkipFailedWindows); err != nil {
		return err
	}
	if err := envInt("SWAPI_MAX_NESTED", &cfg.Pipeline.MaxNested); err != nil {
		return err
	}
	if v := os.Getenv("SWAPI_DB_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SWAPI_DB_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("SWAPI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SWAPI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SWAPI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if err := envBool("SWAPI_LOG_PRETTY", &cfg.Logging.Pretty); err != nil {
		return err
	}
	if v := os.Getenv("SWAPI_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
