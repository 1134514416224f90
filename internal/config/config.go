package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/ratelimit"
)

// Config is the root configuration file layout.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Server   ServerConfig   `yaml:"server"`
	Tables   []TableConfig  `yaml:"tables" validate:"dive"`
}

type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver" validate:"oneof=sqlite postgres mysql"`
	DSN          string `yaml:"dsn" validate:"required"`
	Debug        bool   `yaml:"debug"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig is optional; without an address checksums are kept in the database
// and cache invalidation is a no-op.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	// CachePrefix scopes the keys invalidated after a table changes.
	CachePrefix string `yaml:"cache_prefix"`
}

// S3Config enables s3:// sources. Credentials fall back to the AWS default
// chain when AccessKey is empty.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type FetcherConfig struct {
	WorkDir   string           `yaml:"work_dir"`
	Timeout   time.Duration    `yaml:"timeout"`
	UserAgent string           `yaml:"user_agent"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	// RateLimits overrides RateLimit per source host.
	RateLimits map[string]ratelimit.Config `yaml:"rate_limits"`
}

// Limits returns the per-host limiter settings.
func (f FetcherConfig) Limits() ratelimit.HostConfigs {
	return ratelimit.HostConfigs{Fallback: f.RateLimit, Hosts: f.RateLimits}
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TableConfig describes one dataset table. Transforms reference builtin
// transforms by name and are applied in order.
type TableConfig struct {
	Name           string              `yaml:"name" validate:"required"`
	SourceURL      string              `yaml:"source_url" validate:"required"`
	CSVFile        string              `yaml:"csv_file"`
	PartitionField string              `yaml:"partition_field"`
	KeyFields      []string            `yaml:"key_fields" validate:"required,min=1,dive,required"`
	ColumnMapping  map[string]string   `yaml:"column_mapping"`
	Transforms     map[string][]string `yaml:"transforms"`
	BatchSize      int                 `yaml:"batch_size" validate:"gte=0"`
	Schedule       string              `yaml:"schedule"`
}

// Load reads the file at path, or CONFIG_PATH, or config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Fetcher: FetcherConfig{RateLimit: ratelimit.DefaultConfig()}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Tables))
	for _, t := range cfg.Tables {
		if seen[t.Name] {
			return nil, fmt.Errorf("invalid config: duplicate table %q", t.Name)
		}
		seen[t.Name] = true
	}
	return &cfg, nil
}

// Table returns the named table entry.
func (c *Config) Table(name string) (TableConfig, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sgcarstrends-updater"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:sgcarstrends.db"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "sgcarstrends:"
	}
	if cfg.Redis.CachePrefix == "" {
		cfg.Redis.CachePrefix = "cache:"
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "ap-southeast-1"
	}
	if cfg.Fetcher.WorkDir == "" {
		cfg.Fetcher.WorkDir = os.TempDir()
	}
	if cfg.Fetcher.Timeout <= 0 {
		cfg.Fetcher.Timeout = 60 * time.Second
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	cfg.Fetcher.RateLimit = ratelimit.WithDefaults(cfg.Fetcher.RateLimit)
}
