package ratelimit

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds pacing and retry settings for one host.
type Config struct {
	Strategy          Strategy      `yaml:"strategy" json:"strategy"`
	RequestsPerSec    float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	FixedDelay        time.Duration `yaml:"fixed_delay" json:"fixed_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// DefaultConfig is polite enough for the public data portal, which serves
// a handful of archives per scheduled run.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyTokenBucket,
		RequestsPerSec:    1.0,
		Burst:             2,
		FixedDelay:        time.Second,
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// UnmarshalYAML decodes on top of DefaultConfig, so keys left out of the
// document keep their defaults and an explicit max_retries of 0 survives.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	cfg := plain(DefaultConfig())
	if err := value.Decode(&cfg); err != nil {
		return err
	}
	*c = Config(cfg)
	return nil
}

// WithDefaults fills every unset field of cfg from DefaultConfig. A zero
// MaxRetries disables retries; only a negative one is replaced.
func WithDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = def.FixedDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	return cfg
}

// HostConfigs maps a host name to its limiter settings. Hosts without an
// entry use the fallback.
type HostConfigs struct {
	Fallback Config
	Hosts    map[string]Config
}

// For returns the settings for host. Lookups ignore case and a "www." prefix.
func (h HostConfigs) For(host string) Config {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if cfg, ok := h.Hosts[host]; ok {
		return WithDefaults(cfg)
	}
	return WithDefaults(h.Fallback)
}
