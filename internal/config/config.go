// Package config loads the marketstore configuration from YAML and
// environment variables. Nothing here is a global: the loaded value is
// passed explicitly into each component constructor.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	redisx "github.com/mahrens917/marketstore/internal/redis"
	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
	Redis    redisx.Config `mapstructure:"redis" yaml:"redis"`
	Market   MarketConfig  `mapstructure:"market" yaml:"market"`
	Ledger   LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MarketConfig configures the snapshot pipeline.
type MarketConfig struct {
	KeyPrefix   string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	ReadRetries int           `mapstructure:"read_retries" yaml:"read_retries"`
	ReadDelay   time.Duration `mapstructure:"read_delay" yaml:"read_delay"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" yaml:"snapshot_ttl"`
}

// LedgerConfig configures the trade ledger and its CAS retry loop.
type LedgerConfig struct {
	KeyPrefix      string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	CASMaxAttempts int           `mapstructure:"cas_max_attempts" yaml:"cas_max_attempts"`
	CASBackoffBase time.Duration `mapstructure:"cas_backoff_base" yaml:"cas_backoff_base"`
	CASBackoffMax  time.Duration `mapstructure:"cas_backoff_max" yaml:"cas_backoff_max"`
	Timezone       string        `mapstructure:"timezone" yaml:"timezone"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Load reads configuration from path (optional) with MARKETSTORE_*
// environment overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MARKETSTORE")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	rd := redisx.DefaultConfig()
	v.SetDefault("redis.addr", rd.Addr)
	v.SetDefault("redis.db", rd.DB)
	v.SetDefault("redis.pool_size", rd.PoolSize)
	v.SetDefault("redis.min_idle_conns", rd.MinIdleConns)
	v.SetDefault("redis.pool_timeout", rd.PoolTimeout)
	v.SetDefault("redis.dial_timeout", rd.DialTimeout)
	v.SetDefault("redis.read_timeout", rd.ReadTimeout)
	v.SetDefault("redis.write_timeout", rd.WriteTimeout)

	v.SetDefault("market.key_prefix", "market")
	v.SetDefault("market.read_retries", 3)
	v.SetDefault("market.read_delay", 50*time.Millisecond)
	v.SetDefault("market.snapshot_ttl", time.Duration(0))

	v.SetDefault("ledger.key_prefix", "trades")
	v.SetDefault("ledger.cas_max_attempts", 5)
	v.SetDefault("ledger.cas_backoff_base", 10*time.Millisecond)
	v.SetDefault("ledger.cas_backoff_max", 500*time.Millisecond)
	v.SetDefault("ledger.timezone", "UTC")

	v.SetDefault("metrics.listen_addr", ":9109")
}

// Validate rejects configurations no component could run with.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return &storeerr.ConfigurationError{Reason: "redis.addr must be set"}
	}
	if c.Market.ReadRetries < 1 {
		return &storeerr.ConfigurationError{Reason: "market.read_retries must be at least 1"}
	}
	if c.Market.ReadDelay < 0 {
		return &storeerr.ConfigurationError{Reason: "market.read_delay must not be negative"}
	}
	if c.Ledger.CASMaxAttempts < 1 {
		return &storeerr.ConfigurationError{Reason: "ledger.cas_max_attempts must be at least 1"}
	}
	if c.Ledger.CASBackoffBase <= 0 {
		return &storeerr.ConfigurationError{Reason: "ledger.cas_backoff_base must be positive"}
	}
	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		return &storeerr.ConfigurationError{Reason: fmt.Sprintf("ledger.timezone %q is not a valid location", c.Ledger.Timezone)}
	}
	return nil
}

// Location resolves the ledger timezone. Validate has already confirmed
// it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
