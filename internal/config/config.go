package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

const (
	// L1Shards is the number of BigCache shards; one entry must fit in a shard
	L1Shards = 64

	// SnapshotHeadroomBytes is the part of an L1 entry kept for status, headers and framing
	SnapshotHeadroomBytes = 16 * 1024
)

// Config represents the main configuration structure
type Config struct {
	L1         L1Config         `yaml:"l1"`
	L2         L2Config         `yaml:"l2"`
	MultiCache MultiCacheConfig `yaml:"multi_cache"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Server     ServerConfig     `yaml:"server"`
}

// L1Config configures the in-process BigCache region store
type L1Config struct {
	Enabled        bool `yaml:"enabled"`
	Size           int  `yaml:"size" validate:"gte=0"`             // MB
	MaxEntrySizeKB int  `yaml:"max_entry_size_kb" validate:"gte=0"` // KB
	StatsInterval  int  `yaml:"stats_interval" validate:"gte=0"`    // seconds
}

// L2Config configures the KeyDB region store
type L2Config struct {
	Enabled    bool             `yaml:"enabled"`
	KeyPrefix  string           `yaml:"key_prefix"`
	Connection ConnectionConfig `yaml:"connection"`
	Keepalive  KeepaliveConfig  `yaml:"keepalive"`
}

// ConnectionConfig holds KeyDB timeouts in milliseconds
type ConnectionConfig struct {
	ConnectTimeout int `yaml:"connect_timeout" validate:"gte=0"`
	SendTimeout    int `yaml:"send_timeout" validate:"gte=0"`
	ReadTimeout    int `yaml:"read_timeout" validate:"gte=0"`
}

// KeepaliveConfig holds KeyDB pool settings
type KeepaliveConfig struct {
	PoolSize       int `yaml:"pool_size" validate:"gte=0"`
	MaxIdleTimeout int `yaml:"max_idle_timeout" validate:"gte=0"` // milliseconds
}

// MultiCacheConfig configures the layered store
type MultiCacheConfig struct {
	EnablePropagation bool `yaml:"enable_propagation"` // copy L2 hits into L1
}

// UpstreamConfig describes the origin the proxy fronts
type UpstreamConfig struct {
	Origin               string `yaml:"origin" validate:"required,url"`
	FetchTimeout         int    `yaml:"fetch_timeout" validate:"gte=0"` // milliseconds
	MaxBodyBytes         int64  `yaml:"max_body_bytes" validate:"gte=0"`
	ProvisionConcurrency int    `yaml:"provision_concurrency" validate:"gte=0"`
	UserAgent            string `yaml:"user_agent"`
}

// ServerConfig configures the HTTP listeners
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	SocketPath      string `yaml:"socket_path"`
	ReadTimeout     int    `yaml:"read_timeout" validate:"gte=0"`     // seconds
	WriteTimeout    int    `yaml:"write_timeout" validate:"gte=0"`    // seconds
	IdleTimeout     int    `yaml:"idle_timeout" validate:"gte=0"`     // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout" validate:"gte=0"` // seconds
}

// LoadConfig loads configuration from file path
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	logger.Info("Loading configuration", zap.String("path", configPath))

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var config Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration after defaults were applied
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Server.ListenAddr == "" && c.Server.SocketPath == "" {
		return fmt.Errorf("invalid configuration: server.listen_addr or server.socket_path is required")
	}
	if c.L1.Enabled {
		if shard := int64(c.L1.Size) * 1024 * 1024 / L1Shards; int64(c.L1.MaxEntrySizeKB)*1024 > shard {
			return fmt.Errorf("invalid configuration: l1.max_entry_size_kb %d does not fit a cache shard of %d bytes",
				c.L1.MaxEntrySizeKB, shard)
		}
		if limit := c.L1.MaxBodyBytes(); c.Upstream.MaxBodyBytes > limit {
			return fmt.Errorf("invalid configuration: upstream.max_body_bytes %d exceeds the largest storable body of %d bytes",
				c.Upstream.MaxBodyBytes, limit)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.L1.Size == 0 {
		c.L1.Size = 100
	}
	if c.L1.MaxEntrySizeKB == 0 {
		c.L1.MaxEntrySizeKB = 1024
	}
	if c.L1.StatsInterval == 0 {
		c.L1.StatsInterval = 30
	}

	if c.L2.KeyPrefix == "" {
		c.L2.KeyPrefix = "offline-proxy"
	}
	if c.L2.Connection.ConnectTimeout == 0 {
		c.L2.Connection.ConnectTimeout = 1000
	}
	if c.L2.Connection.SendTimeout == 0 {
		c.L2.Connection.SendTimeout = 1000
	}
	if c.L2.Connection.ReadTimeout == 0 {
		c.L2.Connection.ReadTimeout = 1000
	}
	if c.L2.Keepalive.PoolSize == 0 {
		c.L2.Keepalive.PoolSize = 10
	}
	if c.L2.Keepalive.MaxIdleTimeout == 0 {
		c.L2.Keepalive.MaxIdleTimeout = 10000
	}

	if c.Upstream.FetchTimeout == 0 {
		c.Upstream.FetchTimeout = 10000
	}
	if c.Upstream.MaxBodyBytes == 0 {
		c.Upstream.MaxBodyBytes = c.L1.MaxBodyBytes()
	}
	if c.Upstream.ProvisionConcurrency == 0 {
		c.Upstream.ProvisionConcurrency = 4
	}

	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
}

// GetConnectTimeout returns the KeyDB dial timeout
func (c *L2Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Connection.ConnectTimeout) * time.Millisecond
}

// GetReadTimeout returns the KeyDB read timeout
func (c *L2Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Connection.ReadTimeout) * time.Millisecond
}

// GetSendTimeout returns the KeyDB write timeout
func (c *L2Config) GetSendTimeout() time.Duration {
	return time.Duration(c.Connection.SendTimeout) * time.Millisecond
}

// GetMaxIdleTimeout returns how long an idle KeyDB connection is kept
func (c *L2Config) GetMaxIdleTimeout() time.Duration {
	return time.Duration(c.Keepalive.MaxIdleTimeout) * time.Millisecond
}

// GetFetchTimeout returns the bound on a single network fetch
func (c *UpstreamConfig) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Millisecond
}

// MaxBodyBytes returns the largest response body whose encoded snapshot
// still fits an L1 entry
func (c *L1Config) MaxBodyBytes() int64 {
	entry := int64(c.MaxEntrySizeKB) * 1024
	headroom := int64(SnapshotHeadroomBytes)
	if headroom > entry/4 {
		headroom = entry / 4
	}
	return entry - headroom
}

// GetStatsInterval returns the L1 metrics collection interval
func (c *L1Config) GetStatsInterval() time.Duration {
	return time.Duration(c.StatsInterval) * time.Second
}

// GetShutdownTimeout returns the graceful shutdown deadline
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}
