// Package config defines molscene's configuration structures. No I/O or
// parsing logic lives here, only plain data types, conversion to the
// infrastructure configs and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/infrastructure/database/redis"
	"github.com/turtacn/molscene/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// RenderConfig selects the ribbon representation.
type RenderConfig struct {
	RibbonForm  string  `mapstructure:"ribbon_form"`
	Smoothing   bool    `mapstructure:"smoothing"`
	Quality     float64 `mapstructure:"quality"`
	Concurrency int     `mapstructure:"concurrency"`
}

// CacheConfig controls the optional shared mesh tier.
type CacheConfig struct {
	SharedTier bool          `mapstructure:"shared_tier"`
	SharedTTL  time.Duration `mapstructure:"shared_ttl"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

// KafkaConfig controls invalidation event publishing and, when Subscribe is
// set, consumption of invalidations published by peers.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	Source      string   `mapstructure:"source"`
	Subscribe   bool     `mapstructure:"subscribe"`
	GroupID     string   `mapstructure:"group_id"`
	Acks        string   `mapstructure:"acks"`
	Compression string   `mapstructure:"compression"`

	Security kafka.SecurityConfig `mapstructure:"security"`
}

// MetricsConfig controls prometheus registration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

// Config is the root configuration object.
type Config struct {
	Render  RenderConfig      `mapstructure:"render"`
	Cache   CacheConfig       `mapstructure:"cache"`
	Redis   redis.RedisConfig `mapstructure:"redis"`
	Kafka   KafkaConfig       `mapstructure:"kafka"`
	Log     logging.LogConfig `mapstructure:"log"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversions
// ─────────────────────────────────────────────────────────────────────────────

// RibbonConfig returns the geometry configuration. The form must already
// have passed Validate.
func (c *Config) RibbonConfig() (geometry.RibbonConfig, error) {
	form, err := geometry.ParseRibbonForm(c.Render.RibbonForm)
	if err != nil {
		return geometry.RibbonConfig{}, err
	}
	return geometry.RibbonConfig{Form: form, Smoothing: c.Render.Smoothing}, nil
}

func (k KafkaConfig) ProducerConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:          k.Brokers,
		Acks:             k.Acks,
		CompressionCodec: k.Compression,
		Security:         k.Security,
	}
}

func (k KafkaConfig) ConsumerConfig() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:  k.Brokers,
		GroupID:  k.GroupID,
		Topics:   []string{k.Topic},
		Security: k.Security,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and
// returns the first error encountered.
func (c *Config) Validate() error {
	// Render
	if _, err := geometry.ParseRibbonForm(c.Render.RibbonForm); err != nil {
		return fmt.Errorf("config: render.ribbon_form %q is invalid: %w", c.Render.RibbonForm, err)
	}
	if c.Render.Quality <= 0 || c.Render.Quality > 1 {
		return fmt.Errorf("config: render.quality %g is out of range (0, 1]", c.Render.Quality)
	}
	if c.Render.Concurrency < 1 {
		return fmt.Errorf("config: render.concurrency must be >= 1, got %d", c.Render.Concurrency)
	}

	// Cache
	if c.Cache.SharedTTL < 0 {
		return fmt.Errorf("config: cache.shared_ttl must not be negative")
	}
	if c.Cache.SharedTier {
		switch c.Redis.Mode {
		case "", "standalone":
			if c.Redis.Addr == "" {
				return fmt.Errorf("config: redis.addr is required when cache.shared_tier is enabled")
			}
		case "sentinel":
			if c.Redis.MasterName == "" || len(c.Redis.SentinelAddrs) == 0 {
				return fmt.Errorf("config: redis.master_name and redis.sentinel_addrs are required in sentinel mode")
			}
		case "cluster":
			if len(c.Redis.ClusterAddrs) == 0 {
				return fmt.Errorf("config: redis.cluster_addrs is required in cluster mode")
			}
		default:
			return fmt.Errorf("config: redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Redis.Mode)
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required")
		}
		if c.Kafka.Subscribe && c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required when kafka.subscribe is enabled")
		}
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	return nil
}
