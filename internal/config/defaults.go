package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/infrastructure/messaging/kafka"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultRibbonForm  = string(geometry.FormTraditional)
	DefaultSmoothing   = true
	DefaultQuality     = 1.0
	DefaultConcurrency = 4

	DefaultSharedTTL = 10 * time.Minute
	DefaultKeyPrefix = "molscene:"

	DefaultRedisMode = "standalone"
	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaTopic   = kafka.TopicGeometryInvalidated
	DefaultKafkaGroupID = "molscene"
	DefaultKafkaAcks    = "one"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "molscene"
)

// NewDefaultConfig returns a Config with every field set to its default.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Render.Smoothing = DefaultSmoothing
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg. Fields already set are left
// unchanged so that explicit configuration always wins. Booleans cannot be
// told apart from unset here; loaders register their defaults with viper.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Render ────────────────────────────────────────────────────────────────
	if cfg.Render.RibbonForm == "" {
		cfg.Render.RibbonForm = DefaultRibbonForm
	}
	if cfg.Render.Quality == 0 {
		cfg.Render.Quality = DefaultQuality
	}
	if cfg.Render.Concurrency == 0 {
		cfg.Render.Concurrency = DefaultConcurrency
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.SharedTTL == 0 {
		cfg.Cache.SharedTTL = DefaultSharedTTL
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = DefaultKeyPrefix
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = DefaultKafkaAcks
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// setViperDefaults registers every key so that environment overrides are
// visible to Unmarshal even when no config file mentions the key.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("render.ribbon_form", DefaultRibbonForm)
	v.SetDefault("render.smoothing", DefaultSmoothing)
	v.SetDefault("render.quality", DefaultQuality)
	v.SetDefault("render.concurrency", DefaultConcurrency)

	v.SetDefault("cache.shared_tier", false)
	v.SetDefault("cache.shared_ttl", DefaultSharedTTL)
	v.SetDefault("cache.key_prefix", DefaultKeyPrefix)

	v.SetDefault("redis.mode", DefaultRedisMode)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.topic", DefaultKafkaTopic)
	v.SetDefault("kafka.source", "")
	v.SetDefault("kafka.subscribe", false)
	v.SetDefault("kafka.group_id", DefaultKafkaGroupID)
	v.SetDefault("kafka.acks", DefaultKafkaAcks)
	v.SetDefault("kafka.compression", "")

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.subsystem", "")
}
