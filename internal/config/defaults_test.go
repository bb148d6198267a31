package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "traditional", cfg.Render.RibbonForm)
	assert.True(t, cfg.Render.Smoothing)
	assert.Equal(t, 1.0, cfg.Render.Quality)
	assert.Equal(t, 4, cfg.Render.Concurrency)
	assert.False(t, cfg.Cache.SharedTier)
	assert.Equal(t, 10*time.Minute, cfg.Cache.SharedTTL)
	assert.Equal(t, "molscene:", cfg.Cache.KeyPrefix)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "molscene.geometry.invalidated", cfg.Kafka.Topic)
	assert.Equal(t, "molscene", cfg.Kafka.GroupID)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "molscene", cfg.Metrics.Namespace)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Render.RibbonForm = "simple_line"
	cfg.Render.Quality = 0.25
	cfg.Cache.KeyPrefix = "custom:"
	cfg.Kafka.Brokers = []string{"kafka:29092"}
	cfg.Log.Level = "debug"

	ApplyDefaults(cfg)

	assert.Equal(t, "simple_line", cfg.Render.RibbonForm)
	assert.Equal(t, 0.25, cfg.Render.Quality)
	assert.Equal(t, "custom:", cfg.Cache.KeyPrefix)
	assert.Equal(t, []string{"kafka:29092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultConcurrency, cfg.Render.Concurrency)
}

func TestApplyDefaults_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
