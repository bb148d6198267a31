package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/turtacn/molscene/internal/application/scene"
	"github.com/turtacn/molscene/internal/config"
	"github.com/turtacn/molscene/internal/infrastructure/database/redis"
	"github.com/turtacn/molscene/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscene/internal/interfaces/http/handlers"
)

// Runtime owns the scene service and the infrastructure it was wired to.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Service   scene.Service
	Collector prometheus.MetricsCollector

	source   string
	checkers []handlers.HealthChecker
	reader   kafka.ReaderInterface
	consumer *kafka.Consumer

	mu      sync.Mutex
	closers []func() error
}

type runtimeDeps struct {
	shared    scene.SharedStore
	publisher kafka.Publisher
	reader    kafka.ReaderInterface
	collector prometheus.MetricsCollector
}

// RuntimeOption replaces a piece of infrastructure that would otherwise be
// built from configuration.
type RuntimeOption func(*runtimeDeps)

// WithSharedStore uses store as the shared mesh tier.
func WithSharedStore(store scene.SharedStore) RuntimeOption {
	return func(d *runtimeDeps) { d.shared = store }
}

// WithKafkaPublisher sends invalidation events through p.
func WithKafkaPublisher(p kafka.Publisher) RuntimeOption {
	return func(d *runtimeDeps) { d.publisher = p }
}

// WithKafkaReader consumes peer invalidations from r.
func WithKafkaReader(r kafka.ReaderInterface) RuntimeOption {
	return func(d *runtimeDeps) { d.reader = r }
}

// WithCollector registers scene metrics on c.
func WithCollector(c prometheus.MetricsCollector) RuntimeOption {
	return func(d *runtimeDeps) { d.collector = c }
}

// NewRuntime assembles the scene service from cfg. Redis, Kafka and
// Prometheus are only touched when their sections are enabled or an option
// supplies them.
func NewRuntime(cfg *config.Config, logger logging.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	deps := &runtimeDeps{}
	for _, opt := range opts {
		opt(deps)
	}

	ribbon, err := cfg.RibbonConfig()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger, reader: deps.reader}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	// ── Metrics ───────────────────────────────────────────────────────────────
	rt.Collector = deps.collector
	if rt.Collector == nil && cfg.Metrics.Enabled {
		rt.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:       cfg.Metrics.Namespace,
			Subsystem:       cfg.Metrics.Subsystem,
			EnableGoMetrics: true,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	metrics := prometheus.NewSceneMetrics(rt.Collector)

	// ── Shared tier ───────────────────────────────────────────────────────────
	cacheOpts := []scene.CacheOption{scene.WithCacheMetrics(metrics), scene.WithCacheLogger(logger.Named("cache"))}
	shared := deps.shared
	if shared == nil && cfg.Cache.SharedTier {
		client, err := redis.NewClient(&cfg.Redis, logger.Named("redis"))
		if err != nil {
			return nil, err
		}
		rt.addCloser(client.Close)
		rt.checkers = append(rt.checkers, handlers.NewChecker("redis", client.Ping))
		shared = redis.NewRedisCache(client, logger.Named("redis"),
			redis.WithPrefix(cfg.Cache.KeyPrefix),
			redis.WithDefaultTTL(cfg.Cache.SharedTTL))
	}
	if shared != nil {
		cacheOpts = append(cacheOpts, scene.WithSharedStore(shared, cfg.Cache.SharedTTL))
	}

	// ── Invalidation events ───────────────────────────────────────────────────
	svcOpts := []scene.Option{
		scene.WithLogger(logger.Named("scene")),
		scene.WithMetrics(metrics),
		scene.WithCache(scene.NewGeometryCache(cacheOpts...)),
		scene.WithConcurrency(cfg.Render.Concurrency),
	}
	publisher := deps.publisher
	if publisher == nil && cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.ProducerConfig(), logger.Named("kafka"))
		if err != nil {
			return nil, err
		}
		rt.addCloser(producer.Close)
		publisher = producer
	}
	rt.source = cfg.Kafka.Source
	if rt.source == "" {
		rt.source = defaultSource()
	}
	if publisher != nil {
		events := kafka.NewInvalidationPublisher(publisher, cfg.Kafka.Topic, rt.source)
		svcOpts = append(svcOpts, scene.WithPublisher(events))
	}

	rt.Service, err = scene.NewService(ribbon, svcOpts...)
	if err != nil {
		return nil, err
	}
	rt.addCloser(func() error {
		rt.Service.Close()
		return nil
	})

	ok = true
	return rt, nil
}

// HealthCheckers returns readiness checks for the external dependencies the
// runtime connected to.
func (rt *Runtime) HealthCheckers() []handlers.HealthChecker { return rt.checkers }

// Source identifies this process in published invalidation events.
func (rt *Runtime) Source() string { return rt.source }

// StartSubscriber consumes invalidations published by peers and applies
// them to the local cache. It is a no-op unless kafka.subscribe is enabled
// or a reader was injected.
func (rt *Runtime) StartSubscriber(ctx context.Context) error {
	if rt.consumer != nil {
		return kafka.ErrAlreadyRunning
	}
	if rt.reader == nil && !(rt.Config.Kafka.Enabled && rt.Config.Kafka.Subscribe) {
		return nil
	}

	log := rt.Logger.Named("kafka")
	var consumer *kafka.Consumer
	if rt.reader != nil {
		consumer = kafka.NewConsumerWithReader(rt.reader, rt.Config.Kafka.ConsumerConfig(), log)
	} else {
		var err error
		consumer, err = kafka.NewConsumer(rt.Config.Kafka.ConsumerConfig(), log)
		if err != nil {
			return err
		}
	}

	consumer.Subscribe(rt.Config.Kafka.Topic, kafka.InvalidationHandler(rt.source, log,
		func(ctx context.Context, p kafka.InvalidationPayload) error {
			// A peer's ribbon config is its own; keys carry the variant.
			if p.Reason == scene.ReasonConfigChanged {
				return nil
			}
			return rt.Service.ApplyInvalidation(ctx, p.StructureID, p.ChainID)
		}))
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	rt.consumer = consumer
	rt.addCloser(consumer.Close)
	return nil
}

// Consumer returns the running subscriber, or nil.
func (rt *Runtime) Consumer() *kafka.Consumer { return rt.consumer }

func (rt *Runtime) addCloser(fn func() error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition and returns the
// first error.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	closers := rt.closers
	rt.closers = nil
	rt.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func defaultSource() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "molscene"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
