package prometheus

import "time"

// Cache tiers reported on lookup counters.
const (
	TierLocal  = "local"
	TierShared = "shared"
)

var (
	// BuildDurationBuckets spans sub-millisecond trace builds up to multi-second
	// structure rebuilds.
	BuildDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
)

// SceneMetrics holds the metrics emitted by the geometry pipeline and its cache.
type SceneMetrics struct {
	BuildsTotal        CounterVec
	BuildDuration      HistogramVec
	CacheHitsTotal     CounterVec
	CacheMissesTotal   CounterVec
	InvalidationsTotal CounterVec
	CacheEntries       GaugeVec
	EventsPublished    CounterVec
}

// NewSceneMetrics registers the scene metrics on collector. A nil collector
// yields metrics that record nothing.
func NewSceneMetrics(collector MetricsCollector) *SceneMetrics {
	if collector == nil {
		return NewNoopSceneMetrics()
	}
	return &SceneMetrics{
		BuildsTotal:        collector.RegisterCounter("geometry_builds_total", "Ribbon geometry builds by form and result status", "form", "status"),
		BuildDuration:      collector.RegisterHistogram("geometry_build_duration_seconds", "Ribbon geometry build latency", BuildDurationBuckets, "form"),
		CacheHitsTotal:     collector.RegisterCounter("geometry_cache_hits_total", "Geometry cache hits by tier", "tier"),
		CacheMissesTotal:   collector.RegisterCounter("geometry_cache_misses_total", "Geometry cache misses by tier", "tier"),
		InvalidationsTotal: collector.RegisterCounter("geometry_invalidations_total", "Cached geometry entries dropped by reason", "reason"),
		CacheEntries:       collector.RegisterGauge("geometry_cache_entries", "Batches held in the local geometry cache"),
		EventsPublished:    collector.RegisterCounter("geometry_invalidation_events_total", "Invalidation events handed to the publisher by result", "result"),
	}
}

// NewNoopSceneMetrics returns metrics backed by no-op vectors.
func NewNoopSceneMetrics() *SceneMetrics {
	return &SceneMetrics{
		BuildsTotal:        noopCounterVec{},
		BuildDuration:      noopHistogramVec{},
		CacheHitsTotal:     noopCounterVec{},
		CacheMissesTotal:   noopCounterVec{},
		InvalidationsTotal: noopCounterVec{},
		CacheEntries:       noopGaugeVec{},
		EventsPublished:    noopCounterVec{},
	}
}

func (m *SceneMetrics) RecordBuild(form, status string, d time.Duration) {
	m.BuildsTotal.WithLabelValues(form, status).Inc()
	m.BuildDuration.WithLabelValues(form).Observe(d.Seconds())
}

func (m *SceneMetrics) RecordCacheLookup(tier string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(tier).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(tier).Inc()
}

// RecordInvalidation counts n dropped entries. Invalidations that dropped
// nothing are still counted once so that event traffic stays visible.
func (m *SceneMetrics) RecordInvalidation(reason string, n int) {
	if n < 1 {
		n = 1
	}
	m.InvalidationsTotal.WithLabelValues(reason).Add(float64(n))
}

func (m *SceneMetrics) SetCacheEntries(n int) {
	m.CacheEntries.WithLabelValues().Set(float64(n))
}

func (m *SceneMetrics) RecordPublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}
