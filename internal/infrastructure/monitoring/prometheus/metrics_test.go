package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSceneMetrics(t *testing.T) (*SceneMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	m := NewSceneMetrics(c)
	require.NotNil(t, m)
	return m, c
}

func TestSceneMetrics_RecordBuild(t *testing.T) {
	m, c := newTestSceneMetrics(t)
	m.RecordBuild("traditional", "built", 3*time.Millisecond)
	m.RecordBuild("traditional", "built", 4*time.Millisecond)
	m.RecordBuild("simple_line", "failed", time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_geometry_builds_total{form="traditional",status="built"} 2`)
	assert.Contains(t, output, `test_unit_geometry_builds_total{form="simple_line",status="failed"} 1`)
	assert.Contains(t, output, `test_unit_geometry_build_duration_seconds_count{form="traditional"} 2`)
}

func TestSceneMetrics_RecordCacheLookup(t *testing.T) {
	m, c := newTestSceneMetrics(t)
	m.RecordCacheLookup(TierLocal, true)
	m.RecordCacheLookup(TierLocal, false)
	m.RecordCacheLookup(TierShared, false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_geometry_cache_hits_total{tier="local"} 1`)
	assert.Contains(t, output, `test_unit_geometry_cache_misses_total{tier="local"} 1`)
	assert.Contains(t, output, `test_unit_geometry_cache_misses_total{tier="shared"} 1`)
}

func TestSceneMetrics_RecordInvalidation(t *testing.T) {
	m, c := newTestSceneMetrics(t)
	m.RecordInvalidation("conformation_changed", 3)
	m.RecordInvalidation("style_changed", 0)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_geometry_invalidations_total{reason="conformation_changed"} 3`)
	assert.Contains(t, output, `test_unit_geometry_invalidations_total{reason="style_changed"} 1`)
}

func TestSceneMetrics_CacheEntriesAndPublish(t *testing.T) {
	m, c := newTestSceneMetrics(t)
	m.SetCacheEntries(7)
	m.RecordPublish(nil)
	m.RecordPublish(errors.New("broker down"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_geometry_cache_entries 7")
	assert.Contains(t, output, `test_unit_geometry_invalidation_events_total{result="ok"} 1`)
	assert.Contains(t, output, `test_unit_geometry_invalidation_events_total{result="error"} 1`)
}

func TestNewSceneMetrics_NilCollector(t *testing.T) {
	m := NewSceneMetrics(nil)
	assert.NotPanics(t, func() {
		m.RecordBuild("traditional", "built", time.Millisecond)
		m.RecordCacheLookup(TierShared, true)
		m.RecordInvalidation("all", 2)
		m.SetCacheEntries(1)
		m.RecordPublish(nil)
	})
}
