package scene

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/database/redis"
	"github.com/turtacn/molscene/internal/testutil"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

func chainKey(s uuid.UUID, chain string, rev uint64) CacheKey {
	return NewCacheKey(chainComponent(s, chain), rev, 1, "traditional")
}

func fixedBatch(id structure.ComponentID) *geometry.Batch {
	return &geometry.Batch{
		Component: id,
		Quality:   1,
		Form:      geometry.FormTraditional,
		Lists: []geometry.DisplayList{{
			Component:    structure.ComponentID{Kind: stypes.KindFragment, Structure: id.Structure, ChainID: id.ChainID, Index: 0},
			Conformation: stypes.ConformationHelix,
			CrossSection: geometry.CrossSectionRectangularRibbon,
			Shape:        geometry.ShapeRibbon,
			Steps:        2,
			Quality:      0.8,
			Mesh: &geometry.Mesh{
				Vertices: []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 0.5, Y: -1.25, Z: 8}, {X: 0, Y: 0, Z: 1}},
				Normals:  []r3.Vec{{X: 0, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 0, Z: 0}},
				Indices:  []uint32{0, 1, 2},
			},
		}},
	}
}

func countingBuild(calls *atomic.Int32, res geometry.BuildResult) func() geometry.BuildResult {
	return func() geometry.BuildResult {
		calls.Add(1)
		return res
	}
}

func TestNewCacheKey_QuantizesQuality(t *testing.T) {
	id := chainComponent(uuid.New(), "A")
	assert.Equal(t, NewCacheKey(id, 1, 0.5, "v"), NewCacheKey(id, 1, 0.5000001, "v"))
	assert.NotEqual(t, NewCacheKey(id, 1, 0.5, "v"), NewCacheKey(id, 1, 0.6, "v"))
	assert.Equal(t, 1000, NewCacheKey(id, 1, 0, "v").Quality)
	assert.Equal(t, 1000, NewCacheKey(id, 1, 3, "v").Quality)
	assert.NotEqual(t, NewCacheKey(id, 1, 1, "v"), NewCacheKey(id, 2, 1, "v"))
}

func TestCacheKey_StringPrefixes(t *testing.T) {
	id := chainComponent(uuid.New(), "A")
	k := NewCacheKey(id, 3, 0.25, "traditional(smoothing=true)")
	assert.Contains(t, k.String(), chainPrefix(id))
	assert.Contains(t, k.String(), structurePrefix(id.Structure))
	assert.Contains(t, k.String(), ":r3:q250:")
}

func TestCacheKey_StylesReplaceRevisionInSharedKey(t *testing.T) {
	id := chainComponent(uuid.New(), "A")
	a := NewCacheKey(id, 3, 1, "v").WithStyles("plain")
	b := NewCacheKey(id, 7, 1, "v").WithStyles("plain")
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), ":splain:q1000:")
	assert.NotEqual(t, a, b)
}

func TestGeometryCache_EvictKeepsSharedTier(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	key := chainKey(id, "A", 0)
	batch := fixedBatch(key.Component)

	db, mock := redismock.NewClientMock()
	store := redis.NewRedisCache(redis.NewClientFromUniversal(db, nil), nil)
	mock.ExpectGet("molscene:" + key.String()).RedisNil()
	mock.ExpectSet("molscene:"+key.String(), mustJSON(t, batch), time.Minute).SetVal("OK")
	mock.ExpectGet("molscene:" + key.String()).SetVal(string(mustJSON(t, batch)))

	logger := testutil.NewMockLogger()
	c := NewGeometryCache(WithSharedStore(store, time.Minute), WithCacheLogger(logger))
	require.True(t, c.GetOrBuild(ctx, key, func() geometry.BuildResult { return geometry.Built(batch) }).OK())
	assert.Equal(t, 1, c.EvictStructure(id))
	assert.Zero(t, c.Len())

	var calls atomic.Int32
	res := c.GetOrBuild(ctx, key, countingBuild(&calls, geometry.Empty()))
	require.True(t, res.OK())
	assert.Zero(t, calls.Load())
	assert.Equal(t, 0, c.EvictStructure(uuid.New()))
	assert.Equal(t, 1, c.EvictAll())
	assert.Zero(t, c.Len())

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, logger.Count("warn"))
}

func TestGeometryCache_HitReturnsSameBatch(t *testing.T) {
	c := NewGeometryCache()
	key := chainKey(uuid.New(), "A", 0)
	var calls atomic.Int32
	b := fixedBatch(key.Component)

	first := c.GetOrBuild(context.Background(), key, countingBuild(&calls, geometry.Built(b)))
	second := c.GetOrBuild(context.Background(), key, countingBuild(&calls, geometry.Built(fixedBatch(key.Component))))

	require.True(t, first.OK())
	assert.Same(t, first.Batch, second.Batch)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestGeometryCache_OnlyBuiltResultsAreStored(t *testing.T) {
	c := NewGeometryCache()
	key := chainKey(uuid.New(), "A", 0)
	var calls atomic.Int32

	c.GetOrBuild(context.Background(), key, countingBuild(&calls, geometry.Empty()))
	c.GetOrBuild(context.Background(), key, countingBuild(&calls, geometry.Failed(assert.AnError)))
	res := c.GetOrBuild(context.Background(), key, countingBuild(&calls, geometry.Empty()))

	assert.Equal(t, geometry.StatusEmpty, res.Status)
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, c.Len())
}

func TestGeometryCache_ConcurrentCallersShareOneBuild(t *testing.T) {
	c := NewGeometryCache()
	key := chainKey(uuid.New(), "A", 0)
	release := make(chan struct{})
	var calls atomic.Int32

	build := func() geometry.BuildResult {
		calls.Add(1)
		<-release
		return geometry.Built(fixedBatch(key.Component))
	}

	const n = 16
	results := make([]geometry.BuildResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrBuild(context.Background(), key, build)
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.True(t, r.OK())
		assert.Same(t, results[0].Batch, r.Batch)
	}
}

func TestGeometryCache_BuildAcrossInvalidationIsNotStored(t *testing.T) {
	c := NewGeometryCache()
	key := chainKey(uuid.New(), "A", 0)

	res := c.GetOrBuild(context.Background(), key, func() geometry.BuildResult {
		c.Invalidate(context.Background(), key.Component)
		return geometry.Built(fixedBatch(key.Component))
	})

	assert.True(t, res.OK())
	assert.Zero(t, c.Len())

	var calls atomic.Int32
	again := c.GetOrBuild(context.Background(), key, countingBuild(&calls, geometry.Built(fixedBatch(key.Component))))
	assert.Equal(t, int32(1), calls.Load())
	assert.NotSame(t, res.Batch, again.Batch)
}

func TestGeometryCache_InvalidationScopes(t *testing.T) {
	ctx := context.Background()
	c := NewGeometryCache()
	s1, s2 := uuid.New(), uuid.New()
	keys := []CacheKey{
		chainKey(s1, "A", 0),
		chainKey(s1, "A", 1),
		chainKey(s1, "B", 0),
		chainKey(s2, "A", 0),
	}
	for _, k := range keys {
		k := k
		c.GetOrBuild(ctx, k, func() geometry.BuildResult { return geometry.Built(fixedBatch(k.Component)) })
	}
	require.Equal(t, 4, c.Len())

	fragment := structure.ComponentID{Kind: stypes.KindFragment, Structure: s1, ChainID: "A", Index: 3}
	assert.Equal(t, 2, c.Invalidate(ctx, fragment))
	_, ok := c.Lookup(keys[2])
	assert.True(t, ok)

	assert.Equal(t, 1, c.InvalidateStructure(ctx, s1))
	_, ok = c.Lookup(keys[3])
	assert.True(t, ok)

	assert.Equal(t, 1, c.InvalidateAll(ctx))
	assert.Zero(t, c.Len())
}

func TestGeometryCache_SharedTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	key := chainKey(uuid.New(), "A", 2)
	batch := fixedBatch(key.Component)
	raw, err := json.Marshal(batch)
	require.NoError(t, err)
	redisKey := "molscene:" + key.String()

	// First process: shared miss, build, write through.
	db, mock := redismock.NewClientMock()
	store := redis.NewRedisCache(redis.NewClientFromUniversal(db, nil), nil)
	mock.ExpectGet(redisKey).RedisNil()
	mock.ExpectSet(redisKey, raw, time.Minute).SetVal("OK")

	writer := NewGeometryCache(WithSharedStore(store, time.Minute))
	res := writer.GetOrBuild(ctx, key, func() geometry.BuildResult { return geometry.Built(batch) })
	require.True(t, res.OK())
	require.NoError(t, mock.ExpectationsWereMet())

	// Second process: shared hit, no build.
	db2, mock2 := redismock.NewClientMock()
	store2 := redis.NewRedisCache(redis.NewClientFromUniversal(db2, nil), nil)
	mock2.ExpectGet(redisKey).SetVal(string(raw))

	reader := NewGeometryCache(WithSharedStore(store2, time.Minute))
	var calls atomic.Int32
	got := reader.GetOrBuild(ctx, key, countingBuild(&calls, geometry.Empty()))
	require.NoError(t, mock2.ExpectationsWereMet())

	require.True(t, got.OK())
	assert.Zero(t, calls.Load())
	assert.Equal(t, *batch, *got.Batch)
	assert.Equal(t, 1, reader.Len())
}

func TestGeometryCache_SharedTierErrorsAreLogged(t *testing.T) {
	ctx := context.Background()
	key := chainKey(uuid.New(), "A", 0)
	redisKey := "molscene:" + key.String()

	db, mock := redismock.NewClientMock()
	store := redis.NewRedisCache(redis.NewClientFromUniversal(db, nil), nil)
	mock.ExpectGet(redisKey).SetErr(assert.AnError)
	mock.ExpectSet(redisKey, mustJSON(t, fixedBatch(key.Component)), time.Minute).SetErr(assert.AnError)
	mock.ExpectScan(0, "molscene:"+chainPrefix(key.Component)+"*", 100).SetErr(assert.AnError)

	logger := testutil.NewMockLogger()
	c := NewGeometryCache(WithSharedStore(store, time.Minute), WithCacheLogger(logger))
	res := c.GetOrBuild(ctx, key, func() geometry.BuildResult { return geometry.Built(fixedBatch(key.Component)) })
	assert.True(t, res.OK())
	assert.Equal(t, 1, c.Invalidate(ctx, key.Component))

	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, logger.HasMessage("warn", "shared geometry tier read failed"))
	assert.True(t, logger.HasMessage("warn", "shared geometry tier write failed"))
	assert.True(t, logger.HasMessage("warn", "shared geometry tier invalidation failed"))
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
