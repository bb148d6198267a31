package scene

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscene/pkg/errors"
)

// qualitySteps is the resolution of the quality component of a cache key.
const qualitySteps = 1000

// ============================================================================
// Cache key
// ============================================================================

// CacheKey identifies one built batch. Quality is stored quantized so that
// float noise does not defeat the cache. Styles, when set, is the style
// digest of the component's chain and replaces the process-local revision in
// the shared-tier key.
type CacheKey struct {
	Component structure.ComponentID
	Revision  uint64
	Styles    string
	Quality   int
	Variant   string
}

// NewCacheKey quantizes quality the way the orchestrator clamps it.
func NewCacheKey(component structure.ComponentID, revision uint64, quality float64, variant string) CacheKey {
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		quality = 1
	}
	return CacheKey{
		Component: component,
		Revision:  revision,
		Quality:   int(math.Round(quality * qualitySteps)),
		Variant:   variant,
	}
}

// WithStyles returns k keyed by a style digest.
func (k CacheKey) WithStyles(digest string) CacheKey {
	k.Styles = digest
	return k
}

// String is the shared-tier key. Structure and chain lead so that prefix
// deletion can target either.
func (k CacheKey) String() string {
	styles := fmt.Sprintf("r%d", k.Revision)
	if k.Styles != "" {
		styles = "s" + k.Styles
	}
	return fmt.Sprintf("%s:%s:%s:%d:%s:q%d:%s",
		k.Component.Structure, k.Component.ChainID, k.Component.Kind, k.Component.Index,
		styles, k.Quality, k.Variant)
}

func structurePrefix(id uuid.UUID) string { return id.String() + ":" }

func chainPrefix(id structure.ComponentID) string {
	return structurePrefix(id.Structure) + id.ChainID + ":"
}

// ============================================================================
// Shared tier
// ============================================================================

// SharedStore is an optional second cache tier shared between processes.
// Get reports a miss with an error carrying errors.ErrCodeNotFound.
type SharedStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// ============================================================================
// GeometryCache
// ============================================================================

// generation is captured before a build and compared before the result is
// stored. Any invalidation covering the key changes one of its parts.
type generation struct {
	all, structure, chain uint64
}

// GeometryCache memoizes Built results per CacheKey. Concurrent requests for
// the same key share one build, and a build that overlaps an invalidation of
// its key is returned to its callers but never stored.
type GeometryCache struct {
	mu         sync.RWMutex
	entries    map[CacheKey]*geometry.Batch
	epoch      uint64
	structGens map[uuid.UUID]uint64
	chainGens  map[structure.ComponentID]uint64

	group     singleflight.Group
	shared    SharedStore
	sharedTTL time.Duration

	metrics *prometheus.SceneMetrics
	logger  logging.Logger
}

type CacheOption func(*GeometryCache)

// WithSharedStore enables the second tier with the given entry TTL.
func WithSharedStore(store SharedStore, ttl time.Duration) CacheOption {
	return func(c *GeometryCache) {
		c.shared = store
		c.sharedTTL = ttl
	}
}

func WithCacheMetrics(m *prometheus.SceneMetrics) CacheOption {
	return func(c *GeometryCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithCacheLogger(l logging.Logger) CacheOption {
	return func(c *GeometryCache) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewGeometryCache(opts ...CacheOption) *GeometryCache {
	c := &GeometryCache{
		entries:    make(map[CacheKey]*geometry.Batch),
		structGens: make(map[uuid.UUID]uint64),
		chainGens:  make(map[structure.ComponentID]uint64),
		metrics:    prometheus.NewNoopSceneMetrics(),
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GeometryCache) generationLocked(id structure.ComponentID) generation {
	return generation{
		all:       c.epoch,
		structure: c.structGens[id.Structure],
		chain:     c.chainGens[id.ChainComponent()],
	}
}

// Lookup returns the locally cached batch for key.
func (c *GeometryCache) Lookup(key CacheKey) (*geometry.Batch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[key]
	return b, ok
}

// GetOrBuild returns the cached batch for key or runs build exactly once
// across concurrent callers. Only Built results are cached.
func (c *GeometryCache) GetOrBuild(ctx context.Context, key CacheKey, build func() geometry.BuildResult) geometry.BuildResult {
	c.mu.RLock()
	b, ok := c.entries[key]
	gen := c.generationLocked(key.Component)
	c.mu.RUnlock()

	c.metrics.RecordCacheLookup(prometheus.TierLocal, ok)
	if ok {
		return geometry.Built(b)
	}

	sfKey := fmt.Sprintf("%s|%d.%d.%d", key, gen.all, gen.structure, gen.chain)
	v, _, _ := c.group.Do(sfKey, func() (interface{}, error) {
		if b, ok := c.Lookup(key); ok {
			return geometry.Built(b), nil
		}
		if b := c.loadShared(ctx, key); b != nil {
			c.store(key, gen, b)
			return geometry.Built(b), nil
		}
		res := build()
		if res.OK() && c.store(key, gen, res.Batch) {
			c.storeShared(ctx, key, res.Batch)
		}
		return res, nil
	})
	return v.(geometry.BuildResult)
}

// store adds b under key unless an invalidation ran since gen was taken.
func (c *GeometryCache) store(key CacheKey, gen generation, b *geometry.Batch) bool {
	c.mu.Lock()
	if c.generationLocked(key.Component) != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding geometry built across an invalidation",
			logging.String(logging.FieldChain, key.Component.ChainID))
		return false
	}
	c.entries[key] = b
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(n)
	return true
}

func (c *GeometryCache) loadShared(ctx context.Context, key CacheKey) *geometry.Batch {
	if c.shared == nil {
		return nil
	}
	var b geometry.Batch
	err := c.shared.Get(ctx, key.String(), &b)
	switch {
	case err == nil:
		c.metrics.RecordCacheLookup(prometheus.TierShared, true)
		return &b
	case errors.IsCode(err, errors.ErrCodeNotFound):
		c.metrics.RecordCacheLookup(prometheus.TierShared, false)
	default:
		c.metrics.RecordCacheLookup(prometheus.TierShared, false)
		c.logger.WithError(err).Warn("shared geometry tier read failed",
			logging.String(logging.FieldCacheTier, prometheus.TierShared))
	}
	return nil
}

func (c *GeometryCache) storeShared(ctx context.Context, key CacheKey, b *geometry.Batch) {
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key.String(), b, c.sharedTTL); err != nil {
		c.logger.WithError(err).Warn("shared geometry tier write failed",
			logging.String(logging.FieldCacheTier, prometheus.TierShared))
	}
}

func (c *GeometryCache) clearShared(ctx context.Context, prefix string) {
	if c.shared == nil {
		return
	}
	if _, err := c.shared.DeleteByPrefix(ctx, prefix); err != nil {
		c.logger.WithError(err).Warn("shared geometry tier invalidation failed",
			logging.String("prefix", prefix))
	}
}

// Invalidate drops every entry of the chain that contains component and
// returns how many local entries were removed.
func (c *GeometryCache) Invalidate(ctx context.Context, component structure.ComponentID) int {
	chain := component.ChainComponent()
	c.mu.Lock()
	c.chainGens[chain]++
	dropped := c.dropLocked(func(k CacheKey) bool { return k.Component.ChainComponent() == chain })
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(n)
	c.clearShared(ctx, chainPrefix(chain))
	return dropped
}

// InvalidateStructure drops every entry that belongs to structure id.
func (c *GeometryCache) InvalidateStructure(ctx context.Context, id uuid.UUID) int {
	c.mu.Lock()
	c.structGens[id]++
	dropped := c.dropLocked(func(k CacheKey) bool { return k.Component.Structure == id })
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(n)
	c.clearShared(ctx, structurePrefix(id))
	return dropped
}

// InvalidateAll empties the cache.
func (c *GeometryCache) InvalidateAll(ctx context.Context) int {
	c.mu.Lock()
	c.epoch++
	dropped := len(c.entries)
	c.entries = make(map[CacheKey]*geometry.Batch)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(0)
	c.clearShared(ctx, "")
	return dropped
}

// EvictStructure drops the local entries of structure id and leaves the
// shared tier alone. Peers may still use those entries.
func (c *GeometryCache) EvictStructure(id uuid.UUID) int {
	c.mu.Lock()
	c.structGens[id]++
	dropped := c.dropLocked(func(k CacheKey) bool { return k.Component.Structure == id })
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(n)
	return dropped
}

// EvictAll empties the local tier only.
func (c *GeometryCache) EvictAll() int {
	c.mu.Lock()
	c.epoch++
	dropped := len(c.entries)
	c.entries = make(map[CacheKey]*geometry.Batch)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(0)
	return dropped
}

func (c *GeometryCache) dropLocked(match func(CacheKey) bool) int {
	dropped := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of locally cached batches.
func (c *GeometryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
