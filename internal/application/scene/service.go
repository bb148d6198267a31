// Package scene serves renderer geometry for attached structures. It keeps
// built batches in a GeometryCache, drops them when the structure model
// reports a change, and announces every invalidation to an EventPublisher.
package scene

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// Invalidation reasons reported in metrics and events.
const (
	ReasonAtomsChanged        = "atoms_changed"
	ReasonConformationChanged = "conformation_changed"
	ReasonStyleChanged        = "style_changed"
	ReasonDetached            = "structure_detached"
	ReasonConfigChanged       = "config_changed"
	ReasonRemote              = "remote"
)

// DefaultConcurrency bounds parallel chain builds in StructureGeometry.
const DefaultConcurrency = 4

// EventPublisher announces dropped geometry to other processes. An empty
// structureID means everything was dropped; an empty chainID means the whole
// structure.
type EventPublisher interface {
	PublishInvalidation(ctx context.Context, structureID, chainID, reason string, dropped int) error
}

// Service is the geometry entry point for renderers.
type Service interface {
	// Attach subscribes to the structure's change events. Attaching twice is a
	// no-op. ChainGeometry attaches the owning structure on first use.
	Attach(s *structure.Structure) error
	// Detach unsubscribes and drops the structure's local geometry. Shared
	// entries are kept and no event is published. A later ChainGeometry call
	// attaches it again.
	Detach(ctx context.Context, s *structure.Structure)
	RibbonConfig() geometry.RibbonConfig
	// SetRibbonConfig swaps the ribbon form and drops every locally cached
	// batch when the configuration actually changes.
	SetRibbonConfig(ctx context.Context, cfg geometry.RibbonConfig) error
	ChainGeometry(ctx context.Context, chain *structure.Chain, quality float64) geometry.BuildResult
	// StructureGeometry returns one result per chain in chain order. A
	// failed chain does not prevent the others from building.
	StructureGeometry(ctx context.Context, s *structure.Structure, quality float64) []geometry.BuildResult
	// ApplyInvalidation drops geometry on behalf of another process without
	// publishing it again. An empty structureID drops everything.
	ApplyInvalidation(ctx context.Context, structureID, chainID string) error
	Cache() *GeometryCache
	Close()
}

type serviceImpl struct {
	mu       sync.RWMutex
	geometry *geometry.RibbonGeometry

	cache       *GeometryCache
	publisher   EventPublisher
	metrics     *prometheus.SceneMetrics
	logger      logging.Logger
	concurrency int

	attachMu sync.Mutex
	attached map[uuid.UUID]func()
}

type Option func(*serviceImpl)

func WithLogger(l logging.Logger) Option {
	return func(s *serviceImpl) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *prometheus.SceneMetrics) Option {
	return func(s *serviceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *serviceImpl) { s.publisher = p }
}

func WithCache(c *GeometryCache) Option {
	return func(s *serviceImpl) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *serviceImpl) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService validates cfg and builds a service with a private cache unless
// WithCache is given.
func NewService(cfg geometry.RibbonConfig, opts ...Option) (Service, error) {
	if _, err := geometry.ResolveParameters(cfg); err != nil {
		return nil, err
	}
	s := &serviceImpl{
		metrics:     prometheus.NewNoopSceneMetrics(),
		logger:      logging.NewNopLogger(),
		concurrency: DefaultConcurrency,
		attached:    make(map[uuid.UUID]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewGeometryCache(WithCacheMetrics(s.metrics), WithCacheLogger(s.logger))
	}
	s.geometry = geometry.NewRibbonGeometry(cfg, s.logger.Named("ribbon"))
	return s, nil
}

func (s *serviceImpl) Cache() *GeometryCache { return s.cache }

func (s *serviceImpl) current() *geometry.RibbonGeometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geometry
}

func (s *serviceImpl) RibbonConfig() geometry.RibbonConfig {
	return s.current().Config()
}

func (s *serviceImpl) SetRibbonConfig(ctx context.Context, cfg geometry.RibbonConfig) error {
	if _, err := geometry.ResolveParameters(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	if s.geometry.Config() == cfg {
		s.mu.Unlock()
		return nil
	}
	s.geometry = geometry.NewRibbonGeometry(cfg, s.logger.Named("ribbon"))
	s.mu.Unlock()

	s.logger.Info("ribbon configuration changed", logging.String(logging.FieldForm, string(cfg.Form)),
		logging.Bool("smoothing", cfg.Smoothing))
	// The variant is part of every key, so shared entries of other
	// configurations stay valid for peers.
	dropped := s.cache.EvictAll()
	s.invalidated(ctx, ReasonConfigChanged, "", "", dropped)
	return nil
}

// ============================================================================
// Attachment
// ============================================================================

func (s *serviceImpl) Attach(st *structure.Structure) error {
	if st == nil {
		return errors.InvalidArgument("structure must not be nil")
	}
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if _, ok := s.attached[st.ID()]; ok {
		return nil
	}
	s.attached[st.ID()] = st.Subscribe(s.onEvent)
	s.logger.Debug("structure attached", logging.String(logging.FieldStructure, st.ID().String()))
	return nil
}

func (s *serviceImpl) Detach(ctx context.Context, st *structure.Structure) {
	if st == nil {
		return
	}
	s.attachMu.Lock()
	unsubscribe, ok := s.attached[st.ID()]
	delete(s.attached, st.ID())
	s.attachMu.Unlock()
	if ok {
		unsubscribe()
	}

	// Detaching releases this process's copy only. Nothing changed in the
	// structure, so peers are not told.
	dropped := s.cache.EvictStructure(st.ID())
	s.metrics.RecordInvalidation(ReasonDetached, dropped)
	s.logger.Debug("structure detached",
		logging.String(logging.FieldStructure, st.ID().String()),
		logging.Int("dropped", dropped))
}

func (s *serviceImpl) Close() {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	for id, unsubscribe := range s.attached {
		unsubscribe()
		delete(s.attached, id)
	}
}

func (s *serviceImpl) onEvent(e structure.DomainEvent) {
	ctx := context.Background()
	switch ev := e.(type) {
	case structure.AtomsChangedEvent:
		s.invalidateChain(ctx, ev.Structure, ev.ChainID, ReasonAtomsChanged)
	case structure.ConformationChangedEvent:
		s.invalidateChain(ctx, ev.Structure, ev.ChainID, ReasonConformationChanged)
	case structure.StyleChangedEvent:
		dropped := s.cache.InvalidateStructure(ctx, ev.Structure)
		s.invalidated(ctx, ReasonStyleChanged, ev.Structure.String(), "", dropped)
	}
}

func (s *serviceImpl) invalidateChain(ctx context.Context, id uuid.UUID, chainID, reason string) {
	dropped := s.cache.Invalidate(ctx, chainComponent(id, chainID))
	s.invalidated(ctx, reason, id.String(), chainID, dropped)
}

func chainComponent(id uuid.UUID, chainID string) structure.ComponentID {
	return structure.ComponentID{Kind: stypes.KindChain, Structure: id, ChainID: chainID, Index: -1}
}

// invalidated records and announces an invalidation. Publish failures are
// logged only.
func (s *serviceImpl) invalidated(ctx context.Context, reason, structureID, chainID string, dropped int) {
	s.metrics.RecordInvalidation(reason, dropped)
	s.logger.Debug("geometry invalidated",
		logging.String("reason", reason),
		logging.String(logging.FieldStructure, structureID),
		logging.String(logging.FieldChain, chainID),
		logging.Int("dropped", dropped))

	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishInvalidation(ctx, structureID, chainID, reason, dropped)
	s.metrics.RecordPublish(err)
	if err != nil {
		s.logger.WithError(err).Warn("failed to publish geometry invalidation",
			logging.String("reason", reason),
			logging.String(logging.FieldStructure, structureID))
	}
}

func (s *serviceImpl) ApplyInvalidation(ctx context.Context, structureID, chainID string) error {
	if structureID == "" {
		dropped := s.cache.InvalidateAll(ctx)
		s.metrics.RecordInvalidation(ReasonRemote, dropped)
		return nil
	}
	id, err := uuid.Parse(structureID)
	if err != nil {
		return errors.InvalidParam("malformed structure id").WithDetail(structureID).WithCause(err)
	}
	var dropped int
	if chainID == "" {
		dropped = s.cache.InvalidateStructure(ctx, id)
	} else {
		dropped = s.cache.Invalidate(ctx, chainComponent(id, chainID))
	}
	s.metrics.RecordInvalidation(ReasonRemote, dropped)
	return nil
}

// ============================================================================
// Geometry
// ============================================================================

func (s *serviceImpl) ChainGeometry(ctx context.Context, chain *structure.Chain, quality float64) geometry.BuildResult {
	if chain == nil {
		return geometry.Failed(errors.InvalidArgument("chain must not be nil"))
	}
	if err := ctx.Err(); err != nil {
		return geometry.Failed(errors.Wrap(err, errors.ErrCodeTimeout, "geometry request cancelled"))
	}
	g := s.current()

	owner := chain.Structure()
	if owner == nil {
		return s.build(g, chain, structure.StyleSnapshot{}, quality)
	}
	// Cached geometry is only valid while the owner's events reach the cache.
	if err := s.Attach(owner); err != nil {
		return geometry.Failed(err)
	}
	snap := owner.Styles().Snapshot()
	key := NewCacheKey(chain.ComponentID(), snap.Revision(), quality, g.Config().String()).
		WithStyles(snap.Digest(chain.ID()))
	return s.cache.GetOrBuild(ctx, key, func() geometry.BuildResult {
		return s.build(g, chain, snap, quality)
	})
}

func (s *serviceImpl) build(g *geometry.RibbonGeometry, chain *structure.Chain, snap structure.StyleSnapshot, quality float64) geometry.BuildResult {
	start := time.Now()
	res := g.Build(chain, snap, quality)
	s.metrics.RecordBuild(string(g.Config().Form), res.Status.String(), time.Since(start))
	return res
}

func (s *serviceImpl) StructureGeometry(ctx context.Context, st *structure.Structure, quality float64) []geometry.BuildResult {
	if st == nil {
		return nil
	}
	chains := st.Chains()
	results := make([]geometry.BuildResult, len(chains))

	var eg errgroup.Group
	eg.SetLimit(s.concurrency)
	for i, c := range chains {
		i, c := i, c
		eg.Go(func() error {
			results[i] = s.ChainGeometry(ctx, c, quality)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
