package scene

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscene/internal/testutil"
	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

type published struct {
	structureID, chainID, reason string
	dropped                      int
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) PublishInvalidation(_ context.Context, structureID, chainID, reason string, dropped int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{structureID, chainID, reason, dropped})
	return p.err
}

func (p *recordingPublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func mixedConformations() []stypes.ConformationType {
	var confs []stypes.ConformationType
	confs = append(confs, structure.RepeatConformation(stypes.ConformationCoil, 3)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationHelix, 8)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationStrand, 5)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationCoil, 3)...)
	return confs
}

type ServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	logger    *testutil.MockLogger
	publisher *recordingPublisher
	svc       Service
	st        *structure.Structure
	chainA    *structure.Chain
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = testutil.NewMockLogger()
	s.publisher = &recordingPublisher{}

	svc, err := NewService(geometry.DefaultRibbonConfig(), WithLogger(s.logger), WithPublisher(s.publisher))
	s.Require().NoError(err)
	s.svc = svc

	s.st = structure.NewStructure("1ABC")
	a, err := structure.NewIdealChain("A", "ALA", mixedConformations())
	s.Require().NoError(err)
	s.Require().NoError(s.st.AddChain(a))
	s.chainA = a
	s.Require().NoError(s.svc.Attach(s.st))
}

func (s *ServiceTestSuite) TearDownTest() {
	s.svc.Close()
}

func (s *ServiceTestSuite) TestChainGeometry_CachesPerRevision() {
	first := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(first.OK())
	s.Len(first.Batch.Lists, 4)

	second := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Same(first.Batch, second.Batch)

	lower := s.svc.ChainGeometry(s.ctx, s.chainA, 0.5)
	s.NotSame(first.Batch, lower.Batch)
	s.Equal(2, s.svc.Cache().Len())
}

func (s *ServiceTestSuite) TestConformationChange_InvalidatesChain() {
	before := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(before.OK())

	s.Require().NoError(s.st.Update(func() error {
		r, err := s.chainA.Residue(2)
		if err != nil {
			return err
		}
		return r.SetConformationType(stypes.ConformationHelix)
	}))

	s.Zero(s.svc.Cache().Len())
	after := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(after.OK())
	s.NotSame(before.Batch, after.Batch)
	s.Len(after.Batch.Lists, 4)
	s.Equal(stypes.ConformationHelix, after.Batch.Lists[1].Conformation)

	events := s.publisher.snapshot()
	s.Require().Len(events, 1)
	s.Equal(published{s.st.ID().String(), "A", ReasonConformationChanged, 1}, events[0])
}

func (s *ServiceTestSuite) TestAtomChange_InvalidatesChain() {
	s.Require().True(s.svc.ChainGeometry(s.ctx, s.chainA, 1).OK())

	s.Require().NoError(s.st.Update(func() error {
		r, err := s.chainA.Residue(0)
		if err != nil {
			return err
		}
		return r.RemoveAtom(0)
	}))

	s.Zero(s.svc.Cache().Len())
	events := s.publisher.snapshot()
	s.Require().NotEmpty(events)
	s.Equal(ReasonAtomsChanged, events[0].reason)
}

func (s *ServiceTestSuite) TestStyleChange_RebuildsWithNewVisibility() {
	before := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(before.OK())

	helix := s.chainA.Fragments()[1]
	s.st.Styles().SetVisible(helix.ComponentID(), false)

	s.Zero(s.svc.Cache().Len())
	after := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(after.OK())
	s.Len(after.Batch.Lists, 3)
	s.Greater(after.Batch.StyleRevision, before.Batch.StyleRevision)

	events := s.publisher.snapshot()
	s.Require().Len(events, 1)
	s.Equal(ReasonStyleChanged, events[0].reason)
	s.Empty(events[0].chainID)
}

func (s *ServiceTestSuite) TestHiddenChain_IsEmptyAndUncached() {
	s.st.Styles().SetVisible(s.chainA.ComponentID(), false)

	res := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Equal(geometry.StatusEmpty, res.Status)
	s.Zero(s.svc.Cache().Len())
}

func (s *ServiceTestSuite) TestSetRibbonConfig() {
	before := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(before.OK())

	s.Require().NoError(s.svc.SetRibbonConfig(s.ctx, geometry.DefaultRibbonConfig()))
	s.Equal(1, s.svc.Cache().Len())
	s.Empty(s.publisher.snapshot())

	cfg := geometry.RibbonConfig{Form: geometry.FormCylindricalHelices, Smoothing: true}
	s.Require().NoError(s.svc.SetRibbonConfig(s.ctx, cfg))
	s.Equal(cfg, s.svc.RibbonConfig())
	s.Zero(s.svc.Cache().Len())

	after := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(after.OK())
	s.Equal(geometry.FormCylindricalHelices, after.Batch.Form)
	s.Equal(geometry.ShapeCylinder, after.Batch.Lists[1].Shape)

	events := s.publisher.snapshot()
	s.Require().Len(events, 1)
	s.Equal(published{"", "", ReasonConfigChanged, 1}, events[0])

	err := s.svc.SetRibbonConfig(s.ctx, geometry.RibbonConfig{Form: "wireframe"})
	s.True(errors.IsCode(err, errors.ErrCodeUnsupportedConfiguration))
	s.Equal(cfg, s.svc.RibbonConfig())
}

func (s *ServiceTestSuite) TestStructureGeometry_IsolatesFailures() {
	short, err := structure.NewIdealChain("B", "GLY", structure.RepeatConformation(stypes.ConformationCoil, 1))
	s.Require().NoError(err)
	s.Require().NoError(s.st.AddChain(short))
	c, err := structure.NewIdealChain("C", "SER", structure.RepeatConformation(stypes.ConformationStrand, 6))
	s.Require().NoError(err)
	s.Require().NoError(s.st.AddChain(c))

	results := s.svc.StructureGeometry(s.ctx, s.st, 1)
	s.Require().Len(results, 3)
	s.Equal(geometry.StatusBuilt, results[0].Status)
	s.Equal(geometry.StatusFailed, results[1].Status)
	s.True(errors.IsCode(results[1].Err, errors.ErrCodeBuildFailure))
	s.Equal(geometry.StatusBuilt, results[2].Status)
	s.Equal("C", results[2].Batch.Component.ChainID)
	s.True(s.logger.HasMessage("error", "ribbon geometry build failed"))
	s.Nil(s.svc.StructureGeometry(s.ctx, nil, 1))
}

func (s *ServiceTestSuite) TestDetach_DropsGeometryAndStopsListening() {
	s.Require().True(s.svc.ChainGeometry(s.ctx, s.chainA, 1).OK())

	s.svc.Detach(s.ctx, s.st)
	s.Zero(s.svc.Cache().Len())

	s.st.Styles().SetSelected(s.chainA.ComponentID(), true)
	s.Empty(s.publisher.snapshot())

	s.Require().NoError(s.svc.Attach(s.st))
	s.Require().NoError(s.svc.Attach(s.st))
	s.st.Styles().SetSelected(s.chainA.ComponentID(), false)
	events := s.publisher.snapshot()
	s.Require().Len(events, 1)
	s.Equal(ReasonStyleChanged, events[0].reason)
}

func (s *ServiceTestSuite) TestDetach_ThenConformationChange_RebuildsGeometry() {
	s.svc.Detach(s.ctx, s.st)

	before := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(before.OK())
	s.Len(before.Batch.Lists, 4)

	s.Require().NoError(s.st.Update(func() error {
		r, err := s.chainA.Residue(0)
		if err != nil {
			return err
		}
		return r.SetConformationType(stypes.ConformationStrand)
	}))

	after := s.svc.ChainGeometry(s.ctx, s.chainA, 1)
	s.Require().True(after.OK())
	s.NotSame(before.Batch, after.Batch)
	s.Len(after.Batch.Lists, len(s.chainA.Fragments()))
	s.Equal(stypes.ConformationStrand, after.Batch.Lists[0].Conformation)
}

func TestChainGeometry_AttachesOwnerOnFirstUse(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(geometry.DefaultRibbonConfig())
	require.NoError(t, err)
	defer svc.Close()

	st := structure.NewStructure("2XYZ")
	chain, err := structure.NewIdealChain("A", "ALA", structure.RepeatConformation(stypes.ConformationHelix, 6))
	require.NoError(t, err)
	require.NoError(t, st.AddChain(chain))

	first := svc.ChainGeometry(ctx, chain, 1)
	require.True(t, first.OK())
	require.Len(t, first.Batch.Lists, 1)

	require.NoError(t, st.Update(func() error {
		r, err := chain.Residue(3)
		if err != nil {
			return err
		}
		return r.SetConformationType(stypes.ConformationStrand)
	}))
	require.Len(t, chain.Fragments(), 3)

	second := svc.ChainGeometry(ctx, chain, 1)
	require.True(t, second.OK())
	assert.NotSame(t, first.Batch, second.Batch)
	assert.Len(t, second.Batch.Lists, 3)
}

func (s *ServiceTestSuite) TestApplyInvalidation() {
	s.Require().True(s.svc.ChainGeometry(s.ctx, s.chainA, 1).OK())

	err := s.svc.ApplyInvalidation(s.ctx, "not-a-uuid", "")
	s.True(errors.IsCode(err, errors.CodeInvalidParam))

	s.Require().NoError(s.svc.ApplyInvalidation(s.ctx, s.st.ID().String(), "Z"))
	s.Equal(1, s.svc.Cache().Len())

	s.Require().NoError(s.svc.ApplyInvalidation(s.ctx, s.st.ID().String(), "A"))
	s.Zero(s.svc.Cache().Len())

	s.Require().True(s.svc.ChainGeometry(s.ctx, s.chainA, 1).OK())
	s.Require().NoError(s.svc.ApplyInvalidation(s.ctx, "", ""))
	s.Zero(s.svc.Cache().Len())
	s.Empty(s.publisher.snapshot())
}

func (s *ServiceTestSuite) TestPublishFailureIsLogged() {
	s.publisher.err = assert.AnError
	s.st.Styles().SetSelected(s.chainA.ComponentID(), true)

	entry := s.logger.Find("warn", "failed to publish geometry invalidation")
	s.Require().NotNil(entry)
	reason, _ := entry.Field("reason")
	s.Equal(ReasonStyleChanged, reason)
}

func (s *ServiceTestSuite) TestInvalidArguments() {
	res := s.svc.ChainGeometry(s.ctx, nil, 1)
	s.True(errors.IsCode(res.Err, errors.ErrCodeInvalidArgument))
	s.True(errors.IsCode(s.svc.Attach(nil), errors.ErrCodeInvalidArgument))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	res = s.svc.ChainGeometry(ctx, s.chainA, 1)
	s.True(errors.IsCode(res.Err, errors.ErrCodeTimeout))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestNewService_RejectsUnknownForm(t *testing.T) {
	_, err := NewService(geometry.RibbonConfig{Form: "wireframe"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedConfiguration))
}

func TestChainGeometry_DetachedChainIsNotCached(t *testing.T) {
	svc, err := NewService(geometry.DefaultRibbonConfig())
	require.NoError(t, err)
	c, err := structure.NewIdealChain("A", "ALA", structure.RepeatConformation(stypes.ConformationHelix, 6))
	require.NoError(t, err)

	first := svc.ChainGeometry(context.Background(), c, 1)
	second := svc.ChainGeometry(context.Background(), c, 1)
	require.True(t, first.OK())
	assert.NotSame(t, first.Batch, second.Batch)
	assert.Zero(t, svc.Cache().Len())
}

func TestService_RecordsMetrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "molscene"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewSceneMetrics(collector)

	svc, err := NewService(geometry.DefaultRibbonConfig(), WithMetrics(metrics))
	require.NoError(t, err)
	st := structure.NewStructure("m")
	c, err := structure.NewIdealChain("A", "ALA", structure.RepeatConformation(stypes.ConformationHelix, 6))
	require.NoError(t, err)
	require.NoError(t, st.AddChain(c))
	require.NoError(t, svc.Attach(st))

	svc.ChainGeometry(context.Background(), c, 1)
	svc.ChainGeometry(context.Background(), c, 1)
	st.Styles().SetSelected(c.ComponentID(), true)

	values := gatherCounters(t, collector)
	assert.Equal(t, 1.0, values["molscene_geometry_builds_total"])
	assert.Equal(t, 1.0, values["molscene_geometry_cache_hits_total"])
	assert.Equal(t, 1.0, values["molscene_geometry_cache_misses_total"])
	assert.Equal(t, 1.0, values["molscene_geometry_invalidations_total"])
}

func gatherCounters(t *testing.T, c prometheus.MetricsCollector) map[string]float64 {
	t.Helper()
	families, err := c.Gatherer().Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetCounter() != nil {
				out[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}
