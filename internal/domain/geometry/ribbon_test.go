package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

func helixChain(t *testing.T, n int) (*structure.Structure, *structure.Chain) {
	t.Helper()
	c, err := structure.NewIdealChain("A", "ALA", structure.RepeatConformation(stypes.ConformationHelix, n))
	require.NoError(t, err)
	s := structure.NewStructure("test")
	require.NoError(t, s.AddChain(c))
	return s, c
}

func mixedChain(t *testing.T) (*structure.Structure, *structure.Chain) {
	t.Helper()
	var confs []stypes.ConformationType
	confs = append(confs, structure.RepeatConformation(stypes.ConformationCoil, 3)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationHelix, 8)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationTurn, 2)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationStrand, 5)...)
	confs = append(confs, structure.RepeatConformation(stypes.ConformationCoil, 3)...)
	c, err := structure.NewIdealChain("B", "GLY", confs)
	require.NoError(t, err)
	s := structure.NewStructure("mixed")
	require.NoError(t, s.AddChain(c))
	return s, c
}

// ─────────────────────────────────────────────────────────────────────────────
// Parameter resolution
// ─────────────────────────────────────────────────────────────────────────────

func TestResolveParameters_Table(t *testing.T) {
	H, E, T, C := stypes.ConformationHelix, stypes.ConformationStrand, stypes.ConformationTurn, stypes.ConformationCoil
	for _, form := range AllRibbonForms {
		p, err := ResolveParameters(RibbonConfig{Form: form, Smoothing: true})
		require.NoError(t, err)

		assert.Equal(t, CrossSectionRoundedTube, p.For(C).CrossSection)
		assert.Equal(t, CrossSectionRoundedTube, p.For(T).CrossSection)
		assert.Equal(t, CrossSectionRegularPolygon, p.For(H).CrossSection)
		assert.Equal(t, CrossSectionRectangularRibbon, p.For(E).CrossSection)
		assert.Equal(t, form != FormSimpleLine, p.Ribbon)

		assert.Equal(t, 2, p.For(C).Steps)
		assert.Equal(t, 2, p.For(T).Steps)
		assert.Equal(t, 2, p.For(E).Steps)
		assert.Equal(t, 0, p.For(H).Steps)
		for _, conf := range []stypes.ConformationType{H, E, T, C} {
			assert.Equal(t, 0.8, p.For(conf).Quality)
		}
	}
}

func TestResolveParameters_NoSmoothing(t *testing.T) {
	p, err := ResolveParameters(RibbonConfig{Form: FormTraditional})
	require.NoError(t, err)
	for _, conf := range stypes.AllConformations {
		assert.Equal(t, 0, p.For(conf).Steps, conf)
	}
}

func TestResolveParameters_HelixShape(t *testing.T) {
	trad, _ := ResolveParameters(RibbonConfig{Form: FormTraditional, Smoothing: true})
	cyl, _ := ResolveParameters(RibbonConfig{Form: FormCylindricalHelices, Smoothing: true})
	assert.Equal(t, ShapeRibbon, trad.For(stypes.ConformationHelix).Shape)
	assert.Equal(t, ShapeCylinder, cyl.For(stypes.ConformationHelix).Shape)
	assert.Equal(t, trad.For(stypes.ConformationUndefined), trad.For(stypes.ConformationCoil))
}

func TestResolveParameters_Unsupported(t *testing.T) {
	_, err := ResolveParameters(RibbonConfig{Form: "wireframe"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedConfiguration))
}

func TestParseRibbonForm(t *testing.T) {
	cases := map[string]RibbonForm{
		"traditional":             FormTraditional,
		"Simple Line":             FormSimpleLine,
		"simple":                  FormSimpleLine,
		"cylindrical":             FormCylindricalHelices,
		"Traditional / Cylinders": FormCylindricalHelices,
		"cylindrical-helices":     FormCylindricalHelices,
	}
	for in, want := range cases {
		got, err := ParseRibbonForm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRibbonForm("cartoon")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedConfiguration))

	assert.Equal(t, "Traditional / Cylinders", FormCylindricalHelices.Description())
	assert.Equal(t, "Simple Line", FormSimpleLine.Description())
}

// ─────────────────────────────────────────────────────────────────────────────
// Build
// ─────────────────────────────────────────────────────────────────────────────

func TestRibbon_HelixTraditional(t *testing.T) {
	s, c := helixChain(t, 5)
	g := NewRibbonGeometry(RibbonConfig{Form: FormTraditional, Smoothing: true}, logging.NewNopLogger())

	res := g.Build(c, s.Styles().Snapshot(), 1)
	require.True(t, res.OK(), res.Reason())
	require.Len(t, res.Batch.Lists, 1)

	dl := res.Batch.Lists[0]
	assert.Equal(t, CrossSectionRegularPolygon, dl.CrossSection)
	assert.Equal(t, ShapeRibbon, dl.Shape)
	assert.Equal(t, 0, dl.Steps)
	assert.Equal(t, stypes.ConformationHelix, dl.Conformation)
	assert.Positive(t, dl.Mesh.TriangleCount())
	assert.Equal(t, FormTraditional, res.Batch.Form)
	assert.Equal(t, c.ComponentID(), res.Batch.Component)
}

func TestRibbon_HelixCylindricalDiffersOnlyInShape(t *testing.T) {
	s, c := helixChain(t, 5)
	snap := s.Styles().Snapshot()
	trad := NewRibbonGeometry(RibbonConfig{Form: FormTraditional, Smoothing: true}, nil).Build(c, snap, 1)
	cyl := NewRibbonGeometry(RibbonConfig{Form: FormCylindricalHelices, Smoothing: true}, nil).Build(c, snap, 1)
	require.True(t, trad.OK())
	require.True(t, cyl.OK(), cyl.Reason())
	require.Len(t, cyl.Batch.Lists, 1)

	a, b := trad.Batch.Lists[0], cyl.Batch.Lists[0]
	assert.Equal(t, ShapeCylinder, b.Shape)
	assert.Equal(t, CrossSectionRegularPolygon, b.CrossSection)
	assert.Equal(t, a.CrossSection, b.CrossSection)
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, a.Quality, b.Quality)
	assert.NotEqual(t, a.Shape, b.Shape)
}

func TestRibbon_CylindricalSingleResidueHelix(t *testing.T) {
	C, H := stypes.ConformationCoil, stypes.ConformationHelix
	c, err := structure.NewIdealChain("A", "ALA", []stypes.ConformationType{C, C, C, H, C, C, C})
	require.NoError(t, err)
	s := structure.NewStructure("short-helix")
	require.NoError(t, s.AddChain(c))
	snap := s.Styles().Snapshot()

	trad := NewRibbonGeometry(RibbonConfig{Form: FormTraditional, Smoothing: true}, nil).Build(c, snap, 1)
	cyl := NewRibbonGeometry(RibbonConfig{Form: FormCylindricalHelices, Smoothing: true}, nil).Build(c, snap, 1)
	require.True(t, trad.OK(), trad.Reason())
	require.True(t, cyl.OK(), cyl.Reason())
	require.Len(t, cyl.Batch.Lists, 3)

	helix := cyl.Batch.Lists[1]
	assert.Equal(t, H, helix.Conformation)
	assert.Equal(t, ShapeRibbon, helix.Shape)
	assert.Equal(t, CrossSectionRegularPolygon, helix.CrossSection)
	assert.Positive(t, helix.Mesh.TriangleCount())
}

func TestRibbon_FragmentOrderPreserved(t *testing.T) {
	s, c := mixedChain(t)
	res := NewRibbonGeometry(DefaultRibbonConfig(), nil).Build(c, s.Styles().Snapshot(), 1)
	require.True(t, res.OK(), res.Reason())

	want := []stypes.ConformationType{
		stypes.ConformationCoil, stypes.ConformationHelix, stypes.ConformationTurn,
		stypes.ConformationStrand, stypes.ConformationCoil,
	}
	require.Len(t, res.Batch.Lists, len(want))
	for i, dl := range res.Batch.Lists {
		assert.Equal(t, want[i], dl.Conformation)
		assert.Equal(t, i, dl.FragmentIndex)
	}
	assert.Equal(t, CrossSectionRectangularRibbon, res.Batch.Lists[3].CrossSection)
	assert.Equal(t, 2, res.Batch.Lists[3].Steps)
}

func TestRibbon_SimpleLineDrawsTraces(t *testing.T) {
	s, c := mixedChain(t)
	res := NewRibbonGeometry(RibbonConfig{Form: FormSimpleLine, Smoothing: true}, nil).Build(c, s.Styles().Snapshot(), 1)
	require.True(t, res.OK())
	for _, dl := range res.Batch.Lists {
		assert.Equal(t, CrossSectionRoundedTube, dl.CrossSection)
	}
}

func TestRibbon_Deterministic(t *testing.T) {
	s, c := mixedChain(t)
	g := NewRibbonGeometry(DefaultRibbonConfig(), nil)
	a := g.Build(c, s.Styles().Snapshot(), 0.5)
	b := g.Build(c, s.Styles().Snapshot(), 0.5)
	require.True(t, a.OK())
	assert.NotSame(t, a.Batch, b.Batch)
	assert.Equal(t, a.Batch, b.Batch)
}

func TestRibbon_HiddenAndSelected(t *testing.T) {
	s, c := mixedChain(t)
	frags := c.Fragments()
	s.Styles().SetVisible(frags[1].ComponentID(), false)
	s.Styles().SetSelected(frags[3].ComponentID(), true)

	res := NewRibbonGeometry(DefaultRibbonConfig(), nil).Build(c, s.Styles().Snapshot(), 1)
	require.True(t, res.OK())
	require.Len(t, res.Batch.Lists, 4)
	assert.Equal(t, uint64(2), res.Batch.StyleRevision)
	for _, dl := range res.Batch.Lists {
		assert.NotEqual(t, stypes.ConformationHelix, dl.Conformation)
		assert.Equal(t, dl.Conformation == stypes.ConformationStrand, dl.Selected)
	}

	s.Styles().SetVisible(c.ComponentID(), false)
	res = NewRibbonGeometry(DefaultRibbonConfig(), nil).Build(c, s.Styles().Snapshot(), 1)
	assert.Equal(t, StatusEmpty, res.Status)
	assert.Nil(t, res.Batch)
}

func TestRibbon_LigandChainIsEmpty(t *testing.T) {
	c := structure.NewChain("L")
	r := structure.NewResidue()
	require.NoError(t, r.AddAtom(&structure.Atom{ID: 1, Name: "FE", CompoundCode: "HEM"}))
	require.NoError(t, c.AddResidue(r))

	res := NewRibbonGeometry(DefaultRibbonConfig(), nil).Build(c, structure.StyleSnapshot{}, 1)
	assert.Equal(t, StatusEmpty, res.Status)
}

func TestRibbon_FailsOpen(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewLoggerFromCore(core)

	// a lone amino acid cannot form a trace
	c, err := structure.NewIdealChain("S", "ALA", []stypes.ConformationType{stypes.ConformationCoil})
	require.NoError(t, err)

	res := NewRibbonGeometry(DefaultRibbonConfig(), logger).Build(c, structure.StyleSnapshot{}, 1)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Batch)
	assert.True(t, errors.IsCode(res.Err, errors.ErrCodeBuildFailure))
	assert.NotEmpty(t, res.Reason())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "S", entry.ContextMap()[logging.FieldChain])
	assert.Equal(t, "GEO_002", entry.ContextMap()[logging.FieldErrorCode])
}

func TestRibbon_UnsupportedForm(t *testing.T) {
	_, c := helixChain(t, 5)
	res := NewRibbonGeometry(RibbonConfig{Form: "wireframe"}, nil).Build(c, structure.StyleSnapshot{}, 1)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, errors.IsCode(res.Err, errors.ErrCodeUnsupportedConfiguration))
}

func TestRibbon_NilChain(t *testing.T) {
	res := NewRibbonGeometry(DefaultRibbonConfig(), nil).Build(nil, structure.StyleSnapshot{}, 1)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, errors.IsCode(res.Err, errors.ErrCodeInvalidArgument))
}

func TestBuildStatus_String(t *testing.T) {
	assert.Equal(t, "built", StatusBuilt.String())
	assert.Equal(t, "empty", StatusEmpty.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "status(9)", BuildStatus(9).String())
}
