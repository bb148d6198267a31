package geometry

import (
	"fmt"

	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration and parameter resolution
// ─────────────────────────────────────────────────────────────────────────────

// RibbonConfig is the user-facing ribbon setting.
type RibbonConfig struct {
	Form      RibbonForm
	Smoothing bool
}

// DefaultRibbonConfig is the traditional form with smoothing.
func DefaultRibbonConfig() RibbonConfig {
	return RibbonConfig{Form: FormTraditional, Smoothing: true}
}

func (c RibbonConfig) String() string {
	return fmt.Sprintf("%s(smoothing=%t)", c.Form, c.Smoothing)
}

// ConformationParameters drive the sweep of one fragment.
type ConformationParameters struct {
	CrossSection CrossSectionType
	Shape        HelixShape
	Steps        int
	Quality      float64
	Dimensions   Dimensions
}

// FormParameters are the resolved parameters of a RibbonConfig. Ribbon is
// false for the simple line form, where every fragment is drawn as a thin
// trace.
type FormParameters struct {
	Form   RibbonForm
	Ribbon bool
	byConf map[stypes.ConformationType]ConformationParameters
}

const (
	smoothingSteps = 2
	qualityFactor  = 0.8
)

// ResolveParameters maps a configuration to per-conformation parameters.
// Unsupported forms are an error.
func ResolveParameters(cfg RibbonConfig) (FormParameters, error) {
	if !cfg.Form.IsValid() {
		return FormParameters{}, errors.Unsupported("unsupported ribbon form").WithDetail(string(cfg.Form))
	}

	steps := 0
	if cfg.Smoothing {
		steps = smoothingSteps
	}
	helixShape := ShapeRibbon
	helixDims := HelixDimensions
	if cfg.Form == FormCylindricalHelices {
		helixShape = ShapeCylinder
		helixDims = CylinderDimensions
	}

	coil := ConformationParameters{
		CrossSection: CrossSectionRoundedTube,
		Steps:        steps,
		Quality:      qualityFactor,
		Dimensions:   CoilDimensions,
	}
	return FormParameters{
		Form:   cfg.Form,
		Ribbon: cfg.Form != FormSimpleLine,
		byConf: map[stypes.ConformationType]ConformationParameters{
			stypes.ConformationCoil: coil,
			stypes.ConformationTurn: coil,
			stypes.ConformationHelix: {
				CrossSection: CrossSectionRegularPolygon,
				Shape:        helixShape,
				Steps:        0,
				Quality:      qualityFactor,
				Dimensions:   helixDims,
			},
			stypes.ConformationStrand: {
				CrossSection: CrossSectionRectangularRibbon,
				Steps:        steps,
				Quality:      qualityFactor,
				Dimensions:   StrandDimensions,
			},
		},
	}, nil
}

// For returns the parameters of conformation t. Undefined residues are
// drawn as coil.
func (p FormParameters) For(t stypes.ConformationType) ConformationParameters {
	if cp, ok := p.byConf[t]; ok {
		return cp
	}
	return p.byConf[stypes.ConformationCoil]
}

// ─────────────────────────────────────────────────────────────────────────────
// Orchestrator
// ─────────────────────────────────────────────────────────────────────────────

// RibbonGeometry builds the ribbon meshes of chains for one configuration.
// It is immutable and safe for concurrent use.
type RibbonGeometry struct {
	cfg     RibbonConfig
	builder SweepBuilder
	logger  logging.Logger
}

// NewRibbonGeometry returns an orchestrator for cfg. An unsupported form is
// reported by Build, not here.
func NewRibbonGeometry(cfg RibbonConfig, logger logging.Logger) *RibbonGeometry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RibbonGeometry{cfg: cfg, logger: logger}
}

// Config returns the configuration the orchestrator was built with.
func (g *RibbonGeometry) Config() RibbonConfig { return g.cfg }

// Build produces one display list per visible polymer fragment of chain, in
// fragment order. Any failure yields a Failed result and no geometry; a
// chain with nothing visible to draw yields Empty. When the chain belongs to
// a structure, the build holds its read lock.
func (g *RibbonGeometry) Build(chain *structure.Chain, styles structure.StyleSnapshot, quality float64) (result BuildResult) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed(errors.BuildFailure("panic during geometry build").WithDetail(fmt.Sprint(r)))
		}
		if result.Status == StatusFailed {
			fields := []logging.Field{logging.String(logging.FieldForm, string(g.cfg.Form))}
			if chain != nil {
				fields = append(fields, logging.String(logging.FieldChain, chain.ID()))
			}
			g.logger.WithError(result.Err).Error("ribbon geometry build failed", fields...)
		}
	}()

	if chain == nil {
		return Failed(errors.InvalidArgument("chain must not be nil"))
	}
	params, err := ResolveParameters(g.cfg)
	if err != nil {
		return Failed(err)
	}
	quality = clampQuality(quality)

	build := func() error {
		var err error
		result, err = g.buildChain(chain, styles, params, quality)
		return err
	}
	if s := chain.Structure(); s != nil {
		err = s.View(build)
	} else {
		err = build()
	}
	if err != nil {
		return Failed(err)
	}
	return result
}

func (g *RibbonGeometry) buildChain(chain *structure.Chain, styles structure.StyleSnapshot,
	params FormParameters, quality float64) (BuildResult, error) {

	chainID := chain.ComponentID()
	if !styles.IsVisible(chainID) {
		return Empty(), nil
	}
	residues := chain.Residues()
	batch := &Batch{
		Component:     chainID,
		StyleRevision: styles.Revision(),
		Quality:       quality,
		Form:          params.Form,
	}

	for _, frag := range chain.Fragments() {
		fragID := frag.ComponentID()
		if !frag.IsPolymer() || !styles.IsVisible(fragID) {
			continue
		}
		cp := params.For(frag.ConformationType())
		if !params.Ribbon {
			cp = ConformationParameters{
				CrossSection: CrossSectionRoundedTube,
				Steps:        cp.Steps,
				Quality:      cp.Quality,
				Dimensions:   TraceDimensions,
			}
		}
		bridge := cp.Shape != ShapeCylinder
		points := ControlPoints(residues, frag.StartIndex(), frag.EndIndex(), bridge)
		if !bridge && len(points) < 2 {
			// A single-residue helix has no axis; draw it as a ribbon segment.
			cp.Shape = ShapeRibbon
			points = ControlPoints(residues, frag.StartIndex(), frag.EndIndex(), true)
		}

		mesh, err := g.builder.Build(SweepRequest{
			Points:       points,
			CrossSection: cp.CrossSection,
			Shape:        cp.Shape,
			Steps:        cp.Steps,
			Quality:      cp.Quality * quality,
			Dimensions:   cp.Dimensions,
		})
		if err != nil {
			return BuildResult{}, errors.Wrap(err, errors.CodeUnknown, "fragment sweep failed").
				WithDetail(fmt.Sprintf("chain=%s fragment=%d conformation=%s", chain.ID(), frag.Index(), frag.ConformationType()))
		}
		batch.Lists = append(batch.Lists, DisplayList{
			Component:     fragID,
			FragmentIndex: frag.Index(),
			Conformation:  frag.ConformationType(),
			CrossSection:  cp.CrossSection,
			Shape:         cp.Shape,
			Steps:         cp.Steps,
			Quality:       cp.Quality * quality,
			Selected:      styles.IsSelected(fragID),
			Mesh:          mesh,
		})
	}

	if len(batch.Lists) == 0 {
		return Empty(), nil
	}
	return Built(batch), nil
}

func clampQuality(q float64) float64 {
	if q <= 0 || q > 1 {
		return 1
	}
	return q
}
