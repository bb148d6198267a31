package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

type ribbonOptions struct {
	pattern      string
	conformation string
	residues     int
	chains       int
	compound     string
	form         string
	smoothing    bool
	quality      float64
	passes       int
	metrics      bool
}

// NewRibbonCmd builds ribbon geometry for an ideal chain and reports the
// per-fragment mesh statistics.
func NewRibbonCmd() *cobra.Command {
	opts := &ribbonOptions{}

	cmd := &cobra.Command{
		Use:   "ribbon",
		Short: "Build ribbon geometry for an ideal polymer chain",
		Long: `Build ribbon geometry for one or more ideal poly-amino-acid chains.

The secondary structure is given either as a per-residue pattern of
DSSP-style letters (H helix, E strand, T turn, C coil, - undefined) or as a
single conformation repeated --residues times.`,
		Example: `  molscene ribbon --pattern CCCHHHHHHHHCCEEEEECC
  molscene ribbon --conformation helix --residues 20 --form cylindrical -o table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRibbon(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.pattern, "pattern", "", "per-residue conformation letters, e.g. CCHHHHHHCC")
	f.StringVar(&opts.conformation, "conformation", "helix", "conformation of every residue when --pattern is empty")
	f.IntVar(&opts.residues, "residues", 12, "number of residues when --pattern is empty")
	f.IntVar(&opts.chains, "chains", 1, "number of identical chains to build")
	f.StringVar(&opts.compound, "compound", "ALA", "residue compound name")
	f.StringVar(&opts.form, "form", "", "ribbon form (simple_line, traditional, cylindrical_helices); overrides render.ribbon_form")
	f.BoolVar(&opts.smoothing, "smoothing", true, "smooth coil and strand sweeps; overrides render.smoothing")
	f.Float64Var(&opts.quality, "quality", 0, "tessellation quality in (0, 1]; overrides render.quality")
	f.IntVar(&opts.passes, "passes", 1, "number of times to request the geometry; later passes are served from cache")
	f.BoolVar(&opts.metrics, "metrics", false, "print collected metrics after the run")
	return cmd
}

func runRibbon(cmd *cobra.Command, opts *ribbonOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	confs, err := ribbonConformations(opts)
	if err != nil {
		return err
	}
	if opts.chains < 1 || opts.chains > 26 {
		return errors.InvalidParam(fmt.Sprintf("chains must be between 1 and 26, got %d", opts.chains))
	}
	if opts.passes < 1 {
		return errors.InvalidParam(fmt.Sprintf("passes must be >= 1, got %d", opts.passes))
	}

	cfg := *cliCtx.Config
	if opts.form != "" {
		form, err := geometry.ParseRibbonForm(opts.form)
		if err != nil {
			return err
		}
		cfg.Render.RibbonForm = string(form)
	}
	if cmd.Flags().Changed("smoothing") {
		cfg.Render.Smoothing = opts.smoothing
	}
	if cmd.Flags().Changed("quality") {
		if opts.quality <= 0 || opts.quality > 1 {
			return errors.InvalidParam(fmt.Sprintf("quality must be in (0, 1], got %g", opts.quality))
		}
		cfg.Render.Quality = opts.quality
	}
	if opts.metrics {
		cfg.Metrics.Enabled = true
	}

	rt, err := NewRuntime(&cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	name := fmt.Sprintf("ideal/%s/%d/%v", opts.compound, opts.chains, confs)
	s := structure.NewStructureWithID(structure.EntryID(name), "ideal")
	for i := 0; i < opts.chains; i++ {
		chain, err := structure.NewIdealChain(string(rune('A'+i)), opts.compound, confs)
		if err != nil {
			return err
		}
		if err := s.AddChain(chain); err != nil {
			return err
		}
	}
	if err := rt.Service.Attach(s); err != nil {
		return err
	}
	defer rt.Service.Detach(context.Background(), s)

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	start := time.Now()
	var results []geometry.BuildResult
	for pass := 0; pass < opts.passes; pass++ {
		results = rt.Service.StructureGeometry(ctx, s, cfg.Render.Quality)
	}
	logging.LogDuration(cliCtx.Logger, "ribbon geometry built", start, time.Second,
		logging.Int("chains", opts.chains), logging.Int("passes", opts.passes))

	report := newRibbonReport(rt.Service.RibbonConfig(), cfg.Render.Quality, s, results, rt.Service.Cache().Len())
	if err := PrintResult(cmd, report); err != nil {
		return err
	}

	if opts.metrics && rt.Collector != nil {
		families, err := rt.Collector.Gatherer().Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.FmtText)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	}

	if failed := report.Failed(); failed > 0 {
		return errors.BuildFailure(fmt.Sprintf("%d chain(s) failed to build", failed))
	}
	return nil
}

func ribbonConformations(opts *ribbonOptions) ([]stypes.ConformationType, error) {
	if opts.pattern != "" {
		confs := make([]stypes.ConformationType, 0, len(opts.pattern))
		for _, r := range opts.pattern {
			if r == ' ' {
				continue
			}
			t, err := stypes.ParseConformationType(string(r))
			if err != nil {
				return nil, errors.InvalidParam(err.Error()).WithDetail(opts.pattern)
			}
			confs = append(confs, t)
		}
		if len(confs) == 0 {
			return nil, errors.InvalidParam("pattern has no residues")
		}
		return confs, nil
	}

	if opts.residues < 1 {
		return nil, errors.InvalidParam(fmt.Sprintf("residues must be >= 1, got %d", opts.residues))
	}
	t, err := stypes.ParseConformationType(opts.conformation)
	if err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	return structure.RepeatConformation(t, opts.residues), nil
}

// ============================================================================
// Report
// ============================================================================

// FragmentReport describes one display list.
type FragmentReport struct {
	Index        int    `json:"index"`
	Conformation string `json:"conformation"`
	CrossSection string `json:"cross_section"`
	Shape        string `json:"shape,omitempty"`
	Steps        int    `json:"steps"`
	Vertices     int    `json:"vertices"`
	Triangles    int    `json:"triangles"`
}

// ChainReport describes the build result of one chain.
type ChainReport struct {
	Chain     string           `json:"chain"`
	Residues  int              `json:"residues"`
	Status    string           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Vertices  int              `json:"vertices"`
	Triangles int              `json:"triangles"`
	Fragments []FragmentReport `json:"fragments,omitempty"`
}

// RibbonReport is the output of the ribbon command.
type RibbonReport struct {
	Form         string        `json:"form"`
	Smoothing    bool          `json:"smoothing"`
	Quality      float64       `json:"quality"`
	CacheEntries int           `json:"cache_entries"`
	Chains       []ChainReport `json:"chains"`
}

func newRibbonReport(cfg geometry.RibbonConfig, quality float64, s *structure.Structure,
	results []geometry.BuildResult, cacheEntries int) *RibbonReport {
	report := &RibbonReport{
		Form:         string(cfg.Form),
		Smoothing:    cfg.Smoothing,
		Quality:      quality,
		CacheEntries: cacheEntries,
	}
	chains := s.Chains()
	for i, res := range results {
		cr := ChainReport{Status: res.Status.String(), Reason: res.Reason()}
		if i < len(chains) {
			cr.Chain = chains[i].ID()
			cr.Residues = chains[i].ResidueCount()
		}
		if res.OK() {
			cr.Vertices = res.Batch.VertexCount()
			cr.Triangles = res.Batch.TriangleCount()
			for _, l := range res.Batch.Lists {
				cr.Fragments = append(cr.Fragments, FragmentReport{
					Index:        l.FragmentIndex,
					Conformation: string(l.Conformation),
					CrossSection: string(l.CrossSection),
					Shape:        string(l.Shape),
					Steps:        l.Steps,
					Vertices:     l.Mesh.VertexCount(),
					Triangles:    l.Mesh.TriangleCount(),
				})
			}
		}
		report.Chains = append(report.Chains, cr)
	}
	return report
}

// Failed counts chains whose build failed.
func (r *RibbonReport) Failed() int {
	n := 0
	for _, c := range r.Chains {
		if c.Status == geometry.StatusFailed.String() {
			n++
		}
	}
	return n
}

func (r *RibbonReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "form: %s  smoothing: %t  quality: %g  cached batches: %d\n",
		r.Form, r.Smoothing, r.Quality, r.CacheEntries)
	for _, c := range r.Chains {
		fmt.Fprintf(&sb, "chain %s (%d residues): %s", c.Chain, c.Residues, statusColor(c.Status))
		if c.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", c.Reason)
		}
		if c.Status == geometry.StatusBuilt.String() {
			fmt.Fprintf(&sb, ", %d vertices, %d triangles", c.Vertices, c.Triangles)
		}
		sb.WriteString("\n")
		for _, f := range c.Fragments {
			fmt.Fprintf(&sb, "  #%d %-10s %-18s vertices=%d triangles=%d\n",
				f.Index, f.Conformation, f.CrossSection, f.Vertices, f.Triangles)
		}
	}
	return sb.String()
}

func (r *RibbonReport) TableHeaders() []string {
	return []string{"Chain", "Fragment", "Conformation", "Cross Section", "Shape", "Steps", "Vertices", "Triangles", "Status"}
}

func (r *RibbonReport) TableRows() [][]string {
	var rows [][]string
	for _, c := range r.Chains {
		if len(c.Fragments) == 0 {
			rows = append(rows, []string{c.Chain, "-", "-", "-", "-", "-", "0", "0", c.Status})
			continue
		}
		for _, f := range c.Fragments {
			rows = append(rows, []string{
				c.Chain,
				strconv.Itoa(f.Index),
				f.Conformation,
				f.CrossSection,
				f.Shape,
				strconv.Itoa(f.Steps),
				strconv.Itoa(f.Vertices),
				strconv.Itoa(f.Triangles),
				c.Status,
			})
		}
	}
	return rows
}
