// Package geometry turns chains of the structure model into renderer-ready
// meshes. A Hermite spline smooths the backbone trace, a sweep builder
// extrudes a 2-D cross-section along it, and RibbonGeometry picks the
// cross-section, smoothing and helix representation per secondary
// structure for the configured ribbon form.
package geometry

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/internal/domain/structure"
	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// ─────────────────────────────────────────────────────────────────────────────
// Ribbon form
// ─────────────────────────────────────────────────────────────────────────────

// RibbonForm selects how secondary structure is drawn.
type RibbonForm string

const (
	FormSimpleLine         RibbonForm = "simple_line"
	FormTraditional        RibbonForm = "traditional"
	FormCylindricalHelices RibbonForm = "cylindrical_helices"
)

// AllRibbonForms lists the supported forms in menu order.
var AllRibbonForms = []RibbonForm{FormSimpleLine, FormTraditional, FormCylindricalHelices}

// Description returns the human-readable name of the form.
func (f RibbonForm) Description() string {
	switch f {
	case FormSimpleLine:
		return "Simple Line"
	case FormTraditional:
		return "Traditional"
	case FormCylindricalHelices:
		return "Traditional / Cylinders"
	}
	return "Unknown"
}

// IsValid reports whether f is a supported form.
func (f RibbonForm) IsValid() bool {
	switch f {
	case FormSimpleLine, FormTraditional, FormCylindricalHelices:
		return true
	}
	return false
}

// ParseRibbonForm accepts the form value, its description, or the short
// aliases "simple", "line" and "cylindrical".
func ParseRibbonForm(s string) (RibbonForm, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " / ", "_", " ", "_").Replace(key)
	switch key {
	case "simple_line", "simple", "line":
		return FormSimpleLine, nil
	case "traditional":
		return FormTraditional, nil
	case "cylindrical_helices", "cylindrical", "cylinders", "traditional_cylinders":
		return FormCylindricalHelices, nil
	}
	return "", errors.Unsupported("unknown ribbon form").WithDetail(s)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cross sections and helix shapes
// ─────────────────────────────────────────────────────────────────────────────

// CrossSectionType is the 2-D profile swept along a fragment.
type CrossSectionType string

const (
	CrossSectionRoundedTube       CrossSectionType = "rounded_tube"
	CrossSectionRegularPolygon    CrossSectionType = "regular_polygon"
	CrossSectionRectangularRibbon CrossSectionType = "rectangular_ribbon"
)

// HelixShape is the 3-D representation used for helices.
type HelixShape string

const (
	ShapeRibbon   HelixShape = "ribbon"
	ShapeCylinder HelixShape = "cylinder"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mesh data
// ─────────────────────────────────────────────────────────────────────────────

// Mesh is an indexed triangle mesh. Normals has one entry per vertex and
// Indices holds three entries per triangle.
type Mesh struct {
	Vertices []r3.Vec
	Normals  []r3.Vec
	Indices  []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

func (m *Mesh) addVertex(p, n r3.Vec) uint32 {
	m.Vertices = append(m.Vertices, p)
	m.Normals = append(m.Normals, n)
	return uint32(len(m.Vertices) - 1)
}

func (m *Mesh) addTriangle(a, b, c uint32) {
	m.Indices = append(m.Indices, a, b, c)
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi r3.Vec) {
	if len(m.Vertices) == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = r3.Vec{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = r3.Vec{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return lo, hi
}

// DisplayList is the geometry of one fragment, tagged with everything the
// renderer needs to upload and style it.
type DisplayList struct {
	Component     structure.ComponentID
	FragmentIndex int
	Conformation  stypes.ConformationType
	CrossSection  CrossSectionType
	Shape         HelixShape
	Steps         int
	Quality       float64
	Selected      bool
	Mesh          *Mesh
}

// Batch is the ordered set of display lists for one chain.
type Batch struct {
	Component     structure.ComponentID
	StyleRevision uint64
	Quality       float64
	Form          RibbonForm
	Lists         []DisplayList
}

// VertexCount sums the vertices of every list.
func (b *Batch) VertexCount() int {
	n := 0
	for _, l := range b.Lists {
		n += l.Mesh.VertexCount()
	}
	return n
}

// TriangleCount sums the triangles of every list.
func (b *Batch) TriangleCount() int {
	n := 0
	for _, l := range b.Lists {
		n += l.Mesh.TriangleCount()
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Build result
// ─────────────────────────────────────────────────────────────────────────────

// BuildStatus is the outcome of a geometry build.
type BuildStatus int

const (
	StatusBuilt BuildStatus = iota
	StatusEmpty
	StatusFailed
)

func (s BuildStatus) String() string {
	switch s {
	case StatusBuilt:
		return "built"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// BuildResult carries either a batch, nothing, or the reason a build
// failed. A failed result is retryable once the input data is corrected.
type BuildResult struct {
	Status BuildStatus
	Batch  *Batch
	Err    error
}

// Built wraps a successfully built batch.
func Built(b *Batch) BuildResult { return BuildResult{Status: StatusBuilt, Batch: b} }

// Empty reports that there was nothing to draw.
func Empty() BuildResult { return BuildResult{Status: StatusEmpty} }

// Failed reports a build failure.
func Failed(err error) BuildResult { return BuildResult{Status: StatusFailed, Err: err} }

// OK reports whether the result carries geometry.
func (r BuildResult) OK() bool { return r.Status == StatusBuilt && r.Batch != nil }

// Reason returns the failure message, or "".
func (r BuildResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
