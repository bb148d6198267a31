package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/molscene/pkg/errors"
)

// Dimensions sizes a cross-section in Angstrom. Width spans the side axis
// of the sweep frame and Thickness spans the normal axis. Radius applies to
// round profiles.
type Dimensions struct {
	Width     float64
	Thickness float64
	Radius    float64
}

// Standard profile sizes.
var (
	CoilDimensions     = Dimensions{Radius: 0.3}
	HelixDimensions    = Dimensions{Width: 2.0, Thickness: 0.4}
	StrandDimensions   = Dimensions{Width: 1.6, Thickness: 0.3}
	CylinderDimensions = Dimensions{Width: 4.6, Thickness: 4.6}
	TraceDimensions    = Dimensions{Radius: 0.15}
)

// Profile is a closed 2-D outline in the (side, normal) plane of the sweep
// frame. Segments lists the outline edges to stitch between rings; Cap
// lists the distinct outline points, in order, used to close the ends.
type Profile struct {
	Points   []r2.Vec
	Normals  []r2.Vec
	Segments [][2]int
	Cap      []int
}

// Sides returns the number of stitched edges.
func (p Profile) Sides() int { return len(p.Segments) }

const (
	minTubeSides    = 6
	maxTubeSides    = 16
	minPolygonSides = 3
	maxPolygonSides = 8
)

// NewProfile builds the outline for cs at the given quality in (0,1].
func NewProfile(cs CrossSectionType, quality float64, dims Dimensions) (Profile, error) {
	switch cs {
	case CrossSectionRoundedTube:
		if dims.Radius <= 0 {
			return Profile{}, errors.InvalidArgument("tube radius must be positive")
		}
		n := sidesFor(quality, minTubeSides, maxTubeSides)
		return ellipse(n, dims.Radius, dims.Radius), nil
	case CrossSectionRegularPolygon:
		if dims.Width <= 0 || dims.Thickness <= 0 {
			return Profile{}, errors.InvalidArgument("polygon width and thickness must be positive")
		}
		n := sidesFor(quality, minPolygonSides, maxPolygonSides)
		return ellipse(n, dims.Width/2, dims.Thickness/2), nil
	case CrossSectionRectangularRibbon:
		if dims.Width <= 0 || dims.Thickness <= 0 {
			return Profile{}, errors.InvalidArgument("ribbon width and thickness must be positive")
		}
		return rectangle(dims.Width/2, dims.Thickness/2), nil
	}
	return Profile{}, errors.Unsupported("unknown cross-section type").WithDetail(string(cs))
}

func sidesFor(quality float64, lo, hi int) int {
	n := int(math.Round(float64(hi) * quality))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// ellipse samples n points of an axis-aligned ellipse with smooth normals.
func ellipse(n int, a, b float64) Profile {
	p := Profile{
		Points:   make([]r2.Vec, n),
		Normals:  make([]r2.Vec, n),
		Segments: make([][2]int, n),
		Cap:      make([]int, n),
	}
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		c, s := math.Cos(theta), math.Sin(theta)
		p.Points[i] = r2.Vec{X: a * c, Y: b * s}
		p.Normals[i] = r2.Unit(r2.Vec{X: c / a, Y: s / b})
		p.Segments[i] = [2]int{i, (i + 1) % n}
		p.Cap[i] = i
	}
	return p
}

// rectangle emits each edge with its own pair of vertices so the faces are
// flat shaded.
func rectangle(hw, ht float64) Profile {
	corners := [4]r2.Vec{{X: hw, Y: ht}, {X: -hw, Y: ht}, {X: -hw, Y: -ht}, {X: hw, Y: -ht}}
	faces := [4]r2.Vec{{Y: 1}, {X: -1}, {Y: -1}, {X: 1}}
	var p Profile
	for i := 0; i < 4; i++ {
		a, b := corners[i], corners[(i+1)%4]
		p.Points = append(p.Points, a, b)
		p.Normals = append(p.Normals, faces[i], faces[i])
		p.Segments = append(p.Segments, [2]int{2 * i, 2*i + 1})
		p.Cap = append(p.Cap, 2*i)
	}
	return p
}
