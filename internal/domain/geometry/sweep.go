package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/pkg/errors"
)

// SweepRequest describes one extrusion.
type SweepRequest struct {
	Points       []ControlPoint
	CrossSection CrossSectionType
	Shape        HelixShape
	Steps        int
	Quality      float64
	Dimensions   Dimensions
}

// SweepBuilder extrudes cross-section profiles along control point paths.
// It holds no state and is safe for concurrent use.
type SweepBuilder struct{}

// cylinderWindow is the number of consecutive alpha atoms averaged to find
// points on a helix axis. 3.6 residues make one turn of an alpha helix.
const cylinderWindow = 4

// Build produces the mesh for req. Fewer than two control points or
// non-finite coordinates fail with a build error; unknown cross-sections
// fail with an unsupported-configuration error.
func (SweepBuilder) Build(req SweepRequest) (*Mesh, error) {
	if len(req.Points) < 2 {
		return nil, errors.BuildFailure("sweep needs at least two control points").
			WithDetail(fmt.Sprintf("points=%d", len(req.Points)))
	}
	for i, p := range req.Points {
		if !finiteVec(p.Position) || !finiteVec(p.Normal) {
			return nil, errors.New(errors.ErrCodeDegenerateGeometry, "non-finite control point").
				WithDetail(fmt.Sprintf("index=%d", i))
		}
	}
	profile, err := NewProfile(req.CrossSection, req.Quality, req.Dimensions)
	if err != nil {
		return nil, err
	}

	var path []SplinePoint
	if req.Shape == ShapeCylinder {
		path, err = cylinderAxis(req.Points)
	} else {
		path, err = splinePath(req.Points, req.Steps)
	}
	if err != nil {
		return nil, err
	}

	mesh := &Mesh{}
	frames := buildFrames(path)
	extrude(mesh, profile, path, frames)
	capEnd(mesh, profile, path[0], frames[0], true)
	capEnd(mesh, profile, path[len(path)-1], frames[len(frames)-1], false)
	return mesh, nil
}

func splinePath(points []ControlPoint, steps int) ([]SplinePoint, error) {
	spline, err := NewHermiteSpline(points, steps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBuildFailure, "spline interpolation failed")
	}
	return spline.Points(), nil
}

// cylinderAxis fits a straight axis through running centroids of the
// control points and returns its two end samples.
func cylinderAxis(points []ControlPoint) ([]SplinePoint, error) {
	var start, end r3.Vec
	if len(points) <= cylinderWindow {
		start, end = points[0].Position, points[len(points)-1].Position
	} else {
		start = centroid(points[:cylinderWindow])
		end = centroid(points[len(points)-cylinderWindow:])
		// Window centroids sit (window-1)/2 residues inside each end.
		dir := r3.Sub(end, start)
		if r3.Norm(dir) > epsilon {
			rise := r3.Norm(dir) / float64(len(points)-cylinderWindow)
			ext := r3.Scale(rise*float64(cylinderWindow-1)/2, r3.Unit(dir))
			start, end = r3.Sub(start, ext), r3.Add(end, ext)
		}
	}
	axis := r3.Sub(end, start)
	if r3.Norm(axis) < epsilon {
		return nil, errors.New(errors.ErrCodeDegenerateGeometry, "helix axis has zero length")
	}
	normal := orthonormal(r3.Sub(points[0].Position, start), axis, points[0].Normal)
	return []SplinePoint{
		{Position: start, Tangent: axis, Normal: normal},
		{Position: end, Tangent: axis, Normal: normal},
	}, nil
}

func centroid(points []ControlPoint) r3.Vec {
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p.Position)
	}
	return r3.Scale(1/float64(len(points)), sum)
}

// frame is the orthonormal basis at one path sample.
type frame struct {
	tangent, side, normal r3.Vec
}

func buildFrames(path []SplinePoint) []frame {
	frames := make([]frame, len(path))
	prevNormal := r3.Vec{}
	for i, p := range path {
		t := p.Tangent
		if r3.Norm(t) < epsilon {
			t = chordTangent(path, i)
		}
		t = unitOr(t, r3.Vec{Z: 1})
		n := orthonormal(p.Normal, t, prevNormal)
		if i > 0 && r3.Dot(n, prevNormal) < 0 {
			n = r3.Scale(-1, n)
		}
		frames[i] = frame{tangent: t, side: r3.Unit(r3.Cross(t, n)), normal: n}
		prevNormal = n
	}
	return frames
}

func chordTangent(path []SplinePoint, i int) r3.Vec {
	switch {
	case len(path) < 2:
		return r3.Vec{}
	case i == 0:
		return r3.Sub(path[1].Position, path[0].Position)
	case i == len(path)-1:
		return r3.Sub(path[i].Position, path[i-1].Position)
	default:
		return r3.Sub(path[i+1].Position, path[i-1].Position)
	}
}

// extrude emits one ring of profile vertices per sample and stitches
// neighbouring rings with two triangles per profile edge.
func extrude(m *Mesh, profile Profile, path []SplinePoint, frames []frame) {
	ring := len(profile.Points)
	base := uint32(len(m.Vertices))
	for i, p := range path {
		f := frames[i]
		for k, q := range profile.Points {
			pos := r3.Add(p.Position, r3.Add(r3.Scale(q.X, f.side), r3.Scale(q.Y, f.normal)))
			qn := profile.Normals[k]
			nrm := r3.Add(r3.Scale(qn.X, f.side), r3.Scale(qn.Y, f.normal))
			m.addVertex(pos, nrm)
		}
	}
	for i := 0; i+1 < len(path); i++ {
		r0 := base + uint32(i*ring)
		r1 := r0 + uint32(ring)
		for _, seg := range profile.Segments {
			a, b := uint32(seg[0]), uint32(seg[1])
			m.addTriangle(r0+a, r1+a, r0+b)
			m.addTriangle(r0+b, r1+a, r1+b)
		}
	}
}

// capEnd closes one end of the tube with a triangle fan.
func capEnd(m *Mesh, profile Profile, p SplinePoint, f frame, start bool) {
	dir := f.tangent
	if start {
		dir = r3.Scale(-1, dir)
	}
	center := m.addVertex(p.Position, dir)
	first := uint32(len(m.Vertices))
	for _, k := range profile.Cap {
		q := profile.Points[k]
		pos := r3.Add(p.Position, r3.Add(r3.Scale(q.X, f.side), r3.Scale(q.Y, f.normal)))
		m.addVertex(pos, dir)
	}
	n := uint32(len(profile.Cap))
	for i := uint32(0); i < n; i++ {
		a, b := first+i, first+(i+1)%n
		if start {
			m.addTriangle(center, b, a)
		} else {
			m.addTriangle(center, a, b)
		}
	}
}

func finiteVec(v r3.Vec) bool {
	return !math.IsNaN(v.X+v.Y+v.Z) && !math.IsInf(v.X+v.Y+v.Z, 0)
}
