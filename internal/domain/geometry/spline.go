package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/pkg/errors"
)

// ControlPoint is one backbone sample with its orientation normal.
type ControlPoint struct {
	Position r3.Vec
	Normal   r3.Vec
}

// SplinePoint is an interpolated sample with its local frame.
type SplinePoint struct {
	Position r3.Vec
	Tangent  r3.Vec
	Normal   r3.Vec
}

// Spline is a cubic Hermite curve through a sequence of control points.
// Interior tangents are central differences of the neighbours and the end
// tangents are one-sided differences. Each segment is subdivided into
// steps+1 intervals, so n points yield (n-1)*(steps+1)+1 samples and
// steps == 0 reproduces the control points.
type Spline struct {
	points   []ControlPoint
	tangents []r3.Vec
	steps    int
}

// NewHermiteSpline validates the input and precomputes tangents.
func NewHermiteSpline(points []ControlPoint, steps int) (*Spline, error) {
	if len(points) == 0 {
		return nil, errors.InvalidArgument("spline needs at least one control point")
	}
	if steps < 0 {
		return nil, errors.InvalidArgument("smoothing steps must not be negative").
			WithDetail(fmt.Sprintf("steps=%d", steps))
	}
	s := &Spline{
		points:   append([]ControlPoint(nil), points...),
		tangents: make([]r3.Vec, len(points)),
		steps:    steps,
	}
	n := len(points)
	for i := range points {
		switch {
		case n == 1:
		case i == 0:
			s.tangents[i] = r3.Sub(points[1].Position, points[0].Position)
		case i == n-1:
			s.tangents[i] = r3.Sub(points[n-1].Position, points[n-2].Position)
		default:
			s.tangents[i] = r3.Scale(0.5, r3.Sub(points[i+1].Position, points[i-1].Position))
		}
	}
	return s, nil
}

// Steps returns the subdivision count per segment.
func (s *Spline) Steps() int { return s.steps }

// Len returns the number of samples the spline produces.
func (s *Spline) Len() int {
	return (len(s.points)-1)*(s.steps+1) + 1
}

// At evaluates sample i, 0 <= i < Len().
func (s *Spline) At(i int) SplinePoint {
	seg, j := i/(s.steps+1), i%(s.steps+1)
	if seg >= len(s.points)-1 {
		last := len(s.points) - 1
		return s.knot(last)
	}
	if j == 0 {
		return s.knot(seg)
	}
	t := float64(j) / float64(s.steps+1)
	return s.eval(seg, t)
}

func (s *Spline) knot(i int) SplinePoint {
	return SplinePoint{
		Position: s.points[i].Position,
		Tangent:  s.tangents[i],
		Normal:   s.points[i].Normal,
	}
}

// eval interpolates segment seg at parameter t in (0,1).
func (s *Spline) eval(seg int, t float64) SplinePoint {
	p0, p1 := s.points[seg].Position, s.points[seg+1].Position
	m0, m1 := s.tangents[seg], s.tangents[seg+1]

	t2, t3 := t*t, t*t*t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	pos := r3.Add(
		r3.Add(r3.Scale(h00, p0), r3.Scale(h10, m0)),
		r3.Add(r3.Scale(h01, p1), r3.Scale(h11, m1)),
	)

	d00 := 6*t2 - 6*t
	d10 := 3*t2 - 4*t + 1
	d01 := -6*t2 + 6*t
	d11 := 3*t2 - 2*t
	tan := r3.Add(
		r3.Add(r3.Scale(d00, p0), r3.Scale(d10, m0)),
		r3.Add(r3.Scale(d01, p1), r3.Scale(d11, m1)),
	)

	n0, n1 := s.points[seg].Normal, s.points[seg+1].Normal
	normal := r3.Add(r3.Scale(1-t, n0), r3.Scale(t, n1))
	normal = orthonormal(normal, tan, n0)

	return SplinePoint{Position: pos, Tangent: tan, Normal: normal}
}

// Points evaluates every sample in order.
func (s *Spline) Points() []SplinePoint {
	out := make([]SplinePoint, s.Len())
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}

// Iterator returns a restartable cursor over the samples.
func (s *Spline) Iterator() *SplineIterator {
	return &SplineIterator{spline: s}
}

// SplineIterator walks the samples of a Spline lazily.
type SplineIterator struct {
	spline *Spline
	next   int
}

// Next returns the next sample, or false when the sequence is exhausted.
func (it *SplineIterator) Next() (SplinePoint, bool) {
	if it.next >= it.spline.Len() {
		return SplinePoint{}, false
	}
	p := it.spline.At(it.next)
	it.next++
	return p, true
}

// Reset rewinds the iterator to the first sample.
func (it *SplineIterator) Reset() { it.next = 0 }

// ─────────────────────────────────────────────────────────────────────────────
// Vector helpers
// ─────────────────────────────────────────────────────────────────────────────

const epsilon = 1e-9

// orthonormal removes the component of n along tangent and normalizes it.
// When the result degenerates, fallback is tried, then any perpendicular.
func orthonormal(n, tangent, fallback r3.Vec) r3.Vec {
	t := tangent
	if r3.Norm(t) < epsilon {
		if r3.Norm(n) < epsilon {
			return unitOr(fallback, r3.Vec{Z: 1})
		}
		return r3.Unit(n)
	}
	t = r3.Unit(t)
	for _, cand := range [...]r3.Vec{n, fallback} {
		v := r3.Sub(cand, r3.Scale(r3.Dot(cand, t), t))
		if r3.Norm(v) > epsilon {
			return r3.Unit(v)
		}
	}
	return perpendicular(t)
}

// perpendicular returns a unit vector orthogonal to unit vector t.
func perpendicular(t r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	if abs(t.X) > 0.9 {
		axis = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(t, axis))
}

func unitOr(v, fallback r3.Vec) r3.Vec {
	if r3.Norm(v) < epsilon {
		return fallback
	}
	return r3.Unit(v)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
