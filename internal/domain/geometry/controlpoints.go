package geometry

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/internal/domain/structure"
)

// ControlPoints collects the alpha atoms of the polymer residues in
// residues[start:end] as sweep control points. When bridge is set the alpha
// atoms of the nearest polymer residues on either side are included so that
// adjacent fragments join without gaps.
//
// Normals follow the local curvature, pointing from each atom towards the
// midpoint of its neighbours, with their sign kept consistent along the
// trace. For helices this faces the ribbon away from the axis; for strands
// it follows the pleat so the ribbon lies in the sheet.
func ControlPoints(residues []*structure.Residue, start, end int, bridge bool) []ControlPoint {
	if start < 0 {
		start = 0
	}
	if end > len(residues) {
		end = len(residues)
	}
	var positions []r3.Vec
	if bridge {
		if p, ok := neighbourAlpha(residues, start-1, -1); ok {
			positions = append(positions, p)
		}
	}
	for _, r := range residues[start:end] {
		if p, ok := alphaPosition(r); ok {
			positions = append(positions, p)
		}
	}
	if bridge {
		if p, ok := neighbourAlpha(residues, end, +1); ok {
			positions = append(positions, p)
		}
	}
	return withNormals(positions)
}

func alphaPosition(r *structure.Residue) (r3.Vec, bool) {
	if !r.Classification().IsPolymer() {
		return r3.Vec{}, false
	}
	a := r.AlphaAtom()
	if a == nil {
		return r3.Vec{}, false
	}
	return a.Position, true
}

func neighbourAlpha(residues []*structure.Residue, from, step int) (r3.Vec, bool) {
	for i := from; i >= 0 && i < len(residues); i += step {
		if p, ok := alphaPosition(residues[i]); ok {
			return p, true
		}
	}
	return r3.Vec{}, false
}

func withNormals(positions []r3.Vec) []ControlPoint {
	n := len(positions)
	points := make([]ControlPoint, n)
	for i, p := range positions {
		points[i].Position = p
		if i == 0 || i == n-1 {
			continue
		}
		mid := r3.Scale(0.5, r3.Add(positions[i-1], positions[i+1]))
		guide := r3.Sub(mid, p)
		if r3.Norm(guide) > epsilon {
			points[i].Normal = r3.Unit(guide)
		}
	}

	// Fill gaps from the nearest defined normal and keep signs continuous.
	var prev r3.Vec
	for i := range points {
		nrm := points[i].Normal
		if r3.Norm(nrm) < epsilon {
			nrm = nextNormal(points, i)
			if r3.Norm(nrm) < epsilon {
				nrm = prev
			}
		}
		if r3.Norm(prev) > epsilon && r3.Dot(nrm, prev) < 0 {
			nrm = r3.Scale(-1, nrm)
		}
		if r3.Norm(nrm) < epsilon && n > 1 {
			nrm = perpendicular(unitOr(r3.Sub(positions[n-1], positions[0]), r3.Vec{Z: 1}))
		}
		points[i].Normal = nrm
		prev = nrm
	}
	return points
}

func nextNormal(points []ControlPoint, from int) r3.Vec {
	for j := from + 1; j < len(points); j++ {
		if r3.Norm(points[j].Normal) > epsilon {
			return points[j].Normal
		}
	}
	return r3.Vec{}
}
