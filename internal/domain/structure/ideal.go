package structure

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// IdealTrace describes the alpha carbon placement of one conformation as a
// helical path around the z axis.
type IdealTrace struct {
	Radius float64 // Angstrom
	Rise   float64 // Angstrom per residue along z
	Twist  float64 // degrees per residue
}

// Ideal traces per conformation.
var idealTraces = map[stypes.ConformationType]IdealTrace{
	stypes.ConformationHelix:     {Radius: 2.3, Rise: 1.5, Twist: 100},
	stypes.ConformationStrand:    {Radius: 1.0, Rise: 3.3, Twist: 180},
	stypes.ConformationTurn:      {Radius: 2.0, Rise: 2.5, Twist: 90},
	stypes.ConformationCoil:      {Radius: 1.5, Rise: 3.0, Twist: 60},
	stypes.ConformationUndefined: {Radius: 1.5, Rise: 3.0, Twist: 60},
}

// IdealTraceFor returns the trace used for conformation t.
func IdealTraceFor(t stypes.ConformationType) IdealTrace {
	if tr, ok := idealTraces[t]; ok {
		return tr
	}
	return idealTraces[stypes.ConformationCoil]
}

// NewIdealChain builds a poly-amino-acid chain whose alpha carbons follow
// the ideal trace of each residue's conformation. Each residue gets N, CA
// and C atoms. compound defaults to ALA.
func NewIdealChain(id, compound string, confs []stypes.ConformationType) (*Chain, error) {
	if len(confs) == 0 {
		return nil, errors.InvalidArgument("ideal chain needs at least one residue")
	}
	if compound == "" {
		compound = "ALA"
	}
	c := NewChain(id)
	var z, phase float64
	atomID := 1
	for i, conf := range confs {
		tr := IdealTraceFor(conf)
		rad := phase * math.Pi / 180
		ca := r3.Vec{X: tr.Radius * math.Cos(rad), Y: tr.Radius * math.Sin(rad), Z: z}
		step := r3.Vec{Z: tr.Rise / 3}

		r := NewResidue()
		for _, backbone := range []struct {
			name string
			pos  r3.Vec
		}{
			{"N", r3.Sub(ca, step)},
			{"CA", ca},
			{"C", r3.Add(ca, step)},
		} {
			a, err := NewAtom(atomID, backbone.name, compound, id, i+1, backbone.pos)
			if err != nil {
				return nil, err
			}
			atomID++
			if err := r.AddAtom(a); err != nil {
				return nil, err
			}
		}
		if err := r.SetConformationType(conf); err != nil {
			return nil, err
		}
		if err := c.AddResidue(r); err != nil {
			return nil, err
		}
		z += tr.Rise
		phase += tr.Twist
	}
	return c, nil
}

// RepeatConformation returns n copies of t.
func RepeatConformation(t stypes.ConformationType, n int) []stypes.ConformationType {
	out := make([]stypes.ConformationType, n)
	for i := range out {
		out[i] = t
	}
	return out
}
