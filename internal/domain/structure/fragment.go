package structure

import (
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// Fragment is a maximal run of consecutive residues in a chain that share
// one conformation. Fragments are created and discarded by the chain's
// segmentation pass and must not be retained across mutations.
type Fragment struct {
	chain        *Chain
	index        int
	start        int
	residues     []*Residue
	conformation stypes.ConformationType
}

// Kind returns stypes.KindFragment.
func (f *Fragment) Kind() stypes.ComponentKind { return stypes.KindFragment }

// ConformationType returns the shared conformation of the run.
func (f *Fragment) ConformationType() stypes.ConformationType { return f.conformation }

// Chain returns the owning chain.
func (f *Fragment) Chain() *Chain { return f.chain }

// Index returns the position of the fragment within the chain.
func (f *Fragment) Index() int { return f.index }

// StartIndex returns the chain position of the first residue.
func (f *Fragment) StartIndex() int { return f.start }

// EndIndex returns the chain position one past the last residue.
func (f *Fragment) EndIndex() int { return f.start + len(f.residues) }

// ResidueCount returns the number of residues in the run.
func (f *Fragment) ResidueCount() int { return len(f.residues) }

// Residues returns a copy of the residues in chain order.
func (f *Fragment) Residues() []*Residue {
	out := make([]*Residue, len(f.residues))
	copy(out, f.residues)
	return out
}

// Contains reports whether r is a member of this fragment.
func (f *Fragment) Contains(r *Residue) bool {
	return r != nil && r.fragment == f
}

// IsPolymer reports whether any residue in the run is an amino or nucleic
// acid.
func (f *Fragment) IsPolymer() bool {
	for _, r := range f.residues {
		if r.classification.IsPolymer() {
			return true
		}
	}
	return false
}

// ComponentID identifies the fragment by its first residue position.
func (f *Fragment) ComponentID() ComponentID {
	id := f.chain.ComponentID()
	id.Kind = stypes.KindFragment
	id.Index = f.start
	return id
}
