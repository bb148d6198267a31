package structure

import (
	"fmt"
	"sort"

	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// NoIndex marks an unset alpha atom index.
const NoIndex = -1

// Residue is an ordered container of atoms for one compound unit. Atoms are
// kept sorted ascending by Atom.ID after every insert and remove.
type Residue struct {
	compoundCode   string
	classification stypes.Classification
	atoms          []*Atom
	alphaIndex     int
	headAtom       *Atom
	tailAtom       *Atom
	conformation   stypes.ConformationType

	// non-owning back-references
	fragment *Fragment
	chain    *Chain
	index    int
}

// NewResidue returns an empty residue with the unknown compound code.
func NewResidue() *Residue {
	return &Residue{
		compoundCode:   UnknownCompound,
		classification: stypes.ClassLigand,
		alphaIndex:     NoIndex,
		conformation:   stypes.ConformationUndefined,
		index:          NoIndex,
	}
}

// NewResidueWithCode returns an empty residue with a known compound code.
func NewResidueWithCode(code string) *Residue {
	r := NewResidue()
	r.SetCompoundCode(code)
	return r
}

// Kind returns stypes.KindResidue.
func (r *Residue) Kind() stypes.ComponentKind { return stypes.KindResidue }

// CompoundCode returns the three-letter compound code.
func (r *Residue) CompoundCode() string { return r.compoundCode }

// Classification returns the class derived from the compound code.
func (r *Residue) Classification() stypes.Classification { return r.classification }

// SetCompoundCode assigns the compound code and re-derives the
// classification. Backbone markers are re-resolved against the current atoms.
func (r *Residue) SetCompoundCode(code string) {
	r.compoundCode = normalizeCode(code)
	r.classification = Classify(r.compoundCode)
	r.resolveMarkers()
}

func (r *Residue) resolveMarkers() {
	r.alphaIndex = NoIndex
	r.headAtom = nil
	r.tailAtom = nil
	m, ok := markersFor(r.classification)
	if !ok {
		return
	}
	for i, a := range r.atoms {
		if a.Name == m.alpha && r.alphaIndex == NoIndex {
			r.alphaIndex = i
		}
		if a.Name == m.head {
			r.headAtom = a
		}
		if a.Name == m.tail {
			r.tailAtom = a
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom container
// ─────────────────────────────────────────────────────────────────────────────

// AddAtom inserts atom in ascending id order. Atoms with an id equal to an
// existing one are placed after it. The first atom added sets the compound
// code of the residue.
func (r *Residue) AddAtom(atom *Atom) error {
	if err := atom.Validate(); err != nil {
		return err
	}
	if len(r.atoms) == 0 {
		r.compoundCode = normalizeCode(atom.CompoundCode)
		r.classification = Classify(r.compoundCode)
	}

	pos := sort.Search(len(r.atoms), func(i int) bool {
		return r.atoms[i].ID > atom.ID
	})
	r.atoms = append(r.atoms, nil)
	copy(r.atoms[pos+1:], r.atoms[pos:])
	r.atoms[pos] = atom

	if r.alphaIndex != NoIndex && pos <= r.alphaIndex {
		r.alphaIndex++
	}
	if m, ok := markersFor(r.classification); ok {
		if atom.Name == m.alpha && r.alphaIndex == NoIndex {
			r.alphaIndex = pos
		}
		if atom.Name == m.head {
			r.headAtom = atom
		}
		if atom.Name == m.tail {
			r.tailAtom = atom
		}
	}

	r.atomsChanged()
	return nil
}

// RemoveAtom removes the atom at index. The alpha index keeps pointing at
// the same atom, or is cleared if that atom was removed. Removing the last
// atom resets the residue.
func (r *Residue) RemoveAtom(index int) error {
	if len(r.atoms) == 0 {
		return errors.IndexOutOfRange("residue has no atoms")
	}
	if index < 0 || index >= len(r.atoms) {
		return errors.IndexOutOfRange("atom index out of range").
			WithDetail(fmt.Sprintf("index=%d count=%d", index, len(r.atoms)))
	}

	removed := r.atoms[index]
	copy(r.atoms[index:], r.atoms[index+1:])
	r.atoms[len(r.atoms)-1] = nil
	r.atoms = r.atoms[:len(r.atoms)-1]

	if index == r.alphaIndex {
		r.alphaIndex = NoIndex
	}
	if index < r.alphaIndex {
		r.alphaIndex--
	}
	if r.alphaIndex < 0 {
		r.alphaIndex = NoIndex
	}
	if m, ok := markersFor(r.classification); ok {
		if removed.Name == m.head {
			r.headAtom = nil
		}
		if removed.Name == m.tail {
			r.tailAtom = nil
		}
	}

	if len(r.atoms) == 0 {
		r.reset()
	}
	r.atomsChanged()
	return nil
}

// RemoveAllAtoms empties the residue and resets it to the unknown compound.
// Calling it on an empty residue is a no-op.
func (r *Residue) RemoveAllAtoms() {
	if len(r.atoms) == 0 && r.compoundCode == UnknownCompound {
		return
	}
	r.reset()
	r.atomsChanged()
}

func (r *Residue) reset() {
	r.atoms = nil
	r.compoundCode = UnknownCompound
	r.classification = stypes.ClassLigand
	r.alphaIndex = NoIndex
	r.headAtom = nil
	r.tailAtom = nil
}

// AtomCount returns the number of atoms.
func (r *Residue) AtomCount() int { return len(r.atoms) }

// Atom returns the atom at index.
func (r *Residue) Atom(index int) (*Atom, error) {
	if index < 0 || index >= len(r.atoms) {
		return nil, errors.IndexOutOfRange("atom index out of range").
			WithDetail(fmt.Sprintf("index=%d count=%d", index, len(r.atoms)))
	}
	return r.atoms[index], nil
}

// Atoms returns a copy of the ordered atom sequence.
func (r *Residue) Atoms() []*Atom {
	out := make([]*Atom, len(r.atoms))
	copy(out, r.atoms)
	return out
}

// AtomByName returns the first atom with the given name, or nil.
func (r *Residue) AtomByName(name string) *Atom {
	for _, a := range r.atoms {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Backbone atoms
// ─────────────────────────────────────────────────────────────────────────────

// AlphaAtomIndex returns the alpha atom index or NoIndex.
func (r *Residue) AlphaAtomIndex() int { return r.alphaIndex }

// SetAlphaAtomIndex overrides the alpha atom. index must be NoIndex or a
// valid atom position.
func (r *Residue) SetAlphaAtomIndex(index int) error {
	if index != NoIndex && (index < 0 || index >= len(r.atoms)) {
		return errors.IndexOutOfRange("alpha atom index out of range").
			WithDetail(fmt.Sprintf("index=%d count=%d", index, len(r.atoms)))
	}
	r.alphaIndex = index
	return nil
}

// AlphaAtom returns the representative backbone atom. When no alpha atom has
// been recorded the first atom stands in for it. An empty residue yields nil.
func (r *Residue) AlphaAtom() *Atom {
	if len(r.atoms) == 0 {
		return nil
	}
	if r.alphaIndex < 0 {
		return r.atoms[0]
	}
	if r.alphaIndex >= len(r.atoms) {
		return nil
	}
	return r.atoms[r.alphaIndex]
}

// PolymerHeadAtom returns the atom that links to the previous residue.
func (r *Residue) PolymerHeadAtom() *Atom { return r.headAtom }

// PolymerTailAtom returns the atom that links to the next residue.
func (r *Residue) PolymerTailAtom() *Atom { return r.tailAtom }

// ─────────────────────────────────────────────────────────────────────────────
// Derived properties
// ─────────────────────────────────────────────────────────────────────────────

// Hydrophobicity returns the normalized hydropathy of the compound.
func (r *Residue) Hydrophobicity() float64 { return Hydrophobicity(r.compoundCode) }

// ChainID returns the chain id of the first atom, or "" when empty.
func (r *Residue) ChainID() string {
	if len(r.atoms) == 0 {
		return ""
	}
	return r.atoms[0].ChainID
}

// ResidueID returns the residue id of the first atom, or -1 when empty.
func (r *Residue) ResidueID() int {
	if len(r.atoms) == 0 {
		return -1
	}
	return r.atoms[0].ResidueID
}

// ─────────────────────────────────────────────────────────────────────────────
// Conformation
// ─────────────────────────────────────────────────────────────────────────────

// ConformationType returns the secondary structure assignment.
func (r *Residue) ConformationType() stypes.ConformationType { return r.conformation }

// SetConformationType assigns the secondary structure. When the residue is
// attached to a chain, the chain is re-segmented and a change event is
// recorded on the structure.
func (r *Residue) SetConformationType(t stypes.ConformationType) error {
	if !t.IsValid() {
		return errors.InvalidArgument("unknown conformation type").WithDetail(string(t))
	}
	if t == r.conformation {
		return nil
	}
	from := r.conformation
	r.conformation = t
	if r.chain != nil {
		r.chain.segment()
		r.chain.emit(ConformationChangedEvent{
			Structure:    r.chain.structureID(),
			ChainID:      r.chain.id,
			ResidueIndex: r.index,
			From:         from,
			To:           t,
		})
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Hierarchy
// ─────────────────────────────────────────────────────────────────────────────

// Fragment returns the fragment this residue currently belongs to.
func (r *Residue) Fragment() *Fragment { return r.fragment }

// Chain returns the owning chain, or nil when detached.
func (r *Residue) Chain() *Chain { return r.chain }

// Index returns the position of the residue in its chain, or NoIndex.
func (r *Residue) Index() int { return r.index }

// ComponentID identifies the residue within its structure.
func (r *Residue) ComponentID() ComponentID {
	id := ComponentID{Kind: stypes.KindResidue, Index: r.index}
	if r.chain != nil {
		id.ChainID = r.chain.id
		if r.chain.structure != nil {
			id.Structure = r.chain.structure.id
		}
	}
	return id
}

// Clone returns a detached residue carrying the scalar fields of r. The atom
// sequence is not copied, so the clone has no alpha atom.
func (r *Residue) Clone() *Residue {
	c := NewResidue()
	c.compoundCode = r.compoundCode
	c.classification = r.classification
	c.conformation = r.conformation
	return c
}

func (r *Residue) atomsChanged() {
	if r.chain != nil {
		r.chain.emit(AtomsChangedEvent{Structure: r.chain.structureID(), ChainID: r.chain.id})
	}
}

func (r *Residue) String() string {
	return fmt.Sprintf("%s %s%d (%d atoms)", r.compoundCode, r.ChainID(), r.ResidueID(), len(r.atoms))
}
