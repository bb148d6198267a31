// Package structure implements the hierarchical molecular structure model:
// atoms grouped into residues, residues segmented into fragments by
// secondary structure, residues owned by chains, and chains owned by a
// Structure together with its style overlay.
//
// Child to parent links (Residue to Fragment, Residue to Chain, Chain to
// Structure) are plain non-owning pointers. Parents own their children and
// always outlive them. Mutation of attached components must happen inside
// Structure.Update; geometry readers use Structure.View.
package structure

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// Atom is a single point datum. An attached atom is treated as immutable;
// replacing one means removing it from its residue and adding a new value.
type Atom struct {
	ID           int
	Name         string
	CompoundCode string
	ChainID      string
	ResidueID    int
	Position     r3.Vec
}

// NewAtom constructs and validates an atom.
func NewAtom(id int, name, compoundCode, chainID string, residueID int, pos r3.Vec) (*Atom, error) {
	a := &Atom{
		ID:           id,
		Name:         strings.TrimSpace(name),
		CompoundCode: normalizeCode(compoundCode),
		ChainID:      chainID,
		ResidueID:    residueID,
		Position:     pos,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the required fields of an atom.
func (a *Atom) Validate() error {
	if a == nil {
		return errors.InvalidArgument("atom must not be nil")
	}
	if a.Name == "" {
		return errors.InvalidArgument("atom name must not be empty").
			WithDetail(fmt.Sprintf("atom_id=%d", a.ID))
	}
	if !finite(a.Position) {
		return errors.InvalidArgument("atom position must be finite").
			WithDetail(fmt.Sprintf("atom_id=%d", a.ID))
	}
	return nil
}

// Kind returns stypes.KindAtom.
func (a *Atom) Kind() stypes.ComponentKind { return stypes.KindAtom }

func (a *Atom) String() string {
	return fmt.Sprintf("%s %s %s%d #%d", a.Name, a.CompoundCode, a.ChainID, a.ResidueID, a.ID)
}

func finite(v r3.Vec) bool {
	for _, f := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
