// Package structure defines the plain enumerations shared by the molecular
// structure model, the geometry pipeline and the CLI. No domain logic lives
// here, only value types that are safe to import from any layer.
package structure

import (
	"fmt"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Classification is the compound family of a residue.
// ─────────────────────────────────────────────────────────────────────────────

// Classification is the compound family a residue belongs to. It is always
// derived from the residue's compound code and never assigned directly.
type Classification string

const (
	// ClassAminoAcid covers the standard and common modified amino acids.
	ClassAminoAcid Classification = "Amino Acid"

	// ClassNucleicAcid covers ribo- and deoxyribonucleotides.
	ClassNucleicAcid Classification = "Nucleic Acid"

	// ClassLigand is everything else, including unknown compounds.
	ClassLigand Classification = "Ligand"
)

// IsValid reports whether c is one of the known classifications.
func (c Classification) IsValid() bool {
	switch c {
	case ClassAminoAcid, ClassNucleicAcid, ClassLigand:
		return true
	}
	return false
}

// IsPolymer reports whether residues of this class take part in a backbone.
func (c Classification) IsPolymer() bool {
	return c == ClassAminoAcid || c == ClassNucleicAcid
}

// ─────────────────────────────────────────────────────────────────────────────
// ConformationType is a secondary structure assignment.
// ─────────────────────────────────────────────────────────────────────────────

// ConformationType is the secondary-structure assignment of a residue.
type ConformationType string

const (
	ConformationUndefined ConformationType = "undefined"
	ConformationHelix     ConformationType = "helix"
	ConformationStrand    ConformationType = "strand"
	ConformationTurn      ConformationType = "turn"
	ConformationCoil      ConformationType = "coil"
)

// AllConformations lists the assignable conformations in display order.
var AllConformations = []ConformationType{
	ConformationUndefined,
	ConformationHelix,
	ConformationStrand,
	ConformationTurn,
	ConformationCoil,
}

// IsValid reports whether t is a known conformation.
func (t ConformationType) IsValid() bool {
	switch t {
	case ConformationUndefined, ConformationHelix, ConformationStrand, ConformationTurn, ConformationCoil:
		return true
	}
	return false
}

// ParseConformationType accepts the canonical names plus the single-letter
// DSSP-style abbreviations H, E, T and C.
func ParseConformationType(s string) (ConformationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "undefined", "-":
		return ConformationUndefined, nil
	case "helix", "h":
		return ConformationHelix, nil
	case "strand", "sheet", "e":
		return ConformationStrand, nil
	case "turn", "t":
		return ConformationTurn, nil
	case "coil", "c":
		return ConformationCoil, nil
	}
	return "", fmt.Errorf("unknown conformation type %q", s)
}

// ─────────────────────────────────────────────────────────────────────────────
// ComponentKind is the closed set of structural component kinds.
// ─────────────────────────────────────────────────────────────────────────────

// ComponentKind tags every node of the structure hierarchy. Dispatch on kind
// uses a switch over these values.
type ComponentKind uint8

const (
	KindAtom ComponentKind = iota + 1
	KindBond
	KindResidue
	KindFragment
	KindChain
	KindStructure
)

var componentKindNames = map[ComponentKind]string{
	KindAtom:      "atom",
	KindBond:      "bond",
	KindResidue:   "residue",
	KindFragment:  "fragment",
	KindChain:     "chain",
	KindStructure: "structure",
}

// String returns the lower-case kind name.
func (k ComponentKind) String() string {
	if name, ok := componentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsValid reports whether k is a member of the closed set.
func (k ComponentKind) IsValid() bool {
	_, ok := componentKindNames[k]
	return ok
}

// ParseComponentKind is the inverse of String.
func ParseComponentKind(s string) (ComponentKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range componentKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown component kind %q", s)
}
