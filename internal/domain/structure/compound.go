package structure

import (
	"strings"

	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// UnknownCompound is the compound code of an empty or unidentified residue.
const UnknownCompound = "UNK"

// aminoAcids maps three-letter amino acid codes to one-letter codes.
var aminoAcids = map[string]byte{
	"ALA": 'A', "ARG": 'R', "ASN": 'N', "ASP": 'D', "CYS": 'C',
	"GLN": 'Q', "GLU": 'E', "GLY": 'G', "HIS": 'H', "ILE": 'I',
	"LEU": 'L', "LYS": 'K', "MET": 'M', "PHE": 'F', "PRO": 'P',
	"SER": 'S', "THR": 'T', "TRP": 'W', "TYR": 'Y', "VAL": 'V',
	"SEC": 'U', "PYL": 'O', "MSE": 'M', "ASX": 'B', "GLX": 'Z',
}

// nucleotides maps ribo- and deoxyribonucleotide codes to one-letter codes.
var nucleotides = map[string]byte{
	"A": 'A', "C": 'C', "G": 'G', "U": 'U', "I": 'I', "T": 'T', "N": 'N',
	"DA": 'A', "DC": 'C', "DG": 'G', "DT": 'T', "DU": 'U', "DI": 'I',
	"ADE": 'A', "CYT": 'C', "GUA": 'G', "URA": 'U', "THY": 'T',
}

// kyteDoolittle holds the Kyte-Doolittle hydropathy index per amino acid.
var kyteDoolittle = map[string]float64{
	"ALA": 1.8, "ARG": -4.5, "ASN": -3.5, "ASP": -3.5, "CYS": 2.5,
	"GLN": -3.5, "GLU": -3.5, "GLY": -0.4, "HIS": -3.2, "ILE": 4.5,
	"LEU": 3.8, "LYS": -3.9, "MET": 1.9, "PHE": 2.8, "PRO": -1.6,
	"SER": -0.8, "THR": -0.7, "TRP": -0.9, "TYR": -1.3, "VAL": 4.2,
	"MSE": 1.9,
}

const (
	kdMin = -4.5
	kdMax = 4.5
)

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return UnknownCompound
	}
	return code
}

// Classify derives the classification of a compound code. It is a pure
// function: the same code always yields the same classification.
func Classify(code string) stypes.Classification {
	code = normalizeCode(code)
	if _, ok := aminoAcids[code]; ok {
		return stypes.ClassAminoAcid
	}
	if _, ok := nucleotides[code]; ok {
		return stypes.ClassNucleicAcid
	}
	return stypes.ClassLigand
}

// Hydrophobicity returns the Kyte-Doolittle index of code scaled to [0,1].
// Unknown compounds and non amino acids yield 0.
func Hydrophobicity(code string) float64 {
	kd, ok := kyteDoolittle[normalizeCode(code)]
	if !ok {
		return 0
	}
	return (kd - kdMin) / (kdMax - kdMin)
}

// OneLetterCode returns the one-letter sequence symbol of code, or 'X' when
// the compound is not a polymer unit.
func OneLetterCode(code string) byte {
	code = normalizeCode(code)
	if c, ok := aminoAcids[code]; ok {
		return c
	}
	if c, ok := nucleotides[code]; ok {
		return c
	}
	return 'X'
}

// backboneMarkers names the atoms that define the trace of a polymer residue.
type backboneMarkers struct {
	alpha, head, tail string
}

var markersByClass = map[stypes.Classification]backboneMarkers{
	stypes.ClassAminoAcid:   {alpha: "CA", head: "N", tail: "C"},
	stypes.ClassNucleicAcid: {alpha: "P", head: "P", tail: "O3'"},
}

func markersFor(c stypes.Classification) (backboneMarkers, bool) {
	m, ok := markersByClass[c]
	return m, ok
}
