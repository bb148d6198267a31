package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification_IsValid(t *testing.T) {
	for _, c := range []Classification{ClassAminoAcid, ClassNucleicAcid, ClassLigand} {
		assert.True(t, c.IsValid())
	}
	assert.False(t, Classification("Protein").IsValid())
}

func TestClassification_IsPolymer(t *testing.T) {
	assert.True(t, ClassAminoAcid.IsPolymer())
	assert.True(t, ClassNucleicAcid.IsPolymer())
	assert.False(t, ClassLigand.IsPolymer())
}

func TestConformationType_IsValid(t *testing.T) {
	for _, c := range AllConformations {
		assert.True(t, c.IsValid())
	}
	assert.False(t, ConformationType("bend").IsValid())
}

func TestParseConformationType(t *testing.T) {
	cases := map[string]ConformationType{
		"helix":  ConformationHelix,
		"H":      ConformationHelix,
		"sheet":  ConformationStrand,
		"E":      ConformationStrand,
		" turn ": ConformationTurn,
		"c":      ConformationCoil,
		"":       ConformationUndefined,
	}
	for in, want := range cases {
		got, err := ParseConformationType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseConformationType("bend")
	assert.Error(t, err)
}

func TestComponentKind_StringRoundTrip(t *testing.T) {
	for _, k := range []ComponentKind{KindAtom, KindBond, KindResidue, KindFragment, KindChain, KindStructure} {
		assert.True(t, k.IsValid())
		parsed, err := ParseComponentKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestComponentKind_Unknown(t *testing.T) {
	var zero ComponentKind
	assert.False(t, zero.IsValid())
	assert.Equal(t, "kind(0)", zero.String())

	_, err := ParseComponentKind("molecule")
	assert.Error(t, err)
}
