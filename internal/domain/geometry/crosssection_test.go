package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/molscene/pkg/errors"
)

func TestNewProfile_SideCountsFollowQuality(t *testing.T) {
	cases := []struct {
		cs      CrossSectionType
		dims    Dimensions
		quality float64
		sides   int
	}{
		{CrossSectionRoundedTube, CoilDimensions, 1.0, 16},
		{CrossSectionRoundedTube, CoilDimensions, 0.8, 13},
		{CrossSectionRoundedTube, CoilDimensions, 0.1, 6},
		{CrossSectionRegularPolygon, HelixDimensions, 1.0, 8},
		{CrossSectionRegularPolygon, HelixDimensions, 0.8, 6},
		{CrossSectionRegularPolygon, HelixDimensions, 0.1, 3},
		{CrossSectionRectangularRibbon, StrandDimensions, 0.1, 4},
		{CrossSectionRectangularRibbon, StrandDimensions, 1.0, 4},
	}
	for _, tc := range cases {
		p, err := NewProfile(tc.cs, tc.quality, tc.dims)
		require.NoError(t, err)
		assert.Equal(t, tc.sides, p.Sides(), "%s q=%.1f", tc.cs, tc.quality)
		assert.Len(t, p.Normals, len(p.Points))
	}
}

func TestNewProfile_Unsupported(t *testing.T) {
	_, err := NewProfile("hexagonal_star", 1, CoilDimensions)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedConfiguration))
}

func TestNewProfile_InvalidDimensions(t *testing.T) {
	_, err := NewProfile(CrossSectionRoundedTube, 1, Dimensions{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArgument))
	_, err = NewProfile(CrossSectionRectangularRibbon, 1, Dimensions{Width: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArgument))
}

func TestRectangle_FlatNormals(t *testing.T) {
	p, err := NewProfile(CrossSectionRectangularRibbon, 1, Dimensions{Width: 2, Thickness: 0.5})
	require.NoError(t, err)
	require.Len(t, p.Points, 8)
	assert.Len(t, p.Cap, 4)
	for _, seg := range p.Segments {
		assert.Equal(t, p.Normals[seg[0]], p.Normals[seg[1]])
	}
	assert.Equal(t, r2.Vec{X: 1, Y: 0.25}, p.Points[0])
}

func TestEllipse_NormalsPointOutward(t *testing.T) {
	p, err := NewProfile(CrossSectionRegularPolygon, 1, HelixDimensions)
	require.NoError(t, err)
	for i, q := range p.Points {
		assert.Greater(t, r2.Dot(q, p.Normals[i]), 0.0)
		assert.InDelta(t, 1.0, r2.Norm(p.Normals[i]), 1e-12)
	}
}
