package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRibbonJSON(t *testing.T, args ...string) RibbonReport {
	t.Helper()
	out, _, err := executeCommand(t, append([]string{"ribbon", "-o", "json"}, args...)...)
	require.NoError(t, err)
	var report RibbonReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func TestRibbon_PatternFragments(t *testing.T) {
	report := runRibbonJSON(t, "--pattern", "CCCHHHHHHHHEEEEECCC")

	assert.Equal(t, "traditional", report.Form)
	assert.True(t, report.Smoothing)
	assert.Equal(t, 1.0, report.Quality)
	require.Len(t, report.Chains, 1)

	chain := report.Chains[0]
	assert.Equal(t, "A", chain.Chain)
	assert.Equal(t, 19, chain.Residues)
	assert.Equal(t, "built", chain.Status)
	require.Len(t, chain.Fragments, 4)

	want := []string{"coil", "helix", "strand", "coil"}
	for i, f := range chain.Fragments {
		assert.Equal(t, want[i], f.Conformation)
		assert.Positive(t, f.Vertices)
		assert.Positive(t, f.Triangles)
	}
	assert.Equal(t, "regular_polygon", chain.Fragments[1].CrossSection)
	assert.Equal(t, "ribbon", chain.Fragments[1].Shape)
	assert.Equal(t, "rectangular_ribbon", chain.Fragments[2].CrossSection)
}

func TestRibbon_CylindricalForm(t *testing.T) {
	report := runRibbonJSON(t, "--conformation", "helix", "--residues", "10", "--form", "cylindrical")

	assert.Equal(t, "cylindrical_helices", report.Form)
	require.Len(t, report.Chains, 1)
	require.Len(t, report.Chains[0].Fragments, 1)
	assert.Equal(t, "cylinder", report.Chains[0].Fragments[0].Shape)
}

func TestRibbon_MultipleChainsAndPasses(t *testing.T) {
	report := runRibbonJSON(t, "--pattern", "CCHHHHHHCC", "--chains", "3", "--passes", "2")

	require.Len(t, report.Chains, 3)
	assert.Equal(t, []string{"A", "B", "C"},
		[]string{report.Chains[0].Chain, report.Chains[1].Chain, report.Chains[2].Chain})
	assert.Equal(t, 3, report.CacheEntries)
}

func TestRibbon_LowerQualityHasFewerVertices(t *testing.T) {
	high := runRibbonJSON(t, "--conformation", "coil", "--residues", "8")
	low := runRibbonJSON(t, "--conformation", "coil", "--residues", "8", "--quality", "0.2")

	assert.Equal(t, 0.2, low.Quality)
	assert.Less(t, low.Chains[0].Vertices, high.Chains[0].Vertices)
}

func TestRibbon_SingleResidueFails(t *testing.T) {
	out, _, err := executeCommand(t, "ribbon", "--conformation", "helix", "--residues", "1", "-o", "json")
	require.Error(t, err)

	var report RibbonReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Chains, 1)
	assert.Equal(t, "failed", report.Chains[0].Status)
	assert.NotEmpty(t, report.Chains[0].Reason)
	assert.Equal(t, 1, report.Failed())
}

func TestRibbon_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad pattern letter", []string{"--pattern", "CCXCC"}},
		{"blank pattern", []string{"--pattern", "   "}},
		{"unknown conformation", []string{"--conformation", "bend"}},
		{"zero residues", []string{"--residues", "0"}},
		{"too many chains", []string{"--chains", "27"}},
		{"zero passes", []string{"--passes", "0"}},
		{"unknown form", []string{"--form", "spaghetti"}},
		{"quality out of range", []string{"--quality", "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, append([]string{"ribbon"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestRibbon_TextAndTableOutput(t *testing.T) {
	out, _, err := executeCommand(t, "ribbon", "--pattern", "CCCHHHHHHHHCCC", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "form: traditional")
	assert.Contains(t, out, "chain A (14 residues): built")
	assert.Contains(t, out, "regular_polygon")

	out, _, err = executeCommand(t, "ribbon", "--pattern", "CCCHHHHHHHHCCC", "-o", "table", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Cross Section")
	assert.Contains(t, out, "helix")
}

func TestRibbon_Metrics(t *testing.T) {
	out, _, err := executeCommand(t, "ribbon", "--pattern", "CCHHHHHHCC", "--metrics", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, `molscene_geometry_builds_total{form="traditional",status="built"} 1`)
}

func TestRibbonReport_TableRowsForUnbuiltChain(t *testing.T) {
	r := &RibbonReport{Chains: []ChainReport{{Chain: "A", Status: "failed"}}}
	rows := r.TableRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0][len(rows[0])-1])
	assert.Len(t, rows[0], len(r.TableHeaders()))
}
