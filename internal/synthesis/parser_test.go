package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedReport = `Here is the synthesis you asked for.

SUMMARY: The exploration has converged on thermal limits
as the dominant constraint.
CONNECTIONS: Stages 2 and 3 both point at materials science.
PATTERNS: Every thread bottoms out in manufacturing cost.
CONTRADICTIONS: Stage 1 assumed scale helps; stage 3 found the opposite.
FORWARD: Examine solid-state chemistries next.
SCORE: 7.5/10
KEY INSIGHTS:
- thermal limits dominate
- cost curves are non-linear
`

func TestParseReport_AllFields(t *testing.T) {
	r, err := ParseReport(wellFormedReport)
	require.NoError(t, err)

	assert.Equal(t, "The exploration has converged on thermal limits as the dominant constraint.", r.Summary)
	assert.Contains(t, r.Connections, "materials science")
	assert.Contains(t, r.Patterns, "manufacturing cost")
	assert.Contains(t, r.Contradictions, "opposite")
	assert.Contains(t, r.ForwardLook, "solid-state")
	assert.Equal(t, 7.5, r.Score)
	assert.Equal(t, []string{"thermal limits dominate", "cost curves are non-linear"}, r.KeyInsights)
}

func TestParseReport_MissingOptionalFieldsTolerated(t *testing.T) {
	r, err := ParseReport("SUMMARY: just a summary, nothing else")
	require.NoError(t, err)
	assert.Equal(t, "just a summary, nothing else", r.Summary)
	assert.Empty(t, r.Connections)
	assert.Zero(t, r.Score)
	assert.Empty(t, r.KeyInsights)
}

func TestParseReport_MissingSummaryFails(t *testing.T) {
	_, err := ParseReport("CONNECTIONS: a and b relate\nPATTERNS: none")
	assert.Error(t, err)

	_, err = ParseReport("free-form rambling with no labels at all")
	assert.Error(t, err)
}

func TestParseReport_ForwardLookAlias(t *testing.T) {
	r, err := ParseReport("SUMMARY: s\nFORWARD-LOOK: try the other branch")
	require.NoError(t, err)
	assert.Equal(t, "try the other branch", r.ForwardLook)
}

func TestParseReport_ScoreVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"SCORE: 8", 8},
		{"SCORE: 6.5", 6.5},
		{"SCORE: 9/10", 9},
		{"SCORE: 7 out of 10", 7},
		{"SCORE: excellent", 0}, // unparseable score tolerated as unscored
		{"SCORE: 42", 0},        // out of range
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r, err := ParseReport("SUMMARY: s\n" + tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Score)
		})
	}
}

func TestParseReport_StarBullets(t *testing.T) {
	r, err := ParseReport("SUMMARY: s\nKEY INSIGHTS:\n* first\n* second")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, r.KeyInsights)
}
