package stage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expedition-ai/expedition/internal/journey"
)

var allStageTypes = []journey.StageType{
	journey.StageDiscovering,
	journey.StageChasing,
	journey.StageSolving,
	journey.StageChallenging,
	journey.StageQuestioning,
	journey.StageSearching,
	journey.StageImagining,
	journey.StageBuilding,
}

func TestDefaultTemplatesCoverAllStageTypes(t *testing.T) {
	ts, err := NewTemplateSet()
	require.NoError(t, err)

	for _, st := range allStageTypes {
		prompt, err := ts.Render(st, "why is the sky blue", "", 3)
		require.NoError(t, err, "stage type %s", st)
		assert.Contains(t, prompt, "why is the sky blue")
		assert.Contains(t, prompt, "stage 3")
		assert.Contains(t, prompt, string(st))
		assert.Contains(t, prompt, "INSIGHT:")
	}
}

func TestRenderInterpolatesContext(t *testing.T) {
	ts, err := NewTemplateSet()
	require.NoError(t, err)

	contextBlock := "Context from the exploration so far:\n- [1/discovering] found a thread\n\n"
	prompt, err := ts.Render(journey.StageChasing, "q", contextBlock, 2)
	require.NoError(t, err)
	assert.Contains(t, prompt, "found a thread")

	// First stage renders cleanly with no context at all.
	prompt, err = ts.Render(journey.StageDiscovering, "q", "", 1)
	require.NoError(t, err)
	assert.NotContains(t, prompt, "Context from the exploration so far")
}

func TestRenderUnknownType(t *testing.T) {
	ts, err := NewTemplateSet()
	require.NoError(t, err)

	_, err = ts.Render(journey.StageType("meditating"), "q", "", 1)
	require.Error(t, err)
}

func writeTemplateFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTemplateSetOverrides(t *testing.T) {
	path := writeTemplateFile(t, `
solving: "Custom solving prompt for {{.Question}} at stage {{.Seq}}"
`)
	ts, err := LoadTemplateSet(path)
	require.NoError(t, err)

	prompt, err := ts.Render(journey.StageSolving, "q", "", 5)
	require.NoError(t, err)
	assert.Equal(t, "Custom solving prompt for q at stage 5", prompt)

	// Non-overridden types keep the defaults.
	prompt, err = ts.Render(journey.StageDiscovering, "q", "", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "You are exploring the question"))
}

func TestLoadTemplateSetRejectsUnknownType(t *testing.T) {
	path := writeTemplateFile(t, `
daydreaming: "not a real stage"
`)
	_, err := LoadTemplateSet(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage type")
}

func TestLoadTemplateSetBadYAML(t *testing.T) {
	path := writeTemplateFile(t, "solving: [unterminated")
	_, err := LoadTemplateSet(path)
	require.Error(t, err)
}

func TestLoadTemplateSetMissingFile(t *testing.T) {
	_, err := LoadTemplateSet(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
