package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/llm"
)

// scriptedClient returns canned responses and records requests.
type scriptedClient struct {
	reqs    []llm.Request
	content string
	err     error
}

func (s *scriptedClient) Execute(ctx context.Context, req llm.Request, onChunk llm.OnChunk) (*llm.Response, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	if onChunk != nil {
		half := len(s.content) / 2
		onChunk(llm.Chunk{Content: s.content[:half]})
		onChunk(llm.Chunk{Content: s.content[half:]})
		onChunk(llm.Chunk{Done: true})
	}
	return &llm.Response{Content: s.content, ProviderID: "gateway", ModelID: req.ModelID}, nil
}

// chunkRecorder records OnChunk calls; other events are counted.
type chunkRecorder struct {
	chunks    []string
	completes int
	stages    []journey.Stage
}

func (c *chunkRecorder) OnChunk(_ string, text, _ string, isComplete bool) {
	if isComplete {
		c.completes++
		return
	}
	c.chunks = append(c.chunks, text)
}
func (c *chunkRecorder) OnStageComplete(s journey.Stage) { c.stages = append(c.stages, s) }
func (c *chunkRecorder) OnSynthesisComplete(string, journey.SynthesisReport) {}
func (c *chunkRecorder) OnJourneyStatusChange(string, journey.JourneyStatus) {}
func (c *chunkRecorder) OnError(string, error, bool)                         {}

func testExecutor(t *testing.T, client Client, obs *chunkRecorder) *Executor {
	ts, err := NewTemplateSet()
	require.NoError(t, err)
	return NewExecutor(client, ts, obs, nil, zerolog.Nop())
}

func baseInput() RunInput {
	return RunInput{
		JourneyID:     "j1",
		Seq:           1,
		Type:          journey.StageDiscovering,
		Question:      "what limits battery density?",
		ModelID:       "anthropic/claude-sonnet-4",
		MaxTokens:     1024,
		SaveArtifacts: true,
	}
}

func TestRun_Success(t *testing.T) {
	output := "Chemistry bounds it.\n\n```python\nprint('energy density by chemistry table here')\n```\n\nINSIGHT: anode materials dominate\nINSIGHT: packaging is second order\n"
	client := &scriptedClient{content: output}
	obs := &chunkRecorder{}

	st, insights := testExecutor(t, client, obs).Run(context.Background(), baseInput())

	assert.Equal(t, journey.StageComplete, st.Status)
	assert.Equal(t, 1, st.Seq)
	assert.Equal(t, output, st.Output)
	require.Len(t, st.Artifacts, 1)
	assert.Equal(t, journey.ArtifactCode, st.Artifacts[0].Type)

	require.Len(t, insights, 2)
	assert.Equal(t, "anode materials dominate", insights[0].Text)
	assert.Equal(t, "Stage", insights[0].Category)

	// Streaming chunks arrived before completion, then one final marker,
	// then the stage-complete event.
	assert.Equal(t, output, strings.Join(obs.chunks, ""))
	assert.Equal(t, 1, obs.completes)
	require.Len(t, obs.stages, 1)
	assert.Equal(t, journey.StageComplete, obs.stages[0].Status)
}

func TestRun_PromptIncludesContextAndQuestion(t *testing.T) {
	client := &scriptedClient{content: "fine"}
	in := baseInput()
	in.ContextBlock = "Context so far:\n- prior summary line\n\n"

	testExecutor(t, client, &chunkRecorder{}).Run(context.Background(), in)

	require.Len(t, client.reqs, 1)
	prompt := client.reqs[0].Prompt
	assert.Contains(t, prompt, in.Question)
	assert.Contains(t, prompt, "prior summary line")
	assert.Contains(t, prompt, "discovering")
	assert.True(t, client.reqs[0].Stream)
}

func TestRun_StageTypeSelectsTemplate(t *testing.T) {
	client := &scriptedClient{content: "fine"}
	in := baseInput()
	in.Type = journey.StageChallenging
	in.Seq = 4

	testExecutor(t, client, &chunkRecorder{}).Run(context.Background(), in)
	assert.Contains(t, client.reqs[0].Prompt, "challenging")
}

func TestRun_FailureMarksStageFailed(t *testing.T) {
	client := &scriptedClient{err: errors.New("provider exhausted")}
	obs := &chunkRecorder{}

	st, insights := testExecutor(t, client, obs).Run(context.Background(), baseInput())

	assert.Equal(t, journey.StageFailed, st.Status)
	assert.Equal(t, 1, st.Seq) // failed stage still occupies its slot
	assert.Contains(t, st.Error, "provider exhausted")
	assert.Nil(t, insights)
	require.Len(t, obs.stages, 1)
	assert.Equal(t, journey.StageFailed, obs.stages[0].Status)
}

func TestRun_ArtifactsSkippedWhenDisabled(t *testing.T) {
	client := &scriptedClient{content: "```go\nfunc main() { println(42) }\n```"}
	in := baseInput()
	in.SaveArtifacts = false

	st, _ := testExecutor(t, client, &chunkRecorder{}).Run(context.Background(), in)
	assert.Empty(t, st.Artifacts)
}
