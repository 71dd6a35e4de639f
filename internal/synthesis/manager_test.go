package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/llm"
)

type stubClient struct {
	reqs    []llm.Request
	content string
	err     error
}

func (s *stubClient) Execute(ctx context.Context, req llm.Request, onChunk llm.OnChunk) (*llm.Response, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, ProviderID: "gateway"}, nil
}

func newManager(client Client, interval int) *Manager {
	return NewManager(client, Config{
		Interval: interval,
		ModelID:  "anthropic/claude-sonnet-4",
	}, nil, zerolog.Nop())
}

func TestShouldSynthesize(t *testing.T) {
	m := newManager(&stubClient{}, 3)

	tests := []struct {
		count     int
		stageType journey.StageType
		want      bool
	}{
		{1, journey.StageDiscovering, false},
		{2, journey.StageChasing, false},
		{3, journey.StageSolving, true},
		{4, journey.StageChallenging, false},
		{5, journey.StageQuestioning, false},
		{6, journey.StageSearching, true},
		{9, journey.StageImagining, true},
		// a multiple of the interval, but a terminal summary stage
		{24, journey.StageBuilding, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count_%d_%s", tt.count, tt.stageType), func(t *testing.T) {
			assert.Equal(t, tt.want, m.ShouldSynthesize(tt.count, tt.stageType))
		})
	}
}

func TestShouldSynthesize_DisabledInterval(t *testing.T) {
	m := newManager(&stubClient{}, 0)
	assert.False(t, m.ShouldSynthesize(3, journey.StageSolving))
}

func TestSynthesize_Success(t *testing.T) {
	client := &stubClient{content: "SUMMARY: it all connects\nSCORE: 6\nKEY INSIGHTS:\n- one thing"}
	m := newManager(client, 3)

	for i := 1; i <= 3; i++ {
		m.NoteStage(journey.Stage{Seq: i, Type: journey.StageTypeForIndex(i), Output: fmt.Sprintf("output %d", i)})
	}
	m.NoteInsight(journey.Insight{Text: "early insight"})

	report, err := m.Synthesize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "it all connects", report.Summary)
	assert.Equal(t, 6.0, report.Score)
	assert.Equal(t, 1, m.Counter())

	// The dedicated synthesis call is non-streaming and includes the
	// window plus insights.
	require.Len(t, client.reqs, 1)
	assert.False(t, client.reqs[0].Stream)
	assert.Contains(t, client.reqs[0].Prompt, "output 2")
	assert.Contains(t, client.reqs[0].Prompt, "early insight")

	// The synthesis folds into the next context block.
	assert.Contains(t, m.ContextBlock(), "it all connects")
}

func TestSynthesize_ProviderFailure(t *testing.T) {
	client := &stubClient{err: errors.New("503 from everyone")}
	m := newManager(client, 3)
	m.NoteStage(journey.Stage{Seq: 1, Output: "x"})

	_, err := m.Synthesize(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, m.Counter())
}

func TestSynthesize_ParseFailure(t *testing.T) {
	client := &stubClient{content: "no labels here"}
	m := newManager(client, 3)

	_, err := m.Synthesize(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, m.Counter())
}

func TestContextBlock_EmptyUntilContent(t *testing.T) {
	m := newManager(&stubClient{}, 3)
	assert.Empty(t, m.ContextBlock())

	m.NoteStage(journey.Stage{Seq: 1, Type: journey.StageDiscovering, Output: "found a thread"})
	block := m.ContextBlock()
	assert.Contains(t, block, "found a thread")
	assert.True(t, strings.HasSuffix(block, "\n\n"))
}

func TestContextBlock_BoundsRecentWindow(t *testing.T) {
	m := newManager(&stubClient{}, 3)
	for i := 1; i <= 10; i++ {
		m.NoteStage(journey.Stage{Seq: i, Type: journey.StageTypeForIndex(i), Output: fmt.Sprintf("stage output %d", i)})
	}

	block := m.ContextBlock()
	assert.NotContains(t, block, "stage output 1\n")
	assert.Contains(t, block, "stage output 10")
}

func TestNoteStage_TruncatesLongOutput(t *testing.T) {
	m := newManager(&stubClient{}, 3)
	m.NoteStage(journey.Stage{Seq: 1, Type: journey.StageDiscovering, Output: strings.Repeat("a", 2000)})

	require.Len(t, m.stageSummaries, 1)
	assert.Less(t, len(m.stageSummaries[0]), 500)
}

func TestNoteStage_TruncatesOnRuneBoundary(t *testing.T) {
	m := newManager(&stubClient{}, 3)
	m.NoteStage(journey.Stage{Seq: 1, Type: journey.StageDiscovering, Output: strings.Repeat("日本語の出力", 200)})

	require.Len(t, m.stageSummaries, 1)
	assert.True(t, utf8.ValidString(m.stageSummaries[0]))
	assert.True(t, strings.HasSuffix(m.stageSummaries[0], "…"))
}
