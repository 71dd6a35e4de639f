package stage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/expedition-ai/expedition/internal/artifact"
	"github.com/expedition-ai/expedition/internal/event"
	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/llm"
	"github.com/expedition-ai/expedition/internal/metrics"
)

// insightPrefix marks per-stage insight candidate lines in model output.
const insightPrefix = "INSIGHT:"

// Client is the provider surface the executor needs; satisfied by
// llm.FailoverClient.
type Client interface {
	Execute(ctx context.Context, req llm.Request, onChunk llm.OnChunk) (*llm.Response, error)
}

// RunInput carries everything needed to execute one stage.
type RunInput struct {
	JourneyID         string
	Seq               int
	Type              journey.StageType
	Question          string
	ContextBlock      string
	ModelID           string
	MaxTokens         int
	Temperature       float64
	ExtendedReasoning bool
	ReasoningBudget   int
	SaveArtifacts     bool
}

// Executor runs exactly one stage to completion or failure.
type Executor struct {
	client    Client
	templates *TemplateSet
	observer  event.Observer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewExecutor constructs a stage executor. observer and m may be nil.
func NewExecutor(client Client, templates *TemplateSet, observer event.Observer, m *metrics.Metrics, logger zerolog.Logger) *Executor {
	if observer == nil {
		observer = event.Nop{}
	}
	return &Executor{
		client:    client,
		templates: templates,
		observer:  observer,
		metrics:   m,
		logger:    logger.With().Str("component", "stage").Logger(),
	}
}

// Run executes the stage: renders the prompt, calls the provider in
// streaming mode, forwards chunks to the observer, and returns the stage
// marked complete (with artifacts attached) or failed (with the error
// recorded). The stage always carries its assigned sequence number, so a
// failure still occupies its slot in the journey.
func (e *Executor) Run(ctx context.Context, in RunInput) (*journey.Stage, []journey.Insight) {
	st := &journey.Stage{
		ID:        uuid.New().String(),
		JourneyID: in.JourneyID,
		Seq:       in.Seq,
		Type:      in.Type,
		Status:    journey.StageRunning,
		StartedAt: time.Now().UTC(),
	}

	prompt, err := e.templates.Render(in.Type, in.Question, in.ContextBlock, in.Seq)
	if err != nil {
		return e.fail(st, err), nil
	}

	resp, err := e.client.Execute(ctx, llm.Request{
		Prompt:            prompt,
		ModelID:           in.ModelID,
		MaxTokens:         in.MaxTokens,
		Temperature:       in.Temperature,
		ExtendedReasoning: in.ExtendedReasoning,
		ReasoningBudget:   in.ReasoningBudget,
		Stream:            true,
	}, func(c llm.Chunk) {
		e.observer.OnChunk(in.JourneyID, c.Content, c.Reasoning, c.Done)
	})
	if err != nil {
		return e.fail(st, err), nil
	}

	st.Status = journey.StageComplete
	st.Output = resp.Content
	st.ReasoningTrace = resp.ReasoningTrace
	st.CompletedAt = time.Now().UTC()

	if in.SaveArtifacts {
		st.Artifacts = artifact.Extract(resp.Content)
	}
	insights := e.extractInsights(in.JourneyID, resp.Content)

	elapsed := st.CompletedAt.Sub(st.StartedAt)
	e.logger.Info().
		Str("journey_id", in.JourneyID).
		Int("seq", in.Seq).
		Str("type", string(in.Type)).
		Str("provider", resp.ProviderID).
		Int("artifacts", len(st.Artifacts)).
		Int("insights", len(insights)).
		Dur("elapsed", elapsed).
		Msg("stage complete")

	if e.metrics != nil {
		e.metrics.RecordStage(string(in.Type), string(journey.StageComplete), elapsed.Seconds())
		e.metrics.RecordProviderCall(resp.ProviderID, "success")
		e.metrics.RecordTokens(resp.ProviderID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		if len(st.Artifacts) > 0 {
			byType := make(map[string]int)
			for _, a := range st.Artifacts {
				byType[string(a.Type)]++
			}
			e.metrics.RecordArtifacts(byType)
		}
	}

	e.observer.OnStageComplete(*st)
	return st, insights
}

func (e *Executor) fail(st *journey.Stage, err error) *journey.Stage {
	st.Status = journey.StageFailed
	st.Error = err.Error()
	st.CompletedAt = time.Now().UTC()

	e.logger.Error().
		Err(err).
		Str("journey_id", st.JourneyID).
		Int("seq", st.Seq).
		Str("type", string(st.Type)).
		Msg("stage failed")

	if e.metrics != nil {
		e.metrics.RecordStage(string(st.Type), string(journey.StageFailed), st.CompletedAt.Sub(st.StartedAt).Seconds())
	}
	e.observer.OnStageComplete(*st)
	return st
}

// extractInsights pulls INSIGHT: lines out of stage output as per-stage
// insight candidates.
func (e *Executor) extractInsights(journeyID, output string) []journey.Insight {
	var out []journey.Insight
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, insightPrefix) {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(trimmed, insightPrefix))
		if text == "" {
			continue
		}
		out = append(out, journey.Insight{
			ID:        uuid.New().String(),
			JourneyID: journeyID,
			Category:  "Stage",
			Text:      text,
			CreatedAt: time.Now().UTC(),
		})
	}
	return out
}
