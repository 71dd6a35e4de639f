// Package synthesis maintains the rolling prompt context for a journey
// and periodically compresses recent stages into synthesis reports so
// unbounded stage counts don't blow the prompt budget.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/llm"
	"github.com/expedition-ai/expedition/internal/metrics"
)

const (
	// stageSummaryLen bounds how much of each stage's output is carried
	// in the rolling context.
	stageSummaryLen = 400

	// recentStagesInContext and recentInsightsInContext bound the context
	// block fed into each new stage prompt.
	recentStagesInContext   = 3
	recentInsightsInContext = 5
)

// Client is the provider surface the manager needs; satisfied by
// llm.FailoverClient.
type Client interface {
	Execute(ctx context.Context, req llm.Request, onChunk llm.OnChunk) (*llm.Response, error)
}

// Config tunes synthesis behavior.
type Config struct {
	Interval     int // synthesize every N stages
	ModelID      string
	MaxTokens    int
	SummaryStage journey.SummaryStagePredicate
}

// Manager holds one journey's rolling context. It is owned by a single
// engine loop and is not safe for concurrent use.
type Manager struct {
	client  Client
	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger

	stageSummaries []string
	insights       []journey.Insight
	synthCount     int
	lastSynthesis  string
}

// NewManager constructs a synthesis manager for one journey.
func NewManager(client Client, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	if cfg.SummaryStage == nil {
		cfg.SummaryStage = journey.DefaultSummaryStage
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Manager{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("component", "synthesis").Logger(),
	}
}

// NoteStage folds a completed stage into the rolling context. The
// summary is cut on a rune boundary so multi-byte output never leaves
// invalid UTF-8 in later prompts.
func (m *Manager) NoteStage(st journey.Stage) {
	summary := strings.TrimSpace(st.Output)
	if r := []rune(summary); len(r) > stageSummaryLen {
		summary = string(r[:stageSummaryLen]) + "…"
	}
	m.stageSummaries = append(m.stageSummaries, fmt.Sprintf("[%d/%s] %s", st.Seq, st.Type, summary))
}

// NoteInsight folds an insight into the rolling context.
func (m *Manager) NoteInsight(in journey.Insight) {
	m.insights = append(m.insights, in)
}

// Counter returns the number of syntheses produced so far.
func (m *Manager) Counter() int { return m.synthCount }

// ShouldSynthesize reports whether a synthesis is due after the stage
// with the given count and type completed: true exactly when stageCount
// is a positive multiple of the interval and the stage is not a terminal
// summary stage.
func (m *Manager) ShouldSynthesize(stageCount int, stageType journey.StageType) bool {
	interval := m.cfg.Interval
	if interval <= 0 || stageCount < interval {
		return false
	}
	if stageCount%interval != 0 {
		return false
	}
	return !m.cfg.SummaryStage(stageType)
}

// Synthesize compresses the last interval's stages plus accumulated
// insights into a synthesis report via one dedicated provider call. On
// success the report is folded into future context and the counter
// incremented. Callers must treat failure as best-effort: log and move on.
func (m *Manager) Synthesize(ctx context.Context) (*journey.SynthesisReport, error) {
	window := m.stageSummaries
	if len(window) > m.cfg.Interval {
		window = window[len(window)-m.cfg.Interval:]
	}

	resp, err := m.client.Execute(ctx, llm.Request{
		Prompt:    m.buildPrompt(window),
		ModelID:   m.cfg.ModelID,
		MaxTokens: m.cfg.MaxTokens,
	}, nil)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordSynthesis("error")
		}
		return nil, fmt.Errorf("synthesis call: %w", err)
	}

	report, err := ParseReport(resp.Content)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordSynthesis("parse_error")
		}
		return nil, fmt.Errorf("synthesis parse: %w", err)
	}
	report.CreatedAt = time.Now().UTC()

	m.synthCount++
	m.lastSynthesis = report.Summary
	if m.metrics != nil {
		m.metrics.RecordSynthesis("success")
	}
	m.logger.Info().
		Int("counter", m.synthCount).
		Float64("score", report.Score).
		Int("key_insights", len(report.KeyInsights)).
		Msg("synthesis complete")
	return report, nil
}

func (m *Manager) buildPrompt(window []string) string {
	var b strings.Builder
	b.WriteString("You are compressing an ongoing exploration into a synthesis report.\n\n")
	b.WriteString("Recent stages:\n")
	for _, s := range window {
		b.WriteString("- " + s + "\n")
	}
	if len(m.insights) > 0 {
		b.WriteString("\nAccumulated insights:\n")
		for _, in := range m.insights {
			b.WriteString("- " + in.Text + "\n")
		}
	}
	b.WriteString(`
Respond with exactly these labeled sections:
SUMMARY: <condensed account of where the exploration stands>
CONNECTIONS: <links between threads>
PATTERNS: <recurring structures>
CONTRADICTIONS: <tensions or conflicts found>
FORWARD: <where the exploration should go next>
SCORE: <quality of the exploration so far, 0-10>
KEY INSIGHTS:
- <one insight per line>
`)
	return b.String()
}

// ContextBlock renders the rolling context for the next stage prompt.
// Returns "" when nothing has accumulated yet; otherwise the block ends
// with a blank line so templates can interpolate it directly.
func (m *Manager) ContextBlock() string {
	if len(m.stageSummaries) == 0 && len(m.insights) == 0 && m.lastSynthesis == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("Context from the exploration so far:\n")

	if m.lastSynthesis != "" {
		b.WriteString("Latest synthesis: " + m.lastSynthesis + "\n")
	}

	stages := m.stageSummaries
	if len(stages) > recentStagesInContext {
		stages = stages[len(stages)-recentStagesInContext:]
	}
	for _, s := range stages {
		b.WriteString("- " + s + "\n")
	}

	insights := m.insights
	if len(insights) > recentInsightsInContext {
		insights = insights[len(insights)-recentInsightsInContext:]
	}
	if len(insights) > 0 {
		b.WriteString("Insights:\n")
		for _, in := range insights {
			b.WriteString("- " + in.Text + "\n")
		}
	}

	b.WriteString("\n")
	return b.String()
}
