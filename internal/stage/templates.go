// Package stage builds stage-type-specific prompts and executes single
// exploration stages against the provider layer.
package stage

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/expedition-ai/expedition/internal/journey"
)

// promptVars is the data interpolated into every stage template.
type promptVars struct {
	Question string
	Context  string
	Seq      int
}

// defaultTemplates holds the built-in prompt per stage type. Each asks
// the model to work the same question from a different angle and to keep
// fenced blocks self-contained so the artifact extractor can lift them.
var defaultTemplates = map[journey.StageType]string{
	journey.StageDiscovering: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (discovering). Survey the territory: identify the key concepts, sub-questions, and unknowns hiding inside this question. Close with 2-3 short insights, each on its own line prefixed with "INSIGHT:".`,

	journey.StageChasing: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (chasing). Pick the most promising thread from the context above and chase it as far as it goes. Show your chain of reasoning. Close with 2-3 short insights prefixed with "INSIGHT:".`,

	journey.StageSolving: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (solving). Attempt a concrete solution or answer. Where code or data would make the answer precise, include it in fenced blocks with language tags. Close with 2-3 short insights prefixed with "INSIGHT:".`,

	journey.StageChallenging: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (challenging). Attack the strongest conclusions reached so far: find counterexamples, hidden assumptions, and failure modes. Close with 2-3 short insights prefixed with "INSIGHT:".`,

	journey.StageQuestioning: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (questioning). Generate the sharpest follow-up questions the exploration has not yet asked, and rank them by how much an answer would change the picture. Close with 2-3 short insights prefixed with "INSIGHT:".`,

	journey.StageSearching: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (searching). Search your knowledge for adjacent fields, prior art, and analogous problems that bear on this question. Close with 2-3 short insights prefixed with "INSIGHT:".`,

	journey.StageImagining: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (imagining). Speculate freely: what would surprising or contrarian answers look like? Sketch at least one scenario in detail, with a diagram in a fenced mermaid block if structure helps. Close with 2-3 short insights prefixed with "INSIGHT:".`,

	journey.StageBuilding: `You are exploring the question: {{.Question}}

{{.Context}}This is exploration stage {{.Seq}} (building). Consolidate everything so far into your best current answer, with supporting artifacts (code, documents, data) in fenced blocks with language tags. Close with 2-3 short insights prefixed with "INSIGHT:".`,
}

// TemplateSet resolves stage types to parsed prompt templates.
type TemplateSet struct {
	templates map[journey.StageType]*template.Template
}

// NewTemplateSet parses the built-in templates.
func NewTemplateSet() (*TemplateSet, error) {
	return newTemplateSet(defaultTemplates)
}

// LoadTemplateSet parses the built-in templates, then applies overrides
// from a YAML file mapping stage type to template text. Unknown stage
// types in the file are rejected.
func LoadTemplateSet(path string) (*TemplateSet, error) {
	merged := make(map[journey.StageType]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		merged[k] = v
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse template file: %w", err)
	}
	for name, text := range overrides {
		st := journey.StageType(name)
		if !journey.ValidStageType(st) {
			return nil, fmt.Errorf("template file: unknown stage type %q", name)
		}
		merged[st] = text
	}
	return newTemplateSet(merged)
}

func newTemplateSet(src map[journey.StageType]string) (*TemplateSet, error) {
	ts := &TemplateSet{templates: make(map[journey.StageType]*template.Template, len(src))}
	for st, text := range src {
		tpl, err := template.New(string(st)).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", st, err)
		}
		ts.templates[st] = tpl
	}
	return ts, nil
}

// Render produces the stage prompt. contextBlock is the rolling context
// rendered by the synthesis manager; it is already terminated with a
// blank line, or empty for the first stage.
func (ts *TemplateSet) Render(st journey.StageType, question, contextBlock string, seq int) (string, error) {
	tpl, ok := ts.templates[st]
	if !ok {
		return "", fmt.Errorf("no template for stage type %q", st)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, promptVars{Question: question, Context: contextBlock, Seq: seq}); err != nil {
		return "", fmt.Errorf("render %s template: %w", st, err)
	}
	return buf.String(), nil
}
