// Package journey defines the core domain model for exploration runs:
// journeys, stages, insights, artifacts, and synthesis reports.
package journey

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JourneyStatus is the lifecycle state of a Journey.
type JourneyStatus string

const (
	StatusRunning  JourneyStatus = "running"
	StatusPaused   JourneyStatus = "paused"
	StatusStopped  JourneyStatus = "stopped"
	StatusComplete JourneyStatus = "complete"
	StatusFailed   JourneyStatus = "failed"
)

// StageStatus is the lifecycle state of a single Stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageRunning  StageStatus = "running"
	StageComplete StageStatus = "complete"
	StageFailed   StageStatus = "failed"
)

// StageType identifies one of the eight fixed exploration stage kinds.
type StageType string

const (
	StageDiscovering StageType = "discovering"
	StageChasing     StageType = "chasing"
	StageSolving     StageType = "solving"
	StageChallenging StageType = "challenging"
	StageQuestioning StageType = "questioning"
	StageSearching   StageType = "searching"
	StageImagining   StageType = "imagining"
	StageBuilding    StageType = "building"
)

// stageRotation is the default stage-type sequence. An unbounded journey
// cycles through it indefinitely.
var stageRotation = []StageType{
	StageDiscovering,
	StageChasing,
	StageSolving,
	StageChallenging,
	StageQuestioning,
	StageSearching,
	StageImagining,
	StageBuilding,
}

// StageTypeForIndex returns the stage type for a 1-based sequence number,
// cycling through the fixed rotation.
func StageTypeForIndex(seq int) StageType {
	if seq < 1 {
		seq = 1
	}
	return stageRotation[(seq-1)%len(stageRotation)]
}

// ValidStageType reports whether t is one of the eight fixed types.
func ValidStageType(t StageType) bool {
	for _, s := range stageRotation {
		if s == t {
			return true
		}
	}
	return false
}

// SummaryStagePredicate decides whether a stage type counts as a terminal
// "summary" stage, which is exempt from synthesis triggering. Injected
// rather than hardcoded so deployments can tune it.
type SummaryStagePredicate func(StageType) bool

// DefaultSummaryStage treats the closing stage of the rotation as the
// summary stage.
func DefaultSummaryStage(t StageType) bool {
	return t == StageBuilding
}

// ArtifactType classifies extracted artifacts.
type ArtifactType string

const (
	ArtifactCode          ArtifactType = "code"
	ArtifactDocument      ArtifactType = "document"
	ArtifactVisualization ArtifactType = "visualization"
	ArtifactData          ArtifactType = "data"
)

// Artifact is a structured unit of content pulled out of a stage's raw
// output. Immutable after extraction; owned by exactly one stage.
type Artifact struct {
	ID        string            `json:"id"`
	Type      ArtifactType      `json:"type"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Stage is one step of an exploration. Immutable once complete or failed.
type Stage struct {
	ID             string      `json:"id"`
	JourneyID      string      `json:"journey_id"`
	Seq            int         `json:"seq"` // 1-based, contiguous within a journey
	Type           StageType   `json:"type"`
	Status         StageStatus `json:"status"`
	Output         string      `json:"output,omitempty"`
	ReasoningTrace string      `json:"reasoning_trace,omitempty"`
	Artifacts      []Artifact  `json:"artifacts,omitempty"`
	Error          string      `json:"error,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    time.Time   `json:"completed_at,omitempty"`
}

// Insight is a short derived observation. Append-only; never mutated.
type Insight struct {
	ID        string    `json:"id"`
	JourneyID string    `json:"journey_id"`
	Category  string    `json:"category"`
	Text      string    `json:"text"`
	Score     float64   `json:"score,omitempty"` // 0 to 10, 0 = unscored
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// CategorySynthesis is the insight category used for synthesis reports.
const CategorySynthesis = "Synthesis"

// SynthesisReport is the periodic compression of recent stages and
// insights into five semantic fields.
type SynthesisReport struct {
	Summary        string   `json:"summary"`
	Connections    string   `json:"connections,omitempty"`
	Patterns       string   `json:"patterns,omitempty"`
	Contradictions string   `json:"contradictions,omitempty"`
	ForwardLook    string   `json:"forward_look,omitempty"`
	Score          float64  `json:"score,omitempty"`
	KeyInsights    []string `json:"key_insights,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Insight converts the report into its journey-level insight entry.
func (r *SynthesisReport) Insight(journeyID string, ordinal int) Insight {
	return Insight{
		ID:        uuid.New().String(),
		JourneyID: journeyID,
		Category:  CategorySynthesis,
		Text:      r.Summary,
		Score:     r.Score,
		Ordinal:   ordinal,
		CreatedAt: time.Now().UTC(),
	}
}

// Journey is one user-initiated exploration run.
type Journey struct {
	ID             string        `json:"id"`
	Question       string        `json:"question"`
	MaxDepth       int           `json:"max_depth"` // 0 = unbounded
	Status         JourneyStatus `json:"status"`
	Stages         []Stage       `json:"stages,omitempty"`
	Insights       []Insight     `json:"insights,omitempty"`
	SynthesisCount int           `json:"synthesis_count"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// New creates a running journey for the given question.
func New(question string, maxDepth int) *Journey {
	now := time.Now().UTC()
	return &Journey{
		ID:        uuid.New().String(),
		Question:  question,
		MaxDepth:  maxDepth,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// validTransitions encodes the forward-only status machine. Terminal
// states (complete, stopped, failed) have no outgoing edges.
var validTransitions = map[JourneyStatus][]JourneyStatus{
	StatusRunning: {StatusPaused, StatusStopped, StatusComplete, StatusFailed},
	StatusPaused:  {StatusRunning, StatusStopped},
}

// CanTransition reports whether moving from the journey's current status
// to the target status is allowed.
func (j *Journey) CanTransition(to JourneyStatus) bool {
	for _, next := range validTransitions[j.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the journey to the target status, or errors if the
// status machine forbids it.
func (j *Journey) Transition(to JourneyStatus) error {
	if !j.CanTransition(to) {
		return fmt.Errorf("invalid journey transition: %s -> %s", j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// NextSeq returns the sequence number the next stage must carry.
func (j *Journey) NextSeq() int {
	return len(j.Stages) + 1
}

// AppendStage adds a finished stage, enforcing contiguous 1-based
// sequence numbers. A failed stage still occupies its sequence number.
func (j *Journey) AppendStage(s Stage) error {
	if s.Seq != j.NextSeq() {
		return fmt.Errorf("stage seq %d out of order, expected %d", s.Seq, j.NextSeq())
	}
	j.Stages = append(j.Stages, s)
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendInsight adds an insight, assigning the next ordinal if unset.
func (j *Journey) AppendInsight(in Insight) {
	if in.Ordinal == 0 {
		in.Ordinal = len(j.Insights) + 1
	}
	j.Insights = append(j.Insights, in)
	j.UpdatedAt = time.Now().UTC()
}

// CompletedStages returns the stages that finished successfully, in order.
func (j *Journey) CompletedStages() []Stage {
	out := make([]Stage, 0, len(j.Stages))
	for _, s := range j.Stages {
		if s.Status == StageComplete {
			out = append(out, s)
		}
	}
	return out
}
