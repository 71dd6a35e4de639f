// Package event defines the progress-event contract between the engine
// and its observers. The engine emits events; observers never feed
// decisions back except through the engine's pause/resume/stop calls.
package event

import "github.com/expedition-ai/expedition/internal/journey"

// Observer receives engine progress notifications. Implementations must
// be fast; the engine calls them synchronously from the stage loop.
type Observer interface {
	// OnChunk delivers an incremental text/reasoning fragment. isComplete
	// marks the final chunk of the stage's stream.
	OnChunk(journeyID string, text, reasoning string, isComplete bool)

	// OnStageComplete fires after a stage reaches a terminal status.
	OnStageComplete(stage journey.Stage)

	// OnSynthesisComplete fires after a synthesis report is folded in.
	OnSynthesisComplete(journeyID string, report journey.SynthesisReport)

	// OnJourneyStatusChange fires on every journey status transition.
	OnJourneyStatusChange(journeyID string, status journey.JourneyStatus)

	// OnError reports a failure. isFatal means the journey is ending.
	OnError(journeyID string, err error, isFatal bool)
}

// Nop is an Observer that discards everything.
type Nop struct{}

func (Nop) OnChunk(string, string, string, bool)                 {}
func (Nop) OnStageComplete(journey.Stage)                        {}
func (Nop) OnSynthesisComplete(string, journey.SynthesisReport)  {}
func (Nop) OnJourneyStatusChange(string, journey.JourneyStatus)  {}
func (Nop) OnError(string, error, bool)                          {}

// Multi fans events out to several observers in registration order.
type Multi struct {
	observers []Observer
}

// NewMulti builds a fan-out observer. Nil entries are skipped.
func NewMulti(observers ...Observer) *Multi {
	m := &Multi{}
	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
	return m
}

func (m *Multi) OnChunk(journeyID, text, reasoning string, isComplete bool) {
	for _, o := range m.observers {
		o.OnChunk(journeyID, text, reasoning, isComplete)
	}
}

func (m *Multi) OnStageComplete(stage journey.Stage) {
	for _, o := range m.observers {
		o.OnStageComplete(stage)
	}
}

func (m *Multi) OnSynthesisComplete(journeyID string, report journey.SynthesisReport) {
	for _, o := range m.observers {
		o.OnSynthesisComplete(journeyID, report)
	}
}

func (m *Multi) OnJourneyStatusChange(journeyID string, status journey.JourneyStatus) {
	for _, o := range m.observers {
		o.OnJourneyStatusChange(journeyID, status)
	}
}

func (m *Multi) OnError(journeyID string, err error, isFatal bool) {
	for _, o := range m.observers {
		o.OnError(journeyID, err, isFatal)
	}
}
