package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/expedition-ai/expedition/internal/journey"
)

// recorder captures event names in arrival order.
type recorder struct {
	events []string
}

func (r *recorder) OnChunk(_, _, _ string, _ bool)                      { r.events = append(r.events, "chunk") }
func (r *recorder) OnStageComplete(journey.Stage)                       { r.events = append(r.events, "stage") }
func (r *recorder) OnSynthesisComplete(string, journey.SynthesisReport) { r.events = append(r.events, "synthesis") }
func (r *recorder) OnJourneyStatusChange(string, journey.JourneyStatus) { r.events = append(r.events, "status") }
func (r *recorder) OnError(string, error, bool)                         { r.events = append(r.events, "error") }

func TestMulti_FansOutInOrder(t *testing.T) {
	a := &recorder{}
	b := &recorder{}
	m := NewMulti(a, nil, b)

	m.OnChunk("j", "text", "", false)
	m.OnStageComplete(journey.Stage{})
	m.OnSynthesisComplete("j", journey.SynthesisReport{})
	m.OnJourneyStatusChange("j", journey.StatusPaused)
	m.OnError("j", errors.New("boom"), true)

	want := []string{"chunk", "stage", "synthesis", "status", "error"}
	assert.Equal(t, want, a.events)
	assert.Equal(t, want, b.events)
}

func TestNop_Implements(t *testing.T) {
	var _ Observer = Nop{}
	var _ Observer = &Multi{}
}
