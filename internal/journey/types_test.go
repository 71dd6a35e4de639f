package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTypeForIndex_CyclesRotation(t *testing.T) {
	assert.Equal(t, StageDiscovering, StageTypeForIndex(1))
	assert.Equal(t, StageChasing, StageTypeForIndex(2))
	assert.Equal(t, StageBuilding, StageTypeForIndex(8))
	assert.Equal(t, StageDiscovering, StageTypeForIndex(9))
	assert.Equal(t, StageSolving, StageTypeForIndex(11))
}

func TestTransition_ForwardOnly(t *testing.T) {
	tests := []struct {
		name string
		from JourneyStatus
		to   JourneyStatus
		ok   bool
	}{
		{"running to paused", StatusRunning, StatusPaused, true},
		{"running to complete", StatusRunning, StatusComplete, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"running to stopped", StatusRunning, StatusStopped, true},
		{"paused to running", StatusPaused, StatusRunning, true},
		{"paused to stopped", StatusPaused, StatusStopped, true},
		{"paused to complete", StatusPaused, StatusComplete, false},
		{"complete is terminal", StatusComplete, StatusRunning, false},
		{"stopped is terminal", StatusStopped, StatusRunning, false},
		{"failed is terminal", StatusFailed, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New("q", 0)
			j.Status = tt.from
			err := j.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, j.Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.from, j.Status)
			}
		})
	}
}

func TestAppendStage_EnforcesContiguousSeq(t *testing.T) {
	j := New("why is the sky blue", 0)

	require.NoError(t, j.AppendStage(Stage{Seq: 1, Status: StageComplete}))
	require.NoError(t, j.AppendStage(Stage{Seq: 2, Status: StageFailed}))

	// A failed stage still occupies its slot, so the next seq is 3.
	assert.Error(t, j.AppendStage(Stage{Seq: 2}))
	assert.Error(t, j.AppendStage(Stage{Seq: 4}))
	require.NoError(t, j.AppendStage(Stage{Seq: 3, Status: StageComplete}))

	assert.Equal(t, 4, j.NextSeq())
	assert.Len(t, j.CompletedStages(), 2)
}

func TestAppendInsight_AssignsOrdinals(t *testing.T) {
	j := New("q", 0)
	j.AppendInsight(Insight{Text: "first"})
	j.AppendInsight(Insight{Text: "second"})

	assert.Equal(t, 1, j.Insights[0].Ordinal)
	assert.Equal(t, 2, j.Insights[1].Ordinal)
}

func TestSynthesisReport_Insight(t *testing.T) {
	r := SynthesisReport{Summary: "threads converge", Score: 7.5}
	in := r.Insight("jid", 3)

	assert.Equal(t, CategorySynthesis, in.Category)
	assert.Equal(t, "threads converge", in.Text)
	assert.Equal(t, 7.5, in.Score)
	assert.Equal(t, 3, in.Ordinal)
	assert.NotEmpty(t, in.ID)
}

func TestDefaultSummaryStage(t *testing.T) {
	assert.True(t, DefaultSummaryStage(StageBuilding))
	assert.False(t, DefaultSummaryStage(StageDiscovering))
}
