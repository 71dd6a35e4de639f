package notify

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expedition-ai/expedition/internal/journey"
)

type fakeSlack struct {
	channels []string
	count    int
	err      error
}

func (f *fakeSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	f.count++
	return channelID, "ts", f.err
}

func TestPostsOnTerminalStatusOnly(t *testing.T) {
	api := &fakeSlack{}
	n := NewSlackNotifier(api, "#explorations", zerolog.Nop())

	n.OnJourneyStatusChange("j1", journey.StatusRunning)
	n.OnJourneyStatusChange("j1", journey.StatusPaused)
	assert.Equal(t, 0, api.count)

	n.OnJourneyStatusChange("j1", journey.StatusComplete)
	n.OnJourneyStatusChange("j2", journey.StatusStopped)
	n.OnJourneyStatusChange("j3", journey.StatusFailed)
	assert.Equal(t, 3, api.count)
	require.Len(t, api.channels, 3)
	assert.Equal(t, "#explorations", api.channels[0])
}

func TestPostsOnSynthesis(t *testing.T) {
	api := &fakeSlack{}
	n := NewSlackNotifier(api, "#explorations", zerolog.Nop())

	n.OnSynthesisComplete("j1", journey.SynthesisReport{Summary: "themes converging", Score: 7.5})
	assert.Equal(t, 1, api.count)
}

func TestPostsOnFatalErrorOnly(t *testing.T) {
	api := &fakeSlack{}
	n := NewSlackNotifier(api, "#explorations", zerolog.Nop())

	n.OnError("j1", errors.New("retryable blip"), false)
	assert.Equal(t, 0, api.count)

	n.OnError("j1", errors.New("provider dead"), true)
	assert.Equal(t, 1, api.count)
}

func TestIgnoresStageTraffic(t *testing.T) {
	api := &fakeSlack{}
	n := NewSlackNotifier(api, "#explorations", zerolog.Nop())

	n.OnChunk("j1", "text", "", false)
	n.OnStageComplete(journey.Stage{ID: "s1"})
	assert.Equal(t, 0, api.count)
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日本語の要約", 100)
	got := truncate(long, 300)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 301, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.Equal(t, "short", truncate("short", 300))
}

func TestPostErrorIsSwallowed(t *testing.T) {
	api := &fakeSlack{err: errors.New("channel_not_found")}
	n := NewSlackNotifier(api, "#explorations", zerolog.Nop())

	// Must not panic or propagate.
	n.OnJourneyStatusChange("j1", journey.StatusComplete)
	assert.Equal(t, 1, api.count)
}
