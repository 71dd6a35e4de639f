// Package notify delivers journey milestones to Slack. It observes the
// engine and posts on terminal status changes, syntheses, and fatal
// errors; per-stage traffic is deliberately not forwarded.
package notify

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/expedition-ai/expedition/internal/journey"
)

// SlackAPI is the minimal Slack API surface the notifier needs.
type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts journey events to one channel. Post failures are
// logged and swallowed; notifications never affect journey execution.
type SlackNotifier struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a notifier posting to the given channel.
func NewSlackNotifier(api SlackAPI, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

func (n *SlackNotifier) OnChunk(string, string, string, bool) {}

func (n *SlackNotifier) OnStageComplete(journey.Stage) {}

func (n *SlackNotifier) OnSynthesisComplete(journeyID string, report journey.SynthesisReport) {
	n.post(fmt.Sprintf(":bulb: Synthesis for journey `%s` (score %.1f): %s",
		journeyID, report.Score, truncate(report.Summary, 300)))
}

func (n *SlackNotifier) OnJourneyStatusChange(journeyID string, status journey.JourneyStatus) {
	var emoji string
	switch status {
	case journey.StatusComplete:
		emoji = ":checkered_flag:"
	case journey.StatusStopped:
		emoji = ":octagonal_sign:"
	case journey.StatusFailed:
		emoji = ":x:"
	default:
		// Running and paused are visible elsewhere; don't post.
		return
	}
	n.post(fmt.Sprintf("%s Journey `%s` is %s", emoji, journeyID, status))
}

func (n *SlackNotifier) OnError(journeyID string, err error, isFatal bool) {
	if !isFatal {
		return
	}
	n.post(fmt.Sprintf(":rotating_light: Journey `%s` failed: %s", journeyID, truncate(err.Error(), 300)))
}

func (n *SlackNotifier) post(text string) {
	if _, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(text, false)); err != nil {
		n.logger.Warn().Err(err).Msg("slack post failed")
	}
}

// truncate shortens s to max runes, appending "…" if truncated. Cutting
// on a rune boundary keeps the posted text valid UTF-8.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
