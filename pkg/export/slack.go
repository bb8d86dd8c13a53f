package export

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

// Slack messages are capped well under the API's 40k character limit.
const maxSlackText = 3500

// MessagePoster is the part of the Slack client used to post messages.
type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts the artifact summary to a channel.
type Slack struct {
	Client  MessagePoster
	Channel string
}

// NewSlack creates a poster for a bot token.
func NewSlack(token, channel string) (*Slack, error) {
	if token == "" || channel == "" {
		return nil, fmt.Errorf("slack: token and channel are required")
	}
	return &Slack{Client: slack.New(token, slack.OptionDebug(false)), Channel: channel}, nil
}

func (d *Slack) Name() string { return "slack" }

func (d *Slack) Export(ctx context.Context, a Artifact) (string, error) {
	text := a.Summary
	if text == "" {
		text = string(a.Data)
	}
	if len(text) > maxSlackText {
		text = evidence.Cut(text, maxSlackText) + "\n..."
	}
	channel, ts, err := d.Client.PostMessageContext(ctx, d.Channel, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack: post to %s: %w", d.Channel, err)
	}
	return fmt.Sprintf("slack:%s/%s", channel, ts), nil
}
