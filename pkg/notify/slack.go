package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// SlackNotifier posts escalation notices to a configured Slack channel,
// grounded on the same slack-go wrapper shape used elsewhere in this
// codebase for outbound messages.
type SlackNotifier struct {
	api       *goslack.Client
	channelID string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSlackNotifier constructs a SlackNotifier. The CLI wiring passes a
// token read from the environment variable named by notify.slack.token_env
// and the channel from notify.slack.channel.
func NewSlackNotifier(token, channelID string, timeout time.Duration, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		api:       goslack.New(token),
		channelID: channelID,
		timeout:   timeout,
		logger:    logger.With("component", "slack-notifier"),
	}
}

// Notify posts a single-message escalation notice.
func (n *SlackNotifier) Notify(ctx context.Context, e Escalation) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	text := fmt.Sprintf("Escalation: action %s (%s) risk=%s — %s [correlation_id=%s]",
		e.ActionID, e.ActionType, e.RiskLevel, e.Reason, e.CorrelationID)

	_, _, err := n.api.PostMessageContext(ctx, n.channelID, goslack.MsgOptionText(text, false))
	if err != nil {
		n.logger.Error("notify: slack post failed", "error", err, "correlation_id", e.CorrelationID)
		return fmt.Errorf("notify: slack post failed: %w", err)
	}
	return nil
}
