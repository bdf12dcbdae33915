package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// maxSlackItems keeps the message under Slack's 50-block limit.
const maxSlackItems = 40

// SlackNotifier sends notifications formatted as Slack Block Kit messages.
type SlackNotifier struct {
	webhookURL   string
	client       *http.Client
	allowPrivate bool
}

// NewSlackNotifier creates a Slack notifier that sends Block Kit payloads.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
	}
	s.client = newSSRFSafeClient(&s.allowPrivate)
	return s
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, notification Notification) error {
	if err := validateWebhookURL(s.webhookURL); err != nil {
		return fmt.Errorf("SSRF protection: %w", err)
	}
	return postJSON(ctx, s.client, s.webhookURL, "slack", s.buildPayload(notification))
}

func (s *SlackNotifier) buildPayload(n Notification) map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("%s %s", statusEmoji(n.Overall), n.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s* run `%s`", n.DateRange, n.RunID),
			},
		},
		{
			"type": "section",
			"fields": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Passed*\n%d of %d", n.Summary.Passed, n.Summary.Total)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Failed*\n%d", n.Summary.Failed)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Warnings*\n%d", n.Summary.Warnings)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Errors*\n%d", n.Summary.Errors)},
			},
		},
	}

	items := n.Items
	if len(items) > maxSlackItems {
		items = items[:maxSlackItems]
	}
	for _, item := range items {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("%s *%s*: %s", statusEmoji(item.Severity), item.Subject, item.Text),
			},
		})
	}
	if hidden := len(n.Items) - len(items); hidden > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("_and %d more in the report_", hidden)},
		})
	}

	blocks = append(blocks, map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": fmt.Sprintf("Checked at %s", n.Timestamp.UTC().Format(time.RFC3339))},
		},
	})
	return map[string]any{"blocks": blocks}
}
