package notifier

import (
	"context"
	"fmt"
	"net/http"
)

// TeamsNotifier sends notifications formatted as Microsoft Teams Adaptive Cards.
type TeamsNotifier struct {
	webhookURL   string
	client       *http.Client
	allowPrivate bool
}

// NewTeamsNotifier creates a Teams notifier that sends Adaptive Card payloads.
func NewTeamsNotifier(webhookURL string) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
	}
	t.client = newSSRFSafeClient(&t.allowPrivate)
	return t
}

func (t *TeamsNotifier) Name() string { return "teams" }

func (t *TeamsNotifier) Send(ctx context.Context, notification Notification) error {
	if err := validateWebhookURL(t.webhookURL); err != nil {
		return fmt.Errorf("SSRF protection: %w", err)
	}
	return postJSON(ctx, t.client, t.webhookURL, "teams", t.buildPayload(notification))
}

func (t *TeamsNotifier) buildPayload(n Notification) map[string]any {
	body := []map[string]any{
		{
			"type":   "TextBlock",
			"size":   "Large",
			"weight": "Bolder",
			"text":   n.Title,
		},
		{
			"type":     "TextBlock",
			"text":     fmt.Sprintf("%s, run %s", n.DateRange, n.RunID),
			"isSubtle": true,
		},
		{
			"type": "FactSet",
			"facts": []map[string]any{
				{"title": "Passed", "value": fmt.Sprintf("%d of %d", n.Summary.Passed, n.Summary.Total)},
				{"title": "Failed", "value": fmt.Sprintf("%d", n.Summary.Failed)},
				{"title": "Warnings", "value": fmt.Sprintf("%d", n.Summary.Warnings)},
				{"title": "Errors", "value": fmt.Sprintf("%d", n.Summary.Errors)},
			},
		},
	}
	for _, item := range n.Items {
		body = append(body, map[string]any{
			"type": "TextBlock",
			"wrap": true,
			"text": fmt.Sprintf("**[%s] %s**: %s", item.Severity, item.Subject, item.Text),
		})
	}

	return map[string]any{
		"type": "message",
		"attachments": []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]any{
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body":    body,
				},
			},
		},
	}
}
