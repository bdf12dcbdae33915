package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyNotifier sends notifications via PagerDuty Events API v2.
type PagerDutyNotifier struct {
	routingKey   string
	dedupKey     string
	apiURL       string
	client       *http.Client
	allowPrivate bool
}

// NewPagerDutyNotifier creates a PagerDuty notifier. The routingKey is the
// integration key; dedupKey groups every event of one schedule (e.g. the
// watchdog) into a single incident.
func NewPagerDutyNotifier(routingKey, dedupKey string) *PagerDutyNotifier {
	if dedupKey == "" {
		dedupKey = "hulken/reconciliation"
	}
	p := &PagerDutyNotifier{
		routingKey: routingKey,
		dedupKey:   dedupKey,
		apiURL:     pagerDutyEventsURL,
	}
	p.client = newSSRFSafeClient(&p.allowPrivate)
	return p
}

func (p *PagerDutyNotifier) Name() string { return "pagerduty" }

func (p *PagerDutyNotifier) Send(ctx context.Context, notification Notification) error {
	if !p.allowPrivate {
		if err := validateWebhookTarget(p.apiURL); err != nil {
			return fmt.Errorf("SSRF protection: %w", err)
		}
	}
	return postJSON(ctx, p.client, p.apiURL, "pagerduty", p.buildPayload(notification))
}

func (p *PagerDutyNotifier) buildPayload(n Notification) map[string]any {
	// Auto-resolve when the run passed
	eventAction := "trigger"
	if n.Overall == checker.StatusPass {
		eventAction = "resolve"
	}

	summary := n.Title
	if len(n.Entities) > 0 {
		summary = fmt.Sprintf("%s: %s", n.Title, strings.Join(n.Entities, ", "))
	}

	return map[string]any{
		"routing_key":  p.routingKey,
		"dedup_key":    p.dedupKey,
		"event_action": eventAction,
		"payload": map[string]any{
			"summary":   summary,
			"source":    "hulken",
			"severity":  p.mapSeverity(n),
			"timestamp": n.Timestamp.UTC().Format(time.RFC3339),
			"custom_details": map[string]any{
				"run_id":     n.RunID,
				"date_range": n.DateRange,
				"total":      n.Summary.Total,
				"passed":     n.Summary.Passed,
				"warnings":   n.Summary.Warnings,
				"failed":     n.Summary.Failed,
				"errors":     n.Summary.Errors,
				"entities":   n.Entities,
			},
		},
	}
}

func (p *PagerDutyNotifier) mapSeverity(n Notification) string {
	switch n.Overall {
	case checker.StatusFail:
		return "critical"
	case checker.StatusWarning, checker.StatusError:
		return "warning"
	default:
		return "info"
	}
}
