package notifier

import (
	"context"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/report"
)

// Item is one line of a notification: a finding or an action to take
type Item struct {
	Severity checker.Status `json:"severity"`
	Subject  string         `json:"subject"`
	Text     string         `json:"text"`
}

// Notification represents a run outcome to send
type Notification struct {
	// RunID identifies the run the notification is about
	RunID string `json:"runId"`
	// Title is the headline, e.g. "Reconciliation FAIL"
	Title string `json:"title"`
	// Overall is the run status
	Overall checker.Status `json:"overall"`
	// Summary holds the result counts
	Summary checker.Summary `json:"summary"`
	// DateRange is the business period evaluated
	DateRange string `json:"dateRange"`
	// Checks lists the check names that ran
	Checks []string `json:"checks"`
	// Entities is the set of offending tables or sources
	Entities []string `json:"entities"`
	// Items are the findings, most severe first
	Items []Item `json:"items"`
	// Body is the plain-text rendering used by email and generic webhooks
	Body string `json:"body"`
	// Timestamp is when the run completed
	Timestamp time.Time `json:"timestamp"`
}

// FromRecord builds a notification from a persisted run record. Checks are
// the catalog names the run resolved; items are the record's action items.
func FromRecord(rec *report.Record, entities []string) Notification {
	n := Notification{
		RunID:     rec.RunID,
		Title:     "Reconciliation " + string(rec.OverallStatus),
		Overall:   rec.OverallStatus,
		Summary:   rec.Summary,
		DateRange: rec.DateRange.String(),
		Checks:    append([]string(nil), rec.ChecksRequested...),
		Entities:  entities,
		Body:      rec.Text(),
		Timestamp: rec.Timestamp,
	}
	for _, a := range rec.ActionItems {
		subject := a.Check
		if a.Entity != "" {
			subject += " (" + a.Entity + ")"
		}
		n.Items = append(n.Items, Item{Severity: a.Severity, Subject: subject, Text: a.Action})
	}
	return n
}

// Notifier is the interface for sending run notifications
type Notifier interface {
	// Name returns the notifier identifier
	Name() string
	// Send dispatches a notification
	Send(ctx context.Context, notification Notification) error
}

func statusEmoji(s checker.Status) string {
	switch s {
	case checker.StatusFail:
		return "\U0001f534"
	case checker.StatusWarning, checker.StatusError:
		return "\U0001f7e1"
	default:
		return "\U0001f7e2"
	}
}
