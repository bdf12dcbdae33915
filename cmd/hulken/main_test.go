/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/raphaelisaac/hulken/internal/alert"
	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/config"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/history"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/notifier"
	"github.com/raphaelisaac/hulken/internal/reconcile"
	"github.com/raphaelisaac/hulken/internal/report"
	"github.com/raphaelisaac/hulken/internal/testutil"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

func init() {
	color.NoColor = true
}

var testTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func finishedRun(t *testing.T, results ...checker.Result) *reconcile.Run {
	t.Helper()
	run := reconcile.NewRun(checker.TrailingDays(testTime, 30), []string{"sync_lag"})
	if err := run.Start(testTime); err != nil {
		t.Fatal(err)
	}
	if err := run.Record(results...); err != nil {
		t.Fatal(err)
	}
	if err := run.Complete(testTime.Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	return run
}

func TestExitCode(t *testing.T) {
	if err := exitCode(exitPass); err != nil {
		t.Errorf("exitCode(0) = %v, want nil", err)
	}

	var ee *exitError
	if !errors.As(exitCode(exitFail), &ee) || ee.code != exitFail {
		t.Errorf("exitCode(2) = %v, want exitError with code 2", exitCode(exitFail))
	}

	cause := errors.New("bad config")
	err := setupError(cause)
	if !errors.As(err, &ee) || ee.code != exitSetup {
		t.Fatalf("setupError() = %v, want code %d", err, exitSetup)
	}
	if !errors.Is(err, cause) {
		t.Error("setupError() does not wrap its cause")
	}
	if err.Error() != "bad config" {
		t.Errorf("Error() = %q, want %q", err.Error(), "bad config")
	}
}

func TestRunOptions_DateRange(t *testing.T) {
	tests := []struct {
		name      string
		opts      runOptions
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{name: "trailing days", opts: runOptions{days: 7}, wantStart: "2026-01-08", wantEnd: "2026-01-14"},
		{name: "explicit range", opts: runOptions{start: "2026-01-01", end: "2026-01-31"}, wantStart: "2026-01-01", wantEnd: "2026-01-31"},
		{name: "start without end", opts: runOptions{start: "2026-01-01"}, wantErr: true},
		{name: "end before start", opts: runOptions{start: "2026-02-01", end: "2026-01-01"}, wantErr: true},
		{name: "malformed date", opts: runOptions{start: "01/01/2026", end: "2026-01-31"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dr, err := tt.opts.dateRange(testTime)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := dr.Start.Format(checker.DateLayout); got != tt.wantStart {
				t.Errorf("start = %s, want %s", got, tt.wantStart)
			}
			if got := dr.End.Format(checker.DateLayout); got != tt.wantEnd {
				t.Errorf("end = %s, want %s", got, tt.wantEnd)
			}
		})
	}
}

func TestNewNotifier(t *testing.T) {
	tests := []struct {
		name    string
		ch      config.Notification
		want    string
		wantErr bool
	}{
		{name: "slack", ch: config.Notification{Type: config.ChannelSlack, URL: "https://hooks.slack.com/x"}, want: "slack"},
		{name: "teams", ch: config.Notification{Type: config.ChannelTeams, URL: "https://example.com/x"}, want: "teams"},
		{name: "webhook", ch: config.Notification{Type: config.ChannelWebhook, URL: "https://example.com/x"}, want: "webhook"},
		{name: "pagerduty", ch: config.Notification{Type: config.ChannelPagerDuty, RoutingKey: "rk"}, want: "pagerduty"},
		{name: "email", ch: config.Notification{Type: config.ChannelEmail, Email: &config.Email{
			Host: "smtp.example.com", Port: 587, From: "hulken@example.com", To: []string{"data@example.com"},
		}}, want: "email"},
		{name: "unknown", ch: config.Notification{Name: "x", Type: "carrier-pigeon"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := newNotifier(tt.ch, config.EventRun)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newNotifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := n.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchdogNotification(t *testing.T) {
	run := finishedRun(t,
		checker.NewResult("Sync lag: facebook_ads_insights", checker.StatusFail, "Last write 72h ago (3.0 days), est. $60,000 untracked").
			WithEntity("facebook_ads_insights").
			WithDetails(map[string]any{"hours_since_sync": 72.0, "untracked_value": 60000.0}),
		checker.NewResult("Sync lag: shopify_orders", checker.StatusPass, "Last write 2h ago (0.1 days)").
			WithEntity("shopify_orders"),
		checker.NewResult("Sync lag: tiktokads_reports_daily", checker.StatusWarning, "Last write 30h ago (1.2 days), est. $2,400 untracked").
			WithEntity("tiktokads_reports_daily").
			WithDetails(map[string]any{"hours_since_sync": 30.0, "untracked_value": 2400.0}),
	)
	d := alert.Decision{ShouldAlert: true, Entities: []string{"facebook_ads_insights", "tiktokads_reports_daily"}}

	n := watchdogNotification(run, d)
	if n.Title != "Sync watchdog: 2 stale table(s)" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Overall != checker.StatusFail {
		t.Errorf("Overall = %s, want FAIL", n.Overall)
	}
	if len(n.Items) != 2 {
		t.Fatalf("Items = %d, want 2", len(n.Items))
	}
	if n.Items[0].Subject != "facebook_ads_insights" || n.Items[0].Severity != checker.StatusFail {
		t.Errorf("Items[0] = %+v", n.Items[0])
	}
	if len(n.Entities) != 2 || n.Entities[1] != "tiktokads_reports_daily" {
		t.Errorf("Entities = %v", n.Entities)
	}
	if !strings.Contains(n.Body, "Estimated untracked: $62,400") {
		t.Errorf("Body = %q, want the untracked total", n.Body)
	}
	if n.RunID != run.ID {
		t.Errorf("RunID = %q, want %q", n.RunID, run.ID)
	}
}

func TestPrinter_Run(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	results := []checker.Result{
		checker.NewResult("Freshness: Shopify", checker.StatusPass, "Latest data 1 day ago"),
		checker.NewResult("Freshness: Facebook Ads", checker.StatusFail, "Latest data 5 days ago").
			WithDiagnosis(&checker.Diagnosis{Action: "Restart the Facebook connector"}),
	}
	run := finishedRun(t, results...)

	p.CheckFinished(run, "freshness", results, 120*time.Millisecond)
	p.RunFinished(run)

	out := buf.String()
	for _, want := range []string{
		"freshness (120ms)",
		"✓ PASS    Freshness: Shopify Latest data 1 day ago",
		"✗ FAIL    Freshness: Facebook Ads Latest data 5 days ago",
		"→ Restart the Facebook connector",
		"Summary: FAIL  2 checks: 1 passed, 0 warnings, 1 failed, 0 errors  (2s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_ActionItems(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.actionItems(&report.Record{})
	if buf.Len() != 0 {
		t.Errorf("empty record printed %q", buf.String())
	}

	p.actionItems(&report.Record{ActionItems: []report.ActionItem{
		{Severity: checker.StatusFail, Check: "Duplicates: Shopify", Entity: "shopify_orders", Action: "Deduplicate on orderId", Impact: "Revenue overstated"},
	}})
	out := buf.String()
	for _, want := range []string{
		" 1. [FAIL] Duplicates: Shopify (shopify_orders)",
		"    Deduplicate on orderId",
		"    Impact: Revenue overstated",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Trend(t *testing.T) {
	tests := []struct {
		name  string
		trend history.Trend
		want  string
	}{
		{name: "first run", trend: history.Trend{Current: 80, Label: history.TrendFirstRun}, want: "Score 80% (first run)"},
		{name: "improving", trend: history.Trend{Previous: 70, Current: 90, Delta: 20, Label: history.TrendImproving}, want: "Score 90% ↑ +20 since last run"},
		{name: "declining", trend: history.Trend{Previous: 90, Current: 60, Delta: -30, Label: history.TrendDeclining}, want: "Score 60% ↓ -30 since last run"},
		{name: "same", trend: history.Trend{Previous: 75, Current: 75, Label: history.TrendSame}, want: "Score 75%, unchanged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newPrinter(&buf).trend(tt.trend)
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("trend() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteRecord(t *testing.T) {
	rec := &report.Record{
		RunID:         "run-1",
		OverallStatus: checker.StatusPass,
		Summary:       checker.Summary{Total: 1, Passed: 1},
		Checks:        []checker.Result{checker.NewResult("Freshness: Shopify", checker.StatusPass, "ok")},
	}
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: formatText, want: "Reconciliation PASS"},
		{format: formatJSON, want: `"run_id": "run-1"`},
		{format: formatCSV, want: "Freshness: Shopify"},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			a := &app{out: &buf}
			err := writeRecord(a, rec, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("writeRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestNotifiers_SubscribedChannelsOnly(t *testing.T) {
	a := &app{cfg: config.Default()}
	a.cfg.Notifications = []config.Notification{
		{Name: "ops", Type: config.ChannelSlack, URL: "https://hooks.slack.com/a", Events: []string{config.EventWatchdog}},
		{Name: "team", Type: config.ChannelWebhook, URL: "https://example.com/hook"},
	}
	reg, recorded, err := a.notifiers(config.EventRun, false)
	if err != nil {
		t.Fatalf("notifiers() error = %v", err)
	}
	if got := reg.Channels(); len(got) != 1 || got[0] != "team" {
		t.Errorf("run channels = %v, want [team]", got)
	}
	if recorded != nil {
		t.Errorf("recorded = %v, want nil outside a dry run", recorded)
	}

	reg, _, err = a.notifiers(config.EventWatchdog, false)
	if err != nil {
		t.Fatalf("notifiers() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("watchdog channels = %v, want both", reg.Channels())
	}
}

func TestNotifiers_DryRunRecords(t *testing.T) {
	a := &app{cfg: config.Default()}
	a.cfg.Notifications = []config.Notification{
		{Type: config.ChannelWebhook, URL: "https://example.com/hook"},
	}
	reg, recorded, err := a.notifiers(config.EventRun, true)
	if err != nil {
		t.Fatalf("notifiers() error = %v", err)
	}
	noop, ok := recorded["webhook"]
	if !ok {
		t.Fatalf("recorded = %v, want the webhook channel", recorded)
	}
	if sent := reg.NotifyAll(context.Background(), notifier.Notification{Title: "Reconciliation FAIL"}); sent != 1 {
		t.Errorf("NotifyAll() = %d, want 1", sent)
	}
	if len(noop.Sent) != 1 {
		t.Errorf("recorded %d notifications, want 1", len(noop.Sent))
	}
}

func TestStatusExit(t *testing.T) {
	tests := []struct {
		name    string
		summary checker.Summary
		want    int
	}{
		{name: "pass", summary: checker.Summary{Total: 2, Passed: 2}, want: exitPass},
		{name: "warning", summary: checker.Summary{Total: 2, Passed: 1, Warnings: 1}, want: exitWarning},
		{name: "error only", summary: checker.Summary{Total: 1, Errors: 1}, want: exitWarning},
		{name: "fail", summary: checker.Summary{Total: 3, Passed: 1, Warnings: 1, Failed: 1}, want: exitFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusExit(tt.summary); got != tt.want {
				t.Errorf("statusExit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventStateLocations(t *testing.T) {
	tests := []struct {
		event    string
		wantPath string
		wantKey  string
	}{
		{event: config.EventWatchdog, wantPath: "state/alert_state.json", wantKey: alert.DefaultRedisKey},
		{event: config.EventRun, wantPath: "state/alert_state_run.json", wantKey: alert.DefaultRedisKey + ":run"},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			if got := eventPath("state/alert_state.json", tt.event); got != tt.wantPath {
				t.Errorf("eventPath() = %v, want %v", got, tt.wantPath)
			}
			if got := eventKey("", tt.event); got != tt.wantKey {
				t.Errorf("eventKey() = %v, want %v", got, tt.wantKey)
			}
		})
	}
}

func TestReadOnlyStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alert_state.json")
	store := readOnlyStore{alert.NewFileStore(path)}
	if err := store.Save(ctx, alert.State{LastAlert: testTime, Entities: []string{"shopify_orders"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Load() = %+v, want no saved state", got)
	}
}

type failingCheck struct{}

func (failingCheck) Name() string       { return "duplicates" }
func (failingCheck) Families() []string { return nil }

func (failingCheck) Check(context.Context, *checker.CheckContext) ([]checker.Result, error) {
	return []checker.Result{
		checker.NewResult("Duplicates: Shopify", checker.StatusFail, "12 duplicate orders").WithEntity("shopify_orders"),
	}, nil
}

func TestRunOnce_RepeatAlertSuppressed(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	a := &app{cfg: config.Default(), logger: logging.NewDiscardLogger(), out: &buf}

	reg := checker.NewRegistry()
	reg.MustRegister(failingCheck{})
	open := func(context.Context) (datasource.DataSource, error) { return testutil.NewFakeSource(), nil }

	noop := notifier.NewNoopNotifier()
	channels := notifier.NewRegistry(nil)
	if err := channels.Register(notifier.Channel{Name: "team", Notifier: noop}); err != nil {
		t.Fatal(err)
	}

	s := &session{
		channels: channels,
		gate:     alert.NewGate(alert.NewFileStore(filepath.Join(dir, "alert_state_run.json")), time.Hour, nil),
		sink:     report.NewSink(filepath.Join(dir, "reports"), false, a.logger),
		out:      newPrinter(&buf),
	}
	s.runner = reconcile.NewRunner(reg, threshold.Default(), open, a.logger, reconcile.WithObservers(s.out))

	for i := 0; i < 2; i++ {
		rec, err := a.runOnce(context.Background(), s, runOptions{days: 7})
		if err != nil {
			t.Fatalf("runOnce() error = %v", err)
		}
		if rec.OverallStatus != checker.StatusFail {
			t.Errorf("OverallStatus = %s, want FAIL", rec.OverallStatus)
		}
	}
	if len(noop.Sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(noop.Sent))
	}
	if got := noop.Sent[0].Checks; len(got) != 1 || got[0] != "duplicates" {
		t.Errorf("Checks = %v, want [duplicates]", got)
	}
	if !strings.Contains(buf.String(), "Notification suppressed") {
		t.Errorf("output missing the suppression notice:\n%s", buf.String())
	}
}

func TestPrinter_DryRun(t *testing.T) {
	var buf bytes.Buffer
	noop := notifier.NewNoopNotifier()
	_ = noop.Send(context.Background(), notifier.Notification{Title: "Reconciliation FAIL", Entities: []string{"shopify_orders"}})

	p := newPrinter(&buf)
	p.dryRun(map[string]*notifier.NoopNotifier{"team": noop})
	out := buf.String()
	for _, want := range []string{"[dry run] team would receive: Reconciliation FAIL", "Entities: shopify_orders"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	p.dryRun(map[string]*notifier.NoopNotifier{"team": noop})
	if buf.Len() != 0 {
		t.Errorf("second dryRun() printed %q, want nothing", buf.String())
	}
}

func TestOnlyStatuses(t *testing.T) {
	rec := &report.Record{
		Checks: []checker.Result{
			checker.NewResult("Freshness: Shopify", checker.StatusPass, "ok"),
			checker.NewResult("Duplicates: Shopify", checker.StatusFail, "12 duplicates"),
			checker.NewResult("Nulls: orders", checker.StatusWarning, "3% null"),
		},
	}
	got, err := onlyStatuses(rec, []string{"critical", "warn"})
	if err != nil {
		t.Fatalf("onlyStatuses() error = %v", err)
	}
	if len(got.Checks) != 2 || got.Summary.Total != 2 || got.OverallStatus != checker.StatusFail {
		t.Errorf("onlyStatuses() = %d checks, summary %+v, overall %s", len(got.Checks), got.Summary, got.OverallStatus)
	}

	if _, err := onlyStatuses(rec, []string{"bogus"}); err == nil {
		t.Error("onlyStatuses() with an unknown status = nil error")
	}
}
