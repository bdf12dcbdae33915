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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelisaac/hulken/internal/alert"
	"github.com/raphaelisaac/hulken/internal/catalog"
	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/checker/freshness"
	"github.com/raphaelisaac/hulken/internal/config"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/notifier"
	"github.com/raphaelisaac/hulken/internal/reconcile"
)

func newWatchdogCmd(a *app) *cobra.Command {
	var (
		window time.Duration
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Alert when warehouse tables stop syncing",
		Long: `watchdog runs the sync lag check against table metadata and alerts
the channels subscribed to watchdog events. Repeat alerts for the same
stale tables are suppressed within the alert window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if window <= 0 {
				window = a.cfg.Alert.Window
			}
			return a.watchdog(cmd.Context(), window, dryRun)
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "suppress repeat alerts within this window (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the alert instead of sending it and leave the alert state untouched")
	return cmd
}

func (a *app) watchdog(ctx context.Context, window time.Duration, dryRun bool) error {
	cat, err := catalog.Build(a.cfg, a.logger)
	if err != nil {
		return setupError(err)
	}
	channels, recorded, err := a.notifiers(config.EventWatchdog, dryRun)
	if err != nil {
		return setupError(err)
	}
	out := newPrinter(a.out)
	runner := reconcile.NewRunner(cat.Registry, cat.Policy, a.opener(), a.logger, reconcile.WithObservers(out))

	names := []string{freshness.SyncLagName}
	out.header("Sync watchdog", "")
	run, err := runner.Run(ctx, names, checker.DateRange{})
	if err != nil {
		if reconcile.IsSetupError(err) {
			return setupError(err)
		}
		return err
	}

	store, release := a.alertStore(config.EventWatchdog, dryRun)
	defer release()
	d := alert.NewGate(store, window, a.logger).Evaluate(ctx, run.Results)
	if !d.ShouldAlert {
		fmt.Fprintf(a.out, "\nNo alert: %s\n", d.Reason)
		return exitCode(statusExit(run.Summary()))
	}

	sent := channels.NotifyAll(ctx, watchdogNotification(run, d))
	out.dryRun(recorded)
	fmt.Fprintf(a.out, "\nAlert for %s sent to %d channel(s)\n", strings.Join(d.Entities, ", "), sent)
	return exitCode(statusExit(run.Summary()))
}

// watchdogNotification lists every table that is not syncing with its lag
// and estimated untracked value.
func watchdogNotification(run *reconcile.Run, d alert.Decision) notifier.Notification {
	s := run.Summary()
	n := notifier.Notification{
		RunID:     run.ID,
		Overall:   s.Overall(),
		Summary:   s,
		DateRange: run.Range.String(),
		Checks:    []string{freshness.SyncLagName},
		Entities:  d.Entities,
		Timestamp: run.FinishedAt,
	}

	var body strings.Builder
	total := 0.0
	for _, r := range run.Results {
		if r.Status == checker.StatusPass {
			continue
		}
		subject := r.Entity
		if subject == "" {
			subject = r.Name
		}
		n.Items = append(n.Items, notifier.Item{Severity: r.Status, Subject: subject, Text: r.Message})
		fmt.Fprintf(&body, "[%s] %s: %s\n", r.Status, subject, r.Message)
		if v, ok := r.Details["untracked_value"].(float64); ok {
			total += v
		}
	}
	n.Title = fmt.Sprintf("Sync watchdog: %d stale table(s)", len(n.Items))
	if total > 0 {
		fmt.Fprintf(&body, "\nEstimated untracked: %s\n", diagnosis.Money(total))
	}
	n.Body = n.Title + "\n\n" + body.String()
	return n
}
