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
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelisaac/hulken/internal/alert"
	"github.com/raphaelisaac/hulken/internal/catalog"
	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/config"
	"github.com/raphaelisaac/hulken/internal/history"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/metrics"
	"github.com/raphaelisaac/hulken/internal/notifier"
	"github.com/raphaelisaac/hulken/internal/reconcile"
	"github.com/raphaelisaac/hulken/internal/report"
)

type runOptions struct {
	checks   []string
	start    string
	end      string
	days     int
	watch    time.Duration
	noNotify bool
	dryRun   bool
	textfile string
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run reconciliation checks over a date range",
		Example: `  hulken run
  hulken run --checks freshness,duplicates --days 7
  hulken run --start 2026-01-01 --end 2026-01-31
  hulken run --watch 1h
  hulken run --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.textfile == "" {
				o.textfile = a.cfg.Metrics.Textfile
			}
			return a.run(cmd.Context(), o)
		},
	}
	cmd.Flags().StringSliceVar(&o.checks, "checks", nil, "checks to run, comma separated (default all)")
	cmd.Flags().StringVar(&o.start, "start", "", "range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&o.end, "end", "", "range end, YYYY-MM-DD")
	cmd.Flags().IntVar(&o.days, "days", reconcile.DefaultRangeDays, "trailing days when no explicit range is given")
	cmd.Flags().DurationVar(&o.watch, "watch", 0, "repeat the run at this interval until interrupted")
	cmd.Flags().BoolVar(&o.noNotify, "no-notify", false, "do not send notifications")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "print the notifications a run would send instead of sending them")
	cmd.Flags().StringVar(&o.textfile, "metrics-textfile", "", "write Prometheus metrics to this file after each run")
	return cmd
}

func (o runOptions) dateRange(now time.Time) (checker.DateRange, error) {
	switch {
	case o.start != "" && o.end != "":
		return checker.ParseDateRange(o.start, o.end)
	case o.start != "" || o.end != "":
		return checker.DateRange{}, errors.New("--start and --end must be given together")
	default:
		return checker.TrailingDays(now, o.days), nil
	}
}

// session holds what one or more runs of the same command share.
type session struct {
	runner   *reconcile.Runner
	recorder *metrics.Recorder
	channels *notifier.Registry
	recorded map[string]*notifier.NoopNotifier
	gate     *alert.Gate
	release  func()
	sink     *report.Sink
	out      *printer
}

func (s *session) close() {
	if s.release != nil {
		s.release()
	}
}

func (a *app) newSession(o runOptions) (*session, error) {
	cat, err := catalog.Build(a.cfg, a.logger)
	if err != nil {
		return nil, setupError(err)
	}
	s := &session{
		recorder: metrics.NewRecorder(),
		sink:     report.NewSink(a.cfg.Report.Dir, a.cfg.Report.CSV, a.logger),
		out:      newPrinter(a.out),
	}
	s.runner = reconcile.NewRunner(cat.Registry, cat.Policy, a.opener(), a.logger,
		reconcile.WithObservers(s.out, s.recorder))
	if _, err := s.runner.Validate(o.checks); err != nil {
		return nil, setupError(err)
	}
	if !o.noNotify {
		if s.channels, s.recorded, err = a.notifiers(config.EventRun, o.dryRun); err != nil {
			return nil, setupError(err)
		}
		var store alert.Store
		store, s.release = a.alertStore(config.EventRun, o.dryRun)
		s.gate = alert.NewGate(store, a.cfg.Alert.Window, a.logger)
	}
	return s, nil
}

func (a *app) run(ctx context.Context, o runOptions) error {
	s, err := a.newSession(o)
	if err != nil {
		return err
	}
	defer s.close()
	if o.watch > 0 {
		return a.watch(ctx, s, o)
	}
	rec, err := a.runOnce(ctx, s, o)
	if err != nil {
		return err
	}
	return exitCode(statusExit(rec.Summary))
}

// runOnce executes one run and publishes its record to the report
// directory, the metrics textfile and the notification channels.
func (a *app) runOnce(ctx context.Context, s *session, o runOptions) (*report.Record, error) {
	dr, err := o.dateRange(time.Now())
	if err != nil {
		return nil, setupError(err)
	}
	s.out.header("Reconciliation", dr.String())

	run, err := s.runner.Run(ctx, o.checks, dr)
	if err != nil {
		if reconcile.IsSetupError(err) {
			return nil, setupError(err)
		}
		return nil, err
	}
	rec := report.FromRun(run)

	paths, err := s.sink.Save(&rec)
	if err != nil {
		a.logger.WithError(err).Error("Failed to save report")
	}
	s.out.actionItems(&rec)
	s.out.saved(paths)

	if o.textfile != "" {
		if err := s.recorder.WriteTextfile(o.textfile); err != nil {
			a.logger.WithError(err).WithField("path", o.textfile).Warn("Failed to write metrics textfile")
		}
	}
	if s.channels != nil && s.channels.Len() > 0 {
		a.notify(ctx, s, run, &rec)
	}
	return &rec, nil
}

// notify sends the run's notification unless the alert gate suppresses it
// as a repeat of the last alert.
func (a *app) notify(ctx context.Context, s *session, run *reconcile.Run, rec *report.Record) {
	d := s.gate.Evaluate(ctx, run.Results)
	if !d.ShouldAlert {
		if d.Reason == alert.ReasonSuppressed {
			fmt.Fprintf(a.out, "\nNotification suppressed: %s\n", d.Reason)
		}
		return
	}
	sent := s.channels.NotifyAll(ctx, notifier.FromRecord(rec, d.Entities))
	a.logger.WithFields(logging.Fields{"run_id": rec.RunID, "sent": sent}).Debug("Notifications dispatched")
	s.out.dryRun(s.recorded)
}

// watch repeats the run every o.watch until interrupted and prints the
// score trend after each one. The last run decides the exit code.
func (a *app) watch(ctx context.Context, s *session, o runOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := history.New(a.cfg.Report.History)
	recent, err := s.sink.LoadRecent(a.cfg.Report.History)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load report history")
	}
	h.Seed(recent)

	ticker := time.NewTicker(o.watch)
	defer ticker.Stop()

	code := exitPass
	for {
		rec, err := a.runOnce(ctx, s, o)
		switch {
		case err == nil:
			h.Add(history.FromRecord(*rec))
			s.out.trend(h.Trend())
			code = statusExit(rec.Summary)
		case ctx.Err() != nil:
			return exitCode(code)
		case reconcile.IsSetupError(err):
			// An unreachable warehouse should not end the watch.
			a.logger.WithError(err).Error("Run failed")
			code = exitSetup
		default:
			return err
		}
		fmt.Fprintf(a.out, "\nNext run in %s (Ctrl+C to stop)\n", o.watch)

		select {
		case <-ctx.Done():
			return exitCode(code)
		case <-ticker.C:
		}
	}
}
