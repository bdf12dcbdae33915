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
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/history"
	"github.com/raphaelisaac/hulken/internal/notifier"
	"github.com/raphaelisaac/hulken/internal/reconcile"
	"github.com/raphaelisaac/hulken/internal/report"
)

const rule = "────────────────────────────────────────────────────────────────"

// printer streams results to the terminal as each check finishes.
type printer struct {
	w io.Writer

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	blue   *color.Color
	bold   *color.Color
	dim    *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		blue:   color.New(color.FgBlue),
		bold:   color.New(color.Bold),
		dim:    color.New(color.Faint),
	}
}

func (p *printer) status(s checker.Status) (string, *color.Color) {
	switch s {
	case checker.StatusPass:
		return "✓", p.green
	case checker.StatusWarning:
		return "⚠", p.yellow
	case checker.StatusFail:
		return "✗", p.red
	default:
		return "●", p.blue
	}
}

func (p *printer) header(title, detail string) {
	fmt.Fprintln(p.w)
	p.bold.Fprintln(p.w, title)
	if detail != "" {
		p.dim.Fprintln(p.w, detail)
	}
	fmt.Fprintln(p.w)
}

// CheckFinished prints every result of one check.
func (p *printer) CheckFinished(_ *reconcile.Run, check string, results []checker.Result, elapsed time.Duration) {
	p.dim.Fprintf(p.w, "%s (%s)\n", check, elapsed.Round(time.Millisecond))
	for _, r := range results {
		icon, c := p.status(r.Status)
		fmt.Fprintf(p.w, "  %s %s %s\n", c.Sprintf("%s %-7s", icon, r.Status), p.bold.Sprint(r.Name), r.Message)
		if r.Diagnosis != nil && r.Diagnosis.Action != "" {
			p.dim.Fprintf(p.w, "      → %s\n", r.Diagnosis.Action)
		}
	}
}

// RunFinished prints the summary footer.
func (p *printer) RunFinished(run *reconcile.Run) {
	s := run.Summary()
	p.dim.Fprintln(p.w, rule)
	fmt.Fprintf(p.w, "%s %s  %d checks: %s, %s, %s, %s  (%s)\n",
		p.bold.Sprint("Summary:"),
		p.statusWord(run.Overall()),
		s.Total,
		p.green.Sprintf("%d passed", s.Passed),
		p.yellow.Sprintf("%d warnings", s.Warnings),
		p.red.Sprintf("%d failed", s.Failed),
		p.blue.Sprintf("%d errors", s.Errors),
		run.Duration().Round(time.Millisecond))
}

func (p *printer) statusWord(s checker.Status) string {
	_, c := p.status(s)
	return p.bold.Sprint(c.Sprint(string(s)))
}

// actionItems prints the numbered remediation list of rec.
func (p *printer) actionItems(rec *report.Record) {
	if len(rec.ActionItems) == 0 {
		return
	}
	fmt.Fprintln(p.w)
	p.bold.Fprintln(p.w, "Action items:")
	for i, item := range rec.ActionItems {
		_, c := p.status(item.Severity)
		subject := item.Check
		if item.Entity != "" {
			subject += " (" + item.Entity + ")"
		}
		fmt.Fprintf(p.w, "%2d. %s %s\n", i+1, c.Sprintf("[%s]", item.Severity), subject)
		fmt.Fprintf(p.w, "    %s\n", item.Action)
		if item.Impact != "" {
			p.dim.Fprintf(p.w, "    Impact: %s\n", item.Impact)
		}
	}
}

func (p *printer) saved(paths []string) {
	if len(paths) == 0 {
		return
	}
	p.dim.Fprintf(p.w, "\nReport saved: %s\n", strings.Join(paths, ", "))
}

// dryRun prints what each recording channel would have sent, in channel
// name order.
func (p *printer) dryRun(recorded map[string]*notifier.NoopNotifier) {
	names := make([]string, 0, len(recorded))
	for name := range recorded {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, n := range recorded[name].Drain() {
			p.blue.Fprintf(p.w, "\n[dry run] %s would receive: %s\n", name, n.Title)
			if len(n.Entities) > 0 {
				fmt.Fprintf(p.w, "  Entities: %s\n", strings.Join(n.Entities, ", "))
			}
		}
	}
}

// trend prints the score movement between the last two runs.
func (p *printer) trend(t history.Trend) {
	switch t.Label {
	case history.TrendFirstRun:
		p.dim.Fprintf(p.w, "Score %.0f%% (first run)\n", t.Current)
	case history.TrendImproving:
		p.green.Fprintf(p.w, "Score %.0f%% ↑ %+.0f since last run\n", t.Current, t.Delta)
	case history.TrendDeclining:
		p.red.Fprintf(p.w, "Score %.0f%% ↓ %+.0f since last run\n", t.Current, t.Delta)
	default:
		p.dim.Fprintf(p.w, "Score %.0f%%, unchanged\n", t.Current)
	}
}

// snapshots prints one line per run, oldest first.
func (p *printer) snapshots(snaps []history.Snapshot) {
	for _, s := range snaps {
		icon, c := p.status(s.Overall)
		fmt.Fprintf(p.w, "%s  %s  %5.1f%%  %d/%d passed  %s\n",
			s.Timestamp.Local().Format("2006-01-02 15:04"),
			c.Sprintf("%s %-7s", icon, s.Overall),
			s.Score, s.Summary.Passed, s.Summary.Total,
			p.dim.Sprint(s.RunID))
	}
}
