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

// Package report turns a completed run into its durable record and the
// severity-ordered action items, and persists records to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/reconcile"
)

// ErrInconsistent is returned when a loaded record's summary does not
// match its own check list.
var ErrInconsistent = errors.New("report summary does not match its checks")

// ActionItem is one remediation step lifted from a non-PASS diagnosis.
type ActionItem struct {
	Severity checker.Status `json:"severity"`
	Check    string         `json:"check"`
	Entity   string         `json:"entity,omitempty"`
	Action   string         `json:"action"`
	Impact   string         `json:"impact,omitempty"`
}

// Record is the persisted form of a completed run.
type Record struct {
	RunID           string            `json:"run_id"`
	Timestamp       time.Time         `json:"timestamp"`
	DateRange       checker.DateRange `json:"date_range"`
	OverallStatus   checker.Status    `json:"overall_status"`
	Summary         checker.Summary   `json:"summary"`
	ChecksRequested []string          `json:"checks_requested"`
	DurationSeconds float64           `json:"duration_seconds"`
	Checks          []checker.Result  `json:"checks"`
	ActionItems     []ActionItem      `json:"action_items"`
}

// FromRun builds the record of a completed run.
func FromRun(run *reconcile.Run) Record {
	checks := make([]checker.Result, len(run.Results))
	for i, r := range run.Results {
		checks[i] = r.Clone()
	}
	s := checker.Tally(checks)
	ts := run.FinishedAt
	if ts.IsZero() {
		ts = run.StartedAt
	}
	return Record{
		RunID:           run.ID,
		Timestamp:       ts.UTC(),
		DateRange:       run.Range,
		OverallStatus:   s.Overall(),
		Summary:         s,
		ChecksRequested: append([]string(nil), run.Checks...),
		DurationSeconds: run.Duration().Seconds(),
		Checks:          checks,
		ActionItems:     ActionItems(checks),
	}
}

var severityOrder = []checker.Status{checker.StatusFail, checker.StatusWarning, checker.StatusError}

// ActionItems lists every result carrying a diagnosis action, FAIL first,
// then WARNING, then ERROR. Discovery order is kept within each group.
func ActionItems(results []checker.Result) []ActionItem {
	items := []ActionItem{}
	for _, sev := range severityOrder {
		for _, r := range results {
			if r.Status != sev || !r.HasAction() {
				continue
			}
			items = append(items, ActionItem{
				Severity: r.Status,
				Check:    r.Name,
				Entity:   r.Entity,
				Action:   r.Diagnosis.Action,
				Impact:   r.Diagnosis.Impact,
			})
		}
	}
	return items
}

// Only returns a copy of the record restricted to checks with one of the
// given statuses. Summary, overall status and action items are recomputed
// from the remaining checks.
func (r *Record) Only(statuses ...checker.Status) Record {
	keep := make(map[checker.Status]bool, len(statuses))
	for _, s := range statuses {
		keep[s] = true
	}
	out := *r
	out.Checks = []checker.Result{}
	for _, c := range r.Checks {
		if keep[c.Status] {
			out.Checks = append(out.Checks, c.Clone())
		}
	}
	out.Summary = checker.Tally(out.Checks)
	out.OverallStatus = out.Summary.Overall()
	out.ActionItems = ActionItems(out.Checks)
	return out
}

// Validate reports whether the summary and overall status agree with the
// check list.
func (r *Record) Validate() error {
	if !r.Summary.Consistent() {
		return fmt.Errorf("%w: counts %+v do not add up to the total", ErrInconsistent, r.Summary)
	}
	want := checker.Tally(r.Checks)
	if r.Summary != want {
		return fmt.Errorf("%w: summary %+v, checks tally %+v", ErrInconsistent, r.Summary, want)
	}
	if r.OverallStatus != want.Overall() {
		return fmt.Errorf("%w: overall %s, checks imply %s", ErrInconsistent, r.OverallStatus, want.Overall())
	}
	return nil
}

// WriteJSON encodes r as indented JSON.
func (r *Record) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadJSON decodes and validates a record.
func ReadJSON(rd io.Reader) (*Record, error) {
	var rec Record
	if err := json.NewDecoder(rd).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes one row per result in checker.FlatHeader order. The file
// starts with a UTF-8 BOM so spreadsheet tools detect the encoding.
func (r *Record) WriteCSV(w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(checker.FlatHeader); err != nil {
		return err
	}
	for _, res := range r.Checks {
		if err := cw.Write(res.Flatten().Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Text renders the summary line followed by the numbered action items, the
// body used for notifications.
func (r *Record) Text() string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "Reconciliation %s for %s: %d checks, %d passed, %d warnings, %d failed, %d errors\n",
		r.OverallStatus, r.DateRange, s.Total, s.Passed, s.Warnings, s.Failed, s.Errors)
	if len(r.ActionItems) == 0 {
		return b.String()
	}
	b.WriteString("\nAction items:\n")
	for i, item := range r.ActionItems {
		subject := item.Check
		if item.Entity != "" {
			subject += " (" + item.Entity + ")"
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, item.Severity, subject, item.Action)
	}
	return b.String()
}
