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

package freshness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

const (
	// ContinuityName is the catalog name of the continuity check
	ContinuityName = "continuity"

	// DefaultRecentBuffer is how many trailing days of the range count as
	// "recent" when deciding whether a gap is ongoing.
	DefaultRecentBuffer = 2

	maxListedDays = 7
)

// Gap classifies where missing days fall in the range.
type Gap string

const (
	GapNone      Gap = "none"
	GapOngoing   Gap = "ongoing"
	GapTransient Gap = "transient"
)

// ContinuityChecker finds calendar days in the run range with no rows.
type ContinuityChecker struct {
	targets   []Target
	buffer    int
	diagnoses *diagnosis.Catalog
}

// NewContinuityChecker creates a continuity checker. A buffer below one
// uses DefaultRecentBuffer.
func NewContinuityChecker(targets []Target, buffer int, diagnoses *diagnosis.Catalog) *ContinuityChecker {
	if buffer < 1 {
		buffer = DefaultRecentBuffer
	}
	return &ContinuityChecker{targets: targets, buffer: buffer, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *ContinuityChecker) Name() string {
	return ContinuityName
}

// Families returns the threshold families read by the check
func (c *ContinuityChecker) Families() []string {
	return []string{threshold.FamilyContinuity}
}

// Check evaluates every target over the run range.
func (c *ContinuityChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyContinuity)
	if err != nil {
		return nil, err
	}
	if checkCtx.Range.IsZero() {
		return nil, fmt.Errorf("continuity needs a date range")
	}

	results := make([]checker.Result, 0, len(c.targets))
	for _, t := range c.targets {
		name := "Continuity: " + t.Label
		r, err := c.checkTarget(ctx, checkCtx, t, bounds, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("source", t.Key).Warn("continuity query failed")
			r = checker.Errored(name, err).WithEntity(t.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *ContinuityChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t Target, bounds threshold.Bounds, name string) (checker.Result, error) {
	ds := checkCtx.DataSource
	d := ds.Dialect()
	table, err := d.QuoteIdent(t.Table)
	if err != nil {
		return checker.Result{}, err
	}
	col, err := d.QuoteIdent(t.DateColumn)
	if err != nil {
		return checker.Result{}, err
	}

	dayExpr := fmt.Sprintf("CAST(%s AS DATE)", col)
	q := datasource.NewQuery("continuity/"+t.Key, fmt.Sprintf(
		"SELECT DISTINCT %s AS day FROM %s WHERE %s BETWEEN :start AND :end", dayExpr, table, dayExpr)).
		With("start", checkCtx.Range.Start.Format(checker.DateLayout)).
		With("end", checkCtx.Range.End.Format(checker.DateLayout))
	rows, err := ds.Execute(ctx, q)
	if err != nil {
		return checker.Result{}, err
	}

	observed := make(map[string]bool, len(rows))
	for _, row := range rows {
		day, ok, err := row.Time("day")
		if err != nil {
			return checker.Result{}, err
		}
		if ok {
			observed[checker.Day(day).Format(checker.DateLayout)] = true
		}
	}

	missing := MissingDays(checkCtx.Range, observed)
	expected := checkCtx.Range.Len()
	status := checker.StatusFor(bounds.Above(float64(len(missing))))
	gap := ClassifyGap(checkCtx.Range, missing, c.buffer)

	details := map[string]any{
		"expected_days": expected,
		"observed_days": expected - len(missing),
		"missing_days":  missing,
		"gap":           string(gap),
	}
	if len(missing) == 0 {
		return checker.NewResult(name, checker.StatusPass,
			fmt.Sprintf("All %d days present (%s)", expected, checkCtx.Range)).
			WithEntity(t.Table).WithDetails(details), nil
	}

	r := checker.NewResult(name, status,
		fmt.Sprintf("%d of %d days missing: %s", len(missing), expected, listDays(missing))).
		WithEntity(t.Table).
		WithDetails(details)

	key := diagnosis.ContinuityTransient
	if gap == GapOngoing {
		key = diagnosis.ContinuityOngoing
	}
	return c.diagnoses.Attach(r, key, map[string]any{
		"source":  t.Label,
		"missing": missing,
		"count":   len(missing),
	}), nil
}

// MissingDays returns every day of r absent from observed (keyed by
// DateLayout), oldest first.
func MissingDays(r checker.DateRange, observed map[string]bool) []string {
	var missing []string
	for _, d := range r.Days() {
		s := d.Format(checker.DateLayout)
		if !observed[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// ClassifyGap reports a gap as ongoing when any missing day falls within
// the last buffer days of the range, and transient otherwise.
func ClassifyGap(r checker.DateRange, missing []string, buffer int) Gap {
	if len(missing) == 0 {
		return GapNone
	}
	if buffer < 1 {
		buffer = DefaultRecentBuffer
	}
	recent := r.End.AddDate(0, 0, -(buffer - 1))
	for _, s := range missing {
		d, err := time.Parse(checker.DateLayout, s)
		if err != nil {
			continue
		}
		if !d.Before(recent) {
			return GapOngoing
		}
	}
	return GapTransient
}

func listDays(days []string) string {
	if len(days) <= maxListedDays {
		return strings.Join(days, ", ")
	}
	return strings.Join(days[:maxListedDays], ", ") + fmt.Sprintf(" and %d more", len(days)-maxListedDays)
}
