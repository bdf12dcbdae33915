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

// Package freshness implements the timeliness checks: business-date
// freshness, table sync lag and date continuity.
package freshness

import (
	"context"
	"fmt"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

const (
	// FreshnessName is the catalog name of the freshness check
	FreshnessName = "freshness"
)

// Target is one connector-fed table with a business date column.
type Target struct {
	// Key is the short source identifier used in query names (e.g. "facebook")
	Key string

	// Label is the display name used in result names (e.g. "Facebook Ads")
	Label string

	Table      string
	DateColumn string

	// DailyValue is the expected business value per day (e.g. average
	// spend). When set, stale diagnoses estimate the missing value.
	DailyValue float64
}

// FreshnessChecker measures how many days the newest business date lags
// behind the evaluation day.
type FreshnessChecker struct {
	targets   []Target
	diagnoses *diagnosis.Catalog
}

// NewFreshnessChecker creates a freshness checker over targets.
func NewFreshnessChecker(targets []Target, diagnoses *diagnosis.Catalog) *FreshnessChecker {
	return &FreshnessChecker{targets: targets, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *FreshnessChecker) Name() string {
	return FreshnessName
}

// Families returns the threshold families read by the check
func (c *FreshnessChecker) Families() []string {
	return []string{threshold.FamilyFreshness}
}

// Check evaluates every target. A target whose query fails yields an ERROR
// result for that target only.
func (c *FreshnessChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyFreshness)
	if err != nil {
		return nil, err
	}

	results := make([]checker.Result, 0, len(c.targets))
	for _, t := range c.targets {
		name := "Freshness: " + t.Label
		r, err := c.checkTarget(ctx, checkCtx, t, bounds, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("source", t.Key).Warn("freshness query failed")
			r = checker.Errored(name, err).WithEntity(t.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *FreshnessChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t Target, bounds threshold.Bounds, name string) (checker.Result, error) {
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

	q := datasource.NewQuery("freshness/"+t.Key, fmt.Sprintf(
		"SELECT MAX(CAST(%s AS DATE)) AS latest_date, COUNT(*) AS row_count FROM %s", col, table))
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, err
	}
	count, _, err := row.Int("row_count")
	if err != nil {
		return checker.Result{}, err
	}
	latest, ok, err := row.Time("latest_date")
	if err != nil {
		return checker.Result{}, err
	}

	if count == 0 || !ok {
		r := checker.NewResult(name, checker.StatusFail, fmt.Sprintf("No data found in %s", t.Table)).
			WithEntity(t.Table).
			WithDetails(map[string]any{"table": t.Table, "row_count": count})
		return c.diagnoses.Attach(r, diagnosis.FreshnessNoData, map[string]any{
			"source": t.Label,
			"table":  t.Table,
		}), nil
	}

	latestDay := checker.Day(latest)
	gap := DaysBetween(latestDay, checkCtx.Now)
	status := checker.StatusFor(bounds.Above(float64(gap)))
	latestStr := latestDay.Format(checker.DateLayout)

	r := checker.NewResult(name, status, fmt.Sprintf("%d days behind (latest: %s)", gap, latestStr)).
		WithEntity(t.Table).
		WithDetails(map[string]any{
			"table":       t.Table,
			"latest_date": latestStr,
			"days_behind": gap,
			"row_count":   count,
		})
	if status == checker.StatusPass {
		return r, nil
	}

	lost := float64(gap) * t.DailyValue
	return c.diagnoses.Attach(r, diagnosis.FreshnessStale, map[string]any{
		"source":      t.Label,
		"days":        gap,
		"latest":      latestStr,
		"daily_value": t.DailyValue,
		"lost":        lost,
		"has_value":   t.DailyValue > 0,
	}), nil
}
