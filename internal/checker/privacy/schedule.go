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

package privacy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// ScheduleName is the catalog name of the scheduled job health check
const ScheduleName = "schedule"

const (
	DefaultScheduleWindow = time.Hour
	DefaultExpectedRuns   = 12
	DefaultMaxStaleness   = 10 * time.Minute
)

// ErrNoScheduleSQL is returned on engines without a built-in job history
// query when none is configured.
var ErrNoScheduleSQL = errors.New("no job history query for this engine; configure schedule.sql")

// PGCronSQL reads pg_cron's run history. It yields total_runs and errors
// inside the window and the end time of the latest successful run ever.
const PGCronSQL = `SELECT COUNT(*) AS total_runs,
       COALESCE(SUM(CASE WHEN d.status = 'failed' THEN 1 ELSE 0 END), 0) AS errors,
       (SELECT MAX(s.end_time) FROM cron.job_run_details AS s
          JOIN cron.job AS sj ON sj.jobid = s.jobid
          WHERE s.status = 'succeeded' AND sj.jobname LIKE :job_pattern) AS last_success
FROM cron.job_run_details AS d
JOIN cron.job AS j ON j.jobid = d.jobid
WHERE d.start_time >= :since AND j.jobname LIKE :job_pattern`

// ScheduleTarget describes a recurring job and its expected cadence.
type ScheduleTarget struct {
	Job string

	// Pattern is matched with LIKE against job names; defaults to Job
	Pattern string

	Window       time.Duration
	ExpectedRuns int
	MaxStaleness time.Duration

	// SQL overrides the job history query. It receives :since and
	// :job_pattern and must yield total_runs, errors and last_success.
	SQL string
}

func (t ScheduleTarget) withDefaults() ScheduleTarget {
	if t.Pattern == "" {
		t.Pattern = t.Job
	}
	if t.Window <= 0 {
		t.Window = DefaultScheduleWindow
	}
	if t.ExpectedRuns <= 0 {
		t.ExpectedRuns = DefaultExpectedRuns
	}
	if t.MaxStaleness <= 0 {
		t.MaxStaleness = DefaultMaxStaleness
	}
	return t
}

// ScheduleChecker watches the job that hashes PII. A stopped job is
// reported with the same urgency as exposed PII.
type ScheduleChecker struct {
	target    ScheduleTarget
	diagnoses *diagnosis.Catalog
}

// NewScheduleChecker creates a schedule checker for target.
func NewScheduleChecker(target ScheduleTarget, diagnoses *diagnosis.Catalog) *ScheduleChecker {
	return &ScheduleChecker{target: target.withDefaults(), diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *ScheduleChecker) Name() string {
	return ScheduleName
}

// Families returns the threshold families read by Check.
func (c *ScheduleChecker) Families() []string {
	return []string{threshold.FamilyJobShortfall}
}

// Check yields the frequency, errors and recency results.
func (c *ScheduleChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyJobShortfall)
	if err != nil {
		return nil, err
	}
	t := c.target
	ds := checkCtx.DataSource

	sql := t.SQL
	if sql == "" {
		if ds.Dialect() != datasource.Postgres {
			return nil, ErrNoScheduleSQL
		}
		sql = PGCronSQL
	}
	since := checkCtx.Now.Add(-t.Window)
	q := datasource.NewQuery("schedule/"+t.Job, sql).
		With("since", since).
		With("job_pattern", t.Pattern)
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return nil, err
	}
	runs, _, err := row.Int("total_runs")
	if err != nil {
		return nil, err
	}
	failures, _, err := row.Int("errors")
	if err != nil {
		return nil, err
	}
	last, hasLast, err := row.Time("last_success")
	if err != nil {
		return nil, err
	}

	window := formatWindow(t.Window)
	return []checker.Result{
		c.frequency(t, runs, window, bounds),
		c.errors(t, failures, window),
		c.recency(t, checkCtx.Now, last, hasLast),
	}, nil
}

func (c *ScheduleChecker) frequency(t ScheduleTarget, runs int64, window string, bounds threshold.Bounds) checker.Result {
	name := "Schedule: frequency"
	shortfall := math.Max(0, float64(int64(t.ExpectedRuns)-runs)*100/float64(t.ExpectedRuns))
	status := checker.StatusFor(bounds.AtLeast(shortfall))
	r := checker.NewResult(name, status, fmt.Sprintf("%d runs in last %s (expected ~%d)", runs, window, t.ExpectedRuns)).
		WithEntity(t.Job).
		WithDetails(map[string]any{"runs": runs, "expected": t.ExpectedRuns, "shortfall_pct": shortfall})
	if status == checker.StatusPass {
		return r
	}
	return c.diagnoses.Attach(r, diagnosis.ScheduleFrequency, map[string]any{
		"job":      t.Job,
		"runs":     runs,
		"window":   window,
		"expected": t.ExpectedRuns,
	})
}

func (c *ScheduleChecker) errors(t ScheduleTarget, failures int64, window string) checker.Result {
	name := "Schedule: errors"
	if failures == 0 {
		return checker.NewResult(name, checker.StatusPass, fmt.Sprintf("No failed runs in last %s", window)).WithEntity(t.Job)
	}
	r := checker.NewResult(name, checker.StatusFail, fmt.Sprintf("%d failed runs in last %s", failures, window)).
		WithEntity(t.Job).
		WithDetails(map[string]any{"errors": failures})
	return c.diagnoses.Attach(r, diagnosis.ScheduleErrors, map[string]any{
		"job":      t.Job,
		"failures": failures,
		"window":   window,
	})
}

func (c *ScheduleChecker) recency(t ScheduleTarget, now, last time.Time, hasLast bool) checker.Result {
	name := "Schedule: recency"
	maxAge := formatWindow(t.MaxStaleness)
	if hasLast {
		minutes := int64(now.Sub(last) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		msg := fmt.Sprintf("Last success %d minutes ago", minutes)
		if time.Duration(minutes)*time.Minute <= t.MaxStaleness {
			return checker.NewResult(name, checker.StatusPass, msg).WithEntity(t.Job)
		}
		r := checker.NewResult(name, checker.StatusFail, "URGENT: "+msg).
			WithEntity(t.Job).
			WithDetails(map[string]any{"minutes_since_last": minutes, "last_success": last.UTC()})
		return c.diagnoses.Attach(r, diagnosis.ScheduleStale, map[string]any{"job": t.Job, "minutes": minutes, "max": maxAge})
	}
	r := checker.NewResult(name, checker.StatusFail, "URGENT: no successful run recorded").WithEntity(t.Job)
	return c.diagnoses.Attach(r, diagnosis.ScheduleStale, map[string]any{"job": t.Job, "minutes": "an unknown number of", "max": maxAge})
}

// formatWindow renders whole hours as "1h" and anything else in minutes.
func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int64(d/time.Minute))
}
