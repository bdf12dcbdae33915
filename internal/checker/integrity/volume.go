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

package integrity

import (
	"context"
	"fmt"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
)

// VolumeName is the catalog name of the record volume check
const VolumeName = "volume"

// VolumeTarget is a dated table whose row count is reported.
type VolumeTarget struct {
	Key        string
	Label      string
	Table      string
	DateColumn string
}

// VolumeChecker reports row and day counts for the run range.
type VolumeChecker struct {
	targets   []VolumeTarget
	diagnoses *diagnosis.Catalog
}

// NewVolumeChecker creates a volume checker over targets.
func NewVolumeChecker(targets []VolumeTarget, diagnoses *diagnosis.Catalog) *VolumeChecker {
	return &VolumeChecker{targets: targets, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *VolumeChecker) Name() string {
	return VolumeName
}

// Families returns nil; volume has no thresholds.
func (c *VolumeChecker) Families() []string {
	return nil
}

// Check evaluates every target.
func (c *VolumeChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	results := make([]checker.Result, 0, len(c.targets))
	for _, t := range c.targets {
		name := "Volume: " + t.Label
		r, err := c.checkTarget(ctx, checkCtx, t, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("table", t.Table).Warn("volume query failed")
			r = checker.Errored(name, err).WithEntity(t.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *VolumeChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t VolumeTarget, name string) (checker.Result, error) {
	if t.DateColumn == "" {
		return checker.Result{}, fmt.Errorf("no date column configured for %s", t.Table)
	}
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
	where, err := dateFilter(d, t.DateColumn)
	if err != nil {
		return checker.Result{}, err
	}

	q := withRange(datasource.NewQuery("volume/"+t.Key, fmt.Sprintf(
		"SELECT COUNT(*) AS total_count, COUNT(DISTINCT CAST(%s AS DATE)) AS unique_days FROM %s%s",
		col, table, where)), checkCtx.Range, t.DateColumn)
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, err
	}
	total, _, err := row.Int("total_count")
	if err != nil {
		return checker.Result{}, err
	}
	days, _, err := row.Int("unique_days")
	if err != nil {
		return checker.Result{}, err
	}

	details := map[string]any{"total_count": total, "unique_days": days}
	if total == 0 {
		r := checker.NewResult(name, checker.StatusWarning, "No records found for the specified period").
			WithEntity(t.Table).WithDetails(details)
		return c.diagnoses.Attach(r, diagnosis.VolumeEmpty, map[string]any{
			"source": t.Label,
			"table":  t.Table,
			"period": checkCtx.Range.String(),
		}), nil
	}
	return checker.NewResult(name, checker.StatusPass,
		fmt.Sprintf("%s records across %d days", diagnosis.Number(float64(total)), days)).
		WithEntity(t.Table).WithDetails(details), nil
}
