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
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// NullsName is the catalog name of the null-rate check
const NullsName = "nulls"

// FieldTarget is a critical column and the capability that depends on it.
type FieldTarget struct {
	Table  string
	Column string

	// Purpose completes "This ..." in the impact, e.g. "breaks revenue
	// calculation"
	Purpose string

	DateColumn string
}

// NullsChecker measures the share of NULLs in critical fields.
type NullsChecker struct {
	fields    []FieldTarget
	diagnoses *diagnosis.Catalog
}

// NewNullsChecker creates a null-rate checker over fields.
func NewNullsChecker(fields []FieldTarget, diagnoses *diagnosis.Catalog) *NullsChecker {
	return &NullsChecker{fields: fields, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *NullsChecker) Name() string {
	return NullsName
}

// Families returns the threshold families read by the check
func (c *NullsChecker) Families() []string {
	return []string{threshold.FamilyNullRate}
}

// Check evaluates every field.
func (c *NullsChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyNullRate)
	if err != nil {
		return nil, err
	}
	results := make([]checker.Result, 0, len(c.fields))
	for _, f := range c.fields {
		name := fmt.Sprintf("Nulls: %s.%s", f.Table, f.Column)
		r, err := c.checkField(ctx, checkCtx, f, bounds, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("field", f.Table+"."+f.Column).Warn("null-rate query failed")
			r = checker.Errored(name, err).WithEntity(f.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *NullsChecker) checkField(ctx context.Context, checkCtx *checker.CheckContext, f FieldTarget, bounds threshold.Bounds, name string) (checker.Result, error) {
	ds := checkCtx.DataSource
	d := ds.Dialect()
	table, err := d.QuoteIdent(f.Table)
	if err != nil {
		return checker.Result{}, err
	}
	col, err := d.QuoteIdent(f.Column)
	if err != nil {
		return checker.Result{}, err
	}
	where, err := dateFilter(d, f.DateColumn)
	if err != nil {
		return checker.Result{}, err
	}

	q := withRange(datasource.NewQuery(fmt.Sprintf("nulls/%s.%s", f.Table, f.Column), fmt.Sprintf(
		"SELECT COUNT(*) AS total_rows, COUNT(*) - COUNT(%s) AS null_count FROM %s%s", col, table, where)),
		checkCtx.Range, f.DateColumn)
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, err
	}
	total, _, err := row.Int("total_rows")
	if err != nil {
		return checker.Result{}, err
	}
	nulls, _, err := row.Int("null_count")
	if err != nil {
		return checker.Result{}, err
	}

	if total == 0 {
		return checker.NewResult(name, checker.StatusWarning, "No data found for the specified period").
			WithEntity(f.Table).
			WithDetails(map[string]any{"total_rows": 0}), nil
	}

	pct := rate(nulls, total)
	details := map[string]any{
		"total_rows": total,
		"null_count": nulls,
		"null_rate":  pct,
		"purpose":    f.Purpose,
	}
	if nulls == 0 {
		return checker.NewResult(name, checker.StatusPass,
			fmt.Sprintf("No NULLs in %s across %s rows", f.Column, diagnosis.Number(float64(total)))).
			WithEntity(f.Table).WithDetails(details), nil
	}

	status := checker.StatusFor(bounds.AtLeast(pct))
	r := checker.NewResult(name, status,
		fmt.Sprintf("NULL rate in '%s': %.1f%% (%s of %s rows)", f.Column, pct,
			diagnosis.Number(float64(nulls)), diagnosis.Number(float64(total)))).
		WithEntity(f.Table).
		WithDetails(details)
	if status == checker.StatusPass {
		return r, nil
	}
	purpose := f.Purpose
	if purpose == "" {
		purpose = "leaves downstream reports incomplete"
	}
	return c.diagnoses.Attach(r, diagnosis.NullsMissing, map[string]any{
		"table":   f.Table,
		"column":  f.Column,
		"purpose": purpose,
		"rate":    pct,
		"nulls":   nulls,
	}), nil
}
