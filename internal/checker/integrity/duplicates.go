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
	"strings"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// DuplicatesName is the catalog name of the duplicate check
const DuplicatesName = "duplicates"

// KeyTarget is a table with a declared, possibly composite, primary key.
type KeyTarget struct {
	Key   string
	Label string
	Table string

	KeyColumns []string

	// DateColumn restricts the count to the run range when set
	DateColumn string

	// AppendMode marks connectors that re-ingest overlapping windows;
	// IngestedColumn is the load timestamp used to keep the latest copy.
	AppendMode     bool
	IngestedColumn string
}

// DuplicatesChecker compares total rows with distinct key tuples.
type DuplicatesChecker struct {
	targets   []KeyTarget
	diagnoses *diagnosis.Catalog
}

// NewDuplicatesChecker creates a duplicate checker over targets.
func NewDuplicatesChecker(targets []KeyTarget, diagnoses *diagnosis.Catalog) *DuplicatesChecker {
	return &DuplicatesChecker{targets: targets, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *DuplicatesChecker) Name() string {
	return DuplicatesName
}

// Families returns the threshold families read by the check
func (c *DuplicatesChecker) Families() []string {
	return []string{threshold.FamilyDuplicateRate}
}

// Check evaluates every target.
func (c *DuplicatesChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyDuplicateRate)
	if err != nil {
		return nil, err
	}
	results := make([]checker.Result, 0, len(c.targets))
	for _, t := range c.targets {
		name := "Duplicates: " + t.Label
		r, err := c.checkTarget(ctx, checkCtx, t, bounds, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("table", t.Table).Warn("duplicate query failed")
			r = checker.Errored(name, err).WithEntity(t.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

// DuplicateSQL builds the count query for t. Distinct keys are counted
// through a SELECT DISTINCT subquery so composite keys work on every
// engine.
func DuplicateSQL(d datasource.Dialect, t KeyTarget) (string, error) {
	if len(t.KeyColumns) == 0 {
		return "", fmt.Errorf("no key columns declared for %s", t.Table)
	}
	table, err := d.QuoteIdent(t.Table)
	if err != nil {
		return "", err
	}
	keys, err := datasource.QuoteAll(d, t.KeyColumns...)
	if err != nil {
		return "", err
	}
	where, err := dateFilter(d, t.DateColumn)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT (SELECT COUNT(*) FROM %[1]s%[2]s) AS total_rows, "+
			"(SELECT COUNT(*) FROM (SELECT DISTINCT %[3]s FROM %[1]s%[2]s) AS k) AS distinct_keys",
		table, where, strings.Join(keys, ", ")), nil
}

func (c *DuplicatesChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t KeyTarget, bounds threshold.Bounds, name string) (checker.Result, error) {
	ds := checkCtx.DataSource
	sql, err := DuplicateSQL(ds.Dialect(), t)
	if err != nil {
		return checker.Result{}, err
	}
	q := withRange(datasource.NewQuery("duplicates/"+t.Key, sql), checkCtx.Range, t.DateColumn)
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, err
	}
	total, _, err := row.Int("total_rows")
	if err != nil {
		return checker.Result{}, err
	}
	distinct, _, err := row.Int("distinct_keys")
	if err != nil {
		return checker.Result{}, err
	}

	keyList := strings.Join(t.KeyColumns, ", ")
	if total == 0 {
		return checker.NewResult(name, checker.StatusWarning, "No data found for the specified period").
			WithEntity(t.Table).
			WithDetails(map[string]any{"total_rows": 0, "key": keyList}), nil
	}

	dups := total - distinct
	if dups < 0 {
		dups = 0
	}
	pct := rate(dups, total)
	details := map[string]any{
		"total_rows":     total,
		"distinct_keys":  distinct,
		"duplicate_rows": dups,
		"duplicate_rate": pct,
		"key":            keyList,
		"append_mode":    t.AppendMode,
	}
	if dups == 0 {
		return checker.NewResult(name, checker.StatusPass,
			fmt.Sprintf("No duplicates on (%s) across %s rows", keyList, diagnosis.Number(float64(total)))).
			WithEntity(t.Table).WithDetails(details), nil
	}

	status := checker.StatusFor(bounds.AtLeast(pct))
	msg := fmt.Sprintf("Duplicate rate: %.2f%% (%s duplicate rows of %s)",
		pct, diagnosis.Number(float64(dups)), diagnosis.Number(float64(total)))
	if status == checker.StatusPass {
		msg = fmt.Sprintf("No significant duplicates. Rate: %.4f%%", pct)
	}
	r := checker.NewResult(name, status, msg).WithEntity(t.Table).WithDetails(details)
	if status == checker.StatusPass {
		return r, nil
	}

	data := map[string]any{
		"table":      t.Table,
		"key":        keyList,
		"duplicates": dups,
		"rate":       pct,
	}
	if t.AppendMode {
		ingested := t.IngestedColumn
		if ingested == "" {
			ingested = "_airbyte_extracted_at"
		}
		data["ingested"] = ingested
		return c.diagnoses.Attach(r, diagnosis.DuplicatesAppendMode, data), nil
	}
	return c.diagnoses.Attach(r, diagnosis.DuplicatesUnexpected, data), nil
}
