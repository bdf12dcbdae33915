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
	"fmt"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// HashesName is the catalog name of the hash format and coverage check
const HashesName = "hashes"

// SHA256HexLength is the length of a hex-encoded SHA-256 digest.
const SHA256HexLength = 64

// HashTarget is a column expected to hold hex digests.
type HashTarget struct {
	Table  string
	Column string

	// Length is the expected digest length; defaults to SHA256HexLength
	Length int

	// ExpectedMissingReason explains why some rows legitimately have no
	// hash (e.g. "guest checkouts have no email").
	ExpectedMissingReason string
}

func (t HashTarget) length() int {
	if t.Length > 0 {
		return t.Length
	}
	return SHA256HexLength
}

// HashChecker validates digest length and the share of rows without a hash.
type HashChecker struct {
	targets   []HashTarget
	diagnoses *diagnosis.Catalog
}

// NewHashChecker creates a hash checker over targets.
func NewHashChecker(targets []HashTarget, diagnoses *diagnosis.Catalog) *HashChecker {
	return &HashChecker{targets: targets, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *HashChecker) Name() string {
	return HashesName
}

// Families returns the threshold families read by Check.
func (c *HashChecker) Families() []string {
	return []string{threshold.FamilyHashMissing}
}

// Check emits a "Hash format" and a "Hash coverage" result per target.
func (c *HashChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyHashMissing)
	if err != nil {
		return nil, err
	}
	results := make([]checker.Result, 0, 2*len(c.targets))
	for _, t := range c.targets {
		key := t.Table + "." + t.Column
		rs, err := c.checkTarget(ctx, checkCtx, t, bounds)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("column", key).Warn("hash query failed")
			rs = []checker.Result{checker.Errored("Hash format: "+key, err).WithEntity(t.Table)}
		}
		results = append(results, rs...)
	}
	return results, nil
}

func (c *HashChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t HashTarget, bounds threshold.Bounds) ([]checker.Result, error) {
	ds := checkCtx.DataSource
	d := ds.Dialect()
	quoted, err := datasource.QuoteAll(d, t.Table, t.Column)
	if err != nil {
		return nil, err
	}
	table, col := quoted[0], quoted[1]

	q := datasource.NewQuery(fmt.Sprintf("hashes/%s.%s", t.Table, t.Column), fmt.Sprintf(
		`SELECT COUNT(*) AS total_rows,
       SUM(CASE WHEN %[1]s IS NULL OR %[1]s = '' THEN 1 ELSE 0 END) AS missing,
       SUM(CASE WHEN %[1]s <> '' AND %[2]s <> :length THEN 1 ELSE 0 END) AS malformed
FROM %[3]s`, col, d.Length(col), table)).
		With("length", t.length())
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return nil, err
	}
	total, _, err := row.Int("total_rows")
	if err != nil {
		return nil, err
	}
	missing, _, err := row.Int("missing")
	if err != nil {
		return nil, err
	}
	malformed, _, err := row.Int("malformed")
	if err != nil {
		return nil, err
	}

	key := t.Table + "." + t.Column
	details := map[string]any{"total_rows": total, "missing": missing, "malformed": malformed}

	format := checker.NewResult("Hash format: "+key, checker.StatusPass,
		fmt.Sprintf("All %s hashes are %d-char digests", diagnosis.Number(float64(total-missing)), t.length())).
		WithEntity(t.Table).WithDetails(details)
	if malformed > 0 {
		format = checker.NewResult("Hash format: "+key, checker.StatusFail,
			fmt.Sprintf("%s hashes have wrong length", diagnosis.Number(float64(malformed)))).
			WithEntity(t.Table).WithDetails(details)
		format = c.diagnoses.Attach(format, diagnosis.HashMalformed, map[string]any{
			"count":  malformed,
			"table":  t.Table,
			"column": t.Column,
			"length": t.length(),
		})
	}

	return []checker.Result{format, c.coverage(t, key, total, missing, bounds, details)}, nil
}

// coverage never fails: missing hashes degrade joins but are not an
// exposure, so the critical tier only changes the diagnosis.
func (c *HashChecker) coverage(t HashTarget, key string, total, missing int64, bounds threshold.Bounds, details map[string]any) checker.Result {
	name := "Hash coverage: " + key
	if total == 0 {
		return checker.NewResult(name, checker.StatusWarning, "No rows to evaluate").WithEntity(t.Table)
	}
	missingRate := float64(missing) * 100 / float64(total)
	msg := fmt.Sprintf("%.1f%% of rows have no hash (%s of %s)", missingRate,
		diagnosis.Number(float64(missing)), diagnosis.Number(float64(total)))

	level := bounds.AtLeast(missingRate)
	if level == threshold.LevelOK {
		return checker.NewResult(name, checker.StatusPass, msg).WithEntity(t.Table).WithDetails(details)
	}

	r := checker.NewResult(name, checker.StatusWarning, msg).WithEntity(t.Table).WithDetails(details)
	data := map[string]any{"rate": missingRate, "table": t.Table, "column": t.Column}
	if level == threshold.LevelCritical {
		return c.diagnoses.Attach(r, diagnosis.HashJobBroken, data)
	}
	reason := t.ExpectedMissingReason
	if reason == "" {
		reason = "the source value was absent"
	}
	data["reason"] = reason
	return c.diagnoses.Attach(r, diagnosis.HashExpectedMissing, data)
}
