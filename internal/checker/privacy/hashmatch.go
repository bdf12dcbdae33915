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

// HashMatchName is the catalog name of the cross-table hash consistency check
const HashMatchName = "hash_match"

// EmptyStringSHA256 is the digest of "". Rows hashed from an empty value
// all share it, so it is excluded from matching.
const EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// HashColumn locates a hash column.
type HashColumn struct {
	Table  string
	Column string
}

func (h HashColumn) String() string {
	return h.Table + "." + h.Column
}

// HashPair compares the distinct hashes of Left against Right.
type HashPair struct {
	Name  string
	Left  HashColumn
	Right HashColumn
}

// HashMatchChecker measures how many distinct hashes of one table are
// present in another. Two jobs that normalize input differently produce
// disjoint digests for the same person.
type HashMatchChecker struct {
	pairs     []HashPair
	diagnoses *diagnosis.Catalog
}

// NewHashMatchChecker creates a hash match checker over pairs.
func NewHashMatchChecker(pairs []HashPair, diagnoses *diagnosis.Catalog) *HashMatchChecker {
	return &HashMatchChecker{pairs: pairs, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *HashMatchChecker) Name() string {
	return HashMatchName
}

// Families returns the threshold families read by Check.
func (c *HashMatchChecker) Families() []string {
	return []string{threshold.FamilyHashMismatch}
}

// Check evaluates every pair.
func (c *HashMatchChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyHashMismatch)
	if err != nil {
		return nil, err
	}
	results := make([]checker.Result, 0, len(c.pairs))
	for _, p := range c.pairs {
		name := "Hash match: " + p.Name
		r, err := c.checkPair(ctx, checkCtx, p, name, bounds)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("pair", p.Name).Warn("hash match query failed")
			r = checker.Errored(name, err).WithEntity(p.Left.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

// HashMatchSQL renders the match query for p.
func HashMatchSQL(d datasource.Dialect, p HashPair) (string, error) {
	q, err := datasource.QuoteAll(d, p.Left.Table, p.Left.Column, p.Right.Table, p.Right.Column)
	if err != nil {
		return "", err
	}
	lt, lc, rt, rc := q[0], q[1], q[2], q[3]
	return fmt.Sprintf(`SELECT
  (SELECT COUNT(DISTINCT %[2]s) FROM %[1]s WHERE %[2]s IS NOT NULL AND %[2]s <> :empty_hash) AS left_hashes,
  (SELECT COUNT(DISTINCT l.%[2]s) FROM %[1]s AS l
     JOIN %[3]s AS r ON l.%[2]s = r.%[4]s
     WHERE l.%[2]s IS NOT NULL AND l.%[2]s <> :empty_hash) AS matched`, lt, lc, rt, rc), nil
}

func (c *HashMatchChecker) checkPair(ctx context.Context, checkCtx *checker.CheckContext, p HashPair, name string, bounds threshold.Bounds) (checker.Result, error) {
	ds := checkCtx.DataSource
	sql, err := HashMatchSQL(ds.Dialect(), p)
	if err != nil {
		return checker.Result{}, err
	}
	q := datasource.NewQuery("hash_match/"+p.Name, sql).With("empty_hash", EmptyStringSHA256)
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, err
	}
	left, _, err := row.Int("left_hashes")
	if err != nil {
		return checker.Result{}, err
	}
	matched, _, err := row.Int("matched")
	if err != nil {
		return checker.Result{}, err
	}

	details := map[string]any{"left_hashes": left, "matched": matched}
	if left == 0 {
		return checker.NewResult(name, checker.StatusWarning,
			fmt.Sprintf("No hashes in %s to match", p.Left)).
			WithEntity(p.Left.Table).WithDetails(details), nil
	}

	matchRate := float64(matched) * 100 / float64(left)
	details["match_rate"] = matchRate
	status := checker.StatusFor(bounds.AtLeast(100 - matchRate))
	r := checker.NewResult(name, status,
		fmt.Sprintf("%.1f%% match rate (%s of %s distinct hashes)", matchRate,
			diagnosis.Number(float64(matched)), diagnosis.Number(float64(left)))).
		WithEntity(p.Left.Table).
		WithDetails(details)
	if status == checker.StatusPass {
		return r, nil
	}

	key := diagnosis.HashMatchPartial
	if status == checker.StatusFail {
		key = diagnosis.HashMatchNormalization
	}
	return c.diagnoses.Attach(r, key, map[string]any{
		"match_rate": matchRate,
		"left":       p.Left.String(),
		"right":      p.Right.String(),
	}), nil
}
