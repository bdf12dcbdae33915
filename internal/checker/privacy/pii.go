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

// Package privacy implements the PII checks: cleartext exposure, hash
// format and coverage, cross-table hash consistency and the health of the
// scheduled hashing job.
package privacy

import (
	"context"
	"fmt"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
)

// PIIName is the catalog name of the PII exposure audit
const PIIName = "pii"

// emailPattern is bound as a parameter so the LIKE wildcard never appears
// in query text.
const emailPattern = "%@%"

// Predicate names a "looks like PII" test applied to a column.
type Predicate string

const (
	PredicateEmail        Predicate = "email"
	PredicatePhone        Predicate = "phone"
	PredicateNonEmpty     Predicate = "non_empty"
	PredicateJSONEmail    Predicate = "json_email"
	PredicateJSONNonEmpty Predicate = "json_non_empty"
)

const (
	defaultJSONKey        = "email"
	defaultPhoneMinLength = 3
)

// Valid reports whether p is a known predicate.
func (p Predicate) Valid() bool {
	switch p {
	case PredicateEmail, PredicatePhone, PredicateNonEmpty, PredicateJSONEmail, PredicateJSONNonEmpty:
		return true
	}
	return false
}

// PIITarget is one column audited for cleartext personal data.
type PIITarget struct {
	Table  string
	Column string

	// Field names the finding; defaults to Column. JSON predicates use it
	// to distinguish several keys of one column.
	Field string

	Predicate Predicate

	// JSONKey is the top-level key read by the JSON predicates
	JSONKey string

	// Description completes "contain ... in clear text"
	Description string
}

func (t PIITarget) field() string {
	if t.Field != "" {
		return t.Field
	}
	return t.Column
}

// PredicateSQL renders the predicate for d over the quoted column.
func PredicateSQL(d datasource.Dialect, t PIITarget) (string, error) {
	col, err := d.QuoteIdent(t.Column)
	if err != nil {
		return "", err
	}
	key := t.JSONKey
	if key == "" {
		key = defaultJSONKey
	}
	if (t.Predicate == PredicateJSONEmail || t.Predicate == PredicateJSONNonEmpty) && !datasource.ValidIdent(key) {
		return "", fmt.Errorf("%w: json key %q", datasource.ErrInvalidIdent, key)
	}

	switch t.Predicate {
	case PredicateEmail:
		return fmt.Sprintf("%s LIKE :email_pattern", col), nil
	case PredicatePhone:
		return fmt.Sprintf("%[1]s IS NOT NULL AND %[1]s <> '' AND %[2]s > %[3]d", col, d.Length(col), defaultPhoneMinLength), nil
	case PredicateNonEmpty:
		return fmt.Sprintf("%[1]s IS NOT NULL AND %[1]s <> ''", col), nil
	case PredicateJSONEmail:
		return fmt.Sprintf("%s LIKE :email_pattern", d.JSONText(col, key)), nil
	case PredicateJSONNonEmpty:
		return fmt.Sprintf("%[1]s IS NOT NULL AND %[1]s <> ''", d.JSONText(col, key)), nil
	default:
		return "", fmt.Errorf("unknown PII predicate %q", t.Predicate)
	}
}

// PIIChecker counts rows whose audited columns hold cleartext PII. Any
// exposure is a failure regardless of proportion.
type PIIChecker struct {
	targets   []PIITarget
	diagnoses *diagnosis.Catalog
}

// NewPIIChecker creates a PII audit over targets.
func NewPIIChecker(targets []PIITarget, diagnoses *diagnosis.Catalog) *PIIChecker {
	return &PIIChecker{targets: targets, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *PIIChecker) Name() string {
	return PIIName
}

// Families returns nil: the audit is zero tolerance and has no tiers.
func (c *PIIChecker) Families() []string {
	return nil
}

// Check audits every target, then appends "PII: OVERALL".
func (c *PIIChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	results := make([]checker.Result, 0, len(c.targets)+1)
	var exposed, failed, errored int64
	for _, t := range c.targets {
		name := fmt.Sprintf("PII: %s.%s", t.Table, t.field())
		r, n, err := c.checkTarget(ctx, checkCtx, t, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("field", t.Table+"."+t.field()).Warn("PII query failed")
			r = checker.Errored(name, err).WithEntity(t.Table)
			errored++
		}
		if n > 0 {
			exposed += n
			failed++
		}
		results = append(results, r)
	}

	overall := checker.NewResult("PII: OVERALL", checker.StatusPass, "Zero PII exposure across all audited columns")
	switch {
	case failed > 0:
		overall = checker.NewResult("PII: OVERALL", checker.StatusFail,
			fmt.Sprintf("CRITICAL: %s total PII exposures in %d columns", diagnosis.Number(float64(exposed)), failed))
	case errored > 0:
		overall = checker.NewResult("PII: OVERALL", checker.StatusWarning,
			fmt.Sprintf("No exposure found, but %d columns could not be audited", errored))
	}
	results = append(results, overall.WithDetails(map[string]any{
		"exposed_rows":    exposed,
		"exposed_columns": failed,
		"unaudited":       errored,
	}))
	return results, nil
}

func (c *PIIChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t PIITarget, name string) (checker.Result, int64, error) {
	ds := checkCtx.DataSource
	d := ds.Dialect()
	table, err := d.QuoteIdent(t.Table)
	if err != nil {
		return checker.Result{}, 0, err
	}
	pred, err := PredicateSQL(d, t)
	if err != nil {
		return checker.Result{}, 0, err
	}

	q := datasource.NewQuery(fmt.Sprintf("pii/%s.%s", t.Table, t.field()), fmt.Sprintf(
		"SELECT COUNT(*) AS total_rows, SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS exposed FROM %s", pred, table))
	if t.Predicate == PredicateEmail || t.Predicate == PredicateJSONEmail {
		q = q.With("email_pattern", emailPattern)
	}
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, 0, err
	}
	total, _, err := row.Int("total_rows")
	if err != nil {
		return checker.Result{}, 0, err
	}
	exposed, _, err := row.Int("exposed")
	if err != nil {
		return checker.Result{}, 0, err
	}

	details := map[string]any{"total_rows": total, "exposed": exposed, "predicate": string(t.Predicate)}
	if exposed == 0 {
		return checker.NewResult(name, checker.StatusPass,
			fmt.Sprintf("0 exposed (%s rows)", diagnosis.Number(float64(total)))).
			WithEntity(t.Table).WithDetails(details), 0, nil
	}

	desc := t.Description
	if desc == "" {
		desc = "personal data"
	}
	r := checker.NewResult(name, checker.StatusFail,
		fmt.Sprintf("%s records with cleartext PII!", diagnosis.Number(float64(exposed)))).
		WithEntity(t.Table).
		WithDetails(details)
	return c.diagnoses.Attach(r, diagnosis.PIIExposed, map[string]any{
		"table":       t.Table,
		"column":      t.field(),
		"description": desc,
		"count":       exposed,
	}), exposed, nil
}
