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

// PriceName is the catalog name of the price format check
const PriceName = "price_format"

// PriceTarget is a table carrying a monetary amount per row.
type PriceTarget struct {
	Key         string
	Label       string
	Table       string
	PriceColumn string
	DateColumn  string
}

// PriceChecker detects amounts loaded in cents instead of dollars and
// isolated extreme values.
type PriceChecker struct {
	targets   []PriceTarget
	diagnoses *diagnosis.Catalog
}

// NewPriceChecker creates a price format checker over targets.
func NewPriceChecker(targets []PriceTarget, diagnoses *diagnosis.Catalog) *PriceChecker {
	return &PriceChecker{targets: targets, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *PriceChecker) Name() string {
	return PriceName
}

// Families returns the threshold families read by the check
func (c *PriceChecker) Families() []string {
	return []string{threshold.FamilyPriceAnomaly}
}

// Check evaluates every target.
func (c *PriceChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyPriceAnomaly)
	if err != nil {
		return nil, err
	}
	median, ok := bounds.Get(threshold.ExtraMedianThreshold)
	if !ok {
		return nil, &threshold.ConfigError{
			Family: threshold.FamilyPriceAnomaly,
			Err:    fmt.Errorf("missing extra bound %q", threshold.ExtraMedianThreshold),
		}
	}

	results := make([]checker.Result, 0, len(c.targets))
	for _, t := range c.targets {
		name := "Price format: " + t.Label
		r, err := c.checkTarget(ctx, checkCtx, t, bounds, median, name)
		if err != nil {
			checkCtx.Logger.WithError(err).WithField("table", t.Table).Warn("price query failed")
			r = checker.Errored(name, err).WithEntity(t.Table)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *PriceChecker) checkTarget(ctx context.Context, checkCtx *checker.CheckContext, t PriceTarget, bounds threshold.Bounds, medianThreshold float64, name string) (checker.Result, error) {
	ds := checkCtx.DataSource
	d := ds.Dialect()
	table, err := d.QuoteIdent(t.Table)
	if err != nil {
		return checker.Result{}, err
	}
	col, err := d.QuoteIdent(t.PriceColumn)
	if err != nil {
		return checker.Result{}, err
	}
	price := d.Float(col)
	where, err := dateFilter(d, t.DateColumn, price+" IS NOT NULL")
	if err != nil {
		return checker.Result{}, err
	}

	q := withRange(datasource.NewQuery("price_format/"+t.Key, fmt.Sprintf(
		"SELECT COUNT(*) AS priced_rows, %[1]s AS median_price, MAX(%[2]s) AS max_price, "+
			"SUM(CASE WHEN %[2]s > :warning THEN 1 ELSE 0 END) AS over_warning, "+
			"SUM(CASE WHEN %[2]s > :critical THEN 1 ELSE 0 END) AS over_critical "+
			"FROM %[3]s%[4]s",
		d.Median(price), price, table, where)), checkCtx.Range, t.DateColumn).
		With("warning", bounds.Warning).
		With("critical", bounds.Critical)

	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return checker.Result{}, err
	}
	count, _, err := row.Int("priced_rows")
	if err != nil {
		return checker.Result{}, err
	}
	if count == 0 {
		return checker.NewResult(name, checker.StatusWarning, "No price data found for the specified period").
			WithEntity(t.Table), nil
	}
	medianPrice, _, err := row.Float("median_price")
	if err != nil {
		return checker.Result{}, err
	}
	maxPrice, _, err := row.Float("max_price")
	if err != nil {
		return checker.Result{}, err
	}
	overWarning, _, err := row.Int("over_warning")
	if err != nil {
		return checker.Result{}, err
	}
	overCritical, _, err := row.Int("over_critical")
	if err != nil {
		return checker.Result{}, err
	}

	details := map[string]any{
		"priced_rows":   count,
		"median_price":  medianPrice,
		"max_price":     maxPrice,
		"over_warning":  overWarning,
		"over_critical": overCritical,
	}
	base := func(status checker.Status, msg string) checker.Result {
		return checker.NewResult(name, status, msg).WithEntity(t.Table).WithDetails(details)
	}

	switch {
	case medianPrice > medianThreshold:
		r := base(checker.StatusFail, "Prices may be in CENTS. Median: "+diagnosis.Money(medianPrice))
		return c.diagnoses.Attach(r, diagnosis.PriceCents, map[string]any{
			"table":     t.Table,
			"column":    t.PriceColumn,
			"median":    medianPrice,
			"threshold": medianThreshold,
		}), nil
	case overCritical > 0:
		r := base(checker.StatusFail, fmt.Sprintf("%d orders exceed %s", overCritical, diagnosis.Money(bounds.Critical)))
		return c.diagnoses.Attach(r, diagnosis.PriceOutliers, map[string]any{
			"table":  t.Table,
			"column": t.PriceColumn,
			"count":  overCritical,
			"bound":  bounds.Critical,
		}), nil
	case overWarning > 0:
		r := base(checker.StatusWarning, fmt.Sprintf("%d orders exceed %s", overWarning, diagnosis.Money(bounds.Warning)))
		return c.diagnoses.Attach(r, diagnosis.PriceOutliers, map[string]any{
			"table":  t.Table,
			"column": t.PriceColumn,
			"count":  overWarning,
			"bound":  bounds.Warning,
		}), nil
	default:
		return base(checker.StatusPass, "Price format OK. Median: "+diagnosis.Money(medianPrice)), nil
	}
}
