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

// Package crosssource reconciles warehouse totals against the figures an
// external platform reports for the same entity and period.
package crosssource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// Name is the catalog name of the cross-source check
const Name = "cross_source"

// Authority is an external source of truth for platform metrics. ok is
// false when the platform has no value for the metric.
type Authority interface {
	FetchMetric(ctx context.Context, entity, metric string, start, end time.Time) (value float64, ok bool, err error)
}

// Resetter is implemented by authorities that cache platform figures.
// Check resets them first so every run reads current values.
type Resetter interface {
	Reset()
}

// Metric maps a platform metric onto a warehouse column that is summed.
type Metric struct {
	Name   string
	Column string
}

// Source is one platform compared against one warehouse table.
type Source struct {
	Key       string
	Label     string
	Authority Authority

	Table      string
	DateColumn string

	// EntityColumn restricts warehouse sums to one entity (ad account,
	// advertiser). Empty means the table holds a single entity.
	EntityColumn string
	Entities     []string

	Metrics []Metric
}

func (s Source) entities() []string {
	if len(s.Entities) == 0 {
		return []string{""}
	}
	return s.Entities
}

// Checker compares every source and entity.
type Checker struct {
	sources   []Source
	diagnoses *diagnosis.Catalog
}

// NewChecker creates a cross-source checker.
func NewChecker(sources []Source, diagnoses *diagnosis.Catalog) *Checker {
	return &Checker{sources: sources, diagnoses: diagnosis.OrDefault(diagnoses)}
}

// Name returns the checker identifier
func (c *Checker) Name() string {
	return Name
}

// Families returns the threshold families read by Check.
func (c *Checker) Families() []string {
	return []string{threshold.FamilyCrossSource}
}

// Check yields one result per (source, entity) with at least one
// comparable metric. A source where nothing was comparable yields a single
// WARNING instead.
func (c *Checker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilyCrossSource)
	if err != nil {
		return nil, err
	}
	for _, s := range c.sources {
		if r, ok := s.Authority.(Resetter); ok {
			r.Reset()
		}
	}
	var results []checker.Result
	for _, s := range c.sources {
		results = append(results, c.checkSource(ctx, checkCtx, s, bounds)...)
	}
	return results, nil
}

func (c *Checker) checkSource(ctx context.Context, checkCtx *checker.CheckContext, s Source, bounds threshold.Bounds) []checker.Result {
	var results []checker.Result
	for _, entity := range s.entities() {
		name := resultName(s, entity)
		log := checkCtx.Logger.WithFields(logging.Fields{"source": s.Key, "entity": entity})

		comparisons, err := c.compareEntity(ctx, checkCtx, s, entity, bounds)
		if err != nil {
			log.WithError(err).Warn("cross-source comparison failed")
			results = append(results, checker.Errored(name, err).WithEntity(entityLabel(s, entity)))
			continue
		}
		if allSkipped(comparisons) {
			log.Debug("no comparable activity")
			continue
		}
		results = append(results, c.entityResult(s, entity, name, comparisons))
	}

	if len(results) == 0 {
		r := checker.NewResult("Cross-source: "+s.Label, checker.StatusWarning,
			"No comparable activity on either side for the period").WithEntity(s.Key)
		results = append(results, c.diagnoses.Attach(r, diagnosis.CrossSourceInactive, map[string]any{"source": s.Label}))
	}
	return results
}

func (c *Checker) compareEntity(ctx context.Context, checkCtx *checker.CheckContext, s Source, entity string, bounds threshold.Bounds) ([]Comparison, error) {
	warehouse, err := warehouseTotals(ctx, checkCtx, s, entity)
	if err != nil {
		return nil, err
	}
	start, end := checkCtx.Range.Start, checkCtx.Range.End
	out := make([]Comparison, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		v, ok, err := s.Authority.FetchMetric(ctx, entity, m.Name, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", s.Label, m.Name, err)
		}
		var source *float64
		if ok {
			source = Value(v)
		}
		out = append(out, Compare(m.Name, source, warehouse[m.Name], bounds))
	}
	return out, nil
}

func (c *Checker) entityResult(s Source, entity, name string, comparisons []Comparison) checker.Result {
	var (
		parts      []string
		mismatched []string
		emptied    []string
		worstLevel threshold.Level
		worstDiff  float64
	)
	details := make(map[string]any, len(comparisons))
	for _, cmp := range comparisons {
		details[cmp.Metric] = cmp
		if cmp.Verdict == VerdictSkip {
			parts = append(parts, fmt.Sprintf("%s SKIP", cmp.Metric))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s (%.2f%%)", cmp.Metric, cmp.Verdict, cmp.DiffPct))
		if cmp.Level > worstLevel {
			worstLevel = cmp.Level
		}
		if cmp.Verdict != VerdictMismatch {
			continue
		}
		if cmp.SourceEmpty {
			emptied = append(emptied, cmp.Metric)
			continue
		}
		mismatched = append(mismatched, cmp.Metric)
		if cmp.DiffPct > worstDiff {
			worstDiff = cmp.DiffPct
		}
	}

	label := entityLabel(s, entity)
	r := checker.NewResult(name, checker.StatusFor(worstLevel), strings.Join(parts, ", ")).
		WithEntity(label).
		WithDetails(details)
	switch {
	case len(mismatched) > 0:
		return c.diagnoses.Attach(r, diagnosis.CrossSourceMismatch, map[string]any{
			"source":  s.Label,
			"entity":  label,
			"metrics": mismatched,
			"worst":   worstDiff,
		})
	case len(emptied) > 0:
		return c.diagnoses.Attach(r, diagnosis.CrossSourceSourceEmpty, map[string]any{
			"source":  s.Label,
			"entity":  label,
			"metrics": emptied,
		})
	}
	return r
}

// WarehouseSQL sums every metric column of s over the run range, for one
// entity when s has an entity column.
func WarehouseSQL(d datasource.Dialect, s Source) (string, error) {
	table, err := d.QuoteIdent(s.Table)
	if err != nil {
		return "", err
	}
	date, err := d.QuoteIdent(s.DateColumn)
	if err != nil {
		return "", err
	}
	sums := make([]string, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		if !datasource.ValidIdent(m.Name) || strings.Contains(m.Name, ".") {
			return "", fmt.Errorf("%w: metric %q", datasource.ErrInvalidIdent, m.Name)
		}
		col, err := d.QuoteIdent(m.Column)
		if err != nil {
			return "", err
		}
		sums = append(sums, fmt.Sprintf("COALESCE(SUM(%s), 0) AS %s", d.Float(col), m.Name))
	}
	where := fmt.Sprintf("CAST(%s AS DATE) BETWEEN :start AND :end", date)
	if s.EntityColumn != "" {
		ec, err := d.QuoteIdent(s.EntityColumn)
		if err != nil {
			return "", err
		}
		where += fmt.Sprintf(" AND CAST(%s AS VARCHAR) = :entity", ec)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(sums, ", "), table, where), nil
}

func warehouseTotals(ctx context.Context, checkCtx *checker.CheckContext, s Source, entity string) (map[string]*float64, error) {
	ds := checkCtx.DataSource
	sql, err := WarehouseSQL(ds.Dialect(), s)
	if err != nil {
		return nil, err
	}
	name := "cross_source/" + s.Key
	if entity != "" {
		name += "/" + entity
	}
	q := datasource.NewQuery(name, sql).
		With("start", checkCtx.Range.Start.Format(checker.DateLayout)).
		With("end", checkCtx.Range.End.Format(checker.DateLayout))
	if s.EntityColumn != "" {
		q = q.With("entity", entity)
	}
	row, err := datasource.ExecuteOne(ctx, ds, q)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*float64, len(s.Metrics))
	for _, m := range s.Metrics {
		v, ok, err := row.Float(m.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[m.Name] = Value(v)
		}
	}
	return out, nil
}

func allSkipped(cs []Comparison) bool {
	for _, c := range cs {
		if c.Verdict != VerdictSkip {
			return false
		}
	}
	return true
}

func resultName(s Source, entity string) string {
	if entity == "" {
		return "Cross-source: " + s.Label
	}
	return fmt.Sprintf("Cross-source: %s %s", s.Label, entity)
}

func entityLabel(s Source, entity string) string {
	if entity == "" {
		return s.Key
	}
	return s.Key + ":" + entity
}
