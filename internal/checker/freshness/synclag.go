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

package freshness

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// SyncLagName is the catalog name of the sync lag check
const SyncLagName = "sync_lag"

// TableTarget is one table watched through warehouse metadata.
type TableTarget struct {
	Table string

	// DailyValue estimates what a day without syncs leaves untracked
	DailyValue float64
}

// SyncLagChecker flags tables that have not been written to recently,
// regardless of the business dates they contain.
type SyncLagChecker struct {
	schema    string
	statsSQL  string
	targets   []TableTarget
	diagnoses *diagnosis.Catalog
}

// NewSyncLagChecker creates a sync lag checker. With no targets every
// table in schema is watched.
func NewSyncLagChecker(schema, statsSQL string, targets []TableTarget, diagnoses *diagnosis.Catalog) *SyncLagChecker {
	return &SyncLagChecker{
		schema:    schema,
		statsSQL:  statsSQL,
		targets:   targets,
		diagnoses: diagnosis.OrDefault(diagnoses),
	}
}

// Name returns the checker identifier
func (c *SyncLagChecker) Name() string {
	return SyncLagName
}

// Families returns the threshold families read by the check
func (c *SyncLagChecker) Families() []string {
	return []string{threshold.FamilySyncLag}
}

// Check reads table metadata once and evaluates every watched table.
func (c *SyncLagChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	bounds, err := checkCtx.Policy.Get(threshold.FamilySyncLag)
	if err != nil {
		return nil, err
	}
	stats, err := datasource.LoadTableStats(ctx, checkCtx.DataSource, c.schema, c.statsSQL)
	if err != nil {
		return nil, err
	}

	targets := c.targets
	if len(targets) == 0 {
		names := make([]string, 0, len(stats))
		for n := range stats {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			targets = append(targets, TableTarget{Table: n})
		}
	}

	results := make([]checker.Result, 0, len(targets))
	for _, t := range targets {
		name := "Sync lag: " + t.Table
		s, ok := lookup(stats, t.Table)
		if !ok {
			results = append(results, checker.Errored(name,
				fmt.Errorf("table %s not found in %s metadata", t.Table, c.schema)).WithEntity(t.Table))
			continue
		}
		results = append(results, c.evaluate(checkCtx.Now, name, t, s, bounds))
	}
	return results, nil
}

func (c *SyncLagChecker) evaluate(now time.Time, name string, t TableTarget, s datasource.TableStats, bounds threshold.Bounds) checker.Result {
	if !s.HasModified {
		return checker.NewResult(name, checker.StatusWarning,
			fmt.Sprintf("No write time recorded for %s (%d rows)", t.Table, s.RowCount)).
			WithEntity(t.Table).
			WithDetails(map[string]any{"row_count": s.RowCount})
	}

	hours := math.Floor(now.Sub(s.LastModified).Hours())
	if hours < 0 {
		hours = 0
	}
	days := math.Round(hours/24*10) / 10
	lost := days * t.DailyValue
	status := checker.StatusFor(bounds.Above(hours))

	msg := fmt.Sprintf("Last write %.0fh ago (%.1f days)", hours, days)
	if status != checker.StatusPass && t.DailyValue > 0 {
		msg += ", est. " + diagnosis.Money(lost) + " untracked"
	}
	r := checker.NewResult(name, status, msg).
		WithEntity(t.Table).
		WithDetails(map[string]any{
			"hours_since_sync": hours,
			"days_since_sync":  days,
			"last_modified":    s.LastModified.UTC().Format(time.RFC3339),
			"row_count":        s.RowCount,
			"untracked_value":  lost,
		})
	if status == checker.StatusPass {
		return r
	}
	return c.diagnoses.Attach(r, diagnosis.SyncLagStale, map[string]any{
		"table":     t.Table,
		"hours":     hours,
		"days":      fmt.Sprintf("%.1f", days),
		"lost":      lost,
		"has_value": t.DailyValue > 0,
	})
}

// lookup matches a configured table against metadata names, which may or
// may not carry the schema prefix.
func lookup(stats map[string]datasource.TableStats, table string) (datasource.TableStats, bool) {
	if s, ok := stats[table]; ok {
		return s, true
	}
	if i := strings.LastIndex(table, "."); i >= 0 {
		s, ok := stats[table[i+1:]]
		return s, ok
	}
	return datasource.TableStats{}, false
}
