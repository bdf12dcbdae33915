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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
)

// InventoryName is the catalog name of the table inventory check
const InventoryName = "inventory"

// ErrNoBaseline is returned when no baseline file exists yet.
var ErrNoBaseline = errors.New("no table baseline found; run `hulken baseline` first")

// TableEntry is one table recorded in a baseline.
type TableEntry struct {
	RowCount int64 `json:"row_count"`
}

// Baseline is a snapshot of the tables in a schema.
type Baseline struct {
	ScannedAt time.Time             `json:"scanned_at"`
	Schema    string                `json:"schema"`
	Tables    map[string]TableEntry `json:"tables"`
}

// Snapshot reads the current tables of schema.
func Snapshot(ctx context.Context, ds datasource.DataSource, schema, statsSQL string, now time.Time) (*Baseline, error) {
	stats, err := datasource.LoadTableStats(ctx, ds, schema, statsSQL)
	if err != nil {
		return nil, err
	}
	b := &Baseline{ScannedAt: now.UTC(), Schema: schema, Tables: make(map[string]TableEntry, len(stats))}
	for name, s := range stats {
		b.Tables[name] = TableEntry{RowCount: s.RowCount}
	}
	return b, nil
}

// LoadBaseline reads a baseline written by Save.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoBaseline
	}
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	if b.Tables == nil {
		b.Tables = map[string]TableEntry{}
	}
	return &b, nil
}

// Save writes b to path as indented JSON.
func (b *Baseline) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create baseline directory: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// Names returns the baseline's table names, sorted.
func (b *Baseline) Names() []string {
	names := make([]string, 0, len(b.Tables))
	for n := range b.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// InventoryChecker compares the current tables with a saved baseline.
type InventoryChecker struct {
	schema       string
	statsSQL     string
	baselinePath string
	expected     []string
	diagnoses    *diagnosis.Catalog
}

// NewInventoryChecker creates an inventory checker. expected lists tables
// that must exist whether or not they are in the baseline.
func NewInventoryChecker(schema, statsSQL, baselinePath string, expected []string, diagnoses *diagnosis.Catalog) *InventoryChecker {
	return &InventoryChecker{
		schema:       schema,
		statsSQL:     statsSQL,
		baselinePath: baselinePath,
		expected:     expected,
		diagnoses:    diagnosis.OrDefault(diagnoses),
	}
}

// Name returns the checker identifier
func (c *InventoryChecker) Name() string {
	return InventoryName
}

// Families returns nil; inventory has no thresholds.
func (c *InventoryChecker) Families() []string {
	return nil
}

// Check reports missing, emptied, still-empty and new tables. A clean
// inventory yields a single PASS.
func (c *InventoryChecker) Check(ctx context.Context, checkCtx *checker.CheckContext) ([]checker.Result, error) {
	baseline, err := LoadBaseline(c.baselinePath)
	if err != nil {
		return nil, err
	}
	current, err := Snapshot(ctx, checkCtx.DataSource, c.schema, c.statsSQL, checkCtx.Now)
	if err != nil {
		return nil, err
	}
	return c.Compare(baseline, current), nil
}

// Compare diffs current against baseline.
func (c *InventoryChecker) Compare(baseline, current *Baseline) []checker.Result {
	var results []checker.Result
	add := func(table string, status checker.Status, msg, key string, data map[string]any) {
		data["table"] = table
		r := checker.NewResult("Inventory: "+table, status, msg).WithEntity(table)
		results = append(results, c.diagnoses.Attach(r, key, data))
	}

	required := map[string]bool{}
	for _, t := range c.expected {
		required[t] = true
	}
	for t := range baseline.Tables {
		required[t] = true
	}
	for _, t := range sortedKeys(required) {
		if _, ok := current.Tables[t]; !ok {
			add(t, checker.StatusFail, fmt.Sprintf("%s is missing", t), diagnosis.InventoryMissing, map[string]any{})
		}
	}

	for _, t := range current.Names() {
		now := current.Tables[t]
		before, known := baseline.Tables[t]
		switch {
		case !known:
			add(t, checker.StatusWarning, fmt.Sprintf("New table %s (%s rows)", t, diagnosis.Number(float64(now.RowCount))),
				diagnosis.InventoryNew, map[string]any{"rows": now.RowCount})
		case now.RowCount == 0 && before.RowCount > 0:
			add(t, checker.StatusFail, fmt.Sprintf("%s is newly empty (had %s rows)", t, diagnosis.Number(float64(before.RowCount))),
				diagnosis.InventoryEmptied, map[string]any{"previous": before.RowCount})
		case now.RowCount == 0:
			add(t, checker.StatusWarning, fmt.Sprintf("%s is still empty", t),
				diagnosis.InventoryEmpty, map[string]any{})
		}
	}

	if len(results) == 0 {
		results = append(results, checker.NewResult("Inventory: "+c.schema, checker.StatusPass,
			fmt.Sprintf("%d tables match the baseline from %s", len(current.Tables),
				baseline.ScannedAt.Format(checker.DateLayout))))
	}
	return results
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
