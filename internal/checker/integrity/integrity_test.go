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
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/testutil"
)

var fbKeys = KeyTarget{
	Key:            "facebook",
	Label:          "Facebook Ads",
	Table:          "facebook_ads_insights",
	KeyColumns:     []string{"ad_id", "date_start"},
	DateColumn:     "date_start",
	AppendMode:     true,
	IngestedColumn: "_airbyte_extracted_at",
}

func dupSource(total, distinct int64) *testutil.FakeSource {
	return testutil.NewFakeSource().On("duplicates/facebook", map[string]any{
		"total_rows":    total,
		"distinct_keys": distinct,
	})
}

func TestDuplicatesChecker_Levels(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		distinct int64
		want     checker.Status
	}{
		{name: "no duplicates", total: 1000, distinct: 1000, want: checker.StatusPass},
		{name: "below warning", total: 100000, distinct: 99950, want: checker.StatusPass},
		{name: "exactly warning", total: 1000, distinct: 999, want: checker.StatusWarning},
		{name: "exactly critical", total: 1000, distinct: 990, want: checker.StatusFail},
		{name: "five percent", total: 1000, distinct: 950, want: checker.StatusFail},
		{name: "empty", total: 0, distinct: 0, want: checker.StatusWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := dupSource(tt.total, tt.distinct)
			got, err := NewDuplicatesChecker([]KeyTarget{fbKeys}, nil).Check(context.Background(), testutil.NewCheckContext(t, ds))
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got[0].Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", got[0].Status, tt.want, got[0].Message)
			}
		})
	}
}

// 1000 rows with 950 distinct keys is a 5% rate, above the 1% critical bound.
func TestDuplicatesChecker_AppendModeDiagnosis(t *testing.T) {
	got, _ := NewDuplicatesChecker([]KeyTarget{fbKeys}, nil).Check(context.Background(), testutil.NewCheckContext(t, dupSource(1000, 950)))
	r := got[0]
	if r.Status != checker.StatusFail {
		t.Fatalf("status = %s, want FAIL", r.Status)
	}
	if !strings.Contains(r.Message, "5.00%") {
		t.Errorf("message = %q, want 5.00%%", r.Message)
	}
	if r.Diagnosis == nil {
		t.Fatal("diagnosis = nil")
	}
	if !strings.Contains(r.Diagnosis.Cause, "append-mode") {
		t.Errorf("cause = %q, want append-mode explanation", r.Diagnosis.Cause)
	}
	want := "ROW_NUMBER() OVER (PARTITION BY ad_id, date_start ORDER BY _airbyte_extracted_at DESC)"
	if !strings.Contains(r.Diagnosis.Action, want) {
		t.Errorf("action = %q, want %q", r.Diagnosis.Action, want)
	}
}

func TestDuplicatesChecker_PlainTableDiagnosis(t *testing.T) {
	shop := KeyTarget{Key: "shopify", Label: "Shopify", Table: "shopify_orders", KeyColumns: []string{"orderId"}}
	ds := testutil.NewFakeSource().On("duplicates/shopify", map[string]any{"total_rows": 200, "distinct_keys": 190})
	got, _ := NewDuplicatesChecker([]KeyTarget{shop}, nil).Check(context.Background(), testutil.NewCheckContext(t, ds))
	if got[0].Diagnosis == nil || strings.Contains(got[0].Diagnosis.Cause, "append") {
		t.Errorf("diagnosis = %+v, want unexpected-duplicate narrative", got[0].Diagnosis)
	}
}

func TestDuplicateSQL(t *testing.T) {
	sql, err := DuplicateSQL(datasource.Postgres, fbKeys)
	if err != nil {
		t.Fatalf("DuplicateSQL() error = %v", err)
	}
	if !strings.Contains(sql, `SELECT DISTINCT "ad_id", "date_start" FROM "facebook_ads_insights"`) {
		t.Errorf("DuplicateSQL() = %s", sql)
	}
	bound, args, err := datasource.NewQuery("q", sql).
		With("start", "2026-01-01").With("end", "2026-01-31").Bind(datasource.Postgres)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if len(args) != 2 || strings.Count(bound, "$1") != 2 {
		t.Errorf("Bind() = %s %v, want two uses of $1 and two args", bound, args)
	}

	if _, err := DuplicateSQL(datasource.Postgres, KeyTarget{Table: "t"}); err == nil {
		t.Error("DuplicateSQL() with no key columns expected error")
	}
	if _, err := DuplicateSQL(datasource.Postgres, KeyTarget{Table: "t", KeyColumns: []string{"a b"}}); !errors.Is(err, datasource.ErrInvalidIdent) {
		t.Errorf("DuplicateSQL() bad key error = %v, want ErrInvalidIdent", err)
	}
}

func TestNullsChecker(t *testing.T) {
	fields := []FieldTarget{
		{Table: "shopify_orders", Column: "totalPrice", Purpose: "breaks revenue calculation"},
		{Table: "shopify_orders", Column: "email"},
		{Table: "shopify_orders", Column: "createdAt"},
		{Table: "empty_table", Column: "id"},
		{Table: "shopify_orders", Column: "dropped"},
	}
	ds := testutil.NewFakeSource().
		On("nulls/shopify_orders.totalPrice", map[string]any{"total_rows": 1000, "null_count": 80}).
		On("nulls/shopify_orders.email", map[string]any{"total_rows": 1000, "null_count": 3}).
		On("nulls/shopify_orders.createdAt", map[string]any{"total_rows": 1000, "null_count": 0}).
		On("nulls/empty_table.id", map[string]any{"total_rows": 0, "null_count": 0}).
		Fail("nulls/shopify_orders.dropped", errors.New(`column "dropped" does not exist`))

	got, err := NewNullsChecker(fields, nil).Check(context.Background(), testutil.NewCheckContext(t, ds))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	want := map[string]checker.Status{
		"Nulls: shopify_orders.totalPrice": checker.StatusFail,
		"Nulls: shopify_orders.email":      checker.StatusWarning,
		"Nulls: shopify_orders.createdAt":  checker.StatusPass,
		"Nulls: empty_table.id":            checker.StatusWarning,
		"Nulls: shopify_orders.dropped":    checker.StatusError,
	}
	for name, status := range want {
		if r := testutil.FindResult(t, got, name); r.Status != status {
			t.Errorf("%s status = %s, want %s (%s)", name, r.Status, status, r.Message)
		}
	}

	price := testutil.FindResult(t, got, "Nulls: shopify_orders.totalPrice")
	if price.Diagnosis == nil || !strings.Contains(price.Diagnosis.Impact, "breaks revenue calculation") {
		t.Errorf("diagnosis = %+v, want purpose in impact", price.Diagnosis)
	}
	if !strings.Contains(price.Message, "8.0%") {
		t.Errorf("message = %q, want 8.0%%", price.Message)
	}
}

func TestPriceChecker(t *testing.T) {
	target := PriceTarget{Key: "shopify", Label: "Shopify", Table: "shopify_orders", PriceColumn: "totalPrice", DateColumn: "createdAt"}
	tests := []struct {
		name    string
		row     map[string]any
		want    checker.Status
		wantMsg string
	}{
		{
			name:    "dollars",
			row:     map[string]any{"priced_rows": 500, "median_price": 85.5, "max_price": 900.0, "over_warning": 0, "over_critical": 0},
			want:    checker.StatusPass,
			wantMsg: "$85.50",
		},
		{
			name:    "cents",
			row:     map[string]any{"priced_rows": 500, "median_price": 8550.0, "max_price": 90000.0, "over_warning": 3, "over_critical": 0},
			want:    checker.StatusFail,
			wantMsg: "CENTS",
		},
		{
			name:    "critical outliers",
			row:     map[string]any{"priced_rows": 500, "median_price": 90.0, "max_price": 250000.0, "over_warning": 2, "over_critical": 1},
			want:    checker.StatusFail,
			wantMsg: "$100,000.00",
		},
		{
			name:    "warning outliers",
			row:     map[string]any{"priced_rows": 500, "median_price": 90.0, "max_price": 20000.0, "over_warning": 2, "over_critical": 0},
			want:    checker.StatusWarning,
			wantMsg: "2 orders exceed $10,000.00",
		},
		{
			name:    "no prices",
			row:     map[string]any{"priced_rows": 0, "median_price": nil, "max_price": nil, "over_warning": nil, "over_critical": nil},
			want:    checker.StatusWarning,
			wantMsg: "No price data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := testutil.NewFakeSource().On("price_format/shopify", tt.row)
			got, err := NewPriceChecker([]PriceTarget{target}, nil).Check(context.Background(), testutil.NewCheckContext(t, ds))
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got[0].Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", got[0].Status, tt.want, got[0].Message)
			}
			if !strings.Contains(got[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", got[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestVolumeChecker(t *testing.T) {
	targets := []VolumeTarget{
		{Key: "facebook", Label: "Facebook Ads", Table: "facebook_ads_insights", DateColumn: "date_start"},
		{Key: "tiktok", Label: "TikTok Ads", Table: "tiktokads_reports_daily", DateColumn: "stat_time_day"},
	}
	ds := testutil.NewFakeSource().
		On("volume/facebook", map[string]any{"total_count": 12345, "unique_days": 30}).
		On("volume/tiktok", map[string]any{"total_count": 0, "unique_days": 0})

	got, err := NewVolumeChecker(targets, nil).Check(context.Background(), testutil.NewCheckContext(t, ds))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if got[0].Status != checker.StatusPass || got[0].Message != "12,345 records across 30 days" {
		t.Errorf("facebook = %s %q", got[0].Status, got[0].Message)
	}
	if got[1].Status != checker.StatusWarning || got[1].Diagnosis == nil {
		t.Errorf("tiktok = %+v, want WARNING with diagnosis", got[1])
	}
}

func TestInventory_Compare(t *testing.T) {
	baseline := &Baseline{
		ScannedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Schema:    "ads",
		Tables: map[string]TableEntry{
			"facebook_ads_insights":   {RowCount: 100},
			"tiktokads_reports_daily": {RowCount: 40},
			"old_stream":              {RowCount: 5},
			"never_filled":            {RowCount: 0},
		},
	}
	current := &Baseline{
		Schema: "ads",
		Tables: map[string]TableEntry{
			"facebook_ads_insights":   {RowCount: 120},
			"tiktokads_reports_daily": {RowCount: 0},
			"never_filled":            {RowCount: 0},
			"customers_raw":           {RowCount: 10},
		},
	}
	c := NewInventoryChecker("ads", "", "", []string{"shopify_orders"}, nil)
	got := c.Compare(baseline, current)

	want := map[string]checker.Status{
		"Inventory: old_stream":              checker.StatusFail,
		"Inventory: shopify_orders":          checker.StatusFail,
		"Inventory: tiktokads_reports_daily": checker.StatusFail,
		"Inventory: never_filled":            checker.StatusWarning,
		"Inventory: customers_raw":           checker.StatusWarning,
	}
	if len(got) != len(want) {
		t.Fatalf("Compare() returned %d results, want %d: %+v", len(got), len(want), got)
	}
	for name, status := range want {
		r := testutil.FindResult(t, got, name)
		if r.Status != status {
			t.Errorf("%s status = %s, want %s", name, r.Status, status)
		}
		if r.Diagnosis == nil {
			t.Errorf("%s diagnosis = nil", name)
		}
	}
}

func TestInventory_CleanAndBaselineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "baseline.json")
	ds := testutil.NewFakeSource().On("table_stats/ads",
		map[string]any{"table_name": "a", "row_count": 3, "last_modified": testutil.Now},
	)
	c := NewInventoryChecker("ads", "", path, nil, nil)

	if _, err := c.Check(context.Background(), testutil.NewCheckContext(t, ds)); !errors.Is(err, ErrNoBaseline) {
		t.Fatalf("Check() without baseline error = %v, want ErrNoBaseline", err)
	}

	snap, err := Snapshot(context.Background(), ds, "ads", "", testutil.Now)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if err := snap.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadBaseline(path)
	if err != nil {
		t.Fatalf("LoadBaseline() error = %v", err)
	}
	if loaded.Tables["a"].RowCount != 3 || !loaded.ScannedAt.Equal(testutil.Now) {
		t.Errorf("LoadBaseline() = %+v", loaded)
	}

	got, err := c.Check(context.Background(), testutil.NewCheckContext(t, ds))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(got) != 1 || got[0].Status != checker.StatusPass {
		t.Errorf("Check() = %+v, want single PASS", got)
	}
}
