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

package datasource

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestQuery_Bind(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		sql      string
		args     map[string]any
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:     "postgres reuses index for repeated name",
			dialect:  Postgres,
			sql:      "SELECT 1 FROM t WHERE a >= :start AND b <= :end AND c >= :start",
			args:     map[string]any{"start": "2026-01-01", "end": "2026-01-31"},
			wantSQL:  "SELECT 1 FROM t WHERE a >= $1 AND b <= $2 AND c >= $1",
			wantArgs: []any{"2026-01-01", "2026-01-31"},
		},
		{
			name:     "clickhouse repeats positional args",
			dialect:  ClickHouse,
			sql:      "SELECT 1 FROM t WHERE a >= :start AND c >= :start",
			args:     map[string]any{"start": 1},
			wantSQL:  "SELECT 1 FROM t WHERE a >= ? AND c >= ?",
			wantArgs: []any{1, 1},
		},
		{
			name:     "quoted text and casts untouched",
			dialect:  Postgres,
			sql:      "SELECT x::date, ':skip', \"col:name\" FROM t WHERE y = :v AND z <> 'it''s :not'",
			args:     map[string]any{"v": 7},
			wantSQL:  "SELECT x::date, ':skip', \"col:name\" FROM t WHERE y = $1 AND z <> 'it''s :not'",
			wantArgs: []any{7},
		},
		{
			name:    "missing argument",
			dialect: Postgres,
			sql:     "SELECT 1 WHERE a = :missing",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuery("test", tt.sql)
			for k, v := range tt.args {
				q = q.With(k, v)
			}
			gotSQL, gotArgs, err := q.Bind(tt.dialect)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Bind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if gotSQL != tt.wantSQL {
				t.Errorf("Bind() sql = %q, want %q", gotSQL, tt.wantSQL)
			}
			if !reflect.DeepEqual(gotArgs, tt.wantArgs) {
				t.Errorf("Bind() args = %v, want %v", gotArgs, tt.wantArgs)
			}
		})
	}
}

func TestQuery_WithDoesNotShareArgs(t *testing.T) {
	base := NewQuery("q", "SELECT :a").With("a", 1)
	other := base.With("a", 2)
	if base.Args["a"] != 1 {
		t.Errorf("base arg mutated to %v", base.Args["a"])
	}
	if other.Args["a"] != 2 {
		t.Errorf("other arg = %v, want 2", other.Args["a"])
	}
}

func TestDialect_QuoteIdent(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
		wantErr bool
	}{
		{Postgres, "orders", `"orders"`, false},
		{Postgres, "ads_data.facebook_ads_insights", `"ads_data"."facebook_ads_insights"`, false},
		{ClickHouse, "metrics.spend", "`metrics`.`spend`", false},
		{Postgres, "orders; DROP TABLE x", "", true},
		{Postgres, "", "", true},
		{ClickHouse, "1abc", "", true},
	}
	for _, tt := range tests {
		got, err := tt.dialect.QuoteIdent(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("QuoteIdent(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidIdent) {
			t.Errorf("QuoteIdent(%q) error = %v, want ErrInvalidIdent", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapRow_Accessors(t *testing.T) {
	ts := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	row := RowOf(map[string]any{
		"total":   int64(1000),
		"rate":    []byte("0.25"),
		"name":    "facebook",
		"latest":  ts,
		"as_text": "2026-01-14",
		"empty":   nil,
		"frac":    1.5,
	})

	if v, ok, err := row.Int("total"); err != nil || !ok || v != 1000 {
		t.Errorf("Int(total) = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := row.Float("rate"); err != nil || !ok || v != 0.25 {
		t.Errorf("Float(rate) = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := row.String("name"); err != nil || !ok || v != "facebook" {
		t.Errorf("String(name) = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := row.Time("latest"); err != nil || !ok || !v.Equal(ts) {
		t.Errorf("Time(latest) = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := row.Time("as_text"); err != nil || !ok || !v.Equal(ts) {
		t.Errorf("Time(as_text) = %v, %v, %v", v, ok, err)
	}
	if _, ok, err := row.Float("empty"); err != nil || ok {
		t.Errorf("Float(empty) ok = %v, err = %v; want NULL", ok, err)
	}
	if _, _, err := row.Int("frac"); !errors.Is(err, ErrType) {
		t.Errorf("Int(frac) error = %v, want ErrType", err)
	}
	if _, _, err := row.Float("dropped_column"); !errors.Is(err, ErrNoColumn) {
		t.Errorf("Float(dropped_column) error = %v, want ErrNoColumn", err)
	}
	if _, _, err := row.Float("name"); !errors.Is(err, ErrType) {
		t.Errorf("Float(name) error = %v, want ErrType", err)
	}
}

func TestMapRow_CaseInsensitiveLookup(t *testing.T) {
	row := NewRow([]string{"TOTAL_ROWS"}, []any{int64(3)})
	if v, ok, err := row.Int("total_rows"); err != nil || !ok || v != 3 {
		t.Errorf("Int(total_rows) = %v, %v, %v", v, ok, err)
	}
}
