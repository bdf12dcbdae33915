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
	"reflect"
	"strings"
	"testing"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/testutil"
)

func tenDays(t *testing.T) checker.DateRange {
	t.Helper()
	r, err := checker.ParseDateRange("2026-01-01", "2026-01-10")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func daysExcept(r checker.DateRange, skip ...string) []map[string]any {
	omit := map[string]bool{}
	for _, s := range skip {
		omit[s] = true
	}
	var rows []map[string]any
	for _, d := range r.Days() {
		s := d.Format(checker.DateLayout)
		if !omit[s] {
			rows = append(rows, map[string]any{"day": d})
		}
	}
	return rows
}

// Days 9 and 10 of a 10-day range are missing: the gap touches the most
// recent days, so the sync is treated as currently broken.
func TestContinuityChecker_OngoingGap(t *testing.T) {
	r := tenDays(t)
	ds := testutil.NewFakeSource().On("continuity/facebook", daysExcept(r, "2026-01-09", "2026-01-10")...)
	checkCtx := testutil.NewCheckContext(t, ds)
	checkCtx.Range = r

	got, err := NewContinuityChecker([]Target{fbTarget}, 0, nil).Check(context.Background(), checkCtx)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	res := got[0]
	if res.Status != checker.StatusWarning {
		t.Errorf("status = %s, want WARNING", res.Status)
	}
	if res.Details["gap"] != string(GapOngoing) {
		t.Errorf("gap = %v, want ongoing", res.Details["gap"])
	}
	if res.Diagnosis == nil || !strings.Contains(res.Diagnosis.Cause, "currently broken") {
		t.Errorf("diagnosis = %+v, want sync currently broken", res.Diagnosis)
	}
	if !strings.Contains(res.Diagnosis.Action, "Restart") {
		t.Errorf("action = %q, want restart", res.Diagnosis.Action)
	}
}

func TestContinuityChecker_TransientGap(t *testing.T) {
	r := tenDays(t)
	ds := testutil.NewFakeSource().On("continuity/facebook", daysExcept(r, "2026-01-04")...)
	checkCtx := testutil.NewCheckContext(t, ds)
	checkCtx.Range = r

	got, _ := NewContinuityChecker([]Target{fbTarget}, 2, nil).Check(context.Background(), checkCtx)
	res := got[0]
	if res.Status != checker.StatusWarning {
		t.Errorf("status = %s, want WARNING", res.Status)
	}
	if res.Diagnosis == nil || !strings.Contains(res.Diagnosis.Action, "backfill") {
		t.Errorf("diagnosis = %+v, want backfill action", res.Diagnosis)
	}
	if !strings.Contains(res.Message, "2026-01-04") {
		t.Errorf("message = %q, want the missing date", res.Message)
	}
}

func TestContinuityChecker_Levels(t *testing.T) {
	r := tenDays(t)
	tests := []struct {
		name    string
		missing []string
		want    checker.Status
	}{
		{name: "complete", want: checker.StatusPass},
		{name: "three missing", missing: []string{"2026-01-02", "2026-01-03", "2026-01-04"}, want: checker.StatusWarning},
		{name: "four missing", missing: []string{"2026-01-02", "2026-01-03", "2026-01-04", "2026-01-05"}, want: checker.StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := testutil.NewFakeSource().On("continuity/facebook", daysExcept(r, tt.missing...)...)
			checkCtx := testutil.NewCheckContext(t, ds)
			checkCtx.Range = r
			got, _ := NewContinuityChecker([]Target{fbTarget}, 0, nil).Check(context.Background(), checkCtx)
			if got[0].Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", got[0].Status, tt.want, got[0].Message)
			}
		})
	}
}

func TestContinuityChecker_BindsRange(t *testing.T) {
	r := tenDays(t)
	ds := testutil.NewFakeSource().On("continuity/facebook", daysExcept(r)...)
	checkCtx := testutil.NewCheckContext(t, ds)
	checkCtx.Range = r

	if _, err := NewContinuityChecker([]Target{fbTarget}, 0, nil).Check(context.Background(), checkCtx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	calls := ds.Calls()
	if len(calls) != 1 {
		t.Fatalf("queries = %d, want 1", len(calls))
	}
	_, args, err := calls[0].Bind(datasource.Postgres)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if !reflect.DeepEqual(args, []any{"2026-01-01", "2026-01-10"}) {
		t.Errorf("args = %v, want range bounds", args)
	}
}

func TestClassifyGap(t *testing.T) {
	r := tenDays(t)
	tests := []struct {
		missing []string
		buffer  int
		want    Gap
	}{
		{nil, 2, GapNone},
		{[]string{"2026-01-10"}, 2, GapOngoing},
		{[]string{"2026-01-09"}, 2, GapOngoing},
		{[]string{"2026-01-08"}, 2, GapTransient},
		{[]string{"2026-01-08"}, 3, GapOngoing},
		{[]string{"2026-01-01", "2026-01-02"}, 0, GapTransient},
	}
	for _, tt := range tests {
		if got := ClassifyGap(r, tt.missing, tt.buffer); got != tt.want {
			t.Errorf("ClassifyGap(%v, %d) = %s, want %s", tt.missing, tt.buffer, got, tt.want)
		}
	}
}

func TestListDays(t *testing.T) {
	days := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	if got := listDays(days); got != "a, b, c, d, e, f, g and 2 more" {
		t.Errorf("listDays() = %q", got)
	}
}
