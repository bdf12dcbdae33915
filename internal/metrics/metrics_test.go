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

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/reconcile"
)

func finishedRun(t *testing.T, results ...checker.Result) *reconcile.Run {
	t.Helper()
	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	run := reconcile.NewRun(checker.TrailingDays(at, 30), nil)
	if err := run.Start(at); err != nil {
		t.Fatal(err)
	}
	if err := run.Record(results...); err != nil {
		t.Fatal(err)
	}
	if err := run.Complete(at.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	return run
}

func TestRecorder_CheckFinished(t *testing.T) {
	r := NewRecorder()
	results := []checker.Result{
		checker.NewResult("Freshness: shopify", checker.StatusPass, ""),
		checker.NewResult("Freshness: facebook", checker.StatusWarning, ""),
		checker.NewResult("Freshness: tiktok", checker.StatusWarning, ""),
	}
	r.CheckFinished(nil, "freshness", results, 1500*time.Millisecond)

	tests := []struct {
		status checker.Status
		want   float64
	}{
		{checker.StatusPass, 1},
		{checker.StatusWarning, 2},
		{checker.StatusFail, 0},
		{checker.StatusError, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := testutil.ToFloat64(r.checkResults.WithLabelValues("freshness", string(tt.status)))
			if got != tt.want {
				t.Errorf("hulken_check_results{status=%s} = %v, want %v", tt.status, got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(r.checkDuration, "hulken_check_duration_seconds"); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}

	r.CheckFinished(nil, "freshness", results[:1], time.Second)
	if got := testutil.ToFloat64(r.checkResults.WithLabelValues("freshness", "WARNING")); got != 0 {
		t.Errorf("recovered check still reports %v warnings", got)
	}
}

func TestRecorder_RunFinished(t *testing.T) {
	r := NewRecorder()
	run := finishedRun(t,
		checker.NewResult("a", checker.StatusPass, ""),
		checker.NewResult("b", checker.StatusFail, ""),
	)
	r.RunFinished(run)
	r.RunFinished(run)

	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("FAIL")); got != 2 {
		t.Errorf("hulken_runs_total{overall=FAIL} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.lastRun); got != float64(run.FinishedAt.Unix()) {
		t.Errorf("hulken_last_run_timestamp_seconds = %v, want %d", got, run.FinishedAt.Unix())
	}
	if got := testutil.ToFloat64(r.lastRunResults.WithLabelValues("FAIL")); got != 1 {
		t.Errorf("hulken_last_run_results{status=FAIL} = %v, want 1", got)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RunFinished(finishedRun(t, checker.NewResult("a", checker.StatusPass, "")))

	path := filepath.Join(t.TempDir(), "hulken.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`hulken_runs_total{overall="PASS"} 1`, "hulken_last_run_timestamp_seconds"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("textfile missing %q:\n%s", want, raw)
		}
	}
}
