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

package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/testutil"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

type stubCheck struct {
	name     string
	families []string
	results  []checker.Result
	err      error
	panics   bool
	calls    int
	sawNow   time.Time
	sawRange checker.DateRange
}

func (s *stubCheck) Name() string       { return s.name }
func (s *stubCheck) Families() []string { return s.families }

func (s *stubCheck) Check(_ context.Context, cc *checker.CheckContext) ([]checker.Result, error) {
	s.calls++
	s.sawNow = cc.Now
	s.sawRange = cc.Range
	if s.panics {
		panic("boom")
	}
	return s.results, s.err
}

func newRunner(t *testing.T, fake *testutil.FakeSource, checks ...checker.Checker) *Runner {
	t.Helper()
	reg := checker.NewRegistry()
	for _, c := range checks {
		reg.MustRegister(c)
	}
	open := func(context.Context) (datasource.DataSource, error) { return fake, nil }
	r := NewRunner(reg, threshold.Default(), open, nil)
	r.now = func() time.Time { return testutil.Now }
	return r
}

func TestRun_ErrorIsolation(t *testing.T) {
	broken := &stubCheck{name: "nulls", err: errors.New(`column "email" does not exist`)}
	panicky := &stubCheck{name: "pii", panics: true}
	healthy := &stubCheck{name: "freshness", results: []checker.Result{
		checker.NewResult("Freshness: shopify", checker.StatusPass, "0 days old"),
		checker.NewResult("Freshness: facebook", checker.StatusWarning, "2 days old"),
	}}
	fake := testutil.NewFakeSource()
	runner := newRunner(t, fake, broken, panicky, healthy)

	run, err := runner.Run(context.Background(), nil, checker.DateRange{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if healthy.calls != 1 {
		t.Fatalf("healthy check ran %d times, want 1", healthy.calls)
	}
	if len(run.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(run.Results))
	}
	if run.Results[0].Name != "nulls" || run.Results[0].Status != checker.StatusError {
		t.Errorf("results[0] = %s %s, want nulls ERROR", run.Results[0].Name, run.Results[0].Status)
	}
	if run.Results[1].Name != "pii" || run.Results[1].Status != checker.StatusError {
		t.Errorf("results[1] = %s %s, want pii ERROR", run.Results[1].Name, run.Results[1].Status)
	}

	s := run.Summary()
	if s.Total != len(run.Results) || !s.Consistent() {
		t.Errorf("Summary() = %+v inconsistent with %d results", s, len(run.Results))
	}
	if run.Overall() != checker.StatusWarning {
		t.Errorf("Overall() = %s, want WARNING", run.Overall())
	}
	if run.State != StateComplete {
		t.Errorf("State = %s, want COMPLETE", run.State)
	}
	if !fake.Closed() {
		t.Error("data source not closed at run end")
	}
}

func TestRun_DefaultRangeAndClock(t *testing.T) {
	c := &stubCheck{name: "freshness"}
	run, err := newRunner(t, testutil.NewFakeSource(), c).Run(context.Background(), []string{"all"}, checker.DateRange{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := checker.TrailingDays(testutil.Now, DefaultRangeDays)
	if c.sawRange != want || run.Range != want {
		t.Errorf("range = %s, want %s", c.sawRange, want)
	}
	if !c.sawNow.Equal(testutil.Now) {
		t.Errorf("Now = %v, want %v", c.sawNow, testutil.Now)
	}
	if run.ID == "" {
		t.Error("run has no ID")
	}
}

func TestRun_SubsetKeepsCallerOrder(t *testing.T) {
	a := &stubCheck{name: "a", results: []checker.Result{checker.NewResult("a", checker.StatusPass, "")}}
	b := &stubCheck{name: "b", results: []checker.Result{checker.NewResult("b", checker.StatusPass, "")}}
	c := &stubCheck{name: "c", results: []checker.Result{checker.NewResult("c", checker.StatusPass, "")}}

	run, err := newRunner(t, testutil.NewFakeSource(), a, b, c).Run(context.Background(), []string{"c", "a"}, checker.DateRange{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if b.calls != 0 {
		t.Error("unrequested check executed")
	}
	if len(run.Results) != 2 || run.Results[0].Name != "c" || run.Results[1].Name != "a" {
		t.Errorf("results = %v, want c then a", run.Results)
	}
	if got := run.Overall(); got != checker.StatusPass {
		t.Errorf("Overall() = %s, want PASS", got)
	}
}

func TestRun_SetupErrorAbortsBeforeChecks(t *testing.T) {
	c := &stubCheck{name: "freshness"}
	reg := checker.NewRegistry()
	reg.MustRegister(c)
	open := func(context.Context) (datasource.DataSource, error) {
		return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
	}
	_, err := NewRunner(reg, threshold.Default(), open, nil).Run(context.Background(), nil, checker.DateRange{})
	if !IsSetupError(err) {
		t.Fatalf("Run() error = %v, want SetupError", err)
	}
	if c.calls != 0 {
		t.Error("check executed after setup failure")
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		check *stubCheck
	}{
		{"unknown check", []string{"nope"}, &stubCheck{name: "freshness"}},
		{"missing family", nil, &stubCheck{name: "custom", families: []string{"not_a_family"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened := false
			reg := checker.NewRegistry()
			reg.MustRegister(tt.check)
			open := func(context.Context) (datasource.DataSource, error) {
				opened = true
				return testutil.NewFakeSource(), nil
			}
			_, err := NewRunner(reg, threshold.Default(), open, nil).Run(context.Background(), tt.names, checker.DateRange{})
			if err == nil {
				t.Fatal("Run() error = nil, want configuration error")
			}
			if IsSetupError(err) {
				t.Errorf("configuration problem reported as setup error: %v", err)
			}
			if opened {
				t.Error("warehouse opened despite invalid configuration")
			}
		})
	}
}

// recordingObserver remembers what it was told.
type recordingObserver struct {
	checks   []string
	finished *Run
}

func (o *recordingObserver) CheckFinished(_ *Run, check string, _ []checker.Result, _ time.Duration) {
	o.checks = append(o.checks, check)
}

func (o *recordingObserver) RunFinished(r *Run) {
	o.finished = r
}

func TestRun_Observers(t *testing.T) {
	obs := &recordingObserver{}
	reg := checker.NewRegistry()
	reg.MustRegister(&stubCheck{name: "a"})
	reg.MustRegister(&stubCheck{name: "b"})
	open := func(context.Context) (datasource.DataSource, error) { return testutil.NewFakeSource(), nil }

	run, err := NewRunner(reg, threshold.Default(), open, nil, WithObservers(obs)).Run(context.Background(), nil, checker.DateRange{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(obs.checks) != 2 || obs.checks[0] != "a" || obs.checks[1] != "b" {
		t.Errorf("observed checks = %v, want [a b]", obs.checks)
	}
	if obs.finished != run {
		t.Error("RunFinished not called with the completed run")
	}
}

func TestRun_StateMachine(t *testing.T) {
	run := NewRun(checker.TrailingDays(testutil.Now, 7), nil)
	if err := run.Record(checker.NewResult("x", checker.StatusPass, "")); err == nil {
		t.Error("Record() before Start succeeded")
	}
	if err := run.Complete(testutil.Now); err == nil {
		t.Error("Complete() before Start succeeded")
	}
	if err := run.Start(testutil.Now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := run.Start(testutil.Now); err == nil {
		t.Error("second Start() succeeded")
	}
	if err := run.Complete(testutil.Now.Add(time.Minute)); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := run.Record(checker.NewResult("x", checker.StatusPass, "")); err == nil {
		t.Error("Record() after Complete succeeded")
	}
	if run.Duration() != time.Minute {
		t.Errorf("Duration() = %v, want 1m", run.Duration())
	}
}

func TestOffendingEntities(t *testing.T) {
	results := []checker.Result{
		checker.NewResult("Sync: facebook", checker.StatusFail, "").WithEntity("facebook_ads_insights"),
		checker.NewResult("Sync: shopify", checker.StatusPass, "").WithEntity("shopify_orders"),
		checker.NewResult("Sync: tiktok", checker.StatusWarning, "").WithEntity("tiktokads_reports_daily"),
		checker.NewResult("Sync: facebook again", checker.StatusWarning, "").WithEntity("facebook_ads_insights"),
		checker.Errored("schedule", errors.New("x")),
	}
	got := OffendingEntities(results)
	want := []string{"facebook_ads_insights", "schedule", "tiktokads_reports_daily"}
	if len(got) != len(want) {
		t.Fatalf("OffendingEntities() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OffendingEntities()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
