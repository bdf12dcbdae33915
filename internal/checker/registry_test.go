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

package checker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// mockChecker is a simple checker for testing
type mockChecker struct {
	name     string
	families []string
	results  []Result
	err      error
	panics   bool
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Families() []string {
	return m.families
}

func (m *mockChecker) Check(ctx context.Context, checkCtx *CheckContext) ([]Result, error) {
	if m.panics {
		panic("boom")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	checker1 := &mockChecker{name: "test1"}
	checker2 := &mockChecker{name: "test2"}
	duplicate := &mockChecker{name: "test1"}

	// First registration should succeed
	if err := r.Register(checker1); err != nil {
		t.Errorf("Register() error = %v, want nil", err)
	}

	// Second registration should succeed
	if err := r.Register(checker2); err != nil {
		t.Errorf("Register() error = %v, want nil", err)
	}

	// Duplicate registration should fail
	if err := r.Register(duplicate); err == nil {
		t.Error("Register() expected error for duplicate, got nil")
	}

	// Reserved and empty names should fail
	for _, name := range []string{"", All} {
		if err := r.Register(&mockChecker{name: name}); err == nil {
			t.Errorf("Register(%q) expected error, got nil", name)
		}
	}
}

func TestRegistry_MustRegister(t *testing.T) {
	r := NewRegistry()

	checker1 := &mockChecker{name: "test1"}

	// Should not panic
	r.MustRegister(checker1)

	// Should panic on duplicate
	defer func() {
		if recover() == nil {
			t.Error("MustRegister() expected panic for duplicate")
		}
	}()

	r.MustRegister(checker1)
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&mockChecker{name: "test"})

	got, ok := r.Get("test")
	if !ok {
		t.Fatal("Get() expected to find checker")
	}
	if got.Name() != "test" {
		t.Errorf("Get() name = %s, want test", got.Name())
	}

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get() expected not to find nonexistent checker")
	}
}

func TestRegistry_ListKeepsOrder(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"freshness", "duplicates", "pii"} {
		r.MustRegister(&mockChecker{name: n})
	}

	want := []string{"freshness", "duplicates", "pii"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"freshness", "duplicates", "pii"} {
		r.MustRegister(&mockChecker{name: n})
	}

	tests := []struct {
		name    string
		request []string
		want    []string
		wantErr string
	}{
		{name: "empty selects all", request: nil, want: []string{"freshness", "duplicates", "pii"}},
		{name: "all keyword", request: []string{"ALL"}, want: []string{"freshness", "duplicates", "pii"}},
		{name: "caller order", request: []string{"pii", "freshness"}, want: []string{"pii", "freshness"}},
		{name: "duplicates dropped", request: []string{"pii", " pii ", "pii"}, want: []string{"pii"}},
		{name: "unknown", request: []string{"pii", "bogus"}, wantErr: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.request)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			names := make([]string, len(got))
			for i, c := range got {
				names[i] = c.Name()
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Errorf("Resolve() = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestFamilies(t *testing.T) {
	checkers := []Checker{
		&mockChecker{name: "a", families: []string{"null_rate", "freshness"}},
		&mockChecker{name: "b", families: []string{"freshness"}},
		&mockChecker{name: "c"},
	}
	want := []string{"freshness", "null_rate"}
	if got := Families(checkers); !reflect.DeepEqual(got, want) {
		t.Errorf("Families() = %v, want %v", got, want)
	}
}

func TestExecute(t *testing.T) {
	diag := &Diagnosis{Cause: "c", Impact: "i", Action: "a"}
	ok := NewResult("Freshness: Shopify", StatusWarning, "2 days behind").
		WithDiagnosis(diag).
		WithDetails(map[string]any{"days": 2})

	tests := []struct {
		name       string
		checker    *mockChecker
		wantStatus Status
		wantCount  int
		wantMsg    string
	}{
		{name: "results pass through", checker: &mockChecker{name: "freshness", results: []Result{ok}}, wantStatus: StatusWarning, wantCount: 1},
		{name: "error becomes one ERROR result", checker: &mockChecker{name: "pii", err: errors.New("relation does not exist")}, wantStatus: StatusError, wantCount: 1, wantMsg: "relation does not exist"},
		{name: "panic becomes one ERROR result", checker: &mockChecker{name: "nulls", panics: true}, wantStatus: StatusError, wantCount: 1, wantMsg: "panicked"},
		{name: "no results", checker: &mockChecker{name: "volume"}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Execute(context.Background(), tt.checker, &CheckContext{})
			if len(got) != tt.wantCount {
				t.Fatalf("Execute() returned %d results, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Status != tt.wantStatus {
				t.Errorf("Execute() status = %s, want %s", got[0].Status, tt.wantStatus)
			}
			if tt.wantMsg != "" && !strings.Contains(got[0].Message, tt.wantMsg) {
				t.Errorf("Execute() message = %q, want containing %q", got[0].Message, tt.wantMsg)
			}
			if tt.wantStatus == StatusError && got[0].Name != tt.checker.name {
				t.Errorf("Execute() name = %q, want %q", got[0].Name, tt.checker.name)
			}
		})
	}
}

func TestExecute_ClonesResults(t *testing.T) {
	src := NewResult("n", StatusFail, "m").
		WithDiagnosis(&Diagnosis{Action: "fix"}).
		WithDetails(map[string]any{"k": 1})
	c := &mockChecker{name: "x", results: []Result{src}}

	got := Execute(context.Background(), c, &CheckContext{})
	got[0].Diagnosis.Action = "changed"
	got[0].Details["k"] = 2

	if c.results[0].Diagnosis.Action != "fix" {
		t.Error("Execute() result shares diagnosis with checker output")
	}
	if c.results[0].Details["k"] != 1 {
		t.Error("Execute() result shares details with checker output")
	}
}
