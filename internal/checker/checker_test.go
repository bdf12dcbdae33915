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
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/raphaelisaac/hulken/internal/threshold"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "PASS", want: StatusPass},
		{in: "warning", want: StatusWarning},
		{in: "CRITICAL", want: StatusFail},
		{in: " fail ", want: StatusFail},
		{in: "ERROR", want: StatusError},
		{in: "OK", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(threshold.LevelOK); got != StatusPass {
		t.Errorf("StatusFor(OK) = %v, want PASS", got)
	}
	if got := StatusFor(threshold.LevelWarning); got != StatusWarning {
		t.Errorf("StatusFor(Warning) = %v, want WARNING", got)
	}
	if got := StatusFor(threshold.LevelCritical); got != StatusFail {
		t.Errorf("StatusFor(Critical) = %v, want FAIL", got)
	}
}

func TestResult_WithHelpersCopy(t *testing.T) {
	d := &Diagnosis{Cause: "c", Impact: "i", Action: "a"}
	details := map[string]any{"n": 1}
	r := NewResult("Nulls: orders.email", StatusWarning, "2.1% null").
		WithEntity("orders").
		WithDiagnosis(d).
		WithDetails(details)

	d.Action = "mutated"
	details["n"] = 2

	if r.Diagnosis.Action != "a" {
		t.Errorf("Diagnosis.Action = %q, want a", r.Diagnosis.Action)
	}
	if r.Details["n"] != 1 {
		t.Errorf("Details[n] = %v, want 1", r.Details["n"])
	}
	if r.Entity != "orders" {
		t.Errorf("Entity = %q, want orders", r.Entity)
	}
	if !r.HasAction() {
		t.Error("HasAction() = false, want true")
	}
	if r.WithDiagnosis(nil).HasAction() {
		t.Error("HasAction() after clearing = true, want false")
	}
	if (Result{Diagnosis: &Diagnosis{Action: "  "}}).HasAction() {
		t.Error("HasAction() with blank action = true, want false")
	}
}

func TestResult_JSONOmitsEmptyOptionals(t *testing.T) {
	b, err := json.Marshal(NewResult("Volume: orders", StatusPass, "120 rows"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, k := range []string{"entity", "diagnosis", "details"} {
		if _, ok := m[k]; ok {
			t.Errorf("JSON contains %q for empty optional field", k)
		}
	}
}

func TestTally(t *testing.T) {
	results := []Result{
		{Status: StatusPass}, {Status: StatusPass},
		{Status: StatusWarning},
		{Status: StatusFail},
		{Status: StatusError},
		{Status: "BOGUS"},
	}
	got := Tally(results)
	want := Summary{Total: 6, Passed: 2, Warnings: 1, Failed: 1, Errors: 2}
	if got != want {
		t.Errorf("Tally() = %+v, want %+v", got, want)
	}
	if !got.Consistent() {
		t.Error("Consistent() = false, want true")
	}
	if (Summary{Total: 2, Passed: 1}).Consistent() {
		t.Error("Consistent() = true for mismatched counts")
	}
}

func TestSummary_Overall(t *testing.T) {
	tests := []struct {
		name string
		s    Summary
		want Status
	}{
		{"empty", Summary{}, StatusPass},
		{"all pass", Summary{Total: 2, Passed: 2}, StatusPass},
		{"warning", Summary{Total: 2, Passed: 1, Warnings: 1}, StatusWarning},
		{"error only", Summary{Total: 1, Errors: 1}, StatusWarning},
		{"fail wins", Summary{Total: 3, Warnings: 1, Failed: 1, Errors: 1}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Overall(); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 30, 0, 0, time.UTC)
	r := TrailingDays(now, 7)
	if got := r.String(); got != "2026-01-08 to 2026-01-14" {
		t.Errorf("TrailingDays() = %s, want 2026-01-08 to 2026-01-14", got)
	}
	if r.Len() != 7 {
		t.Errorf("Len() = %d, want 7", r.Len())
	}
	if one := TrailingDays(now, 0); one.Len() != 1 {
		t.Errorf("TrailingDays(0).Len() = %d, want 1", one.Len())
	}

	if _, err := ParseDateRange("2026-01-10", "2026-01-01"); err == nil {
		t.Error("ParseDateRange() expected error for inverted range")
	}
	if _, err := ParseDateRange("01/01/2026", "2026-01-02"); err == nil {
		t.Error("ParseDateRange() expected error for bad layout")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"start":"2026-01-08","end":"2026-01-14"}` {
		t.Errorf("Marshal() = %s", b)
	}
	var back DateRange
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Start.Equal(r.Start) || !back.End.Equal(r.End) {
		t.Errorf("Unmarshal() = %v, want %v", back, r)
	}
}

func TestResult_Flatten(t *testing.T) {
	r := NewResult("PII: orders", StatusFail, "3 exposed").
		WithEntity("orders").
		WithDiagnosis(&Diagnosis{Cause: "c", Impact: "i", Action: "a"}).
		WithDetails(map[string]any{"b": 2, "a": 1})

	got := r.Flatten().Values()
	want := []string{"PII: orders", "FAIL", "orders", "3 exposed", "c", "i", "a", `{"a":1,"b":2}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten().Values() = %v, want %v", got, want)
	}
	if len(FlatHeader) != len(got) {
		t.Errorf("FlatHeader has %d columns, values have %d", len(FlatHeader), len(got))
	}

	bare := NewResult("x", StatusPass, "ok").Flatten()
	if bare.Cause != "" || bare.Details != "" {
		t.Errorf("Flatten() of bare result = %+v", bare)
	}
}
