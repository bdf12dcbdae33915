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

// Package reconcile orchestrates one reconciliation run: it resolves the
// requested checks, opens the warehouse once, executes every check in
// order and collects their results.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelisaac/hulken/internal/checker"
)

// State is the lifecycle phase of a Run.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateRunning     State = "RUNNING"
	StateComplete    State = "COMPLETE"
)

// Run is one execution of a check set over a date range. Results are
// appended in discovery order and never reordered.
type Run struct {
	ID         string
	State      State
	Range      checker.DateRange
	Checks     []string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []checker.Result
}

// NewRun creates a run in the INITIALIZED state.
func NewRun(dr checker.DateRange, checks []string) *Run {
	return &Run{
		ID:     uuid.NewString(),
		State:  StateInitialized,
		Range:  dr,
		Checks: append([]string(nil), checks...),
	}
}

// Start moves the run to RUNNING.
func (r *Run) Start(now time.Time) error {
	if r.State != StateInitialized {
		return fmt.Errorf("run %s: cannot start from %s", r.ID, r.State)
	}
	r.State = StateRunning
	r.StartedAt = now
	return nil
}

// Record appends results produced by a check.
func (r *Run) Record(results ...checker.Result) error {
	if r.State != StateRunning {
		return fmt.Errorf("run %s: cannot record results while %s", r.ID, r.State)
	}
	r.Results = append(r.Results, results...)
	return nil
}

// Complete moves the run to COMPLETE. A completed run is immutable.
func (r *Run) Complete(now time.Time) error {
	if r.State != StateRunning {
		return fmt.Errorf("run %s: cannot complete from %s", r.ID, r.State)
	}
	r.State = StateComplete
	r.FinishedAt = now
	return nil
}

// Summary tallies the results recorded so far.
func (r *Run) Summary() checker.Summary {
	return checker.Tally(r.Results)
}

// Overall is FAIL if anything failed, else WARNING if anything warned or
// errored, else PASS.
func (r *Run) Overall() checker.Status {
	return r.Summary().Overall()
}

// Duration is the wall time between start and completion.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Offending returns the sorted set of entity identifiers with a non-PASS
// result. Results without an entity contribute their name.
func (r *Run) Offending() []string {
	return OffendingEntities(r.Results)
}

// OffendingEntities is Run.Offending over an arbitrary result list.
func OffendingEntities(results []checker.Result) []string {
	set := map[string]bool{}
	for _, res := range results {
		if res.Status == checker.StatusPass {
			continue
		}
		id := res.Entity
		if id == "" {
			id = res.Name
		}
		set[id] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
