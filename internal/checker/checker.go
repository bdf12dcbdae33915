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

// Package checker provides the result model and the pluggable check
// architecture shared by every data-quality check.
package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// Status is the outcome of evaluating a check.
type Status string

// ERROR means the check could not be evaluated. It is reported and counted
// separately and does not rank against the data-condition statuses.
const (
	StatusPass    Status = "PASS"
	StatusWarning Status = "WARNING"
	StatusFail    Status = "FAIL"
	StatusError   Status = "ERROR"
)

// ParseStatus accepts the canonical names plus CRITICAL as an alias of FAIL.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return StatusPass, nil
	case "WARNING", "WARN":
		return StatusWarning, nil
	case "FAIL", "CRITICAL":
		return StatusFail, nil
	case "ERROR":
		return StatusError, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// StatusFor maps a threshold level onto a status.
func StatusFor(l threshold.Level) Status {
	switch l {
	case threshold.LevelCritical:
		return StatusFail
	case threshold.LevelWarning:
		return StatusWarning
	default:
		return StatusPass
	}
}

// Diagnosis is the root-cause narrative attached to a non-PASS result.
type Diagnosis struct {
	Cause  string `json:"cause"`
	Impact string `json:"impact"`
	Action string `json:"action"`
}

// Result is the atomic output of a check. Name, Status and Message are
// always set; the rest is optional. Results are values: the With* helpers
// return modified copies and the run stores clones.
type Result struct {
	// Name identifies the check instance (e.g. "Freshness: Facebook Ads")
	Name string `json:"name"`

	Status Status `json:"status"`

	// Message is the human-readable finding and always embeds the
	// measured value
	Message string `json:"message"`

	// Entity identifies the offending table or source, used by the alert
	// gate for suppression
	Entity string `json:"entity,omitempty"`

	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`

	// Details is an open drill-down payload; values must be serializable
	Details map[string]any `json:"details,omitempty"`
}

// NewResult creates a result.
func NewResult(name string, status Status, message string) Result {
	return Result{Name: name, Status: status, Message: message}
}

// Errored converts an evaluation failure into an ERROR result.
func Errored(name string, err error) Result {
	return Result{Name: name, Status: StatusError, Message: err.Error()}
}

// WithEntity returns a copy of r tagged with entity.
func (r Result) WithEntity(entity string) Result {
	r.Entity = entity
	return r
}

// WithDiagnosis returns a copy of r carrying d. A nil d clears it.
func (r Result) WithDiagnosis(d *Diagnosis) Result {
	if d == nil {
		r.Diagnosis = nil
		return r
	}
	cp := *d
	r.Diagnosis = &cp
	return r
}

// WithDetails returns a copy of r carrying a copy of details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = copyDetails(details)
	return r
}

// Clone returns a copy that shares no mutable state with r.
func (r Result) Clone() Result {
	r = r.WithDiagnosis(r.Diagnosis)
	r.Details = copyDetails(r.Details)
	return r
}

// HasAction reports whether r carries a non-empty diagnosis action.
func (r Result) HasAction() bool {
	return r.Diagnosis != nil && strings.TrimSpace(r.Diagnosis.Action) != ""
}

func copyDetails(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CheckContext provides context for check execution
type CheckContext struct {
	// DataSource is the warehouse handle, shared read-only by all checks
	// in a run
	DataSource datasource.DataSource

	// Policy holds the threshold families for this run
	Policy *threshold.Policy

	// Range is the business date range under evaluation
	Range DateRange

	// Now is the evaluation instant; checks never read the wall clock
	Now time.Time

	Logger *logrus.Entry
}

// Checker is the interface all data-quality checks implement
type Checker interface {
	// Name returns the catalog identifier (e.g. "freshness", "pii")
	Name() string

	// Families lists the threshold families the check reads, so a missing
	// family fails at startup instead of mid-run
	Families() []string

	// Check evaluates the check. Failures of an individual instance should
	// come back as ERROR results; a returned error is converted into a
	// single ERROR result by the registry.
	Check(ctx context.Context, checkCtx *CheckContext) ([]Result, error)
}
