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

package crosssource

import (
	"math"

	"github.com/raphaelisaac/hulken/internal/threshold"
)

// Verdict is the outcome of comparing one metric.
type Verdict string

const (
	VerdictMatch    Verdict = "MATCH"
	VerdictMismatch Verdict = "MISMATCH"

	// VerdictSkip marks a vacuous comparison: a side is absent, or both
	// sides are zero. Skips are never counted as matches.
	VerdictSkip Verdict = "SKIP"
)

// Comparison is one metric compared between the authority and the warehouse.
type Comparison struct {
	Metric    string          `json:"metric"`
	Source    *float64        `json:"source"`
	Warehouse *float64        `json:"warehouse"`
	DiffPct   float64         `json:"diff_pct"`
	Verdict   Verdict         `json:"verdict"`
	Level     threshold.Level `json:"-"`

	// SourceEmpty is set when the authority reports zero but the warehouse
	// does not; DiffPct is then 100 by definition.
	SourceEmpty bool `json:"source_empty,omitempty"`
}

// Compare classifies source against warehouse. Differences are relative to
// the source, which is authoritative. A zero source with a non-zero
// warehouse is a mismatch at warning level: it usually means there is no
// comparable data rather than a true disagreement.
func Compare(metric string, source, warehouse *float64, bounds threshold.Bounds) Comparison {
	c := Comparison{Metric: metric, Source: source, Warehouse: warehouse}
	switch {
	case source == nil || warehouse == nil:
		c.Verdict = VerdictSkip
	case *source == 0 && *warehouse == 0:
		c.Verdict = VerdictSkip
	case *source == 0:
		c.DiffPct = 100
		c.SourceEmpty = true
		c.Verdict = VerdictMismatch
		c.Level = threshold.LevelWarning
	default:
		c.DiffPct = math.Abs(*source-*warehouse) * 100 / math.Abs(*source)
		c.Level = bounds.Above(c.DiffPct)
		c.Verdict = VerdictMatch
		if c.Level != threshold.LevelOK {
			c.Verdict = VerdictMismatch
		}
	}
	return c
}

// Value returns a pointer to v, for building comparisons from literals.
func Value(v float64) *float64 {
	return &v
}
