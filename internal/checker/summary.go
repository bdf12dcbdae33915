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

// Summary counts results by status.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`
	Errors   int `json:"errors"`
}

// Tally counts results by status.
func Tally(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Passed++
		case StatusWarning:
			s.Warnings++
		case StatusFail:
			s.Failed++
		default:
			s.Errors++
		}
	}
	return s
}

// Overall derives the run status: FAIL if anything failed, otherwise
// WARNING if anything warned or errored, otherwise PASS.
func (s Summary) Overall() Status {
	switch {
	case s.Failed > 0:
		return StatusFail
	case s.Warnings > 0 || s.Errors > 0:
		return StatusWarning
	default:
		return StatusPass
	}
}

// Consistent reports whether the per-status counts add up to Total.
func (s Summary) Consistent() bool {
	return s.Passed+s.Warnings+s.Failed+s.Errors == s.Total
}
