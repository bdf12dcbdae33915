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

// Package integrity implements the row-level correctness checks:
// duplicates, null rates, price format, record volume and table inventory.
package integrity

import (
	"fmt"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
)

// dateFilter returns a WHERE clause restricting dateColumn to the run
// range, or an empty string when no date column is configured. The range
// is bound through :start and :end.
func dateFilter(d datasource.Dialect, dateColumn string, extra ...string) (string, error) {
	var conds []string
	if dateColumn != "" {
		col, err := d.QuoteIdent(dateColumn)
		if err != nil {
			return "", err
		}
		conds = append(conds, fmt.Sprintf("CAST(%s AS DATE) BETWEEN :start AND :end", col))
	}
	conds = append(conds, extra...)
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, nil
}

// withRange binds the run range when the query filters on it.
func withRange(q datasource.Query, r checker.DateRange, dateColumn string) datasource.Query {
	if dateColumn == "" {
		return q
	}
	return q.
		With("start", r.Start.Format(checker.DateLayout)).
		With("end", r.End.Format(checker.DateLayout))
}

func rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
