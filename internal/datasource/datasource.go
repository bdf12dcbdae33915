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

// Package datasource defines the tabular DataSource interface that decouples
// checks from a specific warehouse client, plus the SQL implementation used
// in production.
package datasource

import (
	"context"
	"errors"
	"fmt"
)

// DataSource executes read-only queries against the warehouse. A failed
// query returns a *QueryError; zero rows is a nil error and an empty slice.
type DataSource interface {
	Execute(ctx context.Context, q Query) ([]Row, error)

	// Dialect tells callers how to quote identifiers and spell
	// engine-specific expressions.
	Dialect() Dialect

	// Close releases the underlying connection pool.
	Close() error
}

// ErrNoRows is returned by ExecuteOne when the query produced no rows.
var ErrNoRows = errors.New("query returned no rows")

// ExecuteOne runs q and returns its first row. Aggregate queries always
// yield exactly one row, so ErrNoRows there points at a broken query.
func ExecuteOne(ctx context.Context, ds DataSource, q Query) (Row, error) {
	rows, err := ds.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &QueryError{Query: q.Name, Err: ErrNoRows}
	}
	return rows[0], nil
}

// QuoteAll quotes each identifier for d, failing on the first invalid one.
func QuoteAll(d Dialect, idents ...string) ([]string, error) {
	out := make([]string, len(idents))
	for i, id := range idents {
		q, err := d.QuoteIdent(id)
		if err != nil {
			return nil, fmt.Errorf("identifier %d: %w", i, err)
		}
		out[i] = q
	}
	return out, nil
}
