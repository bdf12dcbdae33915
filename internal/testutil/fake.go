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

// Package testutil provides an in-memory DataSource and helpers shared by
// check tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// Now is the fixed evaluation instant used by NewCheckContext.
var Now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// HandlerFunc answers a query dynamically.
type HandlerFunc func(q datasource.Query) ([]datasource.Row, error)

// FakeSource is a DataSource whose answers are keyed by query name.
// Queries with no registered answer fail with a QueryError, which mirrors
// a dropped table in a real warehouse.
type FakeSource struct {
	mu       sync.Mutex
	dialect  datasource.Dialect
	handlers map[string]HandlerFunc
	calls    []datasource.Query
	closed   bool
}

// NewFakeSource creates an empty Postgres-dialect fake.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		dialect:  datasource.Postgres,
		handlers: make(map[string]HandlerFunc),
	}
}

// WithDialect switches the dialect reported to checks.
func (f *FakeSource) WithDialect(d datasource.Dialect) *FakeSource {
	f.dialect = d
	return f
}

// On answers the named query with rows.
func (f *FakeSource) On(name string, rows ...map[string]any) *FakeSource {
	out := make([]datasource.Row, len(rows))
	for i, r := range rows {
		out[i] = datasource.RowOf(r)
	}
	return f.Handle(name, func(datasource.Query) ([]datasource.Row, error) {
		return out, nil
	})
}

// Fail makes the named query return err wrapped in a QueryError.
func (f *FakeSource) Fail(name string, err error) *FakeSource {
	return f.Handle(name, func(datasource.Query) ([]datasource.Row, error) {
		return nil, err
	})
}

// Handle installs a dynamic handler for the named query.
func (f *FakeSource) Handle(name string, fn HandlerFunc) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
	return f
}

func (f *FakeSource) Execute(ctx context.Context, q datasource.Query) ([]datasource.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	h, ok := f.handlers[q.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &datasource.QueryError{Query: q.Name, Err: err}
	}
	if _, _, err := q.Bind(f.dialect); err != nil {
		return nil, &datasource.QueryError{Query: q.Name, Err: err}
	}
	if !ok {
		return nil, &datasource.QueryError{Query: q.Name, Err: fmt.Errorf("no fake answer for query %q", q.Name)}
	}
	rows, err := h(q)
	if err != nil {
		return nil, &datasource.QueryError{Query: q.Name, Err: err}
	}
	return rows, nil
}

func (f *FakeSource) Dialect() datasource.Dialect {
	return f.dialect
}

func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns every query executed so far, in order.
func (f *FakeSource) Calls() []datasource.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]datasource.Query(nil), f.calls...)
}

// Closed reports whether Close was called.
func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// NewCheckContext returns a context over ds with the default policy, Now as
// the evaluation instant and the trailing 30 days as the range.
func NewCheckContext(t testing.TB, ds datasource.DataSource) *checker.CheckContext {
	t.Helper()
	return &checker.CheckContext{
		DataSource: ds,
		Policy:     threshold.Default(),
		Range:      checker.TrailingDays(Now, 30),
		Now:        Now,
		Logger:     logging.NewDiscardLogger().WithField("test", t.Name()),
	}
}

// Policy returns the default policy with one family replaced.
func Policy(t testing.TB, family string, b threshold.Bounds) *threshold.Policy {
	t.Helper()
	p, err := threshold.Default().With(map[string]threshold.Bounds{family: b})
	if err != nil {
		t.Fatalf("policy override for %s: %v", family, err)
	}
	return p
}

// FindResult returns the result named name or fails the test.
func FindResult(t testing.TB, results []checker.Result, name string) checker.Result {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	t.Fatalf("no result named %q in %v", name, names)
	return checker.Result{}
}
