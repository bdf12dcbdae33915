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

package datasource

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoColumn is returned by Row accessors for a column the result set
	// does not carry, which usually means schema drift.
	ErrNoColumn = errors.New("no such column")

	// ErrType is returned when a column value cannot be converted to the
	// requested type.
	ErrType = errors.New("unexpected column type")

	// ErrInvalidIdent is returned for table or column names that cannot be
	// safely quoted.
	ErrInvalidIdent = errors.New("invalid identifier")
)

// QueryError wraps any failure to execute a named query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("query %s timed out: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("query %s failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the query exceeded its deadline.
func (e *QueryError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsQueryError reports whether err is or wraps a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
