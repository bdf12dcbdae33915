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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row gives named, typed access to one result row. Each typed accessor
// returns ok=false for SQL NULL and an error for a missing column or a
// value that cannot be converted.
type Row interface {
	Columns() []string
	Value(col string) (any, error)
	String(col string) (string, bool, error)
	Float(col string) (float64, bool, error)
	Int(col string) (int64, bool, error)
	Time(col string) (time.Time, bool, error)
}

// MapRow is the Row implementation shared by every DataSource.
type MapRow struct {
	cols []string
	vals map[string]any
}

// NewRow builds a row from parallel column and value slices.
func NewRow(cols []string, vals []any) MapRow {
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		if i < len(vals) {
			m[c] = vals[i]
		}
	}
	return MapRow{cols: append([]string(nil), cols...), vals: m}
}

// RowOf builds a row from a map; columns are reported in sorted order.
func RowOf(kv map[string]any) MapRow {
	cols := make([]string, 0, len(kv))
	for k := range kv {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = kv[c]
	}
	return NewRow(cols, vals)
}

func (r MapRow) Columns() []string {
	return append([]string(nil), r.cols...)
}

// Value returns the raw driver value. Lookups fall back to a
// case-insensitive match since drivers differ in how they fold aliases.
func (r MapRow) Value(col string) (any, error) {
	if v, ok := r.vals[col]; ok {
		return v, nil
	}
	for k, v := range r.vals {
		if strings.EqualFold(k, col) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoColumn, col)
}

func (r MapRow) String(col string) (string, bool, error) {
	v, err := r.Value(col)
	if err != nil || v == nil {
		return "", false, err
	}
	switch x := v.(type) {
	case string:
		return x, true, nil
	case []byte:
		return string(x), true, nil
	case time.Time:
		return x.Format(time.RFC3339), true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	default:
		return fmt.Sprint(x), true, nil
	}
}

func (r MapRow) Float(col string) (float64, bool, error) {
	v, err := r.Value(col)
	if err != nil || v == nil {
		return 0, false, err
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false, fmt.Errorf("column %s: %w", col, err)
	}
	return f, true, nil
}

func (r MapRow) Int(col string) (int64, bool, error) {
	v, err := r.Value(col)
	if err != nil || v == nil {
		return 0, false, err
	}
	switch x := v.(type) {
	case int64:
		return x, true, nil
	case int:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case uint64:
		return int64(x), true, nil
	case uint32:
		return int64(x), true, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false, fmt.Errorf("column %s: %w", col, err)
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("column %s: %w: %v is not integral", col, ErrType, f)
	}
	return int64(f), true, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (r MapRow) Time(col string) (time.Time, bool, error) {
	v, err := r.Value(col)
	if err != nil || v == nil {
		return time.Time{}, false, err
	}
	var s string
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false, nil
		}
		return x, true, nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false, nil
		}
		return *x, true, nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}, false, fmt.Errorf("column %s: %w: %T", col, ErrType, v)
	}
	for _, layout := range timeLayouts {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("column %s: %w: unparseable time %q", col, ErrType, s)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseFloat(x)
	case []byte:
		return parseFloat(string(x))
	case fmt.Stringer:
		// decimal types from the ClickHouse driver
		return parseFloat(x.String())
	default:
		return 0, fmt.Errorf("%w: %T", ErrType, v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrType, s)
	}
	return f, nil
}
