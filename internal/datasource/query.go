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
	"strings"
)

// Query is a named SQL statement with :name placeholders. Values are bound
// by the driver at execution time and never interpolated into the text.
type Query struct {
	// Name identifies the query in logs, errors and test fakes
	// (e.g. "duplicates/facebook").
	Name string

	SQL  string
	Args map[string]any
}

// NewQuery creates a query with no arguments.
func NewQuery(name, sql string) Query {
	return Query{Name: name, SQL: sql}
}

// With returns a copy of q with key bound to v.
func (q Query) With(key string, v any) Query {
	args := make(map[string]any, len(q.Args)+1)
	for k, val := range q.Args {
		args[k] = val
	}
	args[key] = v
	q.Args = args
	return q
}

// Bind rewrites the named placeholders for d and returns the positional
// argument list. Placeholders inside quoted strings or identifiers and
// Postgres "::" casts are left alone. Every placeholder must have a value.
func (q Query) Bind(d Dialect) (string, []any, error) {
	var (
		b       strings.Builder
		args    []any
		indexes = map[string]int{}
		src     = q.SQL
	)
	b.Grow(len(src))

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\'', '"', '`':
			end := closingQuote(src, i)
			b.WriteString(src[i:end])
			i = end - 1
			continue
		case ':':
			if i+1 < len(src) && src[i+1] == ':' {
				b.WriteString("::")
				i++
				continue
			}
			if i+1 < len(src) && isIdentStart(src[i+1]) {
				j := i + 1
				for j < len(src) && isIdentChar(src[j]) {
					j++
				}
				name := src[i+1 : j]
				val, ok := q.Args[name]
				if !ok {
					return "", nil, fmt.Errorf("query %s: no value for :%s", q.Name, name)
				}
				if d == Postgres {
					idx, seen := indexes[name]
					if !seen {
						args = append(args, val)
						idx = len(args)
						indexes[name] = idx
					}
					b.WriteString(d.Placeholder(idx))
				} else {
					args = append(args, val)
					b.WriteString(d.Placeholder(len(args)))
				}
				i = j - 1
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String(), args, nil
}

// closingQuote returns the index just past the quoted run starting at i.
// Doubled quote characters are treated as escapes.
func closingQuote(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
