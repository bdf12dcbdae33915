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
	"regexp"
	"strings"
)

// Dialect identifies the SQL flavour of a warehouse.
type Dialect string

const (
	Postgres   Dialect = "postgres"
	ClickHouse Dialect = "clickhouse"
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether id is a plain or dot-qualified identifier.
func ValidIdent(id string) bool {
	if id == "" {
		return false
	}
	for _, part := range strings.Split(id, ".") {
		if !identPart.MatchString(part) {
			return false
		}
	}
	return true
}

// Valid reports whether d is a supported dialect.
func (d Dialect) Valid() bool {
	return d == Postgres || d == ClickHouse
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdent validates and quotes a possibly dot-qualified identifier.
// Identifiers cannot be bound as parameters, so this is the only path by
// which a table or column name reaches SQL text.
func (d Dialect) QuoteIdent(id string) (string, error) {
	if !ValidIdent(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdent, id)
	}
	quote := `"`
	if d == ClickHouse {
		quote = "`"
	}
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = quote + p + quote
	}
	return strings.Join(parts, "."), nil
}

// Length wraps expr in the engine's string length function.
func (d Dialect) Length(expr string) string {
	if d == ClickHouse {
		return "lengthUTF8(" + expr + ")"
	}
	return "LENGTH(" + expr + ")"
}

// JSONText extracts a top-level string field from a JSON column. key must
// already have passed ValidIdent.
func (d Dialect) JSONText(expr, key string) string {
	if d == ClickHouse {
		return fmt.Sprintf("JSONExtractString(%s, '%s')", expr, key)
	}
	return fmt.Sprintf("(%s::jsonb ->> '%s')", expr, key)
}

// Float casts expr to a floating point number, yielding NULL for values
// that do not parse on engines that support it.
func (d Dialect) Float(expr string) string {
	if d == ClickHouse {
		return "toFloat64OrNull(toString(" + expr + "))"
	}
	return "CAST(" + expr + " AS DOUBLE PRECISION)"
}

// Median returns the aggregate expression for the median of expr.
func (d Dialect) Median(expr string) string {
	if d == ClickHouse {
		return "quantileExact(0.5)(" + expr + ")"
	}
	return "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY " + expr + ")"
}

// TableStatsSQL returns a query yielding table_name, row_count and
// last_modified for every table in the :schema parameter.
//
// Postgres keeps no per-table write timestamp, so the newest vacuum or
// analyze time stands in for it; deployments that need precision override
// this query in configuration.
func (d Dialect) TableStatsSQL() string {
	if d == ClickHouse {
		return `SELECT t.name AS table_name,
       coalesce(p.row_count, 0) AS row_count,
       p.last_modified AS last_modified
FROM system.tables AS t
LEFT JOIN (
    SELECT table, sum(rows) AS row_count, max(modification_time) AS last_modified
    FROM system.parts
    WHERE database = :schema AND active
    GROUP BY table
) AS p ON p.table = t.name
WHERE t.database = :schema`
	}
	return `SELECT relname AS table_name,
       n_live_tup AS row_count,
       GREATEST(last_vacuum, last_autovacuum, last_analyze, last_autoanalyze) AS last_modified
FROM pg_stat_user_tables
WHERE schemaname = :schema`
}
