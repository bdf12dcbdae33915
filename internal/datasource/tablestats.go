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
	"time"
)

// TableStats is one row of warehouse table metadata.
type TableStats struct {
	Table        string
	RowCount     int64
	LastModified time.Time
	HasModified  bool
}

// LoadTableStats reads table metadata for every table in schema. statsSQL
// overrides the dialect's default metadata query when non-empty.
func LoadTableStats(ctx context.Context, ds DataSource, schema, statsSQL string) (map[string]TableStats, error) {
	if statsSQL == "" {
		statsSQL = ds.Dialect().TableStatsSQL()
	}
	q := NewQuery("table_stats/"+schema, statsSQL).With("schema", schema)
	rows, err := ds.Execute(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make(map[string]TableStats, len(rows))
	for _, row := range rows {
		name, _, err := row.String("table_name")
		if err != nil {
			return nil, err
		}
		count, _, err := row.Int("row_count")
		if err != nil {
			return nil, err
		}
		modified, ok, err := row.Time("last_modified")
		if err != nil {
			return nil, err
		}
		out[name] = TableStats{Table: name, RowCount: count, LastModified: modified, HasModified: ok}
	}
	return out, nil
}
