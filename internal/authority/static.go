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

package authority

import (
	"context"
	"time"
)

// Static serves fixed per-entity figures, for platforms without an API or
// for figures copied from an invoice. The period is ignored.
type Static map[string]Metrics

// FetchMetric returns the configured value for entity and metric.
func (s Static) FetchMetric(_ context.Context, entity, metric string, _, _ time.Time) (float64, bool, error) {
	m, ok := s[entity]
	if !ok {
		return 0, false, nil
	}
	v, ok := m[metric]
	return v, ok, nil
}
