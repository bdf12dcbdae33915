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

package diagnosis

import "github.com/raphaelisaac/hulken/internal/checker"

// DetailRenderError is the details key set when a diagnosis fails to render.
const DetailRenderError = "diagnosis_error"

// Attach renders key and returns r carrying the diagnosis. A diagnosis is
// optional, so a render failure keeps the finding and records the error in
// the details instead of turning the result into an ERROR.
func (c *Catalog) Attach(r checker.Result, key string, data map[string]any) checker.Result {
	d, err := c.Render(key, data)
	if err != nil {
		details := make(map[string]any, len(r.Details)+1)
		for k, v := range r.Details {
			details[k] = v
		}
		details[DetailRenderError] = err.Error()
		return r.WithDetails(details)
	}
	return r.WithDiagnosis(d)
}

// OrDefault returns c, or the built-in catalog when c is nil.
func OrDefault(c *Catalog) *Catalog {
	if c != nil {
		return c
	}
	return Default()
}
