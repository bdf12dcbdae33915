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

package checker

import (
	"encoding/json"
	"fmt"
)

// FlatRecord is a Result flattened for tabular export: the diagnosis is
// split into three columns and the details are stringified.
type FlatRecord struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Entity  string `json:"entity"`
	Message string `json:"message"`
	Cause   string `json:"cause"`
	Impact  string `json:"impact"`
	Action  string `json:"action"`
	Details string `json:"details"`
}

// FlatHeader is the column order of FlatRecord.Values.
var FlatHeader = []string{"name", "status", "entity", "message", "cause", "impact", "action", "details"}

// Flatten converts r into a FlatRecord. Details are encoded as JSON with
// sorted keys so identical results flatten identically.
func (r Result) Flatten() FlatRecord {
	f := FlatRecord{
		Name:    r.Name,
		Status:  string(r.Status),
		Entity:  r.Entity,
		Message: r.Message,
	}
	if r.Diagnosis != nil {
		f.Cause = r.Diagnosis.Cause
		f.Impact = r.Diagnosis.Impact
		f.Action = r.Diagnosis.Action
	}
	if len(r.Details) > 0 {
		b, err := json.Marshal(r.Details)
		if err != nil {
			f.Details = fmt.Sprintf("%v", r.Details)
		} else {
			f.Details = string(b)
		}
	}
	return f
}

// Values returns the record in FlatHeader order.
func (f FlatRecord) Values() []string {
	return []string{f.Name, f.Status, f.Entity, f.Message, f.Cause, f.Impact, f.Action, f.Details}
}
