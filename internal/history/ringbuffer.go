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

// Package history keeps a bounded window of run snapshots for trend
// display in watch mode and the history command.
package history

import (
	"sync"
	"time"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/report"
)

// Snapshot is the point-in-time outcome of one run
type Snapshot struct {
	RunID     string          `json:"runId"`
	Timestamp time.Time       `json:"timestamp"`
	Overall   checker.Status  `json:"overall"`
	Summary   checker.Summary `json:"summary"`
	Score     float64         `json:"score"`
}

// FromRecord summarizes a persisted report.
func FromRecord(rec report.Record) Snapshot {
	return Snapshot{
		RunID:     rec.RunID,
		Timestamp: rec.Timestamp,
		Overall:   rec.OverallStatus,
		Summary:   rec.Summary,
		Score:     ComputeScore(rec.Summary.Passed, rec.Summary.Total-rec.Summary.Passed),
	}
}

// RingBuffer is a fixed-size circular buffer of snapshots
type RingBuffer struct {
	mu       sync.RWMutex
	buf      []Snapshot
	capacity int
	head     int
	count    int
}

// New creates a RingBuffer with the given capacity
func New(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buf:      make([]Snapshot, capacity),
		capacity: capacity,
	}
}

// Seed adds records oldest first, e.g. the output of report.Sink.LoadRecent.
func (rb *RingBuffer) Seed(records []report.Record) {
	for _, rec := range records {
		rb.Add(FromRecord(rec))
	}
}

// Add inserts a snapshot into the buffer, overwriting the oldest if full
func (rb *RingBuffer) Add(s Snapshot) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.head] = s
	rb.head = (rb.head + 1) % rb.capacity
	if rb.count < rb.capacity {
		rb.count++
	}
}

// Latest returns the most recently added snapshot
func (rb *RingBuffer) Latest() (Snapshot, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return Snapshot{}, false
	}

	idx := (rb.head - 1 + rb.capacity) % rb.capacity
	return rb.buf[idx], true
}

// Last returns the last n snapshots in chronological order
func (rb *RingBuffer) Last(n int) []Snapshot {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]Snapshot, n)
	start := (rb.head - n + rb.capacity) % rb.capacity
	for i := 0; i < n; i++ {
		result[i] = rb.buf[(start+i)%rb.capacity]
	}
	return result
}

// Since returns all snapshots with a timestamp at or after t, in chronological order
func (rb *RingBuffer) Since(t time.Time) []Snapshot {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}

	var result []Snapshot
	start := (rb.head - rb.count + rb.capacity) % rb.capacity
	for i := 0; i < rb.count; i++ {
		s := rb.buf[(start+i)%rb.capacity]
		if !s.Timestamp.Before(t) {
			result = append(result, s)
		}
	}
	return result
}

// Len returns the current number of snapshots in the buffer
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// ComputeScore returns passed/(passed+other)*100, or 100 if both are 0
func ComputeScore(passed, other int) float64 {
	total := passed + other
	if total == 0 {
		return 100
	}
	return float64(passed) / float64(total) * 100
}

// Trend labels
const (
	TrendFirstRun  = "FIRST_RUN"
	TrendImproving = "IMPROVING"
	TrendDeclining = "DECLINING"
	TrendSame      = "SAME"
)

// Trend compares the latest snapshot with the one before it.
type Trend struct {
	Previous float64
	Current  float64
	Delta    float64
	Label    string
}

// Trend returns the score movement between the two newest snapshots.
func (rb *RingBuffer) Trend() Trend {
	last := rb.Last(2)
	switch len(last) {
	case 0:
		return Trend{Label: TrendFirstRun}
	case 1:
		return Trend{Current: last[0].Score, Label: TrendFirstRun}
	}
	tr := Trend{Previous: last[0].Score, Current: last[1].Score}
	tr.Delta = tr.Current - tr.Previous
	switch {
	case tr.Delta > 0:
		tr.Label = TrendImproving
	case tr.Delta < 0:
		tr.Label = TrendDeclining
	default:
		tr.Label = TrendSame
	}
	return tr
}
