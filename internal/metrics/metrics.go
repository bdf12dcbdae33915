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

// Package metrics exposes run and check outcomes as Prometheus metrics,
// written to a node_exporter textfile after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/reconcile"
)

var statuses = []checker.Status{checker.StatusPass, checker.StatusWarning, checker.StatusFail, checker.StatusError}

// Recorder owns the collectors and a private registry. It implements
// reconcile.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// runsTotal counts completed runs by overall status
	runsTotal *prometheus.CounterVec

	// checkDuration tracks the wall time of each check
	checkDuration *prometheus.HistogramVec

	// checkResults holds the latest result count per check and status
	checkResults *prometheus.GaugeVec

	lastRun        prometheus.Gauge
	lastRunResults *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hulken_runs_total",
				Help: "Total number of reconciliation runs by overall status",
			},
			[]string{"overall"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hulken_check_duration_seconds",
				Help:    "Duration of individual check execution in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"check"},
		),
		checkResults: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hulken_check_results",
				Help: "Number of results produced by the last execution of each check, by status",
			},
			[]string{"check", "status"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hulken_last_run_timestamp_seconds",
			Help: "Unix time the last reconciliation run completed",
		}),
		lastRunResults: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hulken_last_run_results",
				Help: "Result counts of the last reconciliation run, by status",
			},
			[]string{"status"},
		),
	}
	r.registry.MustRegister(r.runsTotal, r.checkDuration, r.checkResults, r.lastRun, r.lastRunResults)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// CheckFinished records one check's duration and result counts. Every
// status is set so a check that recovers drops back to zero.
func (r *Recorder) CheckFinished(_ *reconcile.Run, check string, results []checker.Result, elapsed time.Duration) {
	r.checkDuration.WithLabelValues(check).Observe(elapsed.Seconds())
	counts := countByStatus(results)
	for _, s := range statuses {
		r.checkResults.WithLabelValues(check, string(s)).Set(float64(counts[s]))
	}
}

// RunFinished records the run outcome.
func (r *Recorder) RunFinished(run *reconcile.Run) {
	r.runsTotal.WithLabelValues(string(run.Overall())).Inc()
	r.lastRun.Set(float64(run.FinishedAt.Unix()))
	counts := countByStatus(run.Results)
	for _, s := range statuses {
		r.lastRunResults.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// WriteTextfile writes every collector to path in the text exposition
// format, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func countByStatus(results []checker.Result) map[checker.Status]int {
	counts := make(map[checker.Status]int, len(statuses))
	for _, res := range results {
		counts[res.Status]++
	}
	return counts
}
