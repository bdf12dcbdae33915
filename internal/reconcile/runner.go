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

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// SetupError means the run could not start: the warehouse was unreachable.
// It is the only error Runner.Run returns after configuration is valid.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsSetupError reports whether err is, or wraps, a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

// DefaultRangeDays is the trailing window used when no range is given.
const DefaultRangeDays = 30

// Opener acquires the warehouse connection for one run.
type Opener func(ctx context.Context) (datasource.DataSource, error)

// Observer is notified as a run progresses. Implementations must not
// block for long; they run on the run's goroutine.
type Observer interface {
	// CheckFinished is called once per check with the results it produced
	// and its wall time.
	CheckFinished(run *Run, check string, results []checker.Result, elapsed time.Duration)

	// RunFinished is called after the run completes.
	RunFinished(run *Run)
}

// Runner is the single entry point for executing checks.
type Runner struct {
	registry  *checker.Registry
	policy    *threshold.Policy
	open      Opener
	logger    *logrus.Logger
	observers []Observer
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithObservers appends observers notified during every run.
func WithObservers(obs ...Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, obs...)
	}
}

// NewRunner creates a Runner. The policy is fixed for the Runner's
// lifetime.
func NewRunner(registry *checker.Registry, policy *threshold.Policy, open Opener, logger *logrus.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	r := &Runner{
		registry: registry,
		policy:   policy,
		open:     open,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate checks that names resolve and every threshold family they read
// is configured, without touching the warehouse.
func (r *Runner) Validate(names []string) ([]checker.Checker, error) {
	checks, err := r.registry.Resolve(names)
	if err != nil {
		return nil, err
	}
	if err := r.policy.Require(checker.Families(checks)...); err != nil {
		return nil, err
	}
	return checks, nil
}

// Run executes the named checks (all of them for nil or "all") over dr,
// or over the trailing DefaultRangeDays when dr is zero.
// Configuration problems and an unreachable warehouse are returned as
// errors before any check executes; everything else becomes a result.
func (r *Runner) Run(ctx context.Context, names []string, dr checker.DateRange) (*Run, error) {
	checks, err := r.Validate(names)
	if err != nil {
		return nil, err
	}

	started := r.now()
	if dr.IsZero() {
		dr = checker.TrailingDays(started, DefaultRangeDays)
	}
	resolved := make([]string, len(checks))
	for i, c := range checks {
		resolved[i] = c.Name()
	}
	run := NewRun(dr, resolved)
	log := r.logger.WithFields(logging.Fields{"run_id": run.ID, "range": dr.String()})

	ds, err := r.open(ctx)
	if err != nil {
		log.WithError(err).Error("Warehouse unavailable, aborting run")
		return nil, &SetupError{Err: err}
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.WithError(err).Warn("Closing warehouse connection failed")
		}
	}()

	if err := run.Start(started); err != nil {
		return nil, err
	}
	log.WithField("checks", len(checks)).Info("Reconciliation run started")

	for _, c := range checks {
		checkLog := log.WithField("check", c.Name())
		checkCtx := &checker.CheckContext{
			DataSource: ds,
			Policy:     r.policy,
			Range:      dr,
			Now:        run.StartedAt,
			Logger:     checkLog,
		}
		began := time.Now()
		results := checker.Execute(ctx, c, checkCtx)
		elapsed := time.Since(began)
		if err := run.Record(results...); err != nil {
			return nil, err
		}

		s := checker.Tally(results)
		checkLog.WithFields(logging.Fields{
			"status":   s.Overall(),
			"results":  s.Total,
			"duration": elapsed.String(),
		}).Debug("Check finished")
		for _, o := range r.observers {
			o.CheckFinished(run, c.Name(), results, elapsed)
		}
	}

	if err := run.Complete(r.now()); err != nil {
		return nil, err
	}
	s := run.Summary()
	log.WithFields(logging.Fields{
		"overall":  s.Overall(),
		"total":    s.Total,
		"passed":   s.Passed,
		"warnings": s.Warnings,
		"failed":   s.Failed,
		"errors":   s.Errors,
		"duration": run.Duration().String(),
	}).Info("Reconciliation run complete")
	for _, o := range r.observers {
		o.RunFinished(run)
	}
	return run, nil
}
