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

// Package alert decides whether a run's findings warrant a notification,
// suppressing repeats of an alert already sent within a window.
package alert

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/reconcile"
)

// DefaultWindow is the suppression window used when none is configured.
const DefaultWindow = 4 * time.Hour

// State is what the gate remembers about the last alert sent.
type State struct {
	LastAlert time.Time `json:"last_alert"`
	Entities  []string  `json:"alerted_tables"`

	// AlertCount is the number of entities in the last alert
	AlertCount int `json:"alert_count"`
}

// IsZero reports whether no alert was ever recorded.
func (s State) IsZero() bool {
	return s.LastAlert.IsZero() && len(s.Entities) == 0
}

// Store persists State between runs.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

// Decision is the outcome of evaluating one run.
type Decision struct {
	ShouldAlert bool
	Reason      string

	// Entities is the sorted set of offending entity identifiers
	Entities []string
}

// Reasons reported in Decision.Reason.
const (
	ReasonClean      = "no non-PASS results"
	ReasonSuppressed = "already alerted for these entities within the window"
	ReasonNew        = "new or changed findings"
)

// Decide applies the gate rule. Nothing offending never alerts. Offending
// entities that are all contained in the set alerted within window are
// suppressed; a superset of that set alerts again.
func Decide(results []checker.Result, prev State, window time.Duration, now time.Time) Decision {
	entities := reconcile.OffendingEntities(results)
	if len(entities) == 0 {
		return Decision{Reason: ReasonClean}
	}
	d := Decision{Entities: entities}
	if !prev.IsZero() && now.Sub(prev.LastAlert) < window && subset(entities, prev.Entities) {
		d.Reason = ReasonSuppressed
		return d
	}
	d.ShouldAlert = true
	d.Reason = ReasonNew
	return d
}

func subset(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	for _, s := range a {
		if !set[s] {
			return false
		}
	}
	return true
}

// Gate wraps Decide with state persistence.
type Gate struct {
	store  Store
	window time.Duration
	logger *logrus.Entry
	now    func() time.Time
}

// NewGate creates a gate over store. A non-positive window means
// DefaultWindow.
func NewGate(store Store, window time.Duration, logger *logrus.Logger) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Gate{
		store:  store,
		window: window,
		logger: logger.WithField("component", "alert"),
		now:    time.Now,
	}
}

// Evaluate decides on results and, when alerting, saves the new state
// before returning. An unreadable state alerts; a failed save is logged.
// Neither is returned to the caller.
func (g *Gate) Evaluate(ctx context.Context, results []checker.Result) Decision {
	prev, err := g.store.Load(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("Alert state unreadable, treating as first alert")
		prev = State{}
	}

	now := g.now()
	d := Decide(results, prev, g.window, now)
	log := g.logger.WithFields(logging.Fields{
		"should_alert": d.ShouldAlert,
		"reason":       d.Reason,
		"entities":     d.Entities,
	})
	if !d.ShouldAlert {
		log.Info("Alert not sent")
		return d
	}

	next := State{LastAlert: now.UTC(), Entities: d.Entities, AlertCount: len(d.Entities)}
	if err := g.store.Save(ctx, next); err != nil {
		log.WithError(err).Error("Saving alert state failed")
	}
	log.Info("Alerting")
	return d
}
