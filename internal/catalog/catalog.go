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


// Package catalog assembles the ordered check registry from configuration.
package catalog

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/authority"
	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/checker/crosssource"
	"github.com/raphaelisaac/hulken/internal/checker/freshness"
	"github.com/raphaelisaac/hulken/internal/checker/integrity"
	"github.com/raphaelisaac/hulken/internal/checker/privacy"
	"github.com/raphaelisaac/hulken/internal/config"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// Order is the catalog declaration order. "all" runs checks in this order.
var Order = []string{
	freshness.FreshnessName,
	integrity.DuplicatesName,
	privacy.PIIName,
	privacy.HashesName,
	privacy.HashMatchName,
	freshness.ContinuityName,
	integrity.NullsName,
	privacy.ScheduleName,
	crosssource.Name,
	freshness.SyncLagName,
	integrity.PriceName,
	integrity.VolumeName,
	integrity.InventoryName,
}

// Catalog is everything a run needs besides the data source.
type Catalog struct {
	Registry  *checker.Registry
	Policy    *threshold.Policy
	Diagnoses *diagnosis.Catalog
}

// Build validates cfg's threshold policy and diagnosis pins, then
// registers every configured check in declaration order. Checks with
// nothing to evaluate are left out. Every threshold family a registered
// check reads must exist, or Build fails before any query is issued.
func Build(cfg *config.Config, logger *logrus.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("threshold policy: %w", err)
	}
	diags := diagnosis.Default()
	for key, version := range cfg.Diagnoses {
		if err := diags.Pin(key, version); err != nil {
			return nil, err
		}
	}

	builders := map[string]func() (checker.Checker, bool){
		freshness.FreshnessName: func() (checker.Checker, bool) {
			t := freshnessTargets(cfg)
			return freshness.NewFreshnessChecker(t, diags), len(t) > 0
		},
		integrity.DuplicatesName: func() (checker.Checker, bool) {
			t := keyTargets(cfg)
			return integrity.NewDuplicatesChecker(t, diags), len(t) > 0
		},
		privacy.PIIName: func() (checker.Checker, bool) {
			t := piiTargets(cfg)
			return privacy.NewPIIChecker(t, diags), len(t) > 0
		},
		privacy.HashesName: func() (checker.Checker, bool) {
			t := hashTargets(cfg)
			return privacy.NewHashChecker(t, diags), len(t) > 0
		},
		privacy.HashMatchName: func() (checker.Checker, bool) {
			p := hashPairs(cfg)
			return privacy.NewHashMatchChecker(p, diags), len(p) > 0
		},
		freshness.ContinuityName: func() (checker.Checker, bool) {
			t := freshnessTargets(cfg)
			return freshness.NewContinuityChecker(t, cfg.Checks.ContinuityBuffer, diags), len(t) > 0
		},
		integrity.NullsName: func() (checker.Checker, bool) {
			f := nullFields(cfg)
			return integrity.NewNullsChecker(f, diags), len(f) > 0
		},
		privacy.ScheduleName: func() (checker.Checker, bool) {
			s := cfg.Checks.Schedule
			if s == nil {
				return nil, false
			}
			return privacy.NewScheduleChecker(privacy.ScheduleTarget{
				Job:          s.Job,
				Pattern:      s.Pattern,
				Window:       s.Window,
				ExpectedRuns: s.ExpectedRuns,
				MaxStaleness: s.MaxStaleness,
				SQL:          s.SQL,
			}, diags), true
		},
		crosssource.Name: func() (checker.Checker, bool) {
			s := crossSources(cfg, logger)
			return crosssource.NewChecker(s, diags), len(s) > 0
		},
		freshness.SyncLagName: func() (checker.Checker, bool) {
			return freshness.NewSyncLagChecker(cfg.Warehouse.Schema, cfg.Warehouse.TableStatsSQL, syncLagTargets(cfg), diags), true
		},
		integrity.PriceName: func() (checker.Checker, bool) {
			t := priceTargets(cfg)
			return integrity.NewPriceChecker(t, diags), len(t) > 0
		},
		integrity.VolumeName: func() (checker.Checker, bool) {
			t := volumeTargets(cfg)
			return integrity.NewVolumeChecker(t, diags), len(t) > 0
		},
		integrity.InventoryName: func() (checker.Checker, bool) {
			expected := cfg.Checks.Inventory.Expected
			if len(expected) == 0 {
				for _, s := range cfg.Sources {
					expected = append(expected, s.Table)
				}
			}
			return integrity.NewInventoryChecker(cfg.Warehouse.Schema, cfg.Warehouse.TableStatsSQL,
				cfg.Checks.Inventory.Baseline, expected, diags), true
		},
	}

	reg := checker.NewRegistry()
	for _, name := range Order {
		c, ok := builders[name]()
		if !ok {
			logger.WithField("check", name).Debug("Nothing configured, check not registered")
			continue
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	all, err := reg.Resolve(nil)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(checker.Families(all)...); err != nil {
		return nil, fmt.Errorf("threshold policy: %w", err)
	}
	return &Catalog{Registry: reg, Policy: policy, Diagnoses: diags}, nil
}

func freshnessTargets(cfg *config.Config) []freshness.Target {
	out := make([]freshness.Target, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, freshness.Target{
			Key:        s.Key,
			Label:      s.DisplayName(),
			Table:      s.Table,
			DateColumn: s.DateColumn,
			DailyValue: s.DailyValue,
		})
	}
	return out
}

func keyTargets(cfg *config.Config) []integrity.KeyTarget {
	var out []integrity.KeyTarget
	for _, s := range cfg.Sources {
		if len(s.KeyColumns) == 0 {
			continue
		}
		out = append(out, integrity.KeyTarget{
			Key:            s.Key,
			Label:          s.DisplayName(),
			Table:          s.Table,
			KeyColumns:     s.KeyColumns,
			DateColumn:     s.DateColumn,
			AppendMode:     s.AppendMode,
			IngestedColumn: s.IngestedColumn,
		})
	}
	return out
}

func priceTargets(cfg *config.Config) []integrity.PriceTarget {
	var out []integrity.PriceTarget
	for _, s := range cfg.Sources {
		if s.PriceColumn == "" {
			continue
		}
		out = append(out, integrity.PriceTarget{
			Key:         s.Key,
			Label:       s.DisplayName(),
			Table:       s.Table,
			PriceColumn: s.PriceColumn,
			DateColumn:  s.DateColumn,
		})
	}
	return out
}

func volumeTargets(cfg *config.Config) []integrity.VolumeTarget {
	out := make([]integrity.VolumeTarget, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, integrity.VolumeTarget{Key: s.Key, Label: s.DisplayName(), Table: s.Table, DateColumn: s.DateColumn})
	}
	return out
}

func nullFields(cfg *config.Config) []integrity.FieldTarget {
	out := make([]integrity.FieldTarget, 0, len(cfg.Checks.Nulls))
	for _, f := range cfg.Checks.Nulls {
		out = append(out, integrity.FieldTarget{Table: f.Table, Column: f.Column, Purpose: f.Purpose, DateColumn: f.DateColumn})
	}
	return out
}

func piiTargets(cfg *config.Config) []privacy.PIITarget {
	out := make([]privacy.PIITarget, 0, len(cfg.Checks.PII))
	for _, p := range cfg.Checks.PII {
		out = append(out, privacy.PIITarget{
			Table:       p.Table,
			Column:      p.Column,
			Field:       p.Field,
			Predicate:   privacy.Predicate(p.Predicate),
			JSONKey:     p.JSONKey,
			Description: p.Description,
		})
	}
	return out
}

func hashTargets(cfg *config.Config) []privacy.HashTarget {
	out := make([]privacy.HashTarget, 0, len(cfg.Checks.Hashes))
	for _, h := range cfg.Checks.Hashes {
		out = append(out, privacy.HashTarget{
			Table:                 h.Table,
			Column:                h.Column,
			Length:                h.Length,
			ExpectedMissingReason: h.ExpectedMissingReason,
		})
	}
	return out
}

func hashPairs(cfg *config.Config) []privacy.HashPair {
	out := make([]privacy.HashPair, 0, len(cfg.Checks.HashMatch))
	for _, p := range cfg.Checks.HashMatch {
		name := p.Name
		if name == "" {
			name = p.Left.Table + " vs " + p.Right.Table
		}
		out = append(out, privacy.HashPair{
			Name:  name,
			Left:  privacy.HashColumn{Table: p.Left.Table, Column: p.Left.Column},
			Right: privacy.HashColumn{Table: p.Right.Table, Column: p.Right.Column},
		})
	}
	return out
}

func syncLagTargets(cfg *config.Config) []freshness.TableTarget {
	out := make([]freshness.TableTarget, 0, len(cfg.Checks.SyncLag))
	for _, t := range cfg.Checks.SyncLag {
		out = append(out, freshness.TableTarget{Table: t.Table, DailyValue: t.DailyValue})
	}
	return out
}

func crossSources(cfg *config.Config, logger *logrus.Logger) []crosssource.Source {
	var out []crosssource.Source
	for _, s := range cfg.Sources {
		a := s.Authority
		if a == nil {
			continue
		}
		src := crosssource.Source{
			Key:          s.Key,
			Label:        s.DisplayName(),
			Authority:    newAuthority(cfg.Authority, a, logger),
			Table:        s.Table,
			DateColumn:   s.DateColumn,
			EntityColumn: a.EntityColumn,
			Entities:     a.Entities,
			Metrics:      metrics(a.Metrics),
		}
		if a.Platform == config.PlatformStatic && len(src.Entities) == 0 {
			for entity := range a.Static {
				src.Entities = append(src.Entities, entity)
			}
			sort.Strings(src.Entities)
		}
		out = append(out, src)
	}
	return out
}

// metrics orders the configured metrics: the shared platform metrics
// first, then any others by name.
func metrics(m map[string]string) []crosssource.Metric {
	out := make([]crosssource.Metric, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, name := range authority.DefaultMetrics {
		if col, ok := m[name]; ok {
			out = append(out, crosssource.Metric{Name: name, Column: col})
			seen[name] = true
		}
	}
	var rest []string
	for name := range m {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, crosssource.Metric{Name: name, Column: m[name]})
	}
	return out
}

func newAuthority(opts config.Authority, a *config.SourceAuthority, logger *logrus.Logger) crosssource.Authority {
	o := authority.Options{
		BaseURL:           a.BaseURL,
		RequestsPerSecond: opts.RequestsPerSecond,
		Retries:           opts.Retries,
		Logger:            logger,
	}
	if o.Retries == 0 {
		o.Retries = -1
	}
	if opts.Timeout > 0 {
		o.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	switch a.Platform {
	case config.PlatformFacebook:
		return authority.NewFacebook(a.Token, o)
	case config.PlatformTikTok:
		return authority.NewTikTok(a.Token, o)
	default:
		static := make(authority.Static, len(a.Static))
		for entity, values := range a.Static {
			static[entity] = authority.Metrics(values)
		}
		return static
	}
}
