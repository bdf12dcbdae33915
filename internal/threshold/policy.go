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

// Package threshold holds the named warning/critical boundaries that checks
// classify their measurements against.
package threshold

import (
	"errors"
	"fmt"
	"sort"
)

// Check families
const (
	FamilyFreshness     = "freshness"
	FamilySyncLag       = "sync_lag"
	FamilyContinuity    = "continuity"
	FamilyDuplicateRate = "duplicate_rate"
	FamilyNullRate      = "null_rate"
	FamilyHashMissing   = "hash_missing"
	FamilyHashMismatch  = "hash_mismatch"
	FamilyJobShortfall  = "job_shortfall"
	FamilyCrossSource   = "cross_source"
	FamilyPriceAnomaly  = "price_anomaly"
)

// ExtraMedianThreshold is the price_anomaly bound above which the median
// order value suggests amounts were loaded in cents.
const ExtraMedianThreshold = "median_threshold"

// requiredExtras lists family-specific bounds that must be present.
var requiredExtras = map[string][]string{
	FamilyPriceAnomaly: {ExtraMedianThreshold},
}

// ErrUnknownFamily is returned when a check asks for a family with no
// registered bounds.
var ErrUnknownFamily = errors.New("unknown threshold family")

// ConfigError reports a threshold configuration problem for one family.
type ConfigError struct {
	Family string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threshold %q: %v", e.Family, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Level is the tier a measurement falls into.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "ok"
	}
}

// Bounds are the boundaries of one family. Higher measurements are always
// worse; families that measure "goodness" (such as a match rate) express
// the complement instead.
type Bounds struct {
	Warning  float64            `yaml:"warning" json:"warning"`
	Critical float64            `yaml:"critical" json:"critical"`
	Extra    map[string]float64 `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// AtLeast classifies v using inclusive lower bounds: a value exactly at
// Warning is a warning and a value exactly at Critical is critical.
func (b Bounds) AtLeast(v float64) Level {
	switch {
	case v >= b.Critical:
		return LevelCritical
	case v >= b.Warning:
		return LevelWarning
	default:
		return LevelOK
	}
}

// Above classifies v using exclusive bounds: a value must exceed Warning
// to be a warning and exceed Critical to be critical.
func (b Bounds) Above(v float64) Level {
	switch {
	case v > b.Critical:
		return LevelCritical
	case v > b.Warning:
		return LevelWarning
	default:
		return LevelOK
	}
}

// Get returns a family-specific extra bound.
func (b Bounds) Get(key string) (float64, bool) {
	v, ok := b.Extra[key]
	return v, ok
}

func (b Bounds) validate() error {
	if b.Warning > b.Critical {
		return fmt.Errorf("warning %g exceeds critical %g", b.Warning, b.Critical)
	}
	return nil
}

func (b Bounds) clone() Bounds {
	out := Bounds{Warning: b.Warning, Critical: b.Critical}
	if len(b.Extra) > 0 {
		out.Extra = make(map[string]float64, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Defaults returns the stock bounds for every family.
func Defaults() map[string]Bounds {
	return map[string]Bounds{
		FamilyFreshness:     {Warning: 1, Critical: 3},
		FamilySyncLag:       {Warning: 30, Critical: 48},
		FamilyContinuity:    {Warning: 0, Critical: 3},
		FamilyDuplicateRate: {Warning: 0.1, Critical: 1.0},
		FamilyNullRate:      {Warning: 0, Critical: 5},
		FamilyHashMissing:   {Warning: 20, Critical: 90},
		FamilyHashMismatch:  {Warning: 50, Critical: 80},
		FamilyJobShortfall:  {Warning: 20, Critical: 60},
		FamilyCrossSource:   {Warning: 2, Critical: 5},
		FamilyPriceAnomaly: {
			Warning:  10000,
			Critical: 100000,
			Extra:    map[string]float64{ExtraMedianThreshold: 1000},
		},
	}
}

// Policy is an immutable, validated set of families.
type Policy struct {
	families map[string]Bounds
}

// New validates families and returns a Policy. Every family must satisfy
// warning <= critical and carry its required extras.
func New(families map[string]Bounds) (*Policy, error) {
	p := &Policy{families: make(map[string]Bounds, len(families))}
	var errs []error
	for _, name := range sortedKeys(families) {
		b := families[name]
		if err := b.validate(); err != nil {
			errs = append(errs, &ConfigError{Family: name, Err: err})
			continue
		}
		for _, key := range requiredExtras[name] {
			if _, ok := b.Get(key); !ok {
				errs = append(errs, &ConfigError{Family: name, Err: fmt.Errorf("missing extra bound %q", key)})
			}
		}
		p.families[name] = b.clone()
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// Default returns a Policy built from Defaults.
func Default() *Policy {
	p, err := New(Defaults())
	if err != nil {
		panic(err)
	}
	return p
}

// Get returns the bounds for family. An unregistered family is a
// configuration error, never a silent default.
func (p *Policy) Get(family string) (Bounds, error) {
	b, ok := p.families[family]
	if !ok {
		return Bounds{}, &ConfigError{Family: family, Err: ErrUnknownFamily}
	}
	return b.clone(), nil
}

// Require reports every family in names that is not registered.
func (p *Policy) Require(names ...string) error {
	var errs []error
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, err := p.Get(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// With returns a new Policy with overrides applied on top of p. Overrides
// replace whole families; extras omitted from an override are inherited.
func (p *Policy) With(overrides map[string]Bounds) (*Policy, error) {
	merged := make(map[string]Bounds, len(p.families)+len(overrides))
	for name, b := range p.families {
		merged[name] = b.clone()
	}
	for name, o := range overrides {
		next := o.clone()
		if base, ok := p.families[name]; ok {
			for k, v := range base.Extra {
				if _, set := next.Extra[k]; !set {
					if next.Extra == nil {
						next.Extra = make(map[string]float64)
					}
					next.Extra[k] = v
				}
			}
		}
		merged[name] = next
	}
	return New(merged)
}

// Families returns the registered family names, sorted.
func (p *Policy) Families() []string {
	return sortedKeys(p.families)
}

func sortedKeys(m map[string]Bounds) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
