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
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// All selects every registered checker.
const All = "all"

// Registry manages checker registration and execution. Checkers keep
// their registration order, which is the catalog declaration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	checkers map[string]Checker
}

// NewRegistry creates a new checker registry
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker to the registry
func (r *Registry) Register(c Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if name == "" || name == All {
		return fmt.Errorf("invalid checker name %q", name)
	}
	if _, exists := r.checkers[name]; exists {
		return fmt.Errorf("checker %q already registered", name)
	}

	r.checkers[name] = c
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a checker to the registry and panics on error
func (r *Registry) MustRegister(c Checker) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Get returns a checker by name
func (r *Registry) Get(name string) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.checkers[name]
	return c, ok
}

// List returns all registered checker names in declaration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Resolve maps requested names onto checkers. An empty request or one
// containing "all" selects everything in declaration order; otherwise the
// caller's order is kept and duplicates are dropped. Unknown names are a
// configuration error.
func (r *Registry) Resolve(names []string) ([]Checker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 || contains(names, All) {
		out := make([]Checker, 0, len(r.order))
		for _, n := range r.order {
			out = append(out, r.checkers[n])
		}
		return out, nil
	}

	var (
		out     []Checker
		unknown []string
		seen    = make(map[string]bool, len(names))
	)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		c, ok := r.checkers[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, c)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown checks %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(r.order, ", "))
	}
	return out, nil
}

// Families returns the union of threshold families the given checkers
// read, sorted.
func Families(checkers []Checker) []string {
	set := map[string]bool{}
	for _, c := range checkers {
		for _, f := range c.Families() {
			set[f] = true
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Execute runs c and guarantees it never escapes: a returned error or a
// panic becomes exactly one ERROR result named after the checker.
func Execute(ctx context.Context, c Checker, checkCtx *CheckContext) (results []Result) {
	defer func() {
		if p := recover(); p != nil {
			results = []Result{Errored(c.Name(), fmt.Errorf("check panicked: %v", p))}
		}
	}()

	res, err := c.Check(ctx, checkCtx)
	if err != nil {
		return []Result{Errored(c.Name(), err)}
	}
	out := make([]Result, len(res))
	for i := range res {
		out[i] = res[i].Clone()
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
