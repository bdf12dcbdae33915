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


package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/raphaelisaac/hulken/internal/authority"
	"github.com/raphaelisaac/hulken/internal/checker/privacy"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/diagnosis"
	"github.com/raphaelisaac/hulken/internal/notifier"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the shape of c with struct tags, then the rules that
// span fields: identifiers, threshold ordering, diagnosis pins and
// notification routes. Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			add("%s: %s", strings.TrimPrefix(fe.Namespace(), "Config."), describe(fe))
		}
	}

	c.validateWarehouse(add)
	if _, err := c.Policy(); err != nil {
		add("thresholds: %v", err)
	}
	catalog := diagnosis.Default()
	for key, version := range c.Diagnoses {
		if err := catalog.Pin(key, version); err != nil {
			add("diagnoses.%s: %v", key, err)
		}
	}
	if c.Alert.Redis == nil && c.Alert.StateFile == "" {
		add("alert.state_file: is required without alert.redis")
	}
	c.validateSources(add)
	c.validateChecks(add)
	c.validateNotifications(add)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte", "gt", "lte", "min":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

type addFunc func(format string, args ...any)

func ident(add addFunc, path, id string) {
	if id != "" && !datasource.ValidIdent(id) {
		add("%s: %q is not a valid identifier", path, id)
	}
}

func (c *Config) validateWarehouse(add addFunc) {
	w := c.Warehouse
	switch datasource.Dialect(w.Driver) {
	case datasource.Postgres:
		if w.DSN == "" {
			add("warehouse.dsn: is required for postgres")
		}
	case datasource.ClickHouse:
		if w.DSN == "" && len(w.Addr) == 0 {
			add("warehouse: clickhouse needs a dsn or at least one addr")
		}
	}
	ident(add, "warehouse.schema", w.Schema)
}

func (c *Config) validateSources(add addFunc) {
	seen := map[string]bool{}
	for i, s := range c.Sources {
		path := fmt.Sprintf("sources[%d]", i)
		if seen[s.Key] {
			add("%s.key: duplicate source %q", path, s.Key)
		}
		seen[s.Key] = true

		ident(add, path+".table", s.Table)
		ident(add, path+".date_column", s.DateColumn)
		ident(add, path+".ingested_column", s.IngestedColumn)
		ident(add, path+".price_column", s.PriceColumn)
		for j, k := range s.KeyColumns {
			ident(add, fmt.Sprintf("%s.key_columns[%d]", path, j), k)
		}

		a := s.Authority
		if a == nil {
			continue
		}
		ident(add, path+".authority.entity_column", a.EntityColumn)
		for metric, column := range a.Metrics {
			ident(add, fmt.Sprintf("%s.authority.metrics.%s", path, metric), column)
		}
		switch a.Platform {
		case PlatformFacebook, PlatformTikTok:
			if a.Token == "" {
				add("%s.authority.token: %s needs an access token", path, a.Platform)
			}
			if len(a.Entities) == 0 {
				add("%s.authority.entities: %s needs at least one account", path, a.Platform)
			}
			for metric := range a.Metrics {
				if !knownMetric(metric) {
					add("%s.authority.metrics.%s: %s does not report this metric", path, metric, a.Platform)
				}
			}
		case PlatformStatic:
			if len(a.Static) == 0 {
				add("%s.authority.static: static platform needs figures", path)
			}
		}
		if len(a.Entities) > 1 && a.EntityColumn == "" {
			add("%s.authority.entity_column: required with more than one entity", path)
		}
	}
}

func knownMetric(m string) bool {
	for _, known := range authority.DefaultMetrics {
		if m == known {
			return true
		}
	}
	return false
}

func (c *Config) validateChecks(add addFunc) {
	ch := c.Checks
	for i, f := range ch.Nulls {
		path := fmt.Sprintf("checks.nulls[%d]", i)
		ident(add, path+".table", f.Table)
		ident(add, path+".column", f.Column)
		ident(add, path+".date_column", f.DateColumn)
	}
	for i, p := range ch.PII {
		path := fmt.Sprintf("checks.pii[%d]", i)
		ident(add, path+".table", p.Table)
		ident(add, path+".column", p.Column)
		ident(add, path+".json_key", p.JSONKey)
	}
	for i, h := range ch.Hashes {
		path := fmt.Sprintf("checks.hashes[%d]", i)
		ident(add, path+".table", h.Table)
		ident(add, path+".column", h.Column)
	}
	for i, p := range ch.HashMatch {
		path := fmt.Sprintf("checks.hash_match[%d]", i)
		ident(add, path+".left.table", p.Left.Table)
		ident(add, path+".left.column", p.Left.Column)
		ident(add, path+".right.table", p.Right.Table)
		ident(add, path+".right.column", p.Right.Column)
	}
	for i, t := range ch.SyncLag {
		ident(add, fmt.Sprintf("checks.sync_lag[%d].table", i), t.Table)
	}
	for i, t := range ch.Inventory.Expected {
		ident(add, fmt.Sprintf("checks.inventory.expected[%d]", i), t)
	}
	if s := ch.Schedule; s != nil && s.SQL == "" && datasource.Dialect(c.Warehouse.Driver) == datasource.ClickHouse {
		add("checks.schedule.sql: %v", privacy.ErrNoScheduleSQL)
	}
}

func (c *Config) validateNotifications(add addFunc) {
	seen := map[string]bool{}
	for i, n := range c.Notifications {
		path := fmt.Sprintf("notifications[%d]", i)
		if seen[n.Name] {
			add("%s.name: duplicate channel %q", path, n.Name)
		}
		seen[n.Name] = true

		switch n.Type {
		case ChannelSlack, ChannelTeams, ChannelWebhook:
			if n.URL == "" {
				add("%s.url: is required for %s", path, n.Type)
			}
		case ChannelPagerDuty:
			if n.RoutingKey == "" {
				add("%s.routing_key: is required for pagerduty", path)
			}
		case ChannelEmail:
			if n.Email == nil {
				add("%s.email: is required for email", path)
			}
		}
		if _, err := notifier.CompileCondition(n.When); err != nil {
			add("%s.when: %v", path, err)
		}
	}
}
