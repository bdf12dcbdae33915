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


// Package config loads the hulken configuration file, applies environment
// overrides and validates the result before any check runs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelisaac/hulken/internal/alert"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/threshold"
)

// DefaultPath is read when --config is not given.
const DefaultPath = "hulken.yaml"

// Notification event kinds a channel can subscribe to.
const (
	EventRun      = "run"
	EventWatchdog = "watchdog"
)

// Channel types.
const (
	ChannelSlack     = "slack"
	ChannelTeams     = "teams"
	ChannelPagerDuty = "pagerduty"
	ChannelWebhook   = "webhook"
	ChannelEmail     = "email"
)

// Authority platforms.
const (
	PlatformFacebook = "facebook"
	PlatformTikTok   = "tiktok"
	PlatformStatic   = "static"
)

// Config is the complete, explicitly constructed configuration of a run.
type Config struct {
	Warehouse  Warehouse                   `yaml:"warehouse"`
	Thresholds map[string]threshold.Bounds `yaml:"thresholds"`

	// Diagnoses pins diagnosis template keys to a version
	Diagnoses map[string]string `yaml:"diagnoses"`

	Sources       []Source       `yaml:"sources" validate:"dive"`
	Checks        Checks         `yaml:"checks"`
	Authority     Authority      `yaml:"authority"`
	Report        Report         `yaml:"report"`
	Alert         Alert          `yaml:"alert"`
	Notifications []Notification `yaml:"notifications" validate:"dive"`
	Metrics       Metrics        `yaml:"metrics"`
	Log           Log            `yaml:"log"`
}

// Warehouse holds connection settings for the tabular data source.
type Warehouse struct {
	Driver   string   `yaml:"driver" validate:"required,oneof=postgres clickhouse"`
	DSN      string   `yaml:"dsn"`
	Addr     []string `yaml:"addr" validate:"dive,hostname_port"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`

	// Schema is scanned by the sync_lag and inventory checks
	Schema string `yaml:"schema" validate:"required"`

	QueryTimeout time.Duration `yaml:"query_timeout" validate:"gte=0"`
	MaxOpenConns int           `yaml:"max_open_conns" validate:"gte=0"`
	Retries      int           `yaml:"retries" validate:"gte=0,lte=10"`

	// TableStatsSQL overrides the engine's table metadata query
	TableStatsSQL string `yaml:"table_stats_sql"`
}

// DataSource converts w into the data source connection settings.
func (w Warehouse) DataSource() datasource.Config {
	return datasource.Config{
		Driver:       datasource.Dialect(w.Driver),
		DSN:          w.DSN,
		Addr:         w.Addr,
		Database:     w.Database,
		Username:     w.Username,
		Password:     w.Password,
		QueryTimeout: w.QueryTimeout,
		MaxOpenConns: w.MaxOpenConns,
		Retries:      w.Retries,
	}
}

// Source is one connector-fed platform and its warehouse table.
type Source struct {
	Key        string `yaml:"key" validate:"required"`
	Label      string `yaml:"label"`
	Table      string `yaml:"table" validate:"required"`
	DateColumn string `yaml:"date_column" validate:"required"`

	// KeyColumns is the declared primary key; empty skips duplicate detection
	KeyColumns []string `yaml:"key_columns" validate:"dive,required"`

	AppendMode     bool   `yaml:"append_mode"`
	IngestedColumn string `yaml:"ingested_column" validate:"required_if=AppendMode true"`

	// PriceColumn enables the price format check
	PriceColumn string `yaml:"price_column"`

	// DailyValue is the expected business value per day, used to estimate
	// the impact of stale data
	DailyValue float64 `yaml:"daily_value" validate:"gte=0"`

	Authority *SourceAuthority `yaml:"authority"`
}

// DisplayName returns Label, or Key when no label is set.
func (s Source) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Key
}

// SourceAuthority configures the external source of truth for a source.
type SourceAuthority struct {
	Platform string `yaml:"platform" validate:"required,oneof=facebook tiktok static"`
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`

	// EntityColumn restricts warehouse sums to one ad account or advertiser
	EntityColumn string   `yaml:"entity_column"`
	Entities     []string `yaml:"entities" validate:"dive,required"`

	// Metrics maps a platform metric to the warehouse column summed for it
	Metrics map[string]string `yaml:"metrics" validate:"required,min=1"`

	// Static holds fixed per-entity figures for the static platform
	Static map[string]map[string]float64 `yaml:"static"`
}

// Checks configures the catalog entries that do not derive from sources.
type Checks struct {
	// ContinuityBuffer is how many trailing days count as "recent"
	ContinuityBuffer int `yaml:"continuity_buffer" validate:"gte=0"`

	Nulls     []NullField    `yaml:"nulls" validate:"dive"`
	PII       []PIIColumn    `yaml:"pii" validate:"dive"`
	Hashes    []HashColumn   `yaml:"hashes" validate:"dive"`
	HashMatch []HashPair     `yaml:"hash_match" validate:"dive"`
	Schedule  *Schedule      `yaml:"schedule"`
	SyncLag   []SyncLagTable `yaml:"sync_lag" validate:"dive"`
	Inventory Inventory      `yaml:"inventory"`
}

type NullField struct {
	Table      string `yaml:"table" validate:"required"`
	Column     string `yaml:"column" validate:"required"`
	Purpose    string `yaml:"purpose" validate:"required"`
	DateColumn string `yaml:"date_column"`
}

type PIIColumn struct {
	Table       string `yaml:"table" validate:"required"`
	Column      string `yaml:"column" validate:"required"`
	Field       string `yaml:"field"`
	Predicate   string `yaml:"predicate" validate:"required,oneof=email phone non_empty json_email json_non_empty"`
	JSONKey     string `yaml:"json_key"`
	Description string `yaml:"description" validate:"required"`
}

type HashColumn struct {
	Table                 string `yaml:"table" validate:"required"`
	Column                string `yaml:"column" validate:"required"`
	Length                int    `yaml:"length" validate:"gte=0"`
	ExpectedMissingReason string `yaml:"expected_missing_reason"`
}

type ColumnRef struct {
	Table  string `yaml:"table" validate:"required"`
	Column string `yaml:"column" validate:"required"`
}

type HashPair struct {
	Name  string    `yaml:"name"`
	Left  ColumnRef `yaml:"left"`
	Right ColumnRef `yaml:"right"`
}

// Schedule describes the recurring job that hashes PII.
type Schedule struct {
	Job          string        `yaml:"job" validate:"required"`
	Pattern      string        `yaml:"pattern"`
	Window       time.Duration `yaml:"window" validate:"gte=0"`
	ExpectedRuns int           `yaml:"expected_runs" validate:"gte=0"`
	MaxStaleness time.Duration `yaml:"max_staleness" validate:"gte=0"`
	SQL          string        `yaml:"sql"`
}

type SyncLagTable struct {
	Table      string  `yaml:"table" validate:"required"`
	DailyValue float64 `yaml:"daily_value" validate:"gte=0"`
}

// Inventory configures the table inventory check.
type Inventory struct {
	Baseline string `yaml:"baseline" validate:"required"`

	// Expected tables must exist; defaults to every source table
	Expected []string `yaml:"expected" validate:"dive,required"`
}

// Authority tunes the HTTP clients of every platform.
type Authority struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Retries           int           `yaml:"retries" validate:"gte=0,lte=10"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Report configures the report directory.
type Report struct {
	Dir string `yaml:"dir" validate:"required"`
	CSV bool   `yaml:"csv"`

	// History is how many runs watch mode and `hulken history` show
	History int `yaml:"history" validate:"gte=1"`
}

// Alert configures the alert gate and where its state lives.
type Alert struct {
	Window    time.Duration `yaml:"window" validate:"gt=0"`
	StateFile string        `yaml:"state_file"`
	Redis     *Redis        `yaml:"redis"`
}

// Redis holds the shared alert state store settings.
type Redis struct {
	Addr     string        `yaml:"addr" validate:"required,hostname_port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Notification is one delivery channel.
type Notification struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"required,oneof=slack teams pagerduty webhook email"`
	URL  string `yaml:"url" validate:"omitempty,url"`

	RoutingKey string `yaml:"routing_key"`
	DedupKey   string `yaml:"dedup_key"`

	Email *Email `yaml:"email"`

	// When is a CEL routing expression over `run`
	When        string        `yaml:"when"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`

	// Events limits the channel to run or watchdog notifications; empty
	// subscribes to both
	Events []string `yaml:"events" validate:"dive,oneof=run watchdog"`
}

// Subscribed reports whether the channel receives event.
func (n Notification) Subscribed(event string) bool {
	if len(n.Events) == 0 {
		return true
	}
	for _, e := range n.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Email holds SMTP settings.
type Email struct {
	Host          string   `yaml:"host" validate:"required,hostname|ip"`
	Port          int      `yaml:"port" validate:"gte=0,lte=65535"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from" validate:"omitempty,email"`
	To            []string `yaml:"to" validate:"required,min=1,dive,email"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

type Metrics struct {
	// Textfile is a node_exporter textfile collector path
	Textfile string `yaml:"textfile"`
}

type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// Default returns the stock configuration, matching the store's Shopify,
// Facebook Ads and TikTok Ads pipelines.
func Default() *Config {
	return &Config{
		Warehouse: Warehouse{
			Driver:       string(datasource.Postgres),
			Schema:       "public",
			QueryTimeout: datasource.DefaultQueryTimeout,
			MaxOpenConns: 4,
			Retries:      2,
		},
		Sources: []Source{
			{
				Key:         "shopify",
				Label:       "Shopify",
				Table:       "shopify_orders",
				DateColumn:  "createdAt",
				KeyColumns:  []string{"orderId"},
				PriceColumn: "totalPrice",
			},
			{
				Key:            "facebook",
				Label:          "Facebook Ads",
				Table:          "facebook_ads_insights",
				DateColumn:     "date_start",
				KeyColumns:     []string{"ad_id", "date_start"},
				AppendMode:     true,
				IngestedColumn: "_airbyte_extracted_at",
				DailyValue:     20000,
			},
			{
				Key:        "tiktok",
				Label:      "TikTok Ads",
				Table:      "tiktokads_reports_daily",
				DateColumn: "stat_time_day",
				KeyColumns: []string{"ad_id", "stat_time_day"},
				DailyValue: 2000,
			},
		},
		Checks: Checks{
			ContinuityBuffer: 2,
			Nulls: []NullField{
				{Table: "shopify_orders", Column: "totalPrice", Purpose: "breaks revenue calculation", DateColumn: "createdAt"},
				{Table: "shopify_orders", Column: "createdAt", Purpose: "drops orders from every dated report"},
				{Table: "shopify_orders", Column: "email_hash", Purpose: "breaks customer matching and attribution", DateColumn: "createdAt"},
				{Table: "facebook_ads_insights", Column: "spend", Purpose: "understates ad spend and ROAS", DateColumn: "date_start"},
				{Table: "facebook_ads_insights", Column: "ad_id", Purpose: "breaks per-ad attribution", DateColumn: "date_start"},
				{Table: "tiktokads_reports_daily", Column: "stat_time_day", Purpose: "drops TikTok spend from daily reports"},
			},
			PII: []PIIColumn{
				{Table: "shopify_orders", Column: "email", Predicate: "email", Description: "customer email addresses"},
				{Table: "shopify_orders", Column: "contact_email", Predicate: "email", Description: "contact email addresses"},
				{Table: "shopify_orders", Column: "phone", Predicate: "phone", Description: "phone numbers"},
				{Table: "shopify_orders", Column: "browser_ip", Predicate: "non_empty", Description: "customer IP addresses"},
				{Table: "shopify_orders", Column: "customer", Field: "customer_email_in_json", Predicate: "json_email", JSONKey: "email", Description: "emails embedded in the customer JSON"},
				{Table: "shopify_orders", Column: "customer", Field: "customer_name_in_json", Predicate: "json_non_empty", JSONKey: "first_name", Description: "names embedded in the customer JSON"},
				{Table: "shopify_customers", Column: "email", Predicate: "email", Description: "customer email addresses"},
				{Table: "shopify_customers", Column: "phone", Predicate: "phone", Description: "phone numbers"},
				{Table: "shopify_customers", Column: "first_name", Predicate: "non_empty", Description: "first names"},
				{Table: "shopify_customers", Column: "last_name", Predicate: "non_empty", Description: "last names"},
			},
			Hashes: []HashColumn{
				{Table: "shopify_orders", Column: "email_hash", ExpectedMissingReason: "guest checkouts have no email"},
				{Table: "shopify_customers", Column: "email_hash", ExpectedMissingReason: "customers created without an email"},
			},
			HashMatch: []HashPair{
				{
					Name:  "orders vs customers",
					Left:  ColumnRef{Table: "shopify_orders", Column: "email_hash"},
					Right: ColumnRef{Table: "shopify_customers", Column: "email_hash"},
				},
			},
			Schedule: &Schedule{Job: "hash_pii", Pattern: "%hash%"},
			SyncLag: []SyncLagTable{
				{Table: "shopify_orders"},
				{Table: "facebook_ads_insights", DailyValue: 20000},
				{Table: "tiktokads_reports_daily", DailyValue: 2000},
			},
			Inventory: Inventory{Baseline: ".hulken/table_baseline.json"},
		},
		Authority: Authority{RequestsPerSecond: 2, Retries: 3, Timeout: 30 * time.Second},
		Report:    Report{Dir: "reports", CSV: true, History: 10},
		Alert: Alert{
			Window:    alert.DefaultWindow,
			StateFile: ".hulken/alert_state.json",
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. A missing file at DefaultPath yields
// the defaults; a missing explicit path is an error. The result is not yet
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg. Lists in the document replace the default
// lists, mappings and nested settings merge into them, and unknown keys
// are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Policy builds the threshold policy: the stock families with the
// configured overrides applied.
func (c *Config) Policy() (*threshold.Policy, error) {
	return threshold.Default().With(c.Thresholds)
}
