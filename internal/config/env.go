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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variables that override the configuration file.
const (
	EnvWarehouseDriver = "HULKEN_WAREHOUSE_DRIVER"
	EnvWarehouseDSN    = "HULKEN_WAREHOUSE_DSN"
	EnvRedisAddr       = "HULKEN_REDIS_ADDR"
	EnvSlackWebhook    = "HULKEN_SLACK_WEBHOOK"
	EnvPagerDutyKey    = "HULKEN_PAGERDUTY_KEY"
	EnvFacebookToken   = "FACEBOOK_ACCESS_TOKEN"
	EnvTikTokToken     = "TIKTOK_ACCESS_TOKEN"
	EnvQueryTimeout    = "HULKEN_QUERY_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
)

// envFiles are loaded in order; later files win.
var envFiles = []string{".env", ".env.local"}

// LoadEnv loads local env files into the process environment. Missing
// files are skipped; variables already set by the shell are overridden
// only by the later files.
func LoadEnv(logger *logrus.Logger) {
	loaded := make([]string, 0, len(envFiles))
	for i, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		load := godotenv.Load
		if i > 0 {
			load = godotenv.Overload
		}
		if err := load(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
	} else {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// ApplyEnv overrides c from the process environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvWarehouseDriver); ok {
		c.Warehouse.Driver = strings.ToLower(v)
	}
	if v, ok := get(EnvWarehouseDSN); ok {
		c.Warehouse.DSN = v
	}
	if v, ok := get(EnvQueryTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvQueryTimeout, err)
		}
		c.Warehouse.QueryTimeout = d
	}
	if v, ok := get(EnvRedisAddr); ok {
		if c.Alert.Redis == nil {
			c.Alert.Redis = &Redis{}
		}
		c.Alert.Redis.Addr = v
	}
	if v, ok := get(EnvSlackWebhook); ok {
		n := c.channel(ChannelSlack)
		n.URL = v
		if n.When == "" {
			n.When = `run.overall != "PASS"`
		}
	}
	if v, ok := get(EnvPagerDutyKey); ok {
		n := c.channel(ChannelPagerDuty)
		n.RoutingKey = v
		if n.When == "" {
			n.When = "run.failed > 0"
		}
	}
	if v, ok := get(EnvFacebookToken); ok {
		c.setToken(PlatformFacebook, v)
	}
	if v, ok := get(EnvTikTokToken); ok {
		c.setToken(PlatformTikTok, v)
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// channel returns the first channel of type kind, adding one named after
// the type when none exists.
func (c *Config) channel(kind string) *Notification {
	for i := range c.Notifications {
		if c.Notifications[i].Type == kind {
			return &c.Notifications[i]
		}
	}
	c.Notifications = append(c.Notifications, Notification{Name: kind, Type: kind})
	return &c.Notifications[len(c.Notifications)-1]
}

func (c *Config) setToken(platform, token string) {
	for i := range c.Sources {
		if a := c.Sources[i].Authority; a != nil && a.Platform == platform {
			a.Token = token
		}
	}
}
