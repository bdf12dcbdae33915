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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/alert"
	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/config"
	"github.com/raphaelisaac/hulken/internal/datasource"
	"github.com/raphaelisaac/hulken/internal/logging"
	"github.com/raphaelisaac/hulken/internal/notifier"
	"github.com/raphaelisaac/hulken/internal/reconcile"
)

// Process exit codes.
const (
	exitPass    = 0
	exitWarning = 1
	exitFail    = 2
	exitSetup   = 3
)

// exitError carries a process exit code out of a command. A nil err exits
// silently with code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func setupError(err error) error {
	return &exitError{code: exitSetup, err: err}
}

// exitCode ends a command with the run's status code; zero is success.
func exitCode(code int) error {
	if code == exitPass {
		return nil
	}
	return &exitError{code: code}
}

// statusExit maps a run's overall status onto the process exit code. An
// ERROR-only run is WARNING overall and exits like one.
func statusExit(s checker.Summary) int {
	switch s.Overall() {
	case checker.StatusPass:
		return exitPass
	case checker.StatusFail:
		return exitFail
	default:
		return exitWarning
	}
}

// app is the state shared by every command: global flags, the loaded
// configuration and the logger.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer
}

func newApp() *app {
	return &app{out: os.Stdout}
}

// load reads .env files, the configuration file and environment
// overrides, applies flag overrides and validates the result.
func (a *app) load() error {
	boot := logging.NewLogger(os.Getenv(config.EnvLogLevel), logging.Format(a.logFormat))
	boot.SetOutput(os.Stderr)
	config.LoadEnv(boot)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return setupError(err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return setupError(err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return setupError(err)
	}

	a.cfg = cfg
	a.logger = logging.NewLogger(cfg.Log.Level, logging.Format(cfg.Log.Format))
	a.logger.SetOutput(os.Stderr)
	return nil
}

// opener connects to the configured warehouse once per run.
func (a *app) opener() reconcile.Opener {
	return func(ctx context.Context) (datasource.DataSource, error) {
		src, err := datasource.Open(ctx, a.cfg.Warehouse.DataSource(), a.logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// notifiers registers every channel subscribed to event. In a dry run each
// channel delivers to a recording stand-in, returned by channel name.
func (a *app) notifiers(event string, dryRun bool) (*notifier.Registry, map[string]*notifier.NoopNotifier, error) {
	reg := notifier.NewRegistry(a.logger)
	var recorded map[string]*notifier.NoopNotifier
	if dryRun {
		recorded = make(map[string]*notifier.NoopNotifier)
	}
	for _, ch := range a.cfg.Notifications {
		if !ch.Subscribed(event) {
			continue
		}
		n, err := newNotifier(ch, event)
		if err != nil {
			return nil, nil, err
		}
		name := ch.Name
		if name == "" {
			name = n.Name()
		}
		if dryRun {
			noop := notifier.NewNoopNotifier()
			recorded[name] = noop
			n = noop
		}
		if err := reg.Register(notifier.Channel{
			Name:        name,
			Notifier:    n,
			When:        ch.When,
			MinInterval: ch.MinInterval,
		}); err != nil {
			return nil, nil, err
		}
	}
	return reg, recorded, nil
}

func newNotifier(ch config.Notification, event string) (notifier.Notifier, error) {
	switch ch.Type {
	case config.ChannelSlack:
		return notifier.NewSlackNotifier(ch.URL), nil
	case config.ChannelTeams:
		return notifier.NewTeamsNotifier(ch.URL), nil
	case config.ChannelWebhook:
		return notifier.NewWebhookNotifier(ch.URL), nil
	case config.ChannelPagerDuty:
		dedup := ch.DedupKey
		if dedup == "" {
			dedup = "hulken/" + event
		}
		return notifier.NewPagerDutyNotifier(ch.RoutingKey, dedup), nil
	case config.ChannelEmail:
		e := ch.Email
		return notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:          e.Host,
			Port:          e.Port,
			Username:      e.Username,
			Password:      e.Password,
			From:          e.From,
			To:            e.To,
			SubjectPrefix: e.SubjectPrefix,
		}), nil
	default:
		return nil, fmt.Errorf("channel %q: unknown type %q", ch.Name, ch.Type)
	}
}

// alertStore returns the alert state store for event and a function that
// releases it. Watchdog state lives at the configured location; other
// events get their own file or key so their suppression is independent.
// A dry run reads the state but never writes it.
func (a *app) alertStore(event string, dryRun bool) (alert.Store, func()) {
	var (
		store   alert.Store
		release = func() {}
	)
	if r := a.cfg.Alert.Redis; r != nil {
		client := goredis.NewClient(&goredis.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
		release = func() {
			if err := client.Close(); err != nil {
				a.logger.WithError(err).Warn("Failed to close redis client")
			}
		}
		store = alert.NewRedisStore(client, eventKey(r.Key, event), r.TTL)
	} else {
		store = alert.NewFileStore(eventPath(a.cfg.Alert.StateFile, event))
	}
	if dryRun {
		store = readOnlyStore{store}
	}
	return store, release
}

func eventPath(path, event string) string {
	if event == config.EventWatchdog {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + event + ext
}

func eventKey(key, event string) string {
	if key == "" {
		key = alert.DefaultRedisKey
	}
	if event == config.EventWatchdog {
		return key
	}
	return key + ":" + event
}

// readOnlyStore loads alert state but drops saves.
type readOnlyStore struct {
	alert.Store
}

func (readOnlyStore) Save(context.Context, alert.State) error {
	return nil
}
