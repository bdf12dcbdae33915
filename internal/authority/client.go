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

// Package authority fetches metrics from the advertising platforms that
// are the source of truth for cross-source reconciliation.
package authority

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/raphaelisaac/hulken/internal/logging"
)

// Metric names shared by all platforms.
const (
	MetricSpend       = "spend"
	MetricImpressions = "impressions"
	MetricClicks      = "clicks"
)

// DefaultMetrics are requested from every platform.
var DefaultMetrics = []string{MetricSpend, MetricImpressions, MetricClicks}

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultRPS         = 2
	defaultRetries     = 3
)

// APIError is a platform-level failure: either a non-2xx status or an
// error envelope inside a 200 response.
type APIError struct {
	Platform   string
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s API error %d (HTTP %d): %s", e.Platform, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API returned HTTP %d: %s", e.Platform, e.StatusCode, e.Message)
}

// Metrics holds every metric of one entity and period.
type Metrics map[string]float64

// fetchFunc loads all metrics for entity in one platform round trip.
type fetchFunc func(ctx context.Context, entity string, start, end time.Time) (Metrics, error)

type cacheKey struct {
	entity     string
	start, end string
}

// Client adapts a platform fetch to per-metric lookups. Metrics of an
// entity and period are fetched once and cached until Reset.
type Client struct {
	platform string
	fetch    fetchFunc
	limiter  *rate.Limiter
	logger   *logrus.Entry

	mu    sync.Mutex
	cache map[cacheKey]Metrics
}

// Options tunes the HTTP behaviour shared by the platform clients.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client

	// RequestsPerSecond caps the call rate; zero means defaultRPS
	RequestsPerSecond float64

	// Retries is the number of re-attempts on 5xx, 429 and network errors
	Retries int

	Logger *logrus.Logger
}

func (o Options) withDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = defaultRPS
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = defaultRetries
	}
	if o.Logger == nil {
		o.Logger = logging.NewDiscardLogger()
	}
	return o
}

func newClient(platform string, fetch fetchFunc, opts Options) *Client {
	return &Client{
		platform: platform,
		fetch:    fetch,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:   opts.Logger.WithField("platform", platform),
		cache:    make(map[cacheKey]Metrics),
	}
}

// Platform returns the platform name, e.g. "facebook".
func (c *Client) Platform() string {
	return c.platform
}

// Reset drops every cached figure so the next fetch reads the platform
// again. The cross-source check calls it at the start of each run.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[cacheKey]Metrics)
}

// FetchMetric returns one metric for entity over [start, end].
func (c *Client) FetchMetric(ctx context.Context, entity, metric string, start, end time.Time) (float64, bool, error) {
	m, err := c.Fetch(ctx, entity, start, end)
	if err != nil {
		return 0, false, err
	}
	v, ok := m[metric]
	return v, ok, nil
}

// Fetch returns every metric for entity over [start, end].
func (c *Client) Fetch(ctx context.Context, entity string, start, end time.Time) (Metrics, error) {
	key := cacheKey{entity: entity, start: start.Format(dateLayout), end: end.Format(dateLayout)}
	c.mu.Lock()
	m, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return m, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	began := time.Now()
	m, err := c.fetch(ctx, entity, start, end)
	log := c.logger.WithFields(logging.Fields{"entity": entity, "duration": time.Since(began).String()})
	if err != nil {
		log.WithError(err).Warn("Platform fetch failed")
		return nil, err
	}
	log.Debug("Platform metrics fetched")

	c.mu.Lock()
	c.cache[key] = m
	c.mu.Unlock()
	return m, nil
}

const (
	dateLayout = "2006-01-02"
	maxBody    = 1 << 20
)

// shouldRetry retries network errors, server errors and rate limits.
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

// newExecutor combines backoff retries with a circuit breaker so a
// platform outage fails fast after a few attempts instead of stalling
// every entity in turn.
//
//nolint:bodyclose // *http.Response is a type parameter here
func newExecutor(platform string, retries int, logger *logrus.Entry) failsafe.Executor[*http.Response] {
	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(shouldRetry).
		WithBackoff(250*time.Millisecond, 5*time.Second).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			logger.WithField("attempt", e.Attempts()).Warn("Retrying platform request")
		}).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.WithFields(logging.Fields{
				"circuit_breaker": platform,
				"from_state":      stateName(e.OldState),
				"to_state":        stateName(e.NewState),
			}).Warn("circuit breaker state change")
		}).
		Build()

	return failsafe.With[*http.Response](retry, breaker)
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

// do runs build through executor. Retried responses are closed before the
// next attempt.
func do(ctx context.Context, hc *http.Client, executor failsafe.Executor[*http.Response], build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	return executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := hc.Do(req)
		if shouldRetry(resp, err) && resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return resp, err
	})
}

// number parses the loosely typed metric values platforms return: JSON
// numbers, numeric strings, empty strings and nulls.
func number(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case string:
		if x == "" {
			return 0, nil
		}
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected metric value %T", v)
	}
}
