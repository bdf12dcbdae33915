package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/raphaelisaac/hulken/internal/logging"
)

// Channel is a named delivery route: a notifier, an optional routing
// condition and an optional minimum interval between sends.
type Channel struct {
	Name     string
	Notifier Notifier

	// When is a CEL expression over `run`; empty always sends
	When string

	// MinInterval rate-limits the channel; zero disables limiting
	MinInterval time.Duration
}

type channel struct {
	name     string
	notifier Notifier
	when     *Condition
	limiter  *rate.Limiter
}

// Registry manages notification channels. Delivery failures are logged and
// reported as false, never returned as errors.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	channels map[string]*channel
	logger   *logrus.Entry
}

// NewRegistry creates a new notifier registry
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Registry{
		channels: make(map[string]*channel),
		logger:   logger.WithField("component", "notifier"),
	}
}

// Register adds a channel. A name defaults to the notifier's name; an
// invalid condition or duplicate name is an error.
func (r *Registry) Register(ch Channel) error {
	if ch.Notifier == nil {
		return fmt.Errorf("channel %q has no notifier", ch.Name)
	}
	name := ch.Name
	if name == "" {
		name = ch.Notifier.Name()
	}
	cond, err := CompileCondition(ch.When)
	if err != nil {
		return fmt.Errorf("channel %q: %w", name, err)
	}
	c := &channel{name: name, notifier: ch.Notifier, when: cond}
	if ch.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(ch.MinInterval), 1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[name]; exists {
		return fmt.Errorf("channel %q already registered", name)
	}
	r.channels[name] = c
	r.order = append(r.order, name)
	return nil
}

// Send delivers n on the named channel and reports whether it was sent.
// An unknown channel, an unmet condition, a rate limit or a delivery error
// all yield false; only the last is logged as an error.
func (r *Registry) Send(ctx context.Context, name string, n Notification) bool {
	r.mu.RLock()
	c, ok := r.channels[name]
	r.mu.RUnlock()

	log := r.logger.WithFields(logging.Fields{"channel": name, "run_id": n.RunID})
	if !ok {
		log.Warn("Unknown notification channel")
		return false
	}

	match, err := c.when.Match(n)
	if err != nil {
		log.WithError(err).WithField("when", c.when.String()).Warn("Routing condition failed, skipping channel")
		return false
	}
	if !match {
		log.WithField("when", c.when.String()).Debug("Routing condition not met")
		return false
	}
	if c.limiter != nil && !c.limiter.Allow() {
		log.Warn("Notification rate limited")
		return false
	}

	if err := c.notifier.Send(ctx, n); err != nil {
		log.WithError(err).WithField("notifier", c.notifier.Name()).Error("notifier failed")
		return false
	}
	log.WithField("notifier", c.notifier.Name()).Info("Notification sent")
	return true
}

// NotifyAll sends n on every channel in registration order and returns the
// number of channels that delivered it. A failing channel does not stop
// the others.
func (r *Registry) NotifyAll(ctx context.Context, n Notification) int {
	sent := 0
	for _, name := range r.Channels() {
		if r.Send(ctx, name, n) {
			sent++
		}
	}
	return sent
}

// Channels returns the channel names in registration order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered channels
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
