package notifier

import (
	"context"
	"sync"
)

// NoopNotifier records notifications instead of sending them. It backs
// dry runs and tests.
type NoopNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (n *NoopNotifier) Name() string {
	return "noop"
}

func (n *NoopNotifier) Send(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, notification)
	return nil
}

// Drain returns the notifications recorded so far and forgets them.
func (n *NoopNotifier) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	sent := n.Sent
	n.Sent = nil
	return sent
}
