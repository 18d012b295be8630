// Package mock provides an in-memory notifier for tests and dry runs.
package mock

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/notification"
)

// Notifier records every event it receives.
type Notifier struct {
	name   string
	err    error
	logger zerolog.Logger

	mu     sync.RWMutex
	events []notification.Event
	tests  int
}

// New creates a new mock notifier
func New(name string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		name:   name,
		logger: logger.With().Str("notifier", "mock").Str("name", name).Logger(),
	}
}

// FailWith makes subsequent sends return err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *Notifier) Type() notification.NotifierType {
	return notification.NotifierMock
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tests++
	return n.err
}

func (n *Notifier) Notify(ctx context.Context, event notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logger.Info().Str("event", string(event.EventType())).Msg("Mock notification")
	n.events = append(n.events, event)
	return n.err
}

// Events returns a copy of the recorded events.
func (n *Notifier) Events() []notification.Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]notification.Event, len(n.events))
	copy(out, n.events)
	return out
}

// OfType returns the recorded events of one type.
func (n *Notifier) OfType(t notification.EventType) []notification.Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []notification.Event
	for _, e := range n.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
