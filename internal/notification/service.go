package notification

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnknownEvent = errors.New("unknown notification event")

const sendTimeout = 15 * time.Second

// Service fans events out to every configured notifier. Failures are logged
// and never returned to the caller.
type Service struct {
	notifiers []Notifier
	events    map[EventType]bool
	logger    zerolog.Logger
}

// NewService creates a service delivering the given events. An empty event
// list subscribes to every event.
func NewService(logger zerolog.Logger, events []EventType, notifiers ...Notifier) *Service {
	subscribed := make(map[EventType]bool, len(events))
	for _, e := range events {
		subscribed[e] = true
	}
	return &Service{
		notifiers: notifiers,
		events:    subscribed,
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// Len returns the number of notifiers.
func (s *Service) Len() int {
	if s == nil {
		return 0
	}
	return len(s.notifiers)
}

// Notify sends event to each notifier in turn.
func (s *Service) Notify(ctx context.Context, event Event) {
	if s == nil || len(s.notifiers) == 0 {
		return
	}
	eventType := event.EventType()
	if len(s.events) > 0 && !s.events[eventType] {
		return
	}

	s.logger.Debug().
		Str("event", string(eventType)).
		Int("count", len(s.notifiers)).
		Msg("Dispatching notification event")

	for _, n := range s.notifiers {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		err := n.Notify(sendCtx, event)
		cancel()

		if err != nil {
			s.logger.Error().
				Err(err).
				Str("name", n.Name()).
				Str("type", string(n.Type())).
				Str("event", string(eventType)).
				Msg("Notification failed")
			continue
		}
		s.logger.Debug().
			Str("name", n.Name()).
			Str("event", string(eventType)).
			Msg("Notification sent successfully")
	}
}

// Test sends a test message through every notifier and returns the failures
// keyed by notifier name.
func (s *Service) Test(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, n := range s.notifiers {
		if err := n.Test(ctx); err != nil {
			failures[n.Name()] = err
		}
	}
	return failures
}
