package ports

import (
	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// EventBus carries the core's outbound signals (operation progress, engine
// state, engine swaps) and the inbound cancel requests.
//
// Implementations are safe for concurrent use. Publish runs handlers on the
// caller's goroutine, so handlers that touch presentation state subscribe
// through a main-loop dispatcher rather than directly.
type EventBus interface {
	// Publish delivers event to the handlers subscribed to its type, then to
	// the wildcard handlers, each group in subscription order.
	Publish(event domain.Event)

	// Subscribe adds handler for one event type. Registering the same
	// handler twice yields two subscriptions.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// SubscribeAll adds handler for every event type.
	SubscribeAll(handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a subscription. Unknown ids are ignored.
	Unsubscribe(id domain.SubscriptionID)

	// HasSubscribers reports whether publishing eventType would reach anyone.
	HasSubscribers(eventType domain.EventType) bool

	// Close drops every subscription. Publishing afterwards does nothing.
	Close() error
}

// EventFilter decides whether a subscriber sees an event.
type EventFilter func(event domain.Event) bool

// FilteringEventBus is an EventBus whose subscriptions can carry a filter.
// Operations use it to receive only the cancel requests addressed to them.
type FilteringEventBus interface {
	EventBus
	SubscribeFiltered(eventType domain.EventType, filter EventFilter, handler domain.EventHandler) domain.SubscriptionID
}
