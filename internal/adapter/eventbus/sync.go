// Package eventbus provides the in-process event bus and the main-loop
// dispatcher that moves handler calls onto one goroutine.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// ErrClosed is returned by Close on a bus that is already closed.
var ErrClosed = errors.New("event bus already closed")

// wildcard is the topic holding SubscribeAll handlers. Real event types
// always contain a dot, so it cannot collide.
const wildcard domain.EventType = "*"

type subscription struct {
	id      domain.SubscriptionID
	handler domain.EventHandler
	filter  ports.EventFilter
}

// SyncEventBus delivers events on the publishing goroutine. A handler that
// panics is logged and skipped; the remaining handlers still run.
type SyncEventBus struct {
	mu     sync.RWMutex
	logger *slog.Logger
	topics map[domain.EventType][]subscription
	owner  map[domain.SubscriptionID]domain.EventType
	seq    uint64
	closed bool
}

// NewSyncEventBus creates an empty bus. It logs nothing until SetLogger is called.
func NewSyncEventBus() *SyncEventBus {
	return &SyncEventBus{
		topics: make(map[domain.EventType][]subscription),
		owner:  make(map[domain.SubscriptionID]domain.EventType),
	}
}

// SetLogger sets the logger used for handler panics and debug tracing.
func (bus *SyncEventBus) SetLogger(logger *slog.Logger) {
	bus.mu.Lock()
	bus.logger = logger
	bus.mu.Unlock()
}

// Publish delivers event to the subscribers of its type and then to the
// wildcard subscribers. Nil events and publishes after Close are dropped.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.RLock()
	if bus.closed {
		bus.mu.RUnlock()
		return
	}
	typed := bus.topics[event.Type()]
	all := bus.topics[wildcard]
	targets := make([]subscription, 0, len(typed)+len(all))
	targets = append(targets, typed...)
	targets = append(targets, all...)
	logger := bus.logger
	bus.mu.RUnlock()

	for _, sub := range targets {
		deliver(logger, sub, event)
	}
}

func deliver(logger *slog.Logger, sub subscription, event domain.Event) {
	defer func() {
		r := recover()
		if r == nil || logger == nil {
			return
		}
		logger.Error("event handler panicked",
			slog.String("event_type", string(event.Type())),
			slog.String("subscription", string(sub.id)),
			slog.Any("panic", r))
	}()

	if sub.filter != nil && !sub.filter(event) {
		return
	}
	if logger != nil && logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("delivering event",
			slog.String("event_type", string(event.Type())),
			slog.String("subscription", string(sub.id)))
	}
	sub.handler(event)
}

// Subscribe registers handler for events of eventType.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	return bus.subscribe(eventType, nil, handler)
}

// SubscribeFiltered registers handler for the events of eventType that filter accepts.
func (bus *SyncEventBus) SubscribeFiltered(eventType domain.EventType, filter ports.EventFilter, handler domain.EventHandler) domain.SubscriptionID {
	return bus.subscribe(eventType, filter, handler)
}

// SubscribeAll registers handler for every event.
func (bus *SyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	return bus.subscribe(wildcard, nil, handler)
}

// subscribe panics on a nil handler. On a closed bus it returns an empty id
// and the handler is never called.
func (bus *SyncEventBus) subscribe(topic domain.EventType, filter ports.EventFilter, handler domain.EventHandler) domain.SubscriptionID {
	if handler == nil {
		panic("eventbus: nil handler")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closed {
		if bus.logger != nil {
			bus.logger.Warn("subscribe on closed event bus ignored", slog.String("event_type", string(topic)))
		}
		return ""
	}

	bus.seq++
	id := domain.SubscriptionID(fmt.Sprintf("%s#%d", topic, bus.seq))
	bus.topics[topic] = append(bus.topics[topic], subscription{id: id, handler: handler, filter: filter})
	bus.owner[id] = topic
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	topic, ok := bus.owner[id]
	if !ok {
		return
	}
	delete(bus.owner, id)

	subs := bus.topics[topic]
	for i := range subs {
		if subs[i].id != id {
			continue
		}
		// Copy so snapshots taken by an in-flight Publish stay intact.
		rest := make([]subscription, 0, len(subs)-1)
		rest = append(rest, subs[:i]...)
		rest = append(rest, subs[i+1:]...)
		if len(rest) == 0 {
			delete(bus.topics, topic)
		} else {
			bus.topics[topic] = rest
		}
		return
	}
}

// HasSubscribers reports whether an event of eventType would reach any handler.
func (bus *SyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.topics[eventType])+len(bus.topics[wildcard]) > 0
}

// SubscriberCount returns the number of live subscriptions.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.owner)
}

// Close drops all subscriptions. A second Close returns ErrClosed.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closed {
		return ErrClosed
	}
	bus.closed = true
	bus.topics = make(map[domain.EventType][]subscription)
	bus.owner = make(map[domain.SubscriptionID]domain.EventType)
	return nil
}

var _ ports.FilteringEventBus = (*SyncEventBus)(nil)
