package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// MainLoop marshals callbacks onto a single goroutine, the one that calls Run.
//
// Background goroutines never call UI code directly: handlers subscribed through
// MainLoop are queued and executed inside Run. Posting never blocks the publisher.
type MainLoop struct {
	logger *slog.Logger
	bus    ports.EventBus

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	subs    []domain.SubscriptionID
	closed  bool
}

// NewMainLoop creates a dispatcher bound to bus.
func NewMainLoop(logger *slog.Logger, bus ports.EventBus) *MainLoop {
	return &MainLoop{
		logger: logger,
		bus:    bus,
		wake:   make(chan struct{}, 1),
	}
}

// Post queues fn for execution on the main goroutine.
// Returns false if the loop was closed.
func (m *MainLoop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.pending = append(m.pending, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Subscribe registers handler on the underlying bus; deliveries are redispatched
// onto the main goroutine.
func (m *MainLoop) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	id := m.bus.Subscribe(eventType, func(event domain.Event) {
		m.Post(func() { handler(event) })
	})
	if id == "" {
		return id
	}

	m.mu.Lock()
	m.subs = append(m.subs, id)
	m.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription made through Subscribe.
func (m *MainLoop) Unsubscribe(id domain.SubscriptionID) {
	m.bus.Unsubscribe(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subs {
		if sub == id {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			return
		}
	}
}

// Run executes queued callbacks until ctx is done. It must be called from the
// goroutine that owns UI state.
func (m *MainLoop) Run(ctx context.Context) {
	for {
		m.RunPending()

		select {
		case <-ctx.Done():
			m.RunPending()
			return
		case <-m.wake:
		}
	}
}

// RunPending executes every callback queued so far and returns how many ran.
func (m *MainLoop) RunPending() int {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, fn := range batch {
		m.invoke(fn)
	}
	return len(batch)
}

func (m *MainLoop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("main loop callback panicked", slog.Any("panic", r))
		}
	}()
	fn()
}

// Close unsubscribes every handler and drops callbacks that were not run.
func (m *MainLoop) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.pending = nil
	m.closed = true
	m.mu.Unlock()

	for _, id := range subs {
		m.bus.Unsubscribe(id)
	}
}
