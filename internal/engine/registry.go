// Package engine keeps track of the available playback engines and which one is active.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// slot is a registered engine plus its status.
type slot struct {
	engine   ports.PlaybackEngine
	disabled bool
	reason   string
}

func (s *slot) id() string { return s.engine.ID() }

// Registry owns the engine slots. Exactly one enabled slot is active after
// discovery; a second slot may be pending and replaces the active one only
// when the active engine is idle.
//
// Signals of the active engine are republished on the event bus. The registry
// subscribes to the active engine only and unsubscribes before a swap.
//
// Thread-safety: All methods are safe for concurrent use.
type Registry struct {
	logger *slog.Logger
	bus    ports.EventBus

	// swapMu serializes swaps and disposal. It may be held while calling into
	// engines; mu never is.
	swapMu sync.Mutex

	mu          sync.Mutex
	factories   []ports.EngineFactory
	slots       []*slot
	active      *slot
	pending     *slot
	unsubscribe func()
	discovered  bool
	disposed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry(bus ports.EventBus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With(slog.String("component", "engine-registry")),
		bus:    bus,
	}
}

// Register adds an engine factory. Factories are built by Discover, in
// registration order.
func (r *Registry) Register(factory ports.EngineFactory) {
	if factory == nil {
		panic("engine factory cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, factory)
}

// Discover builds every registered engine and runs its self-test. Engines that
// fail are kept as disabled slots. The preferred engine becomes active if it is
// usable, otherwise the first usable one does.
//
// Returns domain.ErrNoUsableEngines if no engine passed its self-test.
func (r *Registry) Discover(preferred string) error {
	r.swapMu.Lock()
	defer r.swapMu.Unlock()

	r.mu.Lock()
	if r.discovered {
		r.mu.Unlock()
		return fmt.Errorf("engines already discovered")
	}
	r.discovered = true
	factories := r.factories
	r.mu.Unlock()

	seen := make(map[string]bool)
	var slots []*slot
	for i, factory := range factories {
		engine, err := factory(r.logger)
		if err != nil {
			r.logger.Warn("engine factory failed", slog.Int("index", i), slog.String("error", err.Error()))
			continue
		}
		if seen[engine.ID()] {
			r.logger.Warn("duplicate engine id ignored", slog.String("engine", engine.ID()))
			_ = engine.Dispose()
			continue
		}
		seen[engine.ID()] = true

		s := &slot{engine: engine}
		if err := engine.SelfTest(); err != nil {
			s.disabled = true
			s.reason = err.Error()
			r.logger.Warn("engine disabled",
				slog.String("engine", engine.ID()),
				slog.String("reason", s.reason))
		} else {
			r.logger.Info("engine available",
				slog.String("engine", engine.ID()),
				slog.String("name", engine.Name()))
		}
		slots = append(slots, s)
	}

	chosen := pick(slots, preferred)

	r.mu.Lock()
	r.slots = slots
	r.mu.Unlock()

	if chosen == nil {
		return domain.ErrNoUsableEngines
	}
	if preferred != "" && chosen.id() != preferred {
		r.logger.Info("preferred engine unavailable",
			slog.String("preferred", preferred),
			slog.String("engine", chosen.id()))
	}

	r.activate(chosen)
	return nil
}

// pick returns the preferred enabled slot, or the first enabled one.
func pick(slots []*slot, preferred string) *slot {
	var first *slot
	for _, s := range slots {
		if s.disabled {
			continue
		}
		if s.id() == preferred {
			return s
		}
		if first == nil {
			first = s
		}
	}
	return first
}

// activate makes s the active slot and subscribes to its signals.
// Caller holds swapMu.
func (r *Registry) activate(s *slot) {
	r.mu.Lock()
	r.active = s
	r.mu.Unlock()

	unsubscribe := s.engine.Subscribe(r.forward(s))

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
}

// forward returns the listener attached to the engine of s.
func (r *Registry) forward(s *slot) ports.EngineListener {
	id := s.id()
	return func(event ports.EngineEvent) {
		r.mu.Lock()
		current := r.active == s
		r.mu.Unlock()

		// Signals already in flight when the engine was swapped out
		if !current {
			r.logger.Debug("dropping signal from inactive engine", slog.String("engine", id))
			return
		}

		switch event.Kind {
		case ports.EngineStateChanged:
			r.publish(domain.NewEngineStateChangedEvent(id, event.State, event.Track))
			if event.State.IsIdle() {
				r.CheckPending()
			}
		case ports.EngineErrorOccurred:
			r.logger.Warn("engine error", slog.String("engine", id), slog.Any("error", event.Err))
			r.publish(domain.NewEngineErrorEvent(id, event.Err))
		case ports.EngineEndOfStream:
			r.publish(domain.NewEndOfStreamEvent(id, event.Track))
		}
	}
}

func (r *Registry) publish(event domain.Event) {
	if r.bus != nil {
		r.bus.Publish(event)
	}
}

// Active returns the active engine, or nil before a successful Discover.
func (r *Registry) Active() ports.PlaybackEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.engine
}

// ActiveID returns the id of the active engine, or "".
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.id()
}

// Pending returns the id of the pending engine, or "".
func (r *Registry) Pending() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return ""
	}
	return r.pending.id()
}

// SetPending records the engine to switch to. The switch happens in
// CheckPending once the active engine is idle. Selecting the active engine
// clears any pending switch.
func (r *Registry) SetPending(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.find(id)
	if s == nil {
		return domain.NewEngineError(id, "select", domain.ErrEngineNotFound)
	}
	if s.disabled {
		return domain.NewEngineError(id, "select", fmt.Errorf("%w: %s", domain.ErrEngineDisabled, s.reason))
	}

	if s == r.active {
		r.pending = nil
		return nil
	}
	r.pending = s
	r.logger.Info("engine switch pending", slog.String("engine", id))
	return nil
}

// CheckPending performs a pending switch if the active engine is idle.
// The outgoing engine is unsubscribed and closed before the incoming one
// becomes active. Returns true if a switch happened.
func (r *Registry) CheckPending() bool {
	r.swapMu.Lock()
	defer r.swapMu.Unlock()

	r.mu.Lock()
	out, in := r.active, r.pending
	if in == nil || r.disposed {
		r.mu.Unlock()
		return false
	}
	if out != nil && !out.engine.State().IsIdle() {
		r.mu.Unlock()
		return false
	}
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.pending = nil
	r.mu.Unlock()

	from := ""
	if out != nil {
		from = out.id()
		if unsubscribe != nil {
			unsubscribe()
		}
		if err := out.engine.Close(); err != nil {
			r.logger.Warn("closing outgoing engine failed", slog.String("engine", from), slog.String("error", err.Error()))
		}
	}

	r.activate(in)
	r.logger.Info("engine switched", slog.String("from", from), slog.String("to", in.id()))
	r.publish(domain.NewEngineSwappedEvent(from, in.id()))
	return true
}

// Slots returns a snapshot of every discovered engine slot.
func (r *Registry) Slots() []domain.EngineSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.EngineSlot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, r.snapshotLocked(s))
	}
	return out
}

// Slot returns the slot with id.
func (r *Registry) Slot(id string) (domain.EngineSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.find(id)
	if s == nil {
		return domain.EngineSlot{}, domain.ErrEngineNotFound
	}
	return r.snapshotLocked(s), nil
}

func (r *Registry) snapshotLocked(s *slot) domain.EngineSlot {
	return domain.EngineSlot{
		ID:       s.id(),
		Name:     s.engine.Name(),
		Disabled: s.disabled,
		Reason:   s.reason,
		Active:   s == r.active,
		Pending:  s == r.pending,
	}
}

func (r *Registry) find(id string) *slot {
	for _, s := range r.slots {
		if s.id() == id {
			return s
		}
	}
	return nil
}

// Dispose closes the active engine and disposes every engine once.
// Dispose is idempotent.
func (r *Registry) Dispose() error {
	r.swapMu.Lock()
	defer r.swapMu.Unlock()

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	r.disposed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	active := r.active
	slots := r.slots
	r.pending = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	var errs []error
	if active != nil {
		if err := active.engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range slots {
		if err := s.engine.Dispose(); err != nil {
			errs = append(errs, domain.NewEngineError(s.id(), "dispose", err))
		}
	}
	r.logger.Debug("engines disposed", slog.Int("count", len(slots)))
	return errors.Join(errs...)
}
