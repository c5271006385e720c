// Package mock provides a simulated implementation of the PlaybackEngine interface.
// It is used by tests and by hosts without a native audio pipeline.
package mock

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// DefaultLength is the simulated length of tracks without a known duration.
const DefaultLength = 3 * time.Minute

// Engine is a simulated playback engine.
// It walks the real state machine without producing any audio.
//
// Thread-safety: This implementation is thread-safe. Listeners are called
// without holding the engine lock, so they may call back into the engine.
type Engine struct {
	id     string
	name   string
	logger *slog.Logger

	mu       sync.RWMutex
	state    domain.PlayerState
	track    *domain.Track
	length   time.Duration
	position time.Duration
	volume   float64
	disposed bool

	listeners map[int]ports.EngineListener
	nextSub   int

	// Behavior configuration (for testing error scenarios)
	selfTestErr error
	failOpen    bool
	failPlay    bool

	closeCalls   int
	disposeCalls int
	closeHook    func()
}

// NewEngine creates a new simulated engine.
func NewEngine(id, name string) *Engine {
	return &Engine{
		id:        id,
		name:      name,
		logger:    slog.Default(),
		volume:    1.0,
		listeners: make(map[int]ports.EngineListener),
	}
}

// Factory returns an engine factory that builds a simulated engine.
func Factory(id, name string) ports.EngineFactory {
	return func(logger *slog.Logger) (ports.PlaybackEngine, error) {
		e := NewEngine(id, name)
		e.SetLogger(logger)
		return e, nil
	}
}

// FactoryFor returns a factory that always hands out the given engine.
// Tests use it to keep a handle on the engine the registry builds.
func FactoryFor(e *Engine) ports.EngineFactory {
	return func(logger *slog.Logger) (ports.PlaybackEngine, error) {
		e.SetLogger(logger)
		return e, nil
	}
}

// SetLogger sets the logger for this engine.
func (m *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger.With(slog.String("engine", m.id))
}

// SetSelfTestError makes SelfTest fail with err (for testing).
func (m *Engine) SetSelfTestError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selfTestErr = err
}

// SetFailOpen configures the engine to fail opening tracks (for testing).
func (m *Engine) SetFailOpen(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = fail
}

// SetFailPlay configures the engine to fail playback (for testing).
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// OnClose registers a hook run at the end of every Close call (for testing).
func (m *Engine) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeHook = fn
}

// ID returns the engine identifier.
func (m *Engine) ID() string { return m.id }

// Name returns the human-readable engine name.
func (m *Engine) Name() string { return m.name }

// SelfTest succeeds unless a failure was configured.
func (m *Engine) SelfTest() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selfTestErr != nil {
		return domain.NewEngineError(m.id, "selftest", m.selfTestErr)
	}
	return nil
}

// Open loads a track. The engine passes through StateLoading to StateLoaded.
func (m *Engine) Open(track domain.Track) error {
	if track.Path == "" {
		return domain.ErrInvalidFilePath
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return domain.NewEngineError(m.id, "open", fmt.Errorf("engine disposed"))
	}
	if m.failOpen {
		m.mu.Unlock()
		err := domain.NewEngineError(m.id, "open", fmt.Errorf("mock open failed: %s", track.Path))
		m.emit(ports.EngineEvent{Kind: ports.EngineErrorOccurred, Err: err})
		return err
	}

	t := track
	m.track = &t
	m.position = 0
	m.length = track.Duration
	if m.length <= 0 {
		m.length = DefaultLength
	}
	m.state = domain.StateLoading
	m.mu.Unlock()

	m.emit(ports.EngineEvent{Kind: ports.EngineStateChanged, State: domain.StateLoading, Track: &t})
	m.setState(domain.StateLoaded)
	return nil
}

// Play starts or resumes playback of the open track.
func (m *Engine) Play() error {
	m.mu.Lock()
	if m.track == nil {
		m.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	if m.failPlay {
		m.mu.Unlock()
		err := domain.NewEngineError(m.id, "play", fmt.Errorf("mock playback failed"))
		m.emit(ports.EngineEvent{Kind: ports.EngineErrorOccurred, Err: err})
		return err
	}
	m.mu.Unlock()

	m.setState(domain.StatePlaying)
	return nil
}

// Pause pauses playback. Pausing anything but a playing track is a no-op.
func (m *Engine) Pause() error {
	m.mu.RLock()
	if m.track == nil {
		m.mu.RUnlock()
		return domain.ErrNoTrackLoaded
	}
	playing := m.state == domain.StatePlaying
	m.mu.RUnlock()

	if playing {
		m.setState(domain.StatePaused)
	}
	return nil
}

// Close stops playback and releases the open track.
func (m *Engine) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.track = nil
	m.position = 0
	m.length = 0
	hook := m.closeHook
	m.mu.Unlock()

	m.setState(domain.StateIdle)
	if hook != nil {
		hook()
	}
	return nil
}

// setState records the new state and notifies listeners if it changed.
func (m *Engine) setState(state domain.PlayerState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	track := m.track
	m.mu.Unlock()

	m.emit(ports.EngineEvent{Kind: ports.EngineStateChanged, State: state, Track: track})
}

// State returns the current engine state.
func (m *Engine) State() domain.PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Volume returns the current volume.
func (m *Engine) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// SetVolume sets the playback volume.
func (m *Engine) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

// Position returns the current playback position.
func (m *Engine) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// SetPosition seeks within the open track.
func (m *Engine) SetPosition(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.track == nil {
		return domain.ErrNoTrackLoaded
	}
	if position < 0 || position > m.length {
		return domain.ErrInvalidPosition
	}
	m.position = position
	return nil
}

// Length returns the length of the open track.
func (m *Engine) Length() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.length
}

// Subscribe registers a listener for engine signals.
func (m *Engine) Subscribe(listener ports.EngineListener) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// emit calls every listener. Must not be called with m.mu held.
func (m *Engine) emit(event ports.EngineEvent) {
	m.mu.RLock()
	listeners := make([]ports.EngineListener, 0, len(m.listeners))
	for i := 0; i < m.nextSub; i++ {
		if l, ok := m.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}

// Dispose releases the engine. Later Open calls fail.
func (m *Engine) Dispose() error {
	m.mu.Lock()
	m.disposeCalls++
	m.disposed = true
	m.mu.Unlock()

	m.logger.Debug("engine disposed")
	return nil
}

// SimulateProgress advances the position of a playing track (for testing).
// Reaching the end fires EndOfStream and closes the track.
func (m *Engine) SimulateProgress(delta time.Duration) error {
	m.mu.Lock()
	if m.state != domain.StatePlaying {
		m.mu.Unlock()
		return fmt.Errorf("track is not playing")
	}

	m.position += delta
	ended := m.position >= m.length
	if ended {
		m.position = m.length
	}
	track := m.track
	m.mu.Unlock()

	if ended {
		m.emit(ports.EngineEvent{Kind: ports.EngineEndOfStream, Track: track})
		return m.Close()
	}
	return nil
}

// SimulateError fires an engine error signal (for testing).
func (m *Engine) SimulateError(err error) {
	m.emit(ports.EngineEvent{Kind: ports.EngineErrorOccurred, Err: domain.NewEngineError(m.id, "stream", err)})
}

// CloseCalls returns how often Close was called (for testing).
func (m *Engine) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}

// DisposeCalls returns how often Dispose was called (for testing).
func (m *Engine) DisposeCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disposeCalls
}

// ListenerCount returns the number of subscribed listeners (for testing).
func (m *Engine) ListenerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners)
}

// Verify that Engine implements the PlaybackEngine interface
var _ ports.PlaybackEngine = (*Engine)(nil)
