// Package service provides the application services built on the core queues,
// the engine registry and the database proxy.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// EngineRegistry is the part of engine.Registry the playback service uses.
type EngineRegistry interface {
	Active() ports.PlaybackEngine
	ActiveID() string
	SetPending(id string) error
	CheckPending() bool
	Slots() []domain.EngineSlot
}

// PlaybackService plays tracks on whichever engine the registry reports active.
// It keeps the open track, volume and mute state across engine swaps.
//
// Commands are serialized by cmdMu, which may be held while calling engines.
// Engine signals come back through the event bus and only take mu, so an
// engine emitting synchronously from inside a command never deadlocks.
type PlaybackService struct {
	// Dependencies (injected)
	logger   *slog.Logger
	registry EngineRegistry
	bus      ports.EventBus

	cmdMu sync.Mutex

	// State
	mu             sync.RWMutex
	currentTrack   *domain.Track
	volume         float64
	isMuted        bool
	updateInterval time.Duration
	subs           []domain.SubscriptionID

	stopUpdate    chan struct{}
	updateRunning bool
	updateWg      sync.WaitGroup
}

// NewPlaybackService creates a new playback service and starts the position updates.
func NewPlaybackService(
	logger *slog.Logger,
	registry EngineRegistry,
	bus ports.EventBus,
) *PlaybackService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PlaybackService{
		logger:         logger.With(slog.String("component", "playback")),
		registry:       registry,
		bus:            bus,
		volume:         0.8,
		updateInterval: 333 * time.Millisecond,
		stopUpdate:     make(chan struct{}),
	}

	s.subs = append(s.subs,
		bus.Subscribe(domain.EventEngineEndOfStream, s.onEndOfStream),
		bus.Subscribe(domain.EventEngineSwapped, s.onEngineSwapped),
	)

	s.logger.Debug("playback service initialized")
	s.startUpdateRoutine()
	return s
}

func (s *PlaybackService) active() (ports.PlaybackEngine, error) {
	engine := s.registry.Active()
	if engine == nil {
		return nil, domain.ErrNoActiveEngine
	}
	return engine, nil
}

func (s *PlaybackService) effectiveVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isMuted {
		return 0
	}
	return s.volume
}

// Open closes the current track and opens track on the active engine.
// A pending engine switch takes effect before the new track is opened.
func (s *PlaybackService) Open(track domain.Track) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if track.Path == "" {
		return domain.ErrInvalidFilePath
	}

	engine, err := s.active()
	if err != nil {
		return err
	}

	s.logger.Debug("opening track", slog.String("path", track.Path), slog.String("engine", engine.ID()))

	if err := s.closeCurrent(engine); err != nil {
		s.logger.Warn("failed to close current track", slog.Any("error", err))
	}

	// The idle boundary between two tracks is where a pending engine takes over
	s.registry.CheckPending()
	if engine, err = s.active(); err != nil {
		return err
	}

	if err := engine.Open(track); err != nil {
		s.logger.Debug("failed to open track", slog.Any("error", err))
		return err
	}
	if err := engine.SetVolume(s.effectiveVolume()); err != nil {
		s.logger.Warn("failed to apply volume", slog.Any("error", err))
	}

	s.mu.Lock()
	t := track
	s.currentTrack = &t
	s.mu.Unlock()

	s.bus.Publish(domain.NewTrackOpenedEvent(track, engine.ID(), engine.Length()))
	return nil
}

// Play starts or resumes playback of the open track.
func (s *PlaybackService) Play() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	engine, err := s.loaded()
	if err != nil {
		return err
	}
	if engine.State() == domain.StatePlaying {
		return nil
	}
	return engine.Play()
}

// Pause pauses playback of the open track.
func (s *PlaybackService) Pause() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	engine, err := s.loaded()
	if err != nil {
		return err
	}
	return engine.Pause()
}

// Close stops playback and releases the open track. The engine becomes idle,
// which lets a pending engine switch happen.
func (s *PlaybackService) Close() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	engine, err := s.active()
	if err != nil {
		return err
	}
	return s.closeCurrent(engine)
}

// closeCurrent closes the open track. Caller holds cmdMu.
func (s *PlaybackService) closeCurrent(engine ports.PlaybackEngine) error {
	s.mu.Lock()
	open := s.currentTrack != nil
	s.currentTrack = nil
	s.mu.Unlock()

	if !open && engine.State().IsIdle() {
		return nil
	}
	return engine.Close()
}

// loaded returns the active engine if a track is open.
func (s *PlaybackService) loaded() (ports.PlaybackEngine, error) {
	engine, err := s.active()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	open := s.currentTrack != nil
	s.mu.RUnlock()
	if !open {
		return nil, domain.ErrNoTrackLoaded
	}
	return engine, nil
}

// SetVolume sets the playback volume (0.0 to 1.0).
// While muted the volume is remembered and applied on unmute.
func (s *PlaybackService) SetVolume(volume float64) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.mu.Lock()
	s.volume = volume
	muted := s.isMuted
	s.mu.Unlock()

	if !muted {
		if engine := s.registry.Active(); engine != nil {
			if err := engine.SetVolume(volume); err != nil {
				return err
			}
		}
	}

	s.bus.Publish(domain.NewVolumeChangedEvent(volume))
	return nil
}

// Volume returns the current volume (0.0 to 1.0).
func (s *PlaybackService) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// Mute mutes or unmutes playback.
func (s *PlaybackService) Mute(mute bool) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.isMuted == mute {
		s.mu.Unlock()
		return nil
	}
	s.isMuted = mute
	s.mu.Unlock()

	if engine := s.registry.Active(); engine != nil {
		if err := engine.SetVolume(s.effectiveVolume()); err != nil {
			return err
		}
	}

	s.bus.Publish(domain.NewMuteToggledEvent(mute))
	return nil
}

// IsMuted returns true if playback is muted.
func (s *PlaybackService) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isMuted
}

// Seek sets the playback position of the open track.
func (s *PlaybackService) Seek(position time.Duration) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	engine, err := s.loaded()
	if err != nil {
		return err
	}
	length := engine.Length()
	if position < 0 || (length > 0 && position > length) {
		return domain.ErrInvalidPosition
	}
	if err := engine.SetPosition(position); err != nil {
		return err
	}

	s.bus.Publish(domain.NewTrackProgressEvent(position, length))
	return nil
}

// SwitchEngine selects the engine to use. The switch happens immediately if
// the active engine is idle, otherwise when it next becomes idle.
// Returns true if the engine was switched right away.
func (s *PlaybackService) SwitchEngine(id string) (bool, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if err := s.registry.SetPending(id); err != nil {
		return false, domain.NewServiceError("PlaybackService", "SwitchEngine", "cannot select engine", err)
	}
	return s.registry.CheckPending(), nil
}

// Engines returns the engine slots known to the registry.
func (s *PlaybackService) Engines() []domain.EngineSlot {
	return s.registry.Slots()
}

// State returns the current playback state.
func (s *PlaybackService) State() domain.PlaybackState {
	s.mu.RLock()
	state := domain.PlaybackState{
		Engine:  s.registry.ActiveID(),
		Track:   s.currentTrack,
		Volume:  s.volume,
		IsMuted: s.isMuted,
	}
	s.mu.RUnlock()

	if engine := s.registry.Active(); engine != nil {
		state.State = engine.State()
		state.Position = engine.Position()
		state.Length = engine.Length()
	}
	return state
}

func (s *PlaybackService) onEndOfStream(event domain.Event) {
	s.mu.Lock()
	track := s.currentTrack
	s.currentTrack = nil
	s.mu.Unlock()

	if track != nil {
		s.logger.Debug("track finished", slog.String("path", track.Path))
	}
}

func (s *PlaybackService) onEngineSwapped(event domain.Event) {
	e := event.(domain.EngineSwappedEvent)
	engine := s.registry.Active()
	if engine == nil {
		return
	}
	if err := engine.SetVolume(s.effectiveVolume()); err != nil {
		s.logger.Warn("failed to apply volume after engine switch",
			slog.String("engine", e.To), slog.Any("error", err))
	}
}

// startUpdateRoutine starts a goroutine that periodically publishes progress events.
func (s *PlaybackService) startUpdateRoutine() {
	s.mu.Lock()
	if s.updateRunning {
		s.mu.Unlock()
		return
	}
	s.updateRunning = true
	s.updateWg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.updateWg.Done()
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopUpdate:
				return
			case <-ticker.C:
				s.publishProgressUpdate()
			}
		}
	}()
}

// publishProgressUpdate publishes a progress event while a track is playing.
func (s *PlaybackService) publishProgressUpdate() {
	s.mu.RLock()
	open := s.currentTrack != nil
	s.mu.RUnlock()
	if !open {
		return
	}

	engine := s.registry.Active()
	if engine == nil || engine.State() != domain.StatePlaying {
		return
	}
	s.bus.Publish(domain.NewTrackProgressEvent(engine.Position(), engine.Length()))
}

// Shutdown stops the position updates and closes the open track.
func (s *PlaybackService) Shutdown() error {
	s.mu.Lock()
	if s.updateRunning {
		close(s.stopUpdate)
		s.updateRunning = false
	}
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	// Wait for the update goroutine without holding the lock
	s.updateWg.Wait()

	for _, id := range subs {
		s.bus.Unsubscribe(id)
	}

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	engine := s.registry.Active()
	if engine == nil {
		return nil
	}
	return s.closeCurrent(engine)
}

// Verify that PlaybackService implements the expected interface patterns
var _ interface {
	Open(domain.Track) error
	Play() error
	Pause() error
	Close() error
	SetVolume(float64) error
	Volume() float64
	Mute(bool) error
	IsMuted() bool
	Seek(time.Duration) error
	SwitchEngine(string) (bool, error)
	State() domain.PlaybackState
	Shutdown() error
} = (*PlaybackService)(nil)
